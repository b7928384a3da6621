package fee

// Error is a fee rule violation. Code is stable across messages.
type Error struct {
	Code string
	msg  string
}

func (e *Error) Error() string { return e.msg }

var (
	ErrInvalidAmount              = &Error{Code: "invalid_amount", msg: "Invalid amount."}
	ErrInvalidStatus              = &Error{Code: "invalid_status", msg: "Invalid status value."}
	ErrPaidRequiresPositiveAmount = &Error{Code: "paid_requires_positive_amount", msg: "Payed amount must be greater than zero to mark as paid."}
	ErrPaidIsImmutable            = &Error{Code: "paid_is_immutable", msg: "Paid installments cannot be changed."}
	ErrOutOfOrderPayment          = &Error{Code: "out_of_order_payment", msg: "Payments must be marked in order."}
	ErrNotFound                   = &Error{Code: "not_found", msg: "Not found."}
)

// AtomicityError reports a failed multi-step change that was rolled back as a whole.
type AtomicityError struct {
	Op  string
	Err error
}

func (e *AtomicityError) Error() string {
	return e.Op + ": changes discarded: " + e.Err.Error()
}

func (e *AtomicityError) Unwrap() error { return e.Err }
