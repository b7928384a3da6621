package fee

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PaymentChange is a validated PaymentUpdate.
type PaymentChange struct {
	Status      Status
	PayedAmount decimal.Decimal
}

// ValidatePayments checks a batch of updates against the ledger's installments, which must be
// sorted by due date. It stops at the first violation, checking installments in due date order.
// When an installment is updated more than once, the last update wins.
func ValidatePayments(insts []Installment, updates []PaymentUpdate) (map[string]PaymentChange, error) {
	known := make(map[string]bool, len(insts))
	for _, inst := range insts {
		known[inst.ID] = true
	}

	byID := make(map[string]PaymentUpdate, len(updates))
	for _, upd := range updates {
		if !known[upd.InstallmentID] {
			return nil, errors.Wrapf(ErrNotFound, "installment %q", upd.InstallmentID)
		}
		byID[upd.InstallmentID] = upd
	}

	changes := make(map[string]PaymentChange, len(byID))
	for i, inst := range insts {
		upd, ok := byID[inst.ID]
		if !ok {
			continue
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(string(upd.PayedAmount)))
		if err != nil || !validAmount(amount) {
			return nil, errors.Wrapf(ErrInvalidAmount, "installment %q", inst.ID)
		}
		status, ok := ParseStatus(strings.TrimSpace(upd.Status))
		if !ok {
			return nil, errors.Wrapf(ErrInvalidStatus, "installment %q", inst.ID)
		}
		if status == StatusPaid && !amount.IsPositive() {
			return nil, errors.Wrapf(ErrPaidRequiresPositiveAmount, "installment %q", inst.ID)
		}
		if inst.IsPaid() && status != StatusPaid {
			return nil, errors.Wrapf(ErrPaidIsImmutable, "installment %q", inst.ID)
		}
		if status == StatusPaid && !inst.IsPaid() {
			for _, prev := range insts[:i] {
				if !prev.IsPaid() {
					return nil, errors.Wrapf(ErrOutOfOrderPayment, "installment %q", inst.ID)
				}
			}
		}

		changes[inst.ID] = PaymentChange{Status: status, PayedAmount: amount}
	}
	return changes, nil
}

// ApplyPayments applies validated changes to insts and returns the installments that changed.
// Paid installments are left untouched. A newly paid installment without a payment date gets today.
func ApplyPayments(insts []Installment, changes map[string]PaymentChange, today time.Time) []Installment {
	var changed []Installment
	for i := range insts {
		inst := &insts[i]
		ch, ok := changes[inst.ID]
		if !ok || inst.IsPaid() {
			continue
		}

		inst.Status = ch.Status
		inst.PayedAmount = ch.PayedAmount
		if ch.Status == StatusPaid {
			if inst.PaymentDate == nil {
				d := today
				inst.PaymentDate = &d
			}
		} else {
			inst.PaymentDate = nil
		}
		changed = append(changed, *inst)
	}
	return changed
}
