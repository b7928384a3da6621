package fee

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventPaymentsRecorded = "fee.payments_recorded"
	EventScheduleEdited   = "fee.schedule_edited"
)

// Event is published after a ledger change is committed. Events of one ledger share LedgerID as key.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	LedgerID   string    `json:"ledger_id"`
	OccurredAt time.Time `json:"occurred_at"`

	PaidInstallments []string         `json:"paid_installments,omitempty"`
	RemainingAmount  *decimal.Decimal `json:"remaining_amount,omitempty"`
	AmountToAdd      *decimal.Decimal `json:"amount_to_add,omitempty"`
}

func newEvent(typ, ledgerID string, at time.Time) Event {
	return Event{ID: uuid.New().String(), Type: typ, LedgerID: ledgerID, OccurredAt: at}
}
