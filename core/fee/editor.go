package fee

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// EditPlan is the outcome of an edit, ready to be persisted as one unit.
type EditPlan struct {
	Removed []string
	Created []Installment
	// Updated holds kept installments whose amount, period or due date changed.
	Updated []Installment
	// Installments is the resulting schedule, in Seq order.
	Installments []Installment
}

// PlanEdit applies edit to the ledger's current installments and recomputes every due date
// from the registration date. Paid installments cannot be removed. A modification of an
// installment removed by the same edit is dropped.
func PlanEdit(ledgerID string, current []Installment, edit ScheduleEdit, registration time.Time) (EditPlan, error) {
	var plan EditPlan

	byID := make(map[string]Installment, len(current))
	for _, inst := range current {
		byID[inst.ID] = inst
	}

	removed := make(map[string]bool, len(edit.Removed))
	for _, id := range edit.Removed {
		inst, ok := byID[id]
		if !ok {
			return plan, errors.Wrapf(ErrNotFound, "installment %q", id)
		}
		if inst.IsPaid() {
			return plan, errors.Wrapf(ErrPaidIsImmutable, "installment %q", id)
		}
		if !removed[id] {
			removed[id] = true
			plan.Removed = append(plan.Removed, id)
		}
	}

	modified := make(map[string]InstallmentChange, len(edit.Modified))
	for _, ch := range edit.Modified {
		if _, ok := byID[ch.ID]; !ok {
			return plan, errors.Wrapf(ErrNotFound, "installment %q", ch.ID)
		}
		if !validAmount(ch.Amount) || ch.RepaymentPeriodDays < 0 {
			return plan, errors.Wrapf(ErrInvalidAmount, "installment %q", ch.ID)
		}
		modified[ch.ID] = ch
	}
	for _, line := range edit.Added {
		if !validAmount(line.Amount) || line.RepaymentPeriodDays < 0 {
			return plan, errors.WithStack(ErrInvalidAmount)
		}
	}

	kept := make([]Installment, 0, len(current)+len(edit.Added))
	for _, inst := range current {
		if removed[inst.ID] {
			continue
		}
		if ch, ok := modified[inst.ID]; ok {
			inst.Amount = ch.Amount
			inst.RepaymentPeriodDays = ch.RepaymentPeriodDays
		}
		kept = append(kept, inst)
	}

	seq := NextSeq(current)
	for _, line := range edit.Added {
		kept = append(kept, Installment{
			LedgerID:            ledgerID,
			Seq:                 seq,
			Amount:              line.Amount,
			RepaymentPeriodDays: line.RepaymentPeriodDays,
			Status:              StatusPending,
			PayedAmount:         decimal.Zero,
		})
		seq++
	}

	RecomputeDueDates(registration, kept)

	for _, inst := range kept {
		prev, ok := byID[inst.ID]
		switch {
		case inst.ID == "" || !ok:
			plan.Created = append(plan.Created, inst)
		case !prev.Amount.Equal(inst.Amount) ||
			prev.RepaymentPeriodDays != inst.RepaymentPeriodDays ||
			!prev.DueDate.Equal(inst.DueDate):
			plan.Updated = append(plan.Updated, inst)
		}
	}
	plan.Installments = kept
	return plan, nil
}
