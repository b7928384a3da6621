package fee

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safnadck/myapplication/core"
)

// GenerateSchedule lays out one pending installment per template line.
// Due dates accumulate the lines' repayment periods starting from the registration date.
func GenerateSchedule(ledgerID string, registration time.Time, lines []FeeTemplateLine) []Installment {
	lines = append([]FeeTemplateLine(nil), lines...)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Position < lines[j].Position })

	due := core.Date(registration)
	insts := make([]Installment, 0, len(lines))
	for i, line := range lines {
		due = due.AddDate(0, 0, line.RepaymentPeriodDays)
		insts = append(insts, Installment{
			LedgerID:            ledgerID,
			Seq:                 i + 1,
			DueDate:             due,
			Amount:              line.Amount,
			RepaymentPeriodDays: line.RepaymentPeriodDays,
			Status:              StatusPending,
			PayedAmount:         decimal.Zero,
		})
	}
	return insts
}

// RecomputeDueDates reassigns every due date, in Seq order, by accumulating repayment periods
// from the registration date. Paid installments are recomputed too. insts is sorted in place.
func RecomputeDueDates(registration time.Time, insts []Installment) {
	SortBySeq(insts)
	due := core.Date(registration)
	for i := range insts {
		due = due.AddDate(0, 0, insts[i].RepaymentPeriodDays)
		insts[i].DueDate = due
	}
}

func SortBySeq(insts []Installment) {
	sort.SliceStable(insts, func(i, j int) bool { return insts[i].Seq < insts[j].Seq })
}

// SortByDueDate orders installments the way they are paid: by due date, then creation order.
func SortByDueDate(insts []Installment) {
	sort.SliceStable(insts, func(i, j int) bool {
		if !insts[i].DueDate.Equal(insts[j].DueDate) {
			return insts[i].DueDate.Before(insts[j].DueDate)
		}
		return insts[i].Seq < insts[j].Seq
	})
}

// NextSeq is the Seq to give the next installment created in the ledger.
func NextSeq(insts []Installment) int {
	max := 0
	for _, inst := range insts {
		if inst.Seq > max {
			max = inst.Seq
		}
	}
	return max + 1
}
