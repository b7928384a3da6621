package fee

import "github.com/shopspring/decimal"

// ComputeTotals sums amounts over all installments, whatever their status.
func ComputeTotals(insts []Installment) Totals {
	t := Totals{TotalAmount: decimal.Zero, TotalPaid: decimal.Zero, TotalPending: decimal.Zero}
	for _, inst := range insts {
		t.TotalAmount = t.TotalAmount.Add(inst.Amount)
		t.TotalPaid = t.TotalPaid.Add(inst.PayedAmount)
		t.TotalPending = t.TotalPending.Add(inst.Balance())
	}
	return t
}

// Reconcile returns the ledger's remaining amount: what the plan asks for less every payed amount
// recorded so far, whatever the installment status.
func Reconcile(plan FeePlan, insts []Installment) decimal.Decimal {
	remaining := plan.RemainingAmount()
	for _, inst := range insts {
		remaining = remaining.Sub(inst.PayedAmount)
	}
	return remaining
}

// AmountToAdd is how far the scheduled amounts fall short of the plan (negative when they exceed it).
func AmountToAdd(plan FeePlan, insts []Installment) decimal.Decimal {
	return plan.RemainingAmount().Sub(ComputeTotals(insts).TotalAmount)
}
