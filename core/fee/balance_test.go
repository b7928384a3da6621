package fee

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeTotals(t *testing.T) {
	insts := []Installment{
		{Amount: dec("500"), Status: StatusPaid, PayedAmount: dec("500")},
		{Amount: dec("500"), Status: StatusPending, PayedAmount: dec("120")},
		{Amount: dec("400.50"), Status: StatusOverdue, PayedAmount: dec("0")},
	}

	got := ComputeTotals(insts)

	assert.Equal(t, "1400.5", got.TotalAmount.String())
	assert.Equal(t, "620", got.TotalPaid.String())
	assert.Equal(t, "780.5", got.TotalPending.String())

	empty := ComputeTotals(nil)
	assert.True(t, empty.TotalAmount.IsZero())
	assert.True(t, empty.TotalPaid.IsZero())
	assert.True(t, empty.TotalPending.IsZero())
}

func TestReconcile(t *testing.T) {
	plan := FeePlan{TargetTotal: dec("1600"), Discount: dec("100")}
	insts := []Installment{
		{Amount: dec("500"), Status: StatusPaid, PayedAmount: dec("500")},
		{Amount: dec("500"), Status: StatusPending, PayedAmount: dec("200")},
		{Amount: dec("500"), Status: StatusPending, PayedAmount: dec("0")},
	}

	first := Reconcile(plan, insts)
	assert.Equal(t, "800", first.String())
	assert.True(t, first.Equal(Reconcile(plan, insts)))
	assert.Equal(t, "1500", Reconcile(plan, nil).String())
}

func TestAmountToAdd(t *testing.T) {
	plan := FeePlan{TargetTotal: dec("1500")}

	tests := []struct {
		name    string
		amounts []string
		want    string
	}{
		{"short of the plan", []string{"500", "500", "400"}, "100"},
		{"matches the plan", []string{"500", "500", "500"}, "0"},
		{"exceeds the plan", []string{"1000", "1000"}, "-500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var insts []Installment
			for _, a := range tt.amounts {
				insts = append(insts, Installment{Amount: dec(a)})
			}
			assert.Equal(t, tt.want, AmountToAdd(plan, insts).String())
		})
	}
}
