package fee

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generated(reg time.Time) []Installment {
	insts := GenerateSchedule("ledger", reg, []FeeTemplateLine{line(1, "500", 30), line(2, "500", 30), line(3, "500", 30)})
	for i := range insts {
		insts[i].ID = []string{"i1", "i2", "i3"}[i]
	}
	return insts
}

func TestPlanEdit_PeriodShiftsLaterDueDates(t *testing.T) {
	reg := day(2024, time.January, 1)
	current := generated(reg)

	plan, err := PlanEdit("ledger", current, ScheduleEdit{
		Modified: []InstallmentChange{{ID: "i1", Amount: dec("500"), RepaymentPeriodDays: 45}},
	}, reg)
	require.NoError(t, err)

	require.Len(t, plan.Installments, 3)
	for i, inst := range plan.Installments {
		assert.True(t, current[i].DueDate.AddDate(0, 0, 15).Equal(inst.DueDate), "installment %d due %v", i+1, inst.DueDate)
	}
	assert.Empty(t, plan.Created)
	assert.Empty(t, plan.Removed)
	assert.Len(t, plan.Updated, 3)
}

func TestPlanEdit(t *testing.T) {
	reg := day(2024, time.January, 1)

	t.Run("add, remove & resize", func(t *testing.T) {
		plan, err := PlanEdit("ledger", generated(reg), ScheduleEdit{
			Added:    []TemplateLine{{Amount: dec("200"), RepaymentPeriodDays: 15}},
			Modified: []InstallmentChange{{ID: "i3", Amount: dec("300"), RepaymentPeriodDays: 30}},
			Removed:  []string{"i2", "i2"},
		}, reg)
		require.NoError(t, err)

		assert.Equal(t, []string{"i2"}, plan.Removed)
		require.Len(t, plan.Installments, 3)

		i1, i3, added := plan.Installments[0], plan.Installments[1], plan.Installments[2]
		assert.Equal(t, "i1", i1.ID)
		assert.True(t, reg.AddDate(0, 0, 30).Equal(i1.DueDate))
		assert.Equal(t, "i3", i3.ID)
		assert.True(t, dec("300").Equal(i3.Amount))
		assert.True(t, reg.AddDate(0, 0, 60).Equal(i3.DueDate))
		assert.Equal(t, "", added.ID)
		assert.Equal(t, 4, added.Seq)
		assert.Equal(t, StatusPending, added.Status)
		assert.True(t, reg.AddDate(0, 0, 75).Equal(added.DueDate))

		require.Len(t, plan.Created, 1)
		require.Len(t, plan.Updated, 1) // i1 keeps its due date
		assert.Equal(t, "i3", plan.Updated[0].ID)
	})

	t.Run("modification of a removed installment is dropped", func(t *testing.T) {
		plan, err := PlanEdit("ledger", generated(reg), ScheduleEdit{
			Modified: []InstallmentChange{{ID: "i1", Amount: dec("1"), RepaymentPeriodDays: 1}},
			Removed:  []string{"i1"},
		}, reg)
		require.NoError(t, err)
		require.Len(t, plan.Installments, 2)
		assert.Equal(t, "i2", plan.Installments[0].ID)
		assert.True(t, reg.AddDate(0, 0, 30).Equal(plan.Installments[0].DueDate))
	})

	t.Run("paid installments are recomputed", func(t *testing.T) {
		current := generated(reg)
		current[0].Status = StatusPaid
		current[0].PayedAmount = dec("500")

		plan, err := PlanEdit("ledger", current, ScheduleEdit{
			Modified: []InstallmentChange{{ID: "i1", Amount: dec("500"), RepaymentPeriodDays: 10}},
		}, reg)
		require.NoError(t, err)
		assert.True(t, reg.AddDate(0, 0, 10).Equal(plan.Installments[0].DueDate))
		assert.Equal(t, StatusPaid, plan.Installments[0].Status)
	})

	errTests := []struct {
		name    string
		paid    bool
		edit    ScheduleEdit
		wantErr error
	}{
		{"remove unknown", false, ScheduleEdit{Removed: []string{"nope"}}, ErrNotFound},
		{"modify unknown", false, ScheduleEdit{Modified: []InstallmentChange{{ID: "nope"}}}, ErrNotFound},
		{"remove paid", true, ScheduleEdit{Removed: []string{"i1"}}, ErrPaidIsImmutable},
		{"negative amount", false, ScheduleEdit{Modified: []InstallmentChange{{ID: "i2", Amount: dec("-5")}}}, ErrInvalidAmount},
		{"negative period", false, ScheduleEdit{Modified: []InstallmentChange{{ID: "i2", RepaymentPeriodDays: -1}}}, ErrInvalidAmount},
		{"negative new line", false, ScheduleEdit{Added: []TemplateLine{{Amount: dec("-1")}}}, ErrInvalidAmount},
		{"sub-cent amount", false, ScheduleEdit{Modified: []InstallmentChange{{ID: "i2", Amount: dec("499.999")}}}, ErrInvalidAmount},
		{"sub-cent new line", false, ScheduleEdit{Added: []TemplateLine{{Amount: dec("0.001"), RepaymentPeriodDays: 30}}}, ErrInvalidAmount},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			current := generated(reg)
			if tt.paid {
				current[0].Status = StatusPaid
				current[0].PayedAmount = dec("500")
			}
			_, err := PlanEdit("ledger", current, tt.edit, reg)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}
}
