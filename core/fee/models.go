package fee

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Status is the payment state of an Installment.
// pending <-> overdue, pending|overdue -> paid; paid is terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

var Statuses = []Status{StatusPending, StatusPaid, StatusOverdue}

// ParseStatus returns the Status named by s, if any.
func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// FeePlan is a batch's fee configuration: what every student of the batch owes.
type FeePlan struct {
	ID          string          `json:"id"`
	BatchID     int64           `json:"batch_id"`
	TargetTotal decimal.Decimal `json:"target_total"`
	Discount    decimal.Decimal `json:"discount"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RemainingAmount is the amount a student of the batch has to pay once the discount is applied.
func (p FeePlan) RemainingAmount() decimal.Decimal {
	return p.TargetTotal.Sub(p.Discount)
}

func (p FeePlan) MarshalJSON() ([]byte, error) {
	type plan FeePlan
	return json.Marshal(struct {
		plan
		RemainingAmount decimal.Decimal `json:"remaining_amount"`
	}{plan(p), p.RemainingAmount()})
}

// FeeTemplateLine is one step of a batch's fee template. Lines are applied in Position order.
type FeeTemplateLine struct {
	ID                  string          `json:"id"`
	FeePlanID           string          `json:"fee_plan_id"`
	Position            int             `json:"position"`
	Amount              decimal.Decimal `json:"amount"`
	RepaymentPeriodDays int             `json:"repayment_period_days"`
}

// StudentLedger holds a student's installments for one batch membership.
type StudentLedger struct {
	ID              string          `json:"id"`
	FeePlanID       string          `json:"fee_plan_id"`
	MembershipID    int64           `json:"membership_id"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Installment is one scheduled payment obligation of a StudentLedger.
// Seq is the creation order within the ledger.
type Installment struct {
	ID                  string          `json:"id"`
	LedgerID            string          `json:"ledger_id"`
	Seq                 int             `json:"seq"`
	DueDate             time.Time       `json:"due_date"`
	Amount              decimal.Decimal `json:"amount"`
	RepaymentPeriodDays int             `json:"repayment_period_days"`
	Status              Status          `json:"status"`
	PayedAmount         decimal.Decimal `json:"payed_amount"`
	PaymentDate         *time.Time      `json:"payment_date"`
}

func (inst Installment) IsPaid() bool { return inst.Status == StatusPaid }

// Balance is what is still owed on this installment alone.
func (inst Installment) Balance() decimal.Decimal {
	return inst.Amount.Sub(inst.PayedAmount)
}

// amountPlaces is the scale money is stored with.
const amountPlaces = 2

// validAmount reports whether d is a non-negative amount with at most amountPlaces decimals.
func validAmount(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Equal(d.Round(amountPlaces))
}

// Directory data; owned by the course platform.
type (
	Franchise struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}

	Batch struct {
		ID          int64  `json:"id"`
		FranchiseID int64  `json:"franchise_id"`
		Name        string `json:"name"`
		CourseID    string `json:"course_id"`
	}

	Student struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		Phone    string `json:"phone"`
	}

	// Membership links a Student to the franchise Batch they registered through.
	Membership struct {
		ID          int64   `json:"id"`
		FranchiseID int64   `json:"franchise_id"`
		Batch       Batch   `json:"batch"`
		Student     Student `json:"student"`
	}
)

// LedgerKey addresses a student's ledger the way an administrator navigates to it.
type LedgerKey struct {
	FranchiseID int64
	BatchID     int64
	UserID      int64
}

// Amount is a money amount as typed by an administrator: a JSON number or string, parsed later.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(data)
	return nil
}

// PaymentUpdate is the requested status & payed amount of one installment.
type PaymentUpdate struct {
	InstallmentID string `json:"installment_id" validate:"required"`
	Status        string `json:"status"`
	PayedAmount   Amount `json:"payed_amount"`
}

type PaymentUpdates struct {
	Updates []PaymentUpdate `json:"updates" validate:"required,dive"`
}

func (pu *PaymentUpdates) Validate(validate *validator.Validate) error {
	return validate.Struct(pu)
}

// TemplateLine is a fee template line as configured by an administrator.
type TemplateLine struct {
	Amount              decimal.Decimal `json:"amount" validate:"gte=0"`
	RepaymentPeriodDays int             `json:"repayment_period_days" validate:"gte=0"`
}

// TemplateConfig replaces a batch's template. TargetTotal is left untouched when nil.
type TemplateConfig struct {
	TargetTotal *decimal.Decimal `json:"target_total" validate:"omitempty,gte=0"`
	Discount    decimal.Decimal  `json:"discount" validate:"gte=0"`
	Lines       []TemplateLine   `json:"lines" validate:"dive"`
}

func (tc *TemplateConfig) Validate(validate *validator.Validate) error {
	return validate.Struct(tc)
}

type NewFeePlan struct {
	TargetTotal decimal.Decimal `json:"target_total" validate:"gte=0"`
	Discount    decimal.Decimal `json:"discount" validate:"gte=0"`
}

func (np *NewFeePlan) Validate(validate *validator.Validate) error {
	return validate.Struct(np)
}

// ScheduleEdit lists the installment changes an administrator submits at once.
type ScheduleEdit struct {
	Added    []TemplateLine      `json:"added" validate:"dive"`
	Modified []InstallmentChange `json:"modified" validate:"dive"`
	Removed  []string            `json:"removed"`
}

type InstallmentChange struct {
	ID                  string          `json:"id" validate:"required"`
	Amount              decimal.Decimal `json:"amount" validate:"gte=0"`
	RepaymentPeriodDays int             `json:"repayment_period_days" validate:"gte=0"`
}

func (se *ScheduleEdit) Validate(validate *validator.Validate) error {
	return validate.Struct(se)
}

type (
	Totals struct {
		TotalAmount  decimal.Decimal `json:"total_amount"`
		TotalPaid    decimal.Decimal `json:"total_paid"`
		TotalPending decimal.Decimal `json:"total_pending"`
	}

	// Schedule is a student's fee page: their ledger, installments & balances.
	Schedule struct {
		Membership       Membership      `json:"membership"`
		Plan             FeePlan         `json:"fee_plan"`
		Ledger           StudentLedger   `json:"ledger"`
		RegistrationDate time.Time       `json:"registration_date"`
		Installments     []Installment   `json:"installments"`
		Totals           Totals          `json:"totals"`
		AmountToAdd      decimal.Decimal `json:"amount_to_add"`
		IsEnrolled       bool            `json:"is_enrolled"`
	}

	// PlanView is a batch's fee plan along with its template.
	PlanView struct {
		Batch Batch             `json:"batch"`
		Plan  FeePlan           `json:"fee_plan"`
		Lines []FeeTemplateLine `json:"lines"`
	}

	// EditResult is the schedule after an edit and the drift left for the administrator to fix.
	EditResult struct {
		Installments []Installment   `json:"installments"`
		AmountToAdd  decimal.Decimal `json:"amount_to_add"`
	}

	Invoice struct {
		Membership         Membership      `json:"membership"`
		Plan               FeePlan         `json:"fee_plan"`
		Installment        Installment     `json:"installment"`
		TotalPaid          decimal.Decimal `json:"total_paid"`
		InstallmentBalance decimal.Decimal `json:"installment_balance"`
	}

	// DueInstallment is an installment along with whom it is owed by.
	DueInstallment struct {
		Installment Installment `json:"installment"`
		Membership  Membership  `json:"membership"`
		IsEnrolled  bool        `json:"is_enrolled"`
	}

	Reminders struct {
		Upcoming []DueInstallment `json:"upcoming"`
		Overdue  []DueInstallment `json:"overdue"`
	}

	// DueFilter selects installments across ledgers by due date & status.
	DueFilter struct {
		DueFrom         time.Time // inclusive; zero means no lower bound
		DueBefore       time.Time // exclusive; zero means no upper bound
		Statuses        []Status
		ExcludeStatuses []Status
	}
)
