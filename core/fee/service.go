package fee

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/safnadck/myapplication/core"
)

type (
	Repository interface {
		CreateFeePlan(ctx context.Context, plan FeePlan, exec ...core.DBExecutor) (FeePlan, error)
		GetFeePlanByBatch(ctx context.Context, batchID int64, exec ...core.DBExecutor) (FeePlan, error)
		UpdateFeePlan(ctx context.Context, plan FeePlan, exec ...core.DBExecutor) (FeePlan, error)
		// ReplaceTemplateLines deletes every line of the plan, then creates lines in the given order.
		ReplaceTemplateLines(ctx context.Context, planID string, lines []FeeTemplateLine, exec ...core.DBExecutor) ([]FeeTemplateLine, error)
		// QueryTemplateLines returns the plan's lines by position.
		QueryTemplateLines(ctx context.Context, planID string, exec ...core.DBExecutor) ([]FeeTemplateLine, error)

		// GetOrCreateLedger returns the membership's ledger, creating it from ledger when missing.
		GetOrCreateLedger(ctx context.Context, ledger StudentLedger, exec ...core.DBExecutor) (StudentLedger, error)
		GetLedgerByID(ctx context.Context, id string, exec ...core.DBExecutor) (StudentLedger, error)
		UpdateLedgerRemaining(ctx context.Context, ledgerID string, remaining decimal.Decimal, exec ...core.DBExecutor) error

		// QueryInstallments returns the ledger's installments by due date, then Seq.
		QueryInstallments(ctx context.Context, ledgerID string, exec ...core.DBExecutor) ([]Installment, error)
		GetInstallment(ctx context.Context, id string, exec ...core.DBExecutor) (Installment, error)
		CreateInstallments(ctx context.Context, insts []Installment, exec ...core.DBExecutor) ([]Installment, error)
		UpdateInstallments(ctx context.Context, insts []Installment, exec ...core.DBExecutor) error
		DeleteInstallments(ctx context.Context, ledgerID string, ids []string, exec ...core.DBExecutor) error
		// QueryDueInstallments returns installments of every ledger matching filter, by due date.
		QueryDueInstallments(ctx context.Context, filter DueFilter, exec ...core.DBExecutor) ([]DueRecord, error)
	}

	// DueRecord is an installment along with the membership its ledger belongs to.
	DueRecord struct {
		Installment  Installment
		MembershipID int64
	}

	// Directory answers read-only franchise, batch & student lookups. Missing rows are ErrNotFound.
	Directory interface {
		GetFranchise(ctx context.Context, id int64) (Franchise, error)
		GetBatch(ctx context.Context, franchiseID, batchID int64) (Batch, error)
		GetMembership(ctx context.Context, franchiseID, batchID, userID int64) (Membership, error)
		GetMembershipByID(ctx context.Context, id int64) (Membership, error)
	}

	// Enrollment is the course platform's enrollment service.
	Enrollment interface {
		IsEnrolled(ctx context.Context, userID int64, courseID string) (bool, error)
		Enroll(ctx context.Context, userID int64, courseID string) error
		Unenroll(ctx context.Context, userID int64, courseID string) error
		// EnrolledAt is when the user was first enrolled in the course: their registration date.
		EnrolledAt(ctx context.Context, userID int64, courseID string) (time.Time, error)
	}

	ServiceInterface interface {
		OpenFeePlan(ctx context.Context, franchiseID, batchID int64, np NewFeePlan) (PlanView, error)
		GetFeePlan(ctx context.Context, franchiseID, batchID int64) (PlanView, error)
		ConfigureTemplate(ctx context.Context, franchiseID, batchID int64, tc TemplateConfig) (PlanView, error)
		ViewSchedule(ctx context.Context, key LedgerKey) (Schedule, error)
		UpdatePayments(ctx context.Context, key LedgerKey, updates []PaymentUpdate) (Schedule, error)
		EditSchedule(ctx context.Context, key LedgerKey, edit ScheduleEdit) (EditResult, error)
		SetEnrollment(ctx context.Context, key LedgerKey, enrolled bool) (bool, error)
		Invoice(ctx context.Context, key LedgerKey, installmentID string) (Invoice, error)
		Reminders(ctx context.Context) (Reminders, error)
		RevokeAccess(ctx context.Context, installmentID string) error
		NotifyUpcoming(ctx context.Context) (int, error)
	}

	Service struct {
		tx         core.Transactor
		repo       Repository
		dir        Directory
		enrollment Enrollment
		events     core.EventPublisher
		mailer     core.EmailService
		logger     core.Logger
		conf       *core.Config
		now        func() time.Time
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	tx core.Transactor,
	repo Repository,
	dir Directory,
	enrollment Enrollment,
	events core.EventPublisher,
	mailer core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		tx:         tx,
		repo:       repo,
		dir:        dir,
		enrollment: enrollment,
		events:     events,
		mailer:     mailer,
		logger:     logger,
		conf:       conf,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the service's clock. Dates are derived from it in UTC.
func (svc *Service) SetClock(now func() time.Time) { svc.now = now }

func (svc *Service) today() time.Time { return core.Date(svc.now()) }

// ==========================================================================
// Fee plan & template

func (svc *Service) getBatch(ctx context.Context, franchiseID, batchID int64) (Batch, error) {
	if _, err := svc.dir.GetFranchise(ctx, franchiseID); err != nil {
		return Batch{}, errors.Wrapf(err, "getting franchise %d", franchiseID)
	}
	batch, err := svc.dir.GetBatch(ctx, franchiseID, batchID)
	if err != nil {
		return Batch{}, errors.Wrapf(err, "getting batch %d", batchID)
	}
	return batch, nil
}

func (svc *Service) planView(ctx context.Context, batch Batch, plan FeePlan, exec ...core.DBExecutor) (PlanView, error) {
	lines, err := svc.repo.QueryTemplateLines(ctx, plan.ID, exec...)
	if err != nil {
		return PlanView{}, errors.Wrap(err, "querying template lines")
	}
	return PlanView{Batch: batch, Plan: plan, Lines: lines}, nil
}

// OpenFeePlan creates the batch's fee plan. Opening an already open plan returns it unchanged.
func (svc *Service) OpenFeePlan(ctx context.Context, franchiseID, batchID int64, np NewFeePlan) (PlanView, error) {
	if err := checkPlanAmounts(np.TargetTotal, np.Discount); err != nil {
		return PlanView{}, err
	}
	batch, err := svc.getBatch(ctx, franchiseID, batchID)
	if err != nil {
		return PlanView{}, err
	}

	var view PlanView
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		plan, err := svc.getOrCreatePlan(ctx, batch.ID, &np, exec)
		if err != nil {
			return err
		}
		view, err = svc.planView(ctx, batch, plan, exec)
		return err
	})
	return view, err
}

func (svc *Service) getOrCreatePlan(ctx context.Context, batchID int64, np *NewFeePlan, exec core.DBExecutor) (FeePlan, error) {
	plan, err := svc.repo.GetFeePlanByBatch(ctx, batchID, exec)
	if err == nil {
		return plan, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return FeePlan{}, errors.Wrap(err, "getting fee plan")
	}

	now := svc.now()
	plan = FeePlan{BatchID: batchID, TargetTotal: decimal.Zero, Discount: decimal.Zero, CreatedAt: now, UpdatedAt: now}
	if np != nil {
		plan.TargetTotal = np.TargetTotal
		plan.Discount = np.Discount
	}
	plan, err = svc.repo.CreateFeePlan(ctx, plan, exec)
	if err != nil {
		return FeePlan{}, errors.Wrap(err, "creating fee plan")
	}
	return plan, nil
}

// checkPlanAmounts rejects totals that would leave a negative amount to pay.
func checkPlanAmounts(target, discount decimal.Decimal) error {
	if !validAmount(target) || !validAmount(discount) {
		return errors.WithStack(ErrInvalidAmount)
	}
	if discount.GreaterThan(target) {
		return errors.Wrap(ErrInvalidAmount, "discount exceeds the target total")
	}
	return nil
}

func (svc *Service) GetFeePlan(ctx context.Context, franchiseID, batchID int64) (PlanView, error) {
	batch, err := svc.getBatch(ctx, franchiseID, batchID)
	if err != nil {
		return PlanView{}, err
	}
	plan, err := svc.repo.GetFeePlanByBatch(ctx, batch.ID)
	if err != nil {
		return PlanView{}, errors.Wrap(err, "getting fee plan")
	}
	return svc.planView(ctx, batch, plan)
}

// ConfigureTemplate replaces the batch's template lines wholesale and saves the discount
// (and target total, when given). Ledgers already generated are left as they are.
func (svc *Service) ConfigureTemplate(ctx context.Context, franchiseID, batchID int64, tc TemplateConfig) (PlanView, error) {
	for i, l := range tc.Lines {
		if !validAmount(l.Amount) || l.RepaymentPeriodDays < 0 {
			return PlanView{}, errors.Wrapf(ErrInvalidAmount, "template line %d", i+1)
		}
	}
	batch, err := svc.getBatch(ctx, franchiseID, batchID)
	if err != nil {
		return PlanView{}, err
	}

	var view PlanView
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		plan, err := svc.getOrCreatePlan(ctx, batch.ID, nil, exec)
		if err != nil {
			return err
		}

		plan.Discount = tc.Discount
		if tc.TargetTotal != nil {
			plan.TargetTotal = *tc.TargetTotal
		}
		if err := checkPlanAmounts(plan.TargetTotal, plan.Discount); err != nil {
			return err
		}
		plan.UpdatedAt = svc.now()
		if plan, err = svc.repo.UpdateFeePlan(ctx, plan, exec); err != nil {
			return errors.Wrap(err, "updating fee plan")
		}

		lines := make([]FeeTemplateLine, 0, len(tc.Lines))
		for i, l := range tc.Lines {
			lines = append(lines, FeeTemplateLine{
				FeePlanID:           plan.ID,
				Position:            i + 1,
				Amount:              l.Amount,
				RepaymentPeriodDays: l.RepaymentPeriodDays,
			})
		}
		if lines, err = svc.repo.ReplaceTemplateLines(ctx, plan.ID, lines, exec); err != nil {
			return errors.Wrap(err, "replacing template lines")
		}
		view = PlanView{Batch: batch, Plan: plan, Lines: lines}
		return nil
	})
	return view, err
}

// ==========================================================================
// Student schedule

// ledgerContext is everything a schedule operation works on.
type ledgerContext struct {
	membership   Membership
	plan         FeePlan
	ledger       StudentLedger
	registration time.Time
	insts        []Installment // by due date
}

func (svc *Service) resolve(ctx context.Context, key LedgerKey) (ledgerContext, error) {
	var lc ledgerContext
	if _, err := svc.dir.GetFranchise(ctx, key.FranchiseID); err != nil {
		return lc, errors.Wrapf(err, "getting franchise %d", key.FranchiseID)
	}
	m, err := svc.dir.GetMembership(ctx, key.FranchiseID, key.BatchID, key.UserID)
	if err != nil {
		return lc, errors.Wrapf(err, "getting student %d of batch %d", key.UserID, key.BatchID)
	}
	plan, err := svc.repo.GetFeePlanByBatch(ctx, m.Batch.ID)
	if err != nil {
		return lc, errors.Wrap(err, "getting fee plan")
	}
	reg, err := svc.enrollment.EnrolledAt(ctx, m.Student.ID, m.Batch.CourseID)
	if err != nil {
		return lc, errors.Wrap(err, "getting registration date")
	}

	lc.membership = m
	lc.plan = plan
	lc.registration = core.Date(reg)
	return lc, nil
}

// ensureSchedule gets or creates the student's ledger and, when it has no installments yet,
// generates them from the batch template. It must run within exec's transaction.
func (svc *Service) ensureSchedule(ctx context.Context, lc *ledgerContext, exec core.DBExecutor) error {
	ledger, err := svc.repo.GetOrCreateLedger(ctx, StudentLedger{
		FeePlanID:       lc.plan.ID,
		MembershipID:    lc.membership.ID,
		RemainingAmount: lc.plan.RemainingAmount(),
		CreatedAt:       svc.now(),
	}, exec)
	if err != nil {
		return errors.Wrap(err, "getting ledger")
	}
	lc.ledger = ledger

	insts, err := svc.repo.QueryInstallments(ctx, ledger.ID, exec)
	if err != nil {
		return errors.Wrap(err, "querying installments")
	}
	if len(insts) == 0 {
		lines, err := svc.repo.QueryTemplateLines(ctx, lc.plan.ID, exec)
		if err != nil {
			return errors.Wrap(err, "querying template lines")
		}
		if len(lines) > 0 {
			if insts, err = svc.repo.CreateInstallments(ctx, GenerateSchedule(ledger.ID, lc.registration, lines), exec); err != nil {
				return errors.Wrap(err, "generating installments")
			}
		}
	}
	SortByDueDate(insts)
	lc.insts = insts
	return nil
}

func (svc *Service) schedule(ctx context.Context, lc ledgerContext) (Schedule, error) {
	enrolled, err := svc.enrollment.IsEnrolled(ctx, lc.membership.Student.ID, lc.membership.Batch.CourseID)
	if err != nil {
		return Schedule{}, errors.Wrap(err, "checking enrollment")
	}
	return Schedule{
		Membership:       lc.membership,
		Plan:             lc.plan,
		Ledger:           lc.ledger,
		RegistrationDate: lc.registration,
		Installments:     lc.insts,
		Totals:           ComputeTotals(lc.insts),
		AmountToAdd:      AmountToAdd(lc.plan, lc.insts),
		IsEnrolled:       enrolled,
	}, nil
}

// ViewSchedule returns the student's installments & totals, generating the schedule first if needed.
func (svc *Service) ViewSchedule(ctx context.Context, key LedgerKey) (Schedule, error) {
	lc, err := svc.resolve(ctx, key)
	if err != nil {
		return Schedule{}, err
	}
	if err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		return svc.ensureSchedule(ctx, &lc, exec)
	}); err != nil {
		return Schedule{}, err
	}
	return svc.schedule(ctx, lc)
}

// UpdatePayments validates every update before applying any, then reconciles the ledger's
// remaining amount. Either every change is kept or none is.
func (svc *Service) UpdatePayments(ctx context.Context, key LedgerKey, updates []PaymentUpdate) (Schedule, error) {
	lc, err := svc.resolve(ctx, key)
	if err != nil {
		return Schedule{}, err
	}

	var paid []string
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.ensureSchedule(ctx, &lc, exec); err != nil {
			return err
		}

		changes, err := ValidatePayments(lc.insts, updates)
		if err != nil {
			return err
		}

		wasPaid := make(map[string]bool, len(lc.insts))
		for _, inst := range lc.insts {
			wasPaid[inst.ID] = inst.IsPaid()
		}
		changed := ApplyPayments(lc.insts, changes, svc.today())
		for _, inst := range changed {
			if inst.IsPaid() && !wasPaid[inst.ID] {
				paid = append(paid, inst.ID)
			}
		}
		if len(changed) > 0 {
			if err := svc.repo.UpdateInstallments(ctx, changed, exec); err != nil {
				return &AtomicityError{Op: "recording payments", Err: err}
			}
		}

		lc.ledger.RemainingAmount = Reconcile(lc.plan, lc.insts)
		if err := svc.repo.UpdateLedgerRemaining(ctx, lc.ledger.ID, lc.ledger.RemainingAmount, exec); err != nil {
			return &AtomicityError{Op: "recording payments", Err: err}
		}
		return nil
	})
	if err != nil {
		return Schedule{}, err
	}

	evt := newEvent(EventPaymentsRecorded, lc.ledger.ID, svc.now())
	evt.PaidInstallments = paid
	evt.RemainingAmount = &lc.ledger.RemainingAmount
	svc.publish(ctx, evt)

	return svc.schedule(ctx, lc)
}

// EditSchedule removes, adds & resizes installments then recomputes every due date from the
// registration date. The difference between the plan and the new schedule total is reported in
// EditResult.AmountToAdd; the ledger's remaining amount is left as it is.
func (svc *Service) EditSchedule(ctx context.Context, key LedgerKey, edit ScheduleEdit) (EditResult, error) {
	lc, err := svc.resolve(ctx, key)
	if err != nil {
		return EditResult{}, err
	}

	var result EditResult
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.ensureSchedule(ctx, &lc, exec); err != nil {
			return err
		}

		plan, err := PlanEdit(lc.ledger.ID, lc.insts, edit, lc.registration)
		if err != nil {
			return err
		}

		fail := func(err error) error { return &AtomicityError{Op: "editing schedule", Err: err} }
		if len(plan.Removed) > 0 {
			if err := svc.repo.DeleteInstallments(ctx, lc.ledger.ID, plan.Removed, exec); err != nil {
				return fail(err)
			}
		}
		if len(plan.Created) > 0 {
			if _, err := svc.repo.CreateInstallments(ctx, plan.Created, exec); err != nil {
				return fail(err)
			}
		}
		if len(plan.Updated) > 0 {
			if err := svc.repo.UpdateInstallments(ctx, plan.Updated, exec); err != nil {
				return fail(err)
			}
		}

		insts, err := svc.repo.QueryInstallments(ctx, lc.ledger.ID, exec)
		if err != nil {
			return fail(err)
		}
		result = EditResult{Installments: insts, AmountToAdd: AmountToAdd(lc.plan, insts)}
		return nil
	})
	if err != nil {
		return EditResult{}, err
	}

	evt := newEvent(EventScheduleEdited, lc.ledger.ID, svc.now())
	evt.AmountToAdd = &result.AmountToAdd
	svc.publish(ctx, evt)

	return result, nil
}

// SetEnrollment enrolls or unenrolls the student in the batch course and returns the resulting state.
func (svc *Service) SetEnrollment(ctx context.Context, key LedgerKey, enrolled bool) (bool, error) {
	if _, err := svc.dir.GetFranchise(ctx, key.FranchiseID); err != nil {
		return false, errors.Wrapf(err, "getting franchise %d", key.FranchiseID)
	}
	m, err := svc.dir.GetMembership(ctx, key.FranchiseID, key.BatchID, key.UserID)
	if err != nil {
		return false, errors.Wrapf(err, "getting student %d of batch %d", key.UserID, key.BatchID)
	}
	if err = svc.setEnrollment(ctx, m, enrolled); err != nil {
		return false, err
	}
	return enrolled, nil
}

func (svc *Service) setEnrollment(ctx context.Context, m Membership, enrolled bool) error {
	userID, courseID := m.Student.ID, m.Batch.CourseID
	current, err := svc.enrollment.IsEnrolled(ctx, userID, courseID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	switch {
	case enrolled && !current:
		err = svc.enrollment.Enroll(ctx, userID, courseID)
	case !enrolled && current:
		err = svc.enrollment.Unenroll(ctx, userID, courseID)
	}
	return errors.Wrapf(err, "setting enrollment of user %d in %q", userID, courseID)
}

// Invoice returns the invoice data of a paid installment of the student.
func (svc *Service) Invoice(ctx context.Context, key LedgerKey, installmentID string) (Invoice, error) {
	lc, err := svc.resolve(ctx, key)
	if err != nil {
		return Invoice{}, err
	}
	if err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		return svc.ensureSchedule(ctx, &lc, exec)
	}); err != nil {
		return Invoice{}, err
	}

	for _, inst := range lc.insts {
		if inst.ID != installmentID {
			continue
		}
		if !inst.IsPaid() {
			break
		}
		return Invoice{
			Membership:         lc.membership,
			Plan:               lc.plan,
			Installment:        inst,
			TotalPaid:          ComputeTotals(lc.insts).TotalPaid,
			InstallmentBalance: inst.Balance(),
		}, nil
	}
	return Invoice{}, errors.Wrapf(ErrNotFound, "paid installment %q", installmentID)
}

func (svc *Service) publish(ctx context.Context, evt Event) {
	if err := svc.events.Publish(ctx, evt.LedgerID, evt); err != nil {
		svc.logger.Error(fmt.Sprintf("publishing %s event of ledger %s: %v", evt.Type, evt.LedgerID, err), err)
	}
}
