package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/safnadck/myapplication/core"
	"github.com/safnadck/myapplication/core/fee"
)

type (
	feePlanRow struct {
		ID          string          `db:"id"`
		BatchID     int64           `db:"batch_id"`
		TargetTotal decimal.Decimal `db:"target_total"`
		Discount    decimal.Decimal `db:"discount"`
		CreatedAt   time.Time       `db:"created_at"`
		UpdatedAt   time.Time       `db:"updated_at"`
	}

	templateLineRow struct {
		ID                  string          `db:"id"`
		FeePlanID           string          `db:"fee_plan_id"`
		Position            int             `db:"position"`
		Amount              decimal.Decimal `db:"amount"`
		RepaymentPeriodDays int             `db:"repayment_period_days"`
	}

	ledgerRow struct {
		ID              string          `db:"id"`
		FeePlanID       string          `db:"fee_plan_id"`
		MembershipID    int64           `db:"user_franchise_id"`
		RemainingAmount decimal.Decimal `db:"remaining_amount"`
		CreatedAt       time.Time       `db:"created_at"`
	}

	installmentRow struct {
		ID                  string          `db:"id"`
		LedgerID            string          `db:"student_ledger_id"`
		Seq                 int             `db:"seq"`
		DueDate             time.Time       `db:"due_date"`
		Amount              decimal.Decimal `db:"amount"`
		RepaymentPeriodDays int             `db:"repayment_period_days"`
		Status              string          `db:"status"`
		PayedAmount         decimal.Decimal `db:"payed_amount"`
		PaymentDate         null.Time       `db:"payment_date"`
	}

	dueInstallmentRow struct {
		installmentRow
		MembershipID int64 `db:"user_franchise_id"`
	}
)

const installmentColumns = `i.id, i.student_ledger_id, i.seq, i.due_date, i.amount, i.repayment_period_days,
	i.status, i.payed_amount, i.payment_date`

func (r feePlanRow) unboil() fee.FeePlan {
	return fee.FeePlan{
		ID:          r.ID,
		BatchID:     r.BatchID,
		TargetTotal: r.TargetTotal,
		Discount:    r.Discount,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r ledgerRow) unboil() fee.StudentLedger {
	return fee.StudentLedger{
		ID:              r.ID,
		FeePlanID:       r.FeePlanID,
		MembershipID:    r.MembershipID,
		RemainingAmount: r.RemainingAmount,
		CreatedAt:       r.CreatedAt,
	}
}

func boilInstallment(inst fee.Installment) installmentRow {
	return installmentRow{
		ID:                  inst.ID,
		LedgerID:            inst.LedgerID,
		Seq:                 inst.Seq,
		DueDate:             core.Date(inst.DueDate),
		Amount:              inst.Amount,
		RepaymentPeriodDays: inst.RepaymentPeriodDays,
		Status:              string(inst.Status),
		PayedAmount:         inst.PayedAmount,
		PaymentDate:         null.TimeFromPtr(inst.PaymentDate),
	}
}

func (r installmentRow) unboil() fee.Installment {
	inst := fee.Installment{
		ID:                  r.ID,
		LedgerID:            r.LedgerID,
		Seq:                 r.Seq,
		DueDate:             core.Date(r.DueDate),
		Amount:              r.Amount,
		RepaymentPeriodDays: r.RepaymentPeriodDays,
		Status:              fee.Status(r.Status),
		PayedAmount:         r.PayedAmount,
	}
	if r.PaymentDate.Valid {
		d := core.Date(r.PaymentDate.Time)
		inst.PaymentDate = &d
	}
	return inst
}

func unboilInstallments(rows []installmentRow) []fee.Installment {
	insts := make([]fee.Installment, 0, len(rows))
	for _, r := range rows {
		insts = append(insts, r.unboil())
	}
	return insts
}

type feeRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) *feeRepository {
	return &feeRepository{db: db}
}

func (repo feeRepository) CreateFeePlan(ctx context.Context, plan fee.FeePlan, exec ...core.DBExecutor) (fee.FeePlan, error) {
	row := feePlanRow{
		ID:          uuid.New().String(),
		BatchID:     plan.BatchID,
		TargetTotal: plan.TargetTotal,
		Discount:    plan.Discount,
		CreatedAt:   plan.CreatedAt.UTC(),
		UpdatedAt:   plan.UpdatedAt.UTC(),
	}
	q := `INSERT INTO fee_plan (id, batch_id, target_total, discount, created_at, updated_at)
		VALUES (:id, :batch_id, :target_total, :discount, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, getExec(repo.db, exec), q, row); err != nil {
		return fee.FeePlan{}, errors.Wrap(err, "inserting fee plan")
	}
	return row.unboil(), nil
}

func (repo feeRepository) GetFeePlanByBatch(ctx context.Context, batchID int64, exec ...core.DBExecutor) (fee.FeePlan, error) {
	var row feePlanRow
	q := `SELECT id, batch_id, target_total, discount, created_at, updated_at FROM fee_plan WHERE batch_id = $1`
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, q, batchID); err != nil {
		return fee.FeePlan{}, trapNoRowsErr(err, "selecting fee plan")
	}
	return row.unboil(), nil
}

func (repo feeRepository) UpdateFeePlan(ctx context.Context, plan fee.FeePlan, exec ...core.DBExecutor) (fee.FeePlan, error) {
	q := `UPDATE fee_plan SET target_total = $2, discount = $3, updated_at = $4 WHERE id = $1`
	res, err := getExec(repo.db, exec).ExecContext(ctx, q, plan.ID, plan.TargetTotal, plan.Discount, plan.UpdatedAt.UTC())
	if err != nil {
		return fee.FeePlan{}, errors.Wrap(err, "updating fee plan")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fee.FeePlan{}, errors.Wrap(fee.ErrNotFound, "updating fee plan")
	}
	return plan, nil
}

func (repo feeRepository) ReplaceTemplateLines(ctx context.Context, planID string, lines []fee.FeeTemplateLine, exec ...core.DBExecutor) ([]fee.FeeTemplateLine, error) {
	ext := getExec(repo.db, exec)
	if _, err := ext.ExecContext(ctx, `DELETE FROM fee_template_line WHERE fee_plan_id = $1`, planID); err != nil {
		return nil, errors.Wrap(err, "deleting template lines")
	}

	q := `INSERT INTO fee_template_line (id, fee_plan_id, position, amount, repayment_period_days)
		VALUES (:id, :fee_plan_id, :position, :amount, :repayment_period_days)`
	created := make([]fee.FeeTemplateLine, 0, len(lines))
	for _, l := range lines {
		l.ID = uuid.New().String()
		l.FeePlanID = planID
		row := templateLineRow(l)
		if _, err := sqlx.NamedExecContext(ctx, ext, q, row); err != nil {
			return nil, errors.Wrap(err, "inserting template line")
		}
		created = append(created, l)
	}
	return created, nil
}

func (repo feeRepository) QueryTemplateLines(ctx context.Context, planID string, exec ...core.DBExecutor) ([]fee.FeeTemplateLine, error) {
	var rows []templateLineRow
	q := `SELECT id, fee_plan_id, position, amount, repayment_period_days
		FROM fee_template_line WHERE fee_plan_id = $1 ORDER BY position`
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, q, planID); err != nil {
		return nil, errors.Wrap(err, "selecting template lines")
	}
	lines := make([]fee.FeeTemplateLine, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fee.FeeTemplateLine(r))
	}
	return lines, nil
}

func (repo feeRepository) GetOrCreateLedger(ctx context.Context, ledger fee.StudentLedger, exec ...core.DBExecutor) (fee.StudentLedger, error) {
	ext := getExec(repo.db, exec)
	q := `INSERT INTO student_ledger (id, fee_plan_id, user_franchise_id, remaining_amount, created_at)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (user_franchise_id) DO NOTHING`
	_, err := ext.ExecContext(ctx, q,
		uuid.New().String(), ledger.FeePlanID, ledger.MembershipID, ledger.RemainingAmount, ledger.CreatedAt.UTC())
	if err != nil {
		return fee.StudentLedger{}, errors.Wrap(err, "inserting ledger")
	}

	var row ledgerRow
	q = `SELECT id, fee_plan_id, user_franchise_id, remaining_amount, created_at
		FROM student_ledger WHERE user_franchise_id = $1`
	if err = sqlx.GetContext(ctx, ext, &row, q, ledger.MembershipID); err != nil {
		return fee.StudentLedger{}, trapNoRowsErr(err, "selecting ledger")
	}
	return row.unboil(), nil
}

func (repo feeRepository) GetLedgerByID(ctx context.Context, id string, exec ...core.DBExecutor) (fee.StudentLedger, error) {
	var row ledgerRow
	q := `SELECT id, fee_plan_id, user_franchise_id, remaining_amount, created_at FROM student_ledger WHERE id = $1`
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, q, id); err != nil {
		return fee.StudentLedger{}, trapNoRowsErr(err, "selecting ledger")
	}
	return row.unboil(), nil
}

func (repo feeRepository) UpdateLedgerRemaining(ctx context.Context, ledgerID string, remaining decimal.Decimal, exec ...core.DBExecutor) error {
	q := `UPDATE student_ledger SET remaining_amount = $2 WHERE id = $1`
	res, err := getExec(repo.db, exec).ExecContext(ctx, q, ledgerID, remaining)
	if err != nil {
		return errors.Wrap(err, "updating ledger")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.Wrap(fee.ErrNotFound, "updating ledger")
	}
	return nil
}

func (repo feeRepository) QueryInstallments(ctx context.Context, ledgerID string, exec ...core.DBExecutor) ([]fee.Installment, error) {
	var rows []installmentRow
	q := `SELECT ` + installmentColumns + ` FROM installment i
		WHERE i.student_ledger_id = $1 ORDER BY i.due_date, i.seq`
	if err := sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, q, ledgerID); err != nil {
		return nil, errors.Wrap(err, "selecting installments")
	}
	return unboilInstallments(rows), nil
}

func (repo feeRepository) GetInstallment(ctx context.Context, id string, exec ...core.DBExecutor) (fee.Installment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return fee.Installment{}, errors.Wrapf(fee.ErrNotFound, "installment %q", id)
	}
	var row installmentRow
	q := `SELECT ` + installmentColumns + ` FROM installment i WHERE i.id = $1`
	if err := sqlx.GetContext(ctx, getExec(repo.db, exec), &row, q, id); err != nil {
		return fee.Installment{}, trapNoRowsErr(err, "selecting installment")
	}
	return row.unboil(), nil
}

func (repo feeRepository) CreateInstallments(ctx context.Context, insts []fee.Installment, exec ...core.DBExecutor) ([]fee.Installment, error) {
	ext := getExec(repo.db, exec)
	q := `INSERT INTO installment (id, student_ledger_id, seq, due_date, amount, repayment_period_days,
			status, payed_amount, payment_date)
		VALUES (:id, :student_ledger_id, :seq, :due_date, :amount, :repayment_period_days,
			:status, :payed_amount, :payment_date)`
	created := make([]fee.Installment, 0, len(insts))
	for _, inst := range insts {
		inst.ID = uuid.New().String()
		if _, err := sqlx.NamedExecContext(ctx, ext, q, boilInstallment(inst)); err != nil {
			return nil, errors.Wrap(err, "inserting installment")
		}
		created = append(created, inst)
	}
	return created, nil
}

func (repo feeRepository) UpdateInstallments(ctx context.Context, insts []fee.Installment, exec ...core.DBExecutor) error {
	ext := getExec(repo.db, exec)
	q := `UPDATE installment SET due_date = :due_date, amount = :amount,
			repayment_period_days = :repayment_period_days, status = :status,
			payed_amount = :payed_amount, payment_date = :payment_date
		WHERE id = :id`
	for _, inst := range insts {
		res, err := sqlx.NamedExecContext(ctx, ext, q, boilInstallment(inst))
		if err != nil {
			return errors.Wrap(err, "updating installment")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.Wrapf(fee.ErrNotFound, "updating installment %q", inst.ID)
		}
	}
	return nil
}

func (repo feeRepository) DeleteInstallments(ctx context.Context, ledgerID string, ids []string, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM installment WHERE student_ledger_id = ? AND id IN (?)`, ledgerID, ids)
	if err != nil {
		return errors.Wrap(err, "building delete query")
	}
	if _, err = getExec(repo.db, exec).ExecContext(ctx, sqlx.Rebind(sqlx.DOLLAR, q), args...); err != nil {
		return errors.Wrap(err, "deleting installments")
	}
	return nil
}

func (repo feeRepository) QueryDueInstallments(ctx context.Context, filter fee.DueFilter, exec ...core.DBExecutor) ([]fee.DueRecord, error) {
	var (
		where []string
		args  []interface{}
	)
	if !filter.DueFrom.IsZero() {
		where = append(where, "i.due_date >= ?")
		args = append(args, core.Date(filter.DueFrom))
	}
	if !filter.DueBefore.IsZero() {
		where = append(where, "i.due_date < ?")
		args = append(args, core.Date(filter.DueBefore))
	}
	if len(filter.Statuses) > 0 {
		where = append(where, "i.status IN (?)")
		args = append(args, statusStrings(filter.Statuses))
	}
	if len(filter.ExcludeStatuses) > 0 {
		where = append(where, "i.status NOT IN (?)")
		args = append(args, statusStrings(filter.ExcludeStatuses))
	}

	q := `SELECT ` + installmentColumns + `, l.user_franchise_id
		FROM installment i JOIN student_ledger l ON l.id = i.student_ledger_id`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY i.due_date, i.seq"

	q, args, err := sqlx.In(q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "building due installments query")
	}
	var rows []dueInstallmentRow
	if err = sqlx.SelectContext(ctx, getExec(repo.db, exec), &rows, sqlx.Rebind(sqlx.DOLLAR, q), args...); err != nil {
		return nil, errors.Wrap(err, "selecting due installments")
	}

	records := make([]fee.DueRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, fee.DueRecord{Installment: r.unboil(), MembershipID: r.MembershipID})
	}
	return records, nil
}

func statusStrings(statuses []fee.Status) []string {
	s := make([]string, 0, len(statuses))
	for _, st := range statuses {
		s = append(s, string(st))
	}
	return s
}
