package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/safnadck/myapplication/core"
	"github.com/safnadck/myapplication/core/fee"
)

type feeRepository struct {
	db *DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db}
}

func (repo *feeRepository) CreateFeePlan(_ context.Context, plan fee.FeePlan, _ ...core.DBExecutor) (fee.FeePlan, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, p := range repo.db.fee.plans {
		if p.BatchID == plan.BatchID {
			return fee.FeePlan{}, errors.Errorf("fee plan of batch %d already exists", plan.BatchID)
		}
	}
	plan.ID = uuid.New().String()
	repo.db.fee.plans[plan.ID] = plan
	return plan, nil
}

func (repo *feeRepository) GetFeePlanByBatch(_ context.Context, batchID int64, _ ...core.DBExecutor) (fee.FeePlan, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, p := range repo.db.fee.plans {
		if p.BatchID == batchID {
			return p, nil
		}
	}
	return fee.FeePlan{}, fee.ErrNotFound
}

func (repo *feeRepository) UpdateFeePlan(_ context.Context, plan fee.FeePlan, _ ...core.DBExecutor) (fee.FeePlan, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.fee.plans[plan.ID]; !ok {
		return fee.FeePlan{}, fee.ErrNotFound
	}
	repo.db.fee.plans[plan.ID] = plan
	return plan, nil
}

func (repo *feeRepository) ReplaceTemplateLines(_ context.Context, planID string, lines []fee.FeeTemplateLine, _ ...core.DBExecutor) ([]fee.FeeTemplateLine, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for id, l := range repo.db.fee.lines {
		if l.FeePlanID == planID {
			delete(repo.db.fee.lines, id)
		}
	}
	created := make([]fee.FeeTemplateLine, 0, len(lines))
	for _, l := range lines {
		l.ID = uuid.New().String()
		l.FeePlanID = planID
		repo.db.fee.lines[l.ID] = l
		created = append(created, l)
	}
	return created, nil
}

func (repo *feeRepository) QueryTemplateLines(_ context.Context, planID string, _ ...core.DBExecutor) ([]fee.FeeTemplateLine, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	lines := make([]fee.FeeTemplateLine, 0)
	for _, l := range repo.db.fee.lines {
		if l.FeePlanID == planID {
			lines = append(lines, l)
		}
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Position < lines[j].Position })
	return lines, nil
}

func (repo *feeRepository) GetOrCreateLedger(_ context.Context, ledger fee.StudentLedger, _ ...core.DBExecutor) (fee.StudentLedger, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, l := range repo.db.fee.ledgers {
		if l.MembershipID == ledger.MembershipID {
			return l, nil
		}
	}
	ledger.ID = uuid.New().String()
	repo.db.fee.ledgers[ledger.ID] = ledger
	return ledger, nil
}

func (repo *feeRepository) GetLedgerByID(_ context.Context, id string, _ ...core.DBExecutor) (fee.StudentLedger, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if l, ok := repo.db.fee.ledgers[id]; ok {
		return l, nil
	}
	return fee.StudentLedger{}, fee.ErrNotFound
}

func (repo *feeRepository) UpdateLedgerRemaining(_ context.Context, ledgerID string, remaining decimal.Decimal, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	l, ok := repo.db.fee.ledgers[ledgerID]
	if !ok {
		return fee.ErrNotFound
	}
	l.RemainingAmount = remaining
	repo.db.fee.ledgers[ledgerID] = l
	return nil
}

func (repo *feeRepository) QueryInstallments(_ context.Context, ledgerID string, _ ...core.DBExecutor) ([]fee.Installment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	insts := make([]fee.Installment, 0)
	for _, inst := range repo.db.fee.installments {
		if inst.LedgerID == ledgerID {
			insts = append(insts, inst)
		}
	}
	fee.SortByDueDate(insts)
	return insts, nil
}

func (repo *feeRepository) GetInstallment(_ context.Context, id string, _ ...core.DBExecutor) (fee.Installment, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if inst, ok := repo.db.fee.installments[id]; ok {
		return inst, nil
	}
	return fee.Installment{}, fee.ErrNotFound
}

func (repo *feeRepository) CreateInstallments(_ context.Context, insts []fee.Installment, _ ...core.DBExecutor) ([]fee.Installment, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	created := make([]fee.Installment, 0, len(insts))
	for _, inst := range insts {
		if _, ok := repo.db.fee.ledgers[inst.LedgerID]; !ok {
			return nil, errors.Wrapf(fee.ErrNotFound, "ledger %q", inst.LedgerID)
		}
		if inst.IsPaid() && !inst.PayedAmount.IsPositive() {
			return nil, errors.New("paid installment without payed amount")
		}
		inst.ID = uuid.New().String()
		repo.db.fee.installments[inst.ID] = inst
		created = append(created, inst)
	}
	return created, nil
}

func (repo *feeRepository) UpdateInstallments(_ context.Context, insts []fee.Installment, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, inst := range insts {
		if _, ok := repo.db.fee.installments[inst.ID]; !ok {
			return errors.Wrapf(fee.ErrNotFound, "installment %q", inst.ID)
		}
		if inst.IsPaid() && !inst.PayedAmount.IsPositive() {
			return errors.New("paid installment without payed amount")
		}
		repo.db.fee.installments[inst.ID] = inst
	}
	return nil
}

func (repo *feeRepository) DeleteInstallments(_ context.Context, ledgerID string, ids []string, _ ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, id := range ids {
		if inst, ok := repo.db.fee.installments[id]; ok && inst.LedgerID == ledgerID {
			delete(repo.db.fee.installments, id)
		}
	}
	return nil
}

func (repo *feeRepository) QueryDueInstallments(_ context.Context, filter fee.DueFilter, _ ...core.DBExecutor) ([]fee.DueRecord, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	insts := make([]fee.Installment, 0)
	for _, inst := range repo.db.fee.installments {
		if matchDue(inst, filter) {
			insts = append(insts, inst)
		}
	}
	fee.SortByDueDate(insts)

	records := make([]fee.DueRecord, 0, len(insts))
	for _, inst := range insts {
		records = append(records, fee.DueRecord{
			Installment:  inst,
			MembershipID: repo.db.fee.ledgers[inst.LedgerID].MembershipID,
		})
	}
	return records, nil
}

func matchDue(inst fee.Installment, filter fee.DueFilter) bool {
	if !filter.DueFrom.IsZero() && inst.DueDate.Before(filter.DueFrom) {
		return false
	}
	if !filter.DueBefore.IsZero() && !inst.DueDate.Before(filter.DueBefore) {
		return false
	}
	if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, inst.Status) {
		return false
	}
	return !hasStatus(filter.ExcludeStatuses, inst.Status)
}

func hasStatus(statuses []fee.Status, s fee.Status) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}
