package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/safnadck/myapplication/core"
	"github.com/safnadck/myapplication/core/fee"
)

type (
	// DB is an in-memory store of the fee tables and of the course platform data they reference.
	DB struct {
		mutex sync.RWMutex
		txMu  sync.Mutex
		seq   int64

		franchises  map[int64]fee.Franchise
		batches     map[int64]fee.Batch
		students    map[int64]fee.Student
		memberships map[int64]membershipRow
		enrollments map[enrollmentKey]enrollmentRow

		fee feeTables
	}

	feeTables struct {
		plans        map[string]fee.FeePlan
		lines        map[string]fee.FeeTemplateLine
		ledgers      map[string]fee.StudentLedger
		installments map[string]fee.Installment
	}

	membershipRow struct {
		ID          int64
		UserID      int64
		FranchiseID int64
		BatchID     int64
	}

	enrollmentKey struct {
		UserID   int64
		CourseID string
	}

	enrollmentRow struct {
		IsActive  bool
		CreatedAt time.Time
	}
)

func Open() *DB {
	return &DB{
		franchises:  make(map[int64]fee.Franchise),
		batches:     make(map[int64]fee.Batch),
		students:    make(map[int64]fee.Student),
		memberships: make(map[int64]membershipRow),
		enrollments: make(map[enrollmentKey]enrollmentRow),
		fee:         newFeeTables(),
	}
}

func newFeeTables() feeTables {
	return feeTables{
		plans:        make(map[string]fee.FeePlan),
		lines:        make(map[string]fee.FeeTemplateLine),
		ledgers:      make(map[string]fee.StudentLedger),
		installments: make(map[string]fee.Installment),
	}
}

func (t feeTables) copy() feeTables {
	c := newFeeTables()
	for k, v := range t.plans {
		c.plans[k] = v
	}
	for k, v := range t.lines {
		c.lines[k] = v
	}
	for k, v := range t.ledgers {
		c.ledgers[k] = v
	}
	for k, v := range t.installments {
		c.installments[k] = v
	}
	return c
}

func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil) // interface compliance check

// NewTransactor runs transactions one at a time; the fee tables are restored when fn fails.
func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

func (t *transactor) InTx(_ context.Context, fn func(exec core.DBExecutor) error) error {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	t.db.mutex.RLock()
	snapshot := t.db.fee.copy()
	t.db.mutex.RUnlock()

	if err := fn(nil); err != nil {
		t.db.mutex.Lock()
		t.db.fee = snapshot
		t.db.mutex.Unlock()
		return err
	}
	return nil
}
