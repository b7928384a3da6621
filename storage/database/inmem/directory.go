package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/safnadck/myapplication/core/fee"
)

type Directory struct {
	db *DB
}

var _ fee.Directory = (*Directory)(nil) // interface compliance check

func NewDirectory(db *DB) *Directory {
	return &Directory{db: db}
}

func (dir *Directory) CreateFranchise(name string) fee.Franchise {
	dir.db.mutex.Lock()
	defer dir.db.mutex.Unlock()

	f := fee.Franchise{ID: dir.db.nextID(), Name: name}
	dir.db.franchises[f.ID] = f
	return f
}

func (dir *Directory) CreateBatch(franchiseID int64, name, courseID string) fee.Batch {
	dir.db.mutex.Lock()
	defer dir.db.mutex.Unlock()

	b := fee.Batch{ID: dir.db.nextID(), FranchiseID: franchiseID, Name: name, CourseID: courseID}
	dir.db.batches[b.ID] = b
	return b
}

func (dir *Directory) CreateStudent(st fee.Student) fee.Student {
	dir.db.mutex.Lock()
	defer dir.db.mutex.Unlock()

	st.ID = dir.db.nextID()
	dir.db.students[st.ID] = st
	return st
}

// Register adds the student to the batch, the way a franchise registers a student.
func (dir *Directory) Register(userID, franchiseID, batchID int64) (fee.Membership, error) {
	dir.db.mutex.Lock()
	for _, m := range dir.db.memberships {
		if m.UserID == userID && m.FranchiseID == franchiseID {
			dir.db.mutex.Unlock()
			return fee.Membership{}, errors.Errorf("user %d already registered in franchise %d", userID, franchiseID)
		}
	}
	row := membershipRow{ID: dir.db.nextID(), UserID: userID, FranchiseID: franchiseID, BatchID: batchID}
	dir.db.memberships[row.ID] = row
	dir.db.mutex.Unlock()

	return dir.GetMembershipByID(context.Background(), row.ID)
}

func (dir *Directory) GetFranchise(_ context.Context, id int64) (fee.Franchise, error) {
	dir.db.mutex.RLock()
	defer dir.db.mutex.RUnlock()

	if f, ok := dir.db.franchises[id]; ok {
		return f, nil
	}
	return fee.Franchise{}, fee.ErrNotFound
}

func (dir *Directory) GetBatch(_ context.Context, franchiseID, batchID int64) (fee.Batch, error) {
	dir.db.mutex.RLock()
	defer dir.db.mutex.RUnlock()

	if b, ok := dir.db.batches[batchID]; ok && b.FranchiseID == franchiseID {
		return b, nil
	}
	return fee.Batch{}, fee.ErrNotFound
}

func (dir *Directory) GetMembership(ctx context.Context, franchiseID, batchID, userID int64) (fee.Membership, error) {
	dir.db.mutex.RLock()
	var id int64
	for _, m := range dir.db.memberships {
		if m.UserID == userID && m.FranchiseID == franchiseID && m.BatchID == batchID {
			id = m.ID
			break
		}
	}
	dir.db.mutex.RUnlock()

	if id == 0 {
		return fee.Membership{}, fee.ErrNotFound
	}
	return dir.GetMembershipByID(ctx, id)
}

func (dir *Directory) GetMembershipByID(_ context.Context, id int64) (fee.Membership, error) {
	dir.db.mutex.RLock()
	defer dir.db.mutex.RUnlock()

	row, ok := dir.db.memberships[id]
	if !ok {
		return fee.Membership{}, fee.ErrNotFound
	}
	return fee.Membership{
		ID:          row.ID,
		FranchiseID: row.FranchiseID,
		Batch:       dir.db.batches[row.BatchID],
		Student:     dir.db.students[row.UserID],
	}, nil
}
