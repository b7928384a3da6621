package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/safnadck/myapplication/core/fee"
)

// directory reads the course platform's franchise, batch & user tables.
type directory struct {
	db *sqlx.DB
}

var _ fee.Directory = (*directory)(nil) // interface compliance check

func NewDirectory(db *sqlx.DB) *directory {
	return &directory{db: db}
}

type membershipRow struct {
	ID          int64       `db:"id"`
	FranchiseID int64       `db:"franchise_id"`
	BatchID     null.Int64  `db:"batch_id"`
	BatchName   null.String `db:"batch_name"`
	CourseID    null.String `db:"course_id"`
	UserID      int64       `db:"user_id"`
	Username    string      `db:"username"`
	Name        string      `db:"name"`
	Email       string      `db:"email"`
	Phone       string      `db:"phone"`
}

func (r membershipRow) unboil() fee.Membership {
	return fee.Membership{
		ID:          r.ID,
		FranchiseID: r.FranchiseID,
		Batch: fee.Batch{
			ID:          r.BatchID.Int64,
			FranchiseID: r.FranchiseID,
			Name:        r.BatchName.String,
			CourseID:    r.CourseID.String,
		},
		Student: fee.Student{
			ID:       r.UserID,
			Username: r.Username,
			Name:     r.Name,
			Email:    r.Email,
			Phone:    r.Phone,
		},
	}
}

const membershipQuery = `SELECT uf.id, uf.franchise_id, uf.batch_id, b.name AS batch_name, b.course_id,
		u.id AS user_id, u.username, u.name, u.email, u.phone
	FROM user_franchise uf
	JOIN app_user u ON u.id = uf.user_id
	LEFT JOIN batch b ON b.id = uf.batch_id`

func (dir directory) GetFranchise(ctx context.Context, id int64) (fee.Franchise, error) {
	var f fee.Franchise
	err := dir.db.QueryRowxContext(ctx, `SELECT id, name FROM franchise WHERE id = $1`, id).Scan(&f.ID, &f.Name)
	if err != nil {
		return fee.Franchise{}, trapNoRowsErr(err, "selecting franchise")
	}
	return f, nil
}

func (dir directory) GetBatch(ctx context.Context, franchiseID, batchID int64) (fee.Batch, error) {
	var b fee.Batch
	q := `SELECT id, franchise_id, name, course_id FROM batch WHERE id = $1 AND franchise_id = $2`
	err := dir.db.QueryRowxContext(ctx, q, batchID, franchiseID).Scan(&b.ID, &b.FranchiseID, &b.Name, &b.CourseID)
	if err != nil {
		return fee.Batch{}, trapNoRowsErr(err, "selecting batch")
	}
	return b, nil
}

func (dir directory) GetMembership(ctx context.Context, franchiseID, batchID, userID int64) (fee.Membership, error) {
	var row membershipRow
	q := membershipQuery + ` WHERE uf.franchise_id = $1 AND uf.batch_id = $2 AND uf.user_id = $3`
	if err := dir.db.GetContext(ctx, &row, q, franchiseID, batchID, userID); err != nil {
		return fee.Membership{}, trapNoRowsErr(err, "selecting membership")
	}
	return row.unboil(), nil
}

func (dir directory) GetMembershipByID(ctx context.Context, id int64) (fee.Membership, error) {
	var row membershipRow
	if err := dir.db.GetContext(ctx, &row, membershipQuery+` WHERE uf.id = $1`, id); err != nil {
		return fee.Membership{}, trapNoRowsErr(err, "selecting membership")
	}
	return row.unboil(), nil
}
