package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/safnadck/myapplication/core/fee"
)

// enrollmentService reads & writes the course platform's enrollment table.
type enrollmentService struct {
	db *sqlx.DB
}

var _ fee.Enrollment = (*enrollmentService)(nil) // interface compliance check

func NewEnrollmentService(db *sqlx.DB) *enrollmentService {
	return &enrollmentService{db: db}
}

func (svc enrollmentService) IsEnrolled(ctx context.Context, userID int64, courseID string) (bool, error) {
	var active bool
	q := `SELECT is_active FROM course_enrollment WHERE user_id = $1 AND course_id = $2`
	err := svc.db.GetContext(ctx, &active, q, userID, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, errors.Wrap(err, "selecting enrollment")
	}
	return active, nil
}

// Enroll activates the enrollment, keeping the first enrollment date when re-enrolling.
func (svc enrollmentService) Enroll(ctx context.Context, userID int64, courseID string) error {
	q := `INSERT INTO course_enrollment (user_id, course_id, is_active, created_at) VALUES ($1, $2, true, $3)
		ON CONFLICT (user_id, course_id) DO UPDATE SET is_active = true`
	if _, err := svc.db.ExecContext(ctx, q, userID, courseID, time.Now().UTC()); err != nil {
		return errors.Wrap(err, "enrolling user")
	}
	return nil
}

func (svc enrollmentService) Unenroll(ctx context.Context, userID int64, courseID string) error {
	q := `UPDATE course_enrollment SET is_active = false WHERE user_id = $1 AND course_id = $2`
	if _, err := svc.db.ExecContext(ctx, q, userID, courseID); err != nil {
		return errors.Wrap(err, "unenrolling user")
	}
	return nil
}

func (svc enrollmentService) EnrolledAt(ctx context.Context, userID int64, courseID string) (time.Time, error) {
	var at time.Time
	q := `SELECT created_at FROM course_enrollment WHERE user_id = $1 AND course_id = $2`
	if err := svc.db.GetContext(ctx, &at, q, userID, courseID); err != nil {
		return time.Time{}, trapNoRowsErr(err, "selecting enrollment")
	}
	return at, nil
}
