package inmemdb

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/safnadck/myapplication/core/fee"
)

type EnrollmentService struct {
	db  *DB
	now func() time.Time
}

var _ fee.Enrollment = (*EnrollmentService)(nil) // interface compliance check

func NewEnrollmentService(db *DB) *EnrollmentService {
	return &EnrollmentService{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// EnrollAt enrolls the user as of at; re-enrolling keeps the first enrollment date.
func (svc *EnrollmentService) EnrollAt(userID int64, courseID string, at time.Time) {
	svc.db.mutex.Lock()
	defer svc.db.mutex.Unlock()

	key := enrollmentKey{UserID: userID, CourseID: courseID}
	row, ok := svc.db.enrollments[key]
	if !ok {
		row.CreatedAt = at
	}
	row.IsActive = true
	svc.db.enrollments[key] = row
}

func (svc *EnrollmentService) IsEnrolled(_ context.Context, userID int64, courseID string) (bool, error) {
	svc.db.mutex.RLock()
	defer svc.db.mutex.RUnlock()
	return svc.db.enrollments[enrollmentKey{UserID: userID, CourseID: courseID}].IsActive, nil
}

func (svc *EnrollmentService) Enroll(_ context.Context, userID int64, courseID string) error {
	svc.EnrollAt(userID, courseID, svc.now())
	return nil
}

func (svc *EnrollmentService) Unenroll(_ context.Context, userID int64, courseID string) error {
	svc.db.mutex.Lock()
	defer svc.db.mutex.Unlock()

	key := enrollmentKey{UserID: userID, CourseID: courseID}
	if row, ok := svc.db.enrollments[key]; ok {
		row.IsActive = false
		svc.db.enrollments[key] = row
	}
	return nil
}

func (svc *EnrollmentService) EnrolledAt(_ context.Context, userID int64, courseID string) (time.Time, error) {
	svc.db.mutex.RLock()
	defer svc.db.mutex.RUnlock()

	if row, ok := svc.db.enrollments[enrollmentKey{UserID: userID, CourseID: courseID}]; ok {
		return row.CreatedAt, nil
	}
	return time.Time{}, errors.Wrapf(fee.ErrNotFound, "enrollment of user %d in %q", userID, courseID)
}
