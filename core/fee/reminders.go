package fee

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/safnadck/myapplication/core"
)

const reminderTemplate = "fee_reminder"

func (svc *Service) dueInstallments(ctx context.Context, filter DueFilter, withEnrollment bool) ([]DueInstallment, error) {
	records, err := svc.repo.QueryDueInstallments(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying due installments")
	}

	memberships := make(map[int64]Membership)
	due := make([]DueInstallment, 0, len(records))
	for _, rec := range records {
		m, ok := memberships[rec.MembershipID]
		if !ok {
			if m, err = svc.dir.GetMembershipByID(ctx, rec.MembershipID); err != nil {
				return nil, errors.Wrapf(err, "getting membership %d", rec.MembershipID)
			}
			memberships[rec.MembershipID] = m
		}

		di := DueInstallment{Installment: rec.Installment, Membership: m}
		if withEnrollment && m.Batch.CourseID != "" {
			if di.IsEnrolled, err = svc.enrollment.IsEnrolled(ctx, m.Student.ID, m.Batch.CourseID); err != nil {
				return nil, errors.Wrap(err, "checking enrollment")
			}
		}
		due = append(due, di)
	}
	return due, nil
}

func (svc *Service) upcoming(ctx context.Context) ([]DueInstallment, error) {
	today := svc.today()
	return svc.dueInstallments(ctx, DueFilter{
		DueFrom:   today,
		DueBefore: today.AddDate(0, 0, svc.conf.Fees.ReminderWindowDays+1),
		Statuses:  []Status{StatusPending},
	}, false)
}

// Reminders lists pending installments due within the reminder window and every unpaid
// installment past its due date, the latter with the student's enrollment state.
func (svc *Service) Reminders(ctx context.Context) (Reminders, error) {
	upcoming, err := svc.upcoming(ctx)
	if err != nil {
		return Reminders{}, err
	}
	overdue, err := svc.dueInstallments(ctx, DueFilter{
		DueBefore:       svc.today(),
		ExcludeStatuses: []Status{StatusPaid},
	}, true)
	if err != nil {
		return Reminders{}, err
	}
	return Reminders{Upcoming: upcoming, Overdue: overdue}, nil
}

// RevokeAccess unenrolls the installment's student from the batch course. The ledger is not touched.
func (svc *Service) RevokeAccess(ctx context.Context, installmentID string) error {
	inst, err := svc.repo.GetInstallment(ctx, installmentID)
	if err != nil {
		return errors.Wrapf(err, "getting installment %q", installmentID)
	}
	ledger, err := svc.repo.GetLedgerByID(ctx, inst.LedgerID)
	if err != nil {
		return errors.Wrap(err, "getting ledger")
	}
	m, err := svc.dir.GetMembershipByID(ctx, ledger.MembershipID)
	if err != nil {
		return errors.Wrapf(err, "getting membership %d", ledger.MembershipID)
	}
	if m.Batch.CourseID == "" {
		return nil
	}
	return svc.setEnrollment(ctx, m, false)
}

// NotifyUpcoming emails a reminder to the student of every upcoming installment and returns
// how many were handed to the mailer. Students without an email address are skipped, as are
// messages that render empty.
func (svc *Service) NotifyUpcoming(ctx context.Context) (int, error) {
	upcoming, err := svc.upcoming(ctx)
	if err != nil {
		return 0, err
	}

	messages := make([]*core.EmailMessage, 0, len(upcoming))
	for _, di := range upcoming {
		student := di.Membership.Student
		if student.Email == "" {
			svc.logger.Warn(fmt.Sprintf("fee reminder: student %d has no email", student.ID))
			continue
		}
		msg := &core.EmailMessage{
			To:           []mail.Address{{Name: student.Name, Address: student.Email}},
			Subject:      "Upcoming fee installment",
			TemplateName: reminderTemplate,
			TemplateData: map[string]interface{}{
				"StudentName": student.Name,
				"BatchName":   di.Membership.Batch.Name,
				"Amount":      di.Installment.Amount.StringFixed(2),
				"DueDate":     di.Installment.DueDate.Format("2006-01-02"),
			},
		}
		if err := msg.Render(); err != nil {
			svc.logger.Error(fmt.Sprintf("fee reminder: rendering email for student %d: %v", student.ID, err), err)
			continue
		}
		if !msg.HasContent() {
			svc.logger.Error(fmt.Sprintf("fee reminder: %q template is missing", reminderTemplate))
			continue
		}
		messages = append(messages, msg)
	}
	if len(messages) > 0 {
		svc.mailer.SendMessages(messages...)
	}
	return len(messages), nil
}
