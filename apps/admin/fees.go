package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/safnadck/myapplication/core/fee"
)

// parseLines reads "AMOUNT:DAYS,AMOUNT:DAYS" template lines.
func parseLines(s string) ([]fee.TemplateLine, error) {
	var lines []fee.TemplateLine
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) != 2 {
			return nil, errors.Errorf("invalid template line %q, want AMOUNT:DAYS", part)
		}
		amount, err := decimal.NewFromString(fields[0])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid amount in %q", part)
		}
		days, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid repayment period in %q", part)
		}
		lines = append(lines, fee.TemplateLine{Amount: amount, RepaymentPeriodDays: days})
	}
	return lines, nil
}

func (cli *commandLine) configureTemplate(franchiseID, batchID int64, discount, total, rawLines string) error {
	ctx := context.Background()

	lines, err := parseLines(rawLines)
	if err != nil {
		return err
	}
	tc := fee.TemplateConfig{Lines: lines}
	if tc.Discount, err = decimal.NewFromString(discount); err != nil {
		return errors.Wrap(err, "invalid discount")
	}
	if total != "" {
		target, err := decimal.NewFromString(total)
		if err != nil {
			return errors.Wrap(err, "invalid total")
		}
		tc.TargetTotal = &target
	}

	// opening is a no-op when the batch already has a plan
	np := fee.NewFeePlan{Discount: tc.Discount}
	if tc.TargetTotal != nil {
		np.TargetTotal = *tc.TargetTotal
	}
	if _, err = cli.feeSvc.OpenFeePlan(ctx, franchiseID, batchID, np); err != nil {
		return err
	}

	view, err := cli.feeSvc.ConfigureTemplate(ctx, franchiseID, batchID, tc)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "fee plan %s: total %s, discount %s, %d template line(s)\n",
		view.Plan.ID, view.Plan.TargetTotal, view.Plan.Discount, len(view.Lines))
	return nil
}

func (cli *commandLine) reminders(notify bool) error {
	ctx := context.Background()

	rem, err := cli.feeSvc.Reminders(ctx)
	if err != nil {
		return err
	}
	printDue := func(title string, due []fee.DueInstallment) {
		fmt.Fprintf(cli.out, "%s (%d)\n", title, len(due))
		for _, d := range due {
			fmt.Fprintf(cli.out, "  %s  %s  %-24s %-14s %s owed, enrolled: %t\n",
				d.Installment.ID,
				d.Installment.DueDate.Format("2006-01-02"),
				d.Membership.Student.Name,
				d.Membership.Batch.Name,
				d.Installment.Balance(),
				d.IsEnrolled,
			)
		}
	}
	printDue("upcoming", rem.Upcoming)
	printDue("overdue", rem.Overdue)

	if notify {
		sent, err := cli.feeSvc.NotifyUpcoming(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.out, "%d reminder(s) sent\n", sent)
	}
	return nil
}

func (cli *commandLine) revoke(installmentID string) error {
	if err := cli.feeSvc.RevokeAccess(context.Background(), installmentID); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "access revoked for installment %s\n", installmentID)
	return nil
}
