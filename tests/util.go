package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/safnadck/myapplication/core"
	"github.com/safnadck/myapplication/core/fee"
	"github.com/safnadck/myapplication/fs"
	"github.com/safnadck/myapplication/services/email"
	"github.com/safnadck/myapplication/services/logger"
	"github.com/safnadck/myapplication/storage/database/inmem"
)

// Env is a fee service running on the in-memory database, along with everything needed to seed it.
type Env struct {
	Conf       *core.Config
	Logger     core.Logger
	DB         *inmemdb.DB
	Tx         core.Transactor
	Repo       fee.Repository
	Dir        *inmemdb.Directory
	Enrollment *inmemdb.EnrollmentService
	Mailer     core.EmailService
	Svc        *fee.Service
}

func NewLogger(conf *core.Config) core.Logger {
	lg := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	lg.Enable(false)
	return lg
}

// NewEnv sets up a fresh Env. Its clock is frozen at now.
// wrap decorates the fee repository, e.g. to inject failures.
func NewEnv(t *testing.T, now time.Time, wrap ...func(fee.Repository) fee.Repository) *Env {
	t.Helper()

	conf := core.NewTestConfig()
	lg := NewLogger(conf)
	db := inmemdb.Open()
	core.ParseEmailTemplates(appfs.FS, appfs.EmailTemplatesDir, conf, lg)

	env := &Env{
		Conf:       conf,
		Logger:     lg,
		DB:         db,
		Tx:         inmemdb.NewTransactor(db),
		Repo:       inmemdb.NewFeeRepository(db),
		Dir:        inmemdb.NewDirectory(db),
		Enrollment: inmemdb.NewEnrollmentService(db),
		Mailer:     emailsvc.NewConsoleServiceMock(conf, lg),
	}
	for _, w := range wrap {
		env.Repo = w(env.Repo)
	}
	env.Svc = fee.NewService(env.Tx, env.Repo, env.Dir, env.Enrollment, core.NewNoopPublisher(), env.Mailer, lg, conf)
	env.Svc.SetClock(func() time.Time { return now })
	return env
}

// Student is a registered & enrolled student of a batch.
type Student struct {
	Franchise  fee.Franchise
	Batch      fee.Batch
	Membership fee.Membership
	Key        fee.LedgerKey
}

// CreateBatch creates a franchise with one batch of the given course.
func (env *Env) CreateBatch(t *testing.T, courseID string) (fee.Franchise, fee.Batch) {
	t.Helper()
	f := env.Dir.CreateFranchise("Franchise " + courseID)
	return f, env.Dir.CreateBatch(f.ID, "Batch "+courseID, courseID)
}

// RegisterStudent registers a new student in the batch, enrolled in its course as of registeredAt.
func (env *Env) RegisterStudent(t *testing.T, f fee.Franchise, b fee.Batch, name, email string, registeredAt time.Time) Student {
	t.Helper()

	st := env.Dir.CreateStudent(fee.Student{Username: core.CleanString(name, true), Name: name, Email: email})
	m, err := env.Dir.Register(st.ID, f.ID, b.ID)
	if err != nil {
		t.Fatalf("RegisterStudent() failed: %v", err)
	}
	if b.CourseID != "" {
		env.Enrollment.EnrollAt(st.ID, b.CourseID, registeredAt)
	}
	return Student{
		Franchise:  f,
		Batch:      b,
		Membership: m,
		Key:        fee.LedgerKey{FranchiseID: f.ID, BatchID: b.ID, UserID: st.ID},
	}
}

// ConfigurePlan opens the batch's fee plan and sets its template.
func (env *Env) ConfigurePlan(t *testing.T, b fee.Batch, target, discount string, lines ...fee.TemplateLine) fee.PlanView {
	t.Helper()

	ctx := context.Background()
	total := Dec(target)
	if _, err := env.Svc.OpenFeePlan(ctx, b.FranchiseID, b.ID, fee.NewFeePlan{TargetTotal: total, Discount: Dec(discount)}); err != nil {
		t.Fatalf("ConfigurePlan() failed: %v", err)
	}
	view, err := env.Svc.ConfigureTemplate(ctx, b.FranchiseID, b.ID, fee.TemplateConfig{
		TargetTotal: &total,
		Discount:    Dec(discount),
		Lines:       lines,
	})
	if err != nil {
		t.Fatalf("ConfigurePlan() failed: %v", err)
	}
	return view
}

// Line is a template line of amount due periodDays after the previous one.
func Line(amount string, periodDays int) fee.TemplateLine {
	return fee.TemplateLine{Amount: Dec(amount), RepaymentPeriodDays: periodDays}
}

func Dec(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return decimal.RequireFromString(s)
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
