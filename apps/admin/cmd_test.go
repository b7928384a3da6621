package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safnadck/myapplication/apps/api/echo"
	"github.com/safnadck/myapplication/core/fee"
	"github.com/safnadck/myapplication/tests"
)

var now = time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)

func setup(t *testing.T) (*commandLine, *testutil.Env, *bytes.Buffer) {
	env := testutil.NewEnv(t, now)
	out := new(bytes.Buffer)
	return &commandLine{
		conf:   env.Conf,
		feeSvc: env.Svc,
		out:    out,
	}, env, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func runCliTests(t *testing.T, cli *commandLine, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if errors.Cause(err) != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			} else if tt.wantErr != nil || tt.wantErrStr != "" {
				t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
			}
		})
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli, _, out := setup(t)

	runCliTests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	})
	assert.Contains(t, out.String(), "Usage:")
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCliTests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "installment_notes", "sql"}},
	})
}

func Test_parseLines(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []fee.TemplateLine
		wantErr bool
	}{
		{name: "empty", raw: ""},
		{name: "two lines", raw: "500:30, 250.5:0", want: []fee.TemplateLine{testutil.Line("500", 30), testutil.Line("250.5", 0)}},
		{name: "trailing comma", raw: "500:30,", want: []fee.TemplateLine{testutil.Line("500", 30)}},
		{name: "missing period", raw: "500", wantErr: true},
		{name: "bad amount", raw: "lol:30", wantErr: true},
		{name: "bad period", raw: "500:lol", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLines(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.True(t, tt.want[i].Amount.Equal(got[i].Amount), "line %d amount = %s", i, got[i].Amount)
				assert.Equal(t, tt.want[i].RepaymentPeriodDays, got[i].RepaymentPeriodDays)
			}
		})
	}
}

func Test_commandLine_template(t *testing.T) {
	cli, env, _ := setup(t)
	f, b := env.CreateBatch(t, "course-v1:fees+101")
	fid, bid := strconv.FormatInt(f.ID, 10), strconv.FormatInt(b.ID, 10)

	runCliTests(t, cli, []cliTest{
		{name: "no args", args: []string{"template"}, wantErr: errHelp},
		{name: "no batch", args: []string{"template", "-franchise", fid}, wantErr: errHelp},
		{name: "bad lines", args: []string{"template", "-franchise", fid, "-batch", bid, "-lines", "500"}, wantErrStr: `invalid template line "500", want AMOUNT:DAYS`},
		{name: "negative period", args: []string{"template", "-franchise", fid, "-batch", bid, "-total", "1600", "-lines", "500:30,500:-45"}, wantErr: fee.ErrInvalidAmount},
		{name: "discount exceeds total", args: []string{"template", "-franchise", fid, "-batch", bid, "-total", "100", "-discount", "150", "-lines", "50:30"}, wantErr: fee.ErrInvalidAmount},
		{name: "unknown batch", args: []string{"template", "-franchise", fid, "-batch", "999", "-lines", "500:30"}, wantErr: fee.ErrNotFound},
		{name: "opens & configures", args: []string{"template", "-franchise", fid, "-batch", bid, "-total", "1600", "-discount", "100", "-lines", "500:30,500:30,500:30"}},
		{name: "reconfigures", args: []string{"template", "-franchise", fid, "-batch", bid, "-discount", "100", "-lines", "750:30,750:60"}},
	})

	view, err := env.Svc.GetFeePlan(context.Background(), f.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, view.Plan.TargetTotal.Equal(testutil.Dec("1600")), "target total = %s", view.Plan.TargetTotal)
	require.Len(t, view.Lines, 2)
	assert.Equal(t, 60, view.Lines[1].RepaymentPeriodDays)
}

func Test_commandLine_reminders(t *testing.T) {
	cli, env, out := setup(t)
	f, b := env.CreateBatch(t, "course-v1:fees+101")
	env.ConfigurePlan(t, b, "1600", "100",
		testutil.Line("500", 30), testutil.Line("500", 30), testutil.Line("500", 30))
	st := env.RegisterStudent(t, f, b, "Jane Doe", "jane@test.local", testutil.Day(2024, time.January, 1))
	sched, err := env.Svc.ViewSchedule(context.Background(), st.Key)
	require.NoError(t, err)
	overdue := sched.Installments[0].ID

	runCliTests(t, cli, []cliTest{
		{name: "list", args: []string{"reminders"}},
		{name: "list & notify", args: []string{"reminders", "-notify"}},
		{name: "revoke: no args", args: []string{"revoke"}, wantErr: errHelp},
		{name: "revoke: unknown installment", args: []string{"revoke", "-installment", "lol"}, wantErr: fee.ErrNotFound},
		{name: "revoke", args: []string{"revoke", "-installment", overdue}},
	})

	assert.Contains(t, out.String(), "upcoming (1)")
	assert.Contains(t, out.String(), "overdue (1)")
	assert.Contains(t, out.String(), "Jane Doe")
	assert.Contains(t, out.String(), "1 reminder(s) sent")
	assert.Contains(t, out.String(), "access revoked for installment "+overdue)

	enrolled, err := env.Enrollment.IsEnrolled(context.Background(), st.Key.UserID, b.CourseID)
	require.NoError(t, err)
	assert.False(t, enrolled)
}

func Test_commandLine_token(t *testing.T) {
	cli, env, out := setup(t)

	type extra struct {
		key string
	}
	tests := []struct {
		cliTest
		wantKey string
	}{
		{cliTest: cliTest{name: "no args", args: []string{"token"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "configured key", args: []string{"token", "-username", "admin"}}, wantKey: env.Conf.SecretKey},
		{cliTest: cliTest{name: "prompted key", args: []string{"token", "-username", "admin"}, extra: extra{key: "lmao"}}, wantKey: "lmao"},
	}
	for _, tt := range tests {
		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.key), nil
			}
			return nil, nil
		}
		out.Reset()
		runCliTests(t, cli, []cliTest{tt.cliTest})
		if tt.wantKey == "" {
			continue
		}

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		claims := new(echoapi.Claims)
		_, err := jwt.ParseWithClaims(lines[len(lines)-1], claims, func(*jwt.Token) (interface{}, error) {
			return []byte(tt.wantKey), nil
		})
		require.NoError(t, err, tt.name)
		assert.True(t, claims.IsSuperuser, tt.name)
		assert.Equal(t, "admin", claims.Username, tt.name)
	}
}
