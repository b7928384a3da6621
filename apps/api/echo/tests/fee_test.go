package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safnadck/myapplication/apps/api/echo"
	"github.com/safnadck/myapplication/core/fee"
	"github.com/safnadck/myapplication/services/email"
	"github.com/safnadck/myapplication/tests"
)

func batchPath(st testutil.Student) string {
	return fmt.Sprintf("/v1/franchises/%d/batches/%d", st.Franchise.ID, st.Batch.ID)
}

func studentPath(st testutil.Student) string {
	return fmt.Sprintf("%s/students/%d", batchPath(st), st.Key.UserID)
}

func getSchedule(t *testing.T, env *testutil.Env, st testutil.Student) fee.Schedule {
	sched, err := env.Svc.ViewSchedule(context.Background(), st.Key)
	require.NoError(t, err)
	return sched
}

func Test_feeApi_auth(t *testing.T) {
	app, env, st := setup(t)
	notFound := marchallObj(t, newFeeErr(fee.ErrNotFound))

	runTests(t, app, []httpTest{
		{name: "Auth required", path: batchPath(st) + "/fee-plan", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Auth required (reminders)", path: "/v1/fee-reminders", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Bad token", path: batchPath(st) + "/fee-plan", token: "not.a.token", wantCode: http.StatusUnauthorized},
		{
			name: "Superuser required", path: studentPath(st) + "/schedule", token: getToken(t, env.Conf, false),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Malformed id", path: "/v1/franchises/abc/batches/1/fee-plan", token: getToken(t, env.Conf, true),
			wantCode: http.StatusNotFound, wantData: notFound,
		},
	})
}

func Test_feeApi_feePlan(t *testing.T) {
	app, env, st := setup(t)
	token := getToken(t, env.Conf, true)
	path := batchPath(st) + "/fee-plan"
	notFound := marchallObj(t, newFeeErr(fee.ErrNotFound))

	req, rec := newAuthRequest(http.MethodGet, path, token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view fee.PlanView
	unmarchallObj(t, rec, &view)
	assert.Equal(t, st.Batch.ID, view.Batch.ID)
	assert.Equal(t, "1500", view.Plan.RemainingAmount().String())
	assert.Len(t, view.Lines, 3)

	runTests(t, app, []httpTest{
		{
			name: "Open twice", method: http.MethodPost, path: path, token: token,
			body: []byte(`{"target_total": 1, "discount": 0}`), wantCode: http.StatusCreated,
		},
		{
			name: "Negative discount", method: http.MethodPut, path: path, token: token,
			body: []byte(`{"discount": -10, "lines": []}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "Negative line", method: http.MethodPut, path: path, token: token,
			body: []byte(`{"discount": 0, "lines": [{"amount": "100", "repayment_period_days": -1}]}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "Unknown batch", path: fmt.Sprintf("/v1/franchises/%d/batches/999/fee-plan", st.Franchise.ID), token: token,
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "Unknown franchise", method: http.MethodPost, path: fmt.Sprintf("/v1/franchises/999/batches/%d/fee-plan", st.Batch.ID),
			token: token, body: []byte(`{}`), wantCode: http.StatusNotFound, wantData: notFound,
		},
	})

	t.Run("Configure template", func(t *testing.T) {
		body := []byte(`{"target_total": "2000", "discount": "250.50", "lines": [
			{"amount": 1000, "repayment_period_days": 0},
			{"amount": "749.50", "repayment_period_days": 60}
		]}`)
		req, rec := newAuthRequest(http.MethodPut, path, token, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var view fee.PlanView
		unmarchallObj(t, rec, &view)
		assert.Equal(t, "2000", view.Plan.TargetTotal.String())
		assert.Equal(t, "1749.5", view.Plan.RemainingAmount().String())
		require.Len(t, view.Lines, 2)
		assert.Equal(t, 60, view.Lines[1].RepaymentPeriodDays)
	})
}

func Test_feeApi_payments(t *testing.T) {
	app, env, st := setup(t)
	token := getToken(t, env.Conf, true)
	path := studentPath(st) + "/payments"

	req, rec := newAuthRequest(http.MethodGet, studentPath(st)+"/schedule", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sched fee.Schedule
	unmarchallObj(t, rec, &sched)
	require.Len(t, sched.Installments, 3)
	insts := sched.Installments

	update := func(id, status string, amount interface{}) []byte {
		return marchallObj(t, map[string]interface{}{
			"updates": []map[string]interface{}{{"installment_id": id, "status": status, "payed_amount": amount}},
		})
	}

	runTests(t, app, []httpTest{
		{
			name: "Out of order", method: http.MethodPost, path: path, token: token,
			body: update(insts[1].ID, "paid", 500), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, newFeeErr(fee.ErrOutOfOrderPayment)),
		},
		{
			name: "Paid without amount", method: http.MethodPost, path: path, token: token,
			body: update(insts[0].ID, "paid", "0"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, newFeeErr(fee.ErrPaidRequiresPositiveAmount)),
		},
		{
			name: "Invalid amount", method: http.MethodPost, path: path, token: token,
			body: update(insts[0].ID, "paid", "lots"), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, newFeeErr(fee.ErrInvalidAmount)),
		},
		{
			name: "Invalid status", method: http.MethodPost, path: path, token: token,
			body: update(insts[0].ID, "waived", 500), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, newFeeErr(fee.ErrInvalidStatus)),
		},
		{
			name: "Installment id required", method: http.MethodPost, path: path, token: token,
			body: update("", "paid", 500), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"installment_id": "this field is required"}),
		},
		{
			name: "Unknown installment", method: http.MethodPost, path: path, token: token,
			body: update("nope", "paid", 500), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, newFeeErr(fee.ErrNotFound)),
		},
	})

	t.Run("Pay first installment", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, path, token, update(insts[0].ID, "paid", 500))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var sched fee.Schedule
		unmarchallObj(t, rec, &sched)
		assert.Equal(t, fee.StatusPaid, sched.Installments[0].Status)
		assert.Equal(t, "1000", sched.Ledger.RemainingAmount.String())
		assert.Equal(t, "500", sched.Totals.TotalPaid.String())
	})

	runTests(t, app, []httpTest{
		{
			name: "Paid is immutable", method: http.MethodPost, path: path, token: token,
			body: update(insts[0].ID, "pending", 0), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, newFeeErr(fee.ErrPaidIsImmutable)),
		},
		{
			name: "Invoice of paid installment", token: token,
			path: fmt.Sprintf("%s/installments/%s/invoice", studentPath(st), insts[0].ID),
		},
		{
			name: "Invoice of pending installment", token: token,
			path:     fmt.Sprintf("%s/installments/%s/invoice", studentPath(st), insts[1].ID),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, newFeeErr(fee.ErrNotFound)),
		},
	})
}

func Test_feeApi_editSchedule(t *testing.T) {
	app, env, st := setup(t)
	token := getToken(t, env.Conf, true)
	path := studentPath(st) + "/schedule"
	insts := getSchedule(t, env, st).Installments

	edit := func(e fee.ScheduleEdit) []byte { return marchallObj(t, e) }

	t.Run("Drift is reported", func(t *testing.T) {
		body := edit(fee.ScheduleEdit{
			Modified: []fee.InstallmentChange{{ID: insts[2].ID, Amount: testutil.Dec("400"), RepaymentPeriodDays: 45}},
		})
		req, rec := newAuthRequest(http.MethodPut, path, token, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res fee.EditResult
		unmarchallObj(t, rec, &res)
		assert.Equal(t, "100", res.AmountToAdd.String())
		require.Len(t, res.Installments, 3)
		assert.True(t, insts[2].DueDate.AddDate(0, 0, 15).Equal(res.Installments[2].DueDate))
		assert.Equal(t, "1500", getSchedule(t, env, st).Ledger.RemainingAmount.String())
	})

	runTests(t, app, []httpTest{
		{
			name: "Unknown installment", method: http.MethodPut, path: path, token: token,
			body: edit(fee.ScheduleEdit{Removed: []string{"nope"}}), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, newFeeErr(fee.ErrNotFound)),
		},
		{
			name: "Negative amount", method: http.MethodPut, path: path, token: token,
			body:     []byte(fmt.Sprintf(`{"modified": [{"id": %q, "amount": -1, "repayment_period_days": 30}]}`, insts[0].ID)),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Unknown student", method: http.MethodPut, path: batchPath(st) + "/students/999/schedule", token: token,
			body: edit(fee.ScheduleEdit{}), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, newFeeErr(fee.ErrNotFound)),
		},
	})
}

func Test_feeApi_enrollment(t *testing.T) {
	app, env, st := setup(t)
	token := getToken(t, env.Conf, true)
	path := studentPath(st) + "/enrollment"

	runTests(t, app, []httpTest{
		{
			name: "Enrolled required", method: http.MethodPost, path: path, token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"enrolled": "this field is required"}),
		},
		{
			name: "Unenroll", method: http.MethodPost, path: path, token: token, body: []byte(`{"enrolled": false}`),
			wantData: marchallObj(t, echoapi.EnrollmentResponse{Enrolled: false}),
		},
	})
	assert.False(t, getSchedule(t, env, st).IsEnrolled)

	runTests(t, app, []httpTest{
		{
			name: "Enroll", method: http.MethodPost, path: path, token: token, body: []byte(`{"enrolled": true}`),
			wantData: marchallObj(t, echoapi.EnrollmentResponse{Enrolled: true}),
		},
	})
	assert.True(t, getSchedule(t, env, st).IsEnrolled)
}

func Test_feeApi_reminders(t *testing.T) {
	app, env, st := setup(t)
	token := getToken(t, env.Conf, true)
	insts := getSchedule(t, env, st).Installments

	req, rec := newAuthRequest(http.MethodGet, "/v1/fee-reminders", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rem fee.Reminders
	unmarchallObj(t, rec, &rem)
	require.Len(t, rem.Upcoming, 1)
	assert.Equal(t, insts[1].ID, rem.Upcoming[0].Installment.ID)
	require.Len(t, rem.Overdue, 1)
	assert.Equal(t, insts[0].ID, rem.Overdue[0].Installment.ID)
	assert.True(t, rem.Overdue[0].IsEnrolled)

	emailsvc.ResetSentMessages()
	runTests(t, app, []httpTest{
		{
			name: "Revoke requires installment", method: http.MethodPost, path: "/v1/fee-reminders/revoke", token: token,
			body: []byte(`{"installment_id": "  "}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"installment_id": "this field cannot be blank"}),
		},
		{
			name: "Revoke unknown installment", method: http.MethodPost, path: "/v1/fee-reminders/revoke", token: token,
			body: []byte(`{"installment_id": "nope"}`), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, newFeeErr(fee.ErrNotFound)),
		},
		{
			name: "Revoke", method: http.MethodPost, path: "/v1/fee-reminders/revoke", token: token,
			body: marchallObj(t, echoapi.RevokeRequest{InstallmentID: insts[0].ID}), wantCode: http.StatusNoContent,
		},
		{
			name: "Notify", method: http.MethodPost, path: "/v1/fee-reminders/notify", token: token,
			wantData: marchallObj(t, echoapi.NotifyResponse{Sent: 1}),
		},
	})

	assert.False(t, getSchedule(t, env, st).IsEnrolled)
	assert.Len(t, emailsvc.SentMessages, 1)
}
