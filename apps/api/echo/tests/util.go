package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/safnadck/myapplication/apps/api/echo"
	"github.com/safnadck/myapplication/core"
	"github.com/safnadck/myapplication/core/fee"
	"github.com/safnadck/myapplication/tests"
)

var (
	now          = time.Date(2024, time.March, 1, 9, 30, 0, 0, time.UTC)
	registeredAt = time.Date(2024, time.January, 1, 14, 0, 0, 0, time.UTC)

	errMissingToken = httpErr{Error: "missing or malformed jwt"}
)

// setup serves a fee service seeded with one batch (three installments of 500, every 30 days,
// out of 1600 - 100) and one student registered on Jan 1st.
func setup(t *testing.T) (echoapi.Server, *testutil.Env, testutil.Student) {
	env := testutil.NewEnv(t, now)
	f, b := env.CreateBatch(t, "course-v1:fees+101")
	env.ConfigurePlan(t, b, "1600", "100",
		testutil.Line("500", 30), testutil.Line("500", 30), testutil.Line("500", 30))
	st := env.RegisterStudent(t, f, b, "Jane Doe", "jane@test.local", registeredAt)

	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	fee.InitValidators(validate)

	app := echoapi.NewServer(
		"",  /* address */
		nil, /* shutdown */
		&echoapi.Deps{
			Conf:       env.Conf,
			Logger:     env.Logger,
			Validate:   validate,
			Translator: translator,
			FeeSvc:     env.Svc,
		},
	)
	return app, env, st
}

type httpErr struct {
	Error string `json:"error"`
}

type feeErr struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newFeeErr(err *fee.Error) feeErr {
	return feeErr{Error: err.Error(), Code: err.Code}
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, superuser bool) string {
	claims := echoapi.NewClaims(core.Identity{
		ID:          "42",
		Username:    "admin",
		Email:       "admin@test.local",
		IsSuperuser: superuser,
	}, conf)
	token, err := echoapi.GenerateToken(claims, conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarchallObj(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchallObj() failed: %v; body %s", err, rec.Body.String())
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runTests(t *testing.T, app echoapi.Server, tests []httpTest) {
	for _, tt := range tests {
		if tt.method == "" {
			tt.method = http.MethodGet
		}
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
