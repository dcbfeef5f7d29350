package echoapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/semina/core"
	"github.com/trezcool/semina/core/seminar"
	emailsvc "github.com/trezcool/semina/services/email"
	inmemdb "github.com/trezcool/semina/storage/database/inmem"
)

var testStudents = []seminar.Student{
	{ID: "ii-1", RegisterNumber: "22it001", Name: "Asha", ClassYear: seminar.ClassYearII, Email: "asha@college.edu"},
	{ID: "ii-2", RegisterNumber: "22it002", Name: "Bala", ClassYear: seminar.ClassYearII, Email: "bala@college.edu"},
	{ID: "iii-1", RegisterNumber: "21it001", Name: "Chitra", ClassYear: seminar.ClassYearIII, Email: "chitra@college.edu"},
}

type nopLogger struct{}

func (nopLogger) Enable(bool)                  {}
func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func testConfig() *core.Config {
	return &core.Config{
		TestMode:         true,
		Env:              "TEST",
		AppName:          "Semina",
		SecretKey:        "test-secret-key",
		CronSecret:       "test-cron-secret",
		DefaultFromEmail: mail.Address{Name: "Semina", Address: "noreply@localhost"},
		Server: core.ServerConfig{
			JWTExpirationDelta: time.Hour,
		},
		Seminar: core.SeminarConfig{
			WindowStartHour:   10,
			WindowStartMinute: 30,
			WindowEndHour:     13,
			WindowEndMinute:   30,
			SelectionHour:     13,
			SelectionMinute:   30,
			TriggerTolerance:  5 * time.Minute,
			Timezone:          "Asia/Kolkata",
			FineAmount:        10.00,
			FineClassYears:    []string{"II-IT", "III-IT"},
			OpTimeout:         15 * time.Second,
		},
	}
}

// setup boots a server against an in-memory store with the clock frozen
// inside the booking window (Wed 2025-03-05 11:00 IST).
func setup(t *testing.T) (Server, *core.Config) {
	t.Helper()

	conf := testConfig()

	db, err := inmemdb.Open()
	require.NoError(t, err)
	db.AddStudents(testStudents...)

	loc, err := time.LoadLocation(conf.Seminar.Timezone)
	require.NoError(t, err)
	now := time.Date(2025, time.March, 5, 11, 0, 0, 0, loc)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	svc, err := seminar.NewServiceMock(conf, inmemdb.NewSeminarRepository(db), mailSvc, nopLogger{}, func() time.Time { return now })
	require.NoError(t, err)

	validate := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	core.InitValidators(validate, translator)

	return NewServer(ServerDeps{
		Conf:       conf,
		Logger:     nopLogger{},
		SeminarSvc: svc,
		Validate:   validate,
		Translator: translator,
	}), conf
}

func newRequest(method, path, token string, data interface{}) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if data != nil {
		_ = json.NewEncoder(&body).Encode(data)
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, st seminar.Student, isAdmin bool) string {
	t.Helper()
	token, err := GenerateToken(conf, GetStudentClaims(conf, st, isAdmin))
	require.NoError(t, err)
	return token
}

func TestHome(t *testing.T) {
	srv, _ := setup(t)
	req, rec := newRequest(http.MethodGet, "/", "", nil)
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWindowAPI(t *testing.T) {
	srv, conf := setup(t)

	t.Run("requires a token", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/seminar/window", "", nil)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("reports an open window", func(t *testing.T) {
		token := getToken(t, conf, testStudents[0], false)
		req, rec := newRequest(http.MethodGet, "/v1/seminar/window", token, nil)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp WindowResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.IsOpen)
		assert.NotEmpty(t, resp.TimeUntilClose)
		assert.Empty(t, resp.TimeUntilOpen)
	})
}

func TestBookingAPI(t *testing.T) {
	srv, conf := setup(t)
	token := getToken(t, conf, testStudents[0], false)

	t.Run("creates a booking for tomorrow", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/seminar/bookings", token, BookingRequest{Topic: "Go Concurrency"})
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var b seminar.Booking
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
		assert.Equal(t, "ii-1", b.StudentID)
		assert.Equal(t, "2025-03-06", seminar.FormatDate(b.BookingDate))
	})

	t.Run("rejects a duplicate", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/seminar/bookings", token, BookingRequest{Topic: "Again"})
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("student sees own booking", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/seminar/bookings?date=2025-03-06", token, nil)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var b seminar.Booking
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
		assert.Equal(t, "ii-1", b.StudentID)
	})

	t.Run("404 when no booking for the date", func(t *testing.T) {
		other := getToken(t, conf, testStudents[1], false)
		req, rec := newRequest(http.MethodGet, "/v1/seminar/bookings?date=2025-03-06", other, nil)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("admin lists all bookings", func(t *testing.T) {
		admin := getToken(t, conf, testStudents[2], true)
		req, rec := newRequest(http.MethodGet, "/v1/seminar/bookings?date=2025-03-06", admin, nil)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var bookings []seminar.Booking
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bookings))
		require.Len(t, bookings, 1)
	})
}

func TestRunSelectionAPI(t *testing.T) {
	srv, conf := setup(t)

	// a booking to draw from
	token := getToken(t, conf, testStudents[0], false)
	req, rec := newRequest(http.MethodPost, "/v1/seminar/bookings", token, BookingRequest{Topic: "Go"})
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("rejected without the cron secret", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/seminar/run-selection", "", nil)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("runs with the cron secret", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/seminar/run-selection", "", nil)
		req.Header.Set("X-Cron-Secret", conf.CronSecret)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res seminar.RunResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(t, res.Success)
		require.Len(t, res.Selections, 1)
		assert.Equal(t, "ii-1", res.Selections[0].StudentID)
	})

	t.Run("selections are visible", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/seminar/selections?date=2025-03-06", token, nil)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res SelectionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(t, res.Exists)
		assert.Equal(t, 1, res.Count)
		require.Len(t, res.Selections, 1)
		assert.Equal(t, "Asha", res.Selections[0].Student.Name)
	})

	t.Run("default date follows the seminar clock", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/seminar/selections", token, nil)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res SelectionsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "2025-03-06", res.Date)
		assert.True(t, res.Exists)
	})
}

func TestHolidayAPI(t *testing.T) {
	srv, conf := setup(t)
	studentToken := getToken(t, conf, testStudents[0], false)
	adminToken := getToken(t, conf, testStudents[2], true)

	payload := HolidayRequest{Date: "2025-03-14", Name: "Founders Day"}

	t.Run("students cannot create holidays", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/holidays", studentToken, payload)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin creates and lists holidays", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/holidays", adminToken, payload)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var h seminar.Holiday
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
		assert.Equal(t, "Founders Day", h.HolidayName)
		assert.True(t, h.AffectsSeminars)

		req, rec = newRequest(http.MethodGet, "/v1/holidays?from=2025-03-01&to=2025-03-31", studentToken, nil)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var holidays []seminar.Holiday
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &holidays))
		require.Len(t, holidays, 1)

		req, rec = newRequest(http.MethodDelete, "/v1/holidays/"+h.ID, adminToken, nil)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("duplicate date rejected", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/holidays", adminToken, payload)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		req, rec = newRequest(http.MethodPost, "/v1/holidays", adminToken, payload)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad date rejected", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/holidays", adminToken, HolidayRequest{Date: "14/03/2025", Name: "Bad"})
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestFineAPI(t *testing.T) {
	srv, conf := setup(t)
	studentToken := getToken(t, conf, testStudents[0], false)
	adminToken := getToken(t, conf, testStudents[2], true)

	fine := FineRequest{
		StudentID:     "ii-1",
		FineType:      "attendance_absent",
		ReferenceDate: "2025-03-04",
		Description:   "absent without leave",
	}

	t.Run("students cannot create fines", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/admin/fines", studentToken, fine)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin issues and settles a fine", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/admin/fines", adminToken, fine)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code)

		var f seminar.Fine
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
		assert.Equal(t, seminar.PaymentPending, f.PaymentStatus)
		assert.Equal(t, 10.00, f.BaseAmount) // default amount

		req, rec = newRequest(http.MethodPatch, fmt.Sprintf("/v1/admin/fines/%s", f.ID), adminToken, FineStatusRequest{Status: "paid"})
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &f))
		assert.Equal(t, seminar.PaymentPaid, f.PaymentStatus)
	})

	t.Run("students see only their own fines", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/v1/students/ii-1/fines", studentToken, nil)
		srv.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var res FinesResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Len(t, res.Fines, 1)
		assert.Equal(t, 0.0, res.TotalPending) // fine was settled above

		req, rec = newRequest(http.MethodGet, "/v1/students/iii-1/fines", studentToken, nil)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		req, rec = newRequest(http.MethodGet, "/v1/students/ii-1/fines", adminToken, nil)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("unknown fine type rejected", func(t *testing.T) {
		bad := fine
		bad.FineType = "parking"
		req, rec := newRequest(http.MethodPost, "/v1/admin/fines", adminToken, bad)
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
