package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"habitforge/internal/analytics"
	"habitforge/internal/handler"
	"habitforge/internal/model"
	"habitforge/internal/service"
	"habitforge/pkg/trace"
	"habitforge/pkg/util"
)

const testSecret = "test-secret"

type stubAuth struct{}

func (stubAuth) Register(_ context.Context, email, _ string) (*model.User, error) {
	if email == "taken@example.com" {
		return nil, model.ErrEmailExists
	}
	return &model.User{ID: 1, Email: email}, nil
}

func (stubAuth) Login(_ context.Context, _, password string) (string, error) {
	if password != "longenough" {
		return "", model.ErrInvalidCredentials
	}
	return "token", nil
}

type stubHabits struct {
	lastLoc *time.Location
}

func (s *stubHabits) Create(_ context.Context, userID int, in service.CreateHabitInput) (*model.Habit, error) {
	if in.Name == "" {
		return nil, model.ErrInvalidHabit
	}
	return &model.Habit{ID: "h1", UserID: userID, Name: in.Name}, nil
}

func (s *stubHabits) List(_ context.Context, userID int) ([]model.Habit, error) {
	if userID == 500 {
		return nil, errors.New("connection refused")
	}
	return nil, nil
}

func (s *stubHabits) Delete(_ context.Context, _ int, habitID string) error {
	if habitID != "h1" {
		return model.ErrHabitNotFound
	}
	return nil
}

func (s *stubHabits) ToggleCompletion(_ context.Context, _ int, _ string, date string, loc *time.Location) (bool, error) {
	s.lastLoc = loc
	if date == "2999-01-01" {
		return false, model.ErrFutureDate
	}
	return true, nil
}

func (s *stubHabits) CompletionDates(_ context.Context, _ int, habitID string) ([]string, error) {
	if habitID != "h1" {
		return nil, model.ErrHabitNotFound
	}
	return []string{"2026-10-19"}, nil
}

type stubAnalytics struct {
	changes chan struct{}
}

func (s *stubAnalytics) Dashboard(_ context.Context, _ int, loc *time.Location) (*analytics.Dashboard, error) {
	return analytics.Compute(nil, nil, time.Date(2026, 10, 19, 12, 0, 0, 0, loc), analytics.NewGenerator(analytics.FixedPicker(0))), nil
}

func (s *stubAnalytics) Watch(context.Context, int) (<-chan struct{}, error) {
	return s.changes, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	router    *Router
	habits    *stubHabits
	analytics *stubAnalytics
}

func newTestEnv(t *testing.T, db Pinger) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zap.NewNop()
	habits := &stubHabits{}
	an := &stubAnalytics{changes: make(chan struct{}, 1)}
	h := Handlers{
		Auth:      handler.NewAuthHandler(stubAuth{}, log),
		Habits:    handler.NewHabitHandler(habits, time.UTC, log),
		Analytics: handler.NewAnalyticsHandler(an, time.UTC, log),
	}
	return &testEnv{
		router:    NewRouter(h, testSecret, log, db, nil),
		habits:    habits,
		analytics: an,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, userID int, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if userID > 0 {
		token, err := util.GenerateJWT(userID, testSecret, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.Engine.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t, stubPinger{})
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", "", 0).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodHead, "/health", "", 0).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/readyz", "", 0).Code)

	down := newTestEnv(t, stubPinger{err: errors.New("down")})
	w := down.do(t, http.MethodGet, "/readyz", "", 0)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "db_not_ready")
}

func TestTraceHeaderEchoed(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/healthz", "", 0, trace.HeaderName, "abc-123")
	assert.Equal(t, "abc-123", w.Header().Get(trace.HeaderName))

	w = env.do(t, http.MethodGet, "/healthz", "", 0)
	assert.NotEmpty(t, w.Header().Get(trace.HeaderName))
}

func TestAuthRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/register", `{"email":"new@example.com","password":"longenough"}`, 0)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/register", `{"email":"taken@example.com","password":"longenough"}`, 0)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/register", `{"email":""}`, 0)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/login", `{"email":"a@example.com","password":"nope"}`, 0)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/login", `{"email":"a@example.com","password":"longenough"}`, 0)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"token"}`, w.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t, nil)
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/habits", "", 0).Code)

	req := httptest.NewRequest(http.MethodGet, "/analytics", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w := httptest.NewRecorder()
	env.router.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHabitRoutes(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/habits", "", 1)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"habits":[]}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/habits", "", 500)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/habits", `{"name":"Read"}`, 1)
	assert.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, http.MethodPost, "/habits", `{"name":""}`, 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/habits", `not json`, 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, env.do(t, http.MethodDelete, "/habits/h1", "", 1).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/habits/zzz", "", 1).Code)

	w = env.do(t, http.MethodGet, "/habits/h1/completions", "", 1)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"habit_id":"h1","dates":["2026-10-19"]}`, w.Body.String())
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/habits/zzz/completions", "", 1).Code)
}

func TestToggleRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/habits/h1/toggle", "", 1)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"habit_id":"h1","completed":true}`, w.Body.String())
	assert.Equal(t, time.UTC, env.habits.lastLoc)

	w = env.do(t, http.MethodPost, "/habits/h1/toggle", `{"date":"2999-01-01"}`, 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/habits/h1/toggle?tz=Not/AZone", "", 1)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsRoute(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/analytics", "", 1)
	require.Equal(t, http.StatusOK, w.Code)
	var d analytics.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "2026-10-19", d.Date)
	assert.Equal(t, analytics.EmptyInsight, d.Insight)
	assert.Len(t, d.Calendar, 35)

	w = env.do(t, http.MethodGet, "/analytics", "", 1, handler.TimezoneHeader, "Mars/Olympus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyticsStream(t *testing.T) {
	env := newTestEnv(t, nil)
	env.analytics.changes <- struct{}{}
	close(env.analytics.changes)

	w := env.do(t, http.MethodGet, "/analytics/stream", "", 1)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream"), w.Header().Get("Content-Type"))
	assert.Equal(t, 2, strings.Count(w.Body.String(), "event:dashboard"))
}

func TestWorkerRouterReadiness(t *testing.T) {
	gin.SetMode(gin.TestMode)
	up := true
	r := NewWorkerRouter(zap.NewNop(),
		ReadyCheck{Name: "redis", Pinger: stubPinger{}},
		ReadyCheck{Name: "publisher", Pinger: PingFunc(func(context.Context) error {
			if !up {
				return errors.New("closed")
			}
			return nil
		})},
	)

	serve := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	assert.Equal(t, http.StatusOK, serve("/healthz").Code)
	assert.Equal(t, http.StatusOK, serve("/readyz").Code)
	assert.Equal(t, http.StatusOK, serve("/metrics").Code)

	up = false
	w := serve("/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "publisher_not_ready")
}
