package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donghouse/dongometer/internal/core/config"
	"github.com/donghouse/dongometer/internal/core/db"
	"github.com/donghouse/dongometer/internal/history"
	"github.com/donghouse/dongometer/internal/score"
	"github.com/donghouse/dongometer/internal/store"
	"github.com/donghouse/dongometer/internal/types"
)

var testNow = time.Date(2025, 6, 14, 3, 0, 0, 0, time.UTC)

type testAPI struct {
	router *gin.Engine
	store  *store.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sqlx.Open("sqlite3", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	t.Cleanup(func() { sqldb.Close() })

	require.NoError(t, db.MigrateUp(sqldb))
	queries, err := db.LoadQueries(sqldb)
	require.NoError(t, err)

	// The store stamps events at testNow; the handlers observe one minute
	// later so half-open query ranges ending at "now" include them.
	st := store.New(queries, store.WithClock(func() time.Time { return testNow }))
	params := score.DefaultParams()
	calc := score.NewCalculator(st, params, 0)
	hist := history.New(st, params)

	handlerNow := testNow.Add(time.Minute)
	svc, err := NewService(st, calc, hist, config.Default(), zerolog.Nop(), WithClock(func() time.Time { return handlerNow }))
	require.NoError(t, err)

	router := gin.New()
	svc.Register(router)

	return &testAPI{router: router, store: st}
}

func (a *testAPI) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	a := newTestAPI(t)
	w := a.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecordEventAccepted(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/event", gin.H{
		"type":    "chat_message",
		"value":   2,
		"details": "chaos boost",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decode[RecordEventResponse](t, w)
	assert.Greater(t, resp.Event.ID, int64(0))
	assert.Equal(t, types.EventChatMessage, resp.Event.Type)
	assert.Equal(t, 2.0, resp.Event.Value)
	assert.Equal(t, "chaos boost", resp.Event.Details)
	assert.False(t, resp.Event.Timestamp.IsZero())
	require.NotNil(t, resp.ChaosScore)
	assert.Greater(t, *resp.ChaosScore, 0.0)
	assert.LessOrEqual(t, *resp.ChaosScore, 100.0)
}

func TestRecordEventDefaultsValue(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/event", gin.H{"type": "door_open"})
	require.Equal(t, http.StatusCreated, w.Code)

	resp := decode[RecordEventResponse](t, w)
	assert.Equal(t, 1.0, resp.Event.Value)
}

func TestRecordEventRejectsUnknownType(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/event", gin.H{"type": "explode"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_event_type", decode[map[string]string](t, w)["error"])

	// The rejected event never reaches the log.
	got, err := a.store.Query(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRecordEventRejectsMissingType(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/event", gin.H{"value": 1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_event_type", decode[map[string]string](t, w)["error"])
}

func TestRecordEventRejectsNegativeValue(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/event", gin.H{"type": "pizza", "value": -3})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_value", decode[map[string]string](t, w)["error"])
}

func TestRecordEventRejectsNonNumericValue(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/event", gin.H{"type": "pizza", "value": "lots"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_value", decode[map[string]string](t, w)["error"])
}

func TestRecordEventRejectsMalformedPayload(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/event", json.RawMessage(`["not", "an", "object"]`))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_payload", decode[map[string]string](t, w)["error"])
}

func TestMetricsDormantWithoutEvents(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[MetricsResponse](t, w)
	assert.Zero(t, resp.ChaosScore)
	assert.Zero(t, resp.PizzaTotal)
	assert.Equal(t, "dormant", resp.Status)
}

func TestMetricsAfterDoorOpen(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/event", gin.H{"type": "door_open"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[MetricsResponse](t, w)
	assert.Greater(t, resp.ChaosScore, 0.0)
	assert.LessOrEqual(t, resp.ChaosScore, 100.0)
	assert.Equal(t, 1, resp.WindowCounts[types.EventDoorOpen])
	assert.NotEmpty(t, resp.Status)
	assert.NotEqual(t, "dormant", resp.Status)
}

func TestMetricsStatusMatchesRoundedScore(t *testing.T) {
	a := newTestAPI(t)

	// pizza at 3.3524 lands the raw score just above 20 (about 20.02), which
	// displays as 20.0. The band must follow the displayed value, so this is
	// "calm", not "active".
	w := a.do(t, http.MethodPost, "/api/event", gin.H{"type": "pizza", "value": 3.3524})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[MetricsResponse](t, w)
	assert.Equal(t, 20.0, resp.ChaosScore)
	assert.Equal(t, "calm", resp.Status)
}

func TestMetricsPizzaTotalFollowsResets(t *testing.T) {
	a := newTestAPI(t)

	for _, body := range []gin.H{
		{"type": "pizza", "value": 3},
		{"type": "pizza", "value": 9001},
		{"type": "reset_pizza"},
		{"type": "pizza", "value": 1},
	} {
		w := a.do(t, http.MethodPost, "/api/event", body)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := a.do(t, http.MethodGet, "/api/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1.0, decode[MetricsResponse](t, w).PizzaTotal)
}

func TestHistoryEndpoint(t *testing.T) {
	a := newTestAPI(t)

	for i := 0; i < 3; i++ {
		w := a.do(t, http.MethodPost, "/api/event", gin.H{"type": "chat_message"})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := a.do(t, http.MethodGet, "/api/history?hours=1&width=15m", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HistoryResponse](t, w)
	require.Len(t, resp.Buckets, 4)

	total := 0
	for _, b := range resp.Buckets {
		total += b.Events
	}
	assert.Equal(t, 3, total)
}

func TestHistoryRejectsBadParams(t *testing.T) {
	a := newTestAPI(t)

	for _, path := range []string{
		"/api/history?hours=-1",
		"/api/history?hours=nope",
		"/api/history?width=0s",
		"/api/history?width=wide",
		"/api/leaderboard?top=-5",
	} {
		w := a.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, "invalid_value", decode[map[string]string](t, w)["error"], path)
	}
}

func TestLeaderboardEndpoint(t *testing.T) {
	a := newTestAPI(t)

	w := a.do(t, http.MethodPost, "/api/event", gin.H{"type": "door_open"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do(t, http.MethodGet, "/api/leaderboard?hours=2&width=30m&top=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[HistoryResponse](t, w)
	require.Len(t, resp.Buckets, 2)
	assert.GreaterOrEqual(t, resp.Buckets[0].Score, resp.Buckets[1].Score)
	assert.Greater(t, resp.Buckets[0].Score, 0.0)
}
