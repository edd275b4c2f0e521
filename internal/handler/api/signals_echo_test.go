package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/internal/repository"
	"SignalDesk/internal/service/cache"
	"SignalDesk/internal/services/timing"
	"SignalDesk/internal/usecase"
)

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, checks ...HealthCheck) *echo.Echo {
	t.Helper()
	now := time.Date(2024, 10, 10, 12, 0, 30, 0, time.UTC)
	clock := timing.NewFixedClock(now)

	store := repository.NewMemoryCandleStore(0)
	start := now.Add(-200 * time.Minute).Truncate(time.Minute)
	for i := 0; i < 200; i++ {
		p := 100 + float64(i)*0.2 + math.Sin(float64(i)/3)
		store.Put(models.Candle{
			Bucket: start.Add(time.Duration(i) * time.Minute),
			Symbol: "AAPL",
			Open:   p - 0.1,
			High:   p + 0.3,
			Low:    p - 0.3,
			Close:  p,
			Volume: 1000 + float64(i%7)*10,
		})
	}

	engine := usecase.NewSignalAnalyzer(store, nil, clock, 0)
	conf := usecase.NewConfluenceAggregator(engine, []domrepo.Timeframe{domrepo.TF1m}, nil)
	an := usecase.NewAnalyzer(engine, conf, cache.NewResultCache(clock))

	h := NewSignalsEchoHandler(nil, an, usecase.NewCandlesUseCase(store), checks...)
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, target string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s: decode body %q: %v", target, rec.Body.String(), err)
	}
	return rec, env
}

func TestAnalyzeEndpoint(t *testing.T) {
	e := newTestServer(t)
	rec, env := do(t, e, "/api/analyze?symbol=aapl&interval=1")
	if rec.Code != http.StatusOK || env.Status != http.StatusOK {
		t.Fatalf("status %d/%d body %s", rec.Code, env.Status, rec.Body.String())
	}
	var res models.ConfluenceResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.PrimarySignal.Symbol != "AAPL" || res.PrimarySignal.Interval != "1" {
		t.Fatalf("unexpected primary signal %+v", res.PrimarySignal)
	}
	if res.OverallConfluence < 0 || res.OverallConfluence > 95 {
		t.Fatalf("overall confluence out of range: %d", res.OverallConfluence)
	}
	if got := rec.Header().Get(echo.HeaderCacheControl); got == "" {
		t.Fatalf("expected cache-control header")
	}
}

func TestAnalyzeEndpointErrors(t *testing.T) {
	e := newTestServer(t)
	cases := []struct {
		name   string
		target string
		status int
	}{
		{"missing symbol", "/api/analyze?interval=5", http.StatusBadRequest},
		{"bad symbol", "/api/analyze?symbol=AA%20PL", http.StatusBadRequest},
		{"bad interval", "/api/analyze?symbol=AAPL&interval=7", http.StatusBadRequest},
		{"sentiment not numeric", "/api/analyze?symbol=AAPL&interval=1&sentiment=abc", http.StatusBadRequest},
		{"sentiment out of range", "/api/analyze?symbol=AAPL&interval=1&sentiment=150", http.StatusBadRequest},
		{"no data", "/api/analyze?symbol=MSFT&interval=1", http.StatusUnprocessableEntity},
		{"market no data", "/api/market?symbol=MSFT&interval=1", http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := do(t, e, tc.target)
			if rec.Code != tc.status || env.Status != tc.status {
				t.Fatalf("expected %d, got %d/%d body %s", tc.status, rec.Code, env.Status, rec.Body.String())
			}
		})
	}
}

func TestMarketEndpointWithSentiment(t *testing.T) {
	e := newTestServer(t)
	rec, env := do(t, e, "/api/market?symbol=AAPL&interval=1&sentiment=-40")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var res models.MarketAnalysisResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if res.Validation.Confidence < 0 || res.Validation.Confidence > 100 {
		t.Fatalf("confidence out of range: %d", res.Validation.Confidence)
	}
	if res.Strategy.Key == "" {
		t.Fatalf("expected a selected strategy")
	}
}

func TestStrategiesEndpoint(t *testing.T) {
	e := newTestServer(t)
	rec, env := do(t, e, "/api/strategies")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var defs []models.StrategyDefinition
	if err := json.Unmarshal(env.Data, &defs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(defs) == 0 {
		t.Fatalf("expected strategy catalog")
	}
}

func TestCandlesEndpoint(t *testing.T) {
	e := newTestServer(t)
	rec, env := do(t, e, "/api/candles?symbol=AAPL&tf=5m&n=3")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var res usecase.GetCandlesResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Count != 3 || res.Timeframe != "5m" {
		t.Fatalf("unexpected result %+v", res)
	}

	rec, _ = do(t, e, "/api/candles?symbol=AAPL&from=yesterday")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad from: expected 400, got %d", rec.Code)
	}
	rec, _ = do(t, e, "/api/candles?symbol=AAPL&tf=2m")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad tf: expected 400, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ok := HealthCheck{Name: "store", Check: func(context.Context) error { return nil }}
	rec, _ := do(t, newTestServer(t, ok), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	down := HealthCheck{Name: "clickhouse", Check: func(context.Context) error { return errors.New("dial tcp: refused") }}
	rec, env := do(t, newTestServer(t, ok, down), "/healthz")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var hs healthStatus
	if err := json.Unmarshal(env.Data, &hs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hs.Status != "degraded" || hs.Checks["store"] != "ok" || hs.Checks["clickhouse"] == "ok" {
		t.Fatalf("unexpected health %+v", hs)
	}
}
