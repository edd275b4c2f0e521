package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	models "SignalDesk/internal/domain/models"
	domrepo "SignalDesk/internal/domain/repository"
	"SignalDesk/internal/service/metrics"
	"SignalDesk/internal/usecase"
	xhttp "SignalDesk/pkg/http"
	xlogger "SignalDesk/pkg/logger"
)

func init() {
	_ = xhttp.RegisterValidation("interval", func(s string) bool {
		_, ok := domrepo.ParseInterval(s)
		return ok
	})
}

// HealthCheck reports the state of one dependency; nil means healthy.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// SignalsEchoHandler serves the analysis, catalog and candle endpoints.
type SignalsEchoHandler struct {
	logger  *xlogger.Logger
	an      *usecase.Analyzer
	candles *usecase.CandlesUseCase
	checks  []HealthCheck
}

func NewSignalsEchoHandler(logger *xlogger.Logger, an *usecase.Analyzer, candles *usecase.CandlesUseCase, checks ...HealthCheck) *SignalsEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	metrics.Register()
	return &SignalsEchoHandler{logger: logger, an: an, candles: candles, checks: checks}
}

func (h *SignalsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/analyze", h.Analyze)
	g.GET("/market", h.Market)
	g.GET("/strategies", h.Strategies)
	g.GET("/candles", h.Candles)
}

func (h *SignalsEchoHandler) Analyze(c echo.Context) error {
	start := time.Now()
	params, fail := h.analyzeParams(c, "analyze", start)
	if fail != nil {
		return fail()
	}

	res, err := h.an.Analyze(c.Request().Context(), params)
	if err != nil {
		return h.fail(c, "analyze", start, err)
	}
	metrics.Observe("analyze", start, "")
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) Market(c echo.Context) error {
	start := time.Now()
	params, fail := h.analyzeParams(c, "market", start)
	if fail != nil {
		return fail()
	}

	res, err := h.an.AnalyzeMarket(c.Request().Context(), params)
	if err != nil {
		return h.fail(c, "market", start, err)
	}
	metrics.Observe("market", start, "")
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) Strategies(c echo.Context) error {
	start := time.Now()
	res, err := h.an.Strategies(c.Request().Context())
	if err != nil {
		return h.fail(c, "strategies", start, err)
	}
	metrics.Observe("strategies", start, "")
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=300")
	return xhttp.SuccessResponse(c, res)
}

func (h *SignalsEchoHandler) Candles(c echo.Context) error {
	start := time.Now()
	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.Observe("candles", start, "ERR_VALIDATION")
		return xhttp.BadRequestResponse(c, verr)
	}
	from, _, okFrom := xhttp.QueryTime(c, "from")
	to, _, okTo := xhttp.QueryTime(c, "to")
	if !okFrom || !okTo {
		metrics.Observe("candles", start, "ERR_BAD_REQUEST")
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from/to must be RFC3339 or unix time"))
	}

	res, err := h.candles.GetCandles(c.Request().Context(), usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		From:      from,
		To:        to,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.N,
	})
	if err != nil {
		return h.fail(c, "candles", start, err)
	}
	metrics.Observe("candles", start, "")
	return xhttp.SuccessResponse(c, res)
}

type healthStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Health runs every registered check with a short deadline. Any failure turns the response into 503.
func (h *SignalsEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	out := healthStatus{Status: "ok"}
	if len(h.checks) > 0 {
		out.Checks = make(map[string]string, len(h.checks))
	}
	for _, hc := range h.checks {
		if err := hc.Check(ctx); err != nil {
			out.Status = "degraded"
			out.Checks[hc.Name] = err.Error()
			h.logger.Warn("health.check_failed", xlogger.String("check", hc.Name), xlogger.Error(err))
			continue
		}
		out.Checks[hc.Name] = "ok"
	}
	if out.Status != "ok" {
		return xhttp.DataResponse(c, http.StatusServiceUnavailable, out)
	}
	return xhttp.SuccessResponse(c, out)
}

// analyzeParams binds the shared analyze/market query. On failure it returns a func that writes
// the 400 response.
func (h *SignalsEchoHandler) analyzeParams(c echo.Context, endpoint string, start time.Time) (usecase.AnalyzeParams, func() error) {
	req := &models.AnalyzeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		metrics.Observe(endpoint, start, "ERR_VALIDATION")
		return usecase.AnalyzeParams{}, func() error { return xhttp.BadRequestResponse(c, verr) }
	}
	p := usecase.AnalyzeParams{Symbol: req.Symbol, Interval: req.Interval}
	if req.Sentiment != "" {
		s, err := strconv.ParseFloat(req.Sentiment, 64)
		if err != nil || s < -100 || s > 100 {
			metrics.Observe(endpoint, start, "ERR_BAD_REQUEST")
			appErr := xhttp.NewAppError("ERR_RANGE", "sentiment", "sentiment must be between -100 and 100", http.StatusBadRequest)
			return usecase.AnalyzeParams{}, func() error { return xhttp.AppErrorResponse(c, appErr) }
		}
		p.Sentiment = &s
	}
	return p, nil
}

func (h *SignalsEchoHandler) fail(c echo.Context, endpoint string, start time.Time, err error) error {
	appErr := toAppError(err)
	metrics.Observe(endpoint, start, appErr.Code)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" usecase error", xlogger.Error(err))
	} else {
		h.logger.Debug(endpoint+" rejected", xlogger.String("code", appErr.Code), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func toAppError(err error) *xhttp.AppError {
	switch {
	case errors.Is(err, models.ErrInsufficientMarketData):
		return xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", "not enough market data to analyze").WithError(err)
	case errors.Is(err, models.ErrUnsupportedInterval):
		return xhttp.NewAppError("ERR_INTERVAL", "interval", "unsupported interval", http.StatusBadRequest).WithError(err)
	case errors.Is(err, models.ErrInvalidSymbol):
		return xhttp.NewAppError("ERR_SYMBOL", "symbol", "invalid symbol", http.StatusBadRequest).WithError(err)
	case errors.Is(err, usecase.ErrInvalidRange):
		return xhttp.BadRequestError("from must not be after to").WithError(err)
	default:
		return xhttp.InternalError("analysis failed").WithError(err)
	}
}
