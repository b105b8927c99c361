package api

import (
	"errors"
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/models"
	"github.com/garen0616/sp500-hit-tester-stable/internal/domain/repository"
	"github.com/garen0616/sp500-hit-tester-stable/internal/usecase"
	xhttp "github.com/garen0616/sp500-hit-tester-stable/pkg/http"
	applogger "github.com/garen0616/sp500-hit-tester-stable/pkg/logger"
)

// BacktestHandler exposes the run endpoints over Echo.
type BacktestHandler struct {
	log    *applogger.Logger
	engine *usecase.Engine
	market repository.MarketData
	hub    *usecase.ProgressHub
}

// NewBacktestHandler creates the handler.
func NewBacktestHandler(log *applogger.Logger, engine *usecase.Engine, market repository.MarketData, hub *usecase.ProgressHub) *BacktestHandler {
	return &BacktestHandler{log: log, engine: engine, market: market, hub: hub}
}

var _ xhttp.Handler = (*BacktestHandler)(nil)

// RegisterRoutes registers the API routes.
func (h *BacktestHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/run-test", h.RunTest)
	g.POST("/run-test/stop", h.StopRun)
	g.GET("/run-test/progress", h.Progress)
	g.POST("/backtest/banded", h.RunBanded)
	g.GET("/meta", h.Meta)
	g.GET("/health", h.Health)
}

// RunTest starts a directional hit run and blocks until it completes.
func (h *BacktestHandler) RunTest(c echo.Context) error {
	var req models.RunRequest
	if payload := xhttp.ReadAndValidateRequest(c, &req); payload != nil {
		return xhttp.BadRequestResponse(c, payload)
	}

	result, usage, err := h.engine.RunDirectional(c.Request().Context(), req)
	if err != nil {
		return h.runError(c, err, usage)
	}
	return xhttp.SuccessResponse(c, result)
}

// RunBanded starts a banded/target run. format=csv renders the rows as a
// CSV attachment instead of JSON.
func (h *BacktestHandler) RunBanded(c echo.Context) error {
	var req models.BandedRequest
	if payload := xhttp.ReadAndValidateRequest(c, &req); payload != nil {
		return xhttp.BadRequestResponse(c, payload)
	}

	result, usage, err := h.engine.RunBanded(c.Request().Context(), req)
	if err != nil {
		return h.runError(c, err, usage)
	}

	if c.QueryParam("format") == "csv" {
		return writeBandedCSV(c, result)
	}
	return xhttp.SuccessResponse(c, result)
}

// StopRun flags the active run for cancellation. Idempotent: stopping when
// nothing runs reports stopped=false.
func (h *BacktestHandler) StopRun(c echo.Context) error {
	runID, stopped := h.engine.Cancel()
	if stopped && h.log != nil {
		h.log.Info("run cancellation requested", applogger.String("run", runID))
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"stopped": stopped,
		"runId":   runID,
	})
}

// Meta returns the index membership and the distinct sector list.
func (h *BacktestHandler) Meta(c echo.Context) error {
	rows, err := h.market.Constituents(c.Request().Context())
	if err != nil {
		if h.log != nil {
			h.log.Error("constituents fetch failed", applogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not load constituents").WithError(err))
	}

	seen := make(map[string]struct{})
	sectors := make([]string, 0)
	for _, r := range rows {
		if r.Sector == "" {
			continue
		}
		if _, ok := seen[r.Sector]; ok {
			continue
		}
		seen[r.Sector] = struct{}{}
		sectors = append(sectors, r.Sector)
	}
	sort.Strings(sectors)

	return xhttp.SuccessResponse(c, map[string]interface{}{
		"constituents": rows,
		"sectors":      sectors,
	})
}

// Health reports liveness and whether a run is active.
func (h *BacktestHandler) Health(c echo.Context) error {
	payload := map[string]interface{}{"status": "ok"}
	if run := h.engine.Active(); run != nil {
		payload["activeRun"] = run.ID
	}
	return xhttp.SuccessResponse(c, payload)
}

// runError maps pipeline errors onto the HTTP surface. Cancellation is a
// conflict, not a failure; both terminal shapes carry the usage collected
// before the run ended.
func (h *BacktestHandler) runError(c echo.Context, err error, usage *models.UsageSummary) error {
	switch {
	case errors.Is(err, usecase.ErrBadRequest), errors.Is(err, usecase.ErrBadSelector):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	case errors.Is(err, models.ErrRunActive):
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("a run is already in progress"))
	case errors.Is(err, models.ErrRunCancelled):
		return xhttp.DataResponse(c, http.StatusConflict, map[string]interface{}{
			"cancelled":  true,
			"tokenUsage": usage,
		})
	default:
		if h.log != nil {
			h.log.Error("run failed", applogger.Error(err))
		}
		return xhttp.DataResponse(c, http.StatusInternalServerError, map[string]interface{}{
			"error":      err.Error(),
			"tokenUsage": usage,
		})
	}
}
