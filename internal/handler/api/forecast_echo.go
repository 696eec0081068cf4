package api

import (
	"context"
	"errors"

	models "StayCast/internal/domain/models"
	domrepo "StayCast/internal/domain/repository"
	"StayCast/internal/usecase"
	"StayCast/pkg/cache"
	xhttp "StayCast/pkg/http"
	xlogger "StayCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ForecastEchoHandler exposes run control and read endpoints over the run
// artifacts cached by the coordinator.
type ForecastEchoHandler struct {
	logger *xlogger.Logger
	coord  *usecase.Coordinator
	cache  cache.Service
	source domrepo.PanelSource
}

func NewForecastEchoHandler(logger *xlogger.Logger, coord *usecase.Coordinator, cacheSvc cache.Service, source domrepo.PanelSource) *ForecastEchoHandler {
	return &ForecastEchoHandler{logger: logger, coord: coord, cache: cacheSvc, source: source}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/run", h.Run)
	g.GET("/run/last", h.LastRun)
	g.GET("/selection", h.Selection)
	g.GET("/scores", h.Scores)
	g.GET("/forecast", h.Forecast)
	g.GET("/health", h.Health)
}

// Run launches a full evaluation run in the background. The run outlives the
// request, so it gets a fresh context rather than the request's.
func (h *ForecastEchoHandler) Run(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.coord.Running() {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("a run is already in progress"))
	}

	targets := req.Targets
	go func() {
		if _, err := h.coord.Run(context.Background(), targets...); err != nil {
			h.logger.Error("background run failed", xlogger.Error(err))
		}
	}()

	return xhttp.SuccessResponse(c, map[string]string{"status": "started"})
}

func (h *ForecastEchoHandler) LastRun(c echo.Context) error {
	summary := h.coord.LastSummary()
	if summary == nil {
		return xhttp.NotFoundResponse(c, "no completed run")
	}
	return xhttp.SuccessResponse(c, summary)
}

func (h *ForecastEchoHandler) Selection(c echo.Context) error {
	req := &models.SelectionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var sel models.SelectionResult
	if err := h.cache.Get(c.Request().Context(), "selection:"+req.Target+":"+req.Freq, &sel); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return xhttp.NotFoundResponse(c, "no selection for "+req.Target+"/"+req.Freq)
		}
		h.logger.Error("selection cache error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, sel)
}

func (h *ForecastEchoHandler) Scores(c echo.Context) error {
	req := &models.ScoresRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var scores []models.SegmentScore
	if err := h.cache.Get(c.Request().Context(), "scores:"+req.Target+":"+req.Freq, &scores); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return xhttp.NotFoundResponse(c, "no scores for "+req.Target+"/"+req.Freq)
		}
		h.logger.Error("scores cache error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	if req.Series != "" {
		filtered := scores[:0]
		for _, sc := range scores {
			if sc.SeriesID == req.Series {
				filtered = append(filtered, sc)
			}
		}
		scores = filtered
	}
	return xhttp.SuccessResponse(c, scores)
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	var bySeries map[string][]models.Point
	if err := h.cache.Get(c.Request().Context(), "forecast:"+req.Target+":"+req.Freq, &bySeries); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return xhttp.NotFoundResponse(c, "no forecast for "+req.Target+"/"+req.Freq)
		}
		h.logger.Error("forecast cache error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	points, ok := bySeries[req.Series]
	if !ok {
		return xhttp.NotFoundResponse(c, "no forecast for series "+req.Series)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"series_id": req.Series,
		"target":    req.Target,
		"frequency": req.Freq,
		"points":    points,
	})
}

func (h *ForecastEchoHandler) Health(c echo.Context) error {
	if err := h.source.Health(c.Request().Context()); err != nil {
		h.logger.Error("health check failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("panel source unreachable"))
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
