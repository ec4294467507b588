package http

import (
	"errors"
	"fmt"
	"net/http"

	"backtest-worker/internal/dto"
	"backtest-worker/internal/repository"
	"backtest-worker/pkg/logger"
	"backtest-worker/pkg/middleware"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func (h *HttpAPIHandler) SetupBacktest(base *echo.Group) {
	v1 := base.Group("/v1/backtests", middleware.NewBearerAuthMiddleware(h.cfg.API.AuthToken))
	{
		v1.POST("/dispatch", h.dispatch)
		v1.GET("/:id", h.getJob)
	}
}

// dispatch runs one batch of queued jobs. The body is optional.
func (h *HttpAPIHandler) dispatch(c echo.Context) error {
	ctx := c.Request().Context()

	req := new(dto.DispatchRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
	}
	if err := h.validator.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	}

	outcomes, err := h.service.DispatcherService.Dispatch(ctx, req.MaxJobs)
	if err != nil {
		h.log.ErrorContext(ctx, "Dispatch request failed", logger.ErrorField(err))
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, dto.DispatchResponse{
		Message: fmt.Sprintf("Processed %d backtest jobs", len(outcomes)),
		Results: outcomes,
	})
}

func (h *HttpAPIHandler) getJob(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBaseResponse(http.StatusBadRequest, "invalid job id", nil))
	}

	view, err := h.service.BacktestService.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return c.JSON(http.StatusNotFound, dto.NewBaseResponse(http.StatusNotFound, "job not found", nil))
		}
		h.log.ErrorContext(ctx, "Failed to get backtest job", logger.ErrorField(err), logger.StringField("job_id", id.String()))
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, "failed to get job", nil))
	}

	return c.JSON(http.StatusOK, dto.NewSuccessResponse("ok", view))
}
