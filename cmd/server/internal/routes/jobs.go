package routes

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mitesh006/Code-duel-backend/cmd/server/internal/response"
	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/queue"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

var tracer = otel.Tracer("github.com/mitesh006/Code-duel-backend/cmd/server/internal/routes")

const defaultFailedLimit = 50

type InFlighter interface {
	InFlight() int64
}

type (
	StatsResponse struct {
		Counts   types.JobCounts `json:"counts"`
		WorkerID string          `json:"worker_id"`
		InFlight int64           `json:"in_flight"`
	}

	FailedResponse struct {
		Jobs []types.FailedJob `json:"jobs"`
	}

	failedParams struct {
		Limit int `query:"limit" validate:"omitempty,min=1,max=500"`
	}
)

// Read only inspection of the job queue for operators and monitoring
type JobsHandler struct {
	queue    queue.Queuer
	pool     InFlighter
	workerID string
}

func NewJobsHandler(q queue.Queuer, pool InFlighter, workerID string) *JobsHandler {
	return &JobsHandler{queue: q, pool: pool, workerID: workerID}
}

func (h *JobsHandler) AddRoutes(e *echo.Echo) {
	g := e.Group("/jobs")
	g.GET("/stats/", h.Stats)
	g.GET("/failed/", h.Failed)
}

func (h *JobsHandler) Stats(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "JobsHandler.Stats")
	defer span.End()

	counts, err := h.queue.Counts(ctx)
	if err != nil {
		logger.Logger.ErrorContext(ctx, "failed to count jobs", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to count jobs")
		return response.ServiceUnavailableError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "counted jobs")
	return c.JSON(http.StatusOK, StatsResponse{
		Counts:   counts,
		WorkerID: h.workerID,
		InFlight: h.pool.InFlight(),
	})
}

func (h *JobsHandler) Failed(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "JobsHandler.Failed")
	defer span.End()

	var params failedParams
	if err := c.Bind(&params); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to bind params")
		return response.ValidationError(err)
	}
	if err := c.Validate(params); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid params")
		return response.ValidationError(err)
	}
	if params.Limit == 0 {
		params.Limit = defaultFailedLimit
	}
	span.SetAttributes(attribute.Int("limit", params.Limit))

	failed, err := h.queue.ListFailed(ctx, params.Limit)
	if err != nil {
		logger.Logger.ErrorContext(ctx, "failed to list failed jobs", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list failed jobs")
		return response.ServiceUnavailableError
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "listed failed jobs")
	return c.JSON(http.StatusOK, FailedResponse{Jobs: failed})
}
