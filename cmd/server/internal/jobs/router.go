package jobs

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mitesh006/Code-duel-backend/internal/models"
	"github.com/mitesh006/Code-duel-backend/internal/queue"
	"github.com/mitesh006/Code-duel-backend/internal/types"
	"github.com/mitesh006/Code-duel-backend/internal/worker"
)

// Dispatches dequeued jobs to the handler for their kind
type Router struct {
	fanout *FanoutHandler
	member *MemberHandler
}

var (
	_ worker.Handler        = (*Router)(nil)
	_ types.PayloadVisitor = (*Router)(nil)
)

func NewRouter(fanout *FanoutHandler, member *MemberHandler) *Router {
	return &Router{fanout: fanout, member: member}
}

func (r *Router) Handle(ctx context.Context, job *models.Job) error {
	ctx, span := tracer.Start(ctx, "Router.Handle", trace.WithAttributes(
		attribute.String("jobID", job.ID.String()),
		attribute.String("kind", string(job.Kind)),
		attribute.Int("attempt", job.Attempt),
	))
	defer span.End()

	payload, err := types.DecodePayload(job.Kind, job.Payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "undecodable payload")
		return queue.WrapPoisonError(err)
	}

	if err := payload.Accept(ctx, r); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		return err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "handled job")
	return nil
}

func (r *Router) VisitChallengeEvaluation(ctx context.Context, p *types.ChallengeEvaluation) error {
	_, err := r.fanout.FanOut(ctx, p)
	return err
}

func (r *Router) VisitMemberEvaluation(ctx context.Context, p *types.MemberEvaluation) error {
	_, err := r.member.Evaluate(ctx, p)
	return err
}
