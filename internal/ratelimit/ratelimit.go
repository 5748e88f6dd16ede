package ratelimit

import (
	"context"

	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("github.com/mitesh006/Code-duel-backend/internal/ratelimit")

// Gate in front of dispatch. Wait blocks until a token is available or ctx is done.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Token bucket scoped to this process
type LocalLimiter struct {
	limiter *rate.Limiter
}

var _ Limiter = (*LocalLimiter)(nil)

// `burst` below 1 is raised to 1 so the limiter can ever admit anything
func NewLocalLimiter(perSecond float64, burst int) *LocalLimiter {
	return &LocalLimiter{limiter: rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))}
}

func (l *LocalLimiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
