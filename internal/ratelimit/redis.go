package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mitesh006/Code-duel-backend/internal/logger"
)

// Fixed one second window shared by every process pointing at the same redis and key
type RedisLimiter struct {
	db         *redis.Client
	limiterKey string
	perSecond  int64
	failOpen   bool
	now        func() time.Time
}

var _ Limiter = (*RedisLimiter)(nil)

type RedisLimiterConfig struct {
	RedisClient *redis.Client
	LimiterKey  string
	PerSecond   int64
	// Admit work when redis is unreachable instead of stalling dispatch
	FailOpen bool
}

func NewRedisLimiter(config RedisLimiterConfig) *RedisLimiter {
	return &RedisLimiter{
		db:         config.RedisClient,
		limiterKey: config.LimiterKey,
		perSecond:  config.PerSecond,
		failOpen:   config.FailOpen,
		now:        time.Now,
	}
}

// Takes a slot in the current window if one is left.
// When denied, the returned duration is how long until the next window opens.
func (l *RedisLimiter) Allow(ctx context.Context) (bool, time.Duration, error) {
	now := l.now()
	window := now.Truncate(time.Second)
	key := fmt.Sprintf("evaluator-ratelimit-%s-%d", l.limiterKey, window.Unix())

	var incr *redis.IntCmd
	_, err := l.db.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		// outlive the window a little so slow clocks still see it
		pipe.Expire(ctx, key, 2*time.Second)
		return nil
	})
	if err != nil {
		return l.failOpen, 0, err
	}

	if incr.Val() <= l.perSecond {
		return true, 0, nil
	}

	return false, window.Add(time.Second).Sub(now), nil
}

func (l *RedisLimiter) Wait(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "RedisLimiter.Wait", trace.WithAttributes(
		attribute.String("key", l.limiterKey),
	))
	defer span.End()

	for {
		allowed, wait, err := l.Allow(ctx)
		if err != nil {
			if allowed {
				logger.Logger.WarnContext(ctx, "rate limiter unavailable, failing open", "error", err)
				span.RecordError(err)
				span.SetStatus(codes.Ok, "failed open")
				return nil
			}

			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to reach rate limiter")
			return err
		}

		if allowed {
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "admitted")
			return nil
		}

		span.AddEvent("window_full", trace.WithAttributes(
			attribute.Int64("waitMillis", wait.Milliseconds()),
		))
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			span.SetStatus(codes.Error, "context cancelled")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
