package taskrunner

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/mitesh006/Code-duel-backend/internal/taskrunner")

var ErrShutdownTimeout = errors.New("error shutting down in time")

// Provides a wrapper around [sync.WaitGroup] that has [Shutdown] vs timeout racing functionality
type Client struct {
	running  sync.WaitGroup
	inFlight atomic.Int64

	// cancelled only when Shutdown gives up waiting
	abort       context.Context
	cancelAbort context.CancelFunc
}

func Create() *Client {
	abort, cancel := context.WithCancel(context.Background())
	return &Client{abort: abort, cancelAbort: cancel}
}

// Invokes the provided function as a go routine while tracking its state.
//
// The task context keeps the values of `ctx` but not its cancellation, so a task started
// before shutdown runs to completion. It is cancelled only when [Shutdown] times out.
func (c *Client) Run(ctx context.Context, a func(context.Context)) {
	c.running.Add(1)
	c.inFlight.Add(1)
	go func() {
		defer c.running.Done()
		defer c.inFlight.Add(-1)

		taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		defer cancel()
		stop := context.AfterFunc(c.abort, cancel)
		defer stop()

		//nolint:govet // shadow: intentionally shadow ctx to avoid using the incorrect one.
		ctx, span := tracer.Start(taskCtx, "Run")
		defer span.End()

		a(ctx)

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "ran task")
	}()
}

// Number of tasks currently running
func (c *Client) InFlight() int64 {
	return c.inFlight.Load()
}

// Will race waiting for all of the tasks finishing and `ctx` becoming "done".
// Losing the race cancels the remaining tasks.
func (c *Client) Shutdown(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Shutdown")
	defer span.End()

	done := make(chan struct{})
	go func() {
		c.running.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		c.cancelAbort()
		span.AddEvent("hit_timeout")
		span.RecordError(ErrShutdownTimeout)
		span.SetStatus(codes.Error, "error shutting down in time")
		return ErrShutdownTimeout
	case <-done:
		span.AddEvent("done")
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "finished shutting down")
		return nil
	}
}
