package jobs

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"

	"github.com/mitesh006/Code-duel-backend/internal/logger"
)

type ElectionTimings struct {
	LeaseDuration time.Duration
	RenewDeadline time.Duration
	RetryPeriod   time.Duration
	// pause between losing leadership and campaigning again
	Backoff time.Duration
}

var DefaultElectionTimings = ElectionTimings{
	LeaseDuration: 15 * time.Second,
	RenewDeadline: 10 * time.Second,
	RetryPeriod:   2 * time.Second,
	Backoff:       30 * time.Second,
}

// Runs the retention sweep on exactly one replica, chosen through a coordination Lease
type RetentionController struct {
	client    kubernetes.Interface
	sweeper   Sweeper
	namespace string
	leaseName string
	id        string
	interval  time.Duration
	timings   ElectionTimings
}

func NewRetentionController(
	client kubernetes.Interface,
	sweeper Sweeper,
	namespace string,
	leaseName string,
	id string,
	interval time.Duration,
	timings ElectionTimings,
) *RetentionController {
	return &RetentionController{
		client:    client,
		sweeper:   sweeper,
		namespace: namespace,
		leaseName: leaseName,
		id:        id,
		interval:  interval,
		timings:   timings,
	}
}

// Runs leader election in loop until `ctx` is cancelled
func (s *RetentionController) Run(ctx context.Context) {
	lock := &resourcelock.LeaseLock{
		Client: s.client.CoordinationV1(),
		LeaseMeta: metav1.ObjectMeta{
			Name:      s.leaseName,
			Namespace: s.namespace,
		},
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: s.id,
		},
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		leaderelection.RunOrDie(ctx, leaderelection.LeaderElectionConfig{
			Lock:            lock,
			LeaseDuration:   s.timings.LeaseDuration,
			RenewDeadline:   s.timings.RenewDeadline,
			RetryPeriod:     s.timings.RetryPeriod,
			ReleaseOnCancel: true,
			Callbacks: leaderelection.LeaderCallbacks{
				OnStartedLeading: func(ctx context.Context) {
					logger.Logger.InfoContext(ctx, "started leading retention", "id", s.id)
					RunSweeper(ctx, s.sweeper, s.interval)
				},
				OnStoppedLeading: func() {
					logger.Logger.Info("stopped leading retention", "id", s.id)
				},
			},
		})

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.timings.Backoff):
		}
	}
}

// Sweeps immediately and then every `interval` until `ctx` is cancelled
func RunSweeper(ctx context.Context, sweeper Sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		sweepOnce(ctx, sweeper)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func sweepOnce(ctx context.Context, sweeper Sweeper) {
	ctx, span := tracer.Start(ctx, "RetentionSweep", trace.WithNewRoot())
	defer span.End()

	result, err := sweeper.RetentionSweep(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Logger.ErrorContext(ctx, "retention sweep failed", "error", err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "retention sweep failed")
		return
	}

	span.SetAttributes(
		attribute.Int64("completedPurged", result.CompletedPurged),
		attribute.Int64("failedPurged", result.FailedPurged),
		attribute.Int64("failedArchived", result.FailedArchived),
	)
	if result.CompletedPurged+result.FailedPurged > 0 {
		logger.Logger.InfoContext(ctx, "retention sweep purged jobs",
			"completedPurged", result.CompletedPurged,
			"failedPurged", result.FailedPurged,
			"failedArchived", result.FailedArchived,
		)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "swept")
}
