package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	otellib "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	k8serrs "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"

	"github.com/mitesh006/Code-duel-backend/cmd/server/internal/jobs"
	"github.com/mitesh006/Code-duel-backend/cmd/server/internal/routes"
	"github.com/mitesh006/Code-duel-backend/internal/config"
	"github.com/mitesh006/Code-duel-backend/internal/database"
	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/migrations"
	"github.com/mitesh006/Code-duel-backend/internal/otel"
	"github.com/mitesh006/Code-duel-backend/internal/queue"
	"github.com/mitesh006/Code-duel-backend/internal/ratelimit"
	"github.com/mitesh006/Code-duel-backend/internal/store"
	"github.com/mitesh006/Code-duel-backend/internal/submissions"
	"github.com/mitesh006/Code-duel-backend/internal/upload"
	"github.com/mitesh006/Code-duel-backend/internal/worker"
)

const (
	name        string = "github.com/mitesh006/Code-duel-backend/server"
	serviceName string = "code-duel-evaluator"
)

var tracer = otellib.Tracer(name)

type server struct {
	router       *echo.Echo
	config       *config.Config
	pool         *worker.Pool
	queue        *queue.PostgresQueuer
	redis        *redis.Client
	k8sClient    kubernetes.Interface
	metrics      metric.Registration
	otelShutdown func(context.Context) error

	// guards the fields below, Shutdown may run before Start when a signal arrives early
	mu          sync.Mutex
	stopping    bool
	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

func initServer(ctx context.Context) (*server, error) {
	server := new(server)

	cfg, err := config.GetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize server config: %w", err)
	}
	server.config = cfg

	shutdownOTel, err := otel.SetupOTelSDK(ctx, serviceName, cfg.Logging.UseOTLP)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OTEL SDK: %w", err)
	}
	defer func() {
		// Something failed to initialize, make sure everything gets flushed to the server
		if server.otelShutdown == nil {
			otelShutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdown())
			defer cancel()

			if err = shutdownOTel(otelShutdownCtx); err != nil {
				logger.Logger.Error("failed to flush otel data", "error", err)
			}
		}
	}()

	ctx, span := tracer.Start(ctx, "initServer")
	defer span.End()

	logger.LogLevel.Set(slog.Level(cfg.Logging.App.Level))

	loc, err := cfg.Location()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load evaluation timezone")
		return nil, fmt.Errorf("failed to load evaluation timezone: %w", err)
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open database")
		return nil, err
	}

	span.AddEvent("initialized database connection")

	err = migrations.Up(ctx, db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to preform database migrations")
		return nil, fmt.Errorf("failed to perform database migrations: %w", err)
	}

	span.AddEvent("migrated database to latest version")

	archive, err := upload.FromConfig(ctx, cfg.Archive)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to construct archiver")
		return nil, fmt.Errorf("failed to construct archiver: %w", err)
	}
	var archiver upload.Uploader
	if archive != nil {
		archiver = archive

		storeID, err := archive.StoreIdentifier(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to reach failed job archive")
			return nil, fmt.Errorf("failed to reach failed job archive: %w", err)
		}
		logger.Logger.InfoContext(ctx, "archiving failed jobs", "store", storeID)
		span.AddEvent("initialized failed job archive")
	}

	server.queue = queue.NewPostgresQueuer(db, queue.OptionsFromConfig(cfg, archiver))
	server.metrics, err = queue.RegisterMetrics(server.queue)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to register queue metrics")
		return nil, fmt.Errorf("failed to register queue metrics: %w", err)
	}

	var limiter ratelimit.Limiter = ratelimit.NewLocalLimiter(cfg.Worker.DispatchPerSecond, 1)
	var metadataCache *submissions.MetadataCache
	if cfg.Redis != nil && cfg.Redis.Host != "" {
		server.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := server.redis.Ping(ctx).Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to reach redis")
			return nil, fmt.Errorf("failed to reach redis: %w", err)
		}

		// shared across replicas so the dispatch rate is global
		limiter = ratelimit.NewRedisLimiter(ratelimit.RedisLimiterConfig{
			RedisClient: server.redis,
			LimiterKey:  "dispatch",
			PerSecond:   max(int64(cfg.Worker.DispatchPerSecond), 1),
			FailOpen:    true,
		})
		metadataCache = submissions.NewMetadataCache(server.redis, cfg.Submissions.MetadataTTL)

		span.AddEvent("initialized redis")
	}

	challengeStore := store.New(db)
	router := jobs.NewRouter(
		jobs.NewFanoutHandler(challengeStore, server.queue),
		jobs.NewMemberHandler(
			challengeStore,
			submissions.NewClient(cfg.Submissions, metadataCache),
			loc,
		),
	)

	server.pool = worker.NewPool(server.queue, router, limiter, worker.Config{
		Concurrency:       cfg.Worker.Concurrency,
		PollInterval:      cfg.Worker.PollInterval,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval(),
	})

	span.AddEvent("initialized worker pool")

	if cfg.K8s != nil && cfg.K8s.Enabled {
		server.k8sClient, err = newK8sClient(cfg.K8s)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create k8s client")
			return nil, err
		}

		span.AddEvent("initialized k8s client")
	}

	e, err := routes.BuildEcho(logger.Logger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "error building router")
		return nil, fmt.Errorf("error building router: %w", err)
	}
	routes.NewJobsHandler(server.queue, server.pool, server.pool.ID()).AddRoutes(e)

	span.AddEvent("created echo router")

	server.otelShutdown = shutdownOTel
	server.router = e

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "initialized server")
	return server, nil
}

func newK8sClient(cfg *config.K8sConfig) (*kubernetes.Clientset, error) {
	var clusterConfig *rest.Config
	var err error
	if cfg.InCluster {
		clusterConfig, err = rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("error fetching in cluster config: %w", err)
		}
	} else {
		clusterConfig, err = clientcmd.BuildConfigFromFlags("", homedir.HomeDir()+"/.kube/config")
		if err != nil {
			return nil, fmt.Errorf("error fetching in home dir cluster config: %w", err)
		}
	}

	clusterConfig.Wrap(func(rt http.RoundTripper) http.RoundTripper {
		retryClient := retryablehttp.NewClient()
		retryClient.RetryMax = 3
		retryClient.RetryWaitMin = 100 * time.Millisecond
		retryClient.RetryWaitMax = 5 * time.Second
		retryClient.Logger = logger.Logger
		retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
			if k8serrs.IsNotFound(err) {
				// don't retry on not found
				return false, nil
			}

			return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
		}
		// Use transport from standard client since retry logic is wrapped into it
		retryClient.HTTPClient.Transport = rt
		return retryClient.StandardClient().Transport
	})

	client, err := kubernetes.NewForConfig(clusterConfig)
	if err != nil {
		return nil, fmt.Errorf("error creating k8s client from cluster config: %w", err)
	}

	return client, nil
}

func (s *server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		logger.Logger.Info("Shutdown requested before start, not starting services")
		return nil
	}

	s.pool.Start(ctx)

	sweepCtx, sweepCancel := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	s.sweepCancel = sweepCancel
	s.sweepDone = sweepDone
	s.mu.Unlock()

	interval := s.config.Queue.Retention.SweepInterval
	go func() {
		defer close(sweepDone)
		if s.k8sClient == nil {
			jobs.RunSweeper(sweepCtx, s.queue, interval)
			return
		}

		jobs.NewRetentionController(
			s.k8sClient,
			s.queue,
			s.config.K8s.Namespace,
			s.config.K8s.LeaseName,
			s.pool.ID(),
			interval,
			jobs.DefaultElectionTimings,
		).Run(sweepCtx)
	}()

	logger.Logger.Info("Starting services...", "workerID", s.pool.ID())

	err := s.router.Start(s.config.ListenAddress)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *server) Shutdown() error {
	var errs error

	ctx, cancelTimeout := context.WithTimeout(context.Background(), s.config.GracefulShutdown())
	defer cancelTimeout()

	s.mu.Lock()
	s.stopping = true
	sweepCancel, sweepDone := s.sweepCancel, s.sweepDone
	s.mu.Unlock()

	if sweepCancel != nil {
		sweepCancel()
		select {
		case <-sweepDone:
		case <-ctx.Done():
		}
	}

	// stop taking jobs and let in-flight ones finish before the router goes away
	if err := s.pool.Stop(ctx); err != nil {
		errs = errors.Join(errs, fmt.Errorf("failed to drain worker pool: %w", err))
	}

	if err := s.router.Shutdown(ctx); err != nil {
		errs = errors.Join(errs, err)
	}

	if s.metrics != nil {
		errs = errors.Join(errs, s.metrics.Unregister())
	}

	if s.redis != nil {
		errs = errors.Join(errs, s.redis.Close())
	}

	if s.otelShutdown != nil {
		errs = errors.Join(errs, s.otelShutdown(ctx))
	}

	return errs
}

func main() {
	ctx, cancelSignal := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)

	logger.InitSlog(int(slog.LevelInfo))

	server, err := initServer(ctx)
	if err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	errch := make(chan error, 1)
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Got shutdown signal!")
		errch <- server.Shutdown()
		close(errch)
	}()

	if err := server.Start(ctx); err != nil {
		logger.Logger.Error(err.Error())
		cancelSignal()
		os.Exit(1)
	}

	if err := <-errch; err != nil {
		logger.Logger.Error("Error shutting down server", "error", err)
	}

	cancelSignal()
}
