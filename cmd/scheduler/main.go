package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	otellib "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/mitesh006/Code-duel-backend/cmd/scheduler/cmds"
	"github.com/mitesh006/Code-duel-backend/cmd/scheduler/internal/exit"
	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/otel"
)

var tracer = otellib.Tracer("github.com/mitesh006/Code-duel-backend/scheduler")

func runApp(ctx context.Context) int {
	useOTLP, err := strconv.ParseBool(os.Getenv("USE_OTLP"))
	if err != nil {
		logger.Logger.Warn("USE_OTLP env var is invalid", "error", err)
		useOTLP = false
	}

	shutdown, err := otel.SetupOTelSDK(ctx, "code-duel-scheduler", useOTLP)
	if err != nil {
		logger.Logger.Warn("failed to setup otel sdk", "error", err)
	} else {
		defer func() {
			fail := shutdown(context.Background())
			if fail != nil {
				logger.Logger.Warn("no clean shutdown for otel", "error", fail)
			}
		}()
	}

	ctx, span := tracer.Start(ctx, "Scheduler", trace.WithNewRoot())
	defer span.End()

	err = cmds.Execute(ctx)
	if err != nil {
		logger.Logger.Error("error executing subcommands", "error", err)

		var ee exit.Error
		if errors.As(err, &ee) {
			return ee.Code
		}
		return exit.CodeErrored
	}

	return exit.CodeOK
}

func main() {
	logger.InitSlog(int(slog.LevelInfo))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := runApp(ctx)
	stop()

	os.Exit(code)
}
