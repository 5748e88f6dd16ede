package cmds

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"

	"github.com/mitesh006/Code-duel-backend/cmd/scheduler/internal/exit"
	"github.com/mitesh006/Code-duel-backend/internal/config"
	"github.com/mitesh006/Code-duel-backend/internal/database"
	"github.com/mitesh006/Code-duel-backend/internal/logger"
)

var tracer = otel.Tracer("github.com/mitesh006/Code-duel-backend/cmd/scheduler/cmds")

// Populated before any subcommand runs
var (
	conf *config.Config
	db   *gorm.DB
)

var rootCmd = &cobra.Command{
	Use:           "scheduler",
	Short:         "Out of band tasks for the evaluator: daily trigger, retention and maintenance",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "rootCmd.PersistentPreRunE")
		defer span.End()

		var err error
		conf, err = config.GetConfig()
		if err != nil {
			return exit.Wrap(exit.CodeErrored, fmt.Errorf("failed to load config: %w", err))
		}

		logger.LogLevel.Set(slog.Level(conf.Logging.App.Level))

		db, err = database.Open(ctx, conf)
		if err != nil {
			return exit.Wrap(exit.CodeErrored, err)
		}

		return nil
	},
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
