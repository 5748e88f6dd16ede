package cmds

import (
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mitesh006/Code-duel-backend/cmd/scheduler/internal/exit"
	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/migrations"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to date",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "migrateCmd")
		defer span.End()

		span.SetAttributes(attribute.Bool("down", migrateDown))

		var err error
		if migrateDown {
			logger.Logger.WarnContext(ctx, "rolling back every migration")
			err = migrations.Down(ctx, db)
		} else {
			err = migrations.Up(ctx, db)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "migration failed")
			return exit.Wrap(exit.CodeErrored, err)
		}

		logger.Logger.InfoContext(ctx, "migrations complete", "down", migrateDown)

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "migrated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Roll back every migration instead")
}
