package cmds

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"

	"github.com/mitesh006/Code-duel-backend/cmd/scheduler/internal/exit"
	"github.com/mitesh006/Code-duel-backend/internal/queue"
	"github.com/mitesh006/Code-duel-backend/internal/upload"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one retention sweep over finished jobs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "sweepCmd")
		defer span.End()

		archive, err := upload.FromConfig(ctx, conf.Archive)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to construct archiver")
			return exit.Wrap(exit.CodeErrored, fmt.Errorf("failed to construct archiver: %w", err))
		}
		var archiver upload.Uploader
		if archive != nil {
			archiver = archive
		}

		q := queue.NewPostgresQueuer(db, queue.OptionsFromConfig(conf, archiver))

		result, err := q.RetentionSweep(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "retention sweep failed")
			return exit.Wrap(exit.CodeErrored, err)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return exit.Wrap(exit.CodeErrored, err)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "swept jobs")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
