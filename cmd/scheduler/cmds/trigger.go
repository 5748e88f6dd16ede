package cmds

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mitesh006/Code-duel-backend/cmd/scheduler/internal/exit"
	"github.com/mitesh006/Code-duel-backend/cmd/scheduler/internal/trigger"
	"github.com/mitesh006/Code-duel-backend/internal/queue"
	"github.com/mitesh006/Code-duel-backend/internal/store"
	"github.com/mitesh006/Code-duel-backend/internal/types"
)

var triggerDate string

var triggerCmd = &cobra.Command{
	Use:   "trigger",
	Short: "Enqueue the daily evaluation of every active challenge",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "triggerCmd")
		defer span.End()

		loc, err := conf.Location()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load evaluation timezone")
			return exit.Wrap(exit.CodeErrored, err)
		}

		day := trigger.DefaultDate(time.Now(), loc)
		if triggerDate != "" {
			day, err = types.ParseDate(triggerDate)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "invalid --date")
				return exit.Wrap(exit.CodeErrored, err)
			}
		}
		span.SetAttributes(attribute.String("evaluationDate", types.FormatDate(day)))

		// the archiver is only needed by retention, which trigger never runs
		q := queue.NewPostgresQueuer(db, queue.OptionsFromConfig(conf, nil))

		ids, err := trigger.Trigger(ctx, store.New(db), q, day)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to trigger evaluation")
			return exit.Wrap(exit.CodeErrored, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "enqueued %d challenge evaluations for %s\n", len(ids), types.FormatDate(day))

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "triggered evaluation")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)

	triggerCmd.Flags().StringVar(
		&triggerDate,
		"date",
		"",
		"Calendar day to evaluate as YYYY-MM-DD (default yesterday in the evaluation timezone)",
	)
}
