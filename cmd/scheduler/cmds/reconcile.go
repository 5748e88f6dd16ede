package cmds

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/mitesh006/Code-duel-backend/cmd/scheduler/internal/exit"
	"github.com/mitesh006/Code-duel-backend/internal/logger"
	"github.com/mitesh006/Code-duel-backend/internal/store"
)

var reconcileChallenge string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check that every member's penalty total matches their ledger",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "reconcileCmd")
		defer span.End()

		challengeID, err := uuid.Parse(reconcileChallenge)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid --challenge")
			return exit.Wrap(exit.CodeErrored, fmt.Errorf("invalid --challenge: %w", err))
		}
		span.SetAttributes(attribute.String("challengeID", challengeID.String()))

		drifts, err := store.New(db).Reconcile(ctx, challengeID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to reconcile")
			return exit.Wrap(exit.CodeErrored, err)
		}

		out := cmd.OutOrStdout()
		for _, d := range drifts {
			logger.Logger.WarnContext(ctx, "penalty drift",
				"memberID", d.MemberID,
				"totalPenalties", d.TotalPenalties,
				"ledgerTotal", d.LedgerTotal,
			)
			fmt.Fprintf(out, "%s\ttotal=%d\tledger=%d\n", d.MemberID, d.TotalPenalties, d.LedgerTotal)
		}

		if len(drifts) > 0 {
			err := exit.Wrap(exit.CodeDrift, fmt.Errorf("%d members drifted", len(drifts)))
			span.RecordError(err)
			span.SetStatus(codes.Error, "ledger drift")
			return err
		}

		fmt.Fprintln(out, "ledger consistent")
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "ledger consistent")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVar(&reconcileChallenge, "challenge", "", "Challenge ID (required)")
	if err := reconcileCmd.MarkFlagRequired("challenge"); err != nil {
		logger.Logger.Error("error setting flag required", "flag", "challenge", "error", err)
	}
}
