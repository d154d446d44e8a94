package main

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/porter/internal/pipeline"
	"github.com/mesh-intelligence/porter/internal/reconcile"
	"github.com/mesh-intelligence/porter/pkg/types"
)

var reconcileEntity string

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Find and backfill rows the primary migration missed",
	Long: `Reconcile sweeps staging for rows with no corresponding target row
(checked through the source-key traceability column) and backfills the
delta. Devices resolve ambiguous gaps by MAC, then normalized hostname,
then IP, and finally by creating an orphan-flagged row. Revenue rollups
are recomputed in full from staged invoices. Repeatable: a second sweep
over a complete entity writes nothing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		entities, err := entityArg(reconcileEntity)
		if err != nil {
			return err
		}

		pipe := pipeline.New(st, logger, cfg)
		rec := reconcile.New(st, pipe, logger)

		if reconcileEntity != "" {
			n, err := rec.Reconcile(cmd.Context(), entities[0])
			if err != nil {
				return err
			}
			return printCounts("backfilled", map[types.EntityType]int64{entities[0]: n})
		}

		counts, err := rec.ReconcileAll(cmd.Context())
		if err != nil {
			return err
		}
		return printCounts("backfilled", counts)
	},
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileEntity, "entity", "", "reconcile a single entity type")
}
