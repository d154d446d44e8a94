package main

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/porter/internal/snapshot"
	"github.com/mesh-intelligence/porter/pkg/types"
)

var snapshotEntity string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture a point-in-time copy of the source into staging",
	Long: `Snapshot replaces each staging table with a fresh copy of its source
table, one all-or-nothing transaction per table. Oversized time-series
tables are registered only; the migrate phase moves them in windows.
Re-running snapshot is always safe: contents are replaced wholesale.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		entities, err := entityArg(snapshotEntity)
		if err != nil {
			return err
		}

		loader := snapshot.New(st, logger)
		counts := make(map[types.EntityType]int64, len(entities))
		for _, e := range entities {
			n, err := loader.Snapshot(cmd.Context(), e)
			if err != nil {
				return err
			}
			counts[e] = n
		}
		return printCounts("staged", counts)
	},
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotEntity, "entity", "", "snapshot a single entity type")
}
