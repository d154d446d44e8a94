package main

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/porter/internal/pipeline"
	"github.com/mesh-intelligence/porter/pkg/types"
)

var seedEntity string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Assign target identifiers to staged source keys",
	Long: `Seed creates one mapping entry per eligible staged source key,
generating fresh target identifiers for keys seen for the first time
and leaving existing entries untouched. Customers pass a qualification
filter: records with no subscription, invoice, or payment history are
permanently excluded. Seeding twice produces identical mappings.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		entities, err := entityArg(seedEntity)
		if err != nil {
			return err
		}

		pipe := pipeline.New(st, logger, cfg)
		counts := make(map[types.EntityType]int64, len(entities))
		for _, e := range entities {
			n, err := pipe.Seed(cmd.Context(), e)
			if err != nil {
				return err
			}
			counts[e] = n
		}
		return printCounts("seeded", counts)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedEntity, "entity", "", "seed a single entity type")
}
