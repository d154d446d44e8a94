package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/porter/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show each entity's migration lifecycle state",
	RunE: func(cmd *cobra.Command, args []string) error {
		states, err := st.States(cmd.Context())
		if err != nil {
			return err
		}

		if flagJSON {
			out := make(map[string]string, len(states))
			for e, s := range states {
				out[string(e)] = string(s)
			}
			return printJSON(out)
		}

		for _, e := range types.AllEntities {
			fmt.Printf("%-15s %s\n", e, states[e])
		}
		return nil
	},
}
