package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/porter/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Compare staged, mapped, and target row counts per entity",
	Long: `Verify is read-only: it reports staged, mapped, and target row
counts, source-key checksums, and remaining coverage gaps per entity,
without mutating any state. Use it after any phase to detect drift.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := verify.New(st).Report(cmd.Context())
		if err != nil {
			return err
		}

		if flagJSON {
			return printJSON(report)
		}

		fmt.Printf("%-15s %-11s %10s %10s %10s %8s\n",
			"entity", "state", "staged", "mapped", "target", "gaps")
		for _, c := range report.Entities {
			marker := ""
			if c.Drifted() {
				marker = "  DRIFT"
			}
			fmt.Printf("%-15s %-11s %10d %10d %10d %8d%s\n",
				c.Entity, c.State, c.Staged, c.Mapped, c.Target, c.Orphaned, marker)
		}
		return nil
	},
}
