// Package main provides the porter CLI: one command per migration
// phase (snapshot, seed, migrate, reconcile, verify), each
// independently re-runnable.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}
