// Output helpers shared by the phase commands.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mesh-intelligence/porter/pkg/types"
)

// printCounts renders a per-entity row-count result in entity order,
// as text or JSON depending on --json.
func printCounts(label string, counts map[types.EntityType]int64) error {
	if flagJSON {
		out := make(map[string]int64, len(counts))
		for e, n := range counts {
			out[string(e)] = n
		}
		return printJSON(map[string]any{label: out})
	}

	var total int64
	for _, e := range types.AllEntities {
		n, ok := counts[e]
		if !ok {
			continue
		}
		fmt.Printf("%-15s %10d\n", e, n)
		total += n
	}
	fmt.Printf("%-15s %10d\n", "total", total)
	return nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
