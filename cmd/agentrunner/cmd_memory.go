package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"agentrunner/internal/store"
)

var memoryTypes []string

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Print the memory graph as JSON",
	Long: `Prints every node and edge of the memory graph. With --types only nodes
of those types are printed, together with the edges among them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		graph, err := openGraph()
		if err != nil {
			return err
		}
		defer graph.Close()

		var snap *store.Snapshot
		if len(memoryTypes) > 0 {
			snap, err = graph.SubgraphForContext(memoryTypes)
		} else {
			snap, err = graph.Snapshot()
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, snap)
	},
}

func init() {
	memoryCmd.Flags().StringSliceVar(&memoryTypes, "types", nil, "Only include these node types (comma-separated)")
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
