package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"topograph/config"
	"topograph/graph"
	"topograph/synth"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the topology config and resolve all references",
	Long: `Load the topology config, synthesize the desired-state graph, and
resolve every symbolic cross-reference.

Fails on a missing or malformed config file, on a load balancer without
target instances, and on any security-group or target reference that does
not name a declared resource.`,
	Example: `  topograph validate
  topograph validate --config topology.json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	g, err := buildGraph()
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, node := range g.Nodes() {
		counts[node.Type()]++
	}

	fmt.Printf("Config valid: %d resources\n", g.Len())
	for _, t := range resourceTypeOrder {
		if counts[t] > 0 {
			fmt.Printf("  %-24s %d\n", t, counts[t])
		}
	}

	return nil
}

// buildGraph loads the config and synthesizes the resolved graph.
func buildGraph() (*graph.Graph, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return synth.Build(cfg)
}
