package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"topograph/types"
)

var graphOutput string

// resourceTypeOrder is the display order for per-type summaries.
var resourceTypeOrder = []string{
	types.TypeSecurityGroup,
	types.TypeInstance,
	types.TypeLoadBalancer,
	types.TypeTargetGroup,
	types.TypeListener,
	types.TypeAttachment,
	types.TypeDBSubnetGroup,
	types.TypeDBInstance,
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the desired-state graph in dependency order",
	Long: `Synthesize the desired-state graph from the topology config and print
its nodes in topological order: every resource appears after everything
it depends on.`,
	Example: `  topograph graph                 # table output
  topograph graph --output json   # machine-readable`,
	RunE: runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringVarP(&graphOutput, "output", "o", "table", "Output format: table, json")
}

func runGraph(cmd *cobra.Command, args []string) error {
	g, err := buildGraph()
	if err != nil {
		return err
	}

	ordered, err := g.TopoSort()
	if err != nil {
		return err
	}

	switch graphOutput {
	case "json":
		type nodeView struct {
			Key       string   `json:"key"`
			Type      string   `json:"type"`
			DependsOn []string `json:"depends_on,omitempty"`
		}
		views := make([]nodeView, 0, len(ordered))
		for _, n := range ordered {
			views = append(views, nodeView{Key: n.Key(), Type: n.Type(), DependsOn: n.DependsOn()})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(views)

	case "table":
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "#\tKEY\tTYPE\tDEPENDS ON")
		for i, n := range ordered {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, n.Key(), n.Type(), strings.Join(n.DependsOn(), ", "))
		}
		return w.Flush()

	default:
		return fmt.Errorf("invalid output format: %s (must be table or json)", graphOutput)
	}
}
