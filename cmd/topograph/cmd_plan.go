package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"topograph/plan"
	"topograph/state"
)

var planStateDir string

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what apply would change",
	Long: `Synthesize the desired-state graph and diff it against the snapshot of
the last apply. Re-planning an unchanged config yields no changes.`,
	Example: `  topograph plan
  topograph plan --state-dir /var/lib/topograph`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVar(&planStateDir, "state-dir", ".topograph", "Snapshot state directory")
}

func runPlan(cmd *cobra.Command, args []string) error {
	p, err := computePlan(planStateDir)
	if err != nil {
		return err
	}

	printPlan(p)
	return nil
}

// computePlan builds the graph and diffs it against the stored snapshot.
func computePlan(stateDir string) (*plan.Plan, error) {
	g, err := buildGraph()
	if err != nil {
		return nil, err
	}

	ordered, err := g.TopoSort()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(stateDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create state dir: %w", err)
	}
	store, err := state.Open(stateDir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.Close() }()

	snapshot, err := store.Snapshot()
	if err != nil {
		return nil, err
	}

	return plan.Diff(ordered, snapshot)
}

func printPlan(p *plan.Plan) {
	if p.IsEmpty() {
		fmt.Println("No changes. Desired state matches the snapshot.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ACTION\tKEY\tTYPE\tREASON")
	for _, c := range p.Changes {
		if c.Action == plan.ActionNoop {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Action, c.Key, c.Type, c.Reason)
	}
	_ = w.Flush()

	s := p.Summary()
	fmt.Printf("\nPlan: %d to create, %d to update, %d to delete, %d unchanged\n",
		s.Creates, s.Updates, s.Deletes, s.Noops)
}
