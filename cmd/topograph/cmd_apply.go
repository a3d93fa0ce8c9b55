package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"topograph/graph"
	"topograph/plan"
	awsprovider "topograph/providers/aws"
	"topograph/state"
	"topograph/telemetry"
)

var (
	applyStateDir     string
	applyRegion       string
	applyDryRun       bool
	applyOTELEndpoint string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Materialize the desired-state graph against AWS",
	Long: `Plan against the last snapshot, then create every missing resource in
dependency order with one-shot AWS calls. Created identifiers (group IDs,
instance IDs, ARNs) flow into later resources' inputs. On success the new
snapshot is recorded for the next plan.

Cloud errors are surfaced verbatim and abort the run; nothing is retried.
Updates and deletes are not applied in place: destroy and re-apply.`,
	Example: `  topograph apply --region us-east-1
  topograph apply --dry-run          # print the plan only`,
	RunE: runApply,
}

func init() {
	rootCmd.AddCommand(applyCmd)
	applyCmd.Flags().StringVar(&applyStateDir, "state-dir", ".topograph", "Snapshot state directory")
	applyCmd.Flags().StringVarP(&applyRegion, "region", "r", "us-east-1", "AWS region")
	applyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Print the plan without applying")
	applyCmd.Flags().StringVar(&applyOTELEndpoint, "otel-endpoint", "", "OTLP trace endpoint (optional)")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	g, err := buildGraph()
	if err != nil {
		return err
	}
	ordered, err := g.TopoSort()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(applyStateDir, 0750); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	store, err := state.Open(applyStateDir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snapshot, err := store.Snapshot()
	if err != nil {
		return err
	}

	p, err := plan.Diff(ordered, snapshot)
	if err != nil {
		return err
	}

	printPlan(p)
	if applyDryRun || p.IsEmpty() {
		return nil
	}

	s := p.Summary()
	if s.Updates > 0 || s.Deletes > 0 {
		return fmt.Errorf("plan contains %d updates and %d deletes; in-place changes are not supported, destroy and re-apply", s.Updates, s.Deletes)
	}

	if applyOTELEndpoint != "" {
		shutdown, err := telemetry.InitTracing(ctx, telemetry.Config{
			ServiceName:    "topograph",
			ServiceVersion: version,
			OTELEndpoint:   applyOTELEndpoint,
			Insecure:       true,
		})
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(ctx) }()
	}

	clients, err := awsprovider.NewClients(ctx, applyRegion)
	if err != nil {
		return err
	}

	applier := awsprovider.NewApplier(clients, telemetry.NewLogger("topograph"))
	applier.Seed(snapshot)

	// Apply creates in topological order, skipping what already exists.
	toCreate := createSet(p)
	maxSeq := 0
	for _, rec := range snapshot {
		if rec.Seq >= maxSeq {
			maxSeq = rec.Seq + 1
		}
	}

	var pending []graph.Node
	for _, node := range ordered {
		if toCreate[node.Key()] {
			pending = append(pending, node)
		}
	}

	records, err := applier.Apply(ctx, pending, maxSeq)

	// Even a partial apply gets recorded, so a re-run resumes cleanly.
	merged := make([]state.Record, 0, len(snapshot)+len(records))
	for _, rec := range snapshot {
		merged = append(merged, rec)
	}
	merged = append(merged, records...)
	if writeErr := store.WriteSnapshot(merged); writeErr != nil {
		if err != nil {
			return fmt.Errorf("apply failed (%w); additionally failed to record snapshot: %v", err, writeErr)
		}
		return fmt.Errorf("failed to record snapshot: %w", writeErr)
	}

	if err != nil {
		return err
	}

	log.Info().Int("created", len(records)).Int64("revision", store.Revision()).Msg("apply complete")
	fmt.Printf("\nApply complete: %d resources created\n", len(records))
	return nil
}

func createSet(p *plan.Plan) map[string]bool {
	set := make(map[string]bool)
	for _, c := range p.Changes {
		if c.Action == plan.ActionCreate {
			set[c.Key] = true
		}
	}
	return set
}
