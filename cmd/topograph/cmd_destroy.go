package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	awsprovider "topograph/providers/aws"
	"topograph/state"
	"topograph/telemetry"
)

var (
	destroyStateDir     string
	destroyRegion       string
	destroyOTELEndpoint string
)

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Tear down everything in the snapshot",
	Long: `Delete every resource recorded in the snapshot, in reverse creation
order so dependents always go before their dependencies. Database
instances never take a final snapshot.`,
	Example: `  topograph destroy --region us-east-1`,
	RunE:    runDestroy,
}

func init() {
	rootCmd.AddCommand(destroyCmd)
	destroyCmd.Flags().StringVar(&destroyStateDir, "state-dir", ".topograph", "Snapshot state directory")
	destroyCmd.Flags().StringVarP(&destroyRegion, "region", "r", "us-east-1", "AWS region")
	destroyCmd.Flags().StringVar(&destroyOTELEndpoint, "otel-endpoint", "", "OTLP trace endpoint (optional)")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	store, err := state.Open(destroyStateDir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	snapshot, err := store.Snapshot()
	if err != nil {
		return err
	}
	if len(snapshot) == 0 {
		fmt.Println("Nothing to destroy: snapshot is empty.")
		return nil
	}

	if destroyOTELEndpoint != "" {
		shutdown, err := telemetry.InitTracing(ctx, telemetry.Config{
			ServiceName:    "topograph",
			ServiceVersion: version,
			OTELEndpoint:   destroyOTELEndpoint,
			Insecure:       true,
		})
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(ctx) }()
	}

	clients, err := awsprovider.NewClients(ctx, destroyRegion)
	if err != nil {
		return err
	}

	records := make([]state.Record, 0, len(snapshot))
	for _, rec := range snapshot {
		records = append(records, rec)
	}

	applier := awsprovider.NewApplier(clients, telemetry.NewLogger("topograph"))
	if err := applier.Destroy(ctx, records); err != nil {
		return err
	}

	if err := store.Clear(); err != nil {
		return fmt.Errorf("resources destroyed but snapshot not cleared: %w", err)
	}

	log.Info().Int("destroyed", len(records)).Msg("destroy complete")
	fmt.Printf("Destroy complete: %d resources removed\n", len(records))
	return nil
}
