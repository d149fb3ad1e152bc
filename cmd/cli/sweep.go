package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hireflow/interview-core/internal/wire"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Runs one expiry, reminder, and retention sweep",
	Long: `Runs a single pass of the background sweeps: expires broadcasts past
their response deadline, queues due reminder tasks, and purges old
finished tasks. The server runs these on a timer; this command exists
for operators who need to force a pass.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		app, cleanup, err := wire.InitializeApp()
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		app.Sweeper.SweepOnce(ctx)
		fmt.Println("sweep complete")
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.AddCommand(sweepCmd)
}
