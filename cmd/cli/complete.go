package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hireflow/interview-core/internal/wire"
)

var completeCmd = &cobra.Command{
	Use:   "complete <interview-id>",
	Short: "Marks a confirmed interview as completed and queues the invoice trigger",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()

		app, cleanup, err := wire.InitializeApp()
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		iv, err := app.Store.GetInterview(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to retrieve interview: %w", err)
		}

		done, err := app.Machine.Complete(ctx, iv)
		if err != nil {
			return fmt.Errorf("failed to complete interview: %w", err)
		}
		if !done {
			fmt.Printf("interview %s already completed\n", iv.ID)
			return nil
		}
		fmt.Printf("interview %s completed, invoice trigger queued\n", iv.ID)
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	rootCmd.AddCommand(completeCmd)
}
