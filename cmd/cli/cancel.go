package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hireflow/interview-core/internal/wire"
)

var cancelReason string

var cancelCmd = &cobra.Command{
	Use:   "cancel <interview-id>",
	Short: "Cancels a confirmed interview and queues the cancellation fan-out",
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

		done, err := app.Machine.Cancel(ctx, iv, cancelReason)
		if err != nil {
			return fmt.Errorf("failed to cancel interview: %w", err)
		}
		if !done {
			fmt.Printf("interview %s already cancelled\n", iv.ID)
			return nil
		}
		fmt.Printf("interview %s cancelled: %s\n", iv.ID, cancelReason)
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "Reason recorded in the audit trail")
	_ = cancelCmd.MarkFlagRequired("reason")
	rootCmd.AddCommand(cancelCmd)
}
