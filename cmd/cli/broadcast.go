package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hireflow/interview-core/internal/wire"
)

var (
	broadcastInterviewers []string
	broadcastReopen       bool
)

var broadcastCmd = &cobra.Command{
	Use:   "broadcast <interview-id>",
	Short: "Offers an interview slot to a set of interviewers",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ctx := context.Background()

		app, cleanup, err := wire.InitializeApp()
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		broadcast := app.Broadcaster.Broadcast
		if broadcastReopen {
			broadcast = app.Broadcaster.Rebroadcast
		}
		invites, err := broadcast(ctx, args[0], broadcastInterviewers)
		if err != nil {
			return fmt.Errorf("broadcast failed: %w", err)
		}

		fmt.Printf("broadcast %s to %d interviewers\n", args[0], len(invites))
		for _, invite := range invites {
			fmt.Printf("  invite %s -> %s\n", invite.ID, invite.InterviewerID)
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	broadcastCmd.Flags().StringSliceVar(&broadcastInterviewers, "interviewer", nil, "Interviewer ID (repeatable)")
	broadcastCmd.Flags().BoolVar(&broadcastReopen, "reopen", false, "Re-broadcast an expired interview")
	_ = broadcastCmd.MarkFlagRequired("interviewer")
	rootCmd.AddCommand(broadcastCmd)
}
