package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hireflow/interview-core/internal/core"
	"github.com/hireflow/interview-core/internal/wire"
)

var (
	scheduleCandidate string
	scheduleClient    string
	scheduleStart     string
	scheduleEnd       string
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Creates a draft interview for a candidate slot",
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx := context.Background()

		start, err := time.Parse(time.RFC3339, scheduleStart)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, scheduleEnd)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
		if !end.After(start) {
			return fmt.Errorf("--end must be after --start")
		}

		app, cleanup, err := wire.InitializeApp()
		if err != nil {
			return fmt.Errorf("failed to initialize app services: %w", err)
		}
		defer cleanup()

		iv := &core.Interview{
			ID:          uuid.New().String(),
			CandidateID: scheduleCandidate,
			ClientID:    scheduleClient,
			SlotStart:   start.UTC(),
			SlotEnd:     end.UTC(),
			State:       core.StateDraft,
		}
		if err := app.Store.CreateInterview(ctx, iv); err != nil {
			return fmt.Errorf("failed to create interview: %w", err)
		}

		fmt.Printf("scheduled interview %s (%s to %s)\n", iv.ID,
			iv.SlotStart.Format(time.RFC3339), iv.SlotEnd.Format(time.RFC3339))
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	scheduleCmd.Flags().StringVar(&scheduleCandidate, "candidate", "", "Candidate ID")
	scheduleCmd.Flags().StringVar(&scheduleClient, "client", "", "Client ID")
	scheduleCmd.Flags().StringVar(&scheduleStart, "start", "", "Slot start (RFC3339)")
	scheduleCmd.Flags().StringVar(&scheduleEnd, "end", "", "Slot end (RFC3339)")
	_ = scheduleCmd.MarkFlagRequired("candidate")
	_ = scheduleCmd.MarkFlagRequired("client")
	_ = scheduleCmd.MarkFlagRequired("start")
	_ = scheduleCmd.MarkFlagRequired("end")
	rootCmd.AddCommand(scheduleCmd)
}
