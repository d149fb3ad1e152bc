package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/hireflow/interview-core/internal/wire"
)

var outputJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <interview-id>",
	Short: "Shows an interview with its invites and audit trail",
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
		invites, err := app.Store.ListInvitesByInterview(ctx, iv.ID)
		if err != nil {
			return fmt.Errorf("failed to retrieve invites: %w", err)
		}
		transitions, err := app.Store.ListTransitions(ctx, iv.ID)
		if err != nil {
			return fmt.Errorf("failed to retrieve transitions: %w", err)
		}

		if outputJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(map[string]any{
				"interview":   iv,
				"invites":     invites,
				"transitions": transitions,
			})
		}

		interviewer := "-"
		if iv.InterviewerID != nil {
			interviewer = *iv.InterviewerID
		}
		fmt.Printf("interview %s\n", iv.ID)
		fmt.Printf("  state: %s  interviewer: %s  slot: %s to %s\n",
			iv.State, interviewer,
			iv.SlotStart.Format(time.RFC822), iv.SlotEnd.Format(time.RFC822))
		if iv.MeetingLink != "" {
			fmt.Printf("  meeting: %s\n", iv.MeetingLink)
		}

		if len(invites) > 0 {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "INVITE\tINTERVIEWER\tSTATE\tRESPONDED")
			for _, invite := range invites {
				responded := "-"
				if invite.RespondedAt != nil {
					responded = invite.RespondedAt.Format(time.RFC822)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					invite.ID, invite.InterviewerID, invite.State, responded)
			}
			if err := w.Flush(); err != nil {
				return err
			}
		}

		if len(transitions) > 0 {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "WHEN\tFROM\tTO\tREASON")
			for _, tr := range transitions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					tr.CreatedAt.Format(time.RFC822), tr.FromState, tr.ToState, tr.Reason)
			}
			return w.Flush()
		}
		return nil
	},
}

func init() { //nolint:gochecknoinits // Cobra's init function for command registration
	statusCmd.Flags().BoolVar(&outputJSON, "json", false, "Output status as JSON")
	rootCmd.AddCommand(statusCmd)
}
