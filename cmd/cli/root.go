package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "interviewctl",
	Short: "interviewctl is the operator CLI for the interview scheduling service.",
	Long:  `A CLI for managing interview slots: scheduling, broadcasting to interviewers, cancelling, completing, and inspecting state.`,
}

func Execute() error {
	return rootCmd.Execute()
}
