package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/patchflow/patchflow/internal/types"
)

var listStatus string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List approval records by status",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		status := types.ApprovalStatus(listStatus)
		if !status.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: unknown status %q\n", listStatus)
			os.Exit(1)
		}

		records, err := store.ListApprovalsByStatus(ctx, status)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list approvals: %v\n", err)
			os.Exit(1)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		if len(records) == 0 {
			fmt.Printf("%s\n", gray(fmt.Sprintf("No %s approvals", status)))
			return
		}

		for _, rec := range records {
			fmt.Printf("%s  %-14s %s\n", rec.ID, rec.AIType, rec.FilePath)
			fmt.Printf("  submitted %s  %s\n",
				rec.SubmittedAt.Format("2006-01-02 15:04:05"), gray(rec.PRURL))
			if rec.Error != "" {
				fmt.Printf("  error: %s\n", rec.Error)
			}
		}
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "pending", "status to list (pending, approved, completed, rejected, failed)")
	rootCmd.AddCommand(listCmd)
}
