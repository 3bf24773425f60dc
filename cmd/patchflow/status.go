package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show proposal and approval statistics",
	Long:  `Display proposal counts per source with duplicate ratios, and approval records by status.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Patchflow Status ==="))

		proposalStats, err := store.GetProposalStats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to get proposal stats: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s\n", yellow("Proposals:"))
		if len(proposalStats) == 0 {
			fmt.Printf("  %s\n", gray("No proposals recorded"))
		}
		for _, s := range proposalStats {
			ratio := 0.0
			if s.Total > 0 {
				ratio = float64(s.Duplicates) / float64(s.Total) * 100
			}
			fmt.Printf("  %-20s total %4d   unique %s   duplicates %s (%.0f%%)\n",
				s.AIType, s.Total, green(fmt.Sprintf("%4d", s.Unique)),
				gray(fmt.Sprintf("%4d", s.Duplicates)), ratio)
		}
		fmt.Println()

		approvalStats, err := store.GetApprovalStats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to get approval stats: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s\n", yellow("Approvals:"))
		if approvalStats.Total == 0 {
			fmt.Printf("  %s\n", gray("No approval records"))
		} else {
			fmt.Printf("  Pending:   %s\n", yellow(fmt.Sprintf("%d", approvalStats.Pending)))
			fmt.Printf("  Approved:  %d\n", approvalStats.Approved)
			fmt.Printf("  Completed: %s\n", green(fmt.Sprintf("%d", approvalStats.Completed)))
			fmt.Printf("  Rejected:  %s\n", gray(fmt.Sprintf("%d", approvalStats.Rejected)))
			fmt.Printf("  Failed:    %s\n", red(fmt.Sprintf("%d", approvalStats.Failed)))
			fmt.Printf("  Total:     %d\n", approvalStats.Total)
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
