package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/patchflow/patchflow/internal/dedup"
	"github.com/patchflow/patchflow/internal/proposal"
)

var (
	submitAIType     string
	submitFilePath   string
	submitBeforePath string
	submitAfterPath  string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Record a code change proposal and check it for duplicates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		before := ""
		if submitBeforePath != "" {
			data, err := os.ReadFile(submitBeforePath)
			if err != nil {
				return fmt.Errorf("failed to read before file: %w", err)
			}
			before = string(data)
		}
		after, err := os.ReadFile(submitAfterPath)
		if err != nil {
			return fmt.Errorf("failed to read after file: %w", err)
		}

		engine, err := dedup.NewEngine(store, cfg.DedupEngine())
		if err != nil {
			return err
		}
		svc, err := proposal.NewService(store, engine, logrus.StandardLogger())
		if err != nil {
			return err
		}

		result, err := svc.Submit(ctx, submitAIType, submitFilePath, before, string(after))
		if err != nil {
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		if result.Decision.IsDuplicate {
			fmt.Printf("%s proposal %s is a %s duplicate of %s (similarity %.2f)\n",
				yellow("≈"), result.Proposal.ID, result.Decision.Type,
				result.Decision.Proposal.ID, result.Decision.Similarity)
			return nil
		}
		fmt.Printf("%s proposal %s recorded (novel)\n", green("✓"), result.Proposal.ID)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitAIType, "ai-type", "", "proposal source identity (required)")
	submitCmd.Flags().StringVar(&submitFilePath, "file", "", "target file path (required)")
	submitCmd.Flags().StringVar(&submitBeforePath, "before", "", "file holding the original code")
	submitCmd.Flags().StringVar(&submitAfterPath, "after", "", "file holding the proposed code (required)")
	submitCmd.MarkFlagRequired("ai-type")
	submitCmd.MarkFlagRequired("file")
	submitCmd.MarkFlagRequired("after")
	rootCmd.AddCommand(submitCmd)
}
