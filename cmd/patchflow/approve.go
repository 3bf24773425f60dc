package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/patchflow/patchflow/internal/approval"
	"github.com/patchflow/patchflow/internal/scm"
)

var (
	approveBy       string
	approveComments string
	approveRepo     string
	approveBuildCmd string
)

var approveCmd = &cobra.Command{
	Use:   "approve <approval-id>",
	Short: "Approve a pending change, merge it, and run the build",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		git, err := scm.NewGit(ctx, approveRepo, logrus.StandardLogger())
		if err != nil {
			return err
		}
		mgr, err := approval.NewManager(&approval.ManagerConfig{
			Store:   store,
			SCM:     git,
			Builder: scm.NewCommandBuilder(approveBuildCmd, approveRepo),
		})
		if err != nil {
			return err
		}

		rec, err := mgr.Approve(ctx, args[0], approveBy, approveComments)
		if err != nil {
			if rec != nil {
				fmt.Fprintf(os.Stderr, "Record %s is now %s: %s\n", rec.ID, rec.Status, rec.Error)
			}
			return err
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s approval %s completed (%s)\n", green("✓"), rec.ID, rec.PRURL)
		if rec.BuildResult != "" {
			fmt.Printf("  build: %s\n", rec.BuildResult)
		}
		return nil
	},
}

func init() {
	approveCmd.Flags().StringVar(&approveBy, "by", "", "approver identity (required)")
	approveCmd.Flags().StringVar(&approveComments, "comments", "", "optional approval comments")
	approveCmd.Flags().StringVar(&approveRepo, "repo", ".", "path to the target repository")
	approveCmd.Flags().StringVar(&approveBuildCmd, "build-cmd", "go build ./...", "build command to run after merge")
	approveCmd.MarkFlagRequired("by")
	rootCmd.AddCommand(approveCmd)
}
