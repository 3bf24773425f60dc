package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/patchflow/patchflow/internal/approval"
	"github.com/patchflow/patchflow/internal/scm"
)

var (
	rejectBy     string
	rejectReason string
	rejectRepo   string
)

var rejectCmd = &cobra.Command{
	Use:   "reject <approval-id>",
	Short: "Reject a pending change and close its pull request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		git, err := scm.NewGit(ctx, rejectRepo, logrus.StandardLogger())
		if err != nil {
			return err
		}
		mgr, err := approval.NewManager(&approval.ManagerConfig{
			Store:   store,
			SCM:     git,
			Builder: scm.NewCommandBuilder("true", rejectRepo),
		})
		if err != nil {
			return err
		}

		rec, err := mgr.Reject(ctx, args[0], rejectBy, rejectReason)
		if err != nil {
			return err
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("%s approval %s rejected\n", gray("✗"), rec.ID)
		return nil
	},
}

func init() {
	rejectCmd.Flags().StringVar(&rejectBy, "by", "", "rejecter identity (required)")
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "optional rejection reason")
	rejectCmd.Flags().StringVar(&rejectRepo, "repo", ".", "path to the target repository")
	rejectCmd.MarkFlagRequired("by")
	rootCmd.AddCommand(rejectCmd)
}
