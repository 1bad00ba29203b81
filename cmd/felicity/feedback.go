package main

import (
	"fmt"
	"strings"

	"github.com/Ayash-Bera/felicity/internal/feedback"
	"github.com/spf13/cobra"
)

func feedbackCMD(opts *globalOptions) *cobra.Command {
	var (
		correct bool
		comment string
	)

	cmd := &cobra.Command{
		Use:   "feedback <answerId>",
		Short: "Rate an answer without searching again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			answerID := strings.TrimSpace(args[0])
			if answerID == "" {
				return feedback.ErrNoAnswerID
			}

			logger := opts.setupLogger(cmd)
			client, err := opts.client(logger)
			if err != nil {
				return err
			}

			fs := feedback.NewSession(answerID, client, logger)
			if err := fs.Vote(cmd.Context(), correct); err != nil {
				return fmt.Errorf("failed to send vote: %w", err)
			}
			if err := fs.Comment(cmd.Context(), comment); err != nil {
				return fmt.Errorf("failed to send comment: %w", err)
			}

			stepColor.Fprintf(cmd.OutOrStdout(), "Feedback for %s sent.\n", answerID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&correct, "correct", false, "whether the answer was correct")
	cmd.Flags().StringVar(&comment, "comment", "", "optional comment sent after the vote")
	_ = cmd.MarkFlagRequired("correct")
	return cmd
}
