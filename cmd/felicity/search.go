package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Ayash-Bera/felicity/internal/classify"
	"github.com/Ayash-Bera/felicity/internal/feedback"
	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/Ayash-Bera/felicity/internal/session"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	progressColor = color.New(color.FgCyan)
	stepColor     = color.New(color.FgGreen)
	noticeColor   = color.New(color.FgYellow)
	errorColor    = color.New(color.FgRed)
)

func searchCMD(opts *globalOptions) *cobra.Command {
	var (
		userID      string
		annotations map[string]string
		noFeedback  bool
	)

	cmd := &cobra.Command{
		Use:   "search <question>",
		Short: "Ask a question and print the tutorial steps",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.setupLogger(cmd)
			client, err := opts.client(logger)
			if err != nil {
				return err
			}

			qctx := felicity.QueryContext{UserID: userID}
			if len(annotations) > 0 {
				qctx.Annotations = make(map[string]interface{}, len(annotations))
				for k, v := range annotations {
					qctx.Annotations[k] = v
				}
			}

			out := cmd.OutOrStdout()
			query := session.NewQuery(client, qctx, logger)
			defer query.Close()

			unsubscribe := query.Subscribe(func(st session.State) {
				if p, ok := st.(session.Pending); ok && p.Progress != "" {
					progressColor.Fprintf(out, "... %s\n", p.Progress)
				}
			})
			defer unsubscribe()

			if err := query.Search(strings.Join(args, " ")); err != nil {
				return err
			}
			state, err := query.Wait(cmd.Context())
			if err != nil {
				return err
			}

			outcome, err := printState(out, state)
			if err != nil || noFeedback {
				return err
			}
			answered, ok := outcome.(classify.Answered)
			if !ok || answered.AnswerFeedbackID == "" {
				return nil
			}
			fs := feedback.NewSession(answered.AnswerFeedbackID, client, logger)
			return promptFeedback(cmd.Context(), bufio.NewReader(cmd.InOrStdin()), out, fs)
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id sent with the query")
	cmd.Flags().StringToStringVar(&annotations, "annotate", nil, "annotation sent with the query as key=value (repeatable)")
	cmd.Flags().BoolVar(&noFeedback, "no-feedback", false, "do not ask for feedback on the answer")
	return cmd
}

func printState(out io.Writer, state session.State) (classify.Outcome, error) {
	switch st := state.(type) {
	case session.Success:
		printOutcome(out, st.Outcome)
		return st.Outcome, nil
	case session.Failed:
		errorColor.Fprintf(out, "Search failed: %s\n", st.Reason)
		return nil, fmt.Errorf("search failed: %s", st.Reason)
	}
	return nil, fmt.Errorf("search did not settle: %s", state.Status())
}

func printOutcome(out io.Writer, outcome classify.Outcome) {
	switch o := outcome.(type) {
	case classify.Answered:
		for i, step := range o.Steps {
			stepColor.Fprintf(out, "Step %d: ", i+1)
			fmt.Fprintf(out, "%s (%s)\n", step.Action, step.Screenshot)
		}
	case classify.Impossible:
		noticeColor.Fprintln(out, "Felicity could not find steps for that.")
	case classify.OffTopic:
		noticeColor.Fprintf(out, "That question is outside what Felicity answers (%s).\n", o.Triage)
	default:
		errorColor.Fprintln(out, "Something went wrong. Please try again.")
	}
}

// promptFeedback asks for a vote and an optional comment. Input that is not
// a yes or no answer leaves the answer unrated.
func promptFeedback(ctx context.Context, in *bufio.Reader, out io.Writer, fs *feedback.Session) error {
	fmt.Fprint(out, "Was this answer correct? [y/n]: ")
	answer, err := readLine(in)
	if err != nil {
		fmt.Fprintln(out)
		return nil
	}

	var correct bool
	switch strings.ToLower(answer) {
	case "y", "yes":
		correct = true
	case "n", "no":
		correct = false
	default:
		noticeColor.Fprintln(out, "No vote recorded.")
		return nil
	}
	if err := fs.Vote(ctx, correct); err != nil {
		return fmt.Errorf("failed to send vote: %w", err)
	}

	fmt.Fprint(out, "Anything to add? (leave empty to skip): ")
	comment, _ := readLine(in)
	if err := fs.Comment(ctx, comment); err != nil {
		return fmt.Errorf("failed to send comment: %w", err)
	}
	stepColor.Fprintln(out, "Thanks for the feedback!")
	return nil
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
