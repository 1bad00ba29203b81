package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/Ayash-Bera/felicity/internal/felicity/felicitytest"
	"github.com/spf13/cobra"
)

func mockCMD(opts *globalOptions) *cobra.Command {
	var (
		port   int
		apiKey string
		delay  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run a local fake of the Felicity service",
		Long: `Run a local fake of the Felicity service for front-end development.

Every question gets a sample tutorial answer, except:
  "impossible"   answered as a usage question with no steps
  "off topic"    triaged as a data question

Example:
  felicity mock --port 9090 --api-key dev-key
  FELICITY_BASE_URL=http://localhost:9090 FELICITY_API_KEY=dev-key felicity search "How do I submit a timecard?"
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.setupLogger(cmd)

			fake := felicitytest.NewServer(apiKey)
			fake.Default(felicitytest.Script{
				Progress: []string{"Understanding the question", "Finding the right screens"},
				Response: sampleAnswer(),
				Delay:    delay,
			})
			fake.On("impossible", felicitytest.Script{
				Response: &felicity.SearchResponse{Success: felicity.Bool(true), TriageType: felicity.TriageUsage, GoalSatisfied: boolPtr(false)},
				Delay:    delay,
			})
			fake.On("off topic", felicitytest.Script{
				Response: &felicity.SearchResponse{Success: felicity.Bool(true), TriageType: felicity.TriageData},
				Delay:    delay,
			})

			server := &http.Server{
				Addr:              fmt.Sprintf(":%d", port),
				Handler:           fake.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() { errCh <- server.ListenAndServe() }()
			progressColor.Fprintf(cmd.OutOrStdout(), "Mock Felicity listening on http://localhost:%d (api key %q)\n", port, apiKey)

			select {
			case err := <-errCh:
				return err
			case <-cmd.Context().Done():
			}

			logger.Info("Stopping mock server")
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 9090, "port to listen on")
	cmd.Flags().StringVar(&apiKey, "api-key", "dev-key", "api key the fake accepts")
	cmd.Flags().DurationVar(&delay, "delay", 500*time.Millisecond, "delay before each answer")
	return cmd
}

func sampleAnswer() *felicity.SearchResponse {
	return &felicity.SearchResponse{
		Success:       felicity.Bool(true),
		TriageType:    felicity.TriageUsage,
		GoalSatisfied: boolPtr(true),
		Steps: []felicity.TutorialStep{
			{ID: "1", Action: "Open the Timecards page from the main menu", Screenshot: "https://example.com/shots/1.png"},
			{ID: "2", Action: "Click New Timecard", Screenshot: "https://example.com/shots/2.png"},
			{ID: "3", Action: "Fill in your hours and press Submit", Screenshot: "https://example.com/shots/3.png"},
		},
		AnswerFeedbackID: "mock-answer",
	}
}

func boolPtr(v bool) *bool { return &v }
