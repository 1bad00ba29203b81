package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Ayash-Bera/felicity/internal/config"
	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/Ayash-Bera/felicity/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCMD().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

type globalOptions struct {
	configPath string
	logLevel   string
}

func newRootCMD() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:          "felicity",
		Short:        "Ask Felicity how to get things done and rate its answers",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			_ = godotenv.Load()
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(searchCMD(opts), feedbackCMD(opts), mockCMD(opts))
	return root
}

// setupLogger writes logs to stderr so they never mix with command output.
func (o *globalOptions) setupLogger(cmd *cobra.Command) *logrus.Logger {
	utils.InitLoggerWithLevel(o.logLevel)
	logger := utils.GetLogger()
	logger.SetOutput(cmd.ErrOrStderr())
	return logger
}

func (o *globalOptions) client(logger *logrus.Logger) (*felicity.Client, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateFelicity(); err != nil {
		return nil, err
	}
	return felicity.Configure(cfg.FelicityConfig(), logger)
}
