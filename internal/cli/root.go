// Package cli implements the storygen developer commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mhpenta/storygen"
	"github.com/mhpenta/storygen/config"
	"github.com/mhpenta/storygen/factory"
	"github.com/mhpenta/storygen/progress"
	"github.com/mhpenta/storygen/story"
)

// app holds what every subcommand shares. It is populated by the root
// command's pre-run hook.
type app struct {
	cfgFile string
	verbose bool

	cfg     *config.Config
	logger  *slog.Logger
	service *storygen.Service
	stderr  io.Writer
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{stderr: os.Stderr}

	root := &cobra.Command{
		Use:           "storygen",
		Short:         "Generate story content with the configured provider",
		Long:          "storygen drives the text, image, chat and structured generation capabilities from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.stderr = cmd.ErrOrStderr()
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.service != nil {
				return a.service.Close()
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file path (default: ./storygen.yaml or ./configs/storygen.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		a.providerCommand(),
		a.textCommand(),
		a.imageCommand(),
		a.quizCommand(),
		a.chatCommand(),
		a.reportCommand(),
		a.resetCommand(),
	)
	return root
}

// Execute runs the command tree and exits non-zero on error.
func Execute() {
	root := NewRootCommand()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.cfg = cfg

	level := cfg.SlogLevel()
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: level}))

	a.service = factory.CreateService(ctx, cfg, factory.WithLogger(a.logger))
	return nil
}

func (a *app) narrator() *story.Narrator {
	return story.NewNarrator(a.service, story.WithLogger(a.logger))
}

func (a *app) openProgress(ctx context.Context) (*progress.SQLiteStore, error) {
	st, err := progress.OpenSQLite(ctx, a.cfg.ProgressPath, a.logger)
	if err != nil {
		return nil, fmt.Errorf("opening progress: %w", err)
	}
	return st, nil
}
