// Package cli implements the eventtree command line: the API server and
// the maintenance commands that share its configuration.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"eventtree/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string

	// Config is loaded by the root command before any subcommand runs.
	Config *config.Config
}

// NewRootCommand creates the root command for the eventtree CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "eventtree",
		Short:         "Category trees for events",
		Long:          "eventtree stores per-event category forests and serves them over a JSON API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(opts.ConfigFile)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			opts.Config = cfg
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", os.Getenv("CONFIG_FILE"), "YAML configuration file (env: CONFIG_FILE)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewTreeCommand(opts))

	return cmd
}

// newLogger builds the process logger: text in development, JSON otherwise.
func newLogger(w io.Writer, level, format string) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
