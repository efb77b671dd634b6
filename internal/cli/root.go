// Package cli implements the mindshard CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oceanbase/mindshard-go/pkg/client"
	"github.com/oceanbase/mindshard-go/pkg/core"
)

// NewRootCmd creates the root mindshard command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "mindshard",
		Short:         "Tiered memory and retrieval for AI agents",
		Long:          "Ingest documents into named knowledge bases, query them alone or in groups, and keep a working/short-term/long-term memory of conversation turns.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initLogger(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to a YAML, JSON or TOML config file (default: MIND_* environment)")
	root.PersistentFlags().String("log-level", "", "debug, info, warn or error (default: $MIND_LOG_LEVEL or warn)")
	root.PersistentFlags().String("log-format", "", "text or json (default: $MIND_LOG_FORMAT or text)")

	root.AddCommand(
		newIngestCmd(),
		newQueryCmd(),
		newDeleteCmd(),
		newKBCmd(),
		newGroupCmd(),
		newRememberCmd(),
		newRecallCmd(),
		newFlushCmd(),
		newScratchCmd(),
		newJournalCmd(),
		newServeCmd(),
	)

	return root
}

// initLogger installs the default logger from flags, falling back to
// MIND_LOG_LEVEL and MIND_LOG_FORMAT. Logs go to stderr so stdout stays JSON.
func initLogger(cmd *cobra.Command) error {
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = os.Getenv("MIND_LOG_LEVEL")
	}
	format, _ := cmd.Flags().GetString("log-format")
	if format == "" {
		format = os.Getenv("MIND_LOG_FORMAT")
	}

	logger, err := newLogger(cmd.ErrOrStderr(), level, format)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	return nil
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "", "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, core.Errorf("initLogger", core.ErrInvalidArgument, "unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, core.Errorf("initLogger", core.ErrInvalidArgument, "unknown log format %q", format)
	}
}

func loadConfig(cmd *cobra.Command) (*core.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return core.LoadConfigFromFile(path)
	}
	return core.LoadConfigFromEnv()
}

// openClient builds a client from the command's configuration. mutate,
// when given, adjusts the configuration first.
func openClient(cmd *cobra.Command, mutate ...func(*core.Config)) (*client.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	for _, fn := range mutate {
		fn(cfg)
	}
	return client.NewClient(cfg, client.WithLogger(slog.Default()))
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
