package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"Feedlytic/internal/chatbot"
	"Feedlytic/internal/config"
	"Feedlytic/internal/session"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	overrides  config.Config
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	return newRootCmdWithOptions(&rootOptions{})
}

func newRootCmdWithOptions(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "feedlytic",
		Short:         "Chat with the Feedlytic news assistant from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBot(cmd, opts, func(ctx context.Context, bot *chatbot.ChatBot) error {
				return bot.Run(ctx)
			})
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to a YAML config file")
	flags.StringVar(&opts.overrides.BaseURL, "base-url", "", "Chat service base URL (env FEEDLYTIC_API_BASE_URL)")
	flags.StringVar(&opts.overrides.DBPath, "db", "", "SQLite file holding the session id (env FEEDLYTIC_DB)")
	flags.StringVar(&opts.overrides.LogDir, "log-dir", "", "Directory for logs, traces and metrics (env FEEDLYTIC_LOG_DIR)")
	flags.BoolVar(&opts.overrides.Ephemeral, "ephemeral", false, "Keep the session id in memory only")
	flags.BoolVar(&opts.overrides.Debug, "debug", false, "Enable debug logging")
	flags.BoolVar(&opts.overrides.Telemetry, "telemetry", false, "Export traces and metrics to the log directory")
	root.Flags().BoolVar(&opts.overrides.Plain, "plain", false, "Use the line-mode REPL instead of the full-screen UI")
	root.Flags().BoolVar(&opts.overrides.Markdown, "markdown", false, "Render assistant replies as markdown")

	root.AddCommand(
		newHistoryCmd(opts),
		newResetCmd(opts),
		newSessionCmd(opts),
	)
	return root
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the conversation of the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBot(cmd, opts, func(ctx context.Context, bot *chatbot.ChatBot) error {
				messages, err := bot.History(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, msg := range messages {
					if msg.Role == session.RoleUser {
						fmt.Fprintf(out, "You: %s\n", msg.Text)
						continue
					}
					if !msg.IsBlank() {
						fmt.Fprintf(out, "Bot: %s\n\n", msg.Text)
					}
				}
				return nil
			})
		},
	}
}

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the current session and start a new one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBot(cmd, opts, func(ctx context.Context, bot *chatbot.ChatBot) error {
				id, err := bot.Reset(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), id)
				return nil
			})
		},
	}
}

func newSessionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Print the current session id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBot(cmd, opts, func(ctx context.Context, bot *chatbot.ChatBot) error {
				fmt.Fprintln(cmd.OutOrStdout(), bot.SessionID())
				return nil
			})
		},
	}
}

func withBot(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *chatbot.ChatBot) error) error {
	cfg, err := resolveConfig(cmd, opts)
	if err != nil {
		return err
	}

	bot, err := chatbot.NewChatBot(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize chatbot: %w", err)
	}
	defer bot.Close()

	return fn(cmd.Context(), bot)
}

// resolveConfig layers explicitly set flags over the file and environment configuration
func resolveConfig(cmd *cobra.Command, opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	set := opts.overrides
	if flags.Changed("base-url") {
		cfg.BaseURL = set.BaseURL
	}
	if flags.Changed("db") {
		cfg.DBPath = set.DBPath
	}
	if flags.Changed("log-dir") {
		cfg.LogDir = set.LogDir
	}
	if flags.Changed("ephemeral") {
		cfg.Ephemeral = set.Ephemeral
	}
	if flags.Changed("debug") {
		cfg.Debug = set.Debug
	}
	if flags.Changed("telemetry") {
		cfg.Telemetry = set.Telemetry
	}
	if flags.Changed("plain") {
		cfg.Plain = set.Plain
	}
	if flags.Changed("markdown") {
		cfg.Markdown = set.Markdown
	}
	return cfg, nil
}
