package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/immxrtalbeast/axenix_call/internal/ui"
	"github.com/immxrtalbeast/axenix_call/lib/logger/slogpretty"
	"github.com/spf13/cobra"
)

var flagLogLevel string

var rootCmd = &cobra.Command{
	Use:   "peer",
	Short: "Headless call participant",
	Long: `peer joins a call room through the signaling gateway and negotiates a
peer-to-peer session with every other participant. It publishes silent audio
and idle video tracks, prints the roster and relays chat typed on stdin.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(setupLogger(flagLogLevel))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", envOr("LOG_LEVEL", "warn"), "debug, info, warn or error")
	rootCmd.AddCommand(joinCmd)
}

// Execute runs the command tree. It is called once by main.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

// setupLogger writes to stderr so that logs never interleave with the call
// view on stdout.
func setupLogger(level string) *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{Level: parseLevel(level)},
	}
	return slog.New(opts.NewPrettyHandler(os.Stderr))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug", "dev":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error", "prod":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
