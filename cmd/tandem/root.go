package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aretw0/tandem"
	"github.com/aretw0/tandem/internal/telemetry"
)

var (
	verbose     bool
	rootDir     string
	sessionID   string
	agentName   string
	dumpMetrics bool

	metrics  = prometheus.NewRegistry()
	recorder = telemetry.NewRecorder(metrics)
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "tandem",
	Short:   "Coordinate agent sessions over a shared markdown workspace",
	Version: strings.TrimSpace(tandem.Version),
	Long: `Tandem keeps the shared context, decision log, progress summary and quality
metrics of a multi-agent workspace consistent: versions, conflict detection,
type-aware merges, advisory locks and role-filtered handoffs.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if !dumpMetrics {
			return
		}
		if err := telemetry.Dump(os.Stderr, metrics); err != nil {
			slog.Warn("failed to dump metrics", "error", err)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "Workspace root (default: nearest workspace above the current directory)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", os.Getenv("TANDEM_SESSION"), "Session id recorded on versions and locks")
	rootCmd.PersistentFlags().StringVar(&agentName, "agent", os.Getenv("TANDEM_AGENT"), "Agent name recorded on versions")
	rootCmd.PersistentFlags().BoolVar(&dumpMetrics, "metrics", false, "Print coordination metrics to stderr on exit")
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
