package cmd

import (
	"fmt"
	"log/slog"
	"os"

	cfgpkg "github.com/DevHack1010/NemHemAI/internal/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags (wired later to config/viper)
	cfgFile string
	debug   bool
	// Server/backend flags (override config if set)
	flagListenAddr        string
	flagDatabasePath      string
	flagOllamaHost        string
	flagRetryMaxAttempts  int
	flagRequestTimeoutSec int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "nemhem",
	Short: "NemHem: ask questions about your CSV data in plain language",
	Long:  `NemHem serves an HTTP API that decodes uploaded CSV files, turns natural-language questions into analysis code via a local Ollama backend (with a deterministic fallback), executes the code in a restricted interpreter, and streams results back as newline-delimited JSON events.`,
}

// Execute is the entry point called by main.main()
func Execute() {
	// Initialize configuration before executing commands
	cobra.OnInitialize(loadConfig)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	// Persistent global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.nemhem/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output")
	rootCmd.PersistentFlags().StringVar(&flagListenAddr, "listen", "", "listen address (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagDatabasePath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagOllamaHost, "ollama-host", "", "generation backend base URL (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max generation retry attempts (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRequestTimeoutSec, "request-timeout", 0, "generation request timeout in seconds (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		return
	}
	cfg = c

	// Apply CLI overrides if provided
	f := rootCmd.PersistentFlags()
	if f.Changed("listen") && flagListenAddr != "" {
		cfg.ListenAddr = flagListenAddr
	}
	if f.Changed("db") && flagDatabasePath != "" {
		cfg.DatabasePath = flagDatabasePath
	}
	if f.Changed("ollama-host") && flagOllamaHost != "" {
		cfg.OllamaHost = flagOllamaHost
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("request-timeout") && flagRequestTimeoutSec > 0 {
		cfg.RequestTimeoutSec = flagRequestTimeoutSec
	}
}

// newLogger builds the process logger from config and the --debug flag.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
