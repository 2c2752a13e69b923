package cmd

import (
	"fmt"
	"strconv"
	"strings"

	cfgpkg "github.com/DevHack1010/NemHemAI/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or set NemHem configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			fmt.Println("No config loaded")
			return nil
		}
		fmt.Printf("listen_addr: %s\n", cfg.ListenAddr)
		fmt.Printf("database_path: %s\n", cfg.DatabasePath)
		fmt.Printf("max_upload_mb: %d\n", cfg.MaxUploadMB)
		fmt.Printf("log_level: %s\n", cfg.LogLevel)
		fmt.Printf("ollama_host: %s\n", cfg.OllamaHost)
		fmt.Printf("default_model: %s\n", cfg.DefaultModel)
		fmt.Printf("allowed_models: %s\n", strings.Join(cfg.AllowedModels, ", "))
		fmt.Printf("request_timeout_sec: %d\n", cfg.RequestTimeoutSec)
		fmt.Printf("probe_timeout_sec: %d\n", cfg.ProbeTimeoutSec)
		fmt.Printf("stream_timeout_sec: %d\n", cfg.StreamTimeoutSec)
		fmt.Printf("retry_max_attempts: %d\n", cfg.RetryMaxAttempts)
		fmt.Printf("retry_base_delay_sec: %d\n", cfg.RetryBaseDelaySec)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value and save to disk",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, val := args[0], args[1]
		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		switch key {
		case "listen_addr":
			cfg.ListenAddr = val
		case "database_path":
			cfg.DatabasePath = val
		case "max_upload_mb":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid int for max_upload_mb: %v", val)
			}
			cfg.MaxUploadMB = i
		case "log_level":
			switch val {
			case "debug", "info", "warn", "error":
				cfg.LogLevel = val
			default:
				return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
			}
		case "ollama_host":
			cfg.OllamaHost = val
		case "default_model":
			cfg.DefaultModel = val
		case "allowed_models":
			models := strings.Split(val, ",")
			for i := range models {
				models[i] = strings.TrimSpace(models[i])
			}
			cfg.AllowedModels = models
		case "request_timeout_sec":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid int for request_timeout_sec: %v", val)
			}
			cfg.RequestTimeoutSec = i
		case "probe_timeout_sec":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid int for probe_timeout_sec: %v", val)
			}
			cfg.ProbeTimeoutSec = i
		case "stream_timeout_sec":
			i, err := strconv.Atoi(val)
			if err != nil || i <= 0 {
				return fmt.Errorf("invalid int for stream_timeout_sec: %v", val)
			}
			cfg.StreamTimeoutSec = i
		case "retry_max_attempts":
			i, err := strconv.Atoi(val)
			if err != nil || i < 1 {
				return fmt.Errorf("invalid int for retry_max_attempts: %v", val)
			}
			cfg.RetryMaxAttempts = i
		case "retry_base_delay_sec":
			i, err := strconv.Atoi(val)
			if err != nil || i < 1 {
				return fmt.Errorf("invalid int for retry_base_delay_sec: %v", val)
			}
			cfg.RetryBaseDelaySec = i
		default:
			return fmt.Errorf("unknown key: %s", key)
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Println("Saved config")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
