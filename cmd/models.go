package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/DevHack1010/NemHemAI/internal/synth"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the generation model allow-list and backend",
	Example: `  nemhem models show
  nemhem models probe`,
}

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show allowed generation models",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("no configuration loaded")
		}
		for _, m := range cfg.AllowedModels {
			marker := " "
			if m == cfg.DefaultModel {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, m)
		}
		return nil
	},
}

var modelsProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check whether the generation backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("no configuration loaded")
		}
		client := synth.NewClient(cfg.OllamaHost,
			time.Duration(cfg.RequestTimeoutSec)*time.Second,
			time.Duration(cfg.ProbeTimeoutSec)*time.Second,
			cfg.RetryMaxAttempts,
			time.Duration(cfg.RetryBaseDelaySec)*time.Second)
		if client.Available(cmd.Context()) {
			fmt.Printf("✓ backend reachable at %s\n", cfg.OllamaHost)
			return nil
		}
		return fmt.Errorf("backend not reachable at %s", cfg.OllamaHost)
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd)
	modelsCmd.AddCommand(modelsProbeCmd)
}
