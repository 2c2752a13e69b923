package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	ListenAddr   string `mapstructure:"listen_addr" yaml:"listen_addr"`
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	MaxUploadMB  int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
	LogLevel     string `mapstructure:"log_level" yaml:"log_level"`

	// Generation backend (Ollama)
	OllamaHost    string   `mapstructure:"ollama_host" yaml:"ollama_host"`
	DefaultModel  string   `mapstructure:"default_model" yaml:"default_model"`
	AllowedModels []string `mapstructure:"allowed_models" yaml:"allowed_models"`

	// HTTP/Retry configuration
	RequestTimeoutSec int `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
	ProbeTimeoutSec   int `mapstructure:"probe_timeout_sec" yaml:"probe_timeout_sec"`
	StreamTimeoutSec  int `mapstructure:"stream_timeout_sec" yaml:"stream_timeout_sec"`
	RetryMaxAttempts  int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelaySec int `mapstructure:"retry_base_delay_sec" yaml:"retry_base_delay_sec"`
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.nemhem/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	var path string
	if cfgFile != "" {
		path = cfgFile
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".nemhem")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("NEMHEM")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("listen_addr", ":8000")
	v.SetDefault("max_upload_mb", 10)
	v.SetDefault("log_level", "info")
	v.SetDefault("default_model", "deepseek-coder-v2:latest")
	v.SetDefault("allowed_models", []string{
		"deepseek-coder-v2:latest",
		"llama3.1:latest",
		"mistral:latest",
	})
	// HTTP/retry defaults
	v.SetDefault("request_timeout_sec", 300)
	v.SetDefault("probe_timeout_sec", 5)
	v.SetDefault("stream_timeout_sec", 600)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_sec", 2)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")

	// Config file
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		dir := filepath.Join(home, ".nemhem")
		_ = os.MkdirAll(dir, 0o755)
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read
	_ = v.ReadInConfig()

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// Resolve database_path default: ~/.nemhem/analysis.db
	if c.DatabasePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home dir: %w", err)
		}
		c.DatabasePath = filepath.Join(home, ".nemhem", "analysis.db")
	}
	return &c, nil
}
