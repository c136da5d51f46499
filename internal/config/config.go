package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir   = ".shellgate"
	DefaultConfigFile  = "config.yaml"
	DefaultLogFile     = "audit.jsonl"
	DefaultHistoryFile = "history.db"

	// EnvPrefix namespaces environment overrides, e.g.
	// SHELLGATE_SECURITY_THRESHOLD=80.
	EnvPrefix = "SHELLGATE"
)

// Approval modes.
const (
	ApprovalTerminal = "terminal"
	ApprovalPolicy   = "policy"
	ApprovalDeny     = "deny"
)

type Config struct {
	RequireConfirmation     bool          `mapstructure:"require_confirmation" yaml:"require_confirmation"`
	EnableSandbox           bool          `mapstructure:"enable_sandbox" yaml:"enable_sandbox"`
	SecurityThreshold       int           `mapstructure:"security_threshold" yaml:"security_threshold"`
	ExecutionTimeout        time.Duration `mapstructure:"execution_timeout" yaml:"execution_timeout"`
	MaxConcurrentExecutions int           `mapstructure:"max_concurrent_executions" yaml:"max_concurrent_executions"`
	ConfirmationTimeout     time.Duration `mapstructure:"confirmation_timeout" yaml:"confirmation_timeout"`

	Approval ApprovalConfig `mapstructure:"approval" yaml:"approval"`

	AuditLog  string `mapstructure:"audit_log" yaml:"audit_log"`
	HistoryDB string `mapstructure:"history_db" yaml:"history_db"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`

	// ConfigDir is where the defaults above live. It is not persisted.
	ConfigDir string `mapstructure:"-" yaml:"-"`
}

// ApprovalConfig selects where confirmation decisions come from.
type ApprovalConfig struct {
	// Mode is "terminal", "policy" or "deny".
	Mode string `mapstructure:"mode" yaml:"mode"`
	// ApproveAt, DenyBelow and Otherwise drive the policy mode.
	ApproveAt int    `mapstructure:"approve_at" yaml:"approve_at"`
	DenyBelow int    `mapstructure:"deny_below" yaml:"deny_below"`
	Otherwise string `mapstructure:"otherwise" yaml:"otherwise"`
}

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) *Config {
	return &Config{
		RequireConfirmation:     true,
		EnableSandbox:           false,
		SecurityThreshold:       70,
		ExecutionTimeout:        30 * time.Second,
		MaxConcurrentExecutions: 5,
		ConfirmationTimeout:     10 * time.Second,
		Approval: ApprovalConfig{
			Mode:      ApprovalTerminal,
			ApproveAt: 90,
			DenyBelow: 50,
			Otherwise: "denied",
		},
		AuditLog:  filepath.Join(configDir, DefaultLogFile),
		HistoryDB: filepath.Join(configDir, DefaultHistoryFile),
		LogLevel:  "info",
		ConfigDir: configDir,
	}
}

// Dir returns ~/.shellgate.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(homeDir, DefaultConfigDir), nil
}

// Load layers defaults, the YAML file at path and SHELLGATE_* environment
// variables, in that order. An empty path reads ~/.shellgate/config.yaml
// when it exists. An explicit path that does not exist is an error.
func Load(path string) (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}
	if err := ensureDir(configDir); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	def := Default(configDir)

	v := viper.New()
	setDefaults(v, def)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultConfigFile, filepath.Ext(DefaultConfigFile)))
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigDir = configDir
	cfg.AuditLog = expandHome(cfg.AuditLog)
	cfg.HistoryDB = expandHome(cfg.HistoryDB)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("require_confirmation", def.RequireConfirmation)
	v.SetDefault("enable_sandbox", def.EnableSandbox)
	v.SetDefault("security_threshold", def.SecurityThreshold)
	v.SetDefault("execution_timeout", def.ExecutionTimeout)
	v.SetDefault("max_concurrent_executions", def.MaxConcurrentExecutions)
	v.SetDefault("confirmation_timeout", def.ConfirmationTimeout)

	v.SetDefault("approval.mode", def.Approval.Mode)
	v.SetDefault("approval.approve_at", def.Approval.ApproveAt)
	v.SetDefault("approval.deny_below", def.Approval.DenyBelow)
	v.SetDefault("approval.otherwise", def.Approval.Otherwise)

	v.SetDefault("audit_log", def.AuditLog)
	v.SetDefault("history_db", def.HistoryDB)
	v.SetDefault("log_level", def.LogLevel)
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.SecurityThreshold < 0 || c.SecurityThreshold > 100 {
		return fmt.Errorf("security_threshold must be between 0 and 100, got %d", c.SecurityThreshold)
	}
	if c.MaxConcurrentExecutions < 1 {
		return fmt.Errorf("max_concurrent_executions must be at least 1, got %d", c.MaxConcurrentExecutions)
	}
	if c.ExecutionTimeout <= 0 {
		return fmt.Errorf("execution_timeout must be positive, got %s", c.ExecutionTimeout)
	}
	if c.ConfirmationTimeout <= 0 {
		return fmt.Errorf("confirmation_timeout must be positive, got %s", c.ConfirmationTimeout)
	}
	switch c.Approval.Mode {
	case ApprovalTerminal, ApprovalPolicy, ApprovalDeny:
	default:
		return fmt.Errorf("approval.mode must be one of %s, %s, %s; got %q",
			ApprovalTerminal, ApprovalPolicy, ApprovalDeny, c.Approval.Mode)
	}
	if c.Approval.ApproveAt < c.Approval.DenyBelow {
		return fmt.Errorf("approval.approve_at (%d) must not be below approval.deny_below (%d)",
			c.Approval.ApproveAt, c.Approval.DenyBelow)
	}
	switch c.Approval.Otherwise {
	case "", "approved", "denied":
	default:
		return fmt.Errorf("approval.otherwise must be approved or denied, got %q", c.Approval.Otherwise)
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}

// Save writes c to path as YAML with owner-only permissions.
func Save(c *Config, path string) error {
	if err := ensureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[2:])
}

func ensureDir(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, 0700)
	}
	return nil
}
