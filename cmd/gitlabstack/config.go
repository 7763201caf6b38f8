package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/artpar/gitlabstack/internal/core/domain"
	coreprovider "github.com/artpar/gitlabstack/internal/core/provider"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	// Stack is the deployment configuration record. Its keys are read from
	// the environment without a prefix (VPC_ID, DOMAIN_NAME, ...).
	Stack domain.Config `mapstructure:",squash"`

	AWS AWSConfig `mapstructure:"aws"`
	Log LogConfig `mapstructure:"log"`
}

// AWSConfig holds the deployment target and the credentials used for
// read-only lookups.
type AWSConfig struct {
	Region    string `mapstructure:"region"`
	AccountID string `mapstructure:"account_id"`

	Credentials coreprovider.AWSCredentials `mapstructure:",squash"`
}

// Environment returns the deployment target.
func (c AWSConfig) Environment() domain.Environment {
	return domain.Environment{Region: c.Region, Account: c.AccountID}
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// stackKeys are the deployment configuration keys. Each binds to the
// environment variable of the same name in upper case.
var stackKeys = []string{
	"vpc_id",
	"subnet_id",
	"allowed_https_cidr",
	"allowed_registry_cidr",
	"gitlab_ami_id",
	"instance_type",
	"architecture",
	"disk_size_gb",
	"hosted_zone_id",
	"domain_name",
	"smtp_address",
	"smtp_port",
	"smtp_user_name",
	"smtp_password",
	"smtp_domain",
	"email_from",
	"email_display_name",
	"email_reply_to",
	"letsencrypt_email",
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from an optional .env file, an optional
// config file and the environment. Variables already set in the
// environment win over the .env file.
func LoadConfig(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()

	// Set defaults
	v.SetDefault("aws.region", domain.DefaultRegion)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range stackKeys {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, err
		}
	}
	binds := map[string][]string{
		"aws.region":            {"AWS_REGION", "CDK_DEFAULT_REGION"},
		"aws.account_id":        {"CDK_DEFAULT_ACCOUNT", "AWS_ACCOUNT_ID"},
		"aws.access_key_id":     {"AWS_ACCESS_KEY_ID"},
		"aws.secret_access_key": {"AWS_SECRET_ACCESS_KEY"},
		"aws.session_token":     {"AWS_SESSION_TOKEN"},
		"log.level":             {"GITLABSTACK_LOG_LEVEL"},
		"log.format":            {"GITLABSTACK_LOG_FORMAT"},
	}
	for key, envs := range binds {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, err
		}
	}

	// Unmarshal config
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. Logs go
// to w so that stdout stays free for command output.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
