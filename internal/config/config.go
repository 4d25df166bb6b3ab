package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/garyjia/billing-master/pkg/utils"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Mail      MailConfig      `mapstructure:"mail"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP console configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds run history database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	Retention       time.Duration `mapstructure:"retention"`
	PruneInterval   time.Duration `mapstructure:"prune_interval"`
}

// WorkspaceConfig holds where intermediate and final reports go
type WorkspaceConfig struct {
	TempDir   string `mapstructure:"temp_dir"`
	OutputDir string `mapstructure:"output_dir"`
}

// MailConfig holds draft composition configuration
type MailConfig struct {
	To            []string      `mapstructure:"to"`
	CC            []string      `mapstructure:"cc"`
	DraftsDir     string        `mapstructure:"drafts_dir"`
	SignaturePath string        `mapstructure:"signature_path"`
	PollAttempts  int           `mapstructure:"poll_attempts"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	OpenDraft     bool          `mapstructure:"open_draft"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Utils converts the section to the logger constructor's options
func (l LoggerConfig) Utils() utils.LoggerConfig {
	return utils.LoggerConfig{Level: l.Level, OutputPath: l.OutputPath, Format: l.Format}
}

// Load reads configPath, then a .env file next to the working directory,
// then BILLING_* environment variables. A missing config file leaves the
// defaults in place.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BILLING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/billing.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.retention", 90*24*time.Hour)
	v.SetDefault("database.prune_interval", 24*time.Hour)

	// Workspace defaults
	v.SetDefault("workspace.temp_dir", "")
	v.SetDefault("workspace.output_dir", "reports")

	// Mail defaults
	v.SetDefault("mail.to", []string{})
	v.SetDefault("mail.cc", []string{})
	v.SetDefault("mail.drafts_dir", "drafts")
	v.SetDefault("mail.signature_path", "")
	v.SetDefault("mail.poll_attempts", 50)
	v.SetDefault("mail.poll_interval", 100*time.Millisecond)
	v.SetDefault("mail.open_draft", false)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "console")
}

// bindEnvVars binds the variables whose names do not follow the prefix rule
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("mail.signature_path", "BILLING_SIGNATURE", "BILLING_MAIL_SIGNATURE_PATH")
	_ = v.BindEnv("logger.level", "LOG_LEVEL", "BILLING_LOGGER_LEVEL")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Database.Retention < 0 {
		return fmt.Errorf("database.retention must not be negative")
	}
	if c.Database.Retention > 0 && c.Database.PruneInterval <= 0 {
		return fmt.Errorf("database.prune_interval must be positive when retention is set")
	}
	if c.Workspace.OutputDir == "" {
		return fmt.Errorf("workspace.output_dir is required")
	}
	if c.Mail.DraftsDir == "" {
		return fmt.Errorf("mail.drafts_dir is required")
	}
	if c.Mail.PollAttempts < 1 {
		return fmt.Errorf("mail.poll_attempts must be at least 1")
	}
	if c.Mail.PollInterval < 0 {
		return fmt.Errorf("mail.poll_interval must not be negative")
	}
	if err := utils.ValidateEmails("mail.to", c.Mail.To); err != nil {
		return err
	}
	if err := utils.ValidateEmails("mail.cc", c.Mail.CC); err != nil {
		return err
	}
	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}
	return nil
}
