package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	defaultConfigDir = "/etc/greeter-broker"
	defaultDataDir   = "/var/lib/greeter-broker"
	envPrefix        = "GREETER"
)

// PropertyConfig is one entry of the property list sent with CreateSession.
// Value keeps whatever scalar type the YAML or environment produced; the
// login1 package turns it into a typed D-Bus variant.
type PropertyConfig struct {
	Name  string `mapstructure:"name" yaml:"name"`
	Value any    `mapstructure:"value" yaml:"value"`
}

type Config struct {
	PAMService     string `mapstructure:"pam_service" yaml:"pam_service"`
	SessionService string `mapstructure:"session_service" yaml:"session_service"`
	SessionType    string `mapstructure:"session_type" yaml:"session_type"`
	SessionClass   string `mapstructure:"session_class" yaml:"session_class"`
	Desktop        string `mapstructure:"desktop" yaml:"desktop"`
	DefaultSeat    string `mapstructure:"default_seat" yaml:"default_seat"`
	DefaultVT      int    `mapstructure:"default_vt" yaml:"default_vt"`

	SessionProperties []PropertyConfig `mapstructure:"session_properties" yaml:"session_properties"`

	ManagerCallTimeoutSeconds int  `mapstructure:"manager_call_timeout_seconds" yaml:"manager_call_timeout_seconds"`
	ProgramTimeoutSeconds     int  `mapstructure:"program_timeout_seconds" yaml:"program_timeout_seconds"`
	DropPrivileges            bool `mapstructure:"drop_privileges" yaml:"drop_privileges"`
	InheritEnvironment        bool `mapstructure:"inherit_environment" yaml:"inherit_environment"`

	LogLevel      string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat     string `mapstructure:"log_format" yaml:"log_format"`
	LogFile       string `mapstructure:"log_file" yaml:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`

	AuditEnabled    bool   `mapstructure:"audit_enabled" yaml:"audit_enabled"`
	AuditPath       string `mapstructure:"audit_path" yaml:"audit_path"`
	AuditMaxSizeMB  int    `mapstructure:"audit_max_size_mb" yaml:"audit_max_size_mb"`
	AuditMaxBackups int    `mapstructure:"audit_max_backups" yaml:"audit_max_backups"`
}

func Default() *Config {
	return &Config{
		PAMService:                "login",
		SessionService:            "wl_greeter",
		SessionType:               "wayland",
		SessionClass:              "greeter",
		DefaultSeat:               "seat0",
		DefaultVT:                 1,
		SessionProperties:         []PropertyConfig{},
		ManagerCallTimeoutSeconds: 25,
		DropPrivileges:            true,
		InheritEnvironment:        true,
		LogLevel:                  "info",
		LogFormat:                 "text",
		LogMaxSizeMB:              10,
		LogMaxBackups:             3,
		AuditEnabled:              true,
		AuditPath:                 filepath.Join(defaultDataDir, "audit.jsonl"),
		AuditMaxSizeMB:            10,
		AuditMaxBackups:           3,
	}
}

// Load reads the config file (cfgFile, or broker.yaml from the default
// locations) and GREETER_* environment overrides on top of Default().
// A missing default config file is not an error.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	v := viper.New()

	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("broker")
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	if cfg.SessionProperties == nil {
		cfg.SessionProperties = []PropertyConfig{}
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// are absent from the config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("pam_service", cfg.PAMService)
	v.SetDefault("session_service", cfg.SessionService)
	v.SetDefault("session_type", cfg.SessionType)
	v.SetDefault("session_class", cfg.SessionClass)
	v.SetDefault("desktop", cfg.Desktop)
	v.SetDefault("default_seat", cfg.DefaultSeat)
	v.SetDefault("default_vt", cfg.DefaultVT)
	v.SetDefault("manager_call_timeout_seconds", cfg.ManagerCallTimeoutSeconds)
	v.SetDefault("program_timeout_seconds", cfg.ProgramTimeoutSeconds)
	v.SetDefault("drop_privileges", cfg.DropPrivileges)
	v.SetDefault("inherit_environment", cfg.InheritEnvironment)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("log_max_backups", cfg.LogMaxBackups)
	v.SetDefault("audit_enabled", cfg.AuditEnabled)
	v.SetDefault("audit_path", cfg.AuditPath)
	v.SetDefault("audit_max_size_mb", cfg.AuditMaxSizeMB)
	v.SetDefault("audit_max_backups", cfg.AuditMaxBackups)
}
