// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/warp/outpass-engine/workflow"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string   `mapstructure:"PORT"`
	DBPath         string   `mapstructure:"DB_PATH"`
	RedisURL       string   `mapstructure:"REDIS_URL"`
	AllowedOrigins []string `mapstructure:"ALLOWED_ORIGINS"`
	LogLevel       string   `mapstructure:"LOG_LEVEL"`

	PartnerInstitutions          []string      `mapstructure:"PARTNER_INSTITUTIONS"`
	RoleAliases                  string        `mapstructure:"ROLE_ALIASES"`
	AutoApproveWarden            bool          `mapstructure:"AUTO_APPROVE_WARDEN"`
	RequireCheckOutBeforeCheckIn bool          `mapstructure:"REQUIRE_CHECKOUT_BEFORE_CHECKIN"`
	DecideMaxAttempts            int           `mapstructure:"DECIDE_MAX_ATTEMPTS"`
	MirrorLegacyRoles            bool          `mapstructure:"MIRROR_LEGACY_ROLES"`
	NotifyDedupTTL               time.Duration `mapstructure:"NOTIFY_DEDUP_TTL"`
}

// Load reads config.yml from dir (if present) and the environment.
// Environment variables win over the file.
func Load(dir string, log logrus.FieldLogger) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(err, &notFoundErr) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if log != nil {
			log.Info("config file not found; using environment variables and defaults")
		}
	}

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.AllowedOrigins = splitList(cfg.AllowedOrigins)
	cfg.PartnerInstitutions = splitList(cfg.PartnerInstitutions)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("DB_PATH", "./data/outpass.db")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("PARTNER_INSTITUTIONS", "")
	v.SetDefault("ROLE_ALIASES", "")
	v.SetDefault("AUTO_APPROVE_WARDEN", false)
	v.SetDefault("REQUIRE_CHECKOUT_BEFORE_CHECKIN", true)
	v.SetDefault("DECIDE_MAX_ATTEMPTS", workflow.DefaultDecideMaxAttempts)
	v.SetDefault("MIRROR_LEGACY_ROLES", true)
	v.SetDefault("NOTIFY_DEDUP_TTL", "168h")
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	if c.DBPath == "" {
		return errors.New("DB_PATH must not be empty")
	}
	if c.DecideMaxAttempts < 1 {
		return fmt.Errorf("DECIDE_MAX_ATTEMPTS must be at least 1, got %d", c.DecideMaxAttempts)
	}
	if c.NotifyDedupTTL < 0 {
		return fmt.Errorf("NOTIFY_DEDUP_TTL must not be negative, got %s", c.NotifyDedupTTL)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if _, err := c.RoleTable(); err != nil {
		return fmt.Errorf("ROLE_ALIASES: %w", err)
	}
	return nil
}

// RoleTable builds the role table from the default identities plus
// ROLE_ALIASES.
func (c *Config) RoleTable() (*workflow.RoleTable, error) {
	ids, err := workflow.ParseRoleAliases(c.RoleAliases)
	if err != nil {
		return nil, err
	}
	return workflow.NewRoleTable(ids...)
}

// Policy maps the policy switches.
func (c *Config) Policy() workflow.Policy {
	return workflow.Policy{
		PartnerInstitutions:            append([]string(nil), c.PartnerInstitutions...),
		AutoApproveResidenceSupervisor: c.AutoApproveWarden,
		RequireCheckOutBeforeCheckIn:   c.RequireCheckOutBeforeCheckIn,
	}
}

// Level returns the parsed log level. Validate has already checked it.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
