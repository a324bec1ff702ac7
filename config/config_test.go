package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/outpass-engine/workflow"
)

var envKeys = []string{
	"PORT", "DB_PATH", "REDIS_URL", "ALLOWED_ORIGINS", "LOG_LEVEL",
	"PARTNER_INSTITUTIONS", "ROLE_ALIASES", "AUTO_APPROVE_WARDEN",
	"REQUIRE_CHECKOUT_BEFORE_CHECKIN", "DECIDE_MAX_ATTEMPTS",
	"MIRROR_LEGACY_ROLES", "NOTIFY_DEDUP_TTL",
}

// clearEnv blanks every key; viper treats empty variables as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "./data/outpass.db", cfg.DBPath)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.PartnerInstitutions)
	assert.True(t, cfg.RequireCheckOutBeforeCheckIn)
	assert.False(t, cfg.AutoApproveWarden)
	assert.True(t, cfg.MirrorLegacyRoles)
	assert.Equal(t, workflow.DefaultDecideMaxAttempts, cfg.DecideMaxAttempts)
	assert.Equal(t, 168*time.Hour, cfg.NotifyDedupTTL)
	assert.Equal(t, logrus.InfoLevel, cfg.Level())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("PARTNER_INSTITUTIONS", "SCMS, SIBM")
	t.Setenv("ROLE_ALIASES", "campus_admin=director,principal")
	t.Setenv("AUTO_APPROVE_WARDEN", "true")
	t.Setenv("REQUIRE_CHECKOUT_BEFORE_CHECKIN", "false")
	t.Setenv("DECIDE_MAX_ATTEMPTS", "3")
	t.Setenv("NOTIFY_DEDUP_TTL", "1h")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, []string{"SCMS", "SIBM"}, cfg.PartnerInstitutions)
	assert.Equal(t, 3, cfg.DecideMaxAttempts)
	assert.Equal(t, time.Hour, cfg.NotifyDedupTTL)
	assert.Equal(t, logrus.DebugLevel, cfg.Level())

	policy := cfg.Policy()
	assert.True(t, policy.AutoApproveResidenceSupervisor)
	assert.False(t, policy.RequireCheckOutBeforeCheckIn)
	assert.True(t, policy.IsPartner("sibm"))

	table, err := cfg.RoleTable()
	require.NoError(t, err)
	r, err := table.Canonicalize("principal")
	require.NoError(t, err)
	assert.Equal(t, workflow.RoleCampusAdmin, r)
}

func TestLoad_ConfigFile(t *testing.T) {
	// GIVEN: A config.yml with a YAML list and an env override
	clearEnv(t)
	dir := t.TempDir()
	yml := "PORT: \"7070\"\nPARTNER_INSTITUTIONS:\n  - SCMS\n  - SIBM\nMIRROR_LEGACY_ROLES: false\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(yml), 0o600))
	t.Setenv("PORT", "6060")

	// WHEN
	cfg, err := Load(dir, logrus.New())

	// THEN: File values apply, environment wins
	require.NoError(t, err)
	assert.Equal(t, "6060", cfg.Port)
	assert.Equal(t, []string{"SCMS", "SIBM"}, cfg.PartnerInstitutions)
	assert.False(t, cfg.MirrorLegacyRoles)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"DECIDE_MAX_ATTEMPTS", "0"},
		{"LOG_LEVEL", "chatty"},
		{"ROLE_ALIASES", "campus_admin"},
		{"NOTIFY_DEDUP_TTL", "-1h"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(t.TempDir(), nil)
			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte("PORT: [unclosed"), 0o600))

	_, err := Load(dir, nil)
	assert.Error(t, err)
}
