package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://agent@localhost/agent?sslmode=disable")
	t.Setenv("SERPER_API_KEY", "serper-key")
	t.Setenv("HTTP_PORT", "9090")

	path := writeConfig(t, `
discover:
  limit: "*"
  page_cap: 3
  delay_max: 5s
verify:
  limit: 20
  interest_gate: true
draft:
  limit: "*"
dispatch:
  mode: template
  lease_ttl: 2m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Discover.Limit.IsUnlimited())
	assert.Equal(t, 3, cfg.Discover.PageCap)
	assert.Equal(t, 5*time.Second, cfg.Discover.DelayMax)
	assert.Equal(t, Limit(20), cfg.Verify.Limit)
	assert.True(t, cfg.Verify.InterestGate)
	assert.True(t, cfg.Draft.Limit.IsUnlimited())
	assert.Equal(t, "template", cfg.Dispatch.Mode)
	assert.Equal(t, 2*time.Minute, cfg.Dispatch.LeaseTTL)
	assert.Equal(t, Limit(1), cfg.Dispatch.Limit, "defaults survive a partial file")

	assert.Equal(t, "serper-key", cfg.Search.SerperAPIKey)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.NotEmpty(t, cfg.Store.DatabaseURL)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestLoad_InvalidLimit(t *testing.T) {
	path := writeConfig(t, "verify:\n  limit: -3\n")
	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid limit")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "memory"
	require.NoError(t, Validate(&cfg))

	cfg.Store.Driver = "postgres"
	cfg.Dispatch.Mode = "carrier-pigeon"
	cfg.Discover.Domains = nil
	err := Validate(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Store.DatabaseURL (required_if)")
	assert.Contains(t, err.Error(), "Config.Dispatch.Mode (oneof)")
	assert.Contains(t, err.Error(), "Config.Discover.Domains (min)")
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    Limit
		wantErr bool
	}{
		{"*", Unlimited, false},
		{" 12 ", 12, false},
		{"0", 0, false},
		{"-1", 0, true},
		{"all", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLimit(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLimit_YAMLRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(DraftConfig{Limit: Unlimited})
	require.NoError(t, err)
	assert.Contains(t, string(out), "*")

	var back DraftConfig
	require.NoError(t, yaml.Unmarshal(out, &back))
	assert.True(t, back.Limit.IsUnlimited())

	assert.Equal(t, 0, Unlimited.Int())
	assert.Equal(t, 4, Limit(4).Int())
}
