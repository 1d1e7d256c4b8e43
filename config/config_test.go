package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_CoversStockProviders(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "openai", cfg.DefaultProvider)
	assert.Equal(t, 24*time.Hour, cfg.Session.Retention.Std())
	assert.Equal(t, time.Hour, cfg.Session.SweepInterval.Std())

	ids := make([]string, 0, len(cfg.Providers))
	for _, provider := range cfg.Providers {
		ids = append(ids, provider.ID)
	}
	assert.ElementsMatch(t, []string{"openai", "anthropic", "groq"}, ids)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9999"
default_provider: anthropic
session:
  system_prompt: "Be brief."
  model: claude-3-sonnet
  temperature: 0.4
  max_tokens: 512
  max_history: 10
  retention: 48h
  sweep_interval: 30m
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, "anthropic", cfg.DefaultProvider)
	assert.Equal(t, "Be brief.", cfg.Session.SystemPrompt)
	assert.Equal(t, 48*time.Hour, cfg.Session.Retention.Std())
	assert.Equal(t, 30*time.Minute, cfg.Session.SweepInterval.Std())

	// Providers not named in the file keep their defaults.
	assert.Len(t, cfg.Providers, 3)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  temperature: 3.5\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("default_provider: aws\n"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
}

func TestProviderConfig_ResolvesCredentialFromEnv(t *testing.T) {
	t.Setenv("RELAY_TEST_KEY", "sk-test")

	provider := ProviderConfig{ID: "openai", APIKeyEnv: "RELAY_TEST_KEY"}
	assert.Equal(t, "sk-test", provider.APIKey())

	assert.Empty(t, ProviderConfig{ID: "x"}.APIKey())
}
