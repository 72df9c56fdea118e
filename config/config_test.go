package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ExpandsEnvAndOverridesDefaults(t *testing.T) {
	t.Setenv("ALICE_DOMAIN", "alice.example")
	t.Setenv("ALICE_ADMIN_TOKEN", "s3cret")

	path := writeConfig(t, `
app:
  log_level: debug
  http:
    port: 8080
actor:
  domain: ${ALICE_DOMAIN}
delivery:
  timeout: 3s
admin:
  token: ${ALICE_ADMIN_TOKEN}
`)

	cfg := NewDefaultConfig()
	require.NoError(t, Load(path, cfg))

	assert.Equal(t, zapcore.DebugLevel, cfg.App.LogLevel)
	assert.Equal(t, ":8080", cfg.App.HTTP.Address())
	assert.Equal(t, "alice.example", cfg.Actor.Domain)
	assert.Equal(t, "alice", cfg.Actor.Username)
	assert.Equal(t, "hello-world", cfg.Actor.Slug)
	assert.Equal(t, 3*time.Second, cfg.Delivery.Timeout)
	assert.Equal(t, int64(1<<20), cfg.Delivery.MaxResponseBytes)
	assert.True(t, cfg.Admin.TriggerEnabled())
}

func TestLoad_MissingFile(t *testing.T) {
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"), NewDefaultConfig())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "actor:\n  domain: https://alice.example\n")

	err := Load(path, NewDefaultConfig())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "actor"), err.Error())
}

func TestLoadWithDefaults_NoFileValidatesDefaults(t *testing.T) {
	cfg := NewDefaultConfig()
	// Default domain is empty, which must be caught.
	assert.Error(t, LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"), cfg))

	cfg.Actor.Domain = "alice.example"
	assert.NoError(t, LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"), cfg))
}

func TestActorConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ActorConfig
		wantErr bool
	}{
		{"valid", ActorConfig{Domain: "alice.example", Username: "alice", Slug: "hello-world"}, false},
		{"domain with port", ActorConfig{Domain: "localhost:3000", Username: "alice", Slug: "hello-world"}, false},
		{"missing domain", ActorConfig{Username: "alice", Slug: "hello-world"}, true},
		{"domain with scheme", ActorConfig{Domain: "https://alice.example", Username: "alice", Slug: "x"}, true},
		{"bad username", ActorConfig{Domain: "alice.example", Username: "al ice", Slug: "x"}, true},
		{"bad slug", ActorConfig{Domain: "alice.example", Username: "alice", Slug: "Hello World"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeliveryConfig_Validate(t *testing.T) {
	cfg := DeliveryConfig{Timeout: 0, MaxResponseBytes: 1}
	assert.Error(t, cfg.Validate())

	cfg = DeliveryConfig{Timeout: time.Second, MaxResponseBytes: 0}
	assert.Error(t, cfg.Validate())

	cfg = DeliveryConfig{Timeout: time.Second, MaxResponseBytes: 1024}
	assert.NoError(t, cfg.Validate())
}

func TestAdminConfig_TriggerDisabledByDefault(t *testing.T) {
	assert.False(t, NewDefaultConfig().Admin.TriggerEnabled())
}
