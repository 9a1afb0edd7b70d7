package publisher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("NOTE_OWNER", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "https://note.com/api/v1", cfg.Platform.APIBase)
	assert.Equal(t, 3, cfg.HTTP.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.HTTP.BaseWait)
	assert.Equal(t, 10*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, DefaultMaxImageBytes, cfg.Image.MaxBytes)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "09:00", cfg.Schedule.At)
}

func TestLoadConfigMergesFile(t *testing.T) {
	t.Setenv("NOTE_OWNER", "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
platform:
  owner: alice
http:
  timeout: 30s
  max_attempts: 5
browser:
  headless: false
markdown:
  renderer: builtin
llm:
  provider: openai
  model: gpt-4o-mini
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Platform.Owner)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.Equal(t, 5, cfg.HTTP.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.HTTP.BaseWait, "unset keys keep defaults")
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "builtin", cfg.Markdown.Renderer)
	require.NotNil(t, cfg.LLM)
	assert.Equal(t, "openai", cfg.LLM.Provider)
}

func TestLoadConfigAcceptsJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"platform":{"owner":"bob"},"server_addr":":9090"}`), 0o644))

	t.Setenv("NOTE_OWNER", "")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.Platform.Owner)
	assert.Equal(t, ":9090", cfg.ServerAddr)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("NOTE_OWNER", "carol")
	t.Setenv("NOTE_CHROME_BIN", "/usr/bin/chromium")
	t.Setenv("NOTE_LLM_API_KEY", "sk-test")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "carol", cfg.Platform.Owner)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser.Bin)
	require.NotNil(t, cfg.LLM)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  max_attempts: 0\n"), 0o644))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "max_attempts")

	require.NoError(t, os.WriteFile(path, []byte("platform:\n  api_base: not-a-url\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "api_base")

	require.NoError(t, os.WriteFile(path, []byte("platform:\n  login_url: https://note.com/\n"), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "login_url")

	require.NoError(t, os.WriteFile(path, []byte("http: [unclosed"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestIdentityFromEnv(t *testing.T) {
	t.Setenv("NOTE_EMAIL", "me@example.com")
	t.Setenv("NOTE_PASSWORD", "")
	_, err := IdentityFromEnv()
	assert.ErrorIs(t, err, ErrMissingIdentity)

	t.Setenv("NOTE_PASSWORD", "secret")
	id, err := IdentityFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", id.Email)
	assert.Equal(t, "secret", id.Password)
}

func TestConfigAdapters(t *testing.T) {
	cfg := DefaultConfig()
	ec := cfg.ExecutorConfig()
	assert.Equal(t, cfg.HTTP.MaxAttempts, ec.MaxAttempts)
	assert.Equal(t, cfg.HTTP.UserAgent, ec.UserAgent)

	rc := cfg.RodConfig()
	assert.Equal(t, cfg.Platform.LoginURL, rc.LoginURL)
	assert.True(t, rc.Headless)
}
