package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etherealheim/aria/core/storage"
)

func testDirs(t *testing.T) *storage.Dirs {
	t.Helper()
	base := t.TempDir()
	return &storage.Dirs{
		Config: filepath.Join(base, "config"),
		Data:   filepath.Join(base, "data"),
		State:  filepath.Join(base, "state"),
	}
}

func clearEnvOverrides(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "OLLAMA_HOST",
		"ARIA_CHAT_PROVIDER", "ARIA_EMBEDDING_PROVIDER",
		"ARIA_LOG_LEVEL", "ARIA_SIMILARITY_THRESHOLD",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadWithoutFileKeepsDefaults(t *testing.T) {
	clearEnvOverrides(t)
	m := NewManager(testDirs(t))

	require.NoError(t, m.Load())
	cfg := m.Get()
	assert.Equal(t, "anthropic", cfg.Providers.Chat)
	assert.Equal(t, 10, cfg.Retrieval.Limit)
	assert.Equal(t, 120*time.Second, cfg.Identity.ReflectionDebounce)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnvOverrides(t)
	dirs := testDirs(t)
	require.NoError(t, os.MkdirAll(dirs.Config, 0o755))
	yaml := `
providers:
  chat: openai
retrieval:
  limit: 25
  similarity_threshold: 0.45
`
	require.NoError(t, os.WriteFile(filepath.Join(dirs.Config, "config.yaml"), []byte(yaml), 0o644))

	m := NewManager(dirs)
	require.NoError(t, m.Load())
	cfg := m.Get()
	assert.Equal(t, "openai", cfg.Providers.Chat)
	assert.Equal(t, 25, cfg.Retrieval.Limit)
	assert.Equal(t, 0.45, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, "mxbai-embed-large", cfg.Providers.Ollama.Model, "untouched sections keep their defaults")
}

func TestEnvironmentOverridesFile(t *testing.T) {
	clearEnvOverrides(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-123")
	t.Setenv("ARIA_SIMILARITY_THRESHOLD", "0.6")

	m := NewManager(testDirs(t))
	require.NoError(t, m.Load())
	cfg := m.Get()
	assert.Equal(t, "sk-test-123", cfg.Providers.Anthropic.APIKey)
	assert.Equal(t, 0.6, cfg.Retrieval.SimilarityThreshold)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	clearEnvOverrides(t)
	dirs := testDirs(t)
	require.NoError(t, os.MkdirAll(dirs.Config, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dirs.Config, "config.yaml"), []byte(":\t not yaml ["), 0o644))

	m := NewManager(dirs)
	assert.Error(t, m.Load())
}

func TestOnChangeFiresAfterLoad(t *testing.T) {
	clearEnvOverrides(t)
	m := NewManager(testDirs(t))

	var seen *Config
	m.OnChange(func(cfg *Config) { seen = cfg })
	require.NoError(t, m.Load())
	require.NotNil(t, seen)
	assert.Equal(t, m.Get(), seen)
}

func TestIdentityFileResolution(t *testing.T) {
	dirs := testDirs(t)
	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join(dirs.Data, "identity.json"), cfg.IdentityFile(dirs))

	cfg.Identity.File = "/tmp/elsewhere.json"
	assert.Equal(t, "/tmp/elsewhere.json", cfg.IdentityFile(dirs))
}
