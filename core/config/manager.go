package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/etherealheim/aria/core/storage"
)

// Manager loads and holds the assistant configuration. Get is safe
// from any goroutine; Load swaps the whole document atomically.
type Manager struct {
	current   atomic.Pointer[Config]
	dirs      *storage.Dirs
	watchers  []func(*Config)
	watcherMu sync.RWMutex
}

// Config is the full configuration document.
type Config struct {
	Providers ProvidersConfig `yaml:"providers"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Identity  IdentityConfig  `yaml:"identity"`
	Tasks     TasksConfig     `yaml:"tasks"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ProvidersConfig struct {
	// Chat selects the reflection/chat backend: anthropic or openai.
	Chat string `yaml:"chat"`
	// Embeddings selects the embedding backend: openai or ollama.
	Embeddings string `yaml:"embeddings"`

	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Ollama    OllamaConfig    `yaml:"ollama"`
}

type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

type OllamaConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

type RetrievalConfig struct {
	Limit               int           `yaml:"limit"`
	SimilarityThreshold float64       `yaml:"similarity_threshold"`
	CacheSize           int           `yaml:"cache_size"`
	CacheTTL            time.Duration `yaml:"cache_ttl"`
	KeywordCacheSize    int           `yaml:"keyword_cache_size"`
}

type IdentityConfig struct {
	// File overrides the identity document location; empty means
	// identity.json under the data directory.
	File               string        `yaml:"file"`
	ReflectionDebounce time.Duration `yaml:"reflection_debounce"`
	TraitDecayDays     int           `yaml:"trait_decay_days"`
	ActiveDecayDays    int           `yaml:"active_decay_days"`
	BacklogDecayDays   int           `yaml:"backlog_decay_days"`
}

type TasksConfig struct {
	MaxConcurrent int `yaml:"max_concurrent"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Providers: ProvidersConfig{
			Chat:       "anthropic",
			Embeddings: "ollama",
			Anthropic: AnthropicConfig{
				Model:     "claude-haiku-4-5-20251001",
				MaxTokens: 1024,
			},
			OpenAI: OpenAIConfig{
				Model:          "gpt-4o-mini",
				EmbeddingModel: "text-embedding-3-small",
			},
			Ollama: OllamaConfig{
				BaseURL: "http://localhost:11434",
				Model:   "mxbai-embed-large",
			},
		},
		Retrieval: RetrievalConfig{
			Limit:               10,
			SimilarityThreshold: 0.3,
			CacheSize:           256,
			CacheTTL:            5 * time.Minute,
			KeywordCacheSize:    1024,
		},
		Identity: IdentityConfig{
			ReflectionDebounce: 120 * time.Second,
			TraitDecayDays:     21,
			ActiveDecayDays:    30,
			BacklogDecayDays:   60,
		},
		Tasks: TasksConfig{
			MaxConcurrent: 4,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// NewManager builds a manager seeded with defaults.
func NewManager(dirs *storage.Dirs) *Manager {
	m := &Manager{dirs: dirs}
	m.current.Store(DefaultConfig())
	return m
}

// Get returns the current configuration snapshot.
func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Path returns the user config file location.
func (m *Manager) Path() string {
	return filepath.Join(m.dirs.Config, "config.yaml")
}

// Load reads the user config file over the defaults, applies
// environment overrides, and publishes the result. A missing file is
// not an error.
func (m *Manager) Load() error {
	cfg := DefaultConfig()

	data, err := os.ReadFile(m.Path())
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read config file: %w", err)
	}

	applyEnvironment(cfg)

	m.current.Store(cfg)
	m.notifyWatchers(cfg)
	return nil
}

// Reload re-runs Load.
func (m *Manager) Reload() error {
	return m.Load()
}

// OnChange registers a callback invoked after every successful Load.
func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()
	for _, fn := range watchers {
		fn(cfg)
	}
}

// applyEnvironment layers environment variables over the file.
// Secrets come from the environment so they never land in config.yaml.
func applyEnvironment(cfg *Config) {
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		cfg.Providers.Anthropic.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Providers.OpenAI.APIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.Providers.Ollama.BaseURL = v
	}
	if v := os.Getenv("ARIA_CHAT_PROVIDER"); v != "" {
		cfg.Providers.Chat = v
	}
	if v := os.Getenv("ARIA_EMBEDDING_PROVIDER"); v != "" {
		cfg.Providers.Embeddings = v
	}
	if v := os.Getenv("ARIA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("ARIA_SIMILARITY_THRESHOLD"); v != "" {
		if f, err := parseFloat(v); err == nil {
			cfg.Retrieval.SimilarityThreshold = f
		}
	}
}

func parseFloat(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(s, "%f", &f)
	return f, err
}

// IdentityFile resolves the identity document path against the data
// directory when no explicit override is set.
func (c *Config) IdentityFile(dirs *storage.Dirs) string {
	if c.Identity.File != "" {
		return c.Identity.File
	}
	return filepath.Join(dirs.Data, "identity.json")
}
