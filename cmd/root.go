// Package cmd provides the CLI surface of the aria memory subsystem.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/etherealheim/aria/core/config"
	"github.com/etherealheim/aria/core/identity"
	"github.com/etherealheim/aria/core/providers"
	"github.com/etherealheim/aria/core/retrieval"
	"github.com/etherealheim/aria/core/storage"
)

var rootCmd = &cobra.Command{
	Use:   "aria",
	Short: "Aria - a personal assistant that remembers",
	Long: `Aria is the memory subsystem of a personal terminal assistant:
it stores conversations, retrieves them by meaning and by keyword,
resolves natural-language time references, and evolves a persona
from what it learns.`,
	SilenceUsage: true,
}

var (
	rootDataDir  string
	rootLogLevel string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDataDir, "data-dir", "", "override the data directory")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "log level: debug, info, warn, error")
}

func Execute() error {
	return rootCmd.Execute()
}

// appContext bundles the pieces every command needs.
type appContext struct {
	dirs    *storage.Dirs
	config  *config.Config
	logger  *slog.Logger
	storage *storage.Manager
}

// setup resolves directories, loads configuration, and opens storage.
func setup() (*appContext, error) {
	dirs, err := storage.ResolveDirs()
	if err != nil {
		return nil, fmt.Errorf("resolve directories: %w", err)
	}
	if rootDataDir != "" {
		dirs.Data = rootDataDir
	}

	manager := config.NewManager(dirs)
	if err := manager.Load(); err != nil {
		return nil, err
	}
	cfg := manager.Get()
	if rootLogLevel != "" {
		cfg.Logging.Level = rootLogLevel
	}
	logger := newLogger(cfg.Logging.Level)

	if err := storage.EnsureDir(dirs.Data, 0); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := storage.OpenManager(storage.ManagerConfig{
		Dir:              dirs.Data,
		KeywordCacheSize: cfg.Retrieval.KeywordCacheSize,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}

	return &appContext{dirs: dirs, config: cfg, logger: logger, storage: store}, nil
}

func (a *appContext) close() {
	if err := a.storage.Close(); err != nil {
		a.logger.Warn("storage close failed", "error", err)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// newEmbedder builds the configured embedding backend. Returns nil when
// the configuration names none; retrieval then runs without the dense
// pass.
func (a *appContext) newEmbedder() providers.Embedder {
	switch a.config.Providers.Embeddings {
	case "openai":
		client, err := providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey:         a.config.Providers.OpenAI.APIKey,
			Model:          a.config.Providers.OpenAI.Model,
			EmbeddingModel: a.config.Providers.OpenAI.EmbeddingModel,
		})
		if err != nil {
			a.logger.Warn("openai embedder unavailable", "error", err)
			return nil
		}
		return client
	case "ollama":
		return providers.NewOllamaEmbedder(providers.OllamaConfig{
			BaseURL: a.config.Providers.Ollama.BaseURL,
			Model:   a.config.Providers.Ollama.Model,
		})
	default:
		a.logger.Warn("no embedding provider configured", "provider", a.config.Providers.Embeddings)
		return nil
	}
}

// newChatClient builds the configured chat backend.
func (a *appContext) newChatClient() (providers.ChatClient, error) {
	switch a.config.Providers.Chat {
	case "openai":
		return providers.NewOpenAIClient(providers.OpenAIConfig{
			APIKey: a.config.Providers.OpenAI.APIKey,
			Model:  a.config.Providers.OpenAI.Model,
		})
	case "anthropic":
		return providers.NewAnthropicClient(providers.AnthropicConfig{
			APIKey:    a.config.Providers.Anthropic.APIKey,
			Model:     a.config.Providers.Anthropic.Model,
			MaxTokens: a.config.Providers.Anthropic.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("unknown chat provider %q", a.config.Providers.Chat)
	}
}

// newRetrievalEngine wires storage and the embedder into the fusion
// engine.
func (a *appContext) newRetrievalEngine() (*retrieval.Engine, error) {
	return retrieval.NewEngine(a.storage, a.newEmbedder(), retrieval.Config{
		CacheSize: a.config.Retrieval.CacheSize,
		CacheTTL:  a.config.Retrieval.CacheTTL,
	}, a.logger)
}

// identityStore opens the persona document store.
func (a *appContext) identityStore() *identity.FileStore {
	return identity.NewFileStore(a.config.IdentityFile(a.dirs), a.logger)
}
