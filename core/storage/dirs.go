package storage

import (
	"os"
	"path/filepath"
)

// Dirs resolves where the assistant keeps its files, following XDG
// conventions with sensible home-directory fallbacks.
type Dirs struct {
	Config string // config.yaml
	Data   string // message store, keyword index, identity documents
	State  string // logs and runtime state
}

// ResolveDirs returns the per-user directory layout. XDG environment
// variables win when set.
func ResolveDirs() (*Dirs, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Dirs{
		Config: resolveDir("XDG_CONFIG_HOME", filepath.Join(home, ".config")),
		Data:   resolveDir("XDG_DATA_HOME", filepath.Join(home, ".local", "share")),
		State:  resolveDir("XDG_STATE_HOME", filepath.Join(home, ".local", "state")),
	}, nil
}

func resolveDir(envVar, fallback string) string {
	base := os.Getenv(envVar)
	if base == "" {
		base = fallback
	}
	return filepath.Join(base, "aria")
}

// EnsureDir creates a directory if it does not exist. Identity and
// message data are private to the user, so the default mode is 0700.
func EnsureDir(path string, perm os.FileMode) error {
	if perm == 0 {
		perm = 0o700
	}
	return os.MkdirAll(path, perm)
}
