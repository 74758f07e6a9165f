package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// FileStore persists one identity document as a JSON file. Reads and
// writes always cover the whole document. One writer per persona; the
// store serializes in-process access with a mutex, cross-process
// discipline belongs to the caller.
type FileStore struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileStore builds a store for the document at path. The file is
// created lazily on first write; Load returns defaults until then.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{path: path, logger: logger}
}

// Path returns the document location.
func (s *FileStore) Path() string { return s.path }

// Load reads the full document, returning a default state if the file
// does not exist yet.
func (s *FileStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *FileStore) loadLocked() (*State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read identity document: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse identity document: %w", err)
	}
	return &state, nil
}

// Save writes the full document atomically: temp file in the same
// directory, then rename.
func (s *FileStore) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode identity document: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create identity directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".identity-*.json")
	if err != nil {
		return fmt.Errorf("create identity temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write identity document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close identity temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace identity document: %w", err)
	}
	return nil
}

// Watch reloads the document whenever it changes on disk and hands the
// fresh state to onChange. Manual edits in an external editor are
// picked up this way. Call Close to stop watching.
func (s *FileStore) Watch(onChange func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return errors.New("identity store already watching")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create identity watcher: %w", err)
	}
	// Watch the directory: editors and the atomic rename in Save both
	// replace the file rather than writing it in place.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch identity directory: %w", err)
	}
	s.watcher = watcher
	s.done = make(chan struct{})

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name != s.path {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				s.mu.Lock()
				state, err := s.loadLocked()
				s.mu.Unlock()
				if err != nil {
					s.logger.Warn("identity reload failed", "path", s.path, "error", err)
					continue
				}
				onChange(state)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("identity watcher error", "error", err)
			case <-s.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the file watcher if one is running.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	return err
}
