// status_store.go: Persistent enable/disable decisions for plugins
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"bufio"
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/agilira/argus"
)

// StatusStore remembers which plugins the operator disabled.
//
// The lifecycle controller consults IsDisabled when a plugin is loaded and
// calls SetDisabled from DisablePlugin and EnablePlugin.
type StatusStore interface {
	IsDisabled(pluginID string) bool
	SetDisabled(pluginID string, disabled bool) error
}

// MemoryStatusStore keeps decisions in memory only.
type MemoryStatusStore struct {
	mu       sync.RWMutex
	disabled map[string]bool
}

// NewMemoryStatusStore creates a store with the given ids disabled.
func NewMemoryStatusStore(disabled ...string) *MemoryStatusStore {
	s := &MemoryStatusStore{disabled: make(map[string]bool)}
	for _, id := range disabled {
		s.disabled[id] = true
	}
	return s
}

func (s *MemoryStatusStore) IsDisabled(pluginID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disabled[pluginID]
}

func (s *MemoryStatusStore) SetDisabled(pluginID string, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if disabled {
		s.disabled[pluginID] = true
	} else {
		delete(s.disabled, pluginID)
	}
	return nil
}

const (
	// EnabledListFile holds the allow list. When it names at least one
	// plugin, every plugin it does not name is disabled.
	EnabledListFile = "enabled.txt"
	// DisabledListFile holds the deny list.
	DisabledListFile = "disabled.txt"
)

// FileStatusStore keeps the allow list and deny list as text files with
// one plugin id per line. Blank lines and lines starting with '#' are ignored.
type FileStatusStore struct {
	enabledPath  string
	disabledPath string
	logger       Logger

	mu       sync.RWMutex
	enabled  []string
	disabled []string

	watcher  *argus.Watcher
	stopOnce sync.Once
}

// NewFileStatusStore reads enabled.txt and disabled.txt from dir. Missing
// files are treated as empty lists.
func NewFileStatusStore(dir string, logger any) (*FileStatusStore, error) {
	s := &FileStatusStore{
		enabledPath:  filepath.Join(dir, EnabledListFile),
		disabledPath: filepath.Join(dir, DisabledListFile),
		logger:       NewLogger(logger),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads both files.
func (s *FileStatusStore) Reload() error {
	enabled, err := readIDList(s.enabledPath)
	if err != nil {
		return NewStatusStoreError("failed to read "+s.enabledPath, err)
	}
	disabled, err := readIDList(s.disabledPath)
	if err != nil {
		return NewStatusStoreError("failed to read "+s.disabledPath, err)
	}

	s.mu.Lock()
	s.enabled, s.disabled = enabled, disabled
	s.mu.Unlock()

	s.logger.Debug("Plugin status lists loaded", "enabled", len(enabled), "disabled", len(disabled))
	return nil
}

func (s *FileStatusStore) IsDisabled(pluginID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if containsID(s.disabled, pluginID) {
		return true
	}
	return len(s.enabled) > 0 && !containsID(s.enabled, pluginID)
}

// SetDisabled rewrites the affected list files. Each in-memory list is
// replaced only after its file was written, so a failed write leaves the
// store matching what is on disk.
func (s *FileStatusStore) SetDisabled(pluginID string, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if disabled {
		if idx := indexID(s.enabled, pluginID); idx >= 0 {
			if err := s.replaceList(&s.enabled, s.enabledPath, withoutIndex(s.enabled, idx)); err != nil {
				return err
			}
		}
		if !containsID(s.disabled, pluginID) {
			return s.replaceList(&s.disabled, s.disabledPath, withID(s.disabled, pluginID))
		}
		return nil
	}

	if idx := indexID(s.disabled, pluginID); idx >= 0 {
		if err := s.replaceList(&s.disabled, s.disabledPath, withoutIndex(s.disabled, idx)); err != nil {
			return err
		}
	}
	if len(s.enabled) > 0 && !containsID(s.enabled, pluginID) {
		return s.replaceList(&s.enabled, s.enabledPath, withID(s.enabled, pluginID))
	}
	return nil
}

func (s *FileStatusStore) replaceList(list *[]string, path string, ids []string) error {
	if err := writeIDList(path, ids); err != nil {
		return NewStatusStoreError("failed to write "+path, err)
	}
	*list = ids
	return nil
}

func withID(ids []string, id string) []string {
	out := make([]string, 0, len(ids)+1)
	return append(append(out, ids...), id)
}

func withoutIndex(ids []string, idx int) []string {
	out := make([]string, 0, len(ids)-1)
	out = append(out, ids[:idx]...)
	return append(out, ids[idx+1:]...)
}

// EnabledPlugins returns a copy of the allow list.
func (s *FileStatusStore) EnabledPlugins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.enabled...)
}

// DisabledPlugins returns a copy of the deny list.
func (s *FileStatusStore) DisabledPlugins() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.disabled...)
}

// Watch reloads the lists whenever either file changes on disk.
// Decisions already applied to loaded plugins are not revisited.
func (s *FileStatusStore) Watch(pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	watcher := argus.New(argus.Config{
		PollInterval:         pollInterval,
		CacheTTL:             pollInterval / 2,
		MaxWatchedFiles:      2,
		OptimizationStrategy: argus.OptimizationSingleEvent,
		ErrorHandler: func(err error, path string) {
			s.logger.Error("Status file watching error", "path", path, "error", err)
		},
	})

	for _, path := range []string{s.enabledPath, s.disabledPath} {
		if err := watcher.Watch(path, s.handleChange); err != nil {
			return NewStatusStoreError("failed to watch "+path, err)
		}
	}
	if err := watcher.Start(); err != nil {
		return NewStatusStoreError("failed to start status watcher", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()
	s.logger.Info("Watching plugin status files", "enabled", s.enabledPath, "disabled", s.disabledPath)
	return nil
}

func (s *FileStatusStore) handleChange(event argus.ChangeEvent) {
	s.logger.Info("Plugin status file changed",
		"path", event.Path,
		"is_create", event.IsCreate,
		"is_delete", event.IsDelete,
		"is_modify", event.IsModify)
	if err := s.Reload(); err != nil {
		s.logger.Error("Failed to reload plugin status files", "error", err)
	}
}

// Close stops watching. It is safe to call more than once.
func (s *FileStatusStore) Close() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.RLock()
		w := s.watcher
		s.mu.RUnlock()
		if w != nil {
			err = w.Stop()
		}
	})
	return err
}

func readIDList(path string) ([]string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path built from the configured status directory
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || containsID(ids, line) {
			continue
		}
		ids = append(ids, line)
	}
	return ids, scanner.Err()
}

func writeIDList(path string, ids []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, id := range ids {
		buf.WriteString(id)
		buf.WriteByte('\n')
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func indexID(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func containsID(ids []string, id string) bool {
	return indexID(ids, id) >= 0
}
