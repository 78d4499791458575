// Package storage manages the download output directory. Existing files
// double as the resume state: a rendition already on disk is never fetched
// again.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Manager handles output directory operations and existing-file detection
type Manager struct {
	outputDir string
	existing  map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a manager rooted at outputDir, creating the directory
// if needed and indexing files already present.
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{
		outputDir: outputDir,
		existing:  make(map[string]bool),
	}

	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return m, nil
}

// scanExistingFiles indexes the output directory so Exists answers from
// memory on the hot path.
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			m.existing[entry.Name()] = true
		}
	}

	return nil
}

// Exists reports whether a file with the given name is already present.
func (m *Manager) Exists(filename string) bool {
	m.mu.RLock()
	known := m.existing[filename]
	m.mu.RUnlock()
	if known {
		return true
	}

	// Double-check the filesystem; another run may have written it.
	// Only a regular file counts: a directory occupying the name must
	// not satisfy skip-if-exists.
	if info, err := os.Stat(m.Path(filename)); err == nil && !info.IsDir() {
		m.mu.Lock()
		m.existing[filename] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// Path returns the absolute destination path for a filename.
func (m *Manager) Path(filename string) string {
	return filepath.Join(m.outputDir, filename)
}

// Create opens a new destination file for writing.
func (m *Manager) Create(filename string) (*os.File, error) {
	f, err := os.Create(m.Path(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}
	return f, nil
}

// Commit records a completed transfer.
func (m *Manager) Commit(filename string) {
	m.mu.Lock()
	m.existing[filename] = true
	m.mu.Unlock()
}

// Discard removes a partially written destination file, if present.
func (m *Manager) Discard(filename string) {
	_ = os.Remove(m.Path(filename))
	m.mu.Lock()
	delete(m.existing, filename)
	m.mu.Unlock()
}

// OutputDir returns the output directory path.
func (m *Manager) OutputDir() string {
	return m.outputDir
}

// Count returns the number of files known to be present.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.existing)
}
