// Package auth stores and resolves account credentials, preferring the
// system keychain and falling back to an encrypted file, then environment
// variables.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrInvalidCredentials indicates missing or malformed credential input.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrNotFound indicates no stored credentials for the requested account.
var ErrNotFound = errors.New("credentials not found")

// ErrReadOnlyStore indicates the store cannot persist or delete.
var ErrReadOnlyStore = errors.New("store is read-only")

// Credentials is one account's login material.
type Credentials struct {
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	LastModified time.Time `json:"last_modified"`
}

// Store is the interface for persisting and retrieving credentials.
type Store interface {
	// Save persists credentials for the account.
	Save(creds *Credentials) error
	// Retrieve gets credentials for a specific username. An empty
	// username retrieves the default account where the store supports it.
	Retrieve(username string) (*Credentials, error)
	// Delete removes credentials for a specific username.
	Delete(username string) error
	// Exists checks if credentials exist for a username.
	Exists(username string) bool
}

// Manager chains credential stores with fallback
type Manager struct {
	stores []Store
}

// NewManager creates a credential manager with the available backends, in
// preference order: system keychain, encrypted file, environment.
func NewManager() (*Manager, error) {
	var stores []Store

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := configDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}
	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over an explicit store chain.
// Used in tests.
func NewManagerWithStores(stores ...Store) *Manager {
	return &Manager{stores: stores}
}

// Save persists credentials in the first store that accepts them.
func (m *Manager) Save(creds *Credentials) error {
	if creds == nil || creds.Username == "" {
		return ErrInvalidCredentials
	}
	if creds.Password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidCredentials)
	}

	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Save(creds); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them.
func (m *Manager) Retrieve(username string) (*Credentials, error) {
	for _, store := range m.stores {
		if creds, err := store.Retrieve(username); err == nil && creds != nil {
			return creds, nil
		}
	}
	return nil, fmt.Errorf("%w for user %q", ErrNotFound, username)
}

// Delete removes the account's credentials from every store holding them.
func (m *Manager) Delete(username string) error {
	deleted := false
	for _, store := range m.stores {
		if store.Exists(username) {
			if err := store.Delete(username); err == nil {
				deleted = true
			}
		}
	}
	if !deleted {
		return fmt.Errorf("%w for user %q", ErrNotFound, username)
	}
	return nil
}

// configDir returns the per-user config directory, creating it if needed.
func configDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "sunograb")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}
