package auth

import "sync"

// MockStore implements Store in memory, with error injection. Testing only.
type MockStore struct {
	accounts map[string]*Credentials
	mu       sync.RWMutex

	SaveError     error
	RetrieveError error
	DeleteError   error
}

// NewMockStore creates an empty in-memory store
func NewMockStore() *MockStore {
	return &MockStore{
		accounts: make(map[string]*Credentials),
	}
}

// Save stores credentials in memory
func (m *MockStore) Save(creds *Credentials) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if creds == nil || creds.Username == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dup := *creds
	m.accounts[creds.Username] = &dup
	return nil
}

// Retrieve gets credentials from memory
func (m *MockStore) Retrieve(username string) (*Credentials, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if username == "" && len(m.accounts) == 1 {
		for _, creds := range m.accounts {
			dup := *creds
			return &dup, nil
		}
	}

	creds, ok := m.accounts[username]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *creds
	return &dup, nil
}

// Delete removes credentials from memory
func (m *MockStore) Delete(username string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.accounts[username]; !ok {
		return ErrNotFound
	}
	delete(m.accounts, username)
	return nil
}

// Exists checks for credentials in memory
func (m *MockStore) Exists(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.accounts[username]
	return ok
}
