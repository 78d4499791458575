package auth

import "os"

// EnvironmentStore reads credentials from SUNOGRAB_USERNAME and
// SUNOGRAB_PASSWORD. It is read-only and sits last in the store chain.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-backed store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Save is unsupported for environment variables
func (e *EnvironmentStore) Save(*Credentials) error {
	return ErrReadOnlyStore
}

// Retrieve gets credentials from the environment. The username argument,
// when non-empty, must match the environment's username.
func (e *EnvironmentStore) Retrieve(username string) (*Credentials, error) {
	envUser := os.Getenv("SUNOGRAB_USERNAME")
	envPass := os.Getenv("SUNOGRAB_PASSWORD")
	if envUser == "" || envPass == "" {
		return nil, ErrNotFound
	}
	if username != "" && username != envUser {
		return nil, ErrNotFound
	}
	return &Credentials{Username: envUser, Password: envPass}, nil
}

// Delete is unsupported for environment variables
func (e *EnvironmentStore) Delete(string) error {
	return ErrReadOnlyStore
}

// Exists checks whether the environment carries matching credentials
func (e *EnvironmentStore) Exists(username string) bool {
	_, err := e.Retrieve(username)
	return err == nil
}
