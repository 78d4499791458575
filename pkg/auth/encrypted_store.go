package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/user"
	"path/filepath"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100_000
)

// EncryptedFileStore implements Store with an AES-GCM encrypted JSON file.
// The key is derived from machine-local identifiers, so this protects
// against casual inspection, not a determined local attacker; the
// keychain store is preferred when available.
type EncryptedFileStore struct {
	path string
}

// file layout: salt || nonce || ciphertext
type encryptedFile struct {
	Accounts map[string]*Credentials `json:"accounts"`
}

// NewEncryptedFileStore creates a store writing to path
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &EncryptedFileStore{path: path}, nil
}

// Save saves credentials to the encrypted file
func (s *EncryptedFileStore) Save(creds *Credentials) error {
	if creds == nil || creds.Username == "" {
		return ErrInvalidCredentials
	}

	contents, err := s.load()
	if err != nil {
		return err
	}
	contents.Accounts[creds.Username] = creds
	return s.persist(contents)
}

// Retrieve gets credentials from the encrypted file
func (s *EncryptedFileStore) Retrieve(username string) (*Credentials, error) {
	contents, err := s.load()
	if err != nil {
		return nil, err
	}

	if username == "" {
		// Default account: the only one, if unambiguous.
		if len(contents.Accounts) == 1 {
			for _, creds := range contents.Accounts {
				return creds, nil
			}
		}
		return nil, ErrNotFound
	}

	creds, ok := contents.Accounts[username]
	if !ok {
		return nil, ErrNotFound
	}
	return creds, nil
}

// Delete removes credentials from the encrypted file
func (s *EncryptedFileStore) Delete(username string) error {
	contents, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := contents.Accounts[username]; !ok {
		return ErrNotFound
	}
	delete(contents.Accounts, username)
	return s.persist(contents)
}

// Exists checks if credentials exist in the encrypted file
func (s *EncryptedFileStore) Exists(username string) bool {
	contents, err := s.load()
	if err != nil {
		return false
	}
	_, ok := contents.Accounts[username]
	return ok
}

func (s *EncryptedFileStore) load() (*encryptedFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &encryptedFile{Accounts: make(map[string]*Credentials)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential file: %w", err)
	}
	if len(data) < saltSize+12 {
		return nil, fmt.Errorf("credential file is corrupt")
	}

	salt := data[:saltSize]
	key := deriveKey(salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < saltSize+nonceSize {
		return nil, fmt.Errorf("credential file is corrupt")
	}
	nonce := data[saltSize : saltSize+nonceSize]
	ciphertext := data[saltSize+nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credential file: %w", err)
	}

	var contents encryptedFile
	if err := json.Unmarshal(plaintext, &contents); err != nil {
		return nil, fmt.Errorf("failed to parse credential file: %w", err)
	}
	if contents.Accounts == nil {
		contents.Accounts = make(map[string]*Credentials)
	}
	return &contents, nil
}

func (s *EncryptedFileStore) persist(contents *encryptedFile) error {
	plaintext, err := json.Marshal(contents)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	key := deriveKey(salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	out := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, ciphertext...)

	if err := os.WriteFile(s.path, out, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	return nil
}

// deriveKey stretches machine-local identifiers into an AES key.
func deriveKey(salt []byte) []byte {
	passphrase := "sunograb"
	if hostname, err := os.Hostname(); err == nil {
		passphrase += ":" + hostname
	}
	if u, err := user.Current(); err == nil {
		passphrase += ":" + u.Uid
	}
	return pbkdf2.Key([]byte(passphrase), salt, iterations, keySize, sha256.New)
}
