// Package auth stores optional Jira credentials. Public instances need none;
// when a personal access token is configured it is sourced from the system
// keychain, an encrypted file, or the environment, in that order.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	// ErrInvalidCredentials indicates a malformed or incomplete account
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCredentialsNotFound indicates no stored account under that name
	ErrCredentialsNotFound = errors.New("credentials not found")
)

// Account holds one Jira credential set. Token is a personal access token;
// Email is only needed for cloud instances using basic auth.
type Account struct {
	Name         string    `json:"name"`
	Email        string    `json:"email,omitempty"`
	Token        string    `json:"token"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	Store(account *Account) error
	Retrieve(name string) (*Account, error)
	Delete(name string) error
	Exists(name string) bool
}

// Manager chains credential stores with fallback: keychain first, then the
// encrypted file, then environment variables.
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager with the available backends
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
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

// Store saves an account using the first store that accepts it
func (m *Manager) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return ErrInvalidCredentials
	}
	if account.Token == "" {
		return errors.New("token is required")
	}
	account.LastModified = time.Now().UTC()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(account); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}
	return fmt.Errorf("no credential store accepted the account: %w", lastErr)
}

// Retrieve returns the named account from the first store that has it
func (m *Manager) Retrieve(name string) (*Account, error) {
	for _, store := range m.stores {
		account, err := store.Retrieve(name)
		if err == nil {
			return account, nil
		}
		if !errors.Is(err, ErrCredentialsNotFound) {
			return nil, err
		}
	}
	return nil, ErrCredentialsNotFound
}

// Delete removes the named account from every store that has it
func (m *Manager) Delete(name string) error {
	found := false
	for _, store := range m.stores {
		if store.Exists(name) {
			if err := store.Delete(name); err != nil {
				return err
			}
			found = true
		}
	}
	if !found {
		return ErrCredentialsNotFound
	}
	return nil
}

// getConfigDir returns the configuration directory, creating it if needed
func getConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "jiraharvest")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}
