package auth

import "os"

// EnvironmentStore sources credentials from environment variables. It is
// read-only: Store and Delete report not-found so the Manager falls through.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-backed credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is unsupported for the environment backend
func (s *EnvironmentStore) Store(account *Account) error {
	return ErrCredentialsNotFound
}

// Retrieve reads JIRAHARVEST_TOKEN and JIRAHARVEST_EMAIL; the account name is
// ignored since the environment only holds one credential set
func (s *EnvironmentStore) Retrieve(name string) (*Account, error) {
	token := os.Getenv("JIRAHARVEST_TOKEN")
	if token == "" {
		return nil, ErrCredentialsNotFound
	}
	return &Account{
		Name:  name,
		Email: os.Getenv("JIRAHARVEST_EMAIL"),
		Token: token,
	}, nil
}

// Delete is unsupported for the environment backend
func (s *EnvironmentStore) Delete(name string) error {
	return ErrCredentialsNotFound
}

// Exists checks whether a token is present in the environment
func (s *EnvironmentStore) Exists(name string) bool {
	return os.Getenv("JIRAHARVEST_TOKEN") != ""
}
