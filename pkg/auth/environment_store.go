package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvironmentStore
const (
	EnvAPIKey           = "SEEDHARVEST_API_KEY"
	EnvConsumerPassword = "SEEDHARVEST_CONSUMER_PASSWORD"
)

// EnvironmentStore is a read-only CredentialStore over environment
// variables. It answers for any profile name.
type EnvironmentStore struct {
	getenv func(string) string
}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(profile *Profile) error {
	return ErrStoreUnavailable
}

// Retrieve builds a profile from the environment
func (e *EnvironmentStore) Retrieve(name string) (*Profile, error) {
	apiKey := e.getenv(EnvAPIKey)
	password := e.getenv(EnvConsumerPassword)
	if apiKey == "" && password == "" {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = DefaultProfile
	}

	return &Profile{
		Name:             name,
		APIKey:           apiKey,
		ConsumerPassword: password,
		LastModified:     time.Now(),
	}, nil
}

// List returns a single profile if the environment carries secrets
func (e *EnvironmentStore) List() ([]*Profile, error) {
	profile, err := e.Retrieve("")
	if err != nil {
		return []*Profile{}, nil
	}
	return []*Profile{profile}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	return e.getenv(EnvAPIKey) != "" || e.getenv(EnvConsumerPassword) != ""
}
