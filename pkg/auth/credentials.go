package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"seedharvest/pkg/config"
)

// DefaultProfile is used when no profile name is given
const DefaultProfile = "default"

// Profile holds the secrets the harvester needs: the catalog API key and
// the download consumer's password
type Profile struct {
	Name             string    `json:"name"`
	APIKey           string    `json:"api_key"`
	ConsumerPassword string    `json:"consumer_password,omitempty"`
	LastModified     time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves a profile
	Store(profile *Profile) error

	// Retrieve gets a profile by name
	Retrieve(name string) (*Profile, error)

	// List returns all stored profiles
	List() ([]*Profile, error)

	// Delete removes a profile
	Delete(name string) error

	// Exists checks if a profile is stored
	Exists(name string) bool
}

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager backed by the system keychain when it is
// available, an encrypted file, and finally the environment
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

// NewManagerWithStores creates a Manager over the given stores, in order
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the profile in the first store that accepts it
func (m *Manager) Store(profile *Profile) error {
	if profile.Name == "" {
		profile.Name = DefaultProfile
	}
	if profile.APIKey == "" && profile.ConsumerPassword == "" {
		return errors.New("an API key or a consumer password is required")
	}

	profile.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(profile)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets a profile from the first store that has it
func (m *Manager) Retrieve(name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	for _, store := range m.stores {
		if profile, err := store.Retrieve(name); err == nil && profile != nil {
			return profile, nil
		}
	}
	return nil, fmt.Errorf("%w: profile %s", ErrCredentialsNotFound, name)
}

// List returns the newest version of every stored profile
func (m *Manager) List() ([]*Profile, error) {
	byName := make(map[string]*Profile)

	for _, store := range m.stores {
		profiles, err := store.List()
		if err != nil {
			continue
		}
		for _, p := range profiles {
			if existing, ok := byName[p.Name]; !ok || p.LastModified.After(existing.LastModified) {
				byName[p.Name] = p
			}
		}
	}

	var result []*Profile
	for _, p := range byName {
		result = append(result, p)
	}
	return result, nil
}

// Delete removes a profile from all stores
func (m *Manager) Delete(name string) error {
	if name == "" {
		name = DefaultProfile
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: profile %s", ErrCredentialsNotFound, name)
	}
	return nil
}

// Apply fills secrets missing from cfg with the stored profile. Values
// already set by flags, environment or the config file win. It reports
// whether anything was filled in.
func (m *Manager) Apply(cfg *config.Config, name string) (bool, error) {
	if cfg.Catalog.APIKey != "" && cfg.Consumer.Password != "" {
		return false, nil
	}

	profile, err := m.Retrieve(name)
	if err != nil {
		if errors.Is(err, ErrCredentialsNotFound) {
			return false, nil
		}
		return false, err
	}

	applied := false
	if cfg.Catalog.APIKey == "" && profile.APIKey != "" {
		cfg.Catalog.APIKey = profile.APIKey
		applied = true
	}
	if cfg.Consumer.Password == "" && profile.ConsumerPassword != "" {
		cfg.Consumer.Password = profile.ConsumerPassword
		applied = true
	}
	return applied, nil
}

// getConfigDir returns the per-user configuration directory, creating it
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "seedharvest")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "seedharvest")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "seedharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "seedharvest")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// Sanitize returns a copy of the profile with secrets masked
func Sanitize(profile *Profile) *Profile {
	if profile == nil {
		return nil
	}

	return &Profile{
		Name:             profile.Name,
		APIKey:           config.MaskSecret(profile.APIKey),
		ConsumerPassword: config.MaskSecret(profile.ConsumerPassword),
		LastModified:     profile.LastModified,
	}
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
