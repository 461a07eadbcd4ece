package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/zalando/go-keyring"
)

// KeyringStore provides OS-native secure credential storage.
// Uses macOS Keychain, Windows Credential Manager, or Linux Secret Service.
// All keys are kept in a single secret so batches are written atomically.
type KeyringStore struct {
	service string
	user    string

	mu sync.Mutex
}

// Compile-time check to ensure KeyringStore implements TokenStore
var _ TokenStore = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore for the OS-native credential storage
// (macOS Keychain, Windows Credential Manager, etc.) using the given service and user identifiers.
func NewKeyringStore(service, user string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	if user == "" {
		return nil, fmt.Errorf("user cannot be empty")
	}

	return &KeyringStore{
		service: service,
		user:    user,
	}, nil
}

// Get returns the value for key from the system keyring. Returns ErrNotFound if missing or empty.
func (k *KeyringStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	values, err := k.load()
	if err != nil {
		return "", err
	}

	value := values[key]
	if value == "" {
		return "", ErrNotFound
	}
	return value, nil
}

// Set merges values into the keyring secret, overwriting existing keys.
func (k *KeyringStore) Set(ctx context.Context, values map[string]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	current, err := k.load()
	if err != nil {
		return err
	}
	for key, v := range values {
		current[key] = v
	}

	return k.save(current)
}

// Delete removes keys from the keyring secret. The secret itself is removed once empty.
func (k *KeyringStore) Delete(ctx context.Context, keys ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	current, err := k.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(current, key)
	}

	if len(current) == 0 {
		if err := keyring.Delete(k.service, k.user); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
		return nil
	}

	return k.save(current)
}

func (k *KeyringStore) load() (map[string]string, error) {
	secret, err := keyring.Get(k.service, k.user)
	if errors.Is(err, keyring.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	values := map[string]string{}
	if secret == "" {
		return values, nil
	}
	if err := json.Unmarshal([]byte(secret), &values); err != nil {
		return nil, fmt.Errorf("corrupt keyring entry for service %s, user %s: %w", k.service, k.user, err)
	}
	return values, nil
}

func (k *KeyringStore) save(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return keyring.Set(k.service, k.user, string(data))
}
