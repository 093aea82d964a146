package backend

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// keyringService is the OS keyring service under which backend tokens are
// stored, keyed by backend URL.
const keyringService = "Verbas"

// TokenStore keeps bearer tokens for remote backends.
type TokenStore interface {
	Get(backendURL string) (string, error)
	Set(backendURL, token string) error
	Delete(backendURL string) error
}

// KeyringTokens stores tokens in the OS keyring.
type KeyringTokens struct{}

var _ TokenStore = KeyringTokens{}

// Get returns the stored token, or "" when none is stored.
func (KeyringTokens) Get(backendURL string) (string, error) {
	tok, err := keyring.Get(keyringService, backendURL)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("keyring get: %w", err)
	}
	return tok, nil
}

func (KeyringTokens) Set(backendURL, token string) error {
	if err := keyring.Set(keyringService, backendURL, token); err != nil {
		return fmt.Errorf("keyring set: %w", err)
	}
	return nil
}

func (KeyringTokens) Delete(backendURL string) error {
	err := keyring.Delete(keyringService, backendURL)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete: %w", err)
	}
	return nil
}

// ResolveToken returns configured when set, otherwise the token stored for
// backendURL.
func ResolveToken(store TokenStore, backendURL, configured string) (string, error) {
	if configured != "" || store == nil {
		return configured, nil
	}
	return store.Get(backendURL)
}
