package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const DefaultService = "cloud-deploy-dashboard"

// KeyringStore keeps the token in the OS keychain.
type KeyringStore struct {
	service string
}

func NewKeyringStore(service string) *KeyringStore {
	return &KeyringStore{service: service}
}

func (s *KeyringStore) Token(context.Context) (string, error) {
	token, err := keyring.Get(s.service, TokenKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read token from keyring: %w", err)
	}
	return token, nil
}

func (s *KeyringStore) SetToken(_ context.Context, token string) error {
	if err := keyring.Set(s.service, TokenKey, token); err != nil {
		return fmt.Errorf("write token to keyring: %w", err)
	}
	return nil
}

func (s *KeyringStore) DeleteToken(context.Context) error {
	err := keyring.Delete(s.service, TokenKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("delete token from keyring: %w", err)
	}
	return nil
}
