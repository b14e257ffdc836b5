// Package credentials stores the bearer token used by the deployment client.
//
// Every store keeps a single value under the key "token". Stores are read
// before each request, so a login from another process is picked up without
// restarting.
package credentials

import (
	"context"
	"errors"
	"fmt"
)

const TokenKey = "token"

// ErrTokenNotFound is returned when no token has been stored yet.
var ErrTokenNotFound = errors.New("token not found")

// TokenProvider supplies the bearer token for outgoing requests.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// Store is a TokenProvider that can also be written by login and logout.
type Store interface {
	TokenProvider
	SetToken(ctx context.Context, token string) error
	DeleteToken(ctx context.Context) error
}

// Static always returns the same token.
type Static string

func (s Static) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrTokenNotFound
	}
	return string(s), nil
}

// Open returns the store named by kind ("keyring" or "file").
func Open(kind, path string) (Store, error) {
	switch kind {
	case "keyring", "":
		return NewKeyringStore(DefaultService), nil
	case "file":
		return NewFileStore(path), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", kind)
	}
}
