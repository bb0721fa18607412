// Package credentials supplies short-lived credentials to workload
// implementations at deploy time. The core treats providers as opaque: no
// credential material is ever written to the deployment record store.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrNotFound is returned when a provider has no value for the requested name.
var ErrNotFound = errors.New("credential not found")

// Provider resolves a credential by its logical name, e.g. "azure-tenant-id".
type Provider interface {
	Get(ctx context.Context, name string) (string, error)
}

// keyringService namespaces haymaker entries in the OS keyring.
const keyringService = "haymaker"

// Keyring reads credentials from the operating system keyring.
type Keyring struct{}

// Get looks up name in the OS keyring under the haymaker service.
func (Keyring) Get(_ context.Context, name string) (string, error) {
	v, err := keyring.Get(keyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("keyring entry %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("keyring get %q: %w", name, err)
	}
	return v, nil
}

// Env reads credentials from environment variables. The logical name is
// mapped to UPPER_SNAKE form: "azure-tenant-id" -> AZURE_TENANT_ID.
type Env struct{}

// Get looks up the environment variable derived from name.
func (Env) Get(_ context.Context, name string) (string, error) {
	key := strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", fmt.Errorf("env %s: %w", key, ErrNotFound)
	}
	return v, nil
}

// Chain tries each provider in order, returning the first hit.
type Chain []Provider

// Get resolves name against each provider in order. Only ErrNotFound causes
// fallthrough; any other failure stops the chain.
func (c Chain) Get(ctx context.Context, name string) (string, error) {
	for _, p := range c {
		v, err := p.Get(ctx, name)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("credential %q: %w", name, ErrNotFound)
}

// Default returns the standard provider chain: OS keyring first, environment
// variables as fallback.
func Default() Provider {
	return Chain{Keyring{}, Env{}}
}
