package credentials

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type staticProvider map[string]string

func (p staticProvider) Get(_ context.Context, name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", fmt.Errorf("static %q: %w", name, ErrNotFound)
	}
	return v, nil
}

func TestEnvProviderMapping(t *testing.T) {
	t.Setenv("AZURE_TENANT_ID", "tenant-123")

	v, err := Env{}.Get(context.Background(), "azure-tenant-id")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "tenant-123" {
		t.Errorf("value = %q, want %q", v, "tenant-123")
	}
}

func TestEnvProviderMissing(t *testing.T) {
	_, err := Env{}.Get(context.Background(), "definitely-not-set-anywhere")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestChainFallsThrough(t *testing.T) {
	c := Chain{
		staticProvider{},
		staticProvider{"graph-client-secret": "s3cret"},
	}

	v, err := c.Get(context.Background(), "graph-client-secret")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "s3cret" {
		t.Errorf("value = %q, want %q", v, "s3cret")
	}
}

func TestChainExhausted(t *testing.T) {
	c := Chain{staticProvider{}, staticProvider{}}

	_, err := c.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestChainStopsOnHardError(t *testing.T) {
	hard := errors.New("keyring locked")
	c := Chain{
		providerFunc(func(context.Context, string) (string, error) { return "", hard }),
		staticProvider{"name": "value"},
	}

	_, err := c.Get(context.Background(), "name")
	if !errors.Is(err, hard) {
		t.Errorf("error = %v, want hard failure from first provider", err)
	}
}

type providerFunc func(ctx context.Context, name string) (string, error)

func (f providerFunc) Get(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}
