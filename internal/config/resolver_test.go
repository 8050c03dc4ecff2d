package config

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/auditoria-ti/specsync/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}
	return s
}

func TestResolveMissingConfig(t *testing.T) {
	s := setupTestStore(t)
	r := NewResolver(s)

	_, err := r.Resolve(context.Background())
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("err = %v, want ErrConfigNotFound", err)
	}
}

func TestResolveIncompleteConfig(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	cases := []string{
		`{"azureDevOps":{}}`,
		`{"azureDevOps":{"organizationUrl":"https://dev.azure.com/minha-org"}}`,
		`{"azureDevOps":{"personalAccessToken":"pat-123"}}`,
	}
	for _, blob := range cases {
		if err := s.SetSetting(ctx, IntegrationConfigKey, blob); err != nil {
			t.Fatalf("set setting: %v", err)
		}
		r := NewResolver(s)
		if _, err := r.Resolve(ctx); !errors.Is(err, ErrConfigIncomplete) {
			t.Errorf("blob %s: err = %v, want ErrConfigIncomplete", blob, err)
		}
	}
}

func TestResolveExtractsOrganizationFromURL(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	blob := `{"azureDevOps":{"organizationUrl":"https://dev.azure.com/minha-org/","personalAccessToken":"pat-123"}}`
	if err := s.SetSetting(ctx, IntegrationConfigKey, blob); err != nil {
		t.Fatalf("set setting: %v", err)
	}

	r := NewResolver(s)
	creds, err := r.Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if creds.Organization != "minha-org" {
		t.Errorf("organization = %q, want minha-org", creds.Organization)
	}
	if creds.AccessToken != "pat-123" {
		t.Errorf("token = %q, want pat-123", creds.AccessToken)
	}
}

func TestResolveVerbatimFallback(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// A value that is not a recognizable URL is used verbatim.
	blob := `{"azureDevOps":{"organizationUrl":"minha-org","personalAccessToken":"pat-123"}}`
	if err := s.SetSetting(ctx, IntegrationConfigKey, blob); err != nil {
		t.Fatalf("set setting: %v", err)
	}

	r := NewResolver(s)
	creds, err := r.Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if creds.Organization != "minha-org" {
		t.Errorf("organization = %q, want verbatim minha-org", creds.Organization)
	}
}

func TestResolveCachesUntilInvalidate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	blob := `{"azureDevOps":{"organizationUrl":"https://dev.azure.com/org-a","personalAccessToken":"pat-a"}}`
	if err := s.SetSetting(ctx, IntegrationConfigKey, blob); err != nil {
		t.Fatalf("set setting: %v", err)
	}

	r := NewResolver(s)
	creds, err := r.Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if creds.Organization != "org-a" {
		t.Fatalf("organization = %q", creds.Organization)
	}

	// Changing the stored blob must not be observed until Invalidate.
	blob = `{"azureDevOps":{"organizationUrl":"https://dev.azure.com/org-b","personalAccessToken":"pat-b"}}`
	if err := s.SetSetting(ctx, IntegrationConfigKey, blob); err != nil {
		t.Fatalf("set setting: %v", err)
	}

	creds, err = r.Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if creds.Organization != "org-a" {
		t.Errorf("cache bypassed: organization = %q", creds.Organization)
	}

	r.Invalidate()
	creds, err = r.Resolve(ctx)
	if err != nil {
		t.Fatalf("resolve after invalidate failed: %v", err)
	}
	if creds.Organization != "org-b" {
		t.Errorf("organization after invalidate = %q, want org-b", creds.Organization)
	}
}
