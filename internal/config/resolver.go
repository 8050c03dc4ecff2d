// Package config loads specsync configuration: the application settings file
// (viper) and the Azure DevOps integration credentials stored as a JSON blob
// in the settings table.
package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/auditoria-ti/specsync/internal/store"
)

// IntegrationConfigKey is the fixed settings key holding the integration
// configuration blob.
const IntegrationConfigKey = "integration-config"

// Errors returned when resolving integration credentials. Both are terminal:
// the operator must fix the stored configuration before any retry can work.
var (
	// ErrConfigNotFound is returned when no integration configuration
	// entry exists in the settings table.
	ErrConfigNotFound = errors.New("integration configuration not found")

	// ErrConfigIncomplete is returned when the stored entry is missing
	// the organization URL or the access token.
	ErrConfigIncomplete = errors.New("integration configuration incomplete")
)

// orgPattern extracts the organization segment from an Azure DevOps
// organization URL.
var orgPattern = regexp.MustCompile(`dev\.azure\.com/([^/]+)`)

// Credentials are the resolved external-system credentials.
type Credentials struct {
	Organization string
	AccessToken  string
}

// integrationConfig mirrors the stored JSON document. The blob is written by
// the audit application's settings screen; specsync only reads it.
type integrationConfig struct {
	AzureDevOps struct {
		OrganizationURL     string `json:"organizationUrl"`
		PersonalAccessToken string `json:"personalAccessToken"`
	} `json:"azureDevOps"`
}

// Resolver resolves and caches external-system credentials from the settings
// store. The cache has process lifetime and is invalidated only by an
// explicit Invalidate call (the daemon does this when the config file
// changes).
type Resolver struct {
	store *store.Store

	mu     sync.Mutex
	cached *Credentials
}

// NewResolver creates a Resolver backed by the given store.
func NewResolver(s *store.Store) *Resolver {
	return &Resolver{store: s}
}

// Resolve returns the integration credentials, reading and validating the
// stored configuration on first use.
func (r *Resolver) Resolve(ctx context.Context) (*Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil {
		return r.cached, nil
	}

	raw, err := r.store.GetSetting(ctx, IntegrationConfigKey)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, ErrConfigNotFound
	}

	var cfg integrationConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode integration configuration: %w", err)
	}

	creds, err := credentialsFrom(&cfg)
	if err != nil {
		return nil, err
	}
	r.cached = creds
	return creds, nil
}

// Invalidate drops the cached credentials so the next Resolve re-reads the
// store.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}

func credentialsFrom(cfg *integrationConfig) (*Credentials, error) {
	url := cfg.AzureDevOps.OrganizationURL
	token := cfg.AzureDevOps.PersonalAccessToken
	if url == "" || token == "" {
		return nil, ErrConfigIncomplete
	}

	// A value that is not a recognizable organization URL is used verbatim
	// as the organization identifier. Deliberate fallback, not an error:
	// operators sometimes store just the organization name.
	org := url
	if m := orgPattern.FindStringSubmatch(url); m != nil {
		org = m[1]
	}

	return &Credentials{Organization: org, AccessToken: token}, nil
}
