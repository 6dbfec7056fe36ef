package toml

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	gotoml "github.com/pelletier/go-toml"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/support/log"

	"github.com/marwen-abid/wallet-sdk-go/core/net"
	"github.com/marwen-abid/wallet-sdk-go/errors"
)

const (
	defaultCacheTTL   = 5 * time.Minute
	wellKnownPath     = "/.well-known/stellar.toml"
	maxCurrencyArrays = 100
	maxTomlSize       = 100 * 1024
)

type cacheEntry struct {
	info      *AnchorInfo
	fetchedAt time.Time
}

// Resolver fetches stellar.toml files and caches the parsed result per domain.
type Resolver struct {
	client   *net.Client
	cache    map[string]*cacheEntry
	cacheTTL time.Duration
	scheme   string
	mu       sync.RWMutex
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithCacheTTL sets how long a resolved stellar.toml stays cached (default: 5m).
// A zero TTL disables caching.
func WithCacheTTL(ttl time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.cacheTTL = ttl
	}
}

// WithScheme overrides the URL scheme used for bare domains (default: https).
func WithScheme(scheme string) ResolverOption {
	return func(r *Resolver) {
		r.scheme = scheme
	}
}

func NewResolver(client *net.Client, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client:   client,
		cache:    make(map[string]*cacheEntry),
		cacheTTL: defaultCacheTTL,
		scheme:   "https",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the anchor information published at domain.
func (r *Resolver) Resolve(ctx context.Context, domain string) (*AnchorInfo, error) {
	r.mu.RLock()
	entry, exists := r.cache[domain]
	r.mu.RUnlock()

	if exists && time.Since(entry.fetchedAt) < r.cacheTTL {
		return entry.info, nil
	}

	url := r.tomlURL(domain)
	log.Ctx(ctx).Debugf("resolving stellar.toml from %s", url)

	resp, err := r.client.Get(ctx, url)
	if err != nil {
		return nil, errors.NewCoreError(errors.TOML_FETCH_FAILED, fmt.Sprintf("failed to fetch stellar.toml from %s", domain), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, errors.NewCoreError(errors.TOML_FETCH_FAILED, fmt.Sprintf("stellar.toml fetch returned status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTomlSize))
	if err != nil {
		return nil, errors.NewCoreError(errors.TOML_FETCH_FAILED, "failed to read stellar.toml response", err)
	}

	info, err := Parse(body)
	if err != nil {
		return nil, err
	}

	if r.cacheTTL > 0 {
		r.mu.Lock()
		r.cache[domain] = &cacheEntry{
			info:      info,
			fetchedAt: time.Now(),
		}
		r.mu.Unlock()
	}

	return info, nil
}

// Invalidate drops the cached entry for domain.
func (r *Resolver) Invalidate(domain string) {
	r.mu.Lock()
	delete(r.cache, domain)
	r.mu.Unlock()
}

func (r *Resolver) tomlURL(domain string) string {
	base := domain
	if !strings.Contains(domain, "://") {
		base = r.scheme + "://" + domain
	}
	return strings.TrimSuffix(base, "/") + wellKnownPath
}

// Parse decodes stellar.toml content and validates its keys.
func Parse(content []byte) (*AnchorInfo, error) {
	info := &AnchorInfo{}
	if err := gotoml.Unmarshal(content, info); err != nil {
		return nil, errors.NewCoreError(errors.TOML_INVALID, "failed to parse stellar.toml", err)
	}

	if len(info.Currencies) > maxCurrencyArrays {
		info.Currencies = info.Currencies[:maxCurrencyArrays]
	}

	if info.SigningKey != "" {
		if _, err := keypair.ParseAddress(info.SigningKey); err != nil {
			return nil, errors.NewCoreError(errors.TOML_SIGNING_KEY_MISMATCH, fmt.Sprintf("invalid SIGNING_KEY: %s", info.SigningKey), err)
		}
	}
	if info.URIRequestSigningKey != "" {
		if _, err := keypair.ParseAddress(info.URIRequestSigningKey); err != nil {
			return nil, errors.NewCoreError(errors.TOML_INVALID, fmt.Sprintf("invalid URI_REQUEST_SIGNING_KEY: %s", info.URIRequestSigningKey), err)
		}
	}

	return info, nil
}
