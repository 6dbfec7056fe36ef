// Package sdk provides client-side integration with Stellar anchors.
// It handles endpoint discovery (SEP-1), authentication (SEP-10), transfers
// (SEP-6, SEP-24), customer data (SEP-12) and quotes (SEP-38).
package sdk

import (
	"github.com/go-playground/validator/v10"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
	"github.com/marwen-abid/wallet-sdk-go/core/net"
	"github.com/marwen-abid/wallet-sdk-go/core/toml"
	"github.com/marwen-abid/wallet-sdk-go/store/memory"
)

// Client is the entry point for integrating with Stellar anchors.
// It discovers anchor endpoints via stellar.toml (SEP-1) and manages
// authentication sessions (SEP-10).
type Client struct {
	networkPassphrase string
	httpClient        *net.Client
	tomlResolver      *toml.Resolver
	sessions          walletsdk.SessionStore
	validate          *validator.Validate
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the underlying HTTP client for network requests.
// The stellar.toml resolver is rebuilt on top of it unless WithResolver is also given.
func WithHTTPClient(client *net.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
		c.tomlResolver = toml.NewResolver(client)
	}
}

// WithResolver sets the stellar.toml resolver.
func WithResolver(resolver *toml.Resolver) ClientOption {
	return func(c *Client) {
		c.tomlResolver = resolver
	}
}

// WithSessionStore sets where authentication tokens are cached.
// The default is an in-memory store.
func WithSessionStore(store walletsdk.SessionStore) ClientOption {
	return func(c *Client) {
		c.sessions = store
	}
}

// NewClient creates a new wallet client.
// The networkPassphrase identifies the Stellar network (e.g., "Test SDF Network ; September 2015").
func NewClient(networkPassphrase string, opts ...ClientOption) *Client {
	httpClient := net.NewClient()

	client := &Client{
		networkPassphrase: networkPassphrase,
		httpClient:        httpClient,
		tomlResolver:      toml.NewResolver(httpClient),
		sessions:          memory.NewSessionStore(),
		validate:          validator.New(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// NetworkPassphrase returns the passphrase the client signs for.
func (c *Client) NetworkPassphrase() string {
	return c.networkPassphrase
}

// Resolver returns the stellar.toml resolver used by the client.
func (c *Client) Resolver() *toml.Resolver {
	return c.tomlResolver
}
