package sdk

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/txnbuild"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
	"github.com/marwen-abid/wallet-sdk-go/core/net"
	"github.com/marwen-abid/wallet-sdk-go/core/toml"
	"github.com/marwen-abid/wallet-sdk-go/errors"
)

const (
	// challengeGracePeriod tolerates clock skew between wallet and anchor.
	challengeGracePeriod = 5 * time.Minute
	webAuthDomainKey     = "web_auth_domain"
	clientDomainKey      = "client_domain"
	defaultSessionTTL    = 24 * time.Hour
)

// Session represents an authenticated connection to a Stellar anchor.
// It contains the JWT token and expiration information for making
// authenticated API requests to the anchor's services.
type Session struct {
	// HomeDomain is the anchor's domain (e.g., "testanchor.stellar.org")
	HomeDomain string

	// Account is the Stellar account address (G...) that was authenticated
	Account string

	// JWT is the authentication token to use in Authorization: Bearer headers
	JWT string

	// ExpiresAt indicates when the JWT token expires
	ExpiresAt time.Time

	client *Client
}

// IsValid returns true if the session has not expired.
func (s *Session) IsValid() bool {
	return time.Now().Before(s.ExpiresAt)
}

type loginConfig struct {
	memo               uint64
	clientDomain       string
	clientDomainSigner walletsdk.Signer
	forceRefresh       bool
}

// LoginOption customizes a SEP-10 login.
type LoginOption func(*loginConfig)

// WithMemo authenticates a shared (custodial) account on behalf of the user
// identified by an id memo.
func WithMemo(memo uint64) LoginOption {
	return func(c *loginConfig) {
		c.memo = memo
	}
}

// WithClientDomain proves the wallet's own domain to the anchor. The signer
// must hold the SIGNING_KEY published in that domain's stellar.toml.
func WithClientDomain(domain string, signer walletsdk.Signer) LoginOption {
	return func(c *loginConfig) {
		c.clientDomain = domain
		c.clientDomainSigner = signer
	}
}

// WithForceRefresh ignores any cached token and performs a new challenge.
func WithForceRefresh() LoginOption {
	return func(c *loginConfig) {
		c.forceRefresh = true
	}
}

// Login authenticates with an anchor using SEP-10 Web Authentication.
// It performs the following steps:
//  1. Discovers the anchor's WEB_AUTH_ENDPOINT and SIGNING_KEY via stellar.toml
//  2. Fetches an authentication challenge from the anchor
//  3. Validates the challenge before signing anything
//  4. Signs the challenge transaction using the provided signer
//  5. Submits the signed transaction back to the anchor and reads the JWT
//
// A token cached from a previous login for the same account, memo and client
// domain is reused until it expires.
func (c *Client) Login(ctx context.Context, account, homeDomain string, signer walletsdk.Signer, opts ...LoginOption) (*Session, error) {
	cfg := &loginConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	cacheKey := sessionKey(homeDomain, account, cfg)
	if !cfg.forceRefresh {
		token, expiresAt, ok, err := c.sessions.Get(ctx, cacheKey)
		if err != nil {
			log.Ctx(ctx).Warnf("reading cached session for %s: %v", homeDomain, err)
		} else if ok {
			return c.newSession(homeDomain, account, token, expiresAt), nil
		}
	}

	anchorInfo, err := c.tomlResolver.Resolve(ctx, homeDomain)
	if err != nil {
		return nil, errors.NewClientError(
			errors.AUTH_UNSUPPORTED,
			fmt.Sprintf("failed to resolve stellar.toml for %s", homeDomain),
			err,
		)
	}

	if anchorInfo.WebAuthEndpoint == "" || anchorInfo.SigningKey == "" {
		return nil, errors.NewClientError(
			errors.AUTH_UNSUPPORTED,
			fmt.Sprintf("anchor %s does not provide WEB_AUTH_ENDPOINT and SIGNING_KEY in stellar.toml", homeDomain),
			nil,
		)
	}

	challengeXDR, err := c.fetchChallenge(ctx, anchorInfo, account, homeDomain, cfg)
	if err != nil {
		return nil, err
	}

	if err := c.validateChallenge(challengeXDR, anchorInfo, account, homeDomain); err != nil {
		return nil, err
	}

	signedXDR, err := signer.SignTransaction(ctx, challengeXDR, c.networkPassphrase)
	if err != nil {
		return nil, errors.NewClientError(errors.SIGNER_ERROR, "failed to sign challenge transaction", err)
	}
	if cfg.clientDomainSigner != nil {
		signedXDR, err = cfg.clientDomainSigner.SignTransaction(ctx, signedXDR, c.networkPassphrase)
		if err != nil {
			return nil, errors.NewClientError(errors.SIGNER_ERROR, "failed to sign challenge with client domain key", err)
		}
	}

	token, err := c.submitChallenge(ctx, anchorInfo.WebAuthEndpoint, signedXDR)
	if err != nil {
		return nil, err
	}

	expiresAt, err := tokenExpiry(token, account)
	if err != nil {
		return nil, err
	}

	if err := c.sessions.Put(ctx, cacheKey, token, expiresAt); err != nil {
		log.Ctx(ctx).Warnf("caching session for %s: %v", homeDomain, err)
	}

	log.Ctx(ctx).Debugf("authenticated %s with %s until %s", account, homeDomain, expiresAt.Format(time.RFC3339))
	return c.newSession(homeDomain, account, token, expiresAt), nil
}

// Logout forgets the cached token for the account at homeDomain. Pass the
// same WithMemo and WithClientDomain options the login used.
func (c *Client) Logout(ctx context.Context, account, homeDomain string, opts ...LoginOption) error {
	cfg := &loginConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return c.sessions.Delete(ctx, sessionKey(homeDomain, account, cfg))
}

func (c *Client) newSession(homeDomain, account, token string, expiresAt time.Time) *Session {
	return &Session{
		HomeDomain: homeDomain,
		Account:    account,
		JWT:        token,
		ExpiresAt:  expiresAt,
		client:     c,
	}
}

func sessionKey(homeDomain, account string, cfg *loginConfig) string {
	key := homeDomain + ":" + account
	if cfg.memo != 0 {
		key += ":" + strconv.FormatUint(cfg.memo, 10)
	}
	if cfg.clientDomain != "" {
		key += "@" + cfg.clientDomain
	}
	return key
}

func (c *Client) fetchChallenge(ctx context.Context, info *toml.AnchorInfo, account, homeDomain string, cfg *loginConfig) (string, error) {
	params := url.Values{}
	params.Set("account", account)
	params.Set("home_domain", homeDomain)
	if cfg.memo != 0 {
		params.Set("memo", strconv.FormatUint(cfg.memo, 10))
	}
	if cfg.clientDomain != "" {
		params.Set("client_domain", cfg.clientDomain)
	}

	challengeURL := info.WebAuthEndpoint + "?" + params.Encode()
	resp, err := c.httpClient.Get(ctx, challengeURL)
	if err != nil {
		return "", errors.NewClientError(
			errors.CHALLENGE_FETCH_FAILED,
			fmt.Sprintf("failed to fetch challenge from %s", info.WebAuthEndpoint),
			err,
		)
	}

	challengeResp, err := net.DecodeJSON[struct {
		Transaction       string `json:"transaction"`
		NetworkPassphrase string `json:"network_passphrase"`
	}](resp)
	if err != nil {
		return "", errors.NewClientError(errors.CHALLENGE_FETCH_FAILED, "failed to read challenge response", err)
	}

	if challengeResp.NetworkPassphrase != "" && challengeResp.NetworkPassphrase != c.networkPassphrase {
		return "", errors.NewClientError(
			errors.CHALLENGE_INVALID,
			fmt.Sprintf("network passphrase mismatch: expected %s, got %s", c.networkPassphrase, challengeResp.NetworkPassphrase),
			nil,
		)
	}
	if challengeResp.Transaction == "" {
		return "", errors.NewClientError(errors.CHALLENGE_INVALID, "challenge response has no transaction", nil)
	}

	return challengeResp.Transaction, nil
}

// validateChallenge checks that the challenge is what SEP-10 says it must be,
// so the wallet never signs an arbitrary transaction.
func (c *Client) validateChallenge(challengeXDR string, info *toml.AnchorInfo, account, homeDomain string) error {
	invalid := func(msg string, cause error) error {
		return errors.NewClientError(errors.CHALLENGE_INVALID, msg, cause)
	}

	parsed, err := txnbuild.TransactionFromXDR(challengeXDR)
	if err != nil {
		return invalid("failed to parse challenge transaction", err)
	}

	tx, ok := parsed.Transaction()
	if !ok {
		return invalid("challenge transaction must not be fee bump", nil)
	}

	if tx.SourceAccount().AccountID != info.SigningKey {
		return invalid("challenge source account is not the anchor signing key", nil)
	}
	if tx.SequenceNumber() != 0 {
		return invalid("challenge sequence number must be zero", nil)
	}

	bounds := tx.Timebounds()
	now := time.Now().Unix()
	if bounds.MaxTime == 0 {
		return invalid("challenge has no expiration", nil)
	}
	grace := int64(challengeGracePeriod.Seconds())
	if now < bounds.MinTime-grace || now > bounds.MaxTime+grace {
		return invalid("challenge is outside its time bounds", nil)
	}

	operations := tx.Operations()
	if len(operations) == 0 {
		return invalid("challenge transaction has no operations", nil)
	}

	firstOp, ok := operations[0].(*txnbuild.ManageData)
	if !ok {
		return invalid("first operation must be manage_data", nil)
	}
	if firstOp.Name != homeDomain+" auth" {
		return invalid(fmt.Sprintf("first operation key %q does not match home domain", firstOp.Name), nil)
	}
	if firstOp.SourceAccount != account {
		return invalid("first operation source account is not the authenticating account", nil)
	}
	if len(firstOp.Value) == 0 {
		return invalid("challenge nonce missing", nil)
	}

	webAuthHost := ""
	if u, err := url.Parse(info.WebAuthEndpoint); err == nil {
		webAuthHost = u.Host
	}
	for _, op := range operations[1:] {
		data, ok := op.(*txnbuild.ManageData)
		if !ok {
			return invalid("challenge operations must all be manage_data", nil)
		}
		if data.Name == clientDomainKey {
			continue
		}
		if data.SourceAccount != info.SigningKey {
			return invalid(fmt.Sprintf("operation %q must be sourced by the anchor", data.Name), nil)
		}
		if data.Name == webAuthDomainKey && string(data.Value) != webAuthHost {
			return invalid("web_auth_domain does not match WEB_AUTH_ENDPOINT", nil)
		}
	}

	serverKP, err := keypair.ParseAddress(info.SigningKey)
	if err != nil {
		return invalid("invalid anchor signing key", err)
	}
	hash, err := tx.Hash(c.networkPassphrase)
	if err != nil {
		return invalid("failed to hash challenge transaction", err)
	}
	for _, sig := range tx.Signatures() {
		if serverKP.Verify(hash[:], sig.Signature) == nil {
			return nil
		}
	}
	return invalid("challenge transaction not signed by anchor", nil)
}

func (c *Client) submitChallenge(ctx context.Context, endpoint, signedXDR string) (string, error) {
	resp, err := c.httpClient.PostJSON(ctx, endpoint, map[string]string{"transaction": signedXDR})
	if err != nil {
		return "", errors.NewClientError(errors.AUTH_REJECTED, "failed to submit signed challenge", err)
	}

	tokenResp, err := net.DecodeJSON[struct {
		Token string `json:"token"`
	}](resp)
	if err != nil {
		return "", errors.NewClientError(errors.AUTH_REJECTED, "anchor rejected signed challenge", err)
	}
	if tokenResp.Token == "" {
		return "", errors.NewClientError(errors.AUTH_REJECTED, "anchor returned an empty token", nil)
	}
	return tokenResp.Token, nil
}

// tokenExpiry reads the exp claim without verifying the signature; only the
// anchor can verify its own tokens.
func tokenExpiry(token, account string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, errors.NewClientError(errors.JWT_INVALID, "failed to parse anchor token", err)
	}

	if claims.Subject != "" && !strings.HasPrefix(claims.Subject, account) {
		return time.Time{}, errors.NewClientError(errors.JWT_INVALID, fmt.Sprintf("token subject %s does not match account %s", claims.Subject, account), nil)
	}

	if claims.ExpiresAt == nil {
		return time.Now().Add(defaultSessionTTL), nil
	}
	expiresAt := claims.ExpiresAt.Time
	if !time.Now().Before(expiresAt) {
		return time.Time{}, errors.NewClientError(errors.JWT_EXPIRED, "anchor returned an expired token", nil)
	}
	return expiresAt, nil
}
