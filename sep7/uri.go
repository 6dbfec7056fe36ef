// Package sep7 parses, builds, signs and verifies SEP-7 "web+stellar:" URIs
// used to delegate transaction signing to a wallet.
package sep7

import (
	"context"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/strkey"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/txnbuild"

	"github.com/marwen-abid/wallet-sdk-go/core/crypto"
	"github.com/marwen-abid/wallet-sdk-go/core/toml"
	"github.com/marwen-abid/wallet-sdk-go/errors"
)

// Scheme prefixes every SEP-7 URI.
const Scheme = "web+stellar:"

// MaxMessageLength is the longest msg a URI may carry.
const MaxMessageLength = 300

// Operation is the SEP-7 operation a URI requests.
type Operation string

const (
	OperationTx  Operation = "tx"
	OperationPay Operation = "pay"
)

var memoTypes = map[string]bool{
	"MEMO_TEXT":   true,
	"MEMO_ID":     true,
	"MEMO_HASH":   true,
	"MEMO_RETURN": true,
}

// URI is a parsed SEP-7 request.
type URI struct {
	Operation Operation
	params    url.Values
	// raw is the text the URI was parsed from. Signatures of parsed URIs are
	// checked against it so parameter order is preserved.
	raw string
}

// Resolver looks up the stellar.toml of an origin domain.
type Resolver interface {
	Resolve(ctx context.Context, domain string) (*toml.AnchorInfo, error)
}

// NewTransactionURI returns a "tx" URI asking the wallet to sign envelope.
func NewTransactionURI(envelope string) (*URI, error) {
	u := &URI{Operation: OperationTx, params: url.Values{}}
	u.params.Set("xdr", envelope)
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// NewPayURI returns a "pay" URI asking the wallet to pay destination.
func NewPayURI(destination string) (*URI, error) {
	u := &URI{Operation: OperationPay, params: url.Values{}}
	u.params.Set("destination", destination)
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Parse decodes and validates a SEP-7 URI.
func Parse(raw string) (*URI, error) {
	if !strings.HasPrefix(raw, Scheme) {
		return nil, errors.NewURIError(errors.URI_INVALID, "uri must start with "+Scheme, nil)
	}

	op, query, _ := strings.Cut(strings.TrimPrefix(raw, Scheme), "?")
	params, err := url.ParseQuery(query)
	if err != nil {
		return nil, errors.NewURIError(errors.URI_INVALID, "failed to parse uri parameters", err)
	}

	u := &URI{Operation: Operation(op), params: params, raw: raw}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// Validate checks the operation and its parameters.
func (u *URI) Validate() error {
	switch u.Operation {
	case OperationTx:
		envelope := u.params.Get("xdr")
		if envelope == "" {
			return invalid("tx uri requires xdr")
		}
		if _, err := txnbuild.TransactionFromXDR(envelope); err != nil {
			return errors.NewURIError(errors.URI_INVALID, "xdr is not a transaction envelope", err)
		}
		if pub := u.params.Get("pubkey"); pub != "" && !strkey.IsValidEd25519PublicKey(pub) {
			return invalid("pubkey is not a valid account")
		}
	case OperationPay:
		dest := u.params.Get("destination")
		if dest == "" {
			return invalid("pay uri requires destination")
		}
		if !strkey.IsValidEd25519PublicKey(dest) && !strkey.IsValidMuxedAccountEd25519PublicKey(dest) {
			return invalid("destination is not a valid account")
		}
		if amt := u.params.Get("amount"); amt != "" {
			if _, err := amount.ParseInt64(amt); err != nil {
				return errors.NewURIError(errors.URI_INVALID, "amount is not a valid stellar amount", err)
			}
		}
		if u.params.Get("asset_issuer") != "" && u.params.Get("asset_code") == "" {
			return invalid("asset_issuer requires asset_code")
		}
		if mt := u.params.Get("memo_type"); mt != "" && !memoTypes[mt] {
			return invalid("unknown memo_type " + mt)
		}
	default:
		return invalid("unsupported operation " + string(u.Operation))
	}

	if utf8.RuneCountInString(u.params.Get("msg")) > MaxMessageLength {
		return invalid("msg exceeds 300 characters")
	}
	if cb := u.params.Get("callback"); cb != "" && !strings.HasPrefix(cb, "url:") {
		return invalid("callback must start with url:")
	}
	return nil
}

func invalid(msg string) error {
	return errors.NewURIError(errors.URI_INVALID, msg, nil)
}

// Param returns the value of a URI parameter.
func (u *URI) Param(key string) string {
	return u.params.Get(key)
}

// SetParam sets a parameter and revalidates the URI. Any existing signature
// is dropped.
func (u *URI) SetParam(key, value string) error {
	prev, had := u.params[key]
	u.params.Set(key, value)
	if err := u.Validate(); err != nil {
		if had {
			u.params[key] = prev
		} else {
			u.params.Del(key)
		}
		return err
	}
	u.params.Del("signature")
	u.raw = ""
	return nil
}

// Transaction decodes the envelope of a "tx" URI.
func (u *URI) Transaction() (*txnbuild.GenericTransaction, error) {
	if u.Operation != OperationTx {
		return nil, invalid("uri is not a tx request")
	}
	tx, err := txnbuild.TransactionFromXDR(u.params.Get("xdr"))
	if err != nil {
		return nil, errors.NewURIError(errors.URI_INVALID, "xdr is not a transaction envelope", err)
	}
	return tx, nil
}

// Message returns the msg parameter.
func (u *URI) Message() string { return u.params.Get("msg") }

// OriginDomain returns the origin_domain parameter.
func (u *URI) OriginDomain() string { return u.params.Get("origin_domain") }

// NetworkPassphrase returns the network_passphrase parameter.
func (u *URI) NetworkPassphrase() string { return u.params.Get("network_passphrase") }

// Callback returns the callback URL without its "url:" prefix.
func (u *URI) Callback() string { return strings.TrimPrefix(u.params.Get("callback"), "url:") }

// Signature returns the signature parameter.
func (u *URI) Signature() string { return u.params.Get("signature") }

// String encodes the URI. The signature, when present, is always last.
func (u *URI) String() string {
	if u.raw != "" {
		return u.raw
	}
	s := u.unsigned()
	if sig := u.params.Get("signature"); sig != "" {
		s += "&signature=" + url.QueryEscape(sig)
	}
	return s
}

// unsigned returns the text a signature covers.
func (u *URI) unsigned() string {
	if u.raw != "" {
		if i := strings.Index(u.raw, "&signature="); i >= 0 {
			return u.raw[:i]
		}
		return u.raw
	}

	params := url.Values{}
	for k, v := range u.params {
		if k != "signature" {
			params[k] = v
		}
	}
	return Scheme + string(u.Operation) + "?" + params.Encode()
}

// Sign signs the URI with the origin domain's URI_REQUEST_SIGNING_KEY and
// sets the signature parameter.
func (u *URI) Sign(kp *keypair.Full) error {
	if u.OriginDomain() == "" {
		return invalid("signing requires origin_domain")
	}
	u.params.Del("signature")
	u.raw = ""

	sig, err := crypto.SignURI(kp, u.unsigned())
	if err != nil {
		return errors.NewURIError(errors.URI_INVALID, "failed to sign uri", err)
	}
	u.params.Set("signature", sig)
	return nil
}

// VerifySignature checks the signature against the URI_REQUEST_SIGNING_KEY
// published by the origin domain.
func (u *URI) VerifySignature(ctx context.Context, resolver Resolver) error {
	domain := u.OriginDomain()
	if domain == "" {
		return errors.NewURIError(errors.URI_SIGNATURE_INVALID, "uri has no origin_domain", nil)
	}
	sig := u.Signature()
	if sig == "" {
		return errors.NewURIError(errors.URI_SIGNATURE_INVALID, "uri is not signed", nil)
	}

	info, err := resolver.Resolve(ctx, domain)
	if err != nil {
		return errors.NewURIError(errors.URI_SIGNATURE_INVALID, "failed to resolve origin domain", err).
			WithContext("origin_domain", domain)
	}
	if info.URIRequestSigningKey == "" {
		return errors.NewURIError(errors.URI_SIGNATURE_INVALID, "origin domain publishes no URI_REQUEST_SIGNING_KEY", nil).
			WithContext("origin_domain", domain)
	}

	ok, err := crypto.VerifyURISignature(info.URIRequestSigningKey, u.unsigned(), sig)
	if err != nil || !ok {
		log.Ctx(ctx).Warnf("rejected sep-7 uri signed for %s", domain)
		return errors.NewURIError(errors.URI_SIGNATURE_INVALID, "signature does not match origin domain", err).
			WithContext("origin_domain", domain)
	}
	return nil
}
