// Package crypto holds the small signing helpers shared by SEP-7 URIs and
// the SEP-10 test anchor.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/stellar/go/keypair"
)

// sep7Prefix is prepended to every SEP-7 URI before signing: 35 zero bytes,
// the byte 4, then the literal scheme identifier.
var sep7Prefix = append(append(make([]byte, 35), 4), []byte("stellar.sep.7 - URI Scheme")...)

// GenerateNonce generates a cryptographically secure random nonce and returns it as a base64-encoded string.
// The length parameter specifies the number of random bytes to generate.
// For SEP-10 compatibility, use 48 bytes which encodes to 64 characters in base64.
func GenerateNonce(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("nonce length must be positive, got %d", length)
	}

	nonce := make([]byte, length)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate random nonce: %w", err)
	}

	return base64.StdEncoding.EncodeToString(nonce), nil
}

// URIPayload returns the bytes a SEP-7 signature covers for the given
// URI (without its signature parameter).
func URIPayload(uri string) []byte {
	payload := make([]byte, 0, len(sep7Prefix)+len(uri))
	payload = append(payload, sep7Prefix...)
	return append(payload, uri...)
}

// SignURI signs a SEP-7 URI and returns the base64 signature.
func SignURI(kp *keypair.Full, uri string) (string, error) {
	sig, err := kp.Sign(URIPayload(uri))
	if err != nil {
		return "", fmt.Errorf("failed to sign uri: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifyURISignature reports whether signature is a valid base64 signature of
// uri by publicKey.
func VerifyURISignature(publicKey, uri, signature string) (bool, error) {
	kp, err := keypair.ParseAddress(publicKey)
	if err != nil {
		return false, fmt.Errorf("failed to parse public key: %w", err)
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("failed to decode signature: %w", err)
	}

	return kp.Verify(URIPayload(uri), sig) == nil, nil
}
