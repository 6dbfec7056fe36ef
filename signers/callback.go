package signers

import (
	"context"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
)

// SignFunc signs a base64 transaction envelope for the given network.
type SignFunc func(ctx context.Context, xdr string, networkPassphrase string) (string, error)

// callbackSigner wraps a custom signing function for external signing services.
type callbackSigner struct {
	publicKey string
	signFunc  SignFunc
}

// FromCallback creates a Signer from a public key and an arbitrary signing function.
// Intended for wrapping hardware wallets, custodial APIs, or any external signing service.
func FromCallback(publicKey string, signFunc SignFunc) walletsdk.Signer {
	return &callbackSigner{
		publicKey: publicKey,
		signFunc:  signFunc,
	}
}

// PublicKey returns the Stellar address (G...) for this signer.
func (s *callbackSigner) PublicKey() string {
	return s.publicKey
}

// SignTransaction delegates to the callback function.
func (s *callbackSigner) SignTransaction(ctx context.Context, xdr string, networkPassphrase string) (string, error) {
	return s.signFunc(ctx, xdr, networkPassphrase)
}
