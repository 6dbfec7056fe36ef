package signers

import (
	"context"
	"fmt"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
)

// keypairSigner wraps a stellar/go keypair for signing transactions.
type keypairSigner struct {
	kp *keypair.Full
}

// FromSecret creates a Signer from a Stellar secret key (S...).
// Returns an error if the secret key is invalid.
func FromSecret(secret string) (walletsdk.Signer, error) {
	kp, err := keypair.ParseFull(secret)
	if err != nil {
		return nil, fmt.Errorf("invalid secret key: %w", err)
	}
	return &keypairSigner{kp: kp}, nil
}

// FromKeypair creates a Signer from an already parsed keypair.
func FromKeypair(kp *keypair.Full) walletsdk.Signer {
	return &keypairSigner{kp: kp}
}

// PublicKey returns the Stellar address (G...) for this keypair.
func (s *keypairSigner) PublicKey() string {
	return s.kp.Address()
}

// SignTransaction signs a Stellar transaction envelope (base64 XDR).
// Fee bump envelopes are signed on the outer transaction.
func (s *keypairSigner) SignTransaction(ctx context.Context, xdr string, networkPassphrase string) (string, error) {
	parsed, err := txnbuild.TransactionFromXDR(xdr)
	if err != nil {
		return "", fmt.Errorf("failed to parse transaction XDR: %w", err)
	}

	if feeBump, ok := parsed.FeeBump(); ok {
		signed, err := feeBump.Sign(networkPassphrase, s.kp)
		if err != nil {
			return "", fmt.Errorf("failed to sign fee bump transaction: %w", err)
		}
		return signed.Base64()
	}

	tx, ok := parsed.Transaction()
	if !ok {
		return "", fmt.Errorf("unsupported transaction envelope")
	}

	signedTx, err := tx.Sign(networkPassphrase, s.kp)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}

	return signedTx.Base64()
}
