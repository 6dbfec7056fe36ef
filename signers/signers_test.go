package signers

import (
	"context"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/txnbuild"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTx(t *testing.T, source string) string {
	t.Helper()
	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        &txnbuild.SimpleAccount{AccountID: source, Sequence: 1},
		IncrementSequenceNum: true,
		Operations: []txnbuild.Operation{
			&txnbuild.ManageData{Name: "test", Value: []byte("value")},
		},
		BaseFee:       txnbuild.MinBaseFee,
		Preconditions: txnbuild.Preconditions{TimeBounds: txnbuild.NewInfiniteTimeout()},
	})
	require.NoError(t, err)
	xdr, err := tx.Base64()
	require.NoError(t, err)
	return xdr
}

func TestFromSecret(t *testing.T) {
	kp := keypair.MustRandom()
	signer, err := FromSecret(kp.Seed())
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), signer.PublicKey())

	signedXDR, err := signer.SignTransaction(context.Background(), buildTx(t, kp.Address()), network.TestNetworkPassphrase)
	require.NoError(t, err)

	parsed, err := txnbuild.TransactionFromXDR(signedXDR)
	require.NoError(t, err)
	tx, ok := parsed.Transaction()
	require.True(t, ok)
	require.Len(t, tx.Signatures(), 1)

	hash, err := tx.Hash(network.TestNetworkPassphrase)
	require.NoError(t, err)
	assert.NoError(t, kp.Verify(hash[:], tx.Signatures()[0].Signature))
}

func TestFromSecretInvalid(t *testing.T) {
	_, err := FromSecret("SBAD")
	assert.Error(t, err)
}

func TestSignTransactionInvalidXDR(t *testing.T) {
	signer := FromKeypair(keypair.MustRandom())
	_, err := signer.SignTransaction(context.Background(), "not-xdr", network.TestNetworkPassphrase)
	assert.Error(t, err)
}

func TestFromCallback(t *testing.T) {
	var gotPassphrase string
	signer := FromCallback("GABC", func(ctx context.Context, xdr, networkPassphrase string) (string, error) {
		gotPassphrase = networkPassphrase
		return xdr + "-signed", nil
	})

	assert.Equal(t, "GABC", signer.PublicKey())
	out, err := signer.SignTransaction(context.Background(), "envelope", network.PublicNetworkPassphrase)
	require.NoError(t, err)
	assert.Equal(t, "envelope-signed", out)
	assert.Equal(t, network.PublicNetworkPassphrase, gotPassphrase)
}
