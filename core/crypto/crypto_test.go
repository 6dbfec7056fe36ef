package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNonce(t *testing.T) {
	nonce, err := GenerateNonce(48)
	require.NoError(t, err)
	assert.Len(t, nonce, 64)

	raw, err := base64.StdEncoding.DecodeString(nonce)
	require.NoError(t, err)
	assert.Len(t, raw, 48)

	other, err := GenerateNonce(48)
	require.NoError(t, err)
	assert.NotEqual(t, nonce, other)

	_, err = GenerateNonce(0)
	assert.Error(t, err)
}

func TestURIPayload(t *testing.T) {
	payload := URIPayload("web+stellar:pay?destination=G")
	require.Len(t, payload, 35+1+len("stellar.sep.7 - URI Scheme")+len("web+stellar:pay?destination=G"))
	for i := 0; i < 35; i++ {
		assert.Zero(t, payload[i])
	}
	assert.Equal(t, byte(4), payload[35])
	assert.Equal(t, "stellar.sep.7 - URI Schemeweb+stellar:pay?destination=G", string(payload[36:]))
}

func TestSignAndVerifyURI(t *testing.T) {
	kp := keypair.MustRandom()
	uri := "web+stellar:pay?destination=GCALNQQBXAPZ2WIRSDDBMSTAKCUH5SG6U76YBFLQLIXJTF7FE5AX7AOO&amount=120.1234567"

	sig, err := SignURI(kp, uri)
	require.NoError(t, err)

	ok, err := VerifyURISignature(kp.Address(), uri, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyURISignature(kp.Address(), uri+"&memo=x", sig)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifyURISignature(keypair.MustRandom().Address(), uri, sig)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = VerifyURISignature("not-a-key", uri, sig)
	assert.Error(t, err)

	_, err = VerifyURISignature(kp.Address(), uri, "%%%")
	assert.Error(t, err)
}
