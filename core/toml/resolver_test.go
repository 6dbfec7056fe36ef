package toml

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marwen-abid/wallet-sdk-go/core/net"
	"github.com/marwen-abid/wallet-sdk-go/errors"
)

func TestParse(t *testing.T) {
	signingKey := keypair.MustRandom().Address()
	content := fmt.Sprintf(`
VERSION="2.0.0"
NETWORK_PASSPHRASE="Test SDF Network ; September 2015"
SIGNING_KEY="%s"
WEB_AUTH_ENDPOINT="https://testanchor.stellar.org/auth"
TRANSFER_SERVER="https://testanchor.stellar.org/sep6"
TRANSFER_SERVER_SEP0024="https://testanchor.stellar.org/sep24"
KYC_SERVER="https://testanchor.stellar.org/sep12"
ANCHOR_QUOTE_SERVER="https://testanchor.stellar.org/sep38"
ACCOUNTS=["%s"]

[DOCUMENTATION]
ORG_NAME="Stellar Development Foundation"

[[CURRENCIES]]
code="USDC"
issuer="%s"
status="test"
display_decimals=2
is_asset_anchored=true

[[CURRENCIES]]
code="SRT"
`, signingKey, signingKey, signingKey)

	info, err := Parse([]byte(content))
	require.NoError(t, err)

	assert.Equal(t, "2.0.0", info.Version)
	assert.Equal(t, signingKey, info.SigningKey)
	assert.Equal(t, "https://testanchor.stellar.org/auth", info.WebAuthEndpoint)
	assert.Equal(t, "https://testanchor.stellar.org/sep6", info.TransferServerSep6)
	assert.Equal(t, "https://testanchor.stellar.org/sep24", info.TransferServerSep24)
	assert.Equal(t, "https://testanchor.stellar.org/sep12", info.KYCServer)
	assert.Equal(t, "https://testanchor.stellar.org/sep38", info.AnchorQuoteServer)
	assert.Equal(t, []string{signingKey}, info.Accounts)
	assert.Equal(t, "Stellar Development Foundation", info.Documentation.OrgName)
	require.Len(t, info.Currencies, 2)

	usdc, ok := info.Currency("USDC")
	require.True(t, ok)
	assert.Equal(t, 2, usdc.DisplayDecimals)
	assert.True(t, usdc.IsAssetAnchored)

	_, ok = info.Currency("BTC")
	assert.False(t, ok)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte(`SIGNING_KEY="not-a-key"`))
	assert.True(t, errors.HasCode(err, errors.TOML_SIGNING_KEY_MISMATCH))

	_, err = Parse([]byte(`this is = = not toml`))
	assert.True(t, errors.HasCode(err, errors.TOML_INVALID))
}

func TestResolver_ResolveCaches(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, wellKnownPath, r.URL.Path)
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`WEB_AUTH_ENDPOINT="https://example.com/auth"`))
	}))
	defer srv.Close()

	domain := strings.TrimPrefix(srv.URL, "http://")
	resolver := NewResolver(net.NewClient(net.WithMaxRetries(0)), WithScheme("http"))

	info, err := resolver.Resolve(context.Background(), domain)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/auth", info.WebAuthEndpoint)

	_, err = resolver.Resolve(context.Background(), domain)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	resolver.Invalidate(domain)
	_, err = resolver.Resolve(context.Background(), domain)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestResolver_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	resolver := NewResolver(net.NewClient(net.WithMaxRetries(0)))
	_, err := resolver.Resolve(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.TOML_FETCH_FAILED))
}
