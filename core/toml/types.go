// Package toml provides functionality for fetching and parsing stellar.toml
// files as specified in SEP-1.
//
// The Resolver fetches and caches stellar.toml files from anchor domains and
// exposes the endpoints a wallet needs to talk to the anchor.
package toml

// AnchorInfo represents the parsed contents of a stellar.toml file.
type AnchorInfo struct {
	Version string `toml:"VERSION"`

	// NetworkPassphrase identifies the Stellar network (testnet/mainnet).
	NetworkPassphrase string `toml:"NETWORK_PASSPHRASE"`

	// SigningKey is the anchor's public key used for SEP-10 authentication.
	SigningKey string `toml:"SIGNING_KEY"`

	// WebAuthEndpoint is the URL for SEP-10 Stellar Web Authentication.
	WebAuthEndpoint string `toml:"WEB_AUTH_ENDPOINT"`

	// TransferServerSep6 is the URL for SEP-6 Non-Interactive Deposit/Withdrawal.
	TransferServerSep6 string `toml:"TRANSFER_SERVER"`

	// TransferServerSep24 is the URL for SEP-24 Interactive Deposit/Withdrawal.
	TransferServerSep24 string `toml:"TRANSFER_SERVER_SEP0024"`

	// KYCServer is the URL for SEP-12 customer information.
	KYCServer string `toml:"KYC_SERVER"`

	// AnchorQuoteServer is the URL for SEP-38 quotes.
	AnchorQuoteServer string `toml:"ANCHOR_QUOTE_SERVER"`

	// URIRequestSigningKey verifies SEP-7 URIs originating from this domain.
	URIRequestSigningKey string `toml:"URI_REQUEST_SIGNING_KEY"`

	HorizonURL string   `toml:"HORIZON_URL"`
	Accounts   []string `toml:"ACCOUNTS"`

	Documentation Documentation `toml:"DOCUMENTATION"`

	// Currencies lists assets supported by the anchor.
	Currencies []CurrencyInfo `toml:"CURRENCIES"`
}

// Documentation is the organization section of stellar.toml.
type Documentation struct {
	OrgName         string `toml:"ORG_NAME"`
	OrgURL          string `toml:"ORG_URL"`
	OrgLogo         string `toml:"ORG_LOGO"`
	OrgSupportEmail string `toml:"ORG_SUPPORT_EMAIL"`
}

// CurrencyInfo describes a Stellar asset supported by an anchor.
type CurrencyInfo struct {
	// Code is the asset code (e.g., "USDC", "BTC").
	Code string `toml:"code"`

	// Issuer is the Stellar public key of the asset issuer.
	Issuer string `toml:"issuer"`

	// Status indicates if the asset is live, test, or disabled (optional).
	Status string `toml:"status"`

	DisplayDecimals int    `toml:"display_decimals"`
	AnchorAssetType string `toml:"anchor_asset_type"`
	IsAssetAnchored bool   `toml:"is_asset_anchored"`
	Desc            string `toml:"desc"`
	Name            string `toml:"name"`
}

// Currency returns the currency entry matching code, if any.
func (a *AnchorInfo) Currency(code string) (CurrencyInfo, bool) {
	for _, c := range a.Currencies {
		if c.Code == code {
			return c, true
		}
	}
	return CurrencyInfo{}, false
}
