package anchortest

import (
	"net/http"

	gotoml "github.com/pelletier/go-toml"

	"github.com/marwen-abid/wallet-sdk-go/core/net"
	"github.com/marwen-abid/wallet-sdk-go/core/toml"
)

// Info returns the stellar.toml the anchor publishes.
func (a *Anchor) Info() toml.AnchorInfo {
	base := a.URL()
	return toml.AnchorInfo{
		Version:              "2.0.0",
		NetworkPassphrase:    a.networkPassphrase,
		SigningKey:           a.signingKey.Address(),
		WebAuthEndpoint:      base + "/auth",
		TransferServerSep6:   base + "/sep6",
		TransferServerSep24:  base + "/sep24",
		KYCServer:            base + "/kyc",
		AnchorQuoteServer:    base + "/sep38",
		URIRequestSigningKey: a.uriSigningKey.Address(),
		Documentation: toml.Documentation{
			OrgName: "Test Anchor",
			OrgURL:  base,
		},
		Currencies: a.currencies,
	}
}

// RenderTOML renders the anchor's stellar.toml, omitting empty values.
func (a *Anchor) RenderTOML() (string, error) {
	info := a.Info()

	doc := map[string]any{}
	setString := func(m map[string]any, key, value string) {
		if value != "" {
			m[key] = value
		}
	}
	setString(doc, "VERSION", info.Version)
	setString(doc, "NETWORK_PASSPHRASE", info.NetworkPassphrase)
	setString(doc, "SIGNING_KEY", info.SigningKey)
	setString(doc, "WEB_AUTH_ENDPOINT", info.WebAuthEndpoint)
	setString(doc, "TRANSFER_SERVER", info.TransferServerSep6)
	setString(doc, "TRANSFER_SERVER_SEP0024", info.TransferServerSep24)
	setString(doc, "KYC_SERVER", info.KYCServer)
	setString(doc, "ANCHOR_QUOTE_SERVER", info.AnchorQuoteServer)
	setString(doc, "URI_REQUEST_SIGNING_KEY", info.URIRequestSigningKey)

	documentation := map[string]any{}
	setString(documentation, "ORG_NAME", info.Documentation.OrgName)
	setString(documentation, "ORG_URL", info.Documentation.OrgURL)
	if len(documentation) > 0 {
		doc["DOCUMENTATION"] = documentation
	}

	if len(info.Currencies) > 0 {
		currencies := make([]map[string]any, 0, len(info.Currencies))
		for _, curr := range info.Currencies {
			c := map[string]any{}
			setString(c, "code", curr.Code)
			setString(c, "issuer", curr.Issuer)
			setString(c, "status", curr.Status)
			if curr.DisplayDecimals > 0 {
				c["display_decimals"] = int64(curr.DisplayDecimals)
			}
			currencies = append(currencies, c)
		}
		doc["CURRENCIES"] = currencies
	}

	tree, err := gotoml.TreeFromMap(doc)
	if err != nil {
		return "", err
	}
	return tree.ToTomlString()
}

func (a *Anchor) handleTOML(w http.ResponseWriter, r *http.Request) {
	body, err := a.RenderTOML()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// Resolver returns a stellar.toml resolver that reaches this anchor over
// plain HTTP.
func (a *Anchor) Resolver(client *net.Client) *toml.Resolver {
	return toml.NewResolver(client, toml.WithScheme("http"))
}
