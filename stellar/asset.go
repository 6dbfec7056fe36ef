package stellar

import (
	"fmt"
	"strings"

	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"
)

// Asset identifies XLM or an issued asset.
type Asset struct {
	Code   string
	Issuer string
}

// NativeAsset is XLM.
var NativeAsset = Asset{}

// IssuedAsset returns the asset code issued by issuer.
func IssuedAsset(code, issuer string) Asset {
	return Asset{Code: code, Issuer: issuer}
}

// ParseAsset accepts "native", "XLM", "CODE:ISSUER" and the SEP-38
// "stellar:CODE:ISSUER" form.
func ParseAsset(s string) (Asset, error) {
	s = strings.TrimPrefix(s, "stellar:")
	if s == "native" || s == "XLM" {
		return NativeAsset, nil
	}

	code, issuer, ok := strings.Cut(s, ":")
	if !ok || code == "" {
		return Asset{}, fmt.Errorf("invalid asset %q", s)
	}
	if _, err := keypair.ParseAddress(issuer); err != nil {
		return Asset{}, fmt.Errorf("invalid issuer for asset %q: %w", s, err)
	}
	return Asset{Code: code, Issuer: issuer}, nil
}

// IsNative reports whether the asset is XLM.
func (a Asset) IsNative() bool {
	return a.Issuer == ""
}

// String renders the asset as "native" or "CODE:ISSUER".
func (a Asset) String() string {
	if a.IsNative() {
		return "native"
	}
	return a.Code + ":" + a.Issuer
}

func (a Asset) toTxnbuild() txnbuild.Asset {
	if a.IsNative() {
		return txnbuild.NativeAsset{}
	}
	return txnbuild.CreditAsset{Code: a.Code, Issuer: a.Issuer}
}
