package sdk

import (
	"context"
	"fmt"
	"time"

	"github.com/marwen-abid/wallet-sdk-go/core/net"
	"github.com/marwen-abid/wallet-sdk-go/errors"
)

// Quotes requests firm and indicative prices through SEP-38.
type Quotes struct {
	anchor  *Anchor
	baseURL string
}

// QuoteAsset is an asset the quote server can exchange.
type QuoteAsset struct {
	Asset               string   `json:"asset"`
	SellDeliveryMethods []any    `json:"sell_delivery_methods,omitempty"`
	BuyDeliveryMethods  []any    `json:"buy_delivery_methods,omitempty"`
	CountryCodes        []string `json:"country_codes,omitempty"`
}

// QuoteInfo is a SEP-38 GET /info response.
type QuoteInfo struct {
	Assets []QuoteAsset `json:"assets"`
}

// PricesRequest asks for indicative prices of every asset buyable with SellAsset.
type PricesRequest struct {
	SellAsset          string `structs:"sell_asset" validate:"required"`
	SellAmount         string `structs:"sell_amount" validate:"required,numeric"`
	SellDeliveryMethod string `structs:"sell_delivery_method,omitempty"`
	BuyDeliveryMethod  string `structs:"buy_delivery_method,omitempty"`
	CountryCode        string `structs:"country_code,omitempty"`
}

// BuyAssetPrice is one entry of a SEP-38 /prices response.
type BuyAssetPrice struct {
	Asset    string `json:"asset"`
	Price    string `json:"price"`
	Decimals int    `json:"decimals"`
}

// PriceRequest asks for an indicative price for one asset pair. Exactly one of
// SellAmount and BuyAmount must be set.
type PriceRequest struct {
	SellAsset          string `structs:"sell_asset" validate:"required"`
	BuyAsset           string `structs:"buy_asset" validate:"required"`
	SellAmount         string `structs:"sell_amount,omitempty" validate:"required_without=BuyAmount,excluded_with=BuyAmount"`
	BuyAmount          string `structs:"buy_amount,omitempty" validate:"required_without=SellAmount"`
	Context            string `structs:"context" validate:"required,oneof=sep6 sep24 sep31"`
	SellDeliveryMethod string `structs:"sell_delivery_method,omitempty"`
	BuyDeliveryMethod  string `structs:"buy_delivery_method,omitempty"`
	CountryCode        string `structs:"country_code,omitempty"`
}

// Fee is the fee breakdown attached to prices and quotes.
type Fee struct {
	Total   string `json:"total"`
	Asset   string `json:"asset"`
	Details []struct {
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Amount      string `json:"amount"`
	} `json:"details,omitempty"`
}

// Price is a SEP-38 GET /price response.
type Price struct {
	TotalPrice string `json:"total_price"`
	Price      string `json:"price"`
	SellAmount string `json:"sell_amount"`
	BuyAmount  string `json:"buy_amount"`
	Fee        Fee    `json:"fee"`
}

// QuoteRequest asks for a firm quote.
type QuoteRequest struct {
	SellAsset          string     `json:"sell_asset" validate:"required"`
	BuyAsset           string     `json:"buy_asset" validate:"required"`
	SellAmount         string     `json:"sell_amount,omitempty" validate:"required_without=BuyAmount,excluded_with=BuyAmount"`
	BuyAmount          string     `json:"buy_amount,omitempty" validate:"required_without=SellAmount"`
	ExpireAfter        *time.Time `json:"expire_after,omitempty"`
	Context            string     `json:"context" validate:"required,oneof=sep6 sep24 sep31"`
	SellDeliveryMethod string     `json:"sell_delivery_method,omitempty"`
	BuyDeliveryMethod  string     `json:"buy_delivery_method,omitempty"`
	CountryCode        string     `json:"country_code,omitempty"`
}

// Quote is a firm SEP-38 quote.
type Quote struct {
	ID         string    `json:"id"`
	ExpiresAt  time.Time `json:"expires_at"`
	TotalPrice string    `json:"total_price"`
	Price      string    `json:"price"`
	SellAsset  string    `json:"sell_asset"`
	SellAmount string    `json:"sell_amount"`
	BuyAsset   string    `json:"buy_asset"`
	BuyAmount  string    `json:"buy_amount"`
	Fee        Fee       `json:"fee"`
}

// Quotes returns the SEP-38 client bound to ANCHOR_QUOTE_SERVER.
func (a *Anchor) Quotes() (*Quotes, error) {
	if a.info.AnchorQuoteServer == "" {
		return nil, errors.NewClientError(
			errors.SERVER_UNSUPPORTED,
			fmt.Sprintf("anchor %s does not provide ANCHOR_QUOTE_SERVER in stellar.toml", a.session.HomeDomain),
			nil,
		)
	}
	return &Quotes{anchor: a, baseURL: a.info.AnchorQuoteServer}, nil
}

// Info lists the assets the quote server supports.
func (q *Quotes) Info(ctx context.Context) (*QuoteInfo, error) {
	resp, err := q.anchor.client.httpClient.Get(ctx, q.baseURL+"/info", net.WithBearer(q.anchor.session.JWT))
	if err != nil {
		return nil, errors.NewClientError(errors.REQUEST_FAILED, "failed to fetch quote server info", err)
	}
	return net.DecodeJSON[QuoteInfo](resp)
}

// Prices returns indicative prices for every asset that can be bought with req.SellAsset.
func (q *Quotes) Prices(ctx context.Context, req PricesRequest) ([]BuyAssetPrice, error) {
	if err := q.anchor.client.validate.Struct(req); err != nil {
		return nil, errors.NewClientError(errors.VALIDATION_FAILED, "invalid prices request", err)
	}

	resp, err := q.anchor.client.httpClient.Get(ctx, q.baseURL+"/prices?"+toValues(req, nil).Encode(), net.WithBearer(q.anchor.session.JWT))
	if err != nil {
		return nil, errors.NewClientError(errors.REQUEST_FAILED, "failed to fetch prices", err)
	}

	out, err := net.DecodeJSON[struct {
		BuyAssets []BuyAssetPrice `json:"buy_assets"`
	}](resp)
	if err != nil {
		return nil, err
	}
	return out.BuyAssets, nil
}

// Price returns an indicative price for one asset pair.
func (q *Quotes) Price(ctx context.Context, req PriceRequest) (*Price, error) {
	if err := q.anchor.client.validate.Struct(req); err != nil {
		return nil, errors.NewClientError(errors.VALIDATION_FAILED, "invalid price request", err)
	}

	resp, err := q.anchor.client.httpClient.Get(ctx, q.baseURL+"/price?"+toValues(req, nil).Encode(), net.WithBearer(q.anchor.session.JWT))
	if err != nil {
		return nil, errors.NewClientError(errors.REQUEST_FAILED, "failed to fetch price", err)
	}
	return net.DecodeJSON[Price](resp)
}

// Post requests a firm quote.
func (q *Quotes) Post(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if err := q.anchor.client.validate.Struct(req); err != nil {
		return nil, errors.NewClientError(errors.VALIDATION_FAILED, "invalid quote request", err)
	}

	resp, err := q.anchor.client.httpClient.PostJSON(ctx, q.baseURL+"/quote", req, net.WithBearer(q.anchor.session.JWT))
	if err != nil {
		return nil, errors.NewClientError(errors.REQUEST_FAILED, "failed to request quote", err)
	}
	return net.DecodeJSON[Quote](resp)
}

// Get fetches a previously issued firm quote.
func (q *Quotes) Get(ctx context.Context, id string) (*Quote, error) {
	resp, err := q.anchor.client.httpClient.Get(ctx, q.baseURL+"/quote/"+id, net.WithBearer(q.anchor.session.JWT))
	if err != nil {
		return nil, errors.NewClientError(errors.REQUEST_FAILED, "failed to fetch quote", err)
	}
	return net.DecodeJSON[Quote](resp)
}
