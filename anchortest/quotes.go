package anchortest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
)

// offChainAsset is the fiat side of every quote.
const offChainAsset = "iso4217:USD"

type quoteStore struct {
	mu     sync.Mutex
	quotes map[string]map[string]any
}

func newQuoteStore() *quoteStore {
	return &quoteStore{quotes: map[string]map[string]any{}}
}

func (a *Anchor) stellarAssets() []string {
	assets := make([]string, 0, len(a.currencies))
	for _, c := range a.currencies {
		assets = append(assets, fmt.Sprintf("stellar:%s:%s", c.Code, c.Issuer))
	}
	return assets
}

func (a *Anchor) handleQuoteInfo(w http.ResponseWriter, r *http.Request) {
	assets := []map[string]any{{"asset": offChainAsset, "country_codes": []string{"USA"}}}
	for _, asset := range a.stellarAssets() {
		assets = append(assets, map[string]any{"asset": asset})
	}
	renderJSON(w, http.StatusOK, map[string]any{"assets": assets})
}

func (a *Anchor) handlePrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("sell_asset") == "" || q.Get("sell_amount") == "" {
		renderError(w, http.StatusBadRequest, "sell_asset and sell_amount are required")
		return
	}

	buyAssets := []map[string]any{}
	for _, asset := range append(a.stellarAssets(), offChainAsset) {
		if asset == q.Get("sell_asset") {
			continue
		}
		buyAssets = append(buyAssets, map[string]any{"asset": asset, "price": "1.00", "decimals": 2})
	}
	renderJSON(w, http.StatusOK, map[string]any{"buy_assets": buyAssets})
}

// price returns sell and buy amounts at a fixed 1:1 rate with no fee.
func price(sellAmount, buyAmount string) (string, string) {
	if sellAmount == "" {
		return buyAmount, buyAmount
	}
	return sellAmount, sellAmount
}

func (a *Anchor) handlePrice(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("sell_asset") == "" || q.Get("buy_asset") == "" || q.Get("context") == "" {
		renderError(w, http.StatusBadRequest, "sell_asset, buy_asset and context are required")
		return
	}
	if (q.Get("sell_amount") == "") == (q.Get("buy_amount") == "") {
		renderError(w, http.StatusBadRequest, "exactly one of sell_amount and buy_amount is required")
		return
	}

	sell, buy := price(q.Get("sell_amount"), q.Get("buy_amount"))
	renderJSON(w, http.StatusOK, map[string]any{
		"total_price": "1.00",
		"price":       "1.00",
		"sell_amount": sell,
		"buy_amount":  buy,
		"fee":         map[string]string{"total": "0.00", "asset": q.Get("sell_asset")},
	})
}

func (a *Anchor) handlePostQuote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SellAsset  string `json:"sell_asset"`
		BuyAsset   string `json:"buy_asset"`
		SellAmount string `json:"sell_amount"`
		BuyAmount  string `json:"buy_amount"`
		Context    string `json:"context"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SellAsset == "" || req.BuyAsset == "" || req.Context == "" {
		renderError(w, http.StatusBadRequest, "sell_asset, buy_asset and context are required")
		return
	}

	id, err := newID()
	if err != nil {
		renderError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sell, buy := price(req.SellAmount, req.BuyAmount)
	quote := map[string]any{
		"id":          id,
		"expires_at":  time.Now().Add(10 * time.Minute).UTC().Format(time.RFC3339),
		"total_price": "1.00",
		"price":       "1.00",
		"sell_asset":  req.SellAsset,
		"sell_amount": sell,
		"buy_asset":   req.BuyAsset,
		"buy_amount":  buy,
		"fee":         map[string]string{"total": "0.00", "asset": req.SellAsset},
	}

	a.quotes.mu.Lock()
	a.quotes.quotes[id] = quote
	a.quotes.mu.Unlock()

	renderJSON(w, http.StatusCreated, quote)
}

func (a *Anchor) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	a.quotes.mu.Lock()
	quote, ok := a.quotes.quotes[chi.URLParam(r, "id")]
	a.quotes.mu.Unlock()

	if !ok {
		renderError(w, http.StatusNotFound, "quote not found")
		return
	}
	renderJSON(w, http.StatusOK, quote)
}
