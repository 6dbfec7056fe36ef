package sdk

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/stellar/go/support/log"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
	"github.com/marwen-abid/wallet-sdk-go/core/net"
	"github.com/marwen-abid/wallet-sdk-go/errors"
	"github.com/marwen-abid/wallet-sdk-go/watcher"
)

// TransferServer talks to an anchor's SEP-24 (or SEP-6) transfer server.
// It implements watcher.TransactionFetcher.
type TransferServer struct {
	baseURL    string
	httpClient *net.Client
}

var _ watcher.TransactionFetcher = (*TransferServer)(nil)

// NewTransferServer creates a client for the transfer server at baseURL.
func NewTransferServer(baseURL string, httpClient *net.Client) *TransferServer {
	return &TransferServer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// URL returns the transfer server base URL.
func (t *TransferServer) URL() string {
	return t.baseURL
}

// FetchTransactions returns the transaction history matching query.
func (t *TransferServer) FetchTransactions(ctx context.Context, authToken string, query walletsdk.TransactionsQuery) ([]walletsdk.Transaction, error) {
	extra := map[string]string{}
	if !query.NoOlderThan.IsZero() {
		extra["no_older_than"] = query.NoOlderThan.UTC().Format(time.RFC3339)
	}
	endpoint := t.baseURL + "/transactions?" + toValues(query, extra).Encode()

	body, err := t.get(ctx, endpoint, authToken)
	if err != nil {
		return nil, err
	}

	items, ok := body["transactions"].([]any)
	if !ok {
		return nil, errors.NewClientError(errors.INVALID_RESPONSE, "response has no transactions array", nil).
			WithContext("url", endpoint)
	}

	txs := make([]walletsdk.Transaction, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, errors.NewClientError(errors.INVALID_RESPONSE, fmt.Sprintf("transactions[%d] is not an object", i), nil)
		}
		tx, err := decodeTransaction(obj)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	log.Ctx(ctx).Debugf("fetched %d %s transactions from %s", len(txs), query.AssetCode, t.baseURL)
	return txs, nil
}

// FetchTransaction returns the transaction with the given anchor id.
func (t *TransferServer) FetchTransaction(ctx context.Context, authToken string, id string) (*walletsdk.Transaction, error) {
	return t.fetchTransactionBy(ctx, authToken, "id", id)
}

// FetchTransactionByStellarID looks a transaction up by its Stellar transaction hash.
func (t *TransferServer) FetchTransactionByStellarID(ctx context.Context, authToken string, hash string) (*walletsdk.Transaction, error) {
	return t.fetchTransactionBy(ctx, authToken, "stellar_transaction_id", hash)
}

// FetchTransactionByExternalID looks a transaction up by the anchor's external reference.
func (t *TransferServer) FetchTransactionByExternalID(ctx context.Context, authToken string, externalID string) (*walletsdk.Transaction, error) {
	return t.fetchTransactionBy(ctx, authToken, "external_transaction_id", externalID)
}

func (t *TransferServer) fetchTransactionBy(ctx context.Context, authToken, key, value string) (*walletsdk.Transaction, error) {
	endpoint := t.baseURL + "/transaction?" + url.Values{key: {value}}.Encode()

	body, err := t.get(ctx, endpoint, authToken)
	if err != nil {
		return nil, err
	}

	obj, ok := body["transaction"].(map[string]any)
	if !ok || len(obj) == 0 {
		return nil, errors.NewClientError(errors.INVALID_RESPONSE, "response has no transaction object", nil).
			WithContext(key, value)
	}

	tx, err := decodeTransaction(obj)
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (t *TransferServer) get(ctx context.Context, endpoint, authToken string) (map[string]any, error) {
	resp, err := t.httpClient.Get(ctx, endpoint, net.WithBearer(authToken))
	if err != nil {
		return nil, errors.NewClientError(errors.REQUEST_FAILED, "transfer server request failed", err)
	}

	body, err := net.DecodeJSON[map[string]any](resp)
	if err != nil {
		if errors.HasCode(err, errors.INVALID_RESPONSE) {
			return nil, err
		}
		return nil, errors.NewClientError(errors.REQUEST_FAILED, "transfer server rejected request", err)
	}
	if *body == nil {
		return nil, errors.NewClientError(errors.INVALID_RESPONSE, "response body is not an object", nil)
	}
	return *body, nil
}

// AssetInfo describes one asset in a transfer server /info response.
type AssetInfo struct {
	Enabled                bool                `json:"enabled"`
	MinAmount              float64             `json:"min_amount,omitempty"`
	MaxAmount              float64             `json:"max_amount,omitempty"`
	FeeFixed               float64             `json:"fee_fixed,omitempty"`
	FeePercent             float64             `json:"fee_percent,omitempty"`
	FeeMinimum             float64             `json:"fee_minimum,omitempty"`
	AuthenticationRequired bool                `json:"authentication_required,omitempty"`
	Types                  map[string]TypeInfo `json:"types,omitempty"`
}

// TypeInfo lists the fields a SEP-6 deposit or withdrawal type expects.
type TypeInfo struct {
	Fields map[string]FieldInfo `json:"fields,omitempty"`
}

// FieldInfo describes a single SEP-6 field.
type FieldInfo struct {
	Description string   `json:"description"`
	Optional    bool     `json:"optional,omitempty"`
	Choices     []string `json:"choices,omitempty"`
}

// Info is a transfer server /info response.
type Info struct {
	Deposit  map[string]AssetInfo `json:"deposit"`
	Withdraw map[string]AssetInfo `json:"withdraw"`
	Fee      struct {
		Enabled bool `json:"enabled"`
	} `json:"fee"`
	Features struct {
		AccountCreation   bool `json:"account_creation"`
		ClaimableBalances bool `json:"claimable_balances"`
	} `json:"features"`
}

// Info fetches the transfer server's supported assets and features.
func (t *TransferServer) Info(ctx context.Context, lang string) (*Info, error) {
	endpoint := t.baseURL + "/info"
	if lang != "" {
		endpoint += "?" + url.Values{"lang": {lang}}.Encode()
	}

	resp, err := t.httpClient.Get(ctx, endpoint)
	if err != nil {
		return nil, errors.NewClientError(errors.REQUEST_FAILED, "failed to fetch transfer server info", err)
	}
	return net.DecodeJSON[Info](resp)
}

// InteractiveRequest starts a SEP-24 interactive deposit or withdrawal.
type InteractiveRequest struct {
	AssetCode                 string `structs:"asset_code" validate:"required"`
	AssetIssuer               string `structs:"asset_issuer,omitempty"`
	Amount                    string `structs:"amount,omitempty" validate:"omitempty,numeric"`
	Account                   string `structs:"account,omitempty"`
	Memo                      string `structs:"memo,omitempty"`
	MemoType                  string `structs:"memo_type,omitempty" validate:"omitempty,oneof=text id hash"`
	QuoteID                   string `structs:"quote_id,omitempty"`
	Lang                      string `structs:"lang,omitempty"`
	WalletName                string `structs:"wallet_name,omitempty"`
	WalletURL                 string `structs:"wallet_url,omitempty" validate:"omitempty,url"`
	ClaimableBalanceSupported bool   `structs:"claimable_balance_supported,omitempty"`

	// Extra carries SEP-9 KYC fields and anchor-specific parameters.
	Extra map[string]string `structs:"-"`
}

// InteractiveResponse is the anchor's answer to an interactive request.
type InteractiveResponse struct {
	Type string `json:"type"`
	URL  string `json:"url"`
	ID   string `json:"id"`
}

func (a *Anchor) interactive(ctx context.Context, kind string, req InteractiveRequest) (*InteractiveResponse, error) {
	if err := a.client.validate.Struct(req); err != nil {
		return nil, errors.NewClientError(errors.VALIDATION_FAILED, fmt.Sprintf("invalid %s request", kind), err)
	}

	ts, err := a.sep24()
	if err != nil {
		return nil, err
	}

	if req.Account == "" {
		req.Account = a.session.Account
	}

	endpoint := fmt.Sprintf("%s/transactions/%s/interactive", ts.URL(), kind)
	resp, err := a.client.httpClient.PostJSON(ctx, endpoint, toBody(req, req.Extra), net.WithBearer(a.session.JWT))
	if err != nil {
		return nil, errors.NewClientError(errors.TRANSFER_INIT_FAILED, fmt.Sprintf("failed to initiate %s", kind), err)
	}

	out, err := net.DecodeJSON[InteractiveResponse](resp)
	if err != nil {
		return nil, errors.NewClientError(errors.TRANSFER_INIT_FAILED, fmt.Sprintf("anchor rejected %s", kind), err)
	}
	if out.ID == "" || out.URL == "" {
		return nil, errors.NewClientError(errors.INVALID_RESPONSE, "interactive response is missing id or url", nil)
	}

	log.Ctx(ctx).Debugf("started interactive %s %s for %s", kind, out.ID, req.AssetCode)
	return out, nil
}
