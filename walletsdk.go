// Package walletsdk provides a Go SDK for Stellar wallets talking to anchors.
// It handles SEP-10 authentication, SEP-6/SEP-24 transfers, SEP-12 customer
// data, SEP-38 quotes, SEP-7 URIs and transaction watching, while delegating
// key custody to the caller through the Signer interface.
package walletsdk

import (
	"context"
	"strings"
	"time"
)

// Signer is the minimal contract for proving identity and authorizing actions.
// The SDK does not manage keys, wallet connections, or signing infrastructure.
// The caller provides a Signer; the SDK uses it.
type Signer interface {
	// PublicKey returns the Stellar address (G...) identifying this signer.
	PublicKey() string

	// SignTransaction signs a Stellar transaction envelope (base64 XDR).
	// The networkPassphrase is required for computing the correct transaction hash.
	// Returns the signed envelope as base64 XDR.
	SignTransaction(ctx context.Context, xdr string, networkPassphrase string) (string, error)
}

// Transaction is a deposit or withdrawal record as reported by an anchor's
// transfer server. The typed fields cover what the SDK reads; Raw keeps the
// full payload exactly as the anchor sent it.
type Transaction struct {
	ID                    string            `mapstructure:"id"`
	Kind                  TransactionKind   `mapstructure:"kind"`
	Status                TransactionStatus `mapstructure:"status"`
	StatusEta             int64             `mapstructure:"status_eta"`
	MoreInfoURL           string            `mapstructure:"more_info_url"`
	AmountIn              string            `mapstructure:"amount_in"`
	AmountInAsset         string            `mapstructure:"amount_in_asset"`
	AmountOut             string            `mapstructure:"amount_out"`
	AmountOutAsset        string            `mapstructure:"amount_out_asset"`
	AmountFee             string            `mapstructure:"amount_fee"`
	AmountFeeAsset        string            `mapstructure:"amount_fee_asset"`
	QuoteID               string            `mapstructure:"quote_id"`
	StartedAt             time.Time         `mapstructure:"started_at"`
	UpdatedAt             *time.Time        `mapstructure:"updated_at"`
	CompletedAt           *time.Time        `mapstructure:"completed_at"`
	StellarTransactionID  string            `mapstructure:"stellar_transaction_id"`
	ExternalTransactionID string            `mapstructure:"external_transaction_id"`
	Message               string            `mapstructure:"message"`
	Refunded              bool              `mapstructure:"refunded"`
	From                  string            `mapstructure:"from"`
	To                    string            `mapstructure:"to"`
	DepositMemo           string            `mapstructure:"deposit_memo"`
	DepositMemoType       string            `mapstructure:"deposit_memo_type"`
	WithdrawAnchorAccount string            `mapstructure:"withdraw_anchor_account"`
	WithdrawMemo          string            `mapstructure:"withdraw_memo"`
	WithdrawMemoType      string            `mapstructure:"withdraw_memo_type"`

	// Raw is the verbatim JSON object returned by the anchor.
	Raw map[string]any `mapstructure:"-"`
}

// TransactionStatus is the anchor-reported state of a transaction.
type TransactionStatus string

const (
	// StatusIncomplete means the user has not yet finished the interactive flow.
	StatusIncomplete TransactionStatus = "incomplete"

	// StatusPendingUserTransferStart means the anchor is waiting for the user to
	// send funds (deposit) or the Stellar payment (withdrawal).
	StatusPendingUserTransferStart TransactionStatus = "pending_user_transfer_start"

	// StatusPendingUserTransferComplete means the user's off-chain funds are
	// ready to be picked up.
	StatusPendingUserTransferComplete TransactionStatus = "pending_user_transfer_complete"

	// StatusPendingAnchor means the anchor is processing the transaction.
	StatusPendingAnchor TransactionStatus = "pending_anchor"

	// StatusPendingExternal means an external system (bank, network) is processing.
	StatusPendingExternal TransactionStatus = "pending_external"

	// StatusPendingStellar means the Stellar leg has been submitted.
	StatusPendingStellar TransactionStatus = "pending_stellar"

	// StatusPendingTrust means the user must add a trustline for the asset.
	StatusPendingTrust TransactionStatus = "pending_trust"

	// StatusPendingUser means the user must take an action, see more_info_url.
	StatusPendingUser TransactionStatus = "pending_user"

	StatusCompleted TransactionStatus = "completed"
	StatusRefunded  TransactionStatus = "refunded"
	StatusExpired   TransactionStatus = "expired"
	StatusNoMarket  TransactionStatus = "no_market"
	StatusTooSmall  TransactionStatus = "too_small"
	StatusTooLarge  TransactionStatus = "too_large"
	StatusError     TransactionStatus = "error"

	// StatusOnHold means the anchor paused processing, usually for compliance.
	StatusOnHold TransactionStatus = "on_hold"
)

// IsPending reports whether the status carries the "pending" prefix.
func (s TransactionStatus) IsPending() bool {
	return strings.HasPrefix(string(s), "pending")
}

// TransactionKind distinguishes deposits from withdrawals.
type TransactionKind string

const (
	// KindDeposit represents an off-chain to on-chain transfer.
	KindDeposit TransactionKind = "deposit"

	// KindWithdrawal represents an on-chain to off-chain transfer.
	KindWithdrawal TransactionKind = "withdrawal"
)

// SessionStore caches authentication tokens so repeated logins against the
// same anchor can reuse a still-valid JWT.
type SessionStore interface {
	// Put records a token for the given key until expiresAt.
	Put(ctx context.Context, key string, token string, expiresAt time.Time) error

	// Get returns the token for key if present and not expired.
	Get(ctx context.Context, key string) (token string, expiresAt time.Time, ok bool, err error)

	// Delete removes the token for key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// TransactionsQuery filters the transaction history returned by a transfer
// server's /transactions endpoint.
type TransactionsQuery struct {
	AssetCode   string          `structs:"asset_code"`
	Kind        TransactionKind `structs:"kind,omitempty"`
	NoOlderThan time.Time       `structs:"-"`
	Limit       int             `structs:"limit,omitempty"`
	PagingID    string          `structs:"paging_id,omitempty"`
	Lang        string          `structs:"lang,omitempty"`
}
