// Package observer streams the payments that reach or leave a wallet account.
// It wraps Horizon's payment stream with cursor tracking, reconnection with
// exponential backoff, and handler filters.
//
// Example usage:
//
//	obs := observer.NewPaymentObserver(horizonclient.DefaultTestNetClient, account,
//	    observer.WithCursor("now"),
//	)
//	obs.OnPayment(func(ctx context.Context, evt observer.PaymentEvent) error {
//	    log.Ctx(ctx).Infof("received %s %s from %s", evt.Amount, evt.Asset, evt.From)
//	    return nil
//	}, observer.WithDestination(account), observer.WithAsset("USDC:GA5Z..."))
//
//	if err := obs.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package observer

import (
	"context"

	"github.com/stellar/go/amount"
)

// PaymentEvent is a payment-like operation touching the observed account.
type PaymentEvent struct {
	// ID is the Horizon operation ID.
	ID string
	// Type is the Horizon operation type (payment, create_account, ...).
	Type string
	From string
	To   string
	// Asset is "native" or "CODE:ISSUER".
	Asset  string
	Amount string
	// SourceAsset and SourceAmount are set for path payments.
	SourceAsset  string
	SourceAmount string
	Memo         string
	MemoType     string
	// Cursor is the paging token of the operation.
	Cursor          string
	TransactionHash string
	Successful      bool
}

// PaymentHandler processes a PaymentEvent. A returned error is logged and
// streaming continues.
type PaymentHandler func(ctx context.Context, evt PaymentEvent) error

// PaymentFilter reports whether a handler should see evt.
type PaymentFilter func(evt PaymentEvent) bool

type handlerEntry struct {
	handler PaymentHandler
	filters []PaymentFilter
}

func (e handlerEntry) matches(evt PaymentEvent) bool {
	for _, filter := range e.filters {
		if !filter(evt) {
			return false
		}
	}
	return true
}

// Observer watches on-chain payments.
type Observer interface {
	// OnPayment registers a handler. Filters are ANDed together.
	OnPayment(handler PaymentHandler, filters ...PaymentFilter)

	// Start streams until ctx is cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop ends streaming. It is safe to call more than once.
	Stop() error
}

// WithAsset matches payments of asset ("native" or "CODE:ISSUER").
func WithAsset(asset string) PaymentFilter {
	return func(evt PaymentEvent) bool {
		return evt.Asset == asset
	}
}

// WithMinAmount matches payments of at least minAmount.
func WithMinAmount(minAmount string) PaymentFilter {
	threshold, err := amount.ParseInt64(minAmount)
	return func(evt PaymentEvent) bool {
		if err != nil {
			return false
		}
		got, perr := amount.ParseInt64(evt.Amount)
		return perr == nil && got >= threshold
	}
}

// WithSource matches payments sent from accountID.
func WithSource(accountID string) PaymentFilter {
	return func(evt PaymentEvent) bool {
		return evt.From == accountID
	}
}

// WithDestination matches payments sent to accountID.
func WithDestination(accountID string) PaymentFilter {
	return func(evt PaymentEvent) bool {
		return evt.To == accountID
	}
}

// WithMemo matches payments whose transaction carries memo.
func WithMemo(memo string) PaymentFilter {
	return func(evt PaymentEvent) bool {
		return evt.Memo == memo
	}
}
