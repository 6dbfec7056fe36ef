package observer

import (
	"context"
	"sync"
	"time"

	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/base"
	"github.com/stellar/go-stellar-sdk/protocols/horizon/operations"
	"github.com/stellar/go/support/log"

	"github.com/marwen-abid/wallet-sdk-go/errors"
)

// PaymentObserver implements Observer by streaming the payments of a single
// account from Horizon.
type PaymentObserver struct {
	client      horizonclient.ClientInterface
	account     string
	handlers    []handlerEntry
	cursor      string
	cursorSaver func(string) error

	initialBackoff time.Duration
	maxBackoff     time.Duration

	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once
	cancel   context.CancelFunc
	running  bool
}

// ObserverOption configures a PaymentObserver.
type ObserverOption func(*PaymentObserver)

// WithCursor sets the starting cursor. "now" skips historical payments; a
// paging token resumes after that operation.
func WithCursor(cursor string) ObserverOption {
	return func(o *PaymentObserver) {
		o.cursor = cursor
	}
}

// WithCursorSaver is called with the paging token of every processed payment
// so the caller can resume across restarts.
func WithCursorSaver(saver func(string) error) ObserverOption {
	return func(o *PaymentObserver) {
		o.cursorSaver = saver
	}
}

// WithReconnectBackoff sets the initial and maximum reconnection delay
// (default: 1s doubling up to 60s).
func WithReconnectBackoff(initial, max time.Duration) ObserverOption {
	return func(o *PaymentObserver) {
		o.initialBackoff = initial
		o.maxBackoff = max
	}
}

// NewPaymentObserver creates an observer for account. The default cursor is "now".
func NewPaymentObserver(client horizonclient.ClientInterface, account string, opts ...ObserverOption) *PaymentObserver {
	obs := &PaymentObserver{
		client:         client,
		account:        account,
		cursor:         "now",
		initialBackoff: 1 * time.Second,
		maxBackoff:     60 * time.Second,
		stopChan:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(obs)
	}

	return obs
}

// NewHorizonObserver creates an observer for account against horizonURL.
func NewHorizonObserver(horizonURL, account string, opts ...ObserverOption) *PaymentObserver {
	return NewPaymentObserver(&horizonclient.Client{HorizonURL: horizonURL}, account, opts...)
}

// OnPayment registers a handler for payments matching all filters.
func (o *PaymentObserver) OnPayment(handler PaymentHandler, filters ...PaymentFilter) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.handlers = append(o.handlers, handlerEntry{
		handler: handler,
		filters: filters,
	})
}

// Cursor returns the paging token of the last processed payment.
func (o *PaymentObserver) Cursor() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.cursor
}

// Start streams payments until ctx is cancelled or Stop is called,
// reconnecting with exponential backoff when the stream fails.
func (o *PaymentObserver) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return errors.NewWatcherError(errors.STREAM_ERROR, "observer already running", nil)
	}
	o.running = true
	o.cancel = cancel
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.cancel = nil
		o.mu.Unlock()
	}()

	logger := log.Ctx(ctx).WithField("account", o.account)
	backoff := o.initialBackoff
	attempt := 0

	for {
		select {
		case <-o.stopChan:
			return nil
		case <-ctx.Done():
			return o.exitErr(ctx)
		default:
		}

		request := horizonclient.OperationRequest{
			ForAccount: o.account,
			Cursor:     o.Cursor(),
			Order:      horizonclient.OrderAsc,
			Join:       "transactions",
		}

		err := o.client.StreamPayments(ctx, request, func(op operations.Operation) {
			backoff = o.initialBackoff
			attempt = 0

			evt, ok := toPaymentEvent(op)
			if !ok {
				return
			}
			o.dispatch(ctx, evt)

			o.mu.Lock()
			o.cursor = evt.Cursor
			o.mu.Unlock()

			if o.cursorSaver != nil {
				if err := o.cursorSaver(evt.Cursor); err != nil {
					logger.Warnf("failed to save cursor %s: %v", evt.Cursor, err)
				}
			}
		})
		if err == nil {
			return o.exitErr(ctx)
		}

		select {
		case <-o.stopChan:
			return nil
		case <-ctx.Done():
			return o.exitErr(ctx)
		default:
		}

		logger.Warnf("payment stream error (attempt %d): %v, reconnecting in %v", attempt, err, backoff)

		select {
		case <-time.After(backoff):
		case <-o.stopChan:
			return nil
		case <-ctx.Done():
			return o.exitErr(ctx)
		}

		attempt++
		backoff *= 2
		if backoff > o.maxBackoff {
			backoff = o.maxBackoff
		}
	}
}

// exitErr reports a cancelled parent context; a Stop or a cleanly closed
// stream is not an error.
func (o *PaymentObserver) exitErr(ctx context.Context) error {
	select {
	case <-o.stopChan:
		return nil
	default:
	}
	return ctx.Err()
}

// Stop ends streaming. It is safe to call Stop multiple times.
func (o *PaymentObserver) Stop() error {
	o.stopOnce.Do(func() {
		close(o.stopChan)
		o.mu.RLock()
		if o.cancel != nil {
			o.cancel()
		}
		o.mu.RUnlock()
	})
	return nil
}

func (o *PaymentObserver) dispatch(ctx context.Context, evt PaymentEvent) {
	o.mu.RLock()
	handlers := o.handlers
	o.mu.RUnlock()

	for _, entry := range handlers {
		if !entry.matches(evt) {
			continue
		}
		if err := entry.handler(ctx, evt); err != nil {
			log.Ctx(ctx).Errorf("payment handler failed for operation %s: %v", evt.ID, err)
		}
	}
}

// toPaymentEvent converts a streamed operation. Operations that move no
// funds report false.
func toPaymentEvent(op operations.Operation) (PaymentEvent, bool) {
	b := op.GetBase()
	evt := PaymentEvent{
		ID:              b.ID,
		Type:            op.GetType(),
		Cursor:          b.PT,
		TransactionHash: b.TransactionHash,
		Successful:      b.TransactionSuccessful,
	}
	if b.Transaction != nil {
		evt.Memo = b.Transaction.Memo
		evt.MemoType = b.Transaction.MemoType
	}

	switch p := op.(type) {
	case operations.Payment:
		evt.From, evt.To, evt.Amount = p.From, p.To, p.Amount
		evt.Asset = formatAsset(p.Asset)
	case operations.PathPayment:
		evt.From, evt.To, evt.Amount = p.From, p.To, p.Amount
		evt.Asset = formatAsset(p.Asset)
		evt.SourceAmount = p.SourceAmount
		evt.SourceAsset = formatAsset(base.Asset{Type: p.SourceAssetType, Code: p.SourceAssetCode, Issuer: p.SourceAssetIssuer})
	case operations.PathPaymentStrictSend:
		evt.From, evt.To, evt.Amount = p.From, p.To, p.Amount
		evt.Asset = formatAsset(p.Asset)
		evt.SourceAmount = p.SourceAmount
		evt.SourceAsset = formatAsset(base.Asset{Type: p.SourceAssetType, Code: p.SourceAssetCode, Issuer: p.SourceAssetIssuer})
	case operations.CreateAccount:
		evt.From, evt.To, evt.Amount = p.Funder, p.Account, p.StartingBalance
		evt.Asset = "native"
	case operations.AccountMerge:
		// The merged balance is only reported through effects.
		evt.From, evt.To = p.Account, p.Into
		evt.Asset = "native"
	default:
		return PaymentEvent{}, false
	}
	return evt, true
}

func formatAsset(asset base.Asset) string {
	if asset.Type == "native" {
		return "native"
	}
	return asset.Code + ":" + asset.Issuer
}

var _ Observer = (*PaymentObserver)(nil)
