package watcher

import (
	"context"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stellar/go/support/log"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
)

const defaultPollInterval = 5 * time.Second

// TransactionFetcher is the transfer server the watcher polls. Implementations
// return distinguishable errors for transport failures and malformed responses.
type TransactionFetcher interface {
	FetchTransactions(ctx context.Context, authToken string, query walletsdk.TransactionsQuery) ([]walletsdk.Transaction, error)
	FetchTransaction(ctx context.Context, authToken string, id string) (*walletsdk.Transaction, error)
}

// MessageHandler receives transactions selected for reporting.
type MessageHandler func(tx walletsdk.Transaction)

// ErrorHandler receives either a fetch error or a *TransactionError for a
// transaction that ended in an error status.
type ErrorHandler func(err error)

// TransactionError reports a transaction whose status classifies as TerminalError.
type TransactionError struct {
	Transaction walletsdk.Transaction
}

func (e *TransactionError) Error() string {
	msg := fmt.Sprintf("transaction %s ended with status %s", e.Transaction.ID, e.Transaction.Status)
	if e.Transaction.Message != "" {
		msg += ": " + e.Transaction.Message
	}
	return msg
}

// Watcher starts watch sessions against a single transfer server.
type Watcher struct {
	fetcher      TransactionFetcher
	pollInterval time.Duration
}

// New creates a Watcher. A WithPollInterval option given here becomes the
// default interval for every watch it starts.
func New(fetcher TransactionFetcher, opts ...Option) *Watcher {
	cfg := newConfig(defaultPollInterval, opts)
	return &Watcher{
		fetcher:      fetcher,
		pollInterval: cfg.pollInterval,
	}
}

// WatchAllTransactions polls the transaction history for assetCode and
// reports new or changed transactions. Transactions in an error status go to
// onError, everything else to onMessage. A failed fetch is passed to onError
// and polling pauses until Refresh is called.
//
// Cancelling ctx has the same effect as calling Stop on the returned Handle.
func (w *Watcher) WatchAllTransactions(
	ctx context.Context,
	authToken string,
	assetCode string,
	onMessage MessageHandler,
	onError ErrorHandler,
	opts ...Option,
) *Handle {
	cfg := newConfig(w.pollInterval, opts)
	watch := &allTransactionsWatch{
		fetcher:   w.fetcher,
		authToken: authToken,
		watchlist: cfg.watchlist,
		onMessage: onMessage,
		onError:   onError,
		query: walletsdk.TransactionsQuery{
			AssetCode:   assetCode,
			Kind:        cfg.kind,
			NoOlderThan: cfg.noOlderThan,
			Lang:        cfg.lang,
			Limit:       cfg.limit,
		},
	}

	logger := log.Ctx(ctx).WithField("asset_code", assetCode)
	s := newSession(logger, cfg.pollInterval, watch.poll)
	watch.session = s
	s.start(ctx)

	return &Handle{session: s}
}

// WatchOneTransaction polls a single transaction until it reaches a terminal
// status. In-progress updates go to onMessage, completed, refunded and
// expired go to onSuccess, error statuses and fetch failures go to onError.
//
// Reaching a terminal status ends polling but not the watch: the Handle stays
// open and Done is not closed until the caller calls Stop or cancels ctx, so
// do one of those after onSuccess or a TransactionError reaches onError.
//
// Cancelling ctx has the same effect as calling Stop on the returned Handle.
func (w *Watcher) WatchOneTransaction(
	ctx context.Context,
	authToken string,
	assetCode string,
	id string,
	onMessage MessageHandler,
	onSuccess MessageHandler,
	onError ErrorHandler,
	opts ...Option,
) *Handle {
	cfg := newConfig(w.pollInterval, opts)
	watch := &oneTransactionWatch{
		fetcher:   w.fetcher,
		authToken: authToken,
		id:        id,
		onMessage: onMessage,
		onSuccess: onSuccess,
		onError:   onError,
	}

	logger := log.Ctx(ctx).WithFields(log.F{"asset_code": assetCode, "transaction_id": id})
	s := newSession(logger, cfg.pollInterval, watch.poll)
	watch.session = s
	s.start(ctx)

	return &Handle{session: s}
}

// Handle controls a running watch. It is safe for concurrent use and may be
// used before the first poll completes.
type Handle struct {
	session *session
}

// Refresh polls immediately, replacing any scheduled poll. It has no effect
// once the watch is stopped.
func (h *Handle) Refresh() {
	h.session.refresh()
}

// Stop ends the watch and discards everything it has recorded. Stop does not
// wait for the watch goroutine: a callback that is already running, or whose
// liveness check passed just before Stop, may still run to completion. No
// poll starts and no later callback is dispatched after that. Wait on Done to
// be sure no callback is running. Calling Stop more than once is harmless.
func (h *Handle) Stop() {
	h.session.stop()
}

// Done is closed once the watch's goroutine has exited, which happens only
// after Stop or cancellation of the watch's context.
func (h *Handle) Done() <-chan struct{} {
	return h.session.done
}

// allTransactionsWatch holds the per-call state of WatchAllTransactions.
type allTransactionsWatch struct {
	session   *session
	fetcher   TransactionFetcher
	authToken string
	query     walletsdk.TransactionsQuery
	watchlist mapset.Set[string]
	onMessage MessageHandler
	onError   ErrorHandler
}

func (w *allTransactionsWatch) poll(ctx context.Context) bool {
	s := w.session
	txs, err := w.fetcher.FetchTransactions(ctx, w.authToken, w.query)

	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		s.logger.Debug("watch stopped during fetch, discarding result")
		return false
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warnf("fetching transactions: %v", err)
		s.emit(func() { w.onError(err) })
		return false
	}

	firstPoll := s.state == stateInitial
	reports := make([]walletsdk.Transaction, 0, len(txs))
	for _, tx := range txs {
		if w.shouldReport(tx, firstPoll) {
			s.seen[tx.ID] = tx
			reports = append(reports, tx)
		}
	}
	s.state = statePolling
	s.mu.Unlock()

	s.logger.Debugf("polled %d transactions, reporting %d", len(txs), len(reports))
	for _, tx := range reports {
		tx := tx
		if Classify(tx.Status) == TerminalError {
			s.emit(func() { w.onError(&TransactionError{Transaction: tx}) })
		} else {
			s.emit(func() { w.onMessage(tx) })
		}
	}

	return true
}

// shouldReport must be called with the session lock held.
func (w *allTransactionsWatch) shouldReport(tx walletsdk.Transaction, firstPoll bool) bool {
	s := w.session
	if w.watchlist.Contains(tx.ID) {
		return true
	}

	inProgress := Classify(tx.Status) == InProgress
	if firstPoll {
		if !inProgress {
			s.ignored[tx.ID] = tx
		}
		return inProgress
	}

	if prev, ok := s.seen[tx.ID]; ok {
		return prev.Status != tx.Status
	}

	if lateTerminalStatuses.Contains(tx.Status) {
		_, ignored := s.ignored[tx.ID]
		return !ignored
	}

	return inProgress
}

// oneTransactionWatch holds the per-call state of WatchOneTransaction.
type oneTransactionWatch struct {
	session   *session
	fetcher   TransactionFetcher
	authToken string
	id        string
	onMessage MessageHandler
	onSuccess MessageHandler
	onError   ErrorHandler
}

func (w *oneTransactionWatch) poll(ctx context.Context) bool {
	s := w.session
	tx, err := w.fetcher.FetchTransaction(ctx, w.authToken, w.id)

	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		s.logger.Debug("watch stopped during fetch, discarding result")
		return false
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.Warnf("fetching transaction: %v", err)
		s.emit(func() { w.onError(err) })
		return false
	}

	class := Classify(tx.Status)
	prev, seen := s.seen[w.id]
	s.state = statePolling
	if seen && prev.Status == tx.Status {
		s.mu.Unlock()
		return class == InProgress
	}
	s.seen[w.id] = *tx
	s.mu.Unlock()

	s.logger.Debugf("transaction is now %s (%s)", tx.Status, class)
	switch class {
	case InProgress:
		s.emit(func() { w.onMessage(*tx) })
		return true
	case TerminalSuccess:
		s.emit(func() { w.onSuccess(*tx) })
	default:
		s.emit(func() { w.onError(&TransactionError{Transaction: *tx}) })
	}
	return false
}
