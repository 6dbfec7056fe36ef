package watcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
	"github.com/marwen-abid/wallet-sdk-go/errors"
)

const (
	fastInterval = time.Millisecond
	settle       = 50 * time.Millisecond
	waitFor      = 2 * time.Second
)

func makeTransaction(i int, status walletsdk.TransactionStatus) walletsdk.Transaction {
	return walletsdk.Transaction{
		ID:     fmt.Sprintf("%d", i),
		Kind:   walletsdk.KindDeposit,
		Status: status,
	}
}

// scriptedFetcher replays one response per call and repeats the last one
// once the script runs out.
type scriptedFetcher struct {
	mu      sync.Mutex
	lists   [][]walletsdk.Transaction
	singles []walletsdk.Transaction
	errs    map[int]error
	calls   int
	queries []walletsdk.TransactionsQuery
}

func (f *scriptedFetcher) FetchTransactions(_ context.Context, _ string, query walletsdk.TransactionsQuery) ([]walletsdk.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.calls
	f.calls++
	f.queries = append(f.queries, query)
	if err, ok := f.errs[call]; ok {
		return nil, err
	}
	if len(f.lists) == 0 {
		return nil, nil
	}
	return f.lists[min(call, len(f.lists)-1)], nil
}

func (f *scriptedFetcher) FetchTransaction(_ context.Context, _ string, id string) (*walletsdk.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := f.calls
	f.calls++
	if err, ok := f.errs[call]; ok {
		return nil, err
	}
	tx := f.singles[min(call, len(f.singles)-1)]
	tx.ID = id
	return &tx, nil
}

func (f *scriptedFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recorder struct {
	mu        sync.Mutex
	messages  []walletsdk.Transaction
	successes []walletsdk.Transaction
	errs      []error
}

func (r *recorder) onMessage(tx walletsdk.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, tx)
}

func (r *recorder) onSuccess(tx walletsdk.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, tx)
}

func (r *recorder) onError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *recorder) counts() (messages, successes, errs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages), len(r.successes), len(r.errs)
}

func (r *recorder) messageIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.messages))
	for _, tx := range r.messages {
		ids = append(ids, tx.ID)
	}
	return ids
}

func watchOne(t *testing.T, f *scriptedFetcher, rec *recorder, opts ...Option) *Handle {
	t.Helper()
	w := New(f, WithPollInterval(fastInterval))
	h := w.WatchOneTransaction(context.Background(), "token", "SRT", "0", rec.onMessage, rec.onSuccess, rec.onError, opts...)
	t.Cleanup(h.Stop)
	return h
}

func watchAll(t *testing.T, f *scriptedFetcher, rec *recorder, opts ...Option) *Handle {
	t.Helper()
	w := New(f, WithPollInterval(fastInterval))
	h := w.WatchAllTransactions(context.Background(), "token", "SRT", rec.onMessage, rec.onError, opts...)
	t.Cleanup(h.Stop)
	return h
}

func TestWatchOneTransaction_ReportsEachStatusOnce(t *testing.T) {
	f := &scriptedFetcher{singles: []walletsdk.Transaction{
		makeTransaction(0, walletsdk.StatusIncomplete),
		makeTransaction(0, walletsdk.StatusPendingUser),
	}}
	rec := &recorder{}
	watchOne(t, f, rec)

	require.Eventually(t, func() bool {
		messages, _, _ := rec.counts()
		return messages == 2
	}, waitFor, fastInterval)

	// the last response keeps being replayed without producing callbacks
	require.Eventually(t, func() bool { return f.callCount() > 4 }, waitFor, fastInterval)
	messages, successes, errs := rec.counts()
	assert.Equal(t, 2, messages)
	assert.Equal(t, 0, successes)
	assert.Equal(t, 0, errs)
}

func TestWatchOneTransaction_StopsPollingOnSuccess(t *testing.T) {
	f := &scriptedFetcher{singles: []walletsdk.Transaction{
		makeTransaction(0, walletsdk.StatusPendingAnchor),
		makeTransaction(0, walletsdk.StatusCompleted),
		makeTransaction(0, walletsdk.StatusPendingStellar),
	}}
	rec := &recorder{}
	watchOne(t, f, rec)

	require.Eventually(t, func() bool {
		_, successes, _ := rec.counts()
		return successes == 1
	}, waitFor, fastInterval)
	time.Sleep(settle)

	messages, successes, errs := rec.counts()
	assert.Equal(t, 1, messages)
	assert.Equal(t, 1, successes)
	assert.Equal(t, 0, errs)
	assert.Equal(t, 2, f.callCount())
}

func TestWatchOneTransaction_ExpiredIsSuccess(t *testing.T) {
	f := &scriptedFetcher{singles: []walletsdk.Transaction{makeTransaction(0, walletsdk.StatusExpired)}}
	rec := &recorder{}
	watchOne(t, f, rec)

	require.Eventually(t, func() bool {
		_, successes, _ := rec.counts()
		return successes == 1
	}, waitFor, fastInterval)
}

func TestWatchOneTransaction_StopsPollingOnErrorStatus(t *testing.T) {
	f := &scriptedFetcher{singles: []walletsdk.Transaction{
		makeTransaction(0, walletsdk.StatusPendingAnchor),
		makeTransaction(0, walletsdk.StatusTooLarge),
	}}
	rec := &recorder{}
	watchOne(t, f, rec)

	require.Eventually(t, func() bool {
		_, _, errs := rec.counts()
		return errs == 1
	}, waitFor, fastInterval)
	time.Sleep(settle)

	assert.Equal(t, 2, f.callCount())
	var txErr *TransactionError
	require.True(t, stderrors.As(rec.errs[0], &txErr))
	assert.Equal(t, walletsdk.StatusTooLarge, txErr.Transaction.Status)
	assert.Contains(t, txErr.Error(), "too_large")
}

func TestWatchOneTransaction_FetchErrorPausesUntilRefresh(t *testing.T) {
	fetchErr := errors.NewCoreError(errors.REQUEST_FAILED, "status 503", nil)
	f := &scriptedFetcher{
		singles: []walletsdk.Transaction{makeTransaction(0, walletsdk.StatusPendingAnchor)},
		errs:    map[int]error{0: fetchErr},
	}
	rec := &recorder{}
	h := watchOne(t, f, rec)

	require.Eventually(t, func() bool {
		_, _, errs := rec.counts()
		return errs == 1
	}, waitFor, fastInterval)
	time.Sleep(settle)
	assert.Equal(t, 1, f.callCount())
	assert.True(t, errors.HasCode(rec.errs[0], errors.REQUEST_FAILED))

	h.Refresh()
	require.Eventually(t, func() bool {
		messages, _, _ := rec.counts()
		return messages == 1
	}, waitFor, fastInterval)
}

func TestWatchAllTransactions_FirstPollOnlyInProgress(t *testing.T) {
	first := []walletsdk.Transaction{
		makeTransaction(0, walletsdk.StatusPendingUserTransferStart),
		makeTransaction(1, walletsdk.StatusCompleted),
		makeTransaction(2, walletsdk.StatusError),
		makeTransaction(3, walletsdk.StatusIncomplete),
	}
	f := &scriptedFetcher{lists: [][]walletsdk.Transaction{first}}
	rec := &recorder{}
	watchAll(t, f, rec)

	require.Eventually(t, func() bool { return f.callCount() > 3 }, waitFor, fastInterval)

	messages, _, errs := rec.counts()
	assert.Equal(t, 2, messages)
	assert.Equal(t, 0, errs)
	assert.ElementsMatch(t, []string{"0", "3"}, rec.messageIDs())
}

func TestWatchAllTransactions_LateTerminalReportedOnce(t *testing.T) {
	f := &scriptedFetcher{lists: [][]walletsdk.Transaction{
		{makeTransaction(0, walletsdk.StatusPendingAnchor)},
		{
			makeTransaction(0, walletsdk.StatusPendingAnchor),
			makeTransaction(1, walletsdk.StatusCompleted),
			makeTransaction(2, walletsdk.StatusError),
			makeTransaction(3, walletsdk.StatusNoMarket),
		},
	}}
	rec := &recorder{}
	watchAll(t, f, rec)

	require.Eventually(t, func() bool { return f.callCount() > 4 }, waitFor, fastInterval)

	assert.Equal(t, []string{"0", "1"}, rec.messageIDs())
	_, _, errs := rec.counts()
	require.Equal(t, 1, errs)
	var txErr *TransactionError
	require.True(t, stderrors.As(rec.errs[0], &txErr))
	assert.Equal(t, "2", txErr.Transaction.ID)
}

func TestWatchAllTransactions_IgnoredStayIgnored(t *testing.T) {
	f := &scriptedFetcher{lists: [][]walletsdk.Transaction{
		{makeTransaction(1, walletsdk.StatusCompleted)},
		{makeTransaction(1, walletsdk.StatusRefunded)},
	}}
	rec := &recorder{}
	watchAll(t, f, rec)

	require.Eventually(t, func() bool { return f.callCount() > 3 }, waitFor, fastInterval)
	messages, _, errs := rec.counts()
	assert.Equal(t, 0, messages)
	assert.Equal(t, 0, errs)
}

func TestWatchAllTransactions_ReportsStatusChanges(t *testing.T) {
	f := &scriptedFetcher{lists: [][]walletsdk.Transaction{
		{makeTransaction(0, walletsdk.StatusPendingUserTransferStart)},
		{makeTransaction(0, walletsdk.StatusPendingUserTransferStart)},
		{makeTransaction(0, walletsdk.StatusPendingAnchor)},
		{makeTransaction(0, walletsdk.StatusPendingAnchor)},
		{makeTransaction(0, walletsdk.StatusCompleted)},
	}}
	rec := &recorder{}
	watchAll(t, f, rec)

	require.Eventually(t, func() bool { return f.callCount() > 6 }, waitFor, fastInterval)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.messages, 3)
	assert.Equal(t, walletsdk.StatusPendingUserTransferStart, rec.messages[0].Status)
	assert.Equal(t, walletsdk.StatusPendingAnchor, rec.messages[1].Status)
	assert.Equal(t, walletsdk.StatusCompleted, rec.messages[2].Status)
}

func TestWatchAllTransactions_WatchlistAlwaysReported(t *testing.T) {
	f := &scriptedFetcher{lists: [][]walletsdk.Transaction{
		{makeTransaction(1, walletsdk.StatusCompleted), makeTransaction(2, walletsdk.StatusCompleted)},
	}}
	rec := &recorder{}
	watchAll(t, f, rec, WithWatchlist("1"))

	require.Eventually(t, func() bool {
		messages, _, _ := rec.counts()
		return messages >= 3
	}, waitFor, fastInterval)

	for _, id := range rec.messageIDs() {
		assert.Equal(t, "1", id)
	}
}

func TestWatchAllTransactions_FetchErrorPausesUntilRefresh(t *testing.T) {
	fetchErr := errors.NewCoreError(errors.INVALID_RESPONSE, "missing transactions", nil)
	f := &scriptedFetcher{
		lists: [][]walletsdk.Transaction{{makeTransaction(0, walletsdk.StatusPendingAnchor)}},
		errs:  map[int]error{1: fetchErr},
	}
	rec := &recorder{}
	h := watchAll(t, f, rec)

	require.Eventually(t, func() bool {
		_, _, errs := rec.counts()
		return errs == 1
	}, waitFor, fastInterval)
	time.Sleep(settle)
	assert.Equal(t, 2, f.callCount())
	assert.True(t, errors.HasCode(rec.errs[0], errors.INVALID_RESPONSE))

	h.Refresh()
	require.Eventually(t, func() bool { return f.callCount() > 3 }, waitFor, fastInterval)
	messages, _, _ := rec.counts()
	assert.Equal(t, 1, messages)
}

func TestWatchAllTransactions_ForwardsQuery(t *testing.T) {
	since := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	f := &scriptedFetcher{}
	rec := &recorder{}
	watchAll(t, f, rec,
		WithKind(walletsdk.KindWithdrawal),
		WithNoOlderThan(since),
		WithLang("es"),
		WithLimit(20),
	)

	require.Eventually(t, func() bool { return f.callCount() > 0 }, waitFor, fastInterval)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, walletsdk.TransactionsQuery{
		AssetCode:   "SRT",
		Kind:        walletsdk.KindWithdrawal,
		NoOlderThan: since,
		Lang:        "es",
		Limit:       20,
	}, f.queries[0])
}

func TestHandle_StopCancelsScheduledPoll(t *testing.T) {
	f := &scriptedFetcher{lists: [][]walletsdk.Transaction{{makeTransaction(0, walletsdk.StatusPendingAnchor)}}}
	rec := &recorder{}
	w := New(f, WithPollInterval(time.Hour))
	h := w.WatchAllTransactions(context.Background(), "token", "SRT", rec.onMessage, rec.onError)

	require.Eventually(t, func() bool { return f.callCount() == 1 }, waitFor, fastInterval)

	h.Refresh()
	require.Eventually(t, func() bool { return f.callCount() == 2 }, waitFor, fastInterval)

	h.Stop()
	<-h.Done()
	h.Refresh()
	h.Stop()

	time.Sleep(settle)
	assert.Equal(t, 2, f.callCount())
	messages, _, _ := rec.counts()
	assert.Equal(t, 1, messages)

	h.session.mu.Lock()
	defer h.session.mu.Unlock()
	assert.Empty(t, h.session.seen)
	assert.Empty(t, h.session.ignored)
	assert.Equal(t, stateStopped, h.session.state)
}

// blockingFetcher ignores cancellation to model a fetch that cannot be aborted.
type blockingFetcher struct {
	entered chan struct{}
	release chan struct{}
}

func (f *blockingFetcher) FetchTransactions(_ context.Context, _ string, _ walletsdk.TransactionsQuery) ([]walletsdk.Transaction, error) {
	close(f.entered)
	<-f.release
	return []walletsdk.Transaction{makeTransaction(0, walletsdk.StatusPendingAnchor)}, nil
}

func (f *blockingFetcher) FetchTransaction(_ context.Context, _ string, id string) (*walletsdk.Transaction, error) {
	close(f.entered)
	<-f.release
	tx := makeTransaction(0, walletsdk.StatusCompleted)
	return &tx, nil
}

func TestHandle_StopDiscardsInFlightFetch(t *testing.T) {
	t.Run("all transactions", func(t *testing.T) {
		f := &blockingFetcher{entered: make(chan struct{}), release: make(chan struct{})}
		rec := &recorder{}
		h := New(f).WatchAllTransactions(context.Background(), "token", "SRT", rec.onMessage, rec.onError)

		<-f.entered
		h.Stop()
		close(f.release)
		<-h.Done()

		messages, successes, errs := rec.counts()
		assert.Zero(t, messages+successes+errs)
	})

	t.Run("one transaction", func(t *testing.T) {
		f := &blockingFetcher{entered: make(chan struct{}), release: make(chan struct{})}
		rec := &recorder{}
		h := New(f).WatchOneTransaction(context.Background(), "token", "SRT", "0", rec.onMessage, rec.onSuccess, rec.onError)

		<-f.entered
		h.Stop()
		close(f.release)
		<-h.Done()

		messages, successes, errs := rec.counts()
		assert.Zero(t, messages+successes+errs)
	})
}

func TestHandle_ContextCancelStopsWatch(t *testing.T) {
	f := &scriptedFetcher{lists: [][]walletsdk.Transaction{{makeTransaction(0, walletsdk.StatusPendingAnchor)}}}
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	h := New(f, WithPollInterval(fastInterval)).WatchAllTransactions(ctx, "token", "SRT", rec.onMessage, rec.onError)

	require.Eventually(t, func() bool { return f.callCount() > 1 }, waitFor, fastInterval)
	cancel()

	select {
	case <-h.Done():
	case <-time.After(waitFor):
		t.Fatal("watch did not stop after context cancellation")
	}
	assert.False(t, h.session.active())
}

func TestHandle_StopFromCallback(t *testing.T) {
	f := &scriptedFetcher{lists: [][]walletsdk.Transaction{
		{makeTransaction(0, walletsdk.StatusPendingAnchor), makeTransaction(1, walletsdk.StatusPendingAnchor)},
	}}
	var (
		mu    sync.Mutex
		count int
		h     *Handle
	)
	ready := make(chan struct{})
	onMessage := func(walletsdk.Transaction) {
		<-ready
		mu.Lock()
		count++
		mu.Unlock()
		h.Stop()
	}

	h = New(f, WithPollInterval(fastInterval)).WatchAllTransactions(context.Background(), "token", "SRT", onMessage, func(error) {})
	close(ready)
	<-h.Done()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, f.callCount())
}

func TestHandle_StopDuringCallbackSkipsRemainingReports(t *testing.T) {
	f := &scriptedFetcher{lists: [][]walletsdk.Transaction{
		{makeTransaction(0, walletsdk.StatusPendingAnchor), makeTransaction(1, walletsdk.StatusPendingAnchor)},
	}}
	rec := &recorder{}
	entered := make(chan struct{})
	release := make(chan struct{})
	onMessage := func(tx walletsdk.Transaction) {
		rec.onMessage(tx)
		if tx.ID == "0" {
			close(entered)
			<-release
		}
	}

	h := New(f, WithPollInterval(fastInterval)).WatchAllTransactions(context.Background(), "token", "SRT", onMessage, rec.onError)

	<-entered
	stopped := make(chan struct{})
	go func() {
		h.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("Stop waited for a running callback")
	}
	close(release)
	<-h.Done()

	assert.Equal(t, []string{"0"}, rec.messageIDs())
	assert.Equal(t, 1, f.callCount())
}

func TestWatchOneTransaction_DoneWaitsForStopAfterTerminalStatus(t *testing.T) {
	f := &scriptedFetcher{singles: []walletsdk.Transaction{makeTransaction(0, walletsdk.StatusCompleted)}}
	rec := &recorder{}
	h := watchOne(t, f, rec)

	require.Eventually(t, func() bool {
		_, successes, _ := rec.counts()
		return successes == 1
	}, waitFor, fastInterval)

	select {
	case <-h.Done():
		t.Fatal("watch exited before Stop")
	case <-time.After(settle):
	}

	h.Stop()
	select {
	case <-h.Done():
	case <-time.After(waitFor):
		t.Fatal("watch did not exit after Stop")
	}
	assert.Equal(t, 1, f.callCount())
}

func TestSeparateWatchesDoNotShareState(t *testing.T) {
	f := &scriptedFetcher{lists: [][]walletsdk.Transaction{{makeTransaction(0, walletsdk.StatusPendingAnchor)}}}
	w := New(f, WithPollInterval(fastInterval))

	first := &recorder{}
	h1 := w.WatchAllTransactions(context.Background(), "token", "SRT", first.onMessage, first.onError)
	require.Eventually(t, func() bool {
		messages, _, _ := first.counts()
		return messages == 1
	}, waitFor, fastInterval)
	h1.Stop()

	second := &recorder{}
	h2 := w.WatchAllTransactions(context.Background(), "token", "SRT", second.onMessage, second.onError)
	t.Cleanup(h2.Stop)
	require.Eventually(t, func() bool {
		messages, _, _ := second.counts()
		return messages == 1
	}, waitFor, fastInterval)
}
