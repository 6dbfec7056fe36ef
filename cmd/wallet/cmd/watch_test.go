package cmd

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stellar/go/keypair"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
	"github.com/marwen-abid/wallet-sdk-go/anchortest"
	"github.com/marwen-abid/wallet-sdk-go/watcher"
)

const (
	testInterval = 10 * time.Millisecond
	testTimeout  = 5 * time.Second
)

// flakyFetcher fails its first history fetch and then serves one pending deposit.
type flakyFetcher struct {
	mu    sync.Mutex
	calls int
}

func (f *flakyFetcher) FetchTransactions(_ context.Context, _ string, _ walletsdk.TransactionsQuery) ([]walletsdk.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == 1 {
		return nil, stderrors.New("anchor unavailable")
	}
	return []walletsdk.Transaction{{ID: "1", Kind: walletsdk.KindDeposit, Status: walletsdk.StatusPendingAnchor}}, nil
}

func (f *flakyFetcher) FetchTransaction(_ context.Context, _ string, _ string) (*walletsdk.Transaction, error) {
	return nil, stderrors.New("not scripted")
}

func (f *flakyFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestResumeAfterFailures(t *testing.T) {
	f := &flakyFetcher{}
	fetchFailed := make(chan struct{}, 1)
	received := make(chan walletsdk.Transaction, 1)

	onMessage := func(tx walletsdk.Transaction) {
		select {
		case received <- tx:
		default:
		}
	}
	onError := func(error) {
		select {
		case fetchFailed <- struct{}{}:
		default:
		}
	}

	handle := watcher.New(f, watcher.WithPollInterval(testInterval)).
		WatchAllTransactions(context.Background(), "token", "USDC", onMessage, onError)
	t.Cleanup(handle.Stop)

	resumed := make(chan error, 1)
	go func() {
		resumed <- resumeAfterFailures(handle, fetchFailed, testInterval)
	}()

	select {
	case tx := <-received:
		assert.Equal(t, "1", tx.ID)
	case <-time.After(testTimeout):
		t.Fatal("watch did not resume after the failed fetch")
	}
	assert.GreaterOrEqual(t, f.callCount(), 2)

	handle.Stop()
	select {
	case err := <-resumed:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("resumeAfterFailures did not return after Stop")
	}
}

func TestResumeAfterFailuresReturnsWhenStoppedDuringBackoff(t *testing.T) {
	f := &flakyFetcher{}
	fetchFailed := make(chan struct{}, 1)
	handle := watcher.New(f, watcher.WithPollInterval(time.Hour)).
		WatchAllTransactions(context.Background(), "token", "USDC", func(walletsdk.Transaction) {}, func(error) {
			select {
			case fetchFailed <- struct{}{}:
			default:
			}
		})

	resumed := make(chan error, 1)
	go func() {
		resumed <- resumeAfterFailures(handle, fetchFailed, time.Hour)
	}()

	require.Eventually(t, func() bool { return f.callCount() == 1 }, testTimeout, testInterval)
	handle.Stop()

	select {
	case err := <-resumed:
		assert.NoError(t, err)
	case <-time.After(testTimeout):
		t.Fatal("resumeAfterFailures did not return after Stop")
	}
	assert.Equal(t, 1, f.callCount())
}

func testAnchorConfig(a *anchortest.Anchor) anchorConfig {
	return anchorConfig{
		NetworkPassphrase: a.NetworkPassphrase(),
		WalletSecret:      keypair.MustRandom().Seed(),
		HomeDomain:        a.Domain(),
		AllowHTTP:         true,
	}
}

func TestWatchOneCmdRun(t *testing.T) {
	testCases := []struct {
		name    string
		status  string
		wantErr string
	}{
		{name: "error status", status: "error", wantErr: "transaction tx-1 ended with status error: bank rejected"},
		{name: "completed", status: "completed"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := anchortest.New()
			defer a.Close()
			a.AddTransaction("USDC", map[string]any{
				"id":      "tx-1",
				"kind":    "deposit",
				"status":  tc.status,
				"message": "bank rejected",
			})

			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()
			err := (&watchOneCmd{}).Run(ctx, watchOneConfig{
				anchorConfig:  testAnchorConfig(a),
				AssetCode:     "USDC",
				TransactionID: "tx-1",
				PollInterval:  testInterval,
			})

			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.EqualError(t, err, tc.wantErr)
		})
	}
}

func TestWatchOneCmdRunFollowsStatusChanges(t *testing.T) {
	a := anchortest.New()
	defer a.Close()
	a.AddTransaction("USDC", map[string]any{"id": "tx-2", "kind": "withdrawal", "status": "pending_anchor"})

	updated := make(chan error, 1)
	go func() {
		for len(a.Requests("/sep24/transaction")) == 0 {
			time.Sleep(testInterval)
		}
		updated <- a.SetStatus("tx-2", "error")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	err := (&watchOneCmd{}).Run(ctx, watchOneConfig{
		anchorConfig:  testAnchorConfig(a),
		AssetCode:     "USDC",
		TransactionID: "tx-2",
		PollInterval:  testInterval,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ended with status error")
	assert.NoError(t, <-updated)
}

func TestWatchCmdRunRejectsUnknownKind(t *testing.T) {
	err := (&watchCmd{}).Run(context.Background(), watchConfig{Kind: "swap"})
	assert.EqualError(t, err, `unknown transaction kind "swap"`)
}
