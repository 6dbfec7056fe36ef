// Package watcher polls an anchor's transfer server and reports only new or
// changed transactions.
//
// Two modes are offered. WatchAllTransactions follows every transaction for
// an asset code: the first poll surfaces only in-progress transactions (and
// anything on the caller's watchlist), later polls surface status changes and
// transactions that appear already finished. WatchOneTransaction follows a
// single transaction id until it reaches a terminal status.
//
// Each watch owns its own session: a goroutine, a single timer and the
// bookkeeping of what it has already reported. The returned Handle can
// trigger an immediate poll (Refresh) or end the watch (Stop). After Stop no
// new callback is started, even if a fetch was in flight.
//
// Example usage:
//
//	w := anchor.Watcher() // or watcher.New(sdk.NewTransferServer(url, httpClient))
//	h := w.WatchAllTransactions(ctx, session.JWT, "USDC",
//	    func(tx walletsdk.Transaction) { log.Infof("%s is %s", tx.ID, tx.Status) },
//	    func(err error) { log.Errorf("watch: %v", err) },
//	    watcher.WithPollInterval(10*time.Second),
//	)
//	defer h.Stop()
package watcher
