package watcher

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
)

type config struct {
	pollInterval time.Duration
	watchlist    mapset.Set[string]
	kind         walletsdk.TransactionKind
	noOlderThan  time.Time
	lang         string
	limit        int
}

// Option configures a Watcher or a single watch.
type Option func(*config)

func newConfig(interval time.Duration, opts []Option) *config {
	cfg := &config{
		pollInterval: interval,
		watchlist:    mapset.NewSet[string](),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.pollInterval <= 0 {
		cfg.pollInterval = defaultPollInterval
	}
	return cfg
}

// WithPollInterval sets the delay between polls (default: 5s).
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		c.pollInterval = d
	}
}

// WithWatchlist lists transaction ids that WatchAllTransactions reports on
// every poll they appear in, whether or not their status changed.
func WithWatchlist(ids ...string) Option {
	return func(c *config) {
		c.watchlist.Append(ids...)
	}
}

// WithKind restricts WatchAllTransactions to deposits or withdrawals.
func WithKind(kind walletsdk.TransactionKind) Option {
	return func(c *config) {
		c.kind = kind
	}
}

// WithNoOlderThan drops transactions started before t.
func WithNoOlderThan(t time.Time) Option {
	return func(c *config) {
		c.noOlderThan = t
	}
}

// WithLang asks the anchor for messages in the given language.
func WithLang(lang string) Option {
	return func(c *config) {
		c.lang = lang
	}
}

// WithLimit caps the number of transactions fetched per poll.
func WithLimit(n int) Option {
	return func(c *config) {
		c.limit = n
	}
}
