package cmd

import (
	"context"
	"fmt"
	"go/types"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellar/go/support/config"
	"github.com/stellar/go/support/log"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
	"github.com/marwen-abid/wallet-sdk-go/watcher"
)

type watchConfig struct {
	anchorConfig
	AssetCode    string
	Kind         string
	Watchlist    string
	PollInterval time.Duration
}

type watchCmd struct{}

func (c *watchCmd) Command() *cobra.Command {
	cfg := watchConfig{}
	cfgOpts := append(cfg.anchorConfig.options(),
		AssetCodeOption(&cfg.AssetCode),
		PollIntervalOption(&cfg.PollInterval),
		&config.ConfigOption{
			Name:      "kind",
			Usage:     `Only watch transactions of this kind: "deposit" or "withdrawal".`,
			OptType:   types.String,
			ConfigKey: &cfg.Kind,
			Required:  false,
		},
		&config.ConfigOption{
			Name:      "watchlist",
			Usage:     "Comma-separated transaction ids that are reported on every poll.",
			OptType:   types.String,
			ConfigKey: &cfg.Watchlist,
			Required:  false,
		},
	)

	cmd := &cobra.Command{
		Use:               "watch",
		Short:             "Watch every transaction of an asset at an anchor",
		PersistentPreRunE: defaultPersistentPreRunE(cfgOpts, &cfg.LogLevel),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Run(cmd.Context(), cfg)
		},
	}

	if err := cfgOpts.Init(cmd); err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}

func (c *watchCmd) Run(ctx context.Context, cfg watchConfig) error {
	var opts []watcher.Option
	switch kind := walletsdk.TransactionKind(cfg.Kind); kind {
	case "":
	case walletsdk.KindDeposit, walletsdk.KindWithdrawal:
		opts = append(opts, watcher.WithKind(kind))
	default:
		return fmt.Errorf("unknown transaction kind %q", cfg.Kind)
	}
	if ids := splitList(cfg.Watchlist); len(ids) > 0 {
		opts = append(opts, watcher.WithWatchlist(ids...))
	}

	anchor, err := connect(ctx, cfg.anchorConfig)
	if err != nil {
		return err
	}

	logger := log.Ctx(ctx)
	fetchFailed := make(chan struct{}, 1)
	onError := func(err error) {
		if tx, ok := transactionFailed(err); ok {
			logger.WithFields(log.F{"id": tx.ID, "status": tx.Status, "message": tx.Message}).Error("transaction failed")
			return
		}
		logger.Warnf("polling %s transactions failed: %v", cfg.AssetCode, err)
		select {
		case fetchFailed <- struct{}{}:
		default:
		}
	}

	w, err := anchor.Watcher(watcher.WithPollInterval(cfg.PollInterval))
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	handle := w.WatchAllTransactions(ctx, anchor.Session().JWT, cfg.AssetCode, logTransaction(ctx, "transaction updated"), onError, opts...)
	logger.Infof("watching %s transactions at %s every %s", cfg.AssetCode, cfg.HomeDomain, cfg.PollInterval)

	return resumeAfterFailures(handle, fetchFailed, cfg.PollInterval)
}

// resumeAfterFailures refreshes a paused watch one interval after each fetch
// failure and returns once the watch ends.
func resumeAfterFailures(handle *watcher.Handle, fetchFailed <-chan struct{}, interval time.Duration) error {
	for {
		select {
		case <-handle.Done():
			return nil
		case <-fetchFailed:
			select {
			case <-time.After(interval):
				handle.Refresh()
			case <-handle.Done():
				return nil
			}
		}
	}
}

type watchOneConfig struct {
	anchorConfig
	AssetCode     string
	TransactionID string
	PollInterval  time.Duration
}

type watchOneCmd struct{}

func (c *watchOneCmd) Command() *cobra.Command {
	cfg := watchOneConfig{}
	cfgOpts := append(cfg.anchorConfig.options(),
		AssetCodeOption(&cfg.AssetCode),
		PollIntervalOption(&cfg.PollInterval),
		&config.ConfigOption{
			Name:      "id",
			Usage:     "Id of the transaction to watch.",
			OptType:   types.String,
			ConfigKey: &cfg.TransactionID,
			Required:  true,
		},
	)

	cmd := &cobra.Command{
		Use:               "watch-one",
		Short:             "Watch a single anchor transaction until it completes or fails",
		PersistentPreRunE: defaultPersistentPreRunE(cfgOpts, &cfg.LogLevel),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.Run(cmd.Context(), cfg)
		},
	}

	if err := cfgOpts.Init(cmd); err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}

func (c *watchOneCmd) Run(ctx context.Context, cfg watchOneConfig) error {
	anchor, err := connect(ctx, cfg.anchorConfig)
	if err != nil {
		return err
	}

	logger := log.Ctx(ctx).WithField("id", cfg.TransactionID)
	result := make(chan error, 1)
	fetchFailed := make(chan struct{}, 1)

	onSuccess := func(tx walletsdk.Transaction) {
		logTransaction(ctx, "transaction finished")(tx)
		result <- nil
	}
	onError := func(err error) {
		if tx, ok := transactionFailed(err); ok {
			result <- fmt.Errorf("transaction %s ended with status %s: %s", tx.ID, tx.Status, tx.Message)
			return
		}
		logger.Warnf("polling transaction failed: %v", err)
		select {
		case fetchFailed <- struct{}{}:
		default:
		}
	}

	w, err := anchor.Watcher(watcher.WithPollInterval(cfg.PollInterval))
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	handle := w.WatchOneTransaction(ctx, anchor.Session().JWT, cfg.AssetCode, cfg.TransactionID,
		logTransaction(ctx, "transaction updated"), onSuccess, onError)
	defer handle.Stop()

	for {
		select {
		case err := <-result:
			return err
		case <-handle.Done():
			return ctx.Err()
		case <-fetchFailed:
			select {
			case <-time.After(cfg.PollInterval):
				handle.Refresh()
			case <-handle.Done():
				return ctx.Err()
			}
		}
	}
}
