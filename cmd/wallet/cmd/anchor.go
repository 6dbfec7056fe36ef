package cmd

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go/support/config"
	"github.com/stellar/go/support/log"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
	"github.com/marwen-abid/wallet-sdk-go/core/net"
	"github.com/marwen-abid/wallet-sdk-go/core/toml"
	"github.com/marwen-abid/wallet-sdk-go/sdk"
	"github.com/marwen-abid/wallet-sdk-go/signers"
	"github.com/marwen-abid/wallet-sdk-go/watcher"
)

// anchorConfig holds the options every command talking to an anchor needs.
type anchorConfig struct {
	LogLevel          logrus.Level
	NetworkPassphrase string
	WalletSecret      string
	HomeDomain        string
	AllowHTTP         bool
}

func (cfg *anchorConfig) options() config.ConfigOptions {
	return config.ConfigOptions{
		LogLevelOption(&cfg.LogLevel),
		NetworkPassphraseOption(&cfg.NetworkPassphrase),
		WalletSecretOption(&cfg.WalletSecret),
		HomeDomainOption(&cfg.HomeDomain),
		AllowHTTPOption(&cfg.AllowHTTP),
	}
}

// connect authenticates the wallet account with the anchor.
func connect(ctx context.Context, cfg anchorConfig) (*sdk.Anchor, error) {
	signer, err := signers.FromSecret(cfg.WalletSecret)
	if err != nil {
		return nil, fmt.Errorf("loading wallet key: %w", err)
	}

	httpClient := net.NewClient()
	opts := []sdk.ClientOption{sdk.WithHTTPClient(httpClient)}
	if cfg.AllowHTTP {
		opts = append(opts, sdk.WithResolver(toml.NewResolver(httpClient, toml.WithScheme("http"))))
	}
	client := sdk.NewClient(cfg.NetworkPassphrase, opts...)

	session, err := client.Login(ctx, signer.PublicKey(), cfg.HomeDomain, signer)
	if err != nil {
		return nil, fmt.Errorf("logging in to %s: %w", cfg.HomeDomain, err)
	}
	log.Ctx(ctx).Infof("authenticated %s with %s until %s", session.Account, cfg.HomeDomain, session.ExpiresAt.Format("15:04:05"))

	anchor, err := session.Anchor(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving anchor %s: %w", cfg.HomeDomain, err)
	}
	return anchor, nil
}

func logTransaction(ctx context.Context, event string) watcher.MessageHandler {
	return func(tx walletsdk.Transaction) {
		log.Ctx(ctx).WithFields(log.F{
			"id":         tx.ID,
			"kind":       tx.Kind,
			"status":     tx.Status,
			"amount_in":  tx.AmountIn,
			"amount_out": tx.AmountOut,
		}).Info(event)
	}
}

// transactionFailed reports whether err carries a transaction in an error status.
func transactionFailed(err error) (walletsdk.Transaction, bool) {
	var txErr *watcher.TransactionError
	if stderrors.As(err, &txErr) {
		return txErr.Transaction, true
	}
	return walletsdk.Transaction{}, false
}
