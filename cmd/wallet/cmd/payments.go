package cmd

import (
	"context"
	"go/types"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stellar/go/support/config"
	"github.com/stellar/go/support/log"

	"github.com/marwen-abid/wallet-sdk-go/observer"
)

type paymentsConfig struct {
	LogLevel   logrus.Level
	HorizonURL string
	Account    string
	Cursor     string
	Asset      string
	MinAmount  string
}

type paymentsCmd struct{}

func (c *paymentsCmd) Command() *cobra.Command {
	cfg := paymentsConfig{}
	cfgOpts := config.ConfigOptions{
		LogLevelOption(&cfg.LogLevel),
		HorizonURLOption(&cfg.HorizonURL),
		AccountOption(&cfg.Account),
		{
			Name:        "cursor",
			Usage:       `Paging token to resume from, or "now" to skip historical payments.`,
			OptType:     types.String,
			ConfigKey:   &cfg.Cursor,
			FlagDefault: "now",
			Required:    false,
		},
		{
			Name:      "payment-asset",
			Usage:     `Only report payments of this asset: "native" or "CODE:ISSUER".`,
			OptType:   types.String,
			ConfigKey: &cfg.Asset,
			Required:  false,
		},
		{
			Name:      "min-amount",
			Usage:     "Only report payments of at least this amount.",
			OptType:   types.String,
			ConfigKey: &cfg.MinAmount,
			Required:  false,
		},
	}

	cmd := &cobra.Command{
		Use:               "payments",
		Short:             "Stream the payments sent to and from an account",
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

func (c *paymentsCmd) Run(ctx context.Context, cfg paymentsConfig) error {
	obs := observer.NewHorizonObserver(cfg.HorizonURL, cfg.Account, observer.WithCursor(cfg.Cursor))

	var filters []observer.PaymentFilter
	if cfg.Asset != "" {
		filters = append(filters, observer.WithAsset(cfg.Asset))
	}
	if cfg.MinAmount != "" {
		filters = append(filters, observer.WithMinAmount(cfg.MinAmount))
	}

	obs.OnPayment(func(ctx context.Context, evt observer.PaymentEvent) error {
		direction := "outgoing"
		if evt.To == cfg.Account {
			direction = "incoming"
		}
		log.Ctx(ctx).WithFields(log.F{
			"direction": direction,
			"type":      evt.Type,
			"from":      evt.From,
			"to":        evt.To,
			"asset":     evt.Asset,
			"amount":    evt.Amount,
			"memo":      evt.Memo,
			"cursor":    evt.Cursor,
		}).Info("payment")
		return nil
	}, filters...)

	log.Ctx(ctx).Infof("streaming payments of %s from %s", cfg.Account, cfg.HorizonURL)
	err := obs.Start(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
