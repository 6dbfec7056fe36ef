package cmd

import (
	"fmt"
	"go/types"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/network"
	"github.com/stellar/go/support/config"
	"github.com/stellar/go/support/log"
)

func LogLevelOption(configKey *logrus.Level) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "log-level",
		Usage:          `The log level. Options: "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", or "PANIC".`,
		OptType:        types.String,
		FlagDefault:    "INFO",
		ConfigKey:      configKey,
		CustomSetValue: SetConfigOptionLogLevel,
		Required:       false,
	}
}

func NetworkPassphraseOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "network-passphrase",
		Usage:       "Stellar network passphrase the wallet signs for.",
		OptType:     types.String,
		ConfigKey:   configKey,
		FlagDefault: network.TestNetworkPassphrase,
		Required:    true,
	}
}

func WalletSecretOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "wallet-secret",
		Usage:          "Secret key of the wallet account used to authenticate with the anchor.",
		OptType:        types.String,
		ConfigKey:      configKey,
		CustomSetValue: SetConfigOptionStellarPrivateKey,
		Required:       true,
	}
}

func HomeDomainOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:      "home-domain",
		Usage:     "Home domain of the anchor, where its stellar.toml is published.",
		OptType:   types.String,
		ConfigKey: configKey,
		Required:  true,
	}
}

func AllowHTTPOption(configKey *bool) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "allow-http",
		Usage:       "Fetch stellar.toml over plain HTTP. Only meant for local anchors.",
		OptType:     types.Bool,
		ConfigKey:   configKey,
		FlagDefault: false,
		Required:    false,
	}
}

func AssetCodeOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:      "asset",
		Usage:     "Code of the asset whose transactions are watched.",
		OptType:   types.String,
		ConfigKey: configKey,
		Required:  true,
	}
}

func PollIntervalOption(configKey *time.Duration) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "interval",
		Usage:          "Time between two polls of the transfer server.",
		OptType:        types.String,
		ConfigKey:      configKey,
		FlagDefault:    "5s",
		CustomSetValue: SetConfigOptionDuration,
		Required:       false,
	}
}

func HorizonURLOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "horizon-url",
		Usage:       "The URL of the Stellar Horizon server to stream payments from.",
		OptType:     types.String,
		ConfigKey:   configKey,
		FlagDefault: horizonclient.DefaultTestNetClient.HorizonURL,
		Required:    true,
	}
}

func AccountOption(configKey *string) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "account",
		Usage:          "Public key of the account whose payments are streamed.",
		OptType:        types.String,
		ConfigKey:      configKey,
		CustomSetValue: SetConfigOptionStellarPublicKey,
		Required:       true,
	}
}

func SetConfigOptionLogLevel(co *config.ConfigOption) error {
	logLevelStr := viper.GetString(co.Name)
	logLevel, err := logrus.ParseLevel(logLevelStr)
	if err != nil {
		return fmt.Errorf("couldn't parse log level in %s: %w", co.Name, err)
	}

	key, ok := co.ConfigKey.(*logrus.Level)
	if !ok {
		return fmt.Errorf("%s configKey has an invalid type %T", co.Name, co.ConfigKey)
	}
	*key = logLevel

	return nil
}

func SetConfigOptionStellarPublicKey(co *config.ConfigOption) error {
	publicKey := viper.GetString(co.Name)

	kp, err := keypair.ParseAddress(publicKey)
	if err != nil {
		return fmt.Errorf("error validating public key in %s: %w", co.Name, err)
	}

	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("the expected type for the config key in %s is a string, but a %T was provided instead", co.Name, co.ConfigKey)
	}
	*key = kp.Address()

	return nil
}

func SetConfigOptionStellarPrivateKey(co *config.ConfigOption) error {
	privateKey := viper.GetString(co.Name)

	kp, err := keypair.ParseFull(privateKey)
	if err != nil {
		return fmt.Errorf("invalid private key provided in %s: %w", co.Name, err)
	}

	key, ok := co.ConfigKey.(*string)
	if !ok {
		return fmt.Errorf("the expected type for the config key in %s is a string, but a %T was provided instead", co.Name, co.ConfigKey)
	}
	*key = kp.Seed()

	return nil
}

func SetConfigOptionDuration(co *config.ConfigOption) error {
	value := viper.GetString(co.Name)

	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("couldn't parse duration in %s: %w", co.Name, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", co.Name, value)
	}

	key, ok := co.ConfigKey.(*time.Duration)
	if !ok {
		return fmt.Errorf("%s configKey has an invalid type %T", co.Name, co.ConfigKey)
	}
	*key = d

	return nil
}

// splitList splits a comma-separated option value, dropping blanks.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func defaultPersistentPreRunE(cfgOpts config.ConfigOptions, logLevel *logrus.Level) func(_ *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		// viper keys are global and several commands declare the same option names.
		for _, co := range cfgOpts {
			if flag := cmd.Flags().Lookup(co.Name); flag != nil {
				if err := viper.BindPFlag(co.Name, flag); err != nil {
					return fmt.Errorf("binding flag %s: %w", co.Name, err)
				}
			}
		}
		if err := cfgOpts.RequireE(); err != nil {
			return fmt.Errorf("requiring values of config options: %w", err)
		}
		if err := cfgOpts.SetValues(); err != nil {
			return fmt.Errorf("setting values of config options: %w", err)
		}
		log.DefaultLogger.SetLevel(*logLevel)
		return nil
	}
}
