// Package stellar builds, signs and submits the Stellar transactions a
// wallet needs: account creation, payments and trustline management.
package stellar

import (
	"fmt"
	"time"

	"github.com/stellar/go/amount"
	"github.com/stellar/go/keypair"
	"github.com/stellar/go/txnbuild"

	"github.com/marwen-abid/wallet-sdk-go/errors"
)

const (
	defaultTimeout = 3 * time.Minute
	// maxTrustLimit is the largest trustline limit a ChangeTrust accepts.
	maxTrustLimit = "922337203685.4775807"
)

// TransactionBuilder accumulates operations for a single source account.
// Errors are deferred until Build.
type TransactionBuilder struct {
	source  *txnbuild.SimpleAccount
	ops     []txnbuild.Operation
	memo    txnbuild.Memo
	timeout time.Duration
	baseFee int64
	err     error
}

// NewTransactionBuilder starts a transaction for sourceAccount whose current
// sequence number is sequence.
func NewTransactionBuilder(sourceAccount string, sequence int64) *TransactionBuilder {
	b := &TransactionBuilder{
		source:  &txnbuild.SimpleAccount{AccountID: sourceAccount, Sequence: sequence},
		timeout: defaultTimeout,
		baseFee: txnbuild.MinBaseFee,
	}
	if _, err := keypair.ParseAddress(sourceAccount); err != nil {
		b.fail(fmt.Errorf("invalid source account: %w", err))
	}
	return b
}

func (b *TransactionBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func validDestination(destination string) error {
	if _, err := keypair.ParseAddress(destination); err != nil {
		return fmt.Errorf("invalid destination %q: %w", destination, err)
	}
	return nil
}

func positiveAmount(value string) error {
	parsed, err := amount.ParseInt64(value)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", value, err)
	}
	if parsed <= 0 {
		return fmt.Errorf("amount %q must be positive", value)
	}
	return nil
}

// CreateAccount funds a new account with startingBalance XLM.
func (b *TransactionBuilder) CreateAccount(destination, startingBalance string) *TransactionBuilder {
	if err := validDestination(destination); err != nil {
		b.fail(err)
		return b
	}
	if err := positiveAmount(startingBalance); err != nil {
		b.fail(err)
		return b
	}
	b.ops = append(b.ops, &txnbuild.CreateAccount{Destination: destination, Amount: startingBalance})
	return b
}

// Payment sends amt of asset to destination.
func (b *TransactionBuilder) Payment(destination string, asset Asset, amt string) *TransactionBuilder {
	if err := validDestination(destination); err != nil {
		b.fail(err)
		return b
	}
	if err := positiveAmount(amt); err != nil {
		b.fail(err)
		return b
	}
	b.ops = append(b.ops, &txnbuild.Payment{Destination: destination, Asset: asset.toTxnbuild(), Amount: amt})
	return b
}

// AddAssetSupport adds a trustline for asset. An empty limit means the maximum.
func (b *TransactionBuilder) AddAssetSupport(asset Asset, limit string) *TransactionBuilder {
	if limit == "" {
		limit = maxTrustLimit
	}
	return b.changeTrust(asset, limit)
}

// RemoveAssetSupport removes the trustline for asset. The balance must be zero.
func (b *TransactionBuilder) RemoveAssetSupport(asset Asset) *TransactionBuilder {
	return b.changeTrust(asset, "0")
}

func (b *TransactionBuilder) changeTrust(asset Asset, limit string) *TransactionBuilder {
	if asset.IsNative() {
		b.fail(fmt.Errorf("native asset does not need a trustline"))
		return b
	}
	line, err := txnbuild.CreditAsset{Code: asset.Code, Issuer: asset.Issuer}.ToChangeTrustAsset()
	if err != nil {
		b.fail(fmt.Errorf("invalid asset %s: %w", asset, err))
		return b
	}
	b.ops = append(b.ops, &txnbuild.ChangeTrust{Line: line, Limit: limit})
	return b
}

// SetMemo attaches a memo to the transaction.
func (b *TransactionBuilder) SetMemo(memo txnbuild.Memo) *TransactionBuilder {
	b.memo = memo
	return b
}

// SetTimeout sets how long the transaction stays valid (default: 3m).
func (b *TransactionBuilder) SetTimeout(d time.Duration) *TransactionBuilder {
	b.timeout = d
	return b
}

// SetBaseFee sets the per-operation fee in stroops.
func (b *TransactionBuilder) SetBaseFee(fee int64) *TransactionBuilder {
	if fee < txnbuild.MinBaseFee {
		b.fail(fmt.Errorf("base fee %d is below the network minimum %d", fee, txnbuild.MinBaseFee))
		return b
	}
	b.baseFee = fee
	return b
}

// Build returns the unsigned transaction.
func (b *TransactionBuilder) Build() (*txnbuild.Transaction, error) {
	if b.err != nil {
		return nil, errors.NewClientError(errors.TX_BUILD_FAILED, b.err.Error(), b.err)
	}
	if len(b.ops) == 0 {
		return nil, errors.NewClientError(errors.TX_BUILD_FAILED, "transaction has no operations", nil)
	}

	tx, err := txnbuild.NewTransaction(txnbuild.TransactionParams{
		SourceAccount:        b.source,
		IncrementSequenceNum: true,
		Operations:           b.ops,
		BaseFee:              b.baseFee,
		Memo:                 b.memo,
		Preconditions: txnbuild.Preconditions{
			TimeBounds: txnbuild.NewTimeout(int64(b.timeout.Seconds())),
		},
	})
	if err != nil {
		return nil, errors.NewClientError(errors.TX_BUILD_FAILED, "failed to build transaction", err)
	}
	return tx, nil
}
