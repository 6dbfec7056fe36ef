package stellar

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	hProtocol "github.com/stellar/go-stellar-sdk/protocols/horizon"
	"github.com/stellar/go/support/log"
	"github.com/stellar/go/txnbuild"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
	"github.com/marwen-abid/wallet-sdk-go/core/account"
	"github.com/marwen-abid/wallet-sdk-go/errors"
)

// Submitter signs transactions with a walletsdk.Signer and submits them to Horizon.
type Submitter struct {
	horizon           horizonclient.ClientInterface
	accounts          *account.Service
	networkPassphrase string
	attempts          uint
	delay             time.Duration
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithSubmitAttempts sets how many times a submission is tried when Horizon
// times out or is unreachable (default: 3).
func WithSubmitAttempts(n uint) SubmitterOption {
	return func(s *Submitter) {
		s.attempts = n
	}
}

// WithSubmitDelay sets the initial backoff between submission attempts (default: 1s).
func WithSubmitDelay(d time.Duration) SubmitterOption {
	return func(s *Submitter) {
		s.delay = d
	}
}

// NewSubmitter creates a Submitter for the network identified by networkPassphrase.
func NewSubmitter(client horizonclient.ClientInterface, networkPassphrase string, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		horizon:           client,
		accounts:          account.NewService(client),
		networkPassphrase: networkPassphrase,
		attempts:          3,
		delay:             time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.attempts == 0 {
		s.attempts = 1
	}
	return s
}

// Transaction starts a TransactionBuilder for sourceAccount at its current
// sequence number.
func (s *Submitter) Transaction(ctx context.Context, sourceAccount string) (*TransactionBuilder, error) {
	info, err := s.accounts.Account(ctx, sourceAccount)
	if err != nil {
		return nil, err
	}
	return NewTransactionBuilder(info.ID, info.Sequence), nil
}

// Submit signs tx with signer and submits it. It returns the transaction hash.
func (s *Submitter) Submit(ctx context.Context, tx *txnbuild.Transaction, signer walletsdk.Signer) (string, error) {
	envelope, err := tx.Base64()
	if err != nil {
		return "", errors.NewClientError(errors.TX_BUILD_FAILED, "failed to encode transaction", err)
	}

	signed, err := signer.SignTransaction(ctx, envelope, s.networkPassphrase)
	if err != nil {
		return "", errors.NewClientError(errors.SIGNER_ERROR, "failed to sign transaction", err)
	}

	return s.SubmitXDR(ctx, signed)
}

// SubmitXDR submits an already signed envelope. Horizon timeouts and
// transport errors are retried; rejected transactions are not.
func (s *Submitter) SubmitXDR(ctx context.Context, signedXDR string) (string, error) {
	resp, err := retry.DoWithData(
		func() (hProtocol.Transaction, error) {
			resp, err := s.horizon.SubmitTransactionXDR(signedXDR)
			if err != nil && !retryableSubmitError(err) {
				return resp, retry.Unrecoverable(err)
			}
			return resp, err
		},
		retry.Context(ctx),
		retry.Attempts(s.attempts),
		retry.Delay(s.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Ctx(ctx).Warnf("submitting transaction failed (attempt %d/%d): %v", n+1, s.attempts, err)
		}),
	)
	if err != nil {
		return "", submitError(err)
	}

	log.Ctx(ctx).Debugf("submitted transaction %s in ledger %d", resp.Hash, resp.Ledger)
	return resp.Hash, nil
}

// retryableSubmitError reports whether Horizon may still accept the same envelope.
func retryableSubmitError(err error) bool {
	var hErr *horizonclient.Error
	if !stderrors.As(err, &hErr) {
		return true
	}
	status := hErr.Problem.Status
	return status == http.StatusGatewayTimeout || status == http.StatusServiceUnavailable || status == http.StatusTooManyRequests
}

func submitError(err error) error {
	werr := errors.NewClientError(errors.TX_SUBMIT_FAILED, "transaction submission failed", err)

	var hErr *horizonclient.Error
	if stderrors.As(err, &hErr) {
		werr = werr.WithContext("status", hErr.Problem.Status)
		if codes, cerr := hErr.ResultCodes(); cerr == nil && codes != nil {
			werr = werr.WithContext("transaction_code", codes.TransactionCode)
			if len(codes.OperationCodes) > 0 {
				werr = werr.WithContext("operation_codes", strings.Join(codes.OperationCodes, ","))
			}
			werr.Message = fmt.Sprintf("transaction submission failed: %s", codes.TransactionCode)
		}
	}
	return werr
}
