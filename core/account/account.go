// Package account reads Stellar account state from Horizon.
package account

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	"github.com/stellar/go-stellar-sdk/protocols/horizon"

	"github.com/marwen-abid/wallet-sdk-go/errors"
)

// Balance is one trustline (or the native balance) of an account.
type Balance struct {
	AssetType   string
	AssetCode   string
	AssetIssuer string
	Balance     string
	Limit       string
}

// Signer is a key allowed to sign for an account.
type Signer struct {
	Key    string
	Weight int32
	Type   string
}

// Thresholds are the operation thresholds of an account.
type Thresholds struct {
	Low    uint8
	Medium uint8
	High   uint8
}

// Info is the subset of account state a wallet needs.
type Info struct {
	ID         string
	Sequence   int64
	Balances   []Balance
	Signers    []Signer
	Thresholds Thresholds
}

// Service fetches account state from a Horizon server.
type Service struct {
	client horizonclient.ClientInterface
}

// NewService creates a Service backed by the given Horizon client.
func NewService(client horizonclient.ClientInterface) *Service {
	return &Service{client: client}
}

// NewHorizonService creates a Service for the Horizon server at horizonURL.
func NewHorizonService(horizonURL string) *Service {
	return NewService(&horizonclient.Client{HorizonURL: horizonURL})
}

// Account returns the current state of accountID.
// An unfunded account yields ACCOUNT_NOT_FOUND.
func (s *Service) Account(_ context.Context, accountID string) (*Info, error) {
	account, err := s.client.AccountDetail(horizonclient.AccountRequest{AccountID: accountID})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NewCoreError(errors.ACCOUNT_NOT_FOUND, fmt.Sprintf("account %s does not exist", accountID), err).
				WithContext("account", accountID)
		}
		return nil, errors.NewCoreError(errors.NETWORK_ERROR, fmt.Sprintf("failed to fetch account %s", accountID), err)
	}

	return toInfo(account)
}

// Exists reports whether accountID has been funded.
func (s *Service) Exists(ctx context.Context, accountID string) (bool, error) {
	_, err := s.Account(ctx, accountID)
	if err == nil {
		return true, nil
	}
	if errors.HasCode(err, errors.ACCOUNT_NOT_FOUND) {
		return false, nil
	}
	return false, err
}

func toInfo(account horizon.Account) (*Info, error) {
	sequence, err := account.GetSequenceNumber()
	if err != nil {
		return nil, errors.NewCoreError(errors.INVALID_RESPONSE, "invalid account sequence", err)
	}

	info := &Info{
		ID:       account.AccountID,
		Sequence: sequence,
		Balances: make([]Balance, 0, len(account.Balances)),
		Signers:  make([]Signer, 0, len(account.Signers)),
		Thresholds: Thresholds{
			Low:    account.Thresholds.LowThreshold,
			Medium: account.Thresholds.MedThreshold,
			High:   account.Thresholds.HighThreshold,
		},
	}

	for _, b := range account.Balances {
		info.Balances = append(info.Balances, Balance{
			AssetType:   b.Asset.Type,
			AssetCode:   b.Asset.Code,
			AssetIssuer: b.Asset.Issuer,
			Balance:     b.Balance,
			Limit:       b.Limit,
		})
	}

	for _, s := range account.Signers {
		info.Signers = append(info.Signers, Signer{Key: s.Key, Weight: s.Weight, Type: s.Type})
	}

	return info, nil
}

func isNotFound(err error) bool {
	var hErr *horizonclient.Error
	if stderrors.As(err, &hErr) {
		return hErr.Problem.Status == http.StatusNotFound
	}
	return false
}
