package sdk

import (
	"context"
	"fmt"

	"github.com/stellar/go/support/log"

	"github.com/marwen-abid/wallet-sdk-go/core/net"
	"github.com/marwen-abid/wallet-sdk-go/errors"
)

// DepositRequest is a SEP-6 programmatic deposit.
type DepositRequest struct {
	AssetCode                 string `structs:"asset_code" validate:"required"`
	Account                   string `structs:"account,omitempty"`
	Memo                      string `structs:"memo,omitempty"`
	MemoType                  string `structs:"memo_type,omitempty" validate:"omitempty,oneof=text id hash"`
	EmailAddress              string `structs:"email_address,omitempty" validate:"omitempty,email"`
	Type                      string `structs:"type,omitempty"`
	Amount                    string `structs:"amount,omitempty" validate:"omitempty,numeric"`
	CountryCode               string `structs:"country_code,omitempty" validate:"omitempty,iso3166_1_alpha3"`
	ClaimableBalanceSupported bool   `structs:"claimable_balance_supported,omitempty"`
	Lang                      string `structs:"lang,omitempty"`

	Extra map[string]string `structs:"-"`
}

// WithdrawRequest is a SEP-6 programmatic withdrawal.
type WithdrawRequest struct {
	AssetCode   string `structs:"asset_code" validate:"required"`
	Type        string `structs:"type" validate:"required"`
	Dest        string `structs:"dest,omitempty"`
	DestExtra   string `structs:"dest_extra,omitempty"`
	Account     string `structs:"account,omitempty"`
	Memo        string `structs:"memo,omitempty"`
	Amount      string `structs:"amount,omitempty" validate:"omitempty,numeric"`
	CountryCode string `structs:"country_code,omitempty" validate:"omitempty,iso3166_1_alpha3"`
	RefundMemo  string `structs:"refund_memo,omitempty"`
	Lang        string `structs:"lang,omitempty"`

	Extra map[string]string `structs:"-"`
}

// DepositInstructions is the anchor's answer to a SEP-6 deposit.
type DepositInstructions struct {
	How          string         `json:"how"`
	ID           string         `json:"id"`
	ETA          int64          `json:"eta"`
	MinAmount    float64        `json:"min_amount"`
	MaxAmount    float64        `json:"max_amount"`
	FeeFixed     float64        `json:"fee_fixed"`
	FeePercent   float64        `json:"fee_percent"`
	ExtraInfo    map[string]any `json:"extra_info"`
	Instructions map[string]struct {
		Value       string `json:"value"`
		Description string `json:"description"`
	} `json:"instructions"`
}

// WithdrawInstructions is the anchor's answer to a SEP-6 withdrawal.
type WithdrawInstructions struct {
	AccountID  string         `json:"account_id"`
	MemoType   string         `json:"memo_type"`
	Memo       string         `json:"memo"`
	ID         string         `json:"id"`
	ETA        int64          `json:"eta"`
	MinAmount  float64        `json:"min_amount"`
	MaxAmount  float64        `json:"max_amount"`
	FeeFixed   float64        `json:"fee_fixed"`
	FeePercent float64        `json:"fee_percent"`
	ExtraInfo  map[string]any `json:"extra_info"`
}

// Sep6Info fetches the SEP-6 transfer server's supported assets.
func (a *Anchor) Sep6Info(ctx context.Context) (*Info, error) {
	ts, err := a.sep6()
	if err != nil {
		return nil, err
	}
	return ts.Info(ctx, "")
}

// Deposit requests SEP-6 deposit instructions.
func (a *Anchor) Deposit(ctx context.Context, req DepositRequest) (*DepositInstructions, error) {
	if req.Account == "" {
		req.Account = a.session.Account
	}
	return sep6Get[DepositInstructions](ctx, a, "deposit", req, req.Extra)
}

// Withdraw requests SEP-6 withdrawal instructions.
func (a *Anchor) Withdraw(ctx context.Context, req WithdrawRequest) (*WithdrawInstructions, error) {
	if req.Account == "" {
		req.Account = a.session.Account
	}
	return sep6Get[WithdrawInstructions](ctx, a, "withdraw", req, req.Extra)
}

func sep6Get[T any](ctx context.Context, a *Anchor, path string, req any, extra map[string]string) (*T, error) {
	if err := a.client.validate.Struct(req); err != nil {
		return nil, errors.NewClientError(errors.VALIDATION_FAILED, fmt.Sprintf("invalid %s request", path), err)
	}

	ts, err := a.sep6()
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s?%s", ts.URL(), path, toValues(req, extra).Encode())
	resp, err := a.client.httpClient.Get(ctx, endpoint, net.WithBearer(a.session.JWT))
	if err != nil {
		return nil, errors.NewClientError(errors.TRANSFER_INIT_FAILED, fmt.Sprintf("failed to request %s", path), err)
	}

	out, err := net.DecodeJSON[T](resp)
	if err != nil {
		return nil, errors.NewClientError(errors.TRANSFER_INIT_FAILED, fmt.Sprintf("anchor rejected %s", path), err)
	}

	log.Ctx(ctx).Debugf("received SEP-6 %s instructions from %s", path, a.session.HomeDomain)
	return out, nil
}
