package sdk

import (
	"context"
	"fmt"
	"strings"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
	"github.com/marwen-abid/wallet-sdk-go/core/toml"
	"github.com/marwen-abid/wallet-sdk-go/errors"
	"github.com/marwen-abid/wallet-sdk-go/watcher"
)

// Anchor binds an authenticated session to the services published in the
// anchor's stellar.toml.
type Anchor struct {
	client  *Client
	session *Session
	info    *toml.AnchorInfo
}

// Anchor resolves the session's home domain and returns its services.
func (s *Session) Anchor(ctx context.Context) (*Anchor, error) {
	info, err := s.client.tomlResolver.Resolve(ctx, s.HomeDomain)
	if err != nil {
		return nil, err
	}
	return &Anchor{client: s.client, session: s, info: info}, nil
}

// Info returns the anchor's stellar.toml.
func (a *Anchor) Info() *toml.AnchorInfo {
	return a.info
}

// Session returns the session the anchor is bound to.
func (a *Anchor) Session() *Session {
	return a.session
}

func (a *Anchor) sep24() (*TransferServer, error) {
	return a.server("TRANSFER_SERVER_SEP0024", a.info.TransferServerSep24)
}

func (a *Anchor) sep6() (*TransferServer, error) {
	return a.server("TRANSFER_SERVER", a.info.TransferServerSep6)
}

func (a *Anchor) server(field, endpoint string) (*TransferServer, error) {
	if endpoint == "" {
		return nil, errors.NewClientError(
			errors.SERVER_UNSUPPORTED,
			fmt.Sprintf("anchor %s does not provide %s in stellar.toml", a.session.HomeDomain, field),
			nil,
		)
	}
	return NewTransferServer(endpoint, a.client.httpClient), nil
}

// Sep24Info fetches the SEP-24 transfer server's supported assets.
func (a *Anchor) Sep24Info(ctx context.Context) (*Info, error) {
	ts, err := a.sep24()
	if err != nil {
		return nil, err
	}
	return ts.Info(ctx, "")
}

// DepositInteractive starts a SEP-24 interactive deposit. The returned URL
// should be shown to the user in a browser or webview.
func (a *Anchor) DepositInteractive(ctx context.Context, req InteractiveRequest) (*InteractiveResponse, error) {
	return a.interactive(ctx, "deposit", req)
}

// WithdrawInteractive starts a SEP-24 interactive withdrawal.
func (a *Anchor) WithdrawInteractive(ctx context.Context, req InteractiveRequest) (*InteractiveResponse, error) {
	return a.interactive(ctx, "withdraw", req)
}

// Transaction fetches a single SEP-24 transaction by id.
func (a *Anchor) Transaction(ctx context.Context, id string) (*walletsdk.Transaction, error) {
	ts, err := a.sep24()
	if err != nil {
		return nil, err
	}
	return ts.FetchTransaction(ctx, a.session.JWT, id)
}

// Transactions fetches the SEP-24 transaction history for an asset.
func (a *Anchor) Transactions(ctx context.Context, query walletsdk.TransactionsQuery) ([]walletsdk.Transaction, error) {
	if strings.TrimSpace(query.AssetCode) == "" {
		return nil, errors.NewClientError(errors.VALIDATION_FAILED, "asset code is required", nil)
	}
	ts, err := a.sep24()
	if err != nil {
		return nil, err
	}
	return ts.FetchTransactions(ctx, a.session.JWT, query)
}

// Watcher returns a transaction watcher polling the SEP-24 transfer server.
// Pass the session's JWT to its Watch methods.
func (a *Anchor) Watcher(opts ...watcher.Option) (*watcher.Watcher, error) {
	ts, err := a.sep24()
	if err != nil {
		return nil, err
	}
	return watcher.New(ts, opts...), nil
}

// Sep6Watcher returns a transaction watcher polling the SEP-6 transfer server.
func (a *Anchor) Sep6Watcher(opts ...watcher.Option) (*watcher.Watcher, error) {
	ts, err := a.sep6()
	if err != nil {
		return nil, err
	}
	return watcher.New(ts, opts...), nil
}
