package sdk

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	walletsdk "github.com/marwen-abid/wallet-sdk-go"
	"github.com/marwen-abid/wallet-sdk-go/errors"
)

func TestSep6Deposit(t *testing.T) {
	a, anchor := newTestAnchor(t)

	instructions, err := anchor.Deposit(context.Background(), DepositRequest{AssetCode: "USDC", Type: "SEPA"})
	require.NoError(t, err)
	assert.NotEmpty(t, instructions.How)
	require.NotEmpty(t, instructions.ID)
	assert.Contains(t, instructions.Instructions, "organization.bank_number")

	queries := a.Requests("/sep6/deposit")
	require.Len(t, queries, 1)
	assert.Equal(t, anchor.Session().Account, queries[0].Get("account"))
	assert.Equal(t, "SEPA", queries[0].Get("type"))
	assert.False(t, queries[0].Has("claimable_balance_supported"))

	w, err := anchor.Sep6Watcher()
	require.NoError(t, err)
	assert.NotNil(t, w)
}

func TestSep6Withdraw(t *testing.T) {
	a, anchor := newTestAnchor(t)

	instructions, err := anchor.Withdraw(context.Background(), WithdrawRequest{AssetCode: "USDC", Type: "bank_account", Dest: "123"})
	require.NoError(t, err)
	assert.Equal(t, a.SigningKey().Address(), instructions.AccountID)
	assert.Equal(t, "id", instructions.MemoType)

	ts, err := anchor.sep6()
	require.NoError(t, err)
	tx, err := ts.FetchTransaction(context.Background(), anchor.Session().JWT, instructions.ID)
	require.NoError(t, err)
	assert.Equal(t, walletsdk.KindWithdrawal, tx.Kind)
	assert.Equal(t, walletsdk.StatusPendingUserTransferStart, tx.Status)
	assert.Equal(t, instructions.Memo, tx.WithdrawMemo)

	_, err = anchor.Withdraw(context.Background(), WithdrawRequest{AssetCode: "USDC"})
	assert.True(t, errors.HasCode(err, errors.VALIDATION_FAILED))
}

func TestSep6Info(t *testing.T) {
	_, anchor := newTestAnchor(t)

	info, err := anchor.Sep6Info(context.Background())
	require.NoError(t, err)
	require.Contains(t, info.Withdraw, "USDC")
	assert.Contains(t, info.Withdraw["USDC"].Types, "bank_account")
}

func TestCustomer(t *testing.T) {
	a, anchor := newTestAnchor(t)
	ctx := context.Background()

	customer, err := anchor.Customer()
	require.NoError(t, err)

	info, err := customer.Get(ctx, CustomerQuery{})
	require.NoError(t, err)
	assert.Equal(t, "NEEDS_INFO", info.Status)
	assert.Contains(t, info.Fields, "first_name")

	id, err := customer.Put(ctx, map[string]string{
		"first_name":    "Jane",
		"last_name":     "Doe",
		"email_address": "jane@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, anchor.Session().Account, id)

	stored, ok := a.Customer(anchor.Session().Account)
	require.True(t, ok)
	assert.Equal(t, "Jane", stored["first_name"])

	info, err = customer.Get(ctx, CustomerQuery{ID: id})
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", info.Status)
	assert.Contains(t, info.ProvidedFields, "email_address")

	require.NoError(t, customer.Delete(ctx, ""))
	_, ok = a.Customer(anchor.Session().Account)
	assert.False(t, ok)

	err = customer.Delete(ctx, "")
	assert.True(t, errors.HasCode(err, errors.REQUEST_FAILED))
}

func TestQuotes(t *testing.T) {
	_, anchor := newTestAnchor(t)
	ctx := context.Background()

	quotes, err := anchor.Quotes()
	require.NoError(t, err)

	info, err := quotes.Info(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, info.Assets)
	assert.Equal(t, "iso4217:USD", info.Assets[0].Asset)

	prices, err := quotes.Prices(ctx, PricesRequest{SellAsset: "iso4217:USD", SellAmount: "100"})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "1.00", prices[0].Price)

	price, err := quotes.Price(ctx, PriceRequest{
		SellAsset:  "iso4217:USD",
		BuyAsset:   prices[0].Asset,
		SellAmount: "100",
		Context:    "sep24",
	})
	require.NoError(t, err)
	assert.Equal(t, "100", price.BuyAmount)

	quote, err := quotes.Post(ctx, QuoteRequest{
		SellAsset: "iso4217:USD",
		BuyAsset:  prices[0].Asset,
		BuyAmount: "50",
		Context:   "sep6",
	})
	require.NoError(t, err)
	require.NotEmpty(t, quote.ID)
	assert.Equal(t, "50", quote.SellAmount)
	assert.False(t, quote.ExpiresAt.IsZero())

	fetched, err := quotes.Get(ctx, quote.ID)
	require.NoError(t, err)
	assert.Equal(t, quote.ID, fetched.ID)

	_, err = quotes.Get(ctx, "missing")
	assert.True(t, errors.HasCode(err, errors.REQUEST_FAILED))
}

func TestQuotesValidation(t *testing.T) {
	_, anchor := newTestAnchor(t)
	quotes, err := anchor.Quotes()
	require.NoError(t, err)
	ctx := context.Background()

	_, err = quotes.Price(ctx, PriceRequest{SellAsset: "a", BuyAsset: "b", Context: "sep24"})
	assert.True(t, errors.HasCode(err, errors.VALIDATION_FAILED))

	_, err = quotes.Price(ctx, PriceRequest{SellAsset: "a", BuyAsset: "b", SellAmount: "1", BuyAmount: "1", Context: "sep24"})
	assert.True(t, errors.HasCode(err, errors.VALIDATION_FAILED))

	_, err = quotes.Post(ctx, QuoteRequest{SellAsset: "a", BuyAsset: "b", SellAmount: "1", Context: "sep99"})
	assert.True(t, errors.HasCode(err, errors.VALIDATION_FAILED))

	_, err = quotes.Prices(ctx, PricesRequest{SellAsset: "a"})
	assert.True(t, errors.HasCode(err, errors.VALIDATION_FAILED))
}

func TestUnsupportedServers(t *testing.T) {
	a, anchor := newTestAnchor(t)

	anchor.info.AnchorQuoteServer = ""
	anchor.info.KYCServer = ""
	anchor.info.TransferServerSep6 = ""
	anchor.info.TransferServerSep24 = ""

	_, err := anchor.Quotes()
	assert.True(t, errors.HasCode(err, errors.SERVER_UNSUPPORTED))
	_, err = anchor.Customer()
	assert.True(t, errors.HasCode(err, errors.SERVER_UNSUPPORTED))
	_, err = anchor.Watcher()
	assert.True(t, errors.HasCode(err, errors.SERVER_UNSUPPORTED))
	_, err = anchor.Deposit(context.Background(), DepositRequest{AssetCode: "USDC"})
	assert.True(t, errors.HasCode(err, errors.SERVER_UNSUPPORTED))

	assert.Empty(t, a.Requests("/sep6/deposit"))
}
