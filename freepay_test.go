package freepay

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freepay/freepay/clients"
	"github.com/freepay/freepay/session"
	"github.com/freepay/freepay/types"
)

const (
	payerAddress     = "0xE4d365a5a8fC0DCEE9E3C5985D7FcBab8B4A0fE1"
	collectorAddress = "0x384Aa214be0B279cbf211e9b2C992d8633F77848"
	usdcBase         = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
)

type stubLedger struct {
	native    *big.Int
	tokens    map[string]*big.Int
	transfers []clients.Transfer
}

func (s *stubLedger) NativeBalance(context.Context, string) (*big.Int, error) {
	if s.native == nil {
		return big.NewInt(0), nil
	}
	return s.native, nil
}

func (s *stubLedger) TokenBalances(context.Context, string, []string) (map[string]*big.Int, error) {
	return s.tokens, nil
}

func (s *stubLedger) CurrentPosition(context.Context) (uint64, error) { return 0, nil }

func (s *stubLedger) TransfersSince(context.Context, uint64, string, string) ([]clients.Transfer, error) {
	return s.transfers, nil
}

func (s *stubLedger) Close() {}

type stubProvider struct{ account types.AccountID }

func (s stubProvider) AccountID() (types.AccountID, error) { return s.account, nil }

type stubLauncher struct{ uris []string }

func (s *stubLauncher) Launch(uri string) error {
	s.uris = append(s.uris, uri)
	return nil
}

func newTestInstance(t *testing.T, ledger clients.Ledger) *FreePay {
	t.Helper()
	f := New(&types.Config{
		DefaultTimeout: time.Second,
		PollInterval:   10 * time.Millisecond,
	})
	err := f.AddLedger(types.NetworkConfig{
		Network: types.NetworkBase,
		RPCUrl:  "http://localhost:8545",
		Tokens:  []types.TokenConfig{{Symbol: "USDC", Contract: usdcBase, Decimals: 6}},
	}, ledger)
	require.NoError(t, err)
	return f
}

func TestPreparePaymentRoutesAndEncodes(t *testing.T) {
	f := newTestInstance(t, &stubLedger{
		tokens: map[string]*big.Int{usdcBase: big.NewInt(50_000_000)},
	})

	account, err := types.ParseAccountID("eip155:8453:" + payerAddress)
	require.NoError(t, err)

	plan, uri, err := f.PreparePayment(context.Background(), account,
		decimal.RequireFromString("10"), collectorAddress)
	require.NoError(t, err)

	assert.Equal(t, types.NetworkBase, plan.Asset.Network)
	assert.Equal(t, "USDC", plan.Asset.Symbol)
	assert.Equal(t, "10000000", plan.MinorUnits.String())
	assert.Equal(t,
		"ethereum:"+usdcBase+"@8453/transfer?address="+collectorAddress+"&uint256=10000000",
		uri)
}

func TestPreparePaymentInsufficientFunds(t *testing.T) {
	f := newTestInstance(t, &stubLedger{
		tokens: map[string]*big.Int{usdcBase: big.NewInt(1_000_000)},
	})

	account, err := types.ParseAccountID("eip155:8453:" + payerAddress)
	require.NoError(t, err)

	_, _, err = f.PreparePayment(context.Background(), account,
		decimal.RequireFromString("10"), collectorAddress)
	require.Error(t, err)
	assert.Equal(t, types.MsgInsufficient, types.UserMessage(err))
}

func TestWatchSettlementConfirms(t *testing.T) {
	ledger := &stubLedger{
		tokens: map[string]*big.Int{usdcBase: big.NewInt(50_000_000)},
		transfers: []clients.Transfer{
			{TxHash: "0xsettled", Amount: big.NewInt(10_000_000), Contract: usdcBase, Position: 1},
		},
	}
	f := newTestInstance(t, ledger)

	account, err := types.ParseAccountID("eip155:8453:" + payerAddress)
	require.NoError(t, err)

	plan, _, err := f.PreparePayment(context.Background(), account,
		decimal.RequireFromString("10"), collectorAddress)
	require.NoError(t, err)

	outcome, err := f.WatchSettlement(context.Background(), plan, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "0xsettled", outcome.TxRef)
}

func TestEndToEndTap(t *testing.T) {
	// Payer side answers the collector's two commands; collector side
	// routes and encodes the payment the payer then relays to its wallet.
	f := newTestInstance(t, &stubLedger{
		tokens: map[string]*big.Int{usdcBase: big.NewInt(50_000_000)},
	})
	defer f.Close()

	payerAccount, err := types.ParseAccountID("eip155:8453:" + payerAddress)
	require.NoError(t, err)

	launcher := &stubLauncher{}
	card := f.NewCardSession(stubProvider{account: payerAccount}, launcher)
	defer f.CloseSession(card.ID())

	// Tap: select, then ask for the address.
	selectCmd := []byte{0x00, 0xA4, 0x04, 0x00, 0x08,
		0xF0, 0x46, 0x52, 0x45, 0x45, 0x50, 0x41, 0x59}
	resp := card.Handle(selectCmd)
	require.Equal(t, []byte{0x90, 0x00}, resp)

	resp = card.Handle(paymentCommand(t, session.AddressRequestURI))
	require.True(t, len(resp) > 2)
	account, err := types.ParseAccountID(string(resp[:len(resp)-2]))
	require.NoError(t, err)

	// Collector routes the amount against the payer's balances.
	plan, uri, err := f.PreparePayment(context.Background(), account,
		decimal.RequireFromString("10"), collectorAddress)
	require.NoError(t, err)
	require.Equal(t, "USDC", plan.Asset.Symbol)

	// Payment URI goes back over the same transport.
	resp = card.Handle(paymentCommand(t, uri))
	require.Equal(t, []byte{0x90, 0x00}, resp)
	assert.Equal(t, session.Completed, card.State())
	assert.Equal(t, []string{uri}, launcher.uris)
}

func paymentCommand(t *testing.T, uri string) []byte {
	t.Helper()
	record := encodeRecord(t, uri)
	cmd := []byte{0x80, 0xCF, 0x00, 0x00, byte(len(record))}
	return append(cmd, record...)
}

func encodeRecord(t *testing.T, uri string) []byte {
	t.Helper()
	require.LessOrEqual(t, len(uri), 254)
	record := []byte{0xD1, 0x01, byte(1 + len(uri)), 0x55, 0x00}
	return append(record, uri...)
}
