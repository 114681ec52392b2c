package settlement

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freepay/freepay/clients"
	"github.com/freepay/freepay/types"
)

type scriptedLedger struct {
	mu        sync.Mutex
	position  uint64
	batches   [][]clients.Transfer // one batch per poll cycle
	errs      []error              // per-cycle errors, nil entry = success
	cycle     int
	positions []uint64 // positions passed to TransfersSince
}

func (s *scriptedLedger) NativeBalance(context.Context, string) (*big.Int, error) {
	return nil, errors.New("not used")
}

func (s *scriptedLedger) TokenBalances(context.Context, string, []string) (map[string]*big.Int, error) {
	return nil, errors.New("not used")
}

func (s *scriptedLedger) CurrentPosition(context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, nil
}

func (s *scriptedLedger) TransfersSince(_ context.Context, position uint64, _, _ string) ([]clients.Transfer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = append(s.positions, position)
	i := s.cycle
	s.cycle++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.batches) {
		return s.batches[i], nil
	}
	return nil, nil
}

func (s *scriptedLedger) Close() {}

func nativePlan(minor int64) types.PaymentPlan {
	return types.PaymentPlan{
		Asset: types.AssetBalance{
			Network:  types.NetworkBase,
			ChainID:  8453,
			Symbol:   "ETH",
			Decimals: 18,
		},
		Amount:      decimal.NewFromBigInt(big.NewInt(minor), -18),
		Destination: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		MinorUnits:  big.NewInt(minor),
	}
}

func newTestWatcher(ledger clients.Ledger) *Watcher {
	return NewWatcher(ledger, types.NetworkBase, 10*time.Millisecond, nil, nil)
}

func TestWatchConfirmsExactNativeTransfer(t *testing.T) {
	ledger := &scriptedLedger{
		position: 100,
		batches: [][]clients.Transfer{
			{{TxHash: "0xaaa", Amount: big.NewInt(999999), Position: 101}},
			{{TxHash: "0xbbb", Amount: big.NewInt(1000000), Position: 102}},
		},
	}

	outcome := newTestWatcher(ledger).Watch(context.Background(), nativePlan(1000000),
		time.Now().Add(time.Second))

	assert.Equal(t, StatusConfirmed, outcome.Status)
	assert.Equal(t, "0xbbb", outcome.TxRef)
}

func TestWatchIgnoresAmountMismatch(t *testing.T) {
	ledger := &scriptedLedger{
		batches: [][]clients.Transfer{
			{{TxHash: "0xunder", Amount: big.NewInt(999999), Position: 1}},
			{{TxHash: "0xover", Amount: big.NewInt(1000001), Position: 2}},
		},
	}

	outcome := newTestWatcher(ledger).Watch(context.Background(), nativePlan(1000000),
		time.Now().Add(100*time.Millisecond))

	assert.Equal(t, StatusTimedOut, outcome.Status)
	assert.Empty(t, outcome.TxRef)
}

func TestWatchIgnoresWrongAssetIdentity(t *testing.T) {
	// Token transfer must not confirm a native plan even with the right amount.
	ledger := &scriptedLedger{
		batches: [][]clients.Transfer{
			{{TxHash: "0xtok", Amount: big.NewInt(1000000), Contract: "0x01", Position: 1}},
		},
	}

	outcome := newTestWatcher(ledger).Watch(context.Background(), nativePlan(1000000),
		time.Now().Add(80*time.Millisecond))

	assert.Equal(t, StatusTimedOut, outcome.Status)
}

func TestWatchMatchesContractCaseInsensitive(t *testing.T) {
	contract := "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	plan := types.PaymentPlan{
		Asset: types.AssetBalance{
			Network:         types.NetworkBase,
			ChainID:         8453,
			Symbol:          "USDC",
			ContractAddress: contract,
			Decimals:        6,
		},
		Destination: "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		MinorUnits:  big.NewInt(1000000),
	}
	ledger := &scriptedLedger{
		batches: [][]clients.Transfer{
			{{TxHash: "0xusdc", Amount: big.NewInt(1000000),
				Contract: "0x833589FCD6EDB6E08F4C7C32D4F71B54BDA02913", Position: 1}},
		},
	}

	outcome := newTestWatcher(ledger).Watch(context.Background(), plan,
		time.Now().Add(time.Second))

	assert.Equal(t, StatusConfirmed, outcome.Status)
	assert.Equal(t, "0xusdc", outcome.TxRef)
}

func TestWatchRetriesAfterPollError(t *testing.T) {
	ledger := &scriptedLedger{
		errs: []error{errors.New("rpc hiccup"), nil},
		batches: [][]clients.Transfer{
			nil,
			{{TxHash: "0xok", Amount: big.NewInt(1000000), Position: 1}},
		},
	}

	outcome := newTestWatcher(ledger).Watch(context.Background(), nativePlan(1000000),
		time.Now().Add(time.Second))

	assert.Equal(t, StatusConfirmed, outcome.Status)
	assert.Equal(t, "0xok", outcome.TxRef)
}

func TestWatchAdvancesPositionAcrossCycles(t *testing.T) {
	ledger := &scriptedLedger{
		position: 10,
		batches: [][]clients.Transfer{
			{{TxHash: "0x1", Amount: big.NewInt(5), Position: 12}},
			{{TxHash: "0x2", Amount: big.NewInt(1000000), Position: 14}},
		},
	}

	outcome := newTestWatcher(ledger).Watch(context.Background(), nativePlan(1000000),
		time.Now().Add(time.Second))

	require.Equal(t, StatusConfirmed, outcome.Status)
	ledger.mu.Lock()
	defer ledger.mu.Unlock()
	require.GreaterOrEqual(t, len(ledger.positions), 2)
	assert.Equal(t, uint64(10), ledger.positions[0])
	assert.Equal(t, uint64(12), ledger.positions[1])
}

func TestWatchCancellation(t *testing.T) {
	ledger := &scriptedLedger{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan Outcome, 1)
	go func() {
		done <- newTestWatcher(ledger).Watch(ctx, nativePlan(1000000), time.Now().Add(time.Hour))
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case outcome := <-done:
		assert.Equal(t, StatusTimedOut, outcome.Status)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop within one interval of cancellation")
	}
}
