package clients

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/freepay/freepay/types"
)

var _ Ledger = (*EVMClient)(nil)

const erc20ABIJSON = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],
	 "name":"balanceOf","outputs":[{"name":"","type":"uint256"}],
	 "stateMutability":"view","type":"function"}
]`

// transferTopic is keccak256("Transfer(address,address,uint256)").
var transferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// EVMClient implements Ledger over a JSON-RPC endpoint.
type EVMClient struct {
	network  types.Network
	rpcURL   string
	client   *ethclient.Client
	tokenABI abi.ABI
}

// NewEVMClient dials an EVM RPC endpoint.
func NewEVMClient(network types.Network, rpcURL string) (*EVMClient, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s RPC: %w", network, err)
	}

	tokenABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("erc20 abi: %w", err)
	}

	return &EVMClient{
		network:  network,
		rpcURL:   rpcURL,
		client:   client,
		tokenABI: tokenABI,
	}, nil
}

// Network returns the network this client serves.
func (e *EVMClient) Network() types.Network {
	return e.network
}

// NativeBalance implements Ledger.
func (e *EVMClient) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	return e.client.BalanceAt(ctx, common.HexToAddress(address), nil)
}

// TokenBalances implements Ledger. Contracts are queried one call each; a
// failing contract fails the whole batch so the aggregator can decide what
// to do with the network.
func (e *EVMClient) TokenBalances(
	ctx context.Context, address string, contracts []string,
) (map[string]*big.Int, error) {
	owner := common.HexToAddress(address)
	out := make(map[string]*big.Int, len(contracts))

	for _, contract := range contracts {
		bal, err := e.balanceOf(ctx, common.HexToAddress(contract), owner)
		if err != nil {
			return nil, fmt.Errorf("balanceOf %s on %s: %w", contract, e.network, err)
		}
		out[contract] = bal
	}
	return out, nil
}

func (e *EVMClient) balanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	input, err := e.tokenABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, err
	}

	raw, err := e.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: input}, nil)
	if err != nil {
		return nil, err
	}

	results, err := e.tokenABI.Unpack("balanceOf", raw)
	if err != nil {
		return nil, err
	}
	bal, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", results[0])
	}
	return bal, nil
}

// CurrentPosition implements Ledger using the head block number.
func (e *EVMClient) CurrentPosition(ctx context.Context) (uint64, error) {
	return e.client.BlockNumber(ctx)
}

// TransfersSince implements Ledger. Token transfers come from Transfer
// event logs; native transfers require scanning block bodies since there is
// no log trail for plain value sends.
func (e *EVMClient) TransfersSince(
	ctx context.Context, position uint64, toAddress, contract string,
) ([]Transfer, error) {
	if contract != "" {
		return e.tokenTransfersSince(ctx, position, toAddress, contract)
	}
	return e.nativeTransfersSince(ctx, position, toAddress)
}

func (e *EVMClient) tokenTransfersSince(
	ctx context.Context, position uint64, toAddress, contract string,
) ([]Transfer, error) {
	to := common.HexToAddress(toAddress)

	logs, err := e.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(position + 1),
		Addresses: []common.Address{common.HexToAddress(contract)},
		Topics: [][]common.Hash{
			{transferTopic},
			nil, // any sender
			{common.BytesToHash(to.Bytes())},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("filter transfer logs on %s: %w", e.network, err)
	}

	transfers := make([]Transfer, 0, len(logs))
	for _, lg := range logs {
		if len(lg.Topics) < 3 || len(lg.Data) == 0 {
			continue
		}
		transfers = append(transfers, Transfer{
			TxHash:   lg.TxHash.Hex(),
			From:     common.BytesToAddress(lg.Topics[1].Bytes()).Hex(),
			To:       to.Hex(),
			Amount:   new(big.Int).SetBytes(lg.Data),
			Contract: contract,
			Position: lg.BlockNumber,
		})
	}
	return transfers, nil
}

func (e *EVMClient) nativeTransfersSince(
	ctx context.Context, position uint64, toAddress string,
) ([]Transfer, error) {
	head, err := e.client.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}

	to := common.HexToAddress(toAddress)
	var transfers []Transfer

	for n := position + 1; n <= head; n++ {
		block, err := e.client.BlockByNumber(ctx, new(big.Int).SetUint64(n))
		if err != nil {
			return nil, fmt.Errorf("block %d on %s: %w", n, e.network, err)
		}
		for _, tx := range block.Transactions() {
			if tx.To() == nil || *tx.To() != to || tx.Value().Sign() == 0 {
				continue
			}
			from := senderOf(tx)
			transfers = append(transfers, Transfer{
				TxHash:   tx.Hash().Hex(),
				From:     from,
				To:       to.Hex(),
				Amount:   new(big.Int).Set(tx.Value()),
				Position: n,
			})
		}
	}
	return transfers, nil
}

func senderOf(tx *ethtypes.Transaction) string {
	signer := ethtypes.LatestSignerForChainID(tx.ChainId())
	from, err := ethtypes.Sender(signer, tx)
	if err != nil {
		return ""
	}
	return from.Hex()
}

// Close implements Ledger.
func (e *EVMClient) Close() {
	e.client.Close()
}
