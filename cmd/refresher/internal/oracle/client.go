// Package oracle reads prices from the on-chain oracle contract.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

const oracleABI = `[
	{"name":"getLatestPrice","type":"function","stateMutability":"view","inputs":[{"name":"symbol","type":"string"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"getLatestPrices","type":"function","stateMutability":"view","inputs":[{"name":"symbols","type":"string[]"}],"outputs":[{"name":"","type":"uint256[]"}]}
]`

// Compile-time check to ensure ContractReader implements Reader
var _ Reader = (*ContractReader)(nil)

// ContractReader performs eth_call reads against the price oracle
// aggregator. Every call is bounded by its own timeout so one slow RPC
// round trip cannot stall a whole refresh cycle; the circuit breaker only
// reacts to repeated failures.
type ContractReader struct {
	client   *ethclient.Client
	contract common.Address
	abi      abi.ABI
	timeout  time.Duration
}

func NewContractReader(rpcURL, contract string, timeout time.Duration) (*ContractReader, error) {
	if !common.IsHexAddress(contract) {
		return nil, fmt.Errorf("oracle: malformed contract address %q", contract)
	}

	parsed, err := abi.JSON(strings.NewReader(oracleABI))
	if err != nil {
		return nil, fmt.Errorf("oracle: parse ABI: %w", err)
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("oracle: dial %s: %w", rpcURL, err)
	}

	return &ContractReader{
		client:   client,
		contract: common.HexToAddress(contract),
		abi:      parsed,
		timeout:  timeout,
	}, nil
}

func (r *ContractReader) LatestPrice(ctx context.Context, symbol string) (*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.abi.Pack("getLatestPrice", symbol)
	if err != nil {
		return nil, fmt.Errorf("oracle: pack getLatestPrice(%s): %w", symbol, err)
	}

	res, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("oracle: getLatestPrice(%s): %w", symbol, err)
	}

	out, err := r.abi.Unpack("getLatestPrice", res)
	if err != nil {
		return nil, fmt.Errorf("oracle: unpack getLatestPrice(%s): %w", symbol, err)
	}
	price, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("oracle: unexpected return type for %s", symbol)
	}
	return price, nil
}

func (r *ContractReader) LatestPrices(ctx context.Context, symbols []string) ([]*big.Int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := r.abi.Pack("getLatestPrices", symbols)
	if err != nil {
		return nil, fmt.Errorf("oracle: pack getLatestPrices: %w", err)
	}

	res, err := r.client.CallContract(ctx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("oracle: getLatestPrices: %w", err)
	}

	out, err := r.abi.Unpack("getLatestPrices", res)
	if err != nil {
		return nil, fmt.Errorf("oracle: unpack getLatestPrices: %w", err)
	}
	prices, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("oracle: unexpected return type from getLatestPrices")
	}
	if len(prices) != len(symbols) {
		return nil, fmt.Errorf("oracle: got %d prices for %d symbols", len(prices), len(symbols))
	}
	return prices, nil
}

func (r *ContractReader) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.client.BlockNumber(ctx); err != nil {
		return fmt.Errorf("oracle: rpc unreachable: %w", err)
	}
	return nil
}

func (r *ContractReader) Close() {
	r.client.Close()
}
