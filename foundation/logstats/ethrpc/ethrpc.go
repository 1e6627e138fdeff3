// Package ethrpc provides the sampler access to an Ethereum node over
// JSON-RPC.
package ethrpc

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client reads block heights and logs from a node.
type Client struct {
	eth *ethclient.Client
}

// Dial connects to the node at the specified url. Both http(s) and ws(s)
// endpoints are supported.
func Dial(ctx context.Context, url string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dialing node: %w", err)
	}

	return &Client{eth: eth}, nil
}

// Close releases the connection to the node.
func (c *Client) Close() {
	c.eth.Close()
}

// CurrentBlock returns the number of the most recent block.
func (c *Client) CurrentBlock(ctx context.Context) (uint64, error) {
	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber: %w", err)
	}

	return n, nil
}

// LogsForBlock returns every log emitted in the specified block.
func (c *Client) LogsForBlock(ctx context.Context, block uint64) ([]types.Log, error) {
	num := new(big.Int).SetUint64(block)

	query := ethereum.FilterQuery{
		FromBlock: num,
		ToBlock:   num,
	}

	logs, err := c.eth.FilterLogs(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs: %w", err)
	}

	return logs, nil
}
