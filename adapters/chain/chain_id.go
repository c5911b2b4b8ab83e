// Package chain talks to the configured EVM JSON-RPC endpoint.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/log"
	"github.com/layer-3/nametag/core"
	"github.com/layer-3/nametag/ports"
)

// CachedChainID bounds each chain id query by a timeout and remembers the first
// successful answer, since the network of an endpoint does not change.
type CachedChainID struct {
	reader  ports.ChainIDReader
	timeout time.Duration

	mu      sync.Mutex
	chainID *big.Int
}

// NewCachedChainID wraps reader. A non-positive timeout disables the per-call bound.
func NewCachedChainID(reader ports.ChainIDReader, timeout time.Duration) *CachedChainID {
	return &CachedChainID{reader: reader, timeout: timeout}
}

// Dial connects to rpcURL with go-ethereum's ethclient.
func Dial(ctx context.Context, rpcURL string, timeout time.Duration) (*CachedChainID, *ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to dial rpc endpoint: %w", err)
	}
	return NewCachedChainID(client, timeout), client, nil
}

// ChainID returns the chain id of the endpoint
func (c *CachedChainID) ChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.chainID != nil {
		return new(big.Int).Set(c.chainID), nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	id, err := c.reader.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chain id: %w: %v", core.ErrServiceUnavailable, err)
	}

	log.Debug("Chain id resolved", "chainId", id)
	c.chainID = new(big.Int).Set(id)
	return id, nil
}
