package ports

import (
	"context"
	"math/big"

	"github.com/layer-3/nametag/core"
)

// ChainIDReader reports the network identifier of the configured chain.
// *ethclient.Client satisfies it.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Indexer answers balance queries for a wallet address.
type Indexer interface {
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	TokenBalances(ctx context.Context, address string) ([]RawTokenBalance, error)
	TokenMetadata(ctx context.Context, contract string) (*TokenMetadata, error)
	NFTsForOwner(ctx context.Context, address string) ([]core.OwnedNFT, error)
}

// RawTokenBalance is an ERC-20 balance in the token's smallest unit.
type RawTokenBalance struct {
	ContractAddress string
	Balance         *big.Int
}

// TokenMetadata describes an ERC-20 contract.
type TokenMetadata struct {
	Name     string
	Symbol   string
	Decimals int32
	Logo     string
}
