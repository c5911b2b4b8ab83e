package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/layer-3/nametag/core"
	"github.com/layer-3/nametag/ports"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	etherDecimals        = 18
	metadataFetchWorkers = 8
)

// PortfolioService reports wallet balances through an indexer.
type PortfolioService struct {
	indexer ports.Indexer
}

func NewPortfolioService(indexer ports.Indexer) *PortfolioService {
	return &PortfolioService{indexer: indexer}
}

// NativeBalance returns the native coin balance of address in ether units.
func (s *PortfolioService) NativeBalance(ctx context.Context, address string) (*core.NativeBalance, error) {
	address, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	wei, err := s.indexer.NativeBalance(ctx, address)
	if err != nil {
		return nil, err
	}
	return &core.NativeBalance{
		Address: address,
		Wei:     wei.String(),
		Balance: FormatUnits(wei, etherDecimals),
	}, nil
}

// TokenBalances returns the ERC-20 balances of address. Tokens without
// metadata are left out.
func (s *PortfolioService) TokenBalances(ctx context.Context, address string) ([]core.TokenBalance, error) {
	address, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	raw, err := s.indexer.TokenBalances(ctx, address)
	if err != nil {
		return nil, err
	}

	enriched := make([]*core.TokenBalance, len(raw))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(metadataFetchWorkers)
	for i, token := range raw {
		g.Go(func() error {
			meta, err := s.indexer.TokenMetadata(gctx, token.ContractAddress)
			if err != nil {
				if !errors.Is(err, core.ErrNotFound) {
					log.Debug("Skipping token without metadata", "contract", token.ContractAddress, "err", err)
				}
				return nil
			}
			enriched[i] = &core.TokenBalance{
				ContractAddress: token.ContractAddress,
				Balance:         FormatUnits(token.Balance, meta.Decimals),
				Name:            meta.Name,
				Symbol:          meta.Symbol,
				Logo:            meta.Logo,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("token metadata: %w: %v", core.ErrServiceUnavailable, err)
	}

	balances := make([]core.TokenBalance, 0, len(enriched))
	for _, b := range enriched {
		if b != nil {
			balances = append(balances, *b)
		}
	}
	return balances, nil
}

// NFTs lists the NFTs held by address, each tagged with a fresh unique id.
func (s *PortfolioService) NFTs(ctx context.Context, address string) ([]core.OwnedNFT, error) {
	address, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	nfts, err := s.indexer.NFTsForOwner(ctx, address)
	if err != nil {
		return nil, err
	}
	for i := range nfts {
		nfts[i].UniqueID = uuid.NewString()
	}
	if nfts == nil {
		nfts = []core.OwnedNFT{}
	}
	return nfts, nil
}

// FormatUnits renders amount scaled down by 10^decimals.
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}
