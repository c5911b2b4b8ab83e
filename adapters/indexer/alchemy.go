// Package indexer queries wallet balances from the Alchemy API.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/layer-3/nametag/core"
	"github.com/layer-3/nametag/ports"
)

// maxNFTPages caps how many getNFTsForOwner pages a single query follows.
const maxNFTPages = 5

// Config locates the Alchemy endpoints for one network
type Config struct {
	APIKey  string
	Network string // e.g. "polygon-mainnet"
	BaseURL string // overrides https://{Network}.g.alchemy.com
	Timeout time.Duration
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.g.alchemy.com", c.Network)
}

// AlchemyClient implements ports.Indexer
type AlchemyClient struct {
	rpc     *rpc.Client
	http    *http.Client
	nftBase string
}

// NewAlchemyClient creates a client for the JSON-RPC and NFT REST APIs
func NewAlchemyClient(ctx context.Context, cfg Config) (*AlchemyClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("alchemy api key is required")
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	base := cfg.baseURL()
	rpcClient, err := rpc.DialOptions(ctx, base+"/v2/"+cfg.APIKey, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to dial alchemy rpc: %w", err)
	}

	return &AlchemyClient{
		rpc:     rpcClient,
		http:    httpClient,
		nftBase: base + "/nft/v3/" + cfg.APIKey,
	}, nil
}

// Close releases the JSON-RPC client
func (a *AlchemyClient) Close() {
	a.rpc.Close()
}

// NativeBalance returns the wei balance of address at the latest block
func (a *AlchemyClient) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	var balance hexutil.Big
	if err := a.rpc.CallContext(ctx, &balance, "eth_getBalance", address, "latest"); err != nil {
		return nil, unavailable("eth_getBalance", err)
	}
	return balance.ToInt(), nil
}

type tokenBalancesResult struct {
	Address       string `json:"address"`
	TokenBalances []struct {
		ContractAddress string  `json:"contractAddress"`
		TokenBalance    *string `json:"tokenBalance"`
		Error           *string `json:"error"`
	} `json:"tokenBalances"`
}

// TokenBalances lists the ERC-20 balances of address
func (a *AlchemyClient) TokenBalances(ctx context.Context, address string) ([]ports.RawTokenBalance, error) {
	var result tokenBalancesResult
	if err := a.rpc.CallContext(ctx, &result, "alchemy_getTokenBalances", address, "erc20"); err != nil {
		return nil, unavailable("alchemy_getTokenBalances", err)
	}

	balances := make([]ports.RawTokenBalance, 0, len(result.TokenBalances))
	for _, tb := range result.TokenBalances {
		if tb.Error != nil || tb.TokenBalance == nil {
			continue
		}
		// Alchemy pads balances with leading zeros, which hexutil.Big rejects.
		raw, ok := new(big.Int).SetString(strings.TrimPrefix(*tb.TokenBalance, "0x"), 16)
		if !ok {
			continue
		}
		balances = append(balances, ports.RawTokenBalance{
			ContractAddress: tb.ContractAddress,
			Balance:         raw,
		})
	}
	return balances, nil
}

type tokenMetadataResult struct {
	Name     *string `json:"name"`
	Symbol   *string `json:"symbol"`
	Decimals *int32  `json:"decimals"`
	Logo     *string `json:"logo"`
}

// TokenMetadata describes an ERC-20 contract; unknown fields get defaults
func (a *AlchemyClient) TokenMetadata(ctx context.Context, contract string) (*ports.TokenMetadata, error) {
	var result *tokenMetadataResult
	if err := a.rpc.CallContext(ctx, &result, "alchemy_getTokenMetadata", contract); err != nil {
		return nil, unavailable("alchemy_getTokenMetadata", err)
	}
	if result == nil {
		return nil, fmt.Errorf("token metadata for %s: %w", contract, core.ErrNotFound)
	}

	meta := &ports.TokenMetadata{Name: "Unknown", Symbol: "UNKNOWN", Decimals: 18}
	if result.Name != nil && *result.Name != "" {
		meta.Name = *result.Name
	}
	if result.Symbol != nil && *result.Symbol != "" {
		meta.Symbol = *result.Symbol
	}
	if result.Decimals != nil {
		meta.Decimals = *result.Decimals
	}
	if result.Logo != nil {
		meta.Logo = *result.Logo
	}
	return meta, nil
}

type ownedNFTsPage struct {
	OwnedNFTs []struct {
		Contract struct {
			Address string `json:"address"`
		} `json:"contract"`
		TokenID   string `json:"tokenId"`
		TokenType string `json:"tokenType"`
		Name      string `json:"name"`
		Balance   string `json:"balance"`
		Image     struct {
			CachedURL    string `json:"cachedUrl"`
			ThumbnailURL string `json:"thumbnailUrl"`
		} `json:"image"`
	} `json:"ownedNfts"`
	PageKey string `json:"pageKey"`
}

// NFTsForOwner lists the NFTs held by address
func (a *AlchemyClient) NFTsForOwner(ctx context.Context, address string) ([]core.OwnedNFT, error) {
	var (
		nfts    []core.OwnedNFT
		pageKey string
	)
	for page := 0; page < maxNFTPages; page++ {
		result, err := a.fetchNFTPage(ctx, address, pageKey)
		if err != nil {
			return nil, err
		}

		for _, n := range result.OwnedNFTs {
			nft := core.OwnedNFT{
				ContractAddress: n.Contract.Address,
				TokenID:         n.TokenID,
				Name:            n.Name,
				Balance:         n.Balance,
				TokenType:       n.TokenType,
			}
			if nft.ContractAddress == "" {
				nft.ContractAddress = "unknown"
			}
			if nft.Name == "" {
				nft.Name = "Unknown NFT"
			}
			switch {
			case n.Image.CachedURL != "":
				logo := n.Image.CachedURL
				nft.Logo = &logo
			case n.Image.ThumbnailURL != "":
				logo := n.Image.ThumbnailURL
				nft.Logo = &logo
			}
			nfts = append(nfts, nft)
		}

		if result.PageKey == "" {
			break
		}
		pageKey = result.PageKey
	}
	return nfts, nil
}

func (a *AlchemyClient) fetchNFTPage(ctx context.Context, address, pageKey string) (*ownedNFTsPage, error) {
	query := url.Values{}
	query.Set("owner", address)
	query.Set("withMetadata", "true")
	if pageKey != "" {
		query.Set("pageKey", pageKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.nftBase+"/getNFTsForOwner?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, unavailable("getNFTsForOwner", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, unavailable("getNFTsForOwner", fmt.Errorf("unexpected status %s", resp.Status))
	}

	var page ownedNFTsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, unavailable("getNFTsForOwner", err)
	}
	return &page, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, core.ErrServiceUnavailable, err)
}
