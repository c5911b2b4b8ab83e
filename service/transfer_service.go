package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/log"
	"github.com/layer-3/nametag/core"
	"github.com/layer-3/nametag/internal/eth"
	"github.com/layer-3/nametag/internal/metrics"
	"github.com/layer-3/nametag/ports"
)

// TransferRequest asks for an unsigned NFT transfer to the owner of Username.
type TransferRequest struct {
	ContractAddress string
	FromAddress     string
	TokenID         string
	Username        string
	// Amount is required for ERC1155 and ignored for ERC721.
	Amount    *big.Int
	TokenType string
}

// TransferService prepares unsigned safeTransferFrom transactions. It never
// writes to storage.
type TransferService struct {
	identities *IdentityService
	chain      ports.ChainIDReader
	metrics    *metrics.Metrics
}

// NewTransferService creates a new transfer preparer
func NewTransferService(identities *IdentityService, chain ports.ChainIDReader, m *metrics.Metrics) *TransferService {
	return &TransferService{
		identities: identities,
		chain:      chain,
		metrics:    m,
	}
}

type validTransfer struct {
	contract  common.Address
	from      common.Address
	tokenID   *big.Int
	amount    *big.Int
	username  string
	tokenType core.TokenType
}

func validateTransfer(req TransferRequest) (*validTransfer, error) {
	contract, err := core.NormalizeAddress(req.ContractAddress)
	if err != nil {
		return nil, fmt.Errorf("contract address: %w", err)
	}
	from, err := core.NormalizeAddress(req.FromAddress)
	if err != nil {
		return nil, fmt.Errorf("from address: %w", err)
	}
	tokenID, err := core.ParseTokenID(req.TokenID)
	if err != nil {
		return nil, err
	}
	tokenType, err := core.ParseTokenType(req.TokenType)
	if err != nil {
		return nil, err
	}
	username, err := core.NormalizeUsername(req.Username)
	if err != nil {
		return nil, err
	}

	v := &validTransfer{
		contract:  common.HexToAddress(contract),
		from:      common.HexToAddress(from),
		tokenID:   tokenID,
		username:  username,
		tokenType: tokenType,
	}
	if tokenType == core.TokenTypeERC1155 {
		if req.Amount == nil || req.Amount.Sign() <= 0 {
			return nil, fmt.Errorf("ERC1155 transfers need a positive amount: %w", core.ErrInvalidRequest)
		}
		v.amount = new(big.Int).Set(req.Amount)
	}
	return v, nil
}

// PrepareTransfer builds the transaction moving the token from req.FromAddress
// to the wallet registered under req.Username.
func (s *TransferService) PrepareTransfer(ctx context.Context, req TransferRequest) (prepared *core.PreparedTransfer, err error) {
	v, err := validateTransfer(req)
	if err != nil {
		s.metrics.TransferPrepared("invalid", err)
		return nil, err
	}
	defer func() { s.metrics.TransferPrepared(v.tokenType, err) }()

	recipient, err := s.identities.GetByUsername(ctx, v.username)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("%w: recipient not found: %w", core.ErrTransferPreparationFailed, err)
		}
		return nil, fmt.Errorf("%w: %w", core.ErrTransferPreparationFailed, err)
	}

	to := common.HexToAddress(recipient.WalletAddress)
	if to == v.from {
		return nil, fmt.Errorf("sender and recipient are the same wallet: %w", core.ErrInvalidRequest)
	}

	var data []byte
	switch v.tokenType {
	case core.TokenTypeERC1155:
		data, err = eth.EncodeERC1155Transfer(v.from, to, v.tokenID, v.amount, nil)
	default:
		data, err = eth.EncodeERC721Transfer(v.from, to, v.tokenID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to encode calldata: %w", core.ErrTransferPreparationFailed, err)
	}

	chainID, err := s.chain.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrTransferPreparationFailed, err)
	}

	log.Debug("Transfer prepared", "contract", v.contract, "from", v.from, "to", to, "tokenId", v.tokenID, "type", v.tokenType)
	return &core.PreparedTransfer{
		To:      strings.ToLower(v.contract.Hex()),
		Data:    hexutil.Encode(data),
		ChainID: chainID.String(),
	}, nil
}
