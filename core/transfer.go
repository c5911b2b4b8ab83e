package core

import (
	"fmt"
	"math/big"
	"strings"
)

// TokenType selects the token standard used to encode a transfer.
type TokenType string

const (
	TokenTypeERC721  TokenType = "ERC721"
	TokenTypeERC1155 TokenType = "ERC1155"
)

// ParseTokenType maps the request value to a TokenType. An empty value means ERC721.
func ParseTokenType(s string) (TokenType, error) {
	switch TokenType(strings.ToUpper(strings.TrimSpace(s))) {
	case "", TokenTypeERC721:
		return TokenTypeERC721, nil
	case TokenTypeERC1155:
		return TokenTypeERC1155, nil
	default:
		return "", fmt.Errorf("unsupported token type %q: %w", s, ErrInvalidRequest)
	}
}

// ParseTokenID parses a decimal or 0x-prefixed hexadecimal token id.
func ParseTokenID(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	id, ok := new(big.Int).SetString(s, 0)
	if s == "" || !ok || id.Sign() < 0 || id.BitLen() > 256 {
		return nil, fmt.Errorf("malformed token id %q: %w", s, ErrInvalidRequest)
	}
	return id, nil
}

// PreparedTransfer is an unsigned transaction for the client's wallet to sign and send.
type PreparedTransfer struct {
	To      string `json:"to"`
	Data    string `json:"data"`
	ChainID string `json:"chainId"`
}
