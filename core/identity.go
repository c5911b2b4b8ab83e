package core

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
)

// MaxUsernameLength bounds the length of a username.
const MaxUsernameLength = 32

// Identity is a registered user keyed by wallet address.
type Identity struct {
	ID            int64   `json:"id"`
	Username      *string `json:"username"`
	WalletAddress string  `json:"walletAddress"`
}

// HasUsername reports whether the identity currently holds name.
func (i *Identity) HasUsername(name string) bool {
	return i.Username != nil && *i.Username == name
}

// NormalizeAddress validates an EVM address and returns its lowercase 0x-hex form.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("malformed wallet address %q: %w", address, ErrInvalidRequest)
	}
	return strings.ToLower(common.HexToAddress(address).Hex()), nil
}

// NormalizeUsername trims name and checks that it is non-empty, at most
// MaxUsernameLength characters long and free of control characters.
func NormalizeUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", fmt.Errorf("username is required: %w", ErrInvalidRequest)
	case utf8.RuneCountInString(name) > MaxUsernameLength:
		return "", fmt.Errorf("username longer than %d characters: %w", MaxUsernameLength, ErrInvalidRequest)
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return "", fmt.Errorf("username contains control characters: %w", ErrInvalidRequest)
	}
	return name, nil
}
