package core

import (
	"fmt"
	"time"
)

// Action names a state-changing operation that a challenge authorizes.
type Action string

const (
	// ActionChangeUsername authorizes setting the username of the signer's identity.
	ActionChangeUsername Action = "change-username"
)

// Message returns the text the wallet owner signs for the given nonce.
func (a Action) Message(nonce string) (string, error) {
	switch a {
	case ActionChangeUsername:
		return fmt.Sprintf("Sign this message to change your username. Nonce: %s", nonce), nil
	default:
		return "", fmt.Errorf("unknown action %q: %w", string(a), ErrInvalidRequest)
	}
}

// Challenge represents a pending nonce challenge for a wallet address
type Challenge struct {
	Address   string    // Lowercase 0x-hex wallet address, one challenge per address
	Nonce     string    // Random nonce embedded in the signed message
	IssuedAt  time.Time // When the challenge was created
	ExpiresAt time.Time // When the challenge stops being usable
}

// Expired reports whether the challenge can no longer be used at now.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
