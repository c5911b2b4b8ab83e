package ports

import (
	"context"

	"github.com/layer-3/nametag/core"
)

// ChallengeStore keeps at most one pending challenge per wallet address.
type ChallengeStore interface {
	// SaveChallenge inserts or replaces the challenge for challenge.Address.
	SaveChallenge(ctx context.Context, challenge *core.Challenge) error

	// GetChallenge returns core.ErrNotFound when no challenge is stored.
	GetChallenge(ctx context.Context, address string) (*core.Challenge, error)

	DeleteChallenge(ctx context.Context, address string) error

	// ConsumeChallenge deletes the challenge only if it still carries nonce.
	// It reports false when the challenge was already consumed or replaced.
	ConsumeChallenge(ctx context.Context, address, nonce string) (bool, error)

	// RestoreChallenge puts a consumed challenge back unless a newer one exists.
	RestoreChallenge(ctx context.Context, challenge *core.Challenge) (bool, error)
}

// IdentityStore persists identities. Addresses are already normalized by callers.
type IdentityStore interface {
	// CreateIdentity returns core.ErrConflict when the address is already registered.
	CreateIdentity(ctx context.Context, address string) (*core.Identity, error)

	IdentityByID(ctx context.Context, id int64) (*core.Identity, error)
	IdentityByAddress(ctx context.Context, address string) (*core.Identity, error)
	IdentityByUsername(ctx context.Context, username string) (*core.Identity, error)

	// SetUsername returns core.ErrConflict when another identity holds username
	// and core.ErrNotFound when address is unknown.
	SetUsername(ctx context.Context, address, username string) (*core.Identity, error)
}
