package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/layer-3/nametag/core"
	"github.com/layer-3/nametag/ports"
)

// IdentityService is the identity registry keyed by wallet address.
type IdentityService struct {
	store ports.IdentityStore
}

// NewIdentityService creates a new identity registry over store
func NewIdentityService(store ports.IdentityStore) *IdentityService {
	return &IdentityService{store: store}
}

// GetOrCreate returns the identity of address, registering it on first use.
// Concurrent callers for the same address observe the same identity.
func (s *IdentityService) GetOrCreate(ctx context.Context, address string) (*core.Identity, error) {
	address, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	identity, err := s.store.IdentityByAddress(ctx, address)
	if err == nil {
		return identity, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	identity, err = s.store.CreateIdentity(ctx, address)
	switch {
	case err == nil:
		log.Info("Identity registered", "id", identity.ID, "address", identity.WalletAddress)
		return identity, nil
	case errors.Is(err, core.ErrConflict):
		// Lost the race against another creator.
		identity, err = s.store.IdentityByAddress(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read identity: %w", err)
		}
		return identity, nil
	default:
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}
}

// GetByID returns the identity with the given id. Ids without a row,
// including zero and negative ones, are reported as core.ErrNotFound.
func (s *IdentityService) GetByID(ctx context.Context, id int64) (*core.Identity, error) {
	return s.store.IdentityByID(ctx, id)
}

// GetByUsername returns the identity currently holding username.
func (s *IdentityService) GetByUsername(ctx context.Context, username string) (*core.Identity, error) {
	username, err := core.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	return s.store.IdentityByUsername(ctx, username)
}

// GetByAddress returns the identity registered for address.
func (s *IdentityService) GetByAddress(ctx context.Context, address string) (*core.Identity, error) {
	address, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return s.store.IdentityByAddress(ctx, address)
}

// Rename sets the username of the identity owning address. It fails with
// core.ErrConflict when another identity holds the name.
func (s *IdentityService) Rename(ctx context.Context, address, username string) (*core.Identity, error) {
	address, err := core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	username, err = core.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}

	identity, err := s.store.SetUsername(ctx, address, username)
	if err != nil {
		return nil, fmt.Errorf("failed to rename identity: %w", err)
	}
	log.Info("Username changed", "id", identity.ID, "address", identity.WalletAddress, "username", username)
	return identity, nil
}
