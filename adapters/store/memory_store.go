package store

import (
	"context"
	"sync"

	"github.com/layer-3/nametag/core"
)

// MemoryStore is an in-memory implementation of ports.ChallengeStore and
// ports.IdentityStore. It is used by tests and single-instance development runs.
type MemoryStore struct {
	mu sync.RWMutex

	challenges map[string]core.Challenge

	nextID     int64
	identities map[int64]core.Identity
	byAddress  map[string]int64
	byUsername map[string]int64
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]core.Challenge),
		identities: make(map[int64]core.Identity),
		byAddress:  make(map[string]int64),
		byUsername: make(map[string]int64),
	}
}

// SaveChallenge stores the challenge, replacing any previous one for the address
func (s *MemoryStore) SaveChallenge(ctx context.Context, challenge *core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[challenge.Address] = *challenge
	return nil
}

// GetChallenge returns the pending challenge for address
func (s *MemoryStore) GetChallenge(ctx context.Context, address string) (*core.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	challenge, ok := s.challenges[address]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &challenge, nil
}

// DeleteChallenge removes the challenge for address, if any
func (s *MemoryStore) DeleteChallenge(ctx context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, address)
	return nil
}

// ConsumeChallenge deletes the challenge if it still carries nonce
func (s *MemoryStore) ConsumeChallenge(ctx context.Context, address, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, ok := s.challenges[address]
	if !ok || challenge.Nonce != nonce {
		return false, nil
	}
	delete(s.challenges, address)
	return true, nil
}

// RestoreChallenge stores the challenge unless another one is already pending
func (s *MemoryStore) RestoreChallenge(ctx context.Context, challenge *core.Challenge) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.challenges[challenge.Address]; ok {
		return false, nil
	}
	s.challenges[challenge.Address] = *challenge
	return true, nil
}

// CreateIdentity registers a new identity without a username
func (s *MemoryStore) CreateIdentity(ctx context.Context, address string) (*core.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byAddress[address]; exists {
		return nil, core.ErrConflict
	}

	s.nextID++
	identity := core.Identity{ID: s.nextID, WalletAddress: address}
	s.identities[identity.ID] = identity
	s.byAddress[address] = identity.ID

	return cloneIdentity(identity), nil
}

// IdentityByID looks up an identity by its numeric id
func (s *MemoryStore) IdentityByID(ctx context.Context, id int64) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneIdentity(identity), nil
}

// IdentityByAddress looks up an identity by wallet address
func (s *MemoryStore) IdentityByAddress(ctx context.Context, address string) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byAddress[address]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneIdentity(s.identities[id]), nil
}

// IdentityByUsername looks up an identity by username
func (s *MemoryStore) IdentityByUsername(ctx context.Context, username string) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, core.ErrNotFound
	}
	return cloneIdentity(s.identities[id]), nil
}

// SetUsername assigns username to the identity registered for address
func (s *MemoryStore) SetUsername(ctx context.Context, address, username string) (*core.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byAddress[address]
	if !ok {
		return nil, core.ErrNotFound
	}
	if holder, taken := s.byUsername[username]; taken && holder != id {
		return nil, core.ErrConflict
	}

	identity := s.identities[id]
	if identity.Username != nil {
		delete(s.byUsername, *identity.Username)
	}
	name := username
	identity.Username = &name
	s.identities[id] = identity
	s.byUsername[username] = id

	return cloneIdentity(identity), nil
}

func cloneIdentity(identity core.Identity) *core.Identity {
	if identity.Username != nil {
		name := *identity.Username
		identity.Username = &name
	}
	return &identity
}
