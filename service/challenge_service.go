package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"github.com/layer-3/nametag/core"
	"github.com/layer-3/nametag/internal/eth"
	"github.com/layer-3/nametag/internal/metrics"
	"github.com/layer-3/nametag/ports"
)

// DefaultChallengeTTL is used when ChallengeConfig.TTL is not set.
const DefaultChallengeTTL = 5 * time.Minute

// ChallengeConfig configures the challenge protocol.
type ChallengeConfig struct {
	TTL time.Duration
}

// action binds a core.Action to the validation of its argument and the state
// change it authorizes.
type action struct {
	validate func(value string) (string, error)
	apply    func(ctx context.Context, address, value string) (*core.Identity, error)
}

// ChallengeService issues nonce challenges and verifies signed answers to them
type ChallengeService struct {
	challenges ports.ChallengeStore
	identities *IdentityService
	eventPub   ports.EventPublisher
	metrics    *metrics.Metrics

	ttl      time.Duration
	actions  map[core.Action]action
	now      func() time.Time
	newNonce func() string
}

// NewChallengeService creates a new challenge service. eventPub and m may be nil.
func NewChallengeService(
	cfg ChallengeConfig,
	challenges ports.ChallengeStore,
	identities *IdentityService,
	eventPub ports.EventPublisher,
	m *metrics.Metrics,
) *ChallengeService {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}

	s := &ChallengeService{
		challenges: challenges,
		identities: identities,
		eventPub:   eventPub,
		metrics:    m,
		ttl:        ttl,
		now:        time.Now,
		newNonce:   uuid.NewString,
	}
	s.actions = map[core.Action]action{
		core.ActionChangeUsername: {
			validate: core.NormalizeUsername,
			apply:    identities.Rename,
		},
	}
	return s
}

// IssueChallenge stores a fresh challenge for address, replacing any pending
// one, and returns the message the wallet owner has to sign.
func (s *ChallengeService) IssueChallenge(ctx context.Context, address string) (string, error) {
	address, err := core.NormalizeAddress(address)
	if err != nil {
		return "", err
	}

	now := s.now()
	challenge := &core.Challenge{
		Address:   address,
		Nonce:     s.newNonce(),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	message, err := core.ActionChangeUsername.Message(challenge.Nonce)
	if err != nil {
		return "", err
	}

	if err := s.challenges.SaveChallenge(ctx, challenge); err != nil {
		return "", fmt.Errorf("failed to save challenge: %w", err)
	}

	s.metrics.ChallengeIssued()
	log.Debug("Challenge issued", "address", address, "expires", challenge.ExpiresAt)
	return message, nil
}

// VerifyAndConsume checks that signature answers the pending challenge of
// address for the given action, consumes the challenge and applies the action
// with value. The challenge is put back when the action itself fails, so the
// same signature may be retried until it expires.
func (s *ChallengeService) VerifyAndConsume(
	ctx context.Context,
	address, value, signature string,
	act core.Action,
) (identity *core.Identity, err error) {
	defer func() { s.metrics.Verification(act, err) }()

	address, err = core.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(signature) == "" {
		return nil, fmt.Errorf("signature is required: %w", core.ErrInvalidRequest)
	}
	handler, ok := s.actions[act]
	if !ok {
		return nil, fmt.Errorf("unknown action %q: %w", string(act), core.ErrInvalidRequest)
	}
	value, err = handler.validate(value)
	if err != nil {
		return nil, err
	}

	challenge, err := s.challenges.GetChallenge(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("no pending challenge: %w", err)
	}

	if challenge.Expired(s.now()) {
		if err := s.challenges.DeleteChallenge(ctx, address); err != nil {
			log.Warn("Failed to delete expired challenge", "address", address, "err", err)
		}
		return nil, fmt.Errorf("challenge expired: %w", core.ErrNotFound)
	}

	message, err := act.Message(challenge.Nonce)
	if err != nil {
		return nil, err
	}

	signer, err := eth.RecoverPersonalAddress(message, signature)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(signer.Hex(), address) {
		return nil, fmt.Errorf("signature does not match wallet address: %w", core.ErrUnauthorized)
	}

	if _, err := s.identities.GetByAddress(ctx, address); err != nil {
		return nil, fmt.Errorf("failed to look up identity: %w", err)
	}

	consumed, err := s.challenges.ConsumeChallenge(ctx, address, challenge.Nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !consumed {
		return nil, fmt.Errorf("challenge already used or replaced: %w", core.ErrNotFound)
	}

	identity, err = handler.apply(ctx, address, value)
	if err != nil {
		s.restore(ctx, challenge)
		return nil, err
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishUsernameChanged(ctx, identity); err != nil {
			// The change is already stored.
			log.Warn("Failed to publish username change", "id", identity.ID, "err", err)
		}
	}
	return identity, nil
}

func (s *ChallengeService) restore(ctx context.Context, challenge *core.Challenge) {
	restored, err := s.challenges.RestoreChallenge(context.WithoutCancel(ctx), challenge)
	switch {
	case err != nil:
		log.Warn("Failed to restore challenge", "address", challenge.Address, "err", err)
	case !restored:
		log.Debug("Challenge superseded before restore", "address", challenge.Address)
	}
}
