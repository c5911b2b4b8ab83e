package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/nametag/core"
	"github.com/redis/go-redis/v9"
)

var consumeScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'nonce') == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

var restoreScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'nonce', ARGV[1], 'issued_at', ARGV[2], 'expires_at', ARGV[3])
redis.call('PEXPIREAT', KEYS[1], ARGV[3])
return 1
`)

// RedisChallengeStore keeps challenges as Redis hashes that expire with the challenge
type RedisChallengeStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisChallengeStore creates a Redis backed challenge store
func NewRedisChallengeStore(client redis.UniversalClient) *RedisChallengeStore {
	return &RedisChallengeStore{
		client: client,
		prefix: "nametag:challenge:",
	}
}

func (s *RedisChallengeStore) key(address string) string {
	return s.prefix + address
}

// SaveChallenge replaces the challenge hash and sets its expiry
func (s *RedisChallengeStore) SaveChallenge(ctx context.Context, challenge *core.Challenge) error {
	key := s.key(challenge.Address)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			"nonce", challenge.Nonce,
			"issued_at", challenge.IssuedAt.UnixMilli(),
			"expires_at", challenge.ExpiresAt.UnixMilli(),
		)
		pipe.PExpireAt(ctx, key, challenge.ExpiresAt)
		return nil
	})
	if err != nil {
		return unavailable("failed to save challenge", err)
	}
	return nil
}

// GetChallenge reads the challenge hash for address
func (s *RedisChallengeStore) GetChallenge(ctx context.Context, address string) (*core.Challenge, error) {
	fields, err := s.client.HGetAll(ctx, s.key(address)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrNotFound
		}
		return nil, unavailable("failed to load challenge", err)
	}
	if len(fields) == 0 {
		return nil, core.ErrNotFound
	}

	issuedAt, err := strconv.ParseInt(fields["issued_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt challenge %s: issued_at: %w", s.key(address), err)
	}
	expiresAt, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt challenge %s: expires_at: %w", s.key(address), err)
	}

	return &core.Challenge{
		Address:   address,
		Nonce:     fields["nonce"],
		IssuedAt:  time.UnixMilli(issuedAt),
		ExpiresAt: time.UnixMilli(expiresAt),
	}, nil
}

// DeleteChallenge removes the challenge for address
func (s *RedisChallengeStore) DeleteChallenge(ctx context.Context, address string) error {
	if err := s.client.Del(ctx, s.key(address)).Err(); err != nil {
		return unavailable("failed to delete challenge", err)
	}
	return nil
}

// ConsumeChallenge deletes the challenge only while it still carries nonce
func (s *RedisChallengeStore) ConsumeChallenge(ctx context.Context, address, nonce string) (bool, error) {
	deleted, err := consumeScript.Run(ctx, s.client, []string{s.key(address)}, nonce).Int()
	if err != nil {
		return false, unavailable("failed to consume challenge", err)
	}
	return deleted == 1, nil
}

// RestoreChallenge puts the challenge back unless a newer one has been issued
func (s *RedisChallengeStore) RestoreChallenge(ctx context.Context, challenge *core.Challenge) (bool, error) {
	if time.Until(challenge.ExpiresAt) <= 0 {
		return false, nil
	}
	restored, err := restoreScript.Run(ctx, s.client, []string{s.key(challenge.Address)},
		challenge.Nonce,
		challenge.IssuedAt.UnixMilli(),
		challenge.ExpiresAt.UnixMilli(),
	).Int()
	if err != nil {
		return false, unavailable("failed to restore challenge", err)
	}
	return restored == 1, nil
}
