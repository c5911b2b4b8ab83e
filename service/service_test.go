package service

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/nametag/adapters/store"
	"github.com/layer-3/nametag/core"
	"github.com/layer-3/nametag/internal/eth"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	published []core.Identity
	err       error
}

func (p *recordingPublisher) PublishUsernameChanged(ctx context.Context, identity *core.Identity) error {
	p.published = append(p.published, *identity)
	return p.err
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return wallet{key: key, address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
}

func (w wallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := eth.SignPersonalMessage(w.key, message)
	require.NoError(t, err)
	return sig
}

func (w wallet) lower() string {
	return strings.ToLower(w.address)
}

type fixture struct {
	store      *store.MemoryStore
	identities *IdentityService
	challenges *ChallengeService
	publisher  *recordingPublisher

	clock  time.Time
	nonces int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     store.NewMemoryStore(),
		publisher: &recordingPublisher{},
		clock:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.identities = NewIdentityService(f.store)
	f.challenges = NewChallengeService(ChallengeConfig{TTL: time.Minute}, f.store, f.identities, f.publisher, nil)
	f.challenges.now = func() time.Time { return f.clock }
	f.challenges.newNonce = func() string {
		f.nonces++
		return fmt.Sprintf("nonce-%d", f.nonces)
	}
	return f
}

func (f *fixture) register(t *testing.T, w wallet) *core.Identity {
	t.Helper()
	identity, err := f.identities.GetOrCreate(context.Background(), w.address)
	require.NoError(t, err)
	return identity
}

// rename runs the full challenge flow for w.
func (f *fixture) rename(t *testing.T, w wallet, username string) (*core.Identity, error) {
	t.Helper()
	ctx := context.Background()
	message, err := f.challenges.IssueChallenge(ctx, w.address)
	require.NoError(t, err)
	return f.challenges.VerifyAndConsume(ctx, w.address, username, w.sign(t, message), core.ActionChangeUsername)
}
