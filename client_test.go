package nametag_test

import (
	"context"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/nametag"
	"github.com/layer-3/nametag/adapters/store"
	"github.com/layer-3/nametag/core"
	"github.com/layer-3/nametag/service"
	httpapi "github.com/layer-3/nametag/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedChain struct{}

func (fixedChain) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(80002), nil
}

func newTestClient(t *testing.T) *nametag.Client {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemoryStore()
	identities := service.NewIdentityService(mem)
	challenges := service.NewChallengeService(service.ChallengeConfig{TTL: time.Minute}, mem, identities, nil, nil)
	transfers := service.NewTransferService(identities, fixedChain{}, nil)
	router := httpapi.SetupRouter(httpapi.NewHandlers(identities, challenges, transfers, nil), httpapi.Options{})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return nametag.NewClient(srv.URL+"/", nametag.WithHTTPClient(srv.Client()))
}

func TestClient_RenameAndTransfer(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	created, err := client.CreateUser(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(address), created.WalletAddress)

	renamed, err := client.Rename(ctx, key, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, renamed.ID)
	assert.Equal(t, "alice", *renamed.Username)

	fetched, err := client.GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, renamed, fetched)

	prepared, err := client.PrepareNFTTransfer(ctx, nametag.NFTTransferRequest{
		ContractAddress: "0x" + strings.Repeat("c0", 20),
		FromAddress:     "0x" + strings.Repeat("f0", 20),
		TokenID:         "7",
		Username:        "alice",
		Amount:          big.NewInt(3),
		TokenType:       "ERC1155",
	})
	require.NoError(t, err)
	assert.Equal(t, "80002", prepared.ChainID)
	assert.True(t, strings.HasPrefix(prepared.Data, "0xf242432a"))
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)

	_, err := client.GetUser(ctx, 404)
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = client.CreateUser(ctx, "0xBBB")
	assert.ErrorIs(t, err, core.ErrInvalidRequest)
	var apiErr *nametag.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)

	owner, err := crypto.GenerateKey()
	require.NoError(t, err)
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = client.CreateUser(ctx, crypto.PubkeyToAddress(owner.PublicKey).Hex())
	require.NoError(t, err)
	_, err = client.CreateUser(ctx, crypto.PubkeyToAddress(other.PublicKey).Hex())
	require.NoError(t, err)

	_, err = client.Rename(ctx, owner, "taken")
	require.NoError(t, err)
	_, err = client.Rename(ctx, other, "taken")
	assert.ErrorIs(t, err, core.ErrConflict)
}
