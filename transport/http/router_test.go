package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/nametag/adapters/store"
	"github.com/layer-3/nametag/core"
	"github.com/layer-3/nametag/internal/eth"
	"github.com/layer-3/nametag/internal/metrics"
	"github.com/layer-3/nametag/internal/ratelimit"
	"github.com/layer-3/nametag/ports"
	"github.com/layer-3/nametag/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticChain struct{}

func (staticChain) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(137), nil
}

type staticIndexer struct{}

func (staticIndexer) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	return big.NewInt(2_000_000_000_000_000_000), nil
}

func (staticIndexer) TokenBalances(ctx context.Context, address string) ([]ports.RawTokenBalance, error) {
	return nil, fmt.Errorf("alchemy_getTokenBalances: %w", core.ErrServiceUnavailable)
}

func (staticIndexer) TokenMetadata(ctx context.Context, contract string) (*ports.TokenMetadata, error) {
	return nil, core.ErrNotFound
}

func (staticIndexer) NFTsForOwner(ctx context.Context, address string) ([]core.OwnedNFT, error) {
	return []core.OwnedNFT{{ContractAddress: "0xc1", TokenID: "1", Name: "One", Balance: "1", TokenType: "ERC721"}}, nil
}

type testServer struct {
	router   *gin.Engine
	registry *prometheus.Registry
}

func setupTestRouter(t *testing.T, portfolio bool, limiter *ratelimit.KeyedLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemoryStore()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	identities := service.NewIdentityService(mem)
	challenges := service.NewChallengeService(service.ChallengeConfig{TTL: time.Minute}, mem, identities, nil, m)
	transfers := service.NewTransferService(identities, staticChain{}, m)
	var portfolioSvc *service.PortfolioService
	if portfolio {
		portfolioSvc = service.NewPortfolioService(staticIndexer{})
	}

	h := NewHandlers(identities, challenges, transfers, portfolioSvc)
	router := SetupRouter(h, Options{
		Metrics:        m,
		Gatherer:       registry,
		RateLimiter:    limiter,
		RequestTimeout: 5 * time.Second,
	})
	return &testServer{router: router, registry: registry}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var decoded map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &decoded)
	return w, decoded
}

func TestCreateAndGetUser(t *testing.T) {
	s := setupTestRouter(t, false, nil)
	address := "0x" + strings.Repeat("AB", 20)

	w, body := s.do(t, http.MethodPost, "/user", gin.H{"walletAddress": address})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, strings.ToLower(address), body["walletAddress"])
	assert.Nil(t, body["username"])
	id := body["id"]

	w, body = s.do(t, http.MethodPost, "/user", gin.H{"walletAddress": strings.ToLower(address)})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, id, body["id"])

	w, body = s.do(t, http.MethodGet, fmt.Sprintf("/user/%v", id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, strings.ToLower(address), body["walletAddress"])

	for _, missing := range []string{"999", "0", "-1"} {
		w, _ = s.do(t, http.MethodGet, "/user/"+missing, nil)
		assert.Equal(t, http.StatusNotFound, w.Code, missing)
	}

	w, body = s.do(t, http.MethodGet, "/user/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid user ID", body["error"])
}

func TestCreateUserInvalid(t *testing.T) {
	s := setupTestRouter(t, false, nil)

	w, _ := s.do(t, http.MethodPost, "/user", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := s.do(t, http.MethodPost, "/user", gin.H{"walletAddress": "0xBBB"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["error"], "malformed wallet address")
}

func TestChangeUsernameFlow(t *testing.T) {
	s := setupTestRouter(t, false, nil)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	w, _ := s.do(t, http.MethodPost, "/user", gin.H{"walletAddress": address})
	require.Equal(t, http.StatusCreated, w.Code)

	w, body := s.do(t, http.MethodPost, "/user/username-change-challenge", gin.H{"walletAddress": address})
	require.Equal(t, http.StatusOK, w.Code)
	challenge, _ := body["challenge"].(string)
	require.True(t, strings.HasPrefix(challenge, "Sign this message to change your username. Nonce: "))

	sig, err := eth.SignPersonalMessage(key, challenge)
	require.NoError(t, err)

	w, body = s.do(t, http.MethodPost, "/user/change-username", gin.H{
		"walletAddress": address, "newUsername": "alice", "signature": "0x1234",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid signature", body["error"])

	change := gin.H{"walletAddress": address, "newUsername": "alice", "signature": sig}
	w, body = s.do(t, http.MethodPost, "/user/change-username", change)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", body["username"])

	w, _ = s.do(t, http.MethodPost, "/user/change-username", change)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodPost, "/user/change-username", gin.H{"walletAddress": address})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangeUsernameMalformedSignature(t *testing.T) {
	s := setupTestRouter(t, false, nil)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	s.do(t, http.MethodPost, "/user", gin.H{"walletAddress": address})
	w, _ := s.do(t, http.MethodPost, "/user/username-change-challenge", gin.H{"walletAddress": address})
	require.Equal(t, http.StatusOK, w.Code)

	for _, sig := range []string{"0x1234", "not-hex", "0x" + strings.Repeat("00", 66)} {
		w, body := s.do(t, http.MethodPost, "/user/change-username", gin.H{
			"walletAddress": address, "newUsername": "alice", "signature": sig,
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code, sig)
		assert.Equal(t, "Invalid signature", body["error"], sig)
	}
}

func TestChangeUsernameWithSpace(t *testing.T) {
	s := setupTestRouter(t, false, nil)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	s.do(t, http.MethodPost, "/user", gin.H{"walletAddress": address})
	_, body := s.do(t, http.MethodPost, "/user/username-change-challenge", gin.H{"walletAddress": address})
	sig, err := eth.SignPersonalMessage(key, body["challenge"].(string))
	require.NoError(t, err)

	w, body := s.do(t, http.MethodPost, "/user/change-username", gin.H{
		"walletAddress": address, "newUsername": "has space", "signature": sig,
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "has space", body["username"])

	w, body = s.do(t, http.MethodPost, "/user/send-nft-request", gin.H{
		"contractAddress": "0x" + strings.Repeat("c0", 20), "fromAddress": "0x" + strings.Repeat("f0", 20),
		"tokenId": "1", "username": "has space",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "137", body["chainId"])
}

func TestChangeUsernameConflict(t *testing.T) {
	s := setupTestRouter(t, false, nil)

	rename := func(name string) int {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		address := crypto.PubkeyToAddress(key.PublicKey).Hex()
		s.do(t, http.MethodPost, "/user", gin.H{"walletAddress": address})
		_, body := s.do(t, http.MethodPost, "/user/username-change-challenge", gin.H{"walletAddress": address})
		sig, err := eth.SignPersonalMessage(key, body["challenge"].(string))
		require.NoError(t, err)
		w, _ := s.do(t, http.MethodPost, "/user/change-username", gin.H{
			"walletAddress": address, "newUsername": name, "signature": sig,
		})
		return w.Code
	}

	assert.Equal(t, http.StatusOK, rename("taken"))
	assert.Equal(t, http.StatusConflict, rename("taken"))
}

func TestSendNFTRequest(t *testing.T) {
	s := setupTestRouter(t, false, nil)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	recipient := crypto.PubkeyToAddress(key.PublicKey).Hex()

	s.do(t, http.MethodPost, "/user", gin.H{"walletAddress": recipient})
	_, body := s.do(t, http.MethodPost, "/user/username-change-challenge", gin.H{"walletAddress": recipient})
	sig, err := eth.SignPersonalMessage(key, body["challenge"].(string))
	require.NoError(t, err)
	w, _ := s.do(t, http.MethodPost, "/user/change-username", gin.H{
		"walletAddress": recipient, "newUsername": "alice", "signature": sig,
	})
	require.Equal(t, http.StatusOK, w.Code)

	contract := "0x" + strings.Repeat("c0", 20)
	from := "0x" + strings.Repeat("f0", 20)

	w, body = s.do(t, http.MethodPost, "/user/send-nft-request", gin.H{
		"contractAddress": contract, "fromAddress": from, "tokenId": "7",
		"username": "alice", "amount": 3, "tokenType": "ERC1155",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contract, body["to"])
	assert.Equal(t, "137", body["chainId"])
	assert.True(t, strings.HasPrefix(body["data"].(string), "0xf242432a"))

	w, body = s.do(t, http.MethodPost, "/user/send-nft-request", gin.H{
		"contractAddress": contract, "fromAddress": from, "tokenId": "7", "username": "bob",
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, body["error"], "recipient not found")

	w, _ = s.do(t, http.MethodPost, "/user/send-nft-request", gin.H{
		"contractAddress": contract, "fromAddress": from, "tokenId": "7",
		"username": "alice", "tokenType": "ERC1155",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/user/send-nft-request", gin.H{
		"contractAddress": contract, "fromAddress": from, "tokenId": "7",
		"username": "alice", "amount": 1.5, "tokenType": "ERC1155",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/user/send-nft-request", gin.H{"contractAddress": contract})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChallengeRateLimit(t *testing.T) {
	s := setupTestRouter(t, false, ratelimit.New(0.001, 2, time.Minute))
	req := gin.H{"walletAddress": "0x" + strings.Repeat("12", 20)}

	for i := 0; i < 2; i++ {
		w, _ := s.do(t, http.MethodPost, "/user/username-change-challenge", req)
		require.Equal(t, http.StatusOK, w.Code)
	}
	w, body := s.do(t, http.MethodPost, "/user/username-change-challenge", req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Too many requests", body["error"])

	// Other routes are not limited.
	w, _ = s.do(t, http.MethodPost, "/user", req)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := setupTestRouter(t, false, nil)

	w, body := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	s.do(t, http.MethodPost, "/user/username-change-challenge", gin.H{"walletAddress": "0x" + strings.Repeat("34", 20)})

	w, _ = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "nametag_challenges_issued_total 1")
	assert.Contains(t, w.Body.String(), `route="/healthz"`)
}

func TestCORSPreflight(t *testing.T) {
	s := setupTestRouter(t, false, nil)

	w, _ := s.do(t, http.MethodOptions, "/user", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestWalletRoutes(t *testing.T) {
	disabled := setupTestRouter(t, false, nil)
	w, _ := disabled.do(t, http.MethodGet, "/wallet/0x"+strings.Repeat("ab", 20)+"/balance", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s := setupTestRouter(t, true, nil)
	address := "0x" + strings.Repeat("ab", 20)

	w, body := s.do(t, http.MethodGet, "/wallet/"+address+"/balance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", body["balance"])

	w, _ = s.do(t, http.MethodGet, "/wallet/"+address+"/tokens", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w, _ = s.do(t, http.MethodGet, "/wallet/"+address+"/nfts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var nfts []core.OwnedNFT
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &nfts))
	require.Len(t, nfts, 1)
	assert.NotEmpty(t, nfts[0].UniqueID)

	w, _ = s.do(t, http.MethodGet, "/wallet/0x12/balance", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusFor(t *testing.T) {
	tcs := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", core.ErrInvalidRequest), http.StatusBadRequest},
		{core.ErrNotFound, http.StatusNotFound},
		{core.ErrInvalidSignature, http.StatusUnauthorized},
		{core.ErrUnauthorized, http.StatusUnauthorized},
		{core.ErrConflict, http.StatusConflict},
		{core.ErrRateLimited, http.StatusTooManyRequests},
		{fmt.Errorf("%w: %w", core.ErrTransferPreparationFailed, core.ErrNotFound), http.StatusInternalServerError},
		{fmt.Errorf("%w: %w", core.ErrTransferPreparationFailed, core.ErrServiceUnavailable), http.StatusInternalServerError},
		{fmt.Errorf("db: %w", core.ErrServiceUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tcs {
		status, msg := statusFor(tc.err)
		assert.Equal(t, tc.want, status, tc.err.Error())
		assert.NotEmpty(t, msg)
	}

	_, msg := statusFor(fmt.Errorf("boom: secret detail"))
	assert.Equal(t, "Internal error", msg)
}
