package http

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/nametag/core"
	"github.com/layer-3/nametag/service"
)

// Handlers contains HTTP handlers for the user and wallet endpoints
type Handlers struct {
	identities *service.IdentityService
	challenges *service.ChallengeService
	transfers  *service.TransferService
	portfolio  *service.PortfolioService
}

// NewHandlers creates new handlers. portfolio may be nil, which disables the
// wallet endpoints.
func NewHandlers(
	identities *service.IdentityService,
	challenges *service.ChallengeService,
	transfers *service.TransferService,
	portfolio *service.PortfolioService,
) *Handlers {
	return &Handlers{
		identities: identities,
		challenges: challenges,
		transfers:  transfers,
		portfolio:  portfolio,
	}
}

func badRequest(c *gin.Context, msg string) {
	writeError(c, fmt.Errorf("%s: %w", msg, core.ErrInvalidRequest))
}

// CreateUser registers the wallet address or returns the existing identity
func (h *Handlers) CreateUser(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Wallet address is required")
		return
	}

	identity, err := h.identities.GetOrCreate(c.Request.Context(), req.WalletAddress)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, identity)
}

// GetUser returns the identity with the id from the path
func (h *Handlers) GetUser(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Invalid user ID")
		return
	}

	identity, err := h.identities.GetByID(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

// UsernameChangeChallenge issues a challenge for the wallet address
func (h *Handlers) UsernameChangeChallenge(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Wallet address is required")
		return
	}

	challenge, err := h.challenges.IssueChallenge(c.Request.Context(), req.WalletAddress)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"challenge": challenge})
}

// ChangeUsername applies a username change signed by the wallet owner
func (h *Handlers) ChangeUsername(c *gin.Context) {
	var req struct {
		WalletAddress string `json:"walletAddress" binding:"required"`
		NewUsername   string `json:"newUsername" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing required fields")
		return
	}

	identity, err := h.challenges.VerifyAndConsume(
		c.Request.Context(),
		req.WalletAddress,
		req.NewUsername,
		req.Signature,
		core.ActionChangeUsername,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, identity)
}

// SendNFTRequest prepares an unsigned transfer to the owner of a username
func (h *Handlers) SendNFTRequest(c *gin.Context) {
	var req struct {
		ContractAddress string      `json:"contractAddress" binding:"required"`
		FromAddress     string      `json:"fromAddress" binding:"required"`
		TokenID         string      `json:"tokenId" binding:"required"`
		Username        string      `json:"username" binding:"required"`
		Amount          json.Number `json:"amount"`
		TokenType       string      `json:"tokenType"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing required fields")
		return
	}

	var amount *big.Int
	if req.Amount != "" {
		var ok bool
		amount, ok = new(big.Int).SetString(req.Amount.String(), 10)
		if !ok {
			badRequest(c, "Amount must be an integer")
			return
		}
	}

	prepared, err := h.transfers.PrepareTransfer(c.Request.Context(), service.TransferRequest{
		ContractAddress: req.ContractAddress,
		FromAddress:     req.FromAddress,
		TokenID:         req.TokenID,
		Username:        req.Username,
		Amount:          amount,
		TokenType:       req.TokenType,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, prepared)
}

// NativeBalance returns the native coin balance of the wallet in the path
func (h *Handlers) NativeBalance(c *gin.Context) {
	balance, err := h.portfolio.NativeBalance(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// TokenBalances returns the ERC-20 balances of the wallet in the path
func (h *Handlers) TokenBalances(c *gin.Context) {
	balances, err := h.portfolio.TokenBalances(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, balances)
}

// NFTs lists the NFTs held by the wallet in the path
func (h *Handlers) NFTs(c *gin.Context) {
	nfts, err := h.portfolio.NFTs(c.Request.Context(), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, nfts)
}

// Health reports that the process is serving requests
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
