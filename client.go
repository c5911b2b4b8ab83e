// Package nametag is a Go client for the nametag HTTP API.
package nametag

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/nametag/core"
	"github.com/layer-3/nametag/internal/eth"
)

// Client talks to a nametag server
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NFTTransferRequest asks the server to prepare a transfer to Username
type NFTTransferRequest struct {
	ContractAddress string   `json:"contractAddress"`
	FromAddress     string   `json:"fromAddress"`
	TokenID         string   `json:"tokenId"`
	Username        string   `json:"username"`
	Amount          *big.Int `json:"amount,omitempty"`
	TokenType       string   `json:"tokenType,omitempty"`
}

// CreateUser registers address, or returns its existing identity
func (c *Client) CreateUser(ctx context.Context, address string) (*core.Identity, error) {
	var identity core.Identity
	err := c.do(ctx, http.MethodPost, "/user", map[string]string{"walletAddress": address}, &identity)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// GetUser fetches an identity by id
func (c *Client) GetUser(ctx context.Context, id int64) (*core.Identity, error) {
	var identity core.Identity
	if err := c.do(ctx, http.MethodGet, "/user/"+strconv.FormatInt(id, 10), nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// UsernameChallenge requests the message address has to sign to change its username
func (c *Client) UsernameChallenge(ctx context.Context, address string) (string, error) {
	var resp struct {
		Challenge string `json:"challenge"`
	}
	err := c.do(ctx, http.MethodPost, "/user/username-change-challenge", map[string]string{"walletAddress": address}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Challenge, nil
}

// ChangeUsername submits a signed challenge together with the new username
func (c *Client) ChangeUsername(ctx context.Context, address, username, signature string) (*core.Identity, error) {
	req := map[string]string{
		"walletAddress": address,
		"newUsername":   username,
		"signature":     signature,
	}
	var identity core.Identity
	if err := c.do(ctx, http.MethodPost, "/user/change-username", req, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Rename runs the whole challenge flow for the wallet of key
func (c *Client) Rename(ctx context.Context, key *ecdsa.PrivateKey, username string) (*core.Identity, error) {
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	challenge, err := c.UsernameChallenge(ctx, address)
	if err != nil {
		return nil, err
	}
	signature, err := eth.SignPersonalMessage(key, challenge)
	if err != nil {
		return nil, fmt.Errorf("failed to sign challenge: %w", err)
	}
	return c.ChangeUsername(ctx, address, username, signature)
}

// PrepareNFTTransfer returns the unsigned transaction for req
func (c *Client) PrepareNFTTransfer(ctx context.Context, req NFTTransferRequest) (*core.PreparedTransfer, error) {
	var prepared core.PreparedTransfer
	if err := c.do(ctx, http.MethodPost, "/user/send-nft-request", req, &prepared); err != nil {
		return nil, err
	}
	return &prepared, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.Error == "" {
			apiErr.Error = resp.Status
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
