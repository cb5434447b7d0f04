package cdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Layr-Labs/wallet-bench-go/pkg/clients/httpTransport"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerWalletAuth     = "X-Wallet-Auth"
	headerIdempotencyKey = "X-Idempotency-Key"
)

// ICDPClient is the subset of the CDP v2 API used to sign messages.
//
// Signing is split into building the request, sending it and parsing the response so
// callers can time the network round trip on its own.
type ICDPClient interface {
	// GetEvmAccount fetches an EVM account, verifying the API key can see it.
	GetEvmAccount(ctx context.Context, address string) (*EvmAccount, error)

	// NewSignEvmMessageRequest builds an authenticated EIP-191 sign request for address.
	NewSignEvmMessageRequest(ctx context.Context, address string, message string) (*http.Request, error)

	// NewSignSolanaMessageRequest builds an authenticated sign request for a Solana account.
	NewSignSolanaMessageRequest(ctx context.Context, address string, message []byte) (*http.Request, error)

	// Send performs the HTTP round trip only.
	Send(req *http.Request) (*httpTransport.Response, error)
}

type ClientConfig struct {
	BaseUrl      string
	ApiKeyId     string
	ApiKeySecret string
	WalletSecret string
	HttpClient   *http.Client
	Logger       *zap.Logger

	// Now overrides the clock used for token timestamps.
	Now func() time.Time
}

type Client struct {
	baseUrl    *url.URL
	apiKey     *apiKeySigner
	wallet     *walletSigner
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

var _ ICDPClient = (*Client)(nil)

// NewClient parses the API key and wallet secrets. It does not contact the API.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.ApiKeyId == "" {
		return nil, fmt.Errorf("api key id is required")
	}
	baseUrl, err := httpTransport.JoinURL(cfg.BaseUrl, "")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	apiKey, err := parseApiKeySecret(cfg.ApiKeyId, cfg.ApiKeySecret)
	if err != nil {
		return nil, err
	}
	wallet, err := parseWalletSecret(cfg.WalletSecret)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HttpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Client{
		baseUrl:    baseUrl,
		apiKey:     apiKey,
		wallet:     wallet,
		httpClient: httpClient,
		logger:     logger,
		now:        now,
	}, nil
}

func (c *Client) GetEvmAccount(ctx context.Context, address string) (*EvmAccount, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/platform/v2/evm/accounts/%s", address), nil, false)
	if err != nil {
		return nil, err
	}
	resp, err := c.Send(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get evm account: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, parseAPIError(resp)
	}

	var account EvmAccount
	if err := json.Unmarshal(resp.Body, &account); err != nil {
		return nil, fmt.Errorf("failed to decode evm account: %w", err)
	}
	c.logger.Sugar().Debugw("Fetched CDP EVM account", "address", account.Address, "name", account.Name)
	return &account, nil
}

func (c *Client) NewSignEvmMessageRequest(ctx context.Context, address string, message string) (*http.Request, error) {
	body, err := httpTransport.MarshalBody(&signEvmMessageRequest{Message: message})
	if err != nil {
		return nil, err
	}
	return c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/platform/v2/evm/accounts/%s/sign/message", address), body, true)
}

// NewSignSolanaMessageRequest base64 encodes message as the API expects.
func (c *Client) NewSignSolanaMessageRequest(ctx context.Context, address string, message []byte) (*http.Request, error) {
	body, err := httpTransport.MarshalBody(&signSolanaMessageRequest{Message: base64.StdEncoding.EncodeToString(message)})
	if err != nil {
		return nil, err
	}
	return c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/platform/v2/solana/accounts/%s/sign/message", address), body, true)
}

func (c *Client) Send(req *http.Request) (*httpTransport.Response, error) {
	return httpTransport.Do(c.httpClient, req)
}

// ParseSignMessageResponse decodes a sign/message response or its API error.
func ParseSignMessageResponse(resp *httpTransport.Response) (*SignMessageResponse, error) {
	if resp == nil {
		return nil, fmt.Errorf("response is nil")
	}
	if !resp.IsSuccess() {
		return nil, parseAPIError(resp)
	}
	var out SignMessageResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode sign response: %w", err)
	}
	if out.Signature == "" {
		return nil, fmt.Errorf("sign response did not include a signature")
	}
	return &out, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte, walletAuth bool) (*http.Request, error) {
	endpoint, err := httpTransport.JoinURL(c.baseUrl.String(), path)
	if err != nil {
		return nil, err
	}
	req, err := httpTransport.NewJSONRequest(ctx, method, endpoint.String(), body)
	if err != nil {
		return nil, err
	}

	// token uris omit the scheme: "POST api.cdp.coinbase.com/platform/v2/..."
	uri := fmt.Sprintf("%s %s%s", method, endpoint.Host, endpoint.Path)
	now := c.now()

	bearer, err := c.apiKey.token(uri, now)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	if walletAuth {
		walletJwt, err := c.wallet.token(uri, body, now)
		if err != nil {
			return nil, err
		}
		req.Header.Set(headerWalletAuth, walletJwt)
		req.Header.Set(headerIdempotencyKey, uuid.NewString())
	}
	return req, nil
}

func parseAPIError(resp *httpTransport.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(resp.Body, apiErr); err != nil || apiErr.ErrorMessage == "" {
		apiErr.ErrorType = http.StatusText(resp.StatusCode)
		apiErr.ErrorMessage = httpTransport.Snippet(resp.Body)
	}
	return apiErr
}
