package turnkey

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Layr-Labs/wallet-bench-go/pkg/clients/httpTransport"
	"go.uber.org/zap"
)

const (
	pathWhoami         = "/public/v1/query/whoami"
	pathSignRawPayload = "/public/v1/submit/sign_raw_payload"
)

// ITurnkeyClient is the subset of the Turnkey public API used to sign payloads.
//
// Signing is split into building the request, sending it and parsing the response so
// callers can time the network round trip on its own.
type ITurnkeyClient interface {
	// Whoami resolves the organization and user behind the API key.
	Whoami(ctx context.Context) (*WhoamiResponse, error)

	// NewSignRawPayloadRequest builds a stamped sign_raw_payload activity request.
	NewSignRawPayloadRequest(ctx context.Context, signWith string, payloadHex string, hashFunction string) (*http.Request, error)

	// Send performs the HTTP round trip only.
	Send(req *http.Request) (*httpTransport.Response, error)
}

type ClientConfig struct {
	BaseUrl        string
	OrganizationId string
	ApiPublicKey   string
	ApiPrivateKey  string
	HttpClient     *http.Client
	Logger         *zap.Logger

	// Now overrides the clock used for activity timestamps.
	Now func() time.Time
}

type Client struct {
	baseUrl        *url.URL
	organizationId string
	stamper        *apiKeyStamper
	httpClient     *http.Client
	logger         *zap.Logger
	now            func() time.Time
}

var _ ITurnkeyClient = (*Client)(nil)

// NewClient parses and cross-checks the API key pair. It does not contact the API.
func NewClient(cfg *ClientConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.OrganizationId == "" {
		return nil, fmt.Errorf("organization id is required")
	}
	baseUrl, err := httpTransport.JoinURL(cfg.BaseUrl, "")
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	stamper, err := newApiKeyStamper(cfg.ApiPublicKey, cfg.ApiPrivateKey)
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
		baseUrl:        baseUrl,
		organizationId: cfg.OrganizationId,
		stamper:        stamper,
		httpClient:     httpClient,
		logger:         logger,
		now:            now,
	}, nil
}

func (c *Client) Whoami(ctx context.Context) (*WhoamiResponse, error) {
	body, err := httpTransport.MarshalBody(&whoamiRequest{OrganizationId: c.organizationId})
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, pathWhoami, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.Send(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call whoami: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, parseAPIError(resp)
	}

	var out WhoamiResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode whoami response: %w", err)
	}
	if out.OrganizationId != c.organizationId {
		return nil, fmt.Errorf("api key belongs to organization %s, expected %s", out.OrganizationId, c.organizationId)
	}
	c.logger.Sugar().Debugw("Resolved Turnkey API key",
		"organizationId", out.OrganizationId,
		"userId", out.UserId,
		"username", out.Username,
	)
	return &out, nil
}

func (c *Client) NewSignRawPayloadRequest(ctx context.Context, signWith string, payloadHex string, hashFunction string) (*http.Request, error) {
	body, err := httpTransport.MarshalBody(&signRawPayloadRequest{
		Type:           ActivityTypeSignRawPayload,
		TimestampMs:    strconv.FormatInt(c.now().UnixMilli(), 10),
		OrganizationId: c.organizationId,
		Parameters: signRawPayloadParameters{
			SignWith:     signWith,
			Payload:      payloadHex,
			Encoding:     PayloadEncodingHexadecimal,
			HashFunction: hashFunction,
		},
	})
	if err != nil {
		return nil, err
	}
	return c.newRequest(ctx, pathSignRawPayload, body)
}

func (c *Client) Send(req *http.Request) (*httpTransport.Response, error) {
	return httpTransport.Do(c.httpClient, req)
}

// ParseSignRawPayloadResponse decodes a completed sign_raw_payload activity.
// Activities that are pending consensus or failed are returned as *ActivityError.
func ParseSignRawPayloadResponse(resp *httpTransport.Response) (*SignRawPayloadResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("response is nil")
	}
	if !resp.IsSuccess() {
		return nil, parseAPIError(resp)
	}

	var out activityResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode activity response: %w", err)
	}
	if out.Activity == nil {
		return nil, fmt.Errorf("activity response did not include an activity")
	}
	act := out.Activity
	if act.Status != ActivityStatusCompleted {
		actErr := &ActivityError{ActivityId: act.Id, Status: act.Status}
		if act.Failure != nil {
			actErr.Message = act.Failure.Message
		}
		return nil, actErr
	}
	if act.Result == nil || act.Result.SignRawPayloadResult == nil {
		return nil, fmt.Errorf("activity %s completed without a sign result", act.Id)
	}
	return act.Result.SignRawPayloadResult, nil
}

func (c *Client) newRequest(ctx context.Context, path string, body []byte) (*http.Request, error) {
	endpoint, err := httpTransport.JoinURL(c.baseUrl.String(), path)
	if err != nil {
		return nil, err
	}
	req, err := httpTransport.NewJSONRequest(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return nil, err
	}
	st, err := c.stamper.stamp(body)
	if err != nil {
		return nil, err
	}
	req.Header.Set(headerStamp, st)
	return req, nil
}

func parseAPIError(resp *httpTransport.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(resp.Body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = httpTransport.Snippet(resp.Body)
	}
	return apiErr
}
