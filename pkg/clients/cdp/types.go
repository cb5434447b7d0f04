package cdp

import "fmt"

type EvmAccount struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type signEvmMessageRequest struct {
	Message string `json:"message"`
}

type signSolanaMessageRequest struct {
	Message string `json:"message"`
}

// SignMessageResponse is returned by both the EVM and Solana sign/message endpoints.
// EVM signatures are 0x-prefixed 65 byte hex, Solana signatures are base58.
type SignMessageResponse struct {
	Signature string `json:"signature"`
}

// APIError is the error envelope returned by the CDP v2 API.
type APIError struct {
	StatusCode    int    `json:"-"`
	ErrorType     string `json:"errorType"`
	ErrorMessage  string `json:"errorMessage"`
	CorrelationId string `json:"correlationId,omitempty"`
}

func (e *APIError) Error() string {
	if e.CorrelationId != "" {
		return fmt.Sprintf("cdp api error (status %d, type %s, correlationId %s): %s", e.StatusCode, e.ErrorType, e.CorrelationId, e.ErrorMessage)
	}
	return fmt.Sprintf("cdp api error (status %d, type %s): %s", e.StatusCode, e.ErrorType, e.ErrorMessage)
}
