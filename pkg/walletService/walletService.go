package walletService

import (
	"context"
	"fmt"
)

type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainSolana   Chain = "solana"
)

func (c Chain) String() string {
	return string(c)
}

// ServiceResult is the normalized output of a single signing call.
//
// WalletAddress is always the address resolved during initialization for the
// chain, never an address echoed back by the backend, so a verifier can check
// signer identity independently of the backend.
type ServiceResult struct {
	Signature     string  `json:"signature"`
	ApiLatencyMs  float64 `json:"apiLatencyMs"`
	WalletAddress string  `json:"walletAddress"`
}

func (r *ServiceResult) String() string {
	return fmt.Sprintf("signature=%s latency=%.3fms address=%s", r.Signature, r.ApiLatencyMs, r.WalletAddress)
}

// WalletService is implemented once per custody backend.
//
// Initialize must succeed before any signing call. It is idempotent and safe to call
// concurrently; backend session setup runs at most once per successful initialization.
// Signing calls pass ctx through to the backend request and never retry.
type WalletService interface {
	// Name returns the backend identifier used in errors, logs and metrics.
	Name() string

	// Initialize validates configuration and establishes the backend session.
	Initialize(ctx context.Context) error

	// SignMessageEthereum signs message as an EIP-191 personal message and returns
	// the canonical 65 byte (r, s, v) hex signature.
	SignMessageEthereum(ctx context.Context, message string) (*ServiceResult, error)

	// SignMessageSolana signs message with the configured ed25519 account and returns
	// the backend's native signature encoding.
	SignMessageSolana(ctx context.Context, message string) (*ServiceResult, error)
}
