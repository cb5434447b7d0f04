package walletService

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Error kinds. Every error returned by an adapter matches exactly one of these with errors.Is.
var (
	ErrConfiguration  = errors.New("configuration error")
	ErrInitialization = errors.New("initialization error")
	ErrNotInitialized = errors.New("not initialized")
	ErrSigning        = errors.New("signing error")
)

// Operation names used in error context.
const (
	OpInitialize          = "initialize"
	OpSignMessageEthereum = "signMessageEthereum"
	OpSignMessageSolana   = "signMessageSolana"
)

// ServiceError carries the backend and operation that failed along with the error kind.
type ServiceError struct {
	Kind    error
	Backend string
	Op      string

	// MissingKeys lists configuration keys that were required but absent.
	MissingKeys []string

	// Err is the underlying cause, typically the backend's own error.
	Err error
}

func (e *ServiceError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s: %s", e.Backend, e.Op, e.Kind)
	if len(e.MissingKeys) > 0 {
		fmt.Fprintf(&sb, ": missing required keys [%s]", strings.Join(e.MissingKeys, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&sb, ": %s", e.Err)
	}
	return sb.String()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Cause supports github.com/pkg/errors.Cause.
func (e *ServiceError) Cause() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return e.Kind == target
}

func NewConfigurationError(backend, op string, missingKeys []string, err error) *ServiceError {
	return &ServiceError{Kind: ErrConfiguration, Backend: backend, Op: op, MissingKeys: missingKeys, Err: err}
}

func NewInitializationError(backend string, err error) *ServiceError {
	return &ServiceError{Kind: ErrInitialization, Backend: backend, Op: OpInitialize, Err: err}
}

func NewNotInitializedError(backend, op string) *ServiceError {
	return &ServiceError{Kind: ErrNotInitialized, Backend: backend, Op: op}
}

func NewSigningError(backend, op string, err error) *ServiceError {
	return &ServiceError{Kind: ErrSigning, Backend: backend, Op: op, Err: err}
}

// KindOf returns a short label for the error kind of err, or "unknown".
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrInitialization):
		return "initialization"
	case errors.Is(err, ErrNotInitialized):
		return "not_initialized"
	case errors.Is(err, ErrSigning):
		return "signing"
	default:
		return "unknown"
	}
}

// OpForChain maps a chain to the name of its signing operation.
func OpForChain(chain Chain) string {
	if chain == ChainSolana {
		return OpSignMessageSolana
	}
	return OpSignMessageEthereum
}
