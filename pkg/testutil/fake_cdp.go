package testutil

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/mr-tron/base58"
)

// FakeCDPServer implements the CDP v2 account and sign/message endpoints with local keys.
// It verifies both the bearer and wallet auth tokens on every request.
type FakeCDPServer struct {
	Server   *httptest.Server
	Creds    *CDPCredentials
	Ethereum *EthereumAccount
	Solana   *SolanaAccount

	mu               sync.Mutex
	delay            time.Duration
	signFailure      string
	accountStatus    int
	onSign           func()
	lastWalletClaims map[string]any

	accountLookups atomic.Int32
	signCalls      atomic.Int32
}

// NewFakeCDPServer starts a server that closes with the test. solana may be nil.
func NewFakeCDPServer(t *testing.T, creds *CDPCredentials, ethereum *EthereumAccount, solana *SolanaAccount) *FakeCDPServer {
	f := &FakeCDPServer{
		Creds:    creds,
		Ethereum: ethereum,
		Solana:   solana,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /platform/v2/evm/accounts/{address}", f.handleGetAccount)
	mux.HandleFunc("POST /platform/v2/evm/accounts/{address}/sign/message", f.handleSignEvm)
	mux.HandleFunc("POST /platform/v2/solana/accounts/{address}/sign/message", f.handleSignSolana)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeCDPServer) URL() string {
	return f.Server.URL
}

// SetDelay makes sign endpoints sleep before responding.
func (f *FakeCDPServer) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// SetSignFailure makes sign endpoints fail with a 500 carrying message. Empty clears it.
func (f *FakeCDPServer) SetSignFailure(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signFailure = message
}

// SetAccountLookupStatus forces the account endpoint to fail with status. Zero clears it.
func (f *FakeCDPServer) SetAccountLookupStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accountStatus = status
}

// SetOnSign registers a hook run inside every sign request.
func (f *FakeCDPServer) SetOnSign(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSign = fn
}

func (f *FakeCDPServer) AccountLookups() int {
	return int(f.accountLookups.Load())
}

func (f *FakeCDPServer) SignCalls() int {
	return int(f.signCalls.Load())
}

// LastWalletClaims returns the claims of the most recent X-Wallet-Auth token.
func (f *FakeCDPServer) LastWalletClaims() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastWalletClaims
}

func (f *FakeCDPServer) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	f.accountLookups.Add(1)
	if err := f.verifyBearer(r); err != nil {
		writeCDPError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return
	}

	f.mu.Lock()
	status := f.accountStatus
	f.mu.Unlock()
	if status != 0 {
		writeCDPError(w, status, "forced_failure", "account lookup failed")
		return
	}

	address := r.PathValue("address")
	if !strings.EqualFold(address, f.Ethereum.Address) {
		writeCDPError(w, http.StatusNotFound, "not_found", fmt.Sprintf("evm account %s not found", address))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": f.Ethereum.Address, "name": "bench"})
}

func (f *FakeCDPServer) handleSignEvm(w http.ResponseWriter, r *http.Request) {
	body, ok := f.beginSign(w, r)
	if !ok {
		return
	}
	if !strings.EqualFold(r.PathValue("address"), f.Ethereum.Address) {
		writeCDPError(w, http.StatusNotFound, "not_found", "evm account not found")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeCDPError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(req.Message)), f.Ethereum.PrivateKey)
	if err != nil {
		writeCDPError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	// the API returns v as 0 or 1, same as crypto.Sign
	writeJSON(w, http.StatusOK, map[string]string{"signature": hexutil.Encode(sig)})
}

func (f *FakeCDPServer) handleSignSolana(w http.ResponseWriter, r *http.Request) {
	body, ok := f.beginSign(w, r)
	if !ok {
		return
	}
	if f.Solana == nil || r.PathValue("address") != f.Solana.Address {
		writeCDPError(w, http.StatusNotFound, "not_found", "solana account not found")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeCDPError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	message, err := base64.StdEncoding.DecodeString(req.Message)
	if err != nil {
		writeCDPError(w, http.StatusBadRequest, "invalid_request", "message must be base64")
		return
	}
	sig := ed25519.Sign(f.Solana.PrivateKey, message)
	writeJSON(w, http.StatusOK, map[string]string{"signature": base58.Encode(sig)})
}

// beginSign authenticates a sign request and applies the configured delay and failure.
func (f *FakeCDPServer) beginSign(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	f.signCalls.Add(1)

	body, err := readBody(r)
	if err != nil {
		writeCDPError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return nil, false
	}
	if err := f.verifyBearer(r); err != nil {
		writeCDPError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return nil, false
	}
	if err := f.verifyWalletAuth(r, body); err != nil {
		writeCDPError(w, http.StatusUnauthorized, "unauthorized", err.Error())
		return nil, false
	}
	if r.Header.Get("X-Idempotency-Key") == "" {
		writeCDPError(w, http.StatusBadRequest, "invalid_request", "missing idempotency key")
		return nil, false
	}

	f.mu.Lock()
	delay, failure, onSign := f.delay, f.signFailure, f.onSign
	f.mu.Unlock()

	if onSign != nil {
		onSign()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if failure != "" {
		writeCDPError(w, http.StatusInternalServerError, "internal_server_error", failure)
		return nil, false
	}
	return body, true
}

func (f *FakeCDPServer) verifyBearer(r *http.Request) error {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return fmt.Errorf("missing bearer token")
	}
	payload, err := jws.Verify([]byte(token), jws.WithKey(jwa.EdDSA(), f.Creds.ApiPublicKey))
	if err != nil {
		return fmt.Errorf("invalid bearer token: %w", err)
	}

	var claims struct {
		Sub  string   `json:"sub"`
		Iss  string   `json:"iss"`
		Uris []string `json:"uris"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return fmt.Errorf("invalid bearer claims: %w", err)
	}
	if claims.Sub != f.Creds.ApiKeyId || claims.Iss != "cdp" {
		return fmt.Errorf("unexpected bearer subject %q issuer %q", claims.Sub, claims.Iss)
	}
	expectedUri := fmt.Sprintf("%s %s%s", r.Method, r.Host, r.URL.Path)
	if len(claims.Uris) != 1 || claims.Uris[0] != expectedUri {
		return fmt.Errorf("bearer uris %v do not match %s", claims.Uris, expectedUri)
	}
	return nil
}

func (f *FakeCDPServer) verifyWalletAuth(r *http.Request, body []byte) error {
	token := r.Header.Get("X-Wallet-Auth")
	if token == "" {
		return fmt.Errorf("missing wallet auth token")
	}
	payload, err := jws.Verify([]byte(token), jws.WithKey(jwa.ES256(), f.Creds.WalletPublicKey))
	if err != nil {
		return fmt.Errorf("invalid wallet auth token: %w", err)
	}

	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return fmt.Errorf("invalid wallet auth claims: %w", err)
	}
	sum := sha256.Sum256(body)
	if claims["reqHash"] != hex.EncodeToString(sum[:]) {
		return fmt.Errorf("wallet auth reqHash does not match body")
	}

	f.mu.Lock()
	f.lastWalletClaims = claims
	f.mu.Unlock()
	return nil
}

func writeCDPError(w http.ResponseWriter, status int, errorType, message string) {
	writeJSON(w, status, map[string]string{
		"errorType":     errorType,
		"errorMessage":  message,
		"correlationId": "test-correlation-id",
	})
}
