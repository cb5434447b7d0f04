package testutil

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
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

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
)

// TurnkeySignResult overrides the r, s and v returned by FakeTurnkeyServer.
type TurnkeySignResult struct {
	R string `json:"r"`
	S string `json:"s"`
	V string `json:"v"`
}

// FakeTurnkeyServer implements whoami and sign_raw_payload with local keys. Every
// request must carry a valid X-Stamp for the configured API key.
type FakeTurnkeyServer struct {
	Server   *httptest.Server
	Creds    *TurnkeyCredentials
	Ethereum *EthereumAccount
	Solana   *SolanaAccount

	mu              sync.Mutex
	delay           time.Duration
	signFailure     string
	whoamiStatus    int
	activityStatus  string
	activityMessage string
	omitV           bool
	fixedResult     *TurnkeySignResult
	onSign          func()
	lastSignRequest map[string]any

	whoamiCalls atomic.Int32
	signCalls   atomic.Int32
}

// NewFakeTurnkeyServer starts a server that closes with the test. solana may be nil.
func NewFakeTurnkeyServer(t *testing.T, creds *TurnkeyCredentials, ethereum *EthereumAccount, solana *SolanaAccount) *FakeTurnkeyServer {
	f := &FakeTurnkeyServer{
		Creds:    creds,
		Ethereum: ethereum,
		Solana:   solana,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /public/v1/query/whoami", f.handleWhoami)
	mux.HandleFunc("POST /public/v1/submit/sign_raw_payload", f.handleSignRawPayload)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeTurnkeyServer) URL() string {
	return f.Server.URL
}

func (f *FakeTurnkeyServer) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// SetSignFailure makes sign_raw_payload fail with a 500 carrying message.
func (f *FakeTurnkeyServer) SetSignFailure(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signFailure = message
}

// SetWhoamiStatus forces whoami to fail with status. Zero clears it.
func (f *FakeTurnkeyServer) SetWhoamiStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.whoamiStatus = status
}

// SetActivityStatus makes sign activities finish with status instead of completed.
func (f *FakeTurnkeyServer) SetActivityStatus(status, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activityStatus = status
	f.activityMessage = message
}

// SetOmitV drops the recovery id from secp256k1 results.
func (f *FakeTurnkeyServer) SetOmitV(omit bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omitV = omit
}

// SetFixedResult returns result for every sign request instead of a real signature.
func (f *FakeTurnkeyServer) SetFixedResult(result *TurnkeySignResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fixedResult = result
}

func (f *FakeTurnkeyServer) SetOnSign(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSign = fn
}

func (f *FakeTurnkeyServer) WhoamiCalls() int {
	return int(f.whoamiCalls.Load())
}

func (f *FakeTurnkeyServer) SignCalls() int {
	return int(f.signCalls.Load())
}

// LastSignRequest returns the decoded body of the most recent sign request.
func (f *FakeTurnkeyServer) LastSignRequest() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSignRequest
}

func (f *FakeTurnkeyServer) handleWhoami(w http.ResponseWriter, r *http.Request) {
	f.whoamiCalls.Add(1)
	body, err := readBody(r)
	if err != nil {
		writeTurnkeyError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := f.verifyStamp(r, body); err != nil {
		writeTurnkeyError(w, http.StatusUnauthorized, err.Error())
		return
	}

	f.mu.Lock()
	status := f.whoamiStatus
	f.mu.Unlock()
	if status != 0 {
		writeTurnkeyError(w, status, "whoami failed")
		return
	}

	var req struct {
		OrganizationId string `json:"organizationId"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeTurnkeyError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"organizationId":   f.Creds.OrganizationId,
		"organizationName": "bench",
		"userId":           "user-1",
		"username":         "bench-api-key",
	})
}

func (f *FakeTurnkeyServer) handleSignRawPayload(w http.ResponseWriter, r *http.Request) {
	f.signCalls.Add(1)
	body, err := readBody(r)
	if err != nil {
		writeTurnkeyError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := f.verifyStamp(r, body); err != nil {
		writeTurnkeyError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req struct {
		Type           string `json:"type"`
		OrganizationId string `json:"organizationId"`
		Parameters     struct {
			SignWith     string `json:"signWith"`
			Payload      string `json:"payload"`
			Encoding     string `json:"encoding"`
			HashFunction string `json:"hashFunction"`
		} `json:"parameters"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeTurnkeyError(w, http.StatusBadRequest, err.Error())
		return
	}
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)

	f.mu.Lock()
	f.lastSignRequest = raw
	delay, failure, onSign := f.delay, f.signFailure, f.onSign
	status, statusMessage := f.activityStatus, f.activityMessage
	omitV, fixed := f.omitV, f.fixedResult
	f.mu.Unlock()

	if onSign != nil {
		onSign()
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	if failure != "" {
		writeTurnkeyError(w, http.StatusInternalServerError, failure)
		return
	}
	if req.OrganizationId != f.Creds.OrganizationId {
		writeTurnkeyError(w, http.StatusForbidden, "organization mismatch")
		return
	}
	if req.Type != "ACTIVITY_TYPE_SIGN_RAW_PAYLOAD_V2" || req.Parameters.Encoding != "PAYLOAD_ENCODING_HEXADECIMAL" {
		writeTurnkeyError(w, http.StatusBadRequest, "unsupported activity")
		return
	}

	activityId := uuid.New().String()
	if status != "" {
		act := map[string]any{"id": activityId, "status": status, "type": req.Type}
		if statusMessage != "" {
			act["failure"] = map[string]any{"code": 7, "message": statusMessage}
		}
		writeJSON(w, http.StatusOK, map[string]any{"activity": act})
		return
	}

	payload, err := hex.DecodeString(req.Parameters.Payload)
	if err != nil {
		writeTurnkeyError(w, http.StatusBadRequest, "payload must be hex")
		return
	}

	var result *TurnkeySignResult
	switch {
	case fixed != nil:
		result = fixed
	case strings.EqualFold(req.Parameters.SignWith, f.Ethereum.Address):
		if req.Parameters.HashFunction != "HASH_FUNCTION_NO_OP" || len(payload) != 32 {
			writeTurnkeyError(w, http.StatusBadRequest, "secp256k1 payload must be a 32 byte digest")
			return
		}
		sig, err := crypto.Sign(payload, f.Ethereum.PrivateKey)
		if err != nil {
			writeTurnkeyError(w, http.StatusInternalServerError, err.Error())
			return
		}
		result = &TurnkeySignResult{
			R: hex.EncodeToString(sig[:32]),
			S: hex.EncodeToString(sig[32:64]),
			V: fmt.Sprintf("%02x", sig[64]),
		}
		if omitV {
			result.V = ""
		}
	case f.Solana != nil && req.Parameters.SignWith == f.Solana.Address:
		if req.Parameters.HashFunction != "HASH_FUNCTION_NOT_APPLICABLE" {
			writeTurnkeyError(w, http.StatusBadRequest, "ed25519 keys require HASH_FUNCTION_NOT_APPLICABLE")
			return
		}
		sig := ed25519.Sign(f.Solana.PrivateKey, payload)
		result = &TurnkeySignResult{
			R: strings.ToUpper(hex.EncodeToString(sig[:32])),
			S: strings.ToUpper(hex.EncodeToString(sig[32:])),
		}
	default:
		writeTurnkeyError(w, http.StatusNotFound, fmt.Sprintf("no private key or wallet account for %s", req.Parameters.SignWith))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"activity": map[string]any{
			"id":     activityId,
			"status": "ACTIVITY_STATUS_COMPLETED",
			"type":   req.Type,
			"result": map[string]any{"signRawPayloadResult": result},
		},
	})
}

func (f *FakeTurnkeyServer) verifyStamp(r *http.Request, body []byte) error {
	st, err := VerifyTurnkeyStamp(r.Header.Get("X-Stamp"), body)
	if err != nil {
		return err
	}
	if st.PublicKey != f.Creds.ApiPublicKey {
		return fmt.Errorf("stamp public key %s is not the configured api key", st.PublicKey)
	}
	return nil
}

// TurnkeyStamp is the decoded X-Stamp header.
type TurnkeyStamp struct {
	PublicKey string `json:"publicKey"`
	Scheme    string `json:"scheme"`
	Signature string `json:"signature"`
}

// VerifyTurnkeyStamp decodes an X-Stamp header and checks its signature over body.
func VerifyTurnkeyStamp(header string, body []byte) (*TurnkeyStamp, error) {
	if header == "" {
		return nil, fmt.Errorf("missing stamp")
	}
	raw, err := base64.RawURLEncoding.DecodeString(header)
	if err != nil {
		return nil, fmt.Errorf("stamp is not base64url: %w", err)
	}
	var st TurnkeyStamp
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("stamp is not json: %w", err)
	}
	if st.Scheme != "SIGNATURE_SCHEME_TK_API_P256" {
		return nil, fmt.Errorf("unexpected stamp scheme %q", st.Scheme)
	}
	pubBytes, err := hex.DecodeString(st.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("stamp public key is not hex: %w", err)
	}
	x, y := elliptic.UnmarshalCompressed(elliptic.P256(), pubBytes)
	if x == nil {
		return nil, fmt.Errorf("stamp public key is not a compressed P-256 point")
	}
	sig, err := hex.DecodeString(st.Signature)
	if err != nil {
		return nil, fmt.Errorf("stamp signature is not hex: %w", err)
	}
	digest := sha256.Sum256(body)
	if !ecdsa.VerifyASN1(&ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, digest[:], sig) {
		return nil, fmt.Errorf("stamp signature does not verify")
	}
	return &st, nil
}

func writeTurnkeyError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"code": 2, "message": message})
}
