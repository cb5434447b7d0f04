package turnkey

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

const headerStamp = "X-Stamp"

type stamp struct {
	PublicKey string `json:"publicKey"`
	Scheme    string `json:"scheme"`
	Signature string `json:"signature"`
}

// apiKeyStamper signs request bodies with a Turnkey API key.
type apiKeyStamper struct {
	publicKey  string
	privateKey *ecdsa.PrivateKey
}

// newApiKeyStamper parses the hex P-256 private scalar and checks it matches the
// configured compressed public key.
func newApiKeyStamper(publicKeyHex, privateKeyHex string) (*apiKeyStamper, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("api private key must be hex: %w", err)
	}
	if len(raw) == 0 || len(raw) > 32 {
		return nil, fmt.Errorf("api private key must be at most 32 bytes, got %d", len(raw))
	}

	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("api private key is not a valid P-256 scalar")
	}
	priv := &ecdsa.PrivateKey{D: d}
	priv.PublicKey.Curve = curve
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(d.FillBytes(make([]byte, 32)))

	derived := hex.EncodeToString(elliptic.MarshalCompressed(curve, priv.PublicKey.X, priv.PublicKey.Y))
	expected := strings.ToLower(strings.TrimPrefix(publicKeyHex, "0x"))
	if derived != expected {
		return nil, fmt.Errorf("api public key %s does not match api private key", publicKeyHex)
	}

	return &apiKeyStamper{publicKey: derived, privateKey: priv}, nil
}

// stamp returns the X-Stamp header value for body: base64url JSON carrying a DER
// ECDSA signature over SHA-256(body).
func (s *apiKeyStamper) stamp(body []byte) (string, error) {
	digest := sha256.Sum256(body)
	sig, err := ecdsa.SignASN1(rand.Reader, s.privateKey, digest[:])
	if err != nil {
		return "", fmt.Errorf("failed to sign request body: %w", err)
	}

	encoded, err := json.Marshal(&stamp{
		PublicKey: s.publicKey,
		Scheme:    stampScheme,
		Signature: hex.EncodeToString(sig),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal stamp: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(encoded), nil
}
