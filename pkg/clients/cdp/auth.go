package cdp

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jws"
	"github.com/lestrrat-go/jwx/v3/jwt"
)

const (
	jwtIssuer   = "cdp"
	jwtAudience = "cdp_service"
	jwtLifetime = 2 * time.Minute
)

// apiKeySigner signs the bearer token that authenticates every request.
type apiKeySigner struct {
	keyId string
	key   any
	alg   jwa.SignatureAlgorithm
}

// parseApiKeySecret accepts either a base64 Ed25519 key (64 bytes, seed || public key)
// or a PEM encoded EC P-256 key.
func parseApiKeySecret(keyId, secret string) (*apiKeySigner, error) {
	secret = strings.ReplaceAll(strings.TrimSpace(secret), `\n`, "\n")

	if strings.Contains(secret, "-----BEGIN") {
		block, _ := pem.Decode([]byte(secret))
		if block == nil {
			return nil, fmt.Errorf("failed to decode PEM api key secret")
		}
		key, err := parseECPrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse EC api key secret: %w", err)
		}
		return &apiKeySigner{keyId: keyId, key: key, alg: jwa.ES256()}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("api key secret is neither PEM nor base64: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("ed25519 api key secret must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return &apiKeySigner{keyId: keyId, key: ed25519.PrivateKey(raw), alg: jwa.EdDSA()}, nil
}

func (s *apiKeySigner) token(uri string, now time.Time) (string, error) {
	tok, err := jwt.NewBuilder().
		Subject(s.keyId).
		Issuer(jwtIssuer).
		Audience([]string{jwtAudience}).
		NotBefore(now).
		Expiration(now.Add(jwtLifetime)).
		Claim("uris", []string{uri}).
		Build()
	if err != nil {
		return "", fmt.Errorf("failed to build api key jwt: %w", err)
	}

	hdrs := jws.NewHeaders()
	if err := hdrs.Set(jws.KeyIDKey, s.keyId); err != nil {
		return "", err
	}
	if err := hdrs.Set("nonce", nonce()); err != nil {
		return "", err
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(s.alg, s.key, jws.WithProtectedHeaders(hdrs)))
	if err != nil {
		return "", fmt.Errorf("failed to sign api key jwt: %w", err)
	}
	return string(signed), nil
}

// walletSigner signs the X-Wallet-Auth token required by endpoints that use account keys.
type walletSigner struct {
	key *ecdsa.PrivateKey
}

// parseWalletSecret decodes a base64 DER (PKCS8 or SEC1) EC P-256 key.
func parseWalletSecret(secret string) (*walletSigner, error) {
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(secret))
	if err != nil {
		return nil, fmt.Errorf("wallet secret must be base64 DER: %w", err)
	}
	key, err := parseECPrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet secret: %w", err)
	}
	return &walletSigner{key: key}, nil
}

func (s *walletSigner) token(uri string, body []byte, now time.Time) (string, error) {
	b := jwt.NewBuilder().
		IssuedAt(now).
		NotBefore(now).
		JwtID(uuid.NewString()).
		Claim("uris", []string{uri})
	if len(body) > 0 {
		sum := sha256.Sum256(body)
		b = b.Claim("reqHash", hex.EncodeToString(sum[:]))
	}
	tok, err := b.Build()
	if err != nil {
		return "", fmt.Errorf("failed to build wallet jwt: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.ES256(), s.key))
	if err != nil {
		return "", fmt.Errorf("failed to sign wallet jwt: %w", err)
	}
	return string(signed), nil
}

func parseECPrivateKey(der []byte) (*ecdsa.PrivateKey, error) {
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("expected EC private key, got %T", parsed)
	}
	return key, nil
}

func nonce() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
