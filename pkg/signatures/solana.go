package signatures

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const Ed25519SignatureLength = 64

// SolanaEncoding names a backend's native ed25519 signature encoding. Ed25519 signatures
// are not recoverable and are passed through as returned, so verifiers must decode
// them per backend.
type SolanaEncoding string

const (
	// SolanaEncodingBase58 is used by cdp.
	SolanaEncodingBase58 SolanaEncoding = "base58"
	// SolanaEncodingHex is lowercase hex of r || s without a 0x prefix, used by turnkey.
	SolanaEncodingHex SolanaEncoding = "hex"
)

// SolanaSignatureFromParts joins hex r and s halves into the hex r || s encoding.
func SolanaSignatureFromParts(r, s string) (string, error) {
	joined := strings.ToLower(strings.TrimPrefix(r, "0x") + strings.TrimPrefix(s, "0x"))
	if _, err := decodeSolanaSignature(joined, SolanaEncodingHex); err != nil {
		return "", err
	}
	return joined, nil
}

// VerifySolanaSignature checks signature over message against a base58 Solana address.
func VerifySolanaSignature(message, signature string, encoding SolanaEncoding, address string) (bool, error) {
	pub, err := base58.Decode(address)
	if err != nil {
		return false, fmt.Errorf("invalid solana address: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("solana address must decode to %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	sig, err := decodeSolanaSignature(signature, encoding)
	if err != nil {
		return false, err
	}
	return ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig), nil
}

func decodeSolanaSignature(signature string, encoding SolanaEncoding) ([]byte, error) {
	var (
		raw []byte
		err error
	)
	switch encoding {
	case SolanaEncodingBase58:
		raw, err = base58.Decode(signature)
	case SolanaEncodingHex:
		raw, err = hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	default:
		return nil, fmt.Errorf("unsupported solana signature encoding %q", encoding)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s ed25519 signature: %w", encoding, err)
	}
	if len(raw) != Ed25519SignatureLength {
		return nil, fmt.Errorf("ed25519 signature must be %d bytes, got %d", Ed25519SignatureLength, len(raw))
	}
	return raw, nil
}
