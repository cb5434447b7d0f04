package signatures

import (
	"bytes"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// EthereumSignatureLength is len(r) + len(s) + len(v).
	EthereumSignatureLength = 65

	// DefaultRecoveryV is used when a backend returns r and s without a recovery id.
	// It corresponds to recovery id 0. Roughly half of such signatures will not
	// recover to the signer; verifiers should try both 27 and 28 for those backends.
	DefaultRecoveryV byte = 27
)

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Rsh(secp256k1N, 1)
)

// HashPersonalMessage returns the EIP-191 digest of message, as signed by personal_sign.
func HashPersonalMessage(message string) []byte {
	return accounts.TextHash([]byte(message))
}

// NormalizeEthereumSignature converts a 65 byte hex signature into the canonical
// 0x-prefixed lowercase form with v in {27, 28}.
func NormalizeEthereumSignature(signature string) (string, error) {
	sig, err := decodeHex(signature)
	if err != nil {
		return "", fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != EthereumSignatureLength {
		return "", fmt.Errorf("signature must be %d bytes, got %d", EthereumSignatureLength, len(sig))
	}

	v, err := normalizeV(sig[64])
	if err != nil {
		return "", err
	}
	sig[64] = v
	return hexutil.Encode(sig), nil
}

// EthereumSignatureFromParts assembles the canonical signature from hex r, s and v.
// An empty v means the backend did not return one and DefaultRecoveryV is used.
func EthereumSignatureFromParts(r, s, v string) (string, error) {
	rBytes, err := decodeScalar("r", r)
	if err != nil {
		return "", err
	}
	sBytes, err := decodeScalar("s", s)
	if err != nil {
		return "", err
	}

	recoveryV := DefaultRecoveryV
	if strings.TrimPrefix(v, "0x") != "" {
		vBytes, err := decodeHex(v)
		if err != nil {
			return "", fmt.Errorf("invalid v hex: %w", err)
		}
		if len(vBytes) != 1 {
			return "", fmt.Errorf("v must be 1 byte, got %d", len(vBytes))
		}
		if recoveryV, err = normalizeV(vBytes[0]); err != nil {
			return "", err
		}
	}

	return encodeSignature(rBytes, sBytes, recoveryV), nil
}

// EthereumSignatureFromBigInts assembles the canonical signature from integer r and s and a
// recovery id of 0 or 1.
func EthereumSignatureFromBigInts(r, s *big.Int, recoveryId byte) (string, error) {
	if r == nil || s == nil {
		return "", fmt.Errorf("r and s are required")
	}
	if r.BitLen() > 256 || s.BitLen() > 256 {
		return "", fmt.Errorf("r and s must fit in 32 bytes")
	}
	v, err := normalizeV(recoveryId)
	if err != nil {
		return "", err
	}
	return encodeSignature(r.FillBytes(make([]byte, 32)), s.FillBytes(make([]byte, 32)), v), nil
}

// CanonicalizeLowS returns s, or N - s when s is in the upper half of the curve order.
// Ethereum rejects high-s signatures (EIP-2).
func CanonicalizeLowS(s *big.Int) *big.Int {
	if s.Cmp(secp256k1HalfN) > 0 {
		return new(big.Int).Sub(secp256k1N, s)
	}
	return new(big.Int).Set(s)
}

// FindRecoveryId returns the recovery id (0 or 1) for which (r, s) over digest recovers to expected.
// Recovery ids 2 and 3 are not representable in Ethereum's v and are not tried.
func FindRecoveryId(digest []byte, r, s *big.Int, expected common.Address) (byte, error) {
	if len(digest) != 32 {
		return 0, fmt.Errorf("digest must be exactly 32 bytes, got %d", len(digest))
	}
	sig := make([]byte, EthereumSignatureLength)
	r.FillBytes(sig[0:32])
	s.FillBytes(sig[32:64])

	for recoveryId := byte(0); recoveryId < 2; recoveryId++ {
		sig[64] = recoveryId
		pub, err := crypto.SigToPub(digest, sig)
		if err != nil {
			continue
		}
		if crypto.PubkeyToAddress(*pub) == expected {
			return recoveryId, nil
		}
	}
	return 0, fmt.Errorf("could not determine valid recovery ID for address %s", expected.Hex())
}

// RecoverAddress returns the address that produced signature over the EIP-191 digest of message.
func RecoverAddress(message string, signature string) (common.Address, error) {
	sig, err := decodeHex(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(sig) != EthereumSignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", EthereumSignatureLength, len(sig))
	}
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pub, err := crypto.SigToPub(HashPersonalMessage(message), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyEthereumSignature reports whether signature over message recovers to address.
func VerifyEthereumSignature(message, signature, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("invalid address: %s", address)
	}
	recovered, err := RecoverAddress(message, signature)
	if err != nil {
		return false, err
	}
	return bytes.Equal(recovered.Bytes(), common.HexToAddress(address).Bytes()), nil
}

func normalizeV(v byte) (byte, error) {
	switch v {
	case 0, 1:
		return v + 27, nil
	case 27, 28:
		return v, nil
	default:
		return 0, fmt.Errorf("unsupported recovery value v=%d", v)
	}
}

func encodeSignature(r, s []byte, v byte) string {
	sig := make([]byte, 0, EthereumSignatureLength)
	sig = append(sig, r...)
	sig = append(sig, s...)
	sig = append(sig, v)
	return hexutil.Encode(sig)
}

// decodeScalar decodes a hex value of at most 32 bytes, left padding shorter values.
func decodeScalar(name, value string) ([]byte, error) {
	raw, err := decodeHex(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s hex: %w", name, err)
	}
	if len(raw) == 0 || len(raw) > 32 {
		return nil, fmt.Errorf("%s must be 1 to 32 bytes, got %d", name, len(raw))
	}
	return common.LeftPadBytes(raw, 32), nil
}

func decodeHex(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "0x") && !strings.HasPrefix(value, "0X") {
		value = "0x" + value
	}
	if len(value)%2 != 0 {
		value = "0x0" + value[2:]
	}
	return hexutil.Decode(value)
}
