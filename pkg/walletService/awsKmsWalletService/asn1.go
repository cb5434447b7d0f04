package awsKmsWalletService

import (
	"crypto/ecdsa"
	"encoding/asn1"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

type asn1EcSig struct {
	R asn1.RawValue
	S asn1.RawValue
}

type asn1EcPublicKey struct {
	EcPublicKeyInfo asn1EcPublicKeyInfo
	PublicKey       asn1.BitString
}

type asn1EcPublicKeyInfo struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.ObjectIdentifier
}

// parseECDSAPublicKey parses the DER SubjectPublicKeyInfo returned by KMS GetPublicKey.
// crypto/x509 cannot be used because it does not know the secp256k1 curve OID.
func parseECDSAPublicKey(derBytes []byte) (*ecdsa.PublicKey, error) {
	var asn1pubk asn1EcPublicKey
	if _, err := asn1.Unmarshal(derBytes, &asn1pubk); err != nil {
		return nil, fmt.Errorf("failed to parse ASN.1 public key: %w", err)
	}
	return crypto.UnmarshalPubkey(asn1pubk.PublicKey.Bytes)
}
