package testutil

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
)

// EthereumAccount is a local secp256k1 key standing in for a custodied account.
type EthereumAccount struct {
	PrivateKey *ecdsa.PrivateKey
	Address    string
}

func NewEthereumAccount(t *testing.T) *EthereumAccount {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return &EthereumAccount{
		PrivateKey: key,
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
	}
}

// SolanaAccount is a local ed25519 key standing in for a custodied account.
type SolanaAccount struct {
	PrivateKey ed25519.PrivateKey
	Address    string
}

func NewSolanaAccount(t *testing.T) *SolanaAccount {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &SolanaAccount{
		PrivateKey: priv,
		Address:    base58.Encode(pub),
	}
}

// CDPCredentials holds a generated API key and wallet secret in the formats CDP issues them.
type CDPCredentials struct {
	ApiKeyId     string
	ApiKeySecret string
	WalletSecret string

	ApiPublicKey    ed25519.PublicKey
	WalletPublicKey *ecdsa.PublicKey
}

func NewCDPCredentials(t *testing.T) *CDPCredentials {
	apiPub, apiPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	walletKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(walletKey)
	require.NoError(t, err)

	return &CDPCredentials{
		ApiKeyId:        "organizations/test-org/apiKeys/test-key",
		ApiKeySecret:    base64.StdEncoding.EncodeToString(apiPriv),
		WalletSecret:    base64.StdEncoding.EncodeToString(der),
		ApiPublicKey:    apiPub,
		WalletPublicKey: &walletKey.PublicKey,
	}
}

// TurnkeyCredentials holds a generated P-256 API key pair in Turnkey's hex formats.
type TurnkeyCredentials struct {
	OrganizationId string
	ApiPrivateKey  string
	ApiPublicKey   string
}

func NewTurnkeyCredentials(t *testing.T) *TurnkeyCredentials {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return &TurnkeyCredentials{
		OrganizationId: "org-00000000-0000-0000-0000-000000000000",
		ApiPrivateKey:  hex.EncodeToString(key.D.FillBytes(make([]byte, 32))),
		ApiPublicKey:   hex.EncodeToString(elliptic.MarshalCompressed(elliptic.P256(), key.X, key.Y)),
	}
}
