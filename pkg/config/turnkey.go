package config

import (
	"encoding/hex"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for the Turnkey backend
const (
	EnvTurnkeyOrganizationId        = "TURNKEY_ORGANIZATION_ID"
	EnvTurnkeyApiPrivateKey         = "TURNKEY_API_PRIVATE_KEY"
	EnvTurnkeyApiPublicKey          = "TURNKEY_API_PUBLIC_KEY"
	EnvTurnkeyEthereumWalletAddress = "TURNKEY_ETHEREUM_WALLET_ADDRESS"
	EnvTurnkeySolanaWalletAddress   = "TURNKEY_SOLANA_WALLET_ADDRESS"
	EnvTurnkeyBaseUrl               = "TURNKEY_BASE_URL"
)

const DefaultTurnkeyBaseUrl = "https://api.turnkey.com"

type TurnkeyConfig struct {
	OrganizationId string `json:"organizationId" yaml:"organizationId"`
	ApiPrivateKey  string `json:"apiPrivateKey" yaml:"apiPrivateKey"`
	ApiPublicKey   string `json:"apiPublicKey" yaml:"apiPublicKey"`
	BaseUrl        string `json:"baseUrl" yaml:"baseUrl"`

	WalletAddresses `yaml:",inline"`
}

func LoadTurnkeyConfigFromEnv(lookup LookupFunc) *TurnkeyConfig {
	cfg := &TurnkeyConfig{
		OrganizationId:  lookupString(lookup, EnvTurnkeyOrganizationId),
		ApiPrivateKey:   lookupString(lookup, EnvTurnkeyApiPrivateKey),
		ApiPublicKey:    lookupString(lookup, EnvTurnkeyApiPublicKey),
		BaseUrl:         lookupString(lookup, EnvTurnkeyBaseUrl),
		WalletAddresses: loadWalletAddresses(lookup, EnvTurnkeyEthereumWalletAddress, EnvTurnkeySolanaWalletAddress),
	}
	if cfg.BaseUrl == "" {
		cfg.BaseUrl = DefaultTurnkeyBaseUrl
	}
	return cfg
}

func (c *TurnkeyConfig) credentials() []requiredValue {
	return []requiredValue{
		{key: EnvTurnkeyOrganizationId, value: c.OrganizationId},
		{key: EnvTurnkeyApiPrivateKey, value: c.ApiPrivateKey},
		{key: EnvTurnkeyApiPublicKey, value: c.ApiPublicKey},
	}
}

func (c *TurnkeyConfig) MissingCredentialKeys() []string {
	return missingKeys(c.credentials()...)
}

func (c *TurnkeyConfig) MissingAddressKeys() []string {
	return missingKeys(requiredValue{key: EnvTurnkeyEthereumWalletAddress, value: c.EthereumWalletAddress})
}

func (c *TurnkeyConfig) Validate() error {
	var allErrors field.ErrorList
	allErrors = append(allErrors, requiredErrors(c.credentials()...)...)
	allErrors = append(allErrors, requiredErrors(requiredValue{key: EnvTurnkeyEthereumWalletAddress, value: c.EthereumWalletAddress})...)
	allErrors = append(allErrors, ethereumAddressErrors(EnvTurnkeyEthereumWalletAddress, c.EthereumWalletAddress)...)

	// API keys are hex: a 32 byte P-256 scalar and a 33 byte compressed public key
	if c.ApiPrivateKey != "" && !isHex(c.ApiPrivateKey) {
		allErrors = append(allErrors, field.Invalid(field.NewPath(EnvTurnkeyApiPrivateKey), "<redacted>", "must be hex encoded"))
	}
	if c.ApiPublicKey != "" && !isHex(c.ApiPublicKey) {
		allErrors = append(allErrors, field.Invalid(field.NewPath(EnvTurnkeyApiPublicKey), c.ApiPublicKey, "must be hex encoded"))
	}
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

func isHex(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}
