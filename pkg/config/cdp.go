package config

import "k8s.io/apimachinery/pkg/util/validation/field"

// Environment variable names for the Coinbase Developer Platform backend
const (
	EnvCDPApiKeyId              = "CDP_API_KEY_ID"
	EnvCDPApiKeySecret          = "CDP_API_KEY_SECRET"
	EnvCDPWalletSecret          = "CDP_WALLET_SECRET"
	EnvCDPEthereumWalletAddress = "CDP_ETHEREUM_WALLET_ADDRESS"
	EnvCDPSolanaWalletAddress   = "CDP_SOLANA_WALLET_ADDRESS"
	EnvCDPBaseUrl               = "CDP_BASE_URL"
)

const DefaultCDPBaseUrl = "https://api.cdp.coinbase.com"

type CDPConfig struct {
	ApiKeyId     string `json:"apiKeyId" yaml:"apiKeyId"`
	ApiKeySecret string `json:"apiKeySecret" yaml:"apiKeySecret"`
	WalletSecret string `json:"walletSecret" yaml:"walletSecret"`
	BaseUrl      string `json:"baseUrl" yaml:"baseUrl"`

	WalletAddresses `yaml:",inline"`
}

func LoadCDPConfigFromEnv(lookup LookupFunc) *CDPConfig {
	cfg := &CDPConfig{
		ApiKeyId:        lookupString(lookup, EnvCDPApiKeyId),
		ApiKeySecret:    lookupString(lookup, EnvCDPApiKeySecret),
		WalletSecret:    lookupString(lookup, EnvCDPWalletSecret),
		BaseUrl:         lookupString(lookup, EnvCDPBaseUrl),
		WalletAddresses: loadWalletAddresses(lookup, EnvCDPEthereumWalletAddress, EnvCDPSolanaWalletAddress),
	}
	if cfg.BaseUrl == "" {
		cfg.BaseUrl = DefaultCDPBaseUrl
	}
	return cfg
}

func (c *CDPConfig) credentials() []requiredValue {
	return []requiredValue{
		{key: EnvCDPApiKeyId, value: c.ApiKeyId},
		{key: EnvCDPApiKeySecret, value: c.ApiKeySecret},
		{key: EnvCDPWalletSecret, value: c.WalletSecret},
	}
}

// MissingCredentialKeys returns every absent credential key.
func (c *CDPConfig) MissingCredentialKeys() []string {
	return missingKeys(c.credentials()...)
}

// MissingAddressKeys returns the required chain address key when it is absent.
func (c *CDPConfig) MissingAddressKeys() []string {
	return missingKeys(requiredValue{key: EnvCDPEthereumWalletAddress, value: c.EthereumWalletAddress})
}

func (c *CDPConfig) Validate() error {
	var allErrors field.ErrorList
	allErrors = append(allErrors, requiredErrors(c.credentials()...)...)
	allErrors = append(allErrors, requiredErrors(requiredValue{key: EnvCDPEthereumWalletAddress, value: c.EthereumWalletAddress})...)
	allErrors = append(allErrors, ethereumAddressErrors(EnvCDPEthereumWalletAddress, c.EthereumWalletAddress)...)
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
