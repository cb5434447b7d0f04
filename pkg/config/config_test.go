package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEthereumAddress = "0x71C7656EC7ab88b098defB751B7401B5f6d8976F"

func Test_LookupString(t *testing.T) {
	lookup := MapLookup(map[string]string{
		"PADDED": "  value \n",
		"EMPTY":  "",
	})
	assert.Equal(t, "value", lookupString(lookup, "PADDED"))
	assert.Equal(t, "", lookupString(lookup, "EMPTY"))
	assert.Equal(t, "", lookupString(lookup, "ABSENT"))
}

func Test_LookupStringFallsBackToEnv(t *testing.T) {
	t.Setenv("WALLET_BENCH_TEST_KEY", "from-env")
	assert.Equal(t, "from-env", lookupString(nil, "WALLET_BENCH_TEST_KEY"))
}

func Test_CDPConfig(t *testing.T) {
	t.Run("loads every key", func(t *testing.T) {
		cfg := LoadCDPConfigFromEnv(MapLookup(map[string]string{
			EnvCDPApiKeyId:              "key-id",
			EnvCDPApiKeySecret:          "api-secret",
			EnvCDPWalletSecret:          "wallet-secret",
			EnvCDPEthereumWalletAddress: testEthereumAddress,
			EnvCDPSolanaWalletAddress:   "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM",
			EnvCDPBaseUrl:               "http://localhost:8080",
		}))
		assert.Equal(t, "key-id", cfg.ApiKeyId)
		assert.Equal(t, "api-secret", cfg.ApiKeySecret)
		assert.Equal(t, "wallet-secret", cfg.WalletSecret)
		assert.Equal(t, testEthereumAddress, cfg.EthereumWalletAddress)
		assert.Equal(t, "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM", cfg.SolanaWalletAddress)
		assert.Equal(t, "http://localhost:8080", cfg.BaseUrl)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("defaults the base url", func(t *testing.T) {
		cfg := LoadCDPConfigFromEnv(MapLookup(nil))
		assert.Equal(t, DefaultCDPBaseUrl, cfg.BaseUrl)
	})

	t.Run("reports every missing key", func(t *testing.T) {
		cfg := LoadCDPConfigFromEnv(MapLookup(map[string]string{
			EnvCDPApiKeyId: "key-id",
		}))
		assert.Equal(t, []string{EnvCDPApiKeySecret, EnvCDPWalletSecret}, cfg.MissingCredentialKeys())
		assert.Equal(t, []string{EnvCDPEthereumWalletAddress}, cfg.MissingAddressKeys())

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), EnvCDPApiKeySecret)
		assert.Contains(t, err.Error(), EnvCDPWalletSecret)
		assert.Contains(t, err.Error(), EnvCDPEthereumWalletAddress)
		assert.NotContains(t, err.Error(), EnvCDPSolanaWalletAddress)
	})

	t.Run("solana address is optional", func(t *testing.T) {
		cfg := &CDPConfig{
			ApiKeyId:        "key-id",
			ApiKeySecret:    "api-secret",
			WalletSecret:    "wallet-secret",
			WalletAddresses: WalletAddresses{EthereumWalletAddress: testEthereumAddress},
		}
		assert.NoError(t, cfg.Validate())
		assert.Empty(t, cfg.MissingAddressKeys())
	})

	t.Run("rejects a malformed ethereum address", func(t *testing.T) {
		cfg := &CDPConfig{
			ApiKeyId:        "key-id",
			ApiKeySecret:    "api-secret",
			WalletSecret:    "wallet-secret",
			WalletAddresses: WalletAddresses{EthereumWalletAddress: "0x1234"},
		}
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "20 byte hex address")
	})
}

func Test_TurnkeyConfig(t *testing.T) {
	valid := func() *TurnkeyConfig {
		return &TurnkeyConfig{
			OrganizationId:  "org-1",
			ApiPrivateKey:   "0f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0",
			ApiPublicKey:    "02f1e2d3c4b5a69788796a5b4c3d2e1f00f1e2d3c4b5a69788796a5b4c3d2e1f0",
			WalletAddresses: WalletAddresses{EthereumWalletAddress: testEthereumAddress},
		}
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("loads from lookup with default base url", func(t *testing.T) {
		cfg := LoadTurnkeyConfigFromEnv(MapLookup(map[string]string{
			EnvTurnkeyOrganizationId:        "org-1",
			EnvTurnkeyApiPrivateKey:         "aa",
			EnvTurnkeyApiPublicKey:          "bb",
			EnvTurnkeyEthereumWalletAddress: testEthereumAddress,
		}))
		assert.Equal(t, "org-1", cfg.OrganizationId)
		assert.Equal(t, DefaultTurnkeyBaseUrl, cfg.BaseUrl)
		assert.Empty(t, cfg.SolanaWalletAddress)
		assert.Empty(t, cfg.MissingCredentialKeys())
	})

	t.Run("reports missing credentials", func(t *testing.T) {
		cfg := LoadTurnkeyConfigFromEnv(MapLookup(map[string]string{}))
		assert.Equal(t, []string{EnvTurnkeyOrganizationId, EnvTurnkeyApiPrivateKey, EnvTurnkeyApiPublicKey}, cfg.MissingCredentialKeys())
		assert.Equal(t, []string{EnvTurnkeyEthereumWalletAddress}, cfg.MissingAddressKeys())
		assert.Error(t, cfg.Validate())
	})

	t.Run("rejects non hex keys without echoing the private key", func(t *testing.T) {
		cfg := valid()
		cfg.ApiPrivateKey = "not-hex-secret"
		cfg.ApiPublicKey = "xyz"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), EnvTurnkeyApiPrivateKey)
		assert.Contains(t, err.Error(), EnvTurnkeyApiPublicKey)
		assert.NotContains(t, err.Error(), "not-hex-secret")
	})
}

func Test_AWSKMSConfig(t *testing.T) {
	t.Run("loads from lookup", func(t *testing.T) {
		cfg := LoadAWSKMSConfigFromEnv(MapLookup(map[string]string{
			EnvAWSKMSKeyId:                 "alias/bench",
			EnvAWSKMSRegion:                "us-east-1",
			EnvAWSKMSEthereumWalletAddress: testEthereumAddress,
		}))
		assert.Equal(t, "alias/bench", cfg.KeyId)
		assert.Equal(t, "us-east-1", cfg.Region)
		assert.NoError(t, cfg.Validate())
	})

	t.Run("region is optional", func(t *testing.T) {
		cfg := &AWSKMSConfig{KeyId: "alias/bench", EthereumWalletAddress: testEthereumAddress}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("reports missing keys", func(t *testing.T) {
		cfg := &AWSKMSConfig{}
		assert.Equal(t, []string{EnvAWSKMSKeyId}, cfg.MissingCredentialKeys())
		assert.Equal(t, []string{EnvAWSKMSEthereumWalletAddress}, cfg.MissingAddressKeys())
		assert.Error(t, cfg.Validate())
	})
}
