package config

import "k8s.io/apimachinery/pkg/util/validation/field"

// Environment variable names for the AWS KMS backend
const (
	EnvAWSKMSKeyId                 = "AWS_KMS_KEY_ID"
	EnvAWSKMSRegion                = "AWS_KMS_REGION"
	EnvAWSKMSEthereumWalletAddress = "AWS_KMS_ETHEREUM_WALLET_ADDRESS"
)

// AWSKMSConfig points at a single ECC_SECG_P256K1 key. AWS credentials themselves come
// from the default AWS credential chain.
type AWSKMSConfig struct {
	KeyId  string `json:"keyId" yaml:"keyId"`
	Region string `json:"region" yaml:"region"`

	EthereumWalletAddress string `json:"ethereumWalletAddress" yaml:"ethereumWalletAddress"`
}

func LoadAWSKMSConfigFromEnv(lookup LookupFunc) *AWSKMSConfig {
	return &AWSKMSConfig{
		KeyId:                 lookupString(lookup, EnvAWSKMSKeyId),
		Region:                lookupString(lookup, EnvAWSKMSRegion),
		EthereumWalletAddress: lookupString(lookup, EnvAWSKMSEthereumWalletAddress),
	}
}

func (c *AWSKMSConfig) MissingCredentialKeys() []string {
	return missingKeys(requiredValue{key: EnvAWSKMSKeyId, value: c.KeyId})
}

func (c *AWSKMSConfig) MissingAddressKeys() []string {
	return missingKeys(requiredValue{key: EnvAWSKMSEthereumWalletAddress, value: c.EthereumWalletAddress})
}

func (c *AWSKMSConfig) Validate() error {
	var allErrors field.ErrorList
	allErrors = append(allErrors, requiredErrors(
		requiredValue{key: EnvAWSKMSKeyId, value: c.KeyId},
		requiredValue{key: EnvAWSKMSEthereumWalletAddress, value: c.EthereumWalletAddress},
	)...)
	allErrors = append(allErrors, ethereumAddressErrors(EnvAWSKMSEthereumWalletAddress, c.EthereumWalletAddress)...)
	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}
