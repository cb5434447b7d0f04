package config

import (
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

type BackendName string

func (b BackendName) String() string {
	return string(b)
}

const (
	BackendCDP     BackendName = "cdp"
	BackendTurnkey BackendName = "turnkey"
	BackendAWSKMS  BackendName = "aws-kms"
)

// LookupFunc resolves a configuration key. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// EnvLookup reads from the process environment.
var EnvLookup LookupFunc = os.LookupEnv

// MapLookup resolves keys from a fixed map, mostly for tests and embedding.
func MapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func lookupString(lookup LookupFunc, key string) string {
	if lookup == nil {
		lookup = EnvLookup
	}
	v, ok := lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// requiredValue pairs a config key with the value that was resolved for it.
type requiredValue struct {
	key   string
	value string
}

func missingKeys(values ...requiredValue) []string {
	var missing []string
	for _, v := range values {
		if v.value == "" {
			missing = append(missing, v.key)
		}
	}
	return missing
}

func requiredErrors(values ...requiredValue) field.ErrorList {
	var allErrors field.ErrorList
	for _, v := range values {
		if v.value == "" {
			allErrors = append(allErrors, field.Required(field.NewPath(v.key), v.key+" is required"))
		}
	}
	return allErrors
}

func ethereumAddressErrors(key, value string) field.ErrorList {
	if value == "" || common.IsHexAddress(value) {
		return nil
	}
	return field.ErrorList{field.Invalid(field.NewPath(key), value, "must be a 0x-prefixed 20 byte hex address")}
}

// WalletAddresses are the per-chain accounts a backend signs with.
//
// The Ethereum address is required by every backend because it is the identity
// downstream verification recovers against. The Solana address is optional and
// its absence only blocks Solana signing.
type WalletAddresses struct {
	EthereumWalletAddress string `json:"ethereumWalletAddress" yaml:"ethereumWalletAddress"`
	SolanaWalletAddress   string `json:"solanaWalletAddress" yaml:"solanaWalletAddress"`
}

func loadWalletAddresses(lookup LookupFunc, ethereumKey, solanaKey string) WalletAddresses {
	return WalletAddresses{
		EthereumWalletAddress: lookupString(lookup, ethereumKey),
		SolanaWalletAddress:   lookupString(lookup, solanaKey),
	}
}
