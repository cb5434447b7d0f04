package awsKmsWalletService

import (
	"context"
	"encoding/asn1"
	"math/big"
	"time"

	awsInternal "github.com/Layr-Labs/wallet-bench-go/internal/aws"
	"github.com/Layr-Labs/wallet-bench-go/pkg/config"
	"github.com/Layr-Labs/wallet-bench-go/pkg/logger"
	"github.com/Layr-Labs/wallet-bench-go/pkg/signatures"
	"github.com/Layr-Labs/wallet-bench-go/pkg/walletService"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const Name = string(config.BackendAWSKMS)

var errSolanaUnsupported = errors.New("aws kms secp256k1 keys cannot produce ed25519 signatures")

// KMSAPI is the subset of *kms.Client used for signing.
type KMSAPI interface {
	GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error)
	Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error)
}

// ClientFactory builds the KMS and STS clients during initialization.
type ClientFactory func(ctx context.Context, cfg *config.AWSKMSConfig) (KMSAPI, awsInternal.CallerIdentityAPI, error)

func defaultClientFactory(ctx context.Context, cfg *config.AWSKMSConfig) (KMSAPI, awsInternal.CallerIdentityAPI, error) {
	awsCfg, err := awsInternal.LoadAWSConfig(ctx, cfg.Region)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load aws config")
	}
	return kms.NewFromConfig(awsCfg), sts.NewFromConfig(awsCfg), nil
}

type Option func(*AWSKMSWalletService)

// WithClock replaces the clock used for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(s *AWSKMSWalletService) { s.now = now }
}

func WithClientFactory(factory ClientFactory) Option {
	return func(s *AWSKMSWalletService) { s.newClients = factory }
}

// AWSKMSWalletService signs Ethereum messages with an ECC_SECG_P256K1 AWS KMS key.
//
// KMS returns a DER encoded (r, s) with no recovery id. s is canonicalized to the low
// half of the curve order and the recovery id is found by recovering against the
// configured address, so results carry a real v rather than a fixed one.
// Solana is not supported and always fails with a configuration error.
type AWSKMSWalletService struct {
	config     *config.AWSKMSConfig
	logger     *zap.Logger
	now        func() time.Time
	newClients ClientFactory

	lifecycle walletService.Lifecycle
	stopwatch *walletService.Stopwatch

	// set once by a successful Initialize
	kmsClient             KMSAPI
	ethereumWalletAddress string
	signer                common.Address
}

var _ walletService.WalletService = (*AWSKMSWalletService)(nil)

func NewAWSKMSWalletService(cfg *config.AWSKMSConfig, l *zap.Logger, opts ...Option) *AWSKMSWalletService {
	if cfg == nil {
		cfg = &config.AWSKMSConfig{}
	}
	s := &AWSKMSWalletService{
		config:     cfg,
		logger:     logger.OrNop(l),
		now:        time.Now,
		newClients: defaultClientFactory,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stopwatch = walletService.NewStopwatch(s.now)
	return s
}

func (s *AWSKMSWalletService) Name() string {
	return Name
}

func (s *AWSKMSWalletService) Initialize(ctx context.Context) error {
	ran, err := s.lifecycle.Initialize(func() error {
		return s.setup(ctx)
	})
	if err != nil {
		s.logger.Sugar().Warnw("Failed to initialize AWS KMS wallet service", "error", err)
		return err
	}
	if !ran {
		s.logger.Sugar().Debugw("AWS KMS wallet service already initialized")
	}
	return nil
}

func (s *AWSKMSWalletService) setup(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		missing := append(s.config.MissingCredentialKeys(), s.config.MissingAddressKeys()...)
		return walletService.NewConfigurationError(Name, walletService.OpInitialize, missing, err)
	}

	kmsClient, stsClient, err := s.newClients(ctx, s.config)
	if err != nil {
		return walletService.NewInitializationError(Name, err)
	}

	identity, err := awsInternal.GetCallerIdentity(ctx, stsClient)
	if err != nil {
		return walletService.NewInitializationError(Name, errors.Wrap(err, "failed to verify aws credentials"))
	}

	expected := common.HexToAddress(s.config.EthereumWalletAddress)
	if err := verifyKeyAddress(ctx, kmsClient, s.config.KeyId, expected); err != nil {
		return walletService.NewInitializationError(Name, err)
	}

	s.kmsClient = kmsClient
	s.ethereumWalletAddress = s.config.EthereumWalletAddress
	s.signer = expected

	s.logger.Sugar().Infow("Initialized AWS KMS wallet service",
		"keyId", s.config.KeyId,
		"region", s.config.Region,
		"callerArn", aws.ToString(identity.Arn),
		"ethereumWalletAddress", expected.Hex(),
	)
	return nil
}

// verifyKeyAddress checks keyId is a secp256k1 signing key whose address is expected.
func verifyKeyAddress(ctx context.Context, client KMSAPI, keyId string, expected common.Address) error {
	out, err := client.GetPublicKey(ctx, &kms.GetPublicKeyInput{KeyId: aws.String(keyId)})
	if err != nil {
		return errors.Wrapf(err, "failed to get public key for key %s", keyId)
	}
	if out.KeySpec != types.KeySpecEccSecgP256k1 {
		return errors.Errorf("key %s has spec %s, expected %s", keyId, out.KeySpec, types.KeySpecEccSecgP256k1)
	}

	pub, err := parseECDSAPublicKey(out.PublicKey)
	if err != nil {
		return errors.Wrapf(err, "failed to parse public key for key %s", keyId)
	}
	if derived := crypto.PubkeyToAddress(*pub); derived != expected {
		return errors.Errorf("key %s belongs to %s, expected %s", keyId, derived.Hex(), expected.Hex())
	}
	return nil
}

func (s *AWSKMSWalletService) SignMessageEthereum(ctx context.Context, message string) (*walletService.ServiceResult, error) {
	const op = walletService.OpSignMessageEthereum
	if !s.lifecycle.Ready() {
		return nil, walletService.NewNotInitializedError(Name, op)
	}

	digest := signatures.HashPersonalMessage(message)
	input := &kms.SignInput{
		KeyId:            aws.String(s.config.KeyId),
		Message:          digest,
		SigningAlgorithm: types.SigningAlgorithmSpecEcdsaSha256,
		MessageType:      types.MessageTypeDigest,
	}

	var out *kms.SignOutput
	latencyMs, err := s.stopwatch.Time(func() error {
		var signErr error
		out, signErr = s.kmsClient.Sign(ctx, input)
		return signErr
	})
	if err != nil {
		s.logger.Sugar().Warnw("AWS KMS sign request failed", "apiLatencyMs", latencyMs, "error", err)
		return nil, walletService.NewSigningError(Name, op, errors.Wrap(err, "kms sign failed"))
	}

	signature, err := s.normalize(digest, out.Signature)
	if err != nil {
		return nil, walletService.NewSigningError(Name, op, err)
	}

	s.logger.Sugar().Debugw("Signed message with AWS KMS", "chain", walletService.ChainEthereum, "apiLatencyMs", latencyMs)
	return &walletService.ServiceResult{
		Signature:     signature,
		ApiLatencyMs:  latencyMs,
		WalletAddress: s.ethereumWalletAddress,
	}, nil
}

func (s *AWSKMSWalletService) SignMessageSolana(ctx context.Context, message string) (*walletService.ServiceResult, error) {
	const op = walletService.OpSignMessageSolana
	if !s.lifecycle.Ready() {
		return nil, walletService.NewNotInitializedError(Name, op)
	}
	return nil, walletService.NewConfigurationError(Name, op, nil, errSolanaUnsupported)
}

// normalize turns a DER (r, s) into the canonical Ethereum signature for digest.
func (s *AWSKMSWalletService) normalize(digest []byte, der []byte) (string, error) {
	var sigAsn1 asn1EcSig
	if _, err := asn1.Unmarshal(der, &sigAsn1); err != nil {
		return "", errors.Wrap(err, "failed to parse DER signature")
	}

	r := new(big.Int).SetBytes(sigAsn1.R.Bytes)
	sv := signatures.CanonicalizeLowS(new(big.Int).SetBytes(sigAsn1.S.Bytes))

	recoveryId, err := signatures.FindRecoveryId(digest, r, sv, s.signer)
	if err != nil {
		return "", err
	}
	return signatures.EthereumSignatureFromBigInts(r, sv, recoveryId)
}
