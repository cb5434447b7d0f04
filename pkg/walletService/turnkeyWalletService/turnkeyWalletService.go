package turnkeyWalletService

import (
	"context"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/Layr-Labs/wallet-bench-go/pkg/clients/httpTransport"
	"github.com/Layr-Labs/wallet-bench-go/pkg/clients/turnkey"
	"github.com/Layr-Labs/wallet-bench-go/pkg/config"
	"github.com/Layr-Labs/wallet-bench-go/pkg/logger"
	"github.com/Layr-Labs/wallet-bench-go/pkg/signatures"
	"github.com/Layr-Labs/wallet-bench-go/pkg/walletService"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const Name = string(config.BackendTurnkey)

// ClientFactory builds the Turnkey API client during initialization.
type ClientFactory func(cfg *turnkey.ClientConfig) (turnkey.ITurnkeyClient, error)

func defaultClientFactory(cfg *turnkey.ClientConfig) (turnkey.ITurnkeyClient, error) {
	return turnkey.NewClient(cfg)
}

type Option func(*TurnkeyWalletService)

func WithHttpClient(client *http.Client) Option {
	return func(s *TurnkeyWalletService) { s.httpClient = client }
}

// WithClock replaces the clock used for latency measurement and activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *TurnkeyWalletService) { s.now = now }
}

func WithClientFactory(factory ClientFactory) Option {
	return func(s *TurnkeyWalletService) { s.newClient = factory }
}

// TurnkeyWalletService signs raw payloads with Turnkey private keys.
//
// Ethereum messages are hashed locally with EIP-191 and sent as a pre-hashed digest.
// Turnkey returns r, s and v separately; they are joined into the canonical 65 byte
// signature, with v fixed to signatures.DefaultRecoveryV if the response omits it.
// Solana messages are signed as raw bytes and returned as hex r || s.
type TurnkeyWalletService struct {
	config     *config.TurnkeyConfig
	logger     *zap.Logger
	httpClient *http.Client
	now        func() time.Time
	newClient  ClientFactory

	lifecycle walletService.Lifecycle
	stopwatch *walletService.Stopwatch

	// set once by a successful Initialize
	client                turnkey.ITurnkeyClient
	ethereumWalletAddress string
	solanaWalletAddress   string
}

var _ walletService.WalletService = (*TurnkeyWalletService)(nil)

func NewTurnkeyWalletService(cfg *config.TurnkeyConfig, l *zap.Logger, opts ...Option) *TurnkeyWalletService {
	if cfg == nil {
		cfg = &config.TurnkeyConfig{}
	}
	s := &TurnkeyWalletService{
		config:    cfg,
		logger:    logger.OrNop(l),
		now:       time.Now,
		newClient: defaultClientFactory,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stopwatch = walletService.NewStopwatch(s.now)
	return s
}

func (s *TurnkeyWalletService) Name() string {
	return Name
}

func (s *TurnkeyWalletService) Initialize(ctx context.Context) error {
	ran, err := s.lifecycle.Initialize(func() error {
		return s.setup(ctx)
	})
	if err != nil {
		s.logger.Sugar().Warnw("Failed to initialize Turnkey wallet service", "error", err)
		return err
	}
	if !ran {
		s.logger.Sugar().Debugw("Turnkey wallet service already initialized")
	}
	return nil
}

func (s *TurnkeyWalletService) setup(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		missing := append(s.config.MissingCredentialKeys(), s.config.MissingAddressKeys()...)
		return walletService.NewConfigurationError(Name, walletService.OpInitialize, missing, err)
	}

	client, err := s.newClient(&turnkey.ClientConfig{
		BaseUrl:        s.config.BaseUrl,
		OrganizationId: s.config.OrganizationId,
		ApiPublicKey:   s.config.ApiPublicKey,
		ApiPrivateKey:  s.config.ApiPrivateKey,
		HttpClient:     s.httpClient,
		Logger:         s.logger,
		Now:            s.now,
	})
	if err != nil {
		return walletService.NewInitializationError(Name, errors.Wrap(err, "failed to create turnkey client"))
	}

	whoami, err := client.Whoami(ctx)
	if err != nil {
		return walletService.NewInitializationError(Name, errors.Wrap(err, "failed to authenticate api key"))
	}

	s.client = client
	s.ethereumWalletAddress = s.config.EthereumWalletAddress
	s.solanaWalletAddress = s.config.SolanaWalletAddress

	s.logger.Sugar().Infow("Initialized Turnkey wallet service",
		"organizationId", whoami.OrganizationId,
		"ethereumWalletAddress", s.ethereumWalletAddress,
		"solanaEnabled", s.solanaWalletAddress != "",
	)
	return nil
}

func (s *TurnkeyWalletService) SignMessageEthereum(ctx context.Context, message string) (*walletService.ServiceResult, error) {
	return s.sign(ctx, walletService.ChainEthereum, message)
}

func (s *TurnkeyWalletService) SignMessageSolana(ctx context.Context, message string) (*walletService.ServiceResult, error) {
	return s.sign(ctx, walletService.ChainSolana, message)
}

func (s *TurnkeyWalletService) sign(ctx context.Context, chain walletService.Chain, message string) (*walletService.ServiceResult, error) {
	op := walletService.OpForChain(chain)
	if !s.lifecycle.Ready() {
		return nil, walletService.NewNotInitializedError(Name, op)
	}

	var address, payload, hashFunction string
	switch chain {
	case walletService.ChainEthereum:
		address = s.ethereumWalletAddress
		if address == "" {
			return nil, walletService.NewConfigurationError(Name, op, []string{config.EnvTurnkeyEthereumWalletAddress}, nil)
		}
		payload = hex.EncodeToString(signatures.HashPersonalMessage(message))
		hashFunction = turnkey.HashFunctionNoOp
	case walletService.ChainSolana:
		address = s.solanaWalletAddress
		if address == "" {
			return nil, walletService.NewConfigurationError(Name, op, []string{config.EnvTurnkeySolanaWalletAddress}, nil)
		}
		payload = hex.EncodeToString([]byte(message))
		hashFunction = turnkey.HashFunctionNotApplicable
	}

	req, err := s.client.NewSignRawPayloadRequest(ctx, address, payload, hashFunction)
	if err != nil {
		return nil, walletService.NewSigningError(Name, op, errors.Wrap(err, "failed to prepare sign request"))
	}

	var resp *httpTransport.Response
	latencyMs, err := s.stopwatch.Time(func() error {
		var sendErr error
		resp, sendErr = s.client.Send(req)
		return sendErr
	})
	if err != nil {
		s.logger.Sugar().Warnw("Turnkey sign request failed", "chain", chain, "apiLatencyMs", latencyMs, "error", err)
		return nil, walletService.NewSigningError(Name, op, errors.Wrap(err, "sign request failed"))
	}

	result, err := turnkey.ParseSignRawPayloadResponse(resp)
	if err != nil {
		s.logger.Sugar().Warnw("Turnkey rejected sign request", "chain", chain, "apiLatencyMs", latencyMs, "error", err)
		return nil, walletService.NewSigningError(Name, op, err)
	}

	var signature string
	if chain == walletService.ChainEthereum {
		signature, err = signatures.EthereumSignatureFromParts(result.R, result.S, result.V)
	} else {
		signature, err = signatures.SolanaSignatureFromParts(result.R, result.S)
	}
	if err != nil {
		return nil, walletService.NewSigningError(Name, op, errors.Wrap(err, "unexpected signature format"))
	}

	s.logger.Sugar().Debugw("Signed message with Turnkey", "chain", chain, "apiLatencyMs", latencyMs)
	return &walletService.ServiceResult{
		Signature:     signature,
		ApiLatencyMs:  latencyMs,
		WalletAddress: address,
	}, nil
}
