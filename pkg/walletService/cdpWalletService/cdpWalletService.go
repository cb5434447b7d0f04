package cdpWalletService

import (
	"context"
	"net/http"
	"time"

	"github.com/Layr-Labs/wallet-bench-go/pkg/clients/cdp"
	"github.com/Layr-Labs/wallet-bench-go/pkg/clients/httpTransport"
	"github.com/Layr-Labs/wallet-bench-go/pkg/config"
	"github.com/Layr-Labs/wallet-bench-go/pkg/logger"
	"github.com/Layr-Labs/wallet-bench-go/pkg/signatures"
	"github.com/Layr-Labs/wallet-bench-go/pkg/walletService"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const Name = string(config.BackendCDP)

// ClientFactory builds the CDP API client during initialization.
type ClientFactory func(cfg *cdp.ClientConfig) (cdp.ICDPClient, error)

func defaultClientFactory(cfg *cdp.ClientConfig) (cdp.ICDPClient, error) {
	return cdp.NewClient(cfg)
}

type Option func(*CDPWalletService)

func WithHttpClient(client *http.Client) Option {
	return func(s *CDPWalletService) { s.httpClient = client }
}

// WithClock replaces the clock used for latency measurement and token timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *CDPWalletService) { s.now = now }
}

func WithClientFactory(factory ClientFactory) Option {
	return func(s *CDPWalletService) { s.newClient = factory }
}

// CDPWalletService signs through Coinbase Developer Platform server wallets.
//
// Ethereum signatures come back as 65 byte hex and are normalized to v in {27, 28}.
// Solana signatures are returned as the API's base58 string, unchanged.
type CDPWalletService struct {
	config     *config.CDPConfig
	logger     *zap.Logger
	httpClient *http.Client
	now        func() time.Time
	newClient  ClientFactory

	lifecycle walletService.Lifecycle
	stopwatch *walletService.Stopwatch

	// set once by a successful Initialize
	client                cdp.ICDPClient
	ethereumWalletAddress string
	solanaWalletAddress   string
}

var _ walletService.WalletService = (*CDPWalletService)(nil)

func NewCDPWalletService(cfg *config.CDPConfig, l *zap.Logger, opts ...Option) *CDPWalletService {
	if cfg == nil {
		cfg = &config.CDPConfig{}
	}
	s := &CDPWalletService{
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

func (s *CDPWalletService) Name() string {
	return Name
}

func (s *CDPWalletService) Initialize(ctx context.Context) error {
	ran, err := s.lifecycle.Initialize(func() error {
		return s.setup(ctx)
	})
	if err != nil {
		s.logger.Sugar().Warnw("Failed to initialize CDP wallet service", "error", err)
		return err
	}
	if !ran {
		s.logger.Sugar().Debugw("CDP wallet service already initialized")
	}
	return nil
}

func (s *CDPWalletService) setup(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		missing := append(s.config.MissingCredentialKeys(), s.config.MissingAddressKeys()...)
		return walletService.NewConfigurationError(Name, walletService.OpInitialize, missing, err)
	}

	client, err := s.newClient(&cdp.ClientConfig{
		BaseUrl:      s.config.BaseUrl,
		ApiKeyId:     s.config.ApiKeyId,
		ApiKeySecret: s.config.ApiKeySecret,
		WalletSecret: s.config.WalletSecret,
		HttpClient:   s.httpClient,
		Logger:       s.logger,
		Now:          s.now,
	})
	if err != nil {
		return walletService.NewInitializationError(Name, errors.Wrap(err, "failed to create cdp client"))
	}

	// resolving the account proves the api key is accepted and can see the wallet
	account, err := client.GetEvmAccount(ctx, s.config.EthereumWalletAddress)
	if err != nil {
		return walletService.NewInitializationError(Name, errors.Wrapf(err, "failed to resolve evm account %s", s.config.EthereumWalletAddress))
	}

	s.client = client
	s.ethereumWalletAddress = s.config.EthereumWalletAddress
	s.solanaWalletAddress = s.config.SolanaWalletAddress

	s.logger.Sugar().Infow("Initialized CDP wallet service",
		"ethereumWalletAddress", s.ethereumWalletAddress,
		"accountName", account.Name,
		"solanaEnabled", s.solanaWalletAddress != "",
	)
	return nil
}

func (s *CDPWalletService) SignMessageEthereum(ctx context.Context, message string) (*walletService.ServiceResult, error) {
	return s.sign(ctx, walletService.ChainEthereum, message)
}

func (s *CDPWalletService) SignMessageSolana(ctx context.Context, message string) (*walletService.ServiceResult, error) {
	return s.sign(ctx, walletService.ChainSolana, message)
}

func (s *CDPWalletService) sign(ctx context.Context, chain walletService.Chain, message string) (*walletService.ServiceResult, error) {
	op := walletService.OpForChain(chain)
	if !s.lifecycle.Ready() {
		return nil, walletService.NewNotInitializedError(Name, op)
	}

	var (
		address string
		req     *http.Request
		err     error
	)
	switch chain {
	case walletService.ChainEthereum:
		address = s.ethereumWalletAddress
		if address == "" {
			return nil, walletService.NewConfigurationError(Name, op, []string{config.EnvCDPEthereumWalletAddress}, nil)
		}
		req, err = s.client.NewSignEvmMessageRequest(ctx, address, message)
	case walletService.ChainSolana:
		address = s.solanaWalletAddress
		if address == "" {
			return nil, walletService.NewConfigurationError(Name, op, []string{config.EnvCDPSolanaWalletAddress}, nil)
		}
		req, err = s.client.NewSignSolanaMessageRequest(ctx, address, []byte(message))
	}
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
		s.logger.Sugar().Warnw("CDP sign request failed", "chain", chain, "apiLatencyMs", latencyMs, "error", err)
		return nil, walletService.NewSigningError(Name, op, errors.Wrap(err, "sign request failed"))
	}

	parsed, err := cdp.ParseSignMessageResponse(resp)
	if err != nil {
		s.logger.Sugar().Warnw("CDP rejected sign request", "chain", chain, "apiLatencyMs", latencyMs, "error", err)
		return nil, walletService.NewSigningError(Name, op, err)
	}

	signature := parsed.Signature
	if chain == walletService.ChainEthereum {
		if signature, err = signatures.NormalizeEthereumSignature(parsed.Signature); err != nil {
			return nil, walletService.NewSigningError(Name, op, errors.Wrap(err, "unexpected evm signature format"))
		}
	}

	s.logger.Sugar().Debugw("Signed message with CDP", "chain", chain, "apiLatencyMs", latencyMs)
	return &walletService.ServiceResult{
		Signature:     signature,
		ApiLatencyMs:  latencyMs,
		WalletAddress: address,
	}, nil
}
