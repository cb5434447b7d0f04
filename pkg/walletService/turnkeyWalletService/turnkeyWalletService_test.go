package turnkeyWalletService

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/Layr-Labs/wallet-bench-go/pkg/clients/turnkey"
	"github.com/Layr-Labs/wallet-bench-go/pkg/config"
	"github.com/Layr-Labs/wallet-bench-go/pkg/signatures"
	"github.com/Layr-Labs/wallet-bench-go/pkg/testutil"
	"github.com/Layr-Labs/wallet-bench-go/pkg/walletService"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	server   *testutil.FakeTurnkeyServer
	creds    *testutil.TurnkeyCredentials
	ethereum *testutil.EthereumAccount
	solana   *testutil.SolanaAccount
}

func newFixture(t *testing.T) *fixture {
	creds := testutil.NewTurnkeyCredentials(t)
	ethereum := testutil.NewEthereumAccount(t)
	solana := testutil.NewSolanaAccount(t)
	return &fixture{
		server:   testutil.NewFakeTurnkeyServer(t, creds, ethereum, solana),
		creds:    creds,
		ethereum: ethereum,
		solana:   solana,
	}
}

func (f *fixture) config(withSolana bool) *config.TurnkeyConfig {
	cfg := &config.TurnkeyConfig{
		OrganizationId: f.creds.OrganizationId,
		ApiPrivateKey:  f.creds.ApiPrivateKey,
		ApiPublicKey:   f.creds.ApiPublicKey,
		BaseUrl:        f.server.URL(),
	}
	cfg.EthereumWalletAddress = f.ethereum.Address
	if withSolana {
		cfg.SolanaWalletAddress = f.solana.Address
	}
	return cfg
}

func (f *fixture) newService(t *testing.T, withSolana bool, opts ...Option) *TurnkeyWalletService {
	return NewTurnkeyWalletService(f.config(withSolana), zaptest.NewLogger(t), opts...)
}

func (f *fixture) initialized(t *testing.T, withSolana bool, opts ...Option) *TurnkeyWalletService {
	svc := f.newService(t, withSolana, opts...)
	require.NoError(t, svc.Initialize(context.Background()))
	return svc
}

func Test_TurnkeyWalletService_SignBeforeInitialize(t *testing.T) {
	f := newFixture(t)
	svc := f.newService(t, true)

	_, err := svc.SignMessageEthereum(context.Background(), "hello")
	assert.True(t, errors.Is(err, walletService.ErrNotInitialized))
	_, err = svc.SignMessageSolana(context.Background(), "hello")
	assert.True(t, errors.Is(err, walletService.ErrNotInitialized))

	assert.Equal(t, 0, f.server.SignCalls())
	assert.Equal(t, 0, f.server.WhoamiCalls())
}

func Test_TurnkeyWalletService_Initialize(t *testing.T) {
	t.Run("runs backend setup once", func(t *testing.T) {
		f := newFixture(t)
		svc := f.newService(t, true)
		require.NoError(t, svc.Initialize(context.Background()))
		require.NoError(t, svc.Initialize(context.Background()))
		assert.Equal(t, 1, f.server.WhoamiCalls())
		assert.Equal(t, Name, svc.Name())
	})

	t.Run("missing credentials", func(t *testing.T) {
		svc := NewTurnkeyWalletService(config.LoadTurnkeyConfigFromEnv(config.MapLookup(nil)), zaptest.NewLogger(t))

		err := svc.Initialize(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, walletService.ErrConfiguration))

		var svcErr *walletService.ServiceError
		require.True(t, errors.As(err, &svcErr))
		assert.Equal(t, []string{
			config.EnvTurnkeyOrganizationId,
			config.EnvTurnkeyApiPrivateKey,
			config.EnvTurnkeyApiPublicKey,
			config.EnvTurnkeyEthereumWalletAddress,
		}, svcErr.MissingKeys)
		assert.False(t, svc.lifecycle.Ready())
	})

	t.Run("mismatched api key pair", func(t *testing.T) {
		f := newFixture(t)
		cfg := f.config(false)
		cfg.ApiPublicKey = testutil.NewTurnkeyCredentials(t).ApiPublicKey
		svc := NewTurnkeyWalletService(cfg, zaptest.NewLogger(t))

		err := svc.Initialize(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, walletService.ErrInitialization))
		assert.Equal(t, 0, f.server.WhoamiCalls())
	})

	t.Run("rejected api key", func(t *testing.T) {
		f := newFixture(t)
		f.server.SetWhoamiStatus(http.StatusUnauthorized)
		svc := f.newService(t, false)

		err := svc.Initialize(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, walletService.ErrInitialization))
		assert.Equal(t, walletService.StateFailed, svc.lifecycle.State())
	})
}

func Test_TurnkeyWalletService_SignMessageEthereum(t *testing.T) {
	t.Run("uses the returned recovery id", func(t *testing.T) {
		f := newFixture(t)
		svc := f.initialized(t, false)

		res, err := svc.SignMessageEthereum(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, f.ethereum.Address, res.WalletAddress)

		ok, err := signatures.VerifyEthereumSignature("hello", res.Signature, res.WalletAddress)
		require.NoError(t, err)
		assert.True(t, ok)

		params := f.server.LastSignRequest()["parameters"].(map[string]any)
		assert.Equal(t, turnkey.HashFunctionNoOp, params["hashFunction"])
		assert.Equal(t, turnkey.PayloadEncodingHexadecimal, params["encoding"])
	})

	t.Run("fixes v when the backend omits it", func(t *testing.T) {
		f := newFixture(t)
		r := strings.Repeat("1a", 32)
		s := strings.Repeat("2b", 32)
		f.server.SetFixedResult(&testutil.TurnkeySignResult{R: r, S: s})
		svc := f.initialized(t, false)

		res, err := svc.SignMessageEthereum(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, "0x"+r+s+"1b", res.Signature)
	})

	t.Run("omitted v still recovers for one of 27 or 28", func(t *testing.T) {
		f := newFixture(t)
		f.server.SetOmitV(true)
		svc := f.initialized(t, false)

		res, err := svc.SignMessageEthereum(context.Background(), "hello")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(res.Signature, "1b"))

		okWith27, err := signatures.VerifyEthereumSignature("hello", res.Signature, res.WalletAddress)
		require.NoError(t, err)
		okWith28, err := signatures.VerifyEthereumSignature("hello", strings.TrimSuffix(res.Signature, "1b")+"1c", res.WalletAddress)
		require.NoError(t, err)
		assert.True(t, okWith27 != okWith28)
	})

	t.Run("malformed result", func(t *testing.T) {
		f := newFixture(t)
		f.server.SetFixedResult(&testutil.TurnkeySignResult{R: "zz", S: "00"})
		svc := f.initialized(t, false)

		_, err := svc.SignMessageEthereum(context.Background(), "hello")
		require.Error(t, err)
		assert.True(t, errors.Is(err, walletService.ErrSigning))
	})
}

func Test_TurnkeyWalletService_SignMessageSolana(t *testing.T) {
	t.Run("returns hex r || s", func(t *testing.T) {
		f := newFixture(t)
		svc := f.initialized(t, true)

		res, err := svc.SignMessageSolana(context.Background(), "hello")
		require.NoError(t, err)
		assert.Equal(t, f.solana.Address, res.WalletAddress)
		assert.Len(t, res.Signature, 128)
		assert.Equal(t, strings.ToLower(res.Signature), res.Signature)

		ok, err := signatures.VerifySolanaSignature("hello", res.Signature, signatures.SolanaEncodingHex, res.WalletAddress)
		require.NoError(t, err)
		assert.True(t, ok)

		params := f.server.LastSignRequest()["parameters"].(map[string]any)
		assert.Equal(t, turnkey.HashFunctionNotApplicable, params["hashFunction"])
		assert.Equal(t, "68656c6c6f", params["payload"])
	})

	t.Run("ethereum only configuration", func(t *testing.T) {
		f := newFixture(t)
		svc := f.initialized(t, false)

		_, err := svc.SignMessageSolana(context.Background(), "hello")
		require.Error(t, err)
		assert.True(t, errors.Is(err, walletService.ErrConfiguration))
		assert.Contains(t, err.Error(), config.EnvTurnkeySolanaWalletAddress)
		assert.Equal(t, 0, f.server.SignCalls())
	})
}

func Test_TurnkeyWalletService_Latency(t *testing.T) {
	f := newFixture(t)
	clock := testutil.NewFakeClock(time.Now())
	f.server.SetOnSign(func() { clock.Advance(75 * time.Millisecond) })
	svc := f.initialized(t, true, WithClock(clock.Now))

	res, err := svc.SignMessageEthereum(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 75.0, res.ApiLatencyMs)

	res, err = svc.SignMessageSolana(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 75.0, res.ApiLatencyMs)
}

func Test_TurnkeyWalletService_BackendFailure(t *testing.T) {
	t.Run("api error", func(t *testing.T) {
		f := newFixture(t)
		svc := f.initialized(t, true)
		f.server.SetSignFailure("rate limit exceeded")

		_, err := svc.SignMessageSolana(context.Background(), "hello")
		require.Error(t, err)
		assert.True(t, errors.Is(err, walletService.ErrSigning))
		assert.Contains(t, err.Error(), "rate limit exceeded")
	})

	t.Run("activity needs consensus", func(t *testing.T) {
		f := newFixture(t)
		svc := f.initialized(t, false)
		f.server.SetActivityStatus("ACTIVITY_STATUS_CONSENSUS_NEEDED", "")

		_, err := svc.SignMessageEthereum(context.Background(), "hello")
		require.Error(t, err)
		assert.True(t, errors.Is(err, walletService.ErrSigning))
		assert.Contains(t, err.Error(), "ACTIVITY_STATUS_CONSENSUS_NEEDED")

		var actErr *turnkey.ActivityError
		assert.True(t, errors.As(err, &actErr))
	})
}
