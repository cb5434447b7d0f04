package awsKmsWalletService

import (
	"context"
	"fmt"
	"testing"
	"time"

	awsInternal "github.com/Layr-Labs/wallet-bench-go/internal/aws"
	"github.com/Layr-Labs/wallet-bench-go/pkg/config"
	"github.com/Layr-Labs/wallet-bench-go/pkg/signatures"
	"github.com/Layr-Labs/wallet-bench-go/pkg/testutil"
	"github.com/Layr-Labs/wallet-bench-go/pkg/walletService"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testKeyId = "arn:aws:kms:us-east-1:123456789012:key/bench"

func newFakeKMS(t *testing.T) *testutil.FakeKMS {
	return testutil.NewFakeKMS(testKeyId, testutil.NewEthereumAccount(t))
}

func fakeFactory(fake *testutil.FakeKMS) ClientFactory {
	return func(ctx context.Context, cfg *config.AWSKMSConfig) (KMSAPI, awsInternal.CallerIdentityAPI, error) {
		return fake, fake, nil
	}
}

func newService(t *testing.T, fake *testutil.FakeKMS, opts ...Option) *AWSKMSWalletService {
	cfg := &config.AWSKMSConfig{
		KeyId:                 testKeyId,
		Region:                "us-east-1",
		EthereumWalletAddress: fake.Account.Address,
	}
	opts = append([]Option{WithClientFactory(fakeFactory(fake))}, opts...)
	return NewAWSKMSWalletService(cfg, zaptest.NewLogger(t), opts...)
}

func Test_AWSKMSWalletService_SignBeforeInitialize(t *testing.T) {
	fake := newFakeKMS(t)
	svc := newService(t, fake)

	_, err := svc.SignMessageEthereum(context.Background(), "hello")
	assert.True(t, errors.Is(err, walletService.ErrNotInitialized))
	_, err = svc.SignMessageSolana(context.Background(), "hello")
	assert.True(t, errors.Is(err, walletService.ErrNotInitialized))
	assert.Equal(t, 0, fake.SignCalls())
}

func Test_AWSKMSWalletService_Initialize(t *testing.T) {
	t.Run("verifies the key once", func(t *testing.T) {
		fake := newFakeKMS(t)
		svc := newService(t, fake)
		require.NoError(t, svc.Initialize(context.Background()))
		require.NoError(t, svc.Initialize(context.Background()))
		assert.Equal(t, 1, fake.IdentityCalls())
		assert.Equal(t, 1, fake.PublicKeyCalls())
		assert.Equal(t, Name, svc.Name())
	})

	t.Run("missing key id", func(t *testing.T) {
		fake := newFakeKMS(t)
		svc := NewAWSKMSWalletService(&config.AWSKMSConfig{}, zaptest.NewLogger(t), WithClientFactory(fakeFactory(fake)))

		err := svc.Initialize(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, walletService.ErrConfiguration))
		assert.Contains(t, err.Error(), config.EnvAWSKMSKeyId)
		assert.Contains(t, err.Error(), config.EnvAWSKMSEthereumWalletAddress)
		assert.Equal(t, 0, fake.IdentityCalls())
	})

	tests := []struct {
		name    string
		prepare func(fake *testutil.FakeKMS, cfg *config.AWSKMSConfig)
	}{
		{"credentials rejected", func(fake *testutil.FakeKMS, cfg *config.AWSKMSConfig) {
			fake.SetIdentityError(fmt.Errorf("ExpiredToken"))
		}},
		{"wrong key spec", func(fake *testutil.FakeKMS, cfg *config.AWSKMSConfig) {
			fake.SetKeySpec(types.KeySpecEccNistP256)
		}},
		{"unknown key", func(fake *testutil.FakeKMS, cfg *config.AWSKMSConfig) {
			cfg.KeyId = "alias/missing"
		}},
		{"key belongs to another address", func(fake *testutil.FakeKMS, cfg *config.AWSKMSConfig) {
			cfg.EthereumWalletAddress = "0x000000000000000000000000000000000000dEaD"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeKMS(t)
			cfg := &config.AWSKMSConfig{KeyId: testKeyId, EthereumWalletAddress: fake.Account.Address}
			tt.prepare(fake, cfg)
			svc := NewAWSKMSWalletService(cfg, zaptest.NewLogger(t), WithClientFactory(fakeFactory(fake)))

			err := svc.Initialize(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, walletService.ErrInitialization))
			assert.False(t, svc.lifecycle.Ready())
		})
	}

	t.Run("client factory failure", func(t *testing.T) {
		fake := newFakeKMS(t)
		svc := newService(t, fake, WithClientFactory(func(ctx context.Context, cfg *config.AWSKMSConfig) (KMSAPI, awsInternal.CallerIdentityAPI, error) {
			return nil, nil, fmt.Errorf("no credentials")
		}))
		err := svc.Initialize(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, walletService.ErrInitialization))
	})
}

func Test_AWSKMSWalletService_SignMessageEthereum(t *testing.T) {
	for _, highS := range []bool{false, true} {
		t.Run(fmt.Sprintf("highS=%v", highS), func(t *testing.T) {
			fake := newFakeKMS(t)
			fake.SetHighS(highS)
			svc := newService(t, fake)
			require.NoError(t, svc.Initialize(context.Background()))

			res, err := svc.SignMessageEthereum(context.Background(), "hello")
			require.NoError(t, err)
			assert.Equal(t, fake.Account.Address, res.WalletAddress)

			ok, err := signatures.VerifyEthereumSignature("hello", res.Signature, res.WalletAddress)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func Test_AWSKMSWalletService_SignMessageSolana(t *testing.T) {
	fake := newFakeKMS(t)
	svc := newService(t, fake)
	require.NoError(t, svc.Initialize(context.Background()))

	_, err := svc.SignMessageSolana(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, walletService.ErrConfiguration))
	assert.Equal(t, 0, fake.SignCalls())
}

func Test_AWSKMSWalletService_Latency(t *testing.T) {
	fake := newFakeKMS(t)
	clock := testutil.NewFakeClock(time.Now())
	fake.SetOnSign(func() { clock.Advance(120 * time.Millisecond) })
	svc := newService(t, fake, WithClock(clock.Now))
	require.NoError(t, svc.Initialize(context.Background()))

	res, err := svc.SignMessageEthereum(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, 120.0, res.ApiLatencyMs)
}

func Test_AWSKMSWalletService_BackendFailure(t *testing.T) {
	fake := newFakeKMS(t)
	svc := newService(t, fake)
	require.NoError(t, svc.Initialize(context.Background()))
	fake.SetSignError(&types.KMSInternalException{Message: aws.String("kms is having a bad day")})

	_, err := svc.SignMessageEthereum(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, walletService.ErrSigning))
	assert.Contains(t, err.Error(), "kms is having a bad day")

	var internalErr *types.KMSInternalException
	assert.True(t, errors.As(err, &internalErr))
}

func Test_AWSKMSWalletService_Cancelled(t *testing.T) {
	fake := newFakeKMS(t)
	fake.SetDelay(time.Second)
	svc := newService(t, fake)
	require.NoError(t, svc.Initialize(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := svc.SignMessageEthereum(ctx, "hello")
	require.Error(t, err)
	assert.True(t, errors.Is(err, walletService.ErrSigning))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
