package testutil

import (
	"context"
	"encoding/asn1"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	oidEcPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1   = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

type kmsPublicKeyInfo struct {
	Algorithm struct {
		Algorithm  asn1.ObjectIdentifier
		Parameters asn1.ObjectIdentifier
	}
	PublicKey asn1.BitString
}

type kmsSignature struct {
	R *big.Int
	S *big.Int
}

// FakeKMS implements the KMS GetPublicKey/Sign and STS GetCallerIdentity calls
// against a local secp256k1 key.
type FakeKMS struct {
	KeyId   string
	Account *EthereumAccount

	mu          sync.Mutex
	keySpec     types.KeySpec
	delay       time.Duration
	signErr     error
	identityErr error
	highS       bool
	onSign      func()

	publicKeyCalls atomic.Int32
	signCalls      atomic.Int32
	identityCalls  atomic.Int32
}

func NewFakeKMS(keyId string, account *EthereumAccount) *FakeKMS {
	return &FakeKMS{
		KeyId:   keyId,
		Account: account,
		keySpec: types.KeySpecEccSecgP256k1,
	}
}

func (f *FakeKMS) SetKeySpec(spec types.KeySpec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keySpec = spec
}

func (f *FakeKMS) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

func (f *FakeKMS) SetSignError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signErr = err
}

func (f *FakeKMS) SetIdentityError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identityErr = err
}

// SetHighS makes Sign return the non-canonical s value, as KMS does about half the time.
func (f *FakeKMS) SetHighS(high bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.highS = high
}

func (f *FakeKMS) SetOnSign(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onSign = fn
}

func (f *FakeKMS) PublicKeyCalls() int {
	return int(f.publicKeyCalls.Load())
}

func (f *FakeKMS) SignCalls() int {
	return int(f.signCalls.Load())
}

func (f *FakeKMS) IdentityCalls() int {
	return int(f.identityCalls.Load())
}

func (f *FakeKMS) GetPublicKey(ctx context.Context, params *kms.GetPublicKeyInput, optFns ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	f.publicKeyCalls.Add(1)
	if aws.ToString(params.KeyId) != f.KeyId {
		return nil, &types.NotFoundException{Message: aws.String(fmt.Sprintf("key %s not found", aws.ToString(params.KeyId)))}
	}

	var info kmsPublicKeyInfo
	info.Algorithm.Algorithm = oidEcPublicKey
	info.Algorithm.Parameters = oidSecp256k1
	pub := crypto.FromECDSAPub(&f.Account.PrivateKey.PublicKey)
	info.PublicKey = asn1.BitString{Bytes: pub, BitLength: len(pub) * 8}
	der, err := asn1.Marshal(info)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	spec := f.keySpec
	f.mu.Unlock()
	return &kms.GetPublicKeyOutput{
		KeyId:     params.KeyId,
		KeySpec:   spec,
		KeyUsage:  types.KeyUsageTypeSignVerify,
		PublicKey: der,
	}, nil
}

func (f *FakeKMS) Sign(ctx context.Context, params *kms.SignInput, optFns ...func(*kms.Options)) (*kms.SignOutput, error) {
	f.signCalls.Add(1)

	f.mu.Lock()
	delay, signErr, highS, onSign := f.delay, f.signErr, f.highS, f.onSign
	f.mu.Unlock()

	if onSign != nil {
		onSign()
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if signErr != nil {
		return nil, signErr
	}
	if aws.ToString(params.KeyId) != f.KeyId {
		return nil, &types.NotFoundException{Message: aws.String("key not found")}
	}
	if params.MessageType != types.MessageTypeDigest || len(params.Message) != 32 {
		return nil, &types.InvalidKeyUsageException{Message: aws.String("expected a 32 byte digest")}
	}
	if params.SigningAlgorithm != types.SigningAlgorithmSpecEcdsaSha256 {
		return nil, &types.InvalidKeyUsageException{Message: aws.String("unsupported signing algorithm")}
	}

	sig, err := crypto.Sign(params.Message, f.Account.PrivateKey)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if highS {
		s = new(big.Int).Sub(crypto.S256().Params().N, s)
	}
	der, err := asn1.Marshal(kmsSignature{R: r, S: s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{
		KeyId:            params.KeyId,
		Signature:        der,
		SigningAlgorithm: params.SigningAlgorithm,
	}, nil
}

func (f *FakeKMS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.identityCalls.Add(1)
	f.mu.Lock()
	identityErr := f.identityErr
	f.mu.Unlock()
	if identityErr != nil {
		return nil, identityErr
	}
	return &sts.GetCallerIdentityOutput{
		Account: aws.String("123456789012"),
		Arn:     aws.String("arn:aws:iam::123456789012:user/bench"),
		UserId:  aws.String("AIDAEXAMPLE"),
	}, nil
}
