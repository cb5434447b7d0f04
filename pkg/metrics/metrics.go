package metrics

import (
	"context"

	"github.com/Layr-Labs/wallet-bench-go/pkg/walletService"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records per-backend signing latency and failures.
type Metrics struct {
	signLatency *prometheus.HistogramVec
	signErrors  *prometheus.CounterVec
	initErrors  *prometheus.CounterVec
}

// NewMetrics registers the collectors on reg, or on the default registerer when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		signLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wallet_bench",
			Name:      "sign_latency_ms",
			Help:      "Backend signing call latency in milliseconds, excluding local preparation and normalization",
			Buckets:   []float64{5, 10, 25, 50, 75, 100, 150, 250, 500, 1000, 2500, 5000},
		}, []string{"backend", "chain"}),
		signErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_bench",
			Name:      "sign_errors_total",
			Help:      "Number of failed signing calls by error kind",
		}, []string{"backend", "chain", "kind"}),
		initErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wallet_bench",
			Name:      "initialize_errors_total",
			Help:      "Number of failed initialization attempts by error kind",
		}, []string{"backend", "kind"}),
	}
	reg.MustRegister(m.signLatency, m.signErrors, m.initErrors)
	return m
}

func (m *Metrics) observeSign(backend string, chain walletService.Chain, result *walletService.ServiceResult, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.signErrors.WithLabelValues(backend, chain.String(), walletService.KindOf(err)).Inc()
		return
	}
	m.signLatency.WithLabelValues(backend, chain.String()).Observe(result.ApiLatencyMs)
}

func (m *Metrics) observeInitialize(backend string, err error) {
	if m == nil || err == nil {
		return
	}
	m.initErrors.WithLabelValues(backend, walletService.KindOf(err)).Inc()
}

// InstrumentedWalletService wraps a WalletService and records metrics for each call.
// Results and errors are passed through unchanged.
type InstrumentedWalletService struct {
	inner   walletService.WalletService
	metrics *Metrics
}

var _ walletService.WalletService = (*InstrumentedWalletService)(nil)

func NewInstrumentedWalletService(inner walletService.WalletService, m *Metrics) *InstrumentedWalletService {
	return &InstrumentedWalletService{inner: inner, metrics: m}
}

func (i *InstrumentedWalletService) Name() string {
	return i.inner.Name()
}

func (i *InstrumentedWalletService) Initialize(ctx context.Context) error {
	err := i.inner.Initialize(ctx)
	i.metrics.observeInitialize(i.inner.Name(), err)
	return err
}

func (i *InstrumentedWalletService) SignMessageEthereum(ctx context.Context, message string) (*walletService.ServiceResult, error) {
	result, err := i.inner.SignMessageEthereum(ctx, message)
	i.metrics.observeSign(i.inner.Name(), walletService.ChainEthereum, result, err)
	return result, err
}

func (i *InstrumentedWalletService) SignMessageSolana(ctx context.Context, message string) (*walletService.ServiceResult, error) {
	result, err := i.inner.SignMessageSolana(ctx, message)
	i.metrics.observeSign(i.inner.Name(), walletService.ChainSolana, result, err)
	return result, err
}
