// Package q402 implements the q402 delegated-payment authorization
// protocol: a payer signs a typed value-transfer witness together with a
// code-delegation credential, and a facilitator verifies the pair and
// settles the transfer on-chain exactly once.
package q402

import (
	"context"
	"time"

	"github.com/q402/q402-go/logger"
	"github.com/q402/q402-go/metrics"
	"github.com/q402/q402-go/settlement"
	"github.com/q402/q402-go/types"
	"github.com/q402/q402-go/utils"
	"github.com/q402/q402-go/verification"
)

// Version information.
const (
	Version         = "0.1.0"
	ProtocolVersion = int(types.Q402Version1)
)

// Q402 bundles verification and settlement behind one configured entry
// point, with logging and metrics around both.
type Q402 struct {
	config    *types.Q402Config
	timeout   time.Duration
	log       logger.Logger
	metrics   metrics.Recorder
	submitter settlement.TxSubmitter
	executor  *settlement.Executor

	networks []string
	schemes  []string
}

// New creates a Q402 instance. Networks come from the config registry;
// every network supports both the exact and batch schemes.
func New(config *types.Q402Config, opts ...Option) *Q402 {
	if config == nil {
		config = &types.Q402Config{}
	}

	timeout := 30 * time.Second
	if config.DefaultTimeout > 0 {
		timeout = config.DefaultTimeout
	}

	q := &Q402{
		config:  config,
		timeout: timeout,
		log:     logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		schemes: []string{string(types.SchemeExact), string(types.SchemeBatch)},
	}

	for name := range config.Networks {
		q.networks = append(q.networks, name)
	}

	for _, opt := range opts {
		opt(q)
	}

	// Config-driven defaults apply only where no option took over.
	if _, noop := q.log.(logger.NoopLogger); noop && config.LogLevel != "" {
		q.log = logger.NewZapLogger(config.LogLevel)
	}
	if _, noop := q.metrics.(metrics.NoopRecorder); noop && config.EnableMetrics {
		if recorder, err := metrics.NewPrometheusRecorder(nil); err == nil {
			q.metrics = recorder
		}
	}

	if q.submitter != nil {
		q.executor = settlement.NewExecutor(q.submitter, q.timeout, q.log)
	}

	return q
}

// NewFromJSON creates a Q402 instance from a JSON configuration document,
// validating every registered network entry.
func NewFromJSON(data []byte, opts ...Option) (*Q402, error) {
	config, err := utils.ParseQ402Config(data)
	if err != nil {
		return nil, err
	}
	return New(config, opts...), nil
}

// RegisterNetwork adds a network to the registry after construction.
func (q *Q402) RegisterNetwork(name string, info types.NetworkInfo) {
	if q.config.Networks == nil {
		q.config.Networks = make(map[string]types.NetworkInfo)
	}
	q.config.Networks[name] = info
	q.networks = append(q.networks, name)
}

// IsNetworkSupported checks the registry for a network name.
func (q *Q402) IsNetworkSupported(name string) bool {
	_, ok := q.config.Network(name)
	return ok
}

// Verify runs the pure verifier against the configured networks and schemes
// using the current time, recording the outcome.
func (q *Q402) Verify(payload *types.SignedPaymentPayload) *types.VerificationResult {
	return q.VerifyAt(payload, time.Now())
}

// VerifyAt is Verify with an explicit clock, for deterministic callers.
func (q *Q402) VerifyAt(payload *types.SignedPaymentPayload, now time.Time) *types.VerificationResult {
	start := time.Now()

	result := verification.Verify(payload, verification.Options{
		Now:               now,
		SupportedNetworks: q.networks,
		SupportedSchemes:  q.schemes,
	})

	network := ""
	if payload != nil {
		network = payload.Details.NetworkID
	}

	labels := map[string]string{"network": network, "result": outcome(result.IsValid)}
	q.metrics.IncCounter("verify", labels)
	q.metrics.ObserveLatency("verify", time.Since(start), labels)

	if result.IsValid {
		q.log.Debug("payload verified", map[string]any{
			"network": network,
			"payer":   result.Payer,
		})
	} else {
		q.log.Info("payload rejected", map[string]any{
			"network": network,
			"reason":  string(result.InvalidReason),
		})
	}

	return result
}

// BatchVerify verifies payloads concurrently with one shared clock.
func (q *Q402) BatchVerify(payloads []*types.SignedPaymentPayload) []*types.VerificationResult {
	return verification.BatchVerify(payloads, verification.Options{
		Now:               time.Now(),
		SupportedNetworks: q.networks,
		SupportedSchemes:  q.schemes,
	})
}

// Settle submits a payload that has already passed Verify. Settlement is not
// idempotent; callers must track paymentId usage to prevent double
// submission.
func (q *Q402) Settle(ctx context.Context, payload *types.SignedPaymentPayload) *types.SettlementResult {
	if q.executor == nil {
		return &types.SettlementResult{
			Error: "no transaction submitter configured",
		}
	}

	start := time.Now()
	result := q.executor.Settle(ctx, payload)

	labels := map[string]string{
		"network": payload.Details.NetworkID,
		"result":  outcome(result.Success),
	}
	q.metrics.IncCounter("settle", labels)
	q.metrics.ObserveLatency("settle", time.Since(start), labels)

	return result
}

// Supported lists every scheme/network pair this instance settles.
func (q *Q402) Supported() *types.SupportedResponse {
	kinds := make([]types.SupportedKind, 0, len(q.networks)*len(q.schemes))
	for _, network := range q.networks {
		for _, scheme := range q.schemes {
			kinds = append(kinds, types.SupportedKind{
				Q402Version: ProtocolVersion,
				Scheme:      scheme,
				NetworkID:   network,
			})
		}
	}
	return &types.SupportedResponse{Kinds: kinds}
}

func outcome(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}
