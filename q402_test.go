package q402

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/q402/q402-go/metrics"
	"github.com/q402/q402-go/settlement"
	"github.com/q402/q402-go/signing"
	"github.com/q402/q402-go/types"
	"github.com/q402/q402-go/witness"
)

const (
	testKey   = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	tokenAddr = "0x036CbD53842c5426634e7929541eC2318f3dCF7e"
	toAddr    = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
	implAddr  = "0x1111111111111111111111111111111111111111"
)

func baseSepoliaConfig() *types.Q402Config {
	return &types.Q402Config{
		Networks: map[string]types.NetworkInfo{
			"base-sepolia": {
				Name:    "Base Sepolia",
				ChainID: "84532",
				RPCURL:  "https://sepolia.base.org",
				Testnet: true,
			},
		},
	}
}

func facadeTestPayload(t *testing.T) *types.SignedPaymentPayload {
	t.Helper()

	signer, err := signing.NewLocalSignerFromHex(testKey)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}

	deadline := strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)
	w, err := witness.Build(signer.Address().Hex(), tokenAddr, "10000", toAddr, &witness.Options{
		Deadline: deadline,
	})
	if err != nil {
		t.Fatalf("failed to build witness: %v", err)
	}

	details := &types.PaymentDetails{
		Scheme:                 string(types.SchemeExact),
		NetworkID:              "base-sepolia",
		Token:                  tokenAddr,
		Amount:                 w.Amount,
		To:                     toAddr,
		ImplementationContract: implAddr,
		Witness:                w,
		Authorization: types.UnsignedAuthorization{
			ChainID: "84532",
			Address: implAddr,
			Nonce:   "7",
		},
	}

	payload, err := signing.SignPayment(context.Background(), signer, details)
	if err != nil {
		t.Fatalf("failed to sign payment: %v", err)
	}
	return payload
}

func TestFacadeVerify(t *testing.T) {
	q := New(baseSepoliaConfig())

	result := q.Verify(facadeTestPayload(t))
	if !result.IsValid {
		t.Fatalf("payload should verify, got %s", result.InvalidReason)
	}
}

func TestFacadeRejectsUnregisteredNetwork(t *testing.T) {
	q := New(&types.Q402Config{
		Networks: map[string]types.NetworkInfo{
			"polygon": {Name: "Polygon", ChainID: "137"},
		},
	})

	result := q.Verify(facadeTestPayload(t))
	if result.IsValid {
		t.Fatal("a payload for an unregistered network must not verify")
	}
	if result.InvalidReason != types.ReasonUnsupportedNetwork {
		t.Fatalf("expected %s, got %s", types.ReasonUnsupportedNetwork, result.InvalidReason)
	}
}

func TestRegisterNetwork(t *testing.T) {
	q := New(&types.Q402Config{})

	if q.IsNetworkSupported("base-sepolia") {
		t.Fatal("no networks registered yet")
	}

	q.RegisterNetwork("base-sepolia", types.NetworkInfo{Name: "Base Sepolia", ChainID: "84532"})

	if !q.IsNetworkSupported("base-sepolia") {
		t.Fatal("network registration did not take effect")
	}
	if result := q.Verify(facadeTestPayload(t)); !result.IsValid {
		t.Fatalf("payload should verify after registration, got %s", result.InvalidReason)
	}
}

func TestFacadeVerifyAt(t *testing.T) {
	q := New(baseSepoliaConfig())

	past := q.VerifyAt(facadeTestPayload(t), time.Now().Add(2*time.Hour))
	if past.InvalidReason != types.ReasonExpired {
		t.Fatalf("expected %s, got %s", types.ReasonExpired, past.InvalidReason)
	}
}

func TestFacadeBatchVerify(t *testing.T) {
	q := New(baseSepoliaConfig())

	results := q.BatchVerify([]*types.SignedPaymentPayload{facadeTestPayload(t), nil})
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].IsValid || results[1].IsValid {
		t.Fatalf("unexpected outcomes: %v %v", results[0].IsValid, results[1].IsValid)
	}
}

func TestSettleWithoutSubmitter(t *testing.T) {
	q := New(baseSepoliaConfig())

	result := q.Settle(context.Background(), facadeTestPayload(t))
	if result.Success {
		t.Fatal("settlement cannot succeed without a submitter")
	}
	if result.Error == "" {
		t.Fatal("the missing submitter must be reported")
	}
}

type acceptAllSubmitter struct{}

func (acceptAllSubmitter) SubmitDelegated(ctx context.Context, call *settlement.DelegatedCall) (common.Hash, error) {
	return common.HexToHash("0xbeef"), nil
}

func (acceptAllSubmitter) WaitMined(ctx context.Context, txHash common.Hash) (*settlement.Receipt, error) {
	return &settlement.Receipt{TxHash: txHash}, nil
}

func TestFacadeSettle(t *testing.T) {
	recorder, err := metrics.NewPrometheusRecorder(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("failed to create recorder: %v", err)
	}

	q := New(baseSepoliaConfig(),
		WithSubmitter(acceptAllSubmitter{}),
		WithMetrics(recorder),
	)

	result := q.Settle(context.Background(), facadeTestPayload(t))
	if !result.Success {
		t.Fatalf("settlement should succeed, got %q", result.Error)
	}
}

func TestSupported(t *testing.T) {
	q := New(baseSepoliaConfig())

	supported := q.Supported()
	if len(supported.Kinds) != 2 {
		t.Fatalf("one network with two schemes yields 2 kinds, got %d", len(supported.Kinds))
	}
	for _, kind := range supported.Kinds {
		if kind.NetworkID != "base-sepolia" {
			t.Fatalf("unexpected network %s", kind.NetworkID)
		}
		if kind.Q402Version != ProtocolVersion {
			t.Fatalf("unexpected version %d", kind.Q402Version)
		}
	}
}

func TestNewFromJSON(t *testing.T) {
	q, err := NewFromJSON([]byte(`{
		"networks": {
			"base-sepolia": {"name": "Base Sepolia", "chainId": "84532", "testnet": true}
		}
	}`))
	if err != nil {
		t.Fatalf("NewFromJSON failed: %v", err)
	}
	if !q.IsNetworkSupported("base-sepolia") {
		t.Fatal("configured network should be supported")
	}

	if _, err := NewFromJSON([]byte(`{"networks":{"bad":{"name":"Bad"}}}`)); err == nil {
		t.Fatal("a network entry with no chainId must be rejected")
	}
}

func TestWithSchemes(t *testing.T) {
	q := New(baseSepoliaConfig(), WithSchemes("exact"))

	supported := q.Supported()
	if len(supported.Kinds) != 1 || supported.Kinds[0].Scheme != "exact" {
		t.Fatalf("unexpected kinds: %+v", supported.Kinds)
	}
}
