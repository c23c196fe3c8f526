package settlement

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

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

// stubSubmitter scripts the chain boundary for a single settlement.
type stubSubmitter struct {
	submitErr error
	waitErr   error
	reverted  bool

	lastCall *DelegatedCall
}

func (s *stubSubmitter) SubmitDelegated(ctx context.Context, call *DelegatedCall) (common.Hash, error) {
	s.lastCall = call
	if s.submitErr != nil {
		return common.Hash{}, s.submitErr
	}
	return common.HexToHash("0xabc123"), nil
}

func (s *stubSubmitter) WaitMined(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	if s.waitErr != nil {
		return nil, s.waitErr
	}
	return &Receipt{TxHash: txHash, BlockNumber: big.NewInt(1234), Reverted: s.reverted}, nil
}

func settleTestPayload(t *testing.T) *types.SignedPaymentPayload {
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

func TestSettleSuccess(t *testing.T) {
	sub := &stubSubmitter{}
	exec := NewExecutor(sub, 0, nil)

	result := exec.Settle(context.Background(), settleTestPayload(t))

	if !result.Success {
		t.Fatalf("settlement should succeed, got error %q", result.Error)
	}
	if result.TxHash == "" {
		t.Fatal("successful settlement must report a transaction hash")
	}
	if result.BlockNumber != "1234" {
		t.Fatalf("blockNumber = %s, want 1234", result.BlockNumber)
	}
	if result.NetworkID != "base-sepolia" {
		t.Fatalf("networkId = %s, want base-sepolia", result.NetworkID)
	}
	if IsRetryable(result) {
		t.Fatal("a successful settlement is not retryable")
	}
}

func TestSettleSubmissionFailureIsRetryable(t *testing.T) {
	sub := &stubSubmitter{submitErr: errors.New("connection refused")}
	exec := NewExecutor(sub, 0, nil)

	result := exec.Settle(context.Background(), settleTestPayload(t))

	if result.Success {
		t.Fatal("settlement must fail when submission fails")
	}
	if result.TxHash != "" {
		t.Fatal("no hash exists before submission succeeds")
	}
	if !IsRetryable(result) {
		t.Fatalf("submission failures are transient, got %q", result.Error)
	}
}

func TestSettleConfirmationFailureIsRetryable(t *testing.T) {
	sub := &stubSubmitter{waitErr: errors.New("rpc timeout")}
	exec := NewExecutor(sub, 0, nil)

	result := exec.Settle(context.Background(), settleTestPayload(t))

	if result.Success {
		t.Fatal("settlement must fail when confirmation fails")
	}
	if result.TxHash == "" {
		t.Fatal("the submitted hash must be reported even when confirmation fails")
	}
	if !IsRetryable(result) {
		t.Fatalf("confirmation failures are transient, got %q", result.Error)
	}
}

func TestSettleRevertIsTerminal(t *testing.T) {
	sub := &stubSubmitter{reverted: true}
	exec := NewExecutor(sub, 0, nil)

	result := exec.Settle(context.Background(), settleTestPayload(t))

	if result.Success {
		t.Fatal("a reverted transaction is a failed settlement")
	}
	if IsRetryable(result) {
		t.Fatalf("reverts are terminal, got %q", result.Error)
	}
	if result.TxHash == "" || result.BlockNumber == "" {
		t.Fatal("a mined revert still has a hash and block")
	}
}

func TestSettleMalformedPayloadIsTerminal(t *testing.T) {
	sub := &stubSubmitter{}
	exec := NewExecutor(sub, 0, nil)

	broken := settleTestPayload(t)
	broken.Details.Witness = nil

	result := exec.Settle(context.Background(), broken)

	if result.Success {
		t.Fatal("a payload with no witness must not settle")
	}
	if IsRetryable(result) {
		t.Fatal("malformed payloads are terminal")
	}
	if sub.lastCall != nil {
		t.Fatal("nothing may be submitted for a malformed payload")
	}
}

func TestBuildCallThreadsWitnessFields(t *testing.T) {
	payload := settleTestPayload(t)
	w := payload.Details.Witness

	call, err := BuildCall(payload)
	if err != nil {
		t.Fatalf("BuildCall failed: %v", err)
	}

	if call.Owner != common.HexToAddress(w.Owner) {
		t.Fatalf("call owner = %s, want %s", call.Owner.Hex(), w.Owner)
	}
	if call.Authorization != payload.Authorization {
		t.Fatal("the signed authorization must travel with the call")
	}

	// The witness's real deadline and paymentId must land in the calldata,
	// not zero placeholders.
	deadline, ok := new(big.Int).SetString(w.Deadline, 10)
	if !ok {
		t.Fatalf("bad deadline in witness: %s", w.Deadline)
	}
	deadlineWord := common.BigToHash(deadline)
	if !bytes.Contains(call.Data, deadlineWord.Bytes()) {
		t.Fatal("calldata does not carry the witness deadline")
	}
	paymentWord := common.HexToHash(w.PaymentID)
	if !bytes.Contains(call.Data, paymentWord.Bytes()) {
		t.Fatal("calldata does not carry the witness paymentId")
	}

	method, err := implABI.MethodById(call.Data[:4])
	if err != nil {
		t.Fatalf("calldata selector is not recognized: %v", err)
	}
	if method.Name != "pay" {
		t.Fatalf("selector = %s, want pay", method.Name)
	}
}

func TestBuildCallBatch(t *testing.T) {
	signer, err := signing.NewLocalSignerFromHex(testKey)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}

	deadline := strconv.FormatInt(time.Now().Add(time.Hour).Unix(), 10)
	w, err := witness.BuildBatch(signer.Address().Hex(), []types.WitnessItem{
		{Token: tokenAddr, Amount: "100", To: toAddr},
		{Token: tokenAddr, Amount: "200", To: toAddr},
	}, &witness.Options{Deadline: deadline})
	if err != nil {
		t.Fatalf("failed to build batch witness: %v", err)
	}

	details := &types.PaymentDetails{
		Scheme:                 string(types.SchemeBatch),
		NetworkID:              "base-sepolia",
		Items:                  w.Items,
		ImplementationContract: implAddr,
		BatchWitness:           w,
		Authorization: types.UnsignedAuthorization{
			ChainID: "84532",
			Address: implAddr,
			Nonce:   "8",
		},
	}

	payload, err := signing.SignPayment(context.Background(), signer, details)
	if err != nil {
		t.Fatalf("failed to sign batch payment: %v", err)
	}

	call, err := BuildCall(payload)
	if err != nil {
		t.Fatalf("BuildCall failed: %v", err)
	}

	method, err := implABI.MethodById(call.Data[:4])
	if err != nil {
		t.Fatalf("calldata selector is not recognized: %v", err)
	}
	if method.Name != "payBatch" {
		t.Fatalf("selector = %s, want payBatch", method.Name)
	}
}

func TestIsRetryableNil(t *testing.T) {
	if IsRetryable(nil) {
		t.Fatal("nil result is not retryable")
	}
}
