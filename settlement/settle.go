// Package settlement turns a verified payment payload into an on-chain
// transaction. The executor trusts its caller to have verified the payload;
// it does not re-run verification, and it is not idempotent. Guarding
// against double settlement by paymentId is the facilitator ledger's job.
package settlement

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/q402/q402-go/logger"
	"github.com/q402/q402-go/types"
	"github.com/q402/q402-go/utils"
)

// DelegatedCall is the transaction the executor asks the chain boundary to
// submit: a call addressed at the owner's own account, carrying the
// implementation-contract calldata, with the signed authorization attached
// as the delegation credential.
type DelegatedCall struct {
	Owner         common.Address
	Data          []byte
	Authorization types.SignedAuthorization
}

// Receipt is the mined outcome of a submitted delegated call.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber *big.Int
	Reverted    bool
}

// TxSubmitter is the injected transaction-submission capability. The core
// does not implement a blockchain client.
type TxSubmitter interface {
	SubmitDelegated(ctx context.Context, call *DelegatedCall) (common.Hash, error)
	WaitMined(ctx context.Context, txHash common.Hash) (*Receipt, error)
}

// Executor submits verified payloads through a TxSubmitter.
type Executor struct {
	submitter TxSubmitter
	timeout   time.Duration
	log       logger.Logger
}

// NewExecutor creates an executor. A zero timeout defaults to 60 seconds.
func NewExecutor(submitter TxSubmitter, timeout time.Duration, log logger.Logger) *Executor {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Executor{submitter: submitter, timeout: timeout, log: log}
}

// Error prefixes distinguish transient submission problems from terminal
// on-chain failures.
const (
	errSubmission = "submission failed"
	errConfirm    = "confirmation failed"
	errReverted   = "transaction reverted"
)

// Settle submits the payload's delegated call and waits for confirmation.
// Failures are reported in the result, with submission/network problems
// worded distinctly from on-chain reverts.
func (e *Executor) Settle(ctx context.Context, payload *types.SignedPaymentPayload) *types.SettlementResult {
	result := &types.SettlementResult{NetworkID: payload.Details.NetworkID}

	call, err := BuildCall(payload)
	if err != nil {
		result.Error = fmt.Sprintf("invalid payload: %v", err)
		return result
	}

	settleCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	txHash, err := e.submitter.SubmitDelegated(settleCtx, call)
	if err != nil {
		e.log.Warn("settlement submission failed", map[string]any{
			"network": payload.Details.NetworkID,
			"error":   err.Error(),
		})
		result.Error = fmt.Sprintf("%s: %v", errSubmission, err)
		return result
	}

	receipt, err := e.submitter.WaitMined(settleCtx, txHash)
	if err != nil {
		result.TxHash = txHash.Hex()
		result.Error = fmt.Sprintf("%s: %v", errConfirm, err)
		return result
	}

	result.TxHash = receipt.TxHash.Hex()
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.String()
	}

	if receipt.Reverted {
		result.Error = fmt.Sprintf("%s in block %s", errReverted, result.BlockNumber)
		return result
	}

	e.log.Info("payment settled", map[string]any{
		"network": payload.Details.NetworkID,
		"txHash":  result.TxHash,
		"block":   result.BlockNumber,
	})

	result.Success = true
	return result
}

// IsRetryable reports whether a failed settlement may be retried: submission
// and confirmation problems are transient, reverts and malformed payloads
// are terminal.
func IsRetryable(result *types.SettlementResult) bool {
	if result == nil || result.Success {
		return false
	}
	return strings.HasPrefix(result.Error, errSubmission) ||
		strings.HasPrefix(result.Error, errConfirm)
}

// BuildCall packs the implementation-contract calldata for the payload's
// scheme and addresses it at the owner. The witness's real deadline and
// paymentId are threaded through to the call.
func BuildCall(payload *types.SignedPaymentPayload) (*DelegatedCall, error) {
	details := &payload.Details
	if err := details.Validate(); err != nil {
		return nil, err
	}

	signature, err := hexutil.Decode(payload.WitnessSignature)
	if err != nil {
		return nil, types.FieldError("witnessSignature", "must be hex")
	}

	var data []byte
	var owner string
	if details.IsBatch() {
		owner = details.BatchWitness.Owner
		data, err = packBatch(details.BatchWitness, signature)
	} else {
		owner = details.Witness.Owner
		data, err = packSingle(details.Witness, signature)
	}
	if err != nil {
		return nil, err
	}

	if !utils.IsWellFormedAddress(owner) {
		return nil, types.FieldError("owner", "not a valid address")
	}

	return &DelegatedCall{
		Owner:         common.HexToAddress(owner),
		Data:          data,
		Authorization: payload.Authorization,
	}, nil
}

const implementationABI = `[
	{"type":"function","name":"pay","inputs":[
		{"name":"token","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"to","type":"address"},
		{"name":"deadline","type":"uint256"},
		{"name":"paymentId","type":"bytes32"},
		{"name":"nonce","type":"uint256"},
		{"name":"signature","type":"bytes"}]},
	{"type":"function","name":"payBatch","inputs":[
		{"name":"tokens","type":"address[]"},
		{"name":"amounts","type":"uint256[]"},
		{"name":"tos","type":"address[]"},
		{"name":"deadline","type":"uint256"},
		{"name":"paymentId","type":"bytes32"},
		{"name":"nonce","type":"uint256"},
		{"name":"signature","type":"bytes"}]}
]`

var implABI = func() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(implementationABI))
	if err != nil {
		panic(err)
	}
	return parsed
}()

func packSingle(w *types.WitnessMessage, signature []byte) ([]byte, error) {
	amount, err := utils.ParseBigInt(w.Amount)
	if err != nil {
		return nil, types.FieldError("amount", err.Error())
	}

	deadline, nonce, paymentID, err := packCommon(w.Deadline, w.Nonce, w.PaymentID)
	if err != nil {
		return nil, err
	}

	return implABI.Pack("pay",
		common.HexToAddress(w.Token),
		amount,
		common.HexToAddress(w.To),
		deadline,
		paymentID,
		nonce,
		signature,
	)
}

func packBatch(w *types.BatchWitnessMessage, signature []byte) ([]byte, error) {
	tokens := make([]common.Address, 0, len(w.Items))
	amounts := make([]*big.Int, 0, len(w.Items))
	tos := make([]common.Address, 0, len(w.Items))

	for i, item := range w.Items {
		amount, err := utils.ParseBigInt(item.Amount)
		if err != nil {
			return nil, types.FieldError(fmt.Sprintf("items[%d].amount", i), err.Error())
		}
		tokens = append(tokens, common.HexToAddress(item.Token))
		amounts = append(amounts, amount)
		tos = append(tos, common.HexToAddress(item.To))
	}

	deadline, nonce, paymentID, err := packCommon(w.Deadline, w.Nonce, w.PaymentID)
	if err != nil {
		return nil, err
	}

	return implABI.Pack("payBatch", tokens, amounts, tos, deadline, paymentID, nonce, signature)
}

func packCommon(deadlineStr, nonceStr, paymentIDStr string) (*big.Int, *big.Int, common.Hash, error) {
	var paymentID common.Hash

	deadline, err := utils.ParseBigInt(deadlineStr)
	if err != nil {
		return nil, nil, paymentID, types.FieldError("deadline", err.Error())
	}

	nonce, err := utils.ParseBigInt(nonceStr)
	if err != nil {
		return nil, nil, paymentID, types.FieldError("nonce", err.Error())
	}

	if !utils.IsWellFormedHex(paymentIDStr) {
		return nil, nil, paymentID, types.FieldError("paymentId", "must be hex")
	}
	paymentID = common.HexToHash(paymentIDStr)

	return deadline, nonce, paymentID, nil
}
