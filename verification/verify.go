// Package verification decides whether a decoded payment payload can be
// trusted. Verify is a pure function: no I/O, no clock reads beyond the
// supplied now, and a data result on every path including panics.
package verification

import (
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/q402/q402-go/delegation"
	"github.com/q402/q402-go/types"
	"github.com/q402/q402-go/utils"
	"github.com/q402/q402-go/witness"
)

// Options parameterize a verification run.
type Options struct {
	// Now is the verification clock. The zero value means time.Now().
	Now time.Time

	// SupportedNetworks and SupportedSchemes, when non-empty, restrict
	// which offers the verifier accepts.
	SupportedNetworks []string
	SupportedSchemes  []string
}

func (o *Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// Verify runs the full check sequence over a decoded payload: recover both
// signers, require them to be the same address, then validate deadline,
// amounts and recipients. Verification is idempotent; the same payload and
// clock always produce the same result.
func Verify(payload *types.SignedPaymentPayload, opts Options) (result *types.VerificationResult) {
	result = &types.VerificationResult{}

	// Malformed input must surface as data, never as a fault.
	defer func() {
		if r := recover(); r != nil {
			result = &types.VerificationResult{
				IsValid:       false,
				InvalidReason: types.ReasonUnexpectedError,
			}
		}
	}()

	if payload == nil || payload.WitnessSignature == "" {
		result.InvalidReason = types.ReasonInvalidPayload
		return result
	}

	details := &payload.Details
	if err := details.Validate(); err != nil {
		result.InvalidReason = types.ReasonInvalidPayload
		return result
	}

	if len(opts.SupportedNetworks) > 0 && !containsFold(opts.SupportedNetworks, details.NetworkID) {
		result.InvalidReason = types.ReasonUnsupportedNetwork
		return result
	}

	if len(opts.SupportedSchemes) > 0 && !containsFold(opts.SupportedSchemes, details.Scheme) {
		result.InvalidReason = types.ReasonUnsupportedScheme
		return result
	}

	// Both recoveries run before the equality check so the detail flags
	// report each signature on its own merits.
	witnessSigner, witnessErr := recoverWitnessSigner(payload)
	result.Details.WitnessValid = witnessErr == nil

	authSigner, authErr := delegation.RecoverSigner(payload.Authorization)
	result.Details.AuthorizationValid = authErr == nil

	if witnessErr != nil {
		result.InvalidReason = types.ReasonInvalidSignature
		return result
	}

	if authErr != nil {
		result.InvalidReason = types.ReasonInvalidAuthorization
		return result
	}

	// The central protocol invariant: the witness and the delegation
	// credential must come from the same key, or a facilitator could
	// settle value one party committed using code rights another granted.
	if witnessSigner != authSigner {
		result.InvalidReason = types.ReasonInvalidSignature
		return result
	}

	if !utils.IsFutureDeadline(witnessDeadline(details), opts.now()) {
		result.InvalidReason = types.ReasonExpired
		return result
	}
	result.Details.DeadlineValid = true

	if !amountsPositive(details) {
		result.InvalidReason = types.ReasonInvalidAmount
		return result
	}
	result.Details.AmountValid = true

	if !recipientsWellFormed(details) {
		result.InvalidReason = types.ReasonInvalidRecipient
		return result
	}
	result.Details.RecipientValid = true

	result.IsValid = true
	result.Payer = witnessSigner.Hex()
	return result
}

// BatchVerify verifies payloads concurrently. Verification is pure, so the
// payloads need no coordination.
func BatchVerify(payloads []*types.SignedPaymentPayload, opts Options) []*types.VerificationResult {
	results := make([]*types.VerificationResult, len(payloads))

	var wg sync.WaitGroup
	for i, payload := range payloads {
		wg.Add(1)
		go func(i int, p *types.SignedPaymentPayload) {
			defer wg.Done()
			results[i] = Verify(p, opts)
		}(i, payload)
	}
	wg.Wait()

	return results
}

func recoverWitnessSigner(payload *types.SignedPaymentPayload) (common.Address, error) {
	digest, err := witness.Digest(&payload.Details)
	if err != nil {
		return common.Address{}, err
	}

	sig, err := hexutil.Decode(payload.WitnessSignature)
	if err != nil {
		return common.Address{}, err
	}
	if len(sig) != 65 {
		return common.Address{}, &types.Q402Error{
			Code:    types.ErrSignatureFailed,
			Message: "witness signature must be 65 bytes",
		}
	}

	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(digest.Bytes(), normalized)
	if err != nil {
		return common.Address{}, err
	}

	return crypto.PubkeyToAddress(*pub), nil
}

func witnessDeadline(details *types.PaymentDetails) string {
	if details.IsBatch() {
		return details.BatchWitness.Deadline
	}
	return details.Witness.Deadline
}

func amountsPositive(details *types.PaymentDetails) bool {
	if details.IsBatch() {
		for _, item := range details.BatchWitness.Items {
			if !utils.IsPositiveAmount(item.Amount) {
				return false
			}
		}
		return true
	}
	return utils.IsPositiveAmount(details.Witness.Amount)
}

func recipientsWellFormed(details *types.PaymentDetails) bool {
	if details.IsBatch() {
		for _, item := range details.BatchWitness.Items {
			if !utils.IsWellFormedAddress(item.To) {
				return false
			}
		}
		return true
	}
	return utils.IsWellFormedAddress(details.Witness.To)
}

func containsFold(set []string, value string) bool {
	for _, entry := range set {
		if strings.EqualFold(entry, value) {
			return true
		}
	}
	return false
}
