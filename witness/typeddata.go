package witness

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/q402/q402-go/types"
	"github.com/q402/q402-go/utils"
)

// EIP-712 type definitions. The domain binds the witness to the delegation
// target: a witness signed for one implementation contract does not verify
// against another.
var (
	domainType = []apitypes.Type{
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	}

	paymentType = []apitypes.Type{
		{Name: "owner", Type: "address"},
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "to", Type: "address"},
		{Name: "deadline", Type: "uint256"},
		{Name: "paymentId", Type: "bytes32"},
		{Name: "nonce", Type: "uint256"},
	}

	batchPaymentType = []apitypes.Type{
		{Name: "owner", Type: "address"},
		{Name: "items", Type: "PaymentItem[]"},
		{Name: "deadline", Type: "uint256"},
		{Name: "paymentId", Type: "bytes32"},
		{Name: "nonce", Type: "uint256"},
	}

	paymentItemType = []apitypes.Type{
		{Name: "token", Type: "address"},
		{Name: "amount", Type: "uint256"},
		{Name: "to", Type: "address"},
	}
)

// TypedData assembles the EIP-712 payload for the witness carried by a
// payment offer. The primary type follows the offer's scheme.
func TypedData(details *types.PaymentDetails) (apitypes.TypedData, error) {
	chainID, err := utils.ParseBigInt(details.Authorization.ChainID)
	if err != nil {
		return apitypes.TypedData{}, types.FieldError("authorization.chainId", err.Error())
	}

	domain := apitypes.TypedDataDomain{
		Name:              types.TypedDataDomainName,
		Version:           types.TypedDataDomainVersion,
		ChainId:           (*math.HexOrDecimal256)(chainID),
		VerifyingContract: details.ImplementationContract,
	}

	if details.IsBatch() {
		if details.BatchWitness == nil {
			return apitypes.TypedData{}, types.FieldError("batchWitness", "missing for batch scheme")
		}
		return batchTypedData(domain, details.BatchWitness), nil
	}

	if details.Witness == nil {
		return apitypes.TypedData{}, types.FieldError("witness", "missing for exact scheme")
	}

	w := details.Witness
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"Payment":      paymentType,
		},
		PrimaryType: "Payment",
		Domain:      domain,
		Message: apitypes.TypedDataMessage{
			"owner":     w.Owner,
			"token":     w.Token,
			"amount":    w.Amount,
			"to":        w.To,
			"deadline":  w.Deadline,
			"paymentId": common.HexToHash(w.PaymentID).Hex(),
			"nonce":     w.Nonce,
		},
	}, nil
}

func batchTypedData(domain apitypes.TypedDataDomain, w *types.BatchWitnessMessage) apitypes.TypedData {
	items := make([]interface{}, 0, len(w.Items))
	for _, item := range w.Items {
		items = append(items, map[string]interface{}{
			"token":  item.Token,
			"amount": item.Amount,
			"to":     item.To,
		})
	}

	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": domainType,
			"BatchPayment": batchPaymentType,
			"PaymentItem":  paymentItemType,
		},
		PrimaryType: "BatchPayment",
		Domain:      domain,
		Message: apitypes.TypedDataMessage{
			"owner":     w.Owner,
			"items":     items,
			"deadline":  w.Deadline,
			"paymentId": common.HexToHash(w.PaymentID).Hex(),
			"nonce":     w.Nonce,
		},
	}
}

// Digest computes the final EIP-712 digest the witness signature covers.
func Digest(details *types.PaymentDetails) (common.Hash, error) {
	typedData, err := TypedData(details)
	if err != nil {
		return common.Hash{}, err
	}

	hash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return common.Hash{}, &types.Q402Error{
			Code:    types.ErrInvalidDetails,
			Message: fmt.Sprintf("failed to hash witness typed data: %v", err),
		}
	}

	return common.BytesToHash(hash), nil
}

// Owner returns the witness owner for either scheme.
func Owner(details *types.PaymentDetails) string {
	if details.IsBatch() {
		if details.BatchWitness == nil {
			return ""
		}
		return details.BatchWitness.Owner
	}
	if details.Witness == nil {
		return ""
	}
	return details.Witness.Owner
}
