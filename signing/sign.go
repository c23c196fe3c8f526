package signing

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/q402/q402-go/delegation"
	"github.com/q402/q402-go/types"
	"github.com/q402/q402-go/witness"
)

// SignPayment produces a complete SignedPaymentPayload for a payment offer.
// Both signatures come from the same signer, which is what the verifier's
// signer-equality check later enforces. The operation is atomic: any failure
// returns an error and no partial payload.
func SignPayment(ctx context.Context, signer Signer, details *types.PaymentDetails) (*types.SignedPaymentPayload, error) {
	if err := details.Validate(); err != nil {
		return nil, err
	}

	owner := witness.Owner(details)
	if !strings.EqualFold(owner, signer.Address().Hex()) {
		return nil, &types.Q402Error{
			Code:    types.ErrSignatureFailed,
			Message: fmt.Sprintf("witness owner %s does not match signer %s", owner, signer.Address().Hex()),
		}
	}

	typedData, err := witness.TypedData(details)
	if err != nil {
		return nil, err
	}

	witnessSig, err := signer.SignTypedData(ctx, typedData)
	if err != nil {
		return nil, wrapSigning("witness", err)
	}
	if len(witnessSig) != 65 {
		return nil, &types.Q402Error{
			Code:    types.ErrSignatureFailed,
			Message: fmt.Sprintf("witness signature must be 65 bytes, got %d", len(witnessSig)),
		}
	}

	sigHash, err := delegation.SigHash(details.Authorization)
	if err != nil {
		return nil, err
	}

	authSig, err := signer.SignRawHash(ctx, sigHash)
	if err != nil {
		return nil, wrapSigning("authorization", err)
	}

	signedAuth, err := delegation.Attach(details.Authorization, authSig)
	if err != nil {
		return nil, err
	}

	return &types.SignedPaymentPayload{
		Q402Version:      int(types.Q402Version1),
		WitnessSignature: hexutil.Encode(witnessSig),
		Authorization:    *signedAuth,
		Details:          *details,
	}, nil
}

func wrapSigning(stage string, err error) error {
	if qerr, ok := err.(*types.Q402Error); ok {
		return qerr
	}
	return &types.Q402Error{
		Code:    types.ErrSignatureFailed,
		Message: fmt.Sprintf("%s signing failed: %v", stage, err),
	}
}
