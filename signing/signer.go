// Package signing produces the two linked signatures of a payment payload:
// the typed-data signature over the witness and the raw-hash signature over
// the authorization tuple.
package signing

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/q402/q402-go/types"
)

// Signer is the injected signing capability. Implementations may hold a raw
// key or proxy to a remote wallet; the core never manages key custody. Both
// methods return 65-byte recoverable signatures and must honor context
// cancellation when signing is interactive.
type Signer interface {
	// Address returns the account the signatures recover to.
	Address() common.Address

	// SignTypedData signs the EIP-712 digest of the given typed data.
	SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error)

	// SignRawHash signs a 32-byte digest directly, with no message prefix.
	SignRawHash(ctx context.Context, hash common.Hash) ([]byte, error)
}

// LocalSigner signs with an in-process secp256k1 key. Useful for
// facilitator-side tooling and tests; interactive wallets implement Signer
// remotely instead.
type LocalSigner struct {
	key *ecdsa.PrivateKey
}

// NewLocalSigner wraps an existing private key.
func NewLocalSigner(key *ecdsa.PrivateKey) *LocalSigner {
	return &LocalSigner{key: key}
}

// NewLocalSignerFromHex parses a hex-encoded private key, with or without
// the 0x prefix.
func NewLocalSignerFromHex(hexKey string) (*LocalSigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrSignatureFailed,
			Message: fmt.Sprintf("invalid private key: %v", err),
		}
	}
	return &LocalSigner{key: key}, nil
}

func (s *LocalSigner) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

func (s *LocalSigner) SignTypedData(ctx context.Context, typedData apitypes.TypedData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	digest, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrSignatureFailed,
			Message: fmt.Sprintf("failed to hash typed data: %v", err),
		}
	}

	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrSignatureFailed,
			Message: fmt.Sprintf("typed data signing failed: %v", err),
		}
	}

	// Wallets report the recovery id as 27/28; match that convention.
	sig[64] += 27
	return sig, nil
}

func (s *LocalSigner) SignRawHash(ctx context.Context, hash common.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrSignatureFailed,
			Message: fmt.Sprintf("raw hash signing failed: %v", err),
		}
	}

	return sig, nil
}
