package utils

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/q402/q402-go/types"
)

// Identifier generation. Every identifier comes from the process-wide secure
// random source; there is no counter and no time-based fallback. If the
// source fails, generation fails loudly.

// NewNonce returns a 256-bit application nonce as a decimal string.
func NewNonce() (string, error) {
	b, err := randomBytes(32)
	if err != nil {
		return "", err
	}
	return new(big.Int).SetBytes(b).String(), nil
}

// NewPaymentID returns a 256-bit payment id as 0x-prefixed hex.
func NewPaymentID() (string, error) {
	b, err := randomBytes(32)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(b), nil
}

// NewDelegationNonce returns a 64-bit delegation nonce as a decimal string.
func NewDelegationNonce() (string, error) {
	b, err := randomBytes(8)
	if err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint64(b)
	return new(big.Int).SetUint64(n).String(), nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrEntropyFailure,
			Message: "secure random source unavailable: " + err.Error(),
		}
	}
	return b, nil
}
