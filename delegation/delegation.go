// Package delegation builds and hashes the code-delegation credential: the
// tuple granting a contract the right to execute as the signer, scoped to a
// chain and a nonce.
package delegation

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/q402/q402-go/types"
	"github.com/q402/q402-go/utils"
)

// AuthorizationMagic is the type-prefix byte identifying authorization-tuple
// messages in the signing hash.
const AuthorizationMagic = byte(0x05)

// Build constructs an unsigned authorization tuple for the given chain and
// delegation target. An empty nonce is filled from the secure random source.
// A nil chainID normalizes to zero, meaning valid on any chain.
func Build(chainID *big.Int, address string, nonce string) (*types.UnsignedAuthorization, error) {
	if !utils.IsWellFormedAddress(address) {
		return nil, types.FieldError("address", fmt.Sprintf("not a valid address: %q", address))
	}

	if chainID == nil {
		chainID = new(big.Int)
	}
	if chainID.Sign() < 0 {
		return nil, types.FieldError("chainId", "must not be negative")
	}

	if nonce == "" {
		var err error
		if nonce, err = utils.NewDelegationNonce(); err != nil {
			return nil, err
		}
	} else if _, err := utils.ParseUint64(nonce); err != nil {
		return nil, types.FieldError("nonce", err.Error())
	}

	return &types.UnsignedAuthorization{
		ChainID: chainID.String(),
		Address: address,
		Nonce:   nonce,
	}, nil
}

// tuple is the canonical wire form: an ordered list where a zero chainId
// RLP-encodes as the empty string, never as a zero byte.
type tuple struct {
	ChainID *big.Int
	Address common.Address
	Nonce   uint64
}

// SigHash computes keccak256(0x05 || rlp([chainId, address, nonce])), the
// digest the authorization signature covers. The encoding is protocol-fixed;
// it must match byte-for-byte across implementations.
func SigHash(auth types.UnsignedAuthorization) (common.Hash, error) {
	chainID, err := utils.ParseBigInt(auth.ChainID)
	if err != nil {
		return common.Hash{}, types.FieldError("chainId", err.Error())
	}
	if chainID.Sign() < 0 {
		return common.Hash{}, types.FieldError("chainId", "must not be negative")
	}

	if !utils.IsWellFormedAddress(auth.Address) {
		return common.Hash{}, types.FieldError("address", fmt.Sprintf("not a valid address: %q", auth.Address))
	}

	nonce, err := utils.ParseUint64(auth.Nonce)
	if err != nil {
		return common.Hash{}, types.FieldError("nonce", err.Error())
	}

	encoded, err := rlp.EncodeToBytes(&tuple{
		ChainID: chainID,
		Address: common.HexToAddress(auth.Address),
		Nonce:   nonce,
	})
	if err != nil {
		return common.Hash{}, &types.Q402Error{
			Code:    types.ErrInvalidField,
			Message: fmt.Sprintf("failed to encode authorization tuple: %v", err),
		}
	}

	return crypto.Keccak256Hash(append([]byte{AuthorizationMagic}, encoded...)), nil
}

// Attach combines an unsigned tuple with a 65-byte recoverable signature,
// normalizing the recovery id into a 0/1 parity bit.
func Attach(auth types.UnsignedAuthorization, sig []byte) (*types.SignedAuthorization, error) {
	if len(sig) != 65 {
		return nil, &types.Q402Error{
			Code:    types.ErrSignatureFailed,
			Message: fmt.Sprintf("authorization signature must be 65 bytes, got %d", len(sig)),
		}
	}

	v := sig[64]
	if v >= 27 {
		v -= 27
	}
	if v > 1 {
		return nil, &types.Q402Error{
			Code:    types.ErrSignatureFailed,
			Message: fmt.Sprintf("invalid recovery id %d", sig[64]),
		}
	}

	return &types.SignedAuthorization{
		ChainID: auth.ChainID,
		Address: auth.Address,
		Nonce:   auth.Nonce,
		YParity: fmt.Sprintf("%d", v),
		R:       hexutil.Encode(sig[0:32]),
		S:       hexutil.Encode(sig[32:64]),
	}, nil
}

// RecoverSigner recovers the address that signed the authorization tuple
// from its canonical hash and (yParity, r, s).
func RecoverSigner(auth types.SignedAuthorization) (common.Address, error) {
	digest, err := SigHash(auth.Unsigned())
	if err != nil {
		return common.Address{}, err
	}

	r, err := hexutil.Decode(auth.R)
	if err != nil || len(r) == 0 || len(r) > 32 {
		return common.Address{}, types.FieldError("r", "must be at most 32 bytes of hex")
	}

	s, err := hexutil.Decode(auth.S)
	if err != nil || len(s) == 0 || len(s) > 32 {
		return common.Address{}, types.FieldError("s", "must be at most 32 bytes of hex")
	}

	var parity byte
	switch auth.YParity {
	case "0":
		parity = 0
	case "1":
		parity = 1
	default:
		return common.Address{}, types.FieldError("yParity", fmt.Sprintf("must be 0 or 1, got %q", auth.YParity))
	}

	sig := make([]byte, 65)
	copy(sig[32-len(r):32], r)
	copy(sig[64-len(s):64], s)
	sig[64] = parity

	pub, err := crypto.SigToPub(digest.Bytes(), sig)
	if err != nil {
		return common.Address{}, &types.Q402Error{
			Code:    types.ErrSignatureFailed,
			Message: fmt.Sprintf("failed to recover authorization signer: %v", err),
		}
	}

	return crypto.PubkeyToAddress(*pub), nil
}
