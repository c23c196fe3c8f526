// Package clients provides a concrete chain boundary: an ethclient-backed
// TxSubmitter that wraps a delegated call in a set-code transaction carrying
// the payload's signed authorization.
package clients

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/holiman/uint256"

	"github.com/q402/q402-go/settlement"
	"github.com/q402/q402-go/types"
	"github.com/q402/q402-go/utils"
)

// receiptPollInterval is how often WaitMined asks the node for a receipt.
const receiptPollInterval = time.Second

// EVMClient submits delegated calls through a JSON-RPC node. The
// facilitator's key pays gas; the payload's authorization rides in the
// transaction's authorization list so the call executes as the owner.
type EVMClient struct {
	client  *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
}

var _ settlement.TxSubmitter = (*EVMClient)(nil)

// NewEVMClient dials the RPC endpoint and loads the facilitator key.
func NewEVMClient(ctx context.Context, rpcURL, hexKey string) (*EVMClient, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrConfigError,
			Message: fmt.Sprintf("invalid facilitator key: %v", err),
		}
	}

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("failed to connect to RPC: %v", err),
		}
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, &types.Q402Error{
			Code:    types.ErrNetworkError,
			Message: fmt.Sprintf("failed to read chain id: %v", err),
		}
	}

	return &EVMClient{client: client, chainID: chainID, key: key}, nil
}

// SubmitDelegated implements settlement.TxSubmitter.
func (c *EVMClient) SubmitDelegated(ctx context.Context, call *settlement.DelegatedCall) (common.Hash, error) {
	auth, err := toSetCodeAuthorization(call.Authorization)
	if err != nil {
		return common.Hash{}, err
	}

	from := crypto.PubkeyToAddress(c.key.PublicKey)

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	tipCap, err := c.client.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch gas tip: %w", err)
	}

	head, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch head: %w", err)
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	gas, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: from,
		To:   &call.Owner,
		Data: call.Data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas estimation failed: %w", err)
	}
	// Authorization processing costs extra; pad the estimate.
	gas += 50_000

	chainID, overflow := uint256.FromBig(c.chainID)
	if overflow {
		return common.Hash{}, errors.New("chain id overflows uint256")
	}
	tip, _ := uint256.FromBig(tipCap)
	fee, _ := uint256.FromBig(feeCap)

	tx, err := coretypes.SignNewTx(c.key, coretypes.LatestSignerForChainID(c.chainID), &coretypes.SetCodeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: fee,
		Gas:       gas,
		To:        call.Owner,
		Value:     uint256.NewInt(0),
		Data:      call.Data,
		AuthList:  []coretypes.SetCodeAuthorization{*auth},
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, tx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	return tx.Hash(), nil
}

// WaitMined implements settlement.TxSubmitter by polling for a receipt
// until the context expires.
func (c *EVMClient) WaitMined(ctx context.Context, txHash common.Hash) (*settlement.Receipt, error) {
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return &settlement.Receipt{
				TxHash:      receipt.TxHash,
				BlockNumber: receipt.BlockNumber,
				Reverted:    receipt.Status != coretypes.ReceiptStatusSuccessful,
			}, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the RPC connection.
func (c *EVMClient) Close() {
	c.client.Close()
}

func toSetCodeAuthorization(auth types.SignedAuthorization) (*coretypes.SetCodeAuthorization, error) {
	chainID, err := utils.ParseBigInt(auth.ChainID)
	if err != nil {
		return nil, types.FieldError("authorization.chainId", err.Error())
	}
	chain, overflow := uint256.FromBig(chainID)
	if overflow {
		return nil, types.FieldError("authorization.chainId", "overflows uint256")
	}

	nonce, err := utils.ParseUint64(auth.Nonce)
	if err != nil {
		return nil, types.FieldError("authorization.nonce", err.Error())
	}

	r, err := hexutil.Decode(auth.R)
	if err != nil {
		return nil, types.FieldError("authorization.r", "must be hex")
	}
	s, err := hexutil.Decode(auth.S)
	if err != nil {
		return nil, types.FieldError("authorization.s", "must be hex")
	}

	var parity uint8
	switch auth.YParity {
	case "0":
		parity = 0
	case "1":
		parity = 1
	default:
		return nil, types.FieldError("authorization.yParity", "must be 0 or 1")
	}

	return &coretypes.SetCodeAuthorization{
		ChainID: *chain,
		Address: common.HexToAddress(auth.Address),
		Nonce:   nonce,
		V:       parity,
		R:       *new(uint256.Int).SetBytes(r),
		S:       *new(uint256.Int).SetBytes(s),
	}, nil
}
