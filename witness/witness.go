// Package witness constructs and hashes the value-transfer commitment a
// payer signs: who pays whom, how much, by when.
package witness

import (
	"fmt"
	"strconv"
	"time"

	"github.com/q402/q402-go/types"
	"github.com/q402/q402-go/utils"
)

// DefaultValidity is how long a witness stays valid when the caller does not
// supply a deadline.
const DefaultValidity = 900 * time.Second

// Options override the generated witness fields. Zero values mean
// "use the default": a deadline of now+900s and freshly generated
// paymentId/nonce.
type Options struct {
	Deadline  string
	PaymentID string
	Nonce     string

	// Decimals, when non-zero, makes the amount input a human decimal
	// string converted to atomic units.
	Decimals int

	// Now is the clock used for the default deadline. Nil means time.Now.
	Now func() time.Time
}

// Build constructs a fully populated WitnessMessage ready for typed-data
// signing. It validates every address and the amount before touching the
// random source, and fails naming the first invalid field.
func Build(owner, token, amount, to string, opts *Options) (*types.WitnessMessage, error) {
	if opts == nil {
		opts = &Options{}
	}

	if !utils.IsWellFormedAddress(owner) {
		return nil, types.FieldError("owner", fmt.Sprintf("not a valid address: %q", owner))
	}

	if !utils.IsWellFormedAddress(token) {
		return nil, types.FieldError("token", fmt.Sprintf("not a valid address: %q", token))
	}

	if !utils.IsWellFormedAddress(to) {
		return nil, types.FieldError("to", fmt.Sprintf("not a valid address: %q", to))
	}

	atomic, err := utils.ParseAmount(amount, opts.Decimals)
	if err != nil {
		return nil, types.FieldError("amount", err.Error())
	}

	deadline, paymentID, nonce, err := fillDefaults(opts)
	if err != nil {
		return nil, err
	}

	return &types.WitnessMessage{
		Owner:     owner,
		Token:     token,
		Amount:    atomic.String(),
		To:        to,
		Deadline:  deadline,
		PaymentID: paymentID,
		Nonce:     nonce,
	}, nil
}

// BuildBatch constructs a BatchWitnessMessage. The item list must be
// non-empty; every item is validated independently and the first violation
// found is reported.
func BuildBatch(owner string, items []types.WitnessItem, opts *Options) (*types.BatchWitnessMessage, error) {
	if opts == nil {
		opts = &Options{}
	}

	if !utils.IsWellFormedAddress(owner) {
		return nil, types.FieldError("owner", fmt.Sprintf("not a valid address: %q", owner))
	}

	if len(items) == 0 {
		return nil, types.FieldError("items", "must contain at least one transfer")
	}

	normalized := make([]types.WitnessItem, 0, len(items))
	for i, item := range items {
		if !utils.IsWellFormedAddress(item.Token) {
			return nil, types.FieldError(fmt.Sprintf("items[%d].token", i), fmt.Sprintf("not a valid address: %q", item.Token))
		}

		if !utils.IsWellFormedAddress(item.To) {
			return nil, types.FieldError(fmt.Sprintf("items[%d].to", i), fmt.Sprintf("not a valid address: %q", item.To))
		}

		atomic, err := utils.ParseAmount(item.Amount, opts.Decimals)
		if err != nil {
			return nil, types.FieldError(fmt.Sprintf("items[%d].amount", i), err.Error())
		}

		normalized = append(normalized, types.WitnessItem{
			Token:  item.Token,
			Amount: atomic.String(),
			To:     item.To,
		})
	}

	deadline, paymentID, nonce, err := fillDefaults(opts)
	if err != nil {
		return nil, err
	}

	return &types.BatchWitnessMessage{
		Owner:     owner,
		Items:     normalized,
		Deadline:  deadline,
		PaymentID: paymentID,
		Nonce:     nonce,
	}, nil
}

func fillDefaults(opts *Options) (deadline, paymentID, nonce string, err error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	deadline = opts.Deadline
	if deadline == "" {
		deadline = strconv.FormatInt(now().Add(DefaultValidity).Unix(), 10)
	} else if !utils.IsFutureDeadline(deadline, now()) {
		return "", "", "", types.FieldError("deadline", fmt.Sprintf("must be a future unix timestamp, got %q", deadline))
	}

	paymentID = opts.PaymentID
	if paymentID == "" {
		if paymentID, err = utils.NewPaymentID(); err != nil {
			return "", "", "", err
		}
	} else if !utils.IsWellFormedHex(paymentID) {
		return "", "", "", types.FieldError("paymentId", "must be hex")
	}

	nonce = opts.Nonce
	if nonce == "" {
		if nonce, err = utils.NewNonce(); err != nil {
			return "", "", "", err
		}
	}

	return deadline, paymentID, nonce, nil
}
