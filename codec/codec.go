// Package codec serializes signed payment payloads to the compact text form
// carried in HTTP headers: base64 of the payload's canonical JSON, with all
// integers as decimal strings so no precision is lost in transit.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/q402/q402-go/types"
)

// Encode serializes a SignedPaymentPayload to its transport form.
func Encode(payload *types.SignedPaymentPayload) (string, error) {
	if payload == nil {
		return "", &types.Q402Error{
			Code:    types.ErrDecodingFailed,
			Message: "payload is nil",
		}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", &types.Q402Error{
			Code:    types.ErrDecodingFailed,
			Message: fmt.Sprintf("failed to marshal payload: %v", err),
		}
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// Decode is the exact inverse of Encode. It fails with a typed error when
// the input is not base64, not JSON, or missing required fields; it never
// panics on malformed input.
func Decode(encoded string) (*types.SignedPaymentPayload, error) {
	if encoded == "" {
		return nil, &types.Q402Error{
			Code:    types.ErrDecodingFailed,
			Message: "encoded payload is empty",
		}
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrDecodingFailed,
			Message: fmt.Sprintf("payload is not valid base64: %v", err),
		}
	}

	var payload types.SignedPaymentPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrDecodingFailed,
			Message: fmt.Sprintf("payload is not valid JSON: %v", err),
		}
	}

	if err := checkRequired(&payload); err != nil {
		return nil, err
	}

	return &payload, nil
}

func checkRequired(payload *types.SignedPaymentPayload) error {
	if payload.WitnessSignature == "" {
		return missing("witnessSignature")
	}

	auth := payload.Authorization
	if auth.ChainID == "" || auth.Address == "" || auth.Nonce == "" {
		return missing("authorization")
	}
	if auth.YParity == "" || auth.R == "" || auth.S == "" {
		return missing("authorization signature")
	}

	if err := payload.Details.Validate(); err != nil {
		return &types.Q402Error{
			Code:    types.ErrDecodingFailed,
			Message: fmt.Sprintf("invalid payment details: %v", err),
		}
	}

	return nil
}

func missing(field string) error {
	return &types.Q402Error{
		Code:    types.ErrDecodingFailed,
		Message: fmt.Sprintf("payload is missing required field: %s", field),
	}
}
