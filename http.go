package q402

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/q402/q402-go/codec"
	"github.com/q402/q402-go/types"
	"github.com/q402/q402-go/utils"
)

// HTTP header names of the payment negotiation layer.
const (
	HeaderPayment         = "X-PAYMENT"
	HeaderPaymentResponse = "X-PAYMENT-RESPONSE"
)

// CreatePaymentRequiredResponse builds the body a resource server returns
// with HTTP 402, advertising the offers it accepts.
func CreatePaymentRequiredResponse(offers []types.PaymentDetails, errMsg string) *types.PaymentRequiredResponse {
	return &types.PaymentRequiredResponse{
		Q402Version: ProtocolVersion,
		Accepts:     offers,
		Error:       errMsg,
	}
}

// ParsePaymentRequiredResponse decodes a 402 response body on the client
// side, validating every advertised offer.
func ParsePaymentRequiredResponse(body []byte) (*types.PaymentRequiredResponse, error) {
	var raw struct {
		Q402Version int               `json:"q402Version"`
		Accepts     []json.RawMessage `json:"accepts"`
		Error       string            `json:"error"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrDecodingFailed,
			Message: fmt.Sprintf("body is not valid JSON: %v", err),
		}
	}

	resp := &types.PaymentRequiredResponse{
		Q402Version: raw.Q402Version,
		Error:       raw.Error,
	}
	for _, item := range raw.Accepts {
		details, err := utils.ParsePaymentDetails(item)
		if err != nil {
			return nil, err
		}
		resp.Accepts = append(resp.Accepts, *details)
	}
	return resp, nil
}

// CreatePaymentHeader encodes a signed payload for the X-PAYMENT request
// header.
func CreatePaymentHeader(payload *types.SignedPaymentPayload) (string, error) {
	return codec.Encode(payload)
}

// ParsePaymentHeader decodes the X-PAYMENT request header.
func ParsePaymentHeader(header string) (*types.SignedPaymentPayload, error) {
	return codec.Decode(header)
}

// CreatePaymentResponseHeader encodes a settlement result for the
// X-PAYMENT-RESPONSE response header.
func CreatePaymentResponseHeader(result *types.SettlementResult) (string, error) {
	if result == nil {
		return "", &types.Q402Error{
			Code:    types.ErrDecodingFailed,
			Message: "settlement result is nil",
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", &types.Q402Error{
			Code:    types.ErrDecodingFailed,
			Message: fmt.Sprintf("failed to marshal settlement result: %v", err),
		}
	}

	return base64.StdEncoding.EncodeToString(data), nil
}

// ParsePaymentResponseHeader decodes the X-PAYMENT-RESPONSE header.
func ParsePaymentResponseHeader(header string) (*types.SettlementResult, error) {
	data, err := base64.StdEncoding.DecodeString(header)
	if err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrDecodingFailed,
			Message: fmt.Sprintf("header is not valid base64: %v", err),
		}
	}

	var result types.SettlementResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, &types.Q402Error{
			Code:    types.ErrDecodingFailed,
			Message: fmt.Sprintf("header is not valid JSON: %v", err),
		}
	}

	return &result, nil
}
