package types

import (
	"fmt"
)

// Q402Version is the version of the q402 payment protocol.
type Q402Version int

const (
	Q402Version1 Q402Version = 1
)

// TypedDataDomainName is the EIP-712 domain name shared by every witness
// signature in the protocol.
const TypedDataDomainName = "q402"

// TypedDataDomainVersion is the EIP-712 domain version.
const TypedDataDomainVersion = "1"

// PaymentScheme identifies how a payment offer is settled.
type PaymentScheme string

const (
	// SchemeExact settles a single token transfer.
	SchemeExact PaymentScheme = "exact"

	// SchemeBatch settles multiple transfers under one signature.
	SchemeBatch PaymentScheme = "batch"
)

// WitnessMessage is the value-transfer commitment a payer signs: owner moves
// amount of token to the recipient, valid until deadline, uniquely tagged by
// paymentId. All integers are decimal strings; paymentId is 0x-prefixed hex
// of 32 bytes. Immutable once signed.
type WitnessMessage struct {
	Owner     string `json:"owner" validate:"required"`
	Token     string `json:"token" validate:"required"`
	Amount    string `json:"amount" validate:"required"`
	To        string `json:"to" validate:"required"`
	Deadline  string `json:"deadline" validate:"required"`
	PaymentID string `json:"paymentId" validate:"required"`
	Nonce     string `json:"nonce" validate:"required"`
}

// WitnessItem is one transfer inside a batch witness.
type WitnessItem struct {
	Token  string `json:"token" validate:"required"`
	Amount string `json:"amount" validate:"required"`
	To     string `json:"to" validate:"required"`
}

// BatchWitnessMessage generalizes WitnessMessage to N transfers under one
// signature and one paymentId. Item order is significant.
type BatchWitnessMessage struct {
	Owner     string        `json:"owner" validate:"required"`
	Items     []WitnessItem `json:"items" validate:"required,min=1,dive"`
	Deadline  string        `json:"deadline" validate:"required"`
	PaymentID string        `json:"paymentId" validate:"required"`
	Nonce     string        `json:"nonce" validate:"required"`
}

// UnsignedAuthorization is the code-delegation tuple before signing: the
// owner grants the contract at Address the right to execute code as the
// owner, scoped to ChainID and Nonce. A chainId of "0" means valid on any
// chain and must hash as a zero-length RLP string, not a zero byte.
type UnsignedAuthorization struct {
	ChainID string `json:"chainId" validate:"required"`
	Address string `json:"address" validate:"required"`
	Nonce   string `json:"nonce" validate:"required"`
}

// SignedAuthorization is an UnsignedAuthorization plus its recoverable
// signature split into a 0/1 parity bit and the r/s components (0x hex).
type SignedAuthorization struct {
	ChainID string `json:"chainId"`
	Address string `json:"address"`
	Nonce   string `json:"nonce"`
	YParity string `json:"yParity"`
	R       string `json:"r"`
	S       string `json:"s"`
}

// Unsigned strips the signature components.
func (a *SignedAuthorization) Unsigned() UnsignedAuthorization {
	return UnsignedAuthorization{
		ChainID: a.ChainID,
		Address: a.Address,
		Nonce:   a.Nonce,
	}
}

// PaymentDetails is a resource server's advertised payment offer. The payer
// treats it as read-only. Scheme discriminates the shape: "exact" offers
// populate Token/Amount/To plus Witness, "batch" offers populate Items plus
// BatchWitness.
type PaymentDetails struct {
	Scheme    string `json:"scheme" validate:"required"`
	NetworkID string `json:"networkId" validate:"required"`

	Token  string `json:"token,omitempty"`
	Amount string `json:"amount,omitempty"`
	To     string `json:"to,omitempty"`

	// Items replaces Token/Amount/To for the batch scheme.
	Items []WitnessItem `json:"items,omitempty"`

	// ImplementationContract is the delegation target whose code executes
	// the transfer, and the EIP-712 verifying contract of the witness.
	ImplementationContract string `json:"implementationContract" validate:"required"`

	Witness      *WitnessMessage      `json:"witness,omitempty"`
	BatchWitness *BatchWitnessMessage `json:"batchWitness,omitempty"`

	Authorization UnsignedAuthorization `json:"authorization"`
}

// IsBatch reports whether the offer uses the batch scheme.
func (d *PaymentDetails) IsBatch() bool {
	return d.Scheme == string(SchemeBatch)
}

// Validate checks the offer for the fields every scheme requires.
func (d *PaymentDetails) Validate() error {
	if d.Scheme == "" {
		return &Q402Error{Code: ErrInvalidDetails, Message: "paymentDetails.scheme is required"}
	}

	if d.NetworkID == "" {
		return &Q402Error{Code: ErrInvalidDetails, Message: "paymentDetails.networkId is required"}
	}

	if d.ImplementationContract == "" {
		return &Q402Error{Code: ErrInvalidDetails, Message: "paymentDetails.implementationContract is required"}
	}

	if d.IsBatch() {
		if d.BatchWitness == nil {
			return &Q402Error{Code: ErrInvalidDetails, Message: "paymentDetails.batchWitness is required for the batch scheme"}
		}
		if len(d.BatchWitness.Items) == 0 {
			return &Q402Error{Code: ErrInvalidDetails, Message: "paymentDetails.batchWitness.items must not be empty"}
		}
		return nil
	}

	if d.Witness == nil {
		return &Q402Error{Code: ErrInvalidDetails, Message: "paymentDetails.witness is required"}
	}

	return nil
}

// SignedPaymentPayload is the unit of transport and verification: exactly
// what a facilitator receives.
type SignedPaymentPayload struct {
	Q402Version int `json:"q402Version"`

	// WitnessSignature is the 65-byte EIP-712 signature over the witness,
	// 0x-prefixed hex.
	WitnessSignature string `json:"witnessSignature"`

	Authorization SignedAuthorization `json:"authorization"`

	Details PaymentDetails `json:"details"`
}

// InvalidReason classifies why verification rejected a payload. Returned as
// data so callers can distinguish retryable from terminal failures.
type InvalidReason string

const (
	ReasonInvalidPayload       InvalidReason = "invalid_payload"
	ReasonInvalidSignature     InvalidReason = "invalid_signature"
	ReasonInvalidAuthorization InvalidReason = "invalid_authorization"
	ReasonInvalidAmount        InvalidReason = "invalid_amount"
	ReasonExpired              InvalidReason = "expired"
	ReasonInvalidRecipient     InvalidReason = "invalid_recipient"
	ReasonUnsupportedScheme    InvalidReason = "unsupported_scheme"
	ReasonUnsupportedNetwork   InvalidReason = "unsupported_network"
	ReasonUnexpectedError      InvalidReason = "unexpected_error"
)

// VerificationDetails itemizes the individual verification checks.
type VerificationDetails struct {
	WitnessValid       bool `json:"witnessValid"`
	AuthorizationValid bool `json:"authorizationValid"`
	AmountValid        bool `json:"amountValid"`
	DeadlineValid      bool `json:"deadlineValid"`
	RecipientValid     bool `json:"recipientValid"`
}

// VerificationResult is the verifier's fully itemized report. It is always
// returned, even for malformed input; the verifier never panics through.
type VerificationResult struct {
	IsValid       bool                `json:"isValid"`
	InvalidReason InvalidReason       `json:"invalidReason,omitempty"`
	Payer         string              `json:"payer,omitempty"`
	Details       VerificationDetails `json:"details"`
}

// SettlementResult reports the outcome of submitting the delegated
// transaction.
type SettlementResult struct {
	Success     bool   `json:"success"`
	TxHash      string `json:"txHash,omitempty"`
	BlockNumber string `json:"blockNumber,omitempty"`
	NetworkID   string `json:"networkId,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PaymentRequiredResponse is the body a resource server returns with an
// HTTP 402 status.
type PaymentRequiredResponse struct {
	Q402Version int              `json:"q402Version"`
	Accepts     []PaymentDetails `json:"accepts"`
	Error       string           `json:"error,omitempty"`
}

// SupportedKind describes one scheme/network pair a facilitator settles.
type SupportedKind struct {
	Q402Version int    `json:"q402Version"`
	Scheme      string `json:"scheme"`
	NetworkID   string `json:"networkId"`
}

// SupportedResponse lists every kind a facilitator supports.
type SupportedResponse struct {
	Kinds []SupportedKind `json:"kinds"`
}

// Q402Error is the module's error type.
type Q402Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Q402Error) Error() string {
	return e.Message
}

// Common error codes.
const (
	ErrInvalidField      = "INVALID_FIELD"
	ErrInvalidDetails    = "INVALID_DETAILS"
	ErrUnsupportedScheme = "UNSUPPORTED_SCHEME"
	ErrSignatureFailed   = "SIGNATURE_FAILED"
	ErrDecodingFailed    = "DECODING_FAILED"
	ErrEntropyFailure    = "ENTROPY_FAILURE"
	ErrSettlementFailed  = "SETTLEMENT_FAILED"
	ErrNetworkError      = "NETWORK_ERROR"
	ErrConfigError       = "CONFIG_ERROR"
)

// FieldError builds the validation error raised when a builder rejects its
// first invalid field.
func FieldError(field, problem string) *Q402Error {
	return &Q402Error{
		Code:    ErrInvalidField,
		Message: fmt.Sprintf("%s: %s", field, problem),
		Data:    field,
	}
}
