package codec

import (
	"encoding/base64"
	"reflect"
	"testing"

	"github.com/q402/q402-go/types"
)

func samplePayload() *types.SignedPaymentPayload {
	return &types.SignedPaymentPayload{
		Q402Version:      1,
		WitnessSignature: "0x" + "11" + "22",
		Authorization: types.SignedAuthorization{
			ChainID: "84532",
			Address: "0x1111111111111111111111111111111111111111",
			Nonce:   "7",
			YParity: "0",
			R:       "0xaa",
			S:       "0xbb",
		},
		Details: types.PaymentDetails{
			Scheme:                 "exact",
			NetworkID:              "base-sepolia",
			Token:                  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			Amount:                 "10000",
			To:                     "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
			ImplementationContract: "0x1111111111111111111111111111111111111111",
			Witness: &types.WitnessMessage{
				Owner:     "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
				Token:     "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
				Amount:    "10000",
				To:        "0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
				Deadline:  "1900000000",
				PaymentID: "0x0101010101010101010101010101010101010101010101010101010101010101",
				Nonce:     "12345",
			},
			Authorization: types.UnsignedAuthorization{
				ChainID: "84532",
				Address: "0x1111111111111111111111111111111111111111",
				Nonce:   "7",
			},
		},
	}
}

func TestRoundTrip(t *testing.T) {
	payload := samplePayload()

	encoded, err := Encode(payload)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}

	if !reflect.DeepEqual(payload, decoded) {
		t.Fatalf("round trip mismatch:\n in  %+v\n out %+v", payload, decoded)
	}
}

func TestRoundTripBatch(t *testing.T) {
	payload := samplePayload()
	payload.Details.Scheme = "batch"
	payload.Details.Witness = nil
	payload.Details.Token = ""
	payload.Details.Amount = ""
	payload.Details.To = ""
	payload.Details.Items = []types.WitnessItem{
		{Token: "0x036CbD53842c5426634e7929541eC2318f3dCF7e", Amount: "1", To: "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"},
	}
	payload.Details.BatchWitness = &types.BatchWitnessMessage{
		Owner:     "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Items:     payload.Details.Items,
		Deadline:  "1900000000",
		PaymentID: "0x0202020202020202020202020202020202020202020202020202020202020202",
		Nonce:     "9",
	}

	encoded, err := Encode(payload)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if !reflect.DeepEqual(payload, decoded) {
		t.Fatal("batch round trip mismatch")
	}
}

func TestDecodeRejectsBadBase64(t *testing.T) {
	if _, err := Decode("!!!not-base64!!!"); err == nil {
		t.Fatal("expected an error for invalid base64")
	}
}

func TestDecodeRejectsBadJSON(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte("{not json"))
	if _, err := Decode(encoded); err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
}

func TestDecodeRejectsEmpty(t *testing.T) {
	if _, err := Decode(""); err == nil {
		t.Fatal("expected an error for empty input")
	}
}

func TestDecodeRejectsMissingFields(t *testing.T) {
	payload := samplePayload()
	payload.WitnessSignature = ""
	encoded, err := Encode(payload)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if _, err := Decode(encoded); err == nil {
		t.Fatal("expected an error for a missing witness signature")
	}

	payload = samplePayload()
	payload.Authorization.R = ""
	encoded, _ = Encode(payload)
	if _, err := Decode(encoded); err == nil {
		t.Fatal("expected an error for a missing authorization signature")
	}

	payload = samplePayload()
	payload.Details.Witness = nil
	encoded, _ = Encode(payload)
	if _, err := Decode(encoded); err == nil {
		t.Fatal("expected an error for missing witness details")
	}
}

func TestDecodeErrorsAreTyped(t *testing.T) {
	_, err := Decode("%%%")
	qerr, ok := err.(*types.Q402Error)
	if !ok {
		t.Fatalf("expected Q402Error, got %T", err)
	}
	if qerr.Code != types.ErrDecodingFailed {
		t.Fatalf("expected code %s, got %s", types.ErrDecodingFailed, qerr.Code)
	}
}
