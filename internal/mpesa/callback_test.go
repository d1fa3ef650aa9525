package mpesa

import (
	"encoding/json"
	"testing"
)

func TestCallbackEnvelopeParseSuccess(t *testing.T) {
	raw := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 50.00},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "TransactionDate", "Value": 20191219102115},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`

	var envelope CallbackEnvelope
	if errUnmarshal := json.Unmarshal([]byte(raw), &envelope); errUnmarshal != nil {
		t.Fatalf("unmarshal: %v", errUnmarshal)
	}

	cb := envelope.Body.STKCallback
	if cb == nil {
		t.Fatal("expected stkCallback")
	}
	if !cb.Succeeded() {
		t.Fatal("expected Succeeded for result code 0")
	}
	if cb.MerchantRequestID != "29115-34620561-1" {
		t.Fatalf("unexpected merchant request id: %q", cb.MerchantRequestID)
	}
	if got := cb.CallbackMetadata.ReceiptNumber(); got != "NLJ7RT61SV" {
		t.Fatalf("receipt = %q, want NLJ7RT61SV", got)
	}
}

func TestCallbackEnvelopeParseFailure(t *testing.T) {
	raw := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": "ws_CO_191220191020363925",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user."
			}
		}
	}`

	var envelope CallbackEnvelope
	if errUnmarshal := json.Unmarshal([]byte(raw), &envelope); errUnmarshal != nil {
		t.Fatalf("unmarshal: %v", errUnmarshal)
	}

	cb := envelope.Body.STKCallback
	if cb == nil {
		t.Fatal("expected stkCallback")
	}
	if cb.Succeeded() {
		t.Fatal("expected failure for result code 1032")
	}
	if got := cb.CallbackMetadata.ReceiptNumber(); got != ReceiptUnavailable {
		t.Fatalf("receipt = %q, want %q", got, ReceiptUnavailable)
	}
}

func TestReceiptNumberNumericValue(t *testing.T) {
	meta := CallbackMetadata{Items: []MetadataItem{
		{Name: "MpesaReceiptNumber", Value: float64(123456)},
	}}
	if got := meta.ReceiptNumber(); got != "123456" {
		t.Fatalf("receipt = %q, want 123456", got)
	}
}

func TestReceiptNumberBlankValue(t *testing.T) {
	meta := CallbackMetadata{Items: []MetadataItem{
		{Name: "MpesaReceiptNumber", Value: "  "},
	}}
	if got := meta.ReceiptNumber(); got != ReceiptUnavailable {
		t.Fatalf("receipt = %q, want %q", got, ReceiptUnavailable)
	}
}
