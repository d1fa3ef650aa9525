package mpesa

import (
	"fmt"
	"strings"
)

// ResultCodeSuccess is the gateway result code for a settled payment.
const ResultCodeSuccess = 0

// ReceiptUnavailable is stored when the callback metadata carries no receipt
// number. Reconciliation must not fail on a missing receipt.
const ReceiptUnavailable = "N/A"

// receiptItemName is the metadata field carrying the provider receipt.
const receiptItemName = "MpesaReceiptNumber"

// CallbackEnvelope is the outer payload delivered to the callback URL.
type CallbackEnvelope struct {
	Body CallbackBody `json:"Body"`
}

// CallbackBody wraps the STK callback record.
type CallbackBody struct {
	STKCallback *STKCallback `json:"stkCallback"`
}

// STKCallback reports the outcome of one STK push request. The
// MerchantRequestID/CheckoutRequestID pair echoes the IDs issued at
// initiation.
type STKCallback struct {
	MerchantRequestID string           `json:"MerchantRequestID"`
	CheckoutRequestID string           `json:"CheckoutRequestID"`
	ResultCode        int              `json:"ResultCode"`
	ResultDesc        string           `json:"ResultDesc"`
	CallbackMetadata  CallbackMetadata `json:"CallbackMetadata"`
}

// Succeeded reports whether the callback marks a settled payment.
func (c *STKCallback) Succeeded() bool {
	return c.ResultCode == ResultCodeSuccess
}

// CallbackMetadata is the loosely typed item list attached to successful
// callbacks.
type CallbackMetadata struct {
	Items []MetadataItem `json:"Item"`
}

// MetadataItem is one named value in the callback metadata.
type MetadataItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

// ReceiptNumber extracts the provider receipt from the metadata, falling
// back to ReceiptUnavailable when absent.
func (m CallbackMetadata) ReceiptNumber() string {
	for _, item := range m.Items {
		if item.Name != receiptItemName {
			continue
		}
		switch v := item.Value.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				return v
			}
		case float64, int, int64:
			return fmt.Sprintf("%v", v)
		}
	}
	return ReceiptUnavailable
}
