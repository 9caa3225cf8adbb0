package mpesa

import "fmt"

// CallbackPayload is the asynchronous result notification the gateway posts
// to the callback endpoint. The nesting is fixed by the gateway's convention.
type CallbackPayload struct {
	Body CallbackBody `json:"Body"`
}

// CallbackBody wraps the stkCallback element
type CallbackBody struct {
	StkCallback StkCallback `json:"stkCallback"`
}

// StkCallback carries the result of a previously initiated push
type StkCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        int               `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

// CallbackMetadata holds the result items attached to a successful payment
type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem is a single name/value result entry
type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

// ReceiptNumber extracts the MpesaReceiptNumber item if the callback carries
// one, or returns the empty string.
func (m *CallbackMetadata) ReceiptNumber() string {
	if m == nil {
		return ""
	}
	for _, item := range m.Item {
		if item.Name == "MpesaReceiptNumber" && item.Value != nil {
			return fmt.Sprintf("%v", item.Value)
		}
	}
	return ""
}

// Succeeded reports whether the gateway result code indicates a completed
// payment
func (c StkCallback) Succeeded() bool {
	return c.ResultCode == 0
}
