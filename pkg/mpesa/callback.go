package mpesa

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// STKCallback is the result Daraja posts to the CallBackURL once the customer answers.
type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        Code              `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

type CallbackItem struct {
	Name  string `json:"Name"`
	Value any    `json:"Value,omitempty"`
}

type callbackEnvelope struct {
	Body struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes and validates a callback body.
func ParseCallback(r io.Reader) (*STKCallback, error) {
	var env callbackEnvelope
	if err := json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&env); err != nil {
		return nil, fmt.Errorf("mpesa: decode callback: %w", err)
	}
	cb := env.Body.STKCallback
	if cb == nil {
		return nil, errors.New("mpesa: callback has no stkCallback")
	}
	if cb.CheckoutRequestID == "" {
		return nil, errors.New("mpesa: callback has no CheckoutRequestID")
	}
	if cb.ResultCode == "" {
		return nil, errors.New("mpesa: callback has no ResultCode")
	}
	return cb, nil
}

// Receipt returns the M-Pesa receipt number of a successful callback.
func (cb *STKCallback) Receipt() string {
	if cb.CallbackMetadata == nil {
		return ""
	}
	for _, it := range cb.CallbackMetadata.Item {
		if it.Name == "MpesaReceiptNumber" {
			if s, ok := it.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}
