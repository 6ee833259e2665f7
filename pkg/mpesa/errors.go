package mpesa

import (
	"errors"
	"fmt"
)

// ErrInvalidPhoneFormat is returned by NormalizePhone for numbers that are not Kenyan mobiles.
var ErrInvalidPhoneFormat = errors.New("mpesa: invalid phone number format")

// AuthError reports a failed client_credentials exchange.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return "mpesa: access token: " + e.Message
	}
	return fmt.Sprintf("mpesa: access token: status %d: %s", e.StatusCode, e.Message)
}

// APIError is a request refused by Daraja. Code and Message are the gateway's own values.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	RequestID  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mpesa: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

const codeMalformedResponse = "malformed_response"
