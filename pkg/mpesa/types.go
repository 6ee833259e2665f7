package mpesa

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	ResultCodeSuccess = "0"
	ResultCodePending = "1037"

	// errorCodeInProgress is sent with HTTP 500 by the query endpoint while the
	// customer has not yet answered the prompt.
	errorCodeInProgress = "500.001.1001"

	transactionTypePayBill = "CustomerPayBillOnline"
	timestampLayout        = "20060102150405"

	maxAccountReference = 12
	maxTransactionDesc  = 13
)

var eastAfrica = time.FixedZone("EAT", 3*60*60)

// Code is a Daraja response or result code. The API sends it as a string in most
// responses and as a number in callbacks.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("mpesa: invalid code %s", b)
	}
	*c = Code(n.String())
	return nil
}

func (c Code) String() string { return string(c) }

// STKPushRequest is a Lipa na M-Pesa Online prompt. PhoneNumber must already be normalized.
type STKPushRequest struct {
	PhoneNumber      string
	Amount           int64
	AccountReference string
	TransactionDesc  string
	CallbackURL      string
}

func (r STKPushRequest) validate() error {
	if !mobilePattern.MatchString(r.PhoneNumber) {
		return ErrInvalidPhoneFormat
	}
	if r.Amount < 1 {
		return fmt.Errorf("mpesa: amount must be at least 1, got %d", r.Amount)
	}
	if r.CallbackURL == "" {
		return fmt.Errorf("mpesa: callback url is required")
	}
	return nil
}

type STKPushResponse struct {
	MerchantRequestID   string
	CheckoutRequestID   string
	ResponseCode        string
	ResponseDescription string
	CustomerMessage     string
}

// QueryResponse is the answer of the STK status query.
type QueryResponse struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        Code
	ResultDesc        string
}

// Pending reports whether the customer has not completed the prompt yet.
func (r *QueryResponse) Pending() bool {
	return r.ResultCode == "" || r.ResultCode == ResultCodePending
}

func (r *QueryResponse) Succeeded() bool {
	return r.ResultCode == ResultCodeSuccess
}

type stkPushPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type queryPayload struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// apiResponse covers both the success and the error shapes Daraja returns.
type apiResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        Code   `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ResultCode          Code   `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
	RequestID           string `json:"requestId"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

func (r *apiResponse) apiError(status int, fallback string) *APIError {
	e := &APIError{StatusCode: status, Code: r.ErrorCode, Message: r.ErrorMessage, RequestID: r.RequestID}
	if e.Code == "" {
		e.Code = string(r.ResponseCode)
	}
	if e.Message == "" {
		e.Message = r.ResponseDescription
	}
	if e.Message == "" {
		e.Message = fallback
	}
	return e
}

// Timestamp formats t the way Daraja expects (yyyyMMddHHmmss, East Africa Time).
func Timestamp(t time.Time) string {
	return t.In(eastAfrica).Format(timestampLayout)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
