package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	stkPushPath = "/mpesa/stkpush/v1/processrequest"
	queryPath   = "/mpesa/stkpushquery/v1/query"
)

// Config holds the Daraja credentials for one paybill short code.
type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	Timeout        time.Duration
}

// Client talks to the Daraja STK push API. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
	log  *zap.Logger
}

func NewClient(cfg Config, log *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{cfg: cfg, now: time.Now, log: log}
	src := &tokenSource{
		baseURL: cfg.BaseURL,
		key:     cfg.ConsumerKey,
		secret:  cfg.ConsumerSecret,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
	c.http = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.ReuseTokenSource(nil, src),
			Base:   http.DefaultTransport,
		},
	}
	return c
}

// Password derives the time-boxed STK password from the short code, passkey and timestamp.
func Password(shortCode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
}

func (c *Client) credentials() (password, timestamp string) {
	timestamp = Timestamp(c.now())
	return Password(c.cfg.ShortCode, c.cfg.Passkey, timestamp), timestamp
}

// STKPush sends the payment prompt to the customer's phone.
func (c *Client) STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	password, timestamp := c.credentials()
	payload := stkPushPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   transactionTypePayBill,
		Amount:            req.Amount,
		PartyA:            req.PhoneNumber,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       req.CallbackURL,
		AccountReference:  truncate(req.AccountReference, maxAccountReference),
		TransactionDesc:   truncate(req.TransactionDesc, maxTransactionDesc),
	}
	var out apiResponse
	status, err := c.post(ctx, stkPushPath, payload, &out)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 || out.ResponseCode != ResultCodeSuccess {
		apiErr := out.apiError(status, "stk push rejected")
		c.log.Warn("mpesa stk push rejected",
			zap.Int("status", status),
			zap.String("code", apiErr.Code),
			zap.String("description", apiErr.Message))
		return nil, apiErr
	}
	if out.CheckoutRequestID == "" {
		return nil, &APIError{StatusCode: status, Code: codeMalformedResponse, Message: "response has no CheckoutRequestID"}
	}
	c.log.Info("mpesa stk push accepted",
		zap.String("checkout_request_id", out.CheckoutRequestID),
		zap.String("merchant_request_id", out.MerchantRequestID),
		zap.Int64("amount", req.Amount))
	return &STKPushResponse{
		MerchantRequestID:   out.MerchantRequestID,
		CheckoutRequestID:   out.CheckoutRequestID,
		ResponseCode:        string(out.ResponseCode),
		ResponseDescription: out.ResponseDescription,
		CustomerMessage:     out.CustomerMessage,
	}, nil
}

// QueryStatus asks Daraja for the outcome of an STK push. A prompt the customer has
// not answered yet comes back as a pending response, not an error.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*QueryResponse, error) {
	if checkoutRequestID == "" {
		return nil, errors.New("mpesa: checkout request id is required")
	}
	password, timestamp := c.credentials()
	payload := queryPayload{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	}
	var out apiResponse
	status, err := c.post(ctx, queryPath, payload, &out)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		if out.ErrorCode == errorCodeInProgress {
			return &QueryResponse{CheckoutRequestID: checkoutRequestID, ResultDesc: out.ErrorMessage}, nil
		}
		return nil, out.apiError(status, "status query rejected")
	}
	return &QueryResponse{
		MerchantRequestID: out.MerchantRequestID,
		CheckoutRequestID: checkoutRequestID,
		ResultCode:        out.ResultCode,
		ResultDesc:        out.ResultDesc,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return 0, authErr
		}
		return 0, fmt.Errorf("mpesa: %s: %w", path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("mpesa: %s: read body: %w", path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode/100 == 2 {
			return resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Code: codeMalformedResponse, Message: err.Error()}
		}
		c.log.Debug("mpesa non-json error body", zap.String("path", path), zap.ByteString("body", raw))
	}
	return resp.StatusCode, nil
}
