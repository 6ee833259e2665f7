package mpesa

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const tokenPath = "/oauth/v1/generate?grant_type=client_credentials"

// tokenSource performs the Daraja client_credentials exchange. It is wrapped in
// oauth2.ReuseTokenSource so a token is only fetched again once it expires.
type tokenSource struct {
	baseURL string
	key     string
	secret  string
	client  *http.Client
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	ExpiresIn    json.Number `json:"expires_in"`
	ErrorCode    string      `json:"errorCode"`
	ErrorMessage string      `json:"errorMessage"`
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	req, err := http.NewRequest(http.MethodGet, s.baseURL+tokenPath, nil)
	if err != nil {
		return nil, &AuthError{Message: err.Error()}
	}
	req.SetBasicAuth(s.key, s.secret)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &AuthError{Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: err.Error()}
	}
	var out tokenResponse
	decodeErr := json.Unmarshal(body, &out)
	if resp.StatusCode != http.StatusOK {
		msg := out.ErrorMessage
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil || out.AccessToken == "" {
		return nil, &AuthError{StatusCode: resp.StatusCode, Message: "malformed token response"}
	}
	ttl, err := out.ExpiresIn.Int64()
	if err != nil || ttl <= 0 {
		ttl = 3599
	}
	// oauth2 checks validity against the wall clock, so expiry must use it too.
	return &oauth2.Token{
		AccessToken: out.AccessToken,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Duration(ttl) * time.Second),
	}, nil
}
