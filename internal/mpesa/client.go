package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chamalink/backend/internal/config"
)

const (
	sandboxBaseURL = "https://sandbox-api.safaricom.co.ke"
	prodBaseURL    = "https://api.safaricom.co.ke"

	tokenEndpoint   = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushEndpoint = "/mpesa/stkpush/v1/processrequest"

	// ResponseCode the gateway returns when a push request is accepted
	acceptedResponseCode = "0"
)

// Client is the Safaricom Daraja API client
type Client struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	HTTPClient     *http.Client
}

// NewClient creates a new Daraja API client
func NewClient(cfg config.MpesaConfig) *Client {
	baseURL := sandboxBaseURL
	if cfg.Environment == "production" {
		baseURL = prodBaseURL
	}

	return &Client{
		BaseURL:        baseURL,
		ConsumerKey:    cfg.ConsumerKey,
		ConsumerSecret: cfg.ConsumerSecret,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
	}
}

// TokenResponse represents the OAuth token response. The gateway reports
// expires_in as a string.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// GetAccessToken performs the Basic-auth token exchange and returns a bearer
// token for the push endpoint
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	auth := base64.StdEncoding.EncodeToString([]byte(c.ConsumerKey + ":" + c.ConsumerSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+tokenEndpoint, nil)
	if err != nil {
		return "", &GatewayError{Op: "token", Err: err}
	}
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", &GatewayError{Op: "token", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &GatewayError{Op: "token", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", &GatewayError{Op: "token", Err: err}
	}
	if tokenResp.AccessToken == "" {
		return "", &GatewayError{Op: "token", Err: fmt.Errorf("no access token in response")}
	}

	return tokenResp.AccessToken, nil
}

// STKPushRequest represents the push-payment payload
type STKPushRequest struct {
	BusinessShortCode string  `json:"BusinessShortCode"`
	Password          string  `json:"Password"`
	Timestamp         string  `json:"Timestamp"`
	TransactionType   string  `json:"TransactionType"`
	Amount            float64 `json:"Amount"`
	PartyA            string  `json:"PartyA"`
	PartyB            string  `json:"PartyB"`
	PhoneNumber       string  `json:"PhoneNumber"`
	CallBackURL       string  `json:"CallBackURL"`
	AccountReference  string  `json:"AccountReference"`
	TransactionDesc   string  `json:"TransactionDesc"`
}

// STKPushResponse represents the response from a push request
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// STKPush asks the gateway to prompt the payer's phone for approval. The raw
// response body is returned alongside the parsed response for the audit
// trail.
func (c *Client) STKPush(ctx context.Context, accessToken string, request STKPushRequest) (*STKPushResponse, json.RawMessage, error) {
	reqBody, err := json.Marshal(request)
	if err != nil {
		return nil, nil, &GatewayError{Op: "stkpush", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+stkPushEndpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, nil, &GatewayError{Op: "stkpush", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, nil, &GatewayError{Op: "stkpush", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &GatewayError{Op: "stkpush", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &GatewayError{Op: "stkpush", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(body))}
	}

	var stkResp STKPushResponse
	if err := json.Unmarshal(body, &stkResp); err != nil {
		return nil, nil, &GatewayError{Op: "stkpush", Err: fmt.Errorf("invalid response body: %s", string(body))}
	}

	if stkResp.ResponseCode != acceptedResponseCode {
		return nil, nil, &GatewayError{Op: "stkpush", Err: fmt.Errorf("push rejected: %s", stkResp.ResponseDescription)}
	}

	return &stkResp, body, nil
}

// stkPassword derives the time-stamped push password from the short-code and
// passkey per the gateway's scheme
func stkPassword(shortCode, passkey string, t time.Time) (password, timestamp string) {
	timestamp = t.Format("20060102150405")
	password = base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + timestamp))
	return password, timestamp
}
