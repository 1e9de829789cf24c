// Package gateway implements the Daraja (M-Pesa) payment gateway: OAuth
// token handling, STK push initiation and callback payload parsing.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"casino/clock"
	"casino/config"
	"casino/service"
	log "github.com/sirupsen/logrus"
)

const (
	productionHost = "https://api.safaricom.co.ke"
	sandboxHost    = "https://sandbox.safaricom.co.ke"

	tokenPath   = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath = "/mpesa/stkpush/v1/processrequest"
)

// Daraja talks to the Safaricom Daraja API. It implements
// service.PaymentGateway and is safe for concurrent use.
type Daraja struct {
	cfg        config.MpesaConfig
	baseURL    string
	httpClient *http.Client
	clock      clock.Clock

	tokenMu     sync.Mutex
	token       string
	tokenExpiry time.Time
}

// Option configures a Daraja client.
type Option func(*Daraja)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(d *Daraja) {
		d.httpClient = hc
	}
}

// WithBaseURL overrides the API host. Used by tests.
func WithBaseURL(url string) Option {
	return func(d *Daraja) {
		d.baseURL = url
	}
}

// NewDaraja creates a gateway client from the M-Pesa configuration.
func NewDaraja(cfg config.MpesaConfig, clk clock.Clock, opts ...Option) *Daraja {
	baseURL := productionHost
	if cfg.Environment == "sandbox" {
		baseURL = sandboxHost
	}

	d := &Daraja{
		cfg:     cfg,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		clock: clk,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// accessToken returns a cached OAuth token, refreshing when expired.
// Concurrent callers serialize on the cache so only one refresh runs.
func (d *Daraja) accessToken(ctx context.Context) (string, error) {
	d.tokenMu.Lock()
	defer d.tokenMu.Unlock()

	if d.token != "" && d.clock.Now().Before(d.tokenExpiry) {
		return d.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+tokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(d.cfg.ConsumerKey + ":" + d.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+auth)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned %d: %s", resp.StatusCode, body)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("no access token in response")
	}

	d.token = token.AccessToken
	// Daraja tokens last an hour; refresh a little early.
	d.tokenExpiry = d.clock.Now().Add(55 * time.Minute)
	return d.token, nil
}

type stkPushRequest struct {
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

type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ErrorMessage        string `json:"errorMessage"`
}

// InitiateSTKPush asks Daraja to prompt the phone for the given amount.
// Amounts are cents; Daraja bills whole shillings.
func (d *Daraja) InitiateSTKPush(ctx context.Context, phoneNumber string, amountCents int64, accountReference string) (string, string, error) {
	if amountCents < 100 {
		return "", "", fmt.Errorf("amount below one shilling")
	}

	token, err := d.accessToken(ctx)
	if err != nil {
		return "", "", err
	}

	timestamp := d.clock.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(d.cfg.Shortcode + d.cfg.Passkey + timestamp))

	transactionType := "CustomerPayBillOnline"
	if d.cfg.AccountType == "till" {
		transactionType = "CustomerBuyGoodsOnline"
	}

	phone := FormatPhoneNumber(phoneNumber)
	payload := stkPushRequest{
		BusinessShortCode: d.cfg.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   transactionType,
		Amount:            amountCents / 100,
		PartyA:            phone,
		PartyB:            d.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       d.cfg.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   "Deposit",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+stkPushPath, bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to send STK push: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read response: %w", err)
	}

	var stk stkPushResponse
	if err := json.Unmarshal(respBody, &stk); err != nil {
		return "", "", fmt.Errorf("failed to parse response (%d): %s", resp.StatusCode, respBody)
	}
	if stk.ResponseCode != "0" {
		reason := stk.ResponseDescription
		if reason == "" {
			reason = stk.ErrorMessage
		}
		return "", "", fmt.Errorf("STK push rejected: %s", reason)
	}

	log.WithFields(log.Fields{
		"checkoutRequestID": stk.CheckoutRequestID,
		"phone":             phone,
	}).Info("STK push initiated")

	return stk.CheckoutRequestID, stk.MerchantRequestID, nil
}

// FormatPhoneNumber normalizes Kenyan phone numbers to 2547XXXXXXXX.
func FormatPhoneNumber(phone string) string {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	switch {
	case strings.HasPrefix(phone, "0"):
		return "254" + phone[1:]
	case strings.HasPrefix(phone, "+254"):
		return phone[1:]
	case strings.HasPrefix(phone, "254"):
		return phone
	default:
		return "254" + phone
	}
}

// CallbackPayload is the JSON body Daraja posts to the callback URL.
type CallbackPayload struct {
	Body struct {
		StkCallback struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes a Daraja callback body into the gateway-agnostic
// result the payment service consumes.
func ParseCallback(r io.Reader) (service.CallbackResult, error) {
	var payload CallbackPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return service.CallbackResult{}, fmt.Errorf("failed to decode callback: %w", err)
	}

	cb := payload.Body.StkCallback
	if cb.CheckoutRequestID == "" {
		return service.CallbackResult{}, fmt.Errorf("invalid callback format")
	}

	result := service.CallbackResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		MerchantRequestID: cb.MerchantRequestID,
		ResultCode:        cb.ResultCode,
		ResultDescription: cb.ResultDesc,
	}

	if cb.ResultCode == 0 {
		for _, item := range cb.CallbackMetadata.Item {
			if item.Name == "MpesaReceiptNumber" {
				if receipt, ok := item.Value.(string); ok {
					result.ReceiptNumber = &receipt
				}
			}
		}
	}

	return result, nil
}
