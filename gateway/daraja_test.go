package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"casino/clock"
	"casino/config"

	"github.com/stretchr/testify/assert"
)

func testMpesaConfig() config.MpesaConfig {
	return config.MpesaConfig{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://example.com/callback",
		Environment:    "sandbox",
		AccountType:    "paybill",
	}
}

func TestDaraja_InitiateSTKPush(t *testing.T) {
	var gotSTK stkPushRequest
	tokenCalls := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/oauth/v1/generate"):
			tokenCalls++
			assert.NotEmpty(t, r.Header.Get("Authorization"))
			json.NewEncoder(w).Encode(map[string]string{
				"access_token": "test-token",
				"expires_in":   "3599",
			})
		case r.URL.Path == "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotSTK))
			json.NewEncoder(w).Encode(map[string]string{
				"MerchantRequestID":   "merchant-1",
				"CheckoutRequestID":   "ws_CO_1",
				"ResponseCode":        "0",
				"ResponseDescription": "Success. Request accepted for processing",
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	clk := clock.NewFake(time.Date(2025, 6, 1, 14, 30, 45, 0, time.UTC))
	daraja := NewDaraja(testMpesaConfig(), clk, WithBaseURL(server.URL))

	checkoutID, merchantID, err := daraja.InitiateSTKPush(context.Background(), "0712345678", 50000, "USER1")

	assert.NoError(t, err)
	assert.Equal(t, "ws_CO_1", checkoutID)
	assert.Equal(t, "merchant-1", merchantID)

	assert.Equal(t, "174379", gotSTK.BusinessShortCode)
	assert.Equal(t, "CustomerPayBillOnline", gotSTK.TransactionType)
	assert.Equal(t, int64(500), gotSTK.Amount) // cents to shillings
	assert.Equal(t, "254712345678", gotSTK.PhoneNumber)
	assert.Equal(t, "254712345678", gotSTK.PartyA)
	assert.Equal(t, "20250601143045", gotSTK.Timestamp)
	assert.Equal(t, "https://example.com/callback", gotSTK.CallBackURL)

	// The second push reuses the cached token.
	_, _, err = daraja.InitiateSTKPush(context.Background(), "0712345678", 50000, "USER1")
	assert.NoError(t, err)
	assert.Equal(t, 1, tokenCalls)
}

func TestDaraja_ConcurrentPushesShareOneToken(t *testing.T) {
	var tokenCalls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/oauth/v1/generate") {
			tokenCalls.Add(1)
			json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"CheckoutRequestID": "ws_CO_n",
			"MerchantRequestID": "merchant-n",
			"ResponseCode":      "0",
		})
	}))
	defer server.Close()

	daraja := NewDaraja(testMpesaConfig(), clock.NewFake(time.Now()), WithBaseURL(server.URL))

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = daraja.InitiateSTKPush(context.Background(), "0712345678", 10000, "USER1")
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int64(1), tokenCalls.Load())
}

func TestDaraja_InitiateSTKPush_TillUsesBuyGoods(t *testing.T) {
	var gotSTK stkPushRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/oauth/v1/generate") {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
			return
		}
		json.NewDecoder(r.Body).Decode(&gotSTK)
		json.NewEncoder(w).Encode(map[string]string{
			"CheckoutRequestID": "ws_CO_2",
			"MerchantRequestID": "merchant-2",
			"ResponseCode":      "0",
		})
	}))
	defer server.Close()

	cfg := testMpesaConfig()
	cfg.AccountType = "till"
	daraja := NewDaraja(cfg, clock.NewFake(time.Now()), WithBaseURL(server.URL))

	_, _, err := daraja.InitiateSTKPush(context.Background(), "254712345678", 10000, "USER1")

	assert.NoError(t, err)
	assert.Equal(t, "CustomerBuyGoodsOnline", gotSTK.TransactionType)
}

func TestDaraja_InitiateSTKPush_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/oauth/v1/generate") {
			json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":        "1",
			"ResponseDescription": "Invalid PhoneNumber",
		})
	}))
	defer server.Close()

	daraja := NewDaraja(testMpesaConfig(), clock.NewFake(time.Now()), WithBaseURL(server.URL))

	_, _, err := daraja.InitiateSTKPush(context.Background(), "0712345678", 10000, "USER1")

	assert.ErrorContains(t, err, "Invalid PhoneNumber")
}

func TestDaraja_InitiateSTKPush_BelowOneShilling(t *testing.T) {
	daraja := NewDaraja(testMpesaConfig(), clock.NewFake(time.Now()))

	_, _, err := daraja.InitiateSTKPush(context.Background(), "0712345678", 99, "USER1")

	assert.Error(t, err)
}

func TestFormatPhoneNumber(t *testing.T) {
	assert.Equal(t, "254712345678", FormatPhoneNumber("0712345678"))
	assert.Equal(t, "254712345678", FormatPhoneNumber("+254712345678"))
	assert.Equal(t, "254712345678", FormatPhoneNumber("254712345678"))
	assert.Equal(t, "254712345678", FormatPhoneNumber("712345678"))
	assert.Equal(t, "254712345678", FormatPhoneNumber(" 0712 345 678 "))
}

func TestParseCallback_Success(t *testing.T) {
	body := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "merchant-1",
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 500},
						{"Name": "MpesaReceiptNumber", "Value": "SDQ7K1XMPL"},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`

	result, err := ParseCallback(strings.NewReader(body))

	assert.NoError(t, err)
	assert.Equal(t, "ws_CO_1", result.CheckoutRequestID)
	assert.Equal(t, "merchant-1", result.MerchantRequestID)
	assert.Equal(t, 0, result.ResultCode)
	assert.NotNil(t, result.ReceiptNumber)
	assert.Equal(t, "SDQ7K1XMPL", *result.ReceiptNumber)
}

func TestParseCallback_Cancelled(t *testing.T) {
	body := `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "merchant-1",
				"CheckoutRequestID": "ws_CO_1",
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user"
			}
		}
	}`

	result, err := ParseCallback(strings.NewReader(body))

	assert.NoError(t, err)
	assert.Equal(t, 1032, result.ResultCode)
	assert.Nil(t, result.ReceiptNumber)
}

func TestParseCallback_InvalidFormat(t *testing.T) {
	_, err := ParseCallback(strings.NewReader(`{"foo": "bar"}`))
	assert.Error(t, err)

	_, err = ParseCallback(strings.NewReader(`not json`))
	assert.Error(t, err)
}
