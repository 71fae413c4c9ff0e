// Package payments integrates the M-Pesa push-payment flow and reconciles
// its asynchronous callbacks against pending online orders.
package payments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"agropos-system/config"
	"agropos-system/internal/errs"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type PushResponse struct {
	MerchantRequestID string
	CheckoutRequestID string
}

// PushClient issues a provider-initiated payment prompt to the payer's
// device. Implementations must bound the call with a timeout; a timeout is
// reported as a failed initiation, never retried internally.
type PushClient interface {
	RequestPush(ctx context.Context, phone string, amount decimal.Decimal, accountReference string) (*PushResponse, error)
}

type MpesaClient struct {
	cfg    config.MpesaConfig
	client *http.Client
	log    zerolog.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewMpesaClient(cfg config.MpesaConfig, log zerolog.Logger) *MpesaClient {
	return &MpesaClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// accessToken returns a cached bearer token, exchanging credentials only
// when the cached one is about to expire.
func (c *MpesaClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}

	url := c.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: unexpected status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response: empty access token")
	}

	ttl := 3600 * time.Second
	if secs, err := time.ParseDuration(tr.ExpiresIn + "s"); err == nil && secs > 0 {
		ttl = secs
	}
	c.token = tr.AccessToken
	c.tokenExpiry = time.Now().Add(ttl - 30*time.Second)
	return c.token, nil
}

type stkPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            string `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type stkPushResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
}

func (c *MpesaClient) RequestPush(ctx context.Context, phone string, amount decimal.Decimal, accountReference string) (*PushResponse, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, &errs.PaymentInitiationError{Reason: "provider unreachable", Err: err}
	}

	timestamp := time.Now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString(
		[]byte(c.cfg.Shortcode + c.cfg.Passkey + timestamp))

	payload := stkPushRequest{
		BusinessShortCode: c.cfg.Shortcode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount.Round(0).String(),
		PartyA:            phone,
		PartyB:            c.cfg.Shortcode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   "Agrovet Purchase",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &errs.PaymentInitiationError{Reason: "invalid request", Err: err}
	}

	url := c.cfg.BaseURL + "/mpesa/stkpush/v1/processrequest"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &errs.PaymentInitiationError{Reason: "invalid request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &errs.PaymentInitiationError{Reason: "push request failed", Err: err}
	}
	defer resp.Body.Close()

	var sr stkPushResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, &errs.PaymentInitiationError{Reason: "unreadable provider response", Err: err}
	}
	if sr.ResponseCode != "0" {
		return nil, &errs.PaymentInitiationError{
			Reason: fmt.Sprintf("provider declined: %s", sr.ResponseDescription),
		}
	}

	return &PushResponse{
		MerchantRequestID: sr.MerchantRequestID,
		CheckoutRequestID: sr.CheckoutRequestID,
	}, nil
}

// NormalizePhone converts user input into the 2547XXXXXXXX form the
// provider expects.
func NormalizePhone(phone string) (string, error) {
	p := strings.TrimSpace(phone)
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "0") {
		p = "254" + strings.TrimLeft(p, "0")
	} else if !strings.HasPrefix(p, "254") {
		p = "254" + p
	}
	if len(p) != 12 {
		return "", &errs.ValidationError{Reason: "phone number must be a valid Kenyan mobile number"}
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return "", &errs.ValidationError{Reason: "phone number must contain digits only"}
		}
	}
	return p, nil
}
