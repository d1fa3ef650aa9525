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
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrMissingCredentials indicates the client is not configured for the
// gateway environment.
var ErrMissingCredentials = errors.New("mpesa: credentials not configured")

// Gateway is the push-payment contract the payment flow depends on. It knows
// nothing about plans or vouchers.
type Gateway interface {
	// InitiateSTKPush asks the gateway to prompt the phone for payment.
	// A nil error with Accepted=false means the gateway acknowledged the
	// request but refused it; the provider description is passed through
	// verbatim for diagnostics.
	InitiateSTKPush(ctx context.Context, phoneNumber string, amount float64, reference string) (*STKPushResult, error)
}

// STKPushResult is the normalized initiation acknowledgement.
type STKPushResult struct {
	Accepted            bool   // Whether the gateway accepted the push request.
	MerchantRequestID   string // First gateway correlation ID.
	CheckoutRequestID   string // Second gateway correlation ID.
	ResponseCode        string // Raw acknowledgement code.
	ResponseDescription string // Provider message, verbatim.
}

// Config holds Daraja API credentials and endpoints.
type Config struct {
	ConsumerKey    string        `yaml:"consumer-key"`
	ConsumerSecret string        `yaml:"consumer-secret"`
	Passkey        string        `yaml:"passkey"`
	ShortCode      string        `yaml:"short-code"`
	BaseURL        string        `yaml:"base-url"`
	CallbackURL    string        `yaml:"callback-url"`
	Timeout        time.Duration `yaml:"timeout"`
}

// defaultBaseURL is the Daraja sandbox host.
const defaultBaseURL = "https://sandbox.safaricom.co.ke"

// defaultTimeout bounds every call to the gateway.
const defaultTimeout = 30 * time.Second

// Client talks to the Daraja STK push API.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// NewClient constructs a Daraja client with timeouts applied.
func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// tokenResponse is the OAuth credentials endpoint payload.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// token returns a cached OAuth bearer token, fetching a fresh one when the
// cached token is near expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	if strings.TrimSpace(c.cfg.ConsumerKey) == "" || strings.TrimSpace(c.cfg.ConsumerSecret) == "" {
		return "", ErrMissingCredentials
	}

	url := c.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, errReq := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if errReq != nil {
		return "", fmt.Errorf("mpesa: build token request: %w", errReq)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(c.cfg.ConsumerKey + ":" + c.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return "", fmt.Errorf("mpesa: fetch token: %w", errDo)
	}
	defer resp.Body.Close()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return "", fmt.Errorf("mpesa: read token response: %w", errRead)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mpesa: token endpoint returned %d", resp.StatusCode)
	}

	var tok tokenResponse
	if errUnmarshal := json.Unmarshal(body, &tok); errUnmarshal != nil {
		return "", fmt.Errorf("mpesa: decode token response: %w", errUnmarshal)
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return "", errors.New("mpesa: empty access token")
	}

	ttl := 3600 * time.Second
	if parsed, errParse := time.ParseDuration(strings.TrimSpace(tok.ExpiresIn) + "s"); errParse == nil && parsed > 0 {
		ttl = parsed
	}

	c.accessToken = tok.AccessToken
	c.tokenExpiry = time.Now().Add(ttl - 30*time.Second)
	return c.accessToken, nil
}

// stkPushRequest is the processrequest payload.
type stkPushRequest struct {
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

// stkPushResponse is the raw processrequest acknowledgement.
type stkPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	ErrorMessage        string `json:"errorMessage"`
}

// InitiateSTKPush submits a push-payment prompt for the phone number. The
// phone number is normalized before submission; any non-zero acknowledgement
// code is surfaced as Accepted=false with the provider message intact.
func (c *Client) InitiateSTKPush(ctx context.Context, phoneNumber string, amount float64, reference string) (*STKPushResult, error) {
	if strings.TrimSpace(c.cfg.Passkey) == "" || strings.TrimSpace(c.cfg.ShortCode) == "" {
		return nil, ErrMissingCredentials
	}

	phone, errPhone := NormalizePhone(phoneNumber)
	if errPhone != nil {
		return nil, errPhone
	}

	accessToken, errToken := c.token(ctx)
	if errToken != nil {
		return nil, errToken
	}

	timestamp := time.Now().UTC().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))

	payload := stkPushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  "WIFI-" + reference,
		TransactionDesc:   "WiFi Voucher Payment",
	}

	raw, errMarshal := json.Marshal(payload)
	if errMarshal != nil {
		return nil, fmt.Errorf("mpesa: marshal stk push: %w", errMarshal)
	}

	url := c.cfg.BaseURL + "/mpesa/stkpush/v1/processrequest"
	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if errReq != nil {
		return nil, fmt.Errorf("mpesa: build stk push request: %w", errReq)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, errDo := c.httpClient.Do(req)
	if errDo != nil {
		return nil, fmt.Errorf("mpesa: stk push: %w", errDo)
	}
	defer resp.Body.Close()

	body, errRead := io.ReadAll(resp.Body)
	if errRead != nil {
		return nil, fmt.Errorf("mpesa: read stk push response: %w", errRead)
	}

	var ack stkPushResponse
	if errUnmarshal := json.Unmarshal(body, &ack); errUnmarshal != nil {
		return nil, fmt.Errorf("mpesa: decode stk push response: %w", errUnmarshal)
	}

	description := ack.ResponseDescription
	if description == "" {
		description = ack.ErrorMessage
	}

	result := &STKPushResult{
		Accepted:            resp.StatusCode == http.StatusOK && ack.ResponseCode == "0",
		MerchantRequestID:   ack.MerchantRequestID,
		CheckoutRequestID:   ack.CheckoutRequestID,
		ResponseCode:        ack.ResponseCode,
		ResponseDescription: description,
	}

	if !result.Accepted {
		log.WithFields(log.Fields{
			"reference":     reference,
			"response_code": ack.ResponseCode,
			"status":        resp.StatusCode,
		}).Warn("mpesa stk push not accepted")
	}
	return result, nil
}
