package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tezzaro/billing-gateway/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrOrderCreateFailed = errors.New("payment gateway order creation failed")
)

// Order is a payment order created at the gateway. The customer completes
// checkout against it; the gateway reports back with a payment id and a
// signature over "order_id|payment_id".
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
	MaxConns  int
}

type Client struct {
	config *Config
	auth   string
	client *fasthttp.Client
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.KeyID == "" || config.KeySecret == "" {
		return nil, errors.New("payment gateway credentials are required")
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api.razorpay.com"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	client := &Client{
		config: config,
		auth:   "Basic " + base64.StdEncoding.EncodeToString([]byte(config.KeyID+":"+config.KeySecret)),
		client: &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}

	logger.Info("Payment gateway client initialized", "base_url", config.BaseURL, "key_id", config.KeyID)

	return client, nil
}

// CreateOrder registers a checkout order at the gateway. Amount is the gross
// amount in paise; the gateway collects exactly this from the customer.
func (c *Client) CreateOrder(ctx context.Context, amount int64, receipt string, notes map[string]string) (*Order, error) {
	payload := map[string]interface{}{
		"amount":   amount,
		"currency": "INR",
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		payload["notes"] = notes
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal order request: %w", err)
	}

	response, err := c.doRequest(ctx, "POST", "/v1/orders", reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOrderCreateFailed, err)
	}

	var order Order
	if err := json.Unmarshal(response, &order); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order response: %w", err)
	}

	logger.Info("Payment order created", "order_id", order.ID, "amount", order.Amount, "receipt", receipt)

	return &order, nil
}

// VerifySignature checks the gateway callback signature: HMAC-SHA256 of
// "order_id|payment_id" keyed with the secret, hex encoded. Constant-time
// comparison.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(c.config.KeySecret, orderID, paymentID, signature)
}

func VerifySignature(secret, orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// SignPayload computes the signature the gateway would send for a callback.
// Used by the sandbox provider and tests.
func SignPayload(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", c.auth)

	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusCreated {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	result := make([]byte, len(resp.Body()))
	copy(result, resp.Body())

	return result, nil
}
