package edge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const (
	createPaymentIntentPath   = "/create-payment-intent"
	sendOrderConfirmationPath = "/send-order-confirmation"
)

type Config struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration

	// breaker
	MaxFailures  uint32
	OpenTimeout  time.Duration
	HalfOpenReqs uint32
}

func DefaultConfig(baseURL, anonKey string) Config {
	return Config{
		BaseURL:      baseURL,
		AnonKey:      anonKey,
		Timeout:      10 * time.Second,
		MaxFailures:  5,
		OpenTimeout:  30 * time.Second,
		HalfOpenReqs: 1,
	}
}

// ResponseError is a non-2xx answer of an edge function.
type ResponseError struct {
	Function string
	Status   int
	Message  string
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("edge function %s: status %d", e.Function, e.Status)
	}
	return fmt.Sprintf("edge function %s: status %d: %s", e.Function, e.Status, e.Message)
}

// UserMessage is the message the edge function returned, if any.
func (e *ResponseError) UserMessage() string {
	return e.Message
}

type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

var (
	_ port.PaymentIntents = (*Client)(nil)
	_ port.OrderNotifier  = (*Client)(nil)
)

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("edge base url is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "edge-functions",
		MaxRequests: cfg.HalfOpenReqs,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return cfg.MaxFailures > 0 && counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}, nil
}

// isSuccessful keeps client errors (4xx) and cancellations from tripping the breaker.
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr.Status < http.StatusInternalServerError
	}
	return false
}

type paymentIntentRequest struct {
	Amount        json.Number `json:"amount"`
	Currency      string      `json:"currency"`
	OrderID       string      `json:"orderId"`
	CustomerEmail string      `json:"customerEmail"`
}

type paymentIntentResponse struct {
	Success      *bool  `json:"success"`
	ClientSecret string `json:"clientSecret"`
	errorBody
}

// CreatePaymentIntent asks the payment function for a client secret for the order's grand total.
func (c *Client) CreatePaymentIntent(ctx context.Context, req domain.PaymentIntentRequest) (string, error) {
	if req.OrderID == "" {
		return "", errors.New("orderID is empty")
	}

	body := paymentIntentRequest{
		Amount:        json.Number(req.Amount.StringFixed()),
		Currency:      strings.ToLower(req.Amount.Currency.String()),
		OrderID:       req.OrderID,
		CustomerEmail: req.CustomerEmail,
	}

	raw, err := c.call(ctx, createPaymentIntentPath, req.BearerToken, body)
	if err != nil {
		return "", fmt.Errorf("c.call: %w", err)
	}

	var resp paymentIntentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("json.Unmarshal: %w", err)
	}

	// the function may answer 2xx with success=false and its reason in error or message
	if (resp.Success != nil && !*resp.Success) || resp.ClientSecret == "" {
		return "", &ResponseError{
			Function: strings.TrimPrefix(createPaymentIntentPath, "/"),
			Status:   http.StatusOK,
			Message:  resp.errorBody.message(),
		}
	}

	return resp.ClientSecret, nil
}

// SendOrderConfirmation triggers the confirmation e-mail for a paid order.
func (c *Client) SendOrderConfirmation(ctx context.Context, confirmation domain.OrderConfirmation) error {
	if confirmation.OrderID == "" {
		return errors.New("orderID is empty")
	}

	if _, err := c.call(ctx, sendOrderConfirmationPath, confirmation.BearerToken, confirmation); err != nil {
		return fmt.Errorf("c.call: %w", err)
	}

	return nil
}

func (c *Client) call(ctx context.Context, path, bearer string, payload any) ([]byte, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("json.Marshal: %w", err)
	}

	return c.breaker.Execute(func() ([]byte, error) {
		return c.post(ctx, path, bearer, encoded)
	})
}

func (c *Client) post(ctx context.Context, path, bearer string, encoded []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("http.NewRequestWithContext: %w", err)
	}

	// the anon key stands in for guests without a session token
	token := bearer
	if token == "" {
		token = c.cfg.AnonKey
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.cfg.AnonKey != "" {
		req.Header.Set("apikey", c.cfg.AnonKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http.Do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ResponseError{
			Function: strings.TrimPrefix(path, "/"),
			Status:   resp.StatusCode,
			Message:  errorMessage(raw),
		}
	}

	return raw, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) message() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

func errorMessage(raw []byte) string {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return body.message()
}
