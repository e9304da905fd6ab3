package edge_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/edge"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
)

type recorded struct {
	path   string
	auth   string
	apikey string
	body   map[string]any
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) add(c recorded) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.calls...)
}

func newServer(t *testing.T, status int, response string, rec *recorder) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		_ = dec.Decode(&body)

		rec.add(recorded{
			path:   r.URL.Path,
			auth:   r.Header.Get("Authorization"),
			apikey: r.Header.Get("apikey"),
			body:   body,
		})

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newClient(t *testing.T, baseURL string) *edge.Client {
	t.Helper()

	client, err := edge.New(edge.DefaultConfig(baseURL+"/functions/v1/", "anon-key"), nil)
	require.NoError(t, err)

	return client
}

func TestCreatePaymentIntent(t *testing.T) {
	rec := &recorder{}
	srv := newServer(t, http.StatusOK, `{"clientSecret":"pi_123_secret"}`, rec)
	client := newClient(t, srv.URL)

	secret, err := client.CreatePaymentIntent(context.Background(), domain.PaymentIntentRequest{
		Amount:        domain.Money{Amount: decimal.RequireFromString("38.96"), Currency: currency.USD},
		OrderID:       "order-1",
		CustomerEmail: "a@b.co",
		BearerToken:   "user-token",
	})
	require.NoError(t, err)
	assert.Equal(t, "pi_123_secret", secret)

	calls := rec.all()
	require.Len(t, calls, 1)
	call := calls[0]
	assert.Equal(t, "/functions/v1/create-payment-intent", call.path)
	assert.Equal(t, "Bearer user-token", call.auth)
	assert.Equal(t, "anon-key", call.apikey)
	assert.Equal(t, json.Number("38.96"), call.body["amount"])
	assert.Equal(t, "usd", call.body["currency"])
	assert.Equal(t, "order-1", call.body["orderId"])
	assert.Equal(t, "a@b.co", call.body["customerEmail"])
}

func TestCreatePaymentIntent_ErrorBody(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		response    string
		wantMessage string
	}{
		{
			name:        "error field: error",
			status:      http.StatusBadRequest,
			response:    `{"error":"Amount too small"}`,
			wantMessage: "Amount too small",
		},
		{
			name:        "message field: error",
			status:      http.StatusInternalServerError,
			response:    `{"message":"Stripe unavailable"}`,
			wantMessage: "Stripe unavailable",
		},
		{
			name:        "non-json body: error",
			status:      http.StatusBadGateway,
			response:    `upstream timeout`,
			wantMessage: "",
		},
		{
			name:        "success false with error: error",
			status:      http.StatusOK,
			response:    `{"success":false,"error":"Your card was declined."}`,
			wantMessage: "Your card was declined.",
		},
		{
			name:        "success false with message: error",
			status:      http.StatusOK,
			response:    `{"success":false,"message":"Payments are paused."}`,
			wantMessage: "Payments are paused.",
		},
		{
			name:        "no client secret: error",
			status:      http.StatusOK,
			response:    `{"success":true}`,
			wantMessage: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, tt.status, tt.response, &recorder{})
			client := newClient(t, srv.URL)

			_, err := client.CreatePaymentIntent(context.Background(), domain.PaymentIntentRequest{
				Amount:  domain.Money{Amount: decimal.NewFromInt(10), Currency: currency.USD},
				OrderID: "order-1",
			})
			require.Error(t, err)

			var respErr *edge.ResponseError
			require.ErrorAs(t, err, &respErr)
			assert.Equal(t, tt.status, respErr.Status)
			assert.Equal(t, tt.wantMessage, respErr.UserMessage())
		})
	}
}

func TestSendOrderConfirmation_GuestUsesAnonKey(t *testing.T) {
	rec := &recorder{}
	srv := newServer(t, http.StatusOK, `{}`, rec)
	client := newClient(t, srv.URL)

	err := client.SendOrderConfirmation(context.Background(), domain.OrderConfirmation{
		OrderID: "order-9",
		Email:   "guest@example.com",
	})
	require.NoError(t, err)

	calls := rec.all()
	require.Len(t, calls, 1)
	assert.Equal(t, "/functions/v1/send-order-confirmation", calls[0].path)
	assert.Equal(t, "Bearer anon-key", calls[0].auth)
	assert.Equal(t, "order-9", calls[0].body["orderId"])
	assert.Equal(t, "guest@example.com", calls[0].body["email"])
	assert.NotContains(t, calls[0].body, "BearerToken")
}

func TestBreakerOpensOnServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	cfg := edge.DefaultConfig(srv.URL, "")
	cfg.MaxFailures = 2
	cfg.OpenTimeout = time.Minute
	client, err := edge.New(cfg, nil)
	require.NoError(t, err)

	confirmation := domain.OrderConfirmation{OrderID: "order-1", Email: "a@b.co"}
	for range 2 {
		err := client.SendOrderConfirmation(context.Background(), confirmation)
		require.Error(t, err)
	}

	err = client.SendOrderConfirmation(context.Background(), confirmation)
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), hits.Load())
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	t.Cleanup(srv.Close)

	cfg := edge.DefaultConfig(srv.URL, "")
	cfg.MaxFailures = 1
	client, err := edge.New(cfg, nil)
	require.NoError(t, err)

	confirmation := domain.OrderConfirmation{OrderID: "order-1", Email: "a@b.co"}
	for range 3 {
		err := client.SendOrderConfirmation(context.Background(), confirmation)
		var respErr *edge.ResponseError
		require.ErrorAs(t, err, &respErr)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestNew_EmptyBaseURL(t *testing.T) {
	_, err := edge.New(edge.DefaultConfig(" ", "anon"), nil)
	require.Error(t, err)
}
