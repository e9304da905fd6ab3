package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nikolayk812/restaurant-checkout/internal/checkout"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/service"
	"go.uber.org/zap"
)

const GuestSessionHeader = "X-Guest-Session"

type CheckoutService interface {
	View(ctx context.Context, identity domain.Session) (service.View, error)
	ApplyDiscount(ctx context.Context, identity domain.Session, code string) (domain.AppliedDiscount, error)
	RemoveDiscount(ctx context.Context, identity domain.Session) error
	SelectAddress(ctx context.Context, identity domain.Session, addressID string) (domain.ShippingAddress, error)
	Submit(ctx context.Context, identity domain.Session, in service.SubmitInput) (domain.OrderIntent, error)
	PaymentSucceeded(ctx context.Context, identity domain.Session) (checkout.Completion, error)
	Close(ctx context.Context, identity domain.Session) (checkout.Redirect, error)
	AddItem(ctx context.Context, identity domain.Session, in service.ItemInput) (string, error)
	RemoveItem(ctx context.Context, identity domain.Session, lineID string) error
}

type SessionVerifier interface {
	SessionFromHeader(header string) (domain.Session, bool, error)
}

type Deps struct {
	Service  CheckoutService
	Verifier SessionVerifier
	// Health reports whether the process can serve; nil means always healthy.
	Health func(ctx context.Context) error
	Logger *zap.Logger
}

func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Logger))

	r.GET("/healthz", healthz(deps.Health))

	api := r.Group("/")
	api.Use(identity(deps.Verifier, deps.Logger))
	{
		api.GET("/checkout", getCheckout(deps.Service, deps.Logger))
		api.POST("/checkout/discount", applyDiscount(deps.Service, deps.Logger))
		api.DELETE("/checkout/discount", removeDiscount(deps.Service, deps.Logger))
		api.POST("/checkout/addresses/select", selectAddress(deps.Service, deps.Logger))
		api.POST("/checkout/submit", submit(deps.Service, deps.Logger))
		api.POST("/checkout/payment/success", paymentSuccess(deps.Service, deps.Logger))
		api.POST("/checkout/close", closeCheckout(deps.Service, deps.Logger))

		api.POST("/cart/items", addItem(deps.Service, deps.Logger))
		api.DELETE("/cart/items/:id", removeItem(deps.Service, deps.Logger))
	}

	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func healthz(check func(ctx context.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check != nil {
			if err := check(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
