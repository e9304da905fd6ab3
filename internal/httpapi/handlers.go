package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nikolayk812/restaurant-checkout/internal/checkout"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/service"
	"go.uber.org/zap"
)

type discountRequest struct {
	Code string `json:"code" binding:"required"`
}

type selectAddressRequest struct {
	ID string `json:"id" binding:"required"`
}

type submitRequest struct {
	Address         *domain.ShippingAddress `json:"address"`
	RequirePhone    bool                    `json:"requirePhone"`
	GuestEmail      string                  `json:"guestEmail"`
	FulfillmentType string                  `json:"fulfillmentType" binding:"omitempty,oneof=delivery pickup"`
}

type addItemRequest struct {
	MenuItemID string         `json:"menuItemId"`
	ProductID  string         `json:"productId"`
	Quantity   int            `json:"quantity" binding:"required,min=1"`
	Variant    domain.Variant `json:"variant"`
}

type closeResponse struct {
	Redirect string `json:"redirect,omitempty"`
	DelayMs  int64  `json:"delayMs"`
}

func getCheckout(svc CheckoutService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.View(c.Request.Context(), sessionFrom(c))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

func applyDiscount(svc CheckoutService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req discountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		applied, err := svc.ApplyDiscount(c.Request.Context(), sessionFrom(c), req.Code)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, applied)
	}
}

func removeDiscount(svc CheckoutService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.RemoveDiscount(c.Request.Context(), sessionFrom(c)); err != nil {
			writeError(c, logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func selectAddress(svc CheckoutService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req selectAddressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		addr, err := svc.SelectAddress(c.Request.Context(), sessionFrom(c), req.ID)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, addr)
	}
}

func submit(svc CheckoutService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req submitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		intent, err := svc.Submit(c.Request.Context(), sessionFrom(c), service.SubmitInput{
			Address:         req.Address,
			RequirePhone:    req.RequirePhone,
			GuestEmail:      req.GuestEmail,
			FulfillmentType: req.FulfillmentType,
		})
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, intent)
	}
}

func paymentSuccess(svc CheckoutService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		completion, err := svc.PaymentSucceeded(c.Request.Context(), sessionFrom(c))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, completion)
	}
}

func closeCheckout(svc CheckoutService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		redirect, err := svc.Close(c.Request.Context(), sessionFrom(c))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, closeResponse{
			Redirect: redirect.Path,
			DelayMs:  redirect.Delay.Milliseconds(),
		})
	}
}

func addItem(svc CheckoutService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req addItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		lineID, err := svc.AddItem(c.Request.Context(), sessionFrom(c), service.ItemInput{
			MenuItemID: req.MenuItemID,
			ProductID:  req.ProductID,
			Quantity:   req.Quantity,
			Variant:    req.Variant,
		})
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": lineID})
	}
}

func removeItem(svc CheckoutService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.RemoveItem(c.Request.Context(), sessionFrom(c), c.Param("id")); err != nil {
			writeError(c, logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// writeError maps the checkout error taxonomy onto HTTP statuses.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		validationErr   *checkout.ValidationError
		integrityErr    *checkout.DataIntegrityError
		collaboratorErr *checkout.CollaboratorError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validationErr.UserMessage(), "missing": validationErr.Missing})
	case errors.As(err, &integrityErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": integrityErr.UserMessage()})
	case errors.Is(err, checkout.ErrSubmissionInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": checkout.ErrSubmissionInFlight.Error()})
	case errors.Is(err, checkout.ErrNotAwaitingPayment):
		c.JSON(http.StatusConflict, gin.H{"error": checkout.ErrNotAwaitingPayment.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.As(err, &collaboratorErr):
		logger.Warn("collaborator failed", zap.String("op", collaboratorErr.Op), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": collaboratorErr.UserMessage()})
	case errors.Is(err, service.ErrIdentityMismatch):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
	default:
		logger.Error("checkout request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": checkout.UserMessage(err)})
	}
}
