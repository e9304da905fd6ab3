package domain

import (
	"encoding/json"
	"time"
)

type TaskKind string

const (
	TaskDiscountUsage     TaskKind = "discount_usage"
	TaskOrderConfirmation TaskKind = "order_confirmation"
	TaskClearCart         TaskKind = "clear_cart"
)

type Task struct {
	ID            int64
	Kind          TaskKind
	Payload       json.RawMessage
	Attempts      int
	NextAttemptAt time.Time
}

// ClearCartPayload is the payload of a TaskClearCart task.
type ClearCartPayload struct {
	UserID string `json:"userId"`
}

// OrderConfirmationPayload carries the bearer token resolved when the order succeeded.
// The token is stripped from the stored payload once the task is done or dead.
type OrderConfirmationPayload struct {
	OrderID     string `json:"orderId"`
	Email       string `json:"email"`
	BearerToken string `json:"bearerToken,omitempty"`
}
