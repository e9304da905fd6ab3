package checkout

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
	ErrNotAwaitingPayment = errors.New("checkout is not awaiting payment")
	ErrIllegalTransition  = errors.New("illegal transition of submission state")
)

const (
	msgEmptyCart        = "Your cart is empty."
	msgGuestEmail       = "Please enter a valid email address."
	msgAccountEmail     = "Your account email is missing or invalid. Please update your profile or contact support."
	msgOrderFallback    = "Failed to create order. Please try again."
	msgPaymentFallback  = "Failed to initialize payment. Please try again."
	msgUnexpectedFailed = "Something went wrong. Please try again."
)

// ValidationError is a problem with the shopper's input or cart, detected before any remote call.
type ValidationError struct {
	Message string
	Missing []string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}

func (e *ValidationError) UserMessage() string {
	return e.Message
}

// DataIntegrityError means a cart line resolved to a non-positive price.
type DataIntegrityError struct {
	Product string
	Price   decimal.Decimal
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("invalid price %s for product %q", e.Price, e.Product)
}

func (e *DataIntegrityError) UserMessage() string {
	return fmt.Sprintf("Invalid price for %s. Please remove it from your cart and try again.", e.Product)
}

// CollaboratorError wraps a failure of a remote collaborator on the critical path.
type CollaboratorError struct {
	Op      string
	Message string
	Err     error
}

func (e *CollaboratorError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

func (e *CollaboratorError) UserMessage() string {
	return e.Message
}

type userMessager interface {
	UserMessage() string
}

// UserMessage is the text shown to the shopper for err.
func UserMessage(err error) string {
	var um userMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return msgUnexpectedFailed
}

// collaboratorMessage prefers a message the collaborator meant for end users.
func collaboratorMessage(err error, fallback string) string {
	var um userMessager
	if errors.As(err, &um) && um.UserMessage() != "" {
		return um.UserMessage()
	}
	return fallback
}
