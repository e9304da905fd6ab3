package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"go.uber.org/zap"
)

type NextStep string

const (
	NextConfirmation      NextStep = "confirmation"
	NextAccountConversion NextStep = "account_conversion"
)

type Completion struct {
	Next           NextStep `json:"next"`
	OrderID        string   `json:"orderId"`
	GuestSessionID string   `json:"guestSessionId,omitempty"`
}

type Redirect struct {
	Path  string        `json:"path"`
	Delay time.Duration `json:"delay"`
}

// HandlePaymentSuccess finalizes a paid order. It is accepted once, from AwaitingPayment;
// a repeated call returns ErrNotAwaitingPayment and has no side effects.
func (o *Orchestrator) HandlePaymentSuccess(ctx context.Context) (Completion, error) {
	if err := o.machine.Transition(domain.SubmissionAwaitingPayment, domain.SubmissionProcessingSuccess); err != nil {
		return Completion{}, fmt.Errorf("%w: %w", ErrNotAwaitingPayment, err)
	}

	o.mu.Lock()
	intent := o.intent
	email := o.customerEmail
	o.mu.Unlock()

	completion := Completion{Next: NextConfirmation, OrderID: intent.OrderID}
	if o.session.IsGuest() {
		completion.Next = NextAccountConversion
		completion.GuestSessionID = o.session.GuestSessionID
	}

	if err := o.machine.Transition(domain.SubmissionProcessingSuccess, domain.SubmissionSucceeded); err != nil {
		return Completion{}, err
	}

	o.logger.Info("payment succeeded", zap.String("order_id", intent.OrderID), zap.String("next", string(completion.Next)))

	// the confirmation view renders before the cart disappears underneath it
	bgCtx := context.WithoutCancel(ctx)
	o.background.Add(1)
	time.AfterFunc(o.cfg.ClearCartDelay, func() {
		defer o.background.Done()
		o.finalize(bgCtx, intent.OrderID, email)
	})

	return completion, nil
}

func (o *Orchestrator) finalize(ctx context.Context, orderID, email string) {
	logger := o.logger.With(zap.String("order_id", orderID))

	if o.session.IsGuest() {
		if err := o.deps.GuestCarts.Clear(ctx, o.session.GuestSessionID); err != nil {
			logger.Warn("guest cart not cleared", zap.Error(err))
		}
	} else {
		o.enqueue(ctx, logger, domain.TaskClearCart, domain.ClearCartPayload{UserID: o.session.UserID})
	}

	o.enqueue(ctx, logger, domain.TaskOrderConfirmation, domain.OrderConfirmationPayload{
		OrderID:     orderID,
		Email:       email,
		BearerToken: o.session.BearerToken,
	})
}

func (o *Orchestrator) enqueue(ctx context.Context, logger *zap.Logger, kind domain.TaskKind, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Error("task not enqueued", zap.String("task_kind", string(kind)), zap.Error(fmt.Errorf("json.Marshal: %w", err)))
		return
	}

	if err := o.deps.Tasks.Enqueue(ctx, domain.Task{Kind: kind, Payload: raw}); err != nil {
		logger.Error("task not enqueued", zap.String("task_kind", string(kind)), zap.Error(err))
	}
}

// CloseConfirmation dismisses the payment or confirmation step and resets the session.
// After a successful order the shopper is sent to the orders view.
func (o *Orchestrator) CloseConfirmation() Redirect {
	succeeded := o.machine.State() == domain.SubmissionSucceeded
	if !o.machine.Reset() {
		return Redirect{}
	}

	o.mu.Lock()
	o.intent = domain.OrderIntent{}
	o.customerEmail = ""
	o.mu.Unlock()

	if !succeeded {
		return Redirect{}
	}
	return Redirect{Path: o.cfg.OrdersPath, Delay: o.cfg.RedirectDelay}
}
