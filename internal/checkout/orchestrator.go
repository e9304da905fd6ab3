// Package checkout places orders: it validates the checkout form, creates the
// order, requests a payment intent and later finalizes the paid order.
package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/notice"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
	"github.com/nikolayk812/restaurant-checkout/internal/pricing"
	"github.com/nikolayk812/restaurant-checkout/internal/validation"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

const defaultFulfillmentType = "delivery"

type Deps struct {
	Calculator *pricing.Calculator
	Orders     port.OrderCreator
	Payments   port.PaymentIntents
	Tasks      port.TaskQueue
	GuestCarts port.GuestCartStore
	Board      *notice.Board
	Logger     *zap.Logger
}

type Config struct {
	Currency       currency.Unit
	ClearCartDelay time.Duration
	RedirectDelay  time.Duration
	OrdersPath     string
	OnStateChange  func(domain.SubmissionState)
}

type SubmitRequest struct {
	Address         domain.ShippingAddress
	RequirePhone    bool
	GuestEmail      string
	FulfillmentType string
	Lines           []domain.CartLine
	Discount        *domain.AppliedDiscount
}

type Orchestrator struct {
	deps    Deps
	cfg     Config
	session domain.Session
	machine *Machine
	logger  *zap.Logger

	mu            sync.Mutex
	intent        domain.OrderIntent
	customerEmail string

	background sync.WaitGroup
}

func NewOrchestrator(deps Deps, cfg Config, session domain.Session) *Orchestrator {
	if cfg.OrdersPath == "" {
		cfg.OrdersPath = "/orders"
	}
	if cfg.Currency == (currency.Unit{}) {
		cfg.Currency = currency.USD
	}

	return &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		session: session,
		machine: NewMachine(cfg.OnStateChange),
		logger:  deps.Logger.With(zap.String("owner_id", session.OwnerID()), zap.Bool("guest", session.IsGuest())),
	}
}

func (o *Orchestrator) State() domain.SubmissionState {
	return o.machine.State()
}

func (o *Orchestrator) FailureReason() string {
	return o.machine.FailureReason()
}

// Intent is the order and payment secret of the current submission, if any.
func (o *Orchestrator) Intent() (domain.OrderIntent, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.intent, o.intent.OrderID != ""
}

// Submit runs the whole submission chain. Only one submission may be in flight;
// a concurrent call fails with ErrSubmissionInFlight without touching the running one.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (domain.OrderIntent, error) {
	if err := o.machine.Begin(); err != nil {
		return domain.OrderIntent{}, err
	}

	intent, err := o.submit(ctx, req)
	if err != nil {
		o.machine.Fail(err.Error())
		o.deps.Board.Show(domain.NoticeError, UserMessage(err))
		o.logger.Warn("checkout submission failed", zap.Error(err))
		return domain.OrderIntent{}, err
	}

	return intent, nil
}

func (o *Orchestrator) submit(ctx context.Context, req SubmitRequest) (domain.OrderIntent, error) {
	if res := validation.ValidateShippingAddress(req.Address, req.RequirePhone); !res.Valid {
		return domain.OrderIntent{}, &ValidationError{Message: res.FirstError(), Missing: res.Missing}
	}

	email, err := o.resolveEmail(req.GuestEmail)
	if err != nil {
		return domain.OrderIntent{}, err
	}

	if len(req.Lines) == 0 {
		return domain.OrderIntent{}, &ValidationError{Message: msgEmptyCart}
	}

	items, err := BuildOrderItems(req.Lines)
	if err != nil {
		return domain.OrderIntent{}, err
	}

	discountAmount := decimal.Zero
	if req.Discount != nil {
		discountAmount = req.Discount.Amount
	}
	snapshot := o.deps.Calculator.Snapshot(req.Lines, discountAmount)

	if err := o.machine.Transition(domain.SubmissionValidating, domain.SubmissionPlacingOrder); err != nil {
		return domain.OrderIntent{}, err
	}

	draft := o.draft(req, email, items, snapshot)

	orderID, err := o.deps.Orders.CreateOrder(ctx, draft)
	if err != nil {
		return domain.OrderIntent{}, &CollaboratorError{
			Op:      "create order",
			Message: collaboratorMessage(err, msgOrderFallback),
			Err:     err,
		}
	}
	if orderID == "" {
		return domain.OrderIntent{}, &CollaboratorError{Op: "create order", Message: msgOrderFallback}
	}

	logger := o.logger.With(zap.String("order_id", orderID))
	logger.Info("order created", zap.Int("items", len(items)), zap.String("grand_total", snapshot.GrandTotal.StringFixed(2)))

	if req.Discount != nil && !o.session.IsGuest() {
		o.recordDiscountUsage(ctx, logger, orderID, *req.Discount, snapshot.Subtotal)
	}

	amount := domain.Money{Amount: snapshot.GrandTotal, Currency: o.cfg.Currency}
	secret, err := o.deps.Payments.CreatePaymentIntent(ctx, domain.PaymentIntentRequest{
		Amount:        domain.Money{Amount: amount.MinorUnits(), Currency: amount.Currency},
		OrderID:       orderID,
		CustomerEmail: email,
		BearerToken:   o.session.BearerToken,
	})
	if err != nil {
		return domain.OrderIntent{}, &CollaboratorError{
			Op:      "create payment intent",
			Message: collaboratorMessage(err, msgPaymentFallback),
			Err:     err,
		}
	}
	if strings.TrimSpace(secret) == "" {
		return domain.OrderIntent{}, &CollaboratorError{Op: "create payment intent", Message: msgPaymentFallback}
	}

	intent := domain.OrderIntent{OrderID: orderID, ClientSecret: secret}

	o.mu.Lock()
	o.intent = intent
	o.customerEmail = email
	o.mu.Unlock()

	if err := o.machine.Transition(domain.SubmissionPlacingOrder, domain.SubmissionAwaitingPayment); err != nil {
		return domain.OrderIntent{}, err
	}

	return intent, nil
}

// resolveEmail checks the guest's typed email, or the account email of a signed-in user.
// A bad account email is an account data problem and is worded as such.
func (o *Orchestrator) resolveEmail(guestEmail string) (string, error) {
	if o.session.IsGuest() {
		email := strings.TrimSpace(guestEmail)
		if email == "" || !validation.ValidateEmail(email) {
			return "", &ValidationError{Message: msgGuestEmail}
		}
		return email, nil
	}

	email := strings.TrimSpace(o.session.Email)
	if email == "" || !validation.ValidateEmail(email) {
		return "", &ValidationError{Message: msgAccountEmail}
	}
	return email, nil
}

func (o *Orchestrator) draft(req SubmitRequest, email string, items []domain.OrderItem, snapshot domain.PricingSnapshot) domain.OrderDraft {
	fulfillment := req.FulfillmentType
	if fulfillment == "" {
		fulfillment = defaultFulfillmentType
	}

	draft := domain.OrderDraft{
		UserID:        o.session.UserID,
		CustomerEmail: email,
		CustomerName:  strings.TrimSpace(req.Address.FullName),
		ShippingAddress: domain.FulfillmentAddress{
			ShippingAddress: req.Address,
			FulfillmentType: fulfillment,
		},
		Items:          items,
		DiscountAmount: snapshot.DiscountAmount,
		Subtotal:       snapshot.Subtotal,
		GrandTotal:     snapshot.GrandTotal,
		Currency:       o.cfg.Currency.String(),
		IsGuest:        o.session.IsGuest(),
	}
	if o.session.IsGuest() {
		draft.GuestSessionID = o.session.GuestSessionID
	}
	if req.Discount != nil {
		draft.DiscountCodeID = req.Discount.CodeID
	}
	return draft
}

// recordDiscountUsage hands the usage to the task queue. A failure leaves the
// order without a usage row; it is logged and the submission carries on.
func (o *Orchestrator) recordDiscountUsage(ctx context.Context, logger *zap.Logger, orderID string, discount domain.AppliedDiscount, subtotal decimal.Decimal) {
	payload, err := json.Marshal(domain.DiscountUsage{
		DiscountCodeID: discount.CodeID,
		UserID:         o.session.UserID,
		OrderID:        orderID,
		DiscountAmount: discount.Amount,
		OrderSubtotal:  subtotal,
	})
	if err != nil {
		logger.Error("discount usage not recorded", zap.Error(fmt.Errorf("json.Marshal: %w", err)))
		return
	}

	if err := o.deps.Tasks.Enqueue(ctx, domain.Task{Kind: domain.TaskDiscountUsage, Payload: payload}); err != nil {
		logger.Error("discount usage not recorded", zap.String("discount_code_id", discount.CodeID), zap.Error(err))
	}
}

// Wait blocks until background work started by HandlePaymentSuccess is done.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}
