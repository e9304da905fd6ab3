// Package service keeps one checkout session per shopper and runs the checkout
// operations against it: pricing view, discounts, address selection, submission,
// payment completion and live reconciliation.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nikolayk812/restaurant-checkout/internal/checkout"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/notice"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
	"github.com/nikolayk812/restaurant-checkout/internal/pricing"
	"github.com/nikolayk812/restaurant-checkout/internal/realtime"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
)

var (
	ErrClosed           = errors.New("service is closed")
	ErrIdentityMismatch = errors.New("checkout session belongs to another identity")
)

const (
	msgCartLoad       = "Failed to load your cart. Please try again."
	msgDiscountLoad   = "Failed to apply discount code. Please try again."
	msgDiscountEmpty  = "Please enter a discount code."
	msgDiscountBad    = "Invalid discount code."
	msgAddressGuest   = "Sign in to use saved addresses."
	msgAddressMissing = "The selected address was not found."
)

type Deps struct {
	Calculator *pricing.Calculator
	Carts      port.CartRepository
	GuestCarts port.GuestCartStore
	Catalog    port.CatalogReader
	Discounts  port.DiscountRepository
	Addresses  port.AddressRepository
	Orders     port.OrderCreator
	Payments   port.PaymentIntents
	Tasks      port.TaskQueue
	Feed       port.ChangeFeed
	Logger     *zap.Logger
}

type Config struct {
	Currency       currency.Unit
	NoticeTTL      time.Duration
	Debounce       time.Duration
	ClearCartDelay time.Duration
	RedirectDelay  time.Duration
	Now            func() time.Time
}

// View is everything the checkout page renders.
type View struct {
	State             domain.SubmissionState   `json:"state"`
	FailureReason     string                   `json:"failureReason,omitempty"`
	Lines             []domain.CartLine        `json:"lines"`
	Pricing           domain.PricingSnapshot   `json:"pricing"`
	Discount          *domain.AppliedDiscount  `json:"discount,omitempty"`
	Notice            *domain.Notice           `json:"notice,omitempty"`
	Intent            *domain.OrderIntent      `json:"intent,omitempty"`
	Addresses         []domain.ShippingAddress `json:"addresses,omitempty"`
	SelectedAddressID string                   `json:"selectedAddressId,omitempty"`
	Live              bool                     `json:"live"`
}

type SubmitInput struct {
	// Address overrides the selected saved address when set.
	Address         *domain.ShippingAddress
	RequirePhone    bool
	GuestEmail      string
	FulfillmentType string
}

type ItemInput struct {
	MenuItemID string
	ProductID  string
	Quantity   int
	Variant    domain.Variant
}

type Service struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

type session struct {
	board   *notice.Board
	watcher *realtime.Watcher

	mu              sync.Mutex
	identity        domain.Session
	orch            *checkout.Orchestrator
	lines           []domain.CartLine
	code            *domain.DiscountCode
	addresses       []domain.ShippingAddress
	addressesLoaded bool
	selected        string
	lastSeen        time.Time
}

func New(deps Deps, cfg Config) (*Service, error) {
	switch {
	case deps.Calculator == nil:
		return nil, errors.New("calculator is nil")
	case deps.Carts == nil || deps.GuestCarts == nil || deps.Catalog == nil:
		return nil, errors.New("cart dependencies are nil")
	case deps.Discounts == nil || deps.Addresses == nil:
		return nil, errors.New("discount or address repository is nil")
	case deps.Orders == nil || deps.Payments == nil || deps.Tasks == nil:
		return nil, errors.New("order dependencies are nil")
	case deps.Feed == nil:
		return nil, errors.New("change feed is nil")
	}

	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NoticeTTL <= 0 {
		cfg.NoticeTTL = 5 * time.Second
	}

	return &Service{
		deps:     deps,
		cfg:      cfg,
		logger:   deps.Logger,
		sessions: make(map[string]*session),
	}, nil
}

// View loads the current cart and renders the checkout.
func (s *Service) View(ctx context.Context, identity domain.Session) (View, error) {
	sess, err := s.session(identity)
	if err != nil {
		return View{}, err
	}

	if err := s.refreshLines(ctx, sess); err != nil {
		return View{}, err
	}
	if err := s.ensureAddresses(ctx, sess); err != nil {
		s.logger.Warn("address book not loaded", zap.String("user_id", identity.UserID), zap.Error(err))
	}

	s.syncWatcher(ctx, sess)

	sess.mu.Lock()
	view := s.viewLocked(sess)
	sess.mu.Unlock()

	view.Live = sess.watcher.Active()
	return view, nil
}

// ApplyDiscount binds a discount code to the session. The amount is recomputed on every view.
func (s *Service) ApplyDiscount(ctx context.Context, identity domain.Session, raw string) (domain.AppliedDiscount, error) {
	sess, err := s.session(identity)
	if err != nil {
		return domain.AppliedDiscount{}, err
	}
	if err := s.ensureNotInFlight(sess); err != nil {
		return domain.AppliedDiscount{}, err
	}

	if strings.TrimSpace(raw) == "" {
		return domain.AppliedDiscount{}, &checkout.ValidationError{Message: msgDiscountEmpty}
	}

	if err := s.refreshLines(ctx, sess); err != nil {
		return domain.AppliedDiscount{}, err
	}

	code, err := s.deps.Discounts.GetByCode(ctx, strings.TrimSpace(raw))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.AppliedDiscount{}, &checkout.ValidationError{Message: msgDiscountBad}
	}
	if err != nil {
		return domain.AppliedDiscount{}, &checkout.CollaboratorError{Op: "get discount code", Message: msgDiscountLoad, Err: err}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	amount, err := DiscountAmount(code, s.deps.Calculator.Subtotal(sess.lines), s.cfg.Now())
	if err != nil {
		return domain.AppliedDiscount{}, err
	}

	sess.code = &code
	sess.board.Show(domain.NoticeInfo, fmt.Sprintf("Discount code %s applied.", code.Code))

	return domain.AppliedDiscount{CodeID: code.ID, Code: code.Code, Amount: amount}, nil
}

func (s *Service) RemoveDiscount(_ context.Context, identity domain.Session) error {
	sess, err := s.session(identity)
	if err != nil {
		return err
	}
	if err := s.ensureNotInFlight(sess); err != nil {
		return err
	}

	sess.mu.Lock()
	sess.code = nil
	sess.mu.Unlock()

	return nil
}

// SelectAddress picks a saved address of a signed-in user as the shipping address.
func (s *Service) SelectAddress(ctx context.Context, identity domain.Session, addressID string) (domain.ShippingAddress, error) {
	if identity.IsGuest() {
		return domain.ShippingAddress{}, &checkout.ValidationError{Message: msgAddressGuest}
	}

	sess, err := s.session(identity)
	if err != nil {
		return domain.ShippingAddress{}, err
	}
	if err := s.loadAddresses(ctx, sess); err != nil {
		return domain.ShippingAddress{}, err
	}

	sess.mu.Lock()
	idx := slices.IndexFunc(sess.addresses, func(a domain.ShippingAddress) bool { return a.ID == addressID })
	if idx < 0 {
		sess.mu.Unlock()
		return domain.ShippingAddress{}, &checkout.ValidationError{Message: msgAddressMissing}
	}
	sess.selected = addressID
	addr := sess.addresses[idx]
	sess.mu.Unlock()

	s.syncWatcher(ctx, sess)

	return addr, nil
}

// Submit places the order for the current cart and returns the payment intent.
func (s *Service) Submit(ctx context.Context, identity domain.Session, in SubmitInput) (domain.OrderIntent, error) {
	sess, err := s.session(identity)
	if err != nil {
		return domain.OrderIntent{}, err
	}

	if err := s.refreshLines(ctx, sess); err != nil {
		return domain.OrderIntent{}, err
	}

	sess.mu.Lock()
	req := checkout.SubmitRequest{
		RequirePhone:    in.RequirePhone,
		GuestEmail:      in.GuestEmail,
		FulfillmentType: in.FulfillmentType,
		Lines:           slices.Clone(sess.lines),
		Discount:        s.appliedLocked(sess),
	}
	switch {
	case in.Address != nil:
		req.Address = *in.Address
	case sess.selected != "":
		if idx := slices.IndexFunc(sess.addresses, func(a domain.ShippingAddress) bool { return a.ID == sess.selected }); idx >= 0 {
			req.Address = sess.addresses[idx]
		}
	}
	orch := sess.orch
	sess.mu.Unlock()

	intent, err := orch.Submit(ctx, req)
	s.syncWatcher(ctx, sess)
	if err != nil {
		return domain.OrderIntent{}, err
	}

	return intent, nil
}

// PaymentSucceeded finalizes the paid order of the session.
func (s *Service) PaymentSucceeded(ctx context.Context, identity domain.Session) (checkout.Completion, error) {
	sess, err := s.session(identity)
	if err != nil {
		return checkout.Completion{}, err
	}

	sess.mu.Lock()
	orch := sess.orch
	sess.mu.Unlock()

	completion, err := orch.HandlePaymentSuccess(ctx)
	if err != nil {
		return checkout.Completion{}, err
	}

	sess.mu.Lock()
	sess.code = nil
	sess.mu.Unlock()

	s.syncWatcher(ctx, sess)

	return completion, nil
}

// Close dismisses the payment or confirmation step.
func (s *Service) Close(ctx context.Context, identity domain.Session) (checkout.Redirect, error) {
	sess, err := s.session(identity)
	if err != nil {
		return checkout.Redirect{}, err
	}

	sess.mu.Lock()
	orch := sess.orch
	sess.mu.Unlock()

	redirect := orch.CloseConfirmation()
	s.syncWatcher(ctx, sess)

	return redirect, nil
}

// Sweep forgets sessions idle for longer than maxIdle that have nothing in flight.
func (s *Service) Sweep(maxIdle time.Duration) int {
	cutoff := s.cfg.Now().Add(-maxIdle)

	var stale []*session
	s.mu.Lock()
	for key, sess := range s.sessions {
		sess.mu.Lock()
		idle := sess.lastSeen.Before(cutoff) && !sess.orch.State().InFlight()
		sess.mu.Unlock()

		if idle {
			stale = append(stale, sess)
			delete(s.sessions, key)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		s.release(sess)
	}
	return len(stale)
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(maxIdle); n > 0 {
				s.logger.Debug("idle checkout sessions released", zap.Int("count", n))
			}
		}
	}
}

// Shutdown releases every session and waits for their background work.
func (s *Service) Shutdown() {
	s.mu.Lock()
	s.closed = true
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		s.release(sess)
	}
}

func (s *Service) release(sess *session) {
	sess.watcher.Close()

	sess.mu.Lock()
	orch := sess.orch
	sess.mu.Unlock()

	orch.Wait()
	sess.board.Clear()
}

func (s *Service) session(identity domain.Session) (*session, error) {
	if identity.OwnerID() == "" {
		return nil, errors.New("session has no owner")
	}
	key := identity.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	sess, ok := s.sessions[key]
	if !ok {
		sess = s.newSession(identity)
		s.sessions[key] = sess
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.identity.Key() != key {
		return nil, ErrIdentityMismatch
	}

	sess.lastSeen = s.cfg.Now()
	// a refreshed bearer token is picked up once no submission depends on the old one
	if sess.identity.BearerToken != identity.BearerToken {
		if state := sess.orch.State(); state == domain.SubmissionIdle || state == domain.SubmissionFailed {
			sess.identity = identity
			sess.orch = s.newOrchestrator(identity, sess)
		}
	}

	return sess, nil
}

func (s *Service) newSession(identity domain.Session) *session {
	sess := &session{
		board:    notice.NewBoard(s.cfg.NoticeTTL),
		identity: identity,
	}
	sess.orch = s.newOrchestrator(identity, sess)

	logger := s.logger.With(zap.String("owner_id", identity.OwnerID()))
	sess.watcher = realtime.NewWatcher(s.deps.Feed, sess.board, realtime.Handlers{
		RefetchCart: func(ctx context.Context) error {
			sess.mu.Lock()
			quiescent := sess.orch.State().Quiescent()
			sess.mu.Unlock()
			if !quiescent {
				return nil
			}

			if err := s.refreshLines(ctx, sess); err != nil {
				return err
			}
			s.syncWatcher(ctx, sess)
			return nil
		},
		RefetchAddresses: func(ctx context.Context) error {
			return s.loadAddresses(ctx, sess)
		},
		AdoptAddress: func(addr domain.ShippingAddress) {
			sess.mu.Lock()
			defer sess.mu.Unlock()

			if idx := slices.IndexFunc(sess.addresses, func(a domain.ShippingAddress) bool { return a.ID == addr.ID }); idx >= 0 {
				sess.addresses[idx] = addr
			}
		},
	}, s.cfg.Debounce, logger)

	return sess
}

// newOrchestrator binds a submission to sess. Every state change re-syncs the watcher,
// so live updates stop as soon as an order is being placed.
func (s *Service) newOrchestrator(identity domain.Session, sess *session) *checkout.Orchestrator {
	return checkout.NewOrchestrator(checkout.Deps{
		Calculator: s.deps.Calculator,
		Orders:     s.deps.Orders,
		Payments:   s.deps.Payments,
		Tasks:      s.deps.Tasks,
		GuestCarts: s.deps.GuestCarts,
		Board:      sess.board,
		Logger:     s.logger,
	}, checkout.Config{
		Currency:       s.cfg.Currency,
		ClearCartDelay: s.cfg.ClearCartDelay,
		RedirectDelay:  s.cfg.RedirectDelay,
		OnStateChange: func(domain.SubmissionState) {
			s.syncWatcher(context.Background(), sess)
		},
	}, identity)
}

func (s *Service) ensureNotInFlight(sess *session) error {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.orch.State().InFlight() {
		return checkout.ErrSubmissionInFlight
	}
	return nil
}

// syncWatcher points the watcher at the session's current cart and state.
// It must not be called with sess.mu held: the watcher waits for its handlers.
func (s *Service) syncWatcher(ctx context.Context, sess *session) {
	sess.mu.Lock()
	target := realtime.Target{
		Active:            realtime.ActiveFor(sess.lines, sess.orch.State()),
		Products:          productKeys(sess.lines),
		SelectedAddressID: sess.selected,
	}
	if !sess.identity.IsGuest() {
		target.UserID = sess.identity.UserID
	}
	sess.mu.Unlock()

	sess.watcher.Sync(ctx, target)
}

func (s *Service) viewLocked(sess *session) View {
	discount := s.appliedLocked(sess)
	amount := s.deps.Calculator.Snapshot(sess.lines, zeroOr(discount))

	view := View{
		State:             sess.orch.State(),
		FailureReason:     sess.orch.FailureReason(),
		Lines:             slices.Clone(sess.lines),
		Pricing:           amount,
		Discount:          discount,
		Addresses:         slices.Clone(sess.addresses),
		SelectedAddressID: sess.selected,
	}
	if n, ok := sess.board.Current(); ok {
		view.Notice = &n
	}
	if intent, ok := sess.orch.Intent(); ok {
		view.Intent = &intent
	}
	if view.Lines == nil {
		view.Lines = []domain.CartLine{}
	}

	return view
}

// appliedLocked recomputes the bound discount against the current subtotal.
// A code that no longer applies is dropped with a warning.
func (s *Service) appliedLocked(sess *session) *domain.AppliedDiscount {
	if sess.code == nil {
		return nil
	}

	code := *sess.code
	amount, err := DiscountAmount(code, s.deps.Calculator.Subtotal(sess.lines), s.cfg.Now())
	if err != nil {
		sess.code = nil
		sess.board.Show(domain.NoticeWarning, checkout.UserMessage(err))
		return nil
	}

	return &domain.AppliedDiscount{CodeID: code.ID, Code: code.Code, Amount: amount}
}
