package service_test

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
)

type fakeCarts struct {
	mu    sync.Mutex
	lines map[string][]domain.CartLine
	reads atomic.Int32
}

func (f *fakeCarts) GetCart(_ context.Context, ownerID string) (domain.Cart, error) {
	f.reads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.Cart{OwnerID: ownerID, Lines: slices.Clone(f.lines[ownerID])}, nil
}

func (f *fakeCarts) AddItem(_ context.Context, ownerID string, line domain.CartLine) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	line.ID = id.String()
	f.lines[ownerID] = append(f.lines[ownerID], line)
	return id, nil
}

func (f *fakeCarts) DeleteItem(_ context.Context, ownerID string, lineID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.lines[ownerID])
	f.lines[ownerID] = slices.DeleteFunc(f.lines[ownerID], func(l domain.CartLine) bool { return l.ID == lineID.String() })
	return len(f.lines[ownerID]) < before, nil
}

func (f *fakeCarts) ClearCart(_ context.Context, ownerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.lines[ownerID])
	delete(f.lines, ownerID)
	return int64(n), nil
}

func (f *fakeCarts) set(ownerID string, lines ...domain.CartLine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines[ownerID] = lines
}

type fakeGuestCarts struct {
	mu    sync.Mutex
	lines map[string][]domain.CartLine
}

func (f *fakeGuestCarts) Get(_ context.Context, id string) ([]domain.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.lines[id]), nil
}

func (f *fakeGuestCarts) Set(_ context.Context, id string, lines []domain.CartLine) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines[id] = slices.Clone(lines)
	return nil
}

func (f *fakeGuestCarts) Clear(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.lines, id)
	return nil
}

type fakeCatalog struct {
	mu   sync.Mutex
	rows map[domain.ProductKey]domain.ProductRef
}

func (f *fakeCatalog) GetItems(_ context.Context, keys []domain.ProductKey) (map[domain.ProductKey]domain.ProductRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[domain.ProductKey]domain.ProductRef, len(keys))
	for _, key := range keys {
		if ref, ok := f.rows[key]; ok {
			out[key] = ref
		}
	}
	return out, nil
}

func (f *fakeCatalog) put(ref domain.ProductRef) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[domain.ProductKey{Kind: domain.LineKindMenuItem, ID: ref.MenuItemID}] = ref
}

type fakeDiscounts struct {
	codes map[string]domain.DiscountCode
}

func (f *fakeDiscounts) GetByCode(_ context.Context, code string) (domain.DiscountCode, error) {
	c, ok := f.codes[code]
	if !ok {
		return domain.DiscountCode{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeDiscounts) RecordUsage(context.Context, domain.DiscountUsage) error {
	return nil
}

type fakeAddresses struct {
	mu        sync.Mutex
	addresses map[string][]domain.ShippingAddress
}

func (f *fakeAddresses) ListAddresses(_ context.Context, userID string) ([]domain.ShippingAddress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.addresses[userID]), nil
}

type fakeOrders struct {
	mu     sync.Mutex
	drafts []domain.OrderDraft

	// entered and release, when set, hold CreateOrder until the test lets it go.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeOrders) CreateOrder(_ context.Context, draft domain.OrderDraft) (string, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, draft)
	return uuid.NewString(), nil
}

func (f *fakeOrders) calls() []domain.OrderDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.drafts)
}

type fakePayments struct {
	mu       sync.Mutex
	requests []domain.PaymentIntentRequest
}

func (f *fakePayments) CreatePaymentIntent(_ context.Context, req domain.PaymentIntentRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return "pi_secret_" + req.OrderID, nil
}

func (f *fakePayments) calls() []domain.PaymentIntentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.requests)
}

type fakeTasks struct {
	mu    sync.Mutex
	tasks []domain.Task
}

func (f *fakeTasks) Enqueue(_ context.Context, task domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeTasks) kinds() []domain.TaskKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]domain.TaskKind, 0, len(f.tasks))
	for _, t := range f.tasks {
		kinds = append(kinds, t.Kind)
	}
	return kinds
}

type fakeSubscription struct {
	filter domain.ChangeFilter
	events chan domain.ChangeEvent
	once   sync.Once
}

func (s *fakeSubscription) Events() <-chan domain.ChangeEvent { return s.events }
func (s *fakeSubscription) Err() error                        { return nil }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

type fakeFeed struct {
	mu   sync.Mutex
	subs []*fakeSubscription
}

func (f *fakeFeed) Subscribe(_ context.Context, filter domain.ChangeFilter) (port.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSubscription{filter: filter, events: make(chan domain.ChangeEvent, 16)}
	f.subs = append(f.subs, sub)
	return sub, nil
}

// latest is the most recent subscription to table, or nil.
func (f *fakeFeed) latest(table string) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.subs) - 1; i >= 0; i-- {
		if f.subs[i].filter.Table == table {
			return f.subs[i]
		}
	}
	return nil
}
