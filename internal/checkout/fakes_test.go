package checkout_test

import (
	"context"
	"sync"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
)

type fakeOrders struct {
	mu      sync.Mutex
	drafts  []domain.OrderDraft
	orderID string
	err     error
	block   chan struct{}
}

func (f *fakeOrders) CreateOrder(ctx context.Context, draft domain.OrderDraft) (string, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts = append(f.drafts, draft)
	return f.orderID, f.err
}

func (f *fakeOrders) calls() []domain.OrderDraft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.OrderDraft(nil), f.drafts...)
}

type fakePayments struct {
	mu       sync.Mutex
	requests []domain.PaymentIntentRequest
	secret   string
	err      error
}

func (f *fakePayments) CreatePaymentIntent(_ context.Context, req domain.PaymentIntentRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.secret, f.err
}

func (f *fakePayments) calls() []domain.PaymentIntentRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.PaymentIntentRequest(nil), f.requests...)
}

type fakeTasks struct {
	mu    sync.Mutex
	tasks []domain.Task
	err   error
}

func (f *fakeTasks) Enqueue(_ context.Context, task domain.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
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

func (f *fakeTasks) byKind(kind domain.TaskKind) []domain.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Task
	for _, t := range f.tasks {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

type fakeGuestCarts struct {
	mu      sync.Mutex
	cleared []string
	err     error
}

func (f *fakeGuestCarts) Get(context.Context, string) ([]domain.CartLine, error) {
	return nil, nil
}

func (f *fakeGuestCarts) Set(context.Context, string, []domain.CartLine) error {
	return nil
}

func (f *fakeGuestCarts) Clear(_ context.Context, guestSessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, guestSessionID)
	return f.err
}

func (f *fakeGuestCarts) clearedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cleared...)
}

type collaboratorFailure struct {
	msg string
}

func (e collaboratorFailure) Error() string       { return "collaborator: " + e.msg }
func (e collaboratorFailure) UserMessage() string { return e.msg }
