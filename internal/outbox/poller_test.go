package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/outbox"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type storedTask struct {
	task    domain.Task
	status  string
	lastErr string
}

type memoryStore struct {
	mu     sync.Mutex
	nextID int64
	tasks  map[int64]*storedTask
}

func newMemoryStore() *memoryStore {
	return &memoryStore{tasks: map[int64]*storedTask{}}
}

func (s *memoryStore) Enqueue(_ context.Context, task domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	task.ID = s.nextID
	s.tasks[task.ID] = &storedTask{task: task, status: "pending"}
	return nil
}

func (s *memoryStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Task
	for id := int64(1); id <= s.nextID && len(out) < limit; id++ {
		st, ok := s.tasks[id]
		if !ok || st.status != "pending" || st.task.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, st.task)
		st.task.NextAttemptAt = now.Add(time.Minute)
	}
	return out, nil
}

func (s *memoryStore) MarkDone(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id].status = "done"
	return nil
}

func (s *memoryStore) Reschedule(_ context.Context, id int64, attempts int, next time.Time, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.tasks[id]
	st.task.Attempts = attempts
	st.task.NextAttemptAt = next
	st.lastErr = lastErr
	return nil
}

func (s *memoryStore) MarkDead(_ context.Context, id int64, attempts int, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.tasks[id]
	st.status = "dead"
	st.task.Attempts = attempts
	st.lastErr = lastErr
	return nil
}

func (s *memoryStore) get(id int64) storedTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[id]
}

type fakeDiscounts struct {
	mu     sync.Mutex
	usages []domain.DiscountUsage
	errs   []error
}

func (f *fakeDiscounts) GetByCode(context.Context, string) (domain.DiscountCode, error) {
	return domain.DiscountCode{}, domain.ErrNotFound
}

func (f *fakeDiscounts) RecordUsage(_ context.Context, usage domain.DiscountUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	f.usages = append(f.usages, usage)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []domain.OrderConfirmation
	err  error
}

func (f *fakeNotifier) SendOrderConfirmation(_ context.Context, c domain.OrderConfirmation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, c)
	return nil
}

type fakeCarts struct {
	mu      sync.Mutex
	cleared []string
}

func (f *fakeCarts) GetCart(context.Context, string) (domain.Cart, error) { return domain.Cart{}, nil }
func (f *fakeCarts) AddItem(context.Context, string, domain.CartLine) (uuid.UUID, error) {
	return uuid.Nil, nil
}
func (f *fakeCarts) DeleteItem(context.Context, string, uuid.UUID) (bool, error) { return false, nil }

func (f *fakeCarts) ClearCart(_ context.Context, ownerID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared = append(f.cleared, ownerID)
	return 1, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type env struct {
	store     *memoryStore
	discounts *fakeDiscounts
	notifier  *fakeNotifier
	carts     *fakeCarts
	clock     *clock
	poller    *outbox.Poller
}

func newEnv(cfg outbox.Config) *env {
	e := &env{
		store:     newMemoryStore(),
		discounts: &fakeDiscounts{},
		notifier:  &fakeNotifier{},
		carts:     &fakeCarts{},
		clock:     &clock{now: time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)},
	}
	e.poller = outbox.NewPoller(e.store, cfg, zap.NewNop())
	outbox.SetClock(e.poller, e.clock.Now)
	outbox.Register(e.poller, e.discounts, e.notifier, e.carts)
	return e
}

func (e *env) enqueue(t *testing.T, kind domain.TaskKind, payload any) int64 {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, e.store.Enqueue(t.Context(), domain.Task{Kind: kind, Payload: raw, NextAttemptAt: e.clock.Now()}))
	return e.store.nextID
}

func TestProcessDue_RunsEveryKind(t *testing.T) {
	e := newEnv(outbox.DefaultConfig())

	usage := domain.DiscountUsage{DiscountCodeID: "code-1", UserID: "user-1", OrderID: "order-1", DiscountAmount: decimal.NewFromInt(5), OrderSubtotal: decimal.NewFromInt(40)}
	usageID := e.enqueue(t, domain.TaskDiscountUsage, usage)
	confirmationID := e.enqueue(t, domain.TaskOrderConfirmation, domain.OrderConfirmationPayload{OrderID: "order-1", Email: "jane@example.com", BearerToken: "token"})
	clearID := e.enqueue(t, domain.TaskClearCart, domain.ClearCartPayload{UserID: "user-1"})

	done, err := e.poller.ProcessDue(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, done)

	for _, id := range []int64{usageID, confirmationID, clearID} {
		assert.Equal(t, "done", e.store.get(id).status)
	}

	require.Len(t, e.discounts.usages, 1)
	assert.Equal(t, "order-1", e.discounts.usages[0].OrderID)
	assert.True(t, e.discounts.usages[0].DiscountAmount.Equal(decimal.NewFromInt(5)))

	assert.Equal(t, []domain.OrderConfirmation{{OrderID: "order-1", Email: "jane@example.com", BearerToken: "token"}}, e.notifier.sent)
	assert.Equal(t, []string{"user-1"}, e.carts.cleared)
}

func TestProcessDue_RetriesWithGrowingDelay(t *testing.T) {
	cfg := outbox.DefaultConfig()
	cfg.InitialDelay = time.Second
	cfg.MaxDelay = 3 * time.Second
	cfg.MaxAttempts = 4
	e := newEnv(cfg)

	e.discounts.errs = []error{errors.New("db down"), errors.New("db down")}
	id := e.enqueue(t, domain.TaskDiscountUsage, domain.DiscountUsage{DiscountCodeID: "c", UserID: "u", OrderID: "o"})

	start := e.clock.Now()

	done, err := e.poller.ProcessDue(t.Context())
	require.NoError(t, err)
	assert.Zero(t, done)
	first := e.store.get(id)
	assert.Equal(t, 1, first.task.Attempts)
	assert.Equal(t, start.Add(time.Second), first.task.NextAttemptAt)
	assert.Equal(t, "discounts.RecordUsage: db down", first.lastErr)

	// not due yet
	done, err = e.poller.ProcessDue(t.Context())
	require.NoError(t, err)
	assert.Zero(t, done)

	e.clock.advance(time.Second)
	_, err = e.poller.ProcessDue(t.Context())
	require.NoError(t, err)
	second := e.store.get(id)
	assert.Equal(t, 2, second.task.Attempts)
	assert.Equal(t, e.clock.Now().Add(2*time.Second), second.task.NextAttemptAt)

	e.clock.advance(2 * time.Second)
	done, err = e.poller.ProcessDue(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Equal(t, "done", e.store.get(id).status)
	assert.Len(t, e.discounts.usages, 1)
}

func TestProcessDue_GivesUpAfterMaxAttempts(t *testing.T) {
	cfg := outbox.DefaultConfig()
	cfg.InitialDelay = time.Second
	cfg.MaxAttempts = 2
	e := newEnv(cfg)

	e.notifier.err = errors.New("edge function unavailable")
	id := e.enqueue(t, domain.TaskOrderConfirmation, domain.OrderConfirmationPayload{OrderID: "o", Email: "e@example.com"})

	_, err := e.poller.ProcessDue(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "pending", e.store.get(id).status)

	e.clock.advance(time.Minute)
	_, err = e.poller.ProcessDue(t.Context())
	require.NoError(t, err)

	got := e.store.get(id)
	assert.Equal(t, "dead", got.status)
	assert.Equal(t, 2, got.task.Attempts)
}

func TestProcessDue_PermanentFailures(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.TaskKind
		payload string
	}{
		{
			name:    "malformed payload: error",
			kind:    domain.TaskClearCart,
			payload: `{"userId":`,
		},
		{
			name:    "clear cart without user: error",
			kind:    domain.TaskClearCart,
			payload: `{}`,
		},
		{
			name:    "unknown kind: error",
			kind:    domain.TaskKind("loyalty_points"),
			payload: `{}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(outbox.DefaultConfig())
			require.NoError(t, e.store.Enqueue(t.Context(), domain.Task{Kind: tt.kind, Payload: json.RawMessage(tt.payload), NextAttemptAt: e.clock.Now()}))

			_, err := e.poller.ProcessDue(t.Context())
			require.NoError(t, err)

			got := e.store.get(1)
			assert.Equal(t, "dead", got.status)
			assert.Equal(t, 1, got.task.Attempts)
			assert.Empty(t, e.carts.cleared)
		})
	}
}

func TestRun_StopsWithContext(t *testing.T) {
	cfg := outbox.DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	e := newEnv(cfg)

	e.enqueue(t, domain.TaskClearCart, domain.ClearCartPayload{UserID: "user-9"})

	ctx, cancel := context.WithCancel(t.Context())
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		e.poller.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return e.store.get(1).status == "done"
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-finished
}
