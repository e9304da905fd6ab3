// Package pgnotify streams row changes published by the notify_checkout_change
// trigger over Postgres LISTEN/NOTIFY, using one listening connection per process.
package pgnotify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
	"go.uber.org/zap"
)

const DefaultChannel = "checkout_changes"

type Config struct {
	Channel string
	// MaxReconnects bounds the reconnect attempts after the connection drops.
	MaxReconnects   uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	BufferSize      int
}

func DefaultConfig() Config {
	return Config{
		Channel:         DefaultChannel,
		MaxReconnects:   6,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     10 * time.Second,
		BufferSize:      64,
	}
}

// Feed shares one listening connection between all subscriptions and fans
// each notification out to the subscriptions whose filter it matches.
type Feed struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *zap.Logger

	mu      sync.Mutex
	subs    map[*subscription]struct{}
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	closed  bool
}

func NewFeed(pool *pgxpool.Pool, cfg Config, logger *zap.Logger) (*Feed, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Feed{
		pool:   pool,
		cfg:    cfg,
		logger: logger,
		subs:   make(map[*subscription]struct{}),
	}, nil
}

// Subscribe registers filter with the shared listener, starting it on first use.
// The subscription lives until ctx is done or Close is called. Only a failed
// first attach is reported here, later drops are retried in the background.
func (f *Feed) Subscribe(ctx context.Context, filter domain.ChangeFilter) (port.Subscription, error) {
	if filter.Table == "" {
		return nil, fmt.Errorf("filter table is empty")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, fmt.Errorf("feed is closed")
	}
	if !f.running {
		if err := f.startLocked(ctx); err != nil {
			return nil, err
		}
	}

	sub := &subscription{
		feed:   f,
		filter: filter,
		events: make(chan domain.ChangeEvent, f.cfg.BufferSize),
	}
	f.subs[sub] = struct{}{}

	stop := context.AfterFunc(ctx, func() { _ = sub.Close() })
	sub.mu.Lock()
	sub.stop = stop
	sub.mu.Unlock()

	return sub, nil
}

// Close stops the listener and ends every open subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	f.closed = true
	cancel, done := f.cancel, f.done
	subs := f.takeSubsLocked()
	f.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	for _, sub := range subs {
		sub.end(nil)
	}
}

func (f *Feed) startLocked(ctx context.Context) error {
	conn, err := f.listen(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	f.running = true
	f.cancel = cancel
	f.done = make(chan struct{})

	go f.run(runCtx, conn, f.done)

	return nil
}

func (f *Feed) listen(ctx context.Context) (*pgx.Conn, error) {
	pooled, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool.Acquire: %w", err)
	}

	// a listening connection must never go back to the pool
	conn := pooled.Hijack()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{f.cfg.Channel}.Sanitize()); err != nil {
		closeConn(conn)
		return nil, fmt.Errorf("conn.Exec LISTEN: %w", err)
	}

	return conn, nil
}

func (f *Feed) run(ctx context.Context, conn *pgx.Conn, done chan struct{}) {
	defer close(done)

	for {
		err := f.receive(ctx, conn)
		closeConn(conn)

		if ctx.Err() != nil {
			return
		}

		f.logger.Warn("change feed connection lost, reconnecting", zap.Error(err))

		conn, err = f.reconnect(ctx)
		if err != nil {
			if ctx.Err() == nil {
				f.fail(fmt.Errorf("reconnect: %w", err))
			}
			return
		}
	}
}

func (f *Feed) receive(ctx context.Context, conn *pgx.Conn) error {
	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("conn.WaitForNotification: %w", err)
		}

		event, err := parse(notification.Payload)
		if err != nil {
			f.logger.Warn("change notification dropped", zap.String("channel", notification.Channel), zap.Error(err))
			continue
		}

		f.dispatch(event)
	}
}

func (f *Feed) dispatch(event domain.ChangeEvent) {
	f.mu.Lock()
	subs := make([]*subscription, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	f.mu.Unlock()

	for _, sub := range subs {
		ok, err := matches(event, sub.filter)
		if err != nil {
			f.logger.Warn("change notification not matched", zap.String("table", event.Table), zap.Error(err))
			continue
		}
		if ok && !sub.deliver(event) {
			f.logger.Warn("change subscriber lagging, event dropped", zap.String("table", sub.filter.Table))
		}
	}
}

// fail ends every subscription with err. The next Subscribe starts a new listener.
func (f *Feed) fail(err error) {
	f.mu.Lock()
	if f.cancel != nil {
		f.cancel()
	}
	f.running = false
	f.cancel = nil
	subs := f.takeSubsLocked()
	f.mu.Unlock()

	f.logger.Error("change feed gave up, live updates disabled", zap.Int("subscriptions", len(subs)), zap.Error(err))

	for _, sub := range subs {
		sub.end(err)
	}
}

func (f *Feed) takeSubsLocked() []*subscription {
	subs := make([]*subscription, 0, len(f.subs))
	for sub := range f.subs {
		subs = append(subs, sub)
	}
	clear(f.subs)
	return subs
}

func (f *Feed) remove(sub *subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, sub)
}

func (f *Feed) reconnect(ctx context.Context) (*pgx.Conn, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.cfg.InitialInterval
	b.MaxInterval = f.cfg.MaxInterval
	b.MaxElapsedTime = 0

	var conn *pgx.Conn
	operation := func() error {
		var err error
		conn, err = f.listen(ctx)
		return err
	}
	notify := func(err error, next time.Duration) {
		f.logger.Warn("change feed reconnect failed", zap.Duration("retry_in", next), zap.Error(err))
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, f.cfg.MaxReconnects), ctx)
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return nil, err
	}

	return conn, nil
}

func decode(payload string, filter domain.ChangeFilter) (domain.ChangeEvent, bool, error) {
	event, err := parse(payload)
	if err != nil {
		return domain.ChangeEvent{}, false, err
	}

	ok, err := matches(event, filter)
	if err != nil || !ok {
		return domain.ChangeEvent{}, false, err
	}
	return event, true, nil
}

func parse(payload string) (domain.ChangeEvent, error) {
	var event domain.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return domain.ChangeEvent{}, fmt.Errorf("json.Unmarshal: %w", err)
	}
	return event, nil
}

func matches(event domain.ChangeEvent, filter domain.ChangeFilter) (bool, error) {
	if event.Table != filter.Table {
		return false, nil
	}
	if filter.Column == "" {
		return true, nil
	}

	row := event.New
	if event.Op == domain.ChangeDelete || isNull(row) {
		row = event.Old
	}

	value, err := columnValue(row, filter.Column)
	if err != nil {
		return false, err
	}

	return slices.Contains(filter.Values, value), nil
}

func columnValue(row json.RawMessage, column string) (string, error) {
	if isNull(row) {
		return "", nil
	}

	dec := json.NewDecoder(bytes.NewReader(row))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return "", fmt.Errorf("dec.Decode: %w", err)
	}

	switch v := fields[column].(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	case bool:
		return fmt.Sprint(v), nil
	default:
		return "", nil
	}
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

func closeConn(conn *pgx.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = conn.Close(ctx)
}

type subscription struct {
	feed   *Feed
	filter domain.ChangeFilter
	events chan domain.ChangeEvent
	stop   func() bool

	mu    sync.Mutex
	ended bool
	err   error
}

func (s *subscription) Events() <-chan domain.ChangeEvent {
	return s.events
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.feed.remove(s)
	s.end(nil)
	return nil
}

// deliver reports false when the buffer is full.
func (s *subscription) deliver(event domain.ChangeEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return true
	}
	select {
	case s.events <- event:
		return true
	default:
		return false
	}
}

func (s *subscription) end(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return
	}
	s.ended = true
	s.err = err
	close(s.events)

	if s.stop != nil {
		s.stop()
	}
}

var _ port.ChangeFeed = (*Feed)(nil)
