// Package outbox runs best-effort work (discount usage, order confirmation,
// cart clearing) off the checkout's critical path, retrying with backoff.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
	"go.uber.org/zap"
)

type Handler func(ctx context.Context, payload json.RawMessage) error

type Config struct {
	Interval     time.Duration
	BatchSize    int
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:     time.Second,
		BatchSize:    50,
		MaxAttempts:  5,
		InitialDelay: 2 * time.Second,
		MaxDelay:     5 * time.Minute,
	}
}

type Poller struct {
	store  port.TaskStore
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.RWMutex
	handlers map[domain.TaskKind]Handler
}

func NewPoller(store port.TaskStore, cfg Config, logger *zap.Logger) *Poller {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}

	return &Poller{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		handlers: make(map[domain.TaskKind]Handler),
	}
}

func (p *Poller) Handle(kind domain.TaskKind, h Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = h
}

// Run processes due tasks on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.ProcessDue(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("outbox batch failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// ProcessDue runs one batch of due tasks and reports how many completed.
func (p *Poller) ProcessDue(ctx context.Context) (int, error) {
	tasks, err := p.store.ClaimDue(ctx, p.now(), p.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("store.ClaimDue: %w", err)
	}

	var done int
	for _, task := range tasks {
		if p.process(ctx, task) {
			done++
		}
	}

	return done, nil
}

func (p *Poller) process(ctx context.Context, task domain.Task) bool {
	logger := p.logger.With(zap.Int64("task_id", task.ID), zap.String("task_kind", string(task.Kind)))

	p.mu.RLock()
	handler, ok := p.handlers[task.Kind]
	p.mu.RUnlock()

	var err error
	if !ok {
		err = backoff.Permanent(fmt.Errorf("no handler for task kind %q", task.Kind))
	} else {
		err = handler(ctx, task.Payload)
	}

	if err == nil {
		if err := p.store.MarkDone(ctx, task.ID); err != nil {
			logger.Warn("outbox task not marked done", zap.Error(err))
		}
		return true
	}

	attempts := task.Attempts + 1

	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) || attempts >= p.cfg.MaxAttempts {
		logger.Error("outbox task abandoned", zap.Int("attempts", attempts), zap.Error(err))
		if err := p.store.MarkDead(ctx, task.ID, attempts, err.Error()); err != nil {
			logger.Warn("outbox task not marked dead", zap.Error(err))
		}
		return false
	}

	next := p.now().Add(p.retryDelay(attempts))
	logger.Warn("outbox task failed, will retry", zap.Int("attempts", attempts), zap.Time("next_attempt_at", next), zap.Error(err))
	if err := p.store.Reschedule(ctx, task.ID, attempts, next, err.Error()); err != nil {
		logger.Warn("outbox task not rescheduled", zap.Error(err))
	}

	return false
}

// retryDelay doubles from InitialDelay per failed attempt, capped at MaxDelay.
func (p *Poller) retryDelay(attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.cfg.InitialDelay
	b.MaxInterval = p.cfg.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()

	delay := b.NextBackOff()
	for range attempts - 1 {
		delay = b.NextBackOff()
	}
	return delay
}
