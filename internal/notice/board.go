// Package notice holds the single user-visible message of a checkout session.
// A message expires on its own; a newer message replaces it and restarts the timer.
package notice

import (
	"sync"
	"time"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
)

type Board struct {
	mu      sync.Mutex
	ttl     time.Duration
	current *domain.Notice
	gen     uint64
	timer   *time.Timer
}

func NewBoard(ttl time.Duration) *Board {
	return &Board{ttl: ttl}
}

func (b *Board) Show(level domain.NoticeLevel, message string) {
	b.ShowFor(level, message, b.ttl)
}

func (b *Board) ShowFor(level domain.NoticeLevel, message string, ttl time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.timer != nil {
		b.timer.Stop()
	}

	b.gen++
	gen := b.gen
	b.current = &domain.Notice{
		Level:     level,
		Message:   message,
		ExpiresAt: time.Now().Add(ttl),
	}
	b.timer = time.AfterFunc(ttl, func() {
		b.expire(gen)
	})
}

func (b *Board) Current() (domain.Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.current == nil {
		return domain.Notice{}, false
	}
	return *b.current, true
}

func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.gen++
	b.current = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Board) expire(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// superseded by a newer message
	if gen != b.gen {
		return
	}
	b.current = nil
	b.timer = nil
}
