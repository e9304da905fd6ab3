// Package realtime keeps an open checkout in line with catalog and address
// changes made elsewhere while the shopper is looking at it.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nikolayk812/restaurant-checkout/internal/domain"
	"github.com/nikolayk812/restaurant-checkout/internal/notice"
	"github.com/nikolayk812/restaurant-checkout/internal/port"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	TableMenuItems     = "menu_items"
	TableProducts      = "products"
	TableUserAddresses = "user_addresses"

	DefaultDebounce = 500 * time.Millisecond
)

// Target is what the watcher should follow right now.
type Target struct {
	// Active is true while the cart is non-empty and no submission is past validation.
	Active            bool
	Products          []domain.ProductKey
	UserID            string
	SelectedAddressID string
}

// ActiveFor reports whether a checkout with the given cart and submission state is watched.
func ActiveFor(lines []domain.CartLine, state domain.SubmissionState) bool {
	return len(lines) > 0 && state.Quiescent()
}

type Handlers struct {
	RefetchCart      func(ctx context.Context) error
	RefetchAddresses func(ctx context.Context) error
	AdoptAddress     func(addr domain.ShippingAddress)
}

type Watcher struct {
	feed     port.ChangeFeed
	board    *notice.Board
	handlers Handlers
	logger   *zap.Logger

	cartRefetch    *Debouncer
	addressRefetch *Debouncer

	mu     sync.Mutex
	key    string
	cancel context.CancelFunc
	subs   []port.Subscription
	loops  sync.WaitGroup
	closed bool

	// read by the event loops, so it never waits on mu
	valMu    sync.Mutex
	selected string
	baseCtx  context.Context
}

func NewWatcher(feed port.ChangeFeed, board *notice.Board, handlers Handlers, debounce time.Duration, logger *zap.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		feed:     feed,
		board:    board,
		handlers: handlers,
		logger:   logger,
		baseCtx:  context.Background(),
	}
	w.cartRefetch = NewDebouncer(debounce, func() { w.refetch("cart", handlers.RefetchCart) })
	w.addressRefetch = NewDebouncer(debounce, func() { w.refetch("addresses", handlers.RefetchAddresses) })

	return w
}

// Sync subscribes to what target names, or tears subscriptions down when target is inactive.
// Subscriptions are only rebuilt when the set of watched rows changes.
func (w *Watcher) Sync(ctx context.Context, target Target) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.valMu.Lock()
	w.selected = target.SelectedAddressID
	w.valMu.Unlock()

	if !target.Active || (len(target.Products) == 0 && target.UserID == "") {
		w.stopLocked()
		return
	}

	key := targetKey(target)
	if key == w.key {
		return
	}
	w.stopLocked()
	w.key = key

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	w.cancel = cancel
	w.valMu.Lock()
	w.baseCtx = subCtx
	w.valMu.Unlock()

	for _, filter := range filters(target) {
		sub, err := w.feed.Subscribe(subCtx, filter)
		if err != nil {
			w.logger.Warn("realtime subscription failed", zap.String("table", filter.Table), zap.Error(err))
			continue
		}
		w.subs = append(w.subs, sub)

		w.loops.Add(1)
		go w.consume(filter.Table, sub)
	}
}

// Active reports whether any subscription is currently established.
func (w *Watcher) Active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.subs) > 0
}

// Close tears everything down and waits for the event loops and pending refetches.
func (w *Watcher) Close() {
	w.mu.Lock()
	w.closed = true
	w.stopLocked()
	w.mu.Unlock()

	w.cartRefetch.Stop()
	w.addressRefetch.Stop()
}

func (w *Watcher) stopLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	for _, sub := range w.subs {
		if err := sub.Close(); err != nil {
			w.logger.Warn("realtime subscription close failed", zap.Error(err))
		}
	}
	w.subs = nil
	w.key = ""
	w.loops.Wait()

	w.cartRefetch.Cancel()
	w.addressRefetch.Cancel()
}

func (w *Watcher) consume(table string, sub port.Subscription) {
	defer w.loops.Done()

	for event := range sub.Events() {
		w.handle(event)
	}

	if err := sub.Err(); err != nil {
		w.logger.Warn("realtime subscription stopped, live updates disabled", zap.String("table", table), zap.Error(err))
	}
}

func (w *Watcher) handle(event domain.ChangeEvent) {
	switch event.Table {
	case TableMenuItems, TableProducts:
		w.handleCatalog(event)
	case TableUserAddresses:
		w.handleAddress(event)
	}
}

type catalogRow struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Price       decimal.NullDecimal `json:"price"`
	IsAvailable *bool               `json:"is_available"`
}

func (w *Watcher) handleCatalog(event domain.ChangeEvent) {
	var before, after catalogRow
	if err := decodeRow(event.Old, &before); err != nil {
		w.logger.Warn("realtime event not decoded", zap.String("table", event.Table), zap.Error(err))
		return
	}
	if err := decodeRow(event.New, &after); err != nil {
		w.logger.Warn("realtime event not decoded", zap.String("table", event.Table), zap.Error(err))
		return
	}

	name := after.Name
	if name == "" {
		name = before.Name
	}
	if name == "" {
		name = "An item in your cart"
	}

	switch {
	case event.Op == domain.ChangeDelete, becameUnavailable(before, after):
		w.board.Show(domain.NoticeWarning, fmt.Sprintf("%s is no longer available. Please review your cart.", name))
	case priceChanged(before, after):
		w.board.Show(domain.NoticeInfo, fmt.Sprintf("Price updated for %s.", name))
	default:
		return
	}

	w.cartRefetch.Trigger()
}

func becameUnavailable(before, after catalogRow) bool {
	if after.IsAvailable == nil || *after.IsAvailable {
		return false
	}
	return before.IsAvailable == nil || *before.IsAvailable
}

func priceChanged(before, after catalogRow) bool {
	if !after.Price.Valid {
		return false
	}
	if !before.Price.Valid {
		return true
	}
	return !before.Price.Decimal.Equal(after.Price.Decimal)
}

type addressRow struct {
	ID            string `json:"id"`
	FullName      string `json:"full_name"`
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	StateProvince string `json:"state_province"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
	PhoneNumber   string `json:"phone_number"`
}

func (w *Watcher) handleAddress(event domain.ChangeEvent) {
	w.addressRefetch.Trigger()

	if event.Op == domain.ChangeDelete {
		return
	}

	var row addressRow
	if err := decodeRow(event.New, &row); err != nil {
		w.logger.Warn("realtime event not decoded", zap.String("table", event.Table), zap.Error(err))
		return
	}

	w.valMu.Lock()
	selected := w.selected
	w.valMu.Unlock()

	if row.ID == "" || row.ID != selected || w.handlers.AdoptAddress == nil {
		return
	}

	w.handlers.AdoptAddress(domain.ShippingAddress{
		ID:            row.ID,
		FullName:      row.FullName,
		StreetAddress: row.StreetAddress,
		City:          row.City,
		StateProvince: row.StateProvince,
		PostalCode:    row.PostalCode,
		Country:       row.Country,
		PhoneNumber:   row.PhoneNumber,
	})
}

func (w *Watcher) refetch(what string, fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}

	w.valMu.Lock()
	ctx := w.baseCtx
	w.valMu.Unlock()

	if err := fn(ctx); err != nil {
		w.logger.Warn("realtime refetch failed", zap.String("what", what), zap.Error(err))
	}
}

func decodeRow(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("json.Unmarshal: %w", err)
	}
	return nil
}

func filters(target Target) []domain.ChangeFilter {
	byTable := map[string][]string{}
	for _, key := range target.Products {
		switch key.Kind {
		case domain.LineKindMenuItem:
			byTable[TableMenuItems] = append(byTable[TableMenuItems], key.ID)
		case domain.LineKindProduct:
			byTable[TableProducts] = append(byTable[TableProducts], key.ID)
		}
	}

	var out []domain.ChangeFilter
	for _, table := range []string{TableMenuItems, TableProducts} {
		ids := byTable[table]
		if len(ids) == 0 {
			continue
		}
		slices.Sort(ids)
		out = append(out, domain.ChangeFilter{Table: table, Column: "id", Values: slices.Compact(ids)})
	}

	if target.UserID != "" {
		out = append(out, domain.ChangeFilter{Table: TableUserAddresses, Column: "user_id", Values: []string{target.UserID}})
	}

	return out
}

func targetKey(target Target) string {
	var sb strings.Builder
	for _, filter := range filters(target) {
		sb.WriteString(filter.Table)
		sb.WriteByte(':')
		sb.WriteString(strings.Join(filter.Values, ","))
		sb.WriteByte(';')
	}
	return sb.String()
}
