// Package orders tracks an order's lifecycle on the client: it creates
// orders and polls their authoritative status until a terminal-for-UI state
// is reached. The order's true status is decided asynchronously by the
// collaborating services; the client's copy is stale-by-default and converges
// only through polling.
package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/storefront/internal/client/api"
	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/sched"
)

// CartClearer is the slice of the cart reconciler the tracker needs after a
// successful order creation.
type CartClearer interface {
	Clear(ctx context.Context, token string) error
}

// Tracker owns at most one live poll per instance plus one collection-wide
// sweep for the order history view. Starting a new poll (new order or retry)
// invalidates and replaces any prior handle.
type Tracker struct {
	api       api.Client
	scheduler *sched.Scheduler
	cart      CartClearer
	log       logging.Logger

	pollInterval  time.Duration
	sweepInterval time.Duration

	mu          sync.Mutex
	onUpdate    func(models.Order)
	current     *models.Order
	pollHandle  *sched.Handle
	pollSeq     uint64
	sweepHandle *sched.Handle
	sweepSeq    uint64
	tracked     map[int64]models.Order
}

// NewTracker constructs a tracker. cart may be nil when order creation is
// never used (e.g. a history-only view).
func NewTracker(apiClient api.Client, scheduler *sched.Scheduler, cart CartClearer,
	pollInterval, sweepInterval time.Duration, log logging.Logger) *Tracker {
	return &Tracker{
		api:           apiClient,
		scheduler:     scheduler,
		cart:          cart,
		log:           log,
		pollInterval:  pollInterval,
		sweepInterval: sweepInterval,
		tracked:       map[int64]models.Order{},
	}
}

// SetOnUpdate registers the subscriber the tracker publishes status changes
// to. The callback runs on the timer goroutine and must not block.
func (t *Tracker) SetOnUpdate(fn func(models.Order)) {
	t.mu.Lock()
	t.onUpdate = fn
	t.mu.Unlock()
}

func (t *Tracker) publish(order models.Order) {
	t.mu.Lock()
	fn := t.onUpdate
	t.mu.Unlock()
	if fn != nil {
		fn(order)
	}
}

// Create requests order creation, seeds the local copy with the returned
// id/status, clears the cart and starts polling. A failed creation
// propagates: it is correctness-affecting, unlike poll tick failures.
func (t *Tracker) Create(ctx context.Context, token string) (*models.Order, error) {
	order, err := t.api.CreateOrder(ctx, token)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	seeded := *order
	t.current = &seeded
	t.tracked[order.ID] = seeded
	t.mu.Unlock()

	if t.cart != nil {
		if err := t.cart.Clear(ctx, token); err != nil {
			t.log.Warn(ctx, "failed to clear cart after order creation", "order_id", order.ID, "error", err)
		}
	}

	t.log.Info(ctx, "order created", "order_id", order.ID, "status", order.Status)
	t.StartPolling(order.ID, token)
	return order, nil
}

// StartPolling cancels any previously live handle and arms the periodic
// status poll for the given order. Polling stops exactly at the first
// observed terminal-for-UI status.
func (t *Tracker) StartPolling(orderID int64, token string) {
	t.mu.Lock()
	if t.pollHandle != nil {
		t.pollHandle.Stop()
		t.pollHandle = nil
	}
	t.pollSeq++
	seq := t.pollSeq
	t.pollHandle = t.scheduler.Every(t.pollInterval, func() {
		t.pollTick(seq, orderID, token)
	})
	t.mu.Unlock()
}

func (t *Tracker) pollTick(seq uint64, orderID int64, token string) {
	ctx := context.Background()

	order, err := t.api.GetOrder(ctx, token, orderID)
	if err != nil {
		// transient; a single flaky fetch must not abort the lifecycle
		t.log.Warn(ctx, "order status fetch failed", "order_id", orderID, "error", err)
		return
	}
	if !order.Status.Known() {
		t.log.Warn(ctx, "unrecognized order status ignored", "order_id", orderID, "status", order.Status)
		return
	}

	t.mu.Lock()
	if seq != t.pollSeq {
		// a newer poll replaced this one mid-flight
		t.mu.Unlock()
		return
	}
	t.current = order
	t.tracked[order.ID] = *order
	terminal := order.Status.TerminalForUI()
	var handle *sched.Handle
	if terminal {
		handle = t.pollHandle
		t.pollHandle = nil
	}
	t.mu.Unlock()

	t.publish(*order)
	if terminal {
		if handle != nil {
			handle.Stop()
		}
		t.log.Info(ctx, "order reached terminal status", "order_id", order.ID, "status", order.Status)
	}
}

// Current returns the latest cached copy of the actively tracked order.
func (t *Tracker) Current() (models.Order, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return models.Order{}, false
	}
	return *t.current, true
}

// WatchAll loads the session's orders and arms the collection-wide sweep,
// but only while at least one order still needs refreshing; the sweep is
// disarmed the instant none remain, so resolved histories cost no background
// polling.
func (t *Tracker) WatchAll(ctx context.Context, token string) ([]models.Order, error) {
	orders, err := t.api.ListMyOrders(ctx, token)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	t.tracked = make(map[int64]models.Order, len(orders))
	unresolved := false
	for _, order := range orders {
		t.tracked[order.ID] = order
		if order.Status.NeedsRefresh() {
			unresolved = true
		}
	}
	if t.sweepHandle != nil {
		t.sweepHandle.Stop()
		t.sweepHandle = nil
	}
	if unresolved {
		t.sweepSeq++
		seq := t.sweepSeq
		t.sweepHandle = t.scheduler.Every(t.sweepInterval, func() {
			t.sweepTick(seq, token)
		})
	}
	t.mu.Unlock()

	return orders, nil
}

func (t *Tracker) sweepTick(seq uint64, token string) {
	ctx := context.Background()

	orders, err := t.api.ListMyOrders(ctx, token)
	if err != nil {
		t.log.Warn(ctx, "order sweep fetch failed", "error", err)
		return
	}

	t.mu.Lock()
	if seq != t.sweepSeq {
		t.mu.Unlock()
		return
	}
	changed := make([]models.Order, 0, len(orders))
	unresolved := false
	for _, order := range orders {
		if !order.Status.Known() {
			continue
		}
		if prev, ok := t.tracked[order.ID]; !ok || prev.Status != order.Status {
			changed = append(changed, order)
		}
		t.tracked[order.ID] = order
		if order.Status.NeedsRefresh() {
			unresolved = true
		}
	}
	var handle *sched.Handle
	if !unresolved {
		handle = t.sweepHandle
		t.sweepHandle = nil
	}
	t.mu.Unlock()

	for _, order := range changed {
		t.publish(order)
	}
	if handle != nil {
		handle.Stop()
		t.log.Debug(ctx, "order sweep disarmed, nothing left to refresh")
	}
}

// Tracked returns the cached order collection sorted by id.
func (t *Tracker) Tracked() []models.Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.Order, 0, len(t.tracked))
	for _, order := range t.tracked {
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Teardown cancels every live timer owned by this tracker. It must run on
// view unmount; an orphaned timer mutating discarded state is a leak.
func (t *Tracker) Teardown() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pollHandle != nil {
		t.pollHandle.Stop()
		t.pollHandle = nil
	}
	t.pollSeq++
	if t.sweepHandle != nil {
		t.sweepHandle.Stop()
		t.sweepHandle = nil
	}
	t.sweepSeq++
}
