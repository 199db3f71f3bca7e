package orders

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/storefront/internal/client/models"
	"github.com/dmitrijs2005/storefront/internal/logging"
	"github.com/dmitrijs2005/storefront/internal/sched"
)

// fakeClient реализует api.Client; ответы GetOrder и ListMyOrders задаются
// заранее как последовательность шагов.
type fakeClient struct {
	mu sync.Mutex

	CreateRet *models.Order
	CreateErr error

	getOrderSteps []getOrderStep
	getOrderCalls int
	lastGetOrder  int64

	listSteps []listStep
	listCalls int
}

type getOrderStep struct {
	order *models.Order
	err   error
}

type listStep struct {
	orders []models.Order
	err    error
}

func (f *fakeClient) Token(ctx context.Context, u, p string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeClient) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return nil, errors.New("not used")
}

func (f *fakeClient) GetCart(ctx context.Context, token string) (*models.Cart, error) {
	return nil, errors.New("not used")
}

func (f *fakeClient) AddCartItem(ctx context.Context, token string, productID, quantity int64) error {
	return errors.New("not used")
}

func (f *fakeClient) RemoveCartItem(ctx context.Context, token string, productID, quantity int64) error {
	return errors.New("not used")
}

func (f *fakeClient) ClearCart(ctx context.Context, token string) error {
	return errors.New("not used")
}

func (f *fakeClient) CreateOrder(ctx context.Context, token string) (*models.Order, error) {
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	return f.CreateRet, nil
}

func (f *fakeClient) GetOrder(ctx context.Context, token string, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastGetOrder = id
	step := f.getOrderSteps[min(f.getOrderCalls, len(f.getOrderSteps)-1)]
	f.getOrderCalls++
	return step.order, step.err
}

func (f *fakeClient) ListMyOrders(ctx context.Context, token string) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	step := f.listSteps[min(f.listCalls, len(f.listSteps)-1)]
	f.listCalls++
	return step.orders, step.err
}

func (f *fakeClient) Pay(ctx context.Context, token string, orderID int64, method string) (int, []byte, error) {
	return 0, nil, errors.New("not used")
}

func (f *fakeClient) orderCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getOrderCalls
}

func (f *fakeClient) listCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

// fakeCart записывает вызовы Clear.
type fakeCart struct {
	mu     sync.Mutex
	clears int
}

func (f *fakeCart) Clear(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return nil
}

func order(id int64, status models.OrderStatus) *models.Order {
	return &models.Order{ID: id, Status: status}
}

type fixture struct {
	clock   *clockwork.FakeClock
	client  *fakeClient
	cart    *fakeCart
	tracker *Tracker
	updates chan models.Order
}

func newFixture(t *testing.T, client *fakeClient) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClock()
	cart := &fakeCart{}
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	tr := NewTracker(client, sched.New(clock), cart, 3*time.Second, 5*time.Second, log)
	t.Cleanup(tr.Teardown)

	updates := make(chan models.Order, 32)
	tr.SetOnUpdate(func(o models.Order) { updates <- o })
	return &fixture{clock: clock, client: client, cart: cart, tracker: tr, updates: updates}
}

func (f *fixture) waitOrderCalls(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return f.client.orderCalls() >= n },
		2*time.Second, 5*time.Millisecond, "expected %d status fetches", n)
}

// ---- Create ----

func TestCreate_SeedsStateClearsCartStartsPolling(t *testing.T) {
	client := &fakeClient{
		CreateRet:     order(42, models.StatusPendingPayment),
		getOrderSteps: []getOrderStep{{order: order(42, models.StatusPending)}},
	}
	f := newFixture(t, client)

	created, err := f.tracker.Create(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(42), created.ID)
	assert.Equal(t, models.StatusPendingPayment, created.Status)
	assert.Equal(t, 1, f.cart.clears)

	current, ok := f.tracker.Current()
	require.True(t, ok)
	assert.Equal(t, models.StatusPendingPayment, current.Status)

	f.clock.BlockUntil(1)
	f.clock.Advance(3 * time.Second)
	f.waitOrderCalls(t, 1)
}

func TestCreate_FailurePropagates(t *testing.T) {
	client := &fakeClient{CreateErr: errors.New("cart is empty")}
	f := newFixture(t, client)

	_, err := f.tracker.Create(context.Background(), "tok")
	require.Error(t, err)
	assert.Zero(t, f.cart.clears, "cart must stay intact when creation fails")
	_, ok := f.tracker.Current()
	assert.False(t, ok)
}

// ---- polling ----

func TestPolling_StopsAtFirstTerminalStatus(t *testing.T) {
	client := &fakeClient{getOrderSteps: []getOrderStep{
		{order: order(7, models.StatusPending)},
		{order: order(7, models.StatusPending)},
		{order: order(7, models.StatusPaid)},
	}}
	f := newFixture(t, client)

	f.tracker.StartPolling(7, "tok")
	f.clock.BlockUntil(1)

	for i := 1; i <= 3; i++ {
		f.clock.Advance(3 * time.Second)
		f.waitOrderCalls(t, i)
	}

	// terminal status published
	var last models.Order
	for len(f.updates) > 0 {
		last = <-f.updates
	}
	assert.Equal(t, models.StatusPaid, last.Status)

	// exactly three fetches: the poller must be stopped now
	f.clock.Advance(30 * time.Second)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 3, f.client.orderCalls())
}

func TestPolling_ContinuesForNonTerminalStatuses(t *testing.T) {
	client := &fakeClient{getOrderSteps: []getOrderStep{
		{order: order(7, models.StatusPendingPayment)},
		{order: order(7, models.StatusPending)},
		{order: order(7, models.StatusPending)},
	}}
	f := newFixture(t, client)

	f.tracker.StartPolling(7, "tok")
	f.clock.BlockUntil(1)

	for i := 1; i <= 3; i++ {
		f.clock.Advance(3 * time.Second)
		f.waitOrderCalls(t, i)
	}
	// still live: one more tick, one more fetch
	f.clock.Advance(3 * time.Second)
	f.waitOrderCalls(t, 4)
}

func TestPolling_SwallowsTransientErrors(t *testing.T) {
	client := &fakeClient{getOrderSteps: []getOrderStep{
		{err: errors.New("connection refused")},
		{order: order(7, models.StatusPaid)},
	}}
	f := newFixture(t, client)

	f.tracker.StartPolling(7, "tok")
	f.clock.BlockUntil(1)

	f.clock.Advance(3 * time.Second)
	f.waitOrderCalls(t, 1)
	// the failed tick must not have killed the poller
	f.clock.Advance(3 * time.Second)
	f.waitOrderCalls(t, 2)

	select {
	case o := <-f.updates:
		assert.Equal(t, models.StatusPaid, o.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("terminal update never published")
	}
}

func TestPolling_IgnoresUnrecognizedStatus(t *testing.T) {
	client := &fakeClient{getOrderSteps: []getOrderStep{
		{order: order(7, models.OrderStatus("SHIPPED"))},
		{order: order(7, models.StatusPaid)},
	}}
	f := newFixture(t, client)

	f.tracker.StartPolling(7, "tok")
	f.clock.BlockUntil(1)

	f.clock.Advance(3 * time.Second)
	f.waitOrderCalls(t, 1)
	assert.Empty(t, f.updates, "unrecognized status must not drive a transition")

	f.clock.Advance(3 * time.Second)
	f.waitOrderCalls(t, 2)
}

func TestStartPolling_ReplacesPriorHandle(t *testing.T) {
	client := &fakeClient{getOrderSteps: []getOrderStep{
		{order: order(2, models.StatusPending)},
	}}
	f := newFixture(t, client)

	f.tracker.StartPolling(1, "tok")
	f.tracker.StartPolling(2, "tok")

	require.Eventually(t, func() bool {
		f.clock.Advance(3 * time.Second)
		return f.client.orderCalls() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	f.client.mu.Lock()
	last := f.client.lastGetOrder
	f.client.mu.Unlock()
	assert.Equal(t, int64(2), last, "only the replacement poller may fetch")
}

// ---- sweep ----

func TestWatchAll_ArmsSweepWhileUnresolved(t *testing.T) {
	client := &fakeClient{listSteps: []listStep{
		{orders: []models.Order{*order(1, models.StatusPending), *order(2, models.StatusPaid)}},
		{orders: []models.Order{*order(1, models.StatusPaid), *order(2, models.StatusPaid)}},
	}}
	f := newFixture(t, client)

	orders, err := f.tracker.WatchAll(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, 1, f.client.listCallCount())

	f.clock.BlockUntil(1)
	f.clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return f.client.listCallCount() == 2 },
		2*time.Second, 5*time.Millisecond)

	// order 1 resolved on that tick: sweep must be disarmed now
	f.clock.Advance(time.Minute)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, f.client.listCallCount())

	tracked := f.tracker.Tracked()
	require.Len(t, tracked, 2)
	assert.Equal(t, models.StatusPaid, tracked[0].Status)
}

func TestWatchAll_NoSweepWhenAllResolved(t *testing.T) {
	client := &fakeClient{listSteps: []listStep{
		{orders: []models.Order{*order(1, models.StatusPaid)}},
	}}
	f := newFixture(t, client)

	_, err := f.tracker.WatchAll(context.Background(), "tok")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, f.client.listCallCount(), "no background sweep for a resolved history")
}

func TestWatchAll_FailedOrdersKeepSweepArmed(t *testing.T) {
	client := &fakeClient{listSteps: []listStep{
		{orders: []models.Order{*order(1, models.StatusPaymentFailed)}},
	}}
	f := newFixture(t, client)

	_, err := f.tracker.WatchAll(context.Background(), "tok")
	require.NoError(t, err)

	// a failed order can be retried, so it stays in the refresh set
	f.clock.BlockUntil(1)
	f.clock.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return f.client.listCallCount() >= 2 },
		2*time.Second, 5*time.Millisecond)
}

// ---- teardown ----

func TestTeardown_CancelsTimers(t *testing.T) {
	client := &fakeClient{
		getOrderSteps: []getOrderStep{{order: order(7, models.StatusPending)}},
		listSteps:     []listStep{{orders: []models.Order{*order(7, models.StatusPending)}}},
	}
	f := newFixture(t, client)

	f.tracker.StartPolling(7, "tok")
	_, err := f.tracker.WatchAll(context.Background(), "tok")
	require.NoError(t, err)

	f.tracker.Teardown()

	f.clock.Advance(time.Minute)
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, f.client.orderCalls(), "poll timer must be cancelled")
	assert.Equal(t, 1, f.client.listCallCount(), "sweep timer must be cancelled")
}
