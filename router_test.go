package router

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/simon020286/continuation-router/ledger"
	"github.com/simon020286/continuation-router/models"
	"github.com/simon020286/continuation-router/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAction pulls amountIn from its input into sink and pays produce
// from source into its output
type fakeAction struct {
	in, out      models.Key
	sink, source models.Key
	produce      uint64
	// burn is taken back from the output after paying
	burn uint64
	// ignoreMinimum pays produce even below the minimum
	ignoreMinimum bool

	mu     sync.Mutex
	calls  int
	gotIn  uint64
	gotMin uint64
}

func (a *fakeAction) Type() models.ActionType { return models.ActionSSSwap }

func (a *fakeAction) InputAccount() models.Key { return a.in }

func (a *fakeAction) OutputAccount() models.Key { return a.out }

func (a *fakeAction) Process(actx *models.ActionContext, amountIn, minimumAmountOut uint64) error {
	a.mu.Lock()
	a.calls++
	a.gotIn, a.gotMin = amountIn, minimumAmountOut
	a.mu.Unlock()

	if !a.ignoreMinimum && a.produce < minimumAmountOut {
		return models.NewRouteError(models.KindMinimumOutNotMet, "fake pays %d", a.produce)
	}
	if err := actx.Ledger.Transfer(a.in, a.sink, actx.Owner, amountIn); err != nil {
		return err
	}
	if a.produce > 0 {
		if err := actx.Ledger.Transfer(a.source, a.out, "venue", a.produce); err != nil {
			return err
		}
	}
	if a.burn > 0 {
		return actx.Ledger.Burn(a.out, actx.Owner, a.burn)
	}
	return nil
}

func (a *fakeAction) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// swapAB and swapBC are the two hops of the A -> B -> C route
func swapAB(produce uint64) *fakeAction {
	return &fakeAction{in: "alice-a", out: "alice-b", sink: "venue-a", source: "venue-b", produce: produce}
}

func swapBC(produce uint64) *fakeAction {
	return &fakeAction{in: "alice-b", out: "alice-c", sink: "venue-b", source: "venue-c", produce: produce}
}

type recorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recorder) OnEvent(event models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) Types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]models.EventType, 0, len(r.events))
	for _, e := range r.events {
		types = append(types, e.Type)
	}
	return types
}

func (r *recorder) Last() models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// Find returns the last event of the given type. Events of separate
// publishes may arrive in any order.
func (r *recorder) Find(eventType models.EventType) (models.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == eventType {
			return r.events[i], true
		}
	}
	return models.Event{}, false
}

// testClock is shared by a router and its store
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	router *Router
	ledger *ledger.Ledger
	store  *store.MemoryStore
	clock  *testClock
	events *recorder
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	l := ledger.New()
	err := l.Update(context.Background(), func(tx *ledger.Tx) error {
		for _, mint := range []models.Key{"A", "B", "C"} {
			if err := tx.CreateMint(models.Mint{Key: mint, Authority: "issuer", Decimals: 6}); err != nil {
				return err
			}
		}
		for _, acc := range []models.TokenAccount{
			{Key: "alice-a", Mint: "A", Owner: "alice", Amount: 1000},
			{Key: "alice-a-out", Mint: "A", Owner: "alice", Amount: 500},
			{Key: "alice-b", Mint: "B", Owner: "alice"},
			{Key: "alice-c", Mint: "C", Owner: "alice"},
			{Key: "mallory-b", Mint: "B", Owner: "mallory", Amount: 1000},
			{Key: "venue-a", Mint: "A", Owner: "venue", Amount: 10_000},
			{Key: "venue-b", Mint: "B", Owner: "venue", Amount: 10_000},
			{Key: "venue-c", Mint: "C", Owner: "venue", Amount: 10_000},
		} {
			if err := tx.CreateAccount(acc); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	clock := newTestClock()
	s := store.NewMemoryStore(store.WithClock(clock.Now))
	var ids atomic.Int64
	opts = append([]Option{
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			return fmt.Sprintf("cont-%d", ids.Add(1))
		}),
	}, opts...)
	r := New(l, s, opts...)
	events := &recorder{}
	r.AddListener(events)
	t.Cleanup(r.Wait)
	return &harness{router: r, ledger: l, store: s, clock: clock, events: events}
}

func (h *harness) balance(t *testing.T, key models.Key) uint64 {
	t.Helper()
	acc, err := h.ledger.Account(key)
	require.NoError(t, err)
	return acc.Amount
}

func twoStepParams(minimum uint64) BeginParams {
	return BeginParams{
		Owner:            "alice",
		Input:            "alice-a",
		Output:           "alice-c",
		AmountIn:         100,
		MinimumAmountOut: models.NewTokenAmount("C", minimum),
		NumSteps:         2,
	}
}

var ignoreBookkeeping = cmpopts.IgnoreFields(models.Continuation{}, "Version", "CreatedAt", "UpdatedAt")

func TestRouteStepByStep(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	route, err := h.router.Begin(ctx, twoStepParams(90))
	require.NoError(t, err)

	want := models.Continuation{
		ID:                   "cont-1",
		Owner:                "alice",
		Payer:                "alice",
		InitialAmountIn:      models.NewTokenAmount("A", 100),
		Input:                "alice-a",
		AmountIn:             models.NewTokenAmount("A", 100),
		StepsLeft:            2,
		Output:               "alice-c",
		OutputInitialBalance: 0,
		MinimumAmountOut:     models.NewTokenAmount("C", 90),
	}
	if diff := cmp.Diff(want, route.Continuation(), ignoreBookkeeping); diff != "" {
		t.Fatalf("continuation after begin (-want +got):\n%s", diff)
	}

	first := swapAB(95)
	require.NoError(t, route.Step(ctx, first))
	assert.Equal(t, uint64(100), first.gotIn)
	assert.Equal(t, uint64(0), first.gotMin, "intermediate steps run without a minimum")

	c := route.Continuation()
	assert.Equal(t, uint16(1), c.StepsLeft)
	assert.Equal(t, models.Key("alice-b"), c.Input)
	assert.Equal(t, models.NewTokenAmount("B", 95), c.AmountIn)

	stored, err := h.store.Get(ctx, route.ID())
	require.NoError(t, err)
	if diff := cmp.Diff(c, stored); diff != "" {
		t.Errorf("stored continuation differs (-route +store):\n%s", diff)
	}

	_, err = route.End(ctx)
	assert.ErrorIs(t, err, models.ErrEndIncomplete)

	second := swapBC(92)
	require.NoError(t, route.Step(ctx, second))
	assert.Equal(t, uint64(95), second.gotIn, "second step consumes exactly what the first produced")
	assert.Equal(t, uint64(90), second.gotMin)
	assert.Equal(t, uint16(0), route.Continuation().StepsLeft)

	err = route.Step(ctx, swapBC(1))
	assert.ErrorIs(t, err, models.ErrNoMoreSteps)

	receipt, err := route.End(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.NewTokenAmount("A", 100), receipt.AmountIn)
	assert.Equal(t, models.NewTokenAmount("C", 92), receipt.AmountOut)

	_, err = h.store.Get(ctx, "cont-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, uint64(900), h.balance(t, "alice-a"))
	assert.Equal(t, uint64(0), h.balance(t, "alice-b"))
	assert.Equal(t, uint64(92), h.balance(t, "alice-c"))

	_, err = route.End(ctx)
	assert.ErrorIs(t, err, models.ErrContinuationClosed)

	h.router.Wait()
	assert.ElementsMatch(t, []models.EventType{
		models.EventRouteInitialized,
		models.EventRouteStepCompleted,
		models.EventRouteStepCompleted,
		models.EventRouteCompleted,
	}, h.events.Types())
	completed, ok := h.events.Find(models.EventRouteCompleted)
	require.True(t, ok)
	assert.Equal(t, models.NewTokenAmount("C", 92), completed.Data["amount_out"])
}

func TestStepChecksRunInOrder(t *testing.T) {
	base := models.Continuation{
		ID:               "c",
		Owner:            "alice",
		Input:            "alice-a",
		AmountIn:         models.NewTokenAmount("A", 100),
		StepsLeft:        2,
		Output:           "alice-c",
		MinimumAmountOut: models.NewTokenAmount("C", 1),
	}

	tests := []struct {
		name   string
		modify func(c *models.Continuation)
		action *fakeAction
		want   error
	}{
		{"no steps left", func(c *models.Continuation) { c.StepsLeft = 0 }, swapAB(1), models.ErrNoMoreSteps},
		{"path discontinuity", nil, swapBC(1), models.ErrPathInputOutputMismatch},
		{"input owner", func(c *models.Continuation) {
			c.Input = "mallory-b"
			c.AmountIn.Mint = "B"
		}, &fakeAction{in: "mallory-b", out: "alice-c"}, models.ErrInputOwnerMismatch},
		{"input mint", func(c *models.Continuation) { c.AmountIn.Mint = "B" }, swapAB(1), models.ErrInputMintMismatch},
		{"zero amount", func(c *models.Continuation) { c.AmountIn.Amount = 0 }, swapAB(1), models.ErrZeroSwap},
		{"insufficient balance", func(c *models.Continuation) { c.AmountIn.Amount = 1001 }, swapAB(1), models.ErrInsufficientInput},
		{"output owner", nil, &fakeAction{in: "alice-a", out: "mallory-b"}, models.ErrOutputOwnerMismatch},
		{"last step pays wrong mint", func(c *models.Continuation) { c.StepsLeft = 1 }, swapAB(1), models.ErrOutputMintMismatch},
	}

	h := newHarness(t)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			if tc.modify != nil {
				tc.modify(&c)
			}
			err := h.ledger.View(func(tx *ledger.Tx) error {
				_, _, err := h.router.processStep(h.router.actionContext(context.Background(), tx, c.Owner), c, tc.action)
				return err
			})
			assert.ErrorIs(t, err, tc.want)
			assert.Equal(t, 0, tc.action.Calls(), "action must not run when a precondition fails")
		})
	}
}

func TestStepRejectsBalanceDecrease(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	require.NoError(t, h.ledger.Update(ctx, func(tx *ledger.Tx) error {
		return tx.Transfer("venue-b", "alice-b", "venue", 50)
	}))

	route, err := h.router.Begin(ctx, twoStepParams(1))
	require.NoError(t, err)
	before := route.Continuation()

	thief := &fakeAction{in: "alice-a", out: "alice-b", sink: "venue-a", burn: 10}
	err = route.Step(ctx, thief)
	assert.ErrorIs(t, err, models.ErrBalanceLower)
	assert.Equal(t, 1, thief.Calls())

	assert.Equal(t, before, route.Continuation())
	stored, err := h.store.Get(ctx, route.ID())
	require.NoError(t, err)
	assert.Equal(t, before, stored)
	assert.Equal(t, uint64(1000), h.balance(t, "alice-a"), "the failed step is rolled back")
	assert.Equal(t, uint64(50), h.balance(t, "alice-b"))

	require.NoError(t, route.Cancel(ctx))
}

func TestStepRejectsNilAction(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	route, err := h.router.Begin(ctx, twoStepParams(90))
	require.NoError(t, err)

	assert.ErrorIs(t, route.Step(ctx, nil), models.ErrInvalidAction)
	assert.Equal(t, uint16(2), route.Continuation().StepsLeft)
	require.NoError(t, route.Step(ctx, swapAB(95)))
	require.NoError(t, route.Cancel(ctx))
}

// cancelOnSave cancels the caller's context right after a save succeeds
type cancelOnSave struct {
	*store.MemoryStore
	cancel context.CancelFunc
}

func (s *cancelOnSave) Save(ctx context.Context, c *models.Continuation) error {
	if err := s.MemoryStore.Save(ctx, c); err != nil {
		return err
	}
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

func TestStepCancelledAfterSave(t *testing.T) {
	h := newHarness(t)
	s := &cancelOnSave{MemoryStore: store.NewMemoryStore(store.WithClock(h.clock.Now))}
	r := New(h.ledger, s, WithClock(h.clock.Now))
	t.Cleanup(r.Wait)

	route, err := r.Begin(context.Background(), twoStepParams(90))
	require.NoError(t, err)
	before := route.Continuation()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.cancel = cancel
	err = route.Step(ctx, swapAB(95))
	require.ErrorIs(t, err, context.Canceled)
	s.cancel = nil

	assert.Equal(t, uint64(1000), h.balance(t, "alice-a"), "the ledger batch is discarded")
	assert.Equal(t, uint64(0), h.balance(t, "alice-b"))

	c := route.Continuation()
	if diff := cmp.Diff(before, c, ignoreBookkeeping); diff != "" {
		t.Errorf("continuation after cancelled step (-want +got):\n%s", diff)
	}
	stored, err := s.Get(context.Background(), route.ID())
	require.NoError(t, err)
	assert.Equal(t, c, stored, "handle and store agree on state and version")

	require.NoError(t, route.Step(context.Background(), swapAB(95)))
	assert.Equal(t, uint16(1), route.Continuation().StepsLeft)
	assert.Equal(t, uint64(900), h.balance(t, "alice-a"))
	require.NoError(t, route.Cancel(context.Background()))
}

func TestBeginRejectsZeroAmount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	params := twoStepParams(1)
	params.AmountIn = 0
	_, err := h.router.Begin(ctx, params)
	assert.ErrorIs(t, err, models.ErrZeroSwap)

	stale, err := h.store.ListStale(ctx, h.router.now().Add(1))
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestBeginChecksEndpoints(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	params := twoStepParams(1)
	params.Input = "mallory-b"
	_, err := h.router.Begin(ctx, params)
	assert.ErrorIs(t, err, models.ErrInputOwnerMismatch)

	params = twoStepParams(1)
	params.Output = "mallory-b"
	_, err = h.router.Begin(ctx, params)
	assert.ErrorIs(t, err, models.ErrOutputOwnerMismatch)

	params = twoStepParams(1)
	params.Output = "nobody"
	_, err = h.router.Begin(ctx, params)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	params = twoStepParams(1)
	params.MinimumAmountOut.Mint = "B"
	_, err = h.router.Begin(ctx, params)
	assert.ErrorIs(t, err, models.ErrOutputMintMismatch)

	stale, err := h.store.ListStale(ctx, h.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, stale, "rejected routes are not stored")

	params = twoStepParams(1)
	params.MinimumAmountOut.Mint = ""
	route, err := h.router.Begin(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, models.NewTokenAmount("C", 1), route.Continuation().MinimumAmountOut, "the minimum takes the output mint")
	require.NoError(t, route.Cancel(ctx))
}

func TestZeroStepRoute(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		output  models.Key
		minimum models.TokenAmount
		want    error
		out     uint64
	}{
		{"nothing required", "alice-c", models.NewTokenAmount("C", 0), nil, 0},
		{"same mint covered by input", "alice-a-out", models.NewTokenAmount("A", 100), nil, 100},
		{"same mint not covered", "alice-a-out", models.NewTokenAmount("A", 101), models.ErrMinimumOutNotMet, 0},
		{"other mint", "alice-c", models.NewTokenAmount("C", 1), models.ErrMinimumOutNotMet, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			route, err := h.router.Begin(ctx, BeginParams{
				Owner:            "alice",
				Input:            "alice-a",
				Output:           tc.output,
				AmountIn:         100,
				MinimumAmountOut: tc.minimum,
			})
			require.NoError(t, err)

			assert.ErrorIs(t, route.Step(ctx, swapAB(1)), models.ErrNoMoreSteps)

			receipt, err := route.End(ctx)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
				require.NoError(t, route.Cancel(ctx))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.out, receipt.AmountOut.Amount)
		})
	}
}
