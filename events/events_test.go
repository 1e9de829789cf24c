package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"casino/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_EmitReachesSubscribers(t *testing.T) {
	bus := NewBus()

	received := make(chan Event, 2)
	bus.Subscribe(EventTypeBetSettled, func(ctx context.Context, event Event) {
		received <- event
	})
	bus.Subscribe(EventTypeBetSettled, func(ctx context.Context, event Event) {
		received <- event
	})

	betID := uuid.New()
	bus.Emit(context.Background(), BetSettledEvent{BetID: betID, Game: models.GamePlinko, Won: true})

	for i := 0; i < 2; i++ {
		select {
		case event := <-received:
			settled := event.(BetSettledEvent)
			assert.Equal(t, betID, settled.BetID)
		case <-time.After(2 * time.Second):
			t.Fatal("handler not invoked")
		}
	}
}

func TestBus_EmitIgnoresOtherEventTypes(t *testing.T) {
	bus := NewBus()

	received := make(chan Event, 1)
	bus.Subscribe(EventTypeDepositCompleted, func(ctx context.Context, event Event) {
		received <- event
	})

	bus.Emit(context.Background(), RoundCrashedEvent{RoundID: uuid.New(), CrashPoint: 1.98})

	select {
	case <-received:
		t.Fatal("handler invoked for unrelated event type")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBus_PanickingHandlerDoesNotAffectOthers(t *testing.T) {
	bus := NewBus()

	bus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		panic("boom")
	})
	received := make(chan Event, 1)
	bus.Subscribe(EventTypeBalanceChange, func(ctx context.Context, event Event) {
		received <- event
	})

	bus.Emit(context.Background(), BalanceChangeEvent{UserID: uuid.New(), ChangeAmount: 500})

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("surviving handler not invoked")
	}
}

func TestTransactionalBus_FlushEmitsInOrder(t *testing.T) {
	bus := NewBus()

	var mu sync.Mutex
	var payouts []int64
	done := make(chan struct{}, 3)
	bus.Subscribe(EventTypeBetSettled, func(ctx context.Context, event Event) {
		mu.Lock()
		payouts = append(payouts, event.(BetSettledEvent).Payout)
		mu.Unlock()
		done <- struct{}{}
	})

	txBus := NewTransactionalBus(bus)
	txBus.Publish(BetSettledEvent{Payout: 100})
	txBus.Publish(BetSettledEvent{Payout: 200})
	txBus.Publish(BetSettledEvent{Payout: 300})

	// Nothing leaves the stash before flush
	time.Sleep(50 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, payouts)
	mu.Unlock()

	require.NoError(t, txBus.Flush(context.Background()))

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("flushed event not delivered")
		}
	}
	mu.Lock()
	assert.ElementsMatch(t, []int64{100, 200, 300}, payouts)
	mu.Unlock()

	// A second flush has nothing left to emit
	require.NoError(t, txBus.Flush(context.Background()))
	select {
	case <-done:
		t.Fatal("event emitted twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTransactionalBus_DiscardDropsPending(t *testing.T) {
	bus := NewBus()

	received := make(chan Event, 1)
	bus.Subscribe(EventTypeBetSettled, func(ctx context.Context, event Event) {
		received <- event
	})

	txBus := NewTransactionalBus(bus)
	txBus.Publish(BetSettledEvent{Payout: 999})
	txBus.Discard()

	require.NoError(t, txBus.Flush(context.Background()))
	select {
	case <-received:
		t.Fatal("discarded event was emitted")
	case <-time.After(100 * time.Millisecond):
	}
}
