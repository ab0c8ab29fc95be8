package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishOrderPreserved(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(WithBuffer(16))
	for i := 0; i < 10; i++ {
		bus.Publish(KindInstallProgress, i)
	}

	for i := 0; i < 10; i++ {
		ev := <-sub.Events()
		assert.Equal(t, KindInstallProgress, ev.Kind)
		assert.Equal(t, i, ev.Payload)
	}
}

func TestMultipleSubscribersEachReceive(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish(KindServerStarted, "srv")

	require.Equal(t, "srv", (<-a.Events()).Payload)
	require.Equal(t, "srv", (<-b.Events()).Payload)
}

func TestDropPolicyCountsDrops(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(WithBuffer(2), WithDropPolicy())
	for i := 0; i < 5; i++ {
		bus.Publish(KindStderrOutput, i)
	}

	assert.Equal(t, uint64(3), sub.Dropped())
	assert.Equal(t, 0, (<-sub.Events()).Payload)
	assert.Equal(t, 1, (<-sub.Events()).Payload)
}

func TestSubscriptionCloseUnblocksPublisher(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	sub := bus.Subscribe(WithBuffer(1))
	bus.Publish(KindClientError, "fill buffer")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		bus.Publish(KindClientError, "would block")
	}()

	sub.Close()
	wg.Wait() // must not deadlock
}

func TestBusCloseClosesSubscriberChannels(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()

	bus.Close()
	_, open := <-sub.Events()
	assert.False(t, open)

	// Publishing after close is a no-op, and double close is safe.
	bus.Publish(KindServerStopped, nil)
	bus.Close()
	sub.Close()
}

func TestSubscribeAfterCloseReturnsClosedChannel(t *testing.T) {
	bus := NewBus()
	bus.Close()

	sub := bus.Subscribe()
	_, open := <-sub.Events()
	assert.False(t, open)
}
