package sse

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishReachesAllUserStreams(t *testing.T) {
	hub := NewHub()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	userID := node.Generate()

	first, err := hub.Subscribe(userID)
	require.NoError(t, err)
	defer first.Close()
	second, err := hub.Subscribe(userID)
	require.NoError(t, err)
	defer second.Close()

	event := Event{Type: EventPaymentConfirmed, OrderID: "1", PaymentID: "2"}
	hub.Publish(userID, event)

	assert.Equal(t, event, <-first.Events())
	assert.Equal(t, event, <-second.Events())
}

func TestHub_PublishIsScopedToUser(t *testing.T) {
	hub := NewHub()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	sub, err := hub.Subscribe(node.Generate())
	require.NoError(t, err)
	defer sub.Close()

	hub.Publish(node.Generate(), Event{Type: EventOrderCompleted, OrderID: "1"})

	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected event %+v", event)
	default:
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	userID := node.Generate()

	sub, err := hub.Subscribe(userID)
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < defaultSubscriberBuffer*2; i++ {
		hub.Publish(userID, Event{Type: EventPaymentConfirmed, OrderID: "1"})
	}

	received := 0
	for {
		select {
		case <-sub.Events():
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, defaultSubscriberBuffer, received)
}

func TestHub_ClosedSubscriptionStopsReceiving(t *testing.T) {
	hub := NewHub()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	userID := node.Generate()

	sub, err := hub.Subscribe(userID)
	require.NoError(t, err)
	sub.Close()

	// Publishing after close must not panic or block.
	hub.Publish(userID, Event{Type: EventPaymentConfirmed, OrderID: "1"})
}
