package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	q := NewInMemory(4)
	msg := Message{Type: "audit.access", Body: json.RawMessage(`{"action":"view"}`)}
	require.NoError(t, q.Publish(ctx, msg))

	out, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case got := <-out:
		assert.Equal(t, msg.Type, got.Type)
		assert.JSONEq(t, string(msg.Body), string(got.Body))
	case <-ctx.Done():
		t.Fatal("timed out waiting for message")
	}
}

func TestInMemoryConsumeClosesOnCancelWithPendingMessage(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Publish(ctx, Message{Type: "t"}))

	out, err := q.Consume(ctx)
	require.NoError(t, err)

	// Nobody reads out; cancelling must still unblock the forwarder
	// and close the channel rather than leave it stuck mid-send.
	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-out:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("consume channel not closed after cancellation")
		}
	}
}

func TestInMemoryPublishHonoursCancellation(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Publish(ctx, Message{Type: "t"}))

	// Queue full; a cancelled context must unblock the publisher.
	cancel()
	err := q.Publish(ctx, Message{Type: "t"})
	assert.ErrorIs(t, err, context.Canceled)
}
