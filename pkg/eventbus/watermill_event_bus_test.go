package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/tripwire/pkg/channels/gochannel"
	"github.com/dukex/tripwire/pkg/events"
	"github.com/dukex/tripwire/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) *WatermillEventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NewSlogLogger(log.Discard()))
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	bus := newTestBus(t)
	received := make(chan *events.WorkflowFinished, 1)

	require.NoError(t, bus.Handle(events.WorkflowFinishedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowFinished)

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	published := events.WorkflowFinished{
		BaseEvent:   events.NewBaseEvent(events.WorkflowFinishedEvent, "wf-1"),
		ExecutionID: "exec-1",
		ActionsRun:  []string{"a1", "a2"},
		Variables:   map[string]string{"summary": "short"},
	}
	require.NoError(t, bus.Publish(t.Context(), "wf-1", published))

	select {
	case got := <-received:
		assert.Equal(t, "exec-1", got.ExecutionID)
		assert.Equal(t, "wf-1", got.WorkflowID)
		assert.Equal(t, []string{"a1", "a2"}, got.ActionsRun)
		assert.Equal(t, "short", got.Variables["summary"])
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_MessageMetadata(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(log.Discard()))
	require.NoError(t, err)

	messages, err := sub.Subscribe(t.Context(), events.Topic)
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	defer bus.Close()

	require.NoError(t, bus.Publish(t.Context(), "wf-9", events.GeofencesRegistered{
		BaseEvent: events.NewBaseEvent(events.GeofencesRegisteredEvent, ""),
		Count:     3,
	}))

	var msg *message.Message

	select {
	case msg = <-messages:
	case <-time.After(5 * time.Second):
		t.Fatal("message was not published")
	}

	msg.Ack()
	assert.Equal(t, "wf-9", msg.Metadata.Get(events.EventMetadataKey))
	assert.Equal(t, string(events.GeofencesRegisteredEvent), msg.Metadata.Get(events.EventTypeMetadataKey))
	assert.Contains(t, msg.UUID, "msg-")
}

func TestNewEvent_UnknownType(t *testing.T) {
	assert.Nil(t, newEvent("node.activation"))
	assert.IsType(t, &events.WorkflowFailed{}, newEvent(events.WorkflowFailedEvent))
}

func TestNop(t *testing.T) {
	var bus EventBus = Nop{}

	assert.NoError(t, bus.Publish(t.Context(), "k", events.WorkflowFailed{}))
	assert.NoError(t, bus.Close())
}
