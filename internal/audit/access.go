package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"schoolattend/internal/queue"
)

// MessageTypeAccess tags queue messages carrying read-access events.
const MessageTypeAccess = "audit.access"

// AccessEvent records that someone viewed or exported audit data. Unlike
// mutations these are advisory and persisted asynchronously by the worker;
// they need no transactional pairing because there is nothing to roll back.
type AccessEvent struct {
	Action      Action    `json:"action"`
	RecordID    string    `json:"record_id,omitempty"`
	PerformedBy string    `json:"performed_by"`
	PerformedAt time.Time `json:"performed_at"`
	Detail      string    `json:"detail,omitempty"`
}

// ToMessage wraps the event for the queue.
func (e AccessEvent) ToMessage() (queue.Message, error) {
	if e.Action != ActionView && e.Action != ActionExport {
		return queue.Message{}, fmt.Errorf("access event action must be view or export, got %q", e.Action)
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return queue.Message{}, err
	}
	return queue.Message{Type: MessageTypeAccess, Body: raw}, nil
}

// AccessEventFromMessage decodes a queue message back into an event.
func AccessEventFromMessage(msg queue.Message) (AccessEvent, error) {
	if msg.Type != MessageTypeAccess {
		return AccessEvent{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	var e AccessEvent
	if err := json.Unmarshal(msg.Body, &e); err != nil {
		return AccessEvent{}, err
	}
	return e, nil
}

// Entry converts the event to the trail entry the worker persists.
func (e AccessEvent) Entry() Entry {
	return Entry{
		RecordID:    e.RecordID,
		Action:      e.Action,
		PerformedBy: e.PerformedBy,
		PerformedAt: e.PerformedAt,
		Reason:      e.Detail,
	}
}
