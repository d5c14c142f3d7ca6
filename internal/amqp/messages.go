package amqp

import (
	"encoding/json"
	"fmt"

	"paisable/internal/core"
)

// TransactionMessage is the wire form of a ledger event. It carries identifiers only;
// consumers fetch the current record from the store.
type TransactionMessage struct {
	core.TransactionEvent
}

// NewTransactionMessage wraps an event for publishing.
func NewTransactionMessage(ev core.TransactionEvent) *TransactionMessage {
	return &TransactionMessage{TransactionEvent: ev}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionMessageFromJSON decodes and validates a message body.
func TransactionMessageFromJSON(data []byte) (*TransactionMessage, error) {
	var msg TransactionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TransactionID == "" {
		return nil, fmt.Errorf("message without transaction id")
	}
	switch msg.Type {
	case core.EventCreated, core.EventUpdated, core.EventDeleted:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	return &msg, nil
}
