package core

import "time"

// EventType names a ledger mutation.
type EventType string

const (
	EventCreated EventType = "transaction.created"
	EventUpdated EventType = "transaction.updated"
	EventDeleted EventType = "transaction.deleted"
)

// TransactionEvent is a lightweight notice; consumers fetch the record.
type TransactionEvent struct {
	Type          EventType `json:"type"`
	TransactionID string    `json:"transaction_id"`
	OwnerID       string    `json:"owner_id"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewTransactionEvent(typ EventType, t Transaction) TransactionEvent {
	return TransactionEvent{
		Type:          typ,
		TransactionID: t.ID,
		OwnerID:       t.OwnerID,
		Timestamp:     time.Now().UTC(),
	}
}
