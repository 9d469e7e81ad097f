package amqp

import (
	"encoding/json"
	"time"
)

// MessageKind discriminates the payloads travelling on the sync queue.
type MessageKind string

const (
	KindExpenseSync   MessageKind = "expense_sync"
	KindExpenseDelete MessageKind = "expense_delete"
)

// ExpenseMessage is the sync-queue envelope. Sync messages carry only the
// ID; the worker fetches the full expense from the database. Delete
// messages carry a snapshot of the row data, since by the time the worker
// runs the local record is already soft-deleted and the spreadsheet row
// has to be located by its values.
type ExpenseMessage struct {
	Kind        MessageKind `json:"kind"`
	ID          int64       `json:"id"`
	Version     int64       `json:"version"`
	Date        string      `json:"date,omitempty"`
	Description string      `json:"description,omitempty"`
	AmountCents int64       `json:"amount_cents,omitempty"`
	Currency    string      `json:"currency,omitempty"`
	Category    string      `json:"category,omitempty"`
	IsRecurring bool        `json:"is_recurring,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}

// NewExpenseSyncMessage creates a sync message with just ID and version.
func NewExpenseSyncMessage(id, version int64) *ExpenseMessage {
	return &ExpenseMessage{
		Kind:      KindExpenseSync,
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *ExpenseMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseMessageFromJSON creates a message from JSON bytes.
func ExpenseMessageFromJSON(data []byte) (*ExpenseMessage, error) {
	var msg ExpenseMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
