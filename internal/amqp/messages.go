package amqp

import (
	"encoding/json"
	"time"
)

// StoreChangedMessage announces that the store snapshot was saved. It is a
// lightweight hint for other processes to refresh; it carries counts, never
// the data itself.
type StoreChangedMessage struct {
	Revision  int64     `json:"revision"`
	Expenses  int       `json:"expenses"`
	Recurring int       `json:"recurring"`
	Budgets   int       `json:"budgets"`
	ChangedAt time.Time `json:"changedAt"`
}

// NewStoreChangedMessage creates a change notification for a save revision.
func NewStoreChangedMessage(revision int64, expenses, recurring, budgets int) *StoreChangedMessage {
	return &StoreChangedMessage{
		Revision:  revision,
		Expenses:  expenses,
		Recurring: recurring,
		Budgets:   budgets,
		ChangedAt: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *StoreChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// StoreChangedMessageFromJSON creates a message from JSON bytes.
func StoreChangedMessageFromJSON(data []byte) (*StoreChangedMessage, error) {
	var msg StoreChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
