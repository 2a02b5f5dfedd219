package amqp

import (
	"strings"
	"testing"
)

func TestStoreChangedMessageRoundTrip(t *testing.T) {
	msg := NewStoreChangedMessage(7, 12, 3, 2)

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	if !strings.Contains(string(data), `"revision":7`) {
		t.Errorf("encoded message missing revision: %s", data)
	}

	decoded, err := StoreChangedMessageFromJSON(data)
	if err != nil {
		t.Fatalf("StoreChangedMessageFromJSON() error = %v", err)
	}
	if decoded.Revision != msg.Revision {
		t.Errorf("Revision = %d, want %d", decoded.Revision, msg.Revision)
	}
	if decoded.Expenses != msg.Expenses || decoded.Recurring != msg.Recurring || decoded.Budgets != msg.Budgets {
		t.Errorf("counts = %d/%d/%d, want %d/%d/%d",
			decoded.Expenses, decoded.Recurring, decoded.Budgets,
			msg.Expenses, msg.Recurring, msg.Budgets)
	}
	if decoded.ChangedAt.IsZero() {
		t.Errorf("ChangedAt must survive the round trip")
	}
}

func TestStoreChangedMessageFromJSONInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: "not json at all"},
		{name: "wrong type", data: `{"revision":"seven"}`},
		{name: "empty input", data: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := StoreChangedMessageFromJSON([]byte(tt.data)); err == nil {
				t.Errorf("StoreChangedMessageFromJSON(%q) expected error", tt.data)
			}
		})
	}
}
