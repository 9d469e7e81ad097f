package amqp

import (
	"testing"
)

func TestExpenseMessageJSON(t *testing.T) {
	msg := NewExpenseSyncMessage(42, 1)
	if msg.Kind != KindExpenseSync {
		t.Fatalf("Kind = %q, want %q", msg.Kind, KindExpenseSync)
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	decoded, err := ExpenseMessageFromJSON(body)
	if err != nil {
		t.Fatalf("ExpenseMessageFromJSON() error = %v", err)
	}
	if decoded.ID != 42 || decoded.Version != 1 || decoded.Kind != KindExpenseSync {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestExpenseMessageFromJSON_Invalid(t *testing.T) {
	if _, err := ExpenseMessageFromJSON([]byte("{not json")); err == nil {
		t.Error("ExpenseMessageFromJSON() = nil error for malformed payload")
	}
}
