package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"expenses/internal/core"
)

// ExpenseAddedMessage announces a stored expense. Consumers re-read the row
// by ID; the remaining fields are informational.
type ExpenseAddedMessage struct {
	MessageID string    `json:"message_id"`
	ID        int64     `json:"id"`
	Date      string    `json:"date"`
	Amount    string    `json:"amount"`
	Category  string    `json:"category"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseAddedMessage(e core.Expense) *ExpenseAddedMessage {
	return &ExpenseAddedMessage{
		MessageID: uuid.NewString(),
		ID:        e.ID,
		Date:      e.Date.String(),
		Amount:    core.FormatAmount(e.Amount),
		Category:  e.Category,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseAddedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ExpenseAddedMessageFromJSON(data []byte) (*ExpenseAddedMessage, error) {
	var msg ExpenseAddedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
