package generic

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"receiptflow/internal/domains/receipt/model"
)

// payload is the identity mapping over the canonical keys (§6: "unknown
// providers use identity mapping over the canonical keys").
type payload struct {
	TransactionID string          `json:"transaction_id"`
	OrderID       string          `json:"order_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	EventType     string          `json:"event_type"`
}

type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (p *Parser) Parse(rawPayload []byte) (model.NormalizedEvent, error) {
	var pl payload
	if err := json.Unmarshal(rawPayload, &pl); err != nil {
		return model.NormalizedEvent{}, fmt.Errorf("generic: failed to parse payload: %w", err)
	}

	return model.NormalizedEvent{
		TransactionID: pl.TransactionID,
		OrderID:       pl.OrderID,
		Status:        pl.Status,
		Amount:        pl.Amount,
		Currency:      pl.Currency,
		EventType:     pl.EventType,
	}, nil
}
