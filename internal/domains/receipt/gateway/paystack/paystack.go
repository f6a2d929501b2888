package paystack

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"receiptflow/internal/domains/receipt/model"
)

// payload mirrors the Paystack webhook envelope (§6): the transaction id
// and currency live under data.object, the order id is tucked into
// data.object.metadata, and the event type decides success vs failure.
type payload struct {
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string          `json:"id"`
			Amount   decimal.Decimal `json:"amount"`
			Currency string          `json:"currency"`
			Metadata struct {
				OrderID string `json:"order_id"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

type Parser struct{}

func NewParser() *Parser { return &Parser{} }

func (p *Parser) Parse(rawPayload []byte) (model.NormalizedEvent, error) {
	var pl payload
	if err := json.Unmarshal(rawPayload, &pl); err != nil {
		return model.NormalizedEvent{}, fmt.Errorf("paystack: failed to parse payload: %w", err)
	}

	status := model.TransactionStatusFailed
	if pl.Type == "payment_intent.succeeded" {
		status = model.TransactionStatusSucceeded
	}

	return model.NormalizedEvent{
		TransactionID: pl.Data.Object.ID,
		OrderID:       pl.Data.Object.Metadata.OrderID,
		Status:        status,
		Amount:        pl.Data.Object.Amount,
		Currency:      pl.Data.Object.Currency,
		EventType:     pl.Type,
	}, nil
}
