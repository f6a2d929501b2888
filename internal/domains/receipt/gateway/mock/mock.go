package mock

import (
	"receiptflow/internal/domains/receipt/gateway/generic"
	"receiptflow/internal/domains/receipt/model"
)

// Parser reuses the identity mapping; the mock provider's distinguishing
// behavior is signature bypass, handled one layer up by the intake
// service (§4.1 step 1), not by payload shape.
type Parser struct {
	inner *generic.Parser
}

func NewParser() *Parser { return &Parser{inner: generic.NewParser()} }

func (p *Parser) Parse(rawPayload []byte) (model.NormalizedEvent, error) {
	return p.inner.Parse(rawPayload)
}
