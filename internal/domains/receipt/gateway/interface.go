package gateway

import "receiptflow/internal/domains/receipt/model"

// PayloadParser normalizes a provider-specific webhook body into the
// canonical shape every downstream component works with (§4.1 step 3,
// §9's tagged-union redesign note: WebhookEvent = Paystack | Mock | Generic).
type PayloadParser interface {
	Parse(rawPayload []byte) (model.NormalizedEvent, error)
}

// Registry resolves a provider name to its PayloadParser. Unknown
// providers fall back to the identity mapping (generic).
type Registry struct {
	parsers map[string]PayloadParser
	fallback PayloadParser
}

func NewRegistry(fallback PayloadParser) *Registry {
	return &Registry{parsers: make(map[string]PayloadParser), fallback: fallback}
}

func (r *Registry) Register(provider string, parser PayloadParser) {
	r.parsers[provider] = parser
}

func (r *Registry) Get(provider string) PayloadParser {
	if parser, ok := r.parsers[provider]; ok {
		return parser
	}
	return r.fallback
}
