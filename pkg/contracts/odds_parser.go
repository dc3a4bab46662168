package contracts

import (
	"time"

	"github.com/XavierBriggs/Argus/pkg/models"
)

// OddsParser maps one provider's payload shape into canonical raw odds.
// Parsers are pure: same payload in, same quotes out. Adding a provider
// means registering a new parser, not editing a conditional.
type OddsParser interface {
	// Parse converts a raw response body into canonical quotes. An empty
	// result with a nil error means the provider currently has no data;
	// it is not a failure.
	Parse(providerID string, payload []byte, observedAt time.Time) ([]models.RawOdds, error)
}

// ParserFunc adapts a plain function to the OddsParser interface.
type ParserFunc func(providerID string, payload []byte, observedAt time.Time) ([]models.RawOdds, error)

// Parse implements OddsParser.
func (f ParserFunc) Parse(providerID string, payload []byte, observedAt time.Time) ([]models.RawOdds, error) {
	return f(providerID, payload, observedAt)
}
