package postgres

import (
	"github.com/oklog/ulid/v2"
)

// ULIDGenerator generates time-ordered IDs for journal entries and outbox
// events, so that sorting by ID follows posting order.
type ULIDGenerator struct{}

// NewULIDGenerator creates a new ULIDGenerator.
func NewULIDGenerator() *ULIDGenerator {
	return &ULIDGenerator{}
}

// Generate generates a new ULID.
func (g *ULIDGenerator) Generate() string {
	return ulid.Make().String()
}
