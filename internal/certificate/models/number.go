package models

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	id "civreg/pkg/domain"
)

// NumberGenerator produces human-readable certificate numbers of the form
// {TYPE}-{epoch-millis}-{8 uppercase hex}. The clock and random source are
// injectable so the output is deterministic under test.
//
// The timestamp component makes collisions practically impossible; there is
// deliberately no retry loop, and the store's unique constraint is the
// backstop.
type NumberGenerator struct {
	now  func() time.Time
	rand io.Reader
}

// GeneratorOption configures a NumberGenerator.
type GeneratorOption func(*NumberGenerator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *NumberGenerator) { g.now = now }
}

// WithRand overrides the random source.
func WithRand(r io.Reader) GeneratorOption {
	return func(g *NumberGenerator) { g.rand = r }
}

// NewNumberGenerator constructs a generator backed by the wall clock and
// crypto/rand unless overridden.
func NewNumberGenerator(opts ...GeneratorOption) *NumberGenerator {
	g := &NumberGenerator{now: time.Now, rand: rand.Reader}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the next certificate number for the given type.
func (g *NumberGenerator) Generate(certType id.CertificateType) (string, error) {
	var suffix [4]byte
	if _, err := io.ReadFull(g.rand, suffix[:]); err != nil {
		return "", fmt.Errorf("read random suffix: %w", err)
	}
	// 4 random bytes render as exactly 8 uppercase hex characters.
	return fmt.Sprintf("%s-%d-%X", certType, g.now().UnixMilli(), suffix[:]), nil
}
