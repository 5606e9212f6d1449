// Package signer wraps a rsakey.Key and an exp.Mode into a single Sign/Verify
// surface, so a caller picks the exponentiation strategy once at
// construction and never has to thread it through every call site.
package signer

import (
	"time"

	"rsatiming/internal/bigint"
	"rsatiming/internal/exp"
	"rsatiming/internal/montgomery"
	"rsatiming/internal/rsakey"
)

// Mode re-exports exp.Mode under the signer package so callers configuring
// a Signer never need to import internal/exp directly.
type Mode = exp.Mode

const (
	Plain      = exp.Plain
	PlainSleep = exp.PlainSleep
	Ladder     = exp.Ladder
)

// Option configures a Signer at construction time.
type Option func(*config)

type config struct {
	sleep time.Duration
}

// WithSleep sets the sleep exp.PlainSleep adds after each Montgomery product
// whose final subtraction fires; products that skip it do not sleep. It has
// no effect for exp.Plain or exp.Ladder.
func WithSleep(d time.Duration) Option {
	return func(c *config) { c.sleep = d }
}

// Signer signs and verifies messages under a fixed key and exponentiation
// mode. It holds no mutable state after construction and is safe for
// concurrent use by multiple goroutines sharing the same key.
type Signer struct {
	key   *rsakey.Key
	ctx   *montgomery.Context
	mode  exp.Mode
	sleep time.Duration
}

// New derives a Montgomery context for key.N and returns a Signer that uses
// the given exponentiation mode for every Sign call.
func New(key *rsakey.Key, mode exp.Mode, opts ...Option) (*Signer, error) {
	ctx, err := montgomery.NewContext(key.N)
	if err != nil {
		return nil, err
	}
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Signer{key: key, ctx: ctx, mode: mode, sleep: cfg.sleep}, nil
}

// Mode returns the signer's exponentiation mode.
func (s *Signer) Mode() exp.Mode { return s.mode }

// Sign computes M^d mod n using the signer's mode, returning the signature
// and the wall-clock time spent inside the exponentiation call -- the clock
// covers only the exponentiation itself, matching the timing-measurement note
// that only the cryptographic work is on the clock. m is not validated.
func (s *Signer) Sign(m bigint.BigInt) (sig bigint.BigInt, elapsed time.Duration, err error) {
	start := time.Now()
	switch s.mode {
	case exp.Plain:
		sig = exp.ModExp(m, s.key.D, s.ctx)
	case exp.PlainSleep:
		sig = exp.ModExpSleep(m, s.key.D, s.ctx, s.sleep)
	case exp.Ladder:
		sig = exp.PowerLadder(m, s.key.D, s.ctx)
	default:
		sig = exp.PowerLadder(m, s.key.D, s.ctx)
	}
	return sig, time.Since(start), nil
}

// Verify reports whether sig^e == m (mod n), always evaluated with the plain
// (non-ladder) exponentiation since verification never touches the private
// exponent and has no timing surface worth protecting.
func (s *Signer) Verify(m, sig bigint.BigInt) bool {
	recovered := exp.ModExp(sig, s.key.E, s.ctx)
	return recovered.Equal(m)
}
