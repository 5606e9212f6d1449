package integration

import (
	"testing"
	"time"

	"rsatiming/internal/attack"
	"rsatiming/internal/bigint"
	"rsatiming/internal/errs"
	"rsatiming/internal/ops"
	"rsatiming/internal/rsakey"
)

// Error classification tests: every failure path should surface one of the
// errs.Kind sentinels, not a bare error a caller has to string-match.

func TestKeyDerivationErrorHandling(t *testing.T) {
	t.Run("non_invertible_exponent_rejected", func(t *testing.T) {
		// p=3, q=5, e=4: phi=8, gcd(4,8)=4 != 1, not invertible.
		_, err := rsakey.New(bigint.FromUint64(1, 3), bigint.FromUint64(1, 5), bigint.FromUint64(1, 4))
		if err == nil {
			t.Fatal("expected an error for a non-invertible exponent")
		}
		if !errs.Is(err, errs.NonInvertible) {
			t.Errorf("expected NonInvertible, got %s", errs.Classify(err))
		}
	})

	t.Run("mismatched_prime_widths_rejected", func(t *testing.T) {
		_, err := rsakey.New(bigint.FromUint64(1, 11), bigint.FromUint64(2, 13), bigint.FromUint64(1, 7))
		if err == nil {
			t.Fatal("expected an error for mismatched prime widths")
		}
	})

	t.Run("even_modulus_rejected_by_montgomery_context", func(t *testing.T) {
		key := newKey(t, smallP, smallQ, smallE)
		evenN := key.N.ShiftLeft(1) // even by construction
		_, err := ops.Attack(ops.AttackOptions{N: evenN, Samples: nil, ThresholdNS: 1, MaxBits: 1})
		if err == nil {
			t.Fatal("expected an error for an even modulus")
		}
		if !errs.Is(err, errs.InvalidModulus) {
			t.Errorf("expected InvalidModulus, got %s", errs.Classify(err))
		}
	})
}

func TestAttackErrorHandling(t *testing.T) {
	key := newKey(t, smallP, smallQ, smallE)

	t.Run("insufficient_samples_per_class", func(t *testing.T) {
		samples := []attack.TimingSample{
			timingSample(bigint.FromUint64(key.Width(), 5), time.Millisecond),
			timingSample(bigint.FromUint64(key.Width(), 7), 2*time.Millisecond),
		}
		_, err := ops.Attack(ops.AttackOptions{N: key.N, Samples: samples, ThresholdNS: int64(time.Microsecond), MaxBits: 4})
		if err == nil {
			t.Fatal("expected an error for too few samples per class")
		}
		if !errs.Is(err, errs.InsufficientSamples) {
			t.Errorf("expected InsufficientSamples, got %s", errs.Classify(err))
		}
	})
}

func TestGenerateErrorHandling(t *testing.T) {
	t.Run("non_positive_count_rejected", func(t *testing.T) {
		_, err := ops.Generate(ops.GenerateOptions{
			P: bigint.FromUint64(1, smallP), Q: bigint.FromUint64(1, smallQ), E: bigint.FromUint64(1, smallE),
			Count: 0,
		})
		if err == nil {
			t.Fatal("expected an error for a non-positive sample count")
		}
		if !errs.Is(err, errs.MalformedInput) {
			t.Errorf("expected MalformedInput, got %s", errs.Classify(err))
		}
	})

	t.Run("non_invertible_exponent_rejected", func(t *testing.T) {
		_, err := ops.Generate(ops.GenerateOptions{
			P: bigint.FromUint64(1, 7), Q: bigint.FromUint64(1, 13), E: bigint.FromUint64(1, 6),
			Count: 4,
		})
		if err == nil {
			t.Fatal("expected an error for a non-invertible exponent")
		}
		if !errs.Is(err, errs.NonInvertible) {
			t.Errorf("expected NonInvertible, got %s", errs.Classify(err))
		}
	})
}
