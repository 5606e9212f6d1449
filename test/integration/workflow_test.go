package integration

import (
	"bytes"
	"testing"
	"time"

	"rsatiming/internal/attack"
	"rsatiming/internal/bigint"
	"rsatiming/internal/csvio"
	"rsatiming/internal/ops"
	"rsatiming/internal/signer"
)

// Core generate/attack/verify workflow tests.

// TestEndToEndGenerateAttackVerify exercises the full lab pipeline: derive a
// key, sign a batch of messages under PlainSleep, round-trip the samples
// through CSV, recover d from the CSV-parsed samples, and check the
// recovered exponent against phi and e.
func TestEndToEndGenerateAttackVerify(t *testing.T) {
	key := newKey(t, smallP, smallQ, smallE)

	const sleep = time.Millisecond
	s, err := signer.New(key, signer.PlainSleep, signer.WithSleep(sleep))
	if err != nil {
		t.Fatalf("signer.New failed: %v", err)
	}

	const numSamples = 240
	messages := sampleMessages(key.N, key.Width(), numSamples)

	raw := make([]attack.TimingSample, numSamples)
	for i, m := range messages {
		_, elapsed, err := s.Sign(m)
		if err != nil {
			t.Fatalf("Sign failed: %v", err)
		}
		raw[i] = timingSample(m, elapsed)
	}

	var buf bytes.Buffer
	if err := csvio.WriteSamples(&buf, raw); err != nil {
		t.Fatalf("WriteSamples failed: %v", err)
	}

	batch, err := csvio.ReadSamples(&buf, key.Width())
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}
	if len(batch.Samples) != numSamples {
		t.Fatalf("expected %d round-tripped samples, got %d", numSamples, len(batch.Samples))
	}

	phi := key.Phi.Clone()
	e := key.E.Clone()
	report, err := ops.Attack(ops.AttackOptions{
		N:           key.N,
		Samples:     batch.Samples,
		ThresholdNS: int64(sleep / 3),
		MaxBits:     key.D.NumBits(),
		Phi:         &phi,
		E:           &e,
	})
	if err != nil {
		t.Fatalf("Attack failed: %v", err)
	}
	if !report.Checked || !report.Valid {
		t.Fatalf("expected recovered exponent to verify against phi and e, got checked=%v valid=%v", report.Checked, report.Valid)
	}
	assertBitsEqual(t, key.D, report.State.RecoveredBits, key.D.NumBits())
}

// TestEndToEndVerifyRoundTrip checks the verify operation's round trip
// across all three signer modes, the property the verify CLI command reports.
func TestEndToEndVerifyRoundTrip(t *testing.T) {
	key := newKey(t, mediumP, mediumQ, mediumE)

	for _, mode := range []signer.Mode{signer.Plain, signer.PlainSleep, signer.Ladder} {
		mode := mode
		t.Run(mode.String(), func(t *testing.T) {
			report, err := ops.Verify(ops.VerifyOptions{Key: key, Mode: mode, M: sampleMessages(key.N, key.Width(), 1)[0]})
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if !report.Valid {
				t.Errorf("expected signature to verify under mode %s", mode)
			}
		})
	}
}

// TestGenerateProducesAttackableSamples checks that ops.Generate's own
// output, run end to end through CSV, carries the same recoverable signal as
// hand-built samples do in TestEndToEndGenerateAttackVerify.
func TestGenerateProducesAttackableSamples(t *testing.T) {
	const sleepNS = int64(time.Millisecond)
	report, err := ops.Generate(ops.GenerateOptions{
		P: bigint.FromUint64(1, smallP), Q: bigint.FromUint64(1, smallQ), E: bigint.FromUint64(1, smallE),
		Mode: signer.PlainSleep, Count: 260, SleepNS: sleepNS,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	var buf bytes.Buffer
	if err := csvio.WriteSamples(&buf, report.Samples); err != nil {
		t.Fatalf("WriteSamples failed: %v", err)
	}
	batch, err := csvio.ReadSamples(&buf, report.Key.Width())
	if err != nil {
		t.Fatalf("ReadSamples failed: %v", err)
	}

	attackReport, err := ops.Attack(ops.AttackOptions{
		N:           report.Key.N,
		Samples:     batch.Samples,
		ThresholdNS: sleepNS / 3,
		MaxBits:     report.Key.D.NumBits(),
	})
	if err != nil {
		t.Fatalf("Attack failed: %v", err)
	}
	assertBitsEqual(t, report.Key.D, attackReport.State.RecoveredBits, report.Key.D.NumBits())
}
