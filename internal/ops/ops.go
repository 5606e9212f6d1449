// Package ops holds the pure, testable business logic behind the lab's four
// commands (generate, attack, verify, bench), mirroring the teacher's
// operations/cmd split: this package never touches flags or stdout, leaving
// that to internal/climd.
package ops

import (
	"crypto/rand"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"rsatiming/internal/attack"
	"rsatiming/internal/bigint"
	"rsatiming/internal/errs"
	"rsatiming/internal/montgomery"
	"rsatiming/internal/obslog"
	"rsatiming/internal/rsakey"
	"rsatiming/internal/signer"
)

// GenerateOptions configures a Generate run.
type GenerateOptions struct {
	P, Q, E  bigint.BigInt
	Mode     signer.Mode
	Count    int
	SleepNS  int64
	// Progress, if non-nil, is called from the results-draining goroutine
	// after each completed sample with the sample's own signing duration.
	Progress func(done, total int, sampleElapsed time.Duration)
	// Logger receives structured events for this run; nil means obslog.Nop().
	Logger *zap.Logger
}

// GenerateReport is the result of a Generate run: the derived key plus one
// timing sample per signed message, in message order.
type GenerateReport struct {
	Key     *rsakey.Key
	Samples []attack.TimingSample
	Elapsed time.Duration
}

// Generate derives a key from P, Q, E, signs Count random messages in
// [1, n) under Mode, and times each signature. Signing fans out across
// runtime.NumCPU() workers, all sharing one *signer.Signer (immutable and
// safe for concurrent use) over the same key and Montgomery context; results
// are collected through
// an unbuffered channel the caller's goroutine alone drains into Samples,
// the single append-only serialization point. If Progress is non-nil it is
// called from that same goroutine after each completed sample.
func Generate(opts GenerateOptions) (*GenerateReport, error) {
	log := opts.Logger
	if log == nil {
		log = obslog.Nop()
	}

	if opts.Count <= 0 {
		return nil, errs.New(errs.MalformedInput, "ops: generate count must be positive")
	}
	key, err := rsakey.New(opts.P, opts.Q, opts.E)
	if err != nil {
		log.Error("key derivation failed", zap.Error(err))
		return nil, err
	}
	s, err := signer.New(key, opts.Mode, signer.WithSleep(time.Duration(opts.SleepNS)))
	if err != nil {
		log.Error("signer construction failed", zap.Error(err))
		return nil, err
	}
	log.Info("generating samples",
		zap.String("n", key.N.String()),
		zap.Stringer("mode", opts.Mode),
		zap.Int("count", opts.Count),
	)

	workers := runtime.NumCPU()
	if workers > opts.Count {
		workers = opts.Count
	}
	if workers < 1 {
		workers = 1
	}

	type indexed struct {
		idx    int
		sample attack.TimingSample
		err    error
	}

	jobs := make(chan int)
	results := make(chan indexed)
	var wg sync.WaitGroup

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				m, err := randomMessage(key.N, key.Width())
				if err != nil {
					results <- indexed{idx: idx, err: err}
					continue
				}
				sig, elapsed, err := s.Sign(m)
				if err != nil {
					results <- indexed{idx: idx, err: err}
					continue
				}
				_ = sig
				results <- indexed{idx: idx, sample: attack.TimingSample{M: m, Duration: elapsed}}
			}
		}()
	}
	go func() {
		for i := 0; i < opts.Count; i++ {
			jobs <- i
		}
		close(jobs)
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	samples := make([]attack.TimingSample, opts.Count)
	done := 0
	for r := range results {
		if r.err != nil {
			log.Error("signing worker failed", zap.Int("index", r.idx), zap.Error(r.err))
			return nil, r.err
		}
		samples[r.idx] = r.sample
		done++
		if opts.Progress != nil {
			opts.Progress(done, opts.Count, r.sample.Duration)
		}
	}

	elapsed := time.Since(start)
	log.Info("generate complete", zap.Int("samples", len(samples)), zap.Duration("elapsed", elapsed))
	return &GenerateReport{Key: key, Samples: samples, Elapsed: elapsed}, nil
}

// randomMessage picks a uniform random value in [1, n) by rejection
// sampling uniformly random width-word byte strings, the same technique the
// teacher's randomCoprime uses for puzzle bases.
func randomMessage(n bigint.BigInt, width int) (bigint.BigInt, error) {
	buf := make([]byte, width*8)
	for {
		if _, err := rand.Read(buf); err != nil {
			return bigint.BigInt{}, errs.Wrap(err, "ops: reading randomness")
		}
		candidate, err := bigint.FromBytes(width, buf)
		if err != nil {
			continue
		}
		if candidate.IsZero() {
			continue
		}
		if candidate.Cmp(n) < 0 {
			return candidate, nil
		}
	}
}

// AttackOptions configures an Attack run. Phi and E are optional: when both
// are supplied, Attack additionally checks the recovered exponent against
// e*d' == 1 (mod phi), the verification spec.md's attack CLI uses to decide
// its exit code.
type AttackOptions struct {
	N           bigint.BigInt
	Samples     []attack.TimingSample
	ThresholdNS int64
	MaxBits     int
	Phi         *bigint.BigInt
	E           *bigint.BigInt
	// Logger receives structured events for this run; nil means obslog.Nop().
	Logger *zap.Logger
}

// AttackReport is the result of an Attack run.
type AttackReport struct {
	State      attack.AttackState
	RecoveredD bigint.BigInt
	Checked    bool
	Valid      bool
}

// Attack runs the timing-recovery algorithm and assembles the recovered
// bits into a single exponent value.
func Attack(opts AttackOptions) (*AttackReport, error) {
	log := opts.Logger
	if log == nil {
		log = obslog.Nop()
	}

	threshold := time.Duration(opts.ThresholdNS)
	log.Info("starting attack", zap.Int("samples", len(opts.Samples)), zap.Duration("threshold", threshold))

	state, err := attack.Run(opts.N, opts.Samples, threshold, attack.RunOptions{MaxBits: opts.MaxBits})
	if err != nil {
		log.Error("attack run failed", zap.Error(err))
		return nil, err
	}
	d := bitsToBigInt(state.RecoveredBits, opts.N.Width())
	report := &AttackReport{State: state, RecoveredD: d}

	if opts.Phi != nil && opts.E != nil {
		report.Checked = true
		report.Valid = isModularInverse(*opts.E, d, *opts.Phi)
	}
	log.Info("attack complete", zap.Int("bits_recovered", len(state.RecoveredBits)), zap.Bool("checked", report.Checked), zap.Bool("valid", report.Valid))
	return report, nil
}

func bitsToBigInt(bits []int, width int) bigint.BigInt {
	acc := bigint.New(width)
	for _, b := range bits {
		acc = acc.ShiftLeft(1)
		if b == 1 {
			acc = acc.SetBit(0)
		}
	}
	return acc
}

// isModularInverse reports whether e*d == 1 (mod phi).
func isModularInverse(e, d, phi bigint.BigInt) bool {
	workWidth := 2 * phi.Width()
	eW := e.Resize(workWidth)
	dW := d.Resize(workWidth)
	phiW := phi.Resize(workWidth)

	hi, lo := bigint.Mul(eW, dW)
	if !hi.IsZero() {
		return false
	}
	_, rem, err := bigint.DivMod(lo, phiW)
	if err != nil {
		return false
	}
	return rem.Equal(bigint.FromUint64(workWidth, 1))
}

// VerifyOptions configures a Verify run.
type VerifyOptions struct {
	Key  *rsakey.Key
	Mode signer.Mode
	M    bigint.BigInt
}

// VerifyReport is the result of a Verify run.
type VerifyReport struct {
	Signature bigint.BigInt
	Elapsed   time.Duration
	Valid     bool
}

// Verify signs M under Key and Mode, then checks the signature verifies
// against the key's public exponent -- a round-trip sanity check for a
// freshly constructed key, not named in spec.md but a direct consequence of
// its signature round-trip property.
func Verify(opts VerifyOptions) (*VerifyReport, error) {
	s, err := signer.New(opts.Key, opts.Mode)
	if err != nil {
		return nil, err
	}
	sig, elapsed, err := s.Sign(opts.M)
	if err != nil {
		return nil, err
	}
	return &VerifyReport{Signature: sig, Elapsed: elapsed, Valid: s.Verify(opts.M, sig)}, nil
}

// BenchOptions configures a Bench run.
type BenchOptions struct {
	Bits     int
	Duration time.Duration
	Samples  int
}

// BenchSample is one measured window of Context.Product throughput.
type BenchSample struct {
	Operations   uint64
	Elapsed      time.Duration
	OpsPerSecond float64
}

// BenchReport is the result of a Bench run.
type BenchReport struct {
	Samples         []BenchSample
	TotalOps        uint64
	TotalTime       time.Duration
	AvgOpsPerSecond float64
}

// Bench measures Context.Product throughput against a synthetic odd modulus
// of the requested bit width, the same repeated-sampling shape as the
// teacher's RunBenchmark/benchmarkSquaring, repointed from TLP squaring to
// Montgomery products so operators can size a PlainSleep sleep constant
// relative to real hardware.
func Bench(opts BenchOptions) (*BenchReport, error) {
	if opts.Bits <= 0 || opts.Samples <= 0 {
		return nil, errs.New(errs.MalformedInput, "ops: bench requires positive bits and sample count")
	}
	width := (opts.Bits + bigint.WordBits - 1) / bigint.WordBits
	n := bigint.New(width).SetBit(opts.Bits - 1).SetBit(0)

	ctx, err := montgomery.NewContext(n)
	if err != nil {
		return nil, err
	}
	x := ctx.ToMontgomery(bigint.FromUint64(width, 3))

	samples := make([]BenchSample, opts.Samples)
	var totalOps uint64
	var totalTime time.Duration
	for i := 0; i < opts.Samples; i++ {
		ops, elapsed := benchProduct(ctx, x, opts.Duration)
		samples[i] = BenchSample{Operations: ops, Elapsed: elapsed, OpsPerSecond: float64(ops) / elapsed.Seconds()}
		totalOps += ops
		totalTime += elapsed
	}

	return &BenchReport{
		Samples:         samples,
		TotalOps:        totalOps,
		TotalTime:       totalTime,
		AvgOpsPerSecond: float64(totalOps) / totalTime.Seconds(),
	}, nil
}

func benchProduct(ctx *montgomery.Context, x bigint.BigInt, duration time.Duration) (uint64, time.Duration) {
	var operations uint64
	start := time.Now()
	end := start.Add(duration)
	for time.Now().Before(end) {
		for i := 0; i < 1000; i++ {
			x = ctx.Product(x, x)
			operations++
		}
	}
	return operations, time.Since(start)
}
