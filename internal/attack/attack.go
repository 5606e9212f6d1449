// Package attack implements the Kocher-style timing side-channel recovery of
// a naive signer's private exponent, bit by bit from the most significant
// down, by partitioning observed signing durations according to a
// hypothesized intermediate Montgomery product's simulated cost.
package attack

import (
	"context"
	"time"

	"rsatiming/internal/bigint"
	"rsatiming/internal/errs"
	"rsatiming/internal/montgomery"
)

// TimingSample is one observed (message, signing duration) pair. Label
// records the most recent round's class assignment (0 or 1); it is
// meaningless before the first round and is overwritten every round, not
// accumulated -- only the final round's classification is kept. Labeled is
// false until Run has classified the sample at least once.
type TimingSample struct {
	M        bigint.BigInt
	Duration time.Duration
	Label    int
	Labeled  bool
}

// AttackState is the attack's result: the recovered bits, most significant
// first, and the sample set as classified by the final round.
type AttackState struct {
	N             bigint.BigInt
	Samples       []TimingSample
	RecoveredBits []int
	Threshold     time.Duration
}

// ClassifyFunc decides whether the hypothetical Montgomery product MP(mBar,
// sBar) -- the multiply a naive signer would perform if the bit under test
// were 1 -- would trigger the slow (final-subtract) path. The default,
// installed when RunOptions.Classify is nil, is ctx.FinalSubtractFires.
type ClassifyFunc func(ctx *montgomery.Context, mBar, sBar bigint.BigInt) bool

// DefaultMinSamplesPerClass is the sample floor below which a round's class
// means are considered too noisy to trust.
const DefaultMinSamplesPerClass = 500

// RunOptions configures a Run call.
type RunOptions struct {
	// MaxBits bounds the number of rounds. Zero means n.Width()*64 (the
	// attack doesn't know phi(n) a priori, so it bounds rounds by the
	// modulus's own bit width rather than any tighter exponent bound).
	MaxBits int
	// MinSamplesPerClass is the per-class sample floor; zero means
	// DefaultMinSamplesPerClass.
	MinSamplesPerClass int
	// Classify overrides the final-subtract predicate; nil means the default.
	Classify ClassifyFunc
	// Ctx is checked for cancellation at each bit boundary; nil means
	// context.Background (never cancels).
	Ctx context.Context
}

// Run recovers d's bits from high to low by, at each round, simulating every
// sample's signer state up through the bits already recovered, hypothesizing
// the next bit is 1, and comparing the mean observed duration of samples
// where that hypothetical product would trigger the slow path against
// samples where it wouldn't. Samples are processed in the order given;
// permuting them must not change the recovered bits, since only the set
// membership of each class (not its order) feeds the decision.
func Run(n bigint.BigInt, samples []TimingSample, threshold time.Duration, opts RunOptions) (AttackState, error) {
	ctx, err := montgomery.NewContext(n)
	if err != nil {
		return AttackState{}, err
	}

	maxBits := opts.MaxBits
	if maxBits <= 0 {
		maxBits = n.Width() * bigint.WordBits
	}
	minSamples := opts.MinSamplesPerClass
	if minSamples <= 0 {
		minSamples = DefaultMinSamplesPerClass
	}
	classify := opts.Classify
	if classify == nil {
		classify = func(c *montgomery.Context, mBar, sBar bigint.BigInt) bool {
			return c.FinalSubtractFires(mBar, sBar)
		}
	}
	cancelCtx := opts.Ctx
	if cancelCtx == nil {
		cancelCtx = context.Background()
	}

	width := n.Width()
	one := bigint.FromUint64(width, 1)

	// mBar_i is each sample's message in Montgomery form; state_i is the
	// running R0 register the naive signer would hold after the bits
	// recovered so far (R0 = M_i^p where p is the prefix of d seen up to
	// the current round).
	mBar := make([]bigint.BigInt, len(samples))
	state := make([]bigint.BigInt, len(samples))
	for i, s := range samples {
		mBar[i] = ctx.ToMontgomery(s.M)
		state[i] = ctx.ToMontgomery(one)
	}

	out := make([]TimingSample, len(samples))
	copy(out, samples)

	var recovered []int
	for round := 0; round < maxBits; round++ {
		select {
		case <-cancelCtx.Done():
			return AttackState{N: n.Clone(), Samples: out, RecoveredBits: recovered, Threshold: threshold}, nil
		default:
		}

		// The square step always runs, regardless of the bit under test.
		for i := range state {
			state[i] = ctx.Product(state[i], state[i])
		}

		var sumA, sumB time.Duration
		var countA, countB int
		classA := make([]bool, len(samples))
		for i := range samples {
			slow := classify(ctx, mBar[i], state[i])
			classA[i] = slow
			if slow {
				sumA += out[i].Duration
				countA++
			} else {
				sumB += out[i].Duration
				countB++
			}
		}
		if countA < minSamples || countB < minSamples {
			return AttackState{}, errs.New(errs.InsufficientSamples,
				"attack: round has fewer than the minimum samples in one class")
		}

		meanA := sumA / time.Duration(countA)
		meanB := sumB / time.Duration(countB)

		bit := 0
		if meanA-meanB > threshold {
			bit = 1
		}
		recovered = append(recovered, bit)

		for i := range samples {
			if classA[i] {
				out[i].Label = 1
			} else {
				out[i].Label = 0
			}
			out[i].Labeled = true
			if bit == 1 {
				state[i] = ctx.Product(state[i], mBar[i])
			}
		}
	}

	return AttackState{N: n.Clone(), Samples: out, RecoveredBits: recovered, Threshold: threshold}, nil
}
