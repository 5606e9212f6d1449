// Package exp implements modular exponentiation in three interchangeable
// modes that share the same Montgomery context: a naive square-and-multiply
// (leaky through both its data-dependent branch and Product's data-dependent
// final subtraction), a sleep-amplified variant of the same algorithm for
// building synthetic timing datasets, and the Montgomery Powering Ladder
// (branch-free, constant per-bit work, used as the hardened signer mode).
package exp

import (
	"time"

	"rsatiming/internal/bigint"
	"rsatiming/internal/montgomery"
)

// Mode selects which modular-exponentiation strategy a Signer uses.
type Mode int

const (
	// Plain is the naive square-and-multiply signer: it leaks through
	// Product's data-dependent final subtraction and through skipping the
	// multiply step entirely on zero bits.
	Plain Mode = iota
	// PlainSleep is Plain with an artificial sleep after each Montgomery
	// product whose final subtraction fires (products that skip it do not
	// sleep), amplifying the same leak into a signal large enough to recover
	// over a network.
	PlainSleep
	// Ladder is the Montgomery Powering Ladder: constant operations and
	// constant-time products regardless of any exponent bit.
	Ladder
)

func (m Mode) String() string {
	switch m {
	case Plain:
		return "plain"
	case PlainSleep:
		return "plain-sleep"
	case Ladder:
		return "ladder"
	default:
		return "unknown"
	}
}

// ModExp computes base^d mod ctx.Modulus() by naive square-and-multiply in
// Montgomery form. Bits are walked from the most significant set bit down to
// bit 0; a multiply is only performed when the bit is 1, so the number and
// timing of Montgomery products is a direct function of d -- this is the
// leak the attack package is built to recover.
func ModExp(base, d bigint.BigInt, ctx *montgomery.Context) bigint.BigInt {
	return modExp(base, d, ctx, 0)
}

// ModExpSleep is ModExp with a fixed time.Sleep(sleep) inserted on the
// conditional branch: whenever a Montgomery product's own final-subtract
// fires, as Product's timing leak already depends on, the sleep amplifies
// that real (but tiny) hardware timing difference into a gap attack.Run can
// recover over a slow or noisy measurement channel, without changing which
// bits leak or which products execute.
func ModExpSleep(base, d bigint.BigInt, ctx *montgomery.Context, sleep time.Duration) bigint.BigInt {
	return modExp(base, d, ctx, sleep)
}

func modExp(base, d bigint.BigInt, ctx *montgomery.Context, sleep time.Duration) bigint.BigInt {
	width := ctx.Modulus().Width()
	one := bigint.FromUint64(width, 1)
	result := ctx.ToMontgomery(one)
	baseMont := ctx.ToMontgomery(base)

	top := d.NumBits()
	for i := top - 1; i >= 0; i-- {
		result = productSleeping(ctx, result, result, sleep)
		if d.Bit(i) == 1 {
			result = productSleeping(ctx, result, baseMont, sleep)
		}
	}
	return ctx.FromMontgomery(result)
}

// productSleeping computes ctx.Product(a, b) and, when sleep > 0, sleeps for
// sleep whenever that specific product's final subtraction fires.
func productSleeping(ctx *montgomery.Context, a, b bigint.BigInt, sleep time.Duration) bigint.BigInt {
	if sleep <= 0 {
		return ctx.Product(a, b)
	}
	fires := ctx.FinalSubtractFires(a, b)
	result := ctx.Product(a, b)
	if fires {
		time.Sleep(sleep)
	}
	return result
}

// PowerLadder computes base^d mod ctx.Modulus() with the Montgomery Powering
// Ladder: every exponent bit, regardless of value, does exactly one constant-
// time product into each of two running registers between two constant-time
// conditional swaps, and every bit position of d's BigInt width is walked
// (leading zero bits included), so the sequence and timing of operations is
// identical for every d held at the same BigInt width.
func PowerLadder(base, d bigint.BigInt, ctx *montgomery.Context) bigint.BigInt {
	width := ctx.Modulus().Width()
	one := bigint.FromUint64(width, 1)

	r0 := ctx.ToMontgomery(one)
	r1 := ctx.ToMontgomery(base)

	totalBits := width * bigint.WordBits
	for i := totalBits - 1; i >= 0; i-- {
		b := d.Bit(i)
		r0, r1 = cswap(r0, r1, b)
		r1 = ctx.ProductCT(r0, r1)
		r0 = ctx.ProductCT(r0, r0)
		r0, r1 = cswap(r0, r1, b)
	}
	return ctx.FromMontgomery(r0)
}

// cswap conditionally swaps a and b when swap == 1, leaving them unchanged
// when swap == 0, without branching on swap: every word of both operands is
// always read and written, the same shape as curve25519's constant-time
// coordinate swap.
func cswap(a, b bigint.BigInt, swap uint) (outA, outB bigint.BigInt) {
	mask := uint64(0) - uint64(swap)
	width := a.Width()
	aw := make([]uint64, width)
	bw := make([]uint64, width)
	for i := 0; i < width; i++ {
		av := a.WordAt(i)
		bv := b.WordAt(i)
		t := mask & (av ^ bv)
		aw[i] = av ^ t
		bw[i] = bv ^ t
	}
	return bigint.FromWords(aw), bigint.FromWords(bw)
}
