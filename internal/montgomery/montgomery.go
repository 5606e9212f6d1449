// Package montgomery implements the Montgomery reduction domain: given an
// odd modulus n, it derives n' and r = 2^(width*64) and exposes the
// Montgomery product MP(a, b) = a*b*r^-1 mod n for operands already in
// Montgomery form.
//
// Montgomery form avoids the per-multiplication division a full modular
// reduction would need: r is a power of two chosen larger than n, so
// reduction mod r is a word-slice truncation instead of a divmod call.
package montgomery

import (
	"rsatiming/internal/bigint"
	"rsatiming/internal/errs"
)

// Context holds the precomputed values needed by Product: the modulus n, its
// Montgomery complement n', r mod n, and r^2 mod n (used to move values into
// Montgomery form). r itself is never materialized — it's implicit in the
// BigInt width, r = 2^(Width()*64).
type Context struct {
	n     bigint.BigInt
	nPrime bigint.BigInt
	rModN bigint.BigInt
	rrModN bigint.BigInt
	width int
}

// NewContext derives a Montgomery context for the given odd modulus n. n's
// width determines r = 2^(n.Width()*64); n must be nonzero and odd. r is
// tightest when n's top word is nonzero; a modulus that uses fewer words than
// its container is accepted and still works, it just gets a looser r.
func NewContext(n bigint.BigInt) (*Context, error) {
	if n.IsZero() || n.Bit(0) == 0 {
		return nil, errs.New(errs.InvalidModulus, "montgomery: modulus must be odd and nonzero")
	}
	width := n.Width()
	nPrime := computeNPrime(n, width)

	// r mod n: r = 2^(width*64). Compute it as ((2^(width*64 - 1) mod n) * 2) mod n
	// via repeated doubling rather than a direct shift-then-divmod, since r
	// itself doesn't fit in a width-word BigInt.
	rModN := computeRModN(n, width)
	// r^2 mod n: MP(a, r^2 mod n) = a*r mod n, the Montgomery form of a.
	rrModN := doubleModN(rModN, n, width*bigint.WordBits)

	return &Context{n: n.Clone(), nPrime: nPrime, rModN: rModN, rrModN: rrModN, width: width}, nil
}

// computeNPrime runs the bitwise iterative algorithm of the design: starting
// from (rInv, nPrime) = (1, 0), maintain the invariant r*rInv - n*nPrime =
// 2^(k-i) after i iterations, where r = 2^k is the final radix. If rInv is
// even, halving both rInv and nPrime halves the right-hand side; if rInv is
// odd, rInv becomes (rInv+n)/2 and nPrime becomes (nPrime+r)/2 = nPrime/2 +
// r/2, which halves it the same way (nPrime is always even before the halving
// while i < k). After k = width*64 iterations the invariant becomes
// r*rInv - n*nPrime = 1, i.e. nPrime = -n^-1 mod r.
func computeNPrime(n bigint.BigInt, width int) bigint.BigInt {
	k := width * bigint.WordBits
	dw := 2 * width
	rInv := bigint.FromUint64(dw, 1)
	nPrime := bigint.New(dw)
	nWide := n.Resize(dw)
	halfR := bigint.FromUint64(dw, 1).ShiftLeft(k - 1) // r/2

	for i := 0; i < k; i++ {
		if rInv.Bit(0) == 0 {
			rInv = rInv.ShiftRight(1)
			nPrime = nPrime.ShiftRight(1)
		} else {
			rInv, _ = bigint.Add(rInv, nWide, 0)
			rInv = rInv.ShiftRight(1)
			nPrime = nPrime.ShiftRight(1)
			nPrime, _ = bigint.Add(nPrime, halfR, 0)
		}
	}
	return nPrime.Resize(width)
}

// computeRModN returns 2^(width*64) mod n by doubling-and-reducing bit by
// bit, each step computed entirely with Width()-sized BigInt arithmetic.
func computeRModN(n bigint.BigInt, width int) bigint.BigInt {
	return doubleModN(bigint.FromUint64(width, 1), n, width*bigint.WordBits)
}

// doubleModN returns a*2^k mod n for 0 <= a < n, doubling and reducing once
// per step; a carry out of the top word means the doubled value exceeds n.
func doubleModN(a, n bigint.BigInt, k int) bigint.BigInt {
	acc := a.Clone()
	for i := 0; i < k; i++ {
		var carry uint64
		acc, carry = bigint.Add(acc, acc, 0)
		if carry != 0 || acc.Cmp(n) >= 0 {
			acc, _ = bigint.Sub(acc, n, 0)
		}
	}
	return acc
}

// ToMontgomery converts a (0 <= a < n) into Montgomery form a*r mod n.
func (c *Context) ToMontgomery(a bigint.BigInt) bigint.BigInt {
	return c.Product(a, c.rrModN)
}

// FromMontgomery converts aMont = a*r mod n back to a.
func (c *Context) FromMontgomery(aMont bigint.BigInt) bigint.BigInt {
	one := bigint.FromUint64(c.width, 1)
	return c.Product(aMont, one)
}

// Modulus returns the context's modulus n.
func (c *Context) Modulus() bigint.BigInt { return c.n.Clone() }

// Product computes MP(a,b) = a*b*r^-1 mod n with a data-dependent final
// subtraction: this is the intentional timing leak surface the naive and
// sleep-amplified signers rely on. Use ProductCT for the constant-time
// variant.
func (c *Context) Product(a, b bigint.BigInt) bigint.BigInt {
	u, overflowed := c.reduce(a, b)
	if overflowed || u.Cmp(c.n) >= 0 {
		u, _ = bigint.Sub(u, c.n, 0)
	}
	return u
}

// ProductCT computes MP(a,b) with a branch-free final reduction: it always
// computes u-n and selects between u and u-n with a constant-time mask
// instead of a conditional, so the ladder signer leaks no bit-dependent
// timing through this step.
func (c *Context) ProductCT(a, b bigint.BigInt) bigint.BigInt {
	u, overflowed := c.reduce(a, b)
	diff, borrow := bigint.Sub(u, c.n, 0)
	// borrow == 1 means u < n (diff underflowed): keep u. Otherwise (borrow
	// == 0, or the reduction's addition overflowed past width+1 words, which
	// can only happen when u is already >= n): keep diff.
	var keepDiff uint64
	if borrow == 0 || overflowed {
		keepDiff = 1
	}
	return selectCT(u, diff, keepDiff)
}

// FinalSubtractFires reports whether Product(a, b) would execute its
// data-dependent final subtraction -- the single-bit timing distinguisher
// the attack package hypothesizes against. It does not affect Product's
// result, only exposes the branch decision Product already makes.
func (c *Context) FinalSubtractFires(a, b bigint.BigInt) bool {
	u, overflowed := c.reduce(a, b)
	return overflowed || u.Cmp(c.n) >= 0
}

// reduce performs the CIOS-style core of REDC shared by Product and
// ProductCT: t = a*b, m = (t mod r)*n' mod r, u = (t + m*n) / r. Because
// r = 2^(width*64), "mod r" and "/r" are word-slice truncation and a
// half-width shift, never a real division. Returns u and whether the
// addition overflowed past width+1 words (meaning u is known >= n already,
// since u < 2n always and the overflow case only arises when u is in [n,2n)).
func (c *Context) reduce(a, b bigint.BigInt) (u bigint.BigInt, overflowed bool) {
	tHi, tLo := bigint.Mul(a, b)
	_, m := bigint.Mul(tLo, c.nPrime) // low half only: (tLo * n') mod r
	mnHi, mnLo := bigint.Mul(m, c.n)

	sumLo, carry1 := bigint.Add(tLo, mnLo, 0)
	_ = sumLo // always zero by REDC's construction; kept only for clarity
	sumHi, carry2 := bigint.Add(tHi, mnHi, carry1)
	return sumHi, carry2 != 0
}

// selectCT returns b if keepB == 1, a if keepB == 0 (no other value is
// valid), computed without a data-dependent branch: the mask is derived
// arithmetically from keepB and every word of both operands is always
// touched, the same technique crypto/subtle's ConstantTimeSelect uses.
func selectCT(a, b bigint.BigInt, keepB uint64) bigint.BigInt {
	mask := 0 - keepB // keepB==1 -> all-ones; keepB==0 -> all-zero
	width := a.Width()
	words := make([]uint64, width)
	for i := 0; i < width; i++ {
		words[i] = (a.WordAt(i) &^ mask) | (b.WordAt(i) & mask)
	}
	return bigint.FromWords(words)
}
