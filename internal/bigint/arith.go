package bigint

import (
	"math/bits"

	"rsatiming/internal/errs"
)

// Add returns a+b+cin truncated to Width() words, plus the carry out of the
// top word. a and b must share the same width. No allocation beyond the
// single result BigInt.
func Add(a, b BigInt, cin uint64) (sum BigInt, carryOut uint64) {
	mustSameWidth(a, b)
	out := New(len(a.words))
	carry := cin
	for i := range a.words {
		var c0, c1 uint64
		out.words[i], c0 = bits.Add64(a.words[i], b.words[i], 0)
		out.words[i], c1 = bits.Add64(out.words[i], carry, 0)
		carry = c0 + c1
	}
	return out, carry
}

// Sub returns a-b-bin truncated to Width() words (wrapping modulo 2^(width*64)
// on underflow), plus the borrow out of the top word. a and b must share the
// same width.
func Sub(a, b BigInt, bin uint64) (diff BigInt, borrowOut uint64) {
	mustSameWidth(a, b)
	out := New(len(a.words))
	borrow := bin
	for i := range a.words {
		var b0, b1 uint64
		out.words[i], b0 = bits.Sub64(a.words[i], b.words[i], 0)
		out.words[i], b1 = bits.Sub64(out.words[i], borrow, 0)
		borrow = b0 + b1
	}
	return out, borrow
}

// Mul returns the full 2*Width()-word product of a and b split into a high
// half and a low half, each Width() words wide: the product equals
// hi*2^(Width()*64) + lo. a and b must share the same width.
func Mul(a, b BigInt) (hi, lo BigInt) {
	mustSameWidth(a, b)
	width := len(a.words)
	acc := make([]uint64, 2*width)
	for i := 0; i < width; i++ {
		if a.words[i] == 0 {
			continue
		}
		var carry uint64
		for j := 0; j < width; j++ {
			h, l := bits.Mul64(a.words[i], b.words[j])
			var c0, c1 uint64
			acc[i+j], c0 = bits.Add64(acc[i+j], l, 0)
			acc[i+j], c1 = bits.Add64(acc[i+j], carry, 0)
			carry = h + c0 + c1
		}
		// Propagate the remaining carry through the rest of the accumulator.
		for k := i + width; carry != 0 && k < len(acc); k++ {
			var c uint64
			acc[k], c = bits.Add64(acc[k], carry, 0)
			carry = c
		}
	}
	lo = BigInt{words: append([]uint64(nil), acc[:width]...)}
	hi = BigInt{words: append([]uint64(nil), acc[width:]...)}
	return hi, lo
}

// divWord divides the 128-bit value (hi:lo) by the nonzero single word d,
// returning quotient and remainder, using math/bits' 64x64->128 division.
func divWord(hi, lo, d uint64) (q, r uint64) {
	if hi >= d {
		// Knuth D's overflow case can't happen when hi is itself a previous
		// remainder (< d); guard anyway rather than let bits.Div64 panic silently.
		panic("bigint: divWord overflow")
	}
	return bits.Div64(hi, lo, d)
}

// DivMod computes the quotient and remainder of u/v using Knuth's Algorithm D
// (TAOCP vol 2, 4.3.1): normalize so v's top bit is set, guess each quotient
// digit from the top two words of the remaining dividend, then correct for
// over-estimation. u and v must share the same width; v must be nonzero.
func DivMod(u, v BigInt) (q, r BigInt, err error) {
	mustSameWidth(u, v)
	width := len(u.words)
	if v.IsZero() {
		return BigInt{}, BigInt{}, errs.New(errs.DivByZero, "bigint: division by zero")
	}
	if u.Cmp(v) < 0 {
		return New(width), u.Clone(), nil
	}

	// Reduce to the minimal word count actually used, per Knuth's m/n notation,
	// to keep the working arrays small; widen results back to width at the end.
	n := wordsUsed(v.words)
	m := wordsUsed(u.words) - n

	if n == 1 {
		// Single-word divisor: the simple top-down long division suffices.
		qOut := New(width)
		rem := uint64(0)
		for i := wordsUsed(u.words) - 1; i >= 0; i-- {
			qOut.words[i], rem = divWord(rem, u.words[i], v.words[0])
		}
		return qOut, FromUint64(width, rem), nil
	}

	// Normalize: shift both operands left so v's top bit is 1.
	shift := WordBits - bitLen64(v.words[n-1])
	vn := make([]uint64, n)
	vShifted := v.ShiftLeft(shift)
	copy(vn, vShifted.words[:n])

	un := make([]uint64, m+n+1)
	uShifted := u.ShiftLeft(shift)
	copy(un, uShifted.words[:m+n])
	// The extra leading word captures bits carried out of the top of u by the shift.
	if shift > 0 {
		un[m+n] = u.words[wordsUsed(u.words)-1] >> (WordBits - shift)
	}

	qOut := New(width)
	for j := m; j >= 0; j-- {
		// D3: estimate qhat from the top two remaining digits. When the top
		// digit equals vn's leading digit the true quotient digit can't be
		// computed by division (it would overflow a word), but it must be the
		// maximal digit, so skip straight to that and let D4's subtraction
		// correction (the "add back" step) absorb any remaining error.
		qhat := ^uint64(0)
		top := un[j+n]
		if top != vn[n-1] {
			var rhat uint64
			qhat, rhat = bits.Div64(top, un[j+n-1], vn[n-1])
			hi, lo := bits.Mul64(qhat, vn[n-2])
			for greaterThan128(hi, lo, rhat, un[j+n-2]) {
				qhat--
				prevRhat := rhat
				rhat += vn[n-1]
				if rhat < prevRhat { // rhat overflowed: no further digit can be too large
					break
				}
				hi, lo = bits.Mul64(qhat, vn[n-2])
			}
		}

		// Multiply and subtract: un[j:j+n+1] -= qhat * vn[0:n].
		var borrow uint64
		var carry uint64
		for i := 0; i < n; i++ {
			h, l := bits.Mul64(qhat, vn[i])
			l, c0 := bits.Add64(l, carry, 0)
			carry = h + c0
			var b uint64
			un[j+i], b = bits.Sub64(un[j+i], l, borrow)
			borrow = b
		}
		un[j+n], borrow = bits.Sub64(un[j+n], carry, borrow)

		if borrow != 0 {
			// qhat was one too large: add back vn once and decrement qhat.
			qhat--
			var c uint64
			for i := 0; i < n; i++ {
				var s uint64
				s, c = bits.Add64(un[j+i], vn[i], c)
				un[j+i] = s
			}
			un[j+n], _ = bits.Add64(un[j+n], 0, c)
		}
		qOut.words[j] = qhat
	}

	// Denormalize the remainder.
	rWords := New(width)
	copy(rWords.words[:n], un[:n])
	r = rWords.ShiftRight(shift)
	return qOut, r, nil
}

// greaterThan128 reports whether the 128-bit value (xHi:xLo) exceeds
// (yHi:yLo), each given as a pair of 64-bit halves.
func greaterThan128(xHi, xLo, yHi, yLo uint64) bool {
	if xHi != yHi {
		return xHi > yHi
	}
	return xLo > yLo
}

// wordsUsed returns the number of words up to and including the highest
// nonzero word, or 1 if words is entirely zero.
func wordsUsed(words []uint64) int {
	for i := len(words) - 1; i >= 0; i-- {
		if words[i] != 0 {
			return i + 1
		}
	}
	return 1
}
