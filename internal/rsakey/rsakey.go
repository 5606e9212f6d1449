// Package rsakey builds a textbook (unpadded) RSA key pair from two
// caller-supplied primes, so the timing lab can fix p and q directly to
// reproduce a scenario instead of generating fresh random primes each run.
package rsakey

import (
	"rsatiming/internal/bigint"
	"rsatiming/internal/errs"
)

// Key is a textbook RSA key pair: no OAEP/PSS padding, no CRT shortcuts in
// the signer's critical path, since the whole point of the lab is to expose
// the raw modular exponentiation underneath.
type Key struct {
	P, Q  bigint.BigInt
	N     bigint.BigInt
	Phi   bigint.BigInt
	E, D  bigint.BigInt
	width int
}

// New builds a Key from primes p and q (same word width) and public exponent
// e, computing n = p*q, phi = (p-1)(q-1), and d = e^-1 mod phi via the
// extended Euclidean algorithm. p and q are not checked for primality -- the
// lab's scenarios fix specific small primes deliberately, and that is the
// caller's responsibility.
func New(p, q, e bigint.BigInt) (*Key, error) {
	if p.Width() != q.Width() {
		return nil, errs.New(errs.InvalidModulus, "rsakey: p and q must share a word width")
	}
	halfWidth := p.Width()
	width := 2 * halfWidth

	pFull := p.Resize(width)
	qFull := q.Resize(width)
	n, err := mulExact(pFull, qFull, width, "rsakey: p*q overflows the modulus width")
	if err != nil {
		return nil, err
	}

	one := bigint.FromUint64(width, 1)
	pm1, _ := bigint.Sub(pFull, one, 0)
	qm1, _ := bigint.Sub(qFull, one, 0)
	phi, err := mulExact(pm1, qm1, width, "rsakey: (p-1)*(q-1) overflows the modulus width")
	if err != nil {
		return nil, err
	}

	eFull := e.Resize(width)
	d, err := modInverse(eFull, phi, width)
	if err != nil {
		return nil, err
	}

	return &Key{P: pFull, Q: qFull, N: n, Phi: phi, E: eFull, D: d, width: width}, nil
}

// Width returns the word width of N, D, and every operand derived from them.
func (k *Key) Width() int { return k.width }

// PublicKey returns the (N, E) pair a verifier needs.
func (k *Key) PublicKey() (n, e bigint.BigInt) { return k.N.Clone(), k.E.Clone() }

// mulExact multiplies two width-word operands and requires the result to
// fit back into width words, returning msg as an Overflow error otherwise.
func mulExact(a, b bigint.BigInt, width int, msg string) (bigint.BigInt, error) {
	hi, lo := bigint.Mul(a, b)
	if !hi.IsZero() {
		return bigint.BigInt{}, errs.New(errs.Overflow, msg)
	}
	return lo, nil
}

// modInverse returns e^-1 mod phi via the extended Euclidean algorithm,
// returning a NonInvertible error when gcd(e, phi) != 1.
func modInverse(e, phi bigint.BigInt, width int) (bigint.BigInt, error) {
	// Bezout coefficients can transiently exceed width words before the
	// final reduction step brings them back into range, so the scratch
	// arithmetic runs at double width and is only narrowed at the end.
	workWidth := 2 * width

	oldR := newSigned(e.Resize(workWidth))
	r := newSigned(phi.Resize(workWidth))
	oldS := newSigned(bigint.FromUint64(workWidth, 1))
	s := newSigned(bigint.New(workWidth))

	for !r.mag.IsZero() {
		q, rem, err := divSigned(oldR, r, workWidth)
		if err != nil {
			return bigint.BigInt{}, err
		}
		oldR, r = r, rem
		oldS, s = s, subSigned(oldS, mulSigned(q, s))
	}

	if !(oldR.mag.Equal(bigint.FromUint64(workWidth, 1)) && !oldR.neg) {
		return bigint.BigInt{}, errs.New(errs.NonInvertible, "rsakey: e has no inverse mod phi(n)")
	}

	// Normalize oldS into [0, phi) by adding phi until non-negative.
	phiWork := phi.Resize(workWidth)
	for oldS.neg {
		oldS = addSigned(oldS, newSigned(phiWork))
	}
	reduced, err := modSigned(oldS, phiWork, workWidth)
	if err != nil {
		return bigint.BigInt{}, err
	}
	return reduced.Resize(width), nil
}

// signed is a fixed-width magnitude paired with a sign, used only inside
// modInverse's extended Euclidean walk; bigint.BigInt itself stays unsigned.
type signed struct {
	neg bool
	mag bigint.BigInt
}

func newSigned(v bigint.BigInt) signed { return signed{neg: false, mag: v} }

func negSigned(a signed) signed {
	if a.mag.IsZero() {
		return a
	}
	return signed{neg: !a.neg, mag: a.mag}
}

func addSigned(a, b signed) signed {
	if a.neg == b.neg {
		sum, _ := bigint.Add(a.mag, b.mag, 0)
		return signed{neg: a.neg, mag: sum}
	}
	if a.mag.Cmp(b.mag) >= 0 {
		diff, _ := bigint.Sub(a.mag, b.mag, 0)
		return signed{neg: a.neg && !diff.IsZero(), mag: diff}
	}
	diff, _ := bigint.Sub(b.mag, a.mag, 0)
	return signed{neg: b.neg && !diff.IsZero(), mag: diff}
}

func subSigned(a, b signed) signed { return addSigned(a, negSigned(b)) }

func mulSigned(a, b signed) signed {
	_, lo := bigint.Mul(a.mag, b.mag)
	neg := (a.neg != b.neg) && !lo.IsZero()
	return signed{neg: neg, mag: lo}
}

// divSigned returns (a/b truncated toward zero, a - (a/b)*b) for the
// magnitudes, with signs combined the same way Go's integer division does.
func divSigned(a, b signed, width int) (q, rem signed, err error) {
	qm, rm, derr := bigint.DivMod(a.mag, b.mag)
	if derr != nil {
		return signed{}, signed{}, derr
	}
	qNeg := (a.neg != b.neg) && !qm.IsZero()
	rNeg := a.neg && !rm.IsZero()
	return signed{neg: qNeg, mag: qm}, signed{neg: rNeg, mag: rm}, nil
}

// modSigned reduces a signed value already known to be non-negative into
// [0, m) -- a may still hold extra multiples of m from the Euclidean walk.
func modSigned(a signed, m bigint.BigInt, width int) (bigint.BigInt, error) {
	if a.neg {
		return bigint.BigInt{}, errs.New(errs.NonInvertible, "rsakey: unexpected negative coefficient")
	}
	_, rem, err := bigint.DivMod(a.mag, m)
	if err != nil {
		return bigint.BigInt{}, err
	}
	return rem, nil
}
