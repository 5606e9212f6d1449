// Package errs classifies the error kinds named in the design: the
// classified failures surfaced by bigint, montgomery, attack, or csvio wrap
// one of the sentinels below with github.com/pkg/errors, so a caller can
// recover the kind through the wrap chain without string matching. Reader and
// writer errors that csvio passes through are wrapped without a Kind and
// classify as Unknown.
package errs

import "github.com/pkg/errors"

// Kind is a coarse failure classification, not a type hierarchy.
type Kind int

const (
	// Unknown is returned by Classify when err is nil or carries no Kind.
	Unknown Kind = iota
	InvalidModulus
	DivByZero
	NonInvertible
	Overflow
	InsufficientSamples
	MalformedInput
)

func (k Kind) String() string {
	switch k {
	case InvalidModulus:
		return "InvalidModulus"
	case DivByZero:
		return "DivByZero"
	case NonInvertible:
		return "NonInvertible"
	case Overflow:
		return "Overflow"
	case InsufficientSamples:
		return "InsufficientSamples"
	case MalformedInput:
		return "MalformedInput"
	default:
		return "Unknown"
	}
}

// kinded pairs a Kind with the error it classifies, so errors.Cause can find
// it at the bottom of a github.com/pkg/errors wrap chain.
type kinded struct {
	kind Kind
	msg  string
}

func (k *kinded) Error() string { return k.msg }

// New creates a classified error and wraps it with msg via github.com/pkg/errors,
// attaching a stack trace the way bnb-chain-tss-lib's crypto/commitments package does.
func New(kind Kind, msg string) error {
	return errors.WithStack(&kinded{kind: kind, msg: msg})
}

// Wrap attaches msg as context to err while preserving its Kind.
func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

// Classify walks the wrap chain via errors.Cause and returns the Kind
// attached by New, or Unknown if err is nil or was never classified.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}
	cause := errors.Cause(err)
	if k, ok := cause.(*kinded); ok {
		return k.kind
	}
	return Unknown
}

// Is reports whether err's classified Kind equals kind.
func Is(err error, kind Kind) bool {
	return Classify(err) == kind
}
