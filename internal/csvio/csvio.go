// Package csvio reads and writes the timing-sample CSV format: one header
// row followed by (message, duration, step4) data rows. It replaces the
// teacher's binary EncryptedFile read/write pair with a text format, since
// the samples here are meant to be inspected and replayed by hand, not just
// round-tripped by the tool that wrote them.
package csvio

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/crypto/blake2b"

	"rsatiming/internal/attack"
	"rsatiming/internal/bigint"
	"rsatiming/internal/errs"
)

var header = []string{"message", "duration", "step4"}

// SampleBatch is an in-memory, immutable view of a parsed CSV file: the
// modulus width samples were generated under, the parsed samples themselves,
// and an integrity digest over their canonical encoding.
type SampleBatch struct {
	Width   int
	Samples []attack.TimingSample
	Digest  [32]byte
}

// WriteSamples writes samples as CSV: message (decimal), duration
// (nanoseconds), step4 (1 or 2 if the sample carries a label, empty
// otherwise).
func WriteSamples(w io.Writer, samples []attack.TimingSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return errs.Wrap(err, "csvio: writing header")
	}
	for i, s := range samples {
		row := []string{
			s.M.String(),
			strconv.FormatInt(s.Duration.Nanoseconds(), 10),
			step4Column(s),
		}
		if err := cw.Write(row); err != nil {
			return errs.Wrap(err, "csvio: writing row "+strconv.Itoa(i))
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errs.Wrap(err, "csvio: flushing writer")
	}
	return nil
}

func step4Column(s attack.TimingSample) string {
	if !s.Labeled {
		return ""
	}
	return strconv.Itoa(s.Label + 1)
}

// ReadSamples parses a CSV sample file into a SampleBatch, sized to width
// words per message. Malformed rows are collected into a single
// *multierror.Error (one entry per bad row) classified MalformedInput,
// instead of aborting at the first one, so a caller can see every offending
// line at once.
func ReadSamples(r io.Reader, width int) (SampleBatch, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return SampleBatch{}, errs.Wrap(err, "csvio: reading CSV")
	}
	if len(records) == 0 {
		return SampleBatch{}, errs.New(errs.MalformedInput, "csvio: empty sample file")
	}

	var merr *multierror.Error
	samples := make([]attack.TimingSample, 0, len(records)-1)
	for i, rec := range records[1:] {
		rowNum := i + 2 // header is row 1
		s, err := parseRow(rec, width)
		if err != nil {
			merr = multierror.Append(merr, errs.Wrap(err, "csvio: row "+strconv.Itoa(rowNum)))
			continue
		}
		samples = append(samples, s)
	}
	if merr.ErrorOrNil() != nil {
		return SampleBatch{}, errs.New(errs.MalformedInput, merr.Error())
	}

	digest, err := digestSamples(samples)
	if err != nil {
		return SampleBatch{}, err
	}
	return SampleBatch{Width: width, Samples: samples, Digest: digest}, nil
}

func parseRow(rec []string, width int) (attack.TimingSample, error) {
	if len(rec) < 2 {
		return attack.TimingSample{}, errs.New(errs.MalformedInput, "csvio: row has fewer than 2 fields")
	}
	m, err := bigint.ParseDecimal(width, rec[0])
	if err != nil {
		return attack.TimingSample{}, err
	}
	ns, err := strconv.ParseInt(rec[1], 10, 64)
	if err != nil {
		return attack.TimingSample{}, errs.New(errs.MalformedInput, "csvio: invalid duration \""+rec[1]+"\"")
	}
	if ns < 0 {
		return attack.TimingSample{}, errs.New(errs.MalformedInput, "csvio: negative duration")
	}

	s := attack.TimingSample{M: m, Duration: time.Duration(ns)}
	if len(rec) >= 3 && rec[2] != "" {
		step4, err := strconv.Atoi(rec[2])
		if err != nil || (step4 != 1 && step4 != 2) {
			return attack.TimingSample{}, errs.New(errs.MalformedInput, "csvio: step4 must be 1 or 2")
		}
		s.Label = step4 - 1
		s.Labeled = true
	}
	return s, nil
}

// digestSamples computes BLAKE2b-256 over each row's canonical bytes (fixed-
// width message encoding followed by its duration as 8 big-endian bytes),
// in insertion order -- a corruption guard for replayed attack runs, not a
// cryptographic commitment over secret data.
func digestSamples(samples []attack.TimingSample) ([32]byte, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, errs.Wrap(err, "csvio: initializing blake2b")
	}
	for _, s := range samples {
		h.Write(s.M.Bytes())
		var durBytes [8]byte
		ns := uint64(s.Duration.Nanoseconds())
		for i := 0; i < 8; i++ {
			durBytes[7-i] = byte(ns >> (8 * i))
		}
		h.Write(durBytes[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out, nil
}
