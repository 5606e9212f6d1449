package climd

import (
	"flag"
	"fmt"
	"os"
	"time"

	"rsatiming/internal/bigint"
	"rsatiming/internal/csvio"
	"rsatiming/internal/errs"
	"rsatiming/internal/obslog"
	"rsatiming/internal/ops"
)

// AttackCommand handles the attack subcommand: read a CSV sample file and
// recover the private exponent's bits from the recorded timings. Returns the
// process exit code: 0 on successful recovery and verification, 3 when
// recovery completes but the recovered exponent fails e*d == 1 (mod phi),
// 4 when a round has fewer than the minimum samples in one class, 2 on a
// usage, parse or I/O error.
func AttackCommand(args []string) int {
	fs := flag.NewFlagSet("attack", flag.ContinueOnError)

	var (
		in          = fs.String("in", "data.csv", "input CSV sample path")
		n           = fs.String("n", "", "modulus (decimal, required)")
		phi         = fs.String("phi", "", "totient, for verifying the recovered exponent (optional)")
		e           = fs.String("e", "", "public exponent, for verifying the recovered exponent (optional)")
		thresholdNS = fs.Int64("threshold-ns", 0, "mean-duration gap (ns) above which a round's slow class is bit 1")
		maxBits     = fs.Int("max-bits", 0, "number of bits to recover (0 = full modulus width)")
		wordsize    = fs.Int("width", 4, "word width (64-bit words) the modulus was generated with")
		verbose     = fs.Bool("verbose", false, "emit structured progress logs")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s attack --n N --threshold-ns T [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nRecover a private exponent's bits from a timing sample CSV\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *n == "" {
		fs.Usage()
		fmt.Fprintln(os.Stderr, "attack: --n is required")
		return 2
	}

	nv, err := bigint.ParseDecimal(*wordsize, *n)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attack: %v\n", err)
		return 2
	}

	f, err := os.Open(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attack: %v\n", err)
		return 2
	}
	defer f.Close()

	batch, err := csvio.ReadSamples(f, *wordsize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attack: %v\n", err)
		return 2
	}

	logger, err := obslog.New(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attack: %v\n", err)
		return 2
	}
	defer logger.Sync()

	opts := ops.AttackOptions{
		N:           nv,
		Samples:     batch.Samples,
		ThresholdNS: *thresholdNS,
		MaxBits:     *maxBits,
		Logger:      logger,
	}
	if *phi != "" && *e != "" {
		phiV, err := bigint.ParseDecimal(*wordsize, *phi)
		if err != nil {
			fmt.Fprintf(os.Stderr, "attack: %v\n", err)
			return 2
		}
		eV, err := bigint.ParseDecimal(*wordsize, *e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "attack: %v\n", err)
			return 2
		}
		opts.Phi, opts.E = &phiV, &eV
	}

	start := time.Now()
	report, err := ops.Attack(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "attack: %v\n", err)
		if errs.Is(err, errs.InsufficientSamples) {
			return 4
		}
		return 2
	}

	fmt.Printf("recovered %d bits in %s\n", len(report.State.RecoveredBits), time.Since(start).Round(time.Millisecond))
	fmt.Printf("d = %s\n", report.RecoveredD.String())
	if report.Checked {
		fmt.Printf("verification: e*d == 1 (mod phi): %v\n", report.Valid)
		if !report.Valid {
			return 3
		}
	}
	return 0
}
