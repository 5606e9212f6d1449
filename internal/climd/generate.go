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
	"rsatiming/internal/progress"
	"rsatiming/internal/signer"
)

// GenerateCommand handles the generate subcommand: derive a key from p, q, e
// and write count signed-message timing samples to a CSV file. Returns the
// process exit code: 0 on success, 1 on an arithmetic precondition violation
// (even n, gcd(e, phi) != 1), 2 on an I/O error.
func GenerateCommand(args []string) int {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)

	var (
		p        = fs.String("p", "", "first prime (decimal, required)")
		q        = fs.String("q", "", "second prime (decimal, required)")
		e        = fs.String("e", "", "public exponent (decimal, required)")
		count    = fs.Int("count", 1000, "number of samples to generate")
		mode     = fs.String("mode", "ladder", "signer mode: plain, plain-sleep, ladder")
		sleepNS  = fs.Int64("sleep-ns", 0, "sleep in nanoseconds after each product whose final subtraction fires (plain-sleep only)")
		outFile  = fs.String("out", "data.csv", "output CSV path")
		wordsize = fs.Int("width", 4, "word width (64-bit words) to size p, q and e into; the modulus gets twice this width")
		verbose  = fs.Bool("verbose", false, "emit structured progress logs")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s generate --p P --q Q --e E [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSign random messages and record their timing as a CSV sample file\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *p == "" || *q == "" || *e == "" {
		fs.Usage()
		fmt.Fprintln(os.Stderr, "generate: --p, --q, and --e are required")
		return 1
	}

	pv, err1 := bigint.ParseDecimal(*wordsize, *p)
	qv, err2 := bigint.ParseDecimal(*wordsize, *q)
	ev, err3 := bigint.ParseDecimal(*wordsize, *e)
	if err := firstErr(err1, err2, err3); err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		return 1
	}

	sMode, err := parseMode(*mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		return 1
	}

	logger, err := obslog.New(*verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		return 2
	}
	defer logger.Sync()

	bar := progress.NewBar(uint64(*count))
	report, err := ops.Generate(ops.GenerateOptions{
		P: pv, Q: qv, E: ev,
		Mode:    sMode,
		Count:   *count,
		SleepNS: *sleepNS,
		Logger:  logger,
		Progress: func(done, total int, sampleElapsed time.Duration) {
			bar.Observe(uint64(done), sampleElapsed)
		},
	})
	bar.Finish()
	if err != nil {
		return exitForArithmeticError(err)
	}

	f, err := os.Create(*outFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		return 2
	}
	defer f.Close()

	if err := csvio.WriteSamples(f, report.Samples); err != nil {
		fmt.Fprintf(os.Stderr, "generate: %v\n", err)
		return 2
	}

	fmt.Printf("generated %d samples in %s, mode=%s\n", len(report.Samples), report.Elapsed.Round(time.Microsecond), sMode)
	fmt.Printf("n = %s\n", report.Key.N.String())
	fmt.Printf("wrote samples to %s\n", *outFile)
	return 0
}

func parseMode(s string) (signer.Mode, error) {
	switch s {
	case "plain":
		return signer.Plain, nil
	case "plain-sleep":
		return signer.PlainSleep, nil
	case "ladder":
		return signer.Ladder, nil
	default:
		return signer.Plain, fmt.Errorf("unknown mode %q", s)
	}
}

func firstErr(errors ...error) error {
	for _, err := range errors {
		if err != nil {
			return err
		}
	}
	return nil
}

// exitForArithmeticError maps a classified error to the generator CLI's exit
// code: 1 for an arithmetic precondition violation, 2 otherwise (treated as
// an I/O-adjacent failure since nothing else can reach this path).
func exitForArithmeticError(err error) int {
	fmt.Fprintf(os.Stderr, "generate: %v\n", err)
	switch errs.Classify(err) {
	case errs.InvalidModulus, errs.NonInvertible, errs.Overflow, errs.DivByZero:
		return 1
	default:
		return 2
	}
}
