package climd

import (
	"flag"
	"fmt"
	"os"
	"time"

	"rsatiming/internal/ops"
	"rsatiming/internal/progress"
)

// BenchCommand handles the bench subcommand: measure Montgomery product
// throughput against a synthetic modulus. Always returns exit code 0; bench
// is informational and never fails on valid input.
func BenchCommand(args []string) int {
	fs := flag.NewFlagSet("bench", flag.ContinueOnError)

	var (
		bits     = fs.Int("bits", 2048, "bit width of the synthetic modulus")
		duration = fs.Duration("duration", 200*time.Millisecond, "measurement window per sample")
		samples  = fs.Int("samples", 5, "number of measurement windows")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s bench [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nMeasure Montgomery product throughput\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 0
	}

	report, err := ops.Bench(ops.BenchOptions{Bits: *bits, Duration: *duration, Samples: *samples})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bench: %v\n", err)
		return 0
	}

	for i, s := range report.Samples {
		fmt.Printf("sample %d: %d ops in %s (%.0f ops/s)\n", i+1, s.Operations, progress.FormatDuration(s.Elapsed), s.OpsPerSecond)
	}
	fmt.Printf("total: %d ops in %s, avg %.0f ops/s\n", report.TotalOps, progress.FormatDuration(report.TotalTime), report.AvgOpsPerSecond)
	return 0
}
