package main

import (
	"fmt"
	"os"

	"rsatiming/internal/climd"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var code int
	switch command {
	case "generate":
		code = climd.GenerateCommand(args)
	case "attack":
		code = climd.AttackCommand(args)
	case "verify":
		code = climd.VerifyCommand(args)
	case "bench":
		code = climd.BenchCommand(args)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	os.Exit(code)
}

func printUsage() {
	fmt.Printf("rsatiming - RSA Montgomery-ladder timing side-channel lab\n\n")
	fmt.Printf("Usage:\n")
	fmt.Printf("  %s <command> [options]\n\n", os.Args[0])
	fmt.Printf("Commands:\n")
	fmt.Printf("  generate    Sign random messages and record a timing sample CSV\n")
	fmt.Printf("  attack      Recover a private exponent's bits from a timing sample CSV\n")
	fmt.Printf("  verify      Sign one message and check the signature round trip\n")
	fmt.Printf("  bench       Measure Montgomery product throughput\n")
	fmt.Printf("  help        Show this help message\n\n")
	fmt.Printf("Examples:\n")
	fmt.Printf("  %s generate --p 61 --q 53 --e 17 --mode plain-sleep --sleep-ns 200000 --out data.csv\n", os.Args[0])
	fmt.Printf("  %s attack --n 3233 --width 8 --in data.csv --threshold-ns 100000\n", os.Args[0])
	fmt.Printf("  %s verify 61 53 17 42\n", os.Args[0])
	fmt.Printf("  %s bench\n", os.Args[0])
	fmt.Printf("\nFor detailed help on a command, use:\n")
	fmt.Printf("  %s <command> --help\n", os.Args[0])
}
