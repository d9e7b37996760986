// Command vote is this repo's CLI surface (spec §6): download and persist
// an election's reference data, build ballots, verify them standalone, and
// tally an accepted set.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitInvalidInput)
	}

	var code int
	switch os.Args[1] {
	case "download-refdata":
		code = runDownloadRefdata(os.Args[2:])
	case "build-ballot":
		code = runBuildBallot(os.Args[2:])
	case "verify-ballot":
		code = runVerifyBallot(os.Args[2:])
	case "tally":
		code = runTally(os.Args[2:])
	case "key":
		code = runKey(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "vote: unknown subcommand %q\n", os.Args[1])
		printUsage()
		code = exitInvalidInput
	}
	os.Exit(code)
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage:
  vote download-refdata --lwd URL --election JSON --db DSN --end HEIGHT
  vote build-ballot --key MNEMONIC --notes IDS --weights W0,W1,... --election JSON --out FILE
  vote verify-ballot --election JSON FILE
  vote tally --election JSON --ballots DIR
  vote key validate KEY

Exit codes: 0 success, 2 invalid input, 3 protocol violation, 4 I/O failure.`)
}
