package main

import (
	"fmt"
	"os"

	"github.com/hhanh00/shielded-vote/walletkey"
)

// runKey implements `vote key validate KEY` (SPEC_FULL.md §12's
// supplemented CLI feature): check a mnemonic's syntactic validity before
// it's trusted to derive a spending key, so a typo surfaces as an input
// error rather than silently deriving the wrong key.
func runKey(args []string) int {
	if len(args) != 2 || args[0] != "validate" {
		fmt.Fprintln(os.Stderr, "vote: usage: key validate KEY")
		return exitInvalidInput
	}
	if err := walletkey.ValidateKeyMaterial(args[1]); err != nil {
		fmt.Fprintf(os.Stderr, "vote: invalid key: %v\n", err)
		return exitInvalidInput
	}
	fmt.Println("OK")
	return exitSuccess
}
