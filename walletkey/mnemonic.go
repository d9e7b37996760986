// Package walletkey turns a user-supplied recovery phrase into the spending
// key material the ballot builder needs, mirroring
// original_source/src/decrypt.rs's to_sk (there: a bip0039 mnemonic run
// through a key-derivation path to a spending key).
package walletkey

import (
	"fmt"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/blake2b"

	"github.com/hhanh00/shielded-vote/note"
)

// SpendingKeyFromMnemonic validates a BIP-39 recovery phrase and derives a
// spending key for the given account index, the way a wallet would derive
// one of several accounts from a single seed phrase.
func SpendingKeyFromMnemonic(mnemonic string, account uint32) (note.SpendingKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return note.SpendingKey{}, fmt.Errorf("walletkey: invalid mnemonic phrase")
	}
	seed := bip39.NewSeed(mnemonic, "")

	h, err := blake2b.New256([]byte("ShieldedVote_SK"))
	if err != nil {
		return note.SpendingKey{}, fmt.Errorf("walletkey: init kdf: %w", err)
	}
	h.Write(seed)
	var acctBytes [4]byte
	acctBytes[0] = byte(account)
	acctBytes[1] = byte(account >> 8)
	acctBytes[2] = byte(account >> 16)
	acctBytes[3] = byte(account >> 24)
	h.Write(acctBytes[:])

	var sk note.SpendingKey
	copy(sk[:], h.Sum(nil))
	return sk, nil
}

// ValidateKeyMaterial reports whether s looks like a well-formed mnemonic
// this package can derive a spending key from. It performs no network or
// database access, matching original_source/src/validate.rs's validate_key,
// which checks key material before any downstream call is attempted
// (SPEC_FULL.md §12, "CLI key validation before any network call").
func ValidateKeyMaterial(s string) error {
	if bip39.IsMnemonicValid(s) {
		return nil
	}
	return fmt.Errorf("walletkey: %q is not a valid recovery phrase", s)
}
