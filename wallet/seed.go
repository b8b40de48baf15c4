// Package wallet implements the HD key hierarchy for the wallet engine
// using BIP32/BIP39.
//
// Key hierarchy:
//
//	spending: m/44'/236'/{account}'/1/{index}
//	ordinals: m/44'/236'/{2*account+1}'/0/0
//	identity: m/0'/236'/{account}'/0/0
//
// where account is the 0-based wallet account index.
package wallet

import (
	"crypto/sha512"
	"fmt"

	"github.com/bsv-blockchain/go-sdk/compat/bip39"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// Mnemonic entropy sizes.
	Mnemonic12Words = 128 // 12-word mnemonic
	Mnemonic24Words = 256 // 24-word mnemonic

	// BIP39 seed derivation parameters.
	seedIterations = 2048
	seedLength     = 64
)

// GenerateMnemonic creates a new BIP39 mnemonic with the specified entropy bits.
// Use Mnemonic12Words (128) for 12 words or Mnemonic24Words (256) for 24 words.
func GenerateMnemonic(entropyBits int) (string, error) {
	if entropyBits != Mnemonic12Words && entropyBits != Mnemonic24Words {
		return "", ErrInvalidEntropy
	}

	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("wallet: failed to generate entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("wallet: failed to generate mnemonic: %w", err)
	}

	return mnemonic, nil
}

// ValidateMnemonic checks if a mnemonic string is valid BIP39.
func ValidateMnemonic(mnemonic string) bool {
	return bip39.IsMnemonicValid(mnemonic)
}

// SeedFromMnemonic derives a 64-byte BIP39 seed from mnemonic + optional passphrase.
//
//	seed = PBKDF2(mnemonic, "mnemonic"+passphrase, 2048, 64, SHA512)
//
// Note: passphrase can be empty string "" (still participates in derivation).
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	salt := "mnemonic" + passphrase
	seed := pbkdf2.Key([]byte(mnemonic), []byte(salt), seedIterations, seedLength, sha512.New)

	return seed, nil
}
