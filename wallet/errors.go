package wallet

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("wallet: invalid BIP39 mnemonic")

	// ErrInvalidEntropy indicates entropy bits is not 128 or 256.
	ErrInvalidEntropy = errors.New("wallet: entropy bits must be 128 or 256")

	// ErrAccountOutOfRange indicates an account index exceeds the BIP32 hardened boundary.
	ErrAccountOutOfRange = errors.New("wallet: account index exceeds BIP32 hardened boundary")

	// ErrAccountNotFound indicates the named account does not exist.
	ErrAccountNotFound = errors.New("wallet: account not found")

	// ErrAccountExists indicates the account name is already taken.
	ErrAccountExists = errors.New("wallet: account already exists")

	// ErrInvalidNetwork indicates unknown network name.
	ErrInvalidNetwork = errors.New("wallet: invalid network name")

	// ErrInvalidSeed indicates the seed is empty or invalid.
	ErrInvalidSeed = errors.New("wallet: invalid seed")

	// ErrInvalidKeyPair indicates a nil or incomplete key pair.
	ErrInvalidKeyPair = errors.New("wallet: invalid key pair")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")
)
