package wallet

import (
	"fmt"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	script "github.com/bsv-blockchain/go-sdk/script"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
)

const (
	// BIP44 path constants.
	PurposeBIP44    = 44
	PurposeIdentity = 0
	CoinTypeBSV     = 236

	// Chain indices.
	ExternalChain = 0 // Receive addresses
	InternalChain = 1 // Spending/change addresses

	// BIP32 hardened offset.
	Hardened = 0x80000000
)

// Wallet represents an HD wallet instance.
type Wallet struct {
	masterKey *bip32.ExtendedKey
	network   *NetworkConfig
}

// KeyPair holds a derived public/private key pair.
type KeyPair struct {
	PrivateKey *ec.PrivateKey `json:"-"`
	PublicKey  *ec.PublicKey  `json:"public_key"`
	Path       string         `json:"path"` // Human-readable derivation path
}

// Address returns the P2PKH address for the key pair on the given network.
func (kp *KeyPair) Address(mainnet bool) (string, error) {
	addr, err := script.NewAddressFromPublicKey(kp.PublicKey, mainnet)
	if err != nil {
		return "", fmt.Errorf("%w: address encoding: %w", ErrDerivationFailed, err)
	}
	return addr.AddressString, nil
}

// NewWallet creates a new Wallet from a BIP39 seed.
func NewWallet(seed []byte, network *NetworkConfig) (*Wallet, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	if network == nil {
		network = &MainNet
	}

	// Map our NetworkConfig to go-sdk chaincfg.Params for BIP32.
	var net *chaincfg.Params
	switch network.Name {
	case "mainnet":
		net = &chaincfg.MainNet
	default:
		net = &chaincfg.TestNet
	}

	masterKey, err := bip32.NewMaster(seed, net)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}

	return &Wallet{
		masterKey: masterKey,
		network:   network,
	}, nil
}

// Network returns the wallet's network configuration.
func (w *Wallet) Network() *NetworkConfig {
	return w.network
}

// deriveChain derives the chain-level key: m/{purpose}'/236'/{account}'/{chain}
func (w *Wallet) deriveChain(purpose, account, chain uint32) (*bip32.ExtendedKey, error) {
	purposeKey, err := w.masterKey.Child(purpose + Hardened)
	if err != nil {
		return nil, fmt.Errorf("%w: purpose derivation: %w", ErrDerivationFailed, err)
	}

	coinType, err := purposeKey.Child(CoinTypeBSV + Hardened)
	if err != nil {
		return nil, fmt.Errorf("%w: coin type derivation: %w", ErrDerivationFailed, err)
	}

	accountKey, err := coinType.Child(account + Hardened)
	if err != nil {
		return nil, fmt.Errorf("%w: account derivation: %w", ErrDerivationFailed, err)
	}

	chainKey, err := accountKey.Child(chain)
	if err != nil {
		return nil, fmt.Errorf("%w: chain derivation: %w", ErrDerivationFailed, err)
	}

	return chainKey, nil
}

// SpendingKey derives the primary spending key pair for an account.
//
//	Path: m/44'/236'/{account}'/1/0
func (w *Wallet) SpendingKey(account uint32) (*KeyPair, error) {
	return w.DerivedKey(account, 0)
}

// DerivedKey derives a spending-chain key pair at the given index.
//
//	Path: m/44'/236'/{account}'/1/{index}
func (w *Wallet) DerivedKey(account, index uint32) (*KeyPair, error) {
	if account >= Hardened {
		return nil, fmt.Errorf("%w: account %d", ErrAccountOutOfRange, account)
	}

	chainKey, err := w.deriveChain(PurposeBIP44, account, InternalChain)
	if err != nil {
		return nil, err
	}

	childKey, err := chainKey.Child(index)
	if err != nil {
		return nil, fmt.Errorf("%w: index derivation: %w", ErrDerivationFailed, err)
	}

	return extKeyToKeyPair(childKey, fmt.Sprintf("m/44'/236'/%d'/1/%d", account, index))
}

// OrdinalsKey derives the ordinals key pair for an account. Ordinals use a
// separate odd-numbered BIP44 account so ordinal outputs never share
// addresses with spendable funds.
//
//	Path: m/44'/236'/{2*account+1}'/0/0
func (w *Wallet) OrdinalsKey(account uint32) (*KeyPair, error) {
	// Guard: 2*account+1 must stay below the hardened boundary.
	if account > (Hardened-2)/2 {
		return nil, fmt.Errorf("%w: account %d", ErrAccountOutOfRange, account)
	}
	ordAccount := 2*account + 1

	chainKey, err := w.deriveChain(PurposeBIP44, ordAccount, ExternalChain)
	if err != nil {
		return nil, err
	}

	childKey, err := chainKey.Child(0)
	if err != nil {
		return nil, fmt.Errorf("%w: index derivation: %w", ErrDerivationFailed, err)
	}

	return extKeyToKeyPair(childKey, fmt.Sprintf("m/44'/236'/%d'/0/0", ordAccount))
}

// IdentityKey derives the identity key pair for an account.
//
//	Path: m/0'/236'/{account}'/0/0
func (w *Wallet) IdentityKey(account uint32) (*KeyPair, error) {
	if account >= Hardened {
		return nil, fmt.Errorf("%w: account %d", ErrAccountOutOfRange, account)
	}

	chainKey, err := w.deriveChain(PurposeIdentity, account, ExternalChain)
	if err != nil {
		return nil, err
	}

	childKey, err := chainKey.Child(0)
	if err != nil {
		return nil, fmt.Errorf("%w: index derivation: %w", ErrDerivationFailed, err)
	}

	return extKeyToKeyPair(childKey, fmt.Sprintf("m/0'/236'/%d'/0/0", account))
}

// extKeyToKeyPair converts a BIP32 extended key to a KeyPair.
func extKeyToKeyPair(extKey *bip32.ExtendedKey, path string) (*KeyPair, error) {
	privKey, err := extKey.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}

	pubKey := privKey.PubKey()
	if pubKey == nil {
		return nil, fmt.Errorf("%w: failed to derive public key", ErrDerivationFailed)
	}

	return &KeyPair{
		PrivateKey: privKey,
		PublicKey:  pubKey,
		Path:       path,
	}, nil
}
