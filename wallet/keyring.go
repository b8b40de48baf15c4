package wallet

import (
	"fmt"
	"sort"
)

// Keyring indexes derived key pairs by their P2PKH address so signing code
// can find the key for any UTXO the engine controls.
type Keyring struct {
	mainnet bool
	keys    map[string]*KeyPair
}

// NewKeyring creates an empty keyring for the given network.
func NewKeyring(mainnet bool) *Keyring {
	return &Keyring{
		mainnet: mainnet,
		keys:    make(map[string]*KeyPair),
	}
}

// Add derives the key pair's address and stores the pair under it.
// Re-adding the same key is a no-op. Returns the address.
func (k *Keyring) Add(kp *KeyPair) (string, error) {
	if kp == nil || kp.PrivateKey == nil {
		return "", ErrInvalidKeyPair
	}

	addr, err := kp.Address(k.mainnet)
	if err != nil {
		return "", err
	}

	k.keys[addr] = kp
	return addr, nil
}

// Lookup returns the key pair controlling the given address.
func (k *Keyring) Lookup(address string) (*KeyPair, bool) {
	kp, ok := k.keys[address]
	return kp, ok
}

// Addresses returns all addresses in the keyring, sorted for determinism.
func (k *Keyring) Addresses() []string {
	addrs := make([]string, 0, len(k.keys))
	for addr := range k.keys {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Size returns the number of keys held.
func (k *Keyring) Size() int {
	return len(k.keys)
}

// LoadAccount derives and adds the standard key set for an account:
// the spending key, the ordinals key, and the identity key.
func (k *Keyring) LoadAccount(w *Wallet, account uint32) error {
	for _, derive := range []func(uint32) (*KeyPair, error){
		w.SpendingKey,
		w.OrdinalsKey,
		w.IdentityKey,
	} {
		kp, err := derive(account)
		if err != nil {
			return fmt.Errorf("wallet: load account %d: %w", account, err)
		}
		if _, err := k.Add(kp); err != nil {
			return fmt.Errorf("wallet: load account %d: %w", account, err)
		}
	}
	return nil
}
