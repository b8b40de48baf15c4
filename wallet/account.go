package wallet

import "fmt"

// Account represents a named wallet account. Each account owns one BIP44
// account index and therefore an independent set of derived keys and UTXOs.
type Account struct {
	Name         string `json:"name"`
	AccountIndex uint32 `json:"account_index"`
	Deleted      bool   `json:"deleted"` // Soft-deleted flag
}

// Registry holds the persisted set of wallet accounts.
type Registry struct {
	Accounts         []Account `json:"accounts"`
	NextAccountIndex uint32    `json:"next_account_index"` // Next available account index
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		Accounts:         []Account{},
		NextAccountIndex: 0,
	}
}

// Validate checks the integrity of a deserialized Registry.
func (r *Registry) Validate() error {
	seen := make(map[uint32]string)
	var maxIdx uint32

	for _, a := range r.Accounts {
		if a.Deleted {
			continue
		}
		// Check account index within BIP32 range (ordinals use 2i+1).
		if a.AccountIndex > (Hardened-2)/2 {
			return fmt.Errorf("account %q: index %d exceeds BIP32 hardened boundary", a.Name, a.AccountIndex)
		}
		// Check for duplicate account indices among active accounts.
		if prev, ok := seen[a.AccountIndex]; ok {
			return fmt.Errorf("duplicate account index %d: accounts %q and %q", a.AccountIndex, prev, a.Name)
		}
		seen[a.AccountIndex] = a.Name

		if a.AccountIndex >= maxIdx {
			maxIdx = a.AccountIndex + 1
		}
	}

	// NextAccountIndex must be >= max seen index + 1 (to avoid reuse).
	if len(seen) > 0 && r.NextAccountIndex < maxIdx {
		return fmt.Errorf("NextAccountIndex (%d) is less than max account index + 1 (%d)", r.NextAccountIndex, maxIdx)
	}

	return nil
}

// CreateAccount creates a new account with the given name, allocating the
// next available account index.
func (w *Wallet) CreateAccount(r *Registry, name string) (*Account, error) {
	// Guard: next account index must stay below the hardened boundary.
	if r.NextAccountIndex > (Hardened-2)/2 {
		return nil, fmt.Errorf("account limit reached: index would exceed BIP32 hardened boundary")
	}

	// Check for duplicate names
	for _, a := range r.Accounts {
		if a.Name == name && !a.Deleted {
			return nil, fmt.Errorf("%w: %q", ErrAccountExists, name)
		}
	}

	account := Account{
		Name:         name,
		AccountIndex: r.NextAccountIndex,
		Deleted:      false,
	}

	r.Accounts = append(r.Accounts, account)
	r.NextAccountIndex++

	return &account, nil
}

// GetAccount retrieves an account by name. Returns ErrAccountNotFound if not found.
func (w *Wallet) GetAccount(r *Registry, name string) (*Account, error) {
	for i := range r.Accounts {
		if r.Accounts[i].Name == name && !r.Accounts[i].Deleted {
			return &r.Accounts[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrAccountNotFound, name)
}

// ListAccounts returns all active (non-deleted) accounts.
func (w *Wallet) ListAccounts(r *Registry) []Account {
	var active []Account
	for _, a := range r.Accounts {
		if !a.Deleted {
			active = append(active, a)
		}
	}
	return active
}

// RenameAccount renames an existing account.
func (w *Wallet) RenameAccount(r *Registry, oldName, newName string) error {
	// Check new name doesn't conflict
	for _, a := range r.Accounts {
		if a.Name == newName && !a.Deleted {
			return fmt.Errorf("%w: %q", ErrAccountExists, newName)
		}
	}

	for i := range r.Accounts {
		if r.Accounts[i].Name == oldName && !r.Accounts[i].Deleted {
			r.Accounts[i].Name = newName
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrAccountNotFound, oldName)
}

// DeleteAccount marks an account as deleted (soft delete).
// The account index is not reused.
func (w *Wallet) DeleteAccount(r *Registry, name string) error {
	for i := range r.Accounts {
		if r.Accounts[i].Name == name && !r.Accounts[i].Deleted {
			r.Accounts[i].Deleted = true
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrAccountNotFound, name)
}
