package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Custodian moves principal between depositors and fund vaults. The
// engine calls it before mutating state so a custody failure leaves
// the ledger untouched.
type Custodian interface {
	// TransferIn pulls amount of principal from holder into the fund
	// vault. Must be atomic: on error nothing moved.
	TransferIn(fundID int64, holder uuid.UUID, amount int64) error

	// TransferOut pays amount of principal from the fund vault to
	// holder.
	TransferOut(fundID int64, holder uuid.UUID, amount int64) error
}

// VaultCustodian is an in-memory custodian tracking one principal
// balance per fund. Holder balances are assumed external; only the
// vault side is enforced.
type VaultCustodian struct {
	mu     sync.Mutex
	vaults map[int64]int64
}

func NewVaultCustodian() *VaultCustodian {
	return &VaultCustodian{vaults: make(map[int64]int64)}
}

func (c *VaultCustodian) TransferIn(fundID int64, holder uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("vault transfer in: %w", ErrInvalidAmount)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vaults[fundID] += amount
	return nil
}

func (c *VaultCustodian) TransferOut(fundID int64, holder uuid.UUID, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("vault transfer out: %w", ErrInvalidAmount)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.vaults[fundID] < amount {
		return fmt.Errorf("vault %d short %d: %w", fundID, amount, ErrInsufficientBalance)
	}
	c.vaults[fundID] -= amount
	return nil
}

// VaultBalance reports the principal held for a fund.
func (c *VaultCustodian) VaultBalance(fundID int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vaults[fundID]
}

// Restore reinstates vault balances from a snapshot.
func (c *VaultCustodian) Restore(vaults map[int64]int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vaults = make(map[int64]int64, len(vaults))
	for id, bal := range vaults {
		c.vaults[id] = bal
	}
}

// Snapshot returns a copy of all vault balances.
func (c *VaultCustodian) Snapshot() map[int64]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[int64]int64, len(c.vaults))
	for id, bal := range c.vaults {
		out[id] = bal
	}
	return out
}
