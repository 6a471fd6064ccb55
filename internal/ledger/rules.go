// Package ledger holds the transfer policy every ledger backend applies: a
// transfer-checked movement of one asset between two token accounts,
// authorized by the owner of the source account.
package ledger

import (
	"fmt"
	"math/bits"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

// Apply validates t against the source and destination accounts and the
// asset definition, then debits from and credits to in place. On error
// neither account is modified.
func Apply(from, to *domain.TokenAccount, asset domain.Asset, t domain.Transfer) error {
	if from.Address != t.From || to.Address != t.To {
		return fmt.Errorf("ledger: transfer accounts do not match request: %w", domain.ErrAccountMismatch)
	}
	if t.Asset != asset.Address || from.Asset != asset.Address || to.Asset != asset.Address {
		return fmt.Errorf("ledger: transfer %s -> %s: %w", t.From.Hex(), t.To.Hex(), domain.ErrAssetMismatch)
	}
	if t.Decimals != asset.Decimals {
		return fmt.Errorf("ledger: transfer with %d decimals, asset has %d: %w",
			t.Decimals, asset.Decimals, domain.ErrDecimalsMismatch)
	}
	if from.Owner != t.Authority {
		return fmt.Errorf("ledger: %s may not move funds of %s: %w",
			t.Authority.Hex(), t.From.Hex(), domain.ErrTransferUnauthorized)
	}
	if from.Balance < t.Amount {
		return fmt.Errorf("ledger: %s holds %d, need %d: %w",
			t.From.Hex(), from.Balance, t.Amount, domain.ErrInsufficientFunds)
	}
	if from.Address == to.Address {
		return nil
	}
	credited, carry := bits.Add64(to.Balance, t.Amount, 0)
	if carry != 0 {
		return fmt.Errorf("ledger: credit to %s overflows: %w", t.To.Hex(), domain.ErrArithmeticOverflow)
	}
	from.Balance -= t.Amount
	to.Balance = credited
	return nil
}

// Credit adds amount to acct, failing on overflow. It is the mint path used
// by LedgerAdmin implementations.
func Credit(acct *domain.TokenAccount, amount uint64) error {
	sum, carry := bits.Add64(acct.Balance, amount, 0)
	if carry != 0 {
		return fmt.Errorf("ledger: mint to %s overflows: %w", acct.Address.Hex(), domain.ErrArithmeticOverflow)
	}
	acct.Balance = sum
	return nil
}
