package domain

import "context"

// Asset is a fungible token definition.
type Asset struct {
	Address  Address `json:"address"`
	Symbol   string  `json:"symbol"`
	Decimals uint8   `json:"decimals"`
}

// TokenAccount is a custodial balance of one asset. Only Owner may authorize
// transfers out of it.
type TokenAccount struct {
	Address Address `json:"address"`
	Owner   Address `json:"owner"`
	Asset   Address `json:"asset"`
	Balance uint64  `json:"balance"`
}

// Transfer is an exact-amount movement between two token accounts of the
// same asset.
type Transfer struct {
	From      Address
	To        Address
	Asset     Address
	Amount    uint64
	Decimals  uint8
	Authority Address
}

// Ledger moves value between token accounts. Implementations are bound to
// the unit of work they were obtained from.
type Ledger interface {
	Transfer(ctx context.Context, t Transfer) error
	Account(ctx context.Context, addr Address) (TokenAccount, error)
	Asset(ctx context.Context, addr Address) (Asset, error)
	CreateAccount(ctx context.Context, acct TokenAccount) error
}

// LedgerAdmin seeds assets and balances. It is used by dev mode and tests,
// never by auction operations.
type LedgerAdmin interface {
	CreateAsset(ctx context.Context, asset Asset) error
	CreateAccount(ctx context.Context, acct TokenAccount) error
	Mint(ctx context.Context, account Address, amount uint64) error
}
