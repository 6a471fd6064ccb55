// Package memory implements domain.AuctionStore and its ledger in process
// memory. Units of work are serialized and applied copy-on-write, so a
// failed operation leaves no trace. It backs dev mode and tests.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/alanyoungcy/sealedpool/internal/domain"
	"github.com/alanyoungcy/sealedpool/internal/ledger"
)

type data struct {
	states   map[domain.Address]domain.AuctionState
	bids     map[domain.Address]domain.Bid
	accounts map[domain.Address]domain.TokenAccount
	assets   map[domain.Address]domain.Asset
}

func (d *data) clone() *data {
	return &data{
		states:   maps.Clone(d.states),
		bids:     maps.Clone(d.bids),
		accounts: maps.Clone(d.accounts),
		assets:   maps.Clone(d.assets),
	}
}

// TransferHook is consulted before every transfer. A non-nil error aborts
// the transfer and with it the whole unit of work.
type TransferHook func(t domain.Transfer) error

// Store is an in-memory auction store and ledger.
type Store struct {
	mu   sync.RWMutex
	data *data
	hook TransferHook
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: &data{
		states:   make(map[domain.Address]domain.AuctionState),
		bids:     make(map[domain.Address]domain.Bid),
		accounts: make(map[domain.Address]domain.TokenAccount),
		assets:   make(map[domain.Address]domain.Asset),
	}}
}

// SetTransferHook installs h; nil removes it.
func (s *Store) SetTransferHook(h TransferHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = h
}

// Atomic runs fn against a private copy of the store and publishes the copy
// only if fn succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(ctx, &tx{data: work, hook: s.hook}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// GetAuctionState returns the auction state stored at slot.
func (s *Store) GetAuctionState(_ context.Context, slot domain.Address) (domain.AuctionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data.states[slot]
	if !ok {
		return domain.AuctionState{}, domain.ErrNotFound
	}
	return st, nil
}

// GetBid returns the bid record stored at slot.
func (s *Store) GetBid(_ context.Context, slot domain.Address) (domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data.bids[slot]
	if !ok {
		return domain.Bid{}, domain.ErrNotFound
	}
	return b, nil
}

// ListBids returns bids of opts.Auction ordered by creation time.
func (s *Store) ListBids(_ context.Context, opts domain.ListOpts) ([]domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return listBids(s.data, opts), nil
}

func listBids(d *data, opts domain.ListOpts) []domain.Bid {
	var out []domain.Bid
	for _, b := range d.bids {
		if b.Auction != opts.Auction || (opts.ActiveOnly && !b.Active) {
			continue
		}
		if opts.Since != nil && b.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && b.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, b)
	}

	slices.SortFunc(out, func(a, b domain.Bid) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return a.Slot.Cmp(b.Slot)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// GetAccount returns the token account at addr.
func (s *Store) GetAccount(_ context.Context, addr domain.Address) (domain.TokenAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data.accounts[addr]
	if !ok {
		return domain.TokenAccount{}, domain.ErrNotFound
	}
	return a, nil
}

// CreateAsset registers an asset definition.
func (s *Store) CreateAsset(_ context.Context, asset domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.assets[asset.Address]; ok {
		return fmt.Errorf("memory: asset %s: %w", asset.Address.Hex(), domain.ErrAlreadyExists)
	}
	s.data.assets[asset.Address] = asset
	return nil
}

// CreateAccount opens a token account outside any unit of work.
func (s *Store) CreateAccount(ctx context.Context, acct domain.TokenAccount) error {
	return s.Atomic(ctx, func(ctx context.Context, t domain.Tx) error {
		return t.Ledger().CreateAccount(ctx, acct)
	})
}

// Mint credits amount to an existing token account.
func (s *Store) Mint(_ context.Context, account domain.Address, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.data.accounts[account]
	if !ok {
		return fmt.Errorf("memory: mint to %s: %w", account.Hex(), domain.ErrNotFound)
	}
	if err := ledger.Credit(&acct, amount); err != nil {
		return err
	}
	s.data.accounts[account] = acct
	return nil
}

type tx struct {
	data *data
	hook TransferHook
}

func (t *tx) AuctionState(_ context.Context, slot domain.Address) (domain.AuctionState, error) {
	st, ok := t.data.states[slot]
	if !ok {
		return domain.AuctionState{}, domain.ErrNotFound
	}
	return st, nil
}

func (t *tx) CreateAuctionState(_ context.Context, st domain.AuctionState) error {
	if _, ok := t.data.states[st.Slot]; ok {
		return fmt.Errorf("memory: auction state %s: %w", st.Slot.Hex(), domain.ErrAlreadyExists)
	}
	t.data.states[st.Slot] = st
	return nil
}

func (t *tx) PutAuctionState(_ context.Context, st domain.AuctionState) error {
	if _, ok := t.data.states[st.Slot]; !ok {
		return fmt.Errorf("memory: auction state %s: %w", st.Slot.Hex(), domain.ErrNotFound)
	}
	t.data.states[st.Slot] = st
	return nil
}

func (t *tx) Bid(_ context.Context, slot domain.Address) (domain.Bid, error) {
	b, ok := t.data.bids[slot]
	if !ok {
		return domain.Bid{}, domain.ErrNotFound
	}
	return b, nil
}

func (t *tx) ListBids(_ context.Context, opts domain.ListOpts) ([]domain.Bid, error) {
	return listBids(t.data, opts), nil
}

func (t *tx) CreateBid(_ context.Context, b domain.Bid) error {
	if _, ok := t.data.bids[b.Slot]; ok {
		return fmt.Errorf("memory: bid %s: %w", b.Slot.Hex(), domain.ErrAlreadyExists)
	}
	t.data.bids[b.Slot] = b
	return nil
}

func (t *tx) PutBid(_ context.Context, b domain.Bid) error {
	if _, ok := t.data.bids[b.Slot]; !ok {
		return fmt.Errorf("memory: bid %s: %w", b.Slot.Hex(), domain.ErrNotFound)
	}
	t.data.bids[b.Slot] = b
	return nil
}

func (t *tx) DeleteBid(_ context.Context, slot domain.Address) error {
	if _, ok := t.data.bids[slot]; !ok {
		return fmt.Errorf("memory: bid %s: %w", slot.Hex(), domain.ErrNotFound)
	}
	delete(t.data.bids, slot)
	return nil
}

func (t *tx) Ledger() domain.Ledger { return (*txLedger)(t) }

type txLedger tx

func (l *txLedger) Transfer(_ context.Context, tr domain.Transfer) error {
	if l.hook != nil {
		if err := l.hook(tr); err != nil {
			return err
		}
	}
	from, ok := l.data.accounts[tr.From]
	if !ok {
		return fmt.Errorf("memory: transfer source %s: %w", tr.From.Hex(), domain.ErrNotFound)
	}
	to, ok := l.data.accounts[tr.To]
	if !ok {
		return fmt.Errorf("memory: transfer destination %s: %w", tr.To.Hex(), domain.ErrNotFound)
	}
	asset, ok := l.data.assets[tr.Asset]
	if !ok {
		return fmt.Errorf("memory: transfer asset %s: %w", tr.Asset.Hex(), domain.ErrNotFound)
	}
	if err := ledger.Apply(&from, &to, asset, tr); err != nil {
		return err
	}
	l.data.accounts[from.Address] = from
	l.data.accounts[to.Address] = to
	return nil
}

func (l *txLedger) Account(_ context.Context, addr domain.Address) (domain.TokenAccount, error) {
	a, ok := l.data.accounts[addr]
	if !ok {
		return domain.TokenAccount{}, domain.ErrNotFound
	}
	return a, nil
}

func (l *txLedger) Asset(_ context.Context, addr domain.Address) (domain.Asset, error) {
	a, ok := l.data.assets[addr]
	if !ok {
		return domain.Asset{}, domain.ErrNotFound
	}
	return a, nil
}

func (l *txLedger) CreateAccount(_ context.Context, acct domain.TokenAccount) error {
	if _, ok := l.data.accounts[acct.Address]; ok {
		return fmt.Errorf("memory: token account %s: %w", acct.Address.Hex(), domain.ErrAlreadyExists)
	}
	if _, ok := l.data.assets[acct.Asset]; !ok {
		return fmt.Errorf("memory: token account asset %s: %w", acct.Asset.Hex(), domain.ErrNotFound)
	}
	l.data.accounts[acct.Address] = acct
	return nil
}

// Compile-time interface checks.
var (
	_ domain.AuctionStore = (*Store)(nil)
	_ domain.LedgerAdmin  = (*Store)(nil)
)
