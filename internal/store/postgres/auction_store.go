package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/sealedpool/internal/domain"
	"github.com/alanyoungcy/sealedpool/internal/ledger"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AuctionStore implements domain.AuctionStore and domain.LedgerAdmin using
// PostgreSQL. A unit of work is one READ COMMITTED transaction; every row it
// reads for update is locked with SELECT ... FOR UPDATE.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates a new AuctionStore backed by the given connection pool.
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

var (
	_ domain.AuctionStore = (*AuctionStore)(nil)
	_ domain.LedgerAdmin  = (*AuctionStore)(nil)
)

// Atomic runs fn inside a transaction and commits only if fn succeeds.
func (s *AuctionStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx domain.Tx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx})
	})
}

// GetAuctionState returns the auction state stored at slot.
func (s *AuctionStore) GetAuctionState(ctx context.Context, slot domain.Address) (domain.AuctionState, error) {
	return selectAuctionState(ctx, s.pool, slot, false)
}

// GetBid returns the bid record stored at slot.
func (s *AuctionStore) GetBid(ctx context.Context, slot domain.Address) (domain.Bid, error) {
	return selectBid(ctx, s.pool, slot, false)
}

// ListBids returns bids of opts.Auction ordered by creation time.
func (s *AuctionStore) ListBids(ctx context.Context, opts domain.ListOpts) ([]domain.Bid, error) {
	return selectBids(ctx, s.pool, opts)
}

// GetAccount returns the token account at addr.
func (s *AuctionStore) GetAccount(ctx context.Context, addr domain.Address) (domain.TokenAccount, error) {
	return selectAccount(ctx, s.pool, addr, false)
}

// CreateAsset registers an asset definition.
func (s *AuctionStore) CreateAsset(ctx context.Context, asset domain.Asset) error {
	return insertAsset(ctx, s.pool, asset)
}

// CreateAccount opens a token account outside any unit of work.
func (s *AuctionStore) CreateAccount(ctx context.Context, acct domain.TokenAccount) error {
	return insertAccount(ctx, s.pool, acct)
}

// Mint credits amount to an existing token account.
func (s *AuctionStore) Mint(ctx context.Context, account domain.Address, amount uint64) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		acct, err := selectAccount(ctx, tx, account, true)
		if err != nil {
			return fmt.Errorf("postgres: mint to %s: %w", account.Hex(), err)
		}
		if err := ledger.Credit(&acct, amount); err != nil {
			return err
		}
		return updateBalance(ctx, tx, acct)
	})
}

// ---------------------------------------------------------------------------
// Unit of work
// ---------------------------------------------------------------------------

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) AuctionState(ctx context.Context, slot domain.Address) (domain.AuctionState, error) {
	return selectAuctionState(ctx, t.tx, slot, true)
}

func (t *pgTx) CreateAuctionState(ctx context.Context, st domain.AuctionState) error {
	const query = `
		INSERT INTO auction_state (
			slot, agent, asset, treasury, escrow,
			minimum_bid, active_bid_count, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := t.tx.Exec(ctx, query,
		st.Slot.Bytes(), st.Agent.Bytes(), st.Asset.Bytes(), st.Treasury.Bytes(), st.Escrow.Bytes(),
		units(st.MinimumBid), units(st.ActiveBidCount), st.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert auction state %s: %w", st.Slot.Hex(), mapErr(err))
	}
	return nil
}

func (t *pgTx) PutAuctionState(ctx context.Context, st domain.AuctionState) error {
	const query = `
		UPDATE auction_state SET
			agent            = $2,
			minimum_bid      = $3,
			active_bid_count = $4,
			updated_at       = NOW()
		WHERE slot = $1`

	tag, err := t.tx.Exec(ctx, query, st.Slot.Bytes(), st.Agent.Bytes(), units(st.MinimumBid), units(st.ActiveBidCount))
	if err != nil {
		return fmt.Errorf("postgres: update auction state %s: %w", st.Slot.Hex(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update auction state %s: %w", st.Slot.Hex(), domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) Bid(ctx context.Context, slot domain.Address) (domain.Bid, error) {
	return selectBid(ctx, t.tx, slot, true)
}

func (t *pgTx) ListBids(ctx context.Context, opts domain.ListOpts) ([]domain.Bid, error) {
	return selectBids(ctx, t.tx, opts)
}

func (t *pgTx) CreateBid(ctx context.Context, b domain.Bid) error {
	const query = `
		INSERT INTO bids (
			slot, auction, bidder, amount, deposit,
			active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := t.tx.Exec(ctx, query,
		b.Slot.Bytes(), b.Auction.Bytes(), b.Bidder.Bytes(), units(b.Amount), units(b.Deposit),
		b.Active, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert bid %s: %w", b.Slot.Hex(), mapErr(err))
	}
	return nil
}

func (t *pgTx) PutBid(ctx context.Context, b domain.Bid) error {
	const query = `
		UPDATE bids SET
			amount     = $2,
			active     = $3,
			updated_at = $4
		WHERE slot = $1`

	tag, err := t.tx.Exec(ctx, query, b.Slot.Bytes(), units(b.Amount), b.Active, b.UpdatedAt)
	if err != nil {
		return fmt.Errorf("postgres: update bid %s: %w", b.Slot.Hex(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update bid %s: %w", b.Slot.Hex(), domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) DeleteBid(ctx context.Context, slot domain.Address) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM bids WHERE slot = $1`, slot.Bytes())
	if err != nil {
		return fmt.Errorf("postgres: delete bid %s: %w", slot.Hex(), err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete bid %s: %w", slot.Hex(), domain.ErrNotFound)
	}
	return nil
}

func (t *pgTx) Ledger() domain.Ledger { return &pgLedger{tx: t.tx} }

type pgLedger struct {
	tx pgx.Tx
}

// Transfer locks both accounts in address order, applies the transfer
// policy and writes the new balances.
func (l *pgLedger) Transfer(ctx context.Context, tr domain.Transfer) error {
	const lockQuery = `
		SELECT address, owner, asset, balance
		FROM token_accounts
		WHERE address = $1 OR address = $2
		ORDER BY address
		FOR UPDATE`

	rows, err := l.tx.Query(ctx, lockQuery, tr.From.Bytes(), tr.To.Bytes())
	if err != nil {
		return fmt.Errorf("postgres: lock transfer accounts: %w", err)
	}
	locked, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TokenAccount, error) {
		return scanAccount(row)
	})
	if err != nil {
		return fmt.Errorf("postgres: lock transfer accounts: %w", err)
	}

	var from, to *domain.TokenAccount
	for i := range locked {
		if locked[i].Address == tr.From {
			from = &locked[i]
		}
		if locked[i].Address == tr.To {
			to = &locked[i]
		}
	}
	if from == nil {
		return fmt.Errorf("postgres: transfer source %s: %w", tr.From.Hex(), domain.ErrNotFound)
	}
	if to == nil {
		return fmt.Errorf("postgres: transfer destination %s: %w", tr.To.Hex(), domain.ErrNotFound)
	}

	asset, err := selectAsset(ctx, l.tx, tr.Asset)
	if err != nil {
		return fmt.Errorf("postgres: transfer asset %s: %w", tr.Asset.Hex(), err)
	}
	if err := ledger.Apply(from, to, asset, tr); err != nil {
		return err
	}
	if from.Address == to.Address {
		return nil
	}
	if err := updateBalance(ctx, l.tx, *from); err != nil {
		return err
	}
	return updateBalance(ctx, l.tx, *to)
}

func (l *pgLedger) Account(ctx context.Context, addr domain.Address) (domain.TokenAccount, error) {
	return selectAccount(ctx, l.tx, addr, false)
}

func (l *pgLedger) Asset(ctx context.Context, addr domain.Address) (domain.Asset, error) {
	return selectAsset(ctx, l.tx, addr)
}

func (l *pgLedger) CreateAccount(ctx context.Context, acct domain.TokenAccount) error {
	return insertAccount(ctx, l.tx, acct)
}

// ---------------------------------------------------------------------------
// Queries shared by the pool and the unit of work
// ---------------------------------------------------------------------------

func forUpdate(lock bool) string {
	if lock {
		return " FOR UPDATE"
	}
	return ""
}

func selectAuctionState(ctx context.Context, q querier, slot domain.Address, lock bool) (domain.AuctionState, error) {
	query := `
		SELECT slot, agent, asset, treasury, escrow,
		       minimum_bid, active_bid_count, created_at
		FROM auction_state
		WHERE slot = $1` + forUpdate(lock)

	var (
		st            domain.AuctionState
		minBid, count pgtype.Numeric
	)
	err := q.QueryRow(ctx, query, slot.Bytes()).Scan(
		bytea(&st.Slot), bytea(&st.Agent), bytea(&st.Asset), bytea(&st.Treasury), bytea(&st.Escrow),
		&minBid, &count, &st.CreatedAt,
	)
	if err != nil {
		return domain.AuctionState{}, fmt.Errorf("postgres: get auction state %s: %w", slot.Hex(), mapErr(err))
	}
	if st.MinimumBid, err = fromUnits(minBid); err != nil {
		return domain.AuctionState{}, err
	}
	if st.ActiveBidCount, err = fromUnits(count); err != nil {
		return domain.AuctionState{}, err
	}
	st.CreatedAt = st.CreatedAt.UTC()
	return st, nil
}

const bidColumns = `slot, auction, bidder, amount, deposit, active, created_at, updated_at`

func scanBid(row pgx.Row) (domain.Bid, error) {
	var (
		b               domain.Bid
		amount, deposit pgtype.Numeric
	)
	if err := row.Scan(
		bytea(&b.Slot), bytea(&b.Auction), bytea(&b.Bidder), &amount, &deposit,
		&b.Active, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return domain.Bid{}, err
	}
	var err error
	if b.Amount, err = fromUnits(amount); err != nil {
		return domain.Bid{}, err
	}
	if b.Deposit, err = fromUnits(deposit); err != nil {
		return domain.Bid{}, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.UpdatedAt = b.UpdatedAt.UTC()
	return b, nil
}

func selectBid(ctx context.Context, q querier, slot domain.Address, lock bool) (domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE slot = $1` + forUpdate(lock)
	b, err := scanBid(q.QueryRow(ctx, query, slot.Bytes()))
	if err != nil {
		return domain.Bid{}, fmt.Errorf("postgres: get bid %s: %w", slot.Hex(), mapErr(err))
	}
	return b, nil
}

func selectBids(ctx context.Context, q querier, opts domain.ListOpts) ([]domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE auction = $1`
	args := []any{opts.Auction.Bytes()}
	argIdx := 2

	if opts.ActiveOnly {
		query += " AND active"
	}
	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at, slot"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids: %w", err)
	}
	bids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Bid, error) {
		return scanBid(row)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids rows: %w", err)
	}
	return bids, nil
}

func scanAccount(row pgx.Row) (domain.TokenAccount, error) {
	var (
		a       domain.TokenAccount
		balance pgtype.Numeric
	)
	if err := row.Scan(bytea(&a.Address), bytea(&a.Owner), bytea(&a.Asset), &balance); err != nil {
		return domain.TokenAccount{}, err
	}
	var err error
	if a.Balance, err = fromUnits(balance); err != nil {
		return domain.TokenAccount{}, err
	}
	return a, nil
}

func selectAccount(ctx context.Context, q querier, addr domain.Address, lock bool) (domain.TokenAccount, error) {
	query := `SELECT address, owner, asset, balance FROM token_accounts WHERE address = $1` + forUpdate(lock)
	a, err := scanAccount(q.QueryRow(ctx, query, addr.Bytes()))
	if err != nil {
		return domain.TokenAccount{}, fmt.Errorf("postgres: get token account %s: %w", addr.Hex(), mapErr(err))
	}
	return a, nil
}

func insertAccount(ctx context.Context, q querier, acct domain.TokenAccount) error {
	const query = `
		INSERT INTO token_accounts (address, owner, asset, balance)
		VALUES ($1, $2, $3, $4)`

	_, err := q.Exec(ctx, query, acct.Address.Bytes(), acct.Owner.Bytes(), acct.Asset.Bytes(), units(acct.Balance))
	if err != nil {
		return fmt.Errorf("postgres: insert token account %s: %w", acct.Address.Hex(), mapErr(err))
	}
	return nil
}

func updateBalance(ctx context.Context, q querier, acct domain.TokenAccount) error {
	const query = `UPDATE token_accounts SET balance = $2, updated_at = NOW() WHERE address = $1`
	if _, err := q.Exec(ctx, query, acct.Address.Bytes(), units(acct.Balance)); err != nil {
		return fmt.Errorf("postgres: update balance of %s: %w", acct.Address.Hex(), err)
	}
	return nil
}

func selectAsset(ctx context.Context, q querier, addr domain.Address) (domain.Asset, error) {
	var (
		a        domain.Asset
		decimals int16
	)
	err := q.QueryRow(ctx,
		`SELECT address, symbol, decimals FROM assets WHERE address = $1`, addr.Bytes(),
	).Scan(bytea(&a.Address), &a.Symbol, &decimals)
	if err != nil {
		return domain.Asset{}, fmt.Errorf("postgres: get asset %s: %w", addr.Hex(), mapErr(err))
	}
	a.Decimals = uint8(decimals)
	return a, nil
}

func insertAsset(ctx context.Context, q querier, a domain.Asset) error {
	_, err := q.Exec(ctx,
		`INSERT INTO assets (address, symbol, decimals) VALUES ($1, $2, $3)`,
		a.Address.Bytes(), a.Symbol, int16(a.Decimals),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert asset %s: %w", a.Address.Hex(), mapErr(err))
	}
	return nil
}
