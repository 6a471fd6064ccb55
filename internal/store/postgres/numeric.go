package postgres

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

var (
	bigTen    = big.NewInt(10)
	maxUint64 = new(big.Int).SetUint64(^uint64(0))
)

// units encodes a base-unit amount for a NUMERIC(20,0) column.
func units(v uint64) pgtype.Numeric {
	return pgtype.Numeric{Int: new(big.Int).SetUint64(v), Valid: true}
}

// fromUnits decodes a NUMERIC(20,0) column into base units.
func fromUnits(n pgtype.Numeric) (uint64, error) {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite {
		return 0, fmt.Errorf("postgres: non-finite amount")
	}
	v := new(big.Int).Set(n.Int)
	switch {
	case n.Exp > 0:
		v.Mul(v, new(big.Int).Exp(bigTen, big.NewInt(int64(n.Exp)), nil))
	case n.Exp < 0:
		div := new(big.Int).Exp(bigTen, big.NewInt(int64(-n.Exp)), nil)
		var rem big.Int
		v.QuoRem(v, div, &rem)
		if rem.Sign() != 0 {
			return 0, fmt.Errorf("postgres: fractional amount %s", n.Int)
		}
	}
	if v.Sign() < 0 || v.Cmp(maxUint64) > 0 {
		return 0, fmt.Errorf("postgres: amount %s out of range: %w", v, domain.ErrArithmeticOverflow)
	}
	return v.Uint64(), nil
}

// addressScanner fills a 20-byte address from a BYTEA column.
type addressScanner struct {
	dst *domain.Address
}

func bytea(dst *domain.Address) *addressScanner { return &addressScanner{dst: dst} }

// ScanBytes implements pgtype.BytesScanner.
func (s *addressScanner) ScanBytes(v []byte) error {
	if len(v) != len(s.dst) {
		return fmt.Errorf("postgres: address column holds %d bytes", len(v))
	}
	copy(s.dst[:], v)
	return nil
}

const uniqueViolation = "23505"

// mapErr translates driver errors into domain sentinels.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, domain.ErrAlreadyExists)
	}
	return err
}
