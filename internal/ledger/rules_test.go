package ledger

import (
	"math"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

var (
	usdc  = domain.Asset{Address: common.HexToAddress("0xa0"), Symbol: "USDC", Decimals: 6}
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb0")
)

func accounts() (*domain.TokenAccount, *domain.TokenAccount) {
	from := &domain.TokenAccount{Address: common.HexToAddress("0x01"), Owner: alice, Asset: usdc.Address, Balance: 500}
	to := &domain.TokenAccount{Address: common.HexToAddress("0x02"), Owner: bob, Asset: usdc.Address, Balance: 10}
	return from, to
}

func transfer(amount uint64) domain.Transfer {
	return domain.Transfer{
		From:      common.HexToAddress("0x01"),
		To:        common.HexToAddress("0x02"),
		Asset:     usdc.Address,
		Amount:    amount,
		Decimals:  6,
		Authority: alice,
	}
}

func TestApplyMovesExactAmount(t *testing.T) {
	from, to := accounts()
	require.NoError(t, Apply(from, to, usdc, transfer(200)))
	assert.Equal(t, uint64(300), from.Balance)
	assert.Equal(t, uint64(210), to.Balance)
}

func TestApplyRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(from, to *domain.TokenAccount, tr *domain.Transfer)
		want   error
	}{
		{
			name:   "insufficient funds",
			mutate: func(_, _ *domain.TokenAccount, tr *domain.Transfer) { tr.Amount = 501 },
			want:   domain.ErrInsufficientFunds,
		},
		{
			name:   "wrong authority",
			mutate: func(_, _ *domain.TokenAccount, tr *domain.Transfer) { tr.Authority = bob },
			want:   domain.ErrTransferUnauthorized,
		},
		{
			name:   "decimals mismatch",
			mutate: func(_, _ *domain.TokenAccount, tr *domain.Transfer) { tr.Decimals = 9 },
			want:   domain.ErrDecimalsMismatch,
		},
		{
			name:   "destination holds another asset",
			mutate: func(_, to *domain.TokenAccount, _ *domain.Transfer) { to.Asset = common.HexToAddress("0xdead") },
			want:   domain.ErrAssetMismatch,
		},
		{
			name:   "credit overflow",
			mutate: func(_, to *domain.TokenAccount, _ *domain.Transfer) { to.Balance = math.MaxUint64 },
			want:   domain.ErrArithmeticOverflow,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			from, to := accounts()
			tr := transfer(100)
			tt.mutate(from, to, &tr)
			before := *from

			err := Apply(from, to, usdc, tr)
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, before.Balance, from.Balance)
		})
	}
}

func TestCredit(t *testing.T) {
	from, _ := accounts()
	require.NoError(t, Credit(from, 5))
	assert.Equal(t, uint64(505), from.Balance)

	from.Balance = math.MaxUint64
	require.ErrorIs(t, Credit(from, 1), domain.ErrArithmeticOverflow)
}
