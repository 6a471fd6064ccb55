package auction

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sealedpool/internal/domain"
)

func TestCheckedArithmetic(t *testing.T) {
	sum, err := checkedAdd(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), sum)

	_, err = checkedAdd(math.MaxUint64, 1)
	assert.ErrorIs(t, err, domain.ErrArithmeticOverflow)

	diff, err := checkedSub(5, 5)
	require.NoError(t, err)
	assert.Zero(t, diff)

	_, err = checkedSub(0, 1)
	assert.ErrorIs(t, err, domain.ErrArithmeticOverflow)
}

func TestMagnitude(t *testing.T) {
	m, err := magnitude(-150)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), m)

	m, err = magnitude(math.MinInt64 + 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxInt64), m)

	_, err = magnitude(math.MinInt64)
	assert.ErrorIs(t, err, domain.ErrInvalidAmountChange)
}
