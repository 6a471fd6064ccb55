package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.000000", FormatAmount(0))
	assert.Equal(t, "1.500000", FormatAmount(1_500_000))
	assert.Equal(t, "0.000100", FormatAmount(100))
	assert.Equal(t, "18446744073709.551615", FormatAmount(math.MaxUint64))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{in: "12.5", want: 12_500_000},
		{in: "0.000001", want: 1},
		{in: "100", want: 100_000_000},
		{in: "0.0000001", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "18446744073709.551616", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmountChange(t *testing.T) {
	got, err := ParseAmountChange("-1.25")
	require.NoError(t, err)
	assert.Equal(t, int64(-1_250_000), got)

	got, err = ParseAmountChange("0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	_, err = ParseAmountChange("1.0000001")
	require.Error(t, err)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "BidTooLow", ErrorCode(ErrBidTooLow))
	assert.Equal(t, "", ErrorCode(ErrNotFound))
}
