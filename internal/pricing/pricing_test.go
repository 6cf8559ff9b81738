package pricing

import (
	"math/big"
	"testing"

	"github.com/proquint-registry/backend/internal/proquint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 24 * 60 * 60

func wei(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic(s)
	}
	return v
}

func TestRegistrationPrice(t *testing.T) {
	tests := []struct {
		years      int
		palindrome bool
		want       string
	}{
		{1, false, "240000000000000"},
		{2, false, "720000000000000"},
		{3, false, "1680000000000000"},
		{12, false, "982800000000000000"},
		{1, true, "1200000000000000"},
		{12, true, "4914000000000000000"},
	}
	for _, tt := range tests {
		got := RegistrationPrice(tt.years, tt.palindrome)
		assert.Equal(t, 0, got.Cmp(wei(tt.want)), "years=%d palindrome=%v got %s", tt.years, tt.palindrome, got)
	}
}

func TestRegistrationPrice_RenewingYearlyIsCheaper(t *testing.T) {
	for n := 1; n < MaxYears; n++ {
		prepaid := RegistrationPrice(n+1, false)
		yearly := new(big.Int).Mul(big.NewInt(int64(n+1)), RegistrationPrice(1, false))
		require.Equal(t, 1, prepaid.Cmp(yearly), "years=%d", n+1)
		require.Equal(t, 1, prepaid.Cmp(RegistrationPrice(n, false)))
	}
}

func TestRegistrationPrice_DoesNotAliasConstants(t *testing.T) {
	_ = RegistrationPrice(3, true)
	assert.Equal(t, 0, PricePerYear.Cmp(big.NewInt(240_000_000_000_000)))
}

func TestValidateYears(t *testing.T) {
	for _, y := range []int{-1, 0, 13, 100} {
		assert.ErrorIs(t, ValidateYears(y), ErrYearsOutOfRange, "years=%d", y)
	}
	for y := MinYears; y <= MaxYears; y++ {
		assert.NoError(t, ValidateYears(y))
	}
}

func TestRefundAmount(t *testing.T) {
	tests := []struct {
		name      string
		remaining int64
		months    int64
	}{
		{"negative", -10, 0},
		{"zero", 0, 0},
		{"29 days", 29 * day, 0},
		{"exactly 30 days", 30 * day, 1},
		{"89 days", 89 * day, 2},
		{"90 days", 90 * day, 3},
		{"12 years", 12 * 365 * day, 146},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := new(big.Int).Mul(big.NewInt(tt.months), PricePerMonth)
			assert.Equal(t, 0, RefundAmount(tt.remaining).Cmp(want))
		})
	}
}

func TestRefundAmount_Capped(t *testing.T) {
	// 300k months is far past the 5 ETH cap
	got := RefundAmount(300_000 * SecondsPerMonth)
	assert.Equal(t, 0, got.Cmp(MaxRefund))
	assert.Equal(t, 0, OwnerRefund(300_000*SecondsPerMonth).Cmp(MaxRefund))
}

func TestBurnReward(t *testing.T) {
	threeMonths := int64(90 * day)

	withReceiver := BurnReward(threeMonths, true)
	assert.Equal(t, "30000000000000", withReceiver.String()) // 1.5 * PricePerMonth

	alone := BurnReward(threeMonths, false)
	assert.Equal(t, "60000000000000", alone.String())

	// one month is not more than one month's worth: no split
	assert.Equal(t, 0, BurnReward(30*day, true).Cmp(PricePerMonth))
	assert.Equal(t, int64(0), BurnReward(0, true).Int64())
}

func TestNewQuote(t *testing.T) {
	q, err := NewQuote(2, proquint.FromUint32(0x00010002))
	require.NoError(t, err)
	assert.False(t, q.IsPalindrome)
	assert.Equal(t, "720000000000000", q.AmountWei.String())

	q, err = NewQuote(1, proquint.FromUint32(0xabcdabcd))
	require.NoError(t, err)
	assert.True(t, q.IsPalindrome)
	assert.Equal(t, "1200000000000000", q.AmountWei.String())
	assert.Equal(t, "0.00120", q.ETH())

	_, err = NewQuote(0, proquint.ID{})
	assert.ErrorIs(t, err, ErrYearsOutOfRange)
}

func TestFormatETH(t *testing.T) {
	tests := []struct {
		wei  string
		want string
	}{
		{"240000000000000", "0.000240"},
		{"1200000000000000", "0.00120"},
		{"982800000000000000", "0.9828"},
		{"0", "0.000000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatETH(wei(tt.wei)), tt.wei)
	}
	assert.Equal(t, "0.000000", FormatETH(nil))
}
