package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vnd(units int64) Money { return Money{Units: units, Currency: "VND"} }

func TestSplitCommissionExample(t *testing.T) {
	// 5% platform fee over two sellers at 70k / 30k.
	feeA, payA := mustSplit2(t, vnd(70_000), 50, 950)
	feeB, payB := mustSplit2(t, vnd(30_000), 50, 950)

	assert.Equal(t, int64(3_500), feeA.Units)
	assert.Equal(t, int64(66_500), payA.Units)
	assert.Equal(t, int64(1_500), feeB.Units)
	assert.Equal(t, int64(28_500), payB.Units)
	assert.Equal(t, int64(100_000), feeA.Units+payA.Units+feeB.Units+payB.Units)
}

func mustSplit2(t *testing.T, m Money, w1, w2 int64) (Money, Money) {
	t.Helper()
	parts, err := m.Split(w1, w2)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	return parts[0], parts[1]
}

func TestSplitConservesEveryUnit(t *testing.T) {
	cases := []struct {
		units   int64
		weights []int64
	}{
		{100, []int64{1, 1, 1}},
		{1, []int64{1, 1_000_000}},
		{99_999, []int64{50, 950}},
		{7, []int64{3, 3, 1}},
		{0, []int64{2, 5}},
		{12_345, []int64{0, 1}},
	}
	for _, tc := range cases {
		parts, err := vnd(tc.units).Split(tc.weights...)
		require.NoError(t, err)
		var sum int64
		for _, p := range parts {
			assert.GreaterOrEqual(t, p.Units, int64(0))
			assert.Equal(t, "VND", p.Currency)
			sum += p.Units
		}
		assert.Equal(t, tc.units, sum, "weights %v", tc.weights)
	}
}

func TestSplitLeftoverGoesToLargestRemainder(t *testing.T) {
	// 100 over equal thirds: remainders tie, input order breaks the tie.
	parts, err := vnd(100).Split(1, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{34, 33, 33}, []int64{parts[0].Units, parts[1].Units, parts[2].Units})

	// 1 unit, wildly uneven weights: the near-total weight wins the unit.
	parts, err = vnd(1).Split(1, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(0), parts[0].Units)
	assert.Equal(t, int64(1), parts[1].Units)
}

func TestSplitNegativeAmountMirrorsPositive(t *testing.T) {
	pos, err := vnd(101).Split(1, 2)
	require.NoError(t, err)
	neg, err := vnd(-101).Split(1, 2)
	require.NoError(t, err)
	var sum int64
	for i := range pos {
		assert.Equal(t, -pos[i].Units, neg[i].Units)
		sum += neg[i].Units
	}
	assert.Equal(t, int64(-101), sum)
}

func TestSplitRejectsBadWeights(t *testing.T) {
	_, err := vnd(10).Split()
	assert.ErrorIs(t, err, ErrValidation)
	_, err = vnd(10).Split(1, -1)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = vnd(10).Split(0, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMulRatioRoundsHalfAwayFromZero(t *testing.T) {
	cases := []struct {
		units    int64
		num, den int64
		want     int64
	}{
		{105, 1, 2, 53},
		{-105, 1, 2, -53},
		{10, 1, 3, 3},
		{20, 1, 3, 7},
		{100, 50, 1000, 5},
	}
	for _, tc := range cases {
		got, err := vnd(tc.units).MulRatio(tc.num, tc.den)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.Units, "%d * %d/%d", tc.units, tc.num, tc.den)
	}

	_, err := vnd(1).MulRatio(1, 0)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestArithmeticRejectsCurrencyMismatch(t *testing.T) {
	usd := Money{Units: 5, Currency: "USD"}
	_, err := vnd(5).Add(usd)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = vnd(5).Sub(usd)
	assert.ErrorIs(t, err, ErrValidation)
}
