package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReversedNegatesEveryAmount(t *testing.T) {
	s := CommissionSplit{
		ID:          "sp-1",
		OrderID:     "ord-1",
		SellerID:    "s-a",
		Entry:       SplitSettlement,
		Gross:       vnd(70_000),
		PlatformFee: vnd(3_500),
		Payable:     vnd(66_500),
	}
	r := s.Reversed("sp-2")
	assert.Equal(t, SplitReversal, r.Entry)
	assert.Equal(t, "ord-1", r.OrderID)
	assert.Equal(t, "s-a", r.SellerID)
	assert.Equal(t, int64(-70_000), r.Gross.Units)
	assert.Equal(t, int64(-3_500), r.PlatformFee.Units)
	assert.Equal(t, int64(-66_500), r.Payable.Units)
	// original untouched
	assert.Equal(t, int64(66_500), s.Payable.Units)
}

func TestCheckSplitSum(t *testing.T) {
	splits := []CommissionSplit{
		{PlatformFee: vnd(3_500), Payable: vnd(66_500)},
		{PlatformFee: vnd(1_500), Payable: vnd(28_500)},
	}
	require.NoError(t, CheckSplitSum(splits, vnd(100_000)))
	assert.Error(t, CheckSplitSum(splits, vnd(100_001)))
	assert.Error(t, CheckSplitSum(splits[:1], vnd(100_000)))
}
