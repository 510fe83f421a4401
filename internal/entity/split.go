package domain

import (
	"fmt"
	"time"
)

type SplitEntry string

const (
	SplitSettlement SplitEntry = "SETTLEMENT"
	SplitReversal   SplitEntry = "REVERSAL"
)

// CommissionSplit is one seller's share of a settled order. Splits are created
// exactly once per (order, seller, entry) and are immutable; a refund appends
// REVERSAL rows with negated amounts, never touches the originals.
type CommissionSplit struct {
	ID          string
	OrderID     string
	SellerID    string
	Entry       SplitEntry
	Gross       Money
	PlatformFee Money
	Payable     Money
	CreatedAt   time.Time
}

// Reversed returns the compensating split for a refund.
func (s CommissionSplit) Reversed(id string) CommissionSplit {
	return CommissionSplit{
		ID:          id,
		OrderID:     s.OrderID,
		SellerID:    s.SellerID,
		Entry:       SplitReversal,
		Gross:       s.Gross.Neg(),
		PlatformFee: s.PlatformFee.Neg(),
		Payable:     s.Payable.Neg(),
	}
}

// CheckSplitSum verifies that payable + fee across all splits equals the
// settled total exactly. Any drift here is a programming error upstream.
func CheckSplitSum(splits []CommissionSplit, total Money) error {
	sum := Money{Currency: total.Currency}
	for _, s := range splits {
		var err error
		if sum, err = sum.Add(s.Payable); err != nil {
			return err
		}
		if sum, err = sum.Add(s.PlatformFee); err != nil {
			return err
		}
	}
	if sum != total {
		return fmt.Errorf("split sum %s != settled total %s", sum, total)
	}
	return nil
}
