package domain

import (
	"fmt"
	"sort"
)

// Money is an amount in minor currency units (cents, dong, ...).
// All arithmetic is integer-exact; there is no floating-point path anywhere.
type Money struct {
	Units    int64
	Currency string
}

func NewMoney(units int64, currency string) (Money, error) {
	if currency == "" {
		return Money{}, fmt.Errorf("%w: currency is required", ErrValidation)
	}
	return Money{Units: units, Currency: currency}, nil
}

func (m Money) IsZero() bool     { return m.Units == 0 }
func (m Money) IsNegative() bool { return m.Units < 0 }
func (m Money) IsPositive() bool { return m.Units > 0 }

// Neg returns the compensating (sign-flipped) amount. Used for refund splits.
func (m Money) Neg() Money {
	return Money{Units: -m.Units, Currency: m.Currency}
}

func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, fmt.Errorf("%w: currency mismatch %s vs %s", ErrValidation, m.Currency, o.Currency)
	}
	return Money{Units: m.Units + o.Units, Currency: m.Currency}, nil
}

func (m Money) Sub(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, fmt.Errorf("%w: currency mismatch %s vs %s", ErrValidation, m.Currency, o.Currency)
	}
	return Money{Units: m.Units - o.Units, Currency: m.Currency}, nil
}

// MulInt scales the amount by a whole quantity (line item price * qty).
func (m Money) MulInt(n int64) Money {
	return Money{Units: m.Units * n, Currency: m.Currency}
}

// MulRatio multiplies by num/den with rounding half away from zero.
// Used for tax and discount rates expressed as rationals.
func (m Money) MulRatio(num, den int64) (Money, error) {
	if den <= 0 {
		return Money{}, fmt.Errorf("%w: denominator must be positive", ErrValidation)
	}
	p := m.Units * num
	q := p / den
	r := p % den
	if r != 0 {
		if abs64(r)*2 >= den {
			if p < 0 {
				q--
			} else {
				q++
			}
		}
	}
	return Money{Units: q, Currency: m.Currency}, nil
}

// Split divides the amount across the given weights using the largest-remainder
// method: every part gets the truncated ideal share, then the leftover units go
// one by one to the parts with the largest truncation remainder, ties broken by
// input order. The parts always sum to the original amount exactly, and a
// non-negative amount with non-negative weights never yields a negative part.
func (m Money) Split(weights ...int64) ([]Money, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("%w: split needs at least one weight", ErrValidation)
	}
	var wsum int64
	for _, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("%w: negative weight %d", ErrValidation, w)
		}
		wsum += w
	}
	if wsum == 0 {
		return nil, fmt.Errorf("%w: split weights sum to zero", ErrValidation)
	}

	if m.Units < 0 {
		parts, err := m.Neg().Split(weights...)
		if err != nil {
			return nil, err
		}
		for i := range parts {
			parts[i] = parts[i].Neg()
		}
		return parts, nil
	}

	parts := make([]Money, len(weights))
	rems := make([]struct {
		idx int
		rem int64
	}, len(weights))
	var allocated int64
	for i, w := range weights {
		p := m.Units * w
		base := p / wsum
		parts[i] = Money{Units: base, Currency: m.Currency}
		rems[i].idx = i
		rems[i].rem = p % wsum
		allocated += base
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].rem > rems[b].rem })
	for left := m.Units - allocated; left > 0; left-- {
		parts[rems[0].idx].Units++
		rems = rems[1:]
	}
	return parts, nil
}

func (m Money) String() string {
	return fmt.Sprintf("%d %s", m.Units, m.Currency)
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
