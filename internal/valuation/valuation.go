// Package valuation converts pool totals into per-share prices and share
// counts. All conversions are fixed-point with Precision and use widened
// intermediates so that value*Precision never overflows.
package valuation

import (
	"cosmossdk.io/math"
	"github.com/shopspring/decimal"

	"github.com/shrublabs/shrub-fund/internal/types"
)

// Precision matches the settlement currency decimals: a price of Precision
// means one unit of currency per share.
const Precision uint64 = 1_000_000

// Decimals is log10(Precision).
const Decimals int32 = 6

// BasisPoints is the denominator of fee rates.
const BasisPoints uint64 = 10_000

var precision = math.NewIntFromUint64(Precision)

// Pool is the subset of the fund ledger the engine reads.
type Pool struct {
	TotalShares       uint64
	SmoothedValuation uint64
	RealValuation     uint64
}

// PriceFrom returns totalValue*Precision/totalShares, or Precision when no
// shares exist.
func PriceFrom(totalValue, totalShares uint64) (uint64, error) {
	if totalShares == 0 {
		return Precision, nil
	}
	price := math.NewIntFromUint64(totalValue).
		Mul(precision).
		Quo(math.NewIntFromUint64(totalShares))
	return toUint64(price)
}

// OptimizedPrice is the per-share price under the smoothed valuation.
func (p Pool) OptimizedPrice() (uint64, error) {
	return PriceFrom(p.SmoothedValuation, p.TotalShares)
}

// RealPrice is the per-share price under the live valuation.
func (p Pool) RealPrice() (uint64, error) {
	return PriceFrom(p.RealValuation, p.TotalShares)
}

// SharesForDeposit prices a deposit at the real price so new capital never
// buys at a stale smoothed discount.
func (p Pool) SharesForDeposit(amount uint64) (uint64, error) {
	realPrice, err := p.RealPrice()
	if err != nil {
		return 0, err
	}
	if realPrice == 0 {
		return 0, types.ErrMathOverflow.Wrapf("real price is zero")
	}
	shares, err := toUint64(
		math.NewIntFromUint64(amount).
			Mul(precision).
			Quo(math.NewIntFromUint64(realPrice)),
	)
	if err != nil {
		return 0, err
	}
	if shares == 0 {
		return 0, types.ErrInsufficientAmount.Wrapf("deposit of %d mints no shares at price %d", amount, realPrice)
	}
	return shares, nil
}

// ValueForShares prices shares at the smoothed price. Withdrawals use this.
func (p Pool) ValueForShares(shares uint64) (uint64, error) {
	optimizedPrice, err := p.OptimizedPrice()
	if err != nil {
		return 0, err
	}
	return toUint64(
		math.NewIntFromUint64(shares).
			Mul(math.NewIntFromUint64(optimizedPrice)).
			Quo(precision),
	)
}

// Fee returns amount*bps/BasisPoints rounded down.
func Fee(amount, bps uint64) (uint64, error) {
	return toUint64(
		math.NewIntFromUint64(amount).
			Mul(math.NewIntFromUint64(bps)).
			Quo(math.NewIntFromUint64(BasisPoints)),
	)
}

// Mean returns the truncated arithmetic mean of values.
func Mean(values []uint64) (uint64, error) {
	if len(values) == 0 {
		return 0, types.ErrEmptyNavHistory
	}
	sum := math.ZeroInt()
	for _, v := range values {
		sum = sum.Add(math.NewIntFromUint64(v))
	}
	return toUint64(sum.Quo(math.NewInt(int64(len(values)))))
}

func toUint64(i math.Int) (uint64, error) {
	if i.IsNegative() || !i.IsUint64() {
		return 0, types.ErrMathOverflow
	}
	return i.Uint64(), nil
}

// Format renders a fixed-point amount or price in whole currency units with
// all Decimals places, e.g. 1500000 as "1.500000".
func Format(v uint64) string {
	return decimal.NewFromUint64(v).Shift(-Decimals).StringFixed(Decimals)
}
