// Package pricing implements the weighted constant-mean spot price and the
// implied-price walk used to value swaps of unpriced tokens.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// DivisionPrecision is the number of fractional digits kept by divisions.
const DivisionPrecision = 36

// ErrDegenerate is returned when reserves or weights leave a formula undefined.
var ErrDegenerate = errors.New("degenerate pool state")

var one = decimal.NewFromInt(1)

// CalcSpotPrice returns (balanceIn/weightIn) / (balanceOut/weightOut) * 1/(1-swapFee).
func CalcSpotPrice(weightIn, weightOut, balanceIn, balanceOut, swapFee decimal.Decimal) (decimal.Decimal, error) {
	if weightIn.Sign() <= 0 || weightOut.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: non-positive weight", ErrDegenerate)
	}
	if balanceOut.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: non-positive out balance", ErrDegenerate)
	}
	if swapFee.GreaterThanOrEqual(one) {
		return decimal.Zero, fmt.Errorf("%w: swap fee %s", ErrDegenerate, swapFee)
	}

	numer := div(balanceIn, weightIn)
	denom := div(balanceOut, weightOut)
	ratio := div(numer, denom)
	scale := div(one, one.Sub(swapFee))
	return ratio.Mul(scale), nil
}

// ImpliedPrice backs a target token's price out of a priced token in the same
// pool: knownPrice * (knownBalance/knownWeight) / (targetBalance/targetWeight).
func ImpliedPrice(knownPrice decimal.Decimal, known, target Reserve) (decimal.Decimal, error) {
	if known.Weight.Sign() <= 0 || target.Weight.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: non-positive weight", ErrDegenerate)
	}
	if target.Balance.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: non-positive target balance", ErrDegenerate)
	}
	price := div(knownPrice.Mul(known.Balance), known.Weight)
	return div(price.Mul(target.Weight), target.Balance), nil
}

// Liquidity values the whole pool in the numéraire: the numéraire reserve
// divided by its share of the total weight.
func Liquidity(numeraireBalance, numeraireWeight, totalWeight decimal.Decimal) (decimal.Decimal, error) {
	if numeraireWeight.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: non-positive numeraire weight", ErrDegenerate)
	}
	return div(numeraireBalance.Mul(totalWeight), numeraireWeight), nil
}

func div(a, b decimal.Decimal) decimal.Decimal {
	return a.DivRound(b, DivisionPrecision)
}
