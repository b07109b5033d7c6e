package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Reserve is a token's balance and denormalized weight inside a pool.
type Reserve struct {
	Token   string
	Balance decimal.Decimal
	Weight  decimal.Decimal
}

// PriceSource returns the cached price of a token, if any.
type PriceSource func(token string) (decimal.Decimal, bool, error)

// ReserveSource returns a token's reserve in the pool being priced, if bound.
type ReserveSource func(token string) (Reserve, bool, error)

// PropagatePrice returns the target's cached price when one exists. Otherwise
// it walks tokens in order and backs the price out of the first token with a
// positive cached price, balance and weight. Zero means no path was found.
func PropagatePrice(target Reserve, tokens []string, prices PriceSource, reserves ReserveSource) (decimal.Decimal, error) {
	direct, ok, err := prices(target.Token)
	if err != nil {
		return decimal.Zero, err
	}
	if ok {
		return direct, nil
	}

	for _, token := range tokens {
		if token == target.Token {
			continue
		}
		price, ok, err := prices(token)
		if err != nil {
			return decimal.Zero, err
		}
		if !ok || price.Sign() <= 0 {
			continue
		}
		known, ok, err := reserves(token)
		if err != nil {
			return decimal.Zero, err
		}
		if !ok || known.Balance.Sign() <= 0 || known.Weight.Sign() <= 0 {
			continue
		}

		implied, err := ImpliedPrice(price, known, target)
		if errors.Is(err, ErrDegenerate) {
			return decimal.Zero, nil
		}
		return implied, err
	}
	return decimal.Zero, nil
}
