package service

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
)

// Summary describes prices and consumption over a time window.
type Summary struct {
	From time.Time
	To   time.Time

	Hours       int
	PricedHours int
	MeanPrice   float64
	StdDevPrice float64
	MinPrice    decimal.NullDecimal
	MaxPrice    decimal.NullDecimal

	Consumption decimal.Decimal
	// Cost sums price*amount over hours where both are known.
	Cost decimal.Decimal
	// PaidPrice is the consumption weighted average price. Undefined when
	// no hour carries both a price and an amount.
	PaidPrice decimal.NullDecimal
}

// Savings is the difference between the plain average price and the price
// actually paid. Positive means consumption landed on cheaper hours.
func (s Summary) Savings() float64 {
	if !s.PaidPrice.Valid || s.PricedHours == 0 {
		return math.NaN()
	}
	return s.MeanPrice - s.PaidPrice.Decimal.InexactFloat64()
}

// Summarize computes statistics for records in [from, to].
func (s *Service) Summarize(from, to time.Time) Summary {
	sum := Summary{From: from.UTC(), To: to.UTC()}

	var (
		prices      []float64
		billedUsage decimal.Decimal
	)
	for _, r := range s.store.FilterByTime(from, &to).All() {
		sum.Hours++
		if r.HasAmount() {
			sum.Consumption = sum.Consumption.Add(r.Amount().Decimal)
		}
		if !r.HasPrice() {
			continue
		}

		price := r.Price().Decimal
		prices = append(prices, price.InexactFloat64())
		if !sum.MinPrice.Valid || price.LessThan(sum.MinPrice.Decimal) {
			sum.MinPrice = decimal.NewNullDecimal(price)
		}
		if !sum.MaxPrice.Valid || price.GreaterThan(sum.MaxPrice.Decimal) {
			sum.MaxPrice = decimal.NewNullDecimal(price)
		}
		if r.HasAmount() {
			sum.Cost = sum.Cost.Add(price.Mul(r.Amount().Decimal))
			billedUsage = billedUsage.Add(r.Amount().Decimal)
		}
	}

	sum.PricedHours = len(prices)
	if len(prices) > 0 {
		sum.MeanPrice, sum.StdDevPrice = stat.MeanStdDev(prices, nil)
		if len(prices) == 1 {
			sum.StdDevPrice = 0
		}
	}
	if billedUsage.IsPositive() {
		sum.PaidPrice = decimal.NewNullDecimal(sum.Cost.Div(billedUsage))
	}
	return sum
}
