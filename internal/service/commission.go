package service

import (
	"fmt"

	"referral_platform/internal/model"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// Rates holds the commission fraction paid to each referral level.
type Rates struct {
	Level1 decimal.Decimal
	Level2 decimal.Decimal
	Level3 decimal.Decimal
}

func DefaultRates() Rates {
	return Rates{
		Level1: decimal.RequireFromString("0.10"),
		Level2: decimal.RequireFromString("0.05"),
		Level3: decimal.RequireFromString("0.03"),
	}
}

func (r Rates) byLevel() []decimal.Decimal {
	return []decimal.Decimal{r.Level1, r.Level2, r.Level3}
}

func (r Rates) Validate() error {
	one := decimal.NewFromInt(1)
	for i, rate := range r.byLevel() {
		if rate.IsNegative() || rate.GreaterThan(one) {
			return fmt.Errorf("level%d commission rate %s is outside [0,1]", i+1, rate)
		}
	}
	return nil
}

// Total is the sum of all level rates, the upper bound of what a single
// payment can pay out.
func (r Rates) Total() decimal.Decimal {
	return r.Level1.Add(r.Level2).Add(r.Level3)
}

type Calculator struct {
	rates Rates
}

func NewCalculator(rates Rates) (*Calculator, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{rates: rates}, nil
}

func (c *Calculator) Rates() Rates {
	return c.rates
}

func (c *Calculator) Rate(level int) decimal.Decimal {
	if level < 1 || level > model.MaxReferralLevel {
		panic(fmt.Sprintf("commission level %d out of range", level))
	}
	return c.rates.byLevel()[level-1]
}

// Amount returns paymentAmount * rate(level) rounded half-up to cents.
func (c *Calculator) Amount(paymentAmount decimal.Decimal, level int) decimal.Decimal {
	return paymentAmount.Mul(c.Rate(level)).Round(moneyPlaces)
}
