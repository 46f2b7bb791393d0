// Package pricing holds the SaaS plan table and the commission fee calculation.
package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Plan string

const (
	PlanFree    Plan = "FREE"
	PlanPro     Plan = "PRO"
	PlanPremium Plan = "PREMIUM"
)

// Unlimited marks a plan without a product cap.
const Unlimited = -1

var ErrUnknownPlan = errors.New("unknown plan")

type Details struct {
	Name          string
	FeePercentage decimal.Decimal
	ProductsLimit int
}

// Plans is the closed set of subscription plans.
var Plans = []Plan{PlanFree, PlanPro, PlanPremium}

var table = map[Plan]Details{
	PlanFree:    {Name: "Free", FeePercentage: decimal.RequireFromString("0.01"), ProductsLimit: 10},
	PlanPro:     {Name: "Pro", FeePercentage: decimal.RequireFromString("0.005"), ProductsLimit: Unlimited},
	PlanPremium: {Name: "Premium", FeePercentage: decimal.Zero, ProductsLimit: Unlimited},
}

// Validate checks that every plan has a table entry. Call it once at startup.
func Validate() error {
	for _, p := range Plans {
		d, ok := table[p]
		if !ok {
			return fmt.Errorf("%w: %s has no pricing entry", ErrUnknownPlan, p)
		}
		if d.FeePercentage.IsNegative() || d.FeePercentage.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("plan %s: fee percentage %s out of range", p, d.FeePercentage)
		}
	}
	return nil
}

func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToUpper(strings.TrimSpace(s)))
	if p == "" {
		return PlanFree, nil
	}
	if _, ok := table[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, s)
	}
	return p, nil
}

func Lookup(p Plan) (Details, bool) {
	d, ok := table[p]
	return d, ok
}

// Fee returns the platform commission for amount under plan, rounded to cents.
// Plans are validated at startup, so an unknown plan here is a programming error.
func Fee(amount decimal.Decimal, p Plan) decimal.Decimal {
	d, ok := table[p]
	if !ok {
		panic(fmt.Sprintf("pricing: fee requested for unknown plan %q", p))
	}
	return amount.Mul(d.FeePercentage).Round(2)
}

// CanAddProduct reports whether a store on plan p holding current products may add one more.
func CanAddProduct(p Plan, current int) bool {
	d, ok := table[p]
	if !ok {
		return false
	}
	return d.ProductsLimit == Unlimited || current < d.ProductsLimit
}
