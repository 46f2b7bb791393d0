package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.NoError(t, Validate())
}

func TestFee(t *testing.T) {
	amount := decimal.RequireFromString("50.00")
	cases := map[Plan]string{
		PlanFree:    "0.5",
		PlanPro:     "0.25",
		PlanPremium: "0",
	}
	for plan, want := range cases {
		got := Fee(amount, plan)
		assert.Truef(t, got.Equal(decimal.RequireFromString(want)), "plan %s: got %s want %s", plan, got, want)
	}
}

func TestFee_RoundsToCents(t *testing.T) {
	got := Fee(decimal.RequireFromString("33.33"), PlanPro)
	assert.Equal(t, "0.17", got.StringFixed(2))
}

func TestFee_UnknownPlanPanics(t *testing.T) {
	assert.Panics(t, func() { Fee(decimal.NewFromInt(10), Plan("GOLD")) })
}

func TestParsePlan(t *testing.T) {
	p, err := ParsePlan(" pro ")
	require.NoError(t, err)
	assert.Equal(t, PlanPro, p)

	p, err = ParsePlan("")
	require.NoError(t, err)
	assert.Equal(t, PlanFree, p)

	_, err = ParsePlan("gold")
	assert.ErrorIs(t, err, ErrUnknownPlan)
}

func TestCanAddProduct(t *testing.T) {
	assert.True(t, CanAddProduct(PlanFree, 9))
	assert.False(t, CanAddProduct(PlanFree, 10))
	assert.True(t, CanAddProduct(PlanPro, 10000))
	assert.False(t, CanAddProduct(Plan("GOLD"), 0))
}
