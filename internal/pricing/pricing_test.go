package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSellingPrice(t *testing.T) {
	testCases := []struct {
		name     string
		cost     float64
		delivery float64
		want     float64
	}{
		{name: "typical part", cost: 30.66, delivery: 6.0, want: 51.99},
		{name: "zero cost yields delivery", cost: 0, delivery: 6.0, want: 6.0},
		{name: "zero cost zero delivery", cost: 0, delivery: 0, want: 0},
		{name: "round cost", cost: 100, delivery: 6.0, want: 156.0},
		{name: "custom delivery", cost: 10, delivery: 2.5, want: 17.5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := SellingPrice(tc.cost, tc.delivery)
			assert.InDelta(t, tc.want, got, 1e-9)
			assert.InDelta(t, tc.cost*1.5+tc.delivery, got, 1e-9)
		})
	}
}

func TestNewRuleDefaults(t *testing.T) {
	r := NewRule(0, -1)
	assert.Equal(t, DefaultMarkup, r.Markup)
	assert.Equal(t, DefaultDeliveryCost, r.DeliveryCost)
}

func TestNewRuleZeroDeliveryGetsDefault(t *testing.T) {
	r := NewRule(0, 0)
	assert.Equal(t, DefaultDeliveryCost, r.DeliveryCost)
	assert.InDelta(t, 51.99, r.SellingPrice(30.66, r.DeliveryCost), 1e-9)
}

func TestRuleNegativeDeliveryFallsBack(t *testing.T) {
	r := NewRule(1.5, 6.0)
	assert.InDelta(t, 21.0, r.SellingPrice(10, -1), 1e-9)
}
