// Package pricing holds the selling price rule applied to every
// catalog product.
package pricing

// Defaults applied when no pricing configuration is supplied.
const (
	DefaultMarkup       = 1.5
	DefaultDeliveryCost = 6.0
)

// Rule computes selling prices from cost and delivery inputs.
type Rule struct {
	Markup       float64
	DeliveryCost float64
}

// NewRule returns a pricing rule, substituting defaults for
// non-positive inputs.
func NewRule(markup, deliveryCost float64) Rule {
	if markup <= 0 {
		markup = DefaultMarkup
	}
	if deliveryCost <= 0 {
		deliveryCost = DefaultDeliveryCost
	}
	return Rule{Markup: markup, DeliveryCost: deliveryCost}
}

// SellingPrice returns cost*markup + deliveryCost. A negative
// deliveryCost falls back to the rule's configured delivery cost.
func (r Rule) SellingPrice(costPrice, deliveryCost float64) float64 {
	if deliveryCost < 0 {
		deliveryCost = r.DeliveryCost
	}
	return costPrice*r.Markup + deliveryCost
}

// SellingPrice applies the default rule: cost*1.5 + 6.0.
func SellingPrice(costPrice, deliveryCost float64) float64 {
	return NewRule(DefaultMarkup, DefaultDeliveryCost).SellingPrice(costPrice, deliveryCost)
}
