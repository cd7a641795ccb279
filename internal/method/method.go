// Package method describes the payment methods the checkout can offer.
package method

import (
	"github.com/flip-id/flip-checkout-service/internal/order"
)

// CodeCheckoutSeamless is the hosted payment-link method.
const CodeCheckoutSeamless = "flip_checkout_seamless"

// Method is a payment method selectable at checkout.
type Method interface {
	Code() string
	Title() string
	// IsAvailable reports whether the method can take payment for the order.
	IsAvailable(o *order.Order) bool
}

// CheckoutSeamless redirects the customer to a hosted Flip payment page.
type CheckoutSeamless struct {
	Enabled   bool
	MinAmount float64
}

func (CheckoutSeamless) Code() string  { return CodeCheckoutSeamless }
func (CheckoutSeamless) Title() string { return "Flip Checkout" }

// IsAvailable allows the method for orders that still await payment and whose
// total clears the configured minimum.
func (m CheckoutSeamless) IsAvailable(o *order.Order) bool {
	if !m.Enabled || o == nil {
		return false
	}
	if o.State != order.StateNew && o.State != order.StatePendingPayment {
		return false
	}
	return o.GrandTotal >= m.MinAmount
}

// Registry maps method codes to methods.
type Registry map[string]Method

// NewRegistry builds a registry from the provided methods.
func NewRegistry(methods ...Method) Registry {
	r := make(Registry, len(methods))
	for _, m := range methods {
		r[m.Code()] = m
	}
	return r
}

// Lookup returns the method for the code, or nil when unknown.
func (r Registry) Lookup(code string) Method {
	return r[code]
}

// AvailableFor lists the methods that can take payment for the order.
func (r Registry) AvailableFor(o *order.Order) []Method {
	var out []Method
	for _, m := range r {
		if m.IsAvailable(o) {
			out = append(out, m)
		}
	}
	return out
}
