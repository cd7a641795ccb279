package checkout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flip-id/flip-checkout-service/internal/checkout"
	"github.com/flip-id/flip-checkout-service/internal/config"
	"github.com/flip-id/flip-checkout-service/internal/flip"
	"github.com/flip-id/flip-checkout-service/internal/order"
)

func TestFormatAmountRoundsToWholeUnits(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{150000, "150000"},
		{150000.4, "150000"},
		{150000.5, "150001"},
		{99.99, "100"},
		{0, "0"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, checkout.FormatAmount(tc.in), "input %v", tc.in)
	}
}

func TestRedirectTargetDevHosts(t *testing.T) {
	cfg := &config.Config{DevRedirectorURL: config.DefaultDevRedirector}

	cases := []struct {
		name      string
		finishURL string
		proxied   bool
	}{
		{"localhost", "http://localhost/api/v1/payment/finish?state=ORD-1", true},
		{"loopback", "http://127.0.0.1:8080/finish?state=ORD-1", true},
		{"port 8888", "http://shop.example:8888/finish?state=ORD-1", true},
		{"dot test tld", "https://shop.test/finish?state=ORD-1", true},
		{"dev prefix", "https://dev.shop.example/finish?state=ORD-1", true},
		{"staging prefix", "https://staging.shop.example/finish?state=ORD-1", true},
		{"public host", "https://shop.example/finish?state=ORD-1", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := checkout.RedirectTarget(cfg, tc.finishURL)
			if tc.proxied {
				assert.Contains(t, got, config.DefaultDevRedirector)
				assert.Contains(t, got, "?url=")
				assert.NotContains(t, got, "state=ORD-1&") // reference stays inside the escaped url param
			} else {
				assert.Equal(t, tc.finishURL, got)
			}
		})
	}
}

func TestRedirectTargetForcedByConfig(t *testing.T) {
	cfg := &config.Config{
		RedirectMode:     true,
		DevRedirectorURL: config.DefaultDevRedirector,
	}
	got := checkout.RedirectTarget(cfg, "https://shop.example/finish?state=ORD-1")
	assert.Contains(t, got, config.DefaultDevRedirector)
}

func TestNormalizeLinkURL(t *testing.T) {
	assert.Equal(t, "https://flip.id/pwf/abc", checkout.NormalizeLinkURL("flip.id/pwf/abc"))
	assert.Equal(t, "https://flip.id/pwf/abc", checkout.NormalizeLinkURL("https://flip.id/pwf/abc"))
	assert.Equal(t, "", checkout.NormalizeLinkURL(""))
}

func TestBuildBillPayload(t *testing.T) {
	cfg := &config.Config{
		PublicBaseURL:    "https://shop.example",
		DevRedirectorURL: config.DefaultDevRedirector,
	}
	o := &order.Order{
		Reference:     "ORD-1001",
		GrandTotal:    149999.6,
		CustomerName:  "Budi Santoso",
		CustomerEmail: "budi@example.com",
	}

	p := checkout.BuildBillPayload(cfg, o)
	assert.Equal(t, flip.BillPayload{
		Title:       "ORD-1001",
		Type:        flip.BillTypeSingle,
		Amount:      "150000",
		Step:        2,
		RedirectURL: "https://shop.example/api/v1/payment/finish?state=ORD-1001",
		SenderName:  "Budi Santoso",
		SenderEmail: "budi@example.com",
	}, p)
}
