package checkout

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/flip-id/flip-checkout-service/internal/config"
	"github.com/flip-id/flip-checkout-service/internal/flip"
	"github.com/flip-id/flip-checkout-service/internal/order"
)

// billStep 2 asks Flip for a link that collects payment immediately instead of
// showing the sender-detail form first.
const billStep = 2

// FormatAmount renders an order total the way the bill API expects: whole
// currency units, no decimal point.
func FormatAmount(grandTotal float64) string {
	return strconv.FormatInt(int64(math.Round(grandTotal)), 10)
}

// BuildBillPayload assembles the create-bill request for an order.
func BuildBillPayload(cfg *config.Config, o *order.Order) flip.BillPayload {
	finish := cfg.FinishURL(o.Reference)
	return flip.BillPayload{
		Title:       o.Reference,
		Type:        flip.BillTypeSingle,
		Amount:      FormatAmount(o.GrandTotal),
		Step:        billStep,
		RedirectURL: RedirectTarget(cfg, finish),
		SenderName:  o.CustomerName,
		SenderEmail: o.CustomerEmail,
	}
}

// RedirectTarget returns the redirect URL to register with the bill. Flip
// validates that the redirect URL is publicly reachable, so URLs pointing at
// development hosts are routed through the public redirector page, which
// forwards the browser back to the original URL after payment.
func RedirectTarget(cfg *config.Config, finishURL string) string {
	if !cfg.RedirectMode && !isDevHost(finishURL) {
		return finishURL
	}
	base := strings.TrimRight(cfg.DevRedirectorURL, "/") + "/"
	return base + "?url=" + url.QueryEscape(finishURL)
}

func isDevHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "localhost", host == "127.0.0.1", host == "::1":
		return true
	case u.Port() == "8888":
		return true
	case strings.HasSuffix(host, ".local"),
		strings.HasSuffix(host, ".test"),
		strings.HasSuffix(host, ".dev"):
		return true
	case strings.HasPrefix(host, "dev."), strings.HasPrefix(host, "staging."):
		return true
	}
	return false
}
