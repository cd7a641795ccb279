package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// BillCreateTotal counts bill-creation attempts against the Flip API.
	BillCreateTotal *prometheus.CounterVec
	// CallbackTotal counts inbound payment callback outcomes.
	CallbackTotal *prometheus.CounterVec
	// VerificationMismatchTotal counts callbacks whose payload did not match
	// the provider's own status endpoint.
	VerificationMismatchTotal prometheus.Counter
	// InvoiceEmailTotal counts invoice notification email outcomes.
	InvoiceEmailTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		BillCreateTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bill_create_total",
			Help:      "Count of payment-link creation outcomes.",
		}, []string{"result"}))
		CallbackTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "callback_total",
			Help:      "Count of processed payment callbacks by provider status and outcome.",
		}, []string{"status", "result"}))
		VerificationMismatchTotal = registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_mismatch_total",
			Help:      "Count of callbacks rejected because the payload did not match the provider status endpoint.",
		}))
		InvoiceEmailTotal = registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_email_total",
			Help:      "Count of invoice notification email outcomes.",
		}, []string{"result"}))
	})
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) prometheus.Counter {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
	}
	return c
}
