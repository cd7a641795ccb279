package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/flip-id/flip-checkout-service/internal/config"
	"github.com/flip-id/flip-checkout-service/internal/flip"
	"github.com/flip-id/flip-checkout-service/internal/obs"
	"github.com/flip-id/flip-checkout-service/internal/resilience"
)

// billcheck fetches the provider's payment records for a bill link id so an
// operator can reconcile a disputed callback by hand.
// Exit code 0 = ok, 1 = lookup failed, 2 = usage error.
func main() {
	linkID := flag.String("link", "", "bill link id to inspect")
	asJSON := flag.Bool("json", false, "print the raw records as JSON")
	flag.Parse()

	if *linkID == "" {
		fmt.Fprintln(os.Stderr, "usage: billcheck -link <bill_link_id> [-json]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "billcheck: load config: %v\n", err)
		os.Exit(2)
	}

	logger := obs.NewLogger("console", "warn")
	client := flip.NewClient(cfg.BaseURL(), cfg.APISecretKey(), resilience.HTTPClient{
		Client:      &http.Client{},
		Timeout:     cfg.FlipTimeout,
		MaxAttempts: cfg.FlipMaxAttempts,
		BaseBackoff: cfg.FlipBackoffBase,
	}, obs.Audit{Logger: logger, Errors: true})
	gateway := &flip.Service{Client: client}

	status, err := gateway.GetBillStatus(context.Background(), *linkID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "billcheck: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(status)
		return
	}

	fmt.Printf("bill %s (%s mode): %d payment record(s)\n", *linkID, cfg.ModeLabel(), status.TotalData)
	for i, rec := range status.Data {
		fmt.Printf("  [%d] trx=%s status=%s amount=%d bank=%s type=%s at=%s\n",
			i, rec.ID, rec.Status, rec.Amount.Int64(), rec.SenderBank, rec.SenderBankType, rec.CreatedAt)
	}
}
