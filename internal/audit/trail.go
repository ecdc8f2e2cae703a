// trail.go combines the database repository with optional external
// shipping. The database insert is synchronous — a mutation has not
// completed until its entry is durable and queryable — while shipping
// happens in the background.
package audit

import (
	"context"
	"time"

	"github.com/tavernkeep/tavernkeep/internal/safego"
)

// Trail is the audit recorder used by the gateway.
type Trail struct {
	repo    *Repository
	shipper *MultiShipper
}

// NewTrail wires a trail. shipper may be nil when no external destinations
// are configured.
func NewTrail(repo *Repository, shipper *MultiShipper) *Trail {
	return &Trail{repo: repo, shipper: shipper}
}

// Record inserts the entry, then ships a copy asynchronously if shipping
// is configured. Shipping failures are logged by the shipper and never
// surface to the mutation that produced the entry.
func (t *Trail) Record(ctx context.Context, e *Entry) error {
	if err := t.repo.Insert(ctx, e); err != nil {
		return err
	}
	if t.shipper != nil && t.shipper.Enabled() {
		shipped := *e
		safego.Go("audit ship", func() {
			shipCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			_ = t.shipper.Ship(shipCtx, &shipped)
		})
	}
	return nil
}
