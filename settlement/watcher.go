// Package settlement confirms that a requested transfer actually landed
// on-chain. A watcher outlives the contactless session that produced the
// payment plan; the phones may separate long before settlement is known.
package settlement

import (
	"context"
	"strings"
	"time"

	"github.com/freepay/freepay/clients"
	"github.com/freepay/freepay/logger"
	"github.com/freepay/freepay/metrics"
	"github.com/freepay/freepay/types"
)

// DefaultPollInterval between ledger scans.
const DefaultPollInterval = 3 * time.Second

// Status of a finished watch.
type Status int

const (
	StatusConfirmed Status = iota + 1
	StatusTimedOut
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusTimedOut:
		return "timed-out"
	}
	return "unknown"
}

// Outcome is the single terminal result of one watch invocation.
type Outcome struct {
	Status Status
	TxRef  string // transaction hash, set when confirmed
}

// Watcher polls one network for an expected inbound transfer.
type Watcher struct {
	ledger   clients.Ledger
	network  types.Network
	interval time.Duration
	log      logger.Logger
	rec      metrics.Recorder
}

// NewWatcher creates a watcher over the given ledger. A zero interval
// selects DefaultPollInterval.
func NewWatcher(ledger clients.Ledger, network types.Network, interval time.Duration, log logger.Logger, rec metrics.Recorder) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Watcher{ledger: ledger, network: network, interval: interval, log: log, rec: rec}
}

// Watch polls until the planned transfer is observed or the deadline
// passes. A transfer counts only when the asset identity and the exact
// minor-unit amount both match; over- and underpayments are ignored. Poll
// errors are logged and retried on the next cycle. Cancelling ctx stops
// the watch within one interval and yields TimedOut.
func (w *Watcher) Watch(ctx context.Context, plan types.PaymentPlan, deadline time.Time) Outcome {
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	start := time.Now()
	defer func() {
		w.rec.ObserveLatency("settle_watch", time.Since(start),
			map[string]string{"network": w.network.String()})
	}()

	// The starting position is read once; each cycle re-reads the head
	// rather than trusting the local clock to track ledger progress.
	position, err := w.ledger.CurrentPosition(ctx)
	if err != nil {
		w.log.Warn("could not read ledger position, starting from zero", map[string]any{
			"network": w.network.String(),
			"error":   err.Error(),
		})
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.rec.IncCounter("settle_timeout", map[string]string{"network": w.network.String()})
			return Outcome{Status: StatusTimedOut}
		case <-ticker.C:
			if ref, ok := w.scan(ctx, plan, &position); ok {
				w.rec.IncCounter("settle_confirmed", map[string]string{"network": w.network.String()})
				w.log.Info("settlement confirmed", map[string]any{
					"network": w.network.String(),
					"tx":      ref,
				})
				return Outcome{Status: StatusConfirmed, TxRef: ref}
			}
		}
	}
}

// scan runs one poll cycle. It advances position past everything observed
// so a transfer is considered at most once.
func (w *Watcher) scan(ctx context.Context, plan types.PaymentPlan, position *uint64) (string, bool) {
	transfers, err := w.ledger.TransfersSince(ctx, *position, plan.Destination, plan.Asset.ContractAddress)
	if err != nil {
		w.log.Warn("poll cycle failed, will retry", map[string]any{
			"network": w.network.String(),
			"error":   err.Error(),
		})
		w.rec.IncCounter("settle_poll_error", map[string]string{"network": w.network.String()})
		return "", false
	}

	for _, t := range transfers {
		if t.Position > *position {
			*position = t.Position
		}
		if w.matches(t, plan) {
			return t.TxHash, true
		}
	}
	return "", false
}

func (w *Watcher) matches(t clients.Transfer, plan types.PaymentPlan) bool {
	if plan.Asset.Native() != t.Native() {
		return false
	}
	if !t.Native() && !strings.EqualFold(t.Contract, plan.Asset.ContractAddress) {
		return false
	}
	return t.Amount != nil && t.Amount.Cmp(plan.MinorUnits) == 0
}
