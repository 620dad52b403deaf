package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/toyfleet/fleet-tracker/internal/repo"
)

// Poller runs one scheduler tick: pull the live device list, request a
// position from every device with a SIM, and account the outcomes.
type Poller struct {
	repo       repo.DeviceRepository
	dispatcher *Dispatcher
	stats      *Stats
}

func NewPoller(r repo.DeviceRepository, d *Dispatcher, stats *Stats) *Poller {
	return &Poller{repo: r, dispatcher: d, stats: stats}
}

// RunOnce processes one batch. It returns true when a fatal-to-fleet
// failure occurred; the remaining devices of that batch are skipped and
// the caller must stop scheduling further batches.
func (p *Poller) RunOnce(ctx context.Context) (halt bool) {
	devices, err := p.repo.List(ctx)
	if err != nil {
		// Store trouble fails this tick only; the next tick retries.
		slog.Error("device list failed", "error", err)
		p.stats.RecordError()
		return false
	}

	attempted := 0
	for _, d := range devices {
		if d.SimNumber == "" {
			continue
		}
		attempted++

		res := p.dispatcher.SendLocationRequest(ctx, d)
		if res.Success {
			p.stats.RecordSent()
		} else {
			p.stats.RecordError()
		}

		if res.FatalToFleet {
			p.stats.MarkBatch(time.Now().UTC())
			return true
		}
	}

	// The batch stamp records when the fleet was last asked, so any
	// batch that reached a SIM-equipped device counts, successful or not.
	if attempted > 0 {
		p.stats.MarkBatch(time.Now().UTC())
	}
	return false
}
