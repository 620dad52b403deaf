// Package inbound turns raw (phone, text) pairs from SMS webhooks into
// device position updates.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/toyfleet/fleet-tracker/internal/cache"
	"github.com/toyfleet/fleet-tracker/internal/gps"
	"github.com/toyfleet/fleet-tracker/internal/model"
	"github.com/toyfleet/fleet-tracker/internal/repo"
)

const (
	StatusSuccess    = "success"
	StatusParseError = "error"
	StatusNotFound   = "not_found"
)

// Outcome is what a webhook caller gets back. ReceivedSMS carries the
// raw text on parse failures so unrecognized formats can be diagnosed.
type Outcome struct {
	Status      string        `json:"status"`
	Message     string        `json:"message"`
	Device      *model.Device `json:"device,omitempty"`
	ReceivedSMS string        `json:"received_sms,omitempty"`
}

// Processor resolves inbound tracker SMS to a device and applies the
// position. It only sees the abstract repository, never a concrete
// store.
type Processor struct {
	repo  repo.DeviceRepository
	cache cache.PositionCache // optional
}

func NewProcessor(r repo.DeviceRepository) *Processor {
	return &Processor{repo: r}
}

// WithCache makes the processor write every accepted position through
// to the cache as well. Cache failures never fail the update.
func (p *Processor) WithCache(c cache.PositionCache) *Processor {
	p.cache = c
	return p
}

// Handle processes one inbound SMS. The source phone is matched first
// against SIM numbers, then against device identifiers, since some
// trackers report via device id.
func (p *Processor) Handle(ctx context.Context, sourcePhone, text string) (*Outcome, error) {
	parsed := gps.Parse(text, sourcePhone)
	if parsed == nil {
		return &Outcome{
			Status:      StatusParseError,
			Message:     "sms format not recognized",
			ReceivedSMS: text,
		}, nil
	}

	device, err := p.repo.FindBySim(ctx, sourcePhone)
	if errors.Is(err, repo.ErrNotFound) {
		device, err = p.repo.FindByDeviceID(ctx, sourcePhone)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return &Outcome{
			Status:  StatusNotFound,
			Message: fmt.Sprintf("no device registered for SIM %s", sourcePhone),
		}, nil
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := p.repo.UpdatePosition(ctx, device.ID, parsed.Latitude, parsed.Longitude, now); err != nil {
		return nil, err
	}

	device.Latitude = parsed.Latitude
	device.Longitude = parsed.Longitude
	device.LastUpdate = now

	if p.cache != nil {
		if err := p.cache.StorePosition(ctx, device.ID, parsed.Latitude, parsed.Longitude, now); err != nil {
			slog.Warn("position cache write failed", "device_id", device.ID, "error", err)
		}
	}

	slog.Info("position updated", "device", device.Name, "lat", parsed.Latitude, "lon", parsed.Longitude)

	return &Outcome{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("position updated for %s", device.Name),
		Device:  device,
	}, nil
}
