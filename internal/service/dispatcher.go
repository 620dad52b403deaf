// Package service contains the SMS dispatch chain and the per-tick
// polling pass that asks every tracked vehicle for its position.
package service

import (
	"context"
	"log/slog"

	"github.com/toyfleet/fleet-tracker/internal/gateway"
	"github.com/toyfleet/fleet-tracker/internal/model"
	"github.com/toyfleet/fleet-tracker/internal/phone"
)

// DefaultCommand is the token most tracker firmwares answer with a
// position SMS. Some deployments use "URL#" instead; configurable.
const DefaultCommand = "LOC"

// Dispatcher walks the gateway chain in priority order for each send:
// the first available backend is tried first, a non-fatal failure moves
// on to the next, the first success stops the walk. A fatal (quota)
// failure stops the walk immediately and fires the halt hook so the
// scheduler shuts down automatic sending.
type Dispatcher struct {
	backends []gateway.Backend
	command  string
	onHalt   func()
}

func NewDispatcher(backends []gateway.Backend, command string) *Dispatcher {
	if command == "" {
		command = DefaultCommand
	}
	return &Dispatcher{backends: backends, command: command}
}

// OnFleetHalt registers the hook invoked when a send hits a
// fatal-to-fleet failure. Wired to the scheduler's halt by the
// composition root.
func (d *Dispatcher) OnFleetHalt(fn func()) {
	d.onHalt = fn
}

// HasAvailableBackend reports whether any transport could carry a
// message right now.
func (d *Dispatcher) HasAvailableBackend() bool {
	for _, b := range d.backends {
		if b.Available() {
			return true
		}
	}
	return false
}

// Availability maps each backend name to its availability flag, for
// the status endpoint.
func (d *Dispatcher) Availability() map[string]bool {
	out := make(map[string]bool, len(d.backends))
	for _, b := range d.backends {
		out[b.Name()] = b.Available()
	}
	return out
}

// SendLocationRequest asks one device's tracker for its position using
// the configured command.
func (d *Dispatcher) SendLocationRequest(ctx context.Context, device model.Device) gateway.Result {
	return d.Send(ctx, device, d.command)
}

// Send delivers body to the device's tracker SIM through the first
// gateway that accepts it.
func (d *Dispatcher) Send(ctx context.Context, device model.Device, body string) gateway.Result {
	if device.SimNumber == "" {
		return gateway.Result{
			Reason:  gateway.ReasonNoSim,
			Message: "device has no SIM number configured",
		}
	}

	to := phone.Normalize(device.SimNumber)

	var last gateway.Result
	tried := false
	for _, b := range d.backends {
		if !b.Available() {
			continue
		}
		tried = true

		res := b.Send(ctx, to, body)
		if res.Success {
			slog.Info("sms sent", "method", res.Method, "to", to, "device", device.Name)
			return res
		}

		slog.Warn("sms gateway failed", "method", b.Name(), "to", to, "reason", res.Reason, "detail", res.Message)

		if res.FatalToFleet {
			slog.Error("gateway reported quota exhaustion, halting automatic sends", "method", b.Name())
			if d.onHalt != nil {
				d.onHalt()
			}
			return res
		}
		last = res
	}

	if !tried {
		return gateway.Result{
			To:      to,
			Reason:  gateway.ReasonUnavailable,
			Message: "no sms gateway is configured or reachable",
		}
	}
	return last
}
