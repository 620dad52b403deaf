package repo

import (
	"context"
	"errors"
	"time"

	"github.com/toyfleet/fleet-tracker/internal/model"
)

var (
	ErrNotFound = errors.New("device not found")
	// ErrDuplicateSim: two devices sharing a SIM number would make
	// inbound SMS routing ambiguous, so creation/update rejects it.
	ErrDuplicateSim = errors.New("sim number already registered to another device")
)

// DeviceRepository is the store surface the rest of the system sees.
// Implementations must give per-record atomicity on single-row writes;
// no cross-device transactions are required.
type DeviceRepository interface {
	// List returns all non-deleted devices.
	List(ctx context.Context) ([]model.Device, error)
	Get(ctx context.Context, id int64) (*model.Device, error)
	Create(ctx context.Context, d *model.Device) (*model.Device, error)
	// Update persists the mutable descriptive fields of d.
	Update(ctx context.Context, d *model.Device) error
	// SoftDelete marks the device deleted; the row stays for audit.
	SoftDelete(ctx context.Context, id int64) error

	StartRental(ctx context.Context, id int64, durationHours int) (*model.Device, error)
	EndRental(ctx context.Context, id int64) (*model.Device, error)

	// FindBySim resolves a non-deleted device by its tracker SIM number.
	FindBySim(ctx context.Context, sim string) (*model.Device, error)
	// FindByDeviceID resolves by the external device identifier; some
	// trackers report with their device id instead of the SIM number.
	FindByDeviceID(ctx context.Context, deviceID string) (*model.Device, error)

	// UpdatePosition overwrites position and last-update time in one
	// atomic row write.
	UpdatePosition(ctx context.Context, id int64, lat, lon float64, at time.Time) error
}
