package cache

import (
	"context"
	"time"
)

// PositionCache keeps the latest accepted fix per device for quick
// external consumers (dashboards, debugging). Write-through only; the
// store of record stays the repository.
type PositionCache interface {
	StorePosition(ctx context.Context, deviceID int64, lat, lon float64, at time.Time) error
}
