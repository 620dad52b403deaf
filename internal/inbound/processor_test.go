package inbound_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/toyfleet/fleet-tracker/internal/inbound"
	"github.com/toyfleet/fleet-tracker/internal/model"
	"github.com/toyfleet/fleet-tracker/internal/repo"
)

type fakeRepo struct {
	bySim      map[string]*model.Device
	byDeviceID map[string]*model.Device
	findErr    error

	positionID  int64
	positionLat float64
	positionLon float64
	positionSet bool
	updateErr   error
}

var _ repo.DeviceRepository = (*fakeRepo)(nil)

func (r *fakeRepo) List(ctx context.Context) ([]model.Device, error) { return nil, nil }

func (r *fakeRepo) Get(ctx context.Context, id int64) (*model.Device, error) {
	return nil, repo.ErrNotFound
}

func (r *fakeRepo) Create(ctx context.Context, d *model.Device) (*model.Device, error) {
	return d, nil
}

func (r *fakeRepo) Update(ctx context.Context, d *model.Device) error { return nil }
func (r *fakeRepo) SoftDelete(ctx context.Context, id int64) error    { return nil }

func (r *fakeRepo) StartRental(ctx context.Context, id int64, durationHours int) (*model.Device, error) {
	return nil, repo.ErrNotFound
}

func (r *fakeRepo) EndRental(ctx context.Context, id int64) (*model.Device, error) {
	return nil, repo.ErrNotFound
}

func (r *fakeRepo) FindBySim(ctx context.Context, sim string) (*model.Device, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	if d, ok := r.bySim[sim]; ok {
		return d, nil
	}
	return nil, repo.ErrNotFound
}

func (r *fakeRepo) FindByDeviceID(ctx context.Context, deviceID string) (*model.Device, error) {
	if d, ok := r.byDeviceID[deviceID]; ok {
		return d, nil
	}
	return nil, repo.ErrNotFound
}

func (r *fakeRepo) UpdatePosition(ctx context.Context, id int64, lat, lon float64, at time.Time) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.positionID = id
	r.positionLat = lat
	r.positionLon = lon
	r.positionSet = true
	return nil
}

type recordingCache struct {
	deviceID int64
	lat, lon float64
	calls    int
	err      error
}

func (c *recordingCache) StorePosition(ctx context.Context, deviceID int64, lat, lon float64, at time.Time) error {
	c.calls++
	c.deviceID = deviceID
	c.lat = lat
	c.lon = lon
	return c.err
}

func TestProcessor_UpdatesPositionBySim(t *testing.T) {
	t.Parallel()

	r := &fakeRepo{bySim: map[string]*model.Device{
		"3001234567": {ID: 7, Name: "kart-7", SimNumber: "3001234567"},
	}}
	p := inbound.NewProcessor(r)

	out, err := p.Handle(context.Background(), "3001234567", "LAT:7.1254,LON:-73.1198")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}

	if out.Status != inbound.StatusSuccess {
		t.Fatalf("status = %q, want %q (message: %s)", out.Status, inbound.StatusSuccess, out.Message)
	}
	if !r.positionSet || r.positionID != 7 {
		t.Fatalf("expected position write for device 7, got %+v", r)
	}
	if r.positionLat != 7.1254 || r.positionLon != -73.1198 {
		t.Fatalf("position = (%v, %v)", r.positionLat, r.positionLon)
	}
	if out.Device == nil || out.Device.Latitude != 7.1254 {
		t.Fatalf("outcome device not refreshed: %+v", out.Device)
	}
}

func TestProcessor_FallsBackToDeviceID(t *testing.T) {
	t.Parallel()

	r := &fakeRepo{byDeviceID: map[string]*model.Device{
		"DEV_9": {ID: 9, Name: "kart-9", DeviceID: "DEV_9"},
	}}
	p := inbound.NewProcessor(r)

	out, err := p.Handle(context.Background(), "DEV_9", "lat=7.5&lon=-73.5")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if out.Status != inbound.StatusSuccess || r.positionID != 9 {
		t.Fatalf("expected device-id fallback to update device 9, got %+v / %+v", out, r)
	}
}

func TestProcessor_UnknownSender(t *testing.T) {
	t.Parallel()

	p := inbound.NewProcessor(&fakeRepo{})

	out, err := p.Handle(context.Background(), "3009999999", "LAT:7.0,LON:-73.0")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if out.Status != inbound.StatusNotFound {
		t.Fatalf("status = %q, want %q", out.Status, inbound.StatusNotFound)
	}
}

func TestProcessor_UnrecognizedText(t *testing.T) {
	t.Parallel()

	r := &fakeRepo{bySim: map[string]*model.Device{
		"3001234567": {ID: 7, SimNumber: "3001234567"},
	}}
	p := inbound.NewProcessor(r)

	out, err := p.Handle(context.Background(), "3001234567", "battery low")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if out.Status != inbound.StatusParseError {
		t.Fatalf("status = %q, want %q", out.Status, inbound.StatusParseError)
	}
	if out.ReceivedSMS != "battery low" {
		t.Fatalf("parse failures must echo the raw text, got %q", out.ReceivedSMS)
	}
	if r.positionSet {
		t.Fatal("unparseable text must not touch the store")
	}
}

func TestProcessor_StoreErrorsPropagate(t *testing.T) {
	t.Parallel()

	t.Run("lookup failure", func(t *testing.T) {
		t.Parallel()

		r := &fakeRepo{findErr: errors.New("connection reset")}
		_, err := inbound.NewProcessor(r).Handle(context.Background(), "3001234567", "LAT:7.0,LON:-73.0")
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("position write failure", func(t *testing.T) {
		t.Parallel()

		r := &fakeRepo{
			bySim:     map[string]*model.Device{"3001234567": {ID: 7, SimNumber: "3001234567"}},
			updateErr: errors.New("deadlock detected"),
		}
		_, err := inbound.NewProcessor(r).Handle(context.Background(), "3001234567", "LAT:7.0,LON:-73.0")
		if err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestProcessor_WritesThroughCache(t *testing.T) {
	t.Parallel()

	r := &fakeRepo{bySim: map[string]*model.Device{
		"3001234567": {ID: 7, Name: "kart-7", SimNumber: "3001234567"},
	}}
	c := &recordingCache{}
	p := inbound.NewProcessor(r).WithCache(c)

	out, err := p.Handle(context.Background(), "3001234567", "GPS:7.25,-73.25")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if out.Status != inbound.StatusSuccess {
		t.Fatalf("status = %q", out.Status)
	}
	if c.calls != 1 || c.deviceID != 7 || c.lat != 7.25 || c.lon != -73.25 {
		t.Fatalf("cache write = %+v", c)
	}
}

func TestProcessor_CacheFailureDoesNotFailUpdate(t *testing.T) {
	t.Parallel()

	r := &fakeRepo{bySim: map[string]*model.Device{
		"3001234567": {ID: 7, Name: "kart-7", SimNumber: "3001234567"},
	}}
	c := &recordingCache{err: errors.New("redis down")}
	p := inbound.NewProcessor(r).WithCache(c)

	out, err := p.Handle(context.Background(), "3001234567", "LAT:7.0,LON:-73.0")
	if err != nil {
		t.Fatalf("Handle() error: %v", err)
	}
	if out.Status != inbound.StatusSuccess {
		t.Fatalf("cache trouble must not fail the update; status = %q", out.Status)
	}
	if !r.positionSet {
		t.Fatal("store write must still happen")
	}
}
