package model

import "time"

type Status string

const (
	Active   Status = "active"
	Inactive Status = "inactive"
	Deleted  Status = "deleted"
)

// Default position: Bucaramanga, where the fleet operates.
const (
	DefaultLatitude  = 7.1254
	DefaultLongitude = -73.1198
)

// Device is one rented toy vehicle with its GPS tracker. SimNumber
// (placa_gps) is the SIM phone number of the tracker: it is both the
// destination for outbound location requests and the key that routes
// inbound SMS back to the device.
type Device struct {
	ID          int64  `json:"id"`
	DeviceID    string `json:"device_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	SimNumber   string `json:"placa_gps"`
	Color       string `json:"color"`

	// Legacy descriptive columns, kept for older records.
	Tipo   *string `json:"tipo"`
	Marca  *string `json:"marca"`
	Modelo *string `json:"modelo"`

	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	LastUpdate time.Time `json:"last_update"`

	Status Status `json:"status"`

	IsRented            bool       `json:"is_rented"`
	RentalStart         *time.Time `json:"rental_start"`
	RentalEnd           *time.Time `json:"rental_end"`
	RentalDurationHours *int       `json:"rental_duration_hours"`
}
