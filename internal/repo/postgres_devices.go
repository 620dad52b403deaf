package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/toyfleet/fleet-tracker/internal/model"
)

// PostgresDeviceRepo persists devices in a gps_devices table:
//
//	id SERIAL PRIMARY KEY, device_id VARCHAR(50) UNIQUE NOT NULL,
//	name VARCHAR(100) NOT NULL, description VARCHAR(255),
//	placa_gps VARCHAR(50) DEFAULT '', color VARCHAR(50) DEFAULT '',
//	tipo VARCHAR(50), marca VARCHAR(50), modelo VARCHAR(100),
//	latitude DOUBLE PRECISION, longitude DOUBLE PRECISION,
//	last_update TIMESTAMPTZ, status VARCHAR(20) DEFAULT 'active',
//	is_rented BOOLEAN DEFAULT FALSE, rental_start TIMESTAMPTZ,
//	rental_end TIMESTAMPTZ, rental_duration_hours INTEGER
type PostgresDeviceRepo struct {
	db *sql.DB
}

func NewPostgresDeviceRepo(db *sql.DB) *PostgresDeviceRepo {
	return &PostgresDeviceRepo{db: db}
}

const deviceColumns = `
	id, device_id, name, description, placa_gps, color,
	tipo, marca, modelo,
	latitude, longitude, last_update, status,
	is_rented, rental_start, rental_end, rental_duration_hours`

func (r *PostgresDeviceRepo) List(ctx context.Context) ([]model.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+deviceColumns+`
		FROM gps_devices
		WHERE status <> 'deleted'
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (r *PostgresDeviceRepo) Get(ctx context.Context, id int64) (*model.Device, error) {
	return r.one(ctx, `SELECT `+deviceColumns+` FROM gps_devices WHERE id = $1`, id)
}

func (r *PostgresDeviceRepo) FindBySim(ctx context.Context, sim string) (*model.Device, error) {
	return r.one(ctx, `
		SELECT `+deviceColumns+`
		FROM gps_devices
		WHERE placa_gps = $1 AND status <> 'deleted'
		ORDER BY id ASC
		LIMIT 1
	`, sim)
}

func (r *PostgresDeviceRepo) FindByDeviceID(ctx context.Context, deviceID string) (*model.Device, error) {
	return r.one(ctx, `
		SELECT `+deviceColumns+`
		FROM gps_devices
		WHERE device_id = $1 AND status <> 'deleted'
		LIMIT 1
	`, deviceID)
}

func (r *PostgresDeviceRepo) Create(ctx context.Context, d *model.Device) (*model.Device, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if d.SimNumber != "" {
		taken, err := simTaken(ctx, tx, d.SimNumber, 0)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrDuplicateSim
		}
	}

	now := time.Now().UTC()
	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO gps_devices
			(device_id, name, description, placa_gps, color,
			 tipo, marca, modelo, latitude, longitude, last_update, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 'active')
		RETURNING id
	`,
		d.DeviceID, d.Name, d.Description, d.SimNumber, d.Color,
		d.Tipo, d.Marca, d.Modelo, d.Latitude, d.Longitude, now,
	).Scan(&id)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	created := *d
	created.ID = id
	created.LastUpdate = now
	created.Status = model.Active
	return &created, nil
}

func (r *PostgresDeviceRepo) Update(ctx context.Context, d *model.Device) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if d.SimNumber != "" {
		taken, err := simTaken(ctx, tx, d.SimNumber, d.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateSim
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE gps_devices
		SET name = $2, description = $3, placa_gps = $4, color = $5,
		    latitude = $6, longitude = $7
		WHERE id = $1
	`, d.ID, d.Name, d.Description, d.SimNumber, d.Color, d.Latitude, d.Longitude)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}

func (r *PostgresDeviceRepo) SoftDelete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gps_devices SET status = 'deleted' WHERE id = $1 AND status <> 'deleted'
	`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresDeviceRepo) StartRental(ctx context.Context, id int64, durationHours int) (*model.Device, error) {
	now := time.Now().UTC()
	end := now.Add(time.Duration(durationHours) * time.Hour)

	res, err := r.db.ExecContext(ctx, `
		UPDATE gps_devices
		SET is_rented = TRUE, rental_start = $2, rental_end = $3, rental_duration_hours = $4
		WHERE id = $1
	`, id, now, end, durationHours)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *PostgresDeviceRepo) EndRental(ctx context.Context, id int64) (*model.Device, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gps_devices
		SET is_rented = FALSE, rental_start = NULL, rental_end = NULL, rental_duration_hours = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *PostgresDeviceRepo) UpdatePosition(ctx context.Context, id int64, lat, lon float64, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE gps_devices
		SET latitude = $2, longitude = $3, last_update = $4
		WHERE id = $1
	`, id, lat, lon, at.UTC())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresDeviceRepo) one(ctx context.Context, query string, arg any) (*model.Device, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	d, err := scanDevice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func simTaken(ctx context.Context, tx *sql.Tx, sim string, excludeID int64) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM gps_devices
			WHERE placa_gps = $1 AND status <> 'deleted' AND id <> $2
		)
	`, sim, excludeID).Scan(&exists)
	return exists, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*model.Device, error) {
	var d model.Device
	var status string
	var description, sim, color sql.NullString
	var tipo, marca, modelo sql.NullString
	var lastUpdate, rentalStart, rentalEnd sql.NullTime
	var rentalHours sql.NullInt64

	if err := row.Scan(
		&d.ID,
		&d.DeviceID,
		&d.Name,
		&description,
		&sim,
		&color,
		&tipo,
		&marca,
		&modelo,
		&d.Latitude,
		&d.Longitude,
		&lastUpdate,
		&status,
		&d.IsRented,
		&rentalStart,
		&rentalEnd,
		&rentalHours,
	); err != nil {
		return nil, err
	}

	d.Status = model.Status(status)
	d.Description = description.String
	d.SimNumber = sim.String
	d.Color = color.String

	if tipo.Valid {
		s := tipo.String
		d.Tipo = &s
	}
	if marca.Valid {
		s := marca.String
		d.Marca = &s
	}
	if modelo.Valid {
		s := modelo.String
		d.Modelo = &s
	}
	if lastUpdate.Valid {
		d.LastUpdate = lastUpdate.Time
	}
	if rentalStart.Valid {
		t := rentalStart.Time
		d.RentalStart = &t
	}
	if rentalEnd.Valid {
		t := rentalEnd.Time
		d.RentalEnd = &t
	}
	if rentalHours.Valid {
		h := int(rentalHours.Int64)
		d.RentalDurationHours = &h
	}

	return &d, nil
}
