package store

import (
	"database/sql"
	"errors"
	"time"
)

// HealthReport is the durable cache record for one vehicle: the opaque
// payload plus the wall-clock time it was fetched from the remote API.
type HealthReport struct {
	VehicleID string
	Payload   []byte
	FetchedAt time.Time
}

// GetHealthReport returns the stored report for a vehicle, or nil if none
// exists.
func (db *DB) GetHealthReport(vehicleID string) (*HealthReport, error) {
	row := db.QueryRow(db.Q(`SELECT vehicle_id, payload, fetched_at FROM health_reports WHERE vehicle_id=?`), vehicleID)
	var r HealthReport
	var fetchedMs int64
	err := row.Scan(&r.VehicleID, &r.Payload, &fetchedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.FetchedAt = time.UnixMilli(fetchedMs)
	return &r, nil
}

// PutHealthReport inserts or overwrites the report for a vehicle.
func (db *DB) PutHealthReport(r *HealthReport) error {
	if db.driver == "postgres" {
		_, err := db.Exec(db.Q(`INSERT INTO health_reports (vehicle_id, payload, fetched_at) VALUES (?, ?, ?)
			ON CONFLICT (vehicle_id) DO UPDATE SET payload=EXCLUDED.payload, fetched_at=EXCLUDED.fetched_at`),
			r.VehicleID, r.Payload, r.FetchedAt.UnixMilli())
		return err
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO health_reports (vehicle_id, payload, fetched_at) VALUES (?, ?, ?)`,
		r.VehicleID, r.Payload, r.FetchedAt.UnixMilli())
	return err
}

// DeleteHealthReport removes the report for a vehicle. Deleting an absent
// record is a no-op.
func (db *DB) DeleteHealthReport(vehicleID string) error {
	_, err := db.Exec(db.Q(`DELETE FROM health_reports WHERE vehicle_id=?`), vehicleID)
	return err
}
