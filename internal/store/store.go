package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nwalsh/weathervault/internal/models"
)

// ErrInvalidDateRange is returned when a partial update would leave the
// record with end_date before start_date. The check always runs against
// the merged pair, so patching a single field cannot bypass it.
var ErrInvalidDateRange = errors.New("end_date must be on or after start_date")

const DefaultListLimit = 50

// Store owns the persisted weather request records. Safe for concurrent
// use; the underlying *sql.DB pools connections.
type Store struct {
	db         *sql.DB
	queryLimit int
}

// New wraps an open database. queryLimit caps page sizes for List;
// zero means DefaultListLimit is also the maximum.
func New(db *sql.DB, queryLimit int) *Store {
	if queryLimit <= 0 {
		queryLimit = DefaultListLimit
	}
	return &Store{db: db, queryLimit: queryLimit}
}

const recordColumns = `id, raw_location, resolved_location, latitude, longitude, start_date, end_date, weather_payload, extra_payload, source, created_at, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (*models.WeatherRecord, error) {
	var r models.WeatherRecord
	err := row.Scan(&r.ID, &r.RawLocation, &r.ResolvedLocation, &r.Latitude, &r.Longitude,
		&r.StartDate, &r.EndDate, &r.WeatherPayload, &r.ExtraPayload, &r.Source,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

type CreateParams struct {
	RawLocation      string
	ResolvedLocation string
	Latitude         sql.NullFloat64
	Longitude        sql.NullFloat64
	StartDate        string
	EndDate          string
	WeatherPayload   string
	ExtraPayload     sql.NullString
}

// Create inserts a record and returns it as persisted, including
// server-assigned id, source default, and creation timestamp. The
// commit is synchronous; when Create returns the row is durable.
func (s *Store) Create(p CreateParams) (*models.WeatherRecord, error) {
	res, err := s.db.Exec(`
		INSERT INTO weather_requests (raw_location, resolved_location, latitude, longitude, start_date, end_date, weather_payload, extra_payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.RawLocation, p.ResolvedLocation, p.Latitude, p.Longitude, p.StartDate, p.EndDate, p.WeatherPayload, p.ExtraPayload)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	rec, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("record %d missing after insert", id)
	}
	return rec, nil
}

// List returns records in insertion order. limit defaults to
// DefaultListLimit and is capped at the configured query limit; skip
// defaults to 0.
func (s *Store) List(skip, limit int) ([]models.WeatherRecord, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > s.queryLimit {
		limit = s.queryLimit
	}

	rows, err := s.db.Query(`
		SELECT `+recordColumns+`
		FROM weather_requests
		ORDER BY id ASC
		LIMIT ? OFFSET ?
	`, limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.WeatherRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// Get returns nil, nil when no record has the given id. Absence is not
// an error; callers translate it at their own boundary.
func (s *Store) Get(id int64) (*models.WeatherRecord, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM weather_requests WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Update applies a partial date-range update. Unset fields are left
// untouched. Returns nil, nil without side effects when the record does
// not exist, and ErrInvalidDateRange when the merged pair is inverted.
func (s *Store) Update(id int64, upd models.RecordUpdate) (*models.WeatherRecord, error) {
	rec, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	start, end := rec.StartDate, rec.EndDate
	if upd.StartDate.Set {
		start = upd.StartDate.Value
	}
	if upd.EndDate.Set {
		end = upd.EndDate.Value
	}
	if end < start {
		return nil, ErrInvalidDateRange
	}

	if _, err := s.db.Exec(`
		UPDATE weather_requests SET start_date = ?, end_date = ?, updated_at = ? WHERE id = ?
	`, start, end, time.Now().UTC(), id); err != nil {
		return nil, fmt.Errorf("update record %d: %w", id, err)
	}

	return s.Get(id)
}

// Delete reports whether a record existed and was removed.
func (s *Store) Delete(id int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM weather_requests WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Count returns the number of stored records.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM weather_requests`).Scan(&n)
	return n, err
}

// Ping verifies database connectivity for the health endpoint.
func (s *Store) Ping() error {
	return s.db.Ping()
}
