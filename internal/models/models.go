package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

const DateFormat = "2006-01-02"

// WeatherRecord is a persisted weather request: the caller's raw input,
// the provider-confirmed location, the date range, and the payloads
// captured at ingestion time.
type WeatherRecord struct {
	ID               int64
	RawLocation      string
	ResolvedLocation string
	Latitude         sql.NullFloat64
	Longitude        sql.NullFloat64
	StartDate        string // ISO date
	EndDate          string // ISO date
	WeatherPayload   string // normalized WeatherData as JSON, never empty
	ExtraPayload     sql.NullString
	Source           string
	CreatedAt        time.Time
	UpdatedAt        sql.NullTime
}

func (r WeatherRecord) MarshalJSON() ([]byte, error) {
	type out struct {
		ID               int64           `json:"id"`
		RawLocation      string          `json:"raw_location"`
		ResolvedLocation string          `json:"resolved_location"`
		Latitude         *float64        `json:"latitude"`
		Longitude        *float64        `json:"longitude"`
		StartDate        string          `json:"start_date"`
		EndDate          string          `json:"end_date"`
		WeatherPayload   json.RawMessage `json:"weather_payload"`
		ExtraPayload     json.RawMessage `json:"extra_payload"`
		Source           string          `json:"source"`
		CreatedAt        time.Time       `json:"created_at"`
		UpdatedAt        *time.Time      `json:"updated_at"`
	}

	o := out{
		ID:               r.ID,
		RawLocation:      r.RawLocation,
		ResolvedLocation: r.ResolvedLocation,
		StartDate:        r.StartDate,
		EndDate:          r.EndDate,
		WeatherPayload:   json.RawMessage(r.WeatherPayload),
		Source:           r.Source,
		CreatedAt:        r.CreatedAt,
	}
	if r.Latitude.Valid {
		o.Latitude = &r.Latitude.Float64
	}
	if r.Longitude.Valid {
		o.Longitude = &r.Longitude.Float64
	}
	if r.ExtraPayload.Valid {
		o.ExtraPayload = json.RawMessage(r.ExtraPayload.String)
	}
	if r.UpdatedAt.Valid {
		o.UpdatedAt = &r.UpdatedAt.Time
	}
	return json.Marshal(o)
}

// WeatherData is the normalized current-weather reading extracted from
// a provider response. All fields are required; the adapter fails
// rather than returning a partially filled value.
type WeatherData struct {
	Location    string    `json:"location"`
	Temperature float64   `json:"temperature"`
	FeelsLike   float64   `json:"feels_like"`
	Humidity    int64     `json:"humidity"`
	Pressure    int64     `json:"pressure"`
	Description string    `json:"description"`
	WindSpeed   float64   `json:"wind_speed"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Video is one normalized video search result.
type Video struct {
	VideoID      string `json:"video_id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnail_url"`
}

// OptionalDate distinguishes an omitted JSON field from a supplied one.
// Set is only true when the field appeared in the payload.
type OptionalDate struct {
	Set   bool
	Value string
}

func (d *OptionalDate) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if _, err := time.Parse(DateFormat, s); err != nil {
		return err
	}
	d.Set = true
	d.Value = s
	return nil
}

// RecordUpdate is a partial update of a WeatherRecord's date range.
type RecordUpdate struct {
	StartDate OptionalDate `json:"start_date"`
	EndDate   OptionalDate `json:"end_date"`
}
