// Package ingest turns raw user input into a persisted weather record:
// mandatory weather resolution, best-effort video enrichment, one
// synchronous store write. A weather failure leaves no trace; a video
// failure never aborts.
package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nwalsh/weathervault/internal/metrics"
	"github.com/nwalsh/weathervault/internal/models"
	"github.com/nwalsh/weathervault/internal/openweather"
	"github.com/nwalsh/weathervault/internal/store"
)

const (
	minLocationLen = 2
	maxLocationLen = 100
)

// ValidationError reports malformed client input. It is surfaced as a
// client error with field-level detail and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// WeatherClient is the mandatory provider. Implemented by
// *openweather.Client; faked in tests.
type WeatherClient interface {
	FetchByCoordinates(ctx context.Context, lat, lon float64) (*openweather.Result, error)
	FetchByPostalCode(ctx context.Context, code string) (*openweather.Result, error)
	FetchByQuery(ctx context.Context, query string) (*openweather.Result, error)
}

// VideoClient is the optional enrichment provider. It reports no error;
// failures degrade to an empty slice inside the adapter.
type VideoClient interface {
	Search(ctx context.Context, query string, maxResults int) []models.Video
}

type Orchestrator struct {
	store   *store.Store
	weather WeatherClient
	videos  VideoClient // nil disables enrichment
	logger  *slog.Logger
}

func New(st *store.Store, weather WeatherClient, videos VideoClient, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:   st,
		weather: weather,
		videos:  videos,
		logger:  logger,
	}
}

// extraPayload is the persisted enrichment shape.
type extraPayload struct {
	YouTubeVideos []models.Video `json:"youtube_videos"`
}

// Ingest validates the input, resolves weather (fatal on failure),
// searches videos (absorbed on failure), and persists the merged
// record. Validation runs before any outbound call.
func (o *Orchestrator) Ingest(ctx context.Context, rawLocation, startDate, endDate string) (*models.WeatherRecord, error) {
	// Validation and the provider query use the trimmed copy; the
	// record keeps the caller's string verbatim.
	location := strings.TrimSpace(rawLocation)
	if n := utf8.RuneCountInString(location); n < minLocationLen || n > maxLocationLen {
		return nil, &ValidationError{Field: "location", Message: fmt.Sprintf("must be %d to %d characters", minLocationLen, maxLocationLen)}
	}

	start, err := time.Parse(models.DateFormat, startDate)
	if err != nil {
		return nil, &ValidationError{Field: "start_date", Message: "must be a date in YYYY-MM-DD form"}
	}
	end, err := time.Parse(models.DateFormat, endDate)
	if err != nil {
		return nil, &ValidationError{Field: "end_date", Message: "must be a date in YYYY-MM-DD form"}
	}
	if end.Before(start) {
		return nil, &ValidationError{Field: "end_date", Message: "must be on or after start_date"}
	}

	result, err := o.fetchWeather(ctx, location)
	if err != nil {
		o.logger.Error("weather fetch failed", "location", location, "error", err)
		return nil, err
	}

	extra := sql.NullString{}
	if o.videos != nil {
		videos := o.videos.Search(ctx, result.ResolvedLocation+" weather", 0)
		payload := extraPayload{YouTubeVideos: videos}
		if payload.YouTubeVideos == nil {
			payload.YouTubeVideos = []models.Video{}
		}
		b, err := json.Marshal(payload)
		if err != nil {
			o.logger.Error("marshal extra payload", "error", err)
		} else {
			extra = sql.NullString{String: string(b), Valid: true}
		}
	}

	weatherPayload, err := json.Marshal(result.Data)
	if err != nil {
		return nil, fmt.Errorf("marshal weather payload: %w", err)
	}

	rec, err := o.store.Create(store.CreateParams{
		RawLocation:      rawLocation,
		ResolvedLocation: result.ResolvedLocation,
		Latitude:         result.Latitude,
		Longitude:        result.Longitude,
		StartDate:        start.Format(models.DateFormat),
		EndDate:          end.Format(models.DateFormat),
		WeatherPayload:   string(weatherPayload),
		ExtraPayload:     extra,
	})
	if err != nil {
		return nil, fmt.Errorf("persist record: %w", err)
	}

	metrics.RecordsCreated.Inc()
	o.logger.Info("record created", "id", rec.ID, "location", rec.ResolvedLocation)
	return rec, nil
}

// fetchWeather classifies the already-resolved input and forwards it
// verbatim: a "lat,lon" pair goes to the coordinate endpoint, an
// all-digit token to the postal-code endpoint, anything else to the
// free-text query endpoint.
func (o *Orchestrator) fetchWeather(ctx context.Context, location string) (*openweather.Result, error) {
	if lat, lon, ok := parseCoordinates(location); ok {
		return o.weather.FetchByCoordinates(ctx, lat, lon)
	}
	if isPostalCode(location) {
		return o.weather.FetchByPostalCode(ctx, location)
	}
	return o.weather.FetchByQuery(ctx, location)
}

func parseCoordinates(s string) (lat, lon float64, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

func isPostalCode(s string) bool {
	if len(s) < 3 || len(s) > 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
