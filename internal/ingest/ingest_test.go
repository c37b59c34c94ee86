package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nwalsh/weathervault/internal/models"
	"github.com/nwalsh/weathervault/internal/openweather"
	"github.com/nwalsh/weathervault/internal/store"
)

type fakeWeather struct {
	calls     int
	lastKind  string
	lastQuery string
	result    *openweather.Result
	err       error
}

func (f *fakeWeather) FetchByCoordinates(ctx context.Context, lat, lon float64) (*openweather.Result, error) {
	f.calls++
	f.lastKind = "coordinates"
	return f.result, f.err
}

func (f *fakeWeather) FetchByPostalCode(ctx context.Context, code string) (*openweather.Result, error) {
	f.calls++
	f.lastKind = "postal_code"
	return f.result, f.err
}

func (f *fakeWeather) FetchByQuery(ctx context.Context, query string) (*openweather.Result, error) {
	f.calls++
	f.lastKind = "query"
	f.lastQuery = query
	return f.result, f.err
}

type fakeVideos struct {
	calls     int
	lastQuery string
	videos    []models.Video
}

func (f *fakeVideos) Search(ctx context.Context, query string, maxResults int) []models.Video {
	f.calls++
	f.lastQuery = query
	return f.videos
}

func sampleResult() *openweather.Result {
	return &openweather.Result{
		Data: models.WeatherData{
			Location:    "San Francisco",
			Temperature: 15.0,
			FeelsLike:   14.2,
			Humidity:    70,
			Pressure:    1016,
			Description: "few clouds",
			WindSpeed:   3.6,
			FetchedAt:   time.Now().UTC(),
		},
		ResolvedLocation: "San Francisco, US",
		Latitude:         sql.NullFloat64{Float64: 37.7749, Valid: true},
		Longitude:        sql.NullFloat64{Float64: -122.4194, Valid: true},
	}
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db, 100)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIngest_Success(t *testing.T) {
	st := setupTestStore(t)
	weather := &fakeWeather{result: sampleResult()}
	videos := &fakeVideos{videos: []models.Video{
		{VideoID: "abc", Title: "SF weather", Description: "d", ThumbnailURL: "u"},
	}}
	orch := New(st, weather, videos, testLogger())

	rec, err := orch.Ingest(context.Background(), "San Francisco", "2025-02-20", "2025-02-25")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if rec.ID != 1 {
		t.Errorf("ID = %d, want 1", rec.ID)
	}
	if rec.RawLocation != "San Francisco" {
		t.Errorf("RawLocation = %q", rec.RawLocation)
	}
	if rec.ResolvedLocation != "San Francisco, US" {
		t.Errorf("ResolvedLocation = %q", rec.ResolvedLocation)
	}
	var data models.WeatherData
	if err := json.Unmarshal([]byte(rec.WeatherPayload), &data); err != nil {
		t.Fatalf("unmarshal weather payload: %v", err)
	}
	if data.Temperature != 15.0 {
		t.Errorf("payload temperature = %v, want 15.0", data.Temperature)
	}
	if data.Humidity != 70 {
		t.Errorf("payload humidity = %d, want 70", data.Humidity)
	}
	if data.FetchedAt.IsZero() {
		t.Error("payload fetched_at missing")
	}
	if rec.UpdatedAt.Valid {
		t.Error("UpdatedAt should be null on creation")
	}

	if videos.calls != 1 {
		t.Errorf("video search calls = %d, want 1", videos.calls)
	}
	if videos.lastQuery != "San Francisco, US weather" {
		t.Errorf("video query = %q, want resolved location + weather", videos.lastQuery)
	}

	if !rec.ExtraPayload.Valid {
		t.Fatal("ExtraPayload absent, want youtube_videos document")
	}
	var extra struct {
		YouTubeVideos []models.Video `json:"youtube_videos"`
	}
	if err := json.Unmarshal([]byte(rec.ExtraPayload.String), &extra); err != nil {
		t.Fatalf("unmarshal extra payload: %v", err)
	}
	if len(extra.YouTubeVideos) != 1 || extra.YouTubeVideos[0].VideoID != "abc" {
		t.Errorf("extra payload = %+v", extra)
	}
}

func TestIngest_StoresRawLocationVerbatim(t *testing.T) {
	st := setupTestStore(t)
	weather := &fakeWeather{result: sampleResult()}
	orch := New(st, weather, nil, testLogger())

	rec, err := orch.Ingest(context.Background(), "  San Francisco  ", "2025-02-20", "2025-02-25")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if rec.RawLocation != "  San Francisco  " {
		t.Errorf("RawLocation = %q, want the caller's string untouched", rec.RawLocation)
	}
	if weather.lastQuery != "San Francisco" {
		t.Errorf("provider query = %q, want trimmed location", weather.lastQuery)
	}
}

func TestIngest_RejectsInvertedDates_BeforeAnyCall(t *testing.T) {
	st := setupTestStore(t)
	weather := &fakeWeather{result: sampleResult()}
	videos := &fakeVideos{}
	orch := New(st, weather, videos, testLogger())

	_, err := orch.Ingest(context.Background(), "San Francisco", "2025-02-25", "2025-02-20")
	if err == nil {
		t.Fatal("expected validation error")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("err type = %T, want *ValidationError", err)
	}
	if verr.Field != "end_date" {
		t.Errorf("Field = %q, want end_date", verr.Field)
	}

	if weather.calls != 0 {
		t.Errorf("weather calls = %d, want 0 (rejected before outbound call)", weather.calls)
	}
	if videos.calls != 0 {
		t.Errorf("video calls = %d, want 0", videos.calls)
	}
	assertCount(t, st, 0)
}

func TestIngest_ValidatesLocationLength(t *testing.T) {
	st := setupTestStore(t)
	weather := &fakeWeather{result: sampleResult()}
	orch := New(st, weather, nil, testLogger())

	for _, loc := range []string{"x", "  a  ", string(make([]byte, 0))} {
		_, err := orch.Ingest(context.Background(), loc, "2025-02-20", "2025-02-25")
		if _, ok := err.(*ValidationError); !ok {
			t.Errorf("Ingest(%q) err = %v, want *ValidationError", loc, err)
		}
	}
	if weather.calls != 0 {
		t.Errorf("weather calls = %d, want 0", weather.calls)
	}
}

func TestIngest_ValidatesDateFormat(t *testing.T) {
	st := setupTestStore(t)
	weather := &fakeWeather{result: sampleResult()}
	orch := New(st, weather, nil, testLogger())

	_, err := orch.Ingest(context.Background(), "London", "20-02-2025", "2025-02-25")
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("err = %v, want *ValidationError", err)
	}
	if weather.calls != 0 {
		t.Errorf("weather calls = %d, want 0", weather.calls)
	}
}

func TestIngest_WeatherFailurePersistsNothing(t *testing.T) {
	st := setupTestStore(t)
	weather := &fakeWeather{err: &openweather.APIError{Status: 503, Message: "unavailable"}}
	videos := &fakeVideos{}
	orch := New(st, weather, videos, testLogger())

	_, err := orch.Ingest(context.Background(), "London", "2025-02-20", "2025-02-25")
	if err == nil {
		t.Fatal("expected error when weather provider fails")
	}
	if _, ok := err.(*openweather.APIError); !ok {
		t.Fatalf("err type = %T, want *openweather.APIError", err)
	}

	if videos.calls != 0 {
		t.Errorf("video calls = %d, want 0 (video search not started on weather failure)", videos.calls)
	}
	assertCount(t, st, 0)
}

func TestIngest_VideoFailureAbsorbed(t *testing.T) {
	st := setupTestStore(t)
	weather := &fakeWeather{result: sampleResult()}
	videos := &fakeVideos{videos: nil} // adapter returned nothing
	orch := New(st, weather, videos, testLogger())

	rec, err := orch.Ingest(context.Background(), "London", "2025-02-20", "2025-02-25")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if rec.WeatherPayload == "" {
		t.Error("WeatherPayload empty despite successful weather fetch")
	}
	if !rec.ExtraPayload.Valid {
		t.Fatal("ExtraPayload absent, want empty youtube_videos document")
	}
	var extra struct {
		YouTubeVideos []models.Video `json:"youtube_videos"`
	}
	if err := json.Unmarshal([]byte(rec.ExtraPayload.String), &extra); err != nil {
		t.Fatal(err)
	}
	if len(extra.YouTubeVideos) != 0 {
		t.Errorf("youtube_videos = %+v, want empty", extra.YouTubeVideos)
	}
	assertCount(t, st, 1)
}

func TestIngest_NoVideoClient(t *testing.T) {
	st := setupTestStore(t)
	weather := &fakeWeather{result: sampleResult()}
	orch := New(st, weather, nil, testLogger())

	rec, err := orch.Ingest(context.Background(), "London", "2025-02-20", "2025-02-25")
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if rec.ExtraPayload.Valid {
		t.Error("ExtraPayload should be absent when enrichment is disabled")
	}
}

func TestIngest_LocationClassification(t *testing.T) {
	tests := []struct {
		location string
		wantKind string
	}{
		{"37.7749,-122.4194", "coordinates"},
		{" -36.79 , 146.98 ", "coordinates"},
		{"94103", "postal_code"},
		{"San Francisco", "query"},
		{"12 Main Street", "query"},
		{"200,300", "query"}, // out of coordinate range
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			st := setupTestStore(t)
			weather := &fakeWeather{result: sampleResult()}
			orch := New(st, weather, nil, testLogger())

			if _, err := orch.Ingest(context.Background(), tt.location, "2025-02-20", "2025-02-25"); err != nil {
				t.Fatalf("Ingest: %v", err)
			}
			if weather.lastKind != tt.wantKind {
				t.Errorf("kind = %q, want %q", weather.lastKind, tt.wantKind)
			}
		})
	}
}

func TestParseCoordinates(t *testing.T) {
	tests := []struct {
		in      string
		lat     float64
		lon     float64
		ok      bool
	}{
		{"37.7749,-122.4194", 37.7749, -122.4194, true},
		{"-36.794, 146.977", -36.794, 146.977, true},
		{"91,0", 0, 0, false},
		{"0,181", 0, 0, false},
		{"37.7749", 0, 0, false},
		{"a,b", 0, 0, false},
		{"1,2,3", 0, 0, false},
	}

	for _, tt := range tests {
		lat, lon, ok := parseCoordinates(tt.in)
		if ok != tt.ok {
			t.Errorf("parseCoordinates(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if ok && (lat != tt.lat || lon != tt.lon) {
			t.Errorf("parseCoordinates(%q) = %v,%v, want %v,%v", tt.in, lat, lon, tt.lat, tt.lon)
		}
	}
}

func TestIsPostalCode(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"94103", true},
		{"100", true},
		{"12", false},
		{"94103-1234", false},
		{"SW1A", false},
		{"12345678901", false},
	}

	for _, tt := range tests {
		if got := isPostalCode(tt.in); got != tt.want {
			t.Errorf("isPostalCode(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func assertCount(t *testing.T, st *store.Store, want int) {
	t.Helper()
	n, err := st.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != want {
		t.Errorf("store count = %d, want %d", n, want)
	}
}
