package openweather

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nwalsh/weathervault/internal/httputil"
	"github.com/nwalsh/weathervault/internal/metrics"
	"github.com/nwalsh/weathervault/internal/models"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// Source tags records created from this provider.
const Source = "openweathermap"

// APIError reports a failed provider call: unreachable endpoint,
// non-success status, or a response missing a required field. Weather
// data is mandatory, so callers treat this as fatal for the request.
type APIError struct {
	Status  int // upstream HTTP status, 0 for transport or parse failures
	Message string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("openweather: status %d: %s", e.Status, e.Message)
	}
	return "openweather: " + e.Message
}

// Client fetches current weather from OpenWeatherMap. Safe for
// concurrent use; each call is self-contained and never retried.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func New(apiKey string, timeout time.Duration) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  httputil.NewClient(timeout),
	}
}

// Result is one successful provider reading: the normalized data plus
// the location resolution the provider returned.
type Result struct {
	Data             models.WeatherData
	ResolvedLocation string
	Latitude         sql.NullFloat64
	Longitude        sql.NullFloat64
}

// response mirrors the provider wire format. Pointer fields distinguish
// a missing key from a zero value so required-field checks are exact.
type response struct {
	Name *string `json:"name"`
	Main *struct {
		Temp      *float64 `json:"temp"`
		FeelsLike *float64 `json:"feels_like"`
		Humidity  *int64   `json:"humidity"`
		Pressure  *int64   `json:"pressure"`
	} `json:"main"`
	Weather []struct {
		Description *string `json:"description"`
	} `json:"weather"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Coord *struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	} `json:"coord"`
	Sys *struct {
		Country *string `json:"country"`
	} `json:"sys"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (c *Client) FetchByCoordinates(ctx context.Context, lat, lon float64) (*Result, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return c.fetch(ctx, "coordinates", params)
}

func (c *Client) FetchByPostalCode(ctx context.Context, code string) (*Result, error) {
	params := url.Values{}
	params.Set("zip", code)
	return c.fetch(ctx, "postal_code", params)
}

func (c *Client) FetchByQuery(ctx context.Context, query string) (*Result, error) {
	params := url.Values{}
	params.Set("q", query)
	return c.fetch(ctx, "query", params)
}

func (c *Client) fetch(ctx context.Context, kind string, params url.Values) (*Result, error) {
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("create request: %v", err)}
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.WeatherAPILatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.WeatherAPICallsTotal.WithLabelValues(kind, "transport_error").Inc()
		return nil, &APIError{Message: fmt.Sprintf("fetch weather: %v", err)}
	}
	defer resp.Body.Close()

	metrics.WeatherAPICallsTotal.WithLabelValues(kind, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Message: fmt.Sprintf("read body: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		msg := string(body)
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Message != "" {
			msg = e.Message
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}

	return parse(body)
}

// parse extracts the required fields from a provider body. Any missing
// required field is a failure; there is no partially filled result.
func parse(body []byte) (*Result, error) {
	var data response
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, &APIError{Message: fmt.Sprintf("unmarshal: %v", err)}
	}

	missing := func(field string) error {
		return &APIError{Message: "response missing required field " + field}
	}

	if data.Name == nil {
		return nil, missing("name")
	}
	if data.Main == nil {
		return nil, missing("main")
	}
	if data.Main.Temp == nil {
		return nil, missing("main.temp")
	}
	if data.Main.FeelsLike == nil {
		return nil, missing("main.feels_like")
	}
	if data.Main.Humidity == nil {
		return nil, missing("main.humidity")
	}
	if data.Main.Pressure == nil {
		return nil, missing("main.pressure")
	}
	if len(data.Weather) == 0 || data.Weather[0].Description == nil {
		return nil, missing("weather[0].description")
	}
	if data.Wind == nil || data.Wind.Speed == nil {
		return nil, missing("wind.speed")
	}

	result := &Result{
		Data: models.WeatherData{
			Location:    *data.Name,
			Temperature: *data.Main.Temp,
			FeelsLike:   *data.Main.FeelsLike,
			Humidity:    *data.Main.Humidity,
			Pressure:    *data.Main.Pressure,
			Description: *data.Weather[0].Description,
			WindSpeed:   *data.Wind.Speed,
			FetchedAt:   time.Now().UTC(),
		},
		ResolvedLocation: *data.Name,
	}

	if data.Sys != nil && data.Sys.Country != nil && *data.Sys.Country != "" {
		result.ResolvedLocation = *data.Name + ", " + *data.Sys.Country
	}
	if data.Coord != nil && data.Coord.Lat != nil && data.Coord.Lon != nil {
		result.Latitude = sql.NullFloat64{Float64: *data.Coord.Lat, Valid: true}
		result.Longitude = sql.NullFloat64{Float64: *data.Coord.Lon, Valid: true}
	}

	return result, nil
}
