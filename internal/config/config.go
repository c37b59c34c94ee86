package config

import "time"

// Config is built once at startup and injected into every component.
// There are no ambient lookups after parse time.
type Config struct {
	OpenWeatherAPIKey string `name:"openweather-api-key" env:"OPENWEATHER_API_KEY" help:"OpenWeatherMap API key." required:""`
	YouTubeAPIKey     string `name:"youtube-api-key" env:"YOUTUBE_API_KEY" help:"YouTube Data API key. Video enrichment is disabled when empty." default:""`

	DBPath string `name:"db" env:"DB_PATH" help:"Path to the SQLite database." default:"data/weathervault.db"`

	Host  string `env:"HOST" help:"HTTP listen host." default:"0.0.0.0"`
	Port  string `env:"PORT" help:"HTTP listen port." default:"8000"`
	Debug bool   `env:"DEBUG" help:"Enable debug logging."`

	CORSOrigins []string `name:"cors-origins" env:"CORS_ORIGINS" help:"Allowed CORS origins." default:"http://localhost,http://localhost:3000,http://127.0.0.1:3000"`

	LogLevel       string        `name:"log-level" env:"LOG_LEVEL" help:"Log level (debug, info, warn, error)." default:"info"`
	RequestTimeout time.Duration `name:"request-timeout" env:"REQUEST_TIMEOUT" help:"Timeout for outbound provider calls." default:"30s"`
	QueryLimit     int           `name:"query-limit" env:"QUERY_LIMIT" help:"Maximum page size for list queries." default:"100"`
}
