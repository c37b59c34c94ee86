package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WeatherAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathervault_weather_api_calls_total",
			Help: "Total OpenWeatherMap API calls",
		},
		[]string{"query_kind", "status"},
	)

	WeatherAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weathervault_weather_api_latency_seconds",
			Help:    "OpenWeatherMap API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_kind"},
	)

	VideoAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weathervault_video_api_calls_total",
			Help: "Total YouTube search API calls",
		},
		[]string{"status"},
	)

	VideoItemsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weathervault_video_items_dropped_total",
			Help: "Video search items dropped due to missing fields",
		},
	)

	RecordsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weathervault_records_created_total",
			Help: "Weather records successfully persisted",
		},
	)
)
