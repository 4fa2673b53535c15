package config

const (
	defaultServerPort = 8080

	defaultRetryMaxAttempts = 3
	defaultRetryMultiplier  = 2.0

	defaultCircuitBreakerMaxFailures = 5
	defaultCircuitBreakerHalfOpen    = 1

	defaultFeedBuffer     = 256
	defaultMaxConcurrency = 8
	defaultWatchBuffer    = 64
)

// defaults returns the default configuration values.
// These are loaded first and can be overridden by base.yaml, profile YAML, and env vars.
func defaults() map[string]any {
	return map[string]any{
		"app.name":    "stage-tracker",
		"app.version": "dev",

		"server.host":             "0.0.0.0",
		"server.port":             defaultServerPort,
		"server.read_timeout":     "5s",
		"server.write_timeout":    "10s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "15s",
		"server.request_timeout":  "30s",
		"server.allowed_origins":  []string{},

		"log.level":  "info",
		"log.format": "json",

		"store.backend":       BackendMemory,
		"store.dsn":           "",
		"store.seed_defaults": true,
		"store.feed_buffer":   defaultFeedBuffer,

		"client.base_url":                        "http://localhost:54321/rest/v1",
		"client.api_key":                         "",
		"client.realtime_url":                    "",
		"client.timeout":                         "30s",
		"client.retry.max_attempts":              defaultRetryMaxAttempts,
		"client.retry.initial_interval":          "100ms",
		"client.retry.max_interval":              "10s",
		"client.retry.multiplier":                defaultRetryMultiplier,
		"client.circuit_breaker.max_failures":    defaultCircuitBreakerMaxFailures,
		"client.circuit_breaker.timeout":         "30s",
		"client.circuit_breaker.half_open_limit": defaultCircuitBreakerHalfOpen,
		"client.rate_limit.requests_per_second":  0,
		"client.rate_limit.burst":                0,

		"tracker.max_concurrency": defaultMaxConcurrency,
		"tracker.watch_buffer":    defaultWatchBuffer,

		"telemetry.enabled":      false,
		"telemetry.exporter":     "stdout",
		"telemetry.endpoint":     "",
		"telemetry.service_name": "stage-tracker",
		"telemetry.sample_rate":  1.0,
	}
}
