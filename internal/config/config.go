package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type LevelList []logrus.Level

func (a LevelList) MarshalText() ([]byte, error) {
	if len(a) == 0 {
		return []byte("-"), nil
	}

	s := make([]string, len(a))
	for i, e := range a {
		s[i] = e.String()
	}

	return []byte(strings.Join(s, ",")), nil
}

func (a *LevelList) UnmarshalText(d []byte) error {
	if string(d) == "" || string(d) == "-" {
		*a = LevelList{}
		return nil
	}

	var aa LevelList

	for _, e := range strings.Split(string(d), ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}

		l, err := logrus.ParseLevel(e)
		if err != nil {
			return fmt.Errorf("config.LevelList.UnmarshalText: could not parse value as logrus level: %w", err)
		}

		aa = append(aa, l)
	}

	*a = aa

	return nil
}

type LogQueries struct {
	Enabled    bool
	SlowerThan time.Duration
}

func (l LogQueries) String() string {
	if l.Enabled {
		if l.SlowerThan != 0 {
			return ">" + l.SlowerThan.String()
		}

		return "all"
	}

	return "none"
}

func (l LogQueries) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *LogQueries) UnmarshalText(d []byte) error {
	s := string(d)

	switch s {
	case "all":
		*l = LogQueries{Enabled: true}
		return nil
	case "", "none":
		*l = LogQueries{}
		return nil
	}

	if strings.HasPrefix(s, ">") && len(s) > 1 {
		d, err := time.ParseDuration(s[1:])
		if err != nil {
			return fmt.Errorf("config.LogQueries.UnmarshalText: could not parse value as duration: %w", err)
		}

		*l = LogQueries{Enabled: true, SlowerThan: d}

		return nil
	}

	return fmt.Errorf("config.LogQueries.UnmarshalText: unrecognised input %q; valid options are none, all, or >x where x is a duration", s)
}

type Config struct {
	Config         string       `name:"config" toml:"config" yaml:"config" help:"Config file location."`
	LogLevel       logrus.Level `name:"log_level" toml:"log_level" yaml:"log_level" help:"Global log level."`
	LogDebugLevels LevelList    `name:"log_debug_levels" toml:"log_debug_levels" yaml:"log_debug_levels" help:"Which log levels to include stack data on."`
	LogQueries     LogQueries   `name:"log_queries" toml:"log_queries" yaml:"log_queries" help:"Log SQL queries."`
	LogSORM        bool         `name:"log_sorm" toml:"log_sorm" yaml:"log_sorm" help:"Log SORM queries."`

	HTTPAddr          string `name:"http_addr" toml:"http_addr" yaml:"http_addr" help:"Address to listen on for the API server."`
	Database          string `name:"database" toml:"database" yaml:"database" help:"SQLite database location."`
	HTTPCachePath     string `name:"http_cache_path" toml:"http_cache_path" yaml:"http_cache_path" help:"Location for the outbound HTTP cache."`
	BackgroundWorkers int    `name:"background_workers" toml:"background_workers" yaml:"background_workers" help:"How many job queue workers to run."`

	AuthSecret string `name:"auth_secret" toml:"auth_secret" yaml:"auth_secret" help:"HMAC secret for bearer tokens."`
	AuthIssuer string `name:"auth_issuer" toml:"auth_issuer" yaml:"auth_issuer" help:"Expected bearer token issuer; empty accepts any."`

	RedisAddr     string `name:"redis_addr" toml:"redis_addr" yaml:"redis_addr" help:"Redis address for rate limit counters."`
	RedisPassword string `name:"redis_password" toml:"redis_password" yaml:"redis_password" help:"Redis password."`
	RedisDB       int    `name:"redis_db" toml:"redis_db" yaml:"redis_db" help:"Redis database number."`

	RateLimitRequests int           `name:"rate_limit_requests" toml:"rate_limit_requests" yaml:"rate_limit_requests" help:"Requests allowed per actor in each window."`
	RateLimitWindow   time.Duration `name:"rate_limit_window" toml:"rate_limit_window" yaml:"rate_limit_window" help:"Rate limit sliding window length."`

	StorageEndpoint  string `name:"storage_endpoint" toml:"storage_endpoint" yaml:"storage_endpoint" help:"S3-compatible object store endpoint."`
	StorageAccessKey string `name:"storage_access_key" toml:"storage_access_key" yaml:"storage_access_key" help:"Object store access key."`
	StorageSecretKey string `name:"storage_secret_key" toml:"storage_secret_key" yaml:"storage_secret_key" help:"Object store secret key."`
	StorageBucket    string `name:"storage_bucket" toml:"storage_bucket" yaml:"storage_bucket" help:"Object store bucket for thumbnails and banners."`
	StoragePublicURL string `name:"storage_public_url" toml:"storage_public_url" yaml:"storage_public_url" help:"Public base URL for stored objects."`
	StorageSecure    bool   `name:"storage_secure" toml:"storage_secure" yaml:"storage_secure" help:"Use TLS for the object store."`

	TranscoderBaseURL       string `name:"transcoder_base_url" toml:"transcoder_base_url" yaml:"transcoder_base_url" help:"Video transcoding API base URL."`
	TranscoderTokenID       string `name:"transcoder_token_id" toml:"transcoder_token_id" yaml:"transcoder_token_id" help:"Video transcoding API token id."`
	TranscoderTokenSecret   string `name:"transcoder_token_secret" toml:"transcoder_token_secret" yaml:"transcoder_token_secret" help:"Video transcoding API token secret."`
	TranscoderWebhookSecret string `name:"transcoder_webhook_secret" toml:"transcoder_webhook_secret" yaml:"transcoder_webhook_secret" help:"Shared secret for transcoding webhook signatures."`
	TranscoderCORSOrigin    string `name:"transcoder_cors_origin" toml:"transcoder_cors_origin" yaml:"transcoder_cors_origin" help:"Origin allowed to use direct upload URLs."`
	TranscoderStreamURL     string `name:"transcoder_stream_url" toml:"transcoder_stream_url" yaml:"transcoder_stream_url" help:"Base URL for playback and text tracks."`
	TranscoderImageURL      string `name:"transcoder_image_url" toml:"transcoder_image_url" yaml:"transcoder_image_url" help:"Base URL for generated thumbnails and previews."`

	IdentityWebhookSecret string `name:"identity_webhook_secret" toml:"identity_webhook_secret" yaml:"identity_webhook_secret" help:"whsec_ secret for identity webhook signatures."`

	GenerationBaseURL           string  `name:"generation_base_url" toml:"generation_base_url" yaml:"generation_base_url" help:"OpenAI-compatible API base URL."`
	GenerationAPIKey            string  `name:"generation_api_key" toml:"generation_api_key" yaml:"generation_api_key" help:"Generation API key."`
	GenerationModel             string  `name:"generation_model" toml:"generation_model" yaml:"generation_model" help:"Generation model name."`
	GenerationRequestsPerMinute float64 `name:"generation_requests_per_minute" toml:"generation_requests_per_minute" yaml:"generation_requests_per_minute" help:"Outbound generation request rate."`

	WorkflowAttempts int `name:"workflow_attempts" toml:"workflow_attempts" yaml:"workflow_attempts" help:"Attempts per workflow step before the run fails."`
}

// Default is the configuration used before any file, flag or environment
// variable is applied.
func Default() Config {
	return Config{
		LogLevel:                    logrus.InfoLevel,
		LogDebugLevels:              LevelList{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel},
		HTTPAddr:                    ":3000",
		Database:                    "vidshare.db",
		HTTPCachePath:               "http_cache.db",
		BackgroundWorkers:           2,
		RedisAddr:                   "127.0.0.1:6379",
		RateLimitRequests:           10,
		RateLimitWindow:             10 * time.Second,
		StorageBucket:               "vidshare",
		TranscoderBaseURL:           "https://api.mux.com",
		TranscoderCORSOrigin:        "*",
		TranscoderStreamURL:         "https://stream.mux.com",
		TranscoderImageURL:          "https://image.mux.com",
		GenerationBaseURL:           "https://api.openai.com/v1",
		GenerationModel:             "gpt-4o-mini",
		GenerationRequestsPerMinute: 30,
		WorkflowAttempts:            3,
	}
}
