package types

import (
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that accepts YAML values in either
// time.ParseDuration form ("30s", "1m") or integer seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	// An !!int scalar also decodes cleanly as a string, so branch on
	// the tag first or the integer-seconds form is unreachable.
	if value.Tag == "!!int" {
		var seconds int64
		if err := value.Decode(&seconds); err != nil {
			return err
		}
		*d = Duration(time.Duration(seconds) * time.Second)
		return nil
	}

	var asString string
	if err := value.Decode(&asString); err == nil {
		parsed, parseErr := time.ParseDuration(asString)
		if parseErr != nil {
			return parseErr
		}
		*d = Duration(parsed)
		return nil
	}

	var seconds int64
	if err := value.Decode(&seconds); err != nil {
		return err
	}
	*d = Duration(time.Duration(seconds) * time.Second)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type ConfigManager interface {
	Load() error
	GetConfig() *ServiceConfig
}

type ServiceConfig struct {
	Name        string             `yaml:"name" json:"name" validate:"required"`
	Version     string             `yaml:"version" json:"version" validate:"required"`
	Server      *ServerConfig      `yaml:"server" json:"server"`
	Logger      *LoggerConfig      `yaml:"logger" json:"logger"`
	Cache       *CacheConfig       `yaml:"cache" json:"cache"`
	Discord     *DiscordConfig     `yaml:"discord" json:"discord"`
	Gateway     *GatewayConfig     `yaml:"gateway" json:"gateway"`
	Session     *SessionConfig     `yaml:"session" json:"session"`
	Events      *EventsConfig      `yaml:"events" json:"events"`
	Cron        *CronConfig        `yaml:"cron" json:"cron"`
	Middlewares *MiddlewaresConfig `yaml:"middlewares" json:"middlewares"`
	Metrics     *MetricsConfig     `yaml:"metrics" json:"metrics"`
}

type ServerConfig struct {
	HTTP *HTTPConfig `yaml:"http" json:"http"`
	TLS  *TLSConfig  `yaml:"tls" json:"tls"`
}

type HTTPConfig struct {
	Host            string `yaml:"host" json:"host"`
	Port            int    `yaml:"port" json:"port" validate:"min=1,max=65535"`
	ReadTimeout     int    `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    int    `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     int    `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout int    `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	RequestTimeout  int    `yaml:"request_timeout" json:"request_timeout"`
}

type TLSConfig struct {
	Enabled  bool     `yaml:"enabled" json:"enabled"`
	CertFile string   `yaml:"cert_file,omitempty" json:"cert_file,omitempty"`
	KeyFile  string   `yaml:"key_file,omitempty" json:"key_file,omitempty"`
	AutoCert bool     `yaml:"auto_cert" json:"auto_cert"`
	Domains  []string `yaml:"domains,omitempty" json:"domains,omitempty"`
	Email    string   `yaml:"email,omitempty" json:"email,omitempty"`
	CacheDir string   `yaml:"cache_dir,omitempty" json:"cache_dir,omitempty"`
}

type LoggerConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
	Output string `yaml:"output" json:"output"`
	File   string `yaml:"file,omitempty" json:"file,omitempty"`
}

type CacheConfig struct {
	Enabled    bool          `yaml:"enabled" json:"enabled"`
	Type       string        `yaml:"type" json:"type" validate:"required_if=Enabled true,omitempty,oneof=memory redis"`
	DefaultTTL Duration      `yaml:"default_ttl" json:"default_ttl" validate:"min=0"`
	MaxEntries int           `yaml:"max_entries" json:"max_entries" validate:"min=0"`
	Redis      *RedisConfig  `yaml:"redis,omitempty" json:"redis,omitempty"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr" validate:"required"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	DB       int    `yaml:"db" json:"db" validate:"min=0"`
	Prefix   string `yaml:"prefix" json:"prefix"`
	PoolSize int    `yaml:"pool_size" json:"pool_size" validate:"min=0"`
}

type DiscordConfig struct {
	APIBase        string `yaml:"api_base" json:"api_base" validate:"required,url"`
	RequestTimeout int    `yaml:"request_timeout" json:"request_timeout" validate:"min=1"`
	MaxConns       int    `yaml:"max_conns" json:"max_conns" validate:"min=1"`
	UserAgent      string `yaml:"user_agent" json:"user_agent"`
}

type GatewayConfig struct {
	TokenMinLength int           `yaml:"token_min_length" json:"token_min_length" validate:"min=1"`
	CacheTTL       Duration      `yaml:"cache_ttl" json:"cache_ttl" validate:"min=0"`
	MaxAttempts    int           `yaml:"max_attempts" json:"max_attempts" validate:"min=1,max=10"`
	StatsSamples   int           `yaml:"stats_samples" json:"stats_samples" validate:"min=1"`
	StatsPause     Duration      `yaml:"stats_pause" json:"stats_pause" validate:"min=0"`
}

type SessionConfig struct {
	Enabled bool          `yaml:"enabled" json:"enabled"`
	TTL     Duration      `yaml:"ttl" json:"ttl" validate:"min=0"`
}

type EventsConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	URL          string `yaml:"url" json:"url" validate:"required_if=Enabled true,omitempty,url"`
	MaxRetries   int    `yaml:"max_retries" json:"max_retries" validate:"min=0"`
	PingInterval int    `yaml:"ping_interval" json:"ping_interval" validate:"min=0"`
}

type CronConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	Timezone  string `yaml:"timezone" json:"timezone" validate:"required_if=Enabled true"`
	SweepSpec string `yaml:"sweep_spec" json:"sweep_spec"`
	WarmSpec  string `yaml:"warm_spec" json:"warm_spec"`
	WarmToken string `yaml:"warm_token,omitempty" json:"warm_token,omitempty"`
}

type MiddlewaresConfig struct {
	Enabled     bool                  `yaml:"enabled" json:"enabled"`
	Recovery    *MiddlewareItemConfig `yaml:"recovery" json:"recovery"`
	Logging     *MiddlewareItemConfig `yaml:"logging" json:"logging"`
	CORS        *MiddlewareItemConfig `yaml:"cors" json:"cors"`
	BodyLimit   *MiddlewareItemConfig `yaml:"body_limit" json:"body_limit"`
	RateLimit   *MiddlewareItemConfig `yaml:"rate_limit" json:"rate_limit"`
	Compression *MiddlewareItemConfig `yaml:"compression" json:"compression"`
}

type MiddlewareItemConfig struct {
	Enabled bool                   `yaml:"enabled" json:"enabled"`
	Weight  int                    `yaml:"weight" json:"weight" validate:"min=0"`
	Params  map[string]interface{} `yaml:"params" json:"params"`
}

type MetricsConfig struct {
	Enabled    bool              `yaml:"enabled" json:"enabled"`
	Path       string            `yaml:"path" json:"path"`
	Prefix     string            `yaml:"prefix" json:"prefix"`
	Labels     map[string]string `yaml:"labels" json:"labels"`
	Collectors CollectorsConfig  `yaml:"collectors" json:"collectors"`
}

type CollectorsConfig struct {
	Go      bool `yaml:"go" json:"go"`
	Process bool `yaml:"process" json:"process"`
}

type VersionInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
