package config

import (
	"context"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/T9Tuco/NexusBD/internal/types"
)

type Loader struct {
	validator *validator.Validate
}

func NewLoader() *Loader {
	return &Loader{
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (l *Loader) LoadFromFile(configPath string) (*types.ServiceConfig, error) {
	if configPath == "" {
		return nil, types.ErrConfigNotFound
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, types.WrapError(err, "file not found: "+configPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	data, err := l.ReadFileWithTimeout(ctx, configPath)
	if err != nil {
		return nil, types.WrapError(err, "failed to read config file")
	}

	config := l.Defaults()

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, types.WrapError(err, "failed to parse YAML config")
	}

	if err := l.validator.Struct(config); err != nil {
		return nil, types.WrapError(err, "config validation failed")
	}

	return config, nil
}

func (l *Loader) ReadFileWithTimeout(ctx context.Context, filepath string) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}

	resultChan := make(chan result, 1)

	go func() {
		data, err := os.ReadFile(filepath)
		resultChan <- result{data: data, err: err}
	}()

	select {
	case res := <-resultChan:
		return res.data, res.err
	case <-ctx.Done():
		return nil, types.WrapError(ctx.Err(), "file read timeout")
	}
}

func (l *Loader) Defaults() *types.ServiceConfig {
	return &types.ServiceConfig{
		Name:    "nexusbd",
		Version: "0.1.0",
		Server: &types.ServerConfig{
			HTTP: &types.HTTPConfig{
				Host:            "localhost",
				Port:            8080,
				ReadTimeout:     30,
				WriteTimeout:    30,
				IdleTimeout:     120,
				ShutdownTimeout: 10,
				RequestTimeout:  60,
			},
			TLS: &types.TLSConfig{
				Enabled: false,
			},
		},
		Logger: &types.LoggerConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Cache: &types.CacheConfig{
			Enabled:    true,
			Type:       "memory",
			DefaultTTL: types.Duration(time.Minute),
			MaxEntries: 10000,
		},
		Discord: &types.DiscordConfig{
			APIBase:        "https://discord.com/api/v10",
			RequestTimeout: 15,
			MaxConns:       128,
			UserAgent:      "NexusBD (https://github.com/T9Tuco/NexusBD)",
		},
		Gateway: &types.GatewayConfig{
			TokenMinLength: 50,
			CacheTTL:       types.Duration(time.Minute),
			MaxAttempts:    5,
			StatsSamples:   3,
			StatsPause:     types.Duration(300 * time.Millisecond),
		},
		Session: &types.SessionConfig{
			Enabled: true,
			TTL:     types.Duration(24 * time.Hour),
		},
		Events: &types.EventsConfig{
			Enabled:      false,
			MaxRetries:   5,
			PingInterval: 30,
		},
		Cron: &types.CronConfig{
			Enabled:   false,
			Timezone:  "UTC",
			SweepSpec: "0 * * * * *",
		},
		Metrics: &types.MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Prefix:  "nexusbd",
			Collectors: types.CollectorsConfig{
				Go:      true,
				Process: false,
			},
		},
		Middlewares: &types.MiddlewaresConfig{
			Enabled: true,
			Recovery: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  10,
			},
			Logging: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  20,
				Params: map[string]interface{}{
					"log_headers": false,
				},
			},
			CORS: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  30,
				Params: map[string]interface{}{
					"allowed_origins": []string{"*"},
					"allowed_methods": []string{"GET", "POST", "DELETE", "OPTIONS"},
					"allowed_headers": []string{"Content-Type", "Authorization", "X-Request-ID"},
					"max_age":         86400,
				},
			},
			BodyLimit: &types.MiddlewareItemConfig{
				Enabled: true,
				Weight:  40,
				Params: map[string]interface{}{
					"max_body_size": 65536,
				},
			},
			RateLimit: &types.MiddlewareItemConfig{
				Enabled: false,
				Weight:  50,
				Params: map[string]interface{}{
					"requests_per_minute": 120,
				},
			},
			Compression: &types.MiddlewareItemConfig{
				Enabled: false,
				Weight:  60,
				Params: map[string]interface{}{
					"threshold": 1024,
				},
			},
		},
	}
}
