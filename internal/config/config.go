package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"80"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Shiprocket
	ShiprocketBaseURL       string `envconfig:"SHIPROCKET_BASE_URL" default:"https://apiv2.shiprocket.in/v1/external"`
	ShiprocketEnabled       bool   `envconfig:"SHIPROCKET_ENABLED" default:"true"`
	ShiprocketUseMock       bool   `envconfig:"SHIPROCKET_USE_MOCK" default:"false"`
	ShiprocketWebhookSecret string `envconfig:"SHIPROCKET_WEBHOOK_SECRET"`

	// Delhivery
	DelhiveryBaseURL       string `envconfig:"DELHIVERY_BASE_URL" default:"https://track.delhivery.com"`
	DelhiveryEnabled       bool   `envconfig:"DELHIVERY_ENABLED" default:"true"`
	DelhiveryUseMock       bool   `envconfig:"DELHIVERY_USE_MOCK" default:"false"`
	DelhiveryWebhookSecret string `envconfig:"DELHIVERY_WEBHOOK_SECRET"`

	// BlueDart
	BlueDartBaseURL       string `envconfig:"BLUEDART_BASE_URL" default:"https://apigateway.bluedart.com"`
	BlueDartEnabled       bool   `envconfig:"BLUEDART_ENABLED" default:"true"`
	BlueDartUseMock       bool   `envconfig:"BLUEDART_USE_MOCK" default:"false"`
	BlueDartWebhookSecret string `envconfig:"BLUEDART_WEBHOOK_SECRET"`

	// DTDC
	DTDCBaseURL       string `envconfig:"DTDC_BASE_URL" default:"https://dtdcapi.shipsy.io/api/customer/integration"`
	DTDCEnabled       bool   `envconfig:"DTDC_ENABLED" default:"true"`
	DTDCUseMock       bool   `envconfig:"DTDC_USE_MOCK" default:"false"`
	DTDCWebhookSecret string `envconfig:"DTDC_WEBHOOK_SECRET"`

	// Mock carrier, for staging environments
	MockCarrierEnabled bool `envconfig:"MOCK_CARRIER_ENABLED" default:"false"`

	// Redis, backs the token cache and inbound dedup when enabled
	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Outbound dispatcher
	DispatchRetryInterval  time.Duration `envconfig:"DISPATCH_RETRY_INTERVAL" default:"2s"`
	DispatchDefaultTimeout time.Duration `envconfig:"DISPATCH_DEFAULT_TIMEOUT" default:"10s"`

	// Inbound dedup retention
	InboundRetention time.Duration `envconfig:"INBOUND_RETENTION" default:"168h"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://jaeger-collector.observability.svc.cluster.local:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"shipstack-courier"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("shiprocket.enabled", c.ShiprocketEnabled),
		attribute.Bool("delhivery.enabled", c.DelhiveryEnabled),
		attribute.Bool("bluedart.enabled", c.BlueDartEnabled),
		attribute.Bool("dtdc.enabled", c.DTDCEnabled),
		attribute.Bool("redis.enabled", c.RedisEnabled),
	}
}
