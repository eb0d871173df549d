package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shipstack/courier/internal/config"
	"github.com/shipstack/courier/internal/dispatch"
	"github.com/shipstack/courier/internal/ingest"
	"github.com/shipstack/courier/internal/lifecycle"
	"github.com/shipstack/courier/internal/service"
	"github.com/shipstack/courier/internal/telemetry"
	"github.com/shipstack/courier/pkg/courier"
	"github.com/shipstack/courier/pkg/courier/bluedart"
	"github.com/shipstack/courier/pkg/courier/credstore"
	"github.com/shipstack/courier/pkg/courier/delhivery"
	"github.com/shipstack/courier/pkg/courier/dtdc"
	"github.com/shipstack/courier/pkg/courier/mock"
	"github.com/shipstack/courier/pkg/courier/shiprocket"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tokenSkew is how early cached carrier tokens are refreshed.
const tokenSkew = 5 * time.Minute

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(level string) (*otelzap.Logger, error) {
	return telemetry.NewLogger(level)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
	return shutdown, err
}

// App holds the wired core components.
type App struct {
	Registry   *courier.Registry
	Pipeline   *ingest.Pipeline
	Service    *service.Service
	Dispatcher *dispatch.Dispatcher

	redisClient *redis.Client
}

// Close releases shared resources.
func (a *App) Close() {
	if a.redisClient != nil {
		a.redisClient.Close()
	}
}

func initApp(cfg *config.Config, logger *otelzap.Logger) (*App, error) {
	tracer := otel.GetTracerProvider().Tracer(cfg.ServiceName)
	metrics := telemetry.NewMetrics()

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}

	var tokenBackend credstore.CacheBackend
	var eventStore ingest.EventStore
	if redisClient != nil {
		tokenBackend = credstore.NewRedisBackend(redisClient, "courier:token:")
		eventStore = ingest.NewRedisEventStore(redisClient, cfg.InboundRetention)
	} else {
		tokenBackend = credstore.NewMemoryBackend()
		eventStore = ingest.NewMemoryEventStore(cfg.InboundRetention)
	}
	tokens := credstore.NewTokenCache(tokenBackend, tokenSkew)

	registry := initRegistry(cfg, tokens, logger, tracer)

	accounts := credstore.NewMemoryStore()
	shipments := lifecycle.NewMemoryShipmentStore()
	ndrs := lifecycle.NewMemoryNdrStore()
	subs := dispatch.NewMemorySubscriptionStore()
	deliveries := dispatch.NewMemoryDeliveryStore()

	dispatcher := dispatch.New(dispatch.Config{
		RetryInterval:  cfg.DispatchRetryInterval,
		DefaultTimeout: cfg.DispatchDefaultTimeout,
	}, subs, deliveries, logger, metrics)

	pipeline := ingest.NewPipeline(
		registry, shipments, ndrs, eventStore, dispatcher,
		webhookSecrets(cfg), logger, metrics,
	)

	svc := service.New(
		registry, accounts, shipments, ndrs, subs, deliveries,
		dispatcher, logger, metrics, tracer,
	)

	return &App{
		Registry:    registry,
		Pipeline:    pipeline,
		Service:     svc,
		Dispatcher:  dispatcher,
		redisClient: redisClient,
	}, nil
}

func initRegistry(cfg *config.Config, tokens *credstore.TokenCache, logger *otelzap.Logger, tracer trace.Tracer) *courier.Registry {
	registry := courier.NewRegistry()

	if cfg.ShiprocketEnabled {
		registry.Register(shiprocket.New(shiprocket.Config{
			BaseURL: cfg.ShiprocketBaseURL,
			UseMock: cfg.ShiprocketUseMock,
		}, tokens, logger, tracer))
	}

	if cfg.DelhiveryEnabled {
		registry.Register(delhivery.New(delhivery.Config{
			BaseURL: cfg.DelhiveryBaseURL,
			UseMock: cfg.DelhiveryUseMock,
		}, logger, tracer))
	}

	if cfg.BlueDartEnabled {
		registry.Register(bluedart.New(bluedart.Config{
			BaseURL: cfg.BlueDartBaseURL,
			UseMock: cfg.BlueDartUseMock,
		}, tokens, logger, tracer))
	}

	if cfg.DTDCEnabled {
		registry.Register(dtdc.New(dtdc.Config{
			BaseURL: cfg.DTDCBaseURL,
			UseMock: cfg.DTDCUseMock,
		}, logger, tracer))
	}

	if cfg.MockCarrierEnabled {
		registry.Register(mock.New("mock"))
	}

	return registry
}

func webhookSecrets(cfg *config.Config) ingest.SecretResolver {
	secrets := map[courier.CourierType]string{
		courier.TypeShiprocket: cfg.ShiprocketWebhookSecret,
		courier.TypeDelhivery:  cfg.DelhiveryWebhookSecret,
		courier.TypeBlueDart:   cfg.BlueDartWebhookSecret,
		courier.TypeDTDC:       cfg.DTDCWebhookSecret,
	}
	return func(t courier.CourierType) string {
		return secrets[t]
	}
}
