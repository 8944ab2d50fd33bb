package services

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/customeros/bccstack/config"
	"github.com/customeros/bccstack/interfaces"
	internalconfig "github.com/customeros/bccstack/internal/config"
	"github.com/customeros/bccstack/internal/logger"
	"github.com/customeros/bccstack/internal/repository"
	"github.com/customeros/bccstack/services/address"
	"github.com/customeros/bccstack/services/capture"
	"github.com/customeros/bccstack/services/entitlement"
	"github.com/customeros/bccstack/services/events"
	"github.com/customeros/bccstack/services/idempotency"
	"github.com/customeros/bccstack/services/link_extractor"
	"github.com/customeros/bccstack/services/ratelimit"
	"github.com/customeros/bccstack/services/signature"
	"github.com/customeros/bccstack/services/status"
	"github.com/customeros/bccstack/services/storage"
)

type Services struct {
	EventsService      *events.EventsService
	StorageService     interfaces.StorageService
	RelayAVerifier     interfaces.SignatureVerifier
	RelayBVerifier     interfaces.SignatureVerifier
	IPLimiter          interfaces.RateLimiter
	TenantLimiter      interfaces.RateLimiter
	EntitlementService interfaces.EntitlementService
	Idempotency        interfaces.IdempotencyResolver
	AddressResolver    interfaces.AddressResolver
	LinkExtractor      interfaces.LinkExtractor
	CaptureProcessor   interfaces.CaptureProcessor
	StatusService      interfaces.CaptureStatusService
	Sweeper            interfaces.StalePendingSweeper

	redis *redis.Client
}

func InitServices(ctx context.Context, cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	// events
	eventsService, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, cfg.AppConfig.AppSource, log, events.DefaultPublisherConfig())
	if err != nil {
		return nil, err
	}

	storageService, err := storage.NewStorageServiceFromConfig(cfg.StorageConfig)
	if err != nil {
		return nil, errors.Wrap(err, "storage")
	}

	rdb, err := initRedis(ctx, cfg.RedisConfig, log)
	if err != nil {
		return nil, err
	}

	captureCfg := cfg.CaptureConfig
	services := Services{
		EventsService:      eventsService,
		StorageService:     storageService,
		RelayAVerifier:     signature.NewRelayAVerifier(cfg.RelayAConfig.WebhookSecret, captureCfg.SignatureWindow, captureCfg.AllowUnsigned, log),
		RelayBVerifier:     signature.NewRelayBVerifier(cfg.RelayBConfig.SigningKey, captureCfg.SignatureWindow, captureCfg.AllowUnsigned, log),
		EntitlementService: entitlement.NewEntitlementService(repos.TenantRepository, captureCfg.TrialCaptureLimit),
		AddressResolver:    address.NewResolver(captureCfg.InboundDomain, repos.TenantRepository, repos.DocumentRepository),
		LinkExtractor:      link_extractor.NewLinkExtractor(),
		StatusService:      status.NewCaptureStatusService(repos.IngestionRecordRepository),
		Sweeper:            capture.NewStalePendingSweeper(repos.IngestionRecordRepository, captureCfg.StalePendingAfter, log),
		redis:              rdb,
	}
	services.IPLimiter, services.TenantLimiter = initLimiters(cfg.RateLimit, rdb)

	var cache idempotency.RecordCache
	if rdb != nil {
		cache = idempotency.NewRedisCache(rdb)
	}
	services.Idempotency = idempotency.NewResolver(repos.IngestionRecordRepository, cache, log)

	services.CaptureProcessor = capture.NewProcessor(captureCfg, log, capture.Dependencies{
		Repositories:  repos,
		Idempotency:   services.Idempotency,
		Addresses:     services.AddressResolver,
		TenantLimiter: services.TenantLimiter,
		Entitlements:  services.EntitlementService,
		Storage:       services.StorageService,
		Links:         services.LinkExtractor,
		Publisher:     eventsService.Publisher,
	})

	return &services, nil
}

// initRedis returns nil when no REDIS_URL is configured.
func initRedis(ctx context.Context, cfg *config.RedisConfig, log logger.Logger) (*redis.Client, error) {
	if cfg == nil || cfg.URL == "" {
		log.Warn("REDIS_URL not set, rate limits and idempotency cache are per instance")
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warnf("Redis ping failed, continuing: %v", err)
	}
	return rdb, nil
}

func initLimiters(cfg *internalconfig.RateLimitConfig, rdb *redis.Client) (ip, tenant interfaces.RateLimiter) {
	switch {
	case !cfg.Enabled:
		return ratelimit.NewNoopLimiter(), ratelimit.NewNoopLimiter()
	case rdb != nil:
		return ratelimit.NewRedisLimiter(rdb, cfg.RedisKeyPrefix, cfg.PerIPLimit, cfg.Window),
			ratelimit.NewRedisLimiter(rdb, cfg.RedisKeyPrefix, cfg.PerTenantLimit, cfg.Window)
	default:
		return ratelimit.NewMemoryLimiter(cfg.PerIPLimit, cfg.Window),
			ratelimit.NewMemoryLimiter(cfg.PerTenantLimit, cfg.Window)
	}
}

func (s *Services) Close() {
	if s.EventsService != nil {
		_ = s.EventsService.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
}
