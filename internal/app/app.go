// Package app 根据配置组装各组件，API 服务与 gozactl 共用
package app

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/LJTian/GozaMadrid/internal/aggregator"
	"github.com/LJTian/GozaMadrid/internal/api"
	"github.com/LJTian/GozaMadrid/internal/cache"
	"github.com/LJTian/GozaMadrid/internal/collector"
	"github.com/LJTian/GozaMadrid/internal/config"
	"github.com/LJTian/GozaMadrid/internal/events"
	"github.com/LJTian/GozaMadrid/internal/listing"
	"github.com/LJTian/GozaMadrid/internal/logger"
	"github.com/LJTian/GozaMadrid/internal/resolver"
	"github.com/LJTian/GozaMadrid/internal/storage"
)

const redisKeyPrefix = "gozamadrid:"

type App struct {
	Config     *config.Config
	Log        logger.Logger
	Fetchers   collector.Set
	Aggregator *aggregator.Aggregator
	Lists      *aggregator.Cached
	Resolver   *resolver.Resolver
	// Leads 未配置 POSTGRES_DSN 时为 nil
	Leads  *storage.Repository
	Events events.Publisher

	closers []func(context.Context) error
}

// Options 控制可选组件的初始化，CLI 不需要 lead 存储与事件
type Options struct {
	WithLeads bool
}

// New 初始化失败的可选组件（Redis、PostgreSQL、NATS）只记录警告并降级
func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: log, Events: events.Nop{}}

	fetchers, err := a.buildFetchers(ctx)
	if err != nil {
		return nil, err
	}
	a.Fetchers = fetchers

	rdb := a.connectRedis()
	detail := newCache[listing.Listing]("detail", cfg.CacheMaxEntries, rdb, log, cfg.CacheTTL)
	props := newCache[aggregator.PropertyResult]("list", cfg.CacheMaxEntries, rdb, log, cfg.ListCacheTTL)
	blogs := newCache[aggregator.BlogResult]("list", cfg.CacheMaxEntries, rdb, log, cfg.ListCacheTTL)

	a.Aggregator = aggregator.New(fetchers, log.With(logger.String("component", "aggregator")))
	a.Lists = aggregator.NewCached(a.Aggregator, props, blogs, cfg.ListCacheTTL)
	a.Resolver = resolver.New(fetchers, resolver.Options{
		Cache:        detail,
		CacheTTL:     cfg.CacheTTL,
		MongoPolicy:  resolver.DefaultMongoPolicy(cfg.MongoMaxAttempts),
		DemoFallback: cfg.DemoFallback,
		Logger:       log.With(logger.String("component", "resolver")),
	})

	if opts.WithLeads {
		a.initLeads()
	}
	return a, nil
}

func (a *App) buildFetchers(ctx context.Context) (collector.Set, error) {
	cfg := a.Config
	client := collector.NewClient(cfg.APITimeout)
	var set collector.Set

	// 配置了 MONGODB_URI 时直连数据库，否则走 REST 服务
	switch {
	case cfg.MongoURI != "":
		m, err := collector.NewMongoDirect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.APITimeout)
		if err != nil {
			return set, err
		}
		a.closers = append(a.closers, m.Close)
		set.MongoDB = m
	case cfg.MongoAPIURL != "":
		set.MongoDB = &collector.MongoREST{BaseURL: cfg.MongoAPIURL, Client: client}
	default:
		a.Log.Warn("mongodb not configured")
	}

	if cfg.WordPressAPIURL != "" {
		set.WordPress = &collector.WordPress{BaseURL: cfg.WordPressAPIURL, PageSize: cfg.PageSize, Client: client}
	} else {
		a.Log.Warn("wordpress not configured")
	}

	if cfg.WooCommerceConfigured() {
		set.WooCommerce = &collector.WooCommerce{
			BaseURL:        cfg.WooCommerceAPIURL,
			ConsumerKey:    cfg.WooCommerceKey,
			ConsumerSecret: cfg.WooCommerceSecret,
			PageSize:       cfg.PageSize,
			Client:         client,
		}
	} else {
		a.Log.Warn("woocommerce not configured (WC_API_URL, WOO_COMMERCE_KEY, WOO_COMMERCE_SECRET)")
	}
	return set, nil
}

func (a *App) connectRedis() *redis.Client {
	if a.Config.RedisAddr == "" {
		return nil
	}
	rdb, err := cache.NewRedisClient(a.Config.RedisAddr)
	if err != nil {
		a.Log.Warn("redis unavailable, using in-process cache only", logger.Error(err))
		return nil
	}
	a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
	return rdb
}

func newCache[V any](name string, maxEntries int, rdb *redis.Client, log logger.Logger, ttl time.Duration) cache.Cache[V] {
	mem := cache.NewMemory[V](name, maxEntries)
	if rdb == nil {
		return mem
	}
	return &cache.Tiered[V]{
		L1:    mem,
		L2:    cache.NewRedis[V](rdb, redisKeyPrefix, log),
		L1TTL: ttl,
	}
}

func (a *App) initLeads() {
	cfg := a.Config
	if cfg.PostgresDSN != "" {
		repo, err := storage.Open(cfg.PostgresDSN)
		if err != nil {
			a.Log.Warn("lead storage unavailable", logger.Error(err))
		} else {
			a.Leads = repo
			a.closers = append(a.closers, func(context.Context) error {
				sqlDB, err := repo.DB.DB()
				if err != nil {
					return err
				}
				return sqlDB.Close()
			})
		}
	}
	if cfg.NATSURL != "" {
		pub, err := events.NewNATS(cfg.NATSURL, cfg.NATSLeadSubject, a.Log.With(logger.String("component", "events")))
		if err != nil {
			a.Log.Warn("nats unavailable, lead events disabled", logger.Error(err))
		} else {
			a.Events = pub
		}
	}
}

// Server 构建 HTTP 层
func (a *App) Server() *api.Server {
	d := api.Deps{
		Lists:          a.Lists,
		Resolver:       a.Resolver,
		Events:         a.Events,
		Fetchers:       a.Fetchers,
		Logger:         a.Log.With(logger.String("component", "http")),
		Debug:          a.Config.Debug,
		AllowedOrigins: a.Config.AllowedOrigins,
		BasicAuthUser:  a.Config.BasicAuthUser,
		BasicAuthPass:  a.Config.BasicAuthPass,
		ProbeTimeout:   a.Config.APITimeout,
	}
	// 避免把 nil *Repository 装进接口
	if a.Leads != nil {
		d.Leads = a.Leads
	}
	return api.NewServer(d)
}

// Close 按初始化的逆序释放资源
func (a *App) Close(ctx context.Context) error {
	a.Events.Close()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
