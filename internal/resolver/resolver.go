// Package resolver 单条记录查询：按 ID 判断主数据源，失败后切换备用数据源，全部失败时生成占位记录
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/LJTian/GozaMadrid/internal/cache"
	"github.com/LJTian/GozaMadrid/internal/collector"
	"github.com/LJTian/GozaMadrid/internal/listing"
	"github.com/LJTian/GozaMadrid/internal/logger"
	"github.com/LJTian/GozaMadrid/internal/metrics"
	"github.com/LJTian/GozaMadrid/internal/processor"
	"github.com/LJTian/GozaMadrid/internal/retry"
)

// ErrEmptyID 请求没有携带 ID
var ErrEmptyID = errors.New("id is required")

// DefaultLookupTimeout 合并后的共享查询的总时限，覆盖 Mongo 全部重试
const DefaultLookupTimeout = 30 * time.Second

// Attempt 一次数据源尝试的记录，便于日志与调试
type Attempt struct {
	Source listing.Source `json:"source"`
	Tries  int            `json:"tries"`
	Error  string         `json:"error,omitempty"`
}

// Resolution 查询结果。Fallback 为 true 时 Listing 是占位记录
type Resolution struct {
	Listing  listing.Listing
	Source   listing.Source
	Fallback bool
	Attempts []Attempt
}

// Options 构造参数
type Options struct {
	Cache        cache.Cache[listing.Listing]
	CacheTTL     time.Duration
	MongoPolicy  retry.Policy
	DemoFallback bool
	Logger       logger.Logger
	// LookupTimeout 共享查询时限，默认 DefaultLookupTimeout
	LookupTimeout time.Duration
}

// DefaultMongoPolicy 指数退避，最多 maxAttempts 次
func DefaultMongoPolicy(maxAttempts int) retry.Policy {
	return retry.Policy{
		MaxAttempts: maxAttempts,
		Backoff:     retry.Exponential(200*time.Millisecond, 5*time.Second),
		Retryable:   collector.IsRetryable,
	}
}

type Resolver struct {
	fetchers     collector.Set
	cache        cache.Cache[listing.Listing]
	ttl          time.Duration
	mongoPolicy  retry.Policy
	demoFallback bool
	log          logger.Logger
	lookup       time.Duration
	group        singleflight.Group
}

func New(fetchers collector.Set, opts Options) *Resolver {
	r := &Resolver{
		fetchers:     fetchers,
		cache:        opts.Cache,
		ttl:          opts.CacheTTL,
		mongoPolicy:  opts.MongoPolicy,
		demoFallback: opts.DemoFallback,
		log:          opts.Logger,
		lookup:       opts.LookupTimeout,
	}
	if r.lookup <= 0 {
		r.lookup = DefaultLookupTimeout
	}
	if r.cache == nil {
		r.cache = cache.Nop[listing.Listing]{}
	}
	if r.mongoPolicy.MaxAttempts == 0 {
		r.mongoPolicy = DefaultMongoPolicy(7)
	}
	if r.log == nil {
		r.log = logger.NewNop()
	}
	return r
}

// PropertyCacheKey 房源详情缓存键
func PropertyCacheKey(id string) string {
	return "property:" + id
}

// Property 房源详情。真实结果进入缓存，相同 ID 的并发请求合并为一次上游查询
func (r *Resolver) Property(ctx context.Context, id string) (Resolution, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Resolution{}, ErrEmptyID
	}
	key := PropertyCacheKey(id)
	if l, ok := r.cache.Get(ctx, key); ok {
		return Resolution{Listing: l, Source: listing.Source(l.Source)}, nil
	}

	// 共享查询不跟随任何一个调用方取消，各调用方只等待自己的 ctx
	ch := r.group.DoChan(key, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.lookup)
		defer cancel()
		res, err := r.resolve(shared, listing.KindProperty, id, "")
		if err != nil {
			return res, err
		}
		if !res.Fallback {
			r.cache.Set(shared, key, res.Listing, r.ttl)
		}
		return res, nil
	})
	select {
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	case out := <-ch:
		res, _ := out.Val.(Resolution)
		return res, out.Err
	}
}

// Blog 博客详情；hint 为调用方指定的数据源，可为空
func (r *Resolver) Blog(ctx context.Context, id string, hint listing.Source) (Resolution, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Resolution{}, ErrEmptyID
	}
	return r.resolve(ctx, listing.KindBlog, id, hint)
}

// Order 返回查询顺序：主数据源在前，备用数据源在后
func Order(kind listing.Kind, id string, hint listing.Source) []listing.Source {
	primary := hint
	if !primary.Valid() {
		primary = listing.Classify(id)
	}

	switch kind {
	case listing.KindBlog:
		// 博客的数字 ID 属于 WordPress
		if primary == listing.SourceWooCommerce {
			primary = listing.SourceWordPress
		}
		if primary == listing.SourceMongoDB {
			return []listing.Source{listing.SourceMongoDB, listing.SourceWordPress}
		}
		return []listing.Source{listing.SourceWordPress, listing.SourceMongoDB}
	default:
		// 房源 slug 在 WooCommerce 上按 slug 查询
		if primary == listing.SourceWordPress {
			primary = listing.SourceWooCommerce
		}
		if primary == listing.SourceMongoDB {
			return []listing.Source{listing.SourceMongoDB, listing.SourceWooCommerce}
		}
		return []listing.Source{listing.SourceWooCommerce, listing.SourceMongoDB}
	}
}

func (r *Resolver) resolve(ctx context.Context, kind listing.Kind, id string, hint listing.Source) (Resolution, error) {
	order := Order(kind, id, hint)
	res := Resolution{Attempts: make([]Attempt, 0, len(order))}

	for _, src := range order {
		l, att, err := r.fetchOne(ctx, kind, src, id)
		res.Attempts = append(res.Attempts, att)
		if err == nil {
			res.Listing = l
			res.Source = src
			return res, nil
		}
		r.log.Warn("source lookup failed",
			logger.String("kind", string(kind)),
			logger.String("id", id),
			logger.String("source", string(src)),
			logger.Int("tries", att.Tries),
			logger.Error(err),
		)
		if ctx.Err() != nil {
			break
		}
	}

	primary := order[0]
	reason := summarize(res.Attempts)
	switch {
	case kind == listing.KindBlog:
		res.Listing = processor.Placeholder(kind, primary, id, reason)
	case r.demoFallback:
		res.Listing = processor.DemoProperty(primary, id)
	default:
		return res, fmt.Errorf("%s %s: %w", kind, id, collector.ErrNotFound)
	}
	res.Source = primary
	res.Fallback = true
	metrics.FallbackResponsesTotal.WithLabelValues(string(kind)).Inc()
	r.log.Info("serving fallback record",
		logger.String("kind", string(kind)),
		logger.String("id", id),
		logger.String("source", res.Listing.Source),
	)
	return res, nil
}

func (r *Resolver) fetchOne(ctx context.Context, kind listing.Kind, src listing.Source, id string) (listing.Listing, Attempt, error) {
	att := Attempt{Source: src}
	f := r.fetchers.For(src)
	if f == nil {
		att.Error = collector.ErrNotConfigured.Error()
		return listing.Listing{}, att, collector.ErrNotConfigured
	}

	policy := retry.Single()
	if src == listing.SourceMongoDB {
		policy = r.mongoPolicy
	}

	var rec collector.Record
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		att.Tries++
		var err error
		rec, err = f.Get(ctx, kind, id)
		return err
	})
	if err != nil {
		att.Error = err.Error()
		return listing.Listing{}, att, err
	}

	l, err := processor.Normalize(kind, rec)
	if err != nil {
		att.Error = err.Error()
		return listing.Listing{}, att, err
	}
	return l, att, nil
}

func summarize(attempts []Attempt) string {
	parts := make([]string, 0, len(attempts))
	for _, a := range attempts {
		parts = append(parts, fmt.Sprintf("%s: %s", a.Source, a.Error))
	}
	return strings.Join(parts, "; ")
}
