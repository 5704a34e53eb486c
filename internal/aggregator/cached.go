package aggregator

import (
	"context"
	"time"

	"github.com/LJTian/GozaMadrid/internal/cache"
	"github.com/LJTian/GozaMadrid/internal/listing"
)

// 列表缓存键
const (
	PropertiesKey = "list:properties"
	BlogsKey      = "list:blogs"
)

// WarmReport 一轮预热的结果
type WarmReport struct {
	Properties int                   `json:"properties"`
	Blogs      int                   `json:"blogs"`
	Errors     []listing.SourceError `json:"errors,omitempty"`
	Duration   time.Duration         `json:"duration"`
}

// Cached 在 Aggregator 之上加一层列表缓存。只有所有数据源都成功时才写缓存，
// 避免把不完整的结果缓存下来
type Cached struct {
	agg   *Aggregator
	props cache.Cache[PropertyResult]
	blogs cache.Cache[BlogResult]
	ttl   time.Duration
}

func NewCached(agg *Aggregator, props cache.Cache[PropertyResult], blogs cache.Cache[BlogResult], ttl time.Duration) *Cached {
	if props == nil {
		props = cache.Nop[PropertyResult]{}
	}
	if blogs == nil {
		blogs = cache.Nop[BlogResult]{}
	}
	return &Cached{agg: agg, props: props, blogs: blogs, ttl: ttl}
}

func (c *Cached) Properties(ctx context.Context) PropertyResult {
	if res, ok := c.props.Get(ctx, PropertiesKey); ok {
		return res
	}
	return c.refreshProperties(ctx)
}

func (c *Cached) Blogs(ctx context.Context) BlogResult {
	if res, ok := c.blogs.Get(ctx, BlogsKey); ok {
		return res
	}
	return c.refreshBlogs(ctx)
}

func (c *Cached) refreshProperties(ctx context.Context) PropertyResult {
	res := c.agg.Properties(ctx)
	if len(res.Errors) == 0 {
		c.props.Set(ctx, PropertiesKey, res, c.ttl)
	}
	return res
}

func (c *Cached) refreshBlogs(ctx context.Context) BlogResult {
	res := c.agg.Blogs(ctx)
	if len(res.Errors) == 0 {
		c.blogs.Set(ctx, BlogsKey, res, c.ttl)
	}
	return res
}

// Warm 绕过缓存重新拉取两类列表并写回缓存
func (c *Cached) Warm(ctx context.Context) WarmReport {
	start := time.Now()
	props := c.refreshProperties(ctx)
	blogs := c.refreshBlogs(ctx)

	report := WarmReport{Properties: props.Total, Blogs: blogs.Total}
	report.Errors = append(report.Errors, props.Errors...)
	report.Errors = append(report.Errors, blogs.Errors...)
	report.Duration = time.Since(start)
	return report
}
