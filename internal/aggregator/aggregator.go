// Package aggregator 并发向所有数据源拉取列表并合并为统一响应
package aggregator

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/LJTian/GozaMadrid/internal/collector"
	"github.com/LJTian/GozaMadrid/internal/listing"
	"github.com/LJTian/GozaMadrid/internal/logger"
	"github.com/LJTian/GozaMadrid/internal/processor"
)

// Status 单个数据源的结算状态
type Status string

const (
	StatusFulfilled Status = "fulfilled"
	StatusRejected  Status = "rejected"
)

// SourceFetchResult 一个数据源的拉取结果，成功时 Listings 有效，失败时 Err 非空
type SourceFetchResult struct {
	Source   listing.Source
	Status   Status
	Listings []listing.Listing
	Err      error
}

// PropertyResult /api/properties 的响应体
type PropertyResult struct {
	Total       int                   `json:"total"`
	MongoDB     int                   `json:"mongodb"`
	WooCommerce int                   `json:"woocommerce"`
	Properties  []listing.Listing     `json:"properties"`
	Errors      []listing.SourceError `json:"errors,omitempty"`
}

// BlogResult /api/blog 的响应体
type BlogResult struct {
	Total     int                   `json:"total"`
	MongoDB   int                   `json:"mongodb"`
	WordPress int                   `json:"wordpress"`
	Blogs     []listing.Listing     `json:"blogs"`
	Errors    []listing.SourceError `json:"errors,omitempty"`
}

type Aggregator struct {
	fetchers collector.Set
	log      logger.Logger
}

func New(fetchers collector.Set, log logger.Logger) *Aggregator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Aggregator{fetchers: fetchers, log: log}
}

// Properties MongoDB + WooCommerce。任何数据源失败都不会让整个请求失败
func (a *Aggregator) Properties(ctx context.Context) PropertyResult {
	results := a.fanOut(ctx, listing.KindProperty, listing.SourceMongoDB, listing.SourceWooCommerce)

	res := PropertyResult{Properties: []listing.Listing{}}
	for _, r := range results {
		if r.Status == StatusRejected {
			res.Errors = append(res.Errors, sourceError(r))
			continue
		}
		switch r.Source {
		case listing.SourceMongoDB:
			res.MongoDB = len(r.Listings)
		case listing.SourceWooCommerce:
			res.WooCommerce = len(r.Listings)
		}
		res.Properties = append(res.Properties, r.Listings...)
	}
	res.Total = len(res.Properties)
	return res
}

// Blogs MongoDB + WordPress，按日期倒序
func (a *Aggregator) Blogs(ctx context.Context) BlogResult {
	results := a.fanOut(ctx, listing.KindBlog, listing.SourceMongoDB, listing.SourceWordPress)

	res := BlogResult{Blogs: []listing.Listing{}}
	for _, r := range results {
		if r.Status == StatusRejected {
			res.Errors = append(res.Errors, sourceError(r))
			continue
		}
		switch r.Source {
		case listing.SourceMongoDB:
			res.MongoDB = len(r.Listings)
		case listing.SourceWordPress:
			res.WordPress = len(r.Listings)
		}
		res.Blogs = append(res.Blogs, r.Listings...)
	}
	SortByDateDesc(res.Blogs)
	res.Total = len(res.Blogs)
	return res
}

// SortByDateDesc 稳定排序；无法解析的日期视为最旧
func SortByDateDesc(items []listing.Listing) {
	sort.SliceStable(items, func(i, j int) bool {
		return listing.ParseDate(items[i].Date).After(listing.ParseDate(items[j].Date))
	})
}

// fanOut 每个数据源一个 goroutine，等待全部结算后按传入顺序返回
func (a *Aggregator) fanOut(ctx context.Context, kind listing.Kind, sources ...listing.Source) []SourceFetchResult {
	results := make([]SourceFetchResult, len(sources))

	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src listing.Source) {
			defer wg.Done()
			results[i] = a.fetchOne(ctx, kind, src)
		}(i, src)
	}
	wg.Wait()

	return results
}

func (a *Aggregator) fetchOne(ctx context.Context, kind listing.Kind, src listing.Source) SourceFetchResult {
	f := a.fetchers.For(src)
	if f == nil {
		return SourceFetchResult{Source: src, Status: StatusRejected, Err: collector.ErrNotConfigured}
	}

	recs, err := f.List(ctx, kind)
	if err != nil {
		a.log.Warn("source fetch failed",
			logger.String("source", string(src)),
			logger.String("kind", string(kind)),
			logger.Error(err),
		)
		return SourceFetchResult{Source: src, Status: StatusRejected, Err: err}
	}

	items, errs := processor.NormalizeAll(kind, recs)
	for _, e := range errs {
		a.log.Debug("skip record",
			logger.String("source", string(src)),
			logger.String("kind", string(kind)),
			logger.Error(e),
		)
	}
	a.log.Info("source fetched",
		logger.String("source", string(src)),
		logger.String("kind", string(kind)),
		logger.Int("fetched", len(recs)),
		logger.Int("kept", len(items)),
	)
	return SourceFetchResult{Source: src, Status: StatusFulfilled, Listings: items}
}

func sourceError(r SourceFetchResult) listing.SourceError {
	msg := "unknown error"
	switch {
	case errors.Is(r.Err, collector.ErrNotConfigured):
		msg = "not configured"
	case r.Err != nil:
		msg = r.Err.Error()
	}
	return listing.SourceError{Source: r.Source, Message: msg}
}
