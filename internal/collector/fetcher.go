package collector

import (
	"context"
	"errors"

	"github.com/LJTian/GozaMadrid/internal/listing"
)

var (
	// ErrNotFound 上游明确表示记录不存在（404 或空结果）
	ErrNotFound = errors.New("record not found")
	// ErrUnsupported 数据源不提供该类型的记录，例如 WordPress 不提供房源
	ErrUnsupported = errors.New("kind not supported by source")
	// ErrNotConfigured 数据源未配置
	ErrNotConfigured = errors.New("source not configured")
	// ErrMalformedResponse 响应能读到但结构不对，重试也不会变
	ErrMalformedResponse = errors.New("malformed response")
)

// Fetcher 抽象每一个上游数据源
type Fetcher interface {
	Source() listing.Source
	// List 拉取某类记录的列表
	List(ctx context.Context, kind listing.Kind) ([]Record, error)
	// Get 按 ID（或 slug）拉取单条记录
	Get(ctx context.Context, kind listing.Kind, id string) (Record, error)
}

// Set 按数据源索引的 fetcher 集合，未配置的数据源为 nil
type Set struct {
	MongoDB     Fetcher
	WordPress   Fetcher
	WooCommerce Fetcher
}

// For 返回指定数据源的 fetcher
func (s Set) For(src listing.Source) Fetcher {
	switch src {
	case listing.SourceMongoDB:
		return s.MongoDB
	case listing.SourceWordPress:
		return s.WordPress
	case listing.SourceWooCommerce:
		return s.WooCommerce
	}
	return nil
}
