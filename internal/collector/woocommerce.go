package collector

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/LJTian/GozaMadrid/internal/listing"
	"github.com/LJTian/GozaMadrid/internal/metrics"
)

// WooCommerce 房源以商品形式发布在 WooCommerce（/wp-json/wc/v3），只提供房源。
// 认证使用 consumer_key / consumer_secret 查询参数，不走 Header
type WooCommerce struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	PageSize       int
	Client         *Client
}

func (w *WooCommerce) Source() listing.Source {
	return listing.SourceWooCommerce
}

func (w *WooCommerce) authQuery() url.Values {
	q := url.Values{}
	q.Set("consumer_key", w.ConsumerKey)
	q.Set("consumer_secret", w.ConsumerSecret)
	return q
}

func (w *WooCommerce) List(ctx context.Context, kind listing.Kind) (recs []Record, err error) {
	if kind != listing.KindProperty {
		return nil, ErrUnsupported
	}
	start := time.Now()
	defer func() { metrics.ObserveUpstream(string(listing.SourceWooCommerce), string(kind), start, err) }()

	q := w.authQuery()
	q.Set("per_page", strconv.Itoa(pageSize(w.PageSize)))
	q.Set("status", "publish")

	var products []WooProduct
	if err := w.Client.GetJSON(ctx, listing.SourceWooCommerce, w.BaseURL+"/products?"+q.Encode(), &products); err != nil {
		return nil, err
	}
	recs = make([]Record, 0, len(products))
	for i := range products {
		recs = append(recs, &products[i])
	}
	return recs, nil
}

// Get 数字 ID 直接查询，否则按 slug 查询
func (w *WooCommerce) Get(ctx context.Context, kind listing.Kind, id string) (rec Record, err error) {
	if kind != listing.KindProperty {
		return nil, ErrUnsupported
	}
	start := time.Now()
	defer func() { metrics.ObserveUpstream(string(listing.SourceWooCommerce), string(kind), start, err) }()

	q := w.authQuery()
	if listing.IsNumeric(id) {
		var p WooProduct
		if err := w.Client.GetJSON(ctx, listing.SourceWooCommerce, w.BaseURL+"/products/"+id+"?"+q.Encode(), &p); err != nil {
			return nil, err
		}
		if p.ID == 0 {
			return nil, ErrNotFound
		}
		return &p, nil
	}

	q.Set("slug", id)
	var products []WooProduct
	if err := w.Client.GetJSON(ctx, listing.SourceWooCommerce, w.BaseURL+"/products?"+q.Encode(), &products); err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNotFound
	}
	return &products[0], nil
}
