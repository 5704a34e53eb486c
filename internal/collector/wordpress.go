package collector

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/LJTian/GozaMadrid/internal/listing"
	"github.com/LJTian/GozaMadrid/internal/metrics"
)

// WordPress 从 WordPress REST（/wp-json/wp/v2）读取博客文章，只提供博客
type WordPress struct {
	BaseURL  string
	PageSize int
	Client   *Client
}

func (w *WordPress) Source() listing.Source {
	return listing.SourceWordPress
}

func (w *WordPress) List(ctx context.Context, kind listing.Kind) (recs []Record, err error) {
	if kind != listing.KindBlog {
		return nil, ErrUnsupported
	}
	start := time.Now()
	defer func() { metrics.ObserveUpstream(string(listing.SourceWordPress), string(kind), start, err) }()

	q := url.Values{}
	q.Set("_embed", "1")
	q.Set("per_page", strconv.Itoa(pageSize(w.PageSize)))

	var posts []WordPressPost
	if err := w.Client.GetJSON(ctx, listing.SourceWordPress, w.BaseURL+"/posts?"+q.Encode(), &posts); err != nil {
		return nil, err
	}
	recs = make([]Record, 0, len(posts))
	for i := range posts {
		recs = append(recs, &posts[i])
	}
	return recs, nil
}

// Get id 可以是 wp-123、123 或 slug
func (w *WordPress) Get(ctx context.Context, kind listing.Kind, id string) (rec Record, err error) {
	if kind != listing.KindBlog {
		return nil, ErrUnsupported
	}
	start := time.Now()
	defer func() { metrics.ObserveUpstream(string(listing.SourceWordPress), string(kind), start, err) }()

	id = listing.StripWordPressPrefix(id)
	if listing.IsNumeric(id) {
		var post WordPressPost
		if err := w.Client.GetJSON(ctx, listing.SourceWordPress, w.BaseURL+"/posts/"+id+"?_embed=1", &post); err != nil {
			return nil, err
		}
		if post.ID == 0 {
			return nil, ErrNotFound
		}
		return &post, nil
	}

	q := url.Values{}
	q.Set("slug", id)
	q.Set("_embed", "1")
	var posts []WordPressPost
	if err := w.Client.GetJSON(ctx, listing.SourceWordPress, w.BaseURL+"/posts?"+q.Encode(), &posts); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrNotFound
	}
	return &posts[0], nil
}

func pageSize(n int) int {
	if n <= 0 || n > 100 {
		return 50
	}
	return n
}
