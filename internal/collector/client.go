package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/LJTian/GozaMadrid/internal/listing"
)

const (
	userAgent        = "GozaMadridAPI/1.0 (+https://realestategozamadrid.com)"
	maxResponseBytes = 8 << 20 // 8MB，WordPress 带 _embed 的列表比较大
	defaultTimeout   = 15 * time.Second
)

// ErrHTMLResponse 期望 JSON 却拿到 HTML（常见于 WordPress 报错页、CDN 拦截页）
var ErrHTMLResponse = errors.New("html received where json was expected")

// StatusError 上游返回非 2xx
type StatusError struct {
	Source listing.Source
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Source, e.Code)
}

// Is 使 404 可以与 ErrNotFound 比较
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}

// Client 所有 REST fetcher 共享的 HTTP 客户端
type Client struct {
	http    *http.Client
	timeout time.Duration
}

// NewClient timeout 为单次请求超时，通过 context 控制
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &Client{
		http:    &http.Client{Transport: transport},
		timeout: timeout,
	}
}

// GetJSON 发起 GET 并把响应解码到 out
func (c *Client) GetJSON(ctx context.Context, src listing.Source, rawURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", src, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		// url.Error 带完整地址（含 consumer_secret），只保留底层错误
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		return fmt.Errorf("%s: request: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &StatusError{Source: src, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%s: read body: %w", src, err)
	}
	if looksLikeHTML(resp.Header.Get("Content-Type"), body) {
		return fmt.Errorf("%s: %w", src, ErrHTMLResponse)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode: %w: %w", src, ErrMalformedResponse, err)
	}
	return nil
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '<'
}

// IsRetryable 只有超时、网络错误、5xx 与 429 值得重试，其余错误直接切换数据源
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrHTMLResponse) ||
		errors.Is(err, ErrMalformedResponse) || errors.Is(err, ErrUnsupported) ||
		errors.Is(err, ErrNotConfigured) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	// 直连驱动的连接与超时错误
	return mongo.IsNetworkError(err) || mongo.IsTimeout(err)
}

// IsTimeout 用于在错误说明里区分超时
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
