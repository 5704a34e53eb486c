package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/GozaMadrid/internal/aggregator"
	"github.com/LJTian/GozaMadrid/internal/collector"
	"github.com/LJTian/GozaMadrid/internal/listing"
	"github.com/LJTian/GozaMadrid/internal/resolver"
	"github.com/LJTian/GozaMadrid/internal/retry"
	"github.com/LJTian/GozaMadrid/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeLists struct {
	props aggregator.PropertyResult
	blogs aggregator.BlogResult
}

func (f *fakeLists) Properties(context.Context) aggregator.PropertyResult { return f.props }
func (f *fakeLists) Blogs(context.Context) aggregator.BlogResult          { return f.blogs }

type fakeResolver struct {
	res      resolver.Resolution
	err      error
	gotID    string
	gotHint  listing.Source
	panicked bool
}

func (f *fakeResolver) Property(_ context.Context, id string) (resolver.Resolution, error) {
	if f.panicked {
		panic("kaboom")
	}
	f.gotID = id
	return f.res, f.err
}

func (f *fakeResolver) Blog(_ context.Context, id string, hint listing.Source) (resolver.Resolution, error) {
	f.gotID, f.gotHint = id, hint
	return f.res, f.err
}

type fakeLeads struct {
	created []storage.Lead
	err     error
}

func (f *fakeLeads) Create(_ context.Context, l *storage.Lead) error {
	if f.err != nil {
		return f.err
	}
	l.ID = "lead-1"
	f.created = append(f.created, *l)
	return nil
}

func (f *fakeLeads) Recent(context.Context, int) ([]storage.Lead, error) {
	return f.created, nil
}

type capturePublisher struct{ leads []storage.Lead }

func (p *capturePublisher) PublishLead(_ context.Context, l storage.Lead) error {
	p.leads = append(p.leads, l)
	return nil
}
func (p *capturePublisher) Close() {}

func do(t *testing.T, h http.Handler, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	h := NewServer(Deps{}).Engine()
	w := do(t, h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestBlogByIDBothDownServes207(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	client := collector.NewClient(time.Second)
	set := collector.Set{
		MongoDB:   &collector.MongoREST{BaseURL: down.URL, Client: client},
		WordPress: &collector.WordPress{BaseURL: down.URL, Client: client},
	}
	res := resolver.New(set, resolver.Options{
		MongoPolicy: retry.Policy{MaxAttempts: 3, Backoff: retry.Fixed(time.Millisecond), Retryable: collector.IsRetryable},
	})
	h := NewServer(Deps{Resolver: res, Fetchers: set}).Engine()

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		w := do(t, h, method, "/api/proxy/blog-by-id?id=ffffffffffffffffffffffff", "", nil)
		require.Equal(t, http.StatusMultiStatus, w.Code, w.Body.String())
		body := decode(t, w)
		assert.Equal(t, true, body["success"])
		assert.True(t, strings.HasSuffix(body["source"].(string), "-fallback"))
		data := body["data"].(map[string]any)
		assert.Equal(t, "ffffffffffffffffffffffff", data["id"])
	}
}

func TestBlogByIDPostBodyAndValidation(t *testing.T) {
	fr := &fakeResolver{res: resolver.Resolution{
		Listing: listing.Listing{ID: "wp-5", Title: "Post", Source: "wordpress"},
		Source:  listing.SourceWordPress,
	}}
	h := NewServer(Deps{Resolver: fr}).Engine()

	w := do(t, h, http.MethodPost, "/api/proxy/blog-by-id", `{"id":"5","source":"WordPress"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", fr.gotID)
	assert.Equal(t, listing.SourceWordPress, fr.gotHint)
	assert.Equal(t, "wordpress", decode(t, w)["source"])

	w = do(t, h, http.MethodGet, "/api/proxy/blog-by-id", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/proxy/blog-by-id", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBlogSourceHintNormalized(t *testing.T) {
	fr := &fakeResolver{res: resolver.Resolution{
		Listing: listing.Listing{ID: "64b2f1c9e4b0a1d2c3e4f5a6", Title: "Post", Source: "mongodb"},
		Source:  listing.SourceMongoDB,
	}}
	h := NewServer(Deps{Resolver: fr}).Engine()

	for _, target := range []string{
		"/api/blog?id=64b2f1c9e4b0a1d2c3e4f5a6&source=%20MongoDB%20",
		"/api/proxy/blog-by-id?id=64b2f1c9e4b0a1d2c3e4f5a6&source=MONGODB",
	} {
		w := do(t, h, http.MethodGet, target, "", nil)
		require.Equal(t, http.StatusOK, w.Code, target)
		assert.Equal(t, listing.SourceMongoDB, fr.gotHint, target)
	}
}

func TestPropertiesListAlways200WithErrors(t *testing.T) {
	lists := &fakeLists{props: aggregator.PropertyResult{
		Total:      1,
		MongoDB:    1,
		Properties: []listing.Listing{{ID: "a", Title: "A", Source: "mongodb"}},
		Errors:     []listing.SourceError{{Source: listing.SourceWooCommerce, Message: "timeout"}},
	}}
	h := NewServer(Deps{Lists: lists}).Engine()

	w := do(t, h, http.MethodGet, "/api/properties", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["total"])
	assert.EqualValues(t, 0, body["woocommerce"])
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "woocommerce", errs[0].(map[string]any)["source"])
}

func TestBlogsListOmitsEmptyErrors(t *testing.T) {
	lists := &fakeLists{blogs: aggregator.BlogResult{Blogs: []listing.Listing{}}}
	h := NewServer(Deps{Lists: lists}).Engine()

	w := do(t, h, http.MethodGet, "/api/blog", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	_, hasErrors := body["errors"]
	assert.False(t, hasErrors)
	assert.Equal(t, []any{}, body["blogs"])
}

func TestPropertyByID(t *testing.T) {
	fr := &fakeResolver{res: resolver.Resolution{
		Listing: listing.Listing{ID: "12", Title: "Ático", Source: "woocommerce"},
		Source:  listing.SourceWooCommerce,
	}}
	h := NewServer(Deps{Resolver: fr}).Engine()

	w := do(t, h, http.MethodGet, "/api/properties?id=12", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "12", body["id"])
	assert.Equal(t, "Ático", body["title"])

	fr.res.Fallback = true
	w = do(t, h, http.MethodGet, "/api/properties?id=12", "", nil)
	assert.Equal(t, http.StatusMultiStatus, w.Code)

	fr.err = collector.ErrNotFound
	w = do(t, h, http.MethodGet, "/api/properties?id=12", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInternalErrorStackOnlyInDebug(t *testing.T) {
	fr := &fakeResolver{err: errors.New("unexpected")}

	w := do(t, NewServer(Deps{Resolver: fr}).Engine(), http.MethodGet, "/api/blog?id=abc", "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.NotEmpty(t, body["error"])
	_, hasStack := body["stack"]
	assert.False(t, hasStack)

	w = do(t, NewServer(Deps{Resolver: fr, Debug: true}).Engine(), http.MethodGet, "/api/blog?id=abc", "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body = decode(t, w)
	assert.Equal(t, "unexpected", body["error"])
	assert.NotEmpty(t, body["stack"])
}

func TestPanicRecovered(t *testing.T) {
	fr := &fakeResolver{panicked: true}
	w := do(t, NewServer(Deps{Resolver: fr, Debug: true}).Engine(), http.MethodGet, "/api/properties?id=1", "", nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decode(t, w)
	assert.Equal(t, "kaboom", body["error"])
	assert.NotEmpty(t, body["stack"])
}

func TestCORS(t *testing.T) {
	lists := &fakeLists{}
	h := NewServer(Deps{Lists: lists, AllowedOrigins: []string{"https://gozamadrid.com"}}).Engine()

	w := do(t, h, http.MethodGet, "/api/blog", "", map[string]string{"Origin": "https://gozamadrid.com"})
	assert.Equal(t, "https://gozamadrid.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, h, http.MethodGet, "/api/blog", "", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(t, h, http.MethodOptions, "/api/properties", "", map[string]string{"Origin": "https://gozamadrid.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestCreateLead(t *testing.T) {
	store := &fakeLeads{}
	pub := &capturePublisher{}
	h := NewServer(Deps{Leads: store, Events: pub}).Engine()

	w := do(t, h, http.MethodPost, "/api/leads",
		`{"name":"Ana","email":"ana@example.com","propertyId":"12","extra":{"utm":"x"}}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "lead-1", decode(t, w)["id"])
	require.Len(t, store.created, 1)
	assert.Equal(t, "12", store.created[0].PropertyID)
	require.Len(t, pub.leads, 1)
	assert.Equal(t, "lead-1", pub.leads[0].ID)

	w = do(t, h, http.MethodPost, "/api/leads", `{"name":"Ana","email":"not-an-email"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/leads", `{"email":"ana@example.com"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateLeadWithoutStorage(t *testing.T) {
	h := NewServer(Deps{}).Engine()
	w := do(t, h, http.MethodPost, "/api/leads", `{"name":"Ana","email":"ana@example.com"}`, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRecentLeadsRequiresBasicAuth(t *testing.T) {
	store := &fakeLeads{created: []storage.Lead{{ID: "x", Name: "Ana"}}}
	h := NewServer(Deps{Leads: store, BasicAuthUser: "admin", BasicAuthPass: "secret"}).Engine()

	w := do(t, h, http.MethodGet, "/api/leads", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/leads", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["total"])

	// 未配置账号时不注册
	h = NewServer(Deps{Leads: store}).Engine()
	w = do(t, h, http.MethodGet, "/api/leads", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type statusFetcher struct {
	src listing.Source
	err error
}

func (p *statusFetcher) Source() listing.Source { return p.src }
func (p *statusFetcher) List(context.Context, listing.Kind) ([]collector.Record, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []collector.Record{&collector.WooProduct{ID: 1}}, nil
}
func (p *statusFetcher) Get(context.Context, listing.Kind, string) (collector.Record, error) {
	return nil, collector.ErrNotFound
}

func TestStatus(t *testing.T) {
	set := collector.Set{
		MongoDB:     &statusFetcher{src: listing.SourceMongoDB},
		WooCommerce: &statusFetcher{src: listing.SourceWooCommerce, err: errors.New("401")},
	}
	h := NewServer(Deps{Fetchers: set}).Engine()

	w := do(t, h, http.MethodGet, "/api/status", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["healthy"])
	sources := body["sources"].([]any)
	require.Len(t, sources, 3)

	mongo := sources[0].(map[string]any)
	assert.Equal(t, "mongodb", mongo["source"])
	assert.Equal(t, true, mongo["ok"])
	assert.EqualValues(t, 1, mongo["records"])

	wp := sources[1].(map[string]any)
	assert.Equal(t, false, wp["configured"])

	woo := sources[2].(map[string]any)
	assert.Equal(t, false, woo["ok"])
	assert.Equal(t, "401", woo["error"])
}
