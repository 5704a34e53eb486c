package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LJTian/GozaMadrid/internal/listing"
)

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetJSONSetsHeaders(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Contains(t, r.Header.Get("User-Agent"), "GozaMadrid")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	var out map[string]bool
	require.NoError(t, NewClient(time.Second).GetJSON(context.Background(), listing.SourceMongoDB, srv.URL, &out))
	assert.True(t, out["ok"])
}

func TestGetJSONDetectsHTML(t *testing.T) {
	cases := map[string]struct {
		contentType string
		body        string
	}{
		"content type": {"text/html; charset=UTF-8", `{"looks":"json"}`},
		"body sniff":   {"application/json", "<!DOCTYPE html><html></html>"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", c.contentType)
				_, _ = w.Write([]byte(c.body))
			})
			var out any
			err := NewClient(time.Second).GetJSON(context.Background(), listing.SourceWordPress, srv.URL, &out)
			assert.ErrorIs(t, err, ErrHTMLResponse)
			assert.False(t, IsRetryable(err))
		})
	}
}

func TestGetJSONStatusErrors(t *testing.T) {
	code := http.StatusNotFound
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
	c := NewClient(time.Second)

	var out any
	err := c.GetJSON(context.Background(), listing.SourceWooCommerce, srv.URL, &out)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsRetryable(err))

	code = http.StatusBadGateway
	err = c.GetJSON(context.Background(), listing.SourceWooCommerce, srv.URL, &out)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Equal(t, listing.SourceWooCommerce, se.Source)
	assert.True(t, IsRetryable(err))
}

func TestGetJSONTimeout(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	var out any
	err := NewClient(50*time.Millisecond).GetJSON(context.Background(), listing.SourceMongoDB, srv.URL, &out)
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.True(t, IsRetryable(err))
}

func TestMongoRESTListAcceptsArrayAndWrapper(t *testing.T) {
	bodies := map[string]string{
		"array":   `[{"_id":"a"},{"_id":"b"}]`,
		"wrapped": `{"properties":[{"_id":"a"},{"_id":"b"}],"total":2}`,
		"data":    `{"data":[{"_id":"a"},{"_id":"b"}]}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/properties", r.URL.Path)
				_, _ = w.Write([]byte(body))
			})
			m := &MongoREST{BaseURL: srv.URL, Client: NewClient(time.Second)}
			recs, err := m.List(context.Background(), listing.KindProperty)
			require.NoError(t, err)
			require.Len(t, recs, 2)
			assert.Equal(t, "a", recs[0].(*MongoRecord).Doc["_id"])
		})
	}
}

func TestMongoRESTGet(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/blogs/64b2f1c9e4b0a1d2c3e4f5a6":
			_, _ = w.Write([]byte(`{"blog":{"_id":"64b2f1c9e4b0a1d2c3e4f5a6","title":"Hola"}}`))
		case "/blogs/empty":
			_, _ = w.Write([]byte(`{}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	m := &MongoREST{BaseURL: srv.URL, Client: NewClient(time.Second)}

	rec, err := m.Get(context.Background(), listing.KindBlog, "64b2f1c9e4b0a1d2c3e4f5a6")
	require.NoError(t, err)
	assert.Equal(t, "Hola", rec.(*MongoRecord).Doc["title"])

	_, err = m.Get(context.Background(), listing.KindBlog, "empty")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.Get(context.Background(), listing.KindBlog, "ffffffffffffffffffffffff")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWordPressListAndGet(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("_embed"))
		switch {
		case r.URL.Path == "/posts" && r.URL.Query().Get("slug") == "vivir-en-madrid":
			_, _ = w.Write([]byte(`[{"id":7,"title":{"rendered":"Vivir en Madrid"}}]`))
		case r.URL.Path == "/posts" && r.URL.Query().Get("slug") != "":
			_, _ = w.Write([]byte(`[]`))
		case r.URL.Path == "/posts":
			assert.Equal(t, "20", r.URL.Query().Get("per_page"))
			_, _ = w.Write([]byte(`[{"id":1,"title":{"rendered":"A"}},{"id":2,"title":"B"}]`))
		case r.URL.Path == "/posts/42":
			_, _ = w.Write([]byte(`{"id":42,"title":{"rendered":"Cuarenta y dos"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	wp := &WordPress{BaseURL: srv.URL, PageSize: 20, Client: NewClient(time.Second)}
	ctx := context.Background()

	recs, err := wp.List(ctx, listing.KindBlog)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "B", recs[1].(*WordPressPost).Title.Rendered)

	rec, err := wp.Get(ctx, listing.KindBlog, "wp-42")
	require.NoError(t, err)
	assert.Equal(t, 42, rec.(*WordPressPost).ID)

	rec, err = wp.Get(ctx, listing.KindBlog, "vivir-en-madrid")
	require.NoError(t, err)
	assert.Equal(t, 7, rec.(*WordPressPost).ID)

	_, err = wp.Get(ctx, listing.KindBlog, "no-existe")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = wp.List(ctx, listing.KindProperty)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestWooCommerceAuthAsQueryParams(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ck_test", r.URL.Query().Get("consumer_key"))
		assert.Equal(t, "cs_test", r.URL.Query().Get("consumer_secret"))
		assert.Empty(t, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/products":
			_, _ = w.Write([]byte(`[{"id":10,"name":"Ático","price":350000},{"id":11,"name":"Chalet","price":"1200000"}]`))
		case "/products/10":
			_, _ = w.Write([]byte(`{"id":10,"name":"Ático"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	wc := &WooCommerce{BaseURL: srv.URL, ConsumerKey: "ck_test", ConsumerSecret: "cs_test", Client: NewClient(time.Second)}

	recs, err := wc.List(context.Background(), listing.KindProperty)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, FlexString("350000"), recs[0].(*WooProduct).Price)
	assert.Equal(t, FlexString("1200000"), recs[1].(*WooProduct).Price)

	rec, err := wc.Get(context.Background(), listing.KindProperty, "10")
	require.NoError(t, err)
	assert.Equal(t, "10", rec.(*WooProduct).IDString())

	_, err = wc.Get(context.Background(), listing.KindBlog, "10")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestRenderedAcceptsStringOrObject(t *testing.T) {
	var r struct {
		A Rendered `json:"a"`
		B Rendered `json:"b"`
		C Rendered `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":{"rendered":"x"},"b":"y","c":null}`), &r))
	assert.Equal(t, "x", r.A.Rendered)
	assert.Equal(t, "y", r.B.Rendered)
	assert.Equal(t, "", r.C.Rendered)
}

func TestSetFor(t *testing.T) {
	wp := &WordPress{}
	s := Set{WordPress: wp}
	assert.Same(t, wp, s.For(listing.SourceWordPress))
	assert.Nil(t, s.For(listing.SourceMongoDB))
	assert.Nil(t, s.For(listing.Source("other")))
}

func TestWooCommerceErrorHidesCredentials(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	woo := &WooCommerce{
		BaseURL:        srv.URL,
		ConsumerKey:    "ck_live",
		ConsumerSecret: "cs_topsecret",
		Client:         NewClient(50 * time.Millisecond),
	}
	_, err := woo.List(context.Background(), listing.KindProperty)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "cs_topsecret")
	assert.True(t, IsTimeout(err))
}

func TestMalformedPayloadIsNotRetryable(t *testing.T) {
	bodies := map[string]string{
		"type mismatch":  `{"properties":"oops"}`,
		"unknown shape":  `{"foo":1}`,
		"broken json":    `{"properties":[`,
		"array of trash": `[1,2,3]`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(body))
			})
			m := &MongoREST{BaseURL: srv.URL, Client: NewClient(time.Second)}
			_, err := m.List(context.Background(), listing.KindProperty)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedResponse)
			assert.False(t, IsRetryable(err))
		})
	}
}

func TestIsRetryableDefaultsToFalse(t *testing.T) {
	assert.False(t, IsRetryable(errors.New("something odd")))
	assert.False(t, IsRetryable(context.Canceled))
	assert.True(t, IsRetryable(context.DeadlineExceeded))
	assert.True(t, IsRetryable(&StatusError{Source: listing.SourceMongoDB, Code: http.StatusTooManyRequests}))
	assert.False(t, IsRetryable(&StatusError{Source: listing.SourceMongoDB, Code: http.StatusBadRequest}))
}
