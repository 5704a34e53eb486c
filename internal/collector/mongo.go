package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/LJTian/GozaMadrid/internal/listing"
	"github.com/LJTian/GozaMadrid/internal/metrics"
)

// MongoREST 通过自建后端的 REST 接口读取 MongoDB 中的房源与博客
type MongoREST struct {
	BaseURL string
	Client  *Client
}

func (m *MongoREST) Source() listing.Source {
	return listing.SourceMongoDB
}

func collectionPath(kind listing.Kind) string {
	if kind == listing.KindBlog {
		return "blogs"
	}
	return "properties"
}

func (m *MongoREST) List(ctx context.Context, kind listing.Kind) (recs []Record, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream(string(listing.SourceMongoDB), string(kind), start, err) }()

	var raw json.RawMessage
	if err := m.Client.GetJSON(ctx, listing.SourceMongoDB, m.BaseURL+"/"+collectionPath(kind), &raw); err != nil {
		return nil, err
	}
	docs, err := decodeMongoList(raw, kind)
	if err != nil {
		return nil, err
	}
	recs = make([]Record, 0, len(docs))
	for _, d := range docs {
		recs = append(recs, &MongoRecord{Doc: d})
	}
	return recs, nil
}

func (m *MongoREST) Get(ctx context.Context, kind listing.Kind, id string) (rec Record, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream(string(listing.SourceMongoDB), string(kind), start, err) }()

	u := m.BaseURL + "/" + collectionPath(kind) + "/" + url.PathEscape(id)
	var raw json.RawMessage
	if err := m.Client.GetJSON(ctx, listing.SourceMongoDB, u, &raw); err != nil {
		return nil, err
	}
	doc, err := decodeMongoItem(raw, kind)
	if err != nil {
		return nil, err
	}
	return &MongoRecord{Doc: doc}, nil
}

// decodeMongoList 兼容裸数组与 {properties|blogs|data|items: [...]} 两种返回
func decodeMongoList(raw json.RawMessage, kind listing.Kind) ([]map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	if raw[0] == '[' {
		var docs []map[string]any
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, fmt.Errorf("mongodb: decode list: %w: %w", ErrMalformedResponse, err)
		}
		return docs, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, fmt.Errorf("mongodb: decode list: %w: %w", ErrMalformedResponse, err)
	}
	for _, key := range []string{collectionPath(kind), "data", "items", "results"} {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		var docs []map[string]any
		if err := json.Unmarshal(inner, &docs); err != nil {
			return nil, fmt.Errorf("mongodb: decode %s: %w: %w", key, ErrMalformedResponse, err)
		}
		return docs, nil
	}
	return nil, fmt.Errorf("mongodb: unexpected list payload: %w", ErrMalformedResponse)
}

// decodeMongoItem 兼容单文档、{property|blog|data: {...}} 包装，以及只含一条记录的数组
func decodeMongoItem(raw json.RawMessage, kind listing.Kind) (map[string]any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, ErrNotFound
	}
	if raw[0] == '[' {
		var docs []map[string]any
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, fmt.Errorf("mongodb: decode item: %w: %w", ErrMalformedResponse, err)
		}
		if len(docs) == 0 {
			return nil, ErrNotFound
		}
		return docs[0], nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("mongodb: decode item: %w: %w", ErrMalformedResponse, err)
	}
	for _, key := range []string{string(kind), "data"} {
		if inner, ok := doc[key].(map[string]any); ok {
			doc = inner
			break
		}
	}
	if _, ok := doc["_id"]; !ok {
		if _, ok := doc["id"]; !ok {
			return nil, ErrNotFound
		}
	}
	return doc, nil
}
