package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LJTian/GozaMadrid/internal/listing"
)

// SourceStatus 单个上游的连通性
type SourceStatus struct {
	Source     listing.Source `json:"source"`
	Configured bool           `json:"configured"`
	OK         bool           `json:"ok"`
	Records    int            `json:"records"`
	LatencyMS  int64          `json:"latencyMs"`
	Error      string         `json:"error,omitempty"`
}

// 每个数据源探测时拉取的记录类型
var probeKinds = []struct {
	src  listing.Source
	kind listing.Kind
}{
	{listing.SourceMongoDB, listing.KindProperty},
	{listing.SourceWordPress, listing.KindBlog},
	{listing.SourceWooCommerce, listing.KindProperty},
}

// Probe 并发探测所有数据源，结果顺序固定
func (s *Server) Probe(ctx context.Context) []SourceStatus {
	out := make([]SourceStatus, len(probeKinds))

	var wg sync.WaitGroup
	for i, p := range probeKinds {
		out[i] = SourceStatus{Source: p.src}
		f := s.fetchers.For(p.src)
		if f == nil {
			continue
		}
		out[i].Configured = true

		wg.Add(1)
		go func(i int, kind listing.Kind) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, s.probe)
			defer cancel()

			start := time.Now()
			recs, err := f.List(pctx, kind)
			out[i].LatencyMS = time.Since(start).Milliseconds()
			if err != nil {
				out[i].Error = err.Error()
				return
			}
			out[i].OK = true
			out[i].Records = len(recs)
		}(i, p.kind)
	}
	wg.Wait()

	return out
}

func (s *Server) status(c *gin.Context) {
	sources := s.Probe(c.Request.Context())
	healthy := true
	for _, st := range sources {
		if st.Configured && !st.OK {
			healthy = false
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"healthy": healthy,
		"sources": sources,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}
