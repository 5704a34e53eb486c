package api

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/LJTian/GozaMadrid/internal/aggregator"
	"github.com/LJTian/GozaMadrid/internal/collector"
	"github.com/LJTian/GozaMadrid/internal/events"
	"github.com/LJTian/GozaMadrid/internal/listing"
	"github.com/LJTian/GozaMadrid/internal/logger"
	"github.com/LJTian/GozaMadrid/internal/metrics"
	"github.com/LJTian/GozaMadrid/internal/resolver"
	"github.com/LJTian/GozaMadrid/internal/storage"
)

// Lists 聚合列表（通常是带缓存的 aggregator.Cached）
type Lists interface {
	Properties(ctx context.Context) aggregator.PropertyResult
	Blogs(ctx context.Context) aggregator.BlogResult
}

// Resolver 单条记录查询
type Resolver interface {
	Property(ctx context.Context, id string) (resolver.Resolution, error)
	Blog(ctx context.Context, id string, hint listing.Source) (resolver.Resolution, error)
}

// LeadStore lead 持久化
type LeadStore interface {
	Create(ctx context.Context, lead *storage.Lead) error
	Recent(ctx context.Context, limit int) ([]storage.Lead, error)
}

// Deps Server 依赖。Leads 为 nil 时 /api/leads 返回 503
type Deps struct {
	Lists          Lists
	Resolver       Resolver
	Leads          LeadStore
	Events         events.Publisher
	Fetchers       collector.Set
	Logger         logger.Logger
	Debug          bool
	AllowedOrigins []string
	BasicAuthUser  string
	BasicAuthPass  string
	ProbeTimeout   time.Duration
}

type Server struct {
	lists     Lists
	resolver  Resolver
	leads     LeadStore
	events    events.Publisher
	fetchers  collector.Set
	log       logger.Logger
	debugMode bool
	origins   []string
	authUser  string
	authPass  string
	probe     time.Duration
}

func NewServer(d Deps) *Server {
	s := &Server{
		lists:     d.Lists,
		resolver:  d.Resolver,
		leads:     d.Leads,
		events:    d.Events,
		fetchers:  d.Fetchers,
		log:       d.Logger,
		debugMode: d.Debug,
		origins:   d.AllowedOrigins,
		authUser:  d.BasicAuthUser,
		authPass:  d.BasicAuthPass,
		probe:     d.ProbeTimeout,
	}
	if s.log == nil {
		s.log = logger.NewNop()
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.probe <= 0 {
		s.probe = 5 * time.Second
	}
	return s
}

// Engine 构建带全部中间件与路由的 gin.Engine
func (s *Server) Engine() *gin.Engine {
	r := gin.New()
	r.Use(
		RequestID(),
		Recovery(s.log, s.debugMode),
		Logger(s.log),
		CORS(s.origins),
		metrics.Middleware(),
	)
	s.RegisterRoutes(r)
	return r
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.GET("/properties", s.properties)
		api.GET("/blog", s.blogs)
		api.GET("/proxy/blog-by-id", s.blogByID)
		api.POST("/proxy/blog-by-id", s.blogByID)
		api.GET("/status", s.status)
		api.POST("/leads", s.createLead)
		// 查看线索需要 Basic Auth，未配置账号时不注册
		if s.authUser != "" && s.authPass != "" {
			api.GET("/leads", BasicAuth(s.authUser, s.authPass), s.recentLeads)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// properties 带 id 时返回单个房源本身，否则返回聚合列表
func (s *Server) properties(c *gin.Context) {
	if id := strings.TrimSpace(c.Query("id")); id != "" {
		res, err := s.resolver.Property(c.Request.Context(), id)
		if err != nil {
			s.lookupError(c, err)
			return
		}
		c.JSON(lookupStatus(res), res.Listing)
		return
	}
	c.JSON(http.StatusOK, s.lists.Properties(c.Request.Context()))
}

func (s *Server) blogs(c *gin.Context) {
	if id := strings.TrimSpace(c.Query("id")); id != "" {
		s.respondBlog(c, id, sourceHint(c.Query("source")))
		return
	}
	c.JSON(http.StatusOK, s.lists.Blogs(c.Request.Context()))
}

type blogByIDRequest struct {
	ID     string `json:"id"`
	Source string `json:"source"`
}

// blogByID GET 读查询参数；POST 且查询参数为空时读 JSON 请求体
func (s *Server) blogByID(c *gin.Context) {
	req := blogByIDRequest{ID: c.Query("id"), Source: c.Query("source")}
	if req.ID == "" && c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}
	id := strings.TrimSpace(req.ID)
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": resolver.ErrEmptyID.Error()})
		return
	}
	s.respondBlog(c, id, sourceHint(req.Source))
}

func sourceHint(s string) listing.Source {
	return listing.Source(strings.ToLower(strings.TrimSpace(s)))
}

func (s *Server) respondBlog(c *gin.Context, id string, hint listing.Source) {
	res, err := s.resolver.Blog(c.Request.Context(), id, hint)
	if err != nil {
		s.lookupError(c, err)
		return
	}
	c.JSON(lookupStatus(res), gin.H{
		"success": true,
		"source":  res.Listing.Source,
		"data":    res.Listing,
	})
}

// lookupStatus 占位记录使用 207
func lookupStatus(res resolver.Resolution) int {
	if res.Fallback {
		return http.StatusMultiStatus
	}
	return http.StatusOK
}

func (s *Server) lookupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, resolver.ErrEmptyID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, collector.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		s.internalError(c, err)
	}
}

// internalError 500 {error, stack?}，DEBUG 开启时附带堆栈
func (s *Server) internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	body := gin.H{"error": "Internal server error"}
	if s.debugMode {
		body["error"] = err.Error()
		body["stack"] = string(debug.Stack())
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, body)
}

type leadRequest struct {
	Name       string         `json:"name" binding:"required"`
	Email      string         `json:"email" binding:"required,email"`
	Phone      string         `json:"phone"`
	Message    string         `json:"message"`
	PropertyID string         `json:"propertyId"`
	Page       string         `json:"page"`
	Extra      map[string]any `json:"extra"`
}

func (s *Server) createLead(c *gin.Context) {
	if s.leads == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "lead storage not configured"})
		return
	}
	var req leadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	lead := &storage.Lead{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Message:    req.Message,
		PropertyID: req.PropertyID,
		Page:       req.Page,
		Extra:      req.Extra,
	}
	ctx := c.Request.Context()
	if err := s.leads.Create(ctx, lead); err != nil {
		s.internalError(c, err)
		return
	}
	// 事件发送失败不影响提交结果
	if err := s.events.PublishLead(ctx, *lead); err != nil {
		s.log.Warn("publish lead event failed", logger.String("lead_id", lead.ID), logger.Error(err))
	}
	c.JSON(http.StatusCreated, gin.H{"id": lead.ID})
}

func (s *Server) recentLeads(c *gin.Context) {
	if s.leads == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "lead storage not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	leads, err := s.leads.Recent(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": len(leads), "leads": leads})
}
