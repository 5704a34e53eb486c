package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LJTian/GozaMadrid/internal/aggregator"
	"github.com/LJTian/GozaMadrid/internal/logger"
)

const (
	// 延迟执行首轮预热，避免与服务刚启动时的首批请求争抢上游
	defaultStartupDelay = 15 * time.Second
	defaultRunTimeout   = 2 * time.Minute
)

// Warmer 执行一轮列表缓存预热
type Warmer interface {
	Warm(ctx context.Context) aggregator.WarmReport
}

type Scheduler struct {
	cron         *cron.Cron
	warmer       Warmer
	log          logger.Logger
	StartupDelay time.Duration
	RunTimeout   time.Duration

	// 上一轮还没结束时跳过本轮
	running sync.Mutex
	timer   *time.Timer

	// ctx 在 Stop 时取消，定时任务的运行 ctx 都从它派生
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
}

func New(spec string, w Warmer, log logger.Logger) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNop()
	}
	c := cron.New()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron:         c,
		warmer:       w,
		log:          log,
		StartupDelay: defaultStartupDelay,
		RunTimeout:   defaultRunTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}

	if _, err := c.AddFunc(spec, s.runScheduled); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	if s.StartupDelay >= 0 {
		s.timer = time.AfterFunc(s.StartupDelay, s.runScheduled)
	}
}

// Stop 停止调度并取消正在执行的预热，返回的 ctx 在所有任务（含启动延迟任务）结束后 Done
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.cancel()
	cronDone := s.cron.Stop()

	ctx, done := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.inflight.Wait()
		done()
	}()
	return ctx
}

// RunOnce 对外暴露的单次执行入口，CLI 的 warm 命令使用
func (s *Scheduler) RunOnce(ctx context.Context) aggregator.WarmReport {
	s.running.Lock()
	defer s.running.Unlock()
	return s.run(ctx)
}

func (s *Scheduler) runScheduled() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	if !s.running.TryLock() {
		s.log.Warn("warm job still running, skip this round")
		return
	}
	defer s.running.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.RunTimeout)
	defer cancel()
	s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) aggregator.WarmReport {
	s.log.Info("start warm job")
	report := s.warmer.Warm(ctx)
	for _, e := range report.Errors {
		s.log.Warn("warm source failed", logger.String("source", string(e.Source)), logger.String("error", e.Message))
	}
	s.log.Info("warm job done",
		logger.Int("properties", report.Properties),
		logger.Int("blogs", report.Blogs),
		logger.Int("errors", len(report.Errors)),
		logger.Duration("duration", report.Duration),
	)
	return report
}
