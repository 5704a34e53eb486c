// Package events 把新提交的 lead 发布到消息总线，供 CRM 同步等下游消费
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/LJTian/GozaMadrid/internal/logger"
	"github.com/LJTian/GozaMadrid/internal/storage"
)

const (
	messageSource  = "goza-madrid-api"
	messageVersion = "1.0"
)

// Publisher lead 事件发布
type Publisher interface {
	PublishLead(ctx context.Context, lead storage.Lead) error
	Close()
}

// LeadMessage 消息体
type LeadMessage struct {
	Lead      storage.Lead `json:"lead"`
	Timestamp time.Time    `json:"timestamp"`
	Source    string       `json:"source"`
	Version   string       `json:"version"`
}

// NATS 基于 core NATS 的发布者
type NATS struct {
	conn    *nats.Conn
	subject string
	log     logger.Logger
	publish func(subject string, data []byte) error
	now     func() time.Time
}

// NewNATS 连接 NATS
func NewNATS(url, subject string, log logger.Logger) (*NATS, error) {
	if url == "" {
		return nil, errors.New("events: nats url is required")
	}
	if subject == "" {
		return nil, errors.New("events: nats subject is required")
	}
	nc, err := nats.Connect(url,
		nats.Name(messageSource),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("events: connect %s: %w", url, err)
	}
	n := newNATS(subject, log, nc.Publish)
	n.conn = nc
	return n, nil
}

func newNATS(subject string, log logger.Logger, publish func(string, []byte) error) *NATS {
	if log == nil {
		log = logger.NewNop()
	}
	return &NATS{subject: subject, log: log, publish: publish, now: time.Now}
}

func (n *NATS) PublishLead(ctx context.Context, lead storage.Lead) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(LeadMessage{
		Lead:      lead,
		Timestamp: n.now().UTC(),
		Source:    messageSource,
		Version:   messageVersion,
	})
	if err != nil {
		return fmt.Errorf("events: encode lead: %w", err)
	}
	if err := n.publish(n.subject, data); err != nil {
		return fmt.Errorf("events: publish %s: %w", n.subject, err)
	}
	n.log.Info("lead published", logger.String("subject", n.subject), logger.String("lead_id", lead.ID))
	return nil
}

// Close 先 drain 再关闭连接
func (n *NATS) Close() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}

// Nop 未配置 NATS 时使用
type Nop struct{}

func (Nop) PublishLead(context.Context, storage.Lead) error { return nil }
func (Nop) Close()                                          {}
