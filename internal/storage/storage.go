// Package storage 联系表单（lead）的持久化
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	maxNameRunes     = 128
	maxEmailRunes    = 256
	maxPhoneRunes    = 64
	maxMessageRunes  = 2000
	maxPropertyRunes = 64
	maxPageRunes     = 512
	defaultRecent    = 20
	maxRecent        = 200
)

// Lead 访客在房源详情页或博客页提交的联系信息
type Lead struct {
	ID         string            `gorm:"primaryKey;size:36" json:"id"`
	Name       string            `gorm:"size:128" json:"name"`
	Email      string            `gorm:"size:256;index" json:"email"`
	Phone      string            `gorm:"size:64" json:"phone,omitempty"`
	Message    string            `gorm:"size:2000" json:"message,omitempty"`
	PropertyID string            `gorm:"size:64;index" json:"propertyId,omitempty"`
	Page       string            `gorm:"size:512" json:"page,omitempty"`
	Extra      datatypes.JSONMap `gorm:"type:jsonb" json:"extra,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Repository lead 的读写
type Repository struct {
	DB *gorm.DB
}

// Open 连接 PostgreSQL 并迁移表结构
func Open(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("storage: postgres dsn is required")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	if err := db.AutoMigrate(&Lead{}); err != nil {
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return NewRepository(db), nil
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunes 按 rune 数截断，确保不会超过字段长度
func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// Create 写入一条 lead，ID 为空时生成 UUID
func (r *Repository) Create(ctx context.Context, lead *Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	// 每个字段都不能超过列宽，否则整条插入失败
	lead.Name = truncateRunes(toValidUTF8(lead.Name), maxNameRunes)
	lead.Email = strings.ToLower(truncateRunes(toValidUTF8(lead.Email), maxEmailRunes))
	lead.Phone = truncateRunes(toValidUTF8(lead.Phone), maxPhoneRunes)
	lead.Message = truncateRunes(toValidUTF8(lead.Message), maxMessageRunes)
	lead.PropertyID = truncateRunes(toValidUTF8(lead.PropertyID), maxPropertyRunes)
	lead.Page = truncateRunes(toValidUTF8(lead.Page), maxPageRunes)

	if err := r.DB.WithContext(ctx).Create(lead).Error; err != nil {
		return fmt.Errorf("storage: create lead: %w", err)
	}
	return nil
}

// Recent 按创建时间倒序返回最近的 lead
func (r *Repository) Recent(ctx context.Context, limit int) ([]Lead, error) {
	if limit <= 0 {
		limit = defaultRecent
	}
	if limit > maxRecent {
		limit = maxRecent
	}
	var leads []Lead
	if err := r.DB.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&leads).Error; err != nil {
		return nil, fmt.Errorf("storage: recent leads: %w", err)
	}
	return leads, nil
}
