package listing

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
)

// Source 上游数据源
type Source string

const (
	SourceMongoDB     Source = "mongodb"
	SourceWordPress   Source = "wordpress"
	SourceWooCommerce Source = "woocommerce"
)

// Valid 判断是否为已知数据源
func (s Source) Valid() bool {
	switch s {
	case SourceMongoDB, SourceWordPress, SourceWooCommerce:
		return true
	}
	return false
}

// Fallback 占位记录使用的 source 标记，例如 mongodb-fallback
func (s Source) Fallback() string {
	return string(s) + "-fallback"
}

// Kind 记录类型：房源或博客
type Kind string

const (
	KindProperty Kind = "property"
	KindBlog     Kind = "blog"
)

// Image 列表卡片使用的图片
type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Listing 三个数据源归一化后的统一结构（房源和博客共用）
type Listing struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Excerpt  string   `json:"excerpt,omitempty"`
	Image    *Image   `json:"image"`
	Source   string   `json:"source"`
	Date     string   `json:"date,omitempty"`
	Author   string   `json:"author,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Slug     string   `json:"slug,omitempty"`
	Price    string   `json:"price,omitempty"`
	Location string   `json:"location,omitempty"`
	Link     string   `json:"link,omitempty"`
	// Placeholder 表示记录为兜底生成，而非真实数据
	Placeholder bool `json:"placeholder,omitempty"`
}

// MarshalJSON 同时输出 id 与 _id，前端历史代码两种字段都在用
func (l Listing) MarshalJSON() ([]byte, error) {
	type alias Listing
	return json.Marshal(struct {
		MongoID string `json:"_id"`
		alias
	}{MongoID: l.ID, alias: alias(l)})
}

// UnmarshalJSON 兼容 _id 输入（缓存回读、CLI 解析）
func (l *Listing) UnmarshalJSON(data []byte) error {
	type alias Listing
	aux := struct {
		MongoID string `json:"_id"`
		*alias
	}{alias: (*alias)(l)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if l.ID == "" {
		l.ID = aux.MongoID
	}
	return nil
}

// SourceError 聚合响应中单个数据源的失败说明
type SourceError struct {
	Source  Source `json:"source"`
	Message string `json:"message"`
}

var (
	objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)
	numericPattern  = regexp.MustCompile(`^[0-9]+$`)
)

// WordPressPrefix WordPress 记录 ID 前缀
const WordPressPrefix = "wp-"

// IsObjectID 24 位十六进制字符串
func IsObjectID(id string) bool {
	return objectIDPattern.MatchString(id)
}

// IsNumeric 纯数字 ID
func IsNumeric(id string) bool {
	return numericPattern.MatchString(id)
}

// Classify 根据 ID 形状推断其最可能的数据源：
// 24 位十六进制 -> MongoDB，纯数字 -> WooCommerce，其余（含 wp- 前缀与 slug）-> WordPress
func Classify(id string) Source {
	id = strings.TrimSpace(id)
	switch {
	case IsObjectID(id):
		return SourceMongoDB
	case IsNumeric(id):
		return SourceWooCommerce
	default:
		return SourceWordPress
	}
}

// StripWordPressPrefix 去掉 wp- 前缀，返回 WordPress 原始 ID
func StripWordPressPrefix(id string) string {
	return strings.TrimPrefix(strings.TrimSpace(id), WordPressPrefix)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate 解析上游各种日期格式，失败返回零值
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
