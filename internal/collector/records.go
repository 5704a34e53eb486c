package collector

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/LJTian/GozaMadrid/internal/listing"
)

// Record 上游原始记录。只有本包中的三种变体实现该接口，
// 归一化时按具体类型分派：*MongoRecord / *WordPressPost / *WooProduct
type Record interface {
	Source() listing.Source
	isRecord()
}

// MongoRecord MongoDB 文档，字段不固定，归一化时按候选字段逐个取值。
// REST 接口解码成 JSON 值，直连驱动解码成 bson 值（ObjectID、DateTime 等）
type MongoRecord struct {
	Doc map[string]any
}

func (*MongoRecord) Source() listing.Source { return listing.SourceMongoDB }
func (*MongoRecord) isRecord()              {}

// Rendered WordPress 的 {"rendered": "..."} 字段；部分自定义接口直接给字符串，这里一并兼容
type Rendered struct {
	Rendered string `json:"rendered"`
}

func (r *Rendered) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.Rendered)
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	type plain Rendered
	return json.Unmarshal(data, (*plain)(r))
}

type WPMediaSize struct {
	SourceURL string `json:"source_url"`
}

type WPMedia struct {
	ID           int    `json:"id"`
	SourceURL    string `json:"source_url"`
	AltText      string `json:"alt_text"`
	MediaDetails struct {
		Sizes map[string]WPMediaSize `json:"sizes"`
	} `json:"media_details"`
}

type WPTerm struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	Taxonomy string `json:"taxonomy"`
}

type WPAuthor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// WordPressPost /wp-json/wp/v2/posts?_embed 的单条记录
type WordPressPost struct {
	ID            int      `json:"id"`
	Date          string   `json:"date"`
	Slug          string   `json:"slug"`
	Link          string   `json:"link"`
	Title         Rendered `json:"title"`
	Content       Rendered `json:"content"`
	Excerpt       Rendered `json:"excerpt"`
	FeaturedMedia int      `json:"featured_media"`
	Embedded      struct {
		Author        []WPAuthor `json:"author"`
		FeaturedMedia []WPMedia  `json:"wp:featuredmedia"`
		Terms         [][]WPTerm `json:"wp:term"`
	} `json:"_embedded"`
}

func (*WordPressPost) Source() listing.Source { return listing.SourceWordPress }
func (*WordPressPost) isRecord()              {}

// FlexString 兼容字符串或数字（WooCommerce 的 price 在不同插件下形态不一）
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

type WooImage struct {
	ID   int    `json:"id"`
	Src  string `json:"src"`
	Name string `json:"name"`
	Alt  string `json:"alt"`
}

type WooNamed struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type WooAttribute struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
}

// WooProduct /wp-json/wc/v3/products 的单条记录（房源以商品形式发布）
type WooProduct struct {
	ID               int            `json:"id"`
	Name             string         `json:"name"`
	Slug             string         `json:"slug"`
	Permalink        string         `json:"permalink"`
	DateCreated      string         `json:"date_created"`
	Description      string         `json:"description"`
	ShortDescription string         `json:"short_description"`
	Price            FlexString     `json:"price"`
	Images           []WooImage     `json:"images"`
	Categories       []WooNamed     `json:"categories"`
	Tags             []WooNamed     `json:"tags"`
	Attributes       []WooAttribute `json:"attributes"`
}

func (*WooProduct) Source() listing.Source { return listing.SourceWooCommerce }
func (*WooProduct) isRecord()              {}

// IDString WooCommerce 记录 ID 的字符串形式
func (p *WooProduct) IDString() string {
	return strconv.Itoa(p.ID)
}
