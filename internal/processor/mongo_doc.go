package processor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/LJTian/GozaMadrid/internal/listing"
)

// doc MongoDB 文档的防御式取值。REST 返回的是 JSON 值，
// 驱动直连返回 primitive.M / primitive.A / ObjectID / DateTime，两者都要兼容
type doc map[string]any

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case primitive.M:
		return map[string]any(m), true
	case primitive.D:
		return map[string]any(m.Map()), true
	}
	return nil, false
}

func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case primitive.A:
		return []any(s), true
	case []string:
		out := make([]any, len(s))
		for i := range s {
			out[i] = s[i]
		}
		return out, true
	}
	return nil, false
}

// scalar 把常见标量转成字符串
func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case primitive.ObjectID:
		return x.Hex()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case primitive.Decimal128:
		return x.String()
	case fmt.Stringer:
		return x.String()
	}
	return ""
}

// id 依次取 _id、id；兼容 {"$oid": "..."} 扩展 JSON
func (d doc) id() string {
	for _, key := range []string{"_id", "id"} {
		v, ok := d[key]
		if !ok {
			continue
		}
		if m, ok := asMap(v); ok {
			if s := scalar(m["$oid"]); s != "" {
				return s
			}
			continue
		}
		if s := scalar(v); s != "" {
			return s
		}
	}
	return ""
}

func (d doc) str(keys ...string) string {
	for _, key := range keys {
		if s, ok := d[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// number 价格之类的字段可能是数字也可能是字符串
func (d doc) number(keys ...string) string {
	for _, key := range keys {
		if _, isMap := asMap(d[key]); isMap {
			continue
		}
		if s := scalar(d[key]); s != "" {
			return s
		}
	}
	return ""
}

func (d doc) date(keys ...string) string {
	for _, key := range keys {
		switch v := d[key].(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		case primitive.DateTime:
			return v.Time().UTC().Format(time.RFC3339)
		case time.Time:
			return v.UTC().Format(time.RFC3339)
		default:
			// 扩展 JSON：{"$date": "..."}
			if m, ok := asMap(v); ok {
				if s, ok := m["$date"].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// name 字段可能是字符串，也可能是 {name: "..."} 对象
func (d doc) name(keys ...string) string {
	for _, key := range keys {
		if s := nameOf(d[key]); s != "" {
			return s
		}
	}
	return ""
}

func nameOf(v any) string {
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	if m, ok := asMap(v); ok {
		for _, k := range []string{"name", "nombre", "title"} {
			if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func (d doc) names(keys ...string) []string {
	for _, key := range keys {
		items, ok := asSlice(d[key])
		if !ok {
			// 逗号分隔的字符串
			if s, ok := d[key].(string); ok && strings.TrimSpace(s) != "" {
				return splitTags(s)
			}
			continue
		}
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s := nameOf(it); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func splitTags(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// image 候选：image（字符串或对象）、images[0]、imageUrl 等
func (d doc) image(title string) *listing.Image {
	for _, key := range []string{"image", "images", "imageUrl", "featuredImage", "coverImage", "photos"} {
		if img := imageOf(d[key], title); img != nil {
			return img
		}
	}
	return nil
}

func imageOf(v any, title string) *listing.Image {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x = strings.TrimSpace(x); x != "" {
			return &listing.Image{Src: x, Alt: title}
		}
		return nil
	}
	if m, ok := asMap(v); ok {
		src := ""
		for _, k := range []string{"src", "url", "secure_url", "source_url"} {
			if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
				src = strings.TrimSpace(s)
				break
			}
		}
		if src == "" {
			return nil
		}
		alt, _ := m["alt"].(string)
		return &listing.Image{Src: src, Alt: firstNonEmpty(alt, title)}
	}
	if items, ok := asSlice(v); ok {
		for _, it := range items {
			if img := imageOf(it, title); img != nil {
				return img
			}
		}
	}
	return nil
}
