package processor

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/LJTian/GozaMadrid/internal/collector"
	"github.com/LJTian/GozaMadrid/internal/listing"
)

const (
	DefaultTitle         = "Sin título"
	DefaultPropertyImage = "/img/default-property-image.jpg"
	DefaultBlogImage     = "/img/default-blog-image.jpg"
)

// ErrMissingID 记录没有可用的 ID，无法进入合并结果
var ErrMissingID = errors.New("record has no id")

// WordPress 特色图片尺寸优先级
var wpSizePreference = []string{"medium_large", "medium", "large", "full"}

// Normalize 把任一数据源的原始记录映射为统一结构
func Normalize(kind listing.Kind, rec collector.Record) (listing.Listing, error) {
	switch r := rec.(type) {
	case *collector.MongoRecord:
		return normalizeMongo(kind, r)
	case *collector.WordPressPost:
		return normalizeWordPress(kind, r)
	case *collector.WooProduct:
		return normalizeWoo(kind, r)
	case nil:
		return listing.Listing{}, errors.New("processor: nil record")
	default:
		return listing.Listing{}, fmt.Errorf("processor: unknown record type %T", rec)
	}
}

// NormalizeAll 逐条归一化，失败的记录跳过并返回其错误，不影响其他记录
func NormalizeAll(kind listing.Kind, recs []collector.Record) ([]listing.Listing, []error) {
	out := make([]listing.Listing, 0, len(recs))
	var errs []error
	seen := make(map[string]struct{}, len(recs))
	for _, rec := range recs {
		l, err := Normalize(kind, rec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		// 同一数据源内按 ID 去重
		if _, ok := seen[l.ID]; ok {
			continue
		}
		seen[l.ID] = struct{}{}
		out = append(out, l)
	}
	return out, errs
}

func defaultImage(kind listing.Kind, alt string) *listing.Image {
	src := DefaultPropertyImage
	if kind == listing.KindBlog {
		src = DefaultBlogImage
	}
	return &listing.Image{Src: src, Alt: alt}
}

func orDefaultTitle(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return DefaultTitle
	}
	return s
}

func normalizeMongo(kind listing.Kind, r *collector.MongoRecord) (listing.Listing, error) {
	d := doc(r.Doc)
	id := d.id()
	if id == "" {
		return listing.Listing{}, fmt.Errorf("mongodb: %w", ErrMissingID)
	}

	title := orDefaultTitle(d.str("title", "name", "titulo"))
	content := d.str("content", "description", "descripcion", "body")
	l := listing.Listing{
		ID:       id,
		Title:    title,
		Content:  content,
		Source:   string(listing.SourceMongoDB),
		Date:     d.date("date", "createdAt", "publishedAt", "publishDate", "updatedAt"),
		Author:   d.name("author", "autor"),
		Category: d.name("category", "categoria"),
		Tags:     d.names("tags", "etiquetas"),
		Slug:     d.str("slug"),
		Price:    d.number("price", "precio"),
		Location: d.str("location", "address", "direccion", "zone", "zona"),
		Link:     d.str("link", "url"),
	}
	if l.Category == "" {
		if cats := d.names("categories"); len(cats) > 0 {
			l.Category = cats[0]
		}
	}

	if ex := d.str("excerpt", "summary", "resumen"); ex != "" {
		l.Excerpt = excerpt(ex)
	} else {
		l.Excerpt = excerpt(content)
	}

	if img := d.image(title); img != nil && img.Src != "" {
		l.Image = img
	} else if src, alt := firstImage(content); src != "" {
		l.Image = &listing.Image{Src: src, Alt: firstNonEmpty(alt, title)}
	} else {
		l.Image = defaultImage(kind, title)
	}
	return l, nil
}

func normalizeWordPress(kind listing.Kind, p *collector.WordPressPost) (listing.Listing, error) {
	if p.ID == 0 {
		return listing.Listing{}, fmt.Errorf("wordpress: %w", ErrMissingID)
	}
	title := orDefaultTitle(plainText(p.Title.Rendered))
	l := listing.Listing{
		ID:      listing.WordPressPrefix + strconv.Itoa(p.ID),
		Title:   title,
		Content: p.Content.Rendered,
		Source:  string(listing.SourceWordPress),
		Date:    p.Date,
		Slug:    p.Slug,
		Link:    p.Link,
	}
	if ex := plainText(p.Excerpt.Rendered); ex != "" {
		l.Excerpt = excerpt(ex)
	} else {
		l.Excerpt = excerpt(p.Content.Rendered)
	}
	if len(p.Embedded.Author) > 0 {
		l.Author = p.Embedded.Author[0].Name
	}
	for _, group := range p.Embedded.Terms {
		for _, term := range group {
			switch term.Taxonomy {
			case "category":
				if l.Category == "" {
					l.Category = plainText(term.Name)
				}
			case "post_tag":
				l.Tags = append(l.Tags, plainText(term.Name))
			}
		}
	}
	l.Image = wordPressImage(kind, p, title)
	return l, nil
}

// wordPressImage 特色图片按尺寸优先级取值，没有特色图片时退回正文第一张图片
func wordPressImage(kind listing.Kind, p *collector.WordPressPost, title string) *listing.Image {
	if len(p.Embedded.FeaturedMedia) > 0 {
		m := p.Embedded.FeaturedMedia[0]
		alt := firstNonEmpty(m.AltText, title)
		for _, size := range wpSizePreference {
			if s, ok := m.MediaDetails.Sizes[size]; ok && s.SourceURL != "" {
				return &listing.Image{Src: s.SourceURL, Alt: alt}
			}
		}
		if m.SourceURL != "" {
			return &listing.Image{Src: m.SourceURL, Alt: alt}
		}
	}
	if src, alt := firstImage(p.Content.Rendered); src != "" {
		return &listing.Image{Src: src, Alt: firstNonEmpty(alt, title)}
	}
	return defaultImage(kind, title)
}

// 房源位置在 WooCommerce 中以商品属性保存，名称因站点语言而异
var wooLocationAttrs = map[string]struct{}{
	"ubicación": {}, "ubicacion": {}, "localización": {}, "localizacion": {},
	"location": {}, "zona": {}, "barrio": {},
}

func normalizeWoo(kind listing.Kind, p *collector.WooProduct) (listing.Listing, error) {
	if p.ID == 0 {
		return listing.Listing{}, fmt.Errorf("woocommerce: %w", ErrMissingID)
	}
	title := orDefaultTitle(plainText(p.Name))
	l := listing.Listing{
		ID:      p.IDString(),
		Title:   title,
		Content: p.Description,
		Source:  string(listing.SourceWooCommerce),
		Date:    p.DateCreated,
		Slug:    p.Slug,
		Price:   strings.TrimSpace(string(p.Price)),
		Link:    p.Permalink,
	}
	if ex := plainText(p.ShortDescription); ex != "" {
		l.Excerpt = excerpt(ex)
	} else {
		l.Excerpt = excerpt(p.Description)
	}
	if len(p.Categories) > 0 {
		l.Category = plainText(p.Categories[0].Name)
	}
	for _, t := range p.Tags {
		l.Tags = append(l.Tags, plainText(t.Name))
	}
	for _, a := range p.Attributes {
		if _, ok := wooLocationAttrs[strings.ToLower(strings.TrimSpace(a.Name))]; ok && len(a.Options) > 0 {
			l.Location = strings.Join(a.Options, ", ")
			break
		}
	}
	for _, img := range p.Images {
		if img.Src != "" {
			l.Image = &listing.Image{Src: img.Src, Alt: firstNonEmpty(img.Alt, img.Name, title)}
			break
		}
	}
	if l.Image == nil {
		l.Image = defaultImage(kind, title)
	}
	return l, nil
}

// Placeholder 所有数据源都失败时生成的兜底记录，保证页面可渲染
func Placeholder(kind listing.Kind, src listing.Source, id, reason string) listing.Listing {
	title := "Artículo no disponible"
	content := "<p>No hemos podido cargar este artículo en este momento. Por favor, inténtalo de nuevo más tarde.</p>"
	if kind == listing.KindProperty {
		title = "Propiedad no disponible"
		content = "<p>No hemos podido cargar esta propiedad en este momento. Por favor, inténtalo de nuevo más tarde.</p>"
	}
	if reason != "" {
		content += "<!-- " + strings.ReplaceAll(reason, "--", "- -") + " -->"
	}
	return listing.Listing{
		ID:          id,
		Title:       title,
		Content:     content,
		Excerpt:     plainText(content),
		Image:       defaultImage(kind, title),
		Source:      src.Fallback(),
		Date:        time.Now().UTC().Format(time.RFC3339),
		Author:      "Goza Madrid",
		Placeholder: true,
	}
}

// DemoProperty 演示房源。是否应在线上返回演示数据仍待产品确认，由 DEMO_FALLBACK 控制
func DemoProperty(src listing.Source, id string) listing.Listing {
	title := "Propiedad de demostración"
	content := "<p>Esta es una propiedad de demostración. Contacta con Goza Madrid para conocer las propiedades disponibles.</p>"
	return listing.Listing{
		ID:          id,
		Title:       title,
		Content:     content,
		Excerpt:     plainText(content),
		Image:       defaultImage(listing.KindProperty, title),
		Source:      src.Fallback(),
		Date:        time.Now().UTC().Format(time.RFC3339),
		Price:       "Consultar",
		Location:    "Madrid",
		Placeholder: true,
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
