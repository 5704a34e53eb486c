package processor

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mattn/go-runewidth"
)

// excerptWidth 摘要按显示宽度截断（中日文占两格）
const excerptWidth = 160

// plainText 去掉 HTML 标签并解码实体，合并连续空白
func plainText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if !strings.ContainsAny(s, "<&") {
		return collapseSpaces(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpaces(html.UnescapeString(s))
	}
	return collapseSpaces(doc.Text())
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// firstImage 返回 HTML 中第一张图片的地址和 alt，找不到时 src 为空
func firstImage(content string) (src, alt string) {
	if !strings.Contains(content, "<img") {
		return "", ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", ""
	}
	img := doc.Find("img").First()
	src, _ = img.Attr("src")
	if src == "" {
		// 懒加载插件把真实地址放在 data-src
		src, _ = img.Attr("data-src")
	}
	alt, _ = img.Attr("alt")
	return strings.TrimSpace(src), strings.TrimSpace(alt)
}

// excerpt 生成纯文本摘要，超出宽度时追加省略号
func excerpt(s string) string {
	text := plainText(s)
	if runewidth.StringWidth(text) <= excerptWidth {
		return text
	}
	return runewidth.Truncate(text, excerptWidth, "…")
}
