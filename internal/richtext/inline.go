package richtext

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/xxxsen/pagelift/internal/model"
)

// ParseInline turns an inline HTML fragment into an ordered list of text
// runs. Only b/strong, i/em and a are recognized; any other tag is stripped
// and its text joins the surrounding run. Runs inside an anchor come back
// wrapped in a link node, provided the href survives sanitization.
func ParseInline(fragment string) []model.Node {
	if fragment == "" {
		return nil
	}
	z := html.NewTokenizer(strings.NewReader(fragment))

	var (
		out     []model.Node
		text    strings.Builder
		bold    bool
		italic  bool
		linkURL string
	)
	flush := func() {
		if text.Len() == 0 {
			return
		}
		run := model.NewText(text.String(), formatOf(bold, italic))
		text.Reset()
		if linkURL != "" {
			out = append(out, model.NewLink(linkURL, run))
			return
		}
		out = append(out, run)
	}

	for {
		switch z.Next() {
		case html.ErrorToken:
			flush()
			return out
		case html.TextToken:
			text.WriteString(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			switch string(name) {
			case "b", "strong":
				flush()
				bold = true
			case "i", "em":
				flush()
				italic = true
			case "a":
				flush()
				linkURL = SanitizeLinkURL(hrefAttr(z, hasAttr))
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "b", "strong":
				flush()
				bold = false
			case "i", "em":
				flush()
				italic = false
			case "a":
				flush()
				linkURL = ""
			}
		}
	}
}

func formatOf(bold, italic bool) int {
	format := model.FormatNormal
	if bold {
		format |= model.FormatBold
	}
	if italic {
		format |= model.FormatItalic
	}
	return format
}

func hrefAttr(z *html.Tokenizer, hasAttr bool) string {
	for hasAttr {
		key, val, more := z.TagAttr()
		if string(key) == "href" {
			return string(val)
		}
		hasAttr = more
	}
	return ""
}

var hrefEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#039;", "'",
)

// SanitizeLinkURL validates a candidate link target and returns "" when no
// link must be emitted. Accepted targets are absolute http(s) URLs,
// root-relative paths and bare alphanumeric-leading strings; everything else
// (mailto:, tel:, javascript:, fragments, empty or whitespace-only values) is
// rejected. Escaped hrefs from legacy content are entity-decoded first so
// they validate the same as clean ones.
func SanitizeLinkURL(raw string) string {
	url := strings.TrimSpace(hrefEntities.Replace(raw))
	if url == "" || url == "#" {
		return ""
	}
	lower := strings.ToLower(url)
	for _, scheme := range []string{"mailto:", "tel:", "javascript:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return url
	}
	if strings.HasPrefix(url, "/") {
		return url
	}
	first := url[0]
	if first >= 'a' && first <= 'z' || first >= 'A' && first <= 'Z' || first >= '0' && first <= '9' {
		return url
	}
	return ""
}
