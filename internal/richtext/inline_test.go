package richtext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/pagelift/internal/model"
)

func TestParseInlineFormatting(t *testing.T) {
	runs := ParseInline("<b>Hi <i>you</i></b>")
	require.Len(t, runs, 2)

	first, ok := runs[0].(*model.TextNode)
	require.True(t, ok)
	require.Equal(t, "Hi ", first.Text)
	require.Equal(t, model.FormatBold, first.Format)

	second, ok := runs[1].(*model.TextNode)
	require.True(t, ok)
	require.Equal(t, "you", second.Text)
	require.Equal(t, model.FormatBold|model.FormatItalic, second.Format)

	// concatenated run text must reconstruct the visible text, tags stripped
	var visible strings.Builder
	for _, run := range runs {
		visible.WriteString(run.(*model.TextNode).Text)
	}
	require.Equal(t, "Hi you", visible.String())
}

func TestParseInlineStripsUnknownTags(t *testing.T) {
	runs := ParseInline(`a<span class="x">b</span>c`)
	require.Len(t, runs, 1)
	text := runs[0].(*model.TextNode)
	require.Equal(t, "abc", text.Text)
	require.Equal(t, model.FormatNormal, text.Format)
}

func TestParseInlineLinks(t *testing.T) {
	runs := ParseInline(`see <a href="https://example.com/x?a=1&amp;b=2">here</a> now`)
	require.Len(t, runs, 3)

	link, ok := runs[1].(*model.LinkNode)
	require.True(t, ok)
	require.Equal(t, "https://example.com/x?a=1&b=2", link.URL)
	require.Len(t, link.Children, 1)
	require.Equal(t, "here", link.Children[0].(*model.TextNode).Text)
}

func TestParseInlineRejectedLinkKeepsText(t *testing.T) {
	runs := ParseInline(`<a href="mailto:a@b.com">write us</a>`)
	require.Len(t, runs, 1)
	text, ok := runs[0].(*model.TextNode)
	require.True(t, ok, "rejected href must not produce a link node")
	require.Equal(t, "write us", text.Text)
}

func TestParseInlineEmFlaggedInsideLink(t *testing.T) {
	runs := ParseInline(`<a href="/path"><em>go</em></a>`)
	require.Len(t, runs, 1)
	link := runs[0].(*model.LinkNode)
	require.Equal(t, "/path", link.URL)
	require.Equal(t, model.FormatItalic, link.Children[0].(*model.TextNode).Format)
}

func TestSanitizeLinkURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/x", "https://example.com/x"},
		{"http://example.com", "http://example.com"},
		{"/relative/path", "/relative/path"},
		{"meditations", "meditations"},
		{"42-tips", "42-tips"},
		{"mailto:a@b.com", ""},
		{"tel:123", ""},
		{"javascript:alert(1)", ""},
		{"JavaScript:alert(1)", ""},
		{"#", ""},
		{"#section", ""},
		{"", ""},
		{"   ", ""},
		{"https://example.com/?a=1&amp;b=2", "https://example.com/?a=1&b=2"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, SanitizeLinkURL(tt.in), "input %q", tt.in)
	}
}
