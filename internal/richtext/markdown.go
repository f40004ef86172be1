package richtext

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/xxxsen/pagelift/internal/model"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// FromMarkdown converts a markdown-authored legacy field (author bios) into a
// rich-text tree: one destination paragraph per markdown paragraph, inline
// emphasis and links preserved through the shared inline parser.
func FromMarkdown(md string) (*model.Root, error) {
	root := model.NewRoot()
	normalized := strings.ReplaceAll(md, "\r\n", "\n")
	for _, chunk := range strings.Split(normalized, "\n\n") {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" {
			continue
		}
		var buf bytes.Buffer
		if err := markdown.Convert([]byte(chunk), &buf); err != nil {
			return nil, fmt.Errorf("render markdown: %w", err)
		}
		runs := ParseInline(strings.TrimSpace(buf.String()))
		if len(runs) == 0 {
			continue
		}
		root.Append(model.NewParagraph(runs...))
	}
	if len(root.Children) == 0 {
		root.Append(emptyParagraph())
	}
	return root, nil
}
