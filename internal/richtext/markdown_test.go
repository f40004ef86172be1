package richtext

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/pagelift/internal/model"
)

func TestFromMarkdown(t *testing.T) {
	root, err := FromMarkdown("Jane teaches **mindful** breathing.\n\nFind her at [her site](https://jane.example.com).")
	require.NoError(t, err)
	require.Len(t, root.Children, 2)

	first := root.Children[0].(*model.ParagraphNode)
	require.Len(t, first.Children, 3)
	require.Equal(t, model.FormatBold, first.Children[1].(*model.TextNode).Format)
	require.Equal(t, "mindful", first.Children[1].(*model.TextNode).Text)

	second := root.Children[1].(*model.ParagraphNode)
	link := second.Children[1].(*model.LinkNode)
	require.Equal(t, "https://jane.example.com", link.URL)
}

func TestFromMarkdownEmpty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n"} {
		root, err := FromMarkdown(in)
		require.NoError(t, err)
		require.Len(t, root.Children, 1)
		para := root.Children[0].(*model.ParagraphNode)
		require.Equal(t, "", para.Children[0].(*model.TextNode).Text)
	}
}
