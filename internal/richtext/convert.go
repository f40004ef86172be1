package richtext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pagelift/internal/idmap"
	"github.com/xxxsen/pagelift/internal/model"
	"github.com/xxxsen/pagelift/internal/platform"
)

// DecodeBlocks parses a legacy content payload. Empty and JSON-null payloads
// are valid and decode to no blocks.
func DecodeBlocks(raw []byte) ([]model.Block, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var blocks []model.Block
	if err := json.Unmarshal(trimmed, &blocks); err != nil {
		return nil, fmt.Errorf("decode content blocks: %w", err)
	}
	return blocks, nil
}

// Convert transforms a legacy block sequence into a destination rich-text
// tree. A block that fails to convert aborts the whole document; partially
// converted rich text must never reach the destination. Unknown block types
// and unresolved references are warnings, not failures.
func Convert(ctx context.Context, blocks []model.Block, cc *ConversionContext) (*model.Root, error) {
	root := model.NewRoot()
	for i, block := range blocks {
		nodes, err := convertBlock(ctx, block, cc)
		if err != nil {
			return nil, fmt.Errorf("block %d (%s) of %s: %w", i, block.Type, cc.Label, err)
		}
		root.Append(nodes...)
	}
	if len(root.Children) == 0 {
		root.Append(emptyParagraph())
	}
	return root, nil
}

func convertBlock(ctx context.Context, block model.Block, cc *ConversionContext) ([]model.Node, error) {
	switch block.Type {
	case model.BlockParagraph:
		return convertParagraph(ctx, block.Data, cc)
	case model.BlockTextbox:
		return convertTextbox(ctx, block.Data, cc)
	case model.BlockLayout:
		return convertLayout(ctx, block.Data, cc)
	case model.BlockGallery:
		return convertGallery(ctx, block.Data, cc)
	case model.BlockAction:
		return convertAction(ctx, block.Data, cc)
	case model.BlockVideo:
		return convertVideo(ctx, block.Data, cc)
	case model.BlockCatalog:
		return convertCatalog(ctx, block.Data, cc)
	case model.BlockQuote:
		return convertQuote(ctx, block.Data, cc)
	case model.BlockHeader:
		return convertHeader(ctx, block.Data, cc)
	case model.BlockWhitespace, model.BlockList:
		// layout-only artifacts of the legacy editor, no destination equivalent
		return nil, nil
	default:
		logutil.GetLogger(ctx).Warn("skipping unknown block type",
			zap.String("type", block.Type), zap.String("doc", cc.Label))
		return nil, nil
	}
}

func convertParagraph(_ context.Context, data json.RawMessage, _ *ConversionContext) ([]model.Node, error) {
	var d model.ParagraphData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	runs := ParseInline(d.Text)
	if d.Variant == "header" {
		return []model.Node{model.NewHeading(headingTag(d.Level), runs...)}, nil
	}
	return []model.Node{model.NewParagraph(runs...)}, nil
}

// headingTag clamps legacy header levels to h1..h3. Legacy content that never
// set a level gets the editor default, h2.
func headingTag(level int) string {
	switch {
	case level <= 0:
		return "h2"
	case level > 3:
		return "h3"
	default:
		return "h" + strconv.Itoa(level)
	}
}

func convertTextbox(ctx context.Context, data json.RawMessage, cc *ConversionContext) ([]model.Node, error) {
	var d model.TextboxData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if d.Kind == "quote" || d.Kind == "hero" {
		text := strings.TrimSpace(d.Text)
		if text == "" {
			logutil.GetLogger(ctx).Warn("skipping quote box without text", zap.String("doc", cc.Label))
			return nil, nil
		}
		return []model.Node{quoteNode(text, strings.TrimSpace(d.Title))}, nil
	}
	fields := map[string]any{"style": textboxStyle(d)}
	setNonEmpty(fields, "title", d.Title)
	setNonEmpty(fields, "text", d.Text)
	setNonEmpty(fields, "credit", d.Credit)
	if id, ok := cc.Media[d.ImageURL]; ok && d.ImageURL != "" {
		fields["image"] = id
	}
	return []model.Node{model.NewBlock("textbox", fields)}, nil
}

// textboxStyle derives the destination style from the legacy presentation
// fields. First match wins.
func textboxStyle(d model.TextboxData) string {
	switch {
	case d.Kind == "image" && d.Background == "dark":
		return "overlay-dark"
	case d.Kind == "image" && d.Background == "light":
		return "overlay-light"
	case d.Position == "right":
		return "right-aligned"
	case d.Color == "dark":
		return "contrast"
	default:
		return "splash"
	}
}

var layoutKinds = map[string]bool{
	"columns":   true,
	"accordion": true,
	"grid":      true,
}

func convertLayout(_ context.Context, data json.RawMessage, cc *ConversionContext) ([]model.Node, error) {
	var d model.LayoutData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	kind := d.Kind
	if !layoutKinds[kind] {
		kind = "columns"
	}
	items := make([]map[string]any, 0, len(d.Items))
	for _, item := range d.Items {
		entry := map[string]any{
			"richText": model.NewRoot(model.NewParagraph(ParseInline(item.Text)...)),
		}
		setNonEmpty(entry, "title", item.Title)
		if id, ok := cc.Media[item.ImageURL]; ok && item.ImageURL != "" {
			entry["image"] = id
		}
		if url := SanitizeLinkURL(item.LinkURL); url != "" {
			entry["link"] = url
		}
		items = append(items, entry)
	}
	fields := map[string]any{"variant": kind, "items": items}
	return []model.Node{model.NewBlock("layout", fields)}, nil
}

func convertGallery(_ context.Context, data json.RawMessage, cc *ConversionContext) ([]model.Node, error) {
	var d model.GalleryData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(d.Items))
	for _, item := range d.Items {
		// image never ingested: drop the item, keep the gallery
		if id, ok := cc.Media[item.URL]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return []model.Node{model.NewBlock("gallery", map[string]any{"images": ids})}, nil
}

func convertAction(ctx context.Context, data json.RawMessage, cc *ConversionContext) ([]model.Node, error) {
	var d model.ActionData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if d.FormType != "" {
		if id, ok := cc.Forms[d.FormType]; ok {
			return []model.Node{model.NewRelationship(platform.CollForms, id)}, nil
		}
		logutil.GetLogger(ctx).Warn("action references unknown form, emitting button",
			zap.String("form_type", d.FormType), zap.String("doc", cc.Label))
	}
	fields := map[string]any{}
	setNonEmpty(fields, "label", d.Label)
	if url := SanitizeLinkURL(d.URL); url != "" {
		fields["url"] = url
	}
	return []model.Node{model.NewBlock("button", fields)}, nil
}

func convertVideo(ctx context.Context, data json.RawMessage, cc *ConversionContext) ([]model.Node, error) {
	var d model.VideoData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	providerID := d.VimeoID
	if providerID == "" {
		providerID = d.YoutubeID
	}
	id, ok := cc.Videos[providerID]
	if providerID == "" || !ok {
		logutil.GetLogger(ctx).Warn("dropping unresolved external video",
			zap.String("provider_id", providerID), zap.String("doc", cc.Label))
		return nil, nil
	}
	return []model.Node{model.NewRelationship(platform.CollExternalVideos, id)}, nil
}

func convertCatalog(ctx context.Context, data json.RawMessage, cc *ConversionContext) ([]model.Node, error) {
	var d model.CatalogData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx)

	var (
		relationTo string
		resolved   []string
	)
	switch d.Kind {
	case "article":
		relationTo = platform.CollArticles
		for _, id := range d.IDs {
			destID, ok := cc.Articles[id]
			if !ok {
				logger.Warn("catalog references unknown article",
					zap.Int64("article_id", id), zap.String("doc", cc.Label))
				continue
			}
			resolved = append(resolved, destID)
		}
	case "meditation":
		relationTo = platform.CollMeditations
		for _, id := range d.IDs {
			destID, ok := idmap.ResolveByTitle(id, cc.MeditationTitles, cc.MeditationIDs, cc.TitleAliases)
			if !ok {
				logger.Warn("catalog references unresolvable meditation",
					zap.Int64("meditation_id", id), zap.String("doc", cc.Label))
				continue
			}
			resolved = append(resolved, destID)
		}
	default:
		logger.Warn("skipping catalog block of unknown kind",
			zap.String("kind", d.Kind), zap.String("doc", cc.Label))
		return nil, nil
	}

	switch len(resolved) {
	case 0:
		return nil, nil
	case 1:
		return []model.Node{model.NewRelationship(relationTo, resolved[0])}, nil
	default:
		return []model.Node{model.NewBlock("catalog", map[string]any{
			"relationTo": relationTo,
			"items":      resolved,
		})}, nil
	}
}

func convertQuote(ctx context.Context, data json.RawMessage, cc *ConversionContext) ([]model.Node, error) {
	var d model.QuoteData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	text := strings.TrimSpace(d.Text)
	if text == "" {
		logutil.GetLogger(ctx).Warn("skipping quote without text", zap.String("doc", cc.Label))
		return nil, nil
	}
	return []model.Node{quoteNode(text, strings.TrimSpace(d.Author))}, nil
}

func convertHeader(ctx context.Context, data json.RawMessage, cc *ConversionContext) ([]model.Node, error) {
	var d model.HeaderData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	if strings.TrimSpace(d.Text) == "" {
		logutil.GetLogger(ctx).Warn("skipping header without text", zap.String("doc", cc.Label))
		return nil, nil
	}
	return []model.Node{model.NewHeading(headingTag(d.Level), ParseInline(d.Text)...)}, nil
}

func quoteNode(text, author string) model.Node {
	fields := map[string]any{"text": text}
	if author != "" {
		fields["author"] = author
	}
	return model.NewBlock("quote", fields)
}

func setNonEmpty(fields map[string]any, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		fields[key] = v
	}
}

func emptyParagraph() model.Node {
	return model.NewParagraph(model.NewText("", model.FormatNormal))
}
