package model

import "encoding/json"

// Block type discriminators as stored in legacy content JSON.
const (
	BlockParagraph  = "paragraph"
	BlockTextbox    = "textbox"
	BlockLayout     = "layout"
	BlockGallery    = "gallery"
	BlockAction     = "action"
	BlockVideo      = "video"
	BlockCatalog    = "catalog"
	BlockQuote      = "quote"
	BlockHeader     = "header"
	BlockWhitespace = "whitespace"
	BlockList       = "list"
)

// Block is one unit of legacy structured content: a type discriminator plus an
// open payload whose shape depends on the type. Data stays raw until the
// converter decodes it into the matching *Data struct.
type Block struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type ParagraphData struct {
	Text    string `json:"text"`
	Variant string `json:"variant,omitempty"` // "" or "header"
	Level   int    `json:"level,omitempty"`
}

type TextboxData struct {
	Kind       string `json:"kind"` // "", "quote", "hero", "image"
	Title      string `json:"title"`
	Text       string `json:"text"`
	Background string `json:"background"` // "dark", "light", ""
	Color      string `json:"color"`
	Position   string `json:"position"` // "left", "right", ""
	ImageURL   string `json:"image_url"`
	Credit     string `json:"credit"`
}

type LayoutData struct {
	Kind  string       `json:"kind"` // "columns", "accordion", "grid"
	Items []LayoutItem `json:"items"`
}

type LayoutItem struct {
	Title    string `json:"title"`
	Text     string `json:"text"`
	ImageURL string `json:"image_url"`
	LinkURL  string `json:"link_url"`
}

type GalleryData struct {
	Items []GalleryItem `json:"items"`
}

type GalleryItem struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type ActionData struct {
	Label    string `json:"label"`
	URL      string `json:"url"`
	FormType string `json:"form_type"`
}

type VideoData struct {
	VimeoID   string `json:"vimeo_id"`
	YoutubeID string `json:"youtube_id"`
	Title     string `json:"title"`
}

type CatalogData struct {
	Kind string  `json:"kind"` // "meditation" or "article"
	IDs  []int64 `json:"ids"`
}

type QuoteData struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

type HeaderData struct {
	Text  string `json:"text"`
	Level int    `json:"level"`
}
