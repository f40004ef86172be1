package model

import "time"

// Rows read from the legacy relational CMS. Entities follow the
// parent-table + translations pattern; only published translations are loaded.

const StatePublished = "published"

type AuthorTranslation struct {
	Locale string
	Name   string
	Slug   string
	Bio    string // markdown-authored in the legacy admin
}

type AuthorRow struct {
	ID           int64
	PhotoURL     string
	Translations []AuthorTranslation
}

type CategoryTranslation struct {
	Locale string
	Name   string
	Slug   string
}

type CategoryRow struct {
	ID           int64
	Translations []CategoryTranslation
}

// PageTranslation is shared by every page-like kind (articles, pages):
// localized metadata plus the raw content block sequence.
type PageTranslation struct {
	Locale      string
	Title       string
	Slug        string
	Excerpt     string
	Content     []byte // JSON block sequence; may be empty or "null"
	PublishedAt time.Time
}

type ArticleRow struct {
	ID           int64
	AuthorID     int64
	CategoryID   int64
	HeroImageURL string
	Translations []PageTranslation
}

type PageRow struct {
	ID           int64
	Translations []PageTranslation
}

type MediaRow struct {
	ID      int64
	URL     string
	AltText string
	Credit  string
}

type VideoRow struct {
	ID        int64
	VimeoID   string
	YoutubeID string
	Title     string
}
