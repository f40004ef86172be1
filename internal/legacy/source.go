package legacy

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"
	_ "github.com/lib/pq"

	"github.com/xxxsen/pagelift/internal/model"
	"github.com/xxxsen/pagelift/internal/pkg/dbutil"
)

// Source reads the legacy CMS database. Everything here is read-only; the
// migration never writes back to the legacy side.
type Source struct {
	db *sql.DB
}

func Open(databaseURL string) (*Source, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("legacy database ping failed: %w", err)
	}
	return &Source{db: db}, nil
}

func (s *Source) Close() error {
	return s.db.Close()
}

const authorQuery = `
SELECT a.id, COALESCE(a.photo_url, ''), t.locale, t.name, COALESCE(t.slug, ''), COALESCE(t.bio, '')
FROM authors a
JOIN author_translations t ON t.author_id = a.id
ORDER BY a.id, t.locale`

func (s *Source) Authors(ctx context.Context) ([]model.AuthorRow, error) {
	query, args := dbutil.Finalize(authorQuery, nil)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query authors: %w", err)
	}
	defer rows.Close()

	var out []model.AuthorRow
	for rows.Next() {
		var (
			id    int64
			photo string
			tr    model.AuthorTranslation
		)
		if err := rows.Scan(&id, &photo, &tr.Locale, &tr.Name, &tr.Slug, &tr.Bio); err != nil {
			return nil, fmt.Errorf("scan author row: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, model.AuthorRow{ID: id, PhotoURL: photo})
		}
		last := &out[len(out)-1]
		last.Translations = append(last.Translations, tr)
	}
	return out, rows.Err()
}

const categoryQuery = `
SELECT c.id, t.locale, t.name, COALESCE(t.slug, '')
FROM categories c
JOIN category_translations t ON t.category_id = c.id
ORDER BY c.id, t.locale`

func (s *Source) Categories(ctx context.Context) ([]model.CategoryRow, error) {
	query, args := dbutil.Finalize(categoryQuery, nil)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []model.CategoryRow
	for rows.Next() {
		var (
			id int64
			tr model.CategoryTranslation
		)
		if err := rows.Scan(&id, &tr.Locale, &tr.Name, &tr.Slug); err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, model.CategoryRow{ID: id})
		}
		last := &out[len(out)-1]
		last.Translations = append(last.Translations, tr)
	}
	return out, rows.Err()
}

const articleQuery = `
SELECT a.id, COALESCE(a.author_id, 0), COALESCE(a.category_id, 0), COALESCE(a.hero_image_url, ''),
       t.locale, t.title, COALESCE(t.slug, ''), COALESCE(t.excerpt, ''), COALESCE(t.content::text, ''), t.published_at
FROM articles a
JOIN article_translations t ON t.article_id = a.id
WHERE t.state = ?
ORDER BY a.id, t.locale`

func (s *Source) Articles(ctx context.Context) ([]model.ArticleRow, error) {
	query, args := dbutil.Finalize(articleQuery, []interface{}{model.StatePublished})
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []model.ArticleRow
	for rows.Next() {
		var (
			row         model.ArticleRow
			tr          model.PageTranslation
			content     string
			publishedAt sql.NullTime
		)
		if err := rows.Scan(&row.ID, &row.AuthorID, &row.CategoryID, &row.HeroImageURL,
			&tr.Locale, &tr.Title, &tr.Slug, &tr.Excerpt, &content, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		tr.Content = []byte(content)
		if publishedAt.Valid {
			tr.PublishedAt = publishedAt.Time
		}
		if len(out) == 0 || out[len(out)-1].ID != row.ID {
			out = append(out, row)
		}
		last := &out[len(out)-1]
		last.Translations = append(last.Translations, tr)
	}
	return out, rows.Err()
}

const pageQuery = `
SELECT p.id, t.locale, t.title, COALESCE(t.slug, ''), COALESCE(t.content::text, ''), t.published_at
FROM pages p
JOIN page_translations t ON t.page_id = p.id
WHERE t.state = ?
ORDER BY p.id, t.locale`

func (s *Source) Pages(ctx context.Context) ([]model.PageRow, error) {
	query, args := dbutil.Finalize(pageQuery, []interface{}{model.StatePublished})
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	var out []model.PageRow
	for rows.Next() {
		var (
			id          int64
			tr          model.PageTranslation
			content     string
			publishedAt sql.NullTime
		)
		if err := rows.Scan(&id, &tr.Locale, &tr.Title, &tr.Slug, &content, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		tr.Content = []byte(content)
		if publishedAt.Valid {
			tr.PublishedAt = publishedAt.Time
		}
		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, model.PageRow{ID: id})
		}
		last := &out[len(out)-1]
		last.Translations = append(last.Translations, tr)
	}
	return out, rows.Err()
}

// MeditationTitles returns the numeric meditation id → title map for one
// locale. Meditations themselves are not migrated; the map only feeds
// catalog-reference resolution.
func (s *Source) MeditationTitles(ctx context.Context, locale string) (map[int64]string, error) {
	query, args, err := builder.BuildSelect("meditation_translations",
		map[string]interface{}{"locale": locale},
		[]string{"meditation_id", "title"})
	if err != nil {
		return nil, err
	}
	query, args = dbutil.Finalize(query, args)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query meditation titles: %w", err)
	}
	defer rows.Close()

	titles := make(map[int64]string)
	for rows.Next() {
		var (
			id    int64
			title string
		)
		if err := rows.Scan(&id, &title); err != nil {
			return nil, fmt.Errorf("scan meditation title: %w", err)
		}
		titles[id] = title
	}
	return titles, rows.Err()
}

func (s *Source) MediaFiles(ctx context.Context) ([]model.MediaRow, error) {
	query, args, err := builder.BuildSelect("media_files",
		map[string]interface{}{"_orderby": "id"},
		[]string{"id", "url", "alt_text", "credit"})
	if err != nil {
		return nil, err
	}
	query, args = dbutil.Finalize(query, args)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query media files: %w", err)
	}
	defer rows.Close()

	var out []model.MediaRow
	for rows.Next() {
		var (
			row     model.MediaRow
			altText sql.NullString
			credit  sql.NullString
		)
		if err := rows.Scan(&row.ID, &row.URL, &altText, &credit); err != nil {
			return nil, fmt.Errorf("scan media row: %w", err)
		}
		row.AltText = altText.String
		row.Credit = credit.String
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Source) Videos(ctx context.Context) ([]model.VideoRow, error) {
	query, args, err := builder.BuildSelect("videos",
		map[string]interface{}{"_orderby": "id"},
		[]string{"id", "vimeo_id", "youtube_id", "title"})
	if err != nil {
		return nil, err
	}
	query, args = dbutil.Finalize(query, args)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	var out []model.VideoRow
	for rows.Next() {
		var (
			row     model.VideoRow
			vimeo   sql.NullString
			youtube sql.NullString
			title   sql.NullString
		)
		if err := rows.Scan(&row.ID, &vimeo, &youtube, &title); err != nil {
			return nil, fmt.Errorf("scan video row: %w", err)
		}
		row.VimeoID = vimeo.String
		row.YoutubeID = youtube.String
		row.Title = title.String
		out = append(out, row)
	}
	return out, rows.Err()
}
