package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pagelift/internal/idmap"
	"github.com/xxxsen/pagelift/internal/media"
	"github.com/xxxsen/pagelift/internal/model"
	"github.com/xxxsen/pagelift/internal/platform"
	"github.com/xxxsen/pagelift/internal/richtext"
)

func (m *Migrator) importAuthors(ctx context.Context) error {
	rows, err := m.source.Authors(ctx)
	if err != nil {
		return err
	}
	items := make([]workItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, workItem{
			key: fmt.Sprintf("authors-%d", row.ID),
			run: func(ctx context.Context) (string, error) { return m.createAuthor(ctx, row) },
		})
	}
	return m.processItems(ctx, items, continueOnError)
}

func (m *Migrator) createAuthor(ctx context.Context, row model.AuthorRow) (string, error) {
	base := m.baseAuthorTranslation(row)
	data := map[string]any{"name": base.Name, "slug": base.Slug}
	if strings.TrimSpace(base.Bio) != "" {
		bio, err := richtext.FromMarkdown(base.Bio)
		if err != nil {
			return "", fmt.Errorf("author %d bio (%s): %w", row.ID, base.Locale, err)
		}
		data["bio"] = bio
	}
	if row.PhotoURL != "" {
		// the media phase runs later; ingest the photo now so the
		// relationship exists at create time, dedup reuses it there
		res, err := m.ingestor.Ingest(ctx, media.Ref{
			URL:  row.PhotoURL,
			Alt:  base.Name,
			Tags: []string{"authors"},
		})
		if err != nil {
			return "", err
		}
		m.registry.SetKey(idmap.KindMedia, row.PhotoURL, res.ID)
		data["photo"] = res.ID
	}
	id, err := m.client.Create(ctx, platform.CollAuthors, base.Locale, data, nil)
	if err != nil {
		return "", err
	}
	for _, tr := range row.Translations {
		if tr.Locale == base.Locale {
			continue
		}
		update := map[string]any{"name": tr.Name, "slug": tr.Slug}
		if strings.TrimSpace(tr.Bio) != "" {
			bio, err := richtext.FromMarkdown(tr.Bio)
			if err != nil {
				return "", fmt.Errorf("author %d bio (%s): %w", row.ID, tr.Locale, err)
			}
			update["bio"] = bio
		}
		if err := m.client.Update(ctx, platform.CollAuthors, id, tr.Locale, update, nil); err != nil {
			return "", err
		}
	}
	m.registry.SetID(idmap.KindAuthors, row.ID, id)
	return id, nil
}

func (m *Migrator) baseAuthorTranslation(row model.AuthorRow) model.AuthorTranslation {
	for _, tr := range row.Translations {
		if tr.Locale == m.cfg.BaseLocale {
			return tr
		}
	}
	return row.Translations[0]
}

func (m *Migrator) importCategories(ctx context.Context) error {
	rows, err := m.source.Categories(ctx)
	if err != nil {
		return err
	}
	items := make([]workItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, workItem{
			key: fmt.Sprintf("categories-%d", row.ID),
			run: func(ctx context.Context) (string, error) { return m.createCategory(ctx, row) },
		})
	}
	return m.processItems(ctx, items, continueOnError)
}

func (m *Migrator) createCategory(ctx context.Context, row model.CategoryRow) (string, error) {
	base := row.Translations[0]
	for _, tr := range row.Translations {
		if tr.Locale == m.cfg.BaseLocale {
			base = tr
			break
		}
	}
	id, err := m.client.Create(ctx, platform.CollCategories, base.Locale,
		map[string]any{"name": base.Name, "slug": base.Slug}, nil)
	if err != nil {
		return "", err
	}
	for _, tr := range row.Translations {
		if tr.Locale == base.Locale {
			continue
		}
		err := m.client.Update(ctx, platform.CollCategories, id, tr.Locale,
			map[string]any{"name": tr.Name, "slug": tr.Slug}, nil)
		if err != nil {
			return "", err
		}
	}
	m.registry.SetID(idmap.KindCategories, row.ID, id)
	return id, nil
}

func (m *Migrator) importArticles(ctx context.Context) error {
	rows, err := m.source.Articles(ctx)
	if err != nil {
		return err
	}
	items := make([]workItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, workItem{
			key: fmt.Sprintf("articles-%d", row.ID),
			run: func(ctx context.Context) (string, error) { return m.createArticle(ctx, row) },
		})
	}
	return m.processItems(ctx, items, continueOnError)
}

func (m *Migrator) createArticle(ctx context.Context, row model.ArticleRow) (string, error) {
	logger := logutil.GetLogger(ctx)
	base := basePageTranslation(row.Translations, m.cfg.BaseLocale)
	data := map[string]any{"title": base.Title, "slug": base.Slug}
	if excerpt := strings.TrimSpace(base.Excerpt); excerpt != "" {
		data["excerpt"] = excerpt
	}
	if !base.PublishedAt.IsZero() {
		data["publishedAt"] = base.PublishedAt
	}
	if row.AuthorID != 0 {
		if id, ok := m.registry.ID(idmap.KindAuthors, row.AuthorID); ok {
			data["author"] = id
		} else {
			logger.Warn("article references unmigrated author",
				zap.Int64("article", row.ID), zap.Int64("author", row.AuthorID))
		}
	}
	if row.CategoryID != 0 {
		if id, ok := m.registry.ID(idmap.KindCategories, row.CategoryID); ok {
			data["category"] = id
		} else {
			logger.Warn("article references unmigrated category",
				zap.Int64("article", row.ID), zap.Int64("category", row.CategoryID))
		}
	}
	if row.HeroImageURL != "" {
		res, err := m.ingestor.Ingest(ctx, media.Ref{
			URL:  row.HeroImageURL,
			Alt:  base.Title,
			Tags: []string{"articles"},
		})
		if err != nil {
			return "", err
		}
		m.registry.SetKey(idmap.KindMedia, row.HeroImageURL, res.ID)
		data["heroImage"] = res.ID
	}
	id, err := m.client.Create(ctx, platform.CollArticles, base.Locale, data, nil)
	if err != nil {
		return "", err
	}
	for _, tr := range row.Translations {
		if tr.Locale == base.Locale {
			continue
		}
		update := map[string]any{"title": tr.Title, "slug": tr.Slug}
		if excerpt := strings.TrimSpace(tr.Excerpt); excerpt != "" {
			update["excerpt"] = excerpt
		}
		if err := m.client.Update(ctx, platform.CollArticles, id, tr.Locale, update, nil); err != nil {
			return "", err
		}
	}
	m.registry.SetID(idmap.KindArticles, row.ID, id)
	return id, nil
}

func (m *Migrator) importPages(ctx context.Context) error {
	rows, err := m.source.Pages(ctx)
	if err != nil {
		return err
	}
	items := make([]workItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, workItem{
			key: fmt.Sprintf("pages-%d", row.ID),
			run: func(ctx context.Context) (string, error) { return m.createPage(ctx, row) },
		})
	}
	return m.processItems(ctx, items, continueOnError)
}

func (m *Migrator) createPage(ctx context.Context, row model.PageRow) (string, error) {
	base := basePageTranslation(row.Translations, m.cfg.BaseLocale)
	data := map[string]any{"title": base.Title, "slug": base.Slug}
	if !base.PublishedAt.IsZero() {
		data["publishedAt"] = base.PublishedAt
	}
	id, err := m.client.Create(ctx, platform.CollPages, base.Locale, data, nil)
	if err != nil {
		return "", err
	}
	for _, tr := range row.Translations {
		if tr.Locale == base.Locale {
			continue
		}
		err := m.client.Update(ctx, platform.CollPages, id, tr.Locale,
			map[string]any{"title": tr.Title, "slug": tr.Slug}, nil)
		if err != nil {
			return "", err
		}
	}
	m.registry.SetID(idmap.KindPages, row.ID, id)
	return id, nil
}

func basePageTranslation(translations []model.PageTranslation, baseLocale string) model.PageTranslation {
	for _, tr := range translations {
		if tr.Locale == baseLocale {
			return tr
		}
	}
	return translations[0]
}

// updateMeditationTitleMap snapshots the legacy id → title map into the
// registry. Meditations already live in the destination; only catalog
// references need the titles to bridge the two systems.
func (m *Migrator) updateMeditationTitleMap(ctx context.Context) error {
	titles, err := m.source.MeditationTitles(ctx, m.cfg.BaseLocale)
	if err != nil {
		return err
	}
	for id, title := range titles {
		m.registry.SetID(idmap.KindMeditationTitles, id, title)
	}
	if err := m.saveState(); err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("meditation title map updated", zap.Int("titles", len(titles)))
	return nil
}

// meditationIDsByTitle lists the destination's current meditations once per
// run. Duplicate titles keep the first id seen.
func (m *Migrator) meditationIDsByTitle(ctx context.Context) (map[string]string, error) {
	if m.medIDs != nil {
		return m.medIDs, nil
	}
	res, err := m.client.Find(ctx, platform.CollMeditations, m.cfg.BaseLocale, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("list destination meditations: %w", err)
	}
	byTitle := make(map[string]string, len(res.Docs))
	for _, doc := range res.Docs {
		title, _ := doc.Data["title"].(string)
		title = strings.TrimSpace(title)
		if title == "" {
			continue
		}
		if _, ok := byTitle[title]; !ok {
			byTitle[title] = doc.ID
		}
	}
	m.medIDs = byTitle
	return byTitle, nil
}

var formDefinitions = []struct {
	FormType string
	Title    string
}{
	{"newsletter", "Newsletter Signup"},
	{"contact", "Contact Request"},
}

func (m *Migrator) createForms(ctx context.Context) error {
	items := make([]workItem, 0, len(formDefinitions))
	for _, def := range formDefinitions {
		items = append(items, workItem{
			key: "forms-" + def.FormType,
			run: func(ctx context.Context) (string, error) {
				id, err := m.client.Create(ctx, platform.CollForms, "", map[string]any{
					"title":    def.Title,
					"formType": def.FormType,
				}, nil)
				if err != nil {
					return "", err
				}
				m.registry.SetKey(idmap.KindForms, def.FormType, id)
				return id, nil
			},
		})
	}
	return m.processItems(ctx, items, continueOnError)
}

func (m *Migrator) importMedia(ctx context.Context) error {
	rows, err := m.source.MediaFiles(ctx)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	items := make([]workItem, 0, len(rows))
	for _, row := range rows {
		if row.URL == "" {
			logger.Warn("media row has no url", zap.Int64("media", row.ID))
			continue
		}
		items = append(items, workItem{
			key: "media-" + row.URL,
			run: func(ctx context.Context) (string, error) {
				res, err := m.ingestor.Ingest(ctx, media.Ref{
					URL:    row.URL,
					Alt:    row.AltText,
					Credit: row.Credit,
					Tags:   []string{"library"},
				})
				if err != nil {
					return "", err
				}
				m.registry.SetKey(idmap.KindMedia, row.URL, res.ID)
				return res.ID, nil
			},
		})
	}
	return m.processItems(ctx, items, continueOnError)
}

func (m *Migrator) importVideos(ctx context.Context) error {
	rows, err := m.source.Videos(ctx)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	items := make([]workItem, 0, len(rows))
	for _, row := range rows {
		if row.VimeoID == "" && row.YoutubeID == "" {
			logger.Warn("video row has no provider id", zap.Int64("video", row.ID))
			continue
		}
		items = append(items, workItem{
			key: fmt.Sprintf("videos-%d", row.ID),
			run: func(ctx context.Context) (string, error) { return m.createVideo(ctx, row) },
		})
	}
	return m.processItems(ctx, items, continueOnError)
}

func (m *Migrator) createVideo(ctx context.Context, row model.VideoRow) (string, error) {
	data := map[string]any{"title": row.Title}
	if row.VimeoID != "" {
		data["vimeoId"] = row.VimeoID
	}
	if row.YoutubeID != "" {
		data["youtubeId"] = row.YoutubeID
	}
	id, err := m.client.Create(ctx, platform.CollExternalVideos, "", data, nil)
	if err != nil {
		return "", err
	}
	// register both provider ids so content referencing either resolves
	if row.VimeoID != "" {
		m.registry.SetKey(idmap.KindVideos, row.VimeoID, id)
	}
	if row.YoutubeID != "" {
		m.registry.SetKey(idmap.KindVideos, row.YoutubeID, id)
	}
	return id, nil
}

func (m *Migrator) updateArticlesContent(ctx context.Context) error {
	rows, err := m.source.Articles(ctx)
	if err != nil {
		return err
	}
	var items []workItem
	for _, row := range rows {
		for _, tr := range row.Translations {
			items = append(items, workItem{
				key: fmt.Sprintf("articles-content-%d-%s", row.ID, tr.Locale),
				run: func(ctx context.Context) (string, error) {
					return m.updateContent(ctx, idmap.KindArticles, platform.CollArticles, "article", row.ID, tr)
				},
			})
		}
	}
	return m.processItems(ctx, items, abortOnError)
}

func (m *Migrator) updatePagesContent(ctx context.Context) error {
	rows, err := m.source.Pages(ctx)
	if err != nil {
		return err
	}
	var items []workItem
	for _, row := range rows {
		for _, tr := range row.Translations {
			items = append(items, workItem{
				key: fmt.Sprintf("pages-content-%d-%s", row.ID, tr.Locale),
				run: func(ctx context.Context) (string, error) {
					return m.updateContent(ctx, idmap.KindPages, platform.CollPages, "page", row.ID, tr)
				},
			})
		}
	}
	return m.processItems(ctx, items, abortOnError)
}

func (m *Migrator) updateContent(ctx context.Context, kind idmap.Kind, collection, noun string,
	sourceID int64, tr model.PageTranslation) (string, error) {
	label := fmt.Sprintf("%s %d (%s)", noun, sourceID, tr.Locale)
	destID, ok := m.registry.ID(kind, sourceID)
	if !ok {
		// the metadata row failed earlier; its failure is already on record
		logutil.GetLogger(ctx).Warn("skipping content for unmigrated document",
			zap.String("doc", label))
		return "", errSkipItem
	}
	blocks, err := richtext.DecodeBlocks(tr.Content)
	if err != nil {
		return "", fmt.Errorf("decode blocks of %s: %w", label, err)
	}
	cc, err := m.conversionContext(ctx, tr.Locale, label)
	if err != nil {
		return "", err
	}
	root, err := richtext.Convert(ctx, blocks, cc)
	if err != nil {
		return "", err
	}
	err = m.client.Update(ctx, collection, destID, tr.Locale, map[string]any{"content": root}, nil)
	if err != nil {
		return "", err
	}
	return destID, nil
}

func (m *Migrator) conversionContext(ctx context.Context, locale, label string) (*richtext.ConversionContext, error) {
	medIDs, err := m.meditationIDsByTitle(ctx)
	if err != nil {
		return nil, err
	}
	return &richtext.ConversionContext{
		Locale:           locale,
		Label:            label,
		Media:            m.registry.KeyMap(idmap.KindMedia),
		Forms:            m.registry.KeyMap(idmap.KindForms),
		Videos:           m.registry.KeyMap(idmap.KindVideos),
		Articles:         m.registry.IDMap(idmap.KindArticles),
		MeditationTitles: m.registry.IDMap(idmap.KindMeditationTitles),
		MeditationIDs:    medIDs,
		TitleAliases:     idmap.MergeAliases(m.cfg.TitleAliases),
	}, nil
}
