package migrate

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/pagelift/internal/checkpoint"
	"github.com/xxxsen/pagelift/internal/config"
	"github.com/xxxsen/pagelift/internal/idmap"
	"github.com/xxxsen/pagelift/internal/media"
	"github.com/xxxsen/pagelift/internal/model"
	appErr "github.com/xxxsen/pagelift/internal/pkg/errors"
	"github.com/xxxsen/pagelift/internal/platform"
)

type fakeSource struct {
	authors    []model.AuthorRow
	categories []model.CategoryRow
	articles   []model.ArticleRow
	pages      []model.PageRow
	titles     map[int64]string
	media      []model.MediaRow
	videos     []model.VideoRow
}

func (s *fakeSource) Authors(context.Context) ([]model.AuthorRow, error) { return s.authors, nil }
func (s *fakeSource) Categories(context.Context) ([]model.CategoryRow, error) {
	return s.categories, nil
}
func (s *fakeSource) Articles(context.Context) ([]model.ArticleRow, error) { return s.articles, nil }
func (s *fakeSource) Pages(context.Context) ([]model.PageRow, error)      { return s.pages, nil }
func (s *fakeSource) MeditationTitles(context.Context, string) (map[int64]string, error) {
	return s.titles, nil
}
func (s *fakeSource) MediaFiles(context.Context) ([]model.MediaRow, error) { return s.media, nil }
func (s *fakeSource) Videos(context.Context) ([]model.VideoRow, error)     { return s.videos, nil }

type updateCall struct {
	collection string
	id         string
	locale     string
	data       map[string]any
}

type fakeClient struct {
	collections map[string]map[string]map[string]any
	order       map[string][]string
	updateLog   []updateCall
	creates     int
	updates     int
	deletes     int
	nextID      int
	createErr   func(collection string) error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		collections: map[string]map[string]map[string]any{},
		order:       map[string][]string{},
	}
}

func (f *fakeClient) put(collection, id string, data map[string]any) {
	if f.collections[collection] == nil {
		f.collections[collection] = map[string]map[string]any{}
	}
	f.collections[collection][id] = data
	f.order[collection] = append(f.order[collection], id)
}

// seed inserts a document without the import marker, standing in for
// editorial content that predates the migration.
func (f *fakeClient) seed(collection string, data map[string]any) string {
	f.nextID += 1
	id := fmt.Sprintf("%s-%d", collection, f.nextID)
	f.put(collection, id, copyDoc(data))
	return id
}

func (f *fakeClient) Create(_ context.Context, collection, _ string, data map[string]any, file *platform.Upload) (string, error) {
	if f.createErr != nil {
		if err := f.createErr(collection); err != nil {
			return "", err
		}
	}
	f.nextID += 1
	f.creates += 1
	id := fmt.Sprintf("%s-%d", collection, f.nextID)
	doc := map[string]any{platform.MarkerField: platform.MarkerValue}
	for k, v := range data {
		doc[k] = v
	}
	if file != nil {
		doc["filename"] = file.Filename
	}
	f.put(collection, id, doc)
	return id, nil
}

func (f *fakeClient) Update(_ context.Context, collection, id, locale string, data map[string]any, _ *platform.Upload) error {
	doc, ok := f.collections[collection][id]
	if !ok {
		return appErr.ErrNotFound
	}
	for k, v := range data {
		doc[k] = v
	}
	f.updates += 1
	f.updateLog = append(f.updateLog, updateCall{collection: collection, id: id, locale: locale, data: data})
	return nil
}

func (f *fakeClient) Find(_ context.Context, collection, _ string, where platform.Where, limit int) (*platform.FindResult, error) {
	res := &platform.FindResult{}
	for _, id := range f.order[collection] {
		data, ok := f.collections[collection][id]
		if !ok || !whereMatches(data, where) {
			continue
		}
		res.TotalDocs += 1
		if limit > 0 && len(res.Docs) >= limit {
			continue
		}
		res.Docs = append(res.Docs, platform.Document{ID: id, Data: copyDoc(data)})
	}
	return res, nil
}

func (f *fakeClient) FindByID(_ context.Context, collection, id string) (*platform.Document, error) {
	data, ok := f.collections[collection][id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	return &platform.Document{ID: id, Data: copyDoc(data)}, nil
}

func (f *fakeClient) Delete(_ context.Context, collection, id string) error {
	if _, ok := f.collections[collection][id]; !ok {
		return appErr.ErrNotFound
	}
	delete(f.collections[collection], id)
	f.deletes += 1
	return nil
}

func whereMatches(data map[string]any, where platform.Where) bool {
	for field, cond := range where {
		v := data[field]
		if cond.Contains != "" {
			s, ok := v.(string)
			if !ok || !strings.Contains(s, cond.Contains) {
				return false
			}
			continue
		}
		if v != cond.Equals {
			return false
		}
	}
	return true
}

func copyDoc(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out
}

type imageServer struct {
	*httptest.Server
	mu   sync.Mutex
	fail map[string]bool
	hits map[string]int
}

func newImageServer(t *testing.T) *imageServer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 2))))
	body := buf.Bytes()

	s := &imageServer{fail: map[string]bool{}, hits: map[string]int{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path] += 1
		failed := s.fail[r.URL.Path]
		s.mu.Unlock()
		if failed {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *imageServer) setFail(path string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[path] = fail
}

func (s *imageServer) hitCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

type testEnv struct {
	cfg      *config.Config
	source   *fakeSource
	client   *fakeClient
	ingestor *media.Ingestor
	cpStore  *checkpoint.Store
	idStore  *idmap.Store
	migrator *Migrator
}

func newTestEnv(t *testing.T, source *fakeSource, client *fakeClient) *testEnv {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Locales:    []string{"en", "de"},
		BaseLocale: "en",
		CacheDir:   dir,
		Media:      config.MediaConfig{JPEGQuality: 82, DownloadTimeoutSec: 5},
	}
	env := &testEnv{
		cfg:     cfg,
		source:  source,
		client:  client,
		cpStore: checkpoint.NewStore(dir),
		idStore: idmap.NewStore(dir),
	}
	env.ingestor = media.NewIngestor(client, dir, cfg.Media.JPEGQuality, 5*time.Second)
	env.migrator = New(cfg, source, client, env.ingestor, env.cpStore, env.idStore)
	return env
}

// restart builds a fresh Migrator over the same stores and destination,
// the way a new process invocation would.
func (e *testEnv) restart() *Migrator {
	ingestor := media.NewIngestor(e.client, e.cfg.CacheDir, e.cfg.Media.JPEGQuality, 5*time.Second)
	return New(e.cfg, e.source, e.client, ingestor, e.cpStore, e.idStore)
}

func contentUpdate(t *testing.T, f *fakeClient, collection, id, locale string) *model.Root {
	t.Helper()
	for _, call := range f.updateLog {
		if call.collection != collection || call.id != id || call.locale != locale {
			continue
		}
		if root, ok := call.data["content"].(*model.Root); ok {
			return root
		}
	}
	t.Fatalf("no content update for %s/%s (%s)", collection, id, locale)
	return nil
}

func TestRunMigratesEverythingAndResumeSkips(t *testing.T) {
	srv := newImageServer(t)
	annaURL := srv.URL + "/anna.png"
	heroURL := srv.URL + "/hero.png"
	libURL := srv.URL + "/library.png"

	client := newFakeClient()
	medID := client.seed(platform.CollMeditations, map[string]any{"title": "Morning Calm"})

	enArticleContent := `[
		{"type":"paragraph","data":{"text":"Start with <b>breath</b>."}},
		{"type":"catalog","data":{"kind":"meditation","ids":[11]}},
		{"type":"video","data":{"vimeo_id":"vim-1"}}
	]`
	pageContent := `[{"type":"paragraph","data":{"text":"About us","variant":"header","level":1}}]`
	published := time.Date(2021, time.March, 14, 10, 0, 0, 0, time.UTC)

	source := &fakeSource{
		authors: []model.AuthorRow{{
			ID:       1,
			PhotoURL: annaURL,
			Translations: []model.AuthorTranslation{
				{Locale: "en", Name: "Anna Bell", Slug: "anna-bell", Bio: "Loves **quiet** mornings."},
				{Locale: "de", Name: "Anna Bell", Slug: "anna-bell"},
			},
		}},
		categories: []model.CategoryRow{{
			ID: 3,
			Translations: []model.CategoryTranslation{
				{Locale: "en", Name: "Sleep", Slug: "sleep"},
				{Locale: "de", Name: "Schlaf", Slug: "schlaf"},
			},
		}},
		articles: []model.ArticleRow{{
			ID: 7, AuthorID: 1, CategoryID: 3, HeroImageURL: heroURL,
			Translations: []model.PageTranslation{
				{Locale: "en", Title: "Better Sleep", Slug: "better-sleep", Excerpt: "  Rest well.  ",
					Content: []byte(enArticleContent), PublishedAt: published},
				{Locale: "de", Title: "Besser Schlafen", Slug: "besser-schlafen"},
			},
		}},
		pages: []model.PageRow{{
			ID: 2,
			Translations: []model.PageTranslation{
				{Locale: "en", Title: "About", Slug: "about", Content: []byte(pageContent)},
			},
		}},
		titles: map[int64]string{11: "Morning Calm"},
		media: []model.MediaRow{
			{ID: 21, URL: heroURL, AltText: "Hero shot", Credit: "Studio"},
			{ID: 22, URL: libURL, AltText: "Library shot"},
		},
		videos: []model.VideoRow{
			{ID: 31, VimeoID: "vim-1", YoutubeID: "yt-9", Title: "Breathing"},
			{ID: 32, Title: "no provider id, skipped"},
		},
	}

	env := newTestEnv(t, source, client)
	require.NoError(t, env.migrator.Run(context.Background(), false))

	cp, err := env.cpStore.Load()
	require.NoError(t, err)
	require.Equal(t, model.PhaseDone, cp.Phase)
	require.Empty(t, cp.Failed)
	require.Len(t, cp.ItemsCreated, 12)
	for _, key := range []string{
		"authors-1", "categories-3", "articles-7", "pages-2",
		"forms-newsletter", "forms-contact",
		"media-" + heroURL, "media-" + libURL, "videos-31",
		"articles-content-7-en", "articles-content-7-de", "pages-content-2-en",
	} {
		_, done := cp.Done(key)
		require.True(t, done, key)
	}

	require.Equal(t, 10, client.creates)
	require.Equal(t, 6, client.updates)
	require.Equal(t, media.Stats{Uploaded: 3, Reused: 1}, env.ingestor.Stats())

	// hero is ingested while creating the article; the media phase reuses it
	require.Equal(t, 1, srv.hitCount("/hero.png"))

	authorID, _ := cp.Done("authors-1")
	author := client.collections[platform.CollAuthors][authorID]
	require.Equal(t, "Anna Bell", author["name"])
	require.NotEmpty(t, author["photo"])
	require.NotNil(t, author["bio"])

	articleID, _ := cp.Done("articles-7")
	categoryID, _ := cp.Done("categories-3")
	heroID, _ := cp.Done("media-" + heroURL)
	article := client.collections[platform.CollArticles][articleID]
	require.Equal(t, authorID, article["author"])
	require.Equal(t, categoryID, article["category"])
	require.Equal(t, heroID, article["heroImage"])
	require.Equal(t, "Rest well.", article["excerpt"])
	require.Equal(t, published, article["publishedAt"])

	videoID, _ := cp.Done("videos-31")
	video := client.collections[platform.CollExternalVideos][videoID]
	require.Equal(t, "vim-1", video["vimeoId"])
	require.Equal(t, "yt-9", video["youtubeId"])

	root := contentUpdate(t, client, platform.CollArticles, articleID, "en")
	require.Len(t, root.Children, 3)
	para, ok := root.Children[0].(*model.ParagraphNode)
	require.True(t, ok)
	require.Len(t, para.Children, 3)
	med, ok := root.Children[1].(*model.RelationshipNode)
	require.True(t, ok)
	require.Equal(t, platform.CollMeditations, med.RelationTo)
	require.Equal(t, medID, med.Value)
	vid, ok := root.Children[2].(*model.RelationshipNode)
	require.True(t, ok)
	require.Equal(t, platform.CollExternalVideos, vid.RelationTo)
	require.Equal(t, videoID, vid.Value)

	deRoot := contentUpdate(t, client, platform.CollArticles, articleID, "de")
	require.Len(t, deRoot.Children, 1)
	require.IsType(t, &model.ParagraphNode{}, deRoot.Children[0])

	pageID, _ := cp.Done("pages-2")
	pageRoot := contentUpdate(t, client, platform.CollPages, pageID, "en")
	require.Len(t, pageRoot.Children, 1)
	heading, ok := pageRoot.Children[0].(*model.HeadingNode)
	require.True(t, ok)
	require.Equal(t, "h1", heading.Tag)

	// resuming a finished run writes nothing
	require.NoError(t, env.restart().Run(context.Background(), true))
	require.Equal(t, 10, client.creates)
	require.Equal(t, 6, client.updates)
}

func TestResumeAfterFatalAbort(t *testing.T) {
	srv := newImageServer(t)
	libA := srv.URL + "/lib-a.png"
	libB := srv.URL + "/lib-b.png"
	srv.setFail("/lib-b.png", true)

	client := newFakeClient()
	source := &fakeSource{
		authors: []model.AuthorRow{{
			ID:           1,
			Translations: []model.AuthorTranslation{{Locale: "en", Name: "Jon Low", Slug: "jon-low"}},
		}},
		articles: []model.ArticleRow{{
			ID: 7, AuthorID: 1,
			Translations: []model.PageTranslation{{Locale: "en", Title: "Calm", Slug: "calm"}},
		}},
		titles: map[int64]string{},
		media: []model.MediaRow{
			{ID: 22, URL: libA, AltText: "A"},
			{ID: 23, URL: libB, AltText: "B"},
		},
		videos: []model.VideoRow{{ID: 31, VimeoID: "vim-1", Title: "Breathing"}},
	}

	env := newTestEnv(t, source, client)
	err := env.migrator.Run(context.Background(), false)
	require.Error(t, err)
	require.ErrorIs(t, err, appErr.ErrDownload)
	require.Contains(t, err.Error(), model.PhaseImportingMedia)

	cp, err := env.cpStore.Load()
	require.NoError(t, err)
	require.Equal(t, model.PhaseImportingMedia, cp.Phase)
	require.Len(t, cp.ItemsCreated, 5)
	require.Equal(t, 5, client.creates)

	srv.setFail("/lib-b.png", false)
	require.NoError(t, env.restart().Run(context.Background(), true))

	cp, err = env.cpStore.Load()
	require.NoError(t, err)
	require.Equal(t, model.PhaseDone, cp.Phase)
	require.Len(t, cp.ItemsCreated, 8)
	require.Equal(t, 7, client.creates)

	// the completed item is skipped on resume, not refetched
	require.Equal(t, 1, srv.hitCount("/lib-a.png"))
	require.Equal(t, 2, srv.hitCount("/lib-b.png"))
	require.Len(t, client.collections[platform.CollAuthors], 1)
	require.Len(t, client.collections[platform.CollMedia], 2)
}

func TestResyncPicksUpNewRows(t *testing.T) {
	client := newFakeClient()
	source := &fakeSource{
		authors: []model.AuthorRow{{
			ID:           1,
			Translations: []model.AuthorTranslation{{Locale: "en", Name: "Jon Low", Slug: "jon-low"}},
		}},
		titles: map[int64]string{},
	}
	env := newTestEnv(t, source, client)
	require.NoError(t, env.migrator.Run(context.Background(), false))
	require.Equal(t, 3, client.creates) // author plus two forms

	source.authors = append(source.authors, model.AuthorRow{
		ID:           2,
		Translations: []model.AuthorTranslation{{Locale: "en", Name: "Mia Ruth", Slug: "mia-ruth"}},
	})
	require.NoError(t, env.restart().Resync(context.Background()))
	require.Equal(t, 4, client.creates)
	require.Len(t, client.collections[platform.CollAuthors], 2)

	cp, err := env.cpStore.Load()
	require.NoError(t, err)
	_, done := cp.Done("authors-2")
	require.True(t, done)
}

func TestMetadataRowFailureContinues(t *testing.T) {
	client := newFakeClient()
	client.createErr = func(collection string) error {
		if collection == platform.CollCategories {
			return fmt.Errorf("validation failed")
		}
		return nil
	}
	source := &fakeSource{
		authors: []model.AuthorRow{{
			ID:           1,
			Translations: []model.AuthorTranslation{{Locale: "en", Name: "Jon Low", Slug: "jon-low"}},
		}},
		categories: []model.CategoryRow{{
			ID:           3,
			Translations: []model.CategoryTranslation{{Locale: "en", Name: "Sleep", Slug: "sleep"}},
		}},
		titles: map[int64]string{},
	}

	env := newTestEnv(t, source, client)
	require.NoError(t, env.migrator.Run(context.Background(), false))

	cp, err := env.cpStore.Load()
	require.NoError(t, err)
	require.Equal(t, model.PhaseDone, cp.Phase)
	require.Len(t, cp.Failed, 1)
	require.Contains(t, cp.Failed[0], "categories-3")
	require.Len(t, cp.ItemsCreated, 3)
	_, done := cp.Done("categories-3")
	require.False(t, done)
	require.Equal(t, 3, client.creates)
}

func TestResyncRetriesContentAfterRowFailure(t *testing.T) {
	client := newFakeClient()
	client.createErr = func(collection string) error {
		if collection == platform.CollArticles {
			return fmt.Errorf("validation failed")
		}
		return nil
	}
	source := &fakeSource{
		articles: []model.ArticleRow{{
			ID: 7,
			Translations: []model.PageTranslation{{
				Locale: "en", Title: "Calm", Slug: "calm",
				Content: []byte(`[{"type":"paragraph","data":{"text":"Breathe."}}]`),
			}},
		}},
		titles: map[int64]string{},
	}

	env := newTestEnv(t, source, client)
	require.NoError(t, env.migrator.Run(context.Background(), false))
	require.Equal(t, 2, client.creates) // the two forms

	cp, err := env.cpStore.Load()
	require.NoError(t, err)
	require.Contains(t, cp.Failed[0], "articles-7")
	_, done := cp.Done("articles-content-7-en")
	require.False(t, done, "content of a failed row must stay retryable")

	// destination validation fixed, the next scheduled pass picks the row up
	client.createErr = nil
	require.NoError(t, env.restart().Resync(context.Background()))
	require.Equal(t, 3, client.creates)

	cp, err = env.cpStore.Load()
	require.NoError(t, err)
	articleID, done := cp.Done("articles-7")
	require.True(t, done)
	_, done = cp.Done("articles-content-7-en")
	require.True(t, done)
	root := contentUpdate(t, client, platform.CollArticles, articleID, "en")
	require.Len(t, root.Children, 1)
}

func TestContentFailureAborts(t *testing.T) {
	client := newFakeClient()
	source := &fakeSource{
		articles: []model.ArticleRow{{
			ID: 7,
			Translations: []model.PageTranslation{{
				Locale: "en", Title: "Calm", Slug: "calm",
				Content: []byte(`[{"type":"catalog","data":{"kind":"article","ids":"bogus"}}]`),
			}},
		}},
		titles: map[int64]string{},
	}

	env := newTestEnv(t, source, client)
	err := env.migrator.Run(context.Background(), false)
	require.Error(t, err)
	require.Contains(t, err.Error(), "articles-content-7-en")
	require.Contains(t, err.Error(), "catalog")

	cp, err := env.cpStore.Load()
	require.NoError(t, err)
	require.Equal(t, model.PhaseArticlesContent, cp.Phase)
	_, done := cp.Done("articles-content-7-en")
	require.False(t, done)

	// no partial content reaches the destination document
	articleID, _ := cp.Done("articles-7")
	_, hasContent := client.collections[platform.CollArticles][articleID]["content"]
	require.False(t, hasContent)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	client := newFakeClient()
	source := &fakeSource{
		authors: []model.AuthorRow{{
			ID:           1,
			Translations: []model.AuthorTranslation{{Locale: "en", Name: "Jon Low", Slug: "jon-low"}},
		}},
	}
	env := newTestEnv(t, source, client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := env.migrator.Run(ctx, false)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, client.creates)

	// the interrupted phase stays checkpointed for the next invocation
	cp, err := env.cpStore.Load()
	require.NoError(t, err)
	require.Equal(t, model.PhaseImportingAuthors, cp.Phase)
}

func TestReset(t *testing.T) {
	client := newFakeClient()
	medID := client.seed(platform.CollMeditations, map[string]any{"title": "Morning Calm"})
	env := newTestEnv(t, &fakeSource{}, client)

	ctx := context.Background()
	_, err := client.Create(ctx, platform.CollArticles, "en", map[string]any{"title": "A"}, nil)
	require.NoError(t, err)
	_, err = client.Create(ctx, platform.CollMedia, "", map[string]any{"alt": "x"}, nil)
	require.NoError(t, err)
	require.NoError(t, env.cpStore.Save(model.NewCheckpoint()))
	require.NoError(t, env.idStore.Save(idmap.NewRegistry()))

	require.NoError(t, env.migrator.Reset(ctx))

	require.Empty(t, client.collections[platform.CollArticles])
	require.Empty(t, client.collections[platform.CollMedia])
	require.Contains(t, client.collections[platform.CollMeditations], medID)
	require.Equal(t, 2, client.deletes)

	_, err = env.cpStore.Load()
	require.True(t, appErr.IsNotFound(err))
	_, err = env.idStore.Load()
	require.True(t, appErr.IsNotFound(err))
}

func TestDryRunWritesNothing(t *testing.T) {
	client := newFakeClient()
	client.seed(platform.CollMeditations, map[string]any{"title": "Morning Calm"})
	source := &fakeSource{titles: map[int64]string{11: "Morning Calm"}}

	env := newTestEnv(t, source, client)
	require.NoError(t, env.migrator.DryRun(context.Background()))
	require.Equal(t, 0, client.creates)
	require.Equal(t, 0, client.updates)
}
