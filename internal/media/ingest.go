package media

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/pagelift/internal/pkg/errors"
	"github.com/xxxsen/pagelift/internal/platform"
)

// Ref identifies one legacy asset plus the metadata its destination document
// should carry.
type Ref struct {
	URL    string
	Alt    string
	Credit string
	Tags   []string
}

type Result struct {
	ID        string
	WasReused bool
}

type Stats struct {
	Uploaded int
	Reused   int
}

// Ingestor downloads legacy assets, transcodes them to JPEG and creates (or
// reuses) destination media documents. Converted bytes are cached on disk
// under a content-addressed name so re-runs never re-download, and resolved
// ids are cached in memory for the rest of the run. Single writer, no
// locking.
type Ingestor struct {
	client   platform.Client
	http     *http.Client
	cacheDir string
	quality  int

	ids      map[string]string // source URL → destination id, this run
	probes   *expirable.LRU[string, string]
	counters Stats
}

func NewIngestor(client platform.Client, cacheDir string, quality int, timeout time.Duration) *Ingestor {
	return &Ingestor{
		client:   client,
		http:     &http.Client{Timeout: timeout},
		cacheDir: cacheDir,
		quality:  quality,
		ids:      make(map[string]string),
		probes:   expirable.NewLRU[string, string](2048, nil, 30*time.Minute),
	}
}

func (g *Ingestor) Stats() Stats {
	return g.counters
}

// Ingest resolves one source asset to a destination media document id.
// Download and conversion failures are fatal: a missing asset would corrupt
// every document that references it downstream.
func (g *Ingestor) Ingest(ctx context.Context, ref Ref) (*Result, error) {
	if id, ok := g.ids[ref.URL]; ok {
		g.counters.Reused += 1
		return &Result{ID: id, WasReused: true}, nil
	}

	data, width, height, err := g.loadConverted(ctx, ref.URL)
	if err != nil {
		return nil, err
	}

	baseName := uploadBaseName(ref.URL)
	existing, err := g.findExisting(ctx, baseName)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := g.mergeTags(ctx, existing, ref.Tags); err != nil {
			return nil, err
		}
		g.ids[ref.URL] = existing.ID
		g.counters.Reused += 1
		logutil.GetLogger(ctx).Debug("reusing destination asset",
			zap.String("url", ref.URL), zap.String("id", existing.ID))
		return &Result{ID: existing.ID, WasReused: true}, nil
	}

	doc := map[string]any{
		"alt":    ref.Alt,
		"width":  width,
		"height": height,
	}
	if ref.Credit != "" {
		doc["credit"] = ref.Credit
	}
	if len(ref.Tags) > 0 {
		doc["tags"] = ref.Tags
	}
	id, err := g.client.Create(ctx, platform.CollMedia, "", doc, &platform.Upload{
		Filename: baseName + ".jpg",
		Data:     data,
		MimeType: "image/jpeg",
		Size:     int64(len(data)),
	})
	if err != nil {
		return nil, fmt.Errorf("create media document for %s: %w", ref.URL, err)
	}
	g.ids[ref.URL] = id
	g.counters.Uploaded += 1
	return &Result{ID: id, WasReused: false}, nil
}

// loadConverted returns the converted JPEG bytes and pixel dimensions for a
// source reference, fetching and transcoding only when the local cache
// misses.
func (g *Ingestor) loadConverted(ctx context.Context, sourceURL string) ([]byte, int, int, error) {
	full := filepath.Join(g.cacheDir, cacheFilename(sourceURL))
	if data, err := os.ReadFile(full); err == nil {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			return data, cfg.Width, cfg.Height, nil
		}
		// unreadable cache entry, rebuild it
	}

	raw, err := g.fetch(ctx, sourceURL)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %s: %v", appErr.ErrDownload, sourceURL, err)
	}
	data, width, height, err := convertJPEG(raw, g.quality)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %s: %v", appErr.ErrConversion, sourceURL, err)
	}
	if err := os.MkdirAll(g.cacheDir, 0o755); err != nil {
		return nil, 0, 0, err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return nil, 0, 0, err
	}
	return data, width, height, nil
}

// fetch reads the asset bytes. http(s) references hit the network, anything
// else is treated as a local filesystem path (legacy exports sometimes ship
// assets on disk next to the dump).
func (g *Ingestor) fetch(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
		if err != nil {
			return nil, err
		}
		resp, err := g.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	}
	return os.ReadFile(ref)
}

// findExisting probes the destination for an earlier upload of baseName. The
// platform appends random suffixes on filename collisions, so the contains
// query is confirmed with an exact pattern before a candidate is accepted,
// and the candidate is re-fetched to prove it still resolves.
func (g *Ingestor) findExisting(ctx context.Context, baseName string) (*platform.Document, error) {
	if id, ok := g.probes.Get(baseName); ok {
		doc, err := g.client.FindByID(ctx, platform.CollMedia, id)
		if err == nil {
			return doc, nil
		}
		if !appErr.IsNotFound(err) {
			return nil, err
		}
		g.probes.Remove(baseName)
	}

	res, err := g.client.Find(ctx, platform.CollMedia, "", platform.Where{
		"filename": {Contains: baseName},
	}, 0)
	if err != nil {
		return nil, fmt.Errorf("probe media %s: %w", baseName, err)
	}
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(baseName) + `(-[a-z0-9]+)?\.jpg$`)
	for _, cand := range res.Docs {
		name, _ := cand.Data["filename"].(string)
		if !pattern.MatchString(name) {
			continue
		}
		doc, err := g.client.FindByID(ctx, platform.CollMedia, cand.ID)
		if err != nil {
			if appErr.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		g.probes.Add(baseName, doc.ID)
		return doc, nil
	}
	return nil, nil
}

// mergeTags adds the requested tags to a reused document, keeping existing
// tags and never duplicating one already present.
func (g *Ingestor) mergeTags(ctx context.Context, doc *platform.Document, requested []string) error {
	if len(requested) == 0 {
		return nil
	}
	existing := toStringSlice(doc.Data["tags"])
	seen := make(map[string]bool, len(existing))
	for _, tag := range existing {
		seen[tag] = true
	}
	merged := existing
	changed := false
	for _, tag := range requested {
		if seen[tag] {
			continue
		}
		merged = append(merged, tag)
		seen[tag] = true
		changed = true
	}
	if !changed {
		return nil
	}
	return g.client.Update(ctx, platform.CollMedia, doc.ID, "", map[string]any{"tags": merged}, nil)
}

func toStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// convertJPEG transcodes any decodable image to JPEG at the given quality and
// reports its pixel dimensions.
func convertJPEG(raw []byte, quality int) ([]byte, int, int, error) {
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, 0, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, 0, 0, err
	}
	bounds := img.Bounds()
	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}

// cacheFilename derives the deterministic local cache name for a source
// reference. Hashing the reference keeps re-downloads idempotent across runs.
func cacheFilename(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:]) + ".jpg"
}

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9-]+`)

// uploadBaseName derives the destination filename stem from the source URL.
func uploadBaseName(sourceURL string) string {
	p := sourceURL
	if u, err := url.Parse(sourceURL); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(p)
	base = strings.TrimSuffix(base, path.Ext(base))
	base = unsafeNameChars.ReplaceAllString(strings.ToLower(base), "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "asset"
	}
	return base
}
