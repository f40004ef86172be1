package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/pagelift/internal/checkpoint"
	"github.com/xxxsen/pagelift/internal/config"
	"github.com/xxxsen/pagelift/internal/idmap"
	"github.com/xxxsen/pagelift/internal/media"
	"github.com/xxxsen/pagelift/internal/model"
	appErr "github.com/xxxsen/pagelift/internal/pkg/errors"
	"github.com/xxxsen/pagelift/internal/platform"
)

// Source is the slice of the legacy database the migration reads.
type Source interface {
	Authors(ctx context.Context) ([]model.AuthorRow, error)
	Categories(ctx context.Context) ([]model.CategoryRow, error)
	Articles(ctx context.Context) ([]model.ArticleRow, error)
	Pages(ctx context.Context) ([]model.PageRow, error)
	MeditationTitles(ctx context.Context, locale string) (map[int64]string, error)
	MediaFiles(ctx context.Context) ([]model.MediaRow, error)
	Videos(ctx context.Context) ([]model.VideoRow, error)
}

// Migrator drives the phase state machine. One instance runs one migration,
// strictly single-threaded: that is what makes registry and cache sharing
// safe without locks.
type Migrator struct {
	cfg         *config.Config
	source      Source
	client      platform.Client
	ingestor    *media.Ingestor
	checkpoints *checkpoint.Store
	idmaps      *idmap.Store

	cp       *model.Checkpoint
	registry *idmap.Registry
	medIDs   map[string]string // destination meditation title → id, built lazily

	completed int
	skipped   int
}

func New(cfg *config.Config, source Source, client platform.Client, ingestor *media.Ingestor,
	checkpoints *checkpoint.Store, idmaps *idmap.Store) *Migrator {
	return &Migrator{
		cfg:         cfg,
		source:      source,
		client:      client,
		ingestor:    ingestor,
		checkpoints: checkpoints,
		idmaps:      idmaps,
	}
}

type phaseStep struct {
	name string
	run  func(ctx context.Context) error
}

func (m *Migrator) phases() []phaseStep {
	return []phaseStep{
		{model.PhaseImportingAuthors, m.importAuthors},
		{model.PhaseImportingCategories, m.importCategories},
		{model.PhaseImportingArticles, m.importArticles},
		{model.PhaseImportingPages, m.importPages},
		{model.PhaseMeditationTitleMap, m.updateMeditationTitleMap},
		{model.PhaseCreatingForms, m.createForms},
		{model.PhaseImportingMedia, m.importMedia},
		{model.PhaseImportingVideos, m.importVideos},
		{model.PhaseArticlesContent, m.updateArticlesContent},
		{model.PhasePagesContent, m.updatePagesContent},
	}
}

// Run executes the pipeline from the checkpointed phase to done. With resume
// false any previous local state is ignored and the run starts from scratch.
func (m *Migrator) Run(ctx context.Context, resume bool) error {
	if err := m.loadState(resume); err != nil {
		return err
	}
	start := 0
	if resume {
		start = m.resumeIndex(m.phases())
		if start < 0 {
			logutil.GetLogger(ctx).Info("checkpoint already done, nothing to migrate")
			return nil
		}
	}
	return m.runPhases(ctx, start)
}

// Resync re-enters every phase with the saved state loaded, so work items
// already done are skipped and rows added to the legacy source since the last
// run get migrated. This is what scheduled runs execute until cutover.
func (m *Migrator) Resync(ctx context.Context) error {
	if err := m.loadState(true); err != nil {
		return err
	}
	return m.runPhases(ctx, 0)
}

func (m *Migrator) runPhases(ctx context.Context, start int) error {
	logger := logutil.GetLogger(ctx)
	for _, step := range m.phases()[start:] {
		// record the phase before its work starts: a crash mid-phase
		// re-enters the same phase and leans on per-item idempotency
		m.cp.Phase = step.name
		if err := m.saveState(); err != nil {
			return err
		}
		logger.Info("entering phase", zap.String("phase", step.name))
		if err := step.run(ctx); err != nil {
			return fmt.Errorf("phase %s: %w", step.name, err)
		}
	}
	m.cp.Phase = model.PhaseDone
	if err := m.saveState(); err != nil {
		return err
	}
	m.logSummary(ctx)
	return nil
}

func (m *Migrator) resumeIndex(steps []phaseStep) int {
	switch m.cp.Phase {
	case model.PhaseInitializing:
		return 0
	case model.PhaseDone:
		return -1
	}
	for i, step := range steps {
		if step.name == m.cp.Phase {
			return i
		}
	}
	return 0
}

func (m *Migrator) loadState(resume bool) error {
	m.cp = model.NewCheckpoint()
	m.registry = idmap.NewRegistry()
	m.medIDs = nil
	m.completed = 0
	m.skipped = 0
	if !resume {
		return nil
	}
	cp, err := m.checkpoints.Load()
	if err != nil {
		if !appErr.IsNotFound(err) {
			return err
		}
	} else {
		m.cp = cp
	}
	reg, err := m.idmaps.Load()
	if err != nil {
		if !appErr.IsNotFound(err) {
			return err
		}
	} else {
		m.registry = reg
	}
	return nil
}

// saveState flushes checkpoint and id map together. Completed work flushes
// before the next item starts, so an external kill can never lose more than
// the in-flight item.
func (m *Migrator) saveState() error {
	if err := m.checkpoints.Save(m.cp); err != nil {
		return err
	}
	return m.idmaps.Save(m.registry)
}

type failurePolicy int

const (
	// continueOnError logs a row failure and moves on; metadata phases
	// accept partial progress.
	continueOnError failurePolicy = iota
	// abortOnError propagates the first failure; content phases must never
	// leave a half-updated document behind.
	abortOnError
)

type workItem struct {
	key string
	run func(ctx context.Context) (string, error)
}

// errSkipItem marks a work item that cannot run yet. It is recorded neither as
// done nor as failed, so a later re-sync retries it.
var errSkipItem = errors.New("item skipped")

func (m *Migrator) processItems(ctx context.Context, items []workItem, policy failurePolicy) error {
	logger := logutil.GetLogger(ctx)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, done := m.cp.Done(item.key); done {
			m.skipped += 1
			continue
		}
		destID, err := item.run(ctx)
		if errors.Is(err, errSkipItem) {
			continue
		}
		if err != nil {
			if policy == abortOnError || fatalItemErr(err) {
				return fmt.Errorf("%s: %w", item.key, err)
			}
			logger.Error("item failed, continuing",
				zap.String("key", item.key), zap.Error(err))
			m.cp.AddFailure(fmt.Sprintf("%s: %v", item.key, err))
			if err := m.saveState(); err != nil {
				return err
			}
			continue
		}
		m.cp.MarkDone(item.key, destID)
		m.completed += 1
		if err := m.saveState(); err != nil {
			return err
		}
	}
	return nil
}

// fatalItemErr reports failures that abort the run even inside a metadata
// phase: a missing or unconvertible asset corrupts referential integrity for
// every document that references it.
func fatalItemErr(err error) bool {
	return errors.Is(err, appErr.ErrDownload) || errors.Is(err, appErr.ErrConversion)
}

func (m *Migrator) logSummary(ctx context.Context) {
	stats := m.ingestor.Stats()
	logutil.GetLogger(ctx).Info("migration finished",
		zap.Int("items_completed", m.completed),
		zap.Int("items_skipped", m.skipped),
		zap.Int("failures", len(m.cp.Failed)),
		zap.Int("media_uploaded", stats.Uploaded),
		zap.Int("media_reused", stats.Reused))
}

// Reset deletes every destination document carrying the import marker, then
// clears the local checkpoint and id-map files. Editorial documents are never
// touched. Collections are cleared referencing-side first so no document ever
// points at an already-deleted target.
func (m *Migrator) Reset(ctx context.Context) error {
	logger := logutil.GetLogger(ctx)
	for _, collection := range platform.WrittenCollections {
		removed := 0
		for {
			res, err := m.client.Find(ctx, collection, "", platform.Where{
				platform.MarkerField: {Equals: platform.MarkerValue},
			}, 200)
			if err != nil {
				return fmt.Errorf("find imported docs in %s: %w", collection, err)
			}
			if len(res.Docs) == 0 {
				break
			}
			for _, doc := range res.Docs {
				if err := m.client.Delete(ctx, collection, doc.ID); err != nil {
					return fmt.Errorf("delete %s/%s: %w", collection, doc.ID, err)
				}
				removed += 1
			}
		}
		if removed > 0 {
			logger.Info("removed imported documents",
				zap.String("collection", collection), zap.Int("count", removed))
		}
	}
	if err := m.checkpoints.Clear(); err != nil {
		return err
	}
	return m.idmaps.Clear()
}

// DryRun validates both ends without writing anything: the legacy source must
// answer a real query and the destination must be readable.
func (m *Migrator) DryRun(ctx context.Context) error {
	titles, err := m.source.MeditationTitles(ctx, m.cfg.BaseLocale)
	if err != nil {
		return fmt.Errorf("legacy source check: %w", err)
	}
	res, err := m.client.Find(ctx, platform.CollMeditations, m.cfg.BaseLocale, nil, 1)
	if err != nil {
		return fmt.Errorf("destination check: %w", err)
	}
	logutil.GetLogger(ctx).Info("dry run ok",
		zap.Int("legacy_meditations", len(titles)),
		zap.Int("destination_meditations", res.TotalDocs),
		zap.Strings("locales", m.cfg.Locales))
	return nil
}
