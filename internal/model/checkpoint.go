package model

import "time"

// Migration phases, in execution order.
const (
	PhaseInitializing        = "initializing"
	PhaseImportingAuthors    = "importing-authors"
	PhaseImportingCategories = "importing-categories"
	PhaseImportingArticles   = "importing-articles"
	PhaseImportingPages      = "importing-pages"
	PhaseMeditationTitleMap  = "updating-meditation-title-map"
	PhaseCreatingForms       = "creating-forms"
	PhaseImportingMedia      = "importing-media"
	PhaseImportingVideos     = "importing-external-videos"
	PhaseArticlesContent     = "updating-articles-content"
	PhasePagesContent        = "updating-pages-content"
	PhaseDone                = "done"
)

// Checkpoint is the single source of truth for idempotent resume. A work-item
// key present in ItemsCreated means "already done, skip". Failed is an
// append-only audit list and never blocks continuation.
type Checkpoint struct {
	Phase        string            `json:"phase"`
	ItemsCreated map[string]string `json:"items_created"`
	Failed       []string          `json:"failed"`
	LastUpdated  time.Time         `json:"last_updated"`
}

func NewCheckpoint() *Checkpoint {
	return &Checkpoint{
		Phase:        PhaseInitializing,
		ItemsCreated: map[string]string{},
		Failed:       []string{},
	}
}

// Done reports whether the work item behind key already produced a
// destination document.
func (c *Checkpoint) Done(key string) (string, bool) {
	id, ok := c.ItemsCreated[key]
	return id, ok
}

func (c *Checkpoint) MarkDone(key, destID string) {
	if c.ItemsCreated == nil {
		c.ItemsCreated = map[string]string{}
	}
	c.ItemsCreated[key] = destID
}

func (c *Checkpoint) AddFailure(desc string) {
	c.Failed = append(c.Failed, desc)
}
