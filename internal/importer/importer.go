package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"mangasync/internal/config"
	"mangasync/internal/retry"
	"mangasync/pkg/models"
)

// ErrRunInProgress means a run could not start because another one holds the
// single run slot.
var ErrRunInProgress = errors.New("import run already in progress")

// Source is the external catalog the importer pulls from.
type Source interface {
	PopularTitles(ctx context.Context, limit int) ([]models.Manga, error)
	TitleChapters(ctx context.Context, titleSourceID string, limit int) ([]models.Chapter, error)
	ChapterPages(ctx context.Context, chapterSourceID string) ([]models.Page, error)
}

// Store is the local catalog the importer reconciles into.
type Store interface {
	UpsertManga(ctx context.Context, m models.Manga) (string, error)
	ChapterExists(ctx context.Context, sourceID string) (bool, error)
	InsertChapter(ctx context.Context, ch models.Chapter) error
	RefreshTotalChapters(ctx context.Context, mangaID string) (int, error)
}

// Status is a snapshot of the current or most recent run.
type Status struct {
	State         string    `json:"state"` // idle | running | done | failed
	StartedAt     time.Time `json:"started_at,omitempty"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
	TitlesSynced  int       `json:"titles_synced"`
	TitlesFailed  int       `json:"titles_failed"`
	ChaptersAdded int       `json:"chapters_added"`
	LastError     string    `json:"last_error,omitempty"`
}

// Importer reconciles the external catalog into the local store.
//
// One run: fetch the popular-titles page, upsert each title, fetch its
// chapter feed, snapshot pages for chapters never seen before, then recompute
// the title's chapter count. Failures below the per-title/per-chapter
// boundary are logged and skipped; only a failed popular-titles fetch aborts
// the run.
type Importer struct {
	src     Source
	store   Store
	retry   *retry.Runner
	limiter *rate.Limiter
	slot    *semaphore.Weighted
	cfg     config.SyncConfig
	log     zerolog.Logger

	mu     sync.Mutex
	status Status
}

func New(src Source, store Store, r *retry.Runner, cfg config.SyncConfig, log zerolog.Logger) *Importer {
	return &Importer{
		src:   src,
		store: store,
		retry: r,
		// Courtesy throttle: one outbound call per CallDelay, independent of
		// the retry layer's reactive backoff.
		limiter: rate.NewLimiter(rate.Every(cfg.CallDelay), 1),
		slot:    semaphore.NewWeighted(1),
		cfg:     cfg,
		log:     log,
		status:  Status{State: "idle"},
	}
}

// RunOnce performs one synchronous run. Returns ErrRunInProgress if another
// run holds the slot.
func (imp *Importer) RunOnce(ctx context.Context) error {
	if !imp.slot.TryAcquire(1) {
		return ErrRunInProgress
	}
	defer imp.slot.Release(1)
	return imp.run(ctx)
}

// TriggerAsync starts a run in the background and returns immediately.
// Callers observe the run through Status.
func (imp *Importer) TriggerAsync() error {
	if !imp.slot.TryAcquire(1) {
		return ErrRunInProgress
	}
	go func() {
		defer imp.slot.Release(1)
		ctx, cancel := context.WithTimeout(context.Background(), imp.cfg.RunTimeout)
		defer cancel()
		if err := imp.run(ctx); err != nil {
			imp.log.Error().Err(err).Msg("triggered import run failed")
		}
	}()
	return nil
}

// Status returns a snapshot of the current or last run.
func (imp *Importer) Status() Status {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	return imp.status
}

func (imp *Importer) run(ctx context.Context) error {
	imp.begin()
	imp.log.Info().Int("title_limit", imp.cfg.TitleLimit).Msg("import run started")

	var titles []models.Manga
	err := imp.retry.Do(ctx, "popular titles", func(ctx context.Context) error {
		if err := imp.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		titles, err = imp.src.PopularTitles(ctx, imp.cfg.TitleLimit)
		return err
	})
	if err != nil {
		// Fatal at entry: with no title list there is nothing to reconcile.
		imp.finish(err)
		return fmt.Errorf("fetch popular titles: %w", err)
	}

	for _, title := range titles {
		if ctx.Err() != nil {
			imp.finish(ctx.Err())
			return ctx.Err()
		}

		added, err := imp.syncTitle(ctx, title)
		imp.mu.Lock()
		imp.status.ChaptersAdded += added
		if err != nil {
			imp.status.TitlesFailed++
		} else {
			imp.status.TitlesSynced++
		}
		imp.mu.Unlock()

		if err != nil {
			// One bad title must not abort the run.
			imp.log.Warn().Err(err).
				Str("title", title.Title).
				Str("source_id", title.SourceID).
				Msg("title sync failed, continuing")
		}
	}

	imp.finish(nil)
	st := imp.Status()
	imp.log.Info().
		Int("titles_synced", st.TitlesSynced).
		Int("titles_failed", st.TitlesFailed).
		Int("chapters_added", st.ChaptersAdded).
		Msg("import run finished")
	return nil
}

func (imp *Importer) syncTitle(ctx context.Context, title models.Manga) (int, error) {
	id, err := imp.store.UpsertManga(ctx, title)
	if err != nil {
		return 0, err
	}

	var chapters []models.Chapter
	err = imp.retry.Do(ctx, "chapter feed "+title.SourceID, func(ctx context.Context) error {
		if err := imp.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		chapters, err = imp.src.TitleChapters(ctx, title.SourceID, imp.cfg.ChapterLimit)
		return err
	})
	if err != nil {
		return 0, err
	}

	added := 0
	for _, ch := range chapters {
		if ctx.Err() != nil {
			return added, ctx.Err()
		}
		inserted, err := imp.importChapter(ctx, id, ch)
		if err != nil {
			imp.log.Warn().Err(err).
				Str("chapter", ch.SourceID).
				Float64("number", ch.Number).
				Msg("chapter import failed, continuing")
			continue
		}
		if inserted {
			added++
		}
	}

	// Local rows are authoritative for the chapter count, not the source's
	// self-reported total.
	if _, err := imp.store.RefreshTotalChapters(ctx, id); err != nil {
		return added, err
	}
	return added, nil
}

// importChapter inserts one chapter if it was never imported before.
// Existence check only: chapters are detected, not diffed.
func (imp *Importer) importChapter(ctx context.Context, mangaID string, ch models.Chapter) (bool, error) {
	exists, err := imp.store.ChapterExists(ctx, ch.SourceID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	var pages []models.Page
	err = imp.retry.Do(ctx, "chapter pages "+ch.SourceID, func(ctx context.Context) error {
		if err := imp.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		pages, err = imp.src.ChapterPages(ctx, ch.SourceID)
		return err
	})
	if err != nil {
		return false, err
	}

	ch.MangaID = mangaID
	ch.Pages = pages
	if err := imp.store.InsertChapter(ctx, ch); err != nil {
		return false, err
	}
	return true, nil
}

func (imp *Importer) begin() {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	imp.status = Status{State: "running", StartedAt: time.Now().UTC()}
}

func (imp *Importer) finish(err error) {
	imp.mu.Lock()
	defer imp.mu.Unlock()
	imp.status.FinishedAt = time.Now().UTC()
	if err != nil {
		imp.status.State = "failed"
		imp.status.LastError = err.Error()
		return
	}
	imp.status.State = "done"
}
