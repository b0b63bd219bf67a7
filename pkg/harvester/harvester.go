package harvester

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"seedharvest/internal/downloader"
	"seedharvest/pkg/catalog"
	"seedharvest/pkg/consumer"
	errs "seedharvest/pkg/errors"
	"seedharvest/pkg/ledger"
	"seedharvest/pkg/logger"
	"seedharvest/pkg/metrics"
	"seedharvest/pkg/retry"
	"seedharvest/pkg/torrentfile"
)

// Reasons a run ends
const (
	ReasonCatalogExhausted = "catalog_exhausted"
	ReasonCapReached       = "cap_reached"
	ReasonInterrupted      = "interrupted"
	ReasonQuotaExhausted   = "quota_exhausted"
)

// Options tunes a Harvester
type Options struct {
	// MaxWorkers bounds concurrent item processing per page
	MaxWorkers int
	// MaxDownloadCount caps dispatched items per run; 0 means no cap
	MaxDownloadCount int
	// RequestInterval is the pause a worker takes after a successful add
	RequestInterval time.Duration
	// PageRetryDelay is the fixed wait between failed page fetches
	PageRetryDelay time.Duration
	// StartPage overrides the ledger cursor when positive
	StartPage int
	// Add is passed to the consumer for every artifact
	Add consumer.AddOptions
	// Exit terminates the process on quota exhaustion; defaults to os.Exit
	Exit func(code int)
	// Sleep replaces retry.Wait for pauses and page retries
	Sleep func(ctx context.Context, d time.Duration) error
}

// Summary describes one run
type Summary struct {
	RunID          string
	Pages          int
	Dispatched     int
	Added          int
	AlreadyPresent int
	Skipped        int
	Failed         int
	NextPage       int
	Reason         string
}

// Harvester walks the catalog page by page and hands every new artifact
// to the download consumer
type Harvester struct {
	catalog    Catalog
	downloader Downloader
	store      ArtifactStore
	inventory  Inventory
	gateway    consumer.Gateway
	ledger     *ledger.Ledger
	metrics    *metrics.Metrics
	opts       Options
	logger     logger.Logger
}

// Deps bundles the collaborators of a Harvester
type Deps struct {
	Catalog    Catalog
	Downloader Downloader
	Store      ArtifactStore
	Inventory  Inventory
	Gateway    consumer.Gateway
	Ledger     *ledger.Ledger
	Metrics    *metrics.Metrics
	Logger     logger.Logger
}

// New creates a Harvester
func New(deps Deps, opts Options) *Harvester {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Wait
	}
	log := deps.Logger
	if log == nil {
		log = logger.GetLogger()
	}

	return &Harvester{
		catalog:    deps.Catalog,
		downloader: deps.Downloader,
		store:      deps.Store,
		inventory:  deps.Inventory,
		gateway:    deps.Gateway,
		ledger:     deps.Ledger,
		metrics:    deps.Metrics,
		opts:       opts,
		logger:     log.WithField("component", "harvester"),
	}
}

// run is the state of one Run call
type run struct {
	h      *Harvester
	logger logger.Logger

	// workCtx carries worker network calls; only a quota abort cancels it
	workCtx    context.Context
	cancelWork context.CancelFunc
	// stopDispatch ends page fetching and item dispatch
	stopDispatch context.CancelFunc

	mu      sync.Mutex
	summary Summary

	quotaOnce sync.Once
	quotaHit  bool
}

// Run harvests until the catalog is exhausted, the dispatch cap is
// reached or ctx is cancelled. Cancelling ctx stops dispatch; items already
// being processed finish. When the upstream reports an exhausted quota the
// ledger is persisted and Options.Exit is called with status 1; if Exit
// returns, Run returns an error wrapping errs.ErrQuotaExhausted.
func (h *Harvester) Run(ctx context.Context) (Summary, error) {
	runID := uuid.NewString()
	log := h.logger.WithField("run_id", runID)

	workCtx, cancelWork := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWork()
	dispatchCtx, stopDispatch := context.WithCancel(ctx)
	defer stopDispatch()

	r := &run{
		h:            h,
		logger:       log,
		workCtx:      workCtx,
		cancelWork:   cancelWork,
		stopDispatch: stopDispatch,
		summary:      Summary{RunID: runID},
	}

	page := h.ledger.NextPage()
	if h.opts.StartPage > 0 {
		page = h.opts.StartPage
	}

	log.InfoWithFields("Harvest started", map[string]interface{}{
		"start_page":         page,
		"max_workers":        h.opts.MaxWorkers,
		"max_download_count": h.opts.MaxDownloadCount,
		"processed_ids":      h.ledger.Len(),
	})

	reason := r.loop(dispatchCtx, page)

	r.mu.Lock()
	if r.quotaHit {
		reason = ReasonQuotaExhausted
	}
	r.summary.Reason = reason
	r.mu.Unlock()

	persistErr := h.persist(log)

	r.mu.Lock()
	r.summary.NextPage = h.ledger.NextPage()
	summary := r.summary
	quota := r.quotaHit
	r.mu.Unlock()

	logger.LogMetrics(log, "harvest", map[string]interface{}{
		"pages":           summary.Pages,
		"dispatched":      summary.Dispatched,
		"added":           summary.Added,
		"already_present": summary.AlreadyPresent,
		"skipped":         summary.Skipped,
		"failed":          summary.Failed,
		"next_page":       summary.NextPage,
		"reason":          summary.Reason,
	})

	if quota {
		return summary, errs.Wrap(errs.ErrorTypeQuotaExhausted, "harvest", errs.ErrQuotaExhausted)
	}
	if persistErr != nil {
		return summary, fmt.Errorf("persist ledger: %w", persistErr)
	}
	return summary, nil
}

// loop runs the page state machine and returns why it stopped
func (r *run) loop(ctx context.Context, page int) string {
	h := r.h
	for {
		if ctx.Err() != nil {
			return ReasonInterrupted
		}

		items, err := r.fetchPage(ctx, page)
		if err != nil {
			r.logger.WithError(err).WarnWithFields("Stopped fetching pages", map[string]interface{}{"page": page})
			return ReasonInterrupted
		}

		r.mu.Lock()
		r.summary.Pages++
		r.mu.Unlock()
		h.metrics.PageFetched()

		if len(items) == 0 {
			r.logger.InfoWithFields("Catalog exhausted", map[string]interface{}{"page": page})
			h.ledger.SetNextPage(page)
			return ReasonCatalogExhausted
		}

		current := page
		dispatched, complete := r.dispatchPage(ctx, page, items)
		if complete {
			page++
		}
		h.ledger.SetNextPage(page)
		if err := h.persist(r.logger); err != nil {
			r.logger.WithError(err).Error("Failed to persist ledger")
		}

		r.mu.Lock()
		total := r.summary.Dispatched
		r.mu.Unlock()
		logger.LogPageProgress(r.logger, current, len(items), dispatched, total)

		if r.aborted() {
			return ReasonQuotaExhausted
		}
		if h.capReached(total) {
			r.logger.InfoWithFields("Download cap reached", map[string]interface{}{"dispatched": total})
			return ReasonCapReached
		}
	}
}

// fetchPage retries a failing page after a fixed delay until it succeeds
// or ctx is cancelled
func (r *run) fetchPage(ctx context.Context, page int) ([]catalog.Item, error) {
	h := r.h
	return retry.DoWithResult(func() ([]catalog.Item, error) {
		return h.catalog.FetchPage(ctx, page)
	}, &retry.Config{
		Backoff: &retry.ConstantBackoff{Delay: h.opts.PageRetryDelay},
		RetryIf: func(err error) bool {
			return ctx.Err() == nil
		},
		OnRetry: func(attempt int, err error, delay time.Duration) {
			h.metrics.PageFailed()
			r.logger.WithError(err).WarnWithFields("Page fetch failed, retrying", map[string]interface{}{
				"page":    page,
				"attempt": attempt,
				"wait":    delay,
			})
		},
		Sleep:   h.opts.Sleep,
		Context: ctx,
		Logger:  r.logger.WithField("page", page),
	})
}

// dispatchPage submits the page's unprocessed items to a worker pool and
// waits for all of them. complete is false when the cap, an interrupt or
// an abort left part of the page unhandled.
func (r *run) dispatchPage(ctx context.Context, page int, items []catalog.Item) (dispatched int, complete bool) {
	h := r.h
	pool := downloader.NewWorkerPool(ctx, h.opts.MaxWorkers, r.handle, r.logger)
	pool.Start()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for res := range pool.Results() {
			r.record(res)
		}
	}()

	complete = true
	for _, item := range items {
		id := item.ID.String()
		if h.ledger.IsProcessed(id) {
			r.record(downloader.Result{
				Job:     downloader.Job{ID: id, Title: item.Title, Page: page},
				Outcome: logger.OutcomeSkipped,
			})
			continue
		}

		r.mu.Lock()
		total := r.summary.Dispatched
		r.mu.Unlock()
		if h.capReached(total) {
			complete = false
			break
		}

		if err := pool.Submit(downloader.Job{ID: id, Title: item.Title, Page: page}); err != nil {
			complete = false
			break
		}
		dispatched++
		r.mu.Lock()
		r.summary.Dispatched++
		r.mu.Unlock()
	}

	if !complete {
		r.logger.DebugWithFields("Page dispatch stopped early", map[string]interface{}{
			"page":       page,
			"dispatched": dispatched,
			"queued":     pool.GetQueueSize(),
			"workers":    pool.GetActiveWorkers(),
		})
	}

	pool.Stop()
	wg.Wait()

	if pool.Dropped() > 0 || ctx.Err() != nil {
		complete = false
	}
	return dispatched, complete
}

// handle is the per-item state machine run on a worker
func (r *run) handle(job downloader.Job) downloader.Result {
	h := r.h
	ctx := r.workCtx

	if err := ctx.Err(); err != nil {
		return downloader.Result{Outcome: logger.OutcomeFailed, Error: err}
	}

	if r.inInventory(ctx, job.ID) {
		h.ledger.MarkProcessed(job.ID)
		return downloader.Result{Outcome: logger.OutcomeAlreadyPresent}
	}

	key, err := h.downloader.Download(ctx, job.ID)
	if err != nil {
		if errors.Is(err, errs.ErrQuotaExhausted) {
			r.abort()
		}
		return downloader.Result{Outcome: logger.OutcomeFailed, Error: err}
	}

	data, err := h.store.Read(ctx, key)
	if err != nil {
		return downloader.Result{Outcome: logger.OutcomeFailed, Error: errs.Wrap(errs.ErrorTypeStorage, "read artifact", err)}
	}

	added, err := h.gateway.Add(ctx, data, h.opts.Add)
	if err != nil {
		return downloader.Result{Outcome: logger.OutcomeFailed, Error: err}
	}

	h.inventory.RecordAdded(added.Hash)
	h.ledger.MarkProcessed(job.ID)
	h.metrics.SetLedgerSize(h.ledger.Len())

	if h.opts.RequestInterval > 0 {
		_ = h.opts.Sleep(ctx, h.opts.RequestInterval)
	}
	return downloader.Result{Outcome: logger.OutcomeAdded}
}

// inInventory reports whether a locally stored artifact for id is already
// held by the consumer. Any failure along the way counts as not present.
func (r *run) inInventory(ctx context.Context, id string) bool {
	return r.h.inInventory(ctx, r.logger, id)
}

func (h *Harvester) inInventory(ctx context.Context, log logger.Logger, id string) bool {
	key := h.store.Key(id)
	exists, err := h.store.Exists(ctx, key)
	if err != nil || !exists {
		return false
	}

	data, err := h.store.Read(ctx, key)
	if err != nil {
		log.WithError(err).WarnWithFields("Cannot read stored artifact", map[string]interface{}{"item_id": id})
		return false
	}
	hash, err := torrentfile.InfoHash(data)
	if err != nil {
		log.WithError(err).WarnWithFields("Cannot hash stored artifact", map[string]interface{}{"item_id": id})
		return false
	}
	present, err := h.inventory.Contains(ctx, hash)
	if err != nil {
		log.WithError(err).WarnWithFields("Inventory check failed", map[string]interface{}{"item_id": id})
		return false
	}
	return present
}

// abort handles the first quota signal: stop all work, save the ledger and
// leave the process
func (r *run) abort() {
	r.quotaOnce.Do(func() {
		r.mu.Lock()
		r.quotaHit = true
		r.mu.Unlock()

		r.logger.Error("Daily download quota exhausted, stopping")
		r.cancelWork()
		r.stopDispatch()

		if err := r.h.persist(r.logger); err != nil {
			r.logger.WithError(err).Error("Failed to persist ledger before exit")
		}
		r.h.opts.Exit(1)
	})
}

func (r *run) aborted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quotaHit
}

func (r *run) record(res downloader.Result) {
	r.mu.Lock()
	switch res.Outcome {
	case logger.OutcomeAdded:
		r.summary.Added++
	case logger.OutcomeAlreadyPresent:
		r.summary.AlreadyPresent++
	case logger.OutcomeSkipped:
		r.summary.Skipped++
	default:
		r.summary.Failed++
	}
	r.mu.Unlock()

	r.h.metrics.ObserveItem(res.Outcome, res.Duration)
	logger.LogItemOutcome(r.logger, res.Job.ID, res.Job.Title, res.Outcome, res.Error)
}

func (h *Harvester) capReached(dispatched int) bool {
	return h.opts.MaxDownloadCount > 0 && dispatched >= h.opts.MaxDownloadCount
}

func (h *Harvester) persist(log logger.Logger) error {
	if err := h.ledger.Persist(); err != nil {
		return err
	}
	h.metrics.SetLedgerSize(h.ledger.Len())
	log.DebugWithFields("Ledger persisted", map[string]interface{}{
		"path":      h.ledger.Path(),
		"next_page": h.ledger.NextPage(),
	})
	return nil
}
