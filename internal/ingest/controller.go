// Package ingest orchestrates a run: pagination, filtering, the download
// worker pool and the event stream the caller consumes.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sunovault/sunovault/internal/catalog"
	"github.com/sunovault/sunovault/internal/constants"
	"github.com/sunovault/sunovault/internal/dedup"
	"github.com/sunovault/sunovault/internal/domain"
	"github.com/sunovault/sunovault/internal/fetch"
	"github.com/sunovault/sunovault/internal/filter"
	"github.com/sunovault/sunovault/internal/logger"
	"github.com/sunovault/sunovault/internal/ratelimit"
	"github.com/sunovault/sunovault/internal/stream"
)

// RunConfig is everything one run needs. Built by the caller from config
// and request parameters; immutable once the run starts.
type RunConfig struct {
	Token      string
	APIBaseURL string
	OutputDir  string

	StartPage     int // pages are 1-based; values below 1 mean page 1
	MaxPages      int // last page number to fetch; 0 means unbounded
	DownloadDelay time.Duration
	Workers       int // 0 means the default pool size

	PreferWAV       bool
	EmbedMetadata   bool
	SaveLyrics      bool
	OrganizeByMonth bool
	StemSubfolders  bool

	Filters filter.Config

	// Targets switches the run to targeted mode: the listed records are
	// fetched directly and the catalog is never paged.
	Targets []domain.Record

	// ScanOnly reports admitted records without downloading anything.
	ScanOnly bool

	// AdaptiveStop ends a resumed run after enough consecutive pages yield
	// nothing new.
	AdaptiveStop bool
}

// Summary tallies the per-asset outcomes of a finished run.
type Summary struct {
	Found      int `json:"found"`
	Downloaded int `json:"downloaded"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
	Cancelled  int `json:"cancelled"`
	Pages      int `json:"pages"`
}

// Controller drives one ingestion run. Create with New, start with Run,
// consume Events until the channel closes. Stop may be called from any
// goroutine at any time.
type Controller struct {
	id      string
	cfg     RunConfig
	client  *catalog.Client
	index   *dedup.Index
	fetcher *fetch.Fetcher
	log     *logger.Logger

	events    chan domain.Event
	stopped   atomic.Bool
	pageDelay time.Duration

	mu      sync.Mutex
	cancel  context.CancelFunc
	summary Summary
}

// New builds a Controller. The existing library under cfg.OutputDir is
// scanned into the duplicate index before the first page is requested.
func New(cfg RunConfig, log *logger.Logger) *Controller {
	if log == nil {
		log = logger.Default()
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = constants.DefaultAPIBaseURL
	}
	if cfg.Workers <= 0 {
		cfg.Workers = constants.DefaultWorkers
	}

	id := uuid.NewString()
	log = log.WithRun(id)

	client := catalog.New(cfg.APIBaseURL, cfg.Token, log)
	index := dedup.Build(cfg.OutputDir)
	resolver := stream.NewResolver(client, log)
	limiter := ratelimit.New(cfg.DownloadDelay)
	fetcher := fetch.New(client, resolver, limiter, index, fetch.Options{
		OutputDir:       cfg.OutputDir,
		OrganizeByMonth: cfg.OrganizeByMonth,
		StemSubfolders:  cfg.StemSubfolders,
		PreferWAV:       cfg.PreferWAV,
		EmbedMetadata:   cfg.EmbedMetadata,
		SaveLyrics:      cfg.SaveLyrics,
	}, log)

	return &Controller{
		id:        id,
		cfg:       cfg,
		client:    client,
		index:     index,
		fetcher:   fetcher,
		log:       log.WithComponent("ingest"),
		events:    make(chan domain.Event, 256),
		pageDelay: constants.InterPageDelay,
	}
}

// ID returns the run identifier.
func (c *Controller) ID() string { return c.id }

// Events is the run's event stream. Single consumer; closed when Run
// returns.
func (c *Controller) Events() <-chan domain.Event { return c.events }

// Stop requests cooperative cancellation. Idempotent; safe before Run.
func (c *Controller) Stop() {
	if c.stopped.CompareAndSwap(false, true) {
		c.mu.Lock()
		cancel := c.cancel
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
}

// Stopped reports whether Stop has been called.
func (c *Controller) Stopped() bool { return c.stopped.Load() }

// Summary returns the tallies accumulated so far.
func (c *Controller) Summary() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}

// Run executes the run to completion and blocks until all workers have
// drained. The returned error is nil for both natural completion and a
// user-requested stop; only credential failures and transport errors
// surface.
func (c *Controller) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()
	if c.stopped.Load() {
		cancel()
	}

	var runErr error
	defer func() {
		c.emit(domain.Event{Kind: domain.EventRunComplete, Success: runErr == nil && !c.stopped.Load()})
		close(c.events)
	}()

	c.emit(domain.StatusEvent(fmt.Sprintf("library scan found %d existing items", c.index.Len())))

	if len(c.cfg.Targets) > 0 {
		runErr = c.runTargeted(ctx)
	} else {
		runErr = c.runDiscovery(ctx)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		c.emit(domain.ErrorEvent(runErr.Error()))
		return runErr
	}

	s := c.Summary()
	if c.stopped.Load() {
		c.emit(domain.StatusEvent(fmt.Sprintf("stopped: %d downloaded, %d failed", s.Downloaded, s.Failed)))
		return nil
	}
	c.emit(domain.StatusEvent(fmt.Sprintf(
		"complete: %d found, %d downloaded, %d duplicates, %d failed",
		s.Found, s.Downloaded, s.Duplicates, s.Failed)))
	return nil
}

// runTargeted fetches the explicit target records through the worker pool.
func (c *Controller) runTargeted(ctx context.Context) error {
	c.emit(domain.StatusEvent(fmt.Sprintf("downloading %d selected items", len(c.cfg.Targets))))

	pool := c.newPool()
	for i := range c.cfg.Targets {
		rec := c.cfg.Targets[i]
		if ctx.Err() != nil {
			break
		}
		c.noteFound(&rec)
		pool.dispatch(ctx, &rec)
	}
	pool.wait()
	return ctx.Err()
}

// runDiscovery pages through the catalog source, admits records through the
// filter gates, and dispatches admitted ones to the pool. Each page's batch
// finishes before the next page is requested so cancellation never leaves
// more than one page of work in flight.
func (c *Controller) runDiscovery(ctx context.Context) error {
	src := sourceFor(c.cfg.Filters)
	c.emit(domain.StatusEvent("fetching " + src.Describe()))

	pager := newPaginator(c.client, src, c.cfg.StartPage, c.cfg.MaxPages, c.pageDelay, c.log)
	threshold := stopThreshold(c.index.Len())

	pool := c.newPool()
	defer pool.wait()

	var (
		sawNew     bool
		quietPages int
	)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		records, page, ok, err := pager.next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		admitted := 0
		for i := range records {
			rec := records[i]
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !filter.Admit(&rec, c.cfg.Filters, c.cfg.ScanOnly, c.index) {
				continue
			}
			admitted++
			c.noteFound(&rec)
			if c.cfg.ScanOnly {
				continue
			}
			pool.dispatch(ctx, &rec)
		}
		c.log.Info("page processed", "page", page, "records", len(records), "admitted", admitted)
		c.mu.Lock()
		c.summary.Pages++
		c.mu.Unlock()

		pool.wait()

		if admitted > 0 {
			sawNew = true
			quietPages = 0
		} else if sawNew && c.cfg.AdaptiveStop {
			quietPages++
			if quietPages >= threshold {
				c.emit(domain.StatusEvent(fmt.Sprintf(
					"caught up: %d pages without new items", quietPages)))
				return nil
			}
		}
	}
}

func (c *Controller) noteFound(rec *domain.Record) {
	c.mu.Lock()
	c.summary.Found++
	c.mu.Unlock()
	c.emit(domain.Event{
		Kind:    domain.EventAssetFound,
		AssetID: rec.ID,
		Title:   rec.Title,
		Record:  rec,
	})
}

func (c *Controller) noteOutcome(out domain.Outcome) {
	c.mu.Lock()
	switch out.Status {
	case domain.OutcomeDownloaded:
		c.summary.Downloaded++
	case domain.OutcomeDuplicate:
		c.summary.Duplicates++
	case domain.OutcomeFailed:
		c.summary.Failed++
	case domain.OutcomeCancelled:
		c.summary.Cancelled++
	}
	c.mu.Unlock()

	c.emit(domain.Event{
		Kind:    domain.EventAssetFinished,
		AssetID: out.AssetID,
		Title:   out.Title,
		Status:  string(out.Status),
		Path:    out.FilePath,
		Message: out.Error,
	})
}

// emit delivers an event. The channel is buffered; a consumer that stops
// draining stalls the run rather than losing events.
func (c *Controller) emit(ev domain.Event) {
	c.events <- ev
}

// pool is the bounded download worker pool for one run. dispatch blocks
// when all workers are busy, which naturally paces pagination.
type pool struct {
	c   *Controller
	sem chan struct{}
	wg  sync.WaitGroup
}

func (c *Controller) newPool() *pool {
	return &pool{c: c, sem: make(chan struct{}, c.cfg.Workers)}
}

func (p *pool) dispatch(ctx context.Context, rec *domain.Record) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.sem
			p.wg.Done()
		}()

		lastPercent := -1
		out := p.c.fetcher.Fetch(ctx, rec, func(percent float64) {
			pct := int(percent)
			if pct == lastPercent {
				return
			}
			lastPercent = pct
			p.c.emit(domain.Event{
				Kind:    domain.EventAssetProgress,
				AssetID: rec.ID,
				Title:   rec.Title,
				Percent: pct,
			})
		})
		p.c.noteOutcome(out)
	}()
}

func (p *pool) wait() {
	p.wg.Wait()
}
