package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/sunovault/sunovault/internal/catalog"
	"github.com/sunovault/sunovault/internal/domain"
	"github.com/sunovault/sunovault/internal/filter"
	"github.com/sunovault/sunovault/internal/logger"
)

// paginator walks one catalog source page by page, pausing between requests
// so the API never sees a burst.
type paginator struct {
	client *catalog.Client
	src    catalog.Source
	log    *logger.Logger
	delay  time.Duration

	page     int
	maxPages int // 0 means unbounded; otherwise the last page number fetched
	fetched  int
	done     bool
}

// sourceFor maps the run's filter configuration to a catalog source.
// Collection targeting wins over the public feed, which wins over the
// personal library.
func sourceFor(cfg filter.Config) catalog.Source {
	if cfg.CollectionID != "" {
		kind := cfg.CollectionKind
		if kind == "" {
			kind = domain.CollectionProject
		}
		return catalog.Source{
			Kind:           catalog.SourceCollection,
			CollectionID:   cfg.CollectionID,
			CollectionKind: kind,
		}
	}
	if cfg.PublicOnly {
		return catalog.Source{Kind: catalog.SourcePublic}
	}
	return catalog.Source{
		Kind:    catalog.SourceLibrary,
		Liked:   cfg.LikedOnly,
		Trashed: cfg.IncludeTrashed,
	}
}

func newPaginator(client *catalog.Client, src catalog.Source, startPage, maxPages int, delay time.Duration, log *logger.Logger) *paginator {
	if startPage < 1 {
		startPage = 1
	}
	if log == nil {
		log = logger.Default()
	}
	return &paginator{
		client:   client,
		src:      src,
		log:      log,
		delay:    delay,
		page:     startPage,
		maxPages: maxPages,
	}
}

// next fetches the following page. ok is false when the source is exhausted:
// an empty page, the page number passing the maxPages bound, or a single-shot
// source already fetched.
// A project that 404s on its first page is retried as a playlist, since the
// API uses one ID space for both and callers often cannot tell them apart.
func (p *paginator) next(ctx context.Context) (records []domain.Record, page int, ok bool, err error) {
	if p.done {
		return nil, p.page, false, nil
	}
	if p.maxPages > 0 && p.page > p.maxPages {
		return nil, p.page, false, nil
	}

	if p.fetched > 0 {
		timer := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, p.page, false, ctx.Err()
		case <-timer.C:
		}
	}

	records, err = p.client.FetchPage(ctx, p.src, p.page)
	if err != nil {
		if p.fetched == 0 && p.projectMayBePlaylist(err) {
			p.log.Info("collection is not a project, retrying as playlist",
				"collection_id", p.src.CollectionID)
			p.src.CollectionKind = domain.CollectionPlaylist
			records, err = p.client.FetchPage(ctx, p.src, p.page)
		}
		if err != nil {
			return nil, p.page, false, err
		}
	}

	page = p.page
	p.fetched++
	p.page++
	if !p.src.Paginated() || len(records) == 0 {
		p.done = true
	}
	if len(records) == 0 {
		return nil, page, false, nil
	}
	return records, page, true, nil
}

func (p *paginator) projectMayBePlaylist(err error) bool {
	return errors.Is(err, catalog.ErrNotFound) &&
		p.src.Kind == catalog.SourceCollection &&
		p.src.CollectionKind == domain.CollectionProject
}

// stopThreshold is how many consecutive pages without a new admission end a
// resumed run. Larger libraries get a longer leash because their recent
// pages are denser with already-downloaded items.
func stopThreshold(existing int) int {
	switch {
	case existing < 100:
		return 2
	case existing < 1000:
		return 5
	case existing < 5000:
		return 10
	default:
		return 20
	}
}
