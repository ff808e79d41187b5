// Package fetch downloads a single catalog asset to disk: stream selection,
// throttling, retries, progress, lyrics sidecars and metadata embedding.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/sunovault/sunovault/internal/catalog"
	"github.com/sunovault/sunovault/internal/constants"
	"github.com/sunovault/sunovault/internal/dedup"
	"github.com/sunovault/sunovault/internal/domain"
	"github.com/sunovault/sunovault/internal/filter"
	"github.com/sunovault/sunovault/internal/logger"
	"github.com/sunovault/sunovault/internal/ratelimit"
	"github.com/sunovault/sunovault/internal/storage"
	"github.com/sunovault/sunovault/internal/stream"
	"github.com/sunovault/sunovault/internal/tagging"
)

// ProgressFunc receives download progress in percent. Percent is -1 when
// the server did not announce a content length.
type ProgressFunc func(percent float64)

// Options controls where and how assets land on disk.
type Options struct {
	OutputDir       string
	OrganizeByMonth bool
	StemSubfolders  bool
	PreferWAV       bool
	EmbedMetadata   bool
	SaveLyrics      bool
}

// Fetcher downloads assets. Safe for concurrent use; the rate limiter
// serializes the actual transfer starts.
type Fetcher struct {
	client   *catalog.Client
	resolver *stream.Resolver
	limiter  *ratelimit.Limiter
	index    *dedup.Index
	opts     Options
	log      *logger.Logger
	http     *http.Client

	retryCount   int
	retryBackoff time.Duration
}

// New creates a Fetcher. limiter may be nil to disable throttling.
func New(client *catalog.Client, resolver *stream.Resolver, limiter *ratelimit.Limiter, index *dedup.Index, opts Options, log *logger.Logger) *Fetcher {
	if log == nil {
		log = logger.Default()
	}
	if limiter == nil {
		limiter = ratelimit.New(0)
	}
	return &Fetcher{
		client:       client,
		resolver:     resolver,
		limiter:      limiter,
		index:        index,
		opts:         opts,
		log:          log.WithComponent("fetch"),
		http:         &http.Client{Timeout: constants.DownloadHTTPTimeout},
		retryCount:   constants.DefaultRetryCount,
		retryBackoff: constants.DefaultRetryBackoff,
	}
}

// Fetch downloads one asset and returns its terminal outcome. It never
// panics the run: every failure mode maps to an Outcome status.
func (f *Fetcher) Fetch(ctx context.Context, rec *domain.Record, progress ProgressFunc) domain.Outcome {
	log := f.log.WithAsset(rec.ID, rec.Title)
	out := domain.Outcome{AssetID: rec.ID, Title: rec.Title}

	// Recheck the index: another worker may have finished the same asset
	// between admission and dispatch.
	if f.index != nil && f.index.Contains(rec.ID) {
		out.Status = domain.OutcomeDuplicate
		out.CompletedAt = time.Now()
		return out
	}

	if (f.opts.EmbedMetadata || f.opts.SaveLyrics) && rec.Lyrics() == "" {
		f.refreshMetadata(ctx, rec, log)
	}

	res, err := f.resolver.Resolve(ctx, rec, f.opts.PreferWAV)
	if err != nil {
		return f.finish(ctx, out, err)
	}
	if res.Degraded {
		log.Info("downloading original stream instead of WAV")
	}

	destDir, err := f.destDir(rec)
	if err != nil {
		return f.finish(ctx, out, err)
	}

	title := rec.Title
	if title == "" {
		title = rec.ID
	}
	dest := storage.UniquePath(filepath.Join(destDir, storage.Sanitize(title)+res.Extension))

	f.limiter.Wait()

	if err := f.download(ctx, res.URL, dest, progress); err != nil {
		if destDir != f.opts.OutputDir {
			storage.DeleteFolderIfEmpty(destDir)
		}
		return f.finish(ctx, out, err)
	}

	if f.opts.SaveLyrics {
		f.writeLyrics(rec, dest, log)
	}
	if f.opts.EmbedMetadata {
		if err := f.embed(rec, dest); err != nil {
			// A file with no tags is still a good download.
			log.Warn("metadata embedding failed", "error", err)
		}
	}

	if f.index != nil {
		f.index.Add(rec.ID)
	}

	log.Info("downloaded", "path", dest)
	out.Status = domain.OutcomeDownloaded
	out.FilePath = dest
	out.CompletedAt = time.Now()
	return out
}

// finish maps an error to the failed or cancelled outcome.
func (f *Fetcher) finish(ctx context.Context, out domain.Outcome, err error) domain.Outcome {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		out.Status = domain.OutcomeCancelled
	} else {
		out.Status = domain.OutcomeFailed
		out.Error = err.Error()
	}
	out.CompletedAt = time.Now()
	return out
}

// refreshMetadata refetches the full detail record when the list view
// delivered a thin one. Best effort: the thin record still downloads fine.
func (f *Fetcher) refreshMetadata(ctx context.Context, rec *domain.Record, log *logger.Logger) {
	detail, err := f.client.GetClip(ctx, rec.ID)
	if err != nil {
		log.Debug("detail refetch failed", "error", err)
		return
	}
	rec.Metadata = detail.Metadata
	if rec.AudioURL == "" {
		rec.AudioURL = detail.AudioURL
	}
	if rec.ImageURL == "" {
		rec.ImageURL = detail.ImageURL
	}
}

// destDir builds and creates the directory the asset lands in.
func (f *Fetcher) destDir(rec *domain.Record) (string, error) {
	dir := f.opts.OutputDir
	if f.opts.OrganizeByMonth {
		if month := rec.Month(); month != "" {
			dir = filepath.Join(dir, month)
		}
	}
	if f.opts.StemSubfolders && filter.IsStem(rec) {
		if base := filter.BaseTitle(rec.Title); base != "" {
			dir = filepath.Join(dir, storage.Sanitize(base))
		}
	}
	if err := storage.EnsureDir(dir); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	return dir, nil
}

// download transfers the stream to dest, retrying transient failures. A
// partial file never survives a failed or cancelled attempt.
func (f *Fetcher) download(ctx context.Context, url, dest string, progress ProgressFunc) error {
	var lastErr error
	for attempt := 1; attempt <= f.retryCount; attempt++ {
		if attempt > 1 {
			timer := time.NewTimer(f.retryBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = f.downloadOnce(ctx, url, dest, progress)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn("download attempt failed", "attempt", attempt, "error", lastErr)
	}
	return fmt.Errorf("download failed after %d attempts: %w", f.retryCount, lastErr)
}

func (f *Fetcher) downloadOnce(ctx context.Context, url, dest string, progress ProgressFunc) (err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	// The CDN honors the same bearer token as the API.
	if tok := f.client.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	out, err := storage.CreateFile(dest)
	if err != nil {
		return err
	}
	defer func() {
		out.Close()
		if err != nil {
			storage.RemoveFile(dest)
		}
	}()

	total := resp.ContentLength
	var written int64
	buf := make([]byte, constants.DownloadChunkSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return writeErr
			}
			written += int64(n)
			if progress != nil {
				if total > 0 {
					progress(float64(written) / float64(total) * 100)
				} else {
					progress(-1)
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// writeLyrics drops a sidecar .txt next to the audio file. Best effort.
func (f *Fetcher) writeLyrics(rec *domain.Record, audioPath string, log *logger.Logger) {
	lyrics := rec.Lyrics()
	if lyrics == "" {
		return
	}
	ext := filepath.Ext(audioPath)
	path := audioPath[:len(audioPath)-len(ext)] + constants.ExtTXT
	if err := storage.WriteFile(path, []byte(lyrics)); err != nil {
		log.Warn("writing lyrics sidecar failed", "error", err)
	}
}

func (f *Fetcher) embed(rec *domain.Record, path string) error {
	meta := tagging.Metadata{
		Title:   rec.Title,
		Artist:  rec.DisplayName,
		Genre:   rec.Metadata.Tags,
		Year:    rec.Year(),
		Comment: rec.Metadata.Prompt,
		Lyrics:  rec.Lyrics(),
		AssetID: rec.ID,
	}
	if rec.ImageURL != "" {
		art, err := tagging.DownloadImage(rec.ImageURL, f.client.Token())
		if err != nil {
			f.log.Debug("cover art download failed", "asset_id", rec.ID, "error", err)
		} else {
			meta.CoverArt = art
		}
	}
	return tagging.Embed(path, meta)
}
