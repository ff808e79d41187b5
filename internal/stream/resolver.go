// Package stream decides which URL an asset's audio is downloaded from:
// the original stream or a high-fidelity WAV variant, converting on demand.
package stream

import (
	"context"
	"errors"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sunovault/sunovault/internal/catalog"
	"github.com/sunovault/sunovault/internal/constants"
	"github.com/sunovault/sunovault/internal/domain"
	"github.com/sunovault/sunovault/internal/logger"
)

var (
	// ErrNoStream means the record carries no usable audio URL at all. The
	// asset is skipped; the run continues.
	ErrNoStream = errors.New("no usable audio stream")

	// ErrConversionTimeout means WAV polling exhausted its budget. Callers
	// fall back to the original stream; this never fails the asset.
	ErrConversionTimeout = errors.New("wav conversion timed out")
)

// Resolution is the outcome of stream selection for one asset.
type Resolution struct {
	URL       string
	Extension string
	HiFi      bool // the WAV path was taken
	Degraded  bool // WAV was preferred but conversion failed or timed out
}

// Resolver picks the stream URL for each asset, issuing conversion requests
// when the caller prefers WAV and none exists yet.
type Resolver struct {
	client       *catalog.Client
	log          *logger.Logger
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// NewResolver creates a Resolver using the shared API client.
func NewResolver(client *catalog.Client, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Default()
	}
	return &Resolver{
		client:       client,
		log:          log.WithComponent("stream"),
		pollInterval: constants.ConvertPollInterval,
		pollTimeout:  constants.ConvertPollTimeout,
	}
}

// Resolve returns the stream to download for rec. When preferWAV is set and
// the record has no WAV URL, a conversion is requested and polled; on
// timeout or failure the original stream is returned with Degraded set —
// quality degradation never fails an asset. Cancelling ctx mid-poll aborts
// with the context error.
func (r *Resolver) Resolve(ctx context.Context, rec *domain.Record, preferWAV bool) (Resolution, error) {
	if wavURL := FindWAVURL(rec); preferWAV && wavURL != "" {
		return Resolution{
			URL:       wavURL,
			Extension: extensionFromURL(wavURL, constants.ExtWAV),
			HiFi:      true,
		}, nil
	}

	if preferWAV {
		wavURL, err := r.convert(ctx, rec.ID)
		if err == nil && wavURL != "" {
			return Resolution{
				URL:       wavURL,
				Extension: extensionFromURL(wavURL, constants.ExtWAV),
				HiFi:      true,
			}, nil
		}
		if ctx.Err() != nil {
			return Resolution{}, ctx.Err()
		}
		r.log.Warn("WAV conversion unavailable, falling back to original stream",
			"asset_id", rec.ID, "error", err)
		if rec.AudioURL == "" {
			return Resolution{}, ErrNoStream
		}
		return Resolution{
			URL:       rec.AudioURL,
			Extension: extensionFromURL(rec.AudioURL, constants.ExtMP3),
			Degraded:  true,
		}, nil
	}

	if rec.AudioURL == "" {
		return Resolution{}, ErrNoStream
	}
	return Resolution{
		URL:       rec.AudioURL,
		Extension: extensionFromURL(rec.AudioURL, constants.ExtMP3),
	}, nil
}

// convert issues the conversion request and polls until a WAV URL appears,
// the budget runs out, or ctx is cancelled.
func (r *Resolver) convert(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrNoStream
	}
	if err := r.client.RequestWAVConversion(ctx, id); err != nil {
		return "", err
	}

	deadline := time.Now().Add(r.pollTimeout)
	for time.Now().Before(deadline) {
		timer := time.NewTimer(r.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}

		body, err := r.client.GetWAVFileInfo(ctx, id)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				continue // conversion not materialized yet
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			r.log.Debug("WAV status check failed", "asset_id", id, "error", err)
			continue
		}
		if wavURL := findWAVURLIn(body); wavURL != "" {
			return wavURL, nil
		}
	}
	return "", ErrConversionTimeout
}

// wavURLFields are the known field names carrying a WAV URL, checked before
// the defensive recursive scan.
var wavURLFields = []string{
	"audio_url_wav",
	"wav_url",
	"wav_audio_url",
	"master_wav_url",
	"preview_wav_url",
}

// FindWAVURL looks for a high-fidelity URL on the record: known fields
// first, then recursively through the raw JSON object for any http(s)
// string containing ".wav".
func FindWAVURL(rec *domain.Record) string {
	if rec.Raw == nil {
		return ""
	}
	for _, field := range wavURLFields {
		if s, ok := rec.Raw[field].(string); ok && isWAVURL(s) {
			return strings.TrimSpace(s)
		}
	}
	return findWAVURLIn(rec.Raw)
}

func findWAVURLIn(data any) string {
	switch v := data.(type) {
	case string:
		if isWAVURL(v) {
			return strings.TrimSpace(v)
		}
	case map[string]any:
		for _, field := range wavURLFields {
			if s, ok := v[field].(string); ok && isWAVURL(s) {
				return strings.TrimSpace(s)
			}
		}
		for _, value := range v {
			if found := findWAVURLIn(value); found != "" {
				return found
			}
		}
	case []any:
		for _, entry := range v {
			if found := findWAVURLIn(entry); found != "" {
				return found
			}
		}
	}
	return ""
}

func isWAVURL(s string) bool {
	lowered := strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(lowered, "http") && strings.Contains(lowered, ".wav")
}

// extensionFromURL derives the file extension from the URL path, falling
// back to def when the path has none.
func extensionFromURL(rawURL, def string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return def
	}
	if ext := path.Ext(parsed.Path); ext != "" {
		return strings.ToLower(ext)
	}
	return def
}
