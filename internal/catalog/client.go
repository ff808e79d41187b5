// Package catalog talks to the platform's REST API: paginated catalog
// feeds, per-clip details, collections and the WAV conversion endpoints.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sunovault/sunovault/internal/constants"
	"github.com/sunovault/sunovault/internal/domain"
	"github.com/sunovault/sunovault/internal/logger"
)

var (
	// ErrCredentialExpired means the bearer token was rejected (401). It is
	// fatal to the run and never retried.
	ErrCredentialExpired = errors.New("credential expired: token is no longer valid")

	// ErrNotFound is a 404 from the API, used to drive the collection-kind
	// fallback and conversion polling.
	ErrNotFound = errors.New("not found")
)

// SourceKind selects which catalog endpoint a run pages through.
type SourceKind string

const (
	SourceLibrary    SourceKind = "library"
	SourcePublic     SourceKind = "public"
	SourceCollection SourceKind = "collection"
)

// Source is the resolved request shape for one run.
type Source struct {
	Kind           SourceKind
	CollectionID   string
	CollectionKind string // domain.CollectionProject or domain.CollectionPlaylist
	Liked          bool
	Trashed        bool
}

// Paginated reports whether the source supports a page parameter. Playlists
// are fetched in a single request.
func (s Source) Paginated() bool {
	return !(s.Kind == SourceCollection && s.CollectionKind == domain.CollectionPlaylist)
}

// Describe returns a human-readable source label for status events.
func (s Source) Describe() string {
	switch s.Kind {
	case SourcePublic:
		return "public feed"
	case SourceCollection:
		return fmt.Sprintf("%s %s", s.CollectionKind, s.CollectionID)
	default:
		return "personal library"
	}
}

// Client is an authenticated API client. All request methods honor the
// passed context and retry transient failures.
type Client struct {
	baseURL      string
	token        string
	http         *http.Client
	log          *logger.Logger
	retryBackoff time.Duration
}

// New creates a Client for the given API base URL and bearer token.
func New(baseURL, token string, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Default()
	}
	return &Client{
		baseURL:      baseURL,
		token:        token,
		http:         &http.Client{Timeout: constants.PageHTTPTimeout},
		log:          log.WithComponent("catalog"),
		retryBackoff: constants.DefaultRetryBackoff,
	}
}

// PageURL builds the catalog URL for one page of the source.
func (c *Client) PageURL(src Source, page int) string {
	switch src.Kind {
	case SourcePublic:
		return fmt.Sprintf("%s/api/feed/v2?is_public=true&page=%d", c.baseURL, page)
	case SourceCollection:
		if src.CollectionKind == domain.CollectionPlaylist {
			return fmt.Sprintf("%s/api/playlist/%s", c.baseURL, src.CollectionID)
		}
		return fmt.Sprintf("%s/api/project/%s?page=%d", c.baseURL, src.CollectionID, page)
	default:
		url := fmt.Sprintf("%s/api/feed/?page=%d", c.baseURL, page)
		if src.Liked {
			url += "&liked=true"
		}
		if src.Trashed {
			url += "&trashed=true"
		}
		return url
	}
}

// FetchPage retrieves and unwraps one catalog page. Transient failures are
// retried up to 3 times with a fixed backoff; a 401 aborts immediately with
// ErrCredentialExpired, a 404 with ErrNotFound.
func (c *Client) FetchPage(ctx context.Context, src Source, page int) ([]domain.Record, error) {
	var body any
	if err := c.getJSON(ctx, c.PageURL(src, page), &body); err != nil {
		return nil, err
	}
	return UnwrapRecords(body), nil
}

// GetClip fetches the full detail record for one asset. Used to recover
// fields the list views omit.
func (c *Client) GetClip(ctx context.Context, id string) (*domain.Record, error) {
	var body map[string]any
	url := fmt.Sprintf("%s/api/clip/%s", c.baseURL, id)
	if err := c.getJSON(ctx, url, &body); err != nil {
		return nil, err
	}
	rec := DecodeRecord(body)
	return &rec, nil
}

// RequestWAVConversion asks the platform to render the high-fidelity
// variant of one asset.
func (c *Client) RequestWAVConversion(ctx context.Context, id string) error {
	url := fmt.Sprintf("%s/api/gen/%s/convert_wav/", c.baseURL, id)
	return c.do(ctx, http.MethodPost, url, nil)
}

// GetWAVFileInfo polls the conversion status endpoint once. The decoded
// body is returned as-is for the caller to hunt a WAV URL in; 404 means the
// conversion has not materialized yet.
func (c *Client) GetWAVFileInfo(ctx context.Context, id string) (any, error) {
	var body any
	url := fmt.Sprintf("%s/api/gen/%s/wav_file/", c.baseURL, id)
	if err := c.getJSON(ctx, url, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// ListProjects fetches the user's workspaces.
func (c *Client) ListProjects(ctx context.Context) ([]domain.Collection, error) {
	var body struct {
		Projects []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"projects"`
	}
	url := fmt.Sprintf("%s/api/project/me?page=1&sort=created_at&show_trashed=false", c.baseURL)
	if err := c.getJSON(ctx, url, &body); err != nil {
		return nil, err
	}

	collections := make([]domain.Collection, 0, len(body.Projects))
	for _, p := range body.Projects {
		collections = append(collections, domain.Collection{
			ID: p.ID, Name: p.Name, Kind: domain.CollectionProject,
		})
	}
	return collections, nil
}

// ListPlaylists fetches the user's playlists.
func (c *Client) ListPlaylists(ctx context.Context) ([]domain.Collection, error) {
	var body struct {
		Playlists []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"playlists"`
	}
	url := fmt.Sprintf("%s/api/playlist/me", c.baseURL)
	if err := c.getJSON(ctx, url, &body); err != nil {
		return nil, err
	}

	collections := make([]domain.Collection, 0, len(body.Playlists))
	for _, p := range body.Playlists {
		collections = append(collections, domain.Collection{
			ID: p.ID, Name: p.Name, Kind: domain.CollectionPlaylist,
		})
	}
	return collections, nil
}

// Token exposes the bearer token for the download client, which streams
// from CDN URLs with the same authorization.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) getJSON(ctx context.Context, url string, target any) error {
	return c.request(ctx, http.MethodGet, url, target)
}

func (c *Client) do(ctx context.Context, method, url string, target any) error {
	return c.request(ctx, method, url, target)
}

// request runs one API call with retry. Only transport errors and 5xx
// responses count as transient.
func (c *Client) request(ctx context.Context, method, url string, target any) error {
	var lastErr error

	for attempt := 0; attempt < constants.DefaultRetryCount; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(c.retryBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			c.log.Debug("Request failed, retrying", "url", url, "attempt", attempt+1, "error", err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			_ = resp.Body.Close()
			return ErrCredentialExpired
		case resp.StatusCode == http.StatusNotFound:
			_ = resp.Body.Close()
			return ErrNotFound
		case resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("API request failed: %s", resp.Status)
			continue
		case resp.StatusCode >= 400:
			_ = resp.Body.Close()
			return fmt.Errorf("API request failed: %s", resp.Status)
		}

		if target == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			return nil
		}

		err = json.NewDecoder(resp.Body).Decode(target)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return nil
	}

	return lastErr
}
