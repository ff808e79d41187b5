package tagging

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sunovault/sunovault/internal/constants"
)

// DownloadImage fetches cover art bytes from a URL, authorizing with token
// when one is given. An empty URL yields (nil, nil) so callers can pass
// record fields through unconditionally.
func DownloadImage(urlStr, token string) ([]byte, error) {
	if urlStr == "" {
		return nil, nil
	}

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL scheme: %s (only http/https allowed)", parsed.Scheme)
	}

	client := &http.Client{Timeout: constants.ImageHTTPTimeout}
	req, err := http.NewRequest(http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d (URL: %s)", resp.StatusCode, urlStr)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	return buf.Bytes(), nil
}
