package installer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"resty.dev/v3"
)

// HTTPIndex serves packages from a static HTTP layout:
//
//	GET <base>/<name>/index.json          {"versions": ["1.0.0", ...]}
//	GET <base>/<name>/<version>.tar.gz
type HTTPIndex struct {
	client *resty.Client
}

type versionList struct {
	Versions []string `json:"versions"`
}

// NewHTTPIndex creates an index rooted at baseURL.
func NewHTTPIndex(baseURL string, timeout time.Duration) *HTTPIndex {
	return &HTTPIndex{
		client: resty.New().
			SetBaseURL(strings.TrimSuffix(baseURL, "/")).
			SetHeader("Accept", "application/json").
			SetTimeout(timeout),
	}
}

// Close releases the underlying HTTP client.
func (h *HTTPIndex) Close() error {
	return h.client.Close()
}

// Versions fetches the package's index.json.
func (h *HTTPIndex) Versions(ctx context.Context, name string) ([]string, error) {
	var list versionList
	res, err := h.client.R().
		SetContext(ctx).
		SetResult(&list).
		Get("/" + url.PathEscape(name) + "/index.json")
	if err != nil {
		return nil, err
	}
	if res.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", name, ErrPackageNotFound)
	}
	if res.IsError() {
		return nil, fmt.Errorf("index returned HTTP %d for %s", res.StatusCode(), name)
	}
	return list.Versions, nil
}

// Fetch streams the archive. The caller closes the body.
func (h *HTTPIndex) Fetch(ctx context.Context, name, version string) (io.ReadCloser, error) {
	res, err := h.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get("/" + url.PathEscape(name) + "/" + url.PathEscape(version) + archiveExt)
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		res.Body.Close()
		return nil, fmt.Errorf("index returned HTTP %d for %s %s", res.StatusCode(), name, version)
	}
	return res.Body, nil
}
