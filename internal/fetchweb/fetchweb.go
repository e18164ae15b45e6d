// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetchweb retrieves full page text for kept sources whose search
// snippet is too thin for synthesis. It is the optional extraction stage:
// per-page failures leave the snippet in place and never fail the run.
package fetchweb

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/deep-research/pkg/types"
)

// Fetcher retrieves plain text for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPFetcher is the production Fetcher: plain GET, HTML stripped to text,
// truncated to the configured cap.
type HTTPFetcher struct {
	cfg    types.FetchConfig
	client *http.Client
}

// NewHTTP constructs a fetcher from config.
func NewHTTP(cfg types.FetchConfig) *HTTPFetcher {
	return &HTTPFetcher{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Fetch downloads the URL, strips HTML to plain text, and truncates.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch http %d", resp.StatusCode)
	}

	limit := int64(f.cfg.MaxBytes) * 4 // raw HTML shrinks a lot when stripped
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return "", err
	}

	text := stripHTML(string(body))
	if len(text) > f.cfg.MaxBytes {
		text = text[:f.cfg.MaxBytes]
	}
	return text, nil
}

// FetchAll fills Content for sources that only carry a snippet, with bounded
// concurrency. Failures are logged per source and the snippet kept.
func FetchAll(ctx context.Context, fetcher Fetcher, sources []types.EvaluatedSource, cfg types.FetchConfig, w io.Writer) {
	g, ctx := errgroup.WithContext(ctx)
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	g.SetLimit(concurrency)

	for i := range sources {
		src := &sources[i]
		if src.Content != "" || !src.Kept {
			continue
		}
		g.Go(func() error {
			text, err := fetcher.Fetch(ctx, src.URL)
			if err != nil {
				fmt.Fprintf(w, "warning: fetch %s failed: %v\n", src.URL, err)
				return nil
			}
			src.Content = text
			return nil
		})
	}
	g.Wait()
}

var (
	reScript = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	reStyle  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	reChrome = regexp.MustCompile(`(?is)<(nav|header|footer)[^>]*>.*?</(nav|header|footer)>`)
	reTags   = regexp.MustCompile(`<[^>]+>`)
	reSpace  = regexp.MustCompile(`[ \t]+`)
)

// entityReplacer decodes the handful of entities that dominate page text.
var entityReplacer = strings.NewReplacer(
	"&amp;", "&", "&lt;", "<", "&gt;", ">",
	"&quot;", `"`, "&#39;", "'", "&nbsp;", " ",
)

// stripHTML removes scripts, styles, and page chrome, then all tags, and
// collapses the remaining whitespace.
func stripHTML(html string) string {
	s := reScript.ReplaceAllString(html, "")
	s = reStyle.ReplaceAllString(s, "")
	s = reChrome.ReplaceAllString(s, "")
	s = reTags.ReplaceAllString(s, " ")
	s = entityReplacer.Replace(s)
	s = reSpace.ReplaceAllString(s, " ")

	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
