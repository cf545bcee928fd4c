package spider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"jobspider/internal/config"
	"jobspider/internal/dataset"
	"jobspider/internal/errors"
	"jobspider/internal/messaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// plainFetcher hits the test server directly, without retries or caching.
type plainFetcher struct{}

func (plainFetcher) Page(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", errors.NotFound("page not found", nil)
	}
	body, err := io.ReadAll(resp.Body)
	return string(body), err
}

// mapFetcher serves canned bodies keyed by URL, standing in for the network.
type mapFetcher struct {
	mutex       sync.Mutex
	pages       map[string]string
	invalidated []string
}

func (f *mapFetcher) Page(_ context.Context, url string) (string, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	body, ok := f.pages[url]
	if !ok {
		return "", errors.NotFound("page not found: "+url, nil)
	}
	return body, nil
}

func (f *mapFetcher) Invalidate(_ context.Context, url string) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	delete(f.pages, url)
	f.invalidated = append(f.invalidated, url)
	return nil
}

func listingPage(links ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>\n")
	for _, link := range links {
		fmt.Fprintf(&b, `<a class="base-card__full-link" href="%s">job</a>`+"\n", link)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func searchResultsPage(countText string, blurred bool) string {
	var b strings.Builder
	b.WriteString(`<html><body><h1 class="results-context-header__context">`)
	if countText != "" {
		fmt.Fprintf(&b, `<span class="results-context-header__job-count">%s</span>`, countText)
	}
	b.WriteString("</h1>\n")
	if blurred {
		b.WriteString(`<div class="blurred-content blur"><ul><li></li></ul></div>` + "\n")
	}
	b.WriteString("</body></html>")
	return b.String()
}

const searchTarget = "https://www.linkedin.com/jobs/search?keywords=go&location=London&geoId=101"

func searchPageURL(start int) string {
	return fmt.Sprintf("https://www.linkedin.com/jobs/search"+
		"?keywords=go&location=London&geoId=101"+
		"&trk=public_jobs_jobs-search-bar_search-submit&start=%d", start)
}

func detailPage(title string) string {
	return fmt.Sprintf(`<html><head>
<script type="application/ld+json">{
  "@type": "JobPosting",
  "title": %q,
  "description": "Do the work.",
  "datePosted": "2025-05-01",
  "hiringOrganization": {"name": "Acme"},
  "jobLocation": {"address": {"addressLocality": "London", "addressCountry": "GB"}}
}</script>
</head><body></body></html>`, title)
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var base string

	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
			<a class="base-card__full-link" href="%s/jobs/view/1">one</a>
			<a class="base-card__full-link" href="%s/jobs/view/2">two</a>
		</body></html>`, base, base)
	})
	mux.HandleFunc("/jobs/view/1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, detailPage("Backend Engineer"))
	})
	mux.HandleFunc("/jobs/view/2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, detailPage("Data Engineer"))
	})

	srv := httptest.NewServer(mux)
	base = srv.URL
	t.Cleanup(srv.Close)
	return srv
}

func testSpider(t *testing.T, outPath string, fetcher Fetcher) *Spider {
	t.Helper()

	writer, err := dataset.NewWriter(outPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	cfg := &config.Config{
		PageWorkers:   2,
		DetailWorkers: 2,
	}
	return New(fetcher, messaging.NopPublisher{}, writer, zap.NewNop(), cfg)
}

func TestRunListMode(t *testing.T) {
	srv := newTestServer(t)
	outPath := filepath.Join(t.TempDir(), "data_1.csv")
	s := testSpider(t, outPath, plainFetcher{})

	stats, err := s.Run(context.Background(), ModeList, []string{srv.URL + "/list"})
	require.NoError(t, err)

	assert.Equal(t, int32(3), stats.PagesFetched)
	assert.Equal(t, int32(2), stats.PostingsParsed)
	assert.Equal(t, int32(2), stats.PostingsWritten)
	assert.Equal(t, int32(0), stats.Failures)
}

func TestRunSearchMode(t *testing.T) {
	fetcher := &mapFetcher{pages: map[string]string{
		searchTarget:               searchResultsPage("38 jobs", false),
		searchPageURL(0):           listingPage("https://jobs.test/view/1"),
		searchPageURL(25):          listingPage("https://jobs.test/view/2"),
		"https://jobs.test/view/1": detailPage("Backend Engineer"),
		"https://jobs.test/view/2": detailPage("Data Engineer"),
	}}
	outPath := filepath.Join(t.TempDir(), "data_1.csv")
	s := testSpider(t, outPath, fetcher)

	stats, err := s.Run(context.Background(), ModeSearch, []string{searchTarget})
	require.NoError(t, err)

	assert.Equal(t, int32(5), stats.PagesFetched)
	assert.Equal(t, int32(2), stats.PostingsWritten)
	assert.Equal(t, int32(0), stats.Failures)
}

func TestRunSearchModeBlurredLimitsToOnePage(t *testing.T) {
	// 75 results would be three pages, but blurred results only show the
	// first. Pages past start=0 are absent, so fetching them would fail.
	fetcher := &mapFetcher{pages: map[string]string{
		searchTarget:               searchResultsPage("75 jobs", true),
		searchPageURL(0):           listingPage("https://jobs.test/view/1"),
		"https://jobs.test/view/1": detailPage("Backend Engineer"),
	}}
	outPath := filepath.Join(t.TempDir(), "data_1.csv")
	s := testSpider(t, outPath, fetcher)

	stats, err := s.Run(context.Background(), ModeSearch, []string{searchTarget})
	require.NoError(t, err)

	assert.Equal(t, int32(3), stats.PagesFetched)
	assert.Equal(t, int32(1), stats.PostingsWritten)
	assert.Equal(t, int32(0), stats.Failures)
}

func TestRunSearchModeMissingCount(t *testing.T) {
	fetcher := &mapFetcher{pages: map[string]string{
		searchTarget: searchResultsPage("", false),
	}}
	outPath := filepath.Join(t.TempDir(), "data_1.csv")
	s := testSpider(t, outPath, fetcher)

	stats, err := s.Run(context.Background(), ModeSearch, []string{searchTarget})
	require.NoError(t, err)

	assert.Equal(t, int32(1), stats.PagesFetched)
	assert.Equal(t, int32(0), stats.PostingsWritten)
	assert.Equal(t, int32(0), stats.Failures)
}

func TestRunInvalidatesUnparseableDetailPage(t *testing.T) {
	fetcher := &mapFetcher{pages: map[string]string{
		"https://jobs.test/list":   listingPage("https://jobs.test/view/1"),
		"https://jobs.test/view/1": "<html><body>nothing here</body></html>",
	}}
	outPath := filepath.Join(t.TempDir(), "data_1.csv")
	s := testSpider(t, outPath, fetcher)

	stats, err := s.Run(context.Background(), ModeList, []string{"https://jobs.test/list"})
	require.NoError(t, err)

	assert.Equal(t, int32(0), stats.PostingsWritten)
	assert.Equal(t, int32(1), stats.Failures)
	assert.Equal(t, []string{"https://jobs.test/view/1"}, fetcher.invalidated)
}

func TestRunCountsFailures(t *testing.T) {
	srv := newTestServer(t)
	outPath := filepath.Join(t.TempDir(), "data_1.csv")
	s := testSpider(t, outPath, plainFetcher{})

	stats, err := s.Run(context.Background(), ModeList, []string{
		srv.URL + "/list",
		srv.URL + "/no-such-page",
	})
	require.NoError(t, err)

	assert.Equal(t, int32(2), stats.PostingsWritten)
	assert.Equal(t, int32(1), stats.Failures)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "data_1.csv")
	s := testSpider(t, outPath, plainFetcher{})

	_, err := s.Run(context.Background(), "turbo", []string{"https://example.com"})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeInvalidInput))
}

func TestRunCancelled(t *testing.T) {
	srv := newTestServer(t)
	outPath := filepath.Join(t.TempDir(), "data_1.csv")
	s := testSpider(t, outPath, plainFetcher{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Run(ctx, ModeList, []string{srv.URL + "/list"})
	require.ErrorIs(t, err, context.Canceled)
}
