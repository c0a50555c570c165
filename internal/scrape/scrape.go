// Package scrape fetches a bookmarked page and extracts its meta description.
// Enrichment is best-effort: failures are counted and dropped, never surfaced
// to the user, and a description is only ever written once.
package scrape

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/curioapp/curio/internal/logger"
	"github.com/curioapp/curio/internal/metrics"
	"github.com/curioapp/curio/internal/store"
)

// maxBodyBytes caps how much of a page is read looking for meta tags.
const maxBodyBytes = 512 * 1024

var descriptionRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<meta[^>]*name=["']description["'][^>]*content=["']([^"']*)["']`),
	regexp.MustCompile(`(?i)<meta[^>]*content=["']([^"']*)["'][^>]*name=["']description["']`),
	regexp.MustCompile(`(?i)<meta[^>]*property=["']og:description["'][^>]*content=["']([^"']*)["']`),
}

// Job asks the worker to enrich one bookmark.
type Job struct {
	OwnerID    string
	BookmarkID string
	URL        string
}

// Enqueuer accepts scrape jobs without blocking.
type Enqueuer interface {
	Enqueue(Job)
}

// Worker consumes jobs from a buffered channel and writes descriptions back
// through the bookmark store, so the enrichment propagates over the change
// stream like any other update.
type Worker struct {
	jobs      chan Job
	bookmarks store.BookmarkStoreIface
	client    *http.Client
	log       logger.Logger
}

func NewWorker(bookmarks store.BookmarkStoreIface, log logger.Logger) *Worker {
	return &Worker{
		jobs:      make(chan Job, 256),
		bookmarks: bookmarks,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log,
	}
}

// Enqueue hands a job to the worker. If the queue is full the job is dropped;
// enrichment is not worth backpressure on the request path.
func (w *Worker) Enqueue(job Job) {
	select {
	case w.jobs <- job:
	default:
		w.log.Warn("scrape queue full, dropping job", logger.String("url", job.URL))
	}
}

// Run processes jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-w.jobs:
			w.process(ctx, job)
		}
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	desc, err := w.fetchDescription(ctx, job.URL)
	if err != nil {
		metrics.ScrapeErrorsTotal.Inc()
		w.log.Debug("scrape failed", logger.String("url", job.URL), logger.Error(err))
		return
	}
	if desc == "" {
		return
	}
	if err := w.bookmarks.SetDescription(ctx, job.OwnerID, job.BookmarkID, desc); err != nil {
		w.log.Debug("description write failed", logger.String("id", job.BookmarkID), logger.Error(err))
	}
}

func (w *Worker) fetchDescription(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; curio/1.0)")

	resp, err := w.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", err
	}
	return ExtractDescription(string(body)), nil
}

// ExtractDescription pulls the first meta description (or og:description)
// out of an HTML document. Returns "" when none is present.
func ExtractDescription(html string) string {
	for _, re := range descriptionRes {
		if m := re.FindStringSubmatch(html); m != nil {
			return m[1]
		}
	}
	return ""
}
