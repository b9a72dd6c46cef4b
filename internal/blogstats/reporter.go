package blogstats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/bloglist/internal/blog"
	"github.com/2beens/bloglist/internal/telemetry/metrics"
	"github.com/2beens/bloglist/internal/telemetry/tracing"
)

const (
	reportCacheKey  = "blogstats::report"
	reportCacheSize = 1024 * 1024 // freecache minimum is 512KB
)

type blogLister interface {
	All(ctx context.Context) ([]blog.Blog, error)
}

// Report summarizes all stored blogs. The maxima are nil when there are no blogs.
type Report struct {
	Count        int          `json:"count"`
	TotalLikes   int          `json:"total_likes"`
	FavoriteBlog *Favorite    `json:"favorite_blog"`
	MostBlogs    *AuthorBlogs `json:"most_blogs"`
	MostLikes    *AuthorLikes `json:"most_likes"`
}

type Reporter struct {
	store        blogLister
	cache        *freecache.Cache
	cacheTTLSecs int
	metrics      *metrics.Manager

	// generation is bumped by every Invalidate; a report built from an
	// older generation is never cached
	cacheMutex sync.Mutex
	generation uint64
}

// NewReporter creates a Reporter caching reports for cacheTTLSecs seconds; 0 disables the cache.
func NewReporter(store blogLister, cacheTTLSecs int, metricsManager *metrics.Manager) *Reporter {
	r := &Reporter{
		store:        store,
		cacheTTLSecs: cacheTTLSecs,
		metrics:      metricsManager,
	}
	if cacheTTLSecs > 0 {
		r.cache = freecache.NewCache(reportCacheSize)
	}
	return r
}

func (r *Reporter) Report(ctx context.Context) (_ *Report, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "blogstats.report")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if report, ok := r.cached(); ok {
		return report, nil
	}

	generation := r.currentGeneration()
	blogs, err := r.store.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("get all blogs: %w", err)
	}

	report, err := NewReport(blogs)
	if err != nil {
		return nil, err
	}

	r.store2cache(report, generation)

	return report, nil
}

// Invalidate drops the cached report, if any, and discards reports still being built.
func (r *Reporter) Invalidate() {
	if r.cache == nil {
		return
	}

	r.cacheMutex.Lock()
	defer r.cacheMutex.Unlock()

	r.cache.Del([]byte(reportCacheKey))
	r.generation++
}

func (r *Reporter) currentGeneration() uint64 {
	r.cacheMutex.Lock()
	defer r.cacheMutex.Unlock()
	return r.generation
}

// NewReport builds a report from blogs already in memory.
func NewReport(blogs []blog.Blog) (*Report, error) {
	report := &Report{
		Count:      len(blogs),
		TotalLikes: TotalLikes(blogs),
	}
	if len(blogs) == 0 {
		return report, nil
	}

	var err error
	if report.FavoriteBlog, err = FavoriteBlog(blogs); err != nil {
		return nil, fmt.Errorf("favorite blog: %w", err)
	}
	if report.MostBlogs, err = MostBlogs(blogs); err != nil {
		return nil, fmt.Errorf("most blogs: %w", err)
	}
	if report.MostLikes, err = MostLikes(blogs); err != nil {
		return nil, fmt.Errorf("most likes: %w", err)
	}

	return report, nil
}

func (r *Reporter) cached() (*Report, bool) {
	if r.cache == nil {
		return nil, false
	}

	reportBytes, err := r.cache.Get([]byte(reportCacheKey))
	if err != nil {
		if !errors.Is(err, freecache.ErrNotFound) {
			log.Errorf("get blog stats from cache: %s", err)
		}
		return nil, false
	}

	report := &Report{}
	if err := json.Unmarshal(reportBytes, report); err != nil {
		log.Errorf("unmarshal cached blog stats: %s", err)
		return nil, false
	}

	r.metrics.CounterStatsCacheHits.Inc()
	return report, true
}

func (r *Reporter) store2cache(report *Report, generation uint64) {
	if r.cache == nil {
		return
	}

	reportBytes, err := json.Marshal(report)
	if err != nil {
		log.Errorf("marshal blog stats for cache: %s", err)
		return
	}

	r.cacheMutex.Lock()
	defer r.cacheMutex.Unlock()

	if generation != r.generation {
		log.Traceln("blog stats changed while building the report, not caching it")
		return
	}

	if err := r.cache.Set([]byte(reportCacheKey), reportBytes, r.cacheTTLSecs); err != nil {
		log.Errorf("set blog stats cache: %s", err)
		return
	}

	log.Tracef("blog stats cached for %d seconds", r.cacheTTLSecs)
}
