package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"quiz-solver/internal/cache"
	"quiz-solver/internal/config"
	"quiz-solver/internal/domain"
	"quiz-solver/internal/logger"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// browserUserAgent keeps file hosts that reject default Go clients
	// from returning 403s.
	browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	// maxBodyBytes caps a single downloaded resource.
	maxBodyBytes = 32 << 20
)

// Fetcher downloads quiz resources. Responses are cached by URL when a
// cache is configured, and concurrent fetches of the same URL are
// deduplicated so only one request hits the origin.
type Fetcher struct {
	client   *http.Client
	cache    domain.Cache
	cacheTTL time.Duration
	group    singleflight.Group
}

// NewFetcher builds a Fetcher. contentCache may be nil, in which case
// every Fetch goes to the origin.
func NewFetcher(cfg *config.Config, contentCache domain.Cache) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: cfg.Quiz.FetchTimeout},
		cache:    contentCache,
		cacheTTL: cfg.Quiz.CacheTTL,
	}
}

// Fetch returns the resource at url, from cache when possible. Cache
// failures degrade to a refetch and never fail the request.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*domain.Resource, error) {
	l := logger.Get()

	if body, contentType, ok := f.cacheGet(ctx, url); ok {
		l.Debug("Resource cache hit", zap.String("url", url))
		return &domain.Resource{URL: url, ContentType: contentType, Body: body}, nil
	}

	v, err, _ := f.group.Do(url, func() (interface{}, error) {
		return f.download(ctx, url)
	})
	if err != nil {
		return nil, err
	}
	res := v.(*domain.Resource)

	f.cacheSet(ctx, url, res)
	return res, nil
}

func (f *Fetcher) download(ctx context.Context, url string) (*domain.Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, domain.NewNavigationError(url, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.NewNavigationError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, domain.NewNavigationError(url,
			fmt.Errorf("resource returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewNavigationError(url, err)
	}

	return &domain.Resource{
		URL:         url,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Cached entries are stored as "<content-type>\n<body>"; content types
// never contain newlines.
func (f *Fetcher) cacheGet(ctx context.Context, url string) ([]byte, string, bool) {
	if f.cache == nil {
		return nil, "", false
	}
	raw, err := f.cache.Get(ctx, cache.ResourceKey(url))
	if err != nil {
		if err != domain.ErrCacheMiss {
			logger.Get().Warn("Resource cache read failed", zap.String("url", url), zap.Error(err))
		}
		return nil, "", false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\n' {
			return []byte(raw[i+1:]), raw[:i], true
		}
	}
	return nil, "", false
}

func (f *Fetcher) cacheSet(ctx context.Context, url string, res *domain.Resource) {
	if f.cache == nil {
		return
	}
	entry := res.ContentType + "\n" + string(res.Body)
	if err := f.cache.Set(ctx, cache.ResourceKey(url), entry, f.cacheTTL); err != nil {
		logger.Get().Warn("Resource cache write failed", zap.String("url", url), zap.Error(err))
	}
}
