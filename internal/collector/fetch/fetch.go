// Package fetch collects api and scrape sources with a single HTTP request each.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/extract"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/sources"
	"github.com/MrSnakeDoc/datascope/internal/utils"
)

const maxBodyBytes = 10 << 20

type Options struct {
	Timeout     time.Duration // per request, rate-limit wait included
	UserAgent   string
	MaxItems    int     // records kept per source
	RequestRate float64 // requests per second per host
	Client      *http.Client
	Now         func() time.Time
	Logger      logger.Logger
}

type Collector struct {
	opts      Options
	client    *http.Client
	extractor *extract.Extractor
	log       logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func New(opts Options) *Collector {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxItems <= 0 {
		opts.MaxItems = 100
	}
	if opts.RequestRate <= 0 {
		opts.RequestRate = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	return &Collector{
		opts:      opts,
		client:    client,
		extractor: extract.New(),
		log:       opts.Logger.Named("fetch"),
		limiters:  make(map[string]*rate.Limiter),
	}
}

// Collect fetches one api or scrape source. Network failures come back as
// *domain.CollectionError; an unparseable body yields zero records and no error.
func (c *Collector) Collect(ctx context.Context, desc domain.SourceDescriptor, target sources.Target) ([]domain.Record, error) {
	if desc.Kind != domain.KindAPI && desc.Kind != domain.KindScrape {
		return nil, fmt.Errorf("fetch collector cannot run %q: %w", desc.Kind, domain.ErrUnknownKind)
	}

	rawURL := target.Expand(desc.Location, desc.FilterParams)
	pageURL, err := url.Parse(rawURL)
	if err != nil || pageURL.Host == "" {
		return nil, &domain.CollectionError{Source: desc.Name, Reason: domain.ReasonUnreachable,
			Err: fmt.Errorf("invalid url %q", rawURL)}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	if err := c.limiter(pageURL.Host).Wait(ctx); err != nil {
		return nil, &domain.CollectionError{Source: desc.Name, Reason: domain.ReasonTimeout, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, &domain.CollectionError{Source: desc.Name, Reason: domain.ReasonUnreachable, Err: err}
	}
	if c.opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.opts.UserAgent)
	}
	if desc.Kind == domain.KindAPI {
		req.Header.Set("Accept", "application/json")
	} else {
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &domain.CollectionError{Source: desc.Name, Reason: classify(ctx, err), Err: err}
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &domain.CollectionError{Source: desc.Name, Reason: domain.ReasonUnreachable,
			StatusCode: resp.StatusCode}
	}

	items, err := c.extractItems(desc, io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"), pageURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &domain.CollectionError{Source: desc.Name, Reason: domain.ReasonTimeout, Err: err}
		}
		c.log.Warn("unusable response, no records",
			logger.String("source", desc.Name),
			logger.String("url", pageURL.String()),
			logger.Error(err))
		return []domain.Record{}, nil
	}
	if len(items) == 0 {
		c.log.Warn("extraction matched nothing",
			logger.String("source", desc.Name),
			logger.String("items", desc.Rules.Items))
	}
	limit := c.opts.MaxItems
	if desc.MaxItems > 0 && desc.MaxItems < limit {
		limit = desc.MaxItems
	}
	if len(items) > limit {
		items = items[:limit]
	}

	c.log.Debug("source fetched",
		logger.String("source", desc.Name),
		logger.Int("status", resp.StatusCode),
		logger.Int("records", len(items)),
		logger.Duration("took", time.Since(start)))

	return extract.Records(desc.Name, target.Domain, c.opts.Now().UTC(), items), nil
}

func (c *Collector) extractItems(desc domain.SourceDescriptor, body io.Reader, contentType string, pageURL *url.URL) ([]extract.Item, error) {
	if desc.Kind == domain.KindAPI && !isHTML(contentType) {
		return c.extractor.JSONItems(body, desc.Rules)
	}

	doc, err := extract.ParseHTML(body, contentType)
	if err != nil {
		return nil, err
	}
	if desc.Rules.Items == "" {
		item, err := c.extractor.Page(doc, pageURL)
		if err != nil {
			return nil, err
		}
		return []extract.Item{item}, nil
	}
	return c.extractor.HTMLItems(doc, desc.Rules, pageURL), nil
}

func (c *Collector) limiter(host string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.opts.RequestRate), 1)
		c.limiters[host] = l
	}
	return l
}

func classify(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ReasonTimeout
	}
	return domain.ReasonUnreachable
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}
