// Package orchestrator runs one domain collection: cache first, then every
// resolved source, merged into a single CollectionResult.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/datascope/internal/collector/interactive"
	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/sources"
	"github.com/MrSnakeDoc/datascope/internal/store"
)

// Resolver turns a domain into its ordered sources.
type Resolver interface {
	Resolve(domainName string) []domain.SourceDescriptor
	// Known is false when Resolve answers with the generic fallback.
	Known(domainName string) bool
}

// Fetcher runs api and scrape sources.
type Fetcher interface {
	Collect(ctx context.Context, desc domain.SourceDescriptor, target sources.Target) ([]domain.Record, error)
}

// Interactive runs interactive sources.
type Interactive interface {
	CollectWithLogin(ctx context.Context, desc domain.SourceDescriptor, creds domain.Credentials, p interactive.Params) interactive.Outcome
	CollectPublic(ctx context.Context, desc domain.SourceDescriptor, p interactive.Params) interactive.Outcome
}

type Options struct {
	TTL            time.Duration
	MaxConcurrency int
	Now            func() time.Time
	NewRunID       func() string
	Logger         logger.Logger
}

// Request is one collection call.
type Request struct {
	Domain      string
	Location    string
	Filters     map[string]string
	UseCache    bool
	Credentials map[string]domain.Credentials // keyed by source name
}

type Orchestrator struct {
	registry    Resolver
	cache       store.CacheStore
	fetcher     Fetcher
	interactive Interactive // nil when interactive collection is disabled
	opts        Options
	log         logger.Logger
}

func New(registry Resolver, cache store.CacheStore, fetcher Fetcher, inter Interactive, opts Options) *Orchestrator {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = func() string { return uuid.NewString() }
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Orchestrator{
		registry:    registry,
		cache:       cache,
		fetcher:     fetcher,
		interactive: inter,
		opts:        opts,
		log:         opts.Logger.Named("orchestrator"),
	}
}

// InteractiveEnabled reports whether interactive sources can run.
func (o *Orchestrator) InteractiveEnabled() bool { return o.interactive != nil }

// ClearCache drops every cached result of a domain.
func (o *Orchestrator) ClearCache(ctx context.Context, domainName string) (int, error) {
	name := domain.NormalizeDomain(domainName)
	if name == "" {
		return 0, fmt.Errorf("%w: empty domain", domain.ErrInvalidRequest)
	}
	return o.cache.Invalidate(ctx, store.DomainPrefix(name))
}

// sourceResult is the outcome of one source, stored in its registry slot.
type sourceResult struct {
	records   []domain.Record
	report    domain.SourceReport
	attempted bool
	succeeded bool
	warning   string
}

// Collect never fails because of a source. The only error is a malformed request.
func (o *Orchestrator) Collect(ctx context.Context, req Request) (*domain.CollectionResult, error) {
	name := domain.NormalizeDomain(req.Domain)
	key, err := store.Key(name, req.Location, req.Filters)
	if err != nil {
		return nil, err
	}

	log := o.log.With(logger.String("domain", name), logger.String("location", req.Location))

	if req.UseCache {
		if entry, ok := o.cache.Get(ctx, key); ok && store.IsFresh(entry, o.opts.TTL, o.opts.Now()) {
			log.Info("cache hit", logger.Time("fetched_at", entry.FetchedAt))
			res := entry.Payload
			res.FromCache = true
			return &res, nil
		}
	}

	descs := o.registry.Resolve(name)
	fallback := !o.registry.Known(name)
	if fallback {
		log.Info("no configured sources, using generic web search")
	}
	target := sources.Target{Domain: name, Location: req.Location, Filters: req.Filters}
	start := time.Now()

	slots := make([]sourceResult, len(descs))
	sem := make(chan struct{}, o.opts.MaxConcurrency)
	var wg sync.WaitGroup
	for i, desc := range descs {
		wg.Add(1)
		go func(i int, desc domain.SourceDescriptor) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			slots[i] = o.collectSource(ctx, desc, target, req.Credentials)
		}(i, desc)
	}
	wg.Wait()

	res := &domain.CollectionResult{
		RunID:       o.opts.NewRunID(),
		Domain:      name,
		Location:    req.Location,
		Filters:     cloneFilters(req.Filters),
		CollectedAt: o.opts.Now().UTC(),
	}
	if fallback {
		res.Warnings = append(res.Warnings, fmt.Sprintf("no sources configured for %s, fell back to generic web search", name))
	}
	var records []domain.Record
	for _, s := range slots {
		records = append(records, s.records...)
		res.Sources = append(res.Sources, s.report)
		if s.warning != "" {
			res.Warnings = append(res.Warnings, s.warning)
		}
		if s.attempted {
			res.SourcesAttempted++
		}
		if s.succeeded {
			res.SourcesSucceeded++
		}
	}
	res.SetRecords(records)
	res.ComputeDegraded()

	if err := o.cache.Put(ctx, key, res); err != nil {
		log.Error("failed to write cache entry", logger.String("key", key), logger.Error(err))
	}

	fields := []logger.Field{
		logger.Int("records", len(res.Records)),
		logger.Int("attempted", res.SourcesAttempted),
		logger.Int("succeeded", res.SourcesSucceeded),
		logger.Duration("took", time.Since(start)),
	}
	if res.Degraded {
		log.Warn("collection degraded, every source failed", fields...)
	} else {
		log.Info("collection finished", fields...)
	}
	return res, nil
}

func (o *Orchestrator) collectSource(ctx context.Context, desc domain.SourceDescriptor, target sources.Target, creds map[string]domain.Credentials) (out sourceResult) {
	out.report = domain.SourceReport{Name: desc.Name, Kind: desc.Kind}
	log := o.log.With(logger.String("source", desc.Name), logger.String("kind", string(desc.Kind)))

	defer func() {
		if v := recover(); v != nil {
			log.Error("source collection panicked", logger.String("panic", fmt.Sprint(v)))
			out = failed(out, nil, fmt.Sprintf("panic: %v", v))
		}
	}()

	if desc.RequiresLocation && target.Location == "" {
		return skipped(out, fmt.Sprintf("%s skipped: a location is required", desc.Name))
	}

	switch desc.Kind {
	case domain.KindAPI, domain.KindScrape:
		records, err := o.fetcher.Collect(ctx, desc, target)
		if err != nil {
			log.Warn("source unavailable", logger.Error(err))
			return failed(out, records, reasonOf(err))
		}
		return succeeded(out, records)

	case domain.KindInteractive:
		if o.interactive == nil {
			return skipped(out, fmt.Sprintf("%s skipped: interactive collection is disabled", desc.Name))
		}
		p := interactive.Params{Target: target}
		var outcome interactive.Outcome
		c, hasCreds := creds[desc.Name]
		switch {
		case hasCreds && desc.LoginLocation != "":
			outcome = o.interactive.CollectWithLogin(ctx, desc, c, p)
		case !desc.AuthRequired:
			outcome = o.interactive.CollectPublic(ctx, desc, p)
		default:
			return skipped(out, fmt.Sprintf("%s skipped: no credentials supplied", desc.Name))
		}
		out.report.Stage = outcome.State.Stage
		if outcome.Err != nil {
			// partial records still count as a success
			res := failed(out, outcome.Records, outcome.State.Reason)
			res.succeeded = len(outcome.Records) > 0
			if res.succeeded {
				res.report.Status = domain.StatusOK
			}
			return res
		}
		return succeeded(out, outcome.Records)

	default:
		return failed(out, nil, fmt.Sprintf("unknown kind %q", desc.Kind))
	}
}

func succeeded(out sourceResult, records []domain.Record) sourceResult {
	out.records = records
	out.attempted = true
	out.succeeded = true
	out.report.Status = domain.StatusOK
	out.report.Records = len(records)
	return out
}

func failed(out sourceResult, records []domain.Record, reason string) sourceResult {
	out.records = records
	out.attempted = true
	out.report.Status = domain.StatusFailed
	out.report.Reason = reason
	out.report.Records = len(records)
	out.warning = fmt.Sprintf("%s failed: %s", out.report.Name, reason)
	return out
}

func skipped(out sourceResult, warning string) sourceResult {
	out.report.Status = domain.StatusSkipped
	out.warning = warning
	return out
}

func reasonOf(err error) string {
	var cerr *domain.CollectionError
	if errors.As(err, &cerr) {
		if cerr.StatusCode != 0 {
			return fmt.Sprintf("%s (http %d)", cerr.Reason, cerr.StatusCode)
		}
		return cerr.Reason
	}
	return domain.ReasonUnreachable
}

func cloneFilters(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
