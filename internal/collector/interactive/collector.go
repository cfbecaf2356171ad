package interactive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/datascope/internal/domain"
	"github.com/MrSnakeDoc/datascope/internal/extract"
	"github.com/MrSnakeDoc/datascope/internal/logger"
	"github.com/MrSnakeDoc/datascope/internal/sources"
)

type Config struct {
	SessionTimeout      time.Duration // wall clock budget for one call, lock wait included
	LoginWait           time.Duration // window for the post-login marker
	PollInterval        time.Duration // login marker polling
	ScrollPause         time.Duration // fixed pacing after each scroll
	MaxItems            int
	MaxScrolls          int // consecutive scrolls without new items
	ScrollLimit         int // total scrolls
	ElementRetries      int
	ElementRetryBackoff time.Duration
	Now                 func() time.Time
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		SessionTimeout:      120 * time.Second,
		LoginWait:           10 * time.Second,
		PollInterval:        250 * time.Millisecond,
		ScrollPause:         2 * time.Second,
		MaxItems:            50,
		MaxScrolls:          5,
		ScrollLimit:         100,
		ElementRetries:      3,
		ElementRetryBackoff: time.Second,
		Now:                 time.Now,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = d.SessionTimeout
	}
	if c.LoginWait <= 0 {
		c.LoginWait = d.LoginWait
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.ScrollPause < 0 {
		c.ScrollPause = 0
	}
	if c.MaxItems <= 0 {
		c.MaxItems = d.MaxItems
	}
	if c.MaxScrolls <= 0 {
		c.MaxScrolls = d.MaxScrolls
	}
	if c.ScrollLimit <= 0 {
		c.ScrollLimit = d.ScrollLimit
	}
	if c.ElementRetries < 0 {
		c.ElementRetries = 0
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Params are the per-call inputs. Zero caps keep the collector defaults.
type Params struct {
	Target     sources.Target
	MaxItems   int
	MaxScrolls int
}

// Outcome is what one interactive call produced. Records holds everything
// extracted before a failure; Err is a *domain.CollectionError when State failed.
type Outcome struct {
	Records []domain.Record
	State   domain.SessionState
	Err     error
}

type Collector struct {
	launcher  Launcher
	cfg       Config
	locks     *LockSet
	extractor *extract.Extractor
	log       logger.Logger
}

func New(launcher Launcher, cfg Config, log logger.Logger) *Collector {
	if log == nil {
		log = logger.Nop()
	}
	return &Collector{
		launcher:  launcher,
		cfg:       cfg.withDefaults(),
		locks:     NewLockSet(),
		extractor: extract.New(),
		log:       log.Named("interactive"),
	}
}

// CollectWithLogin logs in with creds, then runs the extraction loop.
func (c *Collector) CollectWithLogin(ctx context.Context, desc domain.SourceDescriptor, creds domain.Credentials, p Params) Outcome {
	return c.run(ctx, desc, &creds, p)
}

// CollectPublic skips login and starts at extracting.
func (c *Collector) CollectPublic(ctx context.Context, desc domain.SourceDescriptor, p Params) Outcome {
	return c.run(ctx, desc, nil, p)
}

func (c *Collector) run(ctx context.Context, desc domain.SourceDescriptor, creds *domain.Credentials, p Params) Outcome {
	cfg := c.cfg
	if p.MaxItems > 0 {
		cfg.MaxItems = p.MaxItems
	}
	if p.MaxScrolls > 0 {
		cfg.MaxScrolls = p.MaxScrolls
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.SessionTimeout)
	defer cancel()

	r := &call{
		cfg:       cfg,
		desc:      desc,
		target:    p.Target,
		creds:     creds,
		state:     domain.NewSessionState(),
		extractor: c.extractor,
		seen:      make(map[string]struct{}),
		log:       c.log.With(logger.String("source", desc.Name)),
	}

	key := LockKey{Platform: desc.Name}
	if creds != nil {
		key.Username = creds.Username
	}
	release, err := c.locks.Acquire(ctx, key)
	if err != nil {
		r.fail(domain.ReasonSessionTimeout, err)
		return r.outcome()
	}
	defer release()

	sess, err := c.launcher.Launch(ctx)
	if err != nil {
		r.fail(domain.ReasonLaunchFailed, err)
		return r.outcome()
	}
	defer func() {
		if err := sess.Close(); err != nil {
			r.log.Warn("failed to close session", logger.Error(err))
		}
	}()
	r.sess = sess

	r.execute(ctx)

	r.log.Info("interactive session finished",
		logger.String("stage", string(r.state.Stage)),
		logger.String("reason", r.state.Reason),
		logger.Int("items", r.state.ItemsExtracted),
		logger.Int("scrolls", r.state.ScrollCount))
	return r.outcome()
}

// call is the state of one collection call.
type call struct {
	cfg       Config
	desc      domain.SourceDescriptor
	target    sources.Target
	creds     *domain.Credentials
	sess      Session
	state     *domain.SessionState
	extractor *extract.Extractor
	log       logger.Logger

	seen    map[string]struct{}
	records []domain.Record
	err     error
}

func (r *call) outcome() Outcome {
	records := r.records
	if records == nil {
		records = []domain.Record{}
	}
	return Outcome{Records: records, State: *r.state, Err: r.err}
}

// fail records the first failure only.
func (r *call) fail(reason string, err error) {
	if r.state.Stage.Terminal() {
		return
	}
	r.state.Fail(reason)
	r.err = &domain.CollectionError{Source: r.desc.Name, Reason: reason, Err: err}
	r.log.Warn("interactive session failed",
		logger.String("reason", reason),
		logger.Int("items", r.state.ItemsExtracted),
		logger.Error(err))
}

// execute drives the state machine. A panic in the driver or in extraction
// ends the session as dropped; records gathered so far are kept.
func (r *call) execute(ctx context.Context) {
	defer func() {
		if v := recover(); v != nil {
			r.fail(domain.ReasonSessionDropped, fmt.Errorf("panic: %v", v))
		}
	}()

	if r.creds != nil {
		if err := r.advance(domain.StageLoggingIn); err != nil {
			return
		}
		if !r.login(ctx) {
			return
		}
	}
	if err := r.advance(domain.StageExtracting); err != nil {
		return
	}
	if !r.extract(ctx) {
		return
	}
	_ = r.advance(domain.StageDone)
}

func (r *call) advance(next domain.Stage) error {
	if err := r.state.Advance(next); err != nil {
		r.fail(domain.ReasonSessionDropped, err)
		return err
	}
	return nil
}

func (r *call) login(ctx context.Context) bool {
	rules := r.desc.Rules
	loginURL := r.desc.LoginLocation
	if err := r.sess.Navigate(ctx, loginURL); err != nil {
		r.fail(r.reasonFor(ctx, err), err)
		return false
	}

	steps := []struct {
		what string
		do   func() error
	}{
		{"username", func() error { return r.sess.Fill(ctx, rules.UsernameField, r.creds.Username) }},
		{"password", func() error { return r.sess.Fill(ctx, rules.PasswordField, r.creds.Password) }},
		{"login button", func() error { return r.sess.Click(ctx, rules.LoginButton) }},
	}
	for _, step := range steps {
		if err := r.retry(ctx, step.do); err != nil {
			r.fail(r.reasonFor(ctx, err), fmt.Errorf("%s: %w", step.what, err))
			return false
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.LoginWait)
	defer cancel()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		done, err := r.loginSettled(waitCtx, loginURL)
		if err != nil && waitCtx.Err() == nil {
			r.fail(r.reasonFor(ctx, err), err)
			return false
		}
		if done {
			return r.state.Stage == domain.StageLoggingIn && r.advance(domain.StageAuthenticated) == nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				r.fail(domain.ReasonSessionTimeout, ctx.Err())
			} else {
				r.fail(domain.ReasonLoginTimeout, errors.New("no post-login marker within the wait window"))
			}
			return false
		case <-ticker.C:
		}
	}
}

// loginSettled reports whether login reached a verdict. A rejection is
// recorded on the state and also reported as settled.
func (r *call) loginSettled(ctx context.Context, loginURL string) (bool, error) {
	rules := r.desc.Rules
	if rules.LoginErrorMarker != "" {
		rejected, err := r.sess.Exists(ctx, rules.LoginErrorMarker)
		if err != nil {
			return false, err
		}
		if rejected {
			r.fail(domain.ReasonLoginRejected, errors.New("login error marker present"))
			return true, nil
		}
	}
	if rules.LoggedInMarker != "" {
		return r.sess.Exists(ctx, rules.LoggedInMarker)
	}

	current, err := r.sess.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	return !sameURL(current, loginURL), nil
}

func (r *call) extract(ctx context.Context) bool {
	pageURL := r.target.Expand(r.desc.Location, r.desc.FilterParams)
	if err := r.sess.Navigate(ctx, pageURL); err != nil {
		r.fail(r.reasonFor(ctx, err), err)
		return false
	}
	base, _ := url.Parse(pageURL)

	empty := 0
	for r.state.ItemsExtracted < r.cfg.MaxItems &&
		empty < r.cfg.MaxScrolls &&
		r.state.ScrollCount < r.cfg.ScrollLimit {

		if err := r.scroll(ctx); err != nil {
			r.fail(r.reasonFor(ctx, err), err)
			return false
		}
		r.state.ScrollCount++

		if err := pause(ctx, r.cfg.ScrollPause); err != nil {
			r.fail(domain.ReasonSessionTimeout, err)
			return false
		}

		added, err := r.collectVisible(ctx, base)
		if err != nil {
			r.fail(r.reasonFor(ctx, err), err)
			return false
		}
		if added == 0 {
			empty++
		} else {
			empty = 0
		}
	}
	return true
}

// scroll clicks the load-more control when the page has one, otherwise
// scrolls to the bottom.
func (r *call) scroll(ctx context.Context) error {
	if sel := r.desc.Rules.LoadMore; sel != "" {
		ok, err := r.sess.Exists(ctx, sel)
		if err != nil {
			return err
		}
		if ok {
			return r.sess.Click(ctx, sel)
		}
	}
	return r.sess.ScrollToBottom(ctx)
}

var errPage = errors.New("error page detected")

func (r *call) collectVisible(ctx context.Context, base *url.URL) (int, error) {
	html, err := r.sess.HTML(ctx)
	if err != nil {
		return 0, err
	}
	doc, err := extract.ParseHTML(strings.NewReader(html), "text/html; charset=utf-8")
	if err != nil {
		return 0, err
	}
	if sel := r.desc.Rules.ErrorMarker; sel != "" && doc.Find(sel).Length() > 0 {
		r.fail(domain.ReasonErrorPage, errPage)
		return 0, errPage
	}

	at := r.cfg.Now().UTC()
	added := 0
	for _, item := range r.extractor.HTMLItems(doc, r.desc.Rules, base) {
		if r.state.ItemsExtracted >= r.cfg.MaxItems {
			break
		}
		if _, dup := r.seen[item.ID]; dup {
			continue
		}
		r.seen[item.ID] = struct{}{}
		r.records = append(r.records, item.Record(r.desc.Name, r.target.Domain, at))
		r.state.ItemsExtracted++
		added++
	}
	return added, nil
}

func (r *call) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= r.cfg.ElementRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !errors.Is(err, ErrElementNotFound) {
			return err
		}
		if attempt < r.cfg.ElementRetries {
			if perr := pause(ctx, r.cfg.ElementRetryBackoff); perr != nil {
				return perr
			}
		}
	}
	return err
}

func (r *call) reasonFor(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded):
		return domain.ReasonSessionTimeout
	case errors.Is(err, ErrElementNotFound):
		return domain.ReasonElementNotFound
	default:
		return domain.ReasonSessionDropped
	}
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func sameURL(a, b string) bool {
	return strings.TrimRight(a, "/") == strings.TrimRight(b, "/")
}
