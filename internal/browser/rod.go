// Package browser drives Chrome through go-rod for the interactive collector.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/MrSnakeDoc/datascope/internal/collector/interactive"
	"github.com/MrSnakeDoc/datascope/internal/logger"
)

type Options struct {
	Headless       bool
	ControlURL     string        // attach to a running browser instead of launching one
	ElementTimeout time.Duration // how long one lookup waits for a selector
	Logger         logger.Logger
}

// blocked resource types never affect the extracted markup.
var blocked = map[proto.NetworkResourceType]bool{
	proto.NetworkResourceTypeImage: true,
	proto.NetworkResourceTypeFont:  true,
	proto.NetworkResourceTypeMedia: true,
}

// Launcher starts one browser per session.
type Launcher struct {
	opts Options
	log  logger.Logger
}

func NewLauncher(opts Options) *Launcher {
	if opts.ElementTimeout <= 0 {
		opts.ElementTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Launcher{opts: opts, log: opts.Logger.Named("browser")}
}

// Available reports whether a browser can be started at all. It is checked
// once at startup to decide whether interactive collection is enabled.
func (l *Launcher) Available() error {
	if l.opts.ControlURL != "" {
		return nil
	}
	if _, ok := launcher.LookPath(); !ok {
		return errors.New("no chrome or chromium binary found")
	}
	return nil
}

func (l *Launcher) Launch(ctx context.Context) (interactive.Session, error) {
	var lnch *launcher.Launcher
	wsURL := l.opts.ControlURL
	if wsURL == "" {
		lnch = launcher.New().
			Context(ctx).
			Headless(l.opts.Headless).
			Set("disable-blink-features", "AutomationControlled")
		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Kill()
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		if lnch != nil {
			lnch.Kill()
		}
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	s := &Session{browser: b, page: page, lnch: lnch, opts: l.opts, log: l.log}
	if err := s.blockResources(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Session is a single stealth tab in a dedicated browser.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	lnch    *launcher.Launcher
	router  *rod.HijackRouter
	opts    Options
	log     logger.Logger

	closeOnce sync.Once
	closeErr  error
}

func (s *Session) blockResources() error {
	s.router = s.page.HijackRequests()
	err := s.router.Add("*", "", func(h *rod.Hijack) {
		if blocked[h.Request.Type()] {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	if err != nil {
		return fmt.Errorf("browser: intercept requests: %w", err)
	}
	go s.router.Run()
	return nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		s.log.Debug("wait load", logger.String("url", url), logger.Error(err))
	}
	return nil
}

func (s *Session) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := s.page.Context(ctx).Timeout(s.opts.ElementTimeout).Element(selector)
	if err != nil {
		if ctx.Err() == nil {
			return nil, fmt.Errorf("%w: %s", interactive.ErrElementNotFound, selector)
		}
		return nil, err
	}
	return el, nil
}

func (s *Session) Fill(ctx context.Context, selector, value string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(value)
}

func (s *Session) Click(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	has, _, err := s.page.Context(ctx).Has(selector)
	return has, err
}

func (s *Session) CurrentURL(ctx context.Context) (string, error) {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (s *Session) ScrollToBottom(ctx context.Context) error {
	_, err := s.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Close tears down the tab, the browser and any launched process. Repeated
// calls return the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.router != nil {
			errs = append(errs, s.router.Stop())
		}
		errs = append(errs, s.page.Close(), s.browser.Close())
		if s.lnch != nil {
			s.lnch.Kill()
			s.lnch.Cleanup()
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
