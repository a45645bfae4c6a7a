package browser

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/jmylchreest/renderd/internal/cookies"
)

// RodEngine launches headless Chromium via go-rod.
type RodEngine struct {
	chromePath string
	logger     *slog.Logger
}

// NewRodEngine creates an engine. chromePath may be empty, in which case rod
// resolves (and if necessary downloads) its own Chromium build.
func NewRodEngine(chromePath string, logger *slog.Logger) *RodEngine {
	return &RodEngine{chromePath: chromePath, logger: logger}
}

// Launch starts a browser process. If the first launch attempt fails it
// retries once with the leakless wrapper disabled, which is the usual culprit
// on locked-down hosts.
func (e *RodEngine) Launch(ctx context.Context) (Handle, error) {
	u, err := e.launch(true)
	if err != nil {
		e.logger.Warn("browser launch failed, retrying without leakless", "error", err)
		u, err = e.launch(false)
		if err != nil {
			return nil, err
		}
	}

	b := rod.New().ControlURL(u).Context(ctx)
	if err := b.Connect(); err != nil {
		return nil, err
	}

	e.logger.Info("browser launched")
	return &rodHandle{browser: b, logger: e.logger}, nil
}

func (e *RodEngine) launch(leakless bool) (string, error) {
	l := launcher.New().Leakless(leakless).Headless(true)
	if e.chromePath != "" {
		l = l.Bin(e.chromePath)
	}
	l = l.
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu").
		Set("no-sandbox").
		Set("disable-setuid-sandbox").
		Set("disable-infobars").
		Set("lang", "en-US,en").
		Set("window-size", "1920,1080")
	return l.Launch()
}

type rodHandle struct {
	browser *rod.Browser
	logger  *slog.Logger
}

func (h *rodHandle) NewSession(seed []cookies.Record) (Session, error) {
	inc, err := h.browser.Incognito()
	if err != nil {
		return nil, err
	}

	s := &rodSession{browser: inc, logger: h.logger}
	if len(seed) > 0 {
		if err := s.SetCookies(seed); err != nil {
			h.logger.Warn("failed to seed session cookies, continuing without", "error", err)
		}
	}
	return s, nil
}

func (h *rodHandle) Close() error {
	return h.browser.Close()
}

type rodSession struct {
	browser *rod.Browser
	logger  *slog.Logger
}

func (s *rodSession) NewPage() (Page, error) {
	page, err := stealth.Page(s.browser)
	if err != nil {
		return nil, err
	}
	return &rodPage{page: page}, nil
}

func (s *rodSession) Cookies() ([]cookies.Record, error) {
	cs, err := s.browser.GetCookies()
	if err != nil {
		return nil, err
	}
	return cookies.FromNetworkCookies(cs), nil
}

func (s *rodSession) SetCookies(recs []cookies.Record) error {
	// SetCookies(nil) clears, so the session ends up with exactly recs.
	if err := s.browser.SetCookies(nil); err != nil {
		return err
	}
	if len(recs) == 0 {
		return nil
	}
	return s.browser.SetCookies(cookies.ToCookieParams(recs))
}

func (s *rodSession) Close() error {
	return proto.TargetDisposeBrowserContext{
		BrowserContextID: s.browser.BrowserContextID,
	}.Call(s.browser)
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *rodPage) WaitSettled(timeout time.Duration) error {
	pg := p.page.Timeout(timeout)
	wait := pg.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	wait()
	return nil
}

func (p *rodPage) Content() (string, error) {
	return p.page.HTML()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
