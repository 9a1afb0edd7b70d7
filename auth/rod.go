package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

const (
	DefaultLoginURL  = "https://note.com/login"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	DefaultTimeout   = 10 * time.Second

	pollInterval = 200 * time.Millisecond
	closeTimeout = 5 * time.Second
)

// DefaultFlags mirrors the Chrome switches the poster has always run with.
var DefaultFlags = []string{
	"--no-sandbox",
	"--disable-dev-shm-usage",
	"--disable-gpu",
	"--window-size=1920,1080",
}

// RodConfig drives RodAcquirer.
type RodConfig struct {
	LoginURL         string
	Bin              string
	Headless         bool
	Flags            []string
	UserAgent        string
	Timeout          time.Duration
	EmailSelector    string
	PasswordSelector string
	SubmitSelector   string
}

func (c RodConfig) withDefaults() RodConfig {
	if c.LoginURL == "" {
		c.LoginURL = DefaultLoginURL
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Flags == nil {
		c.Flags = DefaultFlags
	}
	if c.EmailSelector == "" {
		c.EmailSelector = `input[name="email"]`
	}
	if c.PasswordSelector == "" {
		c.PasswordSelector = `input[name="password"]`
	}
	if c.SubmitSelector == "" {
		c.SubmitSelector = `button[type="submit"]`
	}
	return c
}

// RodAcquirer logs in through a dedicated Chromium instance. Each Acquire
// launches its own browser and tears it down before returning.
type RodAcquirer struct {
	cfg    RodConfig
	logger *zap.Logger
}

func NewRodAcquirer(cfg RodConfig, logger *zap.Logger) *RodAcquirer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RodAcquirer{cfg: cfg.withDefaults(), logger: logger}
}

// Acquire implements Acquirer.
func (a *RodAcquirer) Acquire(ctx context.Context, id Identity) (bundle Bundle, err error) {
	defer func() {
		if r := recover(); r != nil {
			bundle, err = Bundle{}, &AuthError{Reason: ReasonUnexpected, Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			a.logger.Error("login failed", zap.Error(err))
		}
	}()

	if !id.Valid() {
		return Bundle{}, &AuthError{Reason: ReasonUnexpected, Err: errors.New("email and password are required")}
	}

	l := a.launcher()
	controlURL, err := l.Launch()
	if err != nil {
		return Bundle{}, classify("launch browser", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return Bundle{}, classify("connect browser", err)
	}
	defer a.closeBrowser(ctx, browser, l)

	tokens, err := a.login(ctx, browser, id)
	if err != nil {
		return Bundle{}, err
	}
	if len(tokens) == 0 {
		return Bundle{}, &AuthError{Reason: ReasonUnexpected, Err: errors.New("no session cookies after login")}
	}
	a.logger.Info("login succeeded", zap.Int("cookies", len(tokens)))
	return NewBundle(tokens), nil
}

// closeBrowser runs on every exit path, including a cancelled ctx. Close
// gets its own deadline because a dead ctx would fail the CDP call, and
// Chrome is killed when Close fails so that Launcher.Cleanup can return.
func (a *RodAcquirer) closeBrowser(ctx context.Context, browser *rod.Browser, l *launcher.Launcher) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	if err := browser.Context(closeCtx).Close(); err != nil {
		a.logger.Debug("close browser, killing process", zap.Error(err))
		l.Kill()
	}
}

func (a *RodAcquirer) launcher() *launcher.Launcher {
	l := launcher.New().Headless(a.cfg.Headless)
	if a.cfg.Bin != "" {
		l = l.Bin(a.cfg.Bin)
	}
	for _, raw := range a.cfg.Flags {
		name, val, hasVal := strings.Cut(strings.TrimLeft(raw, "-"), "=")
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

func (a *RodAcquirer) login(ctx context.Context, browser *rod.Browser, id Identity) (map[string]string, error) {
	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, classify("open page", err)
	}
	defer func() { _ = page.Close() }()

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: a.cfg.UserAgent}); err != nil {
		return nil, classify("set user agent", err)
	}

	a.logger.Info("opening login page", zap.String("url", a.cfg.LoginURL))
	if err := page.Timeout(a.cfg.Timeout).Navigate(a.cfg.LoginURL); err != nil {
		return nil, classify("navigate", err)
	}

	// Element retries until the selector matches or the timeout expires.
	email, err := page.Timeout(a.cfg.Timeout).Element(a.cfg.EmailSelector)
	if err != nil {
		return nil, classify("wait for email field", err)
	}
	if err := fill(email, id.Email); err != nil {
		return nil, classify("fill email", err)
	}

	password, err := page.Timeout(a.cfg.Timeout).Element(a.cfg.PasswordSelector)
	if err != nil {
		return nil, classify("find password field", err)
	}
	if err := fill(password, id.Password); err != nil {
		return nil, classify("fill password", err)
	}

	submit, err := page.Timeout(a.cfg.Timeout).Element(a.cfg.SubmitSelector)
	if err != nil {
		return nil, classify("find submit button", err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, classify("submit login form", err)
	}

	if err := a.waitLoggedIn(ctx, page); err != nil {
		return nil, err
	}

	cookies, err := page.Cookies(nil)
	if err != nil {
		return nil, classify("read cookies", err)
	}
	tokens := make(map[string]string, len(cookies))
	for _, c := range cookies {
		tokens[c.Name] = c.Value
	}
	return tokens, nil
}

// waitLoggedIn polls the page location until it leaves the login path.
func (a *RodAcquirer) waitLoggedIn(ctx context.Context, page *rod.Page) error {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		info, err := page.Context(ctx).Info()
		if err != nil {
			return classify("wait for login", err)
		}
		if LeftLoginPage(a.cfg.LoginURL, info.URL) {
			return nil
		}
		select {
		case <-ctx.Done():
			return classify("wait for login", ctx.Err())
		case <-ticker.C:
		}
	}
}

func fill(el *rod.Element, text string) error {
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(text)
}

// LeftLoginPage reports whether current is on the login host but no longer
// under the login path, compared segment by segment.
func LeftLoginPage(loginURL, current string) bool {
	login, err := url.Parse(loginURL)
	if err != nil {
		return false
	}
	cur, err := url.Parse(current)
	if err != nil || cur.Host == "" {
		return false
	}
	if !strings.EqualFold(cur.Hostname(), login.Hostname()) {
		return false
	}
	want := pathSegments(login.Path)
	got := pathSegments(cur.Path)
	if len(want) == 0 {
		// A login form at the site root is left once any other path is shown.
		return len(got) > 0
	}
	if len(got) < len(want) {
		return true
	}
	for i := range want {
		if got[i] != want[i] {
			return true
		}
	}
	return false
}

func pathSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func classify(step string, err error) *AuthError {
	wrapped := fmt.Errorf("%s: %w", step, err)
	if errors.Is(err, context.DeadlineExceeded) {
		return &AuthError{Reason: ReasonTimeout, Err: wrapped}
	}
	return &AuthError{Reason: ReasonDriver, Err: wrapped}
}
