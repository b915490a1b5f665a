// Package session keeps an authenticated browser session with Moovit.
// The web API sits behind an AWS WAF challenge which only a real
// browser can solve; the resulting cookie authorizes all later calls.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dortort/moovit-client/logging"
	"github.com/dortort/moovit-client/transport"
)

const (
	DefaultLandingURL        = "https://moovitapp.com/israel-1/poi/en"
	DefaultCookieName        = "aws-waf-token"
	DefaultChallengeWait     = 3 * time.Second
	DefaultRetryWait         = 5 * time.Second
	DefaultNavigationTimeout = 60 * time.Second
	DefaultRefreshInterval   = 5 * time.Minute
)

// The refresh loop re-acquires the credential this far into its
// lifetime.
const refreshFraction = 0.8

// Manager owns the browser and the WAF credential it acquires.
//
// All use of the browser page, whether acquiring the credential or
// executing requests, is serialized.
type Manager struct {
	LandingURL        string
	CookieName        string
	ChallengeWait     time.Duration
	RetryWait         time.Duration
	NavigationTimeout time.Duration
	RefreshInterval   time.Duration
	Logger            *slog.Logger
	TimeNow           func() time.Time
	Sleep             func(ctx context.Context, d time.Duration) error

	browser Browser
	id      string

	lifecycle sync.Mutex
	exec      sync.Mutex

	mutex         sync.Mutex
	initialized   bool
	credential    *http.Cookie
	acquiredAt    time.Time
	refreshCancel context.CancelFunc
	refreshDone   chan struct{}
}

// Creates a session Manager driving the given browser.
func NewManager(browser Browser) *Manager {
	return &Manager{
		LandingURL:        DefaultLandingURL,
		CookieName:        DefaultCookieName,
		ChallengeWait:     DefaultChallengeWait,
		RetryWait:         DefaultRetryWait,
		NavigationTimeout: DefaultNavigationTimeout,
		RefreshInterval:   DefaultRefreshInterval,
		Logger:            logging.Discard(),
		TimeNow:           time.Now,
		Sleep:             sleep,

		browser: browser,
		id:      uuid.NewString(),
	}
}

// ID identifies this session in logs.
func (m *Manager) ID() string {
	return m.id
}

// Initialize launches the browser, acquires the credential and starts
// refreshing it in the background. Calling it on an initialized
// Manager does nothing. On failure the browser is closed and an
// *AuthenticationError returned.
func (m *Manager) Initialize(ctx context.Context) error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.isInitialized() {
		return nil
	}

	logger := m.logger()

	if err := m.browser.Launch(ctx); err != nil {
		logging.SafeCloseWithLogging(m.browser, logger, "close_browser")
		return &AuthenticationError{Message: "Failed to initialize authentication", Err: err}
	}

	if err := m.acquire(ctx); err != nil {
		logging.SafeCloseWithLogging(m.browser, logger, "close_browser")
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return err
		}
		return &AuthenticationError{Message: "Failed to initialize authentication", Err: err}
	}

	m.mutex.Lock()
	m.initialized = true
	if interval := time.Duration(float64(m.RefreshInterval) * refreshFraction); interval > 0 {
		refreshCtx, cancel := context.WithCancel(context.Background())
		m.refreshCancel = cancel
		m.refreshDone = make(chan struct{})
		go m.refreshLoop(refreshCtx, interval, m.refreshDone)
	}
	m.mutex.Unlock()

	logging.LogOperation(logger, "session_initialized")

	return nil
}

// IsTokenStale reports whether the credential is at least
// RefreshInterval old.
func (m *Manager) IsTokenStale() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.acquiredAt.IsZero() {
		return true
	}
	return m.TimeNow().Sub(m.acquiredAt) >= m.RefreshInterval
}

// RefreshIfNeeded re-acquires the credential if it is stale.
func (m *Manager) RefreshIfNeeded(ctx context.Context) error {
	if !m.isInitialized() {
		return m.notInitialized()
	}
	if !m.IsTokenStale() {
		return nil
	}
	return m.acquire(ctx)
}

// Refresh unconditionally re-acquires the credential.
func (m *Manager) Refresh(ctx context.Context) error {
	if !m.isInitialized() {
		return m.notInitialized()
	}
	return m.acquire(ctx)
}

// Credential returns the current WAF cookie.
func (m *Manager) Credential(ctx context.Context) (*http.Cookie, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.initialized || m.credential == nil {
		return nil, m.notInitialized()
	}
	cookie := *m.credential
	return &cookie, nil
}

// AcquiredAt is when the current credential was acquired.
func (m *Manager) AcquiredAt() time.Time {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.acquiredAt
}

// Do executes req inside the browser page, so the request carries the
// page's cookies and fingerprint.
func (m *Manager) Do(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	if !m.isInitialized() {
		return nil, m.notInitialized()
	}

	m.exec.Lock()
	defer m.exec.Unlock()

	return m.browser.Fetch(ctx, req)
}

// Close stops the refresh loop and closes the browser. Safe to call
// more than once.
func (m *Manager) Close() error {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	m.mutex.Lock()
	if !m.initialized {
		m.mutex.Unlock()
		return nil
	}
	m.initialized = false
	m.credential = nil
	cancel, done := m.refreshCancel, m.refreshDone
	m.refreshCancel, m.refreshDone = nil, nil
	m.mutex.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	m.exec.Lock()
	err := m.browser.Close()
	m.exec.Unlock()

	logging.LogOperation(m.logger(), "session_closed")

	if err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

func (m *Manager) refreshLoop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.acquire(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				logging.LogError(m.logger(), "token refresh failed", err)
			}
		}
	}
}

// acquire loads the landing page and waits for the WAF challenge to
// set the credential cookie.
func (m *Manager) acquire(ctx context.Context) error {
	m.exec.Lock()
	defer m.exec.Unlock()

	logger := m.logger()
	logger.Debug("acquiring WAF token")

	navCtx, cancel := context.WithTimeout(ctx, m.NavigationTimeout)
	err := m.browser.Navigate(navCtx, m.LandingURL)
	cancel()
	if err != nil {
		return &AuthenticationError{Err: fmt.Errorf("navigating to %s: %w", m.LandingURL, err)}
	}

	if err := m.Sleep(ctx, m.ChallengeWait); err != nil {
		return &AuthenticationError{Err: err}
	}

	cookie, names, err := m.findCookie(ctx)
	if err != nil {
		return &AuthenticationError{Err: err}
	}

	if cookie == nil {
		if err := m.Sleep(ctx, m.RetryWait); err != nil {
			return &AuthenticationError{Err: err}
		}
		cookie, _, err = m.findCookie(ctx)
		if err != nil {
			return &AuthenticationError{Err: err}
		}
	}

	if cookie == nil {
		logger.Debug("available cookies", slog.Any("names", names))
		return &AuthenticationError{Message: "WAF token cookie not found"}
	}

	m.mutex.Lock()
	m.credential = cookie
	m.acquiredAt = m.TimeNow()
	m.mutex.Unlock()

	logger.Debug("WAF token acquired")

	return nil
}

func (m *Manager) findCookie(ctx context.Context) (*http.Cookie, []string, error) {
	cookies, err := m.browser.Cookies(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("reading cookies: %w", err)
	}

	names := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == m.CookieName {
			return c, nil, nil
		}
		names = append(names, c.Name)
	}
	return nil, names, nil
}

func (m *Manager) isInitialized() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.initialized
}

func (m *Manager) notInitialized() error {
	return &AuthenticationError{Message: "Auth manager not initialized", Err: ErrNotInitialized}
}

func (m *Manager) logger() *slog.Logger {
	logger := m.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return logger.With(slog.String("component", "session"), slog.String("session_id", m.id))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
