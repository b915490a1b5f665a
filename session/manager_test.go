package session_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dortort/moovit-client/session"
	"github.com/dortort/moovit-client/testutil"
	"github.com/dortort/moovit-client/transport"
)

type sleepRecorder struct {
	mutex  sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

func newManager(b *testutil.FakeBrowser) (*session.Manager, *sleepRecorder) {
	rec := &sleepRecorder{}
	m := session.NewManager(b)
	m.Sleep = rec.Sleep
	m.RefreshInterval = time.Hour
	return m, rec
}

func TestManagerInitialize(t *testing.T) {
	b := testutil.NewFakeBrowser(http.NotFoundHandler())
	m, rec := newManager(b)

	require.NoError(t, m.Initialize(context.Background()))
	defer m.Close()

	assert.Equal(t, session.DefaultLandingURL, b.NavigatedURL)
	assert.Equal(t, []time.Duration{session.DefaultChallengeWait}, rec.sleeps)
	assert.NotEmpty(t, m.ID())

	cookie, err := m.Credential(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "aws-waf-token", cookie.Name)
	assert.Equal(t, "fake-waf-token", cookie.Value)
	assert.False(t, m.IsTokenStale())

	// Idempotent
	require.NoError(t, m.Initialize(context.Background()))
	launches, navigations, _, _ := b.Counts()
	assert.Equal(t, 1, launches)
	assert.Equal(t, 1, navigations)
}

func TestManagerInitializeCookieRetry(t *testing.T) {
	b := testutil.NewFakeBrowser(http.NotFoundHandler())
	b.CookieDelay = 1
	m, rec := newManager(b)

	require.NoError(t, m.Initialize(context.Background()))
	defer m.Close()

	assert.Equal(t, []time.Duration{session.DefaultChallengeWait, session.DefaultRetryWait}, rec.sleeps)
	_, err := m.Credential(context.Background())
	assert.NoError(t, err)
}

func TestManagerInitializeNoCookie(t *testing.T) {
	b := testutil.NewFakeBrowser(http.NotFoundHandler())
	b.NoCookie = true
	m, _ := newManager(b)

	err := m.Initialize(context.Background())
	require.Error(t, err)
	var authErr *session.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, "WAF token cookie not found", err.Error())

	// Browser was torn down and the manager is unusable
	assert.False(t, b.Launched())
	_, err = m.Credential(context.Background())
	assert.True(t, errors.Is(err, session.ErrNotInitialized))
	assert.NoError(t, m.Close())
}

func TestManagerInitializeLaunchFailure(t *testing.T) {
	launchErr := errors.New("chrome not found")
	b := testutil.NewFakeBrowser(http.NotFoundHandler())
	b.LaunchErr = launchErr
	m, _ := newManager(b)

	err := m.Initialize(context.Background())
	require.Error(t, err)
	var authErr *session.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.True(t, errors.Is(err, launchErr))
	assert.Contains(t, err.Error(), "chrome not found")
	_, _, _, closes := b.Counts()
	assert.Equal(t, 1, closes)
}

func TestManagerInitializeNavigationFailure(t *testing.T) {
	b := testutil.NewFakeBrowser(http.NotFoundHandler())
	b.NavigateErr = errors.New("net::ERR_TIMED_OUT")
	m, _ := newManager(b)

	err := m.Initialize(context.Background())
	var authErr *session.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Contains(t, err.Error(), "ERR_TIMED_OUT")
	assert.False(t, b.Launched())
}

func TestManagerDo(t *testing.T) {
	api := testutil.NewFakeAPI()
	api.JSON("GET", "/lines/agency", 200, []string{})
	b := testutil.NewFakeBrowser(api)
	m, _ := newManager(b)

	req := &transport.Request{Method: "GET", URL: testutil.BaseURL + "/lines/agency"}

	_, err := m.Do(context.Background(), req)
	var authErr *session.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.True(t, errors.Is(err, session.ErrNotInitialized))

	require.NoError(t, m.Initialize(context.Background()))
	defer m.Close()

	resp, err := m.Do(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(resp.Body))

	reqs := api.Requests("/lines/agency")
	require.Equal(t, 1, len(reqs))
	cookie, err := (&http.Request{Header: reqs[0].Header}).Cookie("aws-waf-token")
	require.NoError(t, err)
	assert.Equal(t, "fake-waf-token", cookie.Value)
}

func TestManagerStaleness(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := testutil.NewFakeBrowser(http.NotFoundHandler())
	m, _ := newManager(b)
	m.RefreshInterval = 5 * time.Minute
	m.TimeNow = func() time.Time { return now }

	assert.True(t, m.IsTokenStale())
	assert.True(t, errors.Is(m.RefreshIfNeeded(context.Background()), session.ErrNotInitialized))

	require.NoError(t, m.Initialize(context.Background()))
	defer m.Close()
	assert.Equal(t, now, m.AcquiredAt())

	now = now.Add(4*time.Minute + 59*time.Second)
	assert.False(t, m.IsTokenStale())
	require.NoError(t, m.RefreshIfNeeded(context.Background()))
	_, navigations, _, _ := b.Counts()
	assert.Equal(t, 1, navigations)

	now = now.Add(time.Second)
	assert.True(t, m.IsTokenStale())
	require.NoError(t, m.RefreshIfNeeded(context.Background()))
	_, navigations, _, _ = b.Counts()
	assert.Equal(t, 2, navigations)
	assert.False(t, m.IsTokenStale())
	assert.Equal(t, now, m.AcquiredAt())

	require.NoError(t, m.Refresh(context.Background()))
	_, navigations, _, _ = b.Counts()
	assert.Equal(t, 3, navigations)
}

func TestManagerRefreshLoop(t *testing.T) {
	b := testutil.NewFakeBrowser(http.NotFoundHandler())
	m := session.NewManager(b)
	m.Sleep = testutil.NoSleep
	m.RefreshInterval = 10 * time.Millisecond

	require.NoError(t, m.Initialize(context.Background()))

	require.Eventually(t, func() bool {
		_, navigations, _, _ := b.Counts()
		return navigations >= 3
	}, 2*time.Second, 5*time.Millisecond)

	// Refresh failures are logged, not fatal
	b.SetNavigateErr(errors.New("challenge failed"))
	_, before, _, _ := b.Counts()
	require.Eventually(t, func() bool {
		_, navigations, _, _ := b.Counts()
		return navigations >= before+2
	}, 2*time.Second, 5*time.Millisecond)

	_, err := m.Credential(context.Background())
	assert.NoError(t, err)

	require.NoError(t, m.Close())

	// Loop is stopped
	_, after, _, _ := b.Counts()
	time.Sleep(50 * time.Millisecond)
	_, later, _, _ := b.Counts()
	assert.Equal(t, after, later)
}

func TestManagerClose(t *testing.T) {
	b := testutil.NewFakeBrowser(http.NotFoundHandler())
	m, _ := newManager(b)

	// Closing an uninitialized manager is fine
	require.NoError(t, m.Close())

	require.NoError(t, m.Initialize(context.Background()))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, _, _, closes := b.Counts()
	assert.Equal(t, 1, closes)
	assert.False(t, b.Launched())

	_, err := m.Credential(context.Background())
	assert.Error(t, err)

	// Can be initialized again
	require.NoError(t, m.Initialize(context.Background()))
	defer m.Close()
	launches, _, _, _ := b.Counts()
	assert.Equal(t, 2, launches)
}
