package moovit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dortort/moovit-client/testutil"
)

// Builds a Client backed by a fake browser and API. The client is
// initialized unless cfg.Browser is already set.
func newTestClient(t *testing.T, cfg Config) (*Client, *testutil.FakeAPI, *testutil.FakeBrowser) {
	api := testutil.NewFakeAPI()
	browser := testutil.NewFakeBrowser(api)
	if cfg.Browser == nil {
		cfg.Browser = browser
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = testutil.BaseURL
	}
	if cfg.UserKey == "" {
		cfg.UserKey = "ABC123"
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Millisecond
	}

	c, err := NewClient(cfg)
	require.NoError(t, err)
	c.Session().Sleep = testutil.NoSleep

	require.NoError(t, c.Initialize(context.Background()))
	t.Cleanup(func() { c.Close() })

	return c, api, browser
}

func TestClientNotInitialized(t *testing.T) {
	c, err := NewClient(Config{
		Browser: testutil.NewFakeBrowser(testutil.NewFakeAPI()),
		BaseURL: testutil.BaseURL,
	})
	require.NoError(t, err)

	ctx := context.Background()

	_, err = c.Resolve(ctx, CoordinateInput{Lat: 32, Lon: 34})
	assert.True(t, errors.Is(err, ErrNotInitialized))

	_, err = c.SearchRoutes(ctx, RouteSearchParams{})
	assert.True(t, errors.Is(err, ErrNotInitialized))

	_, err = c.Arrivals(ctx, []LineStopPair{{LineID: 1, StopID: 2}})
	assert.True(t, errors.Is(err, ErrNotInitialized))

	_, err = c.Alerts(ctx)
	assert.True(t, errors.Is(err, ErrNotInitialized))

	_, err = c.Images(ctx, []int64{1})
	assert.True(t, errors.Is(err, ErrNotInitialized))

	// Known locations need no session
	assert.Equal(t, 30, len(c.KnownLocations()))
}

func TestClientInitializeIdempotent(t *testing.T) {
	c, _, browser := newTestClient(t, Config{})

	require.NoError(t, c.Initialize(context.Background()))
	launches, navigations, _, _ := browser.Counts()
	assert.Equal(t, 1, launches)
	assert.Equal(t, 1, navigations)
	assert.False(t, c.Session().IsTokenStale())
}

func TestClientInitializeFailure(t *testing.T) {
	browser := testutil.NewFakeBrowser(testutil.NewFakeAPI())
	browser.NoCookie = true

	c, err := NewClient(Config{Browser: browser, BaseURL: testutil.BaseURL})
	require.NoError(t, err)
	c.Session().Sleep = testutil.NoSleep

	err = c.Initialize(context.Background())
	require.Error(t, err)
	var authErr *AuthenticationError
	assert.True(t, errors.As(err, &authErr))
	assert.False(t, browser.Launched())

	_, err = c.Alerts(context.Background())
	assert.True(t, errors.Is(err, ErrNotInitialized))
}

func TestClientCloseAndReinitialize(t *testing.T) {
	c, api, browser := newTestClient(t, Config{})
	api.JSON("GET", "/alert", 200, []interface{}{})

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.False(t, browser.Launched())

	_, err := c.Alerts(context.Background())
	assert.True(t, errors.Is(err, ErrNotInitialized))

	require.NoError(t, c.Initialize(context.Background()))
	alerts, err := c.Alerts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, len(alerts))
}

func TestClientSendsHeaders(t *testing.T) {
	c, api, _ := newTestClient(t, Config{
		MetroID:    2,
		Language:   "HE",
		CustomerID: "1234",
		UserKey:    "FFFFFF",
	})
	api.JSON("GET", "/lines/agency", 200, []interface{}{})

	_, err := c.Agencies(context.Background())
	require.NoError(t, err)

	reqs := api.Requests("/lines/agency")
	require.Equal(t, 1, len(reqs))
	h := reqs[0].Header
	assert.Equal(t, "WEB_TRIP_PLANNER", h.Get("moovit_app_type"))
	assert.Equal(t, APIVersion, h.Get("moovit_client_version"))
	assert.Equal(t, "1234", h.Get("moovit_customer_id"))
	assert.Equal(t, "2", h.Get("moovit_metro_id"))
	assert.Equal(t, "2", h.Get("moovit_phone_type"))
	assert.Equal(t, "FFFFFF", h.Get("moovit_user_key"))
	assert.Equal(t, "HE", h.Get("moovit_gtfs_language"))
	assert.Equal(t, "application/json", h.Get("accept"))

	cookie, err := (&http.Request{Header: h}).Cookie(testutil.TokenCookie)
	require.NoError(t, err)
	assert.Equal(t, "fake-waf-token", cookie.Value)
}

func TestClientHTTPChannel(t *testing.T) {
	api := testutil.NewFakeAPI()
	api.JSON("GET", "/lines/agency", 200, []map[string]interface{}{{"id": 1, "name": "Egged"}})

	// Requests bypass the browser and go to a real server
	server := newHTTPServer(t, api)
	browser := testutil.NewFakeBrowser(http.NotFoundHandler())

	c, _, _ := newTestClient(t, Config{
		Browser:    browser,
		BaseURL:    server.URL + "/api",
		Channel:    ChannelHTTP,
		HTTPClient: server.Client(),
	})

	agencies, err := c.Agencies(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, len(agencies))
	assert.Equal(t, "Egged", agencies[0].Name)

	_, _, fetches, _ := browser.Counts()
	assert.Equal(t, 0, fetches)

	reqs := api.Requests("/lines/agency")
	require.Equal(t, 1, len(reqs))
	cookie, err := (&http.Request{Header: reqs[0].Header}).Cookie(testutil.TokenCookie)
	require.NoError(t, err)
	assert.Equal(t, "fake-waf-token", cookie.Value)
}

func TestClientRefreshTokenIfNeeded(t *testing.T) {
	c, _, browser := newTestClient(t, Config{TokenRefreshInterval: time.Hour})

	// Fresh token, nothing happens
	require.NoError(t, c.RefreshTokenIfNeeded(context.Background()))
	_, navigations, _, _ := browser.Counts()
	assert.Equal(t, 1, navigations)

	now := time.Now()
	c.Session().TimeNow = func() time.Time { return now.Add(2 * time.Hour) }
	assert.True(t, c.Session().IsTokenStale())

	require.NoError(t, c.RefreshTokenIfNeeded(context.Background()))
	_, navigations, _, _ = browser.Counts()
	assert.Equal(t, 2, navigations)
}
