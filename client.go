// Package moovit is a client for the Moovit transit web API: route
// planning, real-time arrivals, agencies, service alerts, location
// search and images.
//
// The API sits behind a web application firewall. A Client drives a
// headless browser to pass its challenge, and keeps the resulting
// credential fresh for as long as the Client is open.
package moovit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dortort/moovit-client/known"
	"github.com/dortort/moovit-client/session"
	"github.com/dortort/moovit-client/storage"
	"github.com/dortort/moovit-client/transport"
)

// Client for the Moovit API. Create with NewClient, then call
// Initialize before making requests, and Close when done.
type Client struct {
	cfg      ResolvedConfig
	logger   *slog.Logger
	session  *session.Manager
	registry *known.Registry
	store    storage.ImageStore
	http     transport.Transport

	mutex       sync.Mutex
	initialized bool
	resolver    *resolver
	routes      *routeSearcher
	lines       *linesService
	alerts      *alertsService
	images      *imageCache
}

// Creates a Client. No browser is started until Initialize.
func NewClient(cfg Config) (*Client, error) {
	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	logger := cfg.logger(resolved.Debug).With(slog.String("component", "moovit"))

	browser := cfg.Browser
	if browser == nil {
		browser = session.NewChrome(cfg.BrowserOptions...)
	}

	m := session.NewManager(browser)
	m.LandingURL = resolved.LandingURL
	m.RefreshInterval = resolved.TokenRefreshInterval
	m.Logger = logger

	store := cfg.ImageStore
	if store == nil {
		store = storage.NewMemoryImageStore(resolved.MaxCachedImages)
	}

	c := &Client{
		cfg:      resolved,
		logger:   logger,
		session:  m,
		registry: known.Default(),
		store:    store,
	}

	if resolved.Channel == ChannelHTTP {
		h := transport.NewHTTP(m.Credential, session.DefaultUserAgent)
		if cfg.HTTPClient != nil {
			h.Client = cfg.HTTPClient
		}
		c.http = h
	}

	return c, nil
}

// Initialize acquires the WAF credential and readies the client. It
// does nothing if already initialized.
func (c *Client) Initialize(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.initialized {
		return nil
	}

	if err := c.session.Initialize(ctx); err != nil {
		return err
	}

	var t transport.Transport = c.session
	if c.http != nil {
		t = c.http
	}
	a := newAPI(c.cfg, t, c.session.Refresh, c.logger)

	c.resolver = newResolver(c.cfg, a, c.registry)
	c.routes = newRouteSearcher(c.cfg, a, c.logger)
	c.lines = &linesService{api: a}
	c.alerts = &alertsService{cfg: c.cfg, api: a}
	c.images = &imageCache{api: a, store: c.store}
	c.initialized = true

	return nil
}

// Close releases the browser. The client may be initialized again
// afterwards.
func (c *Client) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.initialized = false
	return c.session.Close()
}

func (c *Client) Config() ResolvedConfig {
	return c.cfg
}

// Session exposes the credential manager, e.g. to check staleness.
func (c *Client) Session() *session.Manager {
	return c.session
}

// RefreshTokenIfNeeded re-acquires the credential if it is stale.
func (c *Client) RefreshTokenIfNeeded(ctx context.Context) error {
	return c.session.RefreshIfNeeded(ctx)
}

func (c *Client) ready() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.initialized {
		return fmt.Errorf("client not initialized, call Initialize first: %w", ErrNotInitialized)
	}
	return nil
}
