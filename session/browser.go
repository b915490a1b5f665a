package session

import (
	"context"
	"net/http"

	"github.com/dortort/moovit-client/transport"
)

// Browser is a headless browser with a single page.
type Browser interface {
	// Launch starts the browser and opens its page.
	Launch(ctx context.Context) error

	// Navigate loads url in the page and waits for it to settle.
	Navigate(ctx context.Context, url string) error

	// Cookies returns the cookies visible to the page.
	Cookies(ctx context.Context) ([]*http.Cookie, error)

	// Fetch executes req from within the page, with the page's
	// credentials attached.
	Fetch(ctx context.Context, req *transport.Request) (*transport.Response, error)

	Close() error
}
