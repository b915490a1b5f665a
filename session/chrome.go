package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/dortort/moovit-client/transport"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 800
)

var errNotLaunched = errors.New("browser not launched")

// Chrome is a Browser backed by a headless Chrome, driven over the
// DevTools protocol.
type Chrome struct {
	UserAgent string
	Width     int64
	Height    int64

	// Extra allocator options, applied after the defaults.
	Options []chromedp.ExecAllocatorOption

	mutex       sync.Mutex
	tab         context.Context
	tabCancel   context.CancelFunc
	allocCancel context.CancelFunc
}

func NewChrome(options ...chromedp.ExecAllocatorOption) *Chrome {
	return &Chrome{
		UserAgent: DefaultUserAgent,
		Width:     DefaultViewportWidth,
		Height:    DefaultViewportHeight,
		Options:   options,
	}
}

func (c *Chrome) Launch(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.tab != nil {
		return nil
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-accelerated-2d-canvas", true),
		chromedp.DisableGPU,
		chromedp.UserAgent(c.UserAgent),
		chromedp.WindowSize(int(c.Width), int(c.Height)),
	)
	opts = append(opts, c.Options...)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	// The first Run allocates the browser. It must use the tab
	// context itself, or cancelling would kill the browser.
	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(tab, chromedp.EmulateViewport(c.Width, c.Height))
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		tabCancel()
		allocCancel()
		return fmt.Errorf("launching chrome: %w", err)
	}

	c.tab = tab
	c.tabCancel = tabCancel
	c.allocCancel = allocCancel

	return nil
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

func (c *Chrome) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}

	result := make([]*http.Cookie, 0, len(cookies))
	for _, cookie := range cookies {
		hc := &http.Cookie{
			Name:     cookie.Name,
			Value:    cookie.Value,
			Domain:   cookie.Domain,
			Path:     cookie.Path,
			Secure:   cookie.Secure,
			HttpOnly: cookie.HTTPOnly,
		}
		if cookie.Expires > 0 {
			hc.Expires = time.Unix(int64(cookie.Expires), 0)
		}
		result = append(result, hc)
	}

	return result, nil
}

type fetchInit struct {
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	Body        *string           `json:"body,omitempty"`
	Credentials string            `json:"credentials"`
}

type fetchResult struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

// Runs fetch() in the page. The response body comes back base64
// encoded so binary payloads survive the trip.
const fetchScript = `(async (url, init) => {
  const res = await fetch(url, init);
  const bytes = new Uint8Array(await res.arrayBuffer());
  let bin = '';
  for (let i = 0; i < bytes.length; i += 0x8000) {
    bin += String.fromCharCode.apply(null, bytes.subarray(i, i + 0x8000));
  }
  const headers = {};
  res.headers.forEach((v, k) => { headers[k] = v; });
  return { status: res.status, headers, body: btoa(bin) };
})(%s, %s)`

func (c *Chrome) Fetch(ctx context.Context, req *transport.Request) (*transport.Response, error) {
	init := fetchInit{
		Method:      req.Method,
		Headers:     req.Headers,
		Credentials: "include",
	}
	if init.Headers == nil {
		init.Headers = map[string]string{}
	}
	if req.Body != nil {
		body := string(req.Body)
		init.Body = &body
	}

	url, err := json.Marshal(req.URL)
	if err != nil {
		return nil, fmt.Errorf("encoding url: %w", err)
	}
	initJSON, err := json.Marshal(init)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var result fetchResult
	err = c.run(ctx, chromedp.Evaluate(
		fmt.Sprintf(fetchScript, url, initJSON),
		&result,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		},
	))
	if err != nil {
		return nil, fmt.Errorf("fetching %s in page: %w", req.URL, err)
	}

	body, err := base64.StdEncoding.DecodeString(result.Body)
	if err != nil {
		return nil, fmt.Errorf("decoding page response: %w", err)
	}

	header := http.Header{}
	for k, v := range result.Headers {
		header.Set(k, v)
	}

	return &transport.Response{
		StatusCode: result.Status,
		Header:     header,
		Body:       body,
	}, nil
}

func (c *Chrome) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.tab == nil {
		return nil
	}

	err := chromedp.Cancel(c.tab)
	c.tabCancel()
	c.allocCancel()
	c.tab, c.tabCancel, c.allocCancel = nil, nil, nil

	return err
}

// run executes actions in the page, giving up when ctx is done.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	c.mutex.Lock()
	tab := c.tab
	c.mutex.Unlock()

	if tab == nil {
		return errNotLaunched
	}

	runCtx, cancel := context.WithCancel(tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
