package moovit

import (
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"

	"github.com/dortort/moovit-client/geo"
	"github.com/dortort/moovit-client/logging"
	"github.com/dortort/moovit-client/session"
	"github.com/dortort/moovit-client/storage"
)

const (
	DefaultMetroID              = 1
	DefaultLanguage             = "EN"
	DefaultCustomerID           = "4908"
	DefaultBaseURL              = "https://moovitapp.com/api"
	DefaultTokenRefreshInterval = 5 * time.Minute
	DefaultMaxPollAttempts      = 120
	DefaultPollInterval         = 500 * time.Millisecond
)

// Tel Aviv, used to bias text searches when no location is given.
var DefaultLocation = geo.Coordinates{Lat: 32.0853, Lon: 34.7818}

// Channel selects how API requests reach Moovit.
type Channel string

const (
	// Requests run inside the browser page. Slower, but they carry
	// the browser's full fingerprint.
	ChannelPage Channel = "page"

	// Requests are replayed over plain HTTP with the session cookie.
	ChannelHTTP Channel = "http"
)

// Config for a Client. The zero value is usable; unset fields take
// their defaults.
type Config struct {
	MetroID              int              `yaml:"metro_id"`
	Language             string           `yaml:"language"`
	UserKey              string           `yaml:"user_key"`
	CustomerID           string           `yaml:"customer_id"`
	DefaultLocation      *geo.Coordinates `yaml:"default_location"`
	TokenRefreshInterval time.Duration    `yaml:"token_refresh_interval"`
	Debug                bool             `yaml:"debug"`
	BaseURL              string           `yaml:"base_url"`
	LandingURL           string           `yaml:"landing_url"`
	Channel              Channel          `yaml:"channel"`

	// Maximum number of route result polls. Zero means
	// DefaultMaxPollAttempts, negative means no limit.
	MaxPollAttempts int           `yaml:"max_poll_attempts"`
	PollInterval    time.Duration `yaml:"poll_interval"`

	// Client side rate limit. Zero disables.
	RequestsPerSecond float64 `yaml:"requests_per_second"`

	Retry RetryPolicy `yaml:"retry"`

	// Bound on the in-memory image cache. Zero means unbounded.
	// Ignored if ImageStore is set.
	MaxCachedImages int `yaml:"max_cached_images"`

	ImageStore     storage.ImageStore             `yaml:"-"`
	Browser        session.Browser                `yaml:"-"`
	BrowserOptions []chromedp.ExecAllocatorOption `yaml:"-"`
	HTTPClient     *http.Client                   `yaml:"-"`
	Logger         *slog.Logger                   `yaml:"-"`
}

// ResolvedConfig is a Config with all defaults applied. It does not
// change after the Client is created.
type ResolvedConfig struct {
	MetroID              int             `validate:"gt=0"`
	Language             string          `validate:"required"`
	UserKey              string          `validate:"required"`
	CustomerID           string          `validate:"required"`
	DefaultLocation      geo.Coordinates `validate:"-"`
	TokenRefreshInterval time.Duration   `validate:"gt=0"`
	Debug                bool
	BaseURL              string        `validate:"required,url"`
	LandingURL           string        `validate:"required,url"`
	Channel              Channel       `validate:"oneof=page http"`
	MaxPollAttempts      int           `validate:"-"`
	PollInterval         time.Duration `validate:"gte=0"`
	RequestsPerSecond    float64       `validate:"gte=0"`
	Retry                RetryPolicy
	MaxCachedImages      int `validate:"gte=0"`
}

var validate = validator.New()

// Resolve applies defaults and validates the result.
func (c Config) Resolve() (ResolvedConfig, error) {
	r := ResolvedConfig{
		MetroID:              c.MetroID,
		Language:             c.Language,
		UserKey:              c.UserKey,
		CustomerID:           c.CustomerID,
		DefaultLocation:      DefaultLocation,
		TokenRefreshInterval: c.TokenRefreshInterval,
		Debug:                c.Debug,
		BaseURL:              c.BaseURL,
		LandingURL:           c.LandingURL,
		Channel:              c.Channel,
		MaxPollAttempts:      c.MaxPollAttempts,
		PollInterval:         c.PollInterval,
		RequestsPerSecond:    c.RequestsPerSecond,
		Retry:                c.Retry,
		MaxCachedImages:      c.MaxCachedImages,
	}

	if r.MetroID == 0 {
		r.MetroID = DefaultMetroID
	}
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	if r.UserKey == "" {
		r.UserKey = GenerateUserKey()
	}
	if r.CustomerID == "" {
		r.CustomerID = DefaultCustomerID
	}
	if c.DefaultLocation != nil {
		r.DefaultLocation = *c.DefaultLocation
	}
	if r.TokenRefreshInterval == 0 {
		r.TokenRefreshInterval = DefaultTokenRefreshInterval
	}
	if r.BaseURL == "" {
		r.BaseURL = DefaultBaseURL
	}
	if r.LandingURL == "" {
		r.LandingURL = session.DefaultLandingURL
	}
	if r.Channel == "" {
		r.Channel = ChannelPage
	}
	if r.MaxPollAttempts == 0 {
		r.MaxPollAttempts = DefaultMaxPollAttempts
	}
	if r.PollInterval == 0 {
		r.PollInterval = DefaultPollInterval
	}

	if err := validate.Struct(r); err != nil {
		return ResolvedConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	if _, err := language.Parse(r.Language); err != nil {
		return ResolvedConfig{}, fmt.Errorf("invalid config: language %q: %w", r.Language, err)
	}
	if !geo.IsValid(r.DefaultLocation) {
		return ResolvedConfig{}, fmt.Errorf("invalid config: default location %v out of range", r.DefaultLocation)
	}
	if err := r.Retry.validate(); err != nil {
		return ResolvedConfig{}, fmt.Errorf("invalid config: %w", err)
	}

	return r, nil
}

func (c Config) logger(debug bool) *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	if debug {
		return logging.NewStructuredLogger(os.Stderr, slog.LevelDebug)
	}
	return logging.Discard()
}

const userKeyAlphabet = "ABCDEF0123456789"

// GenerateUserKey returns a random 6 character user key.
func GenerateUserKey() string {
	key := make([]byte, 6)
	for i := range key {
		key[i] = userKeyAlphabet[rand.Intn(len(userKeyAlphabet))]
	}
	return string(key)
}
