package moovit

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dortort/moovit-client/geo"
)

type RouteType int

const (
	RouteTypeBus       RouteType = 0
	RouteTypeLightRail RouteType = 1
	RouteTypeTrain     RouteType = 2
	RouteTypeWalking   RouteType = 3
	RouteTypeBiking    RouteType = 4
	RouteTypeTaxi      RouteType = 5
	RouteTypeFerry     RouteType = 6
	RouteTypeScooter   RouteType = 7
)

// DefaultRouteTypes are requested when RouteSearchParams.RouteTypes
// is empty.
var DefaultRouteTypes = []RouteType{
	RouteTypeWalking,
	RouteTypeTaxi,
	RouteTypeBiking,
	RouteTypeScooter,
	RouteTypeFerry,
	RouteTypeTrain,
	RouteTypeLightRail,
	RouteTypeBus,
}

type TripPlanPreference int

const (
	PreferenceFastest        TripPlanPreference = 1
	PreferenceBalanced       TripPlanPreference = 2
	PreferenceLeastWalking   TripPlanPreference = 3
	PreferenceLeastTransfers TripPlanPreference = 4
)

const (
	timeTypeArriveBy = 1
	timeTypeDepartAt = 2

	routeTransportOptions = "1,5"
)

// RouteSearchParams describe a trip. If neither DepartureTime nor
// ArrivalTime is set, the trip departs now. Preference defaults to
// PreferenceBalanced.
type RouteSearchParams struct {
	From          LocationInput
	To            LocationInput
	DepartureTime time.Time
	ArrivalTime   time.Time
	RouteTypes    []RouteType
	Preference    TripPlanPreference
}

type TripPlanSection struct {
	Name              string
	SectionID         int
	MaxItemsToDisplay int
	SectionType       int
}

type Itinerary struct {
	GUID                 string
	SectionID            int
	SectionName          string
	GroupType            int
	Legs                 []Leg
	TotalDuration        time.Duration
	TotalWalkingDistance float64
	DepartureTime        time.Time
	ArrivalTime          time.Time
}

// TotalMinutes is TotalDuration rounded to the nearest minute.
func (i *Itinerary) TotalMinutes() int {
	return int(math.Round(i.TotalDuration.Minutes()))
}

type RouteSearchResult struct {
	Sections    []TripPlanSection
	Itineraries []Itinerary
	Completed   bool
}

type routeSearcher struct {
	cfg     ResolvedConfig
	api     *api
	logger  *slog.Logger
	timeNow func() time.Time
	sleep   func(context.Context, time.Duration) error
}

func newRouteSearcher(cfg ResolvedConfig, a *api, logger *slog.Logger) *routeSearcher {
	return &routeSearcher{
		cfg:     cfg,
		api:     a,
		logger:  logger.With(slog.String("component", "routes")),
		timeNow: time.Now,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *routeSearcher) search(ctx context.Context, from, to Location, params RouteSearchParams) (*RouteSearchResult, error) {
	token, err := s.initiateSearch(ctx, from, to, params)
	if err != nil {
		return nil, err
	}

	results, err := s.pollResults(ctx, token)
	if err != nil {
		return nil, err
	}

	return s.normalize(results), nil
}

func (s *routeSearcher) searchQuery(from, to Location, params RouteSearchParams) url.Values {
	when := s.timeNow()
	timeType := timeTypeDepartAt
	if !params.DepartureTime.IsZero() {
		when = params.DepartureTime
	} else if !params.ArrivalTime.IsZero() {
		when = params.ArrivalTime
	}
	if !params.ArrivalTime.IsZero() {
		timeType = timeTypeArriveBy
	}
	isCurrentTime := params.DepartureTime.IsZero() && params.ArrivalTime.IsZero()

	preference := params.Preference
	if preference == 0 {
		preference = PreferenceBalanced
	}

	routeTypes := params.RouteTypes
	if len(routeTypes) == 0 {
		routeTypes = DefaultRouteTypes
	}
	types := make([]string, 0, len(routeTypes))
	for _, t := range routeTypes {
		types = append(types, strconv.Itoa(int(t)))
	}

	q := url.Values{}
	q.Set("tripPlanPref", strconv.Itoa(int(preference)))
	q.Set("time", strconv.FormatInt(when.UnixMilli(), 10))
	q.Set("timeType", strconv.Itoa(timeType))
	q.Set("isCurrentTime", strconv.FormatBool(isCurrentTime))
	q.Set("routeTypes", strings.Join(types, ","))
	q.Set("routeTransportOptions", routeTransportOptions)
	setLocationParams(q, "fromLocation", from)
	setLocationParams(q, "toLocation", to)
	return q
}

func setLocationParams(q url.Values, prefix string, loc Location) {
	scaled := geo.ToScaledCoordinates(loc.Coordinates)
	q.Set(prefix+"_id", strconv.FormatInt(loc.ID, 10))
	q.Set(prefix+"_type", strconv.Itoa(int(loc.Type)))
	q.Set(prefix+"_latitude", strconv.FormatInt(scaled.Lat, 10))
	q.Set(prefix+"_longitude", strconv.FormatInt(scaled.Lon, 10))
	q.Set(prefix+"_caption", loc.Caption)
}

func (s *routeSearcher) initiateSearch(ctx context.Context, from, to Location, params RouteSearchParams) (string, error) {
	var resp struct {
		Token string `json:"token"`
	}
	err := s.api.getJSON(ctx, "/route/search", s.searchQuery(from, to, params), &resp)
	if err != nil {
		return "", &RouteSearchError{Message: routeFailureMessage("Route search failed", err), Err: err}
	}
	if resp.Token == "" {
		return "", &RouteSearchError{Message: "No token received from route search"}
	}

	s.logger.Debug("route search started", slog.String("token", resp.Token))
	return resp.Token, nil
}

// pollResults collects result batches until the search reports
// completion. Each round resumes from the number of results
// received so far.
func (s *routeSearcher) pollResults(ctx context.Context, token string) ([]json.RawMessage, error) {
	all := []json.RawMessage{}
	offset := 0

	for attempt := 1; ; attempt++ {
		var page struct {
			Results   []json.RawMessage `json:"results"`
			Completed int               `json:"completed"`
		}
		query := url.Values{
			"token":  {token},
			"offset": {strconv.Itoa(offset)},
		}
		err := s.api.getJSON(ctx, "/route/result", query, &page)
		if err != nil {
			return nil, &RouteSearchError{Message: routeFailureMessage("Route result fetch failed", err), Err: err}
		}

		all = append(all, page.Results...)
		if page.Completed == 1 {
			s.logger.Debug("route search completed",
				slog.Int("rounds", attempt),
				slog.Int("results", len(all)))
			return all, nil
		}

		if s.cfg.MaxPollAttempts > 0 && attempt >= s.cfg.MaxPollAttempts {
			return nil, &RouteSearchError{
				Message: "Route search did not complete after " + strconv.Itoa(attempt) + " polls",
				Err:     ErrPollLimitExceeded,
			}
		}

		offset += len(page.Results)
		if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
			return nil, &RouteSearchError{Message: "Route search cancelled", Err: err}
		}
	}
}

func routeFailureMessage(prefix string, err error) string {
	if status, ok := statusOf(err); ok {
		return prefix + " with status " + strconv.Itoa(status)
	}
	return prefix
}

type rawSection struct {
	Name              string `json:"name"`
	SectionID         int    `json:"sectionId"`
	MaxItemsToDisplay int    `json:"maxItemsToDisplay"`
	SectionType       int    `json:"sectionType"`
}

type rawItinerary struct {
	GUID        string            `json:"guid"`
	SectionID   int               `json:"sectionId"`
	SectionName string            `json:"sectionName"`
	GroupType   int               `json:"groupType"`
	Legs        []json.RawMessage `json:"legs"`
}

type rawRouteResult struct {
	Result *struct {
		TripPlanSections *struct {
			TripPlanSections []rawSection `json:"tripPlanSections"`
		} `json:"tripPlanSections"`
		Itinerary *rawItinerary `json:"itinerary"`
	} `json:"result"`
}

// normalize turns raw result batches into sections and itineraries.
// Results that fail to decode are skipped.
func (s *routeSearcher) normalize(results []json.RawMessage) *RouteSearchResult {
	out := &RouteSearchResult{
		Sections:    []TripPlanSection{},
		Itineraries: []Itinerary{},
		Completed:   true,
	}

	for i, data := range results {
		r := rawRouteResult{}
		if err := json.Unmarshal(data, &r); err != nil {
			s.logger.Debug("skipping route result",
				slog.Int("index", i),
				slog.String("error", err.Error()))
			continue
		}
		if r.Result == nil {
			continue
		}

		if r.Result.TripPlanSections != nil {
			for _, sec := range r.Result.TripPlanSections.TripPlanSections {
				out.Sections = append(out.Sections, TripPlanSection(sec))
			}
		}

		if r.Result.Itinerary != nil {
			itinerary, ok := s.itinerary(r.Result.Itinerary)
			if ok {
				out.Itineraries = append(out.Itineraries, itinerary)
			}
		}
	}

	return out
}

func (s *routeSearcher) itinerary(raw *rawItinerary) (Itinerary, bool) {
	legs := []Leg{}
	for _, data := range raw.Legs {
		leg, err := decodeLeg(data)
		if err != nil {
			s.logger.Debug("skipping leg", slog.String("error", err.Error()))
			continue
		}
		if leg != nil {
			legs = append(legs, leg)
		}
	}
	if len(legs) == 0 {
		return Itinerary{}, false
	}

	itinerary := Itinerary{
		GUID:        raw.GUID,
		SectionID:   raw.SectionID,
		SectionName: raw.SectionName,
		GroupType:   raw.GroupType,
		Legs:        legs,
	}

	for _, leg := range legs {
		t := leg.Timing()
		if !t.Start.IsZero() && (itinerary.DepartureTime.IsZero() || t.Start.Before(itinerary.DepartureTime)) {
			itinerary.DepartureTime = t.Start
		}
		if !t.End.IsZero() && t.End.After(itinerary.ArrivalTime) {
			itinerary.ArrivalTime = t.End
		}
		if walk, ok := leg.(*WalkLeg); ok {
			itinerary.TotalWalkingDistance += walk.DistanceMeters
		}
	}

	if !itinerary.DepartureTime.IsZero() && !itinerary.ArrivalTime.IsZero() {
		itinerary.TotalDuration = itinerary.ArrivalTime.Sub(itinerary.DepartureTime)
	}

	return itinerary, true
}

// SearchRoutes plans trips between two locations. Both endpoints are
// resolved first, then the search is polled until complete.
func (c *Client) SearchRoutes(ctx context.Context, params RouteSearchParams) (*RouteSearchResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	from, err := c.resolver.resolve(ctx, params.From)
	if err != nil {
		return nil, err
	}
	to, err := c.resolver.resolve(ctx, params.To)
	if err != nil {
		return nil, err
	}

	return c.routes.search(ctx, from, to, params)
}
