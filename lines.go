package moovit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dortort/moovit-client/geo"
)

type LineStopPair struct {
	LineID int64 `json:"lineId"`
	StopID int64 `json:"stopId"`
}

type ArrivalCertainty int

const (
	CertaintyHigh   ArrivalCertainty = 1
	CertaintyMedium ArrivalCertainty = 2
	CertaintyLow    ArrivalCertainty = 3
)

type TrafficStatus int

const (
	TrafficNormal TrafficStatus = 1
	TrafficSlow   TrafficStatus = 2
	TrafficHeavy  TrafficStatus = 3
)

type VehicleStatus int

const (
	VehicleInService VehicleStatus = 1
	VehicleStopped   VehicleStatus = 2
)

// DefaultNextPollingInterval is used when the API doesn't suggest one.
const DefaultNextPollingInterval = 30

type StopArrivals struct {
	StopID                  int64
	LineID                  int64
	Arrivals                []Arrival
	NextPollingIntervalSecs int
}

type Arrival struct {
	TripID          int64
	PatternID       *int64
	ScheduledTime   time.Time
	RealTimeETA     time.Time
	DurationSeconds int
	IsLast          bool
	Certainty       ArrivalCertainty
	TrafficStatus   TrafficStatus
	StopIndex       *int
	TotalStops      *int
	VehicleLocation *VehicleLocation
}

type VehicleLocation struct {
	Coordinates Coordinates
	VehicleID   string
	SampleTime  time.Time
	Status      VehicleStatus
	Progress    *VehicleProgress
}

type VehicleProgress struct {
	NextStopIndex   int
	ProgressPercent float64
}

type AgencyInfo struct {
	ID          int64
	Name        string
	URL         *string
	Phone       *string
	Timezone    *string
	LogoImageID *int64
}

type AgencyOrderItem struct {
	AgencyID int64
	Order    int
}

type rawArrival struct {
	TripID            int64     `json:"tripId"`
	PatternID         *int64    `json:"patternId"`
	StaticEtdUTC      int64     `json:"staticEtdUTC"`
	RtEtdUTC          int64     `json:"rtEtdUTC"`
	DurationInSeconds int       `json:"durationInSeconds"`
	IsLastArrival     *jsonFlag `json:"isLastArrival"`
	ArrivalCertainty  int       `json:"arrivalCertainty"`
	TrafficStatus     int       `json:"trafficStatus"`
	StopIndex         *int      `json:"stopIndex"`
	PatternStopsSize  *int      `json:"patternStopsSize"`
	VehicleLocation   *struct {
		LatLon               *rawLatLon `json:"latlon"`
		VehicleID            string     `json:"vehicleId"`
		VehicleSampleTimeUtc int64      `json:"vehicleSampleTimeUtc"`
		VehicleStatus        int        `json:"vehicleStatus"`
		Progress             *struct {
			NextStopIndex int     `json:"nextStopIndex"`
			Progress      float64 `json:"progress"`
		} `json:"progress"`
	} `json:"vehicleLocation"`
}

type rawStopArrivals struct {
	StopID       int64 `json:"stopId"`
	LineID       int64 `json:"lineId"`
	LineArrivals *struct {
		LineID   int64        `json:"lineId"`
		Arrivals []rawArrival `json:"arrivals"`
	} `json:"lineArrivals"`
	Arrivals                []rawArrival `json:"arrivals"`
	NextPollingIntervalSecs int          `json:"nextPollingIntervalSecs"`
}

type rawAgency struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	URL         *string `json:"url"`
	Phone       *string `json:"phone"`
	Timezone    *string `json:"timezone"`
	LogoImageID *int64  `json:"logoImageId"`
}

type linesService struct {
	api *api
}

func (s *linesService) arrivals(ctx context.Context, pairs []LineStopPair) ([]StopArrivals, error) {
	if pairs == nil {
		pairs = []LineStopPair{}
	}
	body := map[string]interface{}{
		"params": map[string]interface{}{
			"lineStopPairs": pairs,
		},
	}

	var data json.RawMessage
	if err := s.api.postJSON(ctx, "/lines/linesarrival", body, &data); err != nil {
		return nil, err
	}

	var raw []rawStopArrivals
	if err := unwrapList(data, "", &raw); err != nil {
		return nil, fmt.Errorf("decoding arrivals: %w", err)
	}

	result := make([]StopArrivals, 0, len(raw))
	for _, r := range raw {
		sa := StopArrivals{
			StopID:                  r.StopID,
			Arrivals:                []Arrival{},
			NextPollingIntervalSecs: r.NextPollingIntervalSecs,
		}
		if r.LineArrivals != nil {
			sa.LineID = r.LineArrivals.LineID
			sa.Arrivals = convertArrivals(r.LineArrivals.Arrivals)
		}
		if sa.NextPollingIntervalSecs == 0 {
			sa.NextPollingIntervalSecs = DefaultNextPollingInterval
		}
		result = append(result, sa)
	}
	return result, nil
}

func (s *linesService) lineArrival(ctx context.Context, lineID, stopID int64) (*StopArrivals, error) {
	ids, err := json.Marshal(map[string][]int64{"ids": {lineID}})
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"stopId":  stopID,
		"lineIds": string(ids),
	}

	var data json.RawMessage
	if err := s.api.postJSON(ctx, "/lines/linearrival", body, &data); err != nil {
		return nil, err
	}

	var raw []rawStopArrivals
	if err := unwrapList(data, "", &raw); err != nil {
		return nil, fmt.Errorf("decoding line arrival: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	r := raw[0]
	sa := &StopArrivals{
		StopID:                  r.StopID,
		LineID:                  r.LineID,
		Arrivals:                convertArrivals(r.Arrivals),
		NextPollingIntervalSecs: r.NextPollingIntervalSecs,
	}
	if sa.NextPollingIntervalSecs == 0 {
		sa.NextPollingIntervalSecs = DefaultNextPollingInterval
	}
	return sa, nil
}

func (s *linesService) agencies(ctx context.Context) ([]AgencyInfo, error) {
	var data json.RawMessage
	if err := s.api.getJSON(ctx, "/lines/agency", nil, &data); err != nil {
		return nil, err
	}

	var raw []rawAgency
	if err := unwrapList(data, "agencies", &raw); err != nil {
		return nil, fmt.Errorf("decoding agencies: %w", err)
	}

	agencies := make([]AgencyInfo, 0, len(raw))
	for _, r := range raw {
		agencies = append(agencies, AgencyInfo(r))
	}
	return agencies, nil
}

func (s *linesService) agencyOrder(ctx context.Context) ([]AgencyOrderItem, error) {
	var data json.RawMessage
	if err := s.api.getJSON(ctx, "/lines/agency_order", nil, &data); err != nil {
		return nil, err
	}

	var raw []struct {
		AgencyID int64 `json:"agencyId"`
		Order    *int  `json:"order"`
	}
	if err := unwrapList(data, "", &raw); err != nil {
		return nil, fmt.Errorf("decoding agency order: %w", err)
	}

	order := make([]AgencyOrderItem, 0, len(raw))
	for i, r := range raw {
		item := AgencyOrderItem{AgencyID: r.AgencyID, Order: i}
		if r.Order != nil {
			item.Order = *r.Order
		}
		order = append(order, item)
	}
	return order, nil
}

func convertArrivals(raw []rawArrival) []Arrival {
	arrivals := make([]Arrival, 0, len(raw))
	for _, r := range raw {
		a := Arrival{
			TripID:          r.TripID,
			PatternID:       r.PatternID,
			ScheduledTime:   fromUnixMilli(r.StaticEtdUTC),
			RealTimeETA:     fromUnixMilli(r.StaticEtdUTC),
			DurationSeconds: r.DurationInSeconds,
			IsLast:          r.IsLastArrival != nil && bool(*r.IsLastArrival),
			Certainty:       ArrivalCertainty(orOne(r.ArrivalCertainty)),
			TrafficStatus:   TrafficStatus(orOne(r.TrafficStatus)),
			StopIndex:       r.StopIndex,
			TotalStops:      r.PatternStopsSize,
		}
		if r.RtEtdUTC != 0 {
			a.RealTimeETA = fromUnixMilli(r.RtEtdUTC)
		}

		if v := r.VehicleLocation; v != nil {
			loc := &VehicleLocation{
				VehicleID:  v.VehicleID,
				SampleTime: fromUnixMilli(v.VehicleSampleTimeUtc),
				Status:     VehicleStatus(orOne(v.VehicleStatus)),
			}
			if v.LatLon != nil {
				loc.Coordinates = geo.FromScaledCoordinates(geo.ScaledCoordinates{Lat: v.LatLon.Latitude, Lon: v.LatLon.Longitude})
			}
			if v.Progress != nil {
				loc.Progress = &VehicleProgress{
					NextStopIndex:   v.Progress.NextStopIndex,
					ProgressPercent: v.Progress.Progress,
				}
			}
			a.VehicleLocation = loc
		}

		arrivals = append(arrivals, a)
	}
	return arrivals
}

func orOne(v int) int {
	if v == 0 {
		return 1
	}
	return v
}

// unwrapList decodes a JSON array into out. If data is an object and
// key is set, the array is read from that key instead. Anything else
// leaves out empty.
func unwrapList(data json.RawMessage, key string, out interface{}) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}

	switch data[0] {
	case '[':
		return json.Unmarshal(data, out)
	case '{':
		if key == "" {
			return nil
		}
		wrapper := map[string]json.RawMessage{}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return err
		}
		inner, found := wrapper[key]
		if !found {
			return nil
		}
		return unwrapList(inner, "", out)
	}
	return nil
}

// Arrivals fetches real-time arrivals for several line/stop pairs in
// one request.
func (c *Client) Arrivals(ctx context.Context, pairs []LineStopPair) ([]StopArrivals, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.lines.arrivals(ctx, pairs)
}

// LineArrival fetches arrivals of a single line at a stop. Returns
// nil if the API has none.
func (c *Client) LineArrival(ctx context.Context, lineID, stopID int64) (*StopArrivals, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.lines.lineArrival(ctx, lineID, stopID)
}

func (c *Client) Agencies(ctx context.Context) ([]AgencyInfo, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.lines.agencies(ctx)
}

// AgencyOrder returns the display order of agencies.
func (c *Client) AgencyOrder(ctx context.Context) ([]AgencyOrderItem, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.lines.agencyOrder(ctx)
}
