package moovit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/dortort/moovit-client/geo"
)

type LegKind string

const (
	LegWalk                 LegKind = "walk"
	LegTransit              LegKind = "transit"
	LegTaxi                 LegKind = "taxi"
	LegWait                 LegKind = "wait"
	LegWaitForTaxi          LegKind = "waitForTaxi"
	LegBike                 LegKind = "bike"
	LegScooter              LegKind = "scooter"
	LegLineWithAlternatives LegKind = "lineWithAlternatives"
)

// A Leg of an itinerary. The concrete type is one of WalkLeg,
// TransitLeg, TaxiLeg, WaitLeg, WaitForTaxiLeg, BikeLeg, ScooterLeg
// or LineWithAlternativesLeg, as told by Kind.
type Leg interface {
	Kind() LegKind
	Timing() TimeInfo
	leg()
}

// TimeInfo of a leg. Start and End are zero when not provided.
type TimeInfo struct {
	Start      time.Time
	End        time.Time
	IsRealTime *bool
}

func (t TimeInfo) Duration() time.Duration {
	if t.Start.IsZero() || t.End.IsZero() {
		return 0
	}
	return t.End.Sub(t.Start)
}

// A stop or station at either end of a transit leg.
type StopRef struct {
	ID          int64
	Name        string
	Coordinates Coordinates
}

type Place struct {
	Caption     string
	Coordinates Coordinates
}

type LineInfo struct {
	ID         int64
	ShortName  string
	Number     string
	AgencyID   *int64
	AgencyName string
	Color      string
	Type       *int
}

type DeepLinks struct {
	Android string
	IOS     string
	Web     string
}

type WalkLeg struct {
	Time           TimeInfo
	DistanceMeters float64
	Polyline       string
}

type TransitLeg struct {
	Time        TimeInfo
	Line        LineInfo
	Origin      StopRef
	Destination StopRef
	NumStops    int
	Polyline    string
}

type TaxiLeg struct {
	Time           TimeInfo
	ProviderName   string
	DistanceMeters float64
	Origin         Place
	Destination    Place
	Polyline       string
	DeepLinks      *DeepLinks
}

type WaitLeg struct {
	Time                TimeInfo
	WaitDurationMinutes int
	Location            *Place
}

type WaitForTaxiLeg struct {
	Time                 TimeInfo
	Location             Place
	ApproxWaitingSeconds int
	TaxiID               int64
}

type BikeLeg struct {
	Time           TimeInfo
	DistanceMeters float64
	Polyline       string
}

type ScooterLeg struct {
	Time           TimeInfo
	ProviderName   string
	DistanceMeters float64
	Polyline       string
}

type AlternativeLine struct {
	Line        LineInfo
	Origin      StopRef
	Destination StopRef
}

// LineWithAlternativesLeg can be ridden on any of several lines.
type LineWithAlternativesLeg struct {
	Time        TimeInfo
	Lines       []AlternativeLine
	Origin      StopRef
	Destination StopRef
}

func (l *WalkLeg) Kind() LegKind                 { return LegWalk }
func (l *TransitLeg) Kind() LegKind              { return LegTransit }
func (l *TaxiLeg) Kind() LegKind                 { return LegTaxi }
func (l *WaitLeg) Kind() LegKind                 { return LegWait }
func (l *WaitForTaxiLeg) Kind() LegKind          { return LegWaitForTaxi }
func (l *BikeLeg) Kind() LegKind                 { return LegBike }
func (l *ScooterLeg) Kind() LegKind              { return LegScooter }
func (l *LineWithAlternativesLeg) Kind() LegKind { return LegLineWithAlternatives }

func (l *WalkLeg) Timing() TimeInfo                 { return l.Time }
func (l *TransitLeg) Timing() TimeInfo              { return l.Time }
func (l *TaxiLeg) Timing() TimeInfo                 { return l.Time }
func (l *WaitLeg) Timing() TimeInfo                 { return l.Time }
func (l *WaitForTaxiLeg) Timing() TimeInfo          { return l.Time }
func (l *BikeLeg) Timing() TimeInfo                 { return l.Time }
func (l *ScooterLeg) Timing() TimeInfo              { return l.Time }
func (l *LineWithAlternativesLeg) Timing() TimeInfo { return l.Time }

func (*WalkLeg) leg()                 {}
func (*TransitLeg) leg()              {}
func (*TaxiLeg) leg()                 {}
func (*WaitLeg) leg()                 {}
func (*WaitForTaxiLeg) leg()          {}
func (*BikeLeg) leg()                 {}
func (*ScooterLeg) leg()              {}
func (*LineWithAlternativesLeg) leg() {}

// Path decodes the walked shape.
func (l *WalkLeg) Path() ([]Coordinates, error) {
	return geo.DecodePolyline(l.Polyline)
}

// Path decodes the ridden shape.
func (l *TransitLeg) Path() ([]Coordinates, error) {
	return geo.DecodePolyline(l.Polyline)
}

func (l *BikeLeg) Path() ([]Coordinates, error) {
	return geo.DecodePolyline(l.Polyline)
}

// Wire format of legs. Each leg arrives wrapped in an object with a
// single key naming its kind.

type jsonFlag bool

// Accepts true/false as well as 1/0.
func (f *jsonFlag) UnmarshalJSON(data []byte) error {
	switch string(bytes.TrimSpace(data)) {
	case "true", "1":
		*f = true
	case "false", "0", "null":
		*f = false
	default:
		return fmt.Errorf("invalid flag %s", data)
	}
	return nil
}

type rawTime struct {
	StartTimeUtc int64     `json:"startTimeUtc"`
	EndTimeUtc   int64     `json:"endTimeUtc"`
	IsRealTime   *jsonFlag `json:"isRealTime"`
}

type rawLatLon struct {
	Latitude  int64 `json:"latitude"`
	Longitude int64 `json:"longitude"`
}

type rawStop struct {
	ID      int64      `json:"id"`
	Caption string     `json:"caption"`
	LatLon  *rawLatLon `json:"latlon"`
}

type rawShape struct {
	DistanceInMeters float64 `json:"distanceInMeters"`
	Polyline         string  `json:"polyline"`
}

type rawLine struct {
	ID         int64  `json:"id"`
	ShortName  string `json:"shortName"`
	Number     string `json:"number"`
	AgencyID   *int64 `json:"agencyId"`
	AgencyName string `json:"agencyName"`
	Color      string `json:"color"`
	Type       *int   `json:"type"`
}

type rawLeg struct {
	Time             *rawTime  `json:"time"`
	Shape            *rawShape `json:"shape"`
	Line             *rawLine  `json:"line"`
	Origin           *rawStop  `json:"origin"`
	Dest             *rawStop  `json:"dest"`
	NumOfStopsInLeg  int       `json:"numOfStopsInLeg"`
	TaxiProviderName string    `json:"taxiProviderName"`
	ProviderName     string    `json:"providerName"`
	WaitAtLocation   *rawStop  `json:"waitAtLocation"`
	ApproxWaitingSec int       `json:"approxWaitingSecFromOrdering"`
	TaxiID           int64     `json:"taxiId"`
	Journey          *struct {
		Origin *rawStop `json:"origin"`
		Dest   *rawStop `json:"dest"`
	} `json:"journey"`
	DeepLinks *struct {
		Android string `json:"androidDeepLink"`
		IOS     string `json:"iosDeepLink"`
		Web     string `json:"webDeepLink"`
	} `json:"deepLinks"`
	LineWithAlternatives []struct {
		Line   *rawLine `json:"line"`
		Origin *rawStop `json:"origin"`
		Dest   *rawStop `json:"dest"`
	} `json:"lineWithAlternatives"`
}

// Wrapper keys in dispatch order. The first key present decides the
// leg's kind.
var legDecoders = []struct {
	key    string
	decode func(*rawLeg) Leg
}{
	{"walkLeg", decodeWalkLeg},
	{"transitLeg", decodeTransitLeg},
	{"taxiLeg", decodeTaxiLeg},
	{"waitLeg", decodeWaitLeg},
	{"waitToTaxiLeg", decodeWaitForTaxiLeg},
	{"bikeLeg", decodeBikeLeg},
	{"scooterLeg", decodeScooterLeg},
	{"lineWithAlternativesLeg", decodeLineWithAlternativesLeg},
	{"pathwayWalkLeg", decodeWalkLeg},
}

// decodeLeg returns nil, without error, for unrecognized legs.
func decodeLeg(data json.RawMessage) (Leg, error) {
	wrapper := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, fmt.Errorf("decoding leg: %w", err)
	}

	for _, d := range legDecoders {
		body, found := wrapper[d.key]
		if !found || string(bytes.TrimSpace(body)) == "null" {
			continue
		}
		raw := &rawLeg{}
		if err := json.Unmarshal(body, raw); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", d.key, err)
		}
		return d.decode(raw), nil
	}

	return nil, nil
}

func (r *rawLeg) timeInfo() TimeInfo {
	if r.Time == nil {
		return TimeInfo{}
	}
	t := TimeInfo{
		Start: fromUnixMilli(r.Time.StartTimeUtc),
		End:   fromUnixMilli(r.Time.EndTimeUtc),
	}
	if r.Time.IsRealTime != nil {
		rt := bool(*r.Time.IsRealTime)
		t.IsRealTime = &rt
	}
	return t
}

func (r *rawLeg) shape() rawShape {
	if r.Shape == nil {
		return rawShape{}
	}
	return *r.Shape
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func (s *rawStop) coordinates() Coordinates {
	if s == nil || s.LatLon == nil {
		return Coordinates{}
	}
	return geo.FromScaledCoordinates(geo.ScaledCoordinates{Lat: s.LatLon.Latitude, Lon: s.LatLon.Longitude})
}

func (s *rawStop) stopRef() StopRef {
	if s == nil {
		return StopRef{}
	}
	return StopRef{ID: s.ID, Name: s.Caption, Coordinates: s.coordinates()}
}

func (s *rawStop) place() Place {
	if s == nil {
		return Place{}
	}
	return Place{Caption: s.Caption, Coordinates: s.coordinates()}
}

func (l *rawLine) lineInfo() LineInfo {
	if l == nil {
		return LineInfo{}
	}
	return LineInfo{
		ID:         l.ID,
		ShortName:  l.ShortName,
		Number:     l.Number,
		AgencyID:   l.AgencyID,
		AgencyName: l.AgencyName,
		Color:      l.Color,
		Type:       l.Type,
	}
}

func decodeWalkLeg(r *rawLeg) Leg {
	shape := r.shape()
	return &WalkLeg{
		Time:           r.timeInfo(),
		DistanceMeters: shape.DistanceInMeters,
		Polyline:       shape.Polyline,
	}
}

func decodeTransitLeg(r *rawLeg) Leg {
	return &TransitLeg{
		Time:        r.timeInfo(),
		Line:        r.Line.lineInfo(),
		Origin:      r.Origin.stopRef(),
		Destination: r.Dest.stopRef(),
		NumStops:    r.NumOfStopsInLeg,
		Polyline:    r.shape().Polyline,
	}
}

func decodeTaxiLeg(r *rawLeg) Leg {
	shape := r.shape()
	leg := &TaxiLeg{
		Time:           r.timeInfo(),
		ProviderName:   r.TaxiProviderName,
		DistanceMeters: shape.DistanceInMeters,
		Polyline:       shape.Polyline,
	}
	if leg.ProviderName == "" {
		leg.ProviderName = "Taxi"
	}
	if r.Journey != nil {
		leg.Origin = r.Journey.Origin.place()
		leg.Destination = r.Journey.Dest.place()
	}
	if r.DeepLinks != nil {
		leg.DeepLinks = &DeepLinks{
			Android: r.DeepLinks.Android,
			IOS:     r.DeepLinks.IOS,
			Web:     r.DeepLinks.Web,
		}
	}
	return leg
}

func decodeWaitLeg(r *rawLeg) Leg {
	leg := &WaitLeg{Time: r.timeInfo()}
	if r.Time != nil {
		leg.WaitDurationMinutes = int(math.Round(float64(r.Time.EndTimeUtc-r.Time.StartTimeUtc) / 60000))
	}
	if r.WaitAtLocation != nil {
		place := r.WaitAtLocation.place()
		leg.Location = &place
	}
	return leg
}

func decodeWaitForTaxiLeg(r *rawLeg) Leg {
	return &WaitForTaxiLeg{
		Time:                 r.timeInfo(),
		Location:             r.WaitAtLocation.place(),
		ApproxWaitingSeconds: r.ApproxWaitingSec,
		TaxiID:               r.TaxiID,
	}
}

func decodeBikeLeg(r *rawLeg) Leg {
	shape := r.shape()
	return &BikeLeg{
		Time:           r.timeInfo(),
		DistanceMeters: shape.DistanceInMeters,
		Polyline:       shape.Polyline,
	}
}

func decodeScooterLeg(r *rawLeg) Leg {
	shape := r.shape()
	leg := &ScooterLeg{
		Time:           r.timeInfo(),
		ProviderName:   r.ProviderName,
		DistanceMeters: shape.DistanceInMeters,
		Polyline:       shape.Polyline,
	}
	if leg.ProviderName == "" {
		leg.ProviderName = "Scooter"
	}
	return leg
}

func decodeLineWithAlternativesLeg(r *rawLeg) Leg {
	leg := &LineWithAlternativesLeg{
		Time:        r.timeInfo(),
		Lines:       []AlternativeLine{},
		Origin:      r.Origin.stopRef(),
		Destination: r.Dest.stopRef(),
	}
	for _, alt := range r.LineWithAlternatives {
		leg.Lines = append(leg.Lines, AlternativeLine{
			Line:        alt.Line.lineInfo(),
			Origin:      alt.Origin.stopRef(),
			Destination: alt.Dest.stopRef(),
		})
	}
	return leg
}
