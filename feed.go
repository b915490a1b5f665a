package moovit

import (
	"strconv"
	"time"

	p "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	proto "google.golang.org/protobuf/proto"
)

const feedVersion = "2.0"

// AlertsFeed exports alerts as a full GTFS-Realtime dataset, one
// entity per alert.
func AlertsFeed(alerts []Alert, now time.Time) *p.FeedMessage {
	feed := &p.FeedMessage{
		Header: &p.FeedHeader{
			GtfsRealtimeVersion: proto.String(feedVersion),
			Incrementality:      p.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(now.Unix())),
		},
		Entity: []*p.FeedEntity{},
	}

	for i := range alerts {
		feed.Entity = append(feed.Entity, &p.FeedEntity{
			Id:    proto.String(strconv.FormatInt(alerts[i].ID, 10)),
			Alert: feedAlert(&alerts[i], nil),
		})
	}

	return feed
}

// AlertDetailsFeed is AlertsFeed for detailed alerts. Their active
// periods and full descriptions are carried over.
func AlertDetailsFeed(details []AlertDetails, now time.Time) *p.FeedMessage {
	feed := AlertsFeed(nil, now)
	for i := range details {
		d := &details[i]
		alert := feedAlert(&d.Alert, d.ActivePeriods)
		if d.FullDescription != nil {
			alert.DescriptionText = translated(*d.FullDescription)
		}
		feed.Entity = append(feed.Entity, &p.FeedEntity{
			Id:    proto.String(strconv.FormatInt(d.ID, 10)),
			Alert: alert,
		})
	}
	return feed
}

// MarshalFeed serializes a feed to protobuf wire format.
func MarshalFeed(feed *p.FeedMessage) ([]byte, error) {
	return proto.Marshal(feed)
}

func feedAlert(a *Alert, periods []ActivePeriod) *p.Alert {
	alert := &p.Alert{
		Effect:     a.Effect.Enum(),
		HeaderText: translated(a.Title),
	}
	if a.Cause != nil {
		alert.Cause = a.Cause.Enum()
	}
	if a.Description != nil {
		alert.DescriptionText = translated(*a.Description)
	}
	if a.URL != nil {
		alert.Url = translated(*a.URL)
	}

	if len(periods) > 0 {
		for _, period := range periods {
			alert.ActivePeriod = append(alert.ActivePeriod, timeRange(&period.Start, &period.End))
		}
	} else if a.StartTime != nil || a.EndTime != nil {
		alert.ActivePeriod = append(alert.ActivePeriod, timeRange(a.StartTime, a.EndTime))
	}

	for _, e := range a.AffectedEntities {
		id := proto.String(strconv.FormatInt(e.ID, 10))
		selector := &p.EntitySelector{}
		switch e.Type {
		case AffectedStop:
			selector.StopId = id
		case AffectedAgency:
			selector.AgencyId = id
		default:
			selector.RouteId = id
		}
		alert.InformedEntity = append(alert.InformedEntity, selector)
	}

	return alert
}

func translated(text string) *p.TranslatedString {
	return &p.TranslatedString{
		Translation: []*p.TranslatedString_Translation{
			{Text: proto.String(text)},
		},
	}
}

func timeRange(start, end *time.Time) *p.TimeRange {
	r := &p.TimeRange{}
	if start != nil && !start.IsZero() {
		r.Start = proto.Uint64(uint64(start.Unix()))
	}
	if end != nil && !end.IsZero() {
		r.End = proto.Uint64(uint64(end.Unix()))
	}
	return r
}
