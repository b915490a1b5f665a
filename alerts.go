package moovit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	p "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

type AlertSeverity int

const (
	SeverityInfo    AlertSeverity = 1
	SeverityWarning AlertSeverity = 2
	SeveritySevere  AlertSeverity = 3
)

func (s AlertSeverity) String() string {
	switch s {
	case SeverityWarning:
		return "WARNING"
	case SeveritySevere:
		return "SEVERE"
	default:
		return "INFO"
	}
}

type AffectedEntityType string

const (
	AffectedRoute  AffectedEntityType = "route"
	AffectedStop   AffectedEntityType = "stop"
	AffectedAgency AffectedEntityType = "agency"
)

type AffectedEntity struct {
	Type AffectedEntityType
	ID   int64
	Name *string
}

// Alert is a service alert. Effect and Cause use the GTFS-Realtime
// enumerations, which share the API's numbering.
type Alert struct {
	ID               int64
	Title            string
	Description      *string
	URL              *string
	Severity         AlertSeverity
	Effect           p.Alert_Effect
	Cause            *p.Alert_Cause
	StartTime        *time.Time
	EndTime          *time.Time
	AffectedEntities []AffectedEntity
}

type ActivePeriod struct {
	Start time.Time
	End   time.Time
}

type AlertDetails struct {
	Alert
	FullDescription *string
	ActivePeriods   []ActivePeriod
}

type rawAlert struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Description      *string `json:"description"`
	URL              *string `json:"url"`
	Severity         int     `json:"severity"`
	Effect           int32   `json:"effect"`
	Cause            *int32  `json:"cause"`
	StartTime        int64   `json:"startTime"`
	EndTime          int64   `json:"endTime"`
	AffectedEntities []struct {
		Type string  `json:"type"`
		ID   int64   `json:"id"`
		Name *string `json:"name"`
	} `json:"affectedEntities"`
	FullDescription *string `json:"fullDescription"`
	ActivePeriods   []struct {
		Start int64 `json:"start"`
		End   int64 `json:"end"`
	} `json:"activePeriods"`
}

type alertsService struct {
	cfg ResolvedConfig
	api *api
}

func (s *alertsService) alerts(ctx context.Context, endpoint string) ([]Alert, error) {
	var data json.RawMessage
	if err := s.api.getJSON(ctx, endpoint, nil, &data); err != nil {
		return nil, err
	}

	var raw []rawAlert
	if err := unwrapList(data, "data", &raw); err != nil {
		return nil, fmt.Errorf("decoding alerts: %w", err)
	}

	alerts := make([]Alert, 0, len(raw))
	for i := range raw {
		alerts = append(alerts, raw[i].alert())
	}
	return alerts, nil
}

func (s *alertsService) details(ctx context.Context, id int64, language string) (*AlertDetails, error) {
	if language == "" {
		language = strings.ToLower(s.cfg.Language)
	}
	endpoint := "/alert/getAlertDetails/" + strconv.FormatInt(id, 10) + "/" + url.PathEscape(language)

	raw := rawAlert{}
	err := s.api.getJSON(ctx, endpoint, nil, &raw)
	if err != nil {
		if status, ok := statusOf(err); ok && status == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	details := &AlertDetails{
		Alert:           raw.alert(),
		FullDescription: raw.FullDescription,
	}
	if raw.ActivePeriods != nil {
		details.ActivePeriods = make([]ActivePeriod, 0, len(raw.ActivePeriods))
		for _, period := range raw.ActivePeriods {
			details.ActivePeriods = append(details.ActivePeriods, ActivePeriod{
				Start: time.UnixMilli(period.Start).UTC(),
				End:   time.UnixMilli(period.End).UTC(),
			})
		}
	}
	return details, nil
}

func (r *rawAlert) alert() Alert {
	a := Alert{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		URL:         r.URL,
		Severity:    AlertSeverity(r.Severity),
		Effect:      p.Alert_Effect(r.Effect),
	}
	if a.Severity == 0 {
		a.Severity = SeverityInfo
	}
	if r.Effect == 0 {
		a.Effect = p.Alert_UNKNOWN_EFFECT
	}
	if r.Cause != nil && *r.Cause != 0 {
		cause := p.Alert_Cause(*r.Cause)
		a.Cause = &cause
	}
	if r.StartTime != 0 {
		t := time.UnixMilli(r.StartTime).UTC()
		a.StartTime = &t
	}
	if r.EndTime != 0 {
		t := time.UnixMilli(r.EndTime).UTC()
		a.EndTime = &t
	}

	if r.AffectedEntities != nil {
		a.AffectedEntities = make([]AffectedEntity, 0, len(r.AffectedEntities))
		for _, e := range r.AffectedEntities {
			entity := AffectedEntity{
				Type: AffectedEntityType(e.Type),
				ID:   e.ID,
				Name: e.Name,
			}
			if entity.Type == "" {
				entity.Type = AffectedRoute
			}
			a.AffectedEntities = append(a.AffectedEntities, entity)
		}
	}

	return a
}

// Alerts returns the service alerts for the configured metro.
func (c *Client) Alerts(ctx context.Context) ([]Alert, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.alerts.alerts(ctx, "/alert")
}

// MetroAlerts returns metro wide alerts.
func (c *Client) MetroAlerts(ctx context.Context) ([]Alert, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.alerts.alerts(ctx, "/alert/metro")
}

// AlertDetails fetches the full text of an alert. An empty language
// means the configured one. Returns nil if the alert doesn't exist.
func (c *Client) AlertDetails(ctx context.Context, id int64, language string) (*AlertDetails, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.alerts.details(ctx, id, language)
}
