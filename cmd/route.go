package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	moovit "github.com/dortort/moovit-client"
	"github.com/dortort/moovit-client/known"
)

var routeCmd = &cobra.Command{
	Use:   "route <from> <to>",
	Short: "Plans trips between two locations",
	Long: `Plans trips between two locations. A location is either
"lat,lon", "stop:<id>", a known location name or alias, or
free text to search for.`,
	Args: cobra.ExactArgs(2),
	RunE: route,
}

var (
	departAt   string
	arriveBy   string
	preference string
	routeTypes []string
)

func init() {
	routeCmd.Flags().StringVarP(&departAt, "depart", "d", "", "Departure time (RFC 3339 or HH:MM today)")
	routeCmd.Flags().StringVarP(&arriveBy, "arrive", "a", "", "Arrival time (RFC 3339 or HH:MM today)")
	routeCmd.Flags().StringVarP(&preference, "prefer", "p", "balanced", "fastest, balanced, least-walking or least-transfers")
	routeCmd.Flags().StringSliceVarP(&routeTypes, "types", "t", []string{}, "Route types to use (bus, train, light-rail, ...)")
	rootCmd.AddCommand(routeCmd)
}

var title = cases.Title(language.English)

func route(cmd *cobra.Command, args []string) error {
	registry := known.Default()
	from, err := parseLocation(args[0], registry)
	if err != nil {
		return fmt.Errorf("invalid origin: %w", err)
	}
	to, err := parseLocation(args[1], registry)
	if err != nil {
		return fmt.Errorf("invalid destination: %w", err)
	}

	params := moovit.RouteSearchParams{From: from, To: to}

	now := time.Now()
	if departAt != "" {
		params.DepartureTime, err = parseTime(departAt, now)
		if err != nil {
			return fmt.Errorf("invalid departure time: %w", err)
		}
	}
	if arriveBy != "" {
		params.ArrivalTime, err = parseTime(arriveBy, now)
		if err != nil {
			return fmt.Errorf("invalid arrival time: %w", err)
		}
	}

	pref, found := preferenceNames[preference]
	if !found {
		return fmt.Errorf("unknown preference %q", preference)
	}
	params.Preference = pref

	params.RouteTypes, err = parseRouteTypes(routeTypes)
	if err != nil {
		return err
	}

	client, err := newClient(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.SearchRoutes(cmd.Context(), params)
	if err != nil {
		return err
	}

	if len(result.Itineraries) == 0 {
		fmt.Println("No routes found")
		return nil
	}

	for i, itinerary := range result.Itineraries {
		fmt.Printf(
			"%d. %s - %s (%d min, %.0f m walking)\n",
			i+1,
			formatClock(itinerary.DepartureTime),
			formatClock(itinerary.ArrivalTime),
			itinerary.TotalMinutes(),
			itinerary.TotalWalkingDistance,
		)
		for _, leg := range itinerary.Legs {
			fmt.Printf("   %s\n", describeLeg(leg))
		}
	}

	return nil
}

func describeLeg(leg moovit.Leg) string {
	label := title.String(string(leg.Kind()))
	minutes := int(leg.Timing().Duration().Round(time.Minute).Minutes())

	switch l := leg.(type) {
	case *moovit.WalkLeg:
		return fmt.Sprintf("%s %.0f m (%d min)", label, l.DistanceMeters, minutes)
	case *moovit.TransitLeg:
		name := l.Line.ShortName
		if name == "" {
			name = l.Line.Number
		}
		return fmt.Sprintf(
			"%s %s %s: %s -> %s, %d stops (%d min)",
			label, l.Line.AgencyName, name, l.Origin.Name, l.Destination.Name, l.NumStops, minutes,
		)
	case *moovit.LineWithAlternativesLeg:
		names := []string{}
		for _, alt := range l.Lines {
			names = append(names, alt.Line.ShortName)
		}
		return fmt.Sprintf("Any of %s: %s -> %s (%d min)", strings.Join(names, ", "), l.Origin.Name, l.Destination.Name, minutes)
	case *moovit.TaxiLeg:
		return fmt.Sprintf("%s %s %.1f km (%d min)", label, l.ProviderName, l.DistanceMeters/1000, minutes)
	case *moovit.ScooterLeg:
		return fmt.Sprintf("%s %s %.0f m (%d min)", label, l.ProviderName, l.DistanceMeters, minutes)
	case *moovit.BikeLeg:
		return fmt.Sprintf("%s %.0f m (%d min)", label, l.DistanceMeters, minutes)
	case *moovit.WaitLeg:
		return fmt.Sprintf("%s %d min", label, l.WaitDurationMinutes)
	case *moovit.WaitForTaxiLeg:
		return fmt.Sprintf("Wait for taxi at %s (~%d min)", l.Location.Caption, l.ApproxWaitingSeconds/60)
	}

	return label
}

// parseTime accepts RFC 3339, or HH:MM on the day of now.
func parseTime(s string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("15:04", s, now.Location())
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location()), nil
}

func formatClock(t time.Time) string {
	if t.IsZero() {
		return "--:--"
	}
	return t.Local().Format("15:04")
}
