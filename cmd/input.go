package main

import (
	"fmt"
	"strconv"
	"strings"

	moovit "github.com/dortort/moovit-client"
	"github.com/dortort/moovit-client/known"
)

// parseLocation interprets a command line location:
//
//	32.08,34.78   coordinates
//	stop:12345    stop id
//	azrieli       known location name or alias
//	anything else free text search
func parseLocation(arg string, registry *known.Registry) (moovit.LocationInput, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, fmt.Errorf("empty location")
	}

	if rest, found := strings.CutPrefix(arg, "stop:"); found {
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid stop id %q: %w", rest, err)
		}
		return moovit.StopIDInput{ID: id}, nil
	}

	if c, ok := parseCoordinates(arg); ok {
		return moovit.CoordinateInput{Lat: c.Lat, Lon: c.Lon}, nil
	}

	if registry.Has(arg) {
		return moovit.AliasInput{Name: arg}, nil
	}

	return moovit.TextInput{Query: arg}, nil
}

func parseCoordinates(arg string) (moovit.Coordinates, bool) {
	lat, lon, found := strings.Cut(arg, ",")
	if !found {
		return moovit.Coordinates{}, false
	}
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return moovit.Coordinates{}, false
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return moovit.Coordinates{}, false
	}
	return moovit.Coordinates{Lat: la, Lon: lo}, true
}

var routeTypeNames = map[string]moovit.RouteType{
	"bus":        moovit.RouteTypeBus,
	"light-rail": moovit.RouteTypeLightRail,
	"train":      moovit.RouteTypeTrain,
	"walking":    moovit.RouteTypeWalking,
	"biking":     moovit.RouteTypeBiking,
	"taxi":       moovit.RouteTypeTaxi,
	"ferry":      moovit.RouteTypeFerry,
	"scooter":    moovit.RouteTypeScooter,
}

var preferenceNames = map[string]moovit.TripPlanPreference{
	"fastest":         moovit.PreferenceFastest,
	"balanced":        moovit.PreferenceBalanced,
	"least-walking":   moovit.PreferenceLeastWalking,
	"least-transfers": moovit.PreferenceLeastTransfers,
}

func parseRouteTypes(names []string) ([]moovit.RouteType, error) {
	types := []moovit.RouteType{}
	for _, name := range names {
		t, found := routeTypeNames[strings.ToLower(strings.TrimSpace(name))]
		if !found {
			return nil, fmt.Errorf("unknown route type %q", name)
		}
		types = append(types, t)
	}
	return types, nil
}

// parsePair reads a "line:stop" pair.
func parsePair(arg string) (moovit.LineStopPair, error) {
	line, stop, found := strings.Cut(arg, ":")
	if !found {
		return moovit.LineStopPair{}, fmt.Errorf("'%s' is not on form <line>:<stop>", arg)
	}
	lineID, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return moovit.LineStopPair{}, fmt.Errorf("invalid line id: %w", err)
	}
	stopID, err := strconv.ParseInt(stop, 10, 64)
	if err != nil {
		return moovit.LineStopPair{}, fmt.Errorf("invalid stop id: %w", err)
	}
	return moovit.LineStopPair{LineID: lineID, StopID: stopID}, nil
}
