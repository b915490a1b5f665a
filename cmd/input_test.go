package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	moovit "github.com/dortort/moovit-client"
	"github.com/dortort/moovit-client/known"
)

func TestParseLocation(t *testing.T) {
	registry := known.NewRegistry(known.Location{
		ID:          "azrieli",
		Name:        "Azrieli Center",
		Coordinates: moovit.Coordinates{Lat: 32.0744, Lon: 34.7920},
		Aliases:     []string{"azrieli mall"},
	})

	for _, tc := range []struct {
		arg      string
		expected moovit.LocationInput
	}{
		{"32.08,34.78", moovit.CoordinateInput{Lat: 32.08, Lon: 34.78}},
		{" 32.08, 34.78 ", moovit.CoordinateInput{Lat: 32.08, Lon: 34.78}},
		{"stop:12345", moovit.StopIDInput{ID: 12345}},
		{"azrieli", moovit.AliasInput{Name: "azrieli"}},
		{"Azrieli Mall", moovit.AliasInput{Name: "Azrieli Mall"}},
		{"dizengoff square", moovit.TextInput{Query: "dizengoff square"}},
		{"a,b", moovit.TextInput{Query: "a,b"}},
	} {
		input, err := parseLocation(tc.arg, registry)
		require.NoError(t, err, tc.arg)
		assert.Equal(t, tc.expected, input, tc.arg)
	}

	_, err := parseLocation("stop:abc", registry)
	assert.Error(t, err)

	_, err = parseLocation("  ", registry)
	assert.Error(t, err)
}

func TestParsePair(t *testing.T) {
	pair, err := parsePair("1234:5678")
	require.NoError(t, err)
	assert.Equal(t, moovit.LineStopPair{LineID: 1234, StopID: 5678}, pair)

	for _, arg := range []string{"1234", "a:1", "1:b", ":"} {
		_, err := parsePair(arg)
		assert.Error(t, err, arg)
	}
}

func TestParseRouteTypes(t *testing.T) {
	types, err := parseRouteTypes([]string{"bus", " Train ", "light-rail"})
	require.NoError(t, err)
	assert.Equal(t, []moovit.RouteType{
		moovit.RouteTypeBus,
		moovit.RouteTypeTrain,
		moovit.RouteTypeLightRail,
	}, types)

	types, err = parseRouteTypes(nil)
	require.NoError(t, err)
	assert.Empty(t, types)

	_, err = parseRouteTypes([]string{"zeppelin"})
	assert.Error(t, err)
}

func TestParseTime(t *testing.T) {
	tz, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)
	now := time.Date(2024, 3, 10, 9, 30, 0, 0, tz)

	parsed, err := parseTime("17:45", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 10, 17, 45, 0, 0, tz), parsed)

	parsed, err = parseTime("2024-03-11T08:00:00Z", now)
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC).Equal(parsed))

	_, err = parseTime("tomorrow", now)
	assert.Error(t, err)
}

func TestDescribeLeg(t *testing.T) {
	start := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	timing := moovit.TimeInfo{Start: start, End: start.Add(12 * time.Minute)}

	assert.Equal(t, "Walk 350 m (12 min)", describeLeg(&moovit.WalkLeg{
		Time:           timing,
		DistanceMeters: 350,
	}))

	assert.Equal(t, "Transit Dan 5: Central -> Azrieli, 7 stops (12 min)", describeLeg(&moovit.TransitLeg{
		Time:        timing,
		Line:        moovit.LineInfo{ShortName: "5", AgencyName: "Dan"},
		Origin:      moovit.StopRef{Name: "Central"},
		Destination: moovit.StopRef{Name: "Azrieli"},
		NumStops:    7,
	}))

	assert.Equal(t, "Wait 4 min", describeLeg(&moovit.WaitLeg{WaitDurationMinutes: 4}))
}
