package known_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dortort/moovit-client/geo"
	"github.com/dortort/moovit-client/known"
)

func TestRegistryDefault(t *testing.T) {
	r := known.Default()
	assert.Equal(t, 30, r.Len())

	loc, found := r.Get("tel-aviv-central")
	require.True(t, found)
	assert.Equal(t, "Tel Aviv Central Bus Station", loc.Name)
	assert.Equal(t, geo.Coordinates{Lat: 32.0561, Lon: 34.7794}, loc.Coordinates)
	assert.Equal(t, known.CategoryBusStation, loc.Category)
	assert.Equal(t, []string{"tahana-merkazit-tel-aviv", "ta-cbs"}, loc.Aliases)

	// Aliases and names resolve case-insensitively
	for _, key := range []string{"TLS", "natbag", "Airport", "ben gurion international airport", "BEN-GURION-AIRPORT"} {
		loc, found := r.Get(key)
		require.True(t, found, key)
		assert.Equal(t, "ben-gurion-airport", loc.ID, key)
		assert.Equal(t, geo.Coordinates{Lat: 32.0055, Lon: 34.8854}, loc.Coordinates)
	}

	loc, found = r.Get("kotel")
	require.True(t, found)
	assert.Equal(t, "western-wall", loc.ID)

	loc, found = r.Get("acre")
	require.True(t, found)
	assert.Equal(t, "akko-station", loc.ID)

	_, found = r.Get("atlantis")
	assert.False(t, found)
	assert.False(t, r.Has("atlantis"))
	assert.True(t, r.Has("Azrieli"))

	coords, found := r.Coordinates("azrieli")
	require.True(t, found)
	assert.Equal(t, geo.Coordinates{Lat: 32.0744, Lon: 34.7921}, coords)
}

func TestRegistryRegister(t *testing.T) {
	r := known.NewRegistry()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, []known.Location{}, r.List())

	r.Register(known.Location{
		ID:          "home",
		Name:        "My Home",
		Coordinates: geo.Coordinates{Lat: 32.1, Lon: 34.8},
		Aliases:     []string{"casa"},
		Category:    known.CategoryLandmark,
	})
	assert.Equal(t, 1, r.Len())

	for _, key := range []string{"home", "HOME", "my home", "Casa"} {
		loc, found := r.Get(key)
		require.True(t, found, key)
		assert.Equal(t, "home", loc.ID)
	}

	require.NoError(t, r.RegisterAlias("Base", "home"))
	loc, found := r.Get("base")
	require.True(t, found)
	assert.Equal(t, "home", loc.ID)

	// Alias to unknown location fails, and doesn't register
	err := r.RegisterAlias("work", "office")
	require.Error(t, err)
	var aliasErr *known.UnknownAliasError
	require.True(t, errors.As(err, &aliasErr))
	assert.Equal(t, "office", aliasErr.Alias)
	assert.Equal(t, `Unknown location alias: "office"`, err.Error())
	assert.False(t, r.Has("work"))

	// Re-registering replaces but keeps position
	r.Register(known.Location{ID: "work", Name: "Office", Coordinates: geo.Coordinates{Lat: 32.2, Lon: 34.9}})
	r.Register(known.Location{ID: "home", Name: "New Home", Coordinates: geo.Coordinates{Lat: 32.3, Lon: 34.7}})
	assert.Equal(t, 2, r.Len())
	list := r.List()
	require.Equal(t, 2, len(list))
	assert.Equal(t, "New Home", list[0].Name)
	assert.Equal(t, "Office", list[1].Name)
}

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	r := known.NewRegistry(
		known.Location{ID: "zion-square", Name: "Zion Square Stop"},
		known.Location{ID: "allenby", Name: "Allenby Stop"},
		known.Location{ID: "malha", Name: "Malha Stop"},
	)

	ids := []string{}
	for _, loc := range r.List() {
		ids = append(ids, loc.ID)
	}
	assert.Equal(t, []string{"zion-square", "allenby", "malha"}, ids)

	ids = []string{}
	for _, loc := range r.Search("stop") {
		ids = append(ids, loc.ID)
	}
	assert.Equal(t, []string{"zion-square", "allenby", "malha"}, ids)
}

func TestRegistrySearch(t *testing.T) {
	r := known.Default()

	ids := func(locs []known.Location) []string {
		out := []string{}
		for _, l := range locs {
			out = append(out, l.ID)
		}
		return out
	}

	assert.Equal(t, []string{
		"haifa-hof-hacarmel",
		"haifa-merkaz-hashmona",
		"haifa-bat-galim",
		"haifa-central",
	}, ids(r.Search("HAIFA")))

	// Matches on alias alone
	assert.Equal(t, []string{"mahane-yehuda"}, ids(r.Search("shuk")))

	assert.Equal(t, []string{}, ids(r.Search("zzz")))

	assert.Equal(t, []string{"ben-gurion-airport"}, ids(r.ByCategory(known.CategoryAirport)))
	assert.Equal(t, 3, len(r.ByCategory(known.CategoryBusStation)))
	for _, loc := range r.ByCategory(known.CategoryLandmark) {
		assert.Equal(t, known.CategoryLandmark, loc.Category)
	}
}

func TestLoadCSV(t *testing.T) {
	locs, err := known.LoadCSV(strings.NewReader("\xef\xbb\xbf" + `id,name,lat,lon,aliases,category
a,Alpha,1.5,2.5,x|y,landmark
b,Beta,-1,-2,,airport
`))
	require.NoError(t, err)
	assert.Equal(t, []known.Location{
		{ID: "a", Name: "Alpha", Coordinates: geo.Coordinates{Lat: 1.5, Lon: 2.5}, Aliases: []string{"x", "y"}, Category: known.CategoryLandmark},
		{ID: "b", Name: "Beta", Coordinates: geo.Coordinates{Lat: -1, Lon: -2}, Category: known.CategoryAirport},
	}, locs)

	_, err = known.LoadCSV(strings.NewReader("id,name,lat,lon,aliases,category\na,A,1,1,,x\na,B,2,2,,x\n"))
	assert.Error(t, err)

	_, err = known.LoadCSV(strings.NewReader("id,name,lat,lon,aliases,category\n,A,1,1,,x\n"))
	assert.Error(t, err)

	_, err = known.LoadCSV(strings.NewReader("id,name,lat,lon,aliases,category\na,A,91,1,,x\n"))
	assert.Error(t, err)
}
