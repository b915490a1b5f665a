package known

import (
	"bytes"
	_ "embed"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"
	"github.com/spkg/bom"

	"github.com/dortort/moovit-client/geo"
)

//go:embed israel.csv
var israelCSV []byte

type locationCSV struct {
	ID       string  `csv:"id"`
	Name     string  `csv:"name"`
	Lat      float64 `csv:"lat"`
	Lon      float64 `csv:"lon"`
	Aliases  string  `csv:"aliases"`
	Category string  `csv:"category"`
}

// LoadCSV reads locations from CSV with columns id, name, lat, lon,
// aliases and category. Aliases are separated by '|'.
func LoadCSV(data io.Reader) ([]Location, error) {
	rows := []*locationCSV{}
	if err := gocsv.UnmarshalCSV(gocsv.LazyCSVReader(bom.NewReader(data)), &rows); err != nil {
		return nil, errors.Wrap(err, "unmarshaling locations csv")
	}

	seen := map[string]bool{}
	locations := make([]Location, 0, len(rows))
	for i, row := range rows {
		if row.ID == "" {
			return nil, errors.Errorf("empty id (row %d)", i+1)
		}
		if seen[row.ID] {
			return nil, errors.Errorf("repeated id '%s' (row %d)", row.ID, i+1)
		}
		seen[row.ID] = true

		coords := geo.Coordinates{Lat: row.Lat, Lon: row.Lon}
		if !geo.IsValid(coords) {
			return nil, errors.Errorf("invalid coordinates for '%s' (row %d)", row.ID, i+1)
		}

		var aliases []string
		for _, alias := range strings.Split(row.Aliases, "|") {
			if alias = strings.TrimSpace(alias); alias != "" {
				aliases = append(aliases, alias)
			}
		}

		locations = append(locations, Location{
			ID:          row.ID,
			Name:        row.Name,
			Coordinates: coords,
			Aliases:     aliases,
			Category:    Category(row.Category),
		})
	}

	return locations, nil
}

// IsraelLocations returns the bundled transit hubs and landmarks for
// the Israel metro (metro id 1).
func IsraelLocations() []Location {
	locations, err := LoadCSV(bytes.NewReader(israelCSV))
	if err != nil {
		panic(errors.Wrap(err, "loading bundled locations"))
	}
	return locations
}

// Default returns a new registry seeded with IsraelLocations.
func Default() *Registry {
	return NewRegistry(IsraelLocations()...)
}
