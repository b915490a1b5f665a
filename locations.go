package moovit

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/dortort/moovit-client/geo"
	"github.com/dortort/moovit-client/known"
	"github.com/dortort/moovit-client/locpb"
)

type Coordinates = geo.Coordinates

// LocationType as understood by the route search endpoint.
type LocationType int

const (
	LocationTypeUnknown    LocationType = 0
	LocationTypeStop       LocationType = 4
	LocationTypeCoordinate LocationType = 6
)

// A Location ready to be used as a route endpoint.
type Location struct {
	ID          int64
	Type        LocationType
	Coordinates Coordinates
	Caption     string
}

// LocationInput is anything Resolve can turn into a Location:
// CoordinateInput, AliasInput, StopIDInput or TextInput.
type LocationInput interface {
	isLocationInput()
}

type CoordinateInput struct {
	Lat float64
	Lon float64
}

// AliasInput names a known location by id, name or alias.
type AliasInput struct {
	Name string
}

type StopIDInput struct {
	ID int64
}

// TextInput is searched for, biased towards Near if given.
type TextInput struct {
	Query string
	Near  *Coordinates
}

func (CoordinateInput) isLocationInput() {}
func (AliasInput) isLocationInput()      {}
func (StopIDInput) isLocationInput()     {}
func (TextInput) isLocationInput()       {}

type LocationSearchResultType string

const (
	SearchResultPOI     LocationSearchResultType = "poi"
	SearchResultAddress LocationSearchResultType = "address"
	SearchResultStop    LocationSearchResultType = "stop"
)

type LocationSearchResult struct {
	Type        LocationSearchResultType
	ID          int64
	MetroID     *int
	Name        string
	Subtitle    *string
	Coordinates Coordinates
}

type resolver struct {
	cfg      ResolvedConfig
	api      *api
	registry *known.Registry
}

func newResolver(cfg ResolvedConfig, a *api, registry *known.Registry) *resolver {
	return &resolver{cfg: cfg, api: a, registry: registry}
}

func (r *resolver) resolve(ctx context.Context, input LocationInput) (Location, error) {
	switch in := input.(type) {
	case CoordinateInput:
		return Location{
			ID:          0,
			Type:        LocationTypeCoordinate,
			Coordinates: Coordinates{Lat: in.Lat, Lon: in.Lon},
			Caption:     fmt.Sprintf("%.6f, %.6f", in.Lat, in.Lon),
		}, nil

	case AliasInput:
		loc, found := r.registry.Get(in.Name)
		if !found {
			return Location{}, &UnknownAliasError{Alias: in.Name}
		}
		return Location{
			ID:          0,
			Type:        LocationTypeCoordinate,
			Coordinates: loc.Coordinates,
			Caption:     loc.Name,
		}, nil

	case StopIDInput:
		return Location{
			ID:      in.ID,
			Type:    LocationTypeStop,
			Caption: fmt.Sprintf("Stop %d", in.ID),
		}, nil

	case TextInput:
		results, err := r.search(ctx, in.Query, in.Near)
		if err != nil {
			return Location{}, err
		}
		if len(results) == 0 {
			return Location{}, &LocationNotFoundError{Query: in.Query}
		}

		first := results[0]
		loc := Location{
			ID:          first.ID,
			Type:        LocationTypeCoordinate,
			Coordinates: first.Coordinates,
			Caption:     first.Name,
		}
		if first.Type == SearchResultStop {
			loc.Type = LocationTypeStop
		}
		return loc, nil
	}

	return Location{}, fmt.Errorf("unknown location input type %T", input)
}

// search runs a free text location search. Results are biased
// towards near, or the configured default location.
func (r *resolver) search(ctx context.Context, query string, near *Coordinates) ([]LocationSearchResult, error) {
	bias := r.cfg.DefaultLocation
	if near != nil {
		bias = *near
	}

	q := locpb.EncodeQuery(locpb.Query{Lat: bias.Lat, Lon: bias.Lon, Query: query})

	data, err := r.api.postProtobuf(ctx, "/location", map[string]string{
		"query": base64.StdEncoding.EncodeToString(q),
	})
	if err != nil {
		return nil, err
	}

	decoded, err := locpb.DecodeResponse(data)
	if err != nil {
		return nil, &ProtobufError{Message: "Failed to decode location results", Err: err}
	}

	results := make([]LocationSearchResult, 0, len(decoded))
	for _, d := range decoded {
		result := LocationSearchResult{
			Type:        LocationSearchResultType(d.Type.String()),
			ID:          d.ID,
			Name:        d.Name,
			Subtitle:    d.Subtitle,
			Coordinates: d.Coordinates,
		}
		if d.MetroID != nil {
			metroID := int(*d.MetroID)
			result.MetroID = &metroID
		}
		results = append(results, result)
	}

	return results, nil
}

// Resolve turns input into a Location usable as a route endpoint.
// Text input is searched for, and resolves to the best match.
func (c *Client) Resolve(ctx context.Context, input LocationInput) (Location, error) {
	if err := c.ready(); err != nil {
		return Location{}, err
	}
	return c.resolver.resolve(ctx, input)
}

// SearchLocations searches for places, addresses and stops matching
// query. If near is nil, results are biased towards the configured
// default location.
func (c *Client) SearchLocations(ctx context.Context, query string, near *Coordinates) ([]LocationSearchResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.resolver.search(ctx, query, near)
}

// RegisterLocation adds a named location that AliasInput can refer
// to.
func (c *Client) RegisterLocation(loc known.Location) {
	c.registry.Register(loc)
}

// RegisterAlias adds another name for the known location with the
// given id.
func (c *Client) RegisterAlias(alias string, id string) error {
	return c.registry.RegisterAlias(alias, id)
}

func (c *Client) KnownLocations() []known.Location {
	return c.registry.List()
}

// SearchKnownLocations matches query against the names of known
// locations, without calling the API.
func (c *Client) SearchKnownLocations(query string) []known.Location {
	return c.registry.Search(query)
}

// Registry is the client's known-location registry. Locations
// registered on it are visible to Resolve.
func (c *Client) Registry() *known.Registry {
	return c.registry
}
