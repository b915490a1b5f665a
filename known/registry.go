// Package known holds named locations (stations, landmarks) that can
// be referred to by id, name or alias instead of coordinates.
package known

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dortort/moovit-client/geo"
)

type Category string

const (
	CategoryBusStation   Category = "bus-station"
	CategoryTrainStation Category = "train-station"
	CategoryLandmark     Category = "landmark"
	CategoryAirport      Category = "airport"
)

type Location struct {
	ID          string
	Name        string
	Coordinates geo.Coordinates
	Aliases     []string
	Category    Category
}

// UnknownAliasError is returned when a name doesn't match any
// registered location.
type UnknownAliasError struct {
	Alias string
}

func (e *UnknownAliasError) Error() string {
	return fmt.Sprintf("Unknown location alias: %q", e.Alias)
}

// Registry maps ids, names and aliases (case-insensitively) to known
// locations. Safe for concurrent use.
type Registry struct {
	mutex     sync.RWMutex
	locations map[string]Location
	order     []string
	aliases   map[string]string
}

// Creates a registry holding the given locations.
func NewRegistry(locations ...Location) *Registry {
	r := &Registry{
		locations: map[string]Location{},
		aliases:   map[string]string{},
	}
	for _, loc := range locations {
		r.Register(loc)
	}
	return r
}

// Register adds loc, replacing any location with the same id. Its id,
// name and aliases all become lookup keys.
func (r *Registry) Register(loc Location) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, found := r.locations[loc.ID]; !found {
		r.order = append(r.order, loc.ID)
	}
	loc.Aliases = append([]string(nil), loc.Aliases...)
	r.locations[loc.ID] = loc

	r.aliases[strings.ToLower(loc.ID)] = loc.ID
	r.aliases[strings.ToLower(loc.Name)] = loc.ID
	for _, alias := range loc.Aliases {
		r.aliases[strings.ToLower(alias)] = loc.ID
	}
}

// RegisterAlias makes alias resolve to the location with the given id.
func (r *Registry) RegisterAlias(alias string, id string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, found := r.locations[id]; !found {
		return &UnknownAliasError{Alias: id}
	}
	r.aliases[strings.ToLower(alias)] = id
	return nil
}

// Get looks up a location by id, name or alias.
func (r *Registry) Get(key string) (Location, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	id, found := r.aliases[strings.ToLower(key)]
	if !found {
		return Location{}, false
	}
	loc, found := r.locations[id]
	return loc, found
}

func (r *Registry) Has(key string) bool {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	_, found := r.aliases[strings.ToLower(key)]
	return found
}

// Coordinates of the location matching key, if any.
func (r *Registry) Coordinates(key string) (geo.Coordinates, bool) {
	loc, found := r.Get(key)
	return loc.Coordinates, found
}

// List returns all locations in registration order.
func (r *Registry) List() []Location {
	return r.filter(func(Location) bool { return true })
}

// Search returns locations whose id, name or any alias contains
// query, ignoring case. Results are in registration order.
func (r *Registry) Search(query string) []Location {
	q := strings.ToLower(query)
	return r.filter(func(loc Location) bool {
		if strings.Contains(strings.ToLower(loc.Name), q) ||
			strings.Contains(strings.ToLower(loc.ID), q) {
			return true
		}
		for _, alias := range loc.Aliases {
			if strings.Contains(strings.ToLower(alias), q) {
				return true
			}
		}
		return false
	})
}

func (r *Registry) ByCategory(category Category) []Location {
	return r.filter(func(loc Location) bool { return loc.Category == category })
}

// Number of registered locations.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.locations)
}

func (r *Registry) filter(keep func(Location) bool) []Location {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := []Location{}
	for _, id := range r.order {
		if loc := r.locations[id]; keep(loc) {
			result = append(result, loc)
		}
	}
	return result
}
