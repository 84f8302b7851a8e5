package view

import (
	"fmt"
	"slices"
	"strings"

	"github.com/robertmeta/dining-cli/model"
)

// Scope is a projector query built from CLI flags.
type Scope struct {
	Hall    string   `json:"dining_hall,omitempty"`
	Period  string   `json:"meal_period,omitempty"`
	Station string   `json:"station,omitempty"`
	Filters []string `json:"filters,omitempty"`
}

// Apply projects catalog through the scope.
func (s Scope) Apply(catalog []model.FoodItem) []model.FoodItem {
	return Project(catalog, s.Hall, s.Period, s.Station, s.Filters)
}

// ParseFilters splits a comma separated filter list like "vegan,gluten".
// Unknown filters are rejected.
func ParseFilters(s string) ([]string, error) {
	fs := NewFilterSet()
	for _, part := range strings.Split(s, ",") {
		filter := model.NormalizeTag(part)
		if filter == "" {
			continue
		}
		if !slices.Contains(KnownFilters, filter) {
			return nil, fmt.Errorf("%w: unknown filter %q (expected one of %s)",
				model.ErrInvalidInput, part, strings.Join(KnownFilters, ", "))
		}
		fs.add(filter)
	}
	return fs.List(), nil
}

// BuildScope constructs a Scope from CLI flags.
func BuildScope(hall, period, station, filters string) (Scope, error) {
	scope := Scope{
		Hall:    strings.TrimSpace(hall),
		Period:  strings.TrimSpace(period),
		Station: strings.TrimSpace(station),
	}

	if filters != "" {
		parsed, err := ParseFilters(filters)
		if err != nil {
			return scope, fmt.Errorf("failed to parse --filter flag: %w", err)
		}
		scope.Filters = parsed
	}

	return scope, nil
}

// Toggle flips each filter in the scope's filter set, as --toggle does on
// top of --filter. Unknown filters are rejected and leave s unchanged.
func (s Scope) Toggle(filters ...string) (Scope, error) {
	fs := NewFilterSet(s.Filters...)
	for _, f := range filters {
		filter := model.NormalizeTag(f)
		if !slices.Contains(KnownFilters, filter) {
			return s, fmt.Errorf("failed to parse --toggle flag: %w: unknown filter %q",
				model.ErrInvalidInput, f)
		}
		fs.Toggle(filter)
	}

	s.Filters = nil
	if fs.Len() > 0 {
		s.Filters = fs.List()
	}
	return s, nil
}
