// Package view derives what the menu shows: the items visible for a dining
// hall, meal period and station under the active dietary filters, and the
// card data rendered for each of them. Everything here is pure.
package view

import (
	"strings"

	"github.com/robertmeta/dining-cli/model"
)

// Project returns the items of catalog visible under the given scope and
// filters, in catalog order.
//
// The gluten marker in filters removes every item tagged gluten. The other
// filters are OR-ed: an item qualifies if it carries any of them. Finally
// an item must contain hall, period and station in its respective fields;
// an empty query matches everything.
func Project(catalog []model.FoodItem, hall, period, station string, filters []string) []model.FoodItem {
	noGluten := excludesGluten(filters)
	include := includeFilters(filters)

	out := make([]model.FoodItem, 0, len(catalog))
	for i := range catalog {
		item := &catalog[i]
		tags := item.Tags()
		if noGluten && tags.Has(GlutenFilter) {
			continue
		}
		if len(include) > 0 && !tags.Intersects(include) {
			continue
		}
		if !inScope(item, hall, period, station) {
			continue
		}
		out = append(out, *item)
	}
	return out
}

func inScope(item *model.FoodItem, hall, period, station string) bool {
	return strings.Contains(item.DiningHall, hall) &&
		strings.Contains(item.MealPeriod, period) &&
		strings.Contains(item.Station, station)
}

// Stations lists the distinct stations serving hall and period, in the
// order they first appear in catalog.
func Stations(catalog []model.FoodItem, hall, period string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for i := range catalog {
		item := &catalog[i]
		if item.Station == "" || !inScope(item, hall, period, "") {
			continue
		}
		if _, ok := seen[item.Station]; ok {
			continue
		}
		seen[item.Station] = struct{}{}
		out = append(out, item.Station)
	}
	return out
}
