package view

import (
	"sort"

	"github.com/robertmeta/dining-cli/model"
)

// GlutenFilter is the exclude-only marker. When active, items tagged
// gluten are dropped; it never selects items.
const GlutenFilter = model.TagGluten

// KnownFilters lists the filter identifiers the projector understands.
var KnownFilters = []string{
	model.TagVegetarian,
	model.TagVegan,
	model.TagProtein,
	GlutenFilter,
}

// FilterSet is the set of active dietary filters. It is client-local and
// never persisted. The zero value is an empty set.
type FilterSet struct {
	active map[string]struct{}
}

// NewFilterSet returns a set with filters active.
func NewFilterSet(filters ...string) *FilterSet {
	fs := &FilterSet{}
	for _, f := range filters {
		fs.add(f)
	}
	return fs
}

func (fs *FilterSet) add(filter string) {
	filter = model.NormalizeTag(filter)
	if filter == "" {
		return
	}
	if fs.active == nil {
		fs.active = make(map[string]struct{})
	}
	fs.active[filter] = struct{}{}
}

// Toggle flips filter and reports whether it is now active.
func (fs *FilterSet) Toggle(filter string) bool {
	filter = model.NormalizeTag(filter)
	if filter == "" {
		return false
	}
	if fs.Has(filter) {
		delete(fs.active, filter)
		return false
	}
	fs.add(filter)
	return true
}

// Has reports whether filter is active.
func (fs *FilterSet) Has(filter string) bool {
	_, ok := fs.active[model.NormalizeTag(filter)]
	return ok
}

// List returns the active filters in sorted order.
func (fs *FilterSet) List() []string {
	out := make([]string, 0, len(fs.active))
	for f := range fs.active {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of active filters.
func (fs *FilterSet) Len() int {
	return len(fs.active)
}

// excludesGluten reports whether the gluten marker is active.
func excludesGluten(filters []string) bool {
	for _, f := range filters {
		if model.NormalizeTag(f) == GlutenFilter {
			return true
		}
	}
	return false
}

// includeFilters returns filters without the gluten marker or blanks.
func includeFilters(filters []string) []string {
	out := make([]string, 0, len(filters))
	for _, f := range filters {
		n := model.NormalizeTag(f)
		if n == "" || n == GlutenFilter {
			continue
		}
		out = append(out, n)
	}
	return out
}
