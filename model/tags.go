package model

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

// Tag vocabulary understood by the classifier and the filters.
const (
	TagVegetarian = "vegetarian"
	TagVegan      = "vegan"
	TagGluten     = "gluten"
	TagProtein    = "protein"
)

// TagSet is a set of normalized (trimmed, lowercase) tags.
type TagSet map[string]struct{}

// NewTagSet builds a set from raw tag strings.
func NewTagSet(tags ...string) TagSet {
	set := make(TagSet, len(tags))
	for _, t := range tags {
		if n := NormalizeTag(t); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// NormalizeTag trims and lowercases a tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// Has reports whether the set contains tag.
func (s TagSet) Has(tag string) bool {
	_, ok := s[NormalizeTag(tag)]
	return ok
}

// Intersects reports whether any of tags is in the set.
func (s TagSet) Intersects(tags []string) bool {
	for _, t := range tags {
		if s.Has(t) {
			return true
		}
	}
	return false
}

// List returns the tags in sorted order.
func (s TagSet) List() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// ParseTagsLeniently parses a serialized tag payload. The payload may be a
// JSON array of strings or a JSON string holding such an array. It never
// fails: a malformed payload returns an empty set and false. An absent
// payload returns an empty set and true.
func ParseTagsLeniently(payload []byte) (TagSet, bool) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return TagSet{}, true
	}

	// A string wrapping the array, as the scraper stores it.
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return TagSet{}, false
		}
		trimmed = bytes.TrimSpace([]byte(inner))
		if len(trimmed) == 0 {
			return TagSet{}, true
		}
	}

	if trimmed[0] != '[' {
		return TagSet{}, false
	}

	var raw []any
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return TagSet{}, false
	}

	set := make(TagSet, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if n := NormalizeTag(s); n != "" {
			set[n] = struct{}{}
		}
	}
	return set, true
}

// Classification holds the dietary flags shown on a food card.
type Classification struct {
	IsVegetarian bool `json:"is_vegetarian"`
	HasGluten    bool `json:"has_gluten"`
	HighProtein  bool `json:"high_protein"`
}

// Classify derives dietary flags from a serialized tag payload. Parse
// failures yield all-false.
func Classify(payload string) Classification {
	tags, _ := ParseTagsLeniently([]byte(payload))
	return ClassifyTags(tags)
}

// ClassifyTags derives dietary flags from a parsed tag set.
func ClassifyTags(tags TagSet) Classification {
	return Classification{
		IsVegetarian: tags.Has(TagVegetarian) || tags.Has(TagVegan),
		HasGluten:    tags.Has(TagGluten),
		HighProtein:  tags.Has(TagProtein),
	}
}
