package model

import (
	"encoding/json"
	"strings"
)

// RatedSet is the ordered set of item titles an identity has rated.
// It only grows: titles are added, never removed.
type RatedSet struct {
	titles []string
	index  map[string]struct{}
}

// NewRatedSet creates a set holding titles.
func NewRatedSet(titles ...string) *RatedSet {
	s := &RatedSet{index: make(map[string]struct{})}
	s.Union(titles)
	return s
}

// Add inserts title. Adding an existing title is a no-op.
// Returns true if the title was new.
func (s *RatedSet) Add(title string) bool {
	title = strings.TrimSpace(title)
	if title == "" {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]struct{})
	}
	if _, ok := s.index[title]; ok {
		return false
	}
	s.index[title] = struct{}{}
	s.titles = append(s.titles, title)
	return true
}

// Union adds every title in titles.
func (s *RatedSet) Union(titles []string) {
	for _, t := range titles {
		s.Add(t)
	}
}

// Contains reports whether title has been rated.
func (s *RatedSet) Contains(title string) bool {
	_, ok := s.index[strings.TrimSpace(title)]
	return ok
}

// Len returns the number of titles.
func (s *RatedSet) Len() int {
	return len(s.titles)
}

// Titles returns a copy of the titles in insertion order.
func (s *RatedSet) Titles() []string {
	out := make([]string, len(s.titles))
	copy(out, s.titles)
	return out
}

// Clone returns an independent copy.
func (s *RatedSet) Clone() *RatedSet {
	return NewRatedSet(s.titles...)
}

// MarshalJSON encodes the set as a JSON array of titles.
func (s *RatedSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Titles())
}
