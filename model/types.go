// Package model defines the core data structures for dining-cli.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidInput is returned when a user-supplied value is rejected before
// any request is made.
var ErrInvalidInput = errors.New("invalid input")

// FoodItem represents a single dish on the dining hall menu.
// Title is the key within a catalog snapshot.
type FoodItem struct {
	Title         string          `json:"title"`
	Description   string          `json:"description,omitempty"`
	PortionSize   string          `json:"portion_size,omitempty"`
	Ingredients   string          `json:"ingredients,omitempty"`
	DiningHall    string          `json:"dining_hall"`
	MealPeriod    string          `json:"meal_period"`
	Station       string          `json:"table_caption"`
	NutritionInfo json.RawMessage `json:"nutritional_info,omitempty"`
	Labels        json.RawMessage `json:"labels,omitempty"`
	Rating        float64         `json:"rating"`
	RatingCount   *float64        `json:"rating_count,omitempty"`
}

// wireFoodItem is the lenient decoding shape of a FoodItem.
type wireFoodItem struct {
	Title         looseString     `json:"title"`
	Description   looseString     `json:"description"`
	PortionSize   looseString     `json:"portion_size"`
	Ingredients   looseString     `json:"ingredients"`
	DiningHall    looseString     `json:"dining_hall"`
	MealPeriod    looseString     `json:"meal_period"`
	Station       looseString     `json:"table_caption"`
	NutritionInfo json.RawMessage `json:"nutritional_info"`
	Labels        json.RawMessage `json:"labels"`
	Tags          json.RawMessage `json:"tags"`
	Rating        *looseNumber    `json:"rating"`
	RatingCount   *looseNumber    `json:"rating_count"`
}

// UnmarshalJSON decodes a food item as the backend sends it. Rating fields
// may arrive as numbers or numeric strings, and the tag payload may be
// named either "labels" or "tags".
func (f *FoodItem) UnmarshalJSON(data []byte) error {
	var w wireFoodItem
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("failed to decode food item: %w", err)
	}

	item := FoodItem{
		Title:         strings.TrimSpace(string(w.Title)),
		Description:   string(w.Description),
		PortionSize:   string(w.PortionSize),
		Ingredients:   string(w.Ingredients),
		DiningHall:    string(w.DiningHall),
		MealPeriod:    string(w.MealPeriod),
		Station:       string(w.Station),
		NutritionInfo: nonNull(w.NutritionInfo),
		Labels:        nonNull(w.Labels),
	}
	if item.Labels == nil {
		item.Labels = nonNull(w.Tags)
	}
	if w.Rating != nil && w.Rating.ok {
		item.Rating = w.Rating.value
	}
	if w.RatingCount != nil && w.RatingCount.ok {
		count := w.RatingCount.value
		item.RatingCount = &count
	}

	*f = item
	return nil
}

// Validate checks if the item has required fields.
func (f *FoodItem) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return errors.New("food item title is required")
	}
	return nil
}

// AverageRating returns rating / max(ratingCount, 1). A missing rating count
// counts as zero here only; the stored value is left alone.
func (f *FoodItem) AverageRating() float64 {
	count := 0.0
	if f.RatingCount != nil {
		count = *f.RatingCount
	}
	return f.Rating / math.Max(count, 1)
}

// Tags returns the parsed tag set. Malformed payloads yield an empty set.
func (f *FoodItem) Tags() TagSet {
	tags, _ := ParseTagsLeniently(f.Labels)
	return tags
}

// HasTag checks if the item carries the specified tag.
func (f *FoodItem) HasTag(tag string) bool {
	return f.Tags().Has(tag)
}

// Classification returns the dietary flags derived from the item's tags.
func (f *FoodItem) Classification() Classification {
	return ClassifyTags(f.Tags())
}

// Nutrition returns the parsed nutritional info, empty when malformed.
func (f *FoodItem) Nutrition() map[string]float64 {
	info, _ := ParseNutrition(f.NutritionInfo)
	return info
}

// Clone returns a deep copy of the item.
func (f *FoodItem) Clone() FoodItem {
	out := *f
	out.NutritionInfo = cloneRaw(f.NutritionInfo)
	out.Labels = cloneRaw(f.Labels)
	if f.RatingCount != nil {
		count := *f.RatingCount
		out.RatingCount = &count
	}
	return out
}

// CloneItems deep-copies a slice of items.
func CloneItems(items []FoodItem) []FoodItem {
	out := make([]FoodItem, len(items))
	for i := range items {
		out[i] = items[i].Clone()
	}
	return out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func nonNull(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return cloneRaw(trimmed)
}

// looseString accepts strings, scalars and lists of scalars.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = looseString(scalarText(v))
	return nil
}

func scalarText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if text := scalarText(e); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, ", ")
	default:
		return ""
	}
}

// looseNumber accepts numbers and numeric strings. Anything else decodes
// as not-ok instead of failing the whole item.
type looseNumber struct {
	value float64
	ok    bool
}

func (n *looseNumber) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		n.value, n.ok = t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			n.value, n.ok = f, true
		}
	}
	return nil
}
