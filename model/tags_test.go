package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		expect  Classification
	}{
		{
			name:    "not json",
			payload: "not valid json",
			expect:  Classification{},
		},
		{
			name:    "vegan with gluten",
			payload: `["vegan","gluten"]`,
			expect:  Classification{IsVegetarian: true, HasGluten: true, HighProtein: false},
		},
		{
			name:    "vegetarian",
			payload: `["vegetarian"]`,
			expect:  Classification{IsVegetarian: true},
		},
		{
			name:    "protein only",
			payload: `["protein"]`,
			expect:  Classification{HighProtein: true},
		},
		{
			name:    "mixed case and whitespace",
			payload: `[" Gluten ", "PROTEIN"]`,
			expect:  Classification{HasGluten: true, HighProtein: true},
		},
		{
			name:    "string wrapped array",
			payload: `"[\"vegan\"]"`,
			expect:  Classification{IsVegetarian: true},
		},
		{
			name:    "empty payload",
			payload: "",
			expect:  Classification{},
		},
		{
			name:    "object instead of array",
			payload: `{"vegan": true}`,
			expect:  Classification{},
		},
		{
			name:    "truncated array",
			payload: `["vegan",`,
			expect:  Classification{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.expect, Classify(tt.payload))
			})
		})
	}
}

func TestParseTagsLeniently(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		tags    []string
		ok      bool
	}{
		{name: "array", payload: `["vegan","gluten"]`, tags: []string{"gluten", "vegan"}, ok: true},
		{name: "absent", payload: ``, tags: []string{}, ok: true},
		{name: "null", payload: `null`, tags: []string{}, ok: true},
		{name: "non-string elements skipped", payload: `["vegan", 3, null, ""]`, tags: []string{"vegan"}, ok: true},
		{name: "duplicates collapse", payload: `["Vegan","vegan"]`, tags: []string{"vegan"}, ok: true},
		{name: "malformed", payload: `[vegan]`, tags: []string{}, ok: false},
		{name: "wrapped malformed", payload: `"not a list"`, tags: []string{}, ok: false},
		{name: "number", payload: `42`, tags: []string{}, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, ok := ParseTagsLeniently([]byte(tt.payload))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.tags, tags.List())
		})
	}
}

func TestTagSet_Intersects(t *testing.T) {
	set := NewTagSet("vegan", "Gluten")

	assert.True(t, set.Intersects([]string{"protein", "vegan"}))
	assert.True(t, set.Intersects([]string{"GLUTEN"}))
	assert.False(t, set.Intersects([]string{"protein"}))
	assert.False(t, set.Intersects(nil))
}

func TestRatedSet_AddIsIdempotent(t *testing.T) {
	set := NewRatedSet("Soup")

	assert.False(t, set.Add("Soup"), "Existing title should not be re-added")
	assert.True(t, set.Add("Toast"))
	assert.False(t, set.Add(" "), "Blank titles are ignored")

	assert.Equal(t, []string{"Soup", "Toast"}, set.Titles())
	assert.True(t, set.Contains("Toast"))
	assert.False(t, set.Contains("Pie"))
}

func TestRatedSet_UnionAndClone(t *testing.T) {
	set := NewRatedSet()
	set.Union([]string{"A", "B", "A"})
	assert.Equal(t, 2, set.Len())

	clone := set.Clone()
	clone.Add("C")
	assert.Equal(t, 2, set.Len(), "Clone should not share storage")
	assert.Equal(t, 3, clone.Len())
}
