package view

import (
	"encoding/json"
	"testing"

	"github.com/robertmeta/dining-cli/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilters(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
		wantErr  bool
	}{
		{
			name:     "single filter",
			input:    "vegan",
			expected: []string{"vegan"},
		},
		{
			name:     "multiple filters sorted",
			input:    "protein,gluten",
			expected: []string{"gluten", "protein"},
		},
		{
			name:     "whitespace and case",
			input:    " Vegan , PROTEIN ",
			expected: []string{"protein", "vegan"},
		},
		{
			name:     "duplicates collapse",
			input:    "vegan,vegan",
			expected: []string{"vegan"},
		},
		{
			name:     "empty parts ignored",
			input:    ",vegan,,",
			expected: []string{"vegan"},
		},
		{
			name:    "unknown filter",
			input:   "vegan,keto",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseFilters(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, model.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestBuildScope(t *testing.T) {
	scope, err := BuildScope(" Hall A ", "Lunch", "", "vegan,gluten")
	require.NoError(t, err)
	assert.Equal(t, Scope{
		Hall:    "Hall A",
		Period:  "Lunch",
		Filters: []string{"gluten", "vegan"},
	}, scope)

	_, err = BuildScope("", "", "", "paleo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--filter")

	scope, err = BuildScope("", "", "", "")
	require.NoError(t, err)
	assert.Nil(t, scope.Filters)
}

func TestScope_Toggle(t *testing.T) {
	scope := Scope{Hall: "Hall A", Filters: []string{"gluten", "vegan"}}

	toggled, err := scope.Toggle("vegan", "Protein")
	require.NoError(t, err)
	assert.Equal(t, []string{"gluten", "protein"}, toggled.Filters)
	assert.Equal(t, "Hall A", toggled.Hall)
	assert.Equal(t, []string{"gluten", "vegan"}, scope.Filters, "Original scope is not modified")

	toggled, err = toggled.Toggle("gluten", "protein")
	require.NoError(t, err)
	assert.Nil(t, toggled.Filters)

	_, err = scope.Toggle("paleo")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
	assert.Contains(t, err.Error(), "--toggle")
}

func TestScope_Apply(t *testing.T) {
	scope := Scope{Hall: "Hall A", Period: "Lunch", Filters: []string{"gluten"}}
	assert.Equal(t,
		Project(testCatalog(), "Hall A", "Lunch", "", []string{"gluten"}),
		scope.Apply(testCatalog()))
}

func TestFilterSet(t *testing.T) {
	var fs FilterSet
	assert.False(t, fs.Has("vegan"))
	assert.Empty(t, fs.List())

	assert.True(t, fs.Toggle("vegan"))
	assert.True(t, fs.Toggle("Gluten"))
	assert.True(t, fs.Has("gluten"))
	assert.Equal(t, []string{"gluten", "vegan"}, fs.List())

	assert.False(t, fs.Toggle("vegan"))
	assert.False(t, fs.Has("vegan"))
	assert.Equal(t, 1, fs.Len())

	assert.False(t, fs.Toggle("  "))
	assert.Equal(t, []string{"gluten"}, NewFilterSet("gluten", "").List())
}

func TestNewCard(t *testing.T) {
	count := 3.0
	it := model.FoodItem{
		Title:         "Tomato Soup",
		Labels:        json.RawMessage(`["Vegan","protein"]`),
		NutritionInfo: json.RawMessage(`{"Calories": "120 kcal"}`),
		Rating:        13,
		RatingCount:   &count,
	}

	card := NewCard(it, true)
	assert.Equal(t, 4.3, card.AverageRating)
	assert.Equal(t, []string{"protein", "vegan"}, card.Tags)
	assert.Equal(t, model.Classification{IsVegetarian: true, HighProtein: true}, card.Classification)
	assert.Equal(t, map[string]float64{"calories": 120}, card.Nutrition)
	assert.True(t, card.Rated)
	assert.Equal(t, it, card.Item)
}

func TestCards(t *testing.T) {
	items := testCatalog()[:2]
	cards := Cards(items, func(title string) bool { return title == "Chicken Noodle" })
	require.Len(t, cards, 2)
	assert.False(t, cards[0].Rated)
	assert.True(t, cards[1].Rated)
	assert.Nil(t, cards[0].Nutrition)
	assert.Zero(t, cards[0].AverageRating)

	assert.False(t, Cards(items, nil)[1].Rated)
}
