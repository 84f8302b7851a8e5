package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(f float64) *float64 { return &f }

func TestFoodItem_Validation(t *testing.T) {
	tests := []struct {
		name    string
		item    FoodItem
		wantErr bool
	}{
		{
			name:    "valid item",
			item:    FoodItem{Title: "Tomato Soup", DiningHall: "Hall A"},
			wantErr: false,
		},
		{
			name:    "missing title",
			item:    FoodItem{DiningHall: "Hall A"},
			wantErr: true,
		},
		{
			name:    "blank title",
			item:    FoodItem{Title: "   "},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFoodItem_AverageRating(t *testing.T) {
	tests := []struct {
		name   string
		item   FoodItem
		expect float64
	}{
		{name: "no ratings", item: FoodItem{Rating: 0, RatingCount: ptr(0)}, expect: 0},
		{name: "absent count", item: FoodItem{Rating: 4}, expect: 4},
		{name: "single rating", item: FoodItem{Rating: 5, RatingCount: ptr(1)}, expect: 5},
		{name: "several ratings", item: FoodItem{Rating: 14, RatingCount: ptr(4)}, expect: 3.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expect, tt.item.AverageRating(), 1e-9)
		})
	}
}

func TestFoodItem_AverageRatingStaysInStarRange(t *testing.T) {
	// Every sequence of valid star submissions keeps the average in [0, 5].
	for count := 0; count <= 20; count++ {
		for _, star := range []float64{1, 3, 5} {
			item := FoodItem{Rating: star * float64(count), RatingCount: ptr(float64(count))}
			avg := item.AverageRating()
			assert.GreaterOrEqual(t, avg, 0.0)
			assert.LessOrEqual(t, avg, 5.0)
		}
	}
}

func TestFoodItem_AverageRatingLeavesCountUnchanged(t *testing.T) {
	item := FoodItem{Rating: 3}
	_ = item.AverageRating()
	assert.Nil(t, item.RatingCount, "Absent rating count should stay absent")
}

func TestFoodItem_UnmarshalCoercesNumbers(t *testing.T) {
	payload := `{
		"title": " Tomato Soup ",
		"dining_hall": "The Eatery at Stetson East",
		"meal_period": "Lunch",
		"table_caption": "SOUP",
		"portion_size": 8,
		"rating": "12",
		"rating_count": "3",
		"labels": "[\"vegan\"]",
		"nutritional_info": "{\"calories\": 120}",
		"averageRating": 4
	}`

	var item FoodItem
	require.NoError(t, json.Unmarshal([]byte(payload), &item))

	assert.Equal(t, "Tomato Soup", item.Title)
	assert.Equal(t, "8", item.PortionSize)
	assert.Equal(t, "SOUP", item.Station)
	assert.Equal(t, 12.0, item.Rating)
	require.NotNil(t, item.RatingCount)
	assert.Equal(t, 3.0, *item.RatingCount)
	assert.InDelta(t, 4.0, item.AverageRating(), 1e-9)
	assert.True(t, item.HasTag("vegan"))
	assert.Equal(t, 120.0, item.Nutrition()["calories"])
}

func TestFoodItem_UnmarshalLenientFields(t *testing.T) {
	tests := []struct {
		name        string
		payload     string
		rating      float64
		countAbsent bool
		tags        []string
	}{
		{
			name:        "missing rating fields",
			payload:     `{"title":"Toast"}`,
			rating:      0,
			countAbsent: true,
			tags:        []string{},
		},
		{
			name:        "null rating count",
			payload:     `{"title":"Toast","rating":5,"rating_count":null}`,
			rating:      5,
			countAbsent: true,
			tags:        []string{},
		},
		{
			name:        "garbage rating strings",
			payload:     `{"title":"Toast","rating":"lots","rating_count":"many"}`,
			rating:      0,
			countAbsent: true,
			tags:        []string{},
		},
		{
			name:        "tags field instead of labels",
			payload:     `{"title":"Toast","tags":["Gluten"]}`,
			countAbsent: true,
			tags:        []string{"gluten"},
		},
		{
			name:        "malformed labels",
			payload:     `{"title":"Toast","labels":"[vegan"}`,
			countAbsent: true,
			tags:        []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var item FoodItem
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &item))
			assert.Equal(t, tt.rating, item.Rating)
			assert.Equal(t, tt.countAbsent, item.RatingCount == nil)
			assert.Equal(t, tt.tags, item.Tags().List())
		})
	}
}

func TestFoodItem_ListFieldsJoin(t *testing.T) {
	var item FoodItem
	require.NoError(t, json.Unmarshal([]byte(`{"title":"Bowl","table_caption":["RICE STATION","HOMESTYLE"]}`), &item))
	assert.Equal(t, "RICE STATION, HOMESTYLE", item.Station)
}

func TestFoodItem_CloneIsIndependent(t *testing.T) {
	item := FoodItem{Title: "Toast", Labels: json.RawMessage(`["vegan"]`), RatingCount: ptr(2)}
	clone := item.Clone()

	clone.Labels[2] = 'X'
	*clone.RatingCount = 9

	assert.Equal(t, `["vegan"]`, string(item.Labels))
	assert.Equal(t, 2.0, *item.RatingCount)
}

func TestFoodItem_RoundTripKeepsWireNames(t *testing.T) {
	item := FoodItem{
		Title:      "Omelette",
		DiningHall: "Hall A",
		MealPeriod: "Breakfast",
		Station:    "HOMESTYLE",
		Labels:     json.RawMessage(`["protein"]`),
		Rating:     9,
	}

	data, err := json.Marshal(item)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"table_caption":"HOMESTYLE"`)
	assert.NotContains(t, string(data), "rating_count")

	var back FoodItem
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, item, back)
}
