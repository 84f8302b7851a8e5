package view

import (
	"math"

	"github.com/robertmeta/dining-cli/model"
)

// Card is the display form of one food item.
type Card struct {
	Item           model.FoodItem       `json:"item"`
	AverageRating  float64              `json:"average_rating"`
	Tags           []string             `json:"tags"`
	Classification model.Classification `json:"classification"`
	Nutrition      map[string]float64   `json:"nutrition,omitempty"`
	Rated          bool                 `json:"rated"`
}

// NewCard builds the card for item. The average is recomputed from the
// item every time and rounded to one decimal.
func NewCard(item model.FoodItem, rated bool) Card {
	tags := item.Tags()
	nutrition := item.Nutrition()
	if len(nutrition) == 0 {
		nutrition = nil
	}
	return Card{
		Item:           item,
		AverageRating:  math.Round(item.AverageRating()*10) / 10,
		Tags:           tags.List(),
		Classification: model.ClassifyTags(tags),
		Nutrition:      nutrition,
		Rated:          rated,
	}
}

// Cards builds cards for items. rated may be nil.
func Cards(items []model.FoodItem, rated func(title string) bool) []Card {
	cards := make([]Card, 0, len(items))
	for _, item := range items {
		cards = append(cards, NewCard(item, rated != nil && rated(item.Title)))
	}
	return cards
}
