package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/robertmeta/dining-cli/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleItems() []model.FoodItem {
	count := 2.0
	return []model.FoodItem{
		{
			Title:         "Tomato Soup",
			DiningHall:    "Hall A",
			MealPeriod:    "Lunch",
			Station:       "SOUP",
			NutritionInfo: json.RawMessage(`{"calories":120}`),
			Labels:        json.RawMessage(`["vegan"]`),
			Rating:        8,
			RatingCount:   &count,
		},
		{
			Title:      "Pancakes",
			DiningHall: "Hall A",
			MealPeriod: "Breakfast",
			Station:    "GRIDDLE",
			Labels:     json.RawMessage(`"[\"vegetarian\",\"gluten\"]"`),
		},
		{
			Title:       "Omelette",
			Description: "Eggs, made to order",
			DiningHall:  "Hall B",
			MealPeriod:  "Breakfast",
		},
	}
}

func TestNewStore(t *testing.T) {
	// Test creating a new in-memory database
	s, err := New(":memory:")
	require.NoError(t, err)
	require.NotNil(t, s)
	defer s.Close()
}

func TestStore_ReplaceCatalog(t *testing.T) {
	s := newStore(t)

	// Empty store returns an empty snapshot
	items, err := s.Catalog()
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NotNil(t, items)

	err = s.ReplaceCatalog(sampleItems())
	require.NoError(t, err)

	items, err = s.Catalog()
	require.NoError(t, err)
	assert.Equal(t, sampleItems(), items, "Snapshot should round-trip in catalog order")

	// A second replace drops everything from the first
	err = s.ReplaceCatalog([]model.FoodItem{{Title: "Curry", DiningHall: "Hall C"}})
	require.NoError(t, err)

	items, err = s.Catalog()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Curry", items[0].Title)
}

func TestStore_CatalogFetchedAt(t *testing.T) {
	s := newStore(t)
	fixed := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	at, err := s.CatalogFetchedAt()
	require.NoError(t, err)
	assert.True(t, at.IsZero())

	require.NoError(t, s.ReplaceCatalog(sampleItems()))
	at, err = s.CatalogFetchedAt()
	require.NoError(t, err)
	assert.True(t, fixed.Equal(at))
}

func TestStore_PatchItem(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.ReplaceCatalog(sampleItems()))

	count := 3.0
	updated := sampleItems()[0]
	updated.Rating = 13
	updated.RatingCount = &count

	patched, err := s.PatchItem(updated)
	require.NoError(t, err)
	assert.True(t, patched)

	items, err := s.Catalog()
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, updated, items[0])
	assert.Equal(t, sampleItems()[1:], items[1:], "Siblings should be untouched")

	// Unknown title is a no-op
	patched, err = s.PatchItem(model.FoodItem{Title: "Curry"})
	require.NoError(t, err)
	assert.False(t, patched)

	items, err = s.Catalog()
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestStore_RatedTitles(t *testing.T) {
	s := newStore(t)

	titles, err := s.RatedTitles("u1")
	require.NoError(t, err)
	assert.Empty(t, titles)

	require.NoError(t, s.AddRated("u1", "Tomato Soup", "Pancakes"))
	require.NoError(t, s.AddRated("u1", "Tomato Soup", ""))
	require.NoError(t, s.AddRated("u2", "Omelette"))

	titles, err = s.RatedTitles("u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Tomato Soup", "Pancakes"}, titles)

	titles, err = s.RatedTitles("u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"Omelette"}, titles)
}

func TestStore_Credentials(t *testing.T) {
	s := newStore(t)

	_, err := s.LoadCredentials()
	assert.ErrorIs(t, err, ErrNoCredentials)

	saved := Credentials{
		Kind:    KindFirebase,
		UID:     "u1",
		Email:   "student@example.edu",
		Secret:  "refresh-1",
		SavedAt: time.Unix(1700000000, 0),
	}
	require.NoError(t, s.SaveCredentials(saved))

	got, err := s.LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, saved.Kind, got.Kind)
	assert.Equal(t, saved.UID, got.UID)
	assert.Equal(t, saved.Email, got.Email)
	assert.Equal(t, saved.Secret, got.Secret)
	assert.True(t, saved.SavedAt.Equal(got.SavedAt))

	// Saving again replaces the single record
	require.NoError(t, s.SaveCredentials(Credentials{Kind: KindToken, UID: "u2", Secret: "jwt"}))
	got, err = s.LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, KindToken, got.Kind)
	assert.Equal(t, "u2", got.UID)
	assert.Empty(t, got.Email)
	assert.False(t, got.SavedAt.IsZero())

	require.NoError(t, s.ClearCredentials())
	_, err = s.LoadCredentials()
	assert.ErrorIs(t, err, ErrNoCredentials)
}

func TestStore_SaveCredentialsRequiresFields(t *testing.T) {
	s := newStore(t)

	err := s.SaveCredentials(Credentials{Kind: KindToken, UID: "u1"})
	assert.Error(t, err, "Should error without a secret")

	err = s.SaveCredentials(Credentials{Kind: KindToken, Secret: "jwt"})
	assert.Error(t, err, "Should error without a uid")
}
