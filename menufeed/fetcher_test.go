package menufeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_ParseRSS2(t *testing.T) {
	// Read RSS 2.0 fixture
	data, err := os.ReadFile("../testdata/menu.xml")
	require.NoError(t, err)

	fetcher := NewFetcher(nil)
	menu, err := fetcher.Parse(string(data))
	require.NoError(t, err)

	assert.Equal(t, "The Eatery at Stetson East", menu.Title)

	// Duplicate and untitled dishes are dropped
	require.Len(t, menu.Items, 3)

	soup := menu.Items[0]
	assert.Equal(t, "Tomato Basil Soup", soup.Title)
	assert.Equal(t, "Slow simmered with fresh basil", soup.Description)
	assert.Equal(t, "The Eatery at Stetson East", soup.DiningHall, "Feed title is the default hall")
	assert.Equal(t, "Lunch", soup.MealPeriod)
	assert.Equal(t, "SOUP", soup.Station)
	assert.Equal(t, []string{"vegan"}, soup.Tags().List())
	assert.True(t, soup.Classification().IsVegetarian)

	chicken := menu.Items[1]
	assert.Equal(t, "GRILL", chicken.Station)
	assert.True(t, chicken.Classification().HighProtein)

	pancakes := menu.Items[2]
	assert.Equal(t, "International Village", pancakes.DiningHall)
	assert.Equal(t, "Breakfast", pancakes.MealPeriod)
	assert.Equal(t, []string{"gluten", "vegetarian"}, pancakes.Tags().List())
	assert.Nil(t, pancakes.RatingCount)
}

func TestFetcher_ParseAtom(t *testing.T) {
	// Read Atom fixture
	data, err := os.ReadFile("../testdata/menu.atom")
	require.NoError(t, err)

	fetcher := NewFetcher(nil)
	menu, err := fetcher.Parse(string(data))
	require.NoError(t, err)

	assert.Equal(t, "International Village", menu.Title)
	require.Len(t, menu.Items, 2)

	assert.Equal(t, "Chana Masala", menu.Items[0].Title)
	assert.Equal(t, "WORLD FLAVORS", menu.Items[0].Station)
	assert.Equal(t, []string{"protein", "vegan"}, menu.Items[0].Tags().List())

	assert.Equal(t, "Garlic Naan", menu.Items[1].Title)
	assert.Contains(t, menu.Items[1].Description, "Fresh from the tandoor")
	assert.True(t, menu.Items[1].Classification().HasGluten)
}

func TestFetcher_ParseInvalidFeed(t *testing.T) {
	fetcher := NewFetcher(nil)

	// Test with invalid XML
	_, err := fetcher.Parse("<invalid>xml</broken>")
	assert.Error(t, err, "Should error on invalid XML")

	// Test with empty string
	_, err = fetcher.Parse("")
	assert.Error(t, err, "Should error on empty string")

	// Test with non-feed XML
	_, err = fetcher.Parse("<?xml version='1.0'?><root><item>not a feed</item></root>")
	assert.Error(t, err, "Should error on non-feed XML")
}

func TestFetcher_HandlesBareItems(t *testing.T) {
	// Dish with no categories or description
	minimalRSS := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Minimal Hall</title>
    <item>
      <title>Plain Rice</title>
    </item>
  </channel>
</rss>`

	fetcher := NewFetcher(nil)
	menu, err := fetcher.Parse(minimalRSS)
	require.NoError(t, err)
	require.Len(t, menu.Items, 1)

	dish := menu.Items[0]
	assert.Equal(t, "Plain Rice", dish.Title)
	assert.Equal(t, "Minimal Hall", dish.DiningHall)
	assert.Empty(t, dish.Description)
	assert.Nil(t, dish.Labels)
	assert.Empty(t, dish.Tags())
}

func TestFetcher_Fetch(t *testing.T) {
	data, err := os.ReadFile("../testdata/menu.xml")
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write(data)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client())
	menu, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, menu.Items, 3)
}

func TestFetcher_FetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer server.Close()

	fetcher := NewFetcher(server.Client())
	_, err := fetcher.Fetch(context.Background(), server.URL)
	assert.Error(t, err, "Should error on non-2xx status")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fetcher.Fetch(ctx, server.URL)
	assert.Error(t, err, "Should error on cancelled context")

	_, err = fetcher.Fetch(context.Background(), "not-a-valid-url")
	assert.Error(t, err)
}
