// Package menufeed imports a dining menu published as an RSS or Atom feed.
//
// Each feed item is one dish. Categories carry the dish's dietary tags,
// except categories prefixed "hall:", "period:" or "station:", which place
// the dish on the menu. The feed title names the dining hall for dishes
// that do not say otherwise.
package menufeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/robertmeta/dining-cli/model"
)

// Category prefixes that set scope fields instead of tags.
const (
	PrefixHall    = "hall:"
	PrefixPeriod  = "period:"
	PrefixStation = "station:"
)

// Menu is a parsed menu feed.
type Menu struct {
	Title string
	Items []model.FoodItem
}

// Fetcher handles fetching and parsing menu feeds. It is safe for
// concurrent use: every call gets its own gofeed.Parser, which keeps
// translator state.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a new Fetcher. A nil client uses http.DefaultClient.
func NewFetcher(client *http.Client) *Fetcher {
	return &Fetcher{
		client: client,
	}
}

func (f *Fetcher) newParser() *gofeed.Parser {
	parser := gofeed.NewParser()
	parser.UserAgent = "dining-cli"
	if f.client != nil {
		parser.Client = f.client
	}
	return parser
}

// Fetch retrieves and parses a menu feed from a URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Menu, error) {
	parsedFeed, err := f.newParser().ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch menu feed from %s: %w", url, err)
	}

	return convert(parsedFeed), nil
}

// Parse parses menu feed content from a string.
func (f *Fetcher) Parse(content string) (*Menu, error) {
	if content == "" {
		return nil, fmt.Errorf("menu feed content is empty")
	}

	parsedFeed, err := f.newParser().ParseString(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse menu feed: %w", err)
	}

	return convert(parsedFeed), nil
}

// convert converts a gofeed.Feed to a Menu. Items without a title are
// skipped, and only the first item with a given title is kept.
func convert(gf *gofeed.Feed) *Menu {
	menu := &Menu{
		Title: strings.TrimSpace(gf.Title),
		Items: []model.FoodItem{},
	}

	seen := make(map[string]struct{}, len(gf.Items))
	for _, item := range gf.Items {
		dish, ok := convertItem(item, menu.Title)
		if !ok {
			continue
		}
		if _, dup := seen[dish.Title]; dup {
			continue
		}
		seen[dish.Title] = struct{}{}
		menu.Items = append(menu.Items, dish)
	}

	return menu
}

// convertItem converts a gofeed.Item to a model.FoodItem.
func convertItem(item *gofeed.Item, hall string) (model.FoodItem, bool) {
	dish := model.FoodItem{
		Title:      strings.TrimSpace(item.Title),
		DiningHall: hall,
	}
	if dish.Title == "" {
		return model.FoodItem{}, false
	}

	// Prefer the short description over full content
	if item.Description != "" {
		dish.Description = strings.TrimSpace(item.Description)
	} else {
		dish.Description = strings.TrimSpace(item.Content)
	}

	var tags []string
	for _, category := range item.Categories {
		category = strings.TrimSpace(category)
		lower := strings.ToLower(category)
		switch {
		case strings.HasPrefix(lower, PrefixHall):
			dish.DiningHall = strings.TrimSpace(category[len(PrefixHall):])
		case strings.HasPrefix(lower, PrefixPeriod):
			dish.MealPeriod = strings.TrimSpace(category[len(PrefixPeriod):])
		case strings.HasPrefix(lower, PrefixStation):
			dish.Station = strings.TrimSpace(category[len(PrefixStation):])
		default:
			if tag := model.NormalizeTag(category); tag != "" {
				tags = append(tags, tag)
			}
		}
	}

	if len(tags) > 0 {
		labels, err := json.Marshal(tags)
		if err == nil {
			dish.Labels = labels
		}
	}

	return dish, true
}
