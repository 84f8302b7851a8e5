package menufeed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/robertmeta/dining-cli/model"
	"golang.org/x/sync/errgroup"
)

// maxParallelFetches bounds concurrent feed downloads in FetchDirectory.
const maxParallelFetches = 8

// Source is one dining hall's menu feed listed in an OPML directory.
type Source struct {
	Hall string
	URL  string
}

type opmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Body    struct {
		Outlines []outline `xml:"outline"`
	} `xml:"body"`
}

type outline struct {
	Text     string    `xml:"text,attr,omitempty"`
	Title    string    `xml:"title,attr,omitempty"`
	XMLUrl   string    `xml:"xmlUrl,attr,omitempty"`
	Outlines []outline `xml:"outline,omitempty"`
}

// ParseDirectory reads an OPML document listing one menu feed per dining
// hall. A feed outline's title (or text) names its hall; feeds without one
// inherit the text of the enclosing outline.
func ParseDirectory(r io.Reader) ([]Source, error) {
	var doc opmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	return collectSources(doc.Body.Outlines, ""), nil
}

// collectSources recursively extracts feed outlines.
func collectSources(outlines []outline, parentHall string) []Source {
	var sources []Source

	for _, o := range outlines {
		if o.XMLUrl != "" {
			hall := strings.TrimSpace(o.Title)
			if hall == "" {
				hall = strings.TrimSpace(o.Text)
			}
			if hall == "" {
				hall = parentHall
			}
			sources = append(sources, Source{Hall: hall, URL: strings.TrimSpace(o.XMLUrl)})
		}

		if len(o.Outlines) > 0 {
			childHall := strings.TrimSpace(o.Text)
			if childHall == "" {
				childHall = parentHall
			}
			sources = append(sources, collectSources(o.Outlines, childHall)...)
		}
	}

	return sources
}

// FetchDirectory fetches every source concurrently and merges the menus in
// source order. Dishes that did not name a hall take the source's hall. A
// title already seen in an earlier source is skipped. Any failed fetch
// fails the whole import.
func (f *Fetcher) FetchDirectory(ctx context.Context, sources []Source) (*Menu, error) {
	menus := make([]*Menu, len(sources))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFetches)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			menu, err := f.Fetch(ctx, src.URL)
			if err != nil {
				return err
			}
			menus[i] = menu
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &Menu{Items: []model.FoodItem{}}
	seen := make(map[string]struct{})
	for i, menu := range menus {
		hall := sources[i].Hall
		for _, dish := range menu.Items {
			if _, dup := seen[dish.Title]; dup {
				continue
			}
			seen[dish.Title] = struct{}{}
			if hall != "" && dish.DiningHall == menu.Title {
				dish.DiningHall = hall
			}
			merged.Items = append(merged.Items, dish)
		}
	}
	return merged, nil
}
