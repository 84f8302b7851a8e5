package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/robertmeta/dining-cli/api"
	"github.com/robertmeta/dining-cli/identity"
	"github.com/robertmeta/dining-cli/menufeed"
	"github.com/robertmeta/dining-cli/session"
	"github.com/robertmeta/dining-cli/store"
	"github.com/robertmeta/dining-cli/view"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func login(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	var saved store.Credentials
	if bearer := c.String("bearer"); bearer != "" {
		id, err := identity.NewStaticToken(bearer)
		if err != nil {
			return fail("read token", err)
		}
		if !id.Present() {
			return cli.Exit("Token has expired", ExitAuthError)
		}
		saved = store.Credentials{Kind: store.KindToken, UID: id.UID(), Secret: bearer}
		rt.identity = id
	} else {
		email, password := c.String("email"), c.String("password")
		if email == "" || password == "" {
			return cli.Exit("Usage: dining-cli login --email <email> --password <password> | --bearer <token>", ExitUsageError)
		}
		if rt.cfg.Firebase.APIKey == "" {
			return cli.Exit("firebase.api_key is not configured", ExitUsageError)
		}

		fb := identity.NewFirebase(rt.cfg.Firebase, rt.httpClient, nil)
		creds, err := fb.SignIn(c.Context, email, password)
		if err != nil {
			return fail("sign in", err)
		}
		saved = store.Credentials{Kind: store.KindFirebase, UID: creds.UID, Email: creds.Email, Secret: creds.RefreshToken}
		rt.identity = fb
		rt.firebase = fb
	}

	if err := rt.store.SaveCredentials(saved); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to save credentials: %v", err), ExitDataError)
	}
	rt.stored = saved

	// Registration is best effort; the account may already exist.
	registered := false
	client, err := rt.client()
	if err == nil {
		err = client.RegisterIdentity(c.Context)
	}
	if err != nil {
		rt.logger.Warn("Failed to register identity", slog.String("error", err.Error()))
	} else {
		registered = true
	}

	return outputJSON(c, map[string]interface{}{
		"success":    true,
		"uid":        saved.UID,
		"email":      saved.Email,
		"kind":       saved.Kind,
		"registered": registered,
	})
}

func logout(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.store.ClearCredentials(); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to clear credentials: %v", err), ExitDataError)
	}

	return outputJSON(c, map[string]interface{}{
		"success": true,
	})
}

func whoami(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.resolveIdentity(); err != nil {
		return fail("resolve identity", err)
	}

	out := map[string]interface{}{
		"present": rt.identity.Present(),
		"uid":     rt.identity.UID(),
	}
	if missing := rt.cfg.Endpoints.Missing(); len(missing) > 0 {
		out["missing_endpoints"] = missing
	}
	switch id := rt.identity.(type) {
	case *identity.StaticToken:
		out["kind"] = store.KindToken
		if exp := id.ExpiresAt(); !exp.IsZero() {
			out["expires_at"] = exp
		}
	case *identity.Firebase:
		out["kind"] = store.KindFirebase
		out["email"] = rt.stored.Email
	}

	return outputJSON(c, out)
}

func register(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	client, err := rt.client()
	if err != nil {
		return fail("resolve identity", err)
	}
	if err := client.RegisterIdentity(c.Context); err != nil {
		return fail("register", err)
	}

	return outputJSON(c, map[string]interface{}{
		"success": true,
		"uid":     rt.identity.UID(),
	})
}

// sync fetches the catalog and the rating history concurrently and stores
// both. A missing history endpoint only costs the history.
func (rt *runtime) sync(ctx context.Context) (*session.Session, error) {
	sess, err := rt.session()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := sess.RefreshCatalog(ctx)
		return err
	})
	g.Go(func() error {
		err := sess.LoadRatedHistory(ctx)
		if errors.Is(err, api.ErrEndpointMissing) {
			rt.logger.Warn("Skipping rating history", slog.String("error", err.Error()))
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := rt.store.ReplaceCatalog(sess.Items()); err != nil {
		return nil, err
	}
	if err := rt.store.AddRated(rt.identity.UID(), sess.Rated()...); err != nil {
		return nil, err
	}
	rt.logger.Info("Synced catalog", slog.Int("items", len(sess.Items())), slog.Int("rated", len(sess.Rated())))
	return sess, nil
}

func syncCatalog(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	sess, err := rt.sync(c.Context)
	if err != nil {
		return fail("sync", err)
	}

	items := sess.Items()
	return outputJSON(c, map[string]interface{}{
		"success":  true,
		"items":    len(items),
		"rated":    len(sess.Rated()),
		"stations": view.Stations(items, "", ""),
	})
}

func listMenu(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	scope, err := view.BuildScope(c.String("hall"), c.String("period"), c.String("station"), c.String("filter"))
	if err == nil {
		scope, err = scope.Toggle(c.StringSlice("toggle")...)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid menu options: %v", err), ExitUsageError)
	}

	if c.Bool("refresh") {
		if _, err := rt.sync(c.Context); err != nil {
			return fail("sync", err)
		}
	}

	items, err := rt.store.Catalog()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to read snapshot: %v", err), ExitDataError)
	}
	fetchedAt, err := rt.store.CatalogFetchedAt()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to read snapshot: %v", err), ExitDataError)
	}
	rated, err := rt.ratedLookup()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to read rated items: %v", err), ExitDataError)
	}

	visible := scope.Apply(items)
	out := map[string]interface{}{
		"scope": scope,
		"count": len(visible),
		"items": view.Cards(visible, rated),
	}
	if !fetchedAt.IsZero() {
		out["fetched_at"] = fetchedAt
	}
	return outputJSON(c, out)
}

// ratedLookup returns a membership test over the stored rated titles of
// the current identity. Anonymous users have rated nothing.
func (rt *runtime) ratedLookup() (func(string) bool, error) {
	if err := rt.resolveIdentity(); err != nil {
		return nil, err
	}
	uid := rt.identity.UID()
	if uid == "" {
		return nil, nil
	}
	titles, err := rt.store.RatedTitles(uid)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		set[t] = struct{}{}
	}
	return func(title string) bool {
		_, ok := set[title]
		return ok
	}, nil
}

func listStations(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	items, err := rt.store.Catalog()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to read snapshot: %v", err), ExitDataError)
	}

	return outputJSON(c, map[string]interface{}{
		"stations": view.Stations(items, c.String("hall"), c.String("period")),
	})
}

func showItem(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("Usage: dining-cli show <title>", ExitUsageError)
	}
	title := strings.TrimSpace(c.Args().Get(0))

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	items, err := rt.store.Catalog()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to read snapshot: %v", err), ExitDataError)
	}
	rated, err := rt.ratedLookup()
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to read rated items: %v", err), ExitDataError)
	}

	for _, item := range items {
		if item.Title == title {
			return outputJSON(c, view.NewCard(item, rated != nil && rated(item.Title)))
		}
	}
	return cli.Exit(fmt.Sprintf("Food item %q not found (run sync first)", title), ExitDataError)
}

func rateItem(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("Usage: dining-cli rate <title> <stars>", ExitUsageError)
	}
	title := strings.TrimSpace(c.Args().Get(0))
	stars, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid star rating %q", c.Args().Get(1)), ExitUsageError)
	}

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	refetch := c.Bool("refetch") || rt.cfg.Session.RefetchAfterRate
	var opts []session.Option
	if refetch {
		opts = append(opts, session.WithRefetchAfterRate())
	}
	sess, err := rt.session(opts...)
	if err != nil {
		return fail("open session", err)
	}

	updated, err := sess.Rate(c.Context, title, stars)
	sess.Wait()
	sess.Close()
	if err != nil {
		return fail("rate", err)
	}

	if refetch {
		err = rt.store.ReplaceCatalog(sess.Items())
	} else {
		_, err = rt.store.PatchItem(updated)
	}
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to update snapshot: %v", err), ExitDataError)
	}
	if err := rt.store.AddRated(rt.identity.UID(), title); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to record rating: %v", err), ExitDataError)
	}

	return outputJSON(c, view.NewCard(updated, true))
}

func listRated(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.resolveIdentity(); err != nil {
		return fail("resolve identity", err)
	}
	if !rt.identity.Present() {
		return fail("list rated items", identity.ErrUnauthenticated)
	}

	if c.Bool("refresh") {
		sess, err := rt.session()
		if err != nil {
			return fail("open session", err)
		}
		err = sess.LoadRatedHistory(c.Context)
		sess.Close()
		if err != nil {
			return fail("fetch rating history", err)
		}
		if err := rt.store.AddRated(rt.identity.UID(), sess.Rated()...); err != nil {
			return cli.Exit(fmt.Sprintf("Failed to record ratings: %v", err), ExitDataError)
		}
	}

	titles, err := rt.store.RatedTitles(rt.identity.UID())
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to read rated items: %v", err), ExitDataError)
	}

	return outputJSON(c, map[string]interface{}{
		"count": len(titles),
		"rated": titles,
	})
}

func logServing(c *cli.Context) error {
	if c.NArg() < 2 {
		return cli.Exit("Usage: dining-cli log <title> <servings>", ExitUsageError)
	}
	title := strings.TrimSpace(c.Args().Get(0))

	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	sess, err := rt.session()
	if err != nil {
		return fail("open session", err)
	}
	defer sess.Close()

	totals, err := sess.LogServing(c.Context, title, c.Args().Get(1))
	if errors.Is(err, session.ErrUnknownItem) {
		return cli.Exit(fmt.Sprintf("Food item %q not found (run sync first)", title), ExitDataError)
	}
	if err != nil {
		return fail("log serving", err)
	}

	return outputJSON(c, map[string]interface{}{
		"success": true,
		"title":   title,
		"macros":  totals,
	})
}

func showMacros(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	sess, err := rt.session()
	if err != nil {
		return fail("open session", err)
	}
	defer sess.Close()

	totals, err := sess.RefreshTotals(c.Context)
	if err != nil {
		return fail("fetch macro totals", err)
	}

	return outputJSON(c, map[string]interface{}{
		"macros": totals,
	})
}

func resetMacros(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	sess, err := rt.session()
	if err != nil {
		return fail("open session", err)
	}
	defer sess.Close()

	totals, err := sess.ResetTotals(c.Context)
	if err != nil {
		return fail("reset macro totals", err)
	}

	return outputJSON(c, map[string]interface{}{
		"success": true,
		"macros":  totals,
	})
}

func importFeed(c *cli.Context) error {
	rt, err := setup(c)
	if err != nil {
		return err
	}
	defer rt.Close()

	fetcher := menufeed.NewFetcher(rt.httpClient)

	var menu *menufeed.Menu
	source := c.String("file")
	if directory := c.String("opml"); directory != "" {
		source = directory
		f, err := os.Open(directory)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to open OPML file: %v", err), ExitDataError)
		}
		sources, err := menufeed.ParseDirectory(f)
		f.Close()
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
		if len(sources) == 0 {
			return cli.Exit("OPML file lists no menu feeds", ExitDataError)
		}
		menu, err = fetcher.FetchDirectory(c.Context, sources)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
		rt.logger.Debug("Fetched menu directory", slog.Int("feeds", len(sources)))
	} else if source != "" {
		data, err := os.ReadFile(source)
		if err != nil {
			return cli.Exit(fmt.Sprintf("Failed to read feed file: %v", err), ExitDataError)
		}
		menu, err = fetcher.Parse(string(data))
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
	} else {
		source = c.Args().Get(0)
		if source == "" {
			source = rt.cfg.MenuFeed.URL
		}
		if source == "" {
			return cli.Exit("Usage: dining-cli import-feed <url> | --file <path> | --opml <path> (or set menu_feed.url)", ExitUsageError)
		}
		menu, err = fetcher.Fetch(c.Context, source)
		if err != nil {
			return cli.Exit(err.Error(), ExitDataError)
		}
	}

	if err := rt.store.ReplaceCatalog(menu.Items); err != nil {
		return cli.Exit(fmt.Sprintf("Failed to store menu: %v", err), ExitDataError)
	}
	rt.logger.Info("Imported menu feed", slog.String("source", source), slog.Int("items", len(menu.Items)))

	return outputJSON(c, map[string]interface{}{
		"success":  true,
		"title":    menu.Title,
		"imported": len(menu.Items),
		"stations": view.Stations(menu.Items, "", ""),
	})
}
