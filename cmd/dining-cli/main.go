package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/robertmeta/dining-cli/api"
	"github.com/robertmeta/dining-cli/config"
	"github.com/robertmeta/dining-cli/identity"
	"github.com/robertmeta/dining-cli/model"
	"github.com/robertmeta/dining-cli/session"
	"github.com/robertmeta/dining-cli/store"
	"github.com/urfave/cli/v2"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
	ExitAuthError    = 4
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func scopeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "hall",
			Usage: "Dining hall (substring match)",
		},
		&cli.StringFlag{
			Name:    "period",
			Aliases: []string{"p"},
			Usage:   "Meal period, e.g. Breakfast, Lunch, Dinner (substring match)",
		},
		&cli.StringFlag{
			Name:    "station",
			Aliases: []string{"s"},
			Usage:   "Station (substring match)",
		},
		&cli.StringFlag{
			Name:    "filter",
			Aliases: []string{"f"},
			Usage:   "Dietary filters, comma separated: vegetarian, vegan, protein, gluten (gluten excludes)",
		},
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "dining-cli",
		Usage:   "A scriptable dining hall menu, rating and macro tracking client",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file (default: ~/.config/dining-cli/config.yaml)",
				EnvVars: []string{"DINING_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file with endpoint variables (default: .env)",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Database file path (default: ~/.config/dining-cli/dining-cli.db)",
			},
			&cli.StringFlag{
				Name:    "token",
				Usage:   "Bearer token to use instead of the stored identity",
				EnvVars: []string{"DINING_TOKEN"},
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: 30 * time.Second,
				Usage: "HTTP timeout per request",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Debug logging on stderr",
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Sign in with email and password, or store a bearer token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "email",
						Aliases: []string{"e"},
						Usage:   "Account email",
					},
					&cli.StringFlag{
						Name:    "password",
						Usage:   "Account password",
						EnvVars: []string{"DINING_PASSWORD"},
					},
					&cli.StringFlag{
						Name:  "bearer",
						Usage: "Store this bearer token instead of signing in",
					},
				},
				Action: login,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored identity",
				Action: logout,
			},
			{
				Name:   "whoami",
				Usage:  "Show the current identity",
				Action: whoami,
			},
			{
				Name:   "register",
				Usage:  "Create the backend record for the current identity",
				Action: register,
			},
			{
				Name:   "sync",
				Usage:  "Fetch the catalog and rating history into the local snapshot",
				Action: syncCatalog,
			},
			{
				Name:  "menu",
				Usage: "List visible food items",
				Flags: append(scopeFlags(),
					&cli.StringSliceFlag{
						Name:    "toggle",
						Aliases: []string{"t"},
						Usage:   "Flip a dietary filter on or off after --filter (repeatable)",
					},
					&cli.BoolFlag{
						Name:    "refresh",
						Aliases: []string{"r"},
						Usage:   "Sync before listing",
					},
				),
				Action: listMenu,
			},
			{
				Name:   "stations",
				Usage:  "List stations serving a hall and meal period",
				Flags:  scopeFlags()[:2],
				Action: listStations,
			},
			{
				Name:      "show",
				Usage:     "Show a food item",
				ArgsUsage: "<title>",
				Action:    showItem,
			},
			{
				Name:      "rate",
				Usage:     "Rate a food item from 1 to 5 stars",
				ArgsUsage: "<title> <stars>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "refetch",
						Usage: "Refresh the whole catalog after rating",
					},
				},
				Action: rateItem,
			},
			{
				Name:  "rated",
				Usage: "List rated food items",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "refresh",
						Aliases: []string{"r"},
						Usage:   "Fetch the rating history first",
					},
				},
				Action: listRated,
			},
			{
				Name:      "log",
				Usage:     "Log servings of a food item to the macro ledger",
				ArgsUsage: "<title> <servings>",
				Action:    logServing,
			},
			{
				Name:   "macros",
				Usage:  "Show the running macro totals",
				Action: showMacros,
			},
			{
				Name:   "reset-macros",
				Usage:  "Reset the running macro totals",
				Action: resetMacros,
			},
			{
				Name:      "import-feed",
				Usage:     "Replace the local snapshot with RSS/Atom menu feeds",
				ArgsUsage: "[url]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "Read the feed from a file instead of a URL",
					},
					&cli.StringFlag{
						Name:  "opml",
						Usage: "Import every hall feed listed in an OPML file",
					},
				},
				Action: importFeed,
			},
		},
	}
}

// runtime holds what one command invocation needs.
type runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *store.Store
	httpClient *http.Client

	// token overrides the stored identity when set
	token    string
	identity identity.Identity
	firebase *identity.Firebase
	stored   store.Credentials
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// setup loads configuration and opens the database.
func setup(c *cli.Context) (*runtime, error) {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := newLogger(c.App.ErrWriter, level)

	loader := config.NewLoader(logger)
	loader.ConfigPath = c.String("config")
	loader.EnvPath = c.String("env-file")
	cfg, err := loader.Load()
	if err != nil {
		return nil, cli.Exit(fmt.Sprintf("Failed to load config: %v", err), ExitUsageError)
	}
	if db := c.String("db"); db != "" {
		cfg.Store.Path = db
	}
	if !c.Bool("verbose") {
		if configured, err := config.ParseLevel(cfg.Log.Level); err == nil {
			logger = newLogger(c.App.ErrWriter, configured)
		}
	}

	s, err := getStore(cfg.Store.Path)
	if err != nil {
		return nil, cli.Exit(err.Error(), ExitDataError)
	}

	return &runtime{
		cfg:        cfg,
		logger:     logger,
		store:      s,
		httpClient: &http.Client{Timeout: c.Duration("timeout")},
		token:      c.String("token"),
	}, nil
}

func getStore(dbPath string) (*store.Store, error) {
	// Create directory if it doesn't exist
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return s, nil
}

// resolveIdentity picks the identity for this run: --token, then the stored
// record, then anonymous.
func (rt *runtime) resolveIdentity() error {
	if rt.identity != nil {
		return nil
	}

	if rt.token != "" {
		id, err := identity.NewStaticToken(rt.token)
		if err != nil {
			return err
		}
		rt.identity = id
		return nil
	}

	creds, err := rt.store.LoadCredentials()
	if errors.Is(err, store.ErrNoCredentials) {
		rt.identity = identity.Anonymous{}
		return nil
	}
	if err != nil {
		return err
	}
	rt.stored = creds

	switch creds.Kind {
	case store.KindToken:
		id, err := identity.NewStaticToken(creds.Secret)
		if err != nil {
			return err
		}
		rt.identity = id
	case store.KindFirebase:
		rt.firebase = identity.NewFirebase(rt.cfg.Firebase, rt.httpClient, &identity.Credentials{
			UID:          creds.UID,
			Email:        creds.Email,
			RefreshToken: creds.Secret,
		})
		rt.identity = rt.firebase
	default:
		return fmt.Errorf("unknown stored identity kind %q", creds.Kind)
	}
	return nil
}

// client returns a backend client for the resolved identity.
func (rt *runtime) client() (*api.Client, error) {
	if err := rt.resolveIdentity(); err != nil {
		return nil, err
	}
	return api.New(rt.cfg.Endpoints, rt.identity,
		api.WithHTTPClient(rt.httpClient),
		api.WithLogger(rt.logger),
	), nil
}

// session returns a session seeded from the local snapshot.
func (rt *runtime) session(opts ...session.Option) (*session.Session, error) {
	client, err := rt.client()
	if err != nil {
		return nil, err
	}

	items, err := rt.store.Catalog()
	if err != nil {
		return nil, err
	}
	rated, err := rt.store.RatedTitles(rt.identity.UID())
	if err != nil {
		return nil, err
	}

	opts = append([]session.Option{session.WithLogger(rt.logger)}, opts...)
	sess := session.New(client, opts...)
	sess.Restore(items, rated)
	sess.OnTotals(func(m model.MacroTotals) {
		rt.logger.Debug("Macro totals updated",
			slog.Float64("calories", m.Calories),
			slog.Float64("protein", m.Protein),
			slog.Float64("carbs", m.Carbs),
			slog.Float64("fat", m.Fat),
		)
	})
	return sess, nil
}

// Close persists a rotated or revoked Firebase refresh token and closes
// the database.
func (rt *runtime) Close() {
	if rt.firebase != nil {
		creds := rt.firebase.Credentials()
		switch {
		case creds == nil:
			rt.logger.Warn("Identity service signed the user out")
			if err := rt.store.ClearCredentials(); err != nil {
				rt.logger.Error("Failed to clear credentials", slog.String("error", err.Error()))
			}
		case creds.RefreshToken != rt.stored.Secret:
			rt.logger.Debug("Refresh token rotated")
			err := rt.store.SaveCredentials(store.Credentials{
				Kind:   store.KindFirebase,
				UID:    creds.UID,
				Email:  creds.Email,
				Secret: creds.RefreshToken,
			})
			if err != nil {
				rt.logger.Error("Failed to save credentials", slog.String("error", err.Error()))
			}
		}
	}
	rt.store.Close()
}

// exitCode maps an operation error to the tool's exit codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, identity.ErrUnauthenticated), errors.Is(err, identity.ErrSignInFailed):
		return ExitAuthError
	case errors.Is(err, model.ErrInvalidInput), errors.Is(err, api.ErrEndpointMissing):
		return ExitUsageError
	default:
		return ExitDataError
	}
}

func fail(action string, err error) error {
	return cli.Exit(fmt.Sprintf("Failed to %s: %v", action, err), exitCode(err))
}

func outputJSON(c *cli.Context, v interface{}) error {
	encoder := json.NewEncoder(c.App.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
