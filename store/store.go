// Package store provides the local SQLite snapshot for dining-cli: the last
// fetched catalog, the rated titles per identity and the signed-in identity
// record. Macro totals are never stored.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robertmeta/dining-cli/model"
	_ "modernc.org/sqlite"
)

// ErrNoCredentials is returned by LoadCredentials when nobody is signed in.
var ErrNoCredentials = errors.New("no stored credentials")

// Credential kinds.
const (
	KindFirebase = "firebase"
	KindToken    = "token"
)

// Credentials is the stored identity record. Secret holds the refresh token
// for KindFirebase and the bearer token for KindToken.
type Credentials struct {
	Kind    string
	UID     string
	Email   string
	Secret  string
	SavedAt time.Time
}

// Store manages the SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Store with the given database path.
// Use ":memory:" for an in-memory database (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}

	// Initialize schema
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema creates the database tables and indexes.
func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS food_items (
		title TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		payload TEXT NOT NULL,
		fetched_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS rated_items (
		uid TEXT NOT NULL,
		title TEXT NOT NULL,
		rated_at INTEGER NOT NULL,
		PRIMARY KEY (uid, title)
	);

	CREATE TABLE IF NOT EXISTS identity (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		kind TEXT NOT NULL,
		uid TEXT NOT NULL,
		email TEXT,
		secret TEXT NOT NULL,
		saved_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_food_items_position ON food_items(position);
	CREATE INDEX IF NOT EXISTS idx_rated_items_rated_at ON rated_items(uid, rated_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// ReplaceCatalog replaces the stored snapshot with items in one
// transaction. Catalog order is preserved.
func (s *Store) ReplaceCatalog(items []model.FoodItem) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM food_items"); err != nil {
		return fmt.Errorf("failed to clear catalog: %w", err)
	}

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO food_items (title, position, payload, fetched_at) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	fetchedAt := s.now().Unix()
	for i := range items {
		payload, err := json.Marshal(&items[i])
		if err != nil {
			return fmt.Errorf("failed to encode %q: %w", items[i].Title, err)
		}
		if _, err := stmt.Exec(items[i].Title, i, string(payload), fetchedAt); err != nil {
			return fmt.Errorf("failed to insert %q: %w", items[i].Title, err)
		}
	}

	return tx.Commit()
}

// PatchItem overwrites the stored item with the same title. It reports
// whether an item was replaced; a missing title is a no-op.
func (s *Store) PatchItem(item model.FoodItem) (bool, error) {
	payload, err := json.Marshal(&item)
	if err != nil {
		return false, fmt.Errorf("failed to encode %q: %w", item.Title, err)
	}

	result, err := s.db.Exec("UPDATE food_items SET payload = ? WHERE title = ?", string(payload), item.Title)
	if err != nil {
		return false, fmt.Errorf("failed to patch %q: %w", item.Title, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// Catalog returns the stored snapshot in catalog order.
func (s *Store) Catalog() ([]model.FoodItem, error) {
	rows, err := s.db.Query("SELECT payload FROM food_items ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	items := []model.FoodItem{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan food item: %w", err)
		}

		var item model.FoodItem
		if err := json.Unmarshal([]byte(payload), &item); err != nil {
			return nil, fmt.Errorf("failed to decode food item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// CatalogFetchedAt returns when the snapshot was stored. It returns the
// zero time when there is no snapshot.
func (s *Store) CatalogFetchedAt() (time.Time, error) {
	var fetchedAt sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(fetched_at) FROM food_items").Scan(&fetchedAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get snapshot time: %w", err)
	}
	if !fetchedAt.Valid {
		return time.Time{}, nil
	}
	return unixToTime(fetchedAt.Int64), nil
}

// AddRated records that uid rated titles. Already recorded titles are kept
// as they are.
func (s *Store) AddRated(uid string, titles ...string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	ratedAt := s.now().UnixNano()
	for i, title := range titles {
		if title == "" {
			continue
		}
		_, err := tx.Exec(
			"INSERT OR IGNORE INTO rated_items (uid, title, rated_at) VALUES (?, ?, ?)",
			uid, title, ratedAt+int64(i),
		)
		if err != nil {
			return fmt.Errorf("failed to record rating of %q: %w", title, err)
		}
	}

	return tx.Commit()
}

// RatedTitles returns the titles uid has rated, oldest first.
func (s *Store) RatedTitles(uid string) ([]string, error) {
	rows, err := s.db.Query("SELECT title FROM rated_items WHERE uid = ? ORDER BY rated_at, title", uid)
	if err != nil {
		return nil, fmt.Errorf("failed to query rated items: %w", err)
	}
	defer rows.Close()

	titles := []string{}
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return nil, fmt.Errorf("failed to scan rated item: %w", err)
		}
		titles = append(titles, title)
	}

	return titles, rows.Err()
}

// SaveCredentials stores c as the signed-in identity, replacing any
// previous record.
func (s *Store) SaveCredentials(c Credentials) error {
	if c.Kind == "" || c.UID == "" || c.Secret == "" {
		return errors.New("credentials need a kind, uid and secret")
	}
	if c.SavedAt.IsZero() {
		c.SavedAt = s.now()
	}

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO identity (id, kind, uid, email, secret, saved_at) VALUES (1, ?, ?, ?, ?, ?)",
		c.Kind, c.UID, c.Email, c.Secret, c.SavedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	return nil
}

// LoadCredentials returns the signed-in identity, or ErrNoCredentials.
func (s *Store) LoadCredentials() (Credentials, error) {
	var c Credentials
	var email sql.NullString
	var savedAt int64

	err := s.db.QueryRow(
		"SELECT kind, uid, email, secret, saved_at FROM identity WHERE id = 1",
	).Scan(&c.Kind, &c.UID, &email, &c.Secret, &savedAt)

	if err == sql.ErrNoRows {
		return Credentials{}, ErrNoCredentials
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to load credentials: %w", err)
	}

	c.Email = email.String
	c.SavedAt = unixToTime(savedAt)
	return c, nil
}

// ClearCredentials removes the signed-in identity.
func (s *Store) ClearCredentials() error {
	_, err := s.db.Exec("DELETE FROM identity")
	return err
}

// Helper to convert Unix timestamp to time.Time
func unixToTime(unix int64) time.Time {
	return time.Unix(unix, 0)
}
