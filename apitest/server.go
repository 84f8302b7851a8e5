// Package apitest provides an in-process fake of the dining backend for
// tests. It keeps a catalog, per-user rating history and macro totals, and
// can be told to reject any route.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/robertmeta/dining-cli/api"
	"github.com/robertmeta/dining-cli/identity"
	"github.com/robertmeta/dining-cli/model"
)

// Route names, usable with Fail and Calls.
const (
	RouteCatalog      = "catalog"
	RouteRate         = "rate"
	RouteLogMacros    = "log_macros"
	RouteFetchMacros  = "fetch_macros"
	RouteResetMacros  = "reset_macros"
	RouteRatedHistory = "rated_history"
	RouteRegisterUser = "register_user"
)

const signingKey = "apitest-secret"

type failure struct {
	status int
	body   string
}

// Server is a fake dining backend.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	catalog  []model.FoodItem
	totals   map[string]model.MacroTotals
	rated    map[string][]string
	users    map[string]bool
	failures map[string]failure
	calls    map[string]int
	bodies   map[string][]byte
	// resetTo overrides the totals a reset leaves behind.
	resetTo *model.MacroTotals
}

// NewServer starts a fake backend that is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		totals:   make(map[string]model.MacroTotals),
		rated:    make(map[string][]string),
		users:    make(map[string]bool),
		failures: make(map[string]failure),
		calls:    make(map[string]int),
		bodies:   make(map[string][]byte),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/getCurrentFoodItems", s.route(RouteCatalog, s.handleCatalog)).Methods(http.MethodGet)
	r.HandleFunc("/api/rate", s.route(RouteRate, s.handleRate)).Methods(http.MethodPost)
	r.HandleFunc("/api/macros/log", s.route(RouteLogMacros, s.handleLogMacros)).Methods(http.MethodPost)
	r.HandleFunc("/api/macros", s.route(RouteFetchMacros, s.handleFetchMacros)).Methods(http.MethodGet)
	r.HandleFunc("/api/macros/reset", s.route(RouteResetMacros, s.handleResetMacros)).Methods(http.MethodPost)
	r.HandleFunc("/api/rated", s.route(RouteRatedHistory, s.handleRatedHistory)).Methods(http.MethodGet)
	r.HandleFunc("/api/users", s.route(RouteRegisterUser, s.handleRegisterUser)).Methods(http.MethodPost)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Endpoints returns the endpoint configuration pointing at this server.
func (s *Server) Endpoints() api.Endpoints {
	return api.Endpoints{
		Catalog:      s.URL + "/api/getCurrentFoodItems",
		Rate:         s.URL + "/api/rate",
		LogMacros:    s.URL + "/api/macros/log",
		FetchMacros:  s.URL + "/api/macros",
		ResetMacros:  s.URL + "/api/macros/reset",
		RatedHistory: s.URL + "/api/rated",
		RegisterUser: s.URL + "/api/users",
	}
}

// Token signs a bearer JWT for uid that this server accepts.
func Token(t testing.TB, uid string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": uid,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(signingKey))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

// Identity returns a present identity for uid.
func Identity(t testing.TB, uid string) *identity.StaticToken {
	t.Helper()
	id, err := identity.NewStaticToken(Token(t, uid))
	if err != nil {
		t.Fatalf("failed to build identity: %v", err)
	}
	return id
}

// SetCatalog replaces the server's catalog.
func (s *Server) SetCatalog(items ...model.FoodItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = model.CloneItems(items)
}

// Catalog returns a copy of the server's catalog.
func (s *Server) Catalog() []model.FoodItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneItems(s.catalog)
}

// SetTotals sets uid's running totals.
func (s *Server) SetTotals(uid string, totals model.MacroTotals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totals[uid] = totals
}

// Totals returns uid's running totals.
func (s *Server) Totals(uid string) model.MacroTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals[uid]
}

// ResetTo makes subsequent resets leave totals instead of zero.
func (s *Server) ResetTo(totals model.MacroTotals) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetTo = &totals
}

// SetRated sets uid's rating history.
func (s *Server) SetRated(uid string, titles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rated[uid] = append([]string(nil), titles...)
}

// Registered reports whether uid has been registered.
func (s *Server) Registered(uid string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[uid]
}

// Fail makes route answer with status and body until Recover is called.
func (s *Server) Fail(route string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = failure{status: status, body: body}
}

// Recover clears a failure set with Fail.
func (s *Server) Recover(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, route)
}

// Calls returns how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls returns the number of requests across all routes.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// LastBody returns the body of the latest request to route.
func (s *Server) LastBody(route string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.bodies[route]...)
}

type handler func(w http.ResponseWriter, r *http.Request, uid string, body []byte)

// route wraps h with call counting, bearer authentication and failure
// injection.
func (s *Server) route(name string, h handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.calls[name]++
		s.bodies[name] = body
		fail, failing := s.failures[name]
		s.mu.Unlock()

		uid, err := authenticate(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if failing {
			http.Error(w, fail.body, fail.status)
			return
		}
		h(w, r, uid, body)
	}
}

func authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return "", fmt.Errorf("authorization header required")
	}
	token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(token *jwt.Token) (interface{}, error) {
		return []byte(signingKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid claims")
	}
	uid, _ := claims["user_id"].(string)
	if uid == "" {
		return "", fmt.Errorf("user_id claim missing")
	}
	return uid, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request, _ string, _ []byte) {
	writeJSON(w, http.StatusOK, s.Catalog())
}

func (s *Server) handleRate(w http.ResponseWriter, _ *http.Request, uid string, body []byte) {
	var req struct {
		Title  string  `json:"title"`
		Rating float64 `json:"rating"`
		UID    string  `json:"uid"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "malformed rating request", http.StatusBadRequest)
		return
	}
	if req.UID != uid {
		http.Error(w, "uid does not match token", http.StatusForbidden)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.catalog {
		item := &s.catalog[i]
		if item.Title != req.Title {
			continue
		}
		count := 0.0
		if item.RatingCount != nil {
			count = *item.RatingCount
		}
		count++
		item.Rating += req.Rating
		item.RatingCount = &count
		s.rated[uid] = appendUnique(s.rated[uid], req.Title)
		writeJSON(w, http.StatusOK, item.Clone())
		return
	}
	http.Error(w, "food item not found", http.StatusNotFound)
}

func (s *Server) handleLogMacros(w http.ResponseWriter, _ *http.Request, uid string, body []byte) {
	var req struct {
		UID         string         `json:"uid"`
		ServingSize float64        `json:"serving_size"`
		FoodItem    model.FoodItem `json:"food_item"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.ServingSize <= 0 {
		http.Error(w, "malformed macro log request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	added := model.MacrosFromNutrition(req.FoodItem.Nutrition()).Scale(req.ServingSize)
	s.totals[uid] = s.totals[uid].Add(added)
	writeJSON(w, http.StatusOK, map[string]any{"macros": s.totals[uid]})
}

func (s *Server) handleFetchMacros(w http.ResponseWriter, _ *http.Request, uid string, _ []byte) {
	writeJSON(w, http.StatusOK, map[string]any{"macros": s.Totals(uid)})
}

func (s *Server) handleResetMacros(w http.ResponseWriter, _ *http.Request, uid string, _ []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	after := model.MacroTotals{}
	if s.resetTo != nil {
		after = *s.resetTo
	}
	s.totals[uid] = after
	writeJSON(w, http.StatusOK, map[string]any{"macros": after})
}

func (s *Server) handleRatedHistory(w http.ResponseWriter, _ *http.Request, uid string, _ []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	titles := s.rated[uid]
	if titles == nil {
		titles = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ratedFood": titles})
}

func (s *Server) handleRegisterUser(w http.ResponseWriter, _ *http.Request, uid string, _ []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[uid] = true
	writeJSON(w, http.StatusCreated, map[string]any{"message": "user stored", "uid": uid})
}

func appendUnique(titles []string, title string) []string {
	for _, t := range titles {
		if t == title {
			return titles
		}
	}
	return append(titles, title)
}
