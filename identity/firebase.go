package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Default Firebase REST endpoints.
const (
	DefaultSignInURL = "https://identitytoolkit.googleapis.com/v1/accounts:signInWithPassword"
	DefaultTokenURL  = "https://securetoken.googleapis.com/v1/token"
)

// ErrSignInFailed is returned when the identity service rejects a sign-in.
var ErrSignInFailed = errors.New("sign-in failed")

// FirebaseConfig configures the Firebase identity adapter.
type FirebaseConfig struct {
	APIKey    string `yaml:"api_key"`
	SignInURL string `yaml:"sign_in_url"`
	TokenURL  string `yaml:"token_url"`
}

// Credentials is the durable part of a signed-in Firebase identity.
// Callers persist it between runs; it never holds an ID token.
type Credentials struct {
	UID          string `json:"uid"`
	Email        string `json:"email,omitempty"`
	RefreshToken string `json:"refresh_token"`
}

// Firebase is an Identity backed by a Firebase-style identity service.
// Mint exchanges the refresh token for a new ID token on every call.
type Firebase struct {
	cfg        FirebaseConfig
	httpClient *http.Client

	mu    sync.RWMutex
	creds *Credentials
}

// NewFirebase creates a Firebase identity. creds may be nil (signed out).
func NewFirebase(cfg FirebaseConfig, httpClient *http.Client, creds *Credentials) *Firebase {
	if cfg.SignInURL == "" {
		cfg.SignInURL = DefaultSignInURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	f := &Firebase{cfg: cfg, httpClient: httpClient}
	if creds != nil && creds.UID != "" && creds.RefreshToken != "" {
		c := *creds
		f.creds = &c
	}
	return f
}

// Present reports whether a user is signed in.
func (f *Firebase) Present() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.creds != nil
}

// UID returns the signed-in user's id.
func (f *Firebase) UID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.creds == nil {
		return ""
	}
	return f.creds.UID
}

// Credentials returns a copy of the current credentials, nil when signed out.
func (f *Firebase) Credentials() *Credentials {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.creds == nil {
		return nil
	}
	c := *f.creds
	return &c
}

// SignOut forgets the current credentials.
func (f *Firebase) SignOut() {
	f.mu.Lock()
	f.creds = nil
	f.mu.Unlock()
}

type signInRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

// SignIn signs in with email and password and adopts the resulting
// credentials.
func (f *Firebase) SignIn(ctx context.Context, email, password string) (*Credentials, error) {
	body, err := json.Marshal(signInRequest{Email: email, Password: password, ReturnSecureToken: true})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sign-in request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.withKey(f.cfg.SignInURL), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out signInResponse
	status, raw, err := f.do(req, &out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignInFailed, err)
	}
	if status/100 != 2 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrSignInFailed, status, raw)
	}
	if out.LocalID == "" || out.RefreshToken == "" {
		return nil, fmt.Errorf("%w: incomplete response", ErrSignInFailed)
	}

	creds := &Credentials{UID: out.LocalID, Email: out.Email, RefreshToken: out.RefreshToken}
	f.mu.Lock()
	f.creds = creds
	f.mu.Unlock()

	c := *creds
	return &c, nil
}

type tokenResponse struct {
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	UserID       string `json:"user_id"`
}

// Mint exchanges the refresh token for a fresh ID token. A rejected refresh
// token signs the user out and returns ErrUnauthenticated.
func (f *Firebase) Mint(ctx context.Context) (string, error) {
	creds := f.Credentials()
	if creds == nil {
		return "", ErrUnauthenticated
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", creds.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.withKey(f.cfg.TokenURL), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out tokenResponse
	status, raw, err := f.do(req, &out)
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	if status == http.StatusBadRequest || status == http.StatusUnauthorized || status == http.StatusForbidden {
		f.SignOut()
		return "", fmt.Errorf("%w: token refresh rejected: HTTP %d: %s", ErrUnauthenticated, status, raw)
	}
	if status/100 != 2 {
		return "", fmt.Errorf("failed to refresh token: HTTP %d: %s", status, raw)
	}
	if out.IDToken == "" {
		return "", errors.New("failed to refresh token: response carried no id_token")
	}

	if out.RefreshToken != "" && out.RefreshToken != creds.RefreshToken {
		f.mu.Lock()
		if f.creds != nil {
			f.creds.RefreshToken = out.RefreshToken
		}
		f.mu.Unlock()
	}
	return out.IDToken, nil
}

func (f *Firebase) withKey(endpoint string) string {
	if f.cfg.APIKey == "" {
		return endpoint
	}
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + "key=" + url.QueryEscape(f.cfg.APIKey)
}

// do performs req and decodes a 2xx JSON body into out. Non-2xx bodies are
// returned as text.
func (f *Firebase) do(req *http.Request, out any) (int, string, error) {
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return resp.StatusCode, strings.TrimSpace(string(body)), nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, "", fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, "", nil
}
