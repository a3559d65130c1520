package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
)

// OAuthConfig reads an installed-app client secret file downloaded from the
// Google Cloud console
func OAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("reading calendar credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(data, gcal.CalendarEventsScope)
	if err != nil {
		return nil, fmt.Errorf("parsing calendar credentials: %w", err)
	}
	return cfg, nil
}

// LoadToken reads a saved OAuth token
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening token file (run 'punchsync login' first): %w", err)
	}
	defer f.Close()

	var tok oauth2.Token
	if err := json.NewDecoder(f).Decode(&tok); err != nil {
		return nil, fmt.Errorf("decoding token file: %w", err)
	}
	return &tok, nil
}

// SaveToken writes an OAuth token with owner-only permissions
func SaveToken(path string, tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// HTTPClient builds an authorized client from the credentials and token
// files. Refreshed tokens are written back to tokenPath.
func HTTPClient(ctx context.Context, credentialsPath, tokenPath string) (*http.Client, error) {
	cfg, err := OAuthConfig(credentialsPath)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(tokenPath)
	if err != nil {
		return nil, err
	}
	src := newSavingTokenSource(cfg.TokenSource(ctx, tok), tokenPath, tok, *zerolog.Ctx(ctx))
	return oauth2.NewClient(ctx, src), nil
}

// savingTokenSource persists every token that differs from the last one
// seen
type savingTokenSource struct {
	src    oauth2.TokenSource
	path   string
	logger zerolog.Logger

	mu     sync.Mutex
	access string
}

func newSavingTokenSource(src oauth2.TokenSource, path string, initial *oauth2.Token, logger zerolog.Logger) *savingTokenSource {
	s := &savingTokenSource{src: src, path: path, logger: logger}
	if initial != nil {
		s.access = initial.AccessToken
	}
	return s
}

func (s *savingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.access {
		return tok, nil
	}
	// A failed write only costs a refresh on the next run
	if err := SaveToken(s.path, tok); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("Saving refreshed calendar token failed")
		return tok, nil
	}
	s.access = tok.AccessToken
	s.logger.Debug().Str("path", s.path).Msg("Saved refreshed calendar token")
	return tok, nil
}
