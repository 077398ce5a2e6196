// Package credential holds the bearer token the console presents to the remote
// user service. The token is loaded at startup and may be rotated while the
// process runs, either programmatically or by rewriting the token file.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang-jwt/jwt/v5"
)

// ExpiryWarning is how far ahead of a token's exp claim a rotation reminder is logged.
const ExpiryWarning = 72 * time.Hour

// ErrEmptyToken is returned when an empty credential is supplied.
var ErrEmptyToken = errors.New("credential: empty token")

// Source yields the bearer token for the next outbound request.
type Source interface {
	Token() string
}

// Store is a rotatable, concurrency-safe token holder.
type Store struct {
	mu     sync.RWMutex
	token  string
	expiry time.Time
	logger *slog.Logger
	now    func() time.Time
}

// NewStore builds a Store seeded with token.
func NewStore(token string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{logger: logger, now: time.Now}
	if err := s.Rotate(token); err != nil {
		return nil, err
	}
	return s, nil
}

// NewFileStore builds a Store from the contents of path.
func NewFileStore(path string, logger *slog.Logger) (*Store, error) {
	token, err := readTokenFile(path)
	if err != nil {
		return nil, err
	}
	return NewStore(token, logger)
}

// Token returns the current bearer token.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Expiry returns the exp claim of the current token when it is a JWT.
func (s *Store) Expiry() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiry, !s.expiry.IsZero()
}

// Rotate replaces the current token. Expired or soon-to-expire JWTs are accepted
// but logged, since the remote service is the only authority on validity.
func (s *Store) Rotate(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrEmptyToken
	}

	expiry, _ := Inspect(token)

	s.mu.Lock()
	changed := s.token != "" && s.token != token
	s.token = token
	s.expiry = expiry
	s.mu.Unlock()

	if changed {
		s.logger.Info("service credential rotated")
	}
	s.warnExpiry(expiry)
	return nil
}

func (s *Store) warnExpiry(expiry time.Time) {
	if expiry.IsZero() {
		return
	}
	now := s.now()
	switch {
	case !expiry.After(now):
		s.logger.Warn("service credential expired", slog.Time("expires_at", expiry))
	case expiry.Sub(now) < ExpiryWarning:
		s.logger.Warn("service credential expires soon", slog.Time("expires_at", expiry))
	}
}

// WatchFile reloads the token whenever the file at path changes. The parent
// directory is watched so that atomic replacements (rename over, symlink swaps)
// are picked up. It blocks until ctx is cancelled.
func (s *Store) WatchFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("credential: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("credential: watch %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			token, err := readTokenFile(path)
			if err != nil {
				// Writers may truncate before writing; the next event carries the content.
				s.logger.Debug("credential file not readable yet", slog.Any("error", err))
				continue
			}
			if token == s.Token() {
				continue
			}
			if err := s.Rotate(token); err != nil {
				s.logger.Warn("credential rotation rejected", slog.Any("error", err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("credential watcher error", slog.Any("error", err))
		}
	}
}

// Inspect returns the exp claim of a JWT-shaped token without verifying its
// signature. Opaque tokens report false.
func Inspect(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func readTokenFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("credential: read %s: %w", path, err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}
