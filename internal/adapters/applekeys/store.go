package applekeys

// Package applekeys fetches and caches Apple's public signing keys.
// Apple publishes several keys at once and rotates them without notice,
// so the cache hands out the full ordered set and lets the verifier try
// each one in turn.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"golang.org/x/sync/singleflight"
)

// DefaultKeysURL is Apple's JWKS endpoint.
const DefaultKeysURL = "https://appleid.apple.com/auth/keys"

// DefaultTTL is how long a fetched key set is considered fresh.
const DefaultTTL = 15 * time.Minute

// maxResponseBytes caps the JWKS response body read.
const maxResponseBytes = 1 << 20

// ErrKeyFetch is returned when the key endpoint is unreachable or
// returns a malformed document.
var ErrKeyFetch = errors.New("provider key fetch failed")

// Config holds configuration for the key store.
type Config struct {
	KeysURL    string
	TTL        time.Duration
	HTTPClient *http.Client // Optional, defaults to a 10s-timeout client
	Logger     *slog.Logger
}

// Store caches Apple's current key set in-process. Reads are served from
// the cached set; a stale set triggers a background refresh rather than
// blocking readers, and concurrent refreshes are collapsed into one
// in-flight fetch.
type Store struct {
	url    string
	ttl    time.Duration
	client *http.Client
	logger *slog.Logger

	mu        sync.RWMutex
	keys      []jose.JSONWebKey
	fetchedAt time.Time

	group singleflight.Group
}

// NewStore creates a key store with the given configuration.
func NewStore(cfg Config) *Store {
	url := cfg.KeysURL
	if url == "" {
		url = DefaultKeysURL
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{url: url, ttl: ttl, client: client, logger: logger}
}

// Keys returns the provider's current public keys in publication order.
// A fresh cached set is returned directly. A stale cached set is
// returned immediately while a refresh runs in the background. With no
// cache at all the call blocks on the fetch and returns ErrKeyFetch on
// failure.
func (s *Store) Keys(ctx context.Context) ([]jose.JSONWebKey, error) {
	keys, fetchedAt := s.snapshot()
	if keys != nil {
		if time.Since(fetchedAt) > s.ttl {
			s.refreshInBackground()
		}
		return keys, nil
	}
	return s.Refresh(ctx)
}

// Refresh forces a fetch of the key set, replacing the cache on success.
// Concurrent callers share a single in-flight fetch.
func (s *Store) Refresh(ctx context.Context) ([]jose.JSONWebKey, error) {
	v, err, _ := s.group.Do("refresh", func() (any, error) {
		keys, fetchErr := s.fetch(ctx)
		if fetchErr != nil {
			return nil, fetchErr
		}
		s.mu.Lock()
		s.keys = keys
		s.fetchedAt = time.Now()
		s.mu.Unlock()
		return keys, nil
	})
	if err != nil {
		return nil, err
	}
	keys, ok := v.([]jose.JSONWebKey)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected cache value", ErrKeyFetch)
	}
	return keys, nil
}

func (s *Store) snapshot() ([]jose.JSONWebKey, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.keys, s.fetchedAt
}

func (s *Store) refreshInBackground() {
	go func() {
		// Detached from the caller's request lifetime on purpose: the
		// caller already has a usable (stale) set.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.Refresh(ctx); err != nil {
			s.logger.Warn("background key refresh failed", "url", s.url, "error", err)
		}
	}()
}

func (s *Store) fetch(ctx context.Context) ([]jose.JSONWebKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrKeyFetch, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyFetch, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.logger.Warn("close key response body failed", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrKeyFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrKeyFetch, err)
	}

	var set jose.JSONWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("%w: decode key set: %w", ErrKeyFetch, err)
	}
	if len(set.Keys) == 0 {
		return nil, fmt.Errorf("%w: key set is empty", ErrKeyFetch)
	}
	return set.Keys, nil
}
