package applekeys

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jwksServer serves a switchable key set and counts hits.
type jwksServer struct {
	*httptest.Server

	mu   sync.Mutex
	set  jose.JSONWebKeySet
	hits int

	status int
	body   []byte // overrides the key set when non-nil
}

func newJWKSServer(t *testing.T, kids ...string) *jwksServer {
	t.Helper()

	s := &jwksServer{status: http.StatusOK}
	s.setKeys(t, kids...)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.hits++
		w.WriteHeader(s.status)
		if s.body != nil {
			_, _ = w.Write(s.body)
			return
		}
		_ = json.NewEncoder(w).Encode(s.set)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *jwksServer) setKeys(t *testing.T, kids ...string) {
	t.Helper()

	set := jose.JSONWebKeySet{}
	for _, kid := range kids {
		priv, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)
		set.Keys = append(set.Keys, jose.JSONWebKey{
			Key: priv.Public(), KeyID: kid, Algorithm: string(jose.RS256), Use: "sig",
		})
	}
	s.mu.Lock()
	s.set = set
	s.mu.Unlock()
}

func (s *jwksServer) hitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

func TestKeys_FetchesAndCaches(t *testing.T) {
	t.Parallel()

	server := newJWKSServer(t, "kid-1", "kid-2")
	store := NewStore(Config{KeysURL: server.URL, TTL: time.Hour})
	ctx := context.Background()

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "kid-1", keys[0].KeyID, "publication order is preserved")
	assert.Equal(t, "kid-2", keys[1].KeyID)

	// A fresh cache serves reads without another fetch.
	_, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, server.hitCount())
}

func TestKeys_StaleSetServedWhileRefreshing(t *testing.T) {
	t.Parallel()

	server := newJWKSServer(t, "kid-1")
	store := NewStore(Config{KeysURL: server.URL, TTL: time.Nanosecond})
	ctx := context.Background()

	_, err := store.Keys(ctx)
	require.NoError(t, err)

	server.setKeys(t, "kid-2")
	time.Sleep(time.Millisecond) // let the TTL lapse

	// The stale set comes back immediately.
	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kid-1", keys[0].KeyID)

	// The background refresh eventually installs the new set.
	require.Eventually(t, func() bool {
		keys, keysErr := store.Keys(ctx)
		return keysErr == nil && len(keys) == 1 && keys[0].KeyID == "kid-2"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRefresh_ForcesFetch(t *testing.T) {
	t.Parallel()

	server := newJWKSServer(t, "kid-1")
	store := NewStore(Config{KeysURL: server.URL, TTL: time.Hour})
	ctx := context.Background()

	_, err := store.Keys(ctx)
	require.NoError(t, err)

	server.setKeys(t, "kid-2")
	keys, err := store.Refresh(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "kid-2", keys[0].KeyID)
	assert.Equal(t, 2, server.hitCount())
}

func TestKeys_FetchFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		body   []byte
	}{
		{name: "server error", status: http.StatusInternalServerError},
		{name: "not json", status: http.StatusOK, body: []byte("<html>nope</html>")},
		{name: "empty key set", status: http.StatusOK, body: []byte(`{"keys":[]}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := newJWKSServer(t)
			server.mu.Lock()
			server.status = tt.status
			server.body = tt.body
			server.mu.Unlock()

			store := NewStore(Config{KeysURL: server.URL, TTL: time.Hour})
			_, err := store.Keys(context.Background())
			require.ErrorIs(t, err, ErrKeyFetch)
		})
	}
}

func TestKeys_UnreachableEndpoint(t *testing.T) {
	t.Parallel()

	server := newJWKSServer(t, "kid-1")
	server.Close()

	store := NewStore(Config{KeysURL: server.URL, TTL: time.Hour})
	_, err := store.Keys(context.Background())
	require.ErrorIs(t, err, ErrKeyFetch)
}

func TestRefresh_ConcurrentCallersShareOneFetch(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var mu sync.Mutex
	hits := 0

	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	set := jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
		Key: priv.Public(), KeyID: "kid-1", Algorithm: string(jose.RS256), Use: "sig",
	}}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		<-release
		_ = json.NewEncoder(w).Encode(set)
	}))
	t.Cleanup(server.Close)

	store := NewStore(Config{KeysURL: server.URL, TTL: time.Hour})
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Refresh(ctx)
		}(i)
	}

	// Give the goroutines time to pile up behind the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, hits, "concurrent refreshes must collapse into one fetch")
}
