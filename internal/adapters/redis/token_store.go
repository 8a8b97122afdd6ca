package redis

// Package redis provides Redis-based adapters for the argo-auth system.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/argoapp/argo-auth/internal/domain/auth"
	"github.com/argoapp/argo-auth/internal/ports"
)

// ErrNotFound is returned when a token is not found.
var ErrNotFound = ports.ErrTokenNotFound

// TokenStore is a Redis-based store for issued bearer tokens. Keys
// carry the token value itself; TTL semantics follow the token's
// ExpiresAt, so expiry needs no reaper.
type TokenStore struct {
	client redis.UniversalClient
	prefix string
}

// NewTokenStore creates a new Redis-based token store.
func NewTokenStore(client redis.UniversalClient) *TokenStore {
	return &TokenStore{
		client: client,
		prefix: "authtoken:",
	}
}

// NewTokenStoreWithPrefix creates a Redis token store with a custom key prefix.
func NewTokenStoreWithPrefix(client redis.UniversalClient, prefix string) *TokenStore {
	return &TokenStore{
		client: client,
		prefix: prefix,
	}
}

func (s *TokenStore) Save(ctx context.Context, tok domainauth.Token) error {
	if tok.Value == "" {
		return errors.New("token value cannot be empty")
	}
	if tok.UserID == "" {
		return errors.New("token user ID cannot be empty")
	}

	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	key := s.prefix + tok.Value
	ttl := time.Until(tok.ExpiresAt)
	if ttl <= 0 {
		return errors.New("token is expired")
	}

	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *TokenStore) Get(ctx context.Context, value string) (domainauth.Token, error) {
	if value == "" {
		return domainauth.Token{}, ErrNotFound
	}

	key := s.prefix + value
	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domainauth.Token{}, ErrNotFound
		}
		return domainauth.Token{}, fmt.Errorf("redis get: %w", err)
	}

	var tok domainauth.Token
	if unmarshalErr := json.Unmarshal([]byte(data), &tok); unmarshalErr != nil {
		return domainauth.Token{}, fmt.Errorf("unmarshal token: %w", unmarshalErr)
	}

	// Redis TTL normally covers expiry; re-check in case of clock skew.
	if time.Now().After(tok.ExpiresAt) {
		if deleteErr := s.Delete(ctx, value); deleteErr != nil {
			return domainauth.Token{}, fmt.Errorf("cleanup expired token: %w", deleteErr)
		}
		return domainauth.Token{}, ErrNotFound
	}

	return tok, nil
}

func (s *TokenStore) Delete(ctx context.Context, value string) error {
	if value == "" {
		return nil // Nothing to delete
	}

	key := s.prefix + value
	return s.client.Del(ctx, key).Err()
}
