package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"trailcms/api/internal/store"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	redisStore, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	t.Cleanup(func() { _ = redisStore.Close() })
	return redisStore, s
}

func TestNewRedisStore(t *testing.T) {
	redisStore, _ := setupTestRedis(t)
	if err := redisStore.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	s := miniredis.RunT(t)
	addr := s.Addr()
	s.Close()
	if _, err := NewRedisStore("redis://" + addr); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	redisStore, s := setupTestRedis(t)
	ctx := context.Background()

	if err := redisStore.SaveRefreshSession(ctx, "test-token-hash", "user-123", time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	userID, err := redisStore.LookupRefreshSession(ctx, "test-token-hash")
	if err != nil {
		t.Fatalf("LookupRefreshSession failed: %v", err)
	}
	if userID != "user-123" {
		t.Errorf("expected user-123, got %s", userID)
	}
	if ttl := s.TTL("cms:refresh:test-token-hash"); ttl <= 23*time.Hour {
		t.Errorf("expected ttl close to 24h, got %v", ttl)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	redisStore, s := setupTestRedis(t)
	ctx := context.Background()

	if err := redisStore.SaveRefreshSession(ctx, "expired-token", "user-456", time.Now().Add(time.Second)); err != nil {
		t.Fatalf("SaveRefreshSession failed: %v", err)
	}
	s.FastForward(2 * time.Second)

	if _, err := redisStore.LookupRefreshSession(ctx, "expired-token"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired token, got %v", err)
	}
}

func TestSaveRejectsExpiredSession(t *testing.T) {
	redisStore, _ := setupTestRedis(t)
	if err := redisStore.SaveRefreshSession(context.Background(), "t", "u", time.Now().Add(-time.Minute)); err == nil {
		t.Fatal("expected error for an already expired session")
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	redisStore, _ := setupTestRedis(t)
	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	for _, hash := range []string{"token-1", "token-2"} {
		if err := redisStore.SaveRefreshSession(ctx, hash, "user-"+hash, expiresAt); err != nil {
			t.Fatalf("SaveRefreshSession(%s) failed: %v", hash, err)
		}
	}
	if err := redisStore.RevokeRefreshSession(ctx, "token-1"); err != nil {
		t.Fatalf("RevokeRefreshSession failed: %v", err)
	}
	if _, err := redisStore.LookupRefreshSession(ctx, "token-1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected revoked token-1 to be gone, got %v", err)
	}
	if userID, err := redisStore.LookupRefreshSession(ctx, "token-2"); err != nil || userID != "user-token-2" {
		t.Errorf("token-2 must survive, got %q, %v", userID, err)
	}
	if err := redisStore.RevokeRefreshSession(ctx, "non-existent-token"); err != nil {
		t.Errorf("revoking an unknown token must not fail: %v", err)
	}
}

func TestAccessTokenRevocation(t *testing.T) {
	redisStore, s := setupTestRedis(t)
	ctx := context.Background()

	if err := redisStore.RevokeAccessToken(ctx, "jti-1", time.Now().Add(10*time.Minute)); err != nil {
		t.Fatalf("RevokeAccessToken failed: %v", err)
	}
	revoked, err := redisStore.IsAccessTokenRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("IsAccessTokenRevoked() = %v, %v", revoked, err)
	}
	if revoked, _ := redisStore.IsAccessTokenRevoked(ctx, "jti-2"); revoked {
		t.Fatal("unrelated jti reported revoked")
	}

	s.FastForward(11 * time.Minute)
	if revoked, _ := redisStore.IsAccessTokenRevoked(ctx, "jti-1"); revoked {
		t.Fatal("revocation must expire with the token")
	}

	if err := redisStore.RevokeAccessToken(ctx, "jti-old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoking an expired token must be a no-op: %v", err)
	}
	if s.Exists("cms:revoked:jti-old") {
		t.Fatal("expired token must not be stored")
	}
}
