package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitware/aifactory-console/api"
	"github.com/bitware/aifactory-console/internal/testutil"
)

func sampleInfo(token string, exp time.Time) Info {
	return Info{
		Token:      token,
		User:       api.User{ID: "u1", Email: "kam@bitware.io", Role: api.RoleAdmin},
		KAMContext: api.KAMContext{ClientID: "c1", CompanyName: "Acme"},
		CreatedAt:  exp.Add(-time.Hour),
		ExpiresAt:  exp,
	}
}

func TestFromLogin(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	info := FromLogin(api.LoginResult{SessionToken: "s1", User: api.User{ID: "u1"}}, now, time.Hour)
	assert.Equal(t, "s1", info.Token)
	assert.Equal(t, now.Add(time.Hour), info.ExpiresAt)

	// A backend expiry sooner than the ttl wins.
	soon := now.Add(10 * time.Minute)
	info = FromLogin(api.LoginResult{SessionToken: "s2", ExpiresAt: soon}, now, time.Hour)
	assert.Equal(t, soon, info.ExpiresAt)

	info = FromLogin(api.LoginResult{SessionToken: "s3"}, now, 0)
	assert.Equal(t, now.Add(DefaultTTL), info.ExpiresAt)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	_, err := s.Get(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, s.Put(ctx, Info{}), ErrInvalidToken)

	require.NoError(t, s.Put(ctx, sampleInfo("live", now.Add(time.Hour))))
	require.NoError(t, s.Put(ctx, sampleInfo("old", now.Add(-time.Minute))))

	got, err := s.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.KAMContext.CompanyName)

	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, s.Len(), "expired entries are dropped on read")

	require.NoError(t, s.Delete(ctx, "live"))
	require.NoError(t, s.Delete(ctx, "live"))
	_, err = s.Get(ctx, "live")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, sampleInfo("a", now.Add(-time.Second))))
	require.NoError(t, s.Put(ctx, sampleInfo("b", now)))
	require.NoError(t, s.Put(ctx, sampleInfo("c", now.Add(time.Second))))

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, 1, s.Len())
}

func TestPostgresStore(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	s := NewPostgresStore(db.Pool)
	require.NoError(t, s.Migrate(ctx))
	require.NoError(t, db.CleanTables(ctx, "aifactory_console_sessions"))

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, s.Put(ctx, sampleInfo("live", now.Add(time.Hour))))
	require.NoError(t, s.Put(ctx, sampleInfo("old", now.Add(-time.Hour))))

	got, err := s.Get(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "kam@bitware.io", got.User.Email)
	assert.Equal(t, "c1", got.KAMContext.ClientID)
	assert.True(t, got.ExpiresAt.Equal(now.Add(time.Hour)))

	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := s.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, s.Delete(ctx, "live"))
	_, err = s.Get(ctx, "live")
	assert.ErrorIs(t, err, ErrNotFound)
}
