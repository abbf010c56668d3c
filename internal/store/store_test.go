package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends runs the same contract against every local implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": sqlite,
	}
}

func TestStore_Contract(t *testing.T) {
	ctx := context.Background()

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "a", "1"))
			require.NoError(t, s.Set(ctx, "a", "2"))
			v, ok, err := s.Get(ctx, "a")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "2", v)

			require.NoError(t, s.SetMany(ctx, map[string]string{"b": "x", "c": "y"}))
			require.NoError(t, s.Remove(ctx, "a", "b", "never-set"))

			for _, k := range []string{"a", "b"} {
				_, ok, err := s.Get(ctx, k)
				require.NoError(t, err)
				assert.False(t, ok, k)
			}
			v, ok, err = s.Get(ctx, "c")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "y", v)

			require.NoError(t, s.Remove(ctx))
			require.NoError(t, s.SetMany(ctx, nil))
			require.NoError(t, s.Ping(ctx))
		})
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "kv.db")

	s, err := NewSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, TokenKey.Name, "tok"))
	require.NoError(t, s.Close())

	s, err = NewSQLite(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	v, ok, err := s.Get(ctx, TokenKey.Name)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", v)
}

func TestScoped_IsolatesProfiles(t *testing.T) {
	ctx := context.Background()
	base := NewMemory()
	alice := Scoped(base, "prof_a")
	bob := Scoped(base, "prof_b")

	require.NoError(t, alice.Set(ctx, TokenKey.Name, "alice-token"))
	require.NoError(t, bob.SetMany(ctx, map[string]string{TokenKey.Name: "bob-token"}))

	v, _, err := alice.Get(ctx, TokenKey.Name)
	require.NoError(t, err)
	assert.Equal(t, "alice-token", v)

	require.NoError(t, alice.Remove(ctx, SessionKeys...))
	_, ok, err := alice.Get(ctx, TokenKey.Name)
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = bob.Get(ctx, TokenKey.Name)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bob-token", v)

	raw, ok, err := base.Get(ctx, "prof_b:jwt_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "bob-token", raw)
	assert.Equal(t, "prof_b", bob.Profile())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "etcd"})
	require.Error(t, err)

	s, err := Open(Options{Driver: DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}

func TestSQLite_PragmasApplyToEveryConnection(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	// Hold several connections at once so the pool cannot hand back the
	// one that created the schema.
	for i := 0; i < 3; i++ {
		conn, err := s.db.Conn(ctx)
		require.NoError(t, err)
		defer func() { _ = conn.Close() }()

		var mode string
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
		assert.Equal(t, "wal", mode, "conn %d", i)

		var timeout int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
		assert.Equal(t, 5000, timeout, "conn %d", i)

		var sync int
		require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&sync))
		assert.Equal(t, 1, sync, "conn %d: NORMAL", i)
	}
}
