package cache

import (
	"context"
	"os"
	"strconv"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var addr = common.HexToAddress("0x00000000000000000000000000000000000000d4")

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, Forget(ctx, s, addr))

	p, err := Load(ctx, s, addr)
	require.NoError(t, err)
	require.Equal(t, Profile{}, p)

	require.NoError(t, s.Set(ctx, PlayerNameKey(addr), "carol"))
	require.NoError(t, s.Set(ctx, PlayerPointsKey(addr), "30"))
	require.NoError(t, s.Set(ctx, ActiveGameKey(addr), "not-a-number"))

	p, err = Load(ctx, s, addr)
	require.NoError(t, err)
	require.Equal(t, Profile{Name: "carol", Points: 30, HasPoints: true}, p)

	require.NoError(t, Forget(ctx, s, addr))
	_, ok, err := s.Get(ctx, PlayerNameKey(addr))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

// Integration-style test: runs only if REDIS_ADDR env is set.
func TestRedisStoreIntegration(t *testing.T) {
	a := os.Getenv("REDIS_ADDR")
	if a == "" {
		t.Skip("REDIS_ADDR not set; skipping integration test")
	}
	db := 0
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			db = n
		}
	}

	s, err := NewRedisStore(a, os.Getenv("REDIS_PASSWORD"), db, 0)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestKeysAreScopedByAddress(t *testing.T) {
	other := common.HexToAddress("0x00000000000000000000000000000000000000e5")
	require.NotEqual(t, PlayerNameKey(addr), PlayerNameKey(other))
	require.Contains(t, ActiveGameKey(addr), "colorsnap_active_game_id")
}
