package recommend

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ever-flow/ETF/internal/database"
)

func newPeerStore(t *testing.T) *PeerStore {
	t.Helper()
	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "engine.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPeerStore(db)
}

func TestPeerStore_SaveAndLoad(t *testing.T) {
	store := newPeerStore(t)

	first := PeerPreference{Profile: basicProfile(), PreferredETFs: []string{"QQQ", "069500"}}
	second := PeerPreference{Profile: basicProfile(), PreferredETFs: []string{"XLE"}}
	second.Profile.RiskTolerance = 5

	require.NoError(t, store.Save(first))
	require.NoError(t, store.Save(second))

	got, err := store.All()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.PreferredETFs, got[0].PreferredETFs)
	assert.Equal(t, 5, got[1].Profile.RiskTolerance)
	assert.Equal(t, []string{"XLE"}, got[1].PreferredETFs)
}

func TestPeerStore_EmptyBase(t *testing.T) {
	store := newPeerStore(t)

	got, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, got)
}
