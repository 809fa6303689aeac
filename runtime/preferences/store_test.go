package preferences

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStore(t *testing.T, opts ...RedisOption) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client, opts...), mr
}

func TestStores(t *testing.T) {
	redisStore, _ := setupRedisStore(t)
	stores := map[string]Store{
		"memory": NewMemoryStore(),
		"file":   NewFileStore(filepath.Join(t.TempDir(), "nested", "prefs.json")),
		"redis":  redisStore,
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.Get(ctx, KeyPushToTalk)
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, store.Set(ctx, KeyPushToTalk, "true"))
			require.NoError(t, store.Set(ctx, KeyLogsExpanded, "false"))
			v, err := store.Get(ctx, KeyPushToTalk)
			require.NoError(t, err)
			assert.Equal(t, "true", v)

			require.NoError(t, store.Set(ctx, KeyPushToTalk, "false"))
			v, err = store.Get(ctx, KeyPushToTalk)
			require.NoError(t, err)
			assert.Equal(t, "false", v)

			_, err = store.Get(ctx, "")
			assert.ErrorIs(t, err, ErrInvalidKey)
			assert.ErrorIs(t, store.Set(ctx, "", "x"), ErrInvalidKey)
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	assert.Equal(t, Defaults(), Load(context.Background(), nil))
	assert.Equal(t, Preferences{PushToTalk: false, AudioPlayback: true, LogsExpanded: true},
		Load(context.Background(), NewMemoryStore()))
}

func TestLoad_StoredValuesAndMalformed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, SetBool(ctx, store, KeyPushToTalk, true))
	require.NoError(t, SetBool(ctx, store, KeyAudioPlayback, false))
	require.NoError(t, store.Set(ctx, KeyLogsExpanded, "maybe"))

	prefs := Load(ctx, store)
	assert.True(t, prefs.PushToTalk)
	assert.False(t, prefs.AudioPlayback)
	assert.True(t, prefs.LogsExpanded, "malformed value falls back to default")

	assert.NoError(t, SetBool(ctx, nil, KeyPushToTalk, true))
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) { return "", errors.New("down") }
func (failingStore) Set(context.Context, string, string) error   { return errors.New("down") }

func TestLoad_ReadErrorsUseDefaults(t *testing.T) {
	assert.Equal(t, Defaults(), Load(context.Background(), failingStore{}))
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "prefs.json")

	require.NoError(t, SetBool(ctx, NewFileStore(path), KeyPushToTalk, true))
	assert.True(t, Load(ctx, NewFileStore(path)).PushToTalk)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(filePerm), info.Mode().Perm())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewFileStore(path)
	_, err := store.Get(context.Background(), KeyPushToTalk)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, store.Set(context.Background(), KeyPushToTalk, "true"))
}

func TestFileStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewFileStore(filepath.Join(t.TempDir(), "p.json")).Set(ctx, KeyPushToTalk, "true"), context.Canceled)
}

func TestRedisStore_KeyLayoutAndTTL(t *testing.T) {
	store, mr := setupRedisStore(t, WithPrefix("kiosk"), WithProfile("gallery-3"), WithTTL(time.Hour))
	require.NoError(t, store.Set(context.Background(), KeyAudioPlayback, "false"))

	assert.Equal(t, "false", mr.HGet("kiosk:preferences:gallery-3", KeyAudioPlayback))
	assert.Equal(t, time.Hour, mr.TTL("kiosk:preferences:gallery-3"))

	mr.FastForward(2 * time.Hour)
	_, err := store.Get(context.Background(), KeyAudioPlayback)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_NoTTLByDefault(t *testing.T) {
	store, mr := setupRedisStore(t)
	require.NoError(t, store.Set(context.Background(), KeyPushToTalk, "true"))
	assert.Equal(t, time.Duration(0), mr.TTL("museum-agent:preferences:default"))
}

func TestRedisStore_ServerDown(t *testing.T) {
	store, mr := setupRedisStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), KeyPushToTalk)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, store.Set(context.Background(), KeyPushToTalk, "true"))
	assert.True(t, Load(context.Background(), store).AudioPlayback)
}
