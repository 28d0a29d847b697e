package store

import (
    "context"
    "encoding/json"
    "os"
    "testing"
    "time"

    "github.com/google/uuid"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/local/docviewer/internal/viewer"
)

func TestNewRedisViewStoreRejectsBadURL(t *testing.T) {
    _, err := NewRedisViewStore("not-a-url", "viewer", time.Minute)
    assert.Error(t, err)
}

func TestViewStoreKey(t *testing.T) {
    s := &RedisViewStore{keyNS: "viewer"}
    assert.Equal(t, "viewer:kiosk-1:state", s.key("kiosk-1"))
}

func TestViewRecordJSONMatchesSnapshot(t *testing.T) {
    rec := ViewRecord{Phase: "ready", Session: "abc", Page: 2, TotalPages: 7, Scale: 1.4, UpdatedAt: time.Unix(0, 0).UTC()}
    b, err := json.Marshal(rec)
    require.NoError(t, err)
    var keys map[string]any
    require.NoError(t, json.Unmarshal(b, &keys))
    for _, k := range []string{"phase", "session", "title", "filename", "page", "total_pages", "scale", "loading", "updated_at"} {
        assert.Contains(t, keys, k)
    }
    assert.NotContains(t, keys, "error")
    assert.NotContains(t, keys, "TotalPages")
}

// Runs against a real server when TEST_REDIS_URL is set.
func TestRedisViewStoreRoundTrip(t *testing.T) {
    url := os.Getenv("TEST_REDIS_URL")
    if url == "" { t.Skip("TEST_REDIS_URL not set") }

    s, err := NewRedisViewStore(url, "docviewer-test", time.Minute)
    require.NoError(t, err)
    defer s.Close()

    ctx := context.Background()
    id := uuid.NewString()
    _, ok, err := s.Get(ctx, id)
    require.NoError(t, err)
    assert.False(t, ok)

    snap := viewer.Snapshot{
        Phase: viewer.PhaseReady, Session: "abc", Title: "Invoice", Filename: "inv.pdf",
        Page: 2, TotalPages: 7, Scale: 1.4, Loading: false,
    }
    require.NoError(t, s.Save(ctx, id, snap))

    rec, ok, err := s.Get(ctx, id)
    require.NoError(t, err)
    require.True(t, ok)
    assert.Equal(t, "ready", rec.Phase)
    assert.Equal(t, "Invoice", rec.Title)
    assert.Equal(t, 2, rec.Page)
    assert.Equal(t, 7, rec.TotalPages)
    assert.Equal(t, 1.4, rec.Scale)
    assert.False(t, rec.UpdatedAt.IsZero())
    require.NoError(t, s.Ping(ctx))
}
