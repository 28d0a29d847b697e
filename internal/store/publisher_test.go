package store

import (
    "context"
    "errors"
    "sync"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/local/docviewer/internal/viewer"
)

type fakeSaver struct {
    mu    sync.Mutex
    ids   []string
    snaps []viewer.Snapshot
    err   error
    block chan struct{}
}

func (f *fakeSaver) Save(ctx context.Context, viewerID string, snap viewer.Snapshot) error {
    if f.block != nil { <-f.block }
    f.mu.Lock()
    defer f.mu.Unlock()
    f.ids = append(f.ids, viewerID)
    f.snaps = append(f.snaps, snap)
    return f.err
}

func (f *fakeSaver) saved() []viewer.Snapshot {
    f.mu.Lock()
    defer f.mu.Unlock()
    return append([]viewer.Snapshot(nil), f.snaps...)
}

func TestPublisherDropsSurfaceAndTagsViewer(t *testing.T) {
    s := &fakeSaver{}
    p := NewPublisher(s, "kiosk-1")
    p.Publish(viewer.Snapshot{Page: 2, Surface: &viewer.Surface{Page: 2}})

    require.Eventually(t, func() bool { return len(s.saved()) == 1 }, time.Second, 5*time.Millisecond)
    p.Close()

    got := s.saved()[0]
    assert.Equal(t, 2, got.Page)
    assert.Nil(t, got.Surface)
    assert.Equal(t, []string{"kiosk-1"}, s.ids)
}

func TestPublisherKeepsOnlyNewestPending(t *testing.T) {
    s := &fakeSaver{block: make(chan struct{})}
    p := NewPublisher(s, "v")

    p.Publish(viewer.Snapshot{Page: 1})
    // wait until the first save is in flight
    time.Sleep(20 * time.Millisecond)
    for i := 2; i <= 5; i++ {
        p.Publish(viewer.Snapshot{Page: i})
    }
    close(s.block)
    p.Close()

    saved := s.saved()
    require.NotEmpty(t, saved)
    assert.LessOrEqual(t, len(saved), 2)
    assert.Equal(t, 5, saved[len(saved)-1].Page)
}

func TestPublisherCloseFlushesPending(t *testing.T) {
    s := &fakeSaver{err: errors.New("redis down")}
    p := NewPublisher(s, "v")
    p.Publish(viewer.Snapshot{Page: 3})
    p.Close()

    saved := s.saved()
    require.NotEmpty(t, saved)
    assert.Equal(t, 3, saved[len(saved)-1].Page)
}
