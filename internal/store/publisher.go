package store

import (
    "context"
    "sync"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/docviewer/internal/viewer"
)

// Saver persists one snapshot.
type Saver interface {
    Save(ctx context.Context, viewerID string, snap viewer.Snapshot) error
}

// Publisher mirrors snapshots to a Saver off the event loop. Only the
// newest pending snapshot is kept; older ones are overwritten.
type Publisher struct {
    saver    Saver
    viewerID string
    timeout  time.Duration

    mu      sync.Mutex
    pending *viewer.Snapshot
    wake    chan struct{}
    stop    chan struct{}
    wg      sync.WaitGroup
}

func NewPublisher(saver Saver, viewerID string) *Publisher {
    p := &Publisher{
        saver:    saver,
        viewerID: viewerID,
        timeout:  3 * time.Second,
        wake:     make(chan struct{}, 1),
        stop:     make(chan struct{}),
    }
    p.wg.Add(1)
    go p.loop()
    return p
}

// Publish never blocks; it is safe to call from the event loop.
func (p *Publisher) Publish(snap viewer.Snapshot) {
    snap.Surface = nil
    p.mu.Lock()
    p.pending = &snap
    p.mu.Unlock()
    select {
    case p.wake <- struct{}{}:
    default:
    }
}

func (p *Publisher) loop() {
    defer p.wg.Done()
    for {
        select {
        case <-p.stop:
            p.flush()
            return
        case <-p.wake:
            p.flush()
        }
    }
}

func (p *Publisher) flush() {
    p.mu.Lock()
    snap := p.pending
    p.pending = nil
    p.mu.Unlock()
    if snap == nil { return }

    ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
    defer cancel()
    if err := p.saver.Save(ctx, p.viewerID, *snap); err != nil {
        log.Warn().Err(err).Str("viewer", p.viewerID).Msg("failed to mirror view state")
    }
}

// Close writes any pending snapshot and stops the publisher.
func (p *Publisher) Close() {
    close(p.stop)
    p.wg.Wait()
}
