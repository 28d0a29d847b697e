package store

import (
    "context"
    "fmt"
    "strconv"
    "time"

    redis "github.com/redis/go-redis/v9"

    "github.com/local/docviewer/internal/viewer"
)

// ViewRecord is the mirrored form of a viewer snapshot.
type ViewRecord struct {
    Phase      string    `json:"phase"`
    Session    string    `json:"session"`
    Title      string    `json:"title"`
    Filename   string    `json:"filename"`
    Page       int       `json:"page"`
    TotalPages int       `json:"total_pages"`
    Scale      float64   `json:"scale"`
    Loading    bool      `json:"loading"`
    Error      string    `json:"error,omitempty"`
    UpdatedAt  time.Time `json:"updated_at"`
}

// RedisViewStore keeps the latest snapshot of each viewer in a Redis hash.
type RedisViewStore struct {
    client *redis.Client
    keyNS  string
    ttl    time.Duration
}

func NewRedisViewStore(redisURL, keyNS string, ttl time.Duration) (*RedisViewStore, error) {
    opt, err := redis.ParseURL(redisURL)
    if err != nil { return nil, fmt.Errorf("parse redis url: %w", err) }
    c := redis.NewClient(opt)
    ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    defer cancel()
    if err := c.Ping(ctx).Err(); err != nil { return nil, fmt.Errorf("redis ping: %w", err) }
    if keyNS == "" { keyNS = "viewer" }
    return &RedisViewStore{client: c, keyNS: keyNS, ttl: ttl}, nil
}

func (s *RedisViewStore) key(viewerID string) string { return fmt.Sprintf("%s:%s:state", s.keyNS, viewerID) }

// Save overwrites the viewer's record with snap.
func (s *RedisViewStore) Save(ctx context.Context, viewerID string, snap viewer.Snapshot) error {
    m := map[string]interface{}{
        "phase":       snap.Phase.String(),
        "session":     snap.Session,
        "title":       snap.Title,
        "filename":    snap.Filename,
        "page":        snap.Page,
        "total_pages": snap.TotalPages,
        "scale":       strconv.FormatFloat(snap.Scale, 'f', 1, 64),
        "loading":     strconv.FormatBool(snap.Loading),
        "error":       snap.Error,
        "updated_at":  time.Now().UTC().Format(time.RFC3339Nano),
    }
    k := s.key(viewerID)
    pipe := s.client.TxPipeline()
    pipe.HSet(ctx, k, m)
    if s.ttl > 0 { pipe.Expire(ctx, k, s.ttl) }
    _, err := pipe.Exec(ctx)
    return err
}

// Get returns the viewer's record, if any.
func (s *RedisViewStore) Get(ctx context.Context, viewerID string) (ViewRecord, bool, error) {
    res, err := s.client.HGetAll(ctx, s.key(viewerID)).Result()
    if err != nil { return ViewRecord{}, false, err }
    if len(res) == 0 { return ViewRecord{}, false, nil }
    rec := ViewRecord{
        Phase:    res["phase"],
        Session:  res["session"],
        Title:    res["title"],
        Filename: res["filename"],
        Error:    res["error"],
    }
    // ignore parse errors; zero values are fine for a mirror
    rec.Page, _ = strconv.Atoi(res["page"])
    rec.TotalPages, _ = strconv.Atoi(res["total_pages"])
    rec.Scale, _ = strconv.ParseFloat(res["scale"], 64)
    rec.Loading, _ = strconv.ParseBool(res["loading"])
    if v := res["updated_at"]; v != "" {
        if t, err := time.Parse(time.RFC3339Nano, v); err == nil { rec.UpdatedAt = t }
    }
    return rec, true, nil
}

// Ping is used by the status checker.
func (s *RedisViewStore) Ping(ctx context.Context) error { return s.client.Ping(ctx).Err() }

func (s *RedisViewStore) Close() error { return s.client.Close() }
