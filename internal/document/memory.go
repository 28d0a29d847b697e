// Package document provides in-memory document handles for the viewer and
// loads them from local paths, HTTP URLs and S3.
package document

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/docviewer/internal/filetype"
	"github.com/local/docviewer/internal/storage"
	"github.com/local/docviewer/internal/viewer"
)

// ObjectStore is the S3 capability used for s3:// sources and exports.
type ObjectStore interface {
	DownloadFile(ctx context.Context, key, password string) ([]byte, error)
	UploadFile(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// StoreFactory opens an ObjectStore for a bucket.
type StoreFactory func(ctx context.Context, bucket string) (ObjectStore, error)

// Options configures a Memory handle.
type Options struct {
	// Password re-encrypts s3:// exports when set.
	Password string
	// ExportDir receives local exports. Names must stay inside it.
	ExportDir string
	Stores    StoreFactory
}

// Memory is a fully built document held in memory.
type Memory struct {
	name string
	data []byte
	mime string
	opts Options
}

var _ viewer.Document = (*Memory)(nil)

// New wraps data. The bytes are copied.
func New(name string, data []byte, opts Options) *Memory {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &Memory{name: name, data: buf, mime: filetype.DetectBytes(buf).MIMEType, opts: opts}
}

func (m *Memory) Name() string { return m.name }
func (m *Memory) Size() int    { return len(m.data) }
func (m *Memory) MIME() string { return m.mime }

// Serialize returns a copy of the document bytes.
func (m *Memory) Serialize(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

// Save writes the document under ExportDir or to s3://bucket/key. Local
// names must be relative and may not climb out of ExportDir.
func (m *Memory) Save(ctx context.Context, filename string) error {
	if strings.HasPrefix(filename, "s3://") {
		return m.saveS3(ctx, filename)
	}
	return m.saveLocal(filename)
}

func (m *Memory) saveLocal(filename string) error {
	if !filepath.IsLocal(filename) {
		return fmt.Errorf("export %s: %w", filename, ErrOutsideRoot)
	}
	path := filepath.Join(m.opts.ExportDir, filename)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, m.data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Debug().Str("path", path).Int("bytes", len(m.data)).Msg("document saved locally")
	return nil
}

func (m *Memory) saveS3(ctx context.Context, url string) error {
	if m.opts.Stores == nil {
		return fmt.Errorf("s3 export not configured")
	}
	bucket, key, err := storage.ParseS3URL(url)
	if err != nil {
		return err
	}
	store, err := m.opts.Stores(ctx, bucket)
	if err != nil {
		return fmt.Errorf("open bucket %s: %w", bucket, err)
	}

	payload, contentType := m.data, m.mime
	if m.opts.Password != "" {
		salt, nonce := make([]byte, 16), make([]byte, 12)
		if _, err := rand.Read(salt); err != nil {
			return err
		}
		if _, err := rand.Read(nonce); err != nil {
			return err
		}
		payload, err = storage.EncryptGCM(m.data, m.opts.Password, salt, nonce)
		if err != nil {
			return err
		}
		contentType = "application/octet-stream"
	}

	_, err = store.UploadFile(ctx, key, payload, contentType)
	return err
}
