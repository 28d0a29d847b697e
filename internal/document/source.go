package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/docviewer/internal/filetype"
	"github.com/local/docviewer/internal/storage"
)

// maxSourceBytes bounds documents fetched over HTTP.
const maxSourceBytes = 256 << 20

var (
	// ErrOutsideRoot is returned for paths that resolve outside their root.
	ErrOutsideRoot = errors.New("path outside allowed root")

	// ErrSourceDisabled is returned for source kinds the Loader was not given.
	ErrSourceDisabled = errors.New("source kind disabled")
)

// Loader builds Memory handles from a source reference:
//   - file://path or a filesystem path, only inside Root
//   - http(s):// URLs, only when AllowHTTP is set
//   - s3://bucket/key (decrypted with the password when encrypted)
type Loader struct {
	HTTPClient *http.Client
	Stores     StoreFactory
	ExportDir  string

	// Root confines local sources. Empty disables them.
	Root      string
	AllowHTTP bool
}

// Load fetches ref and wraps it. Content MuPDF cannot render is rejected.
func (l *Loader) Load(ctx context.Context, ref, password string) (*Memory, error) {
	// Strip optional #page fragment if present
	if i := strings.Index(ref, "#"); i >= 0 {
		ref = ref[:i]
	}
	if ref == "" {
		return nil, fmt.Errorf("empty document source")
	}

	var (
		data []byte
		err  error
	)
	switch {
	case strings.HasPrefix(ref, "s3://"):
		data, err = l.loadS3(ctx, ref, password)
	case strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://"):
		data, err = l.loadHTTP(ctx, ref)
	default:
		data, err = l.loadLocal(strings.TrimPrefix(ref, "file://"))
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}

	info := filetype.DetectBytes(data)
	if !info.Renderable {
		return nil, fmt.Errorf("load %s: %s", ref, info.Description)
	}
	log.Info().Str("source", ref).Str("mime", info.MIMEType).Int("bytes", len(data)).Msg("document loaded")

	return New(filepath.Base(ref), data, Options{
		Password:  password,
		ExportDir: l.ExportDir,
		Stores:    l.Stores,
	}), nil
}

// loadLocal reads p relative to Root. Absolute paths must already lie under it.
func (l *Loader) loadLocal(p string) ([]byte, error) {
	if l.Root == "" {
		return nil, fmt.Errorf("local sources: %w", ErrSourceDisabled)
	}
	rel := p
	if filepath.IsAbs(p) {
		r, err := filepath.Rel(l.Root, p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, ErrOutsideRoot)
		}
		rel = r
	}
	if !filepath.IsLocal(rel) {
		return nil, fmt.Errorf("%s: %w", p, ErrOutsideRoot)
	}
	return os.ReadFile(filepath.Join(l.Root, rel))
}

func (l *Loader) loadHTTP(ctx context.Context, url string) ([]byte, error) {
	if !l.AllowHTTP {
		return nil, fmt.Errorf("http sources: %w", ErrSourceDisabled)
	}
	client := l.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSourceBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSourceBytes {
		return nil, fmt.Errorf("document larger than %d bytes", maxSourceBytes)
	}
	return data, nil
}

func (l *Loader) loadS3(ctx context.Context, url, password string) ([]byte, error) {
	if l.Stores == nil {
		return nil, fmt.Errorf("s3 sources not configured")
	}
	bucket, key, err := storage.ParseS3URL(url)
	if err != nil {
		return nil, err
	}
	store, err := l.Stores(ctx, bucket)
	if err != nil {
		return nil, err
	}
	return store.DownloadFile(ctx, key, password)
}

// S3Stores returns a StoreFactory backed by the default AWS config chain.
func S3Stores(partSizeMB int) StoreFactory {
	return func(ctx context.Context, bucket string) (ObjectStore, error) {
		cli, err := storage.NewS3Client(ctx, bucket, partSizeMB)
		if err != nil {
			return nil, err
		}
		return cli, nil
	}
}
