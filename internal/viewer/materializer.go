package viewer

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/local/docviewer/internal/filetype"
)

// Resource is the renderable form of a document for one session.
type Resource struct {
	Data    []byte
	MIME    string
	Locator string // data:<mime>;base64,<payload>
}

// Size returns the resource's byte length.
func (r *Resource) Size() int {
	if r == nil {
		return 0
	}
	return len(r.Data)
}

// Materializer converts a document handle into a Resource.
type Materializer interface {
	Materialize(ctx context.Context, doc Document) (*Resource, error)
}

// MaterializerFunc adapts a function to Materializer.
type MaterializerFunc func(ctx context.Context, doc Document) (*Resource, error)

func (f MaterializerFunc) Materialize(ctx context.Context, doc Document) (*Resource, error) {
	return f(ctx, doc)
}

// DataURLMaterializer serializes the document and wraps it in a data URL.
type DataURLMaterializer struct{}

// NewDataURLMaterializer returns the default materializer.
func NewDataURLMaterializer() *DataURLMaterializer { return &DataURLMaterializer{} }

// Materialize serializes doc. Errors, panics and empty output are reported
// as plain errors; the controller wraps them with the session.
func (m *DataURLMaterializer) Materialize(ctx context.Context, doc Document) (res *Resource, err error) {
	if doc == nil {
		return nil, fmt.Errorf("materialize: nil document")
	}
	defer func() {
		if v := recover(); v != nil {
			res, err = nil, panicError(v)
		}
	}()

	data, err := doc.Serialize(ctx)
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyDocument
	}

	info := filetype.DetectBytes(data)
	return &Resource{
		Data:    data,
		MIME:    info.MIMEType,
		Locator: DataURL(info.MIMEType, data),
	}, nil
}

// DataURL builds a base64 data URL.
func DataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
