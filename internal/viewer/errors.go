package viewer

import (
	"errors"
	"fmt"
)

// ErrEmptyDocument is returned when a document serializes to zero bytes.
var ErrEmptyDocument = errors.New("document serialized to empty output")

// MaterializationError means the document could not be turned into a
// renderable resource. It ends the session's chance to render; only a
// close and reopen retries.
type MaterializationError struct {
	Session string
	Err     error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("materialize session %s: %v", e.Session, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }

// RenderError is a failed page load or page render. The last good surface
// stays on screen.
type RenderError struct {
	Session string
	Page    int // 0 for a page-count load
	Scale   float64
	Err     error
}

func (e *RenderError) Error() string {
	if e.Page == 0 {
		return fmt.Sprintf("load session %s: %v", e.Session, e.Err)
	}
	return fmt.Sprintf("render page %d at %.1fx (session %s): %v", e.Page, e.Scale, e.Session, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// ExportError wraps a failed save on the document handle.
type ExportError struct {
	Filename string
	Err      error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Filename, e.Err)
}

func (e *ExportError) Unwrap() error { return e.Err }

// panicError turns a recovered panic value into an error.
func panicError(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}
