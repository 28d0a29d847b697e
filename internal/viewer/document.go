package viewer

import (
	"context"
	"reflect"
)

// Document is a fully built paginated document owned by the caller.
// Implementations should be pointer types: the viewer compares handles by
// identity and treats a different or non-comparable handle as a new document.
type Document interface {
	// Serialize returns the document's bytes (a PDF for the fitz renderer).
	Serialize(ctx context.Context) ([]byte, error)
	// Save writes the document under filename using the handle's own
	// export mechanism.
	Save(ctx context.Context, filename string) error
}

// sameDocument compares two handles by identity. Handles of different or
// non-comparable dynamic types are never the same.
func sameDocument(a, b Document) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
