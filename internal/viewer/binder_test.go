package viewer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinderOpensOnlyWhenActive(t *testing.T) {
	h := newHarness(t, &fakeRenderer{pages: 2})
	doc := &fakeDoc{data: pdfBytes}

	h.binder.SetOpen(true)
	assert.Equal(t, PhaseClosed, h.ctrl.Phase(), "open without a document stays closed")

	h.binder.SetDocument(doc)
	assert.Equal(t, PhaseOpening, h.ctrl.Phase())
	assert.True(t, h.binder.IsOpen())
	assert.Same(t, doc, h.binder.Document())
}

func TestBinderSameHandleDoesNotReopen(t *testing.T) {
	h := newHarness(t, &fakeRenderer{pages: 2})
	doc := &fakeDoc{data: pdfBytes}

	h.binder.Update(true, doc)
	id := h.ctrl.SessionID()
	h.binder.Update(true, doc)
	h.binder.SetOpen(true)
	assert.Equal(t, id, h.ctrl.SessionID())
}

func TestBinderHandleChangeStartsNewSession(t *testing.T) {
	h := newHarness(t, &fakeRenderer{pages: 2})
	first := &fakeDoc{data: pdfBytes}
	second := &fakeDoc{data: pdfBytes}

	h.binder.Update(true, first)
	h.runAll()
	h.ctrl.NextPage()
	firstID := h.ctrl.SessionID()

	h.binder.SetDocument(second)
	assert.NotEqual(t, firstID, h.ctrl.SessionID())
	assert.Equal(t, PhaseOpening, h.ctrl.Phase())
	assert.Equal(t, 1, h.ctrl.State().Page)
}

// valueDoc is a non-comparable Document value.
type valueDoc struct{ pages []byte }

func (d valueDoc) Serialize(ctx context.Context) ([]byte, error)   { return d.pages, nil }
func (d valueDoc) Save(ctx context.Context, filename string) error { return nil }

func TestBinderNonComparableHandle(t *testing.T) {
	h := newHarness(t, &fakeRenderer{pages: 2})

	require.NotPanics(t, func() { h.binder.Update(true, valueDoc{pages: pdfBytes}) })
	first := h.ctrl.SessionID()
	assert.Equal(t, PhaseOpening, h.ctrl.Phase())

	require.NotPanics(t, func() { h.binder.SetDocument(valueDoc{pages: pdfBytes}) })
	assert.NotEqual(t, first, h.ctrl.SessionID(), "non-comparable handles count as new documents")
	assert.True(t, h.binder.IsOpen())

	ptr := &fakeDoc{data: pdfBytes}
	require.NotPanics(t, func() { h.binder.SetDocument(ptr) })
	assert.Same(t, ptr, h.binder.Document())
	assert.Equal(t, PhaseOpening, h.ctrl.Phase())

	h.binder.SetOpen(false)
	assert.Equal(t, PhaseClosed, h.ctrl.Phase())
}

func TestSameDocument(t *testing.T) {
	a, b := &fakeDoc{}, &fakeDoc{}
	assert.True(t, sameDocument(a, a))
	assert.False(t, sameDocument(a, b))
	assert.True(t, sameDocument(nil, nil))
	assert.False(t, sameDocument(a, nil))
	assert.False(t, sameDocument(nil, valueDoc{}))
	assert.False(t, sameDocument(valueDoc{}, valueDoc{}))
	assert.False(t, sameDocument(a, valueDoc{}))
}

func TestBinderCloseAndReopen(t *testing.T) {
	h := newHarness(t, &fakeRenderer{pages: 2})
	doc := &fakeDoc{data: pdfBytes}

	h.binder.Update(true, doc)
	h.runAll()
	h.binder.SetOpen(false)
	assert.Equal(t, PhaseClosed, h.ctrl.Phase())

	// a document change while inactive does nothing
	other := &fakeDoc{data: pdfBytes}
	h.binder.SetDocument(other)
	assert.Equal(t, PhaseClosed, h.ctrl.Phase())

	h.binder.SetOpen(true)
	assert.Equal(t, PhaseOpening, h.ctrl.Phase())
	h.runAll()
	assert.Equal(t, PhaseReady, h.ctrl.Phase())

	h.binder.Update(true, nil)
	assert.Equal(t, PhaseClosed, h.ctrl.Phase())
}

func TestDismissFlipsOwnerOpenFlag(t *testing.T) {
	h := newHarness(t, &fakeRenderer{pages: 2})
	h.binder.Update(true, &fakeDoc{data: pdfBytes})
	h.runAll()

	h.ctrl.Dismiss()
	assert.False(t, h.binder.IsOpen())
	assert.Equal(t, PhaseClosed, h.ctrl.Phase())
}

func TestDismissWithoutOwnerIsNoop(t *testing.T) {
	c, err := New(Options{Renderer: &fakeRenderer{}, Post: func(fn func()) { fn() }})
	require.NoError(t, err)
	assert.NotPanics(t, c.Dismiss)
}

func TestBinderExportUsesFilename(t *testing.T) {
	h := newHarness(t, &fakeRenderer{pages: 1})
	require.NoError(t, h.binder.Export(context.Background()), "no document is a no-op")

	doc := &fakeDoc{data: pdfBytes}
	h.binder.Update(false, doc)
	require.NoError(t, h.binder.Export(context.Background()))
	assert.Equal(t, []string{DefaultFilename}, doc.saved)

	doc.saveErr = errors.New("read-only")
	err := h.binder.Export(context.Background())
	var exportErr *ExportError
	require.ErrorAs(t, err, &exportErr)
	assert.Equal(t, DefaultFilename, exportErr.Filename)
}
