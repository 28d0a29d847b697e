package viewer

import "context"

// Binder couples the owner's open flag and document handle to the
// controller. Like the controller it must only be used from the event loop.
type Binder struct {
	ctrl *Controller
	open bool
	doc  Document
}

func NewBinder(ctrl *Controller) *Binder {
	return &Binder{ctrl: ctrl}
}

func (b *Binder) SetOpen(open bool)              { b.apply(open, b.doc) }
func (b *Binder) SetDocument(doc Document)       { b.apply(b.open, doc) }
func (b *Binder) Update(open bool, doc Document) { b.apply(open, doc) }

func (b *Binder) SetTitle(title string)       { b.ctrl.SetTitle(title) }
func (b *Binder) SetFilename(filename string) { b.ctrl.SetFilename(filename) }

func (b *Binder) IsOpen() bool       { return b.open }
func (b *Binder) Document() Document { return b.doc }

// Export saves the bound document under the configured filename. It works
// whether or not the document ever rendered.
func (b *Binder) Export(ctx context.Context) error {
	return Export(ctx, b.doc, b.ctrl.Filename())
}

// apply opens a session when the viewer becomes active or its document is
// replaced while active, and closes it when it stops being active.
func (b *Binder) apply(open bool, doc Document) {
	wasActive := b.open && b.doc != nil
	replaced := !sameDocument(b.doc, doc)
	b.open, b.doc = open, doc
	active := open && doc != nil

	switch {
	case active && (!wasActive || replaced):
		b.ctrl.Open(doc)
	case !active && wasActive:
		b.ctrl.Close()
	}
}
