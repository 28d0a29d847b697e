package viewer

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/docviewer/internal/metrics"
)

const (
	DefaultTitle    = "PDF Document"
	DefaultFilename = "document.pdf"
)

// Options wires a Controller to its collaborators.
type Options struct {
	Materializer Materializer // defaults to DataURLMaterializer
	Renderer     Renderer

	// Post schedules fn on the event loop that owns the controller.
	// Every async completion re-enters the controller through Post.
	Post func(fn func())
	// Spawn runs blocking work off the loop. Defaults to a new goroutine.
	Spawn func(fn func())

	// OnOpenChange is told when the viewer wants to be closed.
	OnOpenChange func(open bool)
	// Observer receives a snapshot after every state change.
	Observer func(Snapshot)

	MaterializeTimeout time.Duration
	RenderTimeout      time.Duration

	Title    string
	Filename string
}

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	Phase        Phase    `json:"phase"`
	Session      string   `json:"session,omitempty"`
	Title        string   `json:"title"`
	Filename     string   `json:"filename"`
	Page         int      `json:"page"`
	TotalPages   int      `json:"total_pages"`
	Scale        float64  `json:"scale"`
	Loading      bool     `json:"loading"`
	PageLabel    string   `json:"page_label"`
	CanPrev      bool     `json:"can_prev"`
	CanNext      bool     `json:"can_next"`
	CanExport    bool     `json:"can_export"`
	HasResource  bool     `json:"has_resource"`
	ResourceMIME string   `json:"resource_mime,omitempty"`
	ResourceSize int      `json:"resource_size,omitempty"`
	Surface      *Surface `json:"surface,omitempty"`
	Error        string   `json:"error,omitempty"`
}

type session struct {
	id     string
	doc    Document
	res    *Resource
	err    error
	ctx    context.Context
	cancel context.CancelFunc
}

type renderKey struct {
	page int
	zoom Zoom
}

// Controller is the viewer state machine. It is not safe for concurrent
// use: every method must run on the event loop given by Options.Post.
type Controller struct {
	opts     Options
	title    string
	filename string

	phase     Phase
	state     ViewState
	sess      *session
	surface   *Surface
	renderErr error
	renderSeq uint64
	requested renderKey
}

// New validates opts and returns a closed controller.
func New(opts Options) (*Controller, error) {
	if opts.Renderer == nil {
		return nil, errors.New("viewer: renderer is required")
	}
	if opts.Post == nil {
		return nil, errors.New("viewer: post function is required")
	}
	if opts.Materializer == nil {
		opts.Materializer = NewDataURLMaterializer()
	}
	if opts.Spawn == nil {
		opts.Spawn = func(fn func()) { go fn() }
	}
	c := &Controller{opts: opts, state: InitialViewState()}
	c.SetTitle(opts.Title)
	c.SetFilename(opts.Filename)
	return c, nil
}

func (c *Controller) SetTitle(title string) {
	if title == "" {
		title = DefaultTitle
	}
	if title == c.title {
		return
	}
	c.title = title
	c.notify()
}

func (c *Controller) SetFilename(filename string) {
	if filename == "" {
		filename = DefaultFilename
	}
	if filename == c.filename {
		return
	}
	c.filename = filename
	c.notify()
}

func (c *Controller) Title() string    { return c.title }
func (c *Controller) Filename() string { return c.filename }
func (c *Controller) Phase() Phase     { return c.phase }
func (c *Controller) State() ViewState { return c.state }

// SessionID returns the live session ID, or "" when closed.
func (c *Controller) SessionID() string {
	if c.sess == nil {
		return ""
	}
	return c.sess.id
}

// Resource returns the live session's resource, if materialized.
func (c *Controller) Resource() *Resource {
	if c.sess == nil {
		return nil
	}
	return c.sess.res
}

// Surface returns the most recent successfully rendered page.
func (c *Controller) Surface() *Surface { return c.surface }

// Open starts a new session for doc, discarding any current one.
// A nil doc leaves the controller closed.
func (c *Controller) Open(doc Document) {
	if doc == nil {
		log.Debug().Msg("viewer open ignored: no document")
		c.Close()
		return
	}
	c.endSession()

	ctx, cancel := context.WithCancel(context.Background())
	s := &session{id: uuid.NewString(), doc: doc, ctx: ctx, cancel: cancel}
	c.sess = s
	c.phase = PhaseOpening
	c.state = InitialViewState()
	c.surface = nil
	c.renderErr = nil
	c.requested = renderKey{}

	metrics.SessionOpened()
	log.Info().Str("session", s.id).Str("title", c.title).Msg("viewer session opened")
	c.notify()

	materializer := c.opts.Materializer
	timeout := c.opts.MaterializeTimeout
	c.opts.Spawn(func() {
		mctx, cancel := withTimeout(s.ctx, timeout)
		defer cancel()
		start := time.Now()
		res, err := materialize(mctx, materializer, doc)
		log.Debug().Str("session", s.id).Dur("took", time.Since(start)).Int("bytes", res.Size()).Msg("materialize finished")
		c.opts.Post(func() { c.onMaterialized(s.id, res, err) })
	})
}

// Close ends the session, drops the resource and resets the view state.
func (c *Controller) Close() {
	wasOpen := c.phase != PhaseClosed || c.sess != nil
	c.endSession()
	c.phase = PhaseClosed
	c.state = InitialViewState()
	c.surface = nil
	c.renderErr = nil
	c.requested = renderKey{}
	if wasOpen {
		log.Info().Msg("viewer session closed")
		c.notify()
	}
}

// Dismiss is the user asking to close the viewer. The owner is told through
// OnOpenChange and is expected to flip its open signal.
func (c *Controller) Dismiss() {
	if c.opts.OnOpenChange != nil {
		c.opts.OnOpenChange(false)
	}
}

// NextPage moves forward one page. Only valid while loading or ready.
func (c *Controller) NextPage() bool {
	if c.phase != PhaseLoading && c.phase != PhaseReady {
		return false
	}
	return c.navigate("next", c.state.NextPage)
}

// PrevPage moves back one page. Only valid while loading or ready.
func (c *Controller) PrevPage() bool {
	if c.phase != PhaseLoading && c.phase != PhaseReady {
		return false
	}
	return c.navigate("prev", c.state.PrevPage)
}

// ZoomIn raises the scale by one notch. Valid in any open phase.
func (c *Controller) ZoomIn() bool {
	if c.phase == PhaseClosed {
		return false
	}
	return c.navigate("zoom_in", c.state.ZoomIn)
}

// ZoomOut lowers the scale by one notch. Valid in any open phase.
func (c *Controller) ZoomOut() bool {
	if c.phase == PhaseClosed {
		return false
	}
	return c.navigate("zoom_out", c.state.ZoomOut)
}

func (c *Controller) navigate(action string, step func() (ViewState, bool)) bool {
	next, changed := step()
	metrics.IncNavigation(action, changed)
	if !changed {
		return false
	}
	c.state = next
	c.notify()
	c.requestRender()
	return true
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:      c.phase,
		Title:      c.title,
		Filename:   c.filename,
		Page:       c.state.Page,
		TotalPages: c.state.TotalPages,
		Scale:      c.state.Scale(),
		Loading:    c.state.Loading,
		PageLabel:  c.state.Label(),
		CanPrev:    c.phase != PhaseClosed && c.state.CanPrev(),
		CanNext:    c.phase != PhaseClosed && c.state.CanNext(),
		Surface:    c.surface,
	}
	if s := c.sess; s != nil {
		snap.Session = s.id
		snap.CanExport = s.doc != nil
		if s.res != nil {
			snap.HasResource = true
			snap.ResourceMIME = s.res.MIME
			snap.ResourceSize = s.res.Size()
		}
		if s.err != nil {
			snap.Error = s.err.Error()
		}
	}
	if snap.Error == "" && c.renderErr != nil {
		snap.Error = c.renderErr.Error()
	}
	return snap
}

func (c *Controller) onMaterialized(id string, res *Resource, err error) {
	if !c.current(id) {
		metrics.IncStale("materialize")
		log.Debug().Str("session", id).Msg("discarding materialize result from superseded session")
		return
	}
	s := c.sess
	if err == nil && res.Size() == 0 {
		err = ErrEmptyDocument
	}
	if err != nil {
		s.err = &MaterializationError{Session: id, Err: err}
		metrics.IncMaterialize("error")
		log.Error().Err(err).Str("session", id).Msg("materialize failed; viewer stays loading")
		c.notify()
		return
	}
	metrics.IncMaterialize("success")
	s.res = res
	c.phase = PhaseLoading
	c.notify()
	c.load()
	c.requestRender()
}

func (c *Controller) load() {
	s := c.sess
	res := s.res
	renderer := c.opts.Renderer
	timeout := c.opts.RenderTimeout
	c.opts.Spawn(func() {
		lctx, cancel := withTimeout(s.ctx, timeout)
		defer cancel()
		n, err := loadPages(lctx, renderer, res)
		c.opts.Post(func() { c.onLoaded(s.id, n, err) })
	})
}

func (c *Controller) onLoaded(id string, n int, err error) {
	if !c.current(id) {
		metrics.IncStale("load")
		log.Debug().Str("session", id).Msg("discarding load result from superseded session")
		return
	}
	if c.phase != PhaseLoading {
		return
	}
	if err != nil {
		c.sess.err = &RenderError{Session: id, Err: err}
		metrics.IncLoad("error")
		log.Error().Err(err).Str("session", id).Msg("document load failed")
		c.notify()
		return
	}
	metrics.IncLoad("success")
	c.state = c.state.WithTotalPages(n)
	c.phase = PhaseReady
	log.Debug().Str("session", id).Int("total_pages", n).Msg("document loaded")
	c.notify()
	c.requestRender()
}

// requestRender asks for the current page at the current zoom. Requests
// before the page count is known render page 1, which is where the state
// sits until then. Only the newest request may land.
func (c *Controller) requestRender() {
	s := c.sess
	if s == nil || s.res == nil {
		return
	}
	key := renderKey{page: c.state.Page, zoom: c.state.Zoom}
	if key == c.requested {
		return
	}
	c.requested = key
	c.renderSeq++
	seq := c.renderSeq
	res := s.res
	renderer := c.opts.Renderer
	timeout := c.opts.RenderTimeout
	c.opts.Spawn(func() {
		rctx, cancel := withTimeout(s.ctx, timeout)
		defer cancel()
		start := time.Now()
		surf, err := renderPage(rctx, renderer, res, key.page, key.zoom.Scale())
		metrics.ObserveRender(resultLabel(err), time.Since(start))
		c.opts.Post(func() { c.onRendered(s.id, seq, key, surf, err) })
	})
}

func (c *Controller) onRendered(id string, seq uint64, key renderKey, surf *Surface, err error) {
	if !c.current(id) {
		metrics.IncStale("render")
		return
	}
	if seq != c.renderSeq {
		metrics.IncStale("render_superseded")
		log.Debug().Str("session", id).Uint64("render_seq", seq).Msg("discarding superseded render")
		return
	}
	if err != nil {
		c.renderErr = &RenderError{Session: id, Page: key.page, Scale: key.zoom.Scale(), Err: err}
		// The same page and zoom may be asked for again.
		c.requested = renderKey{}
		log.Warn().Err(err).Str("session", id).Int("page", key.page).Float64("scale", key.zoom.Scale()).Msg("page render failed; keeping previous surface")
		c.notify()
		return
	}
	c.surface = surf
	c.renderErr = nil
	c.notify()
}

func (c *Controller) current(id string) bool {
	return c.sess != nil && c.sess.id == id
}

func (c *Controller) endSession() {
	if c.sess == nil {
		return
	}
	c.sess.cancel()
	c.sess.res = nil
	c.sess = nil
	metrics.SessionClosed()
}

func (c *Controller) notify() {
	if c.opts.Observer != nil {
		c.opts.Observer(c.Snapshot())
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// The helpers below keep collaborator panics on the worker goroutine.

func materialize(ctx context.Context, m Materializer, doc Document) (res *Resource, err error) {
	defer func() {
		if v := recover(); v != nil {
			res, err = nil, panicError(v)
		}
	}()
	return m.Materialize(ctx, doc)
}

func loadPages(ctx context.Context, r Renderer, res *Resource) (n int, err error) {
	defer func() {
		if v := recover(); v != nil {
			n, err = 0, panicError(v)
		}
	}()
	return r.Load(ctx, res)
}

func renderPage(ctx context.Context, r Renderer, res *Resource, page int, scale float64) (surf *Surface, err error) {
	defer func() {
		if v := recover(); v != nil {
			surf, err = nil, panicError(v)
		}
	}()
	return r.RenderPage(ctx, res, page, scale)
}
