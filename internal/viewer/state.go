package viewer

import "fmt"

// Zoom is the zoom level in notches of 0.2 scale units.
// Scale is derived only when rendering so repeated steps never drift.
type Zoom int

const (
	notchesPerUnit = 5

	// MinZoom is 0.6x, MaxZoom is 2.0x, DefaultZoom is 1.0x.
	MinZoom     Zoom = 3
	MaxZoom     Zoom = 10
	DefaultZoom Zoom = 5

	// UnknownPages marks a page count the renderer has not reported yet.
	UnknownPages = -1
)

// Scale returns the render scale factor for z.
func (z Zoom) Scale() float64 { return float64(z) / notchesPerUnit }

func (z Zoom) String() string { return fmt.Sprintf("%.1fx", z.Scale()) }

// ViewState is the navigation state of one viewing session.
type ViewState struct {
	Page       int
	TotalPages int
	Zoom       Zoom
	Loading    bool
}

// InitialViewState is the state every session starts from.
func InitialViewState() ViewState {
	return ViewState{Page: 1, TotalPages: UnknownPages, Zoom: DefaultZoom, Loading: true}
}

// PagesKnown reports whether the renderer has reported a page count.
func (s ViewState) PagesKnown() bool { return s.TotalPages >= 0 }

// LastPage is the upper page bound: max(totalPages, 1).
func (s ViewState) LastPage() int {
	if s.TotalPages < 1 {
		return 1
	}
	return s.TotalPages
}

func (s ViewState) Scale() float64 { return s.Zoom.Scale() }

func (s ViewState) CanPrev() bool { return s.Page > 1 }
func (s ViewState) CanNext() bool { return s.Page < s.LastPage() }

// Label renders the page indicator, e.g. "3 / 12".
func (s ViewState) Label() string { return fmt.Sprintf("%d / %d", s.Page, s.LastPage()) }

// NextPage advances one page. At the last page (or while the page count is
// unknown) it is a no-op and changed is false.
func (s ViewState) NextPage() (next ViewState, changed bool) {
	if !s.CanNext() {
		return s, false
	}
	s.Page++
	return s, true
}

// PrevPage moves back one page; a no-op on page 1.
func (s ViewState) PrevPage() (next ViewState, changed bool) {
	if !s.CanPrev() {
		return s, false
	}
	s.Page--
	return s, true
}

// ZoomIn adds one notch, clamped at MaxZoom.
func (s ViewState) ZoomIn() (next ViewState, changed bool) {
	if s.Zoom >= MaxZoom {
		s.Zoom = MaxZoom
		return s, false
	}
	s.Zoom++
	return s, true
}

// ZoomOut removes one notch, clamped at MinZoom.
func (s ViewState) ZoomOut() (next ViewState, changed bool) {
	if s.Zoom <= MinZoom {
		s.Zoom = MinZoom
		return s, false
	}
	s.Zoom--
	return s, true
}

// WithTotalPages records the renderer's page count and ends loading.
// The current page is clamped into the new bounds.
func (s ViewState) WithTotalPages(n int) ViewState {
	if n < 0 {
		n = 0
	}
	s.TotalPages = n
	s.Loading = false
	if s.Page > s.LastPage() {
		s.Page = s.LastPage()
	}
	if s.Page < 1 {
		s.Page = 1
	}
	return s
}

// Phase is the controller's lifecycle phase.
type Phase int

const (
	PhaseClosed Phase = iota
	PhaseOpening
	PhaseLoading
	PhaseReady
)

func (p Phase) String() string {
	switch p {
	case PhaseClosed:
		return "closed"
	case PhaseOpening:
		return "opening"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText lets snapshots encode the phase by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }
