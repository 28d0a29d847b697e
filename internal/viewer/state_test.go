package viewer

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialViewState(t *testing.T) {
	want := ViewState{Page: 1, TotalPages: UnknownPages, Zoom: DefaultZoom, Loading: true}
	if diff := cmp.Diff(want, InitialViewState()); diff != "" {
		t.Fatalf("initial state mismatch (-want +got):\n%s", diff)
	}
	s := InitialViewState()
	assert.False(t, s.PagesKnown())
	assert.Equal(t, 1, s.LastPage())
	assert.Equal(t, 1.0, s.Scale())
	assert.Equal(t, "1 / 1", s.Label())
}

func TestNextPageClampsAtLastPage(t *testing.T) {
	s := InitialViewState().WithTotalPages(3)
	var changed bool
	for i := 0; i < 2; i++ {
		s, changed = s.NextPage()
		require.True(t, changed)
	}
	assert.Equal(t, 3, s.Page)

	s, changed = s.NextPage()
	assert.False(t, changed)
	assert.Equal(t, 3, s.Page)
	assert.Equal(t, "3 / 3", s.Label())
}

func TestNextPageWhilePageCountUnknown(t *testing.T) {
	s, changed := InitialViewState().NextPage()
	assert.False(t, changed)
	assert.Equal(t, 1, s.Page)
}

func TestPrevPageClampsAtFirstPage(t *testing.T) {
	s := InitialViewState().WithTotalPages(4)
	s, changed := s.PrevPage()
	assert.False(t, changed)
	assert.Equal(t, 1, s.Page)

	s, _ = s.NextPage()
	s, changed = s.PrevPage()
	assert.True(t, changed)
	assert.Equal(t, 1, s.Page)
}

func TestZoomNotches(t *testing.T) {
	tests := []struct {
		name  string
		steps func(ViewState) ViewState
		want  Zoom
		scale float64
	}{
		{"six in clamps at max", repeat(6, ViewState.ZoomIn), MaxZoom, 2.0},
		{"three out clamps at min", repeat(3, ViewState.ZoomOut), MinZoom, 0.6},
		{"in then out returns to default", func(s ViewState) ViewState {
			s = repeat(4, ViewState.ZoomIn)(s)
			return repeat(4, ViewState.ZoomOut)(s)
		}, DefaultZoom, 1.0},
		{"one in", repeat(1, ViewState.ZoomIn), 6, 1.2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.steps(InitialViewState())
			assert.Equal(t, tt.want, got.Zoom)
			assert.Equal(t, tt.scale, got.Scale())
		})
	}
}

func TestZoomRoundTripHasNoDrift(t *testing.T) {
	s := InitialViewState()
	for i := 0; i < 100; i++ {
		s = repeat(5, ViewState.ZoomIn)(s)
		s = repeat(7, ViewState.ZoomOut)(s)
	}
	assert.Equal(t, MinZoom, s.Zoom)
	s = repeat(2, ViewState.ZoomIn)(s)
	assert.Equal(t, 1.0, s.Scale())
}

func TestWithTotalPages(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		total int
		want  ViewState
	}{
		{"five pages", 1, 5, ViewState{Page: 1, TotalPages: 5, Zoom: DefaultZoom}},
		{"zero pages keeps page one", 1, 0, ViewState{Page: 1, TotalPages: 0, Zoom: DefaultZoom}},
		{"page past end is clamped", 7, 4, ViewState{Page: 4, TotalPages: 4, Zoom: DefaultZoom}},
		{"negative count treated as empty", 1, -3, ViewState{Page: 1, TotalPages: 0, Zoom: DefaultZoom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := InitialViewState()
			s.Page = tt.page
			if diff := cmp.Diff(tt.want, s.WithTotalPages(tt.total)); diff != "" {
				t.Errorf("state mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestZeroPageDocumentNavigation(t *testing.T) {
	s := InitialViewState().WithTotalPages(0)
	assert.True(t, s.PagesKnown())
	assert.False(t, s.CanNext())
	assert.False(t, s.CanPrev())
	assert.Equal(t, "1 / 1", s.Label())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "closed", PhaseClosed.String())
	assert.Equal(t, "opening", PhaseOpening.String())
	assert.Equal(t, "loading", PhaseLoading.String())
	assert.Equal(t, "ready", PhaseReady.String())
	assert.Equal(t, "phase(9)", Phase(9).String())

	b, err := PhaseReady.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "ready", string(b))
}

func TestZoomString(t *testing.T) {
	assert.Equal(t, "1.0x", DefaultZoom.String())
	assert.Equal(t, "0.6x", MinZoom.String())
	assert.Equal(t, "2.0x", MaxZoom.String())
}

func repeat(n int, step func(ViewState) (ViewState, bool)) func(ViewState) ViewState {
	return func(s ViewState) ViewState {
		for i := 0; i < n; i++ {
			s, _ = step(s)
		}
		return s
	}
}

type walkOp int

const (
	walkNext walkOp = iota
	walkPrev
	walkZoomIn
	walkZoomOut
)

func (op walkOp) String() string {
	return [...]string{"next", "prev", "zoom_in", "zoom_out"}[op]
}

// walk applies steps random operations through apply and checks the bounds
// and one-notch-or-one-page movement after each of them.
func walk(t *testing.T, seed int64, steps int, get func() ViewState, apply func(walkOp) bool) {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < steps; i++ {
		op := walkOp(rng.Intn(4))
		before := get()
		changed := apply(op)
		after := get()

		if after.Page < 1 || after.Page > after.LastPage() {
			t.Fatalf("step %d %s: page %d outside [1, %d]", i, op, after.Page, after.LastPage())
		}
		if after.Zoom < MinZoom || after.Zoom > MaxZoom {
			t.Fatalf("step %d %s: zoom %d outside [%d, %d]", i, op, after.Zoom, MinZoom, MaxZoom)
		}

		want := before
		if changed {
			switch op {
			case walkNext:
				want.Page++
			case walkPrev:
				want.Page--
			case walkZoomIn:
				want.Zoom++
			case walkZoomOut:
				want.Zoom--
			}
		}
		if diff := cmp.Diff(want, after); diff != "" {
			t.Fatalf("step %d %s (changed=%v) moved more than one step (-want +got):\n%s", i, op, changed, diff)
		}
	}
}

func TestViewStateRandomWalk(t *testing.T) {
	for _, total := range []int{UnknownPages, 0, 1, 2, 9} {
		s := InitialViewState().WithTotalPages(total)
		if total == UnknownPages {
			s = InitialViewState()
		}
		walk(t, int64(total)+42, 5000, func() ViewState { return s }, func(op walkOp) bool {
			var changed bool
			switch op {
			case walkNext:
				s, changed = s.NextPage()
			case walkPrev:
				s, changed = s.PrevPage()
			case walkZoomIn:
				s, changed = s.ZoomIn()
			case walkZoomOut:
				s, changed = s.ZoomOut()
			}
			return changed
		})
	}
}
