package viewer

import "context"

// Surface is one rendered page.
type Surface struct {
	Page   int     `json:"page"`
	Scale  float64 `json:"scale"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
	MIME   string  `json:"mime"`
	Image  []byte  `json:"-"`
}

// Renderer is the rendering capability behind the viewer. Both calls may
// block; the controller always runs them off the event loop.
type Renderer interface {
	// Load reports the total page count of res.
	Load(ctx context.Context, res *Resource) (int, error)
	// RenderPage renders a 1-based page at the given scale.
	RenderPage(ctx context.Context, res *Resource, page int, scale float64) (*Surface, error)
}
