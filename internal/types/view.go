package types

// Rect is a surface position and size in host window coordinates.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// InitData is the context payload delivered exactly once to a view session,
// after its content finishes the initial load.
type InitData struct {
	InitialValue string         `json:"initialValue,omitempty"`
	Context      map[string]any `json:"context,omitempty"`
}

// Empty reports whether there is nothing to deliver.
func (d *InitData) Empty() bool {
	return d == nil || (d.InitialValue == "" && len(d.Context) == 0)
}

// SurfaceOptions is the isolation posture and presentation of a rendering
// surface. The zero value is NOT the default; use RestrictedSurfaceOptions.
type SurfaceOptions struct {
	NodeIntegration  bool   `json:"nodeIntegration"`
	ContextIsolation bool   `json:"contextIsolation"`
	WebSecurity      bool   `json:"webSecurity"`
	InlineScripts    bool   `json:"inlineScripts"`
	UserAgent        string `json:"userAgent,omitempty"`
	BackgroundColor  string `json:"backgroundColor,omitempty"`
}

// RestrictedSurfaceOptions is the most restrictive posture: no host-level
// API access, isolation on, inline script execution off.
func RestrictedSurfaceOptions() SurfaceOptions {
	return SurfaceOptions{
		NodeIntegration:  false,
		ContextIsolation: true,
		WebSecurity:      true,
		InlineScripts:    false,
	}
}

// CreateSurfaceParams describes an embedded subsurface to spawn inside the
// active view session.
type CreateSurfaceParams struct {
	ID      string          `json:"id,omitempty"`
	URL     string          `json:"url"`
	Bounds  *Rect           `json:"bounds,omitempty"`
	Options *SurfaceOptions `json:"options,omitempty"`
	Visible *bool           `json:"visible,omitempty"`
}

// ViewState is the session lifecycle state.
type ViewState int

const (
	ViewClosed ViewState = iota
	ViewOpening
	ViewOpen
)

// String implements fmt.Stringer.
func (s ViewState) String() string {
	switch s {
	case ViewOpening:
		return "opening"
	case ViewOpen:
		return "open"
	default:
		return "closed"
	}
}

// InputKind names the input events forwarded into an open session.
type InputKind string

const (
	InputChanged   InputKind = "search.input.changed"
	InputSubmitted InputKind = "search.input.submitted"
)

// InputMessage is a typed input event routed into the active session.
type InputMessage struct {
	Kind  InputKind `json:"kind"`
	Value string    `json:"value"`
}
