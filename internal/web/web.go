package web

import (
    "context"
    "crypto/subtle"
    "encoding/json"
    "errors"
    "net/http"
    "path/filepath"
    "strings"
    "time"

    "github.com/rs/zerolog/log"

    "github.com/local/docviewer/internal/document"
    "github.com/local/docviewer/internal/eventloop"
    "github.com/local/docviewer/internal/statuscheck"
    "github.com/local/docviewer/internal/store"
    "github.com/local/docviewer/internal/viewer"
)

// LoadFunc turns a source reference into a document handle.
type LoadFunc func(ctx context.Context, ref, password string) (viewer.Document, error)

// MirrorReader reads the Redis copy of a viewer's state.
type MirrorReader interface {
    Get(ctx context.Context, viewerID string) (store.ViewRecord, bool, error)
}

// Options wires the HTTP surface to a running viewer.
type Options struct {
    Loop     *eventloop.Loop
    Ctrl     *viewer.Controller
    Binder   *viewer.Binder
    Load     LoadFunc
    Status   *statuscheck.Checker
    Mirror   MirrorReader
    ViewerID string
    Username string
    Password string
    // CallTimeout bounds how long a request waits for the event loop.
    CallTimeout time.Duration
}

// Web serves the viewer API. Every state access goes through the loop.
type Web struct {
    opts Options
}

func New(opts Options) *Web {
    if opts.CallTimeout <= 0 { opts.CallTimeout = 5 * time.Second }
    return &Web{opts: opts}
}

func (w *Web) RegisterRoutes(mux *http.ServeMux) {
    mux.HandleFunc("/health", func(wr http.ResponseWriter, r *http.Request) { wr.WriteHeader(http.StatusOK); _, _ = wr.Write([]byte("ok")) })
    mux.HandleFunc("/status", w.requireAuth(w.handleStatus))
    mux.HandleFunc("/viewer", w.requireAuth(w.handleViewer))
    mux.HandleFunc("/viewer/open", w.requireAuth(w.handleOpen))
    mux.HandleFunc("/viewer/state", w.requireAuth(w.handleState))
    mux.HandleFunc("/viewer/page", w.requireAuth(w.handlePage))
    mux.HandleFunc("/viewer/next", w.requireAuth(w.navigation((*viewer.Controller).NextPage)))
    mux.HandleFunc("/viewer/prev", w.requireAuth(w.navigation((*viewer.Controller).PrevPage)))
    mux.HandleFunc("/viewer/zoom_in", w.requireAuth(w.navigation((*viewer.Controller).ZoomIn)))
    mux.HandleFunc("/viewer/zoom_out", w.requireAuth(w.navigation((*viewer.Controller).ZoomOut)))
    mux.HandleFunc("/viewer/export", w.requireAuth(w.handleExport))
    mux.HandleFunc("/viewer/mirror", w.requireAuth(w.handleMirror))
}

func (w *Web) requireAuth(next http.HandlerFunc) http.HandlerFunc {
    return func(wr http.ResponseWriter, r *http.Request) {
        if w.opts.Username == "" && w.opts.Password == "" {
            next(wr, r)
            return
        }
        user, pass, ok := r.BasicAuth()
        if !ok || !equal(user, w.opts.Username) || !equal(pass, w.opts.Password) {
            wr.Header().Set("WWW-Authenticate", `Basic realm="docviewer"`)
            http.Error(wr, "unauthorized", http.StatusUnauthorized)
            return
        }
        next(wr, r)
    }
}

func equal(a, b string) bool { return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1 }

type openReq struct {
    Source   string `json:"source"`
    Title    string `json:"title"`
    Filename string `json:"filename"`
    Password string `json:"password"`
}

// handleOpen loads the document off the loop, then hands it to the binder.
func (w *Web) handleOpen(wr http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { wr.WriteHeader(http.StatusMethodNotAllowed); return }
    defer r.Body.Close()
    var req openReq
    if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
        http.Error(wr, "invalid json", http.StatusBadRequest); return
    }
    if req.Source == "" {
        http.Error(wr, "missing source", http.StatusBadRequest); return
    }
    if req.Filename != "" && !exportNameAllowed(req.Filename) {
        http.Error(wr, msgBadExportName, http.StatusBadRequest); return
    }

    doc, err := w.opts.Load(r.Context(), req.Source, req.Password)
    if err != nil {
        log.Warn().Err(err).Str("source", req.Source).Msg("document load failed")
        status := http.StatusUnprocessableEntity
        if errors.Is(err, document.ErrOutsideRoot) || errors.Is(err, document.ErrSourceDisabled) {
            status = http.StatusForbidden
        }
        http.Error(wr, err.Error(), status); return
    }

    snap, err := call(w, r.Context(), func() viewer.Snapshot {
        w.opts.Binder.SetTitle(req.Title)
        w.opts.Binder.SetFilename(req.Filename)
        w.opts.Binder.Update(true, doc)
        return w.opts.Ctrl.Snapshot()
    })
    if err != nil { w.loopError(wr, err); return }
    writeJSON(wr, http.StatusAccepted, snap)
}

// handleViewer: DELETE dismisses the viewer.
func (w *Web) handleViewer(wr http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodDelete { wr.WriteHeader(http.StatusMethodNotAllowed); return }
    snap, err := call(w, r.Context(), func() viewer.Snapshot {
        w.opts.Ctrl.Dismiss()
        return w.opts.Ctrl.Snapshot()
    })
    if err != nil { w.loopError(wr, err); return }
    writeJSON(wr, http.StatusOK, snap)
}

func (w *Web) handleState(wr http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { wr.WriteHeader(http.StatusMethodNotAllowed); return }
    snap, err := call(w, r.Context(), w.opts.Ctrl.Snapshot)
    if err != nil { w.loopError(wr, err); return }
    writeJSON(wr, http.StatusOK, snap)
}

func (w *Web) handlePage(wr http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { wr.WriteHeader(http.StatusMethodNotAllowed); return }
    surf, err := call(w, r.Context(), w.opts.Ctrl.Surface)
    if err != nil { w.loopError(wr, err); return }
    if surf == nil {
        http.Error(wr, "no rendered page", http.StatusNotFound); return
    }
    wr.Header().Set("Content-Type", surf.MIME)
    wr.Header().Set("Cache-Control", "no-store")
    _, _ = wr.Write(surf.Image)
}

type navResp struct {
    Changed bool            `json:"changed"`
    State   viewer.Snapshot `json:"state"`
}

// navigation wraps a page or zoom transition. A clamped action is a
// normal 200 with changed=false.
func (w *Web) navigation(step func(*viewer.Controller) bool) http.HandlerFunc {
    return func(wr http.ResponseWriter, r *http.Request) {
        if r.Method != http.MethodPost { wr.WriteHeader(http.StatusMethodNotAllowed); return }
        resp, err := call(w, r.Context(), func() navResp {
            changed := step(w.opts.Ctrl)
            return navResp{Changed: changed, State: w.opts.Ctrl.Snapshot()}
        })
        if err != nil { w.loopError(wr, err); return }
        writeJSON(wr, http.StatusOK, resp)
    }
}

type exportReq struct {
    Filename string `json:"filename"`
}

type exportResp struct {
    Exported bool   `json:"exported"`
    Filename string `json:"filename,omitempty"`
}

const msgBadExportName = "filename must be a relative name inside the export dir or an s3:// URL"

// exportNameAllowed accepts s3:// targets and relative names that stay inside EXPORT_DIR.
func exportNameAllowed(name string) bool {
    if strings.HasPrefix(name, "s3://") { return true }
    return filepath.IsLocal(name)
}

func (w *Web) handleExport(wr http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodPost { wr.WriteHeader(http.StatusMethodNotAllowed); return }
    defer r.Body.Close()
    var req exportReq
    if r.ContentLength != 0 {
        if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
            http.Error(wr, "invalid json", http.StatusBadRequest); return
        }
    }
    if req.Filename != "" && !exportNameAllowed(req.Filename) {
        http.Error(wr, msgBadExportName, http.StatusBadRequest); return
    }

    type target struct {
        doc      viewer.Document
        filename string
    }
    t, err := call(w, r.Context(), func() target {
        return target{doc: w.opts.Binder.Document(), filename: w.opts.Ctrl.Filename()}
    })
    if err != nil { w.loopError(wr, err); return }
    if req.Filename != "" { t.filename = req.Filename }
    if t.doc == nil {
        writeJSON(wr, http.StatusOK, exportResp{Exported: false}); return
    }

    // Save may hit the network; keep it off the loop.
    if err := viewer.Export(r.Context(), t.doc, t.filename); err != nil {
        http.Error(wr, err.Error(), http.StatusBadGateway); return
    }
    writeJSON(wr, http.StatusOK, exportResp{Exported: true, Filename: t.filename})
}

func (w *Web) handleMirror(wr http.ResponseWriter, r *http.Request) {
    if r.Method != http.MethodGet { wr.WriteHeader(http.StatusMethodNotAllowed); return }
    if w.opts.Mirror == nil {
        http.Error(wr, "state mirror disabled", http.StatusNotFound); return
    }
    rec, ok, err := w.opts.Mirror.Get(r.Context(), w.opts.ViewerID)
    if err != nil { http.Error(wr, err.Error(), http.StatusBadGateway); return }
    if !ok { http.Error(wr, "no mirrored state", http.StatusNotFound); return }
    writeJSON(wr, http.StatusOK, rec)
}

func (w *Web) handleStatus(wr http.ResponseWriter, r *http.Request) {
    if w.opts.Status == nil {
        http.Error(wr, "status checks disabled", http.StatusNotFound); return
    }
    writeJSON(wr, http.StatusOK, w.opts.Status.Summary(r.Context()))
}

// call runs fn on the viewer loop, bounded by CallTimeout.
func call[T any](w *Web, ctx context.Context, fn func() T) (T, error) {
    ctx, cancel := context.WithTimeout(ctx, w.opts.CallTimeout)
    defer cancel()
    return eventloop.Call(ctx, w.opts.Loop, fn)
}

func (w *Web) loopError(wr http.ResponseWriter, err error) {
    log.Error().Err(err).Msg("viewer event loop call failed")
    if errors.Is(err, context.DeadlineExceeded) {
        http.Error(wr, "viewer busy", http.StatusGatewayTimeout); return
    }
    http.Error(wr, "viewer unavailable", http.StatusServiceUnavailable)
}

func writeJSON(wr http.ResponseWriter, status int, v any) {
    wr.Header().Set("Content-Type", "application/json")
    wr.WriteHeader(status)
    _ = json.NewEncoder(wr).Encode(v)
}
