package preview

import (
	"context"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	"previewsync/internal/fileset"
)

// TargetKind distinguishes the two preview backings.
type TargetKind string

const (
	TargetDeployed TargetKind = "deployed"
	TargetSandbox  TargetKind = "sandbox"
)

// Target is the active preview backing. Exactly one is active at a time.
type Target struct {
	Kind  TargetKind `json:"kind"`
	URL   string     `json:"url"`
	Ready bool       `json:"ready"`
}

// FrameState is the embedded iframe's lifecycle, gated on the readiness
// handshake from the preview runtime.
type FrameState string

const (
	FrameIdle    FrameState = "idle"
	FrameLoading FrameState = "loading"
	FrameReady   FrameState = "ready"
)

// SandboxState is the dev-sandbox lifecycle.
type SandboxState string

const (
	SandboxStopped  SandboxState = "stopped"
	SandboxStarting SandboxState = "starting"
	SandboxRunning  SandboxState = "running"
	SandboxStopping SandboxState = "stopping"
)

const sandboxCallTimeout = 30 * time.Second

// Config wires a Reconciler to its document and collaborators.
type Config struct {
	DocumentID string
	Sandbox    SandboxControl
	// OnReload is invoked when the iframe must load a new URL (normalized URL
	// changed). May be nil.
	OnReload func(url string)
	// Send delivers an outbound bridge message to the embedded preview. May be
	// nil when no bridge is connected.
	Send func(Message)
}

// Reconciler owns the preview target, the dev-sandbox lifecycle, and the
// debounced push of file updates. It holds a read/transform view over the
// session's file set but never owns it.
type Reconciler struct {
	documentID string
	sandbox    SandboxControl

	mu            sync.Mutex
	target        Target
	normalizedURL string
	frame         FrameState
	sandboxState  SandboxState
	lifecycleBusy bool
	lastDeployed  string
	handshake     HandshakeState
	onReload      func(string)
	send          func(Message)

	codeEdit   *Debouncer[[]fileset.File]
	visualEdit *Debouncer[[]fileset.File]
	codeUpdate *Debouncer[fileset.File]
}

func NewReconciler(cfg Config) *Reconciler {
	r := &Reconciler{
		documentID:   cfg.DocumentID,
		sandbox:      cfg.Sandbox,
		frame:        FrameIdle,
		sandboxState: SandboxStopped,
		handshake:    HandshakeIdle,
		onReload:     cfg.OnReload,
		send:         cfg.Send,
	}
	r.codeEdit = NewDebouncer(DebounceCodeEdit, r.pushFiles)
	r.visualEdit = NewDebouncer(DebounceVisualEdit, r.pushFiles)
	r.codeUpdate = NewDebouncer(DebounceCodeUpdate, r.sendCodeUpdate)
	return r
}

// NormalizeURL strips the query string and fragment, keeping
// scheme+host+path. Cache-busting parameters alone must never force a reload.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// SetDeployedURL switches the preview to a static deployment. The iframe
// reloads only when the normalized URL actually changed.
func (r *Reconciler) SetDeployedURL(rawURL string) {
	r.setTarget(Target{Kind: TargetDeployed, URL: rawURL, Ready: false})
	r.mu.Lock()
	r.lastDeployed = rawURL
	r.mu.Unlock()
}

func (r *Reconciler) setTarget(t Target) {
	if r == nil {
		return
	}
	normalized := NormalizeURL(t.URL)

	r.mu.Lock()
	changed := normalized != "" && normalized != r.normalizedURL
	r.target = t
	if changed {
		r.normalizedURL = normalized
		r.frame = FrameLoading
	}
	reload := r.onReload
	r.mu.Unlock()

	if changed && reload != nil {
		reload(t.URL)
	}
}

// Target returns the active preview target.
func (r *Reconciler) Target() Target {
	if r == nil {
		return Target{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

func (r *Reconciler) Frame() FrameState {
	if r == nil {
		return FrameIdle
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frame
}

func (r *Reconciler) Sandbox() SandboxState {
	if r == nil {
		return SandboxStopped
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sandboxState
}

func (r *Reconciler) Handshake() HandshakeState {
	if r == nil {
		return HandshakeIdle
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handshake
}

// HandleReady records a readiness handshake from the preview runtime.
func (r *Reconciler) HandleReady(msgType MessageType) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frame = FrameReady
	r.target.Ready = true
	if msgType == MsgVisualEditReady && r.handshake == HandshakeIdle {
		r.handshake = HandshakeReady
	}
}

// EnableVisualEdit starts the dev sandbox if none exists and tells the preview
// runtime to enter visual-edit mode. At most one start/stop is ever in flight
// for a document; a second call while busy is a no-op.
func (r *Reconciler) EnableVisualEdit(ctx context.Context) {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.handshake != HandshakeEnabled {
		r.handshake = HandshakeEnabled
	}
	needStart := r.sandboxState == SandboxStopped && !r.lifecycleBusy && r.sandbox != nil
	if needStart {
		r.lifecycleBusy = true
		r.sandboxState = SandboxStarting
	}
	send := r.send
	r.mu.Unlock()

	if send != nil {
		send(Message{Type: MsgVisualEditEnable})
	}
	if !needStart {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, sandboxCallTimeout)
	defer cancel()
	sandboxURL, err := r.sandbox.Start(cctx, r.documentID)

	r.mu.Lock()
	r.lifecycleBusy = false
	if err != nil {
		r.sandboxState = SandboxStopped
		fallback := r.lastDeployed
		r.mu.Unlock()
		log.Printf("preview[%s]: sandbox start failed, keeping deployed preview: %v", r.documentID, err)
		if fallback != "" {
			r.setTarget(Target{Kind: TargetDeployed, URL: fallback})
		}
		return
	}
	r.sandboxState = SandboxRunning
	r.mu.Unlock()

	r.setTarget(Target{Kind: TargetSandbox, URL: sandboxURL})
}

// DisableVisualEdit leaves visual-edit mode and stops the sandbox, falling
// back to the last known deployed preview.
func (r *Reconciler) DisableVisualEdit(ctx context.Context) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.handshake = HandshakeDisabled
	needStop := r.sandboxState == SandboxRunning && !r.lifecycleBusy && r.sandbox != nil
	if needStop {
		r.lifecycleBusy = true
		r.sandboxState = SandboxStopping
	}
	send := r.send
	fallback := r.lastDeployed
	r.mu.Unlock()

	if send != nil {
		send(Message{Type: MsgVisualEditDisable})
	}
	if !needStop {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, sandboxCallTimeout)
	defer cancel()
	err := r.sandbox.Stop(cctx, r.documentID)

	r.mu.Lock()
	r.lifecycleBusy = false
	r.sandboxState = SandboxStopped
	r.mu.Unlock()

	if err != nil {
		log.Printf("preview[%s]: sandbox stop failed: %v", r.documentID, err)
	}
	if fallback != "" {
		r.setTarget(Target{Kind: TargetDeployed, URL: fallback})
	}
}

// PushCodeEdit schedules a full-set push on the slow code-panel window.
func (r *Reconciler) PushCodeEdit(files []fileset.File) {
	if r == nil {
		return
	}
	r.codeEdit.Push(files)
}

// PushVisualEdit schedules a full-set push on the fast visual-edit window.
func (r *Reconciler) PushVisualEdit(files []fileset.File) {
	if r == nil {
		return
	}
	r.visualEdit.Push(files)
}

// PushCodeUpdate schedules a lightweight single-file update to an
// already-rendered, non-sandbox preview via the bridge.
func (r *Reconciler) PushCodeUpdate(file fileset.File) {
	if r == nil {
		return
	}
	r.codeUpdate.Push(file)
}

// CancelPending clears all pending debounce timers without delivering. Used by
// the session's cooperative cancel.
func (r *Reconciler) CancelPending() {
	if r == nil {
		return
	}
	r.codeEdit.Stop()
	r.visualEdit.Stop()
	r.codeUpdate.Stop()
}

// Close tears the reconciler down: pending pushes are dropped and a running
// sandbox is stopped.
func (r *Reconciler) Close(ctx context.Context) {
	if r == nil {
		return
	}
	r.CancelPending()
	r.DisableVisualEdit(ctx)
}

func (r *Reconciler) pushFiles(files []fileset.File) {
	r.mu.Lock()
	running := r.sandboxState == SandboxRunning && r.sandbox != nil
	r.mu.Unlock()
	if !running {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sandboxCallTimeout)
	defer cancel()
	if err := r.sandbox.UpdateFiles(ctx, r.documentID, files); err != nil {
		log.Printf("preview[%s]: sandbox file push failed: %v", r.documentID, err)
	}
}

func (r *Reconciler) sendCodeUpdate(file fileset.File) {
	r.mu.Lock()
	send := r.send
	r.mu.Unlock()
	if send == nil {
		return
	}
	send(Message{
		Type:      MsgCodeUpdate,
		FilePath:  file.Path,
		Content:   file.Content,
		Timestamp: time.Now().UnixMilli(),
	})
}

// SetSend attaches (or detaches) the outbound bridge delivery function when a
// preview connects or disconnects.
func (r *Reconciler) SetSend(send func(Message)) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.send = send
	r.mu.Unlock()
}
