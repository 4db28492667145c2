package page

import (
	"html/template"
	"sync"
)

// ToastKind selects the styling of a transient notification.
type ToastKind string

const (
	ToastSuccess ToastKind = "success"
	ToastError   ToastKind = "error"
	ToastInfo    ToastKind = "info"
)

// Modal is an overlay dialog shown by the browser runtime.
type Modal struct {
	Title   string
	Body    template.HTML
	Actions []ModalAction
}

// ModalAction is a button inside a Modal. Clicking it dispatches Action
// to the page named Page.
type ModalAction struct {
	Label  string
	Page   string
	Action string
	ID     string
	Style  string
}

// Container is the mount point of a page. Replace swaps the whole page
// markup, Patch swaps the contents of the element whose id is region.
type Container interface {
	Replace(html string) error
	Patch(region, html string) error
	Toast(kind ToastKind, message string) error
	Modal(m Modal) error
	Download(filename, contentType string, data []byte) error
}

// Toast is a recorded notification.
type Toast struct {
	Kind    ToastKind
	Message string
}

// Download is a recorded file download.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Recorder is an in-memory Container. The frontend uses it for the
// server-side snapshot of a route; tests use it to inspect output.
type Recorder struct {
	mu        sync.Mutex
	html      string
	regions   map[string]string
	replaces  int
	patches   int
	toasts    []Toast
	modals    []Modal
	downloads []Download
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{regions: make(map[string]string)}
}

func (r *Recorder) Replace(html string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.html = html
	r.replaces++
	// A full replace rebuilds every region.
	clear(r.regions)
	return nil
}

func (r *Recorder) Patch(region, html string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regions[region] = html
	r.patches++
	return nil
}

func (r *Recorder) Toast(kind ToastKind, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, Toast{Kind: kind, Message: message})
	return nil
}

func (r *Recorder) Modal(m Modal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modals = append(r.modals, m)
	return nil
}

func (r *Recorder) Download(filename, contentType string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloads = append(r.downloads, Download{Filename: filename, ContentType: contentType, Data: data})
	return nil
}

// HTML returns the last full markup.
func (r *Recorder) HTML() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.html
}

// Region returns the last patch for region, if any since the last Replace.
func (r *Recorder) Region(region string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	html, ok := r.regions[region]
	return html, ok
}

// Replaces returns the number of full replaces.
func (r *Recorder) Replaces() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.replaces
}

// Patches returns the number of partial patches.
func (r *Recorder) Patches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.patches
}

// Toasts returns the recorded toasts.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Toast(nil), r.toasts...)
}

// Modals returns the recorded modals.
func (r *Recorder) Modals() []Modal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Modal(nil), r.modals...)
}

// Downloads returns the recorded downloads.
func (r *Recorder) Downloads() []Download {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Download(nil), r.downloads...)
}
