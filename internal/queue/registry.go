package queue

import (
	"sync"
	"time"

	"github.com/wignn/media-tools/internal/model"
)

const defaultRemoveDelay = 5 * time.Second

// Entry is one live process row in the unified progress view.
type Entry struct {
	ID           string        `json:"id"`
	Kind         model.JobKind `json:"kind"`
	Title        string        `json:"title,omitempty"`
	SourceRef    string        `json:"source_ref"`
	Percent      float64       `json:"percent"`
	Speed        string        `json:"speed,omitempty"`
	ETA          string        `json:"eta,omitempty"`
	Stage        string        `json:"stage,omitempty"`
	Status       string        `json:"status"`
	ErrorMessage string        `json:"error_message,omitempty"`
	OutputPath   string        `json:"output_path,omitempty"`
	StartedAt    time.Time     `json:"started_at,omitzero"`
}

// Registry tracks active external processes across all job kinds and
// keeps a bounded record of finished ones. Completed entries linger
// briefly so a viewer can show the final 100% state before the row
// disappears.
type Registry struct {
	mu          sync.Mutex
	removeDelay time.Duration
	entries     map[string]*Entry
	order       []string
	hist        []Entry
	timers      map[string]*time.Timer
	closed      bool
}

func NewRegistry() *Registry {
	return newRegistryWithDelay(defaultRemoveDelay)
}

func newRegistryWithDelay(removeDelay time.Duration) *Registry {
	return &Registry{
		removeDelay: removeDelay,
		entries:     map[string]*Entry{},
		timers:      map[string]*time.Timer{},
	}
}

// Add registers a process. Adding an id that is already present is a
// no-op, so repeated registrations from racing callers are harmless.
func (r *Registry) Add(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if _, ok := r.entries[e.ID]; ok {
		return
	}
	stored := e
	r.entries[e.ID] = &stored
	r.order = append(r.order, e.ID)
	r.recordHistoryLocked(stored)
}

func (r *Registry) Update(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.entries[e.ID]
	if !ok {
		return
	}
	*cur = e
	r.mirrorHistoryLocked(*cur)
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

// Complete marks the entry finished and removes it after the linger
// delay.
func (r *Registry) Complete(id, outputPath string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.entries[id]
	if !ok || r.closed {
		return
	}
	cur.Status = "completed"
	cur.Percent = 100
	cur.OutputPath = outputPath
	cur.Speed = ""
	cur.ETA = ""
	r.mirrorHistoryLocked(*cur)

	if t, ok := r.timers[id]; ok {
		t.Stop()
	}
	r.timers[id] = time.AfterFunc(r.removeDelay, func() {
		r.Remove(id)
	})
}

func (r *Registry) Fail(id, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.entries[id]
	if !ok {
		return
	}
	cur.Status = "failed"
	cur.ErrorMessage = message
	r.mirrorHistoryLocked(*cur)
	r.removeLocked(id)
}

func (r *Registry) Active() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		if e, ok := r.entries[id]; ok {
			out = append(out, *e)
		}
	}
	return out
}

func (r *Registry) History() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.hist))
	copy(out, r.hist)
	return out
}

func (r *Registry) HasActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries) > 0
}

func (r *Registry) ByID(id string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Close stops pending removal timers. Entries left behind are dropped.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for id, t := range r.timers {
		t.Stop()
		delete(r.timers, id)
	}
	r.entries = map[string]*Entry{}
	r.order = nil
}

func (r *Registry) removeLocked(id string) {
	if t, ok := r.timers[id]; ok {
		t.Stop()
		delete(r.timers, id)
	}
	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) recordHistoryLocked(e Entry) {
	r.hist = append([]Entry{e}, r.hist...)
	if len(r.hist) > historyCap {
		r.hist = r.hist[:historyCap]
	}
}

// mirrorHistoryLocked keeps the history row for an entry in step with the
// live one, so finished entries are remembered in their final state.
func (r *Registry) mirrorHistoryLocked(e Entry) {
	for i := range r.hist {
		if r.hist[i].ID == e.ID {
			r.hist[i] = e
			return
		}
	}
}
