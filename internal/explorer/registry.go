package explorer

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mmm-workbench/stackexplorer/internal/monitoring"
)

// ErrViewNotFound is returned for unknown view ids.
var ErrViewNotFound = errors.New("view not found")

// Registry tracks open views by id.
type Registry struct {
	opts Options

	mu    sync.Mutex
	views map[string]*View
}

// NewRegistry returns an empty registry whose views share opts.
func NewRegistry(opts Options) *Registry {
	return &Registry{opts: opts, views: make(map[string]*View)}
}

// Create opens a new view over in.
func (r *Registry) Create(in Input) *View {
	v := NewView(uuid.NewString(), in, r.opts)
	r.mu.Lock()
	r.views[v.ID()] = v
	n := len(r.views)
	r.mu.Unlock()
	monitoring.ActiveViews.Set(float64(n))
	monitoring.Logf("explorer: opened view %s over dataset %q", v.ID(), in.DatasetID)
	return v
}

// Get returns the view with id.
func (r *Registry) Get(id string) (*View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	if !ok {
		return nil, ErrViewNotFound
	}
	return v, nil
}

// List returns snapshots of every open view ordered by id.
func (r *Registry) List() []Snapshot {
	r.mu.Lock()
	views := make([]*View, 0, len(r.views))
	for _, v := range r.views {
		views = append(views, v)
	}
	r.mu.Unlock()

	sort.Slice(views, func(i, j int) bool { return views[i].ID() < views[j].ID() })
	out := make([]Snapshot, len(views))
	for i, v := range views {
		out[i] = v.Snapshot()
	}
	return out
}

// Remove closes and forgets the view with id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	v, ok := r.views[id]
	delete(r.views, id)
	n := len(r.views)
	r.mu.Unlock()
	if !ok {
		return ErrViewNotFound
	}
	v.Close()
	monitoring.ActiveViews.Set(float64(n))
	return nil
}

// RemoveDataset closes every view over datasetID and returns how many were
// closed.
func (r *Registry) RemoveDataset(datasetID string) int {
	r.mu.Lock()
	var closing []*View
	for id, v := range r.views {
		if v.DatasetID() == datasetID {
			closing = append(closing, v)
			delete(r.views, id)
		}
	}
	n := len(r.views)
	r.mu.Unlock()

	for _, v := range closing {
		v.Close()
	}
	monitoring.ActiveViews.Set(float64(n))
	return len(closing)
}

// Len returns the number of open views.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.views)
}

// Close closes every view.
func (r *Registry) Close() {
	r.mu.Lock()
	views := r.views
	r.views = make(map[string]*View)
	r.mu.Unlock()
	for _, v := range views {
		v.Close()
	}
	monitoring.ActiveViews.Set(0)
}
