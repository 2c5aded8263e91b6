package runtime

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Handler runs one job_type. Run reports progress through ctx and returns the
// error that fails the row; a nil return with no terminal call marks it succeeded.
type Handler interface {
	Type() string
	Run(ctx *Context) error
}

// Registry maps job_type to its handler. The worker pool and the Temporal
// activity dispatch through the same registry.
type Registry struct {
	mu     sync.RWMutex
	byType map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{byType: map[string]Handler{}}
}

func (r *Registry) Register(h Handler) error {
	if h == nil {
		return errors.New("register: nil handler")
	}
	jobType := h.Type()
	if jobType == "" {
		return fmt.Errorf("register %T: empty job type", h)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, dup := r.byType[jobType]; dup {
		return fmt.Errorf("register %T: job_type=%s already handled by %T", h, jobType, prev)
	}
	r.byType[jobType] = h
	return nil
}

func (r *Registry) Get(jobType string) (Handler, bool) {
	r.mu.RLock()
	h, ok := r.byType[jobType]
	r.mu.RUnlock()
	return h, ok
}

// Types lists registered job types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.byType))
	for jobType := range r.byType {
		types = append(types, jobType)
	}
	sort.Strings(types)
	return types
}
