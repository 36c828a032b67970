package executor

import "sync"

// Registry tracks live runs by id. It is constructed by whoever owns
// the executor (the serve process, a test) and injected, so independent
// executors never share state through a package global. Every spawned
// run is registered before its first read and deregistered exactly once
// when it terminates; membership is what external cancellation keys on.
type Registry struct {
	mu   sync.Mutex
	runs map[int64]*Run
	next int64
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[int64]*Run)}
}

// register inserts a run, assigning an id from the internal counter
// when the caller did not supply one. Callers that bring their own ids
// (the serve path reuses store row ids) must not mix them with
// counter-assigned ones on the same registry.
func (r *Registry) register(run *Run) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if run.id == 0 {
		r.next++
		run.id = r.next
	}
	r.runs[run.id] = run
	return run.id
}

// deregister removes a run id. Removing an absent id is a no-op, so
// the supervising loop and an out-of-band cancel can both clean up.
func (r *Registry) deregister(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.runs, id)
}

// Get returns the registered run for id.
func (r *Registry) Get(id int64) (*Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	return run, ok
}

// IDs returns the ids of all registered runs, unordered.
func (r *Registry) IDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.runs))
	for id := range r.runs {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of registered runs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}
