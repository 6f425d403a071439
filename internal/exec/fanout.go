package exec

import "sync"

// ExitFanout is the small fan-out registry the design notes call for in
// place of a bare list of function pointers: a single dispatch point
// that both backends embed to implement OnProcessExit/dispatch.
type ExitFanout struct {
	mu        sync.Mutex
	callbacks map[int]ExitCallback
	nextID    int
}

func NewExitFanout() *ExitFanout {
	return &ExitFanout{callbacks: make(map[int]ExitCallback)}
}

// On registers cb and returns a handle that deregisters it.
func (f *ExitFanout) On(cb ExitCallback) Unregister {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.callbacks[id] = cb
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.callbacks, id)
		f.mu.Unlock()
	}
}

// Dispatch invokes every registered callback with ev. Callbacks run
// synchronously in the caller's goroutine (the event-stream reader or
// the poll ticker); a slow callback should hand off internally.
func (f *ExitFanout) Dispatch(ev ExitEvent) {
	f.mu.Lock()
	cbs := make([]ExitCallback, 0, len(f.callbacks))
	for _, cb := range f.callbacks {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()

	for _, cb := range cbs {
		cb(ev)
	}
}
