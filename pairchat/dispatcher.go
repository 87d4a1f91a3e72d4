package pairchat

import "sync"

// Dispatcher routes session notifications to registered callbacks. Callbacks
// run on the session loop and must not block.
type Dispatcher struct {
	mu      sync.RWMutex
	onPhase func(StateEvent)
	onMerge func(MergeEvent)
	onLeave func(LeaveEvent)
	onError func(error)
}

func (d *Dispatcher) SetOnPhaseChange(fn func(StateEvent)) { d.set(func() { d.onPhase = fn }) }
func (d *Dispatcher) SetOnMerge(fn func(MergeEvent))       { d.set(func() { d.onMerge = fn }) }
func (d *Dispatcher) SetOnLeave(fn func(LeaveEvent))       { d.set(func() { d.onLeave = fn }) }
func (d *Dispatcher) SetOnError(fn func(error))            { d.set(func() { d.onError = fn }) }

func (d *Dispatcher) set(fn func()) {
	d.mu.Lock()
	fn()
	d.mu.Unlock()
}

func (d *Dispatcher) phase(ev StateEvent) {
	d.mu.RLock()
	fn := d.onPhase
	d.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

func (d *Dispatcher) merge(ev MergeEvent) {
	d.mu.RLock()
	fn := d.onMerge
	d.mu.RUnlock()
	if fn != nil && len(ev.Added) > 0 {
		fn(ev)
	}
}

func (d *Dispatcher) leave(ev LeaveEvent) {
	d.mu.RLock()
	fn := d.onLeave
	d.mu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

func (d *Dispatcher) fireError(err error) {
	d.mu.RLock()
	fn := d.onError
	d.mu.RUnlock()
	if fn != nil && err != nil {
		fn(err)
	}
}
