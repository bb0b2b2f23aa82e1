package sched

// Dispatcher performs the context switch between two tasks: save the
// outgoing task's kernel context, restore the incoming task's, and swap
// whatever per-CPU state depends on which task is current (page-table
// root, kernel stack, trap handler). There is no real MMU/register-file
// backend here, so the switch itself is a hook-based contract a real
// arch backend can implement.
type Dispatcher struct {
	// OnSwitch is called with (prev, next) on every non-self-to-self
	// dispatch; a real backend wires this to the arch-specific context
	// switch. Left nil by default so tests can construct a Manager
	// without a backend.
	OnSwitch func(prev, next *Task)
}

// NewDispatcher returns a Dispatcher with no backend hook installed.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Dispatch switches from prev (may be nil, e.g. the first task scheduled
// on a cold CPU) to next.
func (d *Dispatcher) Dispatch(cpu int, prev, next *Task) {
	next.SetState(Running)
	if prev != nil && prev != next && prev.GetState() == Running {
		prev.SetState(Ready)
	}
	if d.OnSwitch != nil {
		d.OnSwitch(prev, next)
	}
}
