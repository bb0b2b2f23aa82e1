package sched

// EventType classifies an Event.
type EventType int

const (
	EventTerminate EventType = iota
	EventKill
	EventInterrupt
	EventUser
	EventTimer
	EventSuspend
	EventResume
	EventChildStateChange
	EventIoReady
	EventPipeBroken
	EventWindowChange
)

// Action is how a task has configured its response to a pending event of
// a given type.
type Action int

const (
	ActionDefault Action = iota
	ActionIgnore
	ActionTerminate
	ActionSuspend
	ActionResume
)

// Event is one delivered occurrence, queued on a task's pending list
// until its next kernel-to-user return.
type Event struct {
	Type         EventType
	SourceTaskID uint64
	UserCode     uint32 // meaningful only for EventUser
	Payload      any
}

// TargetKind selects how an EventTarget is matched against live tasks.
type TargetKind int

const (
	TargetTask TargetKind = iota
	TargetProcessGroup
	TargetTaskList
	TargetChannel
	TargetBroadcast
)

// EventTarget names the recipient(s) of a delivered event.
type EventTarget struct {
	Kind          TargetKind
	TaskID        uint64
	ProcessGroup  uint64
	TaskIDs       []uint64
	Channel       string
}

// SetAction configures this task's response to events of type et.
func (t *Task) SetAction(et EventType, a Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.actions[et] = a
}

// ActionFor returns the configured action for et, defaulting to
// ActionDefault when unconfigured.
func (t *Task) ActionFor(et EventType) Action {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.actions[et]
	if !ok {
		return ActionDefault
	}
	return a
}

// SetBlockEvents toggles whether this task refuses all incoming event
// delivery (dropped rather than queued).
func (t *Task) SetBlockEvents(block bool) {
	t.mu.Lock()
	t.blockEvents = block
	t.mu.Unlock()
}

// deliver appends ev to the task's pending queue unless it currently
// blocks events, returning whether it was queued. If the task is
// interruptibly blocked, delivery also transitions it back to Ready.
func (t *Task) deliver(ev Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.blockEvents {
		return false
	}
	t.pending = append(t.pending, ev)
	if t.State == BlockedInterruptible {
		t.State = Ready
	}
	return true
}

// NextPendingEvent pops the oldest pending event, if any. Called at a
// task's kernel-to-user return to resolve queued actions one at a time.
func (t *Task) NextPendingEvent() (Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.pending) == 0 {
		return Event{}, false
	}
	ev := t.pending[0]
	t.pending = t.pending[1:]
	return ev, true
}

// HasPendingMatching reports whether an event of type et is currently
// queued, used by an interruptible wait to decide whether to wake early.
func (t *Task) HasPendingMatching(et EventType) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, ev := range t.pending {
		if ev.Type == et {
			return true
		}
	}
	return false
}

// DefaultActionFor returns the built-in default disposition for an event
// type when a task has not configured ActionDefault away from it, per
// the delivery-path defaults table.
func DefaultActionFor(et EventType) Action {
	switch et {
	case EventTerminate, EventKill:
		return ActionTerminate
	case EventSuspend:
		return ActionSuspend
	case EventResume:
		return ActionResume
	default:
		// Interrupt falls back to default-terminate only when the ABI has
		// no user-visible handler; that distinction is made by the ABI
		// dispatch layer, not here. Timer/IoReady/PipeBroken/User(u32) are
		// wake-only or ABI-handled and carry no further built-in action.
		return ActionIgnore
	}
}
