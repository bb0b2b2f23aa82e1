package sched

import (
	"strconv"
	"sync"

	"k8s.io/apimachinery/pkg/util/clock"
)

// defaultIntervalMicros is the timer quantum: 10ms per CPU by default.
const defaultIntervalMicros = 10_000

// Manager owns the per-CPU run queues and dispatch state for one kernel
// instance: round-robin per-CPU queues plus an add-request queue drained
// at each scheduling decision, held as an explicit, independently
// constructible value so tests don't share global state.
type Manager struct {
	mu sync.Mutex

	numCPUs         int
	runQueue        [][]*Task
	addReqQueue     [][]*Task
	currentTaskID   []uint64
	hasCurrent      []bool
	intervalMicros  uint64
	dispatcher      *Dispatcher
	clock           clock.Clock

	byID map[uint64]*Task
}

// NewManager returns a Manager configured for numCPUs per-CPU run queues.
func NewManager(numCPUs int) *Manager {
	return &Manager{
		numCPUs:        numCPUs,
		runQueue:       make([][]*Task, numCPUs),
		addReqQueue:    make([][]*Task, numCPUs),
		currentTaskID:  make([]uint64, numCPUs),
		hasCurrent:     make([]bool, numCPUs),
		intervalMicros: defaultIntervalMicros,
		dispatcher:     NewDispatcher(),
		clock:          clock.RealClock{},
		byID:           make(map[uint64]*Task),
	}
}

// SetClock overrides the Manager's clock.Clock, letting a fairness test
// control exactly when LastScheduled advances instead of depending on
// wall time.
func (m *Manager) SetClock(c clock.Clock) {
	m.mu.Lock()
	m.clock = c
	m.mu.Unlock()
}

// TaskByID looks up a task by id across every CPU's bookkeeping.
func (m *Manager) TaskByID(id uint64) *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

// AddTask enqueues t for cpu's add-request queue; it joins the run queue
// proper on the next Schedule call for that cpu.
func (m *Manager) AddTask(t *Task, cpu int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addReqQueue[cpu] = append(m.addReqQueue[cpu], t)
	m.byID[t.ID] = t
}

// CurrentTaskID reports the task id currently selected for cpu, if any.
func (m *Manager) CurrentTaskID(cpu int) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentTaskID[cpu], m.hasCurrent[cpu]
}

// Schedule runs one round-robin scheduling decision for cpu: drain the
// add-request queue into the run queue, then pop tasks from the queue
// head, skipping Zombie (requeued for a later cleaner pass) and dropping
// Terminated, until a dispatchable task is found or the queue is
// momentarily exhausted (run the same task again).
func (m *Manager) Schedule(cpu int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.addReqQueue[cpu]) > 0 {
		m.runQueue[cpu] = append(m.runQueue[cpu], m.addReqQueue[cpu]...)
		m.addReqQueue[cpu] = nil
	}

	for {
		if len(m.runQueue[cpu]) == 0 {
			return
		}
		t := m.runQueue[cpu][0]
		rest := m.runQueue[cpu][1:]
		queueEmptiedByPop := len(rest) == 0
		m.runQueue[cpu] = rest

		state := t.GetState()
		if queueEmptiedByPop && (state == Zombie || state == Terminated) {
			// There must always be at least one runnable task per CPU; the
			// kernel's idle task exists to guarantee this in practice.
			panic("sched: no runnable task left on cpu " + strconv.Itoa(cpu))
		}

		switch state {
		case Zombie:
			// A cleaner reaps zombies later; keep it in rotation until then.
			m.runQueue[cpu] = append(m.runQueue[cpu], t)
			continue
		case Terminated:
			delete(m.byID, t.ID)
			continue
		default:
			prevID, hadPrev := m.currentTaskID[cpu], m.hasCurrent[cpu]
			selfToSelf := hadPrev && prevID == t.ID
			if !selfToSelf {
				var prev *Task
				if hadPrev {
					prev = m.byID[prevID]
				}
				m.dispatcher.Dispatch(cpu, prev, t)
			}
			m.currentTaskID[cpu] = t.ID
			m.hasCurrent[cpu] = true
			m.runQueue[cpu] = append(m.runQueue[cpu], t)
			t.markScheduled(m.clock.Now())
			return
		}
	}
}

// SendEvent delivers ev to every task matching target.
func (m *Manager) SendEvent(ev Event, target EventTarget, groups map[uint64][]uint64, channels map[string][]uint64) {
	m.mu.Lock()
	recipients := m.resolveTargetLocked(target, groups, channels)
	m.mu.Unlock()

	for _, t := range recipients {
		t.deliver(ev)
	}
}

func (m *Manager) resolveTargetLocked(target EventTarget, groups map[uint64][]uint64, channels map[string][]uint64) []*Task {
	switch target.Kind {
	case TargetTask:
		if t, ok := m.byID[target.TaskID]; ok {
			return []*Task{t}
		}
		return nil
	case TargetProcessGroup:
		var out []*Task
		for _, id := range groups[target.ProcessGroup] {
			if t, ok := m.byID[id]; ok {
				out = append(out, t)
			}
		}
		return out
	case TargetTaskList:
		var out []*Task
		for _, id := range target.TaskIDs {
			if t, ok := m.byID[id]; ok {
				out = append(out, t)
			}
		}
		return out
	case TargetChannel:
		var out []*Task
		for _, id := range channels[target.Channel] {
			if t, ok := m.byID[id]; ok {
				out = append(out, t)
			}
		}
		return out
	case TargetBroadcast:
		out := make([]*Task, 0, len(m.byID))
		for _, t := range m.byID {
			out = append(out, t)
		}
		return out
	default:
		return nil
	}
}
