package core

// Timer is a scheduled main-loop event
type Timer struct {
	WakeTime uint32
	Handler  func(*Timer) uint8
	Next     *Timer
}

const (
	SF_DONE       = 0
	SF_RESCHEDULE = 1
)

// Scheduler keeps timers sorted by WakeTime and runs the due ones from
// the main loop. Handlers that return SF_RESCHEDULE must move WakeTime
// forward first.
type Scheduler struct {
	list *Timer
}

// Schedule adds t in WakeTime order
func (s *Scheduler) Schedule(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.insert(t)
}

// Every runs fn each period ticks, starting period ticks from now.
func (s *Scheduler) Every(period uint32, fn func()) *Timer {
	if period == 0 {
		period = 1
	}
	t := &Timer{
		WakeTime: GetTime() + period,
		Handler: func(t *Timer) uint8 {
			fn()
			t.WakeTime += period
			return SF_RESCHEDULE
		},
	}
	s.Schedule(t)
	return t
}

// Cancel removes t if it is still scheduled.
func (s *Scheduler) Cancel(t *Timer) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if s.list == t {
		s.list = t.Next
		t.Next = nil
		return
	}
	for cur := s.list; cur != nil; cur = cur.Next {
		if cur.Next == t {
			cur.Next = t.Next
			t.Next = nil
			return
		}
	}
}

// insert keeps the list sorted; equal wake times run in insertion order
func (s *Scheduler) insert(t *Timer) {
	if s.list == nil || timeBefore(t.WakeTime, s.list.WakeTime) {
		t.Next = s.list
		s.list = t
		return
	}

	current := s.list
	for current.Next != nil && !timeBefore(t.WakeTime, current.Next.WakeTime) {
		current = current.Next
	}

	t.Next = current.Next
	current.Next = t
}

// Dispatch runs every timer due at or before now and returns how many ran.
func (s *Scheduler) Dispatch(now uint32) int {
	ran := 0
	for {
		state := disableInterrupts()
		t := s.list
		if t == nil || timeBefore(now, t.WakeTime) {
			restoreInterrupts(state)
			return ran
		}
		s.list = t.Next
		t.Next = nil
		restoreInterrupts(state)

		// Handlers run with interrupts enabled.
		ran++
		if t.Handler(t) == SF_RESCHEDULE {
			s.Schedule(t)
		}
	}
}

// Pending returns the number of scheduled timers.
func (s *Scheduler) Pending() int {
	n := 0
	for cur := s.list; cur != nil; cur = cur.Next {
		n++
	}
	return n
}
