package chat

import (
	"sync"
	"time"
)

// sequencer orders sends within a conversation. Reserve stamps a ticket with a
// strictly increasing timestamp; tickets publish in reservation order, each
// waiting for its predecessors to be persisted or abandoned. Store round trips
// happen between Reserve and Complete, outside the lock.
type sequencer struct {
	mu    sync.Mutex
	lanes map[string]*lane
	now   func() time.Time
}

type lane struct {
	next    uint64
	head    uint64
	last    time.Time
	pending map[uint64]*slot
}

type slot struct {
	done    bool
	publish func()
}

type ticket struct {
	s    *sequencer
	lane string
	seq  uint64
	At   time.Time
}

func newSequencer(now func() time.Time) *sequencer {
	if now == nil {
		now = time.Now
	}
	return &sequencer{lanes: make(map[string]*lane), now: now}
}

func (s *sequencer) Reserve(key string) *ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lanes[key]
	if !ok {
		l = &lane{pending: make(map[uint64]*slot)}
		s.lanes[key] = l
	}
	at := s.now().UTC().Truncate(time.Millisecond)
	if !at.After(l.last) {
		at = l.last.Add(time.Millisecond)
	}
	l.last = at
	seq := l.next
	l.next++
	l.pending[seq] = &slot{}
	return &ticket{s: s, lane: key, seq: seq, At: at}
}

// Complete marks the ticket finished. publish may be nil for an abandoned send.
// Publishing runs under the sequencer lock, so it must not block.
func (t *ticket) Complete(publish func()) {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.lanes[t.lane]
	sl := l.pending[t.seq]
	sl.done = true
	sl.publish = publish
	for {
		head, ok := l.pending[l.head]
		if !ok || !head.done {
			break
		}
		delete(l.pending, l.head)
		l.head++
		if head.publish != nil {
			head.publish()
		}
	}
	// An idle lane is dropped once the clock has moved past its last stamp.
	if len(l.pending) == 0 && s.now().UTC().Truncate(time.Millisecond).After(l.last) {
		delete(s.lanes, t.lane)
	}
}
