package session

import (
	"sync"
	"time"
)

// Store is the in-memory session registry. The registry mutex only guards
// map access; each session carries two locks of its own. The turn gate
// serializes whole turns for one session, including generation I/O; the
// state lock guards the Session fields and is released while I/O runs, so
// status reads and callback delivery never wait on a slow provider. Turns
// for different sessions run fully in parallel.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry

	now func() time.Time
}

type entry struct {
	turn sync.Mutex
	mu   sync.Mutex
	s    *Session
}

func NewStore() *Store {
	return &Store{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (st *Store) entry(id string, md Metadata) *entry {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.entries[id]
	if !ok {
		e = &entry{s: newSession(id, md, st.now())}
		st.entries[id] = e
	}
	return e
}

// BeginTurn admits one turn for id, creating the session on first sight, and
// blocks while another turn for the same session is in flight. The returned
// func ends the turn. State access still goes through Acquire; holding the
// gate alone grants no access to the Session.
func (st *Store) BeginTurn(id string, md Metadata) func() {
	e := st.entry(id, md)
	e.turn.Lock()
	return e.turn.Unlock
}

// Acquire returns the session for id, creating it on first sight, with its
// state lock held. The caller must invoke release when its read or mutation
// commits. Metadata is only applied at creation; it is immutable afterwards.
func (st *Store) Acquire(id string, md Metadata) (*Session, func()) {
	e := st.entry(id, md)
	e.mu.Lock()
	return e.s, e.mu.Unlock
}

// Get returns a snapshot of the session, if it exists.
func (st *Store) Get(id string) (Session, bool) {
	st.mu.Lock()
	e, ok := st.entries[id]
	st.mu.Unlock()
	if !ok {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Snapshot(), true
}

// Len reports the number of tracked sessions.
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.entries)
}

// Evict removes a session. Retention policy lives outside the core; this is
// the hook it uses.
func (st *Store) Evict(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.entries, id)
}
