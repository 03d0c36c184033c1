package card

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	state    *State
	lastSeen time.Time
}

// Registry owns the card instances of every visitor currently being
// served. Cards live in memory only and are torn down once idle for
// longer than the registry's TTL.
type Registry struct {
	mu    sync.Mutex
	cards map[string]*entry
	ttl   time.Duration
	now   func() time.Time
}

// NewRegistry returns an empty registry. A ttl of zero keeps cards until
// they are explicitly forgotten.
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		cards: make(map[string]*entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Snapshot is a read of one card taken under the registry lock.
type Snapshot struct {
	ID         string
	Visibility Visibility
	Label      string
}

// Visible reports whether the snapshot was taken with the portfolio open.
func (s Snapshot) Visible() bool {
	return s.Visibility == Visible
}

func snapshot(id string, s *State) Snapshot {
	return Snapshot{ID: id, Visibility: s.Visibility(), Label: s.Label()}
}

// Open returns the card for id, creating a fresh one when id is empty or
// unknown. The returned snapshot carries the id the caller should keep.
func (r *Registry) Open(id string) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.lookup(id)
	if e == nil {
		id = uuid.NewString()
		e = &entry{state: NewState()}
		r.cards[id] = e
	}
	e.lastSeen = r.now()
	return snapshot(id, e.state)
}

// Toggle flips the card for id once, creating it first if needed, and
// returns the state after the flip.
func (r *Registry) Toggle(id string) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	e := r.lookup(id)
	if e == nil {
		id = uuid.NewString()
		e = &entry{state: NewState()}
		r.cards[id] = e
	}
	e.state.Toggle()
	e.lastSeen = r.now()
	return snapshot(id, e.state)
}

// Forget tears down the card for id.
func (r *Registry) Forget(id string) {
	r.mu.Lock()
	delete(r.cards, id)
	r.mu.Unlock()
}

// Len returns the number of live cards.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cards)
}

// Sweep removes cards idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.ttl)
	removed := 0
	for id, e := range r.cards {
		if e.lastSeen.Before(cutoff) {
			delete(r.cards, id)
			removed++
		}
	}
	return removed
}

// lookup must be called with r.mu held. Expired cards are treated as
// unknown.
func (r *Registry) lookup(id string) *entry {
	if id == "" {
		return nil
	}
	e, ok := r.cards[id]
	if !ok {
		return nil
	}
	if r.ttl > 0 && r.now().Sub(e.lastSeen) > r.ttl {
		delete(r.cards, id)
		return nil
	}
	return e
}
