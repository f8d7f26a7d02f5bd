package collision

// Tracker maps 64-bit content keys to the ids of the entries that produced them
// and resolves key collisions by asking the caller to compare contents.
//
// A dedup table computes hash.Key over the identity bytes of a candidate, calls
// Find with a match function that compares the candidate against an existing
// entry, and calls Add when no existing entry matched.
type Tracker struct {
	ids        map[uint64][]int // Key → ids of entries sharing that key
	count      int              // Number of tracked ids
	collisions int              // Number of Adds that landed on an occupied key
}

// NewTracker creates a new collision tracker.
func NewTracker() *Tracker {
	return &Tracker{
		ids: make(map[uint64][]int),
	}
}

// Find returns the id of the first entry tracked under key for which match
// returns true.
func (t *Tracker) Find(key uint64, match func(id int) bool) (int, bool) {
	for _, id := range t.ids[key] {
		if match(id) {
			return id, true
		}
	}

	return 0, false
}

// Add tracks id under key. Callers must have checked with Find that no entry
// with equal content exists.
func (t *Tracker) Add(key uint64, id int) {
	existing := t.ids[key]
	if len(existing) > 0 {
		// Distinct contents, same key.
		t.collisions++
	}

	t.ids[key] = append(existing, id)
	t.count++
}

// HasCollision returns true if two distinct contents shared a key.
func (t *Tracker) HasCollision() bool {
	return t.collisions > 0
}

// Collisions returns the number of key collisions seen so far.
func (t *Tracker) Collisions() int {
	return t.collisions
}

// Count returns the number of tracked entries.
func (t *Tracker) Count() int {
	return t.count
}

// Reset clears all tracked entries and collision state.
func (t *Tracker) Reset() {
	for k := range t.ids {
		delete(t.ids, k)
	}
	t.count = 0
	t.collisions = 0
}
