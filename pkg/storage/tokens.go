package storage

import "sort"

// TokenTable is a bidirectional name<->id map for one token family.
//
// Ids come from the allocate func passed at construction, so the same table backs
// real tokens (counting up from zero) and virtual tokens (counting down below NoID).
// Not safe for concurrent use; callers hold their own lock.
type TokenTable struct {
	byName   map[string]int64
	byID     map[int64]string
	allocate func() int64
}

// NewTokenTable creates an empty table drawing new ids from allocate.
func NewTokenTable(allocate func() int64) *TokenTable {
	return &TokenTable{
		byName:   make(map[string]int64),
		byID:     make(map[int64]string),
		allocate: allocate,
	}
}

// GetOrCreate returns the id for name, allocating one the first time.
// The second return value is true when a new token was created.
func (t *TokenTable) GetOrCreate(name string) (int64, bool) {
	if id, ok := t.byName[name]; ok {
		return id, false
	}
	id := t.allocate()
	t.byName[name] = id
	t.byID[id] = name
	return id, true
}

// Put registers an existing (id, name) pair, used when loading persisted tokens.
func (t *TokenTable) Put(id int64, name string) {
	t.byName[name] = id
	t.byID[id] = name
}

// ID looks up a token by name.
func (t *TokenTable) ID(name string) (int64, bool) {
	id, ok := t.byName[name]
	return id, ok
}

// Name looks up a token by id.
func (t *TokenTable) Name(id int64) (string, bool) {
	name, ok := t.byID[id]
	return name, ok
}

// Contains reports whether id is a known token.
func (t *TokenTable) Contains(id int64) bool {
	_, ok := t.byID[id]
	return ok
}

// Len returns the number of tokens.
func (t *TokenTable) Len() int {
	return len(t.byID)
}

// All returns every token ordered by absolute id (allocation order).
func (t *TokenTable) All() []Token {
	out := make([]Token, 0, len(t.byID))
	for id, name := range t.byID {
		out = append(out, Token{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return abs(out[i].ID) < abs(out[j].ID) })
	return out
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
