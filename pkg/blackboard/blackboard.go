// Package blackboard implements the ordered, typed, de-duplicating object
// store described in spec.md §3. A Blackboard is owned exclusively by a
// single agent process; sub-processes receive a spawned child scope that
// reads through to its parent but writes only locally (spec.md §3,
// "Ownership").
package blackboard

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Entry is a single object recorded on a Blackboard, carrying the
// monotonically increasing sequence number spec.md §3 requires for
// "last of type T" and "last overall" lookups to be well defined.
type Entry struct {
	// Seq is the global sequence number assigned when the entry was added.
	Seq uint64
	// Binding is the explicit binding name under which the object was
	// added, or "" if the object was appended by type only.
	Binding string
	// Type is the concrete runtime type of Value.
	Type reflect.Type
	// Value is the stored object.
	Value any
}

// Blackboard is an ordered, de-duplicating collection of typed objects.
// All methods are safe for concurrent use; the concurrent agent-process
// driver relies on this to let sibling actions within a tick read from a
// stable view while writes are serialized at the end of the tick (see
// spec.md §4.5 and §5).
type Blackboard struct {
	mu     sync.RWMutex
	parent *Blackboard
	seq    *uint64 // shared sequence counter, root-owned

	entries    []*Entry
	byBinding  map[string][]*Entry
	identities map[identKey]struct{} // de-dup ledger, see Open Question #3 in SPEC_FULL.md
}

type identKey struct {
	binding string
	typ     reflect.Type
	hash    string
}

// New returns an empty, root-owned Blackboard.
func New() *Blackboard {
	var seq uint64
	return &Blackboard{
		seq:        &seq,
		byBinding:  make(map[string][]*Entry),
		identities: make(map[identKey]struct{}),
	}
}

// Spawn creates a child scope that sees every entry currently visible to
// the receiver (parent chain included) but whose own writes stay local to
// the child, per spec.md §3's Ownership invariant for sub-agent handoffs.
func (b *Blackboard) Spawn() *Blackboard {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return &Blackboard{
		parent:     b,
		seq:        b.seq,
		byBinding:  make(map[string][]*Entry),
		identities: make(map[identKey]struct{}),
	}
}

// Add appends an object by its runtime type, without an explicit binding
// name. Returns the recorded Entry, or the existing Entry if the object
// was a duplicate per the (id, type) de-duplication rule (SPEC_FULL.md §9,
// Open Question 3): the most recent local entry with the same binding and
// type already holds the same object.
func (b *Blackboard) Add(value any) *Entry {
	return b.add("", value)
}

// Bind appends an object under an explicit binding name, which shadows
// type-based lookup for that name (spec.md §3).
func (b *Blackboard) Bind(name string, value any) *Entry {
	return b.add(name, value)
}

func (b *Blackboard) add(binding string, value any) *Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	t := reflect.TypeOf(value)
	key := identKey{binding: binding, typ: t, hash: identityHash(value)}
	if _, dup := b.identities[key]; dup {
		if e := b.lastLocalMatching(binding, t); e != nil && identityHash(e.Value) == key.hash {
			return e
		}
	}
	b.identities[key] = struct{}{}

	e := &Entry{
		Seq:     atomic.AddUint64(b.seq, 1),
		Binding: binding,
		Type:    t,
		Value:   value,
	}
	b.entries = append(b.entries, e)
	if binding != "" {
		b.byBinding[binding] = append(b.byBinding[binding], e)
	}
	return e
}

func (b *Blackboard) lastLocalMatching(binding string, t reflect.Type) *Entry {
	for i := len(b.entries) - 1; i >= 0; i-- {
		e := b.entries[i]
		if e.Binding == binding && e.Type == t {
			return e
		}
	}
	return nil
}

// identityHash produces a stable de-duplication key. Pointer/reference
// values are keyed by pointer identity; everything else (including plain
// structs passed by value) is keyed by a best-effort structural
// fingerprint, matching the "(id, type) pair" decision recorded in
// SPEC_FULL.md §9.
func identityHash(value any) string {
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return pointerHash(v.Pointer())
	default:
		return structuralHash(value)
	}
}

// LastOfType returns the most recently added entry (across this scope and
// any parent) whose value is assignable to T, and true if one exists.
// Binding-named entries participate in type lookup too; only the most
// recent entry of a matching type is returned, as required by spec.md §3.
func LastOfType[T any](b *Blackboard) (T, bool) {
	var zero T
	wantType := reflect.TypeOf((*T)(nil)).Elem()
	e := b.lastEntryMatchingType(wantType)
	if e == nil {
		return zero, false
	}
	v, ok := e.Value.(T)
	return v, ok
}

func (b *Blackboard) lastEntryMatchingType(want reflect.Type) *Entry {
	b.mu.RLock()
	local := b.snapshotEntries()
	b.mu.RUnlock()

	var parentEntries []*Entry
	if b.parent != nil {
		parentEntries = b.parent.allVisibleEntries()
	}
	combined := append(append([]*Entry{}, parentEntries...), local...)

	for i := len(combined) - 1; i >= 0; i-- {
		e := combined[i]
		if e.Type != nil && (e.Type == want || (want.Kind() == reflect.Interface && e.Type.Implements(want))) {
			return e
		}
	}
	return nil
}

func (b *Blackboard) allVisibleEntries() []*Entry {
	b.mu.RLock()
	local := b.snapshotEntries()
	b.mu.RUnlock()
	if b.parent == nil {
		return local
	}
	return append(b.parent.allVisibleEntries(), local...)
}

func (b *Blackboard) snapshotEntries() []*Entry {
	out := make([]*Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Lookup resolves a binding name to its most recently added value in this
// scope or a parent scope, honoring the "explicit binding names shadow
// type-based lookup" rule.
func (b *Blackboard) Lookup(name string) (any, bool) {
	b.mu.RLock()
	entries := b.byBinding[name]
	var last *Entry
	if len(entries) > 0 {
		last = entries[len(entries)-1]
	}
	b.mu.RUnlock()
	if last != nil {
		return last.Value, true
	}
	if b.parent != nil {
		return b.parent.Lookup(name)
	}
	return nil, false
}

// All returns every entry visible from this scope (parent entries first,
// in sequence order), suitable for driving an expression Env or for
// persistence.
func (b *Blackboard) All() []*Entry {
	return b.allVisibleEntries()
}

// Last returns the most recently added entry visible from this scope, or
// nil if the blackboard (including any parent) is empty.
func (b *Blackboard) Last() *Entry {
	all := b.All()
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// Env adapts the Blackboard to expr.Env: objects bind under the
// lower-cased simple name of their runtime type, shadowed by any explicit
// binding name, exactly as spec.md §4.1 specifies.
func (b *Blackboard) Env() Env {
	return Env{bb: b}
}

// Env is an expr.Env backed by a Blackboard snapshot.
type Env struct{ bb *Blackboard }

// Lookup implements expr.Env.
func (e Env) Lookup(name string) (any, bool) {
	if v, ok := e.bb.Lookup(name); ok {
		return v, true
	}
	// Fall back to type-based lookup by lower-cased simple type name,
	// honoring "most recent wins" by iterating in reverse.
	entries := e.bb.All()
	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		if entry.Binding != "" {
			continue
		}
		if entry.Type != nil && simpleLowerName(entry.Type) == name {
			return entry.Value, true
		}
	}
	return nil, false
}

func simpleLowerName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" {
		return ""
	}
	r := []rune(name)
	if r[0] >= 'A' && r[0] <= 'Z' {
		r[0] = r[0] - 'A' + 'a'
	}
	return string(r)
}
