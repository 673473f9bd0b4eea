package registry

import (
	"sync/atomic"
	"time"

	"github.com/toolbridge/odata-mcp/internal/auth"
	"github.com/toolbridge/odata-mcp/internal/catalog"
)

// Snapshot is one immutable, indexed build of the tool catalog. Lookups
// are O(1); the tool list preserves builder order. Snapshots are never
// mutated after construction; a rebuild produces a whole new value.
type Snapshot struct {
	tools   []*catalog.Tool
	byName  map[string]*catalog.Tool
	builtAt time.Time
}

// NewSnapshot indexes a built catalog. The caller hands over ownership of
// the slice.
func NewSnapshot(tools []*catalog.Tool) *Snapshot {
	byName := make(map[string]*catalog.Tool, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}
	return &Snapshot{tools: tools, byName: byName, builtAt: time.Now()}
}

// Lookup resolves a tool by name.
func (s *Snapshot) Lookup(name string) (*catalog.Tool, bool) {
	if s == nil {
		return nil, false
	}
	t, ok := s.byName[name]
	return t, ok
}

// Tools returns the catalog in builder order. Callers must not mutate the
// returned slice or its tools.
func (s *Snapshot) Tools() []*catalog.Tool {
	if s == nil {
		return nil
	}
	return s.tools
}

// Len returns the number of tools in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.tools)
}

// BuiltAt reports when the snapshot was constructed.
func (s *Snapshot) BuiltAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.builtAt
}

// FilterForCaller returns the tools visible to a caller under the shared
// authorization predicate. Order is preserved. This is the list-time
// check; invocation re-checks independently.
func (s *Snapshot) FilterForCaller(caller *auth.Caller) []*catalog.Tool {
	if s == nil {
		return nil
	}
	visible := make([]*catalog.Tool, 0, len(s.tools))
	for _, t := range s.tools {
		if auth.Authorized(caller, t.RequiredScopes, t.RequiredRoles) {
			visible = append(visible, t)
		}
	}
	return visible
}

// Store holds the current snapshot behind an atomic pointer. Readers load
// whatever build is current; a rebuild swaps the pointer in one step, so
// no reader ever observes a partially-built catalog.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore creates a store primed with an empty snapshot, so tools/list
// works before the model has been discovered.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(NewSnapshot(nil))
	return s
}

// Load returns the current snapshot. Never nil.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Publish atomically replaces the current snapshot.
func (s *Store) Publish(snap *Snapshot) {
	if snap == nil {
		snap = NewSnapshot(nil)
	}
	s.current.Store(snap)
}
