package overlay

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/orneryd/overlaydb/pkg/storage"
)

// ScopeKey identifies one scope (one transaction) for its whole lifetime.
// Keys are minted by the transaction host and handed to the registry; they are
// never derived from anything else.
type ScopeKey uuid.UUID

// NewScopeKey returns a fresh random key.
func NewScopeKey() ScopeKey {
	return ScopeKey(uuid.New())
}

// ParseScopeKey parses the canonical string form produced by String.
func ParseScopeKey(s string) (ScopeKey, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ScopeKey{}, err
	}
	return ScopeKey(id), nil
}

func (k ScopeKey) String() string {
	return uuid.UUID(k).String()
}

// Scope is the private state of one transaction: its virtual store, the two id
// filters and the view cache. Everything in it dies with the scope.
//
// A scope is used by a single goroutine at a time and has no locking of its own.
type Scope struct {
	key       ScopeKey
	createdAt time.Time
	closed    bool

	store      *Store
	nodeFilter *IDFilter
	relFilter  *IDFilter
	views      *ViewCache
}

// NewScope returns an empty scope. Most callers go through Registry.ForScope.
func NewScope(key ScopeKey, viewCacheMaxEntries int) *Scope {
	return &Scope{
		key:        key,
		createdAt:  time.Now(),
		store:      NewStore(),
		nodeFilter: NewIDFilter(),
		relFilter:  NewIDFilter(),
		views:      NewViewCache(viewCacheMaxEntries),
	}
}

// Key returns the scope key.
func (s *Scope) Key() ScopeKey { return s.key }

// Store returns the virtual store.
func (s *Scope) Store() *Store { return s.store }

// NodeFilter returns the node id filter.
func (s *Scope) NodeFilter() *IDFilter { return s.nodeFilter }

// RelationshipFilter returns the relationship id filter.
func (s *Scope) RelationshipFilter() *IDFilter { return s.relFilter }

// Views returns the view cache.
func (s *Scope) Views() *ViewCache { return s.views }

// Closed reports whether the scope has been evicted.
func (s *Scope) Closed() bool { return s.closed }

// teardown discards every virtual entity, filter and cached view. Overlays still
// holding the scope fail with ErrScopeClosed from then on.
func (s *Scope) teardown() {
	s.closed = true
	s.store.reset()
	s.nodeFilter.Clear()
	s.relFilter.Clear()
	s.views.Clear()
}

// ScopeStats summarizes a scope.
type ScopeStats struct {
	Key              string     `json:"key"`
	Age              string     `json:"age"`
	Virtual          StoreStats `json:"virtual"`
	NodeFilterSize   int        `json:"node_filter_size"`
	NodeFilterActive bool       `json:"node_filter_active"`
	RelFilterSize    int        `json:"relationship_filter_size"`
	RelFilterActive  bool       `json:"relationship_filter_active"`
	CachedViews      int        `json:"cached_views"`
}

// Stats returns a snapshot of the scope's contents.
func (s *Scope) Stats() ScopeStats {
	return ScopeStats{
		Key:              s.key.String(),
		Age:              time.Since(s.createdAt).Round(time.Millisecond).String(),
		Virtual:          s.store.Stats(),
		NodeFilterSize:   s.nodeFilter.Len(),
		NodeFilterActive: !s.nodeFilter.Unused(),
		RelFilterSize:    s.relFilter.Len(),
		RelFilterActive:  !s.relFilter.Unused(),
		CachedViews:      s.views.Len(),
	}
}

// RegistryConfig holds Registry configuration.
type RegistryConfig struct {
	// MaxScopes limits concurrently live scopes (0 = unlimited).
	MaxScopes int

	// ViewCacheMaxEntries bounds each scope's view cache (0 = unlimited).
	ViewCacheMaxEntries int

	// Logger receives scope lifecycle events. Nil discards them.
	Logger storage.Logger
}

// Registry maps scope keys to live scopes.
//
// Scopes are created lazily on first touch and released only by Evict; the
// transaction lifecycle decides when that happens. Thread-safe.
type Registry struct {
	mu     sync.Mutex
	scopes map[ScopeKey]*Scope
	config RegistryConfig
	logger storage.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(config RegistryConfig) *Registry {
	logger := config.Logger
	if logger == nil {
		logger = storage.NopLogger()
	}
	return &Registry{
		scopes: make(map[ScopeKey]*Scope),
		config: config,
		logger: logger,
	}
}

// ForScope returns the scope for key, creating it the first time key is seen.
// Returns ErrTooManyScopes when creating would exceed MaxScopes.
func (r *Registry) ForScope(key ScopeKey) (*Scope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if scope, ok := r.scopes[key]; ok {
		return scope, nil
	}
	if r.config.MaxScopes > 0 && len(r.scopes) >= r.config.MaxScopes {
		return nil, ErrTooManyScopes
	}

	scope := NewScope(key, r.config.ViewCacheMaxEntries)
	r.scopes[key] = scope
	r.logger.Log(storage.LevelDebug, "scope created", map[string]any{
		"scope": key.String(),
		"live":  len(r.scopes),
	})
	return scope, nil
}

// Lookup returns the scope for key without creating it.
func (r *Registry) Lookup(key ScopeKey) (*Scope, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	scope, ok := r.scopes[key]
	return scope, ok
}

// Evict drops the scope for key and tears it down: its virtual entities,
// filters and cached views are discarded even if an Overlay still holds it.
// Returns false if no such scope was live.
func (r *Registry) Evict(key ScopeKey) bool {
	r.mu.Lock()
	scope, ok := r.scopes[key]
	if ok {
		delete(r.scopes, key)
	}
	live := len(r.scopes)
	r.mu.Unlock()

	if !ok {
		return false
	}
	stats := scope.store.Stats()
	scope.teardown()
	r.logger.Log(storage.LevelDebug, "scope evicted", map[string]any{
		"scope":                 key.String(),
		"live":                  live,
		"virtual_nodes":         stats.Nodes,
		"virtual_relationships": stats.Relationships,
	})
	return true
}

// Len returns the number of live scopes.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scopes)
}

// Keys returns the live scope keys in string order.
func (r *Registry) Keys() []ScopeKey {
	r.mu.Lock()
	out := make([]ScopeKey, 0, len(r.scopes))
	for key := range r.scopes {
		out = append(out, key)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}
