// Package views keeps the catalog of named views.
//
// A view definition names a query and the label / relationship-type selectors
// the overlay can evaluate without a query engine. Definitions are shared by all
// transactions of a database and, when the engine supports it, persisted next to
// the graph through storage.MetadataStore. The id sets a view resolves to are
// per-transaction and live in the scope's overlay.ViewCache.
//
// The registry is an explicit instance owned by the database; there is no
// process-wide default.
//
// Example:
//
//	reg, _ := views.NewRegistry(engine, nil)
//	reg.Define(views.Definition{Name: "people", Labels: []string{"Person"}})
//
//	tx, _ := db.Begin()
//	sets, _ := reg.Resolve(tx.Overlay(), "people")
package views

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/overlaydb/pkg/overlay"
	"github.com/orneryd/overlaydb/pkg/storage"
)

// Registry errors
var (
	ErrViewNotFound      = errors.New("view not found")
	ErrViewExists        = errors.New("view already exists")
	ErrInvalidDefinition = errors.New("invalid view definition")
	ErrNoSelectors       = errors.New("view has no label or relationship-type selectors")
)

// metaPrefix namespaces view definitions inside the engine's metadata keyspace.
const metaPrefix = "views/"

// Definition describes a named view.
type Definition struct {
	Name string `yaml:"name"`
	// Query is the query text the view was declared with. It is kept for display
	// and for query layers that can evaluate it.
	Query string `yaml:"query,omitempty"`
	// Labels selects nodes carrying any of these labels.
	Labels []string `yaml:"labels,omitempty"`
	// RelationshipTypes selects relationships of any of these types.
	RelationshipTypes []string  `yaml:"relationship_types,omitempty"`
	CreatedAt         time.Time `yaml:"created_at"`
}

func (d *Definition) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	}
	if strings.ContainsAny(d.Name, " \t\n/") {
		return fmt.Errorf("%w: name %q contains whitespace or '/'", ErrInvalidDefinition, d.Name)
	}
	if d.Query == "" && len(d.Labels) == 0 && len(d.RelationshipTypes) == 0 {
		return fmt.Errorf("%w: view %q selects nothing", ErrInvalidDefinition, d.Name)
	}
	return nil
}

// Registry is the catalog of view definitions. Thread-safe.
type Registry struct {
	mu     sync.RWMutex
	defs   map[string]*Definition
	meta   storage.MetadataStore
	logger storage.Logger
}

// NewRegistry loads persisted definitions from meta. A nil meta keeps the
// catalog in memory only.
func NewRegistry(meta storage.MetadataStore, logger storage.Logger) (*Registry, error) {
	if logger == nil {
		logger = storage.NopLogger()
	}
	r := &Registry{
		defs:   make(map[string]*Definition),
		meta:   meta,
		logger: logger,
	}
	if err := r.load(); err != nil {
		return nil, fmt.Errorf("failed to load view definitions: %w", err)
	}
	return r, nil
}

func (r *Registry) load() error {
	if r.meta == nil {
		return nil
	}
	keys, err := r.meta.MetaKeys(metaPrefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		data, err := r.meta.GetMeta(key)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		var def Definition
		if err := yaml.Unmarshal(data, &def); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		r.defs[def.Name] = &def
	}
	return nil
}

// Define adds a view. Redefining an existing name fails with ErrViewExists.
func (r *Registry) Define(def Definition) error {
	if err := def.validate(); err != nil {
		return err
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrViewExists, def.Name)
	}
	if r.meta != nil {
		data, err := yaml.Marshal(&def)
		if err != nil {
			return fmt.Errorf("encode view %s: %w", def.Name, err)
		}
		if err := r.meta.PutMeta(metaPrefix+def.Name, data); err != nil {
			return fmt.Errorf("persist view %s: %w", def.Name, err)
		}
	}
	stored := def
	stored.Labels = append([]string(nil), def.Labels...)
	stored.RelationshipTypes = append([]string(nil), def.RelationshipTypes...)
	r.defs[def.Name] = &stored

	r.logger.Log(storage.LevelInfo, "view defined", map[string]any{
		"view":  def.Name,
		"query": def.Query,
	})
	return nil
}

// Get returns a copy of the definition for name.
func (r *Registry) Get(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}
	out := *def
	out.Labels = append([]string(nil), def.Labels...)
	out.RelationshipTypes = append([]string(nil), def.RelationshipTypes...)
	return out, nil
}

// Drop removes a view definition.
func (r *Registry) Drop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.defs[name]; !ok {
		return fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}
	if r.meta != nil {
		if err := r.meta.DeleteMeta(metaPrefix + name); err != nil {
			return fmt.Errorf("delete view %s: %w", name, err)
		}
	}
	delete(r.defs, name)

	r.logger.Log(storage.LevelInfo, "view dropped", map[string]any{"view": name})
	return nil
}

// List returns all view names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of defined views.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Resolve returns the id sets of view name as seen by ov: the node ids matching
// the view's labels and the relationship ids matching its types. A hit in the
// scope's view cache is returned as is; otherwise the sets are computed through
// the overlay and cached for the rest of the scope. A view dropped from the
// catalog no longer resolves, even in scopes that cached it.
//
// Selector names resolve like every overlay name lookup, scope-local tokens
// first. Names of unknown tokens match nothing.
func (r *Registry) Resolve(ov *overlay.Overlay, name string) ([][]int64, error) {
	def, err := r.Get(name)
	if err != nil {
		ov.UncacheView(name)
		return nil, err
	}
	return r.resolve(ov, def)
}

func (r *Registry) resolve(ov *overlay.Overlay, def Definition) ([][]int64, error) {
	name := def.Name
	if sets, ok := ov.CachedView(name); ok {
		return sets, nil
	}

	nodes, err := r.resolveNodes(ov, def.Labels)
	if err != nil {
		return nil, fmt.Errorf("resolve view %s: %w", name, err)
	}
	rels, err := r.resolveRelationships(ov, def.RelationshipTypes)
	if err != nil {
		return nil, fmt.Errorf("resolve view %s: %w", name, err)
	}

	sets := [][]int64{nodes, rels}
	ov.CacheView(name, sets)
	if cached, ok := ov.CachedView(name); ok {
		return cached, nil
	}
	return sets, nil
}

func (r *Registry) resolveNodes(ov *overlay.Overlay, labels []string) ([]int64, error) {
	var out []int64
	for _, name := range labels {
		label, err := ov.LabelID(name)
		if err != nil {
			return nil, err
		}
		if label == storage.NoID {
			continue
		}
		it, err := ov.NodesWithLabel(label)
		if err != nil {
			return nil, err
		}
		for it.HasNext() {
			out = append(out, int64(it.Next()))
		}
	}
	return out, nil
}

func (r *Registry) resolveRelationships(ov *overlay.Overlay, types []string) ([]int64, error) {
	var out []int64
	for _, name := range types {
		typ, err := ov.RelationshipTypeID(name)
		if err != nil {
			return nil, err
		}
		if typ == storage.NoID {
			continue
		}
		it, err := ov.RelationshipsWithType(typ)
		if err != nil {
			return nil, err
		}
		for it.HasNext() {
			out = append(out, int64(it.Next()))
		}
	}
	return out, nil
}

// Restrict resolves view name and activates it as ov's node and relationship
// filters, so the rest of the scope only sees the view's entities.
//
// Only the selector families the view declares are restricted: a view with
// labels but no relationship types leaves the relationship filter alone. A
// declared family that matches nothing hides every entity of that kind. A view
// with no selectors at all fails with ErrNoSelectors.
func (r *Registry) Restrict(ov *overlay.Overlay, name string) error {
	def, err := r.Get(name)
	if err != nil {
		ov.UncacheView(name)
		return err
	}
	if len(def.Labels) == 0 && len(def.RelationshipTypes) == 0 {
		return fmt.Errorf("%w: %s", ErrNoSelectors, name)
	}
	sets, err := r.resolve(ov, def)
	if err != nil {
		return err
	}

	if len(def.Labels) > 0 {
		// storage.NoID is never a live id, so it keeps the filter active
		// when the view matched no node.
		nodes := []storage.NodeID{storage.NoID}
		if len(sets) > 0 {
			for _, id := range sets[0] {
				nodes = append(nodes, storage.NodeID(id))
			}
		}
		ov.ActivateNodeFilter(nodes...)
	}
	if len(def.RelationshipTypes) > 0 {
		rels := []storage.EdgeID{storage.NoID}
		if len(sets) > 1 {
			for _, id := range sets[1] {
				rels = append(rels, storage.EdgeID(id))
			}
		}
		ov.ActivateRelationshipFilter(rels...)
	}
	return nil
}
