package overlay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/orneryd/overlaydb/pkg/storage"
)

// checkRealToken fails with EntityNotFoundError unless id is a known real token.
func (o *Overlay) checkRealToken(kind storage.TokenKind, id int64) error {
	if id < 0 {
		return notFound(tokenEntityKind(kind), id)
	}
	_, err := o.engine.TokenName(kind, id)
	return realError("token "+kind.String(), tokenEntityKind(kind), id, err)
}

func (o *Overlay) tokenGetOrCreate(kind storage.TokenKind, name string) (int64, error) {
	if err := o.checkOpen("get or create " + kind.String()); err != nil {
		return storage.NoID, err
	}
	id, err := o.engine.GetOrCreateToken(kind, name)
	if err != nil {
		return storage.NoID, fmt.Errorf("get or create %s %q: %w", kind, name, err)
	}
	return id, nil
}

func (o *Overlay) virtualTokenGetOrCreate(kind storage.TokenKind, name string) (int64, error) {
	if err := o.checkOpen("get or create virtual " + kind.String()); err != nil {
		return storage.NoID, err
	}
	if strings.TrimSpace(name) == "" {
		return storage.NoID, fmt.Errorf("get or create virtual %s: empty name: %w", kind, storage.ErrInvalidData)
	}
	id, created := o.store.GetOrCreateToken(kind, name)
	if created {
		o.logger.Log(storage.LevelDebug, "virtual token created", map[string]any{
			"scope": o.scope.key.String(),
			"kind":  kind.String(),
			"name":  name,
			"id":    id,
		})
	}
	return id, nil
}

// tokenID resolves name against the scope's virtual tokens first, then the
// engine's. Returns storage.NoID when neither knows it.
func (o *Overlay) tokenID(kind storage.TokenKind, name string) (int64, error) {
	if err := o.checkOpen("lookup " + kind.String()); err != nil {
		return storage.NoID, err
	}
	if id, ok := o.store.TokenID(kind, name); ok {
		return id, nil
	}
	id, err := o.engine.TokenID(kind, name)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.NoID, nil
	}
	if err != nil {
		return storage.NoID, fmt.Errorf("lookup %s %q: %w", kind, name, err)
	}
	return id, nil
}

func (o *Overlay) tokenName(kind storage.TokenKind, id int64) (string, error) {
	if err := o.checkOpen(kind.String() + " name"); err != nil {
		return "", err
	}
	if IsVirtual(id) {
		return o.store.TokenName(kind, id)
	}
	name, err := o.engine.TokenName(kind, id)
	if err != nil {
		return "", realError("token name", tokenEntityKind(kind), id, err)
	}
	return name, nil
}

// tokens yields the scope's virtual tokens of kind followed by the engine's.
func (o *Overlay) tokens(kind storage.TokenKind) (storage.Iterator[storage.Token], error) {
	if err := o.checkOpen("list " + kind.String() + " tokens"); err != nil {
		return nil, err
	}
	stored, err := o.engine.Tokens(kind)
	if err != nil {
		return nil, fmt.Errorf("list %s tokens: %w", kind, err)
	}
	return Concat[storage.Token](storage.NewSliceIterator(o.store.Tokens(kind)), stored), nil
}

// LabelGetOrCreate returns the real label id for name, creating it in the engine.
func (o *Overlay) LabelGetOrCreate(name string) (storage.LabelID, error) {
	id, err := o.tokenGetOrCreate(storage.TokenLabel, name)
	return storage.LabelID(id), err
}

// PropertyKeyGetOrCreate returns the real property-key id for name.
func (o *Overlay) PropertyKeyGetOrCreate(name string) (storage.PropertyKeyID, error) {
	id, err := o.tokenGetOrCreate(storage.TokenPropertyKey, name)
	return storage.PropertyKeyID(id), err
}

// RelationshipTypeGetOrCreate returns the real relationship-type id for name.
func (o *Overlay) RelationshipTypeGetOrCreate(name string) (storage.RelTypeID, error) {
	id, err := o.tokenGetOrCreate(storage.TokenRelType, name)
	return storage.RelTypeID(id), err
}

// VirtualLabelGetOrCreate returns the scope-local label id for name.
func (o *Overlay) VirtualLabelGetOrCreate(name string) (storage.LabelID, error) {
	id, err := o.virtualTokenGetOrCreate(storage.TokenLabel, name)
	return storage.LabelID(id), err
}

// VirtualPropertyKeyGetOrCreate returns the scope-local property-key id for name.
func (o *Overlay) VirtualPropertyKeyGetOrCreate(name string) (storage.PropertyKeyID, error) {
	id, err := o.virtualTokenGetOrCreate(storage.TokenPropertyKey, name)
	return storage.PropertyKeyID(id), err
}

// VirtualRelationshipTypeGetOrCreate returns the scope-local relationship-type id for name.
func (o *Overlay) VirtualRelationshipTypeGetOrCreate(name string) (storage.RelTypeID, error) {
	id, err := o.virtualTokenGetOrCreate(storage.TokenRelType, name)
	return storage.RelTypeID(id), err
}

// LabelID resolves a label name, virtual first. storage.NoID when unknown.
func (o *Overlay) LabelID(name string) (storage.LabelID, error) {
	id, err := o.tokenID(storage.TokenLabel, name)
	return storage.LabelID(id), err
}

// PropertyKeyID resolves a property-key name, virtual first.
func (o *Overlay) PropertyKeyID(name string) (storage.PropertyKeyID, error) {
	id, err := o.tokenID(storage.TokenPropertyKey, name)
	return storage.PropertyKeyID(id), err
}

// RelationshipTypeID resolves a relationship-type name, virtual first.
func (o *Overlay) RelationshipTypeID(name string) (storage.RelTypeID, error) {
	id, err := o.tokenID(storage.TokenRelType, name)
	return storage.RelTypeID(id), err
}

// LabelName returns the name of a label of either realm.
func (o *Overlay) LabelName(id storage.LabelID) (string, error) {
	return o.tokenName(storage.TokenLabel, int64(id))
}

// PropertyKeyName returns the name of a property key of either realm.
func (o *Overlay) PropertyKeyName(id storage.PropertyKeyID) (string, error) {
	return o.tokenName(storage.TokenPropertyKey, int64(id))
}

// RelationshipTypeName returns the name of a relationship type of either realm.
func (o *Overlay) RelationshipTypeName(id storage.RelTypeID) (string, error) {
	return o.tokenName(storage.TokenRelType, int64(id))
}

// Labels yields every label visible in this scope, virtual first.
func (o *Overlay) Labels() (storage.Iterator[storage.Token], error) {
	return o.tokens(storage.TokenLabel)
}

// PropertyKeys yields every property key visible in this scope, virtual first.
func (o *Overlay) PropertyKeys() (storage.Iterator[storage.Token], error) {
	return o.tokens(storage.TokenPropertyKey)
}

// RelationshipTypes yields every relationship type visible in this scope, virtual first.
func (o *Overlay) RelationshipTypes() (storage.Iterator[storage.Token], error) {
	return o.tokens(storage.TokenRelType)
}
