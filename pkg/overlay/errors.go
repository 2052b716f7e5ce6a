package overlay

import (
	"errors"
	"fmt"

	"github.com/orneryd/overlaydb/pkg/storage"
)

// Overlay error types
var (
	ErrEntityNotFound    = errors.New("entity not found")
	ErrInvalidRealm      = errors.New("invalid operation for entity realm")
	ErrTooManyScopes     = errors.New("maximum number of scopes reached")
	ErrScopeClosed       = errors.New("scope closed")
	ErrIteratorExhausted = errors.New("iterator exhausted")
)

// EntityKind names the family of an id in error messages.
type EntityKind string

const (
	KindNode             EntityKind = "node"
	KindRelationship     EntityKind = "relationship"
	KindLabel            EntityKind = "label"
	KindPropertyKey      EntityKind = "property key"
	KindRelationshipType EntityKind = "relationship type"
)

func tokenEntityKind(kind storage.TokenKind) EntityKind {
	switch kind {
	case storage.TokenLabel:
		return KindLabel
	case storage.TokenPropertyKey:
		return KindPropertyKey
	default:
		return KindRelationshipType
	}
}

// EntityNotFoundError reports an id that is not live in its store, or that is
// hidden by an active id filter.
type EntityNotFoundError struct {
	Kind EntityKind
	ID   int64
}

func (e *EntityNotFoundError) Error() string {
	realm := "real"
	if IsVirtual(e.ID) {
		realm = "virtual"
	}
	return fmt.Sprintf("%s %s %d not found", realm, e.Kind, e.ID)
}

// Is makes errors.Is(err, ErrEntityNotFound) work.
func (e *EntityNotFoundError) Is(target error) bool {
	return target == ErrEntityNotFound
}

func notFound[T ~int64](kind EntityKind, id T) error {
	return &EntityNotFoundError{Kind: kind, ID: int64(id)}
}

// InvalidRealmError reports mixing virtual and real ids where the operation forbids it.
type InvalidRealmError struct {
	Op     string
	Reason string
}

func (e *InvalidRealmError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidRealm) work.
func (e *InvalidRealmError) Is(target error) bool {
	return target == ErrInvalidRealm
}

func invalidRealm(op, format string, args ...any) error {
	return &InvalidRealmError{Op: op, Reason: fmt.Sprintf(format, args...)}
}
