package overlay

import "github.com/orneryd/overlaydb/pkg/storage"

// GetOrCreateToken returns the virtual id for name in the kind family,
// allocating one the first time the name is seen.
func (s *Store) GetOrCreateToken(kind storage.TokenKind, name string) (int64, bool) {
	return s.tokens[kind].GetOrCreate(name)
}

// TokenID looks up a virtual token by name.
func (s *Store) TokenID(kind storage.TokenKind, name string) (int64, bool) {
	return s.tokens[kind].ID(name)
}

// TokenName looks up a virtual token name.
func (s *Store) TokenName(kind storage.TokenKind, id int64) (string, error) {
	name, ok := s.tokens[kind].Name(id)
	if !ok {
		return "", notFound(tokenEntityKind(kind), id)
	}
	return name, nil
}

// HasToken reports whether id is a virtual token of kind.
func (s *Store) HasToken(kind storage.TokenKind, id int64) bool {
	return s.tokens[kind].Contains(id)
}

// Tokens returns the virtual tokens of kind in allocation order.
func (s *Store) Tokens(kind storage.TokenKind) []storage.Token {
	return s.tokens[kind].All()
}

// PropertyKeysOfNode returns the keys set on a virtual node, in allocation order.
func (s *Store) PropertyKeysOfNode(id storage.NodeID) ([]storage.PropertyKeyID, error) {
	n, err := s.node(id)
	if err != nil {
		return nil, err
	}
	return sortedDesc(keys(n.props)), nil
}

// PropertyKeysOfRelationship returns the keys set on a virtual relationship.
func (s *Store) PropertyKeysOfRelationship(id storage.EdgeID) ([]storage.PropertyKeyID, error) {
	r, err := s.relationship(id)
	if err != nil {
		return nil, err
	}
	return sortedDesc(keys(r.props)), nil
}
