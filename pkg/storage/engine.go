package storage

// Engine is the real-entity read/write contract of the graph kernel.
//
// Engines own id allocation for real entities and must only ever hand out
// non-negative ids. All methods are safe for concurrent use.
type Engine interface {
	// Node operations
	CreateNode() (NodeID, error)
	DeleteNode(id NodeID) error
	GetNode(id NodeID) (*Node, error)
	NodeExists(id NodeID) bool
	AddLabel(id NodeID, label LabelID) (bool, error)
	RemoveLabel(id NodeID, label LabelID) (bool, error)
	// SetNodeProperty returns the previous value, or NoValue.
	SetNodeProperty(id NodeID, key PropertyKeyID, value any) (any, error)
	// RemoveNodeProperty returns the removed value, or NoValue.
	RemoveNodeProperty(id NodeID, key PropertyKeyID) (any, error)

	// Edge operations
	CreateEdge(typ RelTypeID, start, end NodeID) (EdgeID, error)
	DeleteEdge(id EdgeID) error
	GetEdge(id EdgeID) (*Edge, error)
	EdgeExists(id EdgeID) bool
	SetEdgeProperty(id EdgeID, key PropertyKeyID, value any) (any, error)
	RemoveEdgeProperty(id EdgeID, key PropertyKeyID) (any, error)

	// Enumeration
	AllNodes() (Iterator[NodeID], error)
	NodesByLabel(label LabelID) (Iterator[NodeID], error)
	NodesByProperty(label LabelID, key PropertyKeyID, value any) (Iterator[NodeID], error)
	AllEdges() (Iterator[EdgeID], error)
	EdgesByType(typ RelTypeID) (Iterator[EdgeID], error)
	NodeEdges(id NodeID, dir Direction) (Iterator[EdgeID], error)

	// Counts. NoID acts as a wildcard for every argument of CountEdges.
	NodeCount() (int64, error)
	EdgeCount() (int64, error)
	CountNodesWithLabel(label LabelID) (int64, error)
	CountEdges(startLabel LabelID, typ RelTypeID, endLabel LabelID) (int64, error)

	// Tokens
	GetOrCreateToken(kind TokenKind, name string) (int64, error)
	TokenID(kind TokenKind, name string) (int64, error)
	TokenName(kind TokenKind, id int64) (string, error)
	Tokens(kind TokenKind) (Iterator[Token], error)

	Close() error
}

// MetadataStore is implemented by engines that can keep small opaque blobs
// next to the graph (view definitions and similar catalog data).
type MetadataStore interface {
	PutMeta(key string, value []byte) error
	GetMeta(key string) ([]byte, error)
	DeleteMeta(key string) error
	MetaKeys(prefix string) ([]string, error)
}
