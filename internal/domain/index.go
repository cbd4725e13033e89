package domain

// Defaults for locating the index list document.
const (
	DefaultIndexCollection = "us_index"
	DefaultIndexKeyField   = "ccn"
	DefaultIndexKey        = "totalindexlist"
	DefaultIndexListField  = "list"
)

// IndexLocation says where the aggregate index list lives: the document in
// Collection whose KeyField equals Key, and the field holding the list.
type IndexLocation struct {
	Collection string
	KeyField   string
	Key        string
	ListField  string
}

// DefaultIndexLocation returns the location used by the episode collector.
func DefaultIndexLocation() IndexLocation {
	return IndexLocation{
		Collection: DefaultIndexCollection,
		KeyField:   DefaultIndexKeyField,
		Key:        DefaultIndexKey,
		ListField:  DefaultIndexListField,
	}
}

// IndexList is the aggregate payload served to clients. Its shape is owned by
// the collector that writes it; this service passes it through untouched.
type IndexList struct {
	Value   any
	Matched int
}
