package statesync

// Kind tells records and collections apart. It decides which bare event
// keywords are meaningful for an entity.
type Kind int

const (
	// KindRecord is a single container of named attributes.
	KindRecord Kind = iota + 1
	// KindCollection is an ordered sequence of records.
	KindCollection
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindCollection:
		return "collection"
	default:
		return "unknown"
	}
}

// Entity is an observable that bindings can be synced against
type Entity interface {
	Observable
	Kind() Kind
}

// Record is an entity with named attributes
type Record interface {
	Entity
	Get(attr string) any
}
