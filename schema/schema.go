package schema

import (
	"github.com/apache/arrow-go/v18/arrow"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ByteStringName is the list name that marks a variable-length character branch.
const ByteStringName = "ByteString"

// Node is one node of a schema tree: *Primitive, *List or *Record.
type Node interface {
	// NodeNamespace returns the namespace the node's arrays are looked up in.
	NodeNamespace() string
	node()
}

// Primitive is a flat array of scalars read from the Data locator.
type Primitive struct {
	Type      arrow.DataType
	Data      Locator
	Namespace string
	Name      string
	Doc       string
}

// List is a variable-length sequence of Content delimited by the arrays
// behind the Starts and Stops locators. Both locators may name the same
// physical source.
type List struct {
	Content   Node
	Starts    Locator
	Stops     Locator
	Namespace string
	Name      string
	Doc       string
}

// Record is a set of named fields in source branch order.
type Record struct {
	Fields    *orderedmap.OrderedMap[string, Node]
	Namespace string
	Name      string
	Doc       string
}

func (*Primitive) node() {}
func (*List) node()      {}
func (*Record) node()    {}

func (p *Primitive) NodeNamespace() string { return p.Namespace }
func (l *List) NodeNamespace() string      { return l.Namespace }
func (r *Record) NodeNamespace() string    { return r.Namespace }

// NewRecord returns an empty record in the given namespace.
func NewRecord(namespace string) *Record {
	return &Record{
		Fields:    orderedmap.New[string, Node](),
		Namespace: namespace,
	}
}

// Set adds or replaces a field. A new field is appended after existing ones.
func (r *Record) Set(name string, n Node) {
	r.Fields.Set(name, n)
}

// Field returns the named field.
func (r *Record) Field(name string) (Node, bool) {
	return r.Fields.Get(name)
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return r.Fields.Len()
}

// Names returns field names in order.
func (r *Record) Names() []string {
	names := make([]string, 0, r.Fields.Len())
	for pair := r.Fields.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Each calls fn for every field in order.
func (r *Record) Each(fn func(name string, n Node)) {
	for pair := r.Fields.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// IsByteString reports whether l is a byte-string list of uint8.
func (l *List) IsByteString() bool {
	if l.Name != ByteStringName {
		return false
	}
	p, ok := l.Content.(*Primitive)
	return ok && p.Type.ID() == arrow.UINT8
}

// Equal reports whether two schema trees are structurally identical,
// including field order, locators, names and docs.
func Equal(a, b Node) bool {
	switch x := a.(type) {
	case *Primitive:
		y, ok := b.(*Primitive)
		return ok && arrow.TypeEqual(x.Type, y.Type) && x.Data == y.Data &&
			x.Namespace == y.Namespace && x.Name == y.Name && x.Doc == y.Doc
	case *List:
		y, ok := b.(*List)
		return ok && x.Starts == y.Starts && x.Stops == y.Stops &&
			x.Namespace == y.Namespace && x.Name == y.Name && x.Doc == y.Doc &&
			Equal(x.Content, y.Content)
	case *Record:
		y, ok := b.(*Record)
		if !ok || x.Len() != y.Len() || x.Namespace != y.Namespace || x.Name != y.Name || x.Doc != y.Doc {
			return false
		}
		for px, py := x.Fields.Oldest(), y.Fields.Oldest(); px != nil; px, py = px.Next(), py.Next() {
			if px.Key != py.Key || !Equal(px.Value, py.Value) {
				return false
			}
		}
		return true
	default:
		return a == nil && b == nil
	}
}
