package schema

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// ToArrow returns the Arrow type of the array-of-structs view of n.
// Byte-string lists become binary; other lists become list<...> and
// records become struct<...> with fields in order.
func ToArrow(n Node) arrow.DataType {
	switch t := n.(type) {
	case *Primitive:
		return t.Type
	case *List:
		if t.IsByteString() {
			return arrow.BinaryTypes.Binary
		}
		return arrow.ListOf(ToArrow(t.Content))
	case *Record:
		fields := make([]arrow.Field, 0, t.Len())
		t.Each(func(name string, field Node) {
			fields = append(fields, arrow.Field{Name: name, Type: ToArrow(field)})
		})
		return arrow.StructOf(fields...)
	default:
		return arrow.Null
	}
}

// ArrowSchema wraps the content of a root list as an Arrow schema with one
// column per record field. Roots that are not a list of records yield a
// single column named after name.
func ArrowSchema(name string, root Node) *arrow.Schema {
	var md *arrow.Metadata
	if l, ok := root.(*List); ok {
		if l.Doc != "" {
			m := arrow.NewMetadata([]string{"title"}, []string{l.Doc})
			md = &m
		}
		if rec, ok := l.Content.(*Record); ok {
			fields := make([]arrow.Field, 0, rec.Len())
			rec.Each(func(fname string, field Node) {
				fields = append(fields, arrow.Field{Name: fname, Type: ToArrow(field)})
			})
			return arrow.NewSchema(fields, md)
		}
		return arrow.NewSchema([]arrow.Field{{Name: name, Type: ToArrow(l.Content)}}, md)
	}
	return arrow.NewSchema([]arrow.Field{{Name: name, Type: ToArrow(root)}}, md)
}
