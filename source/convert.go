package source

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// FromArrow converts one Arrow column into its physical representation.
// Lists and strings become *JaggedArray with int64 offsets; everything else
// is returned as *DenseArray. The column is retained, not copied, where
// possible.
func FromArrow(mem memory.Allocator, col arrow.Array) (Physical, error) {
	switch t := col.(type) {
	case *array.List:
		return physicalOf(jaggedFromList(mem, t))
	case *array.LargeList:
		return physicalOf(jaggedFromList(mem, t))
	case *array.String:
		return stringsOf(mem, t.Len(), func(i int) []byte { return []byte(t.Value(i)) }), nil
	case *array.LargeString:
		return stringsOf(mem, t.Len(), func(i int) []byte { return []byte(t.Value(i)) }), nil
	case *array.Binary:
		return stringsOf(mem, t.Len(), t.Value), nil
	case *array.LargeBinary:
		return stringsOf(mem, t.Len(), t.Value), nil
	case *array.Map:
		return nil, fmt.Errorf("unsupported column type %s", col.DataType())
	}
	col.Retain()
	return &DenseArray{Values: col}, nil
}

// NewInt64 builds an int64 array from vals.
func NewInt64(mem memory.Allocator, vals []int64) *array.Int64 {
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.AppendValues(vals, nil)
	return b.NewInt64Array()
}

func physicalOf(j *JaggedArray, err error) (Physical, error) {
	if err != nil {
		return nil, err
	}
	return j, nil
}

// offsetList is the part of *array.List and *array.LargeList used to read
// per-element offsets.
type offsetList interface {
	Len() int
	ValueOffsets(i int) (start, end int64)
	ListValues() arrow.Array
}

// jaggedFromList reads offsets element by element so a sliced list keeps
// the offsets of its own elements.
func jaggedFromList(mem memory.Allocator, l offsetList) (*JaggedArray, error) {
	n := l.Len()
	values := l.ListValues()
	starts := make([]int64, n)
	stops := make([]int64, n)
	for i := 0; i < n; i++ {
		start, end := l.ValueOffsets(i)
		if start < 0 || start > end || end > int64(values.Len()) {
			return nil, fmt.Errorf("list element %d has offsets [%d, %d) outside %d values", i, start, end, values.Len())
		}
		starts[i], stops[i] = start, end
	}
	values.Retain()
	return &JaggedArray{
		Starts:  NewInt64(mem, starts),
		Stops:   NewInt64(mem, stops),
		Content: &DenseArray{Values: values},
	}, nil
}

func stringsOf(mem memory.Allocator, n int, value func(int) []byte) *JaggedArray {
	starts := make([]int64, n)
	stops := make([]int64, n)
	var content []byte
	for i := 0; i < n; i++ {
		starts[i] = int64(len(content))
		content = append(content, value(i)...)
		stops[i] = int64(len(content))
	}

	b := array.NewUint8Builder(mem)
	defer b.Release()
	b.AppendValues(content, nil)

	return &JaggedArray{
		Starts:  NewInt64(mem, starts),
		Stops:   NewInt64(mem, stops),
		Content: &DenseArray{Values: b.NewUint8Array()},
	}
}
