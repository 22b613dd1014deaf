package resolve

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/VanDung-dev/arraybridge/schema"
	"github.com/VanDung-dev/arraybridge/source"
)

// Fetcher reads physical branches by name. source.Tree satisfies it; so
// does a caching handle in front of one.
type Fetcher interface {
	Arrays(names []string) (map[string]source.Physical, error)
}

// Resolver maps roles to arrays. It holds no state between calls.
type Resolver struct {
	mem memory.Allocator
}

// NewResolver returns a Resolver allocating derived arrays from mem.
func NewResolver(mem memory.Allocator) *Resolver {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Resolver{mem: mem}
}

// Resolve fetches every distinct branch named by roles in one Arrays call
// and returns one array per role. Offsets are int64 arrays. A role that
// cannot be produced from its branch's physical representation aborts the
// call with an *InvariantError.
func (r *Resolver) Resolve(f Fetcher, roles []Role) (map[Role]arrow.Array, error) {
	var names []string
	seen := make(map[string]bool)
	for _, role := range roles {
		branch := role.Locator.Branch()
		if !seen[branch] {
			seen[branch] = true
			names = append(names, branch)
		}
	}

	phys, err := f.Arrays(names)
	if err != nil {
		return nil, fmt.Errorf("fetch %d branches: %w", len(names), err)
	}

	c := &call{
		mem:   r.mem,
		phys:  phys,
		pairs: make(map[pairKey]offsetPair),
	}
	out := make(map[Role]arrow.Array, len(roles))
	for _, role := range roles {
		if _, done := out[role]; done {
			continue
		}
		arr, err := c.resolve(role)
		if err != nil {
			return nil, err
		}
		if arr == nil {
			return nil, &InvariantError{Role: role}
		}
		out[role] = arr
	}
	return out, nil
}

type pairKey struct {
	branch string
	dim    int
}

type offsetPair struct {
	starts, stops arrow.Array
}

// call holds the state of one Resolve: the fetched branches and the offset
// pairs derived so far.
type call struct {
	mem   memory.Allocator
	phys  map[string]source.Physical
	pairs map[pairKey]offsetPair
}

func (c *call) resolve(role Role) (arrow.Array, error) {
	branch, dim, field := role.Locator.Parse()
	p, ok := c.phys[branch]
	if !ok {
		return nil, &InvariantError{Role: role, Reason: "branch not fetched"}
	}

	if role.Kind == Data {
		if dim != schema.NoDim {
			return nil, &InvariantError{Role: role, Reason: "data role with a dimension locator"}
		}
		return c.data(role, p, field)
	}

	pair, err := c.offsets(role, p, branch, dim)
	if err != nil {
		return nil, err
	}
	if role.Kind == Starts {
		return pair.starts, nil
	}
	return pair.stops, nil
}

// offsets returns the starts/stops pair for a branch and dimension,
// deriving it on first use.
func (c *call) offsets(role Role, p source.Physical, branch string, dim int) (offsetPair, error) {
	key := pairKey{branch: branch, dim: dim}
	if pair, ok := c.pairs[key]; ok {
		return pair, nil
	}

	var pair offsetPair
	switch t := p.(type) {
	case *source.DenseArray:
		if dim != schema.NoDim {
			starts, stops, ok := fromShape(t.Shape(), dim)
			if !ok {
				return pair, &InvariantError{Role: role, Reason: fmt.Sprintf("dimension %d out of range for shape %v", dim, t.Shape())}
			}
			pair = c.pair(starts, stops)
			break
		}
		if n := t.Values.NullN(); n > 0 {
			return pair, &InvariantError{Role: role, Reason: fmt.Sprintf("%d null counts", n)}
		}
		counts, ok := intValues(t.Values)
		if !ok {
			return pair, &InvariantError{Role: role, Reason: fmt.Sprintf("counts of type %s are not integers", t.Values.DataType())}
		}
		starts, stops, ok := fromCounts(counts)
		if !ok {
			return pair, &InvariantError{Role: role, Reason: "negative count"}
		}
		pair = c.pair(starts, stops)
	case *source.JaggedArray:
		if dim != schema.NoDim {
			starts, stops, ok := fromShape(t.Content.Shape(), dim)
			if !ok {
				return pair, &InvariantError{Role: role, Reason: fmt.Sprintf("dimension %d out of range for shape %v", dim, t.Content.Shape())}
			}
			pair = c.pair(starts, stops)
			break
		}
		pair = offsetPair{starts: t.Starts, stops: t.Stops}
	default:
		return pair, &InvariantError{Role: role, Reason: fmt.Sprintf("unknown physical representation %T", p)}
	}

	c.pairs[key] = pair
	return pair, nil
}

func (c *call) pair(starts, stops []int64) offsetPair {
	return offsetPair{
		starts: source.NewInt64(c.mem, starts),
		stops:  source.NewInt64(c.mem, stops),
	}
}

func (c *call) data(role Role, p source.Physical, field string) (arrow.Array, error) {
	var values arrow.Array
	switch t := p.(type) {
	case *source.DenseArray:
		values = t.Values
	case *source.JaggedArray:
		values = t.Content.Values
	default:
		return nil, &InvariantError{Role: role, Reason: fmt.Sprintf("unknown physical representation %T", p)}
	}

	values = Flatten(values)
	if field == "" {
		return values, nil
	}
	st, ok := values.(*array.Struct)
	if !ok {
		return nil, &InvariantError{Role: role, Reason: fmt.Sprintf("field %q of non-struct %s", field, values.DataType())}
	}
	idx, ok := st.DataType().(*arrow.StructType).FieldIdx(field)
	if !ok {
		return nil, &InvariantError{Role: role, Reason: fmt.Sprintf("no field %q", field)}
	}
	return Flatten(st.Field(idx)), nil
}

// Flatten reshapes nested fixed-size lists into their flat values.
func Flatten(arr arrow.Array) arrow.Array {
	for {
		fsl, ok := arr.(*array.FixedSizeList)
		if !ok {
			return arr
		}
		n := int64(fsl.DataType().(*arrow.FixedSizeListType).Len())
		off := int64(fsl.Data().Offset())
		arr = array.NewSlice(fsl.ListValues(), off*n, (off+int64(fsl.Len()))*n)
	}
}

// fromShape synthesizes the offsets of the list that splits dimension dim
// of shape: prod(shape[:dim]) lists of shape[dim] items each.
func fromShape(shape []int, dim int) (starts, stops []int64, ok bool) {
	if dim < 0 || dim >= len(shape) {
		return nil, nil, false
	}
	length := int64(1)
	for _, s := range shape[:dim] {
		length *= int64(s)
	}
	stride := int64(shape[dim])

	starts = make([]int64, length)
	stops = make([]int64, length)
	for i := int64(0); i < length; i++ {
		starts[i] = i * stride
		stops[i] = (i + 1) * stride
	}
	return starts, stops, true
}

// fromCounts converts per-element counts to offsets by exclusive prefix sum.
func fromCounts(counts []int64) (starts, stops []int64, ok bool) {
	starts = make([]int64, len(counts))
	stops = make([]int64, len(counts))
	var next int64
	for i, n := range counts {
		if n < 0 {
			return nil, nil, false
		}
		starts[i] = next
		next += n
		stops[i] = next
	}
	return starts, stops, true
}

func intValues(arr arrow.Array) ([]int64, bool) {
	switch t := arr.(type) {
	case *array.Int8:
		return widen(t.Int8Values()), true
	case *array.Int16:
		return widen(t.Int16Values()), true
	case *array.Int32:
		return widen(t.Int32Values()), true
	case *array.Int64:
		return widen(t.Int64Values()), true
	case *array.Uint8:
		return widen(t.Uint8Values()), true
	case *array.Uint16:
		return widen(t.Uint16Values()), true
	case *array.Uint32:
		return widen(t.Uint32Values()), true
	case *array.Uint64:
		return widen(t.Uint64Values()), true
	}
	return nil, false
}

func widen[T int8 | int16 | int32 | int64 | uint8 | uint16 | uint32 | uint64](vals []T) []int64 {
	out := make([]int64, len(vals))
	for i, v := range vals {
		out[i] = int64(v)
	}
	return out
}
