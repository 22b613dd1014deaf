package source

import (
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromJSON(t *testing.T, dt arrow.DataType, js string) arrow.Array {
	t.Helper()
	arr, _, err := array.FromJSON(memory.DefaultAllocator, dt, strings.NewReader(js))
	require.NoError(t, err)
	return arr
}

func TestInterpret(t *testing.T) {
	f32 := arrow.PrimitiveTypes.Float32
	cases := []struct {
		name string
		dt   arrow.DataType
		kind Kind
		dims []int
	}{
		{"scalar", f32, Dense, nil},
		{"bool", arrow.FixedWidthTypes.Boolean, Dense, nil},
		{"matrix", arrow.FixedSizeListOf(2, arrow.FixedSizeListOf(3, f32)), Dense, []int{2, 3}},
		{"jagged", arrow.ListOf(f32), Jagged, nil},
		{"jagged vectors", arrow.ListOf(arrow.FixedSizeListOf(3, f32)), Jagged, []int{3}},
		{"large jagged", arrow.LargeListOf(arrow.PrimitiveTypes.Int64), Jagged, nil},
		{"string", arrow.BinaryTypes.String, String, nil},
		{"binary", arrow.BinaryTypes.Binary, String, nil},
		{"list of strings", arrow.ListOf(arrow.BinaryTypes.String), Unsupported, nil},
		{"timestamp", arrow.FixedWidthTypes.Timestamp_s, Unsupported, nil},
		{"struct", arrow.StructOf(arrow.Field{Name: "x", Type: f32}), Unsupported, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			interp := Interpret(c.dt)
			assert.Equal(t, c.kind, interp.Kind)
			assert.Equal(t, c.dims, interp.Dims)
		})
	}
}

func TestDenseShape(t *testing.T) {
	arr := fromJSON(t, arrow.FixedSizeListOf(2, arrow.FixedSizeListOf(3, arrow.PrimitiveTypes.Int32)),
		`[[[1,2,3],[4,5,6]], [[7,8,9],[10,11,12]]]`)
	defer arr.Release()

	d := &DenseArray{Values: arr}
	assert.Equal(t, []int{2, 2, 3}, d.Shape())
}

func TestFromArrowList(t *testing.T) {
	arr := fromJSON(t, arrow.ListOf(arrow.PrimitiveTypes.Float64), `[[1,2,3],[],[4,5]]`)
	defer arr.Release()

	phys, err := FromArrow(memory.DefaultAllocator, arr)
	require.NoError(t, err)
	defer Release(phys)

	j, ok := phys.(*JaggedArray)
	require.True(t, ok, "expected jagged, got %T", phys)
	assert.Equal(t, []int64{0, 3, 3}, j.Starts.Int64Values())
	assert.Equal(t, []int64{3, 3, 5}, j.Stops.Int64Values())
	assert.Equal(t, 5, j.Content.Values.Len())
}

func TestFromArrowSlicedList(t *testing.T) {
	for _, dt := range []arrow.DataType{
		arrow.ListOf(arrow.PrimitiveTypes.Float64),
		arrow.LargeListOf(arrow.PrimitiveTypes.Float64),
	} {
		t.Run(dt.String(), func(t *testing.T) {
			arr := fromJSON(t, dt, `[[1,2,3],[],[4,5],[6]]`)
			defer arr.Release()
			sliced := array.NewSlice(arr, 2, 4)
			defer sliced.Release()

			phys, err := FromArrow(memory.DefaultAllocator, sliced)
			require.NoError(t, err)
			defer Release(phys)

			j := phys.(*JaggedArray)
			assert.Equal(t, []int64{3, 5}, j.Starts.Int64Values())
			assert.Equal(t, []int64{5, 6}, j.Stops.Int64Values())
			assert.Equal(t, 6, j.Content.Values.Len())
		})
	}
}

func TestFromArrowStrings(t *testing.T) {
	arr := fromJSON(t, arrow.BinaryTypes.String, `["ab", "", "cde"]`)
	defer arr.Release()

	phys, err := FromArrow(memory.DefaultAllocator, arr)
	require.NoError(t, err)

	j := phys.(*JaggedArray)
	assert.Equal(t, []int64{0, 2, 2}, j.Starts.Int64Values())
	assert.Equal(t, []int64{2, 2, 5}, j.Stops.Int64Values())
	assert.Equal(t, []byte("abcde"), j.Content.Values.(*array.Uint8).Uint8Values())
}

func TestFromArrowDense(t *testing.T) {
	arr := fromJSON(t, arrow.PrimitiveTypes.Int32, `[3, 0, 2]`)
	defer arr.Release()

	phys, err := FromArrow(memory.DefaultAllocator, arr)
	require.NoError(t, err)

	d, ok := phys.(*DenseArray)
	require.True(t, ok)
	assert.Same(t, arr, d.Values)
}

func TestLookupAndShortName(t *testing.T) {
	child := &Branch{Name: "Muon.pt"}
	roots := []*Branch{{Name: "run"}, {Name: "Muon", Branches: []*Branch{child}}}

	b, ok := Lookup(roots, "Muon.pt")
	require.True(t, ok)
	assert.Same(t, child, b)
	assert.Equal(t, "pt", b.ShortName())

	_, ok = Lookup(roots, "Muon.eta")
	assert.False(t, ok)
}

func TestOpenerFunc(t *testing.T) {
	var gotPath, gotTree string
	op := OpenerFunc(func(path, treepath string) (Tree, error) {
		gotPath, gotTree = path, treepath
		return nil, MissingError("x")
	})

	_, err := op.Open("a.arrow", "events")
	assert.ErrorIs(t, err, ErrNoBranch)
	assert.Equal(t, "a.arrow", gotPath)
	assert.Equal(t, "events", gotTree)
}
