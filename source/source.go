package source

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Common errors
var (
	ErrNoBranch = errors.New("no such branch")
	ErrClosed   = errors.New("tree is closed")
)

// Kind is the physical interpretation of a leaf branch.
type Kind uint8

const (
	Unsupported Kind = iota
	// Dense is a fixed-shape numeric array, possibly multi-dimensional.
	Dense
	// Counted is a jagged numeric array whose boundaries come from a
	// separate count branch.
	Counted
	// Jagged is a jagged numeric array stored with its own offsets.
	Jagged
	// String is variable-length character data stored with offsets.
	String
)

func (k Kind) String() string {
	switch k {
	case Dense:
		return "dense"
	case Counted:
		return "counted"
	case Jagged:
		return "jagged"
	case String:
		return "string"
	default:
		return "unsupported"
	}
}

// Interpretation describes how a leaf branch's values are laid out.
// Type is the scalar element type; Dims are the fixed inner dimensions of
// one element, outer to inner.
type Interpretation struct {
	Kind Kind
	Type arrow.DataType
	Dims []int
}

// Branch is one node of a source's branch hierarchy. Name is the full
// dotted path. CountBranch is set for jagged branches whose lengths are
// determined by another branch; pointer identity of CountBranch is the
// provenance of the count.
type Branch struct {
	Name        string
	Title       string
	Branches    []*Branch
	Interp      Interpretation
	CountBranch *Branch
}

// ShortName returns the final dotted component of the branch name.
func (b *Branch) ShortName() string {
	if i := strings.LastIndex(b.Name, "."); i >= 0 {
		return b.Name[i+1:]
	}
	return b.Name
}

// Tree is one open partition of a source.
type Tree interface {
	// Title is the optional description of the tree.
	Title() string
	// Branches returns the top-level branches in source order.
	Branches() []*Branch
	// Branch looks up a branch, at any depth, by its full name.
	Branch(name string) (*Branch, bool)
	// NumEntries is the number of entries in this partition.
	NumEntries() int64
	// Arrays reads the named branches. Each name is read at most once.
	Arrays(names []string) (map[string]Physical, error)
	// Close releases the partition's resources.
	Close() error
}

// Opener opens one partition at path. treepath addresses the tree inside
// the partition.
type Opener interface {
	Open(path, treepath string) (Tree, error)
}

// EntryCounter is implemented by openers that can count the entries of a
// partition more cheaply than opening it.
type EntryCounter interface {
	CountEntries(path, treepath string) (int64, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path, treepath string) (Tree, error)

func (f OpenerFunc) Open(path, treepath string) (Tree, error) { return f(path, treepath) }

// Physical is the representation returned for one branch: *DenseArray or
// *JaggedArray.
type Physical interface {
	physical()
}

// DenseArray is a fixed-shape array. Values is a flat array of scalars or
// structs, or nested fixed-size lists of them for extra dimensions.
type DenseArray struct {
	Values arrow.Array
}

// JaggedArray is an offset-based variable-length array. Starts and Stops
// index into Content.
type JaggedArray struct {
	Starts  *array.Int64
	Stops   *array.Int64
	Content *DenseArray
}

func (*DenseArray) physical()  {}
func (*JaggedArray) physical() {}

// Shape returns the array's dimensions, the first one being the number of
// elements.
func (d *DenseArray) Shape() []int {
	shape := []int{d.Values.Len()}
	dt := d.Values.DataType()
	for {
		fsl, ok := dt.(*arrow.FixedSizeListType)
		if !ok {
			return shape
		}
		shape = append(shape, int(fsl.Len()))
		dt = fsl.Elem()
	}
}

// Release releases the Arrow memory held by p.
func Release(p Physical) {
	switch t := p.(type) {
	case *DenseArray:
		t.Values.Release()
	case *JaggedArray:
		t.Starts.Release()
		t.Stops.Release()
		t.Content.Values.Release()
	}
}

// Lookup finds a branch by full name under roots.
func Lookup(roots []*Branch, name string) (*Branch, bool) {
	for _, b := range roots {
		if b.Name == name {
			return b, true
		}
		if found, ok := Lookup(b.Branches, name); ok {
			return found, true
		}
	}
	return nil, false
}

// Interpret classifies an Arrow column type. Struct types are not leaves
// and report Unsupported.
func Interpret(dt arrow.DataType) Interpretation {
	switch t := dt.(type) {
	case *arrow.StringType, *arrow.BinaryType, *arrow.LargeStringType, *arrow.LargeBinaryType:
		return Interpretation{Kind: String, Type: arrow.PrimitiveTypes.Uint8}
	case *arrow.FixedSizeListType:
		elem, dims, ok := fixedElem(t)
		if !ok {
			return Interpretation{Kind: Unsupported}
		}
		return Interpretation{Kind: Dense, Type: elem, Dims: dims}
	case *arrow.ListType:
		return jaggedOf(t.Elem())
	case *arrow.LargeListType:
		return jaggedOf(t.Elem())
	}
	if IsNumeric(dt) {
		return Interpretation{Kind: Dense, Type: dt}
	}
	return Interpretation{Kind: Unsupported}
}

func jaggedOf(elem arrow.DataType) Interpretation {
	if fsl, ok := elem.(*arrow.FixedSizeListType); ok {
		e, dims, ok := fixedElem(fsl)
		if !ok {
			return Interpretation{Kind: Unsupported}
		}
		return Interpretation{Kind: Jagged, Type: e, Dims: dims}
	}
	if IsNumeric(elem) {
		return Interpretation{Kind: Jagged, Type: elem}
	}
	return Interpretation{Kind: Unsupported}
}

func fixedElem(t *arrow.FixedSizeListType) (arrow.DataType, []int, bool) {
	var dims []int
	var dt arrow.DataType = t
	for {
		fsl, ok := dt.(*arrow.FixedSizeListType)
		if !ok {
			break
		}
		dims = append(dims, int(fsl.Len()))
		dt = fsl.Elem()
	}
	return dt, dims, IsNumeric(dt)
}

// IsNumeric reports whether dt is a fixed-width integer, floating point or
// boolean scalar type.
func IsNumeric(dt arrow.DataType) bool {
	switch dt.ID() {
	case arrow.BOOL,
		arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64,
		arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64:
		return true
	}
	return false
}

// MissingError reports branches a tree does not have.
func MissingError(names ...string) error {
	return fmt.Errorf("%w: %s", ErrNoBranch, strings.Join(names, ", "))
}
