// Package ipcsource reads partitions stored as Arrow IPC stream files.
//
// Each top-level column is a branch. Struct columns are branches whose
// children are sub-branches, named parent.child. Field metadata "count"
// names the branch holding the lengths of a list column, and schema
// metadata "title" is the tree title. A treepath of slash-separated struct
// column names selects a nested struct as the tree root.
package ipcsource

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/VanDung-dev/arraybridge/arrowipc"
	"github.com/VanDung-dev/arraybridge/source"
)

const (
	// MetaTitle is the schema metadata key holding the tree title.
	MetaTitle = "title"
	// MetaCount is the field metadata key naming a list's count branch.
	MetaCount = "count"

	// DefaultChunkBytes is the read buffer size when none is given.
	DefaultChunkBytes = 1 << 20
)

// ErrNotContainer is returned when a treepath component is not a struct.
var ErrNotContainer = errors.New("treepath does not name a struct column")

// Option configures an Opener.
type Option func(*Opener)

// WithChunkBytes sets the read buffer size.
func WithChunkBytes(n int) Option {
	return func(o *Opener) { o.chunkBytes = n }
}

// WithAllocator sets the allocator for read and derived arrays.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *Opener) { o.mem = mem }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Opener) { o.logger = l }
}

// Opener opens Arrow IPC stream files.
type Opener struct {
	chunkBytes int
	mem        memory.Allocator
	logger     *zap.Logger
}

// NewOpener creates an Opener.
func NewOpener(opts ...Option) *Opener {
	o := &Opener{
		chunkBytes: DefaultChunkBytes,
		mem:        memory.DefaultAllocator,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.chunkBytes <= 0 {
		o.chunkBytes = DefaultChunkBytes
	}
	return o
}

// Open reads the file at path and returns the tree addressed by treepath.
func (o *Opener) Open(path, treepath string) (source.Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	codec := arrowipc.NewCodec(o.mem)
	schema, records, err := codec.ReadRecords(bufio.NewReaderSize(f, o.chunkBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	t := &Tree{
		codec:   codec,
		schema:  schema,
		records: records,
		columns: make(map[int]arrow.Array),
	}
	if title, ok := metaValue(schema.Metadata(), MetaTitle); ok {
		t.title = title
	}
	for _, r := range records {
		t.entries += r.NumRows()
	}

	prefix, fields, err := navigate(schema, treepath)
	if err != nil {
		t.release()
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	t.index = make(map[string][]int)
	t.roots = t.build("", prefix, fields)
	t.linkCounts(t.roots, fields, "")

	o.logger.Debug("ipc partition opened",
		zap.String("path", path),
		zap.String("treepath", treepath),
		zap.Int("batches", len(records)),
		zap.Int64("entries", t.entries))
	return t, nil
}

// CountEntries returns the number of rows of the file at path without
// keeping its batches: only one batch is held at a time.
func (o *Opener) CountEntries(path, treepath string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	schema, rows, err := arrowipc.NewCodec(o.mem).CountRows(bufio.NewReaderSize(f, o.chunkBytes))
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if _, _, err := navigate(schema, treepath); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// navigate follows treepath through struct columns and returns the field
// index path of the tree root and its fields.
func navigate(schema *arrow.Schema, treepath string) ([]int, []arrow.Field, error) {
	fields := schema.Fields()
	var prefix []int
	for _, part := range SplitTreepath(treepath) {
		idx, ok := fieldIndex(fields, part)
		if !ok {
			return nil, nil, source.MissingError(part)
		}
		st, ok := fields[idx].Type.(*arrow.StructType)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s is %s", ErrNotContainer, part, fields[idx].Type)
		}
		prefix = append(prefix, idx)
		fields = st.Fields()
	}
	return prefix, fields, nil
}

// SplitTreepath splits a treepath into struct column names. Empty
// components and cycle suffixes (";1") are dropped.
func SplitTreepath(treepath string) []string {
	var parts []string
	for _, p := range strings.Split(treepath, "/") {
		if i := strings.Index(p, ";"); i >= 0 {
			p = p[:i]
		}
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func metaValue(md arrow.Metadata, key string) (string, bool) {
	if i := md.FindKey(key); i >= 0 {
		return md.Values()[i], true
	}
	return "", false
}

func fieldIndex(fields []arrow.Field, name string) (int, bool) {
	for i, f := range fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Tree is one open IPC partition.
type Tree struct {
	codec   *arrowipc.Codec
	schema  *arrow.Schema
	title   string
	entries int64
	roots   []*source.Branch
	index   map[string][]int

	mu      sync.Mutex
	records []arrow.Record
	columns map[int]arrow.Array
	closed  bool
}

func (t *Tree) build(prefix string, path []int, fields []arrow.Field) []*source.Branch {
	var out []*source.Branch
	for i, f := range fields {
		name := f.Name
		if prefix != "" {
			name = prefix + "." + f.Name
		}
		b := &source.Branch{Name: name}
		if title, ok := metaValue(f.Metadata, MetaTitle); ok {
			b.Title = title
		}
		idx := append(append([]int(nil), path...), i)
		t.index[name] = idx

		if st, ok := f.Type.(*arrow.StructType); ok {
			b.Branches = t.build(name, idx, st.Fields())
		} else {
			b.Interp = source.Interpret(f.Type)
		}
		out = append(out, b)
	}
	return out
}

func (t *Tree) linkCounts(branches []*source.Branch, fields []arrow.Field, prefix string) {
	for i, b := range branches {
		f := fields[i]
		if st, ok := f.Type.(*arrow.StructType); ok {
			t.linkCounts(b.Branches, st.Fields(), b.Name)
			continue
		}
		name, ok := metaValue(f.Metadata, MetaCount)
		if !ok || name == "" {
			continue
		}
		count, ok := source.Lookup(t.roots, name)
		if !ok && prefix != "" {
			count, ok = source.Lookup(t.roots, prefix+"."+name)
		}
		if !ok {
			continue
		}
		b.CountBranch = count
		if b.Interp.Kind == source.Jagged {
			b.Interp.Kind = source.Counted
		}
	}
}

// Title returns the schema's title metadata.
func (t *Tree) Title() string { return t.title }

// Branches returns the top-level branches in column order.
func (t *Tree) Branches() []*source.Branch { return t.roots }

// Branch looks up a branch by full name.
func (t *Tree) Branch(name string) (*source.Branch, bool) {
	return source.Lookup(t.roots, name)
}

// NumEntries returns the total number of rows.
func (t *Tree) NumEntries() int64 { return t.entries }

// Arrays reads the named branches.
func (t *Tree) Arrays(names []string) (map[string]source.Physical, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, source.ErrClosed
	}

	var missing []string
	for _, name := range names {
		if _, ok := t.index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, source.MissingError(missing...)
	}

	out := make(map[string]source.Physical, len(names))
	for _, name := range names {
		if _, done := out[name]; done {
			continue
		}
		col, err := t.column(t.index[name])
		if err != nil {
			return nil, fmt.Errorf("branch %s: %w", name, err)
		}
		phys, err := source.FromArrow(t.codec.Allocator(), col)
		if err != nil {
			return nil, fmt.Errorf("branch %s: %w", name, err)
		}
		out[name] = phys
	}
	return out, nil
}

// column returns the array at a field index path, concatenating batches
// of the top-level column on first use. A file without batches yields
// empty columns.
func (t *Tree) column(path []int) (arrow.Array, error) {
	top, ok := t.columns[path[0]]
	if !ok {
		if len(t.records) == 0 {
			b := array.NewBuilder(t.codec.Allocator(), t.schema.Field(path[0]).Type)
			top = b.NewArray()
			b.Release()
		} else {
			var err error
			top, err = t.codec.Column(t.records, path[0])
			if err != nil {
				return nil, err
			}
		}
		t.columns[path[0]] = top
	}

	arr := top
	for _, i := range path[1:] {
		st, ok := arr.(*array.Struct)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotContainer, arr.DataType())
		}
		arr = st.Field(i)
	}
	return arr, nil
}

// Close releases the partition's record batches.
func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		t.release()
	}
	return nil
}

func (t *Tree) release() {
	for _, c := range t.columns {
		c.Release()
	}
	t.columns = nil
	arrowipc.ReleaseAll(t.records)
	t.records = nil
}
