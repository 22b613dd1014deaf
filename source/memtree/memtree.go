// Package memtree provides an in-memory source.Tree built from Arrow arrays.
// It counts physical reads per branch and can be told to fail or to return
// a substitute representation, which makes it the fake source for tests of
// the schema, resolver and backend layers.
package memtree

import (
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/VanDung-dev/arraybridge/source"
)

// Tree is an in-memory partition.
type Tree struct {
	mem     memory.Allocator
	title   string
	roots   []*source.Branch
	columns map[string]source.Physical
	entries int64

	mu      sync.Mutex
	reads   map[string]int
	calls   int
	opens   int
	failErr error
	closed  bool
}

// New creates an empty tree.
func New(title string) *Tree {
	return &Tree{
		mem:     memory.DefaultAllocator,
		title:   title,
		columns: make(map[string]source.Physical),
		reads:   make(map[string]int),
		entries: -1,
	}
}

// Add attaches an Arrow column as a leaf branch named name under parent
// (nil for top level) and returns the new branch. The interpretation is
// derived from the column type.
func (t *Tree) Add(parent *source.Branch, name string, col arrow.Array) *source.Branch {
	phys, err := source.FromArrow(t.mem, col)
	if err != nil {
		panic(fmt.Sprintf("memtree: %s: %v", name, err))
	}
	return t.AddPhysical(parent, name, source.Interpret(col.DataType()), phys)
}

// AddPhysical attaches a leaf branch with an explicit interpretation and
// physical representation.
func (t *Tree) AddPhysical(parent *source.Branch, name string, interp source.Interpretation, phys source.Physical) *source.Branch {
	b := t.attach(parent, name)
	b.Interp = interp
	if phys != nil {
		t.columns[b.Name] = phys
		if t.entries < 0 && parent == nil {
			t.entries = int64(length(phys))
		}
	}
	return b
}

// AddGroup attaches a branch that only holds sub-branches.
func (t *Tree) AddGroup(parent *source.Branch, name string) *source.Branch {
	return t.attach(parent, name)
}

// SetCount marks b as length-counted by count.
func (t *Tree) SetCount(b, count *source.Branch) {
	b.CountBranch = count
	if b.Interp.Kind == source.Jagged {
		b.Interp.Kind = source.Counted
	}
}

// Override replaces what Arrays returns for name without touching the
// branch metadata.
func (t *Tree) Override(name string, phys source.Physical) {
	t.columns[name] = phys
}

// SetEntries overrides the entry count.
func (t *Tree) SetEntries(n int64) { t.entries = n }

// FailWith makes every later Arrays call return err.
func (t *Tree) FailWith(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failErr = err
}

// Reads returns how many times name was physically read.
func (t *Tree) Reads(name string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reads[name]
}

// Calls returns the number of Arrays calls.
func (t *Tree) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Opens returns how many times the tree was opened through Opener.
func (t *Tree) Opens() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.opens
}

// Closed reports whether Close was called.
func (t *Tree) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func (t *Tree) Title() string               { return t.title }
func (t *Tree) Branches() []*source.Branch { return t.roots }

func (t *Tree) Branch(name string) (*source.Branch, bool) {
	return source.Lookup(t.roots, name)
}

func (t *Tree) NumEntries() int64 {
	if t.entries < 0 {
		return 0
	}
	return t.entries
}

func (t *Tree) Arrays(names []string) (map[string]source.Physical, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, source.ErrClosed
	}
	t.calls++
	if t.failErr != nil {
		return nil, t.failErr
	}

	out := make(map[string]source.Physical, len(names))
	var missing []string
	for _, name := range names {
		if _, done := out[name]; done {
			continue
		}
		phys, ok := t.columns[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		t.reads[name]++
		out[name] = phys
	}
	if len(missing) > 0 {
		return nil, source.MissingError(missing...)
	}
	return out, nil
}

func (t *Tree) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *Tree) attach(parent *source.Branch, name string) *source.Branch {
	b := &source.Branch{Name: name}
	if parent != nil {
		b.Name = parent.Name + "." + name
		parent.Branches = append(parent.Branches, b)
	} else {
		t.roots = append(t.roots, b)
	}
	return b
}

func length(p source.Physical) int {
	switch v := p.(type) {
	case *source.DenseArray:
		return v.Values.Len()
	case *source.JaggedArray:
		return v.Starts.Len()
	}
	return 0
}

// Opener returns a source.Opener serving trees by path. Opening a closed
// tree reopens it; opening an unknown path fails.
func Opener(trees map[string]*Tree) source.Opener {
	return source.OpenerFunc(func(path, _ string) (source.Tree, error) {
		tree, ok := trees[path]
		if !ok {
			return nil, fmt.Errorf("memtree: no tree at %s", path)
		}
		tree.mu.Lock()
		tree.closed = false
		tree.opens++
		tree.mu.Unlock()
		return tree, nil
	})
}
