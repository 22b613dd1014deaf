package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VanDung-dev/arraybridge/arrowipc"
	"github.com/VanDung-dev/arraybridge/resolve"
	"github.com/VanDung-dev/arraybridge/schema"
	"github.com/VanDung-dev/arraybridge/source"
	"github.com/VanDung-dev/arraybridge/source/ipcsource"
	"github.com/VanDung-dev/arraybridge/source/memtree"
)

func col(t *testing.T, dt arrow.DataType, js string) arrow.Array {
	t.Helper()
	arr, _, err := array.FromJSON(memory.DefaultAllocator, dt, strings.NewReader(js))
	require.NoError(t, err)
	return arr
}

// memPartitions creates empty files for the glob and one memtree per file
// with the given entry counts.
func memPartitions(t *testing.T, counts ...int) (string, map[string]*memtree.Tree) {
	t.Helper()
	dir := t.TempDir()
	trees := make(map[string]*memtree.Tree)
	for i, n := range counts {
		path := filepath.Join(dir, "part"+string(rune('a'+i))+".arrow")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		tree := memtree.New("toy events")
		vals := make([]string, n)
		for j := range vals {
			vals[j] = "1"
		}
		tree.Add(nil, "x", col(t, arrow.PrimitiveTypes.Int32, "["+strings.Join(vals, ",")+"]"))
		trees[path] = tree
	}
	return filepath.Join(dir, "*.arrow"), trees
}

func TestOpenNoPartitions(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "*.arrow"), "Events")
	require.ErrorIs(t, err, ErrNoPartitions)
	assert.Contains(t, err.Error(), "*.arrow")
}

func TestOpenOffsets(t *testing.T) {
	pattern, trees := memPartitions(t, 3, 0, 2)

	for _, workers := range []int{1, 3} {
		ds, err := Open(pattern, "", WithOpener(memtree.Opener(trees)), WithListingWorkers(workers))
		require.NoError(t, err)

		assert.Equal(t, []int64{0, 3, 3, 5}, ds.Offsets, "workers=%d", workers)
		assert.Equal(t, int64(5), ds.NumEntries())
		assert.Equal(t, 3, ds.NumPartitions())
	}
	for _, tree := range trees {
		assert.True(t, tree.Closed())
	}
}

func TestOpenSchemaAndMetadata(t *testing.T) {
	pattern, trees := memPartitions(t, 2, 1)

	ds, err := Open(pattern, "dir/Events;1", WithOpener(memtree.Opener(trees)))
	require.NoError(t, err)

	assert.Equal(t, "Events", ds.Name)
	assert.Equal(t, DefaultNamespace(pattern, "dir/Events;1"), ds.Namespace)
	assert.Equal(t, "toy events", ds.Doc)
	assert.Empty(t, ds.Schema.Doc)
	assert.Equal(t, ds.Namespace, ds.Schema.NodeNamespace())
	assert.Equal(t, "Record{x: Primitive<int32>(x)}", schema.Format(ds.Schema.Content))

	first := filepath.Join(filepath.Dir(pattern), "parta.arrow")
	assert.Equal(t, first, ds.Metadata[MetaSchemaFrom])
	require.Contains(t, ds.Backends, ds.Namespace)
	assert.Equal(t, 2, ds.Backend().NumPartitions())
}

func TestOpenCustomNamespace(t *testing.T) {
	pattern, trees := memPartitions(t, 1)

	ds, err := Open(pattern, "", WithOpener(memtree.Opener(trees)), WithNamespace("mine"))
	require.NoError(t, err)

	assert.Equal(t, "mine", ds.Namespace)
	assert.Equal(t, "parta", ds.Name)
	assert.Contains(t, ds.Backends, "mine")
}

func TestOpenFailingPartition(t *testing.T) {
	pattern, trees := memPartitions(t, 1, 1)
	delete(trees, filepath.Join(filepath.Dir(pattern), "partb.arrow"))

	_, err := Open(pattern, "", WithOpener(memtree.Opener(trees)), WithListingWorkers(2))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partb.arrow")
}

func TestOpenReadsFirstPartitionOnce(t *testing.T) {
	pattern, trees := memPartitions(t, 2, 3)

	_, err := Open(pattern, "", WithOpener(memtree.Opener(trees)))
	require.NoError(t, err)

	for path, tree := range trees {
		assert.Equal(t, 1, tree.Opens(), path)
	}
}

// countingOpener serves entry counts without opening trees.
type countingOpener struct {
	source.Opener
	trees   map[string]*memtree.Tree
	opened  []string
	counted []string
}

func (c *countingOpener) Open(path, treepath string) (source.Tree, error) {
	c.opened = append(c.opened, path)
	return c.Opener.Open(path, treepath)
}

func (c *countingOpener) CountEntries(path, _ string) (int64, error) {
	c.counted = append(c.counted, path)
	tree, ok := c.trees[path]
	if !ok {
		return 0, os.ErrNotExist
	}
	return tree.NumEntries(), nil
}

func TestOpenUsesEntryCounter(t *testing.T) {
	pattern, trees := memPartitions(t, 2, 3, 4)
	dir := filepath.Dir(pattern)
	opener := &countingOpener{Opener: memtree.Opener(trees), trees: trees}

	ds, err := Open(pattern, "", WithOpener(opener))
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 2, 5, 9}, ds.Offsets)
	assert.Equal(t, []string{filepath.Join(dir, "parta.arrow")}, opener.opened)
	assert.Equal(t, []string{filepath.Join(dir, "partb.arrow"), filepath.Join(dir, "partc.arrow")}, opener.counted)

	delete(trees, filepath.Join(dir, "partc.arrow"))
	_, err = Open(pattern, "", WithOpener(&countingOpener{Opener: memtree.Opener(trees), trees: trees}))
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "partc.arrow")
}

func TestPartitionOf(t *testing.T) {
	ds := &Dataset{Offsets: []int64{0, 3, 3, 5}}

	tests := []struct {
		entry     int64
		partition int
		local     int64
	}{
		{0, 0, 0},
		{2, 0, 2},
		{3, 2, 0},
		{4, 2, 1},
	}
	for _, tt := range tests {
		p, local, err := ds.PartitionOf(tt.entry)
		require.NoError(t, err)
		assert.Equal(t, tt.partition, p, "entry %d", tt.entry)
		assert.Equal(t, tt.local, local, "entry %d", tt.entry)
	}

	_, _, err := ds.PartitionOf(5)
	assert.ErrorIs(t, err, ErrEntryRange)
	_, _, err = ds.PartitionOf(-1)
	assert.ErrorIs(t, err, ErrEntryRange)
}

func writeEvents(t *testing.T, path string, nMuon, pt, eta string) {
	t.Helper()
	mem := memory.DefaultAllocator
	count := arrow.NewMetadata([]string{ipcsource.MetaCount}, []string{"nMuon"})
	muonType := arrow.StructOf(
		arrow.Field{Name: "pt", Type: arrow.ListOf(arrow.PrimitiveTypes.Float32), Metadata: count},
		arrow.Field{Name: "eta", Type: arrow.ListOf(arrow.PrimitiveTypes.Float32), Metadata: count},
	)
	md := arrow.NewMetadata([]string{ipcsource.MetaTitle}, []string{"muon events"})
	sc := arrow.NewSchema([]arrow.Field{
		{Name: "nMuon", Type: arrow.PrimitiveTypes.Int32},
		{Name: "Muon", Type: muonType},
	}, &md)

	n := col(t, arrow.PrimitiveTypes.Int32, nMuon)
	defer n.Release()
	ptArr := col(t, muonType.Field(0).Type, pt)
	defer ptArr.Release()
	etaArr := col(t, muonType.Field(1).Type, eta)
	defer etaArr.Release()
	muon, err := array.NewStructArrayWithFields([]arrow.Array{ptArr, etaArr}, muonType.Fields())
	require.NoError(t, err)
	defer muon.Release()

	rec := array.NewRecord(sc, []arrow.Array{n, muon}, int64(n.Len()))
	defer rec.Release()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, arrowipc.NewCodec(mem).WriteRecords(f, sc, []arrow.Record{rec}))
}

func TestOpenIPCPartitions(t *testing.T) {
	dir := t.TempDir()
	writeEvents(t, filepath.Join(dir, "run1.arrow"), `[2, 0, 1]`, `[[1, 2], [], [3]]`, `[[0.1, 0.2], [], [0.3]]`)
	writeEvents(t, filepath.Join(dir, "run2.arrow"), `[1]`, `[[4]]`, `[[0.4]]`)

	ds, err := Open(filepath.Join(dir, "*.arrow"), "", WithListingWorkers(2), WithChunkBytes(4096))
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 3, 4}, ds.Offsets)
	assert.Equal(t, "muon events", ds.Doc)
	assert.Equal(t, "run1", ds.Name)

	event := ds.Schema.Content.(*schema.Record)
	muon, ok := event.Field("Muon")
	require.True(t, ok)
	assert.Equal(t,
		"List[nMuon](Record{pt: Primitive<float32>(Muon.pt), eta: Primitive<float32>(Muon.eta)})",
		schema.Format(muon))

	h, err := ds.Partition(0)
	require.NoError(t, err)
	defer h.Close()

	out, err := h.GetAll(ds.Roles())
	require.NoError(t, err)

	l := muon.(*schema.List)
	assert.Equal(t, []int64{0, 2, 2}, out[resolve.StartsRole(l)].(*array.Int64).Int64Values())
	assert.Equal(t, []int64{2, 2, 3}, out[resolve.StopsRole(l)].(*array.Int64).Int64Values())

	ptNode, _ := l.Content.(*schema.Record).Field("pt")
	pt := out[resolve.DataRole(ptNode.(*schema.Primitive))]
	assert.Equal(t, []float32{1, 2, 3}, pt.(*array.Float32).Float32Values())

	h2, err := ds.Partition(1)
	require.NoError(t, err)
	defer h2.Close()
	assert.Equal(t, int64(1), h2.NumEntries())
}
