package schema

import (
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *List {
	muons := NewRecord("ns")
	muons.Set("pt", &Primitive{Type: arrow.PrimitiveTypes.Float32, Data: "Muon.pt", Namespace: "ns"})
	muons.Set("eta", &Primitive{Type: arrow.PrimitiveTypes.Float32, Data: "Muon.eta", Namespace: "ns"})

	event := NewRecord("ns")
	event.Set("run", &Primitive{Type: arrow.PrimitiveTypes.Int32, Data: "run", Namespace: "ns"})
	event.Set("muons", &List{Content: muons, Starts: "nMuon", Stops: "nMuon", Namespace: "ns"})
	event.Set("name", &List{
		Content:   &Primitive{Type: arrow.PrimitiveTypes.Uint8, Data: "name", Namespace: "ns"},
		Starts:    "name",
		Stops:     "name",
		Namespace: "ns",
		Name:      ByteStringName,
	})
	return &List{Content: event, Namespace: "ns", Doc: "events"}
}

func TestRecordKeepsFieldOrder(t *testing.T) {
	r := NewRecord("")
	for _, name := range []string{"z", "a", "m"} {
		r.Set(name, &Primitive{Type: arrow.PrimitiveTypes.Int8, Data: Locator(name)})
	}
	if diff := cmp.Diff([]string{"z", "a", "m"}, r.Names()); diff != "" {
		t.Errorf("field order mismatch (-want +got):\n%s", diff)
	}
}

func TestReplaceIsBottomUpAndCopies(t *testing.T) {
	root := sampleTree()
	before := Format(root)

	var order []string
	out := Replace(root, func(n Node) Node {
		switch t := n.(type) {
		case *Primitive:
			order = append(order, "P:"+string(t.Data))
		case *List:
			order = append(order, "L:"+string(t.Starts))
			t.Starts = Locator(strings.ToUpper(string(t.Starts)))
		case *Record:
			order = append(order, "R")
		}
		return n
	})

	want := []string{"P:run", "P:Muon.pt", "P:Muon.eta", "R", "L:nMuon", "P:name", "L:name", "R", "L:"}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("visit order mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, before, Format(root), "input tree must not change")
	assert.Contains(t, Format(out), "List[NMUON,nMuon]")
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(sampleTree(), sampleTree()))

	other := sampleTree()
	other.Content.(*Record).Set("extra", &Primitive{Type: arrow.PrimitiveTypes.Int8, Data: "extra"})
	assert.False(t, Equal(sampleTree(), other))

	swapped := NewRecord("")
	swapped.Set("b", &Primitive{Type: arrow.PrimitiveTypes.Int8, Data: "b"})
	swapped.Set("a", &Primitive{Type: arrow.PrimitiveTypes.Int8, Data: "a"})
	ordered := NewRecord("")
	ordered.Set("a", &Primitive{Type: arrow.PrimitiveTypes.Int8, Data: "a"})
	ordered.Set("b", &Primitive{Type: arrow.PrimitiveTypes.Int8, Data: "b"})
	assert.False(t, Equal(swapped, ordered), "field order is significant")
}

func TestToArrow(t *testing.T) {
	dt := ToArrow(sampleTree())

	want := arrow.ListOf(arrow.StructOf(
		arrow.Field{Name: "run", Type: arrow.PrimitiveTypes.Int32},
		arrow.Field{Name: "muons", Type: arrow.ListOf(arrow.StructOf(
			arrow.Field{Name: "pt", Type: arrow.PrimitiveTypes.Float32},
			arrow.Field{Name: "eta", Type: arrow.PrimitiveTypes.Float32},
		))},
		arrow.Field{Name: "name", Type: arrow.BinaryTypes.Binary},
	))
	assert.True(t, arrow.TypeEqual(want, dt), "got %s", dt)
}

func TestArrowSchema(t *testing.T) {
	s := ArrowSchema("events", sampleTree())
	require.Equal(t, 3, s.NumFields())
	assert.Equal(t, "muons", s.Field(1).Name)

	idx := s.Metadata().FindKey("title")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, "events", s.Metadata().Values()[idx])
}

func TestMarshalJSONKeepsOrder(t *testing.T) {
	data, err := sampleTree().MarshalJSON()
	require.NoError(t, err)

	s := string(data)
	assert.Contains(t, s, `"type":"list"`)
	assert.Contains(t, s, `"name":"ByteString"`)
	assert.Less(t, strings.Index(s, `"run"`), strings.Index(s, `"muons"`))
	assert.Less(t, strings.Index(s, `"Muon.pt"`), strings.Index(s, `"Muon.eta"`))
}

func TestWalkPaths(t *testing.T) {
	var paths []string
	Walk(sampleTree(), func(path string, n Node) bool {
		if _, ok := n.(*Primitive); ok {
			paths = append(paths, path)
		}
		return true
	})
	want := []string{"[].run", "[].muons[].pt", "[].muons[].eta", "[].name[]"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("paths mismatch (-want +got):\n%s", diff)
	}
}
