// Command gensample writes sample event partitions as Arrow IPC files.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/VanDung-dev/arraybridge/arrowipc"
	"github.com/VanDung-dev/arraybridge/source/ipcsource"
)

func main() {
	out := flag.String("out", ".", "Output directory")
	partitions := flag.Int("p", 2, "Number of partitions")
	entries := flag.Int("n", 100, "Entries per partition")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	paths, err := Generate(*out, *partitions, *entries, *seed)
	if err != nil {
		log.Fatalf("Failed to generate samples: %v", err)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
}

// EventSchema is the layout of generated partitions: a muon count, a
// record of muon lists counted by it, a (2, 3) hit matrix, an
// independently jagged track list and a label string.
func EventSchema() *arrow.Schema {
	count := arrow.NewMetadata([]string{ipcsource.MetaCount}, []string{"nMuon"})
	muon := arrow.StructOf(
		arrow.Field{Name: "pt", Type: arrow.ListOf(arrow.PrimitiveTypes.Float32), Metadata: count},
		arrow.Field{Name: "eta", Type: arrow.ListOf(arrow.PrimitiveTypes.Float32), Metadata: count},
	)
	md := arrow.NewMetadata([]string{ipcsource.MetaTitle}, []string{"generated events"})
	return arrow.NewSchema([]arrow.Field{
		{Name: "run", Type: arrow.PrimitiveTypes.Int64},
		{Name: "nMuon", Type: arrow.PrimitiveTypes.Int32},
		{Name: "Muon", Type: muon},
		{Name: "hits", Type: arrow.FixedSizeListOf(2, arrow.FixedSizeListOf(3, arrow.PrimitiveTypes.Int32))},
		{Name: "tracks", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
		{Name: "label", Type: arrow.BinaryTypes.String},
	}, &md)
}

// Generate writes partitions files named events-<i>.arrow into dir and
// returns their paths.
func Generate(dir string, partitions, entries int, seed int64) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(seed))
	codec := arrowipc.NewCodec(memory.DefaultAllocator)
	schema := EventSchema()

	var paths []string
	for p := 0; p < partitions; p++ {
		rec := buildRecord(codec.Allocator(), schema, int64(p), entries, rng)
		path := filepath.Join(dir, fmt.Sprintf("events-%d.arrow", p))
		err := writeFile(codec, path, schema, rec)
		rec.Release()
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(codec *arrowipc.Codec, path string, schema *arrow.Schema, rec arrow.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := codec.WriteRecords(f, schema, []arrow.Record{rec}); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func buildRecord(mem memory.Allocator, schema *arrow.Schema, run int64, entries int, rng *rand.Rand) arrow.Record {
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	runs := b.Field(0).(*array.Int64Builder)
	counts := b.Field(1).(*array.Int32Builder)
	muon := b.Field(2).(*array.StructBuilder)
	pt := muon.FieldBuilder(0).(*array.ListBuilder)
	ptValues := pt.ValueBuilder().(*array.Float32Builder)
	eta := muon.FieldBuilder(1).(*array.ListBuilder)
	etaValues := eta.ValueBuilder().(*array.Float32Builder)
	hits := b.Field(3).(*array.FixedSizeListBuilder)
	hitRows := hits.ValueBuilder().(*array.FixedSizeListBuilder)
	hitValues := hitRows.ValueBuilder().(*array.Int32Builder)
	tracks := b.Field(4).(*array.ListBuilder)
	trackValues := tracks.ValueBuilder().(*array.Float64Builder)
	labels := b.Field(5).(*array.StringBuilder)

	for i := 0; i < entries; i++ {
		runs.Append(run)

		n := rng.Intn(4)
		counts.Append(int32(n))
		muon.Append(true)
		pt.Append(true)
		eta.Append(true)
		for j := 0; j < n; j++ {
			ptValues.Append(5 + 50*rng.Float32())
			etaValues.Append(-2.4 + 4.8*rng.Float32())
		}

		hits.Append(true)
		for r := 0; r < 2; r++ {
			hitRows.Append(true)
			for c := 0; c < 3; c++ {
				hitValues.Append(int32(rng.Intn(100)))
			}
		}

		tracks.Append(true)
		for j := rng.Intn(5); j > 0; j-- {
			trackValues.Append(rng.NormFloat64())
		}

		labels.Append(fmt.Sprintf("run%d-evt%d", run, i))
	}
	return b.NewRecord()
}
