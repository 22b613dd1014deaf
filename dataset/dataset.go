package dataset

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/VanDung-dev/arraybridge/backend"
	"github.com/VanDung-dev/arraybridge/core"
	"github.com/VanDung-dev/arraybridge/infer"
	"github.com/VanDung-dev/arraybridge/resolve"
	"github.com/VanDung-dev/arraybridge/schema"
	"github.com/VanDung-dev/arraybridge/source"
	"github.com/VanDung-dev/arraybridge/source/ipcsource"
)

// MetaSchemaFrom is the metadata key naming the partition the schema was
// inferred from.
const MetaSchemaFrom = "schemafrom"

var (
	// ErrNoPartitions is returned when a pattern matches no files.
	ErrNoPartitions = errors.New("no partitions found")
	// ErrEntryRange is returned for an entry outside the dataset.
	ErrEntryRange = errors.New("entry out of range")
)

// Dataset is an opened set of partitions sharing one schema.
type Dataset struct {
	Name      string
	Namespace string
	Doc       string
	// Schema is the root list of records, one per entry.
	Schema *schema.List
	// Offsets has one more element than there are partitions; partition i
	// holds global entries [Offsets[i], Offsets[i+1]).
	Offsets  []int64
	Metadata map[string]string
	Backends map[string]*backend.Backend
}

// DefaultNamespace returns the namespace used when none is given.
func DefaultNamespace(pattern, treepath string) string {
	return fmt.Sprintf("ipc(%q, %q)", pattern, treepath)
}

// Name returns the dataset name for a treepath: its last component
// without a cycle suffix, or the stem of firstPath for an empty treepath.
func Name(treepath, firstPath string) string {
	if parts := ipcsource.SplitTreepath(treepath); len(parts) > 0 {
		return parts[len(parts)-1]
	}
	base := filepath.Base(firstPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Open globs pattern for partition files, counts the entries of each,
// infers the schema from the first and registers a backend for them.
func Open(pattern, treepath string, opts ...Option) (*Dataset, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.namespace == "" {
		o.namespace = DefaultNamespace(pattern, treepath)
	}
	if o.opener == nil {
		o.opener = ipcsource.NewOpener(
			ipcsource.WithChunkBytes(o.chunkBytes),
			ipcsource.WithAllocator(o.mem),
			ipcsource.WithLogger(o.logger))
	}
	logger := o.logger.With(zap.String("namespace", o.namespace))

	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %q matches no files for tree %q", ErrNoPartitions, pattern, treepath)
	}
	sort.Strings(paths)

	// The first partition is opened once for both its schema and its
	// entry count; the others are only counted.
	first, err := o.opener.Open(paths[0], treepath)
	if err != nil {
		if o.metrics != nil {
			o.metrics.OpenFailures.Inc()
		}
		return nil, fmt.Errorf("failed to open %s: %w", paths[0], err)
	}
	inf := infer.NewInferrer(o.namespace)
	inf.Config.Merge = o.merge
	inf.Config.Logger = logger
	root := inf.Infer(first)
	firstEntries := first.NumEntries()
	if err := first.Close(); err != nil {
		return nil, fmt.Errorf("failed to close %s: %w", paths[0], err)
	}

	rest, err := listEntries(o, paths[1:], treepath)
	if err != nil {
		return nil, err
	}
	counts := append([]int64{firstEntries}, rest...)
	offsets := make([]int64, len(counts)+1)
	for i, n := range counts {
		offsets[i+1] = offsets[i] + n
	}

	doc := root.Doc
	root.Doc = ""

	b := backend.New(paths, treepath,
		backend.WithOpener(o.opener),
		backend.WithCacheSize(o.cacheSize),
		backend.WithAllocator(o.mem),
		backend.WithLogger(logger),
		backend.WithMetrics(o.metrics))

	logger.Info("dataset opened",
		zap.String("pattern", pattern),
		zap.Int("partitions", len(paths)),
		zap.Int64("entries", offsets[len(offsets)-1]))

	return &Dataset{
		Name:      Name(treepath, paths[0]),
		Namespace: o.namespace,
		Doc:       doc,
		Schema:    root,
		Offsets:   offsets,
		Metadata:  map[string]string{MetaSchemaFrom: paths[0]},
		Backends:  map[string]*backend.Backend{o.namespace: b},
	}, nil
}

// listEntries reads the entry count of every partition, through the
// opener's EntryCounter when it has one.
func listEntries(o *options, paths []string, treepath string) ([]int64, error) {
	counter, _ := o.opener.(source.EntryCounter)
	count := func(_ context.Context, path string) (int64, error) {
		if counter != nil {
			n, err := counter.CountEntries(path, treepath)
			if err != nil {
				if o.metrics != nil {
					o.metrics.OpenFailures.Inc()
				}
				return 0, fmt.Errorf("failed to open %s: %w", path, err)
			}
			return n, nil
		}
		tree, err := o.opener.Open(path, treepath)
		if err != nil {
			if o.metrics != nil {
				o.metrics.OpenFailures.Inc()
			}
			return 0, fmt.Errorf("failed to open %s: %w", path, err)
		}
		n := tree.NumEntries()
		if err := tree.Close(); err != nil {
			return 0, fmt.Errorf("failed to close %s: %w", path, err)
		}
		return n, nil
	}

	if o.listingWorkers <= 1 || len(paths) <= 1 {
		counts := make([]int64, len(paths))
		for i, path := range paths {
			n, err := count(context.Background(), path)
			if err != nil {
				return nil, err
			}
			counts[i] = n
		}
		return counts, nil
	}
	return core.Map(context.Background(), "listing", o.listingWorkers, paths, count)
}

// NumEntries returns the total number of entries.
func (d *Dataset) NumEntries() int64 {
	return d.Offsets[len(d.Offsets)-1]
}

// NumPartitions returns the number of partitions.
func (d *Dataset) NumPartitions() int {
	return len(d.Offsets) - 1
}

// Backend returns the dataset's own backend.
func (d *Dataset) Backend() *backend.Backend {
	return d.Backends[d.Namespace]
}

// Partition opens a handle on partition id.
func (d *Dataset) Partition(id int) (*backend.Arrays, error) {
	return d.Backend().Instantiate(id)
}

// PartitionOf maps a global entry to its partition and the entry's index
// inside that partition.
func (d *Dataset) PartitionOf(entry int64) (partition int, local int64, err error) {
	if entry < 0 || entry >= d.NumEntries() {
		return 0, 0, fmt.Errorf("%w: %d of %d", ErrEntryRange, entry, d.NumEntries())
	}
	// First offset strictly above entry closes its partition.
	i := sort.Search(len(d.Offsets), func(i int) bool { return d.Offsets[i] > entry })
	return i - 1, entry - d.Offsets[i-1], nil
}

// Roles returns every role of the dataset schema.
func (d *Dataset) Roles() []resolve.Role {
	return resolve.RolesOf(d.Schema)
}
