package backend

import (
	"errors"
	"fmt"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/VanDung-dev/arraybridge/cache"
	"github.com/VanDung-dev/arraybridge/metrics"
	"github.com/VanDung-dev/arraybridge/resolve"
	"github.com/VanDung-dev/arraybridge/source"
	"github.com/VanDung-dev/arraybridge/source/ipcsource"
)

var (
	// ErrClosed is returned by a handle after Close.
	ErrClosed = errors.New("partition handle is closed")
	// ErrPartitionRange is returned for a partition id outside the backend.
	ErrPartitionRange = errors.New("partition id out of range")
)

// Option configures a Backend.
type Option func(*Backend)

// WithOpener sets the source opener. The default reads Arrow IPC files.
func WithOpener(o source.Opener) Option {
	return func(b *Backend) { b.opener = o }
}

// WithCacheSize sets the number of branches each handle caches.
func WithCacheSize(n int) Option {
	return func(b *Backend) { b.cacheSize = n }
}

// WithAllocator sets the allocator for derived arrays.
func WithAllocator(mem memory.Allocator) Option {
	return func(b *Backend) { b.mem = mem }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) { b.logger = l }
}

// WithMetrics records reads, cache use and resolution on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Backend) { b.metrics = m }
}

// Backend knows the partition paths of one dataset and how to open them.
// It is immutable and safe to share.
type Backend struct {
	paths     []string
	treepath  string
	opener    source.Opener
	cacheSize int
	mem       memory.Allocator
	logger    *zap.Logger
	metrics   *metrics.Metrics
	resolver  *resolve.Resolver
}

// New creates a Backend over paths, addressing treepath inside each.
func New(paths []string, treepath string, opts ...Option) *Backend {
	b := &Backend{
		paths:     append([]string(nil), paths...),
		treepath:  treepath,
		cacheSize: cache.DefaultSize,
		mem:       memory.DefaultAllocator,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.opener == nil {
		b.opener = ipcsource.NewOpener(ipcsource.WithAllocator(b.mem))
	}
	b.resolver = resolve.NewResolver(b.mem)
	return b
}

// NumPartitions returns the number of partitions.
func (b *Backend) NumPartitions() int {
	return len(b.paths)
}

// Paths returns a copy of the partition paths.
func (b *Backend) Paths() []string {
	return append([]string(nil), b.paths...)
}

// Treepath returns the tree address used inside each partition.
func (b *Backend) Treepath() string {
	return b.treepath
}

// Instantiate opens partition partitionID and returns a handle for it.
func (b *Backend) Instantiate(partitionID int) (*Arrays, error) {
	if partitionID < 0 || partitionID >= len(b.paths) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPartitionRange, partitionID, len(b.paths))
	}
	path := b.paths[partitionID]

	tree, err := b.opener.Open(path, b.treepath)
	if err != nil {
		if b.metrics != nil {
			b.metrics.OpenFailures.Inc()
		}
		return nil, fmt.Errorf("failed to open partition %d (%s): %w", partitionID, path, err)
	}

	c, err := cache.New(b.cacheSize)
	if err != nil {
		_ = tree.Close()
		return nil, fmt.Errorf("failed to create branch cache: %w", err)
	}

	if b.metrics != nil {
		b.metrics.PartitionsOpen.Inc()
	}
	b.logger.Debug("partition opened",
		zap.Int("partition", partitionID),
		zap.String("path", path),
		zap.Int64("entries", tree.NumEntries()))

	return &Arrays{
		backend:   b,
		partition: partitionID,
		tree:      tree,
		cache:     c,
		logger:    b.logger.With(zap.Int("partition", partitionID)),
	}, nil
}

// Arrays is an open partition. It is not safe for concurrent use.
type Arrays struct {
	backend   *Backend
	partition int
	tree      source.Tree
	cache     *cache.BranchCache
	logger    *zap.Logger
	closed    bool
}

// Partition returns the partition id of the handle.
func (a *Arrays) Partition() int {
	return a.partition
}

// NumEntries returns the number of entries in the partition.
func (a *Arrays) NumEntries() int64 {
	return a.tree.NumEntries()
}

// CacheStats returns the handle's branch cache statistics.
func (a *Arrays) CacheStats() cache.Stats {
	return a.cache.GetStats()
}

// GetAll resolves every role to an array. Branches are read from the
// source at most once per handle. The returned arrays belong to the
// handle and stay valid until the process releases them; callers that
// keep them longer must Retain.
func (a *Arrays) GetAll(roles []resolve.Role) (map[resolve.Role]arrow.Array, error) {
	if a.closed {
		return nil, ErrClosed
	}

	m := a.backend.metrics
	before := a.cache.GetStats()
	start := time.Now()

	out, err := a.backend.resolver.Resolve(a.cache.Through(counting{a}), roles)

	if m != nil {
		after := a.cache.GetStats()
		m.RecordCache(after.Hits-before.Hits, after.Misses-before.Misses)
		m.RecordResolve(len(out), time.Since(start), err)
	}
	if err != nil {
		var inv *resolve.InvariantError
		if errors.As(err, &inv) {
			if m != nil {
				m.InvariantViolations.Inc()
			}
			a.logger.Error("role resolution failed", zap.Stringer("role", inv.Role), zap.Error(err))
		}
		return nil, err
	}

	a.logger.Debug("roles resolved", zap.Int("roles", len(roles)), zap.Duration("elapsed", time.Since(start)))
	return out, nil
}

// Close releases the partition. Later calls on the handle return ErrClosed.
func (a *Arrays) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	a.cache.Purge()
	if m := a.backend.metrics; m != nil {
		m.PartitionsOpen.Dec()
	}
	if err := a.tree.Close(); err != nil {
		return fmt.Errorf("failed to close partition %d: %w", a.partition, err)
	}
	return nil
}

// counting reads through the tree and records branch reads.
type counting struct {
	a *Arrays
}

func (c counting) Arrays(names []string) (map[string]source.Physical, error) {
	out, err := c.a.tree.Arrays(names)
	if err != nil {
		return nil, err
	}
	if m := c.a.backend.metrics; m != nil {
		m.BranchReads.Add(float64(len(out)))
	}
	c.a.logger.Debug("branches read", zap.Strings("names", names))
	return out, nil
}
