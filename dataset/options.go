package dataset

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/VanDung-dev/arraybridge/cache"
	"github.com/VanDung-dev/arraybridge/metrics"
	"github.com/VanDung-dev/arraybridge/source"
)

// Option configures Open.
type Option func(*options)

type options struct {
	namespace      string
	opener         source.Opener
	chunkBytes     int
	cacheSize      int
	listingWorkers int
	merge          bool
	mem            memory.Allocator
	logger         *zap.Logger
	metrics        *metrics.Metrics
}

func defaultOptions() *options {
	return &options{
		cacheSize:      cache.DefaultSize,
		listingWorkers: 1,
		merge:          true,
		mem:            memory.DefaultAllocator,
		logger:         zap.NewNop(),
	}
}

// WithNamespace sets the namespace of the schema and the backend registry
// key.
func WithNamespace(ns string) Option {
	return func(o *options) { o.namespace = ns }
}

// WithOpener sets the source opener. The default reads Arrow IPC files.
func WithOpener(op source.Opener) Option {
	return func(o *options) { o.opener = op }
}

// WithChunkBytes sets the read buffer size of the default opener.
func WithChunkBytes(n int) Option {
	return func(o *options) { o.chunkBytes = n }
}

// WithCacheSize sets the number of branches each partition handle caches.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// WithListingWorkers sets how many partitions are opened concurrently to
// count entries. 1 lists them one after another.
func WithListingWorkers(n int) Option {
	return func(o *options) { o.listingWorkers = n }
}

// WithMerge toggles the list-of-records rewrite during inference.
func WithMerge(merge bool) Option {
	return func(o *options) { o.merge = merge }
}

// WithAllocator sets the Arrow allocator.
func WithAllocator(mem memory.Allocator) Option {
	return func(o *options) { o.mem = mem }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records source and resolution metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}
