package store

import (
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-git/go-billy/v5"
	"go.uber.org/zap"

	"github.com/VanDung-dev/arraybridge/arrowipc"
	"github.com/VanDung-dev/arraybridge/metrics"
)

// Extension is the file suffix of stored arrays.
const Extension = ".arrow"

var (
	// ErrNotFound is returned when a name is absent or its file is unreadable.
	ErrNotFound = errors.New("array not found")
	// ErrInvalidName is returned for names that would escape the partition.
	ErrInvalidName = errors.New("invalid array name")
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics records store operations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithCodec sets the IPC codec, and with it the allocator used on reads.
func WithCodec(c *arrowipc.Codec) Option {
	return func(s *Store) { s.codec = c }
}

// Store persists named arrays for one partition. A Store is not safe for
// concurrent writers.
type Store struct {
	fs        billy.Filesystem
	partition string
	codec     *arrowipc.Codec
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// PartitionDir returns the directory name used for a partition of a
// namespace.
func PartitionDir(namespace string, partitionID int) string {
	return fmt.Sprintf("%s-%d", namespace, partitionID)
}

// New creates a store rooted at partition inside fs, creating the directory
// if needed.
func New(fs billy.Filesystem, partition string, opts ...Option) (*Store, error) {
	s := &Store{
		fs:        fs,
		partition: partition,
		codec:     arrowipc.NewCodec(nil),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := fs.MkdirAll(partition, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create partition %s: %w", partition, err)
	}
	return s, nil
}

// Partition returns the partition directory.
func (s *Store) Partition() string {
	return s.partition
}

// Get reads the array stored under name. The caller owns the result.
func (s *Store) Get(name string) (arr arrow.Array, err error) {
	defer func() { s.record("get", err) }()

	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer f.Close()

	arr, err = s.codec.ReadArray(f)
	if err != nil {
		s.logger.Warn("unreadable stored array", zap.String("name", name), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, name, err)
	}
	return arr, nil
}

// Set stores arr under name, replacing any previous value.
func (s *Store) Set(name string, arr arrow.Array) (err error) {
	defer func() { s.record("set", err) }()

	p, err := s.path(name)
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	f, err := s.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}
	if err := s.codec.WriteArray(f, name, arr); err != nil {
		f.Close()
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	if err := s.fs.Rename(tmp, p); err != nil {
		return fmt.Errorf("failed to commit %s: %w", name, err)
	}
	s.logger.Debug("stored array",
		zap.String("name", name),
		zap.Stringer("type", arr.DataType()),
		zap.Int("len", arr.Len()))
	return nil
}

// Delete removes the array stored under name.
func (s *Store) Delete(name string) (err error) {
	defer func() { s.record("delete", err) }()

	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// Names returns the stored names in sorted order.
func (s *Store) Names() ([]string, error) {
	infos, err := s.fs.ReadDir(s.partition)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.partition, err)
	}
	var names []string
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), Extension) {
			continue
		}
		names = append(names, strings.TrimSuffix(info.Name(), Extension))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) path(name string) (string, error) {
	if name == "" || name == "." || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return path.Join(s.partition, name+Extension), nil
}

func (s *Store) record(op string, err error) {
	if s.metrics != nil {
		s.metrics.RecordStoreOp(op, err)
	}
}
