package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/VanDung-dev/arraybridge/store"
)

type storeFlags struct {
	base      string
	namespace string
	partition int
}

func (f *storeFlags) open(a *app) (*store.Store, error) {
	ns := f.namespace
	if ns == "" {
		ns = a.cfg.Namespace
	}
	if ns == "" {
		ns = "arrays"
	}
	opts := []store.Option{store.WithLogger(a.logger)}
	if a.metrics != nil {
		opts = append(opts, store.WithMetrics(a.metrics))
	}
	return store.New(osfs.New(f.base), store.PartitionDir(ns, f.partition), opts...)
}

func newStoreCmd(a *app) *cobra.Command {
	f := &storeFlags{}
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Read and write arrays in a partition store",
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&f.base, "base", ".", "base directory of the store")
	flags.StringVar(&f.namespace, "store-namespace", "", "namespace of the partition directory")
	flags.IntVar(&f.partition, "partition", 0, "partition id")

	cmd.AddCommand(
		newStorePutCmd(a, f),
		newStoreGetCmd(a, f),
		newStoreRmCmd(a, f),
		newStoreLsCmd(a, f),
	)
	return cmd
}

func newStorePutCmd(a *app, f *storeFlags) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "put <name> <json>",
		Short: "Store a JSON array under name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dt, err := ParseType(typ)
			if err != nil {
				return err
			}
			arr, _, err := array.FromJSON(memory.DefaultAllocator, dt, strings.NewReader(args[1]))
			if err != nil {
				return fmt.Errorf("failed to parse %s values: %w", dt, err)
			}
			defer arr.Release()

			s, err := f.open(a)
			if err != nil {
				return err
			}
			return s.Set(args[0], arr)
		},
	}
	cmd.Flags().StringVar(&typ, "type", "float64", "element type, e.g. int32 or [2][3]float32")
	return cmd
}

func newStoreGetCmd(a *app, f *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <name>",
		Short: "Print the array stored under name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.open(a)
			if err != nil {
				return err
			}
			arr, err := s.Get(args[0])
			if err != nil {
				return err
			}
			defer arr.Release()
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%v\n", arr.DataType(), arr)
			return nil
		},
	}
}

func newStoreRmCmd(a *app, f *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <name>...",
		Short: "Delete stored arrays",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := f.open(a)
			if err != nil {
				return err
			}
			for _, name := range args {
				if err := s.Delete(name); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newStoreLsCmd(a *app, f *storeFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ls",
		Short: "List stored array names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := f.open(a)
			if err != nil {
				return err
			}
			names, err := s.Names()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

var scalarTypes = map[string]arrow.DataType{
	"bool":    arrow.FixedWidthTypes.Boolean,
	"int8":    arrow.PrimitiveTypes.Int8,
	"int16":   arrow.PrimitiveTypes.Int16,
	"int32":   arrow.PrimitiveTypes.Int32,
	"int64":   arrow.PrimitiveTypes.Int64,
	"uint8":   arrow.PrimitiveTypes.Uint8,
	"uint16":  arrow.PrimitiveTypes.Uint16,
	"uint32":  arrow.PrimitiveTypes.Uint32,
	"uint64":  arrow.PrimitiveTypes.Uint64,
	"float32": arrow.PrimitiveTypes.Float32,
	"float64": arrow.PrimitiveTypes.Float64,
}

// ParseType parses a scalar type name optionally prefixed by fixed
// dimensions, outer first: "[2][3]float32" is two rows of three floats.
func ParseType(s string) (arrow.DataType, error) {
	var dims []int32
	rest := s
	for strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end < 0 {
			return nil, fmt.Errorf("bad type %q: unclosed dimension", s)
		}
		n, err := strconv.Atoi(rest[1:end])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("bad type %q: dimension %q", s, rest[1:end])
		}
		dims = append(dims, int32(n))
		rest = rest[end+1:]
	}
	dt, ok := scalarTypes[rest]
	if !ok {
		return nil, fmt.Errorf("bad type %q: unknown scalar %q", s, rest)
	}
	for i := len(dims) - 1; i >= 0; i-- {
		dt = arrow.FixedSizeListOf(dims[i], dt)
	}
	return dt, nil
}
