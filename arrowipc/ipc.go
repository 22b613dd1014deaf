package arrowipc

import (
	"errors"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// ErrNoRecords is returned when a stream holds a schema but no batches and
// a column was requested from it.
var ErrNoRecords = errors.New("no records in IPC stream")

// Codec reads and writes Arrow IPC streams.
type Codec struct {
	allocator memory.Allocator
}

// NewCodec creates a Codec allocating from mem. A nil mem uses the default
// allocator.
func NewCodec(mem memory.Allocator) *Codec {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	return &Codec{allocator: mem}
}

// Allocator returns the codec's allocator.
func (c *Codec) Allocator() memory.Allocator {
	return c.allocator
}

// WriteArray writes arr as a stream holding one record with a single
// column called name.
func (c *Codec) WriteArray(w io.Writer, name string, arr arrow.Array) error {
	schema := arrow.NewSchema([]arrow.Field{{Name: name, Type: arr.DataType(), Nullable: arr.NullN() > 0}}, nil)
	record := array.NewRecord(schema, []arrow.Array{arr}, int64(arr.Len()))
	defer record.Release()

	return c.WriteRecords(w, schema, []arrow.Record{record})
}

// ReadArray reads a single-column stream and returns the column with all
// batches concatenated. The caller owns the result.
func (c *Codec) ReadArray(r io.Reader) (arrow.Array, error) {
	schema, records, err := c.ReadRecords(r)
	if err != nil {
		return nil, err
	}
	defer ReleaseAll(records)

	if len(schema.Fields()) != 1 {
		return nil, fmt.Errorf("expected 1 column, got %d", len(schema.Fields()))
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return c.Column(records, 0)
}

// WriteRecords writes records to w as one IPC stream.
func (c *Codec) WriteRecords(w io.Writer, schema *arrow.Schema, records []arrow.Record) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(c.allocator))
	defer writer.Close()

	for i, record := range records {
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

// ReadRecords reads every batch of an IPC stream. The caller must release
// the returned records.
func (c *Codec) ReadRecords(r io.Reader) (*arrow.Schema, []arrow.Record, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(c.allocator))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()

	var records []arrow.Record
	for reader.Next() {
		record := reader.Record()
		record.Retain()
		records = append(records, record)
	}

	if err := reader.Err(); err != nil {
		ReleaseAll(records)
		return nil, nil, err
	}
	return reader.Schema(), records, nil
}

// CountRows reads an IPC stream one batch at a time and returns its schema
// and total row count. No batch outlives the call.
func (c *Codec) CountRows(r io.Reader) (*arrow.Schema, int64, error) {
	reader, err := ipc.NewReader(r, ipc.WithAllocator(c.allocator))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()

	var rows int64
	for reader.Next() {
		rows += reader.Record().NumRows()
	}
	if err := reader.Err(); err != nil {
		return nil, 0, err
	}
	return reader.Schema(), rows, nil
}

// Column returns column i of records concatenated into one array. A single
// batch is retained rather than copied.
func (c *Codec) Column(records []arrow.Record, i int) (arrow.Array, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	if len(records) == 1 {
		col := records[0].Column(i)
		col.Retain()
		return col, nil
	}
	chunks := make([]arrow.Array, len(records))
	for j, record := range records {
		chunks[j] = record.Column(i)
	}
	col, err := array.Concatenate(chunks, c.allocator)
	if err != nil {
		return nil, fmt.Errorf("failed to concatenate column %d: %w", i, err)
	}
	return col, nil
}

// ReleaseAll releases every record.
func ReleaseAll(records []arrow.Record) {
	for _, r := range records {
		r.Release()
	}
}
