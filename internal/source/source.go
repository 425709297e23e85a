// Package source turns files into Arrow record streams that can be
// registered as views. A File is the private state behind one view: it
// reopens the file for every stream it hands out, so each scan starts from
// the first row.
package source

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/hashicorp/go-multierror"
)

// Format is a file format a source can read
type Format string

const (
	CSV     Format = "csv"
	NDJSON  Format = "ndjson"
	Parquet Format = "parquet"
)

// DefaultBatchSize is the number of rows per record when a spec sets none
const DefaultBatchSize = 1024

// Column declares one column of a CSV or NDJSON file
type Column struct {
	Name string
	Type string
}

// Spec describes a file to read
type Spec struct {
	Path      string
	Format    Format
	BatchSize int
	Columns   []Column
}

// DetectFormat infers the format from a file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv":
		return CSV, nil
	case ".ndjson", ".jsonl", ".json":
		return NDJSON, nil
	case ".parquet", ".pq":
		return Parquet, nil
	}
	return "", fmt.Errorf("can't infer format of %s, set it explicitly", path)
}

var typeNames = map[string]arrow.DataType{
	"bool":      arrow.FixedWidthTypes.Boolean,
	"boolean":   arrow.FixedWidthTypes.Boolean,
	"int8":      arrow.PrimitiveTypes.Int8,
	"int16":     arrow.PrimitiveTypes.Int16,
	"int32":     arrow.PrimitiveTypes.Int32,
	"int64":     arrow.PrimitiveTypes.Int64,
	"uint8":     arrow.PrimitiveTypes.Uint8,
	"uint16":    arrow.PrimitiveTypes.Uint16,
	"uint32":    arrow.PrimitiveTypes.Uint32,
	"uint64":    arrow.PrimitiveTypes.Uint64,
	"float32":   arrow.PrimitiveTypes.Float32,
	"float":     arrow.PrimitiveTypes.Float32,
	"float64":   arrow.PrimitiveTypes.Float64,
	"double":    arrow.PrimitiveTypes.Float64,
	"string":    arrow.BinaryTypes.String,
	"utf8":      arrow.BinaryTypes.String,
	"varchar":   arrow.BinaryTypes.String,
	"binary":    arrow.BinaryTypes.Binary,
	"date":      arrow.FixedWidthTypes.Date32,
	"time":      arrow.FixedWidthTypes.Time64us,
	"timestamp": arrow.FixedWidthTypes.Timestamp_us,
}

// ParseType maps a column type name onto an Arrow type
func ParseType(name string) (arrow.DataType, error) {
	t, ok := typeNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown column type %q", name)
	}
	return t, nil
}

func declaredSchema(cols []Column) (*arrow.Schema, error) {
	fields := make([]arrow.Field, 0, len(cols))
	var errs *multierror.Error
	for _, c := range cols {
		t, err := ParseType(c.Type)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("column %s: %w", c.Name, err))
			continue
		}
		fields = append(fields, arrow.Field{Name: c.Name, Type: t, Nullable: true})
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return arrow.NewSchema(fields, nil), nil
}

// File is the state behind a view over one file
type File struct {
	spec   Spec
	schema *arrow.Schema
	mem    memory.Allocator
	open   func(f *File, file *os.File) (array.RecordReader, error)

	mu      sync.Mutex
	readers map[*fileReader]struct{}
	closed  bool
}

// Open checks the file and resolves its schema. mem may be nil.
func Open(spec Spec, mem memory.Allocator) (*File, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	if spec.BatchSize <= 0 {
		spec.BatchSize = DefaultBatchSize
	}
	if spec.Format == "" {
		format, err := DetectFormat(spec.Path)
		if err != nil {
			return nil, err
		}
		spec.Format = format
	}
	if _, err := os.Stat(spec.Path); err != nil {
		return nil, fmt.Errorf("source %s: %w", spec.Path, err)
	}

	f := &File{spec: spec, mem: mem, readers: make(map[*fileReader]struct{})}

	var err error
	switch spec.Format {
	case CSV:
		f.schema, err = csvSchema(spec)
		f.open = openCSV
	case NDJSON:
		if len(spec.Columns) == 0 {
			return nil, fmt.Errorf("source %s: ndjson needs declared columns", spec.Path)
		}
		f.schema, err = declaredSchema(spec.Columns)
		f.open = openNDJSON
	case Parquet:
		f.schema, err = parquetSchema(spec.Path)
		f.open = openParquet
	default:
		return nil, fmt.Errorf("source %s: unknown format %q", spec.Path, spec.Format)
	}
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", spec.Path, err)
	}

	log.Printf("[DEBUG] opened %s source %s with %d columns", spec.Format, spec.Path, f.schema.NumFields())
	return f, nil
}

// Schema returns the schema every stream from f has
func (f *File) Schema() *arrow.Schema {
	return f.schema
}

// Spec returns the resolved spec, with format and batch size filled in
func (f *File) Spec() Spec {
	return f.spec
}

// Reader opens the file and returns a stream over all of it. Releasing the
// stream closes the file.
func (f *File) Reader() (array.RecordReader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, errors.New("source is closed")
	}

	file, err := os.Open(f.spec.Path)
	if err != nil {
		return nil, err
	}
	rdr, err := f.open(f, file)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	fr := &fileReader{RecordReader: rdr, file: file, owner: f}
	f.readers[fr] = struct{}{}
	return fr, nil
}

// Close closes files of streams that were never released and makes further
// Reader calls fail
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var errs *multierror.Error
	for fr := range f.readers {
		errs = multierror.Append(errs, fr.file.Close())
	}
	f.readers = nil
	return errs.ErrorOrNil()
}

func (f *File) forget(fr *fileReader) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.readers, fr)
}

// Produce is an arrowscan.ProduceFunc for *File state
func Produce(state any) (array.RecordReader, error) {
	f, ok := state.(*File)
	if !ok {
		return nil, fmt.Errorf("source: unexpected state %T", state)
	}
	return f.Reader()
}

// Release is an arrowscan.ReleaseFunc for *File state
func Release(state any) {
	f, ok := state.(*File)
	if !ok {
		return
	}
	if err := f.Close(); err != nil {
		log.Printf("[WARN] can't close source %s: %v", f.spec.Path, err)
	}
}

// fileReader closes its file when the stream is released
type fileReader struct {
	array.RecordReader
	file  *os.File
	owner *File
	once  sync.Once
}

func (r *fileReader) Release() {
	r.RecordReader.Release()
	r.once.Do(func() {
		r.owner.forget(r)
		_ = r.file.Close()
	})
}
