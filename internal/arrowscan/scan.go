package arrowscan

import (
	"errors"
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/connerohnesorge/dukdb-stream/internal/purego"
)

// FunctionName is the table function views are defined over. The engine
// ships its own arrow_scan, so ours needs a distinct name.
const FunctionName = "arrow_stream_scan"

// Function returns the table function that scans a registered factory. It
// takes three UBIGINT arguments, see Args.
func Function() purego.TableFunc {
	return purego.TableFunc{
		Name:       FunctionName,
		Parameters: []purego.Type{purego.TypeUBigint, purego.TypeUBigint, purego.TypeUBigint},
		Bind:       bind,
		Init:       initScan,
		Scan:       scan,
	}
}

type bindData struct {
	factory Handle
	create  CreateStreamFunc
	schema  *arrow.Schema
	columns []columnWriter
}

func bind(b purego.Binder) (any, error) {
	if n := b.ParameterCount(); n != 3 {
		return nil, fmt.Errorf("%s expects 3 arguments, got %d", FunctionName, n)
	}

	factory := Handle(b.Uint64Parameter(0))
	create, err := resolve[CreateStreamFunc](Handle(b.Uint64Parameter(1)))
	if err != nil {
		return nil, fmt.Errorf("resolve stream trampoline: %w", err)
	}
	getSchema, err := resolve[GetSchemaFunc](Handle(b.Uint64Parameter(2)))
	if err != nil {
		return nil, fmt.Errorf("resolve schema trampoline: %w", err)
	}

	schema, err := getSchema(factory)
	if err != nil {
		return nil, err
	}
	if schema.NumFields() == 0 {
		return nil, errors.New("arrow stream schema has no columns")
	}

	bd := &bindData{factory: factory, create: create, schema: schema}
	for _, field := range schema.Fields() {
		t, w, err := columnFor(field)
		if err != nil {
			return nil, err
		}
		b.AddResultColumn(field.Name, t)
		bd.columns = append(bd.columns, w)
	}
	return bd, nil
}

// scanState is one running scan. It holds a reference on the factory so the
// caller's state outlives the scan even if the view is dropped midway.
type scanState struct {
	factory *Factory
	stream  *Stream
	columns []columnWriter
	once    sync.Once
}

func (s *scanState) Release() {
	s.once.Do(func() {
		s.stream.Release()
		s.factory.Release()
	})
}

func initScan(data any) (any, error) {
	bd, ok := data.(*bindData)
	if !ok {
		return nil, fmt.Errorf("unexpected bind data %T", data)
	}

	f, err := resolve[*Factory](bd.factory)
	if err != nil {
		return nil, err
	}
	if !f.tryRetain() {
		return nil, ErrReleased
	}

	stream, err := bd.create(bd.factory, ScanParameters{})
	if err != nil {
		f.Release()
		return nil, err
	}
	if err := sameColumns(bd.schema, stream.Schema()); err != nil {
		stream.Release()
		f.Release()
		return nil, err
	}

	return &scanState{factory: f, stream: stream, columns: bd.columns}, nil
}

// sameColumns checks a scan's stream still matches what bind declared
func sameColumns(want, got *arrow.Schema) error {
	if got == nil || got.NumFields() != want.NumFields() {
		return errors.New("arrow stream schema changed between bind and scan")
	}
	for i := 0; i < want.NumFields(); i++ {
		if !arrow.TypeEqual(want.Field(i).Type, got.Field(i).Type) {
			return fmt.Errorf("arrow stream column %q changed type from %s to %s",
				want.Field(i).Name, want.Field(i).Type, got.Field(i).Type)
		}
	}
	return nil
}

func scan(data any, out purego.ChunkWriter) (int, error) {
	s, ok := data.(*scanState)
	if !ok {
		return 0, fmt.Errorf("unexpected scan state %T", data)
	}
	return s.fill(out)
}

// fill copies up to out.Capacity() rows into out, crossing record batch
// boundaries as needed. It returns 0 once the stream is exhausted.
func (s *scanState) fill(out purego.ChunkWriter) (int, error) {
	capacity := out.Capacity()
	n := 0
	for n < capacity {
		rec, err := s.stream.current()
		if err != nil {
			return 0, err
		}
		if rec == nil {
			break
		}

		take := min(int64(capacity-n), rec.NumRows()-s.stream.offset)
		for col, write := range s.columns {
			arr := rec.Column(col)
			vec := out.Vector(col)
			for i := int64(0); i < take; i++ {
				src := int(s.stream.offset + i)
				dst := n + int(i)
				if arr.IsNull(src) {
					vec.SetNull(dst)
					continue
				}
				if err := write(vec, dst, arr, src); err != nil {
					return 0, fmt.Errorf("column %q: %w", rec.Schema().Field(col).Name, err)
				}
			}
		}
		s.stream.offset += take
		n += int(take)
	}
	return n, nil
}
