package arrowscan

import (
	"errors"

	"github.com/apache/arrow-go/v18/arrow"
)

// ScanParameters carries what the engine knows about a scan: the columns it
// needs and the filters it could push down. The producer is not told about
// either; it always yields the full, unfiltered column set.
type ScanParameters struct {
	ProjectedColumns []string
	Filters          []string
}

// CreateStreamFunc is the calling convention of the stream trampoline
type CreateStreamFunc func(factory Handle, params ScanParameters) (*Stream, error)

// GetSchemaFunc is the calling convention of the schema trampoline
type GetSchemaFunc func(factory Handle) (*arrow.Schema, error)

var (
	createStreamHandle = handles.put(CreateStreamFunc(CreateStream))
	getSchemaHandle    = handles.put(GetSchemaFunc(GetSchema))
)

// CreateStream resolves the factory behind h and returns a fresh stream from
// it. params is accepted and ignored.
func CreateStream(h Handle, params ScanParameters) (*Stream, error) {
	f, err := resolve[*Factory](h)
	if err != nil {
		return nil, err
	}
	return f.GetStream()
}

// GetSchema resolves the factory behind h, builds a stream only to read its
// schema and releases that stream before returning.
func GetSchema(h Handle) (*arrow.Schema, error) {
	f, err := resolve[*Factory](h)
	if err != nil {
		return nil, err
	}

	s, err := f.GetStream()
	if err != nil {
		return nil, err
	}
	defer s.Release()

	schema := s.Schema()
	if schema == nil {
		return nil, errors.New("arrow stream has no schema")
	}
	return schema, nil
}

// Args returns the three opaque integers the scan function expects for f:
// the factory, the stream trampoline and the schema trampoline.
func Args(f *Factory) [3]uint64 {
	return [3]uint64{uint64(f.Handle()), uint64(createStreamHandle), uint64(getSchemaHandle)}
}
