// Package arrowscan lets the engine pull rows from caller-supplied Arrow
// record streams.
//
// A Factory pairs a producer callback, a release callback and the caller's
// private state. The engine never sees the factory itself, only integer
// handles: one for the factory and one for each of the two trampolines
// (CreateStream, GetSchema) that turn a handle back into a stream or a
// schema. The arrow_stream_scan table function takes those three integers
// as arguments.
package arrowscan

import (
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// ProduceFunc returns a fresh stream over the full column set of the source
// described by state. It is called once per scan and once per schema fetch,
// so it should be cheap and free of side effects visible to the caller.
type ProduceFunc func(state any) (array.RecordReader, error)

// ReleaseFunc frees everything state owns. It is called exactly once.
type ReleaseFunc func(state any)

// ErrReleased is returned when a scan starts on a factory whose last
// reference is already gone.
var ErrReleased = errors.New("arrow stream factory already released")

// Factory is the streaming-source adapter. It is reference counted: whoever
// registers it holds the first reference and every running scan holds one
// more. The release callback runs when the count drops to zero.
type Factory struct {
	produce ProduceFunc
	release ReleaseFunc
	state   any
	handle  Handle
	refs    atomic.Int64
}

// NewFactory wraps the callbacks and state. The returned factory holds one
// reference owned by the caller.
func NewFactory(produce ProduceFunc, release ReleaseFunc, state any) *Factory {
	f := &Factory{produce: produce, release: release, state: state}
	f.refs.Store(1)
	f.handle = handles.put(f)
	return f
}

// Handle returns the opaque integer identifying f
func (f *Factory) Handle() Handle {
	return f.handle
}

// Refs returns the current reference count
func (f *Factory) Refs() int64 {
	return f.refs.Load()
}

// tryRetain adds a reference unless the factory is already released
func (f *Factory) tryRetain() bool {
	for {
		n := f.refs.Load()
		if n <= 0 {
			return false
		}
		if f.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Retain adds a reference. It panics if the factory was already released.
func (f *Factory) Retain() {
	if !f.tryRetain() {
		panic(ErrReleased)
	}
}

// Release drops a reference; the last one runs the release callback.
func (f *Factory) Release() {
	switch n := f.refs.Add(-1); {
	case n == 0:
		handles.drop(f.handle)
		log.Printf("[DEBUG] releasing arrow stream factory %d", f.handle)
		if f.release != nil {
			f.release(f.state)
		}
	case n < 0:
		log.Printf("[WARN] arrow stream factory %d released more than once", f.handle)
	}
}

// GetStream calls the producer and wraps the result. Each call yields a new
// stream; nothing is cached.
func (f *Factory) GetStream() (*Stream, error) {
	reader, err := f.produce(f.state)
	if err != nil {
		return nil, fmt.Errorf("produce arrow stream: %w", err)
	}
	if reader == nil {
		return nil, errors.New("produce arrow stream: producer returned no stream")
	}
	return &Stream{reader: reader}, nil
}

// Stream is a transient wrapper around one record reader with a read cursor
// into the current record.
type Stream struct {
	reader array.RecordReader
	record arrow.Record
	offset int64
	done   bool
}

// Schema returns the stream's schema
func (s *Stream) Schema() *arrow.Schema {
	return s.reader.Schema()
}

// Release releases the underlying reader. It is safe to call twice.
func (s *Stream) Release() {
	if s.reader != nil {
		s.reader.Release()
		s.reader = nil
		s.record = nil
	}
}

// current returns the record holding the next unread row, advancing the
// reader past exhausted or empty records. A nil record means end of stream.
func (s *Stream) current() (arrow.Record, error) {
	for s.record == nil || s.offset >= s.record.NumRows() {
		if s.done || s.reader == nil {
			return nil, nil
		}
		if !s.reader.Next() {
			s.done = true
			s.record = nil
			if err := s.reader.Err(); err != nil {
				return nil, fmt.Errorf("read arrow stream: %w", err)
			}
			return nil, nil
		}
		s.record = s.reader.Record()
		s.offset = 0
	}
	return s.record, nil
}
