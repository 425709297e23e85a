package source

import (
	"os"

	"github.com/apache/arrow-go/v18/arrow/array"
)

// openNDJSON reads one JSON object per line; keys missing from a line are
// nulls and keys not in the schema are ignored
func openNDJSON(f *File, file *os.File) (array.RecordReader, error) {
	return array.NewJSONReader(file, f.schema,
		array.WithChunk(f.spec.BatchSize),
		array.WithAllocator(f.mem),
	), nil
}
